// Package server implements the HTTPS map server: the chi route tree,
// access control, and the map-lookup/auth orchestration of spec.md §4.2.
package server

import (
	"encoding/json"
	"net/http"

	"github.com/miquels/webnis/pkg/wnerrors"
)

// envelope is the wire reply shape pkg/bind's reshape step parses: either
// {"result": ...} on success or {"error": {"code", "message"}} on failure
// (spec.md §4.2 "Response envelope").
type envelope struct {
	Result any `json:"result,omitempty"`
	Error  *errorBody `json:"error,omitempty"`
}

type errorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func writeResult(w http.ResponseWriter, status int, result any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Result: result})
}

// writeError renders err as the error half of the envelope. The HTTP
// response line uses wnerrors.ToHTTPStatus, but the envelope's own "code"
// field carries wnerrors.ToDaemonStatus -- the value pkg/bind's reshape
// step reads directly as the daemon wire status, independent of the HTTP
// status the transport happens to carry it on (spec.md §4.2 "Response
// envelope").
func writeError(w http.ResponseWriter, fallback int, err error) {
	code := wnerrors.CodeOf(err)
	status := fallback
	daemonCode := fallback
	if code != 0 {
		status = wnerrors.ToHTTPStatus(code)
		daemonCode = wnerrors.ToDaemonStatus(code)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Error: &errorBody{
		Code:    daemonCode,
		Message: err.Error(),
	}})
}

func writeErrorMsg(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Error: &errorBody{Code: status, Message: message}})
}
