package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/miquels/webnis/internal/logger"
)

// maxRequestBodyBytes bounds how much of a client request body the server
// will ever read, mirroring pkg/wnclient's maxBodyBytes on the daemon
// side.
const maxRequestBodyBytes = 1 << 20

func decodeJSONBody(r *http.Request, out any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBodyBytes))
	return dec.Decode(out)
}

// handlers bundles the lookupEngine and optional data logger behind the
// route tree's HTTP entry points.
type handlers struct {
	engine  *lookupEngine
	datalog datalogger
}

// handleMapLookup implements spec.md §4.2's map-lookup algorithm. Domain
// resolution and HTTP auth already ran in httpAuthMiddleware; this
// handler only needs steps 2-6.
func (h *handlers) handleMapLookup(w http.ResponseWriter, r *http.Request) {
	d := domainFromContext(r.Context())
	mapName := chi.URLParam(r, "mapname")

	keyName, keyValue, ok := firstQueryParam(r)
	if !ok {
		writeErrorMsg(w, http.StatusBadRequest, "missing lookup key")
		return
	}

	obj, err := h.engine.lookup(r.Context(), d, mapName, keyName, keyValue)
	h.datalog.logLookup(d.Name, mapName, keyName, keyValue, err)
	if err != nil {
		logger.Debug("map lookup failed", "domain", d.Name, "map", mapName, "key", keyName, "error", err)
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeResult(w, http.StatusOK, obj)
}

// handleAuth implements spec.md §4.2's auth endpoint algorithm (steps
// 2-4); access control already ran in httpAuthMiddleware.
func (h *handlers) handleAuth(w http.ResponseWriter, r *http.Request) {
	d := domainFromContext(r.Context())

	req, err := decodeAuthRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	status, authErr := h.engine.authenticate(r.Context(), d, req)
	h.datalog.logAuth(d.Name, req.Username, authErr)
	if authErr != nil {
		logger.Debug("auth failed", "domain", d.Name, "username", req.Username, "error", authErr)
		writeError(w, status, authErr)
		return
	}
	writeResult(w, status, map[string]string{"status": "OK"})
}

// handleInfo lists the domain's allowed maps and their accepted keys
// (spec.md §4.2 "GET /{domain}/info").
func (h *handlers) handleInfo(w http.ResponseWriter, r *http.Request) {
	d := domainFromContext(r.Context())

	type mapInfo struct {
		Name string   `json:"name"`
		Type string   `json:"type"`
		Keys []string `json:"keys"`
	}
	infos := make([]mapInfo, 0, len(d.Maps))
	for _, mapName := range d.Maps {
		for _, m := range h.engine.table.MapsNamed(mapName) {
			infos = append(infos, mapInfo{Name: m.Name, Type: string(m.Type), Keys: m.Keys})
		}
	}
	writeResult(w, http.StatusOK, map[string]any{"domain": d.Name, "maps": infos})
}

// firstQueryParam returns the first query parameter as the (keyname,
// keyvalue) pair (spec.md §4.2 step 3). net/url.Values doesn't preserve
// declaration order across distinct keys, so the raw query string is
// parsed by hand to honor "first parameter" literally.
func firstQueryParam(r *http.Request) (name, value string, ok bool) {
	raw := r.URL.RawQuery
	if raw == "" {
		return "", "", false
	}
	end := len(raw)
	if i := indexByte(raw, '&'); i >= 0 {
		end = i
	}
	pair := raw[:end]
	eq := indexByte(pair, '=')
	if eq < 0 {
		return "", "", false
	}
	k, kErr := url.QueryUnescape(pair[:eq])
	v, vErr := url.QueryUnescape(pair[eq+1:])
	if kErr != nil || vErr != nil {
		return "", "", false
	}
	return k, v, true
}

func indexByte(s string, b byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == b {
			return i
		}
	}
	return -1
}
