package bind

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/miquels/webnis/pkg/entry"
	"github.com/miquels/webnis/pkg/wnerrors"
)

// Expected top-level field sets for each reply shape (spec.md:111 "JSON
// nesting depth and field count must match exactly; otherwise the reply
// is rejected").
var (
	passwdFields  = []string{"username", "passwd", "uid", "gid", "gecos", "dir", "shell"}
	groupFields   = []string{"name", "passwd", "gid", "mem"}
	gidListFields = []string{"username", "gidlist"}
)

// decodeStrict unmarshals raw into out, rejecting any reply whose set of
// top-level field names does not match wanted exactly -- extra fields,
// missing fields, or both.
func decodeStrict(raw json.RawMessage, wanted []string, out any) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return err
	}
	for _, w := range wanted {
		if _, ok := fields[w]; !ok {
			return fmt.Errorf("missing required field %q", w)
		}
	}
	if len(fields) != len(wanted) {
		return fmt.Errorf("expected exactly %d field(s), got %d", len(wanted), len(fields))
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	return dec.Decode(out)
}

// envelope is the map server's JSON reply shape: either
// {"result": {...}} on success or {"error": {"code": N, "message": "..."}}
// on failure (spec.md §4.2 "Response envelope").
type envelope struct {
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// reshape converts one map server JSON body into the daemon wire line
// "CODE text", per the cmd that was requested.
//
// A NUL byte anywhere in body is always a final protocol violation,
// independent of how the JSON itself parses.
func reshape(cmd Cmd, body []byte) string {
	if containsNUL(body) {
		return formatLine(wnerrors.ToDaemonStatus(wnerrors.Unavailable), "reply contains NUL byte")
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return formatLine(400, "invalid JSON reply: "+err.Error())
	}
	if env.Error != nil {
		return formatLine(env.Error.Code, env.Error.Message)
	}
	if len(env.Result) == 0 {
		return formatLine(wnerrors.ToDaemonStatus(wnerrors.Unavailable), "reply missing result")
	}

	switch cmd {
	case CmdGetPwNam, CmdGetPwUid:
		var p entry.Passwd
		if err := decodeStrict(env.Result, passwdFields, &p); err != nil {
			return formatLine(400, "invalid passwd reply: "+err.Error())
		}
		line, err := p.ToLine()
		if err != nil {
			return formatLine(wnerrors.ToDaemonStatus(wnerrors.CodeOf(err)), err.Error())
		}
		return formatLine(200, line)

	case CmdGetGrNam, CmdGetGrGid:
		var g entry.Group
		if err := decodeStrict(env.Result, groupFields, &g); err != nil {
			return formatLine(400, "invalid group reply: "+err.Error())
		}
		line, err := g.ToLine()
		if err != nil {
			return formatLine(wnerrors.ToDaemonStatus(wnerrors.CodeOf(err)), err.Error())
		}
		return formatLine(200, line)

	case CmdGetGidList:
		var gl entry.GidList
		if err := decodeStrict(env.Result, gidListFields, &gl); err != nil {
			return formatLine(400, "invalid gidlist reply: "+err.Error())
		}
		line, err := gl.ToLine()
		if err != nil {
			return formatLine(wnerrors.ToDaemonStatus(wnerrors.CodeOf(err)), err.Error())
		}
		return formatLine(200, line)

	case CmdAuth:
		return formatLine(200, "OK")

	default:
		return formatLine(500, "no reshaper for this command")
	}
}

func formatLine(code int, text string) string {
	return strconv.Itoa(code) + " " + text
}

func containsNUL(body []byte) bool {
	for _, b := range body {
		if b == 0 {
			return true
		}
	}
	return false
}
