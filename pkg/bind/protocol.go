package bind

import (
	"fmt"
	"strconv"
	"strings"
)

// Cmd identifies one of the daemon's wire verbs.
type Cmd int

const (
	CmdAuth Cmd = iota + 1
	CmdGetPwNam
	CmdGetPwUid
	CmdGetGrNam
	CmdGetGrGid
	CmdGetGidList
	CmdServers
)

func (c Cmd) String() string {
	switch c {
	case CmdAuth:
		return "auth"
	case CmdGetPwNam:
		return "getpwnam"
	case CmdGetPwUid:
		return "getpwuid"
	case CmdGetGrNam:
		return "getgrnam"
	case CmdGetGrGid:
		return "getgrgid"
	case CmdGetGidList:
		return "getgidlist"
	case CmdServers:
		return "servers"
	default:
		return "unknown"
	}
}

// Request is one parsed line off the daemon's UNIX socket.
type Request struct {
	Cmd  Cmd
	Args []string
	// Arg0 is the numeric form of Args[0] for getpwuid/getgrgid, used by
	// the restrict_getpwuid/restrict_getgrgid access checks.
	Arg0 uint32
}

var verbs = map[string]struct {
	cmd            Cmd
	minArgs, maxArgs int
}{
	"auth":       {CmdAuth, 2, 4},
	"getpwnam":   {CmdGetPwNam, 1, 1},
	"getpwuid":   {CmdGetPwUid, 1, 1},
	"getgrnam":   {CmdGetGrNam, 1, 1},
	"getgrgid":   {CmdGetGrGid, 1, 1},
	"getgidlist": {CmdGetGidList, 1, 1},
	"servers":    {CmdServers, 0, 0},
}

// ParseRequest parses one line of the daemon's ASCII protocol:
// "COMMAND ARG1 [ARG2 ...]". The verb is matched case-insensitively.
func ParseRequest(line string) (Request, error) {
	parts := strings.SplitN(line, " ", 5)
	if len(parts) == 0 || parts[0] == "" {
		return Request{}, fmt.Errorf("empty command")
	}
	verb := strings.ToLower(parts[0])
	spec, ok := verbs[verb]
	if !ok {
		return Request{}, fmt.Errorf("unknown command %s", verb)
	}
	args := parts[1:]
	if len(args) < spec.minArgs || len(args) > spec.maxArgs {
		if spec.minArgs == spec.maxArgs {
			return Request{}, fmt.Errorf("%s needs %d arguments", verb, spec.minArgs)
		}
		return Request{}, fmt.Errorf("%s needs %d-%d arguments", verb, spec.minArgs, spec.maxArgs)
	}

	req := Request{Cmd: spec.cmd, Args: args}
	if spec.cmd == CmdGetPwUid || spec.cmd == CmdGetGrGid {
		n, err := strconv.ParseUint(args[0], 10, 32)
		if err != nil {
			return Request{}, fmt.Errorf("not a number")
		}
		req.Arg0 = uint32(n)
	}
	return req, nil
}

// mapLookup is what map/key a non-auth, non-servers verb resolves to
// (spec.md §4.1 "map lookup" table).
type mapLookup struct {
	mapName, keyName string
}

func (c Cmd) mapLookup() (mapLookup, bool) {
	switch c {
	case CmdGetPwNam:
		return mapLookup{"passwd", "username"}, true
	case CmdGetPwUid:
		return mapLookup{"passwd", "uid"}, true
	case CmdGetGrNam:
		return mapLookup{"group", "group"}, true
	case CmdGetGrGid:
		return mapLookup{"group", "gid"}, true
	case CmdGetGidList:
		return mapLookup{"gidlist", "username"}, true
	default:
		return mapLookup{}, false
	}
}
