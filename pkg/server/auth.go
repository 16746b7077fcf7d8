package server

import (
	"context"
	"net/http"

	"github.com/miquels/webnis/pkg/crypt"
	"github.com/miquels/webnis/pkg/domain"
	"github.com/miquels/webnis/pkg/entry"
	"github.com/miquels/webnis/pkg/wnerrors"
)

// authRequest is the decoded /auth POST body (spec.md §4.2 "Auth endpoint
// algorithm" step 2).
type authRequest struct {
	Username string
	Password string
	Service  string
	Remote   string
}

func decodeAuthRequest(r *http.Request) (authRequest, error) {
	contentType := r.Header.Get("Content-Type")
	if isJSONContentType(contentType) {
		var body struct {
			Username string `json:"username"`
			Password string `json:"password"`
			Service  string `json:"service"`
			Remote   string `json:"remote"`
		}
		if err := decodeJSONBody(r, &body); err != nil {
			return authRequest{}, wnerrors.Wrap(wnerrors.Unavailable, "invalid JSON body", err)
		}
		return authRequest{Username: body.Username, Password: body.Password, Service: body.Service, Remote: body.Remote}, nil
	}

	if err := r.ParseForm(); err != nil {
		return authRequest{}, wnerrors.Wrap(wnerrors.Unavailable, "invalid form body", err)
	}
	return authRequest{
		Username: r.PostForm.Get("username"),
		Password: r.PostForm.Get("password"),
		Service:  r.PostForm.Get("service"),
		Remote:   r.PostForm.Get("remote"),
	}, nil
}

// authenticate runs spec.md §4.2's auth endpoint algorithm step 3: either
// the scripted or map-based branch, depending on the domain's Auth
// descriptor.
func (e *lookupEngine) authenticate(ctx context.Context, d *domain.Domain, req authRequest) (int, error) {
	if d.AuthName == "" {
		return http.StatusNotFound, wnerrors.New(wnerrors.NotFound, "domain has no auth configured")
	}
	a, ok := e.table.Auth(d.AuthName)
	if !ok {
		return http.StatusNotFound, wnerrors.New(wnerrors.NotFound, "auth descriptor not found")
	}

	if a.Scripted() {
		ok, err := e.scriptedAuth(ctx, a, req)
		if err != nil {
			return http.StatusInternalServerError, err
		}
		if !ok {
			return http.StatusUnauthorized, wnerrors.New(wnerrors.BadAuth, "password incorrect")
		}
		return http.StatusOK, nil
	}

	obj, err := e.lookup(ctx, d, a.Map, a.Key, req.Username)
	if err != nil {
		return http.StatusNotFound, err
	}
	passwd, err := passwdField(obj)
	if err != nil {
		return http.StatusInternalServerError, err
	}
	if err := verifyPassword(req.Password, passwd); err != nil {
		return wnerrors.ToHTTPStatus(wnerrors.CodeOf(err)), err
	}
	return http.StatusOK, nil
}

// scriptedAuth invokes a's LuaFunction as a scripted backend (not a Map --
// spec.md §3's Auth descriptor names a handler directly) via its
// AuthBackend.Authenticate entry point. The virtual Map wrapping the
// handler is cached per-Auth (virtualAuthMap) so repeated calls reuse the
// same scripted backend instance instead of reparsing the Lua source and
// leaking a new worker-cache entry on every request.
func (e *lookupEngine) scriptedAuth(ctx context.Context, a *domain.Auth, req authRequest) (bool, error) {
	virtual := e.virtualAuthMap(a)

	w := e.pool.checkout()
	defer e.pool.checkin(w)

	b, err := w.backendFor(virtual, e.lua)
	if err != nil {
		return false, err
	}
	ab, ok := b.(interface {
		Authenticate(ctx context.Context, keyName, username, password string) (bool, error)
	})
	if !ok {
		return false, wnerrors.New(wnerrors.Unavailable, "scripted auth backend does not support authentication")
	}
	return ab.Authenticate(ctx, "", req.Username, req.Password)
}

// verifyPassword checks password against the stored hash using
// pkg/crypt's crypt(3)-family verifier. Passwords reach the server
// percent-encoded, so password is decoded first.
func verifyPassword(password, hash string) error {
	return crypt.Verify(entry.PercentDecode(password), hash)
}

func isJSONContentType(contentType string) bool {
	for i := 0; i < len(contentType); i++ {
		if contentType[i] == ';' {
			contentType = contentType[:i]
			break
		}
	}
	return contentType == "application/json"
}
