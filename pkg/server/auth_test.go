package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miquels/webnis/pkg/wnerrors"
)

func TestDecodeAuthRequest_JSON(t *testing.T) {
	body := `{"username":"alice","password":"secret","service":"login","remote":"10.0.0.1"}`
	r := httptest.NewRequest(http.MethodPost, "/auth", strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")

	req, err := decodeAuthRequest(r)
	require.NoError(t, err)
	assert.Equal(t, authRequest{Username: "alice", Password: "secret", Service: "login", Remote: "10.0.0.1"}, req)
}

func TestDecodeAuthRequest_Form(t *testing.T) {
	form := url.Values{"username": {"bob"}, "password": {"hunter2"}}
	r := httptest.NewRequest(http.MethodPost, "/auth", strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	req, err := decodeAuthRequest(r)
	require.NoError(t, err)
	assert.Equal(t, "bob", req.Username)
	assert.Equal(t, "hunter2", req.Password)
}

func TestIsJSONContentType(t *testing.T) {
	assert.True(t, isJSONContentType("application/json"))
	assert.True(t, isJSONContentType("application/json; charset=utf8"))
	assert.False(t, isJSONContentType("application/x-www-form-urlencoded"))
	assert.False(t, isJSONContentType(""))
}

func TestAuthenticate_MapBased(t *testing.T) {
	file := writeJSONArray(t, []map[string]any{
		{"name": "alice", "passwd": "$5$saltstring$5B8vYYiY.CVt1RlTTf8KbXBH3hsxY/GNooZaBBGWEc5"},
	})
	e, _, d := newTestEngine(t, file, []string{"name"})

	status, err := e.authenticate(context.Background(), d, authRequest{Username: "alice", Password: "Hello world!"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)

	status, err = e.authenticate(context.Background(), d, authRequest{Username: "alice", Password: "wrong"})
	require.Error(t, err)
	assert.Equal(t, wnerrors.BadAuth, wnerrors.CodeOf(err))
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestAuthenticate_NoAuthConfigured(t *testing.T) {
	file := writeJSONArray(t, []map[string]any{{"name": "alice"}})
	e, _, d := newTestEngine(t, file, []string{"name"})
	d.AuthName = ""

	status, err := e.authenticate(context.Background(), d, authRequest{Username: "alice", Password: "x"})
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, status)
}
