package wnclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miquels/webnis/pkg/wnerrors"
)

func TestCredentialsHeader(t *testing.T) {
	plain := Credentials{Schema: "Bearer", Token: "abc123"}
	assert.Equal(t, "Bearer abc123", plain.Header())

	encoded := Credentials{Schema: "Basic", Token: "abc123", Encoding: "base64"}
	assert.Equal(t, "Basic YWJjMTIz", encoded.Header())
}

func TestBuildMapURL(t *testing.T) {
	raw := BuildMapURL("server1.example.com", "corp", "passwd", "username", "truus", 1000)
	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "/.well-known/webnis/corp/map/passwd", u.Path)
	assert.Equal(t, "truus", u.Query().Get("username"))
	assert.Equal(t, "1000", u.Query().Get("cred_uid"))
}

func TestBuildAuthURL(t *testing.T) {
	assert.Equal(t, "https://server1.example.com/.well-known/webnis/corp/auth", BuildAuthURL("server1.example.com", "corp"))
}

func TestNewMapRequestSetsAuthorizationHeader(t *testing.T) {
	req, err := NewMapRequest("server1.example.com", "corp", "passwd", "username", "truus", 1000,
		Credentials{Schema: "Bearer", Token: "secret"})
	require.NoError(t, err)
	assert.Equal(t, "Bearer secret", req.Header.Get("Authorization"))
	assert.Equal(t, "application/json", req.Header.Get("Accept"))
}

func TestNewAuthRequestEncodesForm(t *testing.T) {
	req, err := NewAuthRequest("server1.example.com", "corp", "truus", "s3cr3t", "login", "10.0.0.1",
		Credentials{Schema: "Bearer", Token: "secret"})
	require.NoError(t, err)
	assert.Equal(t, "application/x-www-form-urlencoded", req.Header.Get("Content-Type"))
	assert.Equal(t, int64(len("password=s3cr3t&remote=10.0.0.1&service=login&username=truus")), req.ContentLength)
}

func TestExecuteSuccess(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"username":"truus"}`))
	}))
	defer ts.Close()

	req, err := http.NewRequest(http.MethodGet, ts.URL, nil)
	require.NoError(t, err)

	resp, err := Execute(context.Background(), ts.Client(), req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.True(t, resp.ValidJSONContentType())
	assert.False(t, ContainsNUL(resp.Body))
}

func TestExecuteWrongContentType(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("not json"))
	}))
	defer ts.Close()

	req, err := http.NewRequest(http.MethodGet, ts.URL, nil)
	require.NoError(t, err)

	resp, err := Execute(context.Background(), ts.Client(), req)
	require.NoError(t, err)
	assert.False(t, resp.ValidJSONContentType())
}

func TestExecuteConnectionFailureIsTryAgainNow(t *testing.T) {
	client := &http.Client{Timeout: 100 * time.Millisecond}
	req, err := http.NewRequest(http.MethodGet, "https://127.0.0.1:1", nil)
	require.NoError(t, err)

	_, err = Execute(context.Background(), client, req)
	require.Error(t, err)
	assert.Equal(t, wnerrors.TryAgainNow, wnerrors.CodeOf(err))
}

func TestContainsNUL(t *testing.T) {
	assert.True(t, ContainsNUL([]byte{'a', 0, 'b'}))
	assert.False(t, ContainsNUL([]byte("clean")))
}
