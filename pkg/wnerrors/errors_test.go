package wnerrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransient(t *testing.T) {
	cases := []struct {
		code Code
		want bool
	}{
		{TryAgainLater, true},
		{TryAgainNow, true},
		{TimedOut, true},
		{NotFound, false},
		{BadAuth, false},
		{Forbidden, false},
		{Unavailable, false},
		{InsufficientBuffer, false},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, c.code.Transient(), c.code.String())
	}
}

func TestWrapUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := Wrap(Unavailable, "bad reply", cause)
	require.Error(t, err)
	assert.Same(t, cause, errors.Unwrap(err))
	assert.Equal(t, Unavailable, CodeOf(err))
}

func TestIsMatchesOnCode(t *testing.T) {
	a := New(NotFound, "no such key")
	b := New(NotFound, "different message")
	c := New(BadAuth, "wrong password")

	assert.True(t, errors.Is(a, b))
	assert.False(t, errors.Is(a, c))
}

func TestToDaemonStatus(t *testing.T) {
	assert.Equal(t, 404, ToDaemonStatus(NotFound))
	assert.Equal(t, 401, ToDaemonStatus(BadAuth))
	assert.Equal(t, 403, ToDaemonStatus(Forbidden))
	assert.Equal(t, 550, ToDaemonStatus(TryAgainNow))
}

func TestToHTTPStatus(t *testing.T) {
	assert.Equal(t, 404, ToHTTPStatus(NotFound))
	assert.Equal(t, 401, ToHTTPStatus(BadAuth))
	assert.Equal(t, 403, ToHTTPStatus(Forbidden))
	assert.Equal(t, 503, ToHTTPStatus(TryAgainNow))
}

func TestFromDaemonStatus(t *testing.T) {
	assert.Equal(t, Code(0), FromDaemonStatus(200, true))
	assert.Equal(t, TryAgainLater, FromDaemonStatus(200, false))
	assert.Equal(t, BadAuth, FromDaemonStatus(401, true))
	assert.Equal(t, Forbidden, FromDaemonStatus(403, true))
	assert.Equal(t, NotFound, FromDaemonStatus(404, true))
	assert.Equal(t, TryAgainLater, FromDaemonStatus(502, true))
}
