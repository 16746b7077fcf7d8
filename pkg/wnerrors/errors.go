// Package wnerrors defines the universal error-kind taxonomy shared by the
// binding daemon, the map server, and the adapter-protocol simulations.
//
// This is a leaf package: it imports nothing else in this module, so that
// every other package (backends, format codecs, the daemon, the server) can
// depend on it without risking an import cycle.
package wnerrors

import (
	"errors"
	"fmt"
)

// Code identifies the kind of a Webnis error. Kinds are either final
// (never retried) or transient (governed by a caller's retry budget).
type Code int

const (
	// NotFound indicates the requested key, map, or domain does not exist.
	// Final.
	NotFound Code = iota + 1

	// Unavailable indicates a permanent failure: malformed reply,
	// unrecognized map type, a reply that fails the reshaping invariants.
	// Final.
	Unavailable

	// TryAgainLater indicates a transient failure that should be retried
	// after a delay (e.g. non-2xx HTTP status, wrong content type).
	TryAgainLater

	// TryAgainNow indicates a transient failure that should be retried
	// immediately on the next server (e.g. a synthesized 550 stuck-client
	// condition).
	TryAgainNow

	// InsufficientBuffer is adapter-level only: the caller-provided buffer
	// was too small to hold the reshaped record.
	InsufficientBuffer

	// TimedOut indicates a request exceeded its deadline. Treated as
	// TryAgainNow by the retry engine.
	TimedOut

	// BadAuth indicates the submitted credentials were wrong. Final.
	BadAuth

	// Forbidden indicates a policy denial: securenets, HTTP auth schema
	// mismatch, or a per-command access restriction. Final.
	Forbidden
)

func (c Code) String() string {
	switch c {
	case NotFound:
		return "NotFound"
	case Unavailable:
		return "Unavailable"
	case TryAgainLater:
		return "TryAgainLater"
	case TryAgainNow:
		return "TryAgainNow"
	case InsufficientBuffer:
		return "InsufficientBuffer"
	case TimedOut:
		return "TimedOut"
	case BadAuth:
		return "BadAuth"
	case Forbidden:
		return "Forbidden"
	default:
		return "Unknown"
	}
}

// Transient reports whether the retry engine is allowed to retry an error
// of this kind, within its declared budget. Everything else is final and
// must be reported immediately.
func (c Code) Transient() bool {
	switch c {
	case TryAgainLater, TryAgainNow, TimedOut:
		return true
	default:
		return false
	}
}

// WnError is the concrete error type carrying a Code, a human-readable
// message, and an optional wrapped cause.
type WnError struct {
	Code    Code
	Message string
	Cause   error
}

func (e *WnError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *WnError) Unwrap() error {
	return e.Cause
}

// Is allows errors.Is(err, wnerrors.NotFound) style comparisons by
// comparing codes when the target is also a *WnError.
func (e *WnError) Is(target error) bool {
	t, ok := target.(*WnError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New constructs a *WnError with no wrapped cause.
func New(code Code, message string) *WnError {
	return &WnError{Code: code, Message: message}
}

// Wrap constructs a *WnError wrapping cause.
func Wrap(code Code, message string, cause error) *WnError {
	return &WnError{Code: code, Message: message, Cause: cause}
}

// CodeOf extracts the Code from err if it is (or wraps) a *WnError,
// otherwise returns Unavailable as the safe default for an unrecognized
// error shape.
func CodeOf(err error) Code {
	if err == nil {
		return 0
	}
	var we *WnError
	if errors.As(err, &we) {
		return we.Code
	}
	return Unavailable
}

// ToDaemonStatus renders a Code to the three-digit numeric status used on
// the daemon<->adapter wire (spec §4.1, §7).
func ToDaemonStatus(code Code) int {
	switch code {
	case NotFound:
		return 404
	case BadAuth:
		return 401
	case Forbidden:
		return 403
	case TryAgainLater:
		return 480
	case TryAgainNow:
		return 550
	case TimedOut:
		return 408
	case Unavailable:
		return 500
	case InsufficientBuffer:
		return 416
	default:
		return 500
	}
}

// ToHTTPStatus renders a Code to the HTTP status the map server returns.
func ToHTTPStatus(code Code) int {
	switch code {
	case NotFound:
		return 404
	case BadAuth:
		return 401
	case Forbidden:
		return 403
	case TryAgainLater, TryAgainNow, TimedOut:
		return 503
	case Unavailable:
		return 500
	default:
		return 500
	}
}

// FromDaemonStatus classifies a raw response code from the server as seen
// by the daemon's retry engine (spec §4.1 step 3).
func FromDaemonStatus(status int, contentTypeOK bool) Code {
	switch {
	case status >= 200 && status < 300 && contentTypeOK:
		return 0 // success, no error
	case status == 401:
		return BadAuth
	case status == 403:
		return Forbidden
	case status == 404:
		return NotFound
	case status >= 200 && status < 300 && !contentTypeOK:
		return TryAgainLater // synthesized 416
	default:
		return TryAgainLater
	}
}
