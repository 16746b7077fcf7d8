// Package wnclient builds the HTTPS requests the binding daemon issues
// against the map server pool (spec.md §4.1 "HTTPS request construction")
// and classifies their outcomes for the retry engine in pkg/bind.
package wnclient

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/miquels/webnis/pkg/wnerrors"
)

// Credentials is the per-domain HTTP auth schema+token pair the daemon
// presents to the server (spec.md §3 "Domain": "an HTTP authentication
// schema + token pair the daemon must present").
type Credentials struct {
	Schema   string // e.g. "Basic", "Bearer"
	Token    string
	Encoding string // "" or "base64" (spec.md §4.1: "the token may additionally be base64-encoded")
}

// Header renders the Authorization header value for these credentials.
func (c Credentials) Header() string {
	token := c.Token
	if c.Encoding == "base64" {
		token = base64.StdEncoding.EncodeToString([]byte(token))
	}
	return c.Schema + " " + token
}

// NewHTTPSClient builds the daemon's single HTTPS client for the
// currently-active server (spec.md §4.1 "The daemon maintains exactly
// one HTTPS client for the currently-active server"). requestTimeout
// bounds each whole request, including reading the body.
func NewHTTPSClient(requestTimeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: requestTimeout,
	}
}

// BuildMapURL constructs the map-lookup URL: "https://{server}/.well-known
// /webnis/{domain}/map/{mapname}?{keyname}={keyvalue}&cred_uid={peer_uid}"
// (spec.md §4.1).
func BuildMapURL(server, domainName, mapName, keyName, keyValue string, peerUID uint32) string {
	q := url.Values{}
	q.Set(keyName, keyValue)
	q.Set("cred_uid", strconv.FormatUint(uint64(peerUID), 10))
	return fmt.Sprintf("https://%s/.well-known/webnis/%s/map/%s?%s", server, domainName, mapName, q.Encode())
}

// BuildAuthURL constructs the auth endpoint URL for domainName on server.
func BuildAuthURL(server, domainName string) string {
	return fmt.Sprintf("https://%s/.well-known/webnis/%s/auth", server, domainName)
}

// NewMapRequest builds the GET request for a map lookup, with the
// Authorization header already attached.
func NewMapRequest(server, domainName, mapName, keyName, keyValue string, peerUID uint32, creds Credentials) (*http.Request, error) {
	req, err := http.NewRequest(http.MethodGet, BuildMapURL(server, domainName, mapName, keyName, keyValue, peerUID), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", creds.Header())
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// NewAuthRequest builds the POST request for a password authentication,
// percent-encoding the form body (spec.md §4.2 "percent-decoded on
// form").
func NewAuthRequest(server, domainName, username, password, service, remote string, creds Credentials) (*http.Request, error) {
	form := url.Values{}
	form.Set("username", username)
	form.Set("password", password)
	if service != "" {
		form.Set("service", service)
	}
	if remote != "" {
		form.Set("remote", remote)
	}

	body := form.Encode()
	req, err := http.NewRequest(http.MethodPost, BuildAuthURL(server, domainName), strings.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.ContentLength = int64(len(body))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", creds.Header())
	return req, nil
}

// maxBodyBytes bounds how much of a response body the daemon will ever
// read, so a misbehaving server cannot exhaust daemon memory.
const maxBodyBytes = 1 << 20

// Response is one attempt's outcome, already read off the wire.
type Response struct {
	Status      int
	Body        []byte
	ContentType string
}

// Execute issues req against client and reads its body, classifying
// transport-level failures of the request itself (dial, TLS, timeout) into
// the synthesized TryAgainNow/550 condition the retry engine uses to decide
// whether to drop its HTTPS client (spec.md §4.1 step 3: "if the
// connection attempt itself fails ... treat this as status 550 and
// discard the client").
func Execute(ctx context.Context, client *http.Client, req *http.Request) (Response, error) {
	resp, err := client.Do(req.WithContext(ctx))
	if err != nil {
		return Response{}, wnerrors.Wrap(wnerrors.TryAgainNow, "request failed", err)
	}
	defer resp.Body.Close()

	// Wrapped as TryAgainLater purely so the retry engine advances to the
	// next server instead of discarding the client (pkg/bind/retry.go
	// renders this specific code as the literal daemon status 400, per
	// spec.md §4.1 step 3, rather than TryAgainLater's usual 480).
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return Response{}, wnerrors.Wrap(wnerrors.TryAgainLater, "reading response body", err)
	}

	return Response{
		Status:      resp.StatusCode,
		Body:        body,
		ContentType: resp.Header.Get("Content-Type"),
	}, nil
}

// ValidJSONContentType reports whether the response's Content-Type header
// indicates a JSON body, the shape the map server always replies with on
// success (spec.md §4.1 step 3: "wrong content type on an otherwise
// successful status is treated as a synthesized 416").
func (r Response) ValidJSONContentType() bool {
	ct := r.ContentType
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	return strings.TrimSpace(ct) == "application/json"
}

// ContainsNUL reports whether body holds an embedded NUL byte, which the
// daemon rejects outright regardless of status (spec.md §4.1: "a reply
// body containing a NUL byte is always a final protocol violation").
func ContainsNUL(body []byte) bool {
	for _, b := range body {
		if b == 0 {
			return true
		}
	}
	return false
}
