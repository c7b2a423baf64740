// Package origin fetches source media over HTTP with request-forgery and
// resource-exhaustion guards.
package origin

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	mcerr "github.com/musefactory/mediacache/internal/errors"
)

// blockedHostnames are rejected outright, before any name resolution.
var blockedHostnames = map[string]struct{}{
	"localhost": {},
	"127.0.0.1": {},
	"0.0.0.0":   {},
}

// Fetcher dereferences source URLs. Safe for concurrent use; the
// underlying http.Client is shared across requests.
type Fetcher struct {
	client   *http.Client
	maxBytes int64
	timeout  time.Duration
}

// NewFetcher builds a Fetcher that rejects payloads larger than maxBytes
// and aborts fetches after timeout.
func NewFetcher(maxBytes int64, timeout time.Duration) *Fetcher {
	return &Fetcher{
		client:   &http.Client{},
		maxBytes: maxBytes,
		timeout:  timeout,
	}
}

// Validate parses and screens a source URL without touching the network.
// Only http and https schemes are accepted, and hosts that would let the
// fetch reach this process or its private network are rejected. The check
// is by-name and by-literal-IP only; it does not pin DNS resolution.
func (f *Fetcher) Validate(raw string) (*url.URL, error) {
	if raw == "" {
		return nil, mcerr.Validation("missing url parameter")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, mcerr.Validation("invalid url format")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, mcerr.Validation("invalid protocol %q", u.Scheme)
	}
	host := u.Hostname()
	if host == "" {
		return nil, mcerr.Validation("invalid url: no host")
	}
	if _, blocked := blockedHostnames[host]; blocked {
		return nil, mcerr.Validation("invalid url source")
	}
	if ip := net.ParseIP(host); ip != nil {
		if ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() || ip.IsPrivate() || ip.IsUnspecified() {
			return nil, mcerr.Validation("invalid url source")
		}
	}
	return u, nil
}

// Fetch validates raw and retrieves its bytes. The fetch is bounded by
// the configured timeout and byte ceiling; the caller's context cancels
// only this request. Returns the payload and the origin's Content-Type.
func (f *Fetcher) Fetch(ctx context.Context, raw string) ([]byte, string, error) {
	u, err := f.Validate(raw)
	if err != nil {
		return nil, "", err
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, "", mcerr.OriginFetch("building origin request", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, "", mcerr.OriginFetch("fetching source", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, "", mcerr.OriginFetch(fmt.Sprintf("origin returned status %d", resp.StatusCode), nil)
	}

	// Read one byte past the ceiling to distinguish at-limit from over.
	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, "", mcerr.OriginFetch("reading source body", err)
	}
	if int64(len(data)) > f.maxBytes {
		return nil, "", mcerr.OriginFetch(fmt.Sprintf("source exceeds %d byte limit", f.maxBytes), nil)
	}

	return data, resp.Header.Get("Content-Type"), nil
}
