// Package httpx holds outbound HTTP helpers shared by the bridge and the
// kiosk client.
package httpx

import (
	"net/http"
	"sync"
)

const (
	HeaderSource   = "X-Source"
	HeaderUserID   = "X-User-ID"
	HeaderUserRole = "X-User-Role"
	HeaderDeviceID = "X-Device-ID"
)

// HeaderInjector is an http.RoundTripper that stamps identifying headers on
// every outbound request. A header the caller already set is left alone.
// The user headers are updated as sessions start and end.
type HeaderInjector struct {
	next http.RoundTripper

	mu     sync.RWMutex
	static http.Header
	userID string
	role   string
}

// NewHeaderInjector wraps next (http.DefaultTransport when nil). source and
// deviceID are sent on every request when non-empty.
func NewHeaderInjector(next http.RoundTripper, source, deviceID string) *HeaderInjector {
	if next == nil {
		next = http.DefaultTransport
	}
	static := http.Header{}
	if source != "" {
		static.Set(HeaderSource, source)
	}
	if deviceID != "" {
		static.Set(HeaderDeviceID, deviceID)
	}
	return &HeaderInjector{next: next, static: static}
}

// SetUser records the signed-in user. Empty values clear the headers.
func (h *HeaderInjector) SetUser(id, role string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.userID = id
	h.role = role
}

func (h *HeaderInjector) RoundTrip(req *http.Request) (*http.Response, error) {
	h.mu.RLock()
	add := h.static.Clone()
	if h.userID != "" {
		add.Set(HeaderUserID, h.userID)
	}
	if h.role != "" {
		add.Set(HeaderUserRole, h.role)
	}
	h.mu.RUnlock()

	missing := false
	for k := range add {
		if req.Header.Get(k) == "" {
			missing = true
			break
		}
	}
	if !missing {
		return h.next.RoundTrip(req)
	}

	out := req.Clone(req.Context())
	for k, v := range add {
		if out.Header.Get(k) == "" {
			out.Header[k] = v
		}
	}
	return h.next.RoundTrip(out)
}

// Client returns an http.Client that sends through h.
func (h *HeaderInjector) Client() *http.Client {
	return &http.Client{Transport: h}
}
