/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package middleware

import (
	"net/http"
	"strings"
)

// UnknownClientIdentity is used when no client address could be found in the request headers.
// All such requests share one set of windows.
const UnknownClientIdentity = "unknown"

const (
	headerForwardedFor   = "X-Forwarded-For"
	headerCFConnectingIP = "CF-Connecting-IP"
	headerRealIP         = "X-Real-IP"
)

// GetClientIdentityFunc is a function that is called for resolving the identity a request is admitted under.
type GetClientIdentityFunc func(r *http.Request) string

// GetClientIdentity resolves the client address from the proxy headers.
// The first hop of X-Forwarded-For wins, then CF-Connecting-IP, then X-Real-IP.
// The connection address is not used: the service is expected to run behind a proxy.
func GetClientIdentity(r *http.Request) string {
	if forwardedFor := r.Header.Get(headerForwardedFor); forwardedFor != "" {
		first := forwardedFor
		if i := strings.IndexByte(forwardedFor, ','); i != -1 {
			first = forwardedFor[:i]
		}
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	for _, header := range []string{headerCFConnectingIP, headerRealIP} {
		if v := strings.TrimSpace(r.Header.Get(header)); v != "" {
			return v
		}
	}
	return UnknownClientIdentity
}
