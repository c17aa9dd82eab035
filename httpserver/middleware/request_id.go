/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package middleware

import (
	"net/http"

	"github.com/rs/xid"
)

const headerRequestID = "X-Request-ID"

// RequestIDMaxLen bounds the length of a client-supplied X-Request-ID. Longer ids are replaced.
const RequestIDMaxLen = 128

// RequestIDOpts represents an options for RequestID middleware.
type RequestIDOpts struct {
	// GenerateID makes an id for requests that come without one. xid is used by default.
	GenerateID func() string
}

// RequestID makes sure every request has an id.
// The id comes from X-Request-ID or is generated, then it is stored in the request context
// and echoed in the X-Request-ID response header.
func RequestID() func(next http.Handler) http.Handler {
	return RequestIDWithOpts(RequestIDOpts{})
}

// RequestIDWithOpts is a more configurable version of RequestID middleware.
func RequestIDWithOpts(opts RequestIDOpts) func(next http.Handler) http.Handler {
	generate := opts.GenerateID
	if generate == nil {
		generate = func() string { return xid.New().String() }
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(headerRequestID)
			if id == "" || len(id) > RequestIDMaxLen {
				id = generate()
			}
			rw.Header().Set(headerRequestID, id)
			next.ServeHTTP(rw, r.WithContext(NewContextWithRequestID(r.Context(), id)))
		})
	}
}
