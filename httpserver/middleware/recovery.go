/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package middleware

import (
	"fmt"
	"net/http"
	"runtime"

	"github.com/acronis/go-admitgate/log"
	"github.com/acronis/go-admitgate/restapi"
)

// RecoveryDefaultStackSize is how many bytes of the goroutine stack are logged by default.
const RecoveryDefaultStackSize = 8192

// RecoveryOpts represents an options for Recovery middleware.
type RecoveryOpts struct {
	// StackSize limits the logged stack. Zero disables stack logging.
	StackSize int
}

// Recovery turns a panic of the wrapped handler into a logged error and a 500 response in the restapi format.
// Panics inside the admission check never get here, the checker recovers them on its own and admits the request.
func Recovery(errDomain string) func(next http.Handler) http.Handler {
	return RecoveryWithOpts(errDomain, RecoveryOpts{StackSize: RecoveryDefaultStackSize})
}

// RecoveryWithOpts is a more configurable version of Recovery middleware.
func RecoveryWithOpts(errDomain string, opts RecoveryOpts) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
			defer func() {
				if p := recover(); p != nil {
					handlePanic(rw, r, p, errDomain, opts.StackSize)
				}
			}()
			next.ServeHTTP(rw, r)
		})
	}
}

func handlePanic(rw http.ResponseWriter, r *http.Request, p interface{}, errDomain string, stackSize int) {
	logger := GetLoggerFromContext(r.Context())

	// net/http treats ErrAbortHandler as a silent abort, so it is passed through.
	if p == http.ErrAbortHandler { //nolint:errorlint // sentinel panic value
		if logger != nil {
			logger.Warn("request has been aborted", log.Error(http.ErrAbortHandler))
		}
		panic(p)
	}

	if logger != nil {
		fields := []log.Field{log.String("method", r.Method), log.String("uri", r.RequestURI)}
		if stackSize > 0 {
			stack := make([]byte, stackSize)
			fields = append(fields, log.Bytes("stack", stack[:runtime.Stack(stack, false)]))
		}
		logger.Error(fmt.Sprintf("Panic: %+v", p), fields...)
	}
	restapi.RespondInternalError(rw, errDomain, logger)
}
