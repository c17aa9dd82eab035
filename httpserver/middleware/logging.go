/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package middleware

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/acronis/go-admitgate/log"
)

// LoggingOpts represents an options for Logging middleware.
type LoggingOpts struct {
	// ExcludedEndpoints are not logged unless the response status is >= 400 (e.g. "/healthz", "/metrics").
	ExcludedEndpoints []string
}

// LoggingParams stores fields that inner middlewares and handlers want to see in the final "response completed" message.
type LoggingParams struct {
	mu     sync.Mutex
	fields []log.Field
}

// ExtendFields adds fields to the final log message.
func (lp *LoggingParams) ExtendFields(fields ...log.Field) {
	lp.mu.Lock()
	lp.fields = append(lp.fields, fields...)
	lp.mu.Unlock()
}

func (lp *LoggingParams) getFields() []log.Field {
	lp.mu.Lock()
	defer lp.mu.Unlock()
	return append([]log.Field(nil), lp.fields...)
}

type loggingHandler struct {
	next   http.Handler
	logger log.FieldLogger
	opts   LoggingOpts
}

// Logging is a middleware that logs info about HTTP request and response.
// Also, it puts logger (with request id in fields) into request's context,
// so the admission middleware and the handlers log with the same fields.
func Logging(logger log.FieldLogger) func(next http.Handler) http.Handler {
	return LoggingWithOpts(logger, LoggingOpts{})
}

// LoggingWithOpts is a more configurable version of Logging middleware.
func LoggingWithOpts(logger log.FieldLogger, opts LoggingOpts) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return &loggingHandler{next: next, logger: logger, opts: opts}
	}
}

func (h *loggingHandler) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	startTime := GetRequestStartTimeFromContext(ctx)
	if startTime.IsZero() {
		startTime = time.Now()
		ctx = NewContextWithRequestStartTime(ctx, startTime)
	}

	logger := h.logger.With(
		log.String("request_id", GetRequestIDFromContext(ctx)),
		log.String("method", r.Method),
		log.String("uri", r.RequestURI),
		log.String("remote_addr", r.RemoteAddr),
		log.String("user_agent", r.UserAgent()),
	)

	wrw := chimw.NewWrapResponseWriter(rw, r.ProtoMajor)
	lp := &LoggingParams{}
	r = r.WithContext(NewContextWithLoggingParams(NewContextWithLogger(ctx, logger), lp))
	h.next.ServeHTTP(wrw, r)

	status := wrw.Status()
	if status == 0 {
		status = http.StatusOK
	}
	if status < http.StatusBadRequest && h.isExcluded(r.URL.Path) {
		return
	}

	duration := time.Since(startTime)
	fields := []log.Field{
		log.Int64("duration_ms", duration.Milliseconds()),
		log.Int("status", status),
		log.Int("bytes_sent", wrw.BytesWritten()),
	}
	logger.Info(fmt.Sprintf("response completed in %.3fs", duration.Seconds()), append(fields, lp.getFields()...)...)
}

func (h *loggingHandler) isExcluded(urlPath string) bool {
	for _, endpoint := range h.opts.ExcludedEndpoints {
		if urlPath == endpoint {
			return true
		}
	}
	return false
}
