/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package httpserver

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/acronis/go-admitgate/httpserver/middleware"
	"github.com/acronis/go-admitgate/log"
	"github.com/acronis/go-admitgate/restapi"
)

// RouterOpts represents options for creating chi.Router.
type RouterOpts struct {
	ErrorDomain    string
	HealthCheck    HealthCheck
	MetricsHandler http.Handler

	// Admission wraps the application routes. System endpoints (/metrics, /healthz) are never admitted.
	Admission func(next http.Handler) http.Handler

	// Routes registers the application routes.
	Routes func(router chi.Router)
}

// NewRouter creates a new chi.Router and performs its basic configuration.
func NewRouter(logger log.FieldLogger, opts RouterOpts) chi.Router {
	router := chi.NewRouter()
	configureRouter(router, logger, opts)
	return router
}

func configureRouter(router chi.Router, logger log.FieldLogger, opts RouterOpts) {
	metricsHandler := opts.MetricsHandler
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}
	router.Method(http.MethodGet, "/metrics", metricsHandler)
	router.Method(http.MethodGet, "/healthz", NewHealthCheckHandler(opts.HealthCheck))

	router.Group(func(router chi.Router) {
		if opts.Admission != nil {
			router.Use(opts.Admission)
		}
		if opts.Routes != nil {
			opts.Routes(router)
		}
	})

	router.NotFound(func(rw http.ResponseWriter, r *http.Request) {
		apiErr := restapi.NewError(opts.ErrorDomain, restapi.ErrCodeNotFound, restapi.ErrMessageNotFound)
		restapi.RespondError(rw, http.StatusNotFound, apiErr, loggerFromRequest(r, logger))
	})

	router.MethodNotAllowed(func(rw http.ResponseWriter, r *http.Request) {
		apiErr := restapi.NewError(opts.ErrorDomain, restapi.ErrCodeMethodNotAllowed, restapi.ErrMessageMethodNotAllowed)
		restapi.RespondError(rw, http.StatusMethodNotAllowed, apiErr, loggerFromRequest(r, logger))
	})
}

func applyDefaultMiddlewaresToRouter(router chi.Router, cfg *Config, logger log.FieldLogger, errDomain string) {
	router.Use(func(handler http.Handler) http.Handler {
		return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
			handler.ServeHTTP(rw, r.WithContext(middleware.NewContextWithRequestStartTime(r.Context(), time.Now())))
		})
	})
	router.Use(middleware.RequestID())
	router.Use(middleware.LoggingWithOpts(logger, middleware.LoggingOpts{ExcludedEndpoints: cfg.Log.ExcludedEndpoints}))
	router.Use(middleware.Recovery(errDomain))
}

func loggerFromRequest(r *http.Request, fallback log.FieldLogger) log.FieldLogger {
	if logger := middleware.GetLoggerFromContext(r.Context()); logger != nil {
		return logger
	}
	return fallback
}
