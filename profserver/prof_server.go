/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

// Package profserver provides a loopback HTTP server with pprof handlers and
// operator-only debug endpoints (e.g. the admission cache statistics).
package profserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/acronis/go-admitgate/httpserver/middleware"
	"github.com/acronis/go-admitgate/log"
	"github.com/acronis/go-admitgate/service"
)

const (
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 5 * time.Second
)

// ProfServer serves pprof and the debug handlers. It implements service.Unit.
type ProfServer struct {
	URL string

	srv    *http.Server
	done   chan struct{}
	logger log.FieldLogger
}

var _ service.Unit = (*ProfServer)(nil)

// Opts represents options for creating ProfServer.
type Opts struct {
	// DebugHandlers are mounted under /debug/<path> next to pprof.
	DebugHandlers map[string]http.Handler
}

// New creates a ProfServer listening on cfg.Address.
func New(cfg *Config, logger log.FieldLogger, opts Opts) *ProfServer {
	router := chi.NewRouter()
	router.Use(middleware.RequestID(), middleware.Logging(logger))
	for path, h := range opts.DebugHandlers {
		router.Method(http.MethodGet, "/debug/"+path, h)
	}
	// pprof goes last so the explicit debug routes take precedence over its catch-all.
	router.Mount("/debug", chimiddleware.Profiler())

	return &ProfServer{
		URL:    "http://" + cfg.Address,
		srv:    &http.Server{Addr: cfg.Address, Handler: router, ReadHeaderTimeout: readHeaderTimeout},
		done:   make(chan struct{}),
		logger: logger.With(log.String("address", cfg.Address)),
	}
}

// Start serves until Stop is called. A listen error is sent to fatalError.
func (s *ProfServer) Start(fatalError chan<- error) {
	defer close(s.done)

	s.logger.Info("starting profiling HTTP server...")
	err := s.srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		s.logger.Info("profiling HTTP server closed")
		return
	}
	s.logger.Error("profiling HTTP server error", log.Error(err))
	fatalError <- err
}

// Stop closes the server. With gracefully set, in-flight debug requests
// (a running CPU profile, for instance) get a few seconds to finish.
func (s *ProfServer) Stop(gracefully bool) error {
	s.logger.Info("closing profiling HTTP server...", log.Bool("gracefully", gracefully))
	var err error
	if gracefully {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		err = s.srv.Shutdown(ctx)
		cancel()
		if errors.Is(err, context.DeadlineExceeded) {
			err = s.srv.Close()
		}
	} else {
		err = s.srv.Close()
	}
	if err != nil {
		s.logger.Error("profiling HTTP server closing error", log.Error(err))
		return err
	}
	<-s.done
	return nil
}
