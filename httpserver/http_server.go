/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/atomic"

	"github.com/acronis/go-admitgate/log"
	"github.com/acronis/go-admitgate/service"
)

// systemEndpoints are served without admission and are not logged by default.
var systemEndpoints = []string{"/metrics", "/healthz"}

// Opts represents options for creating HTTPServer.
type Opts struct {
	// ErrorDomain is used for error response formatting.
	ErrorDomain string
	// HealthCheck is a function that performs health check logic.
	HealthCheck HealthCheck
	// MetricsHandler is a custom handler for the /metrics endpoint. promhttp.Handler() is used by default.
	MetricsHandler http.Handler
	// Admission wraps the application routes (usually middleware.AdmissionWithOpts).
	Admission func(next http.Handler) http.Handler
	// Routes registers the application routes.
	Routes func(router chi.Router)
	// Listener is a pre-configured network listener to use instead of creating a new one.
	Listener net.Listener
}

// HTTPServer is the public server of the service: http.Server with a chi.Router behind it.
// It implements service.Unit interface.
type HTTPServer struct {
	URL             string
	HTTPServer      *http.Server
	HTTPRouter      chi.Router
	Logger          log.FieldLogger
	ShutdownTimeout time.Duration

	listener net.Listener
	port     atomic.Int32
	started  atomic.Bool
	done     chan struct{}
}

var _ service.Unit = (*HTTPServer)(nil)

// New creates a new HTTPServer with request id, logging, panic recovery,
// /healthz and /metrics. Application routes are served behind opts.Admission.
func New(cfg *Config, logger log.FieldLogger, opts Opts) *HTTPServer { //nolint:gocritic // hugeParam: opts is heavy, it's ok in this case.
	router := chi.NewRouter()
	applyDefaultMiddlewaresToRouter(router, cfg, logger, opts.ErrorDomain)
	configureRouter(router, logger, RouterOpts{
		ErrorDomain:    opts.ErrorDomain,
		HealthCheck:    opts.HealthCheck,
		MetricsHandler: opts.MetricsHandler,
		Admission:      opts.Admission,
		Routes:         opts.Routes,
	})

	srv := &http.Server{
		Addr:              cfg.Address,
		Handler:           router,
		WriteTimeout:      time.Duration(cfg.Timeouts.Write),
		ReadTimeout:       time.Duration(cfg.Timeouts.Read),
		ReadHeaderTimeout: time.Duration(cfg.Timeouts.ReadHeader),
		IdleTimeout:       time.Duration(cfg.Timeouts.Idle),
	}
	return &HTTPServer{
		URL:             "http://" + cfg.Address,
		HTTPServer:      srv,
		HTTPRouter:      router,
		Logger:          logger.With(log.String("address", cfg.Address)),
		ShutdownTimeout: time.Duration(cfg.Timeouts.Shutdown),
		listener:        opts.Listener,
		done:            make(chan struct{}),
	}
}

// Start serves requests until Stop is called. It blocks, so it's run in a separate goroutine.
// Listen and serve errors are sent to fatalError.
func (s *HTTPServer) Start(fatalError chan<- error) {
	s.started.Store(true)
	defer close(s.done)

	s.Logger.Info("starting application HTTP server...",
		log.Duration("write_timeout", s.HTTPServer.WriteTimeout),
		log.Duration("read_timeout", s.HTTPServer.ReadTimeout),
		log.Duration("read_header_timeout", s.HTTPServer.ReadHeaderTimeout),
		log.Duration("idle_timeout", s.HTTPServer.IdleTimeout),
		log.Duration("shutdown_timeout", s.ShutdownTimeout),
	)

	ln, err := s.listen()
	if err == nil {
		err = s.HTTPServer.Serve(ln)
	}
	if errors.Is(err, http.ErrServerClosed) {
		s.Logger.Info("application HTTP server closed")
		return
	}
	s.Logger.Error("application HTTP server error", log.Error(err))
	fatalError <- err
}

func (s *HTTPServer) listen() (net.Listener, error) {
	ln := s.listener
	if ln == nil {
		var err error
		if ln, err = net.Listen("tcp", s.HTTPServer.Addr); err != nil {
			return nil, err
		}
	}
	if tcpAddr, ok := ln.Addr().(*net.TCPAddr); ok {
		s.port.Store(int32(tcpAddr.Port))
	}
	return ln, nil
}

// Stop closes the server. With gracefully set, in-flight requests get ShutdownTimeout to complete.
func (s *HTTPServer) Stop(gracefully bool) error {
	if err := s.stop(gracefully); err != nil {
		return err
	}
	if s.started.Load() {
		<-s.done
	}
	return nil
}

func (s *HTTPServer) stop(gracefully bool) error {
	if !gracefully {
		s.Logger.Info("closing application HTTP server...")
		if err := s.HTTPServer.Close(); err != nil {
			s.Logger.Error("application HTTP server closing error", log.Error(err))
			return err
		}
		return nil
	}

	s.Logger.Info("shutting down application HTTP server...", log.Duration("timeout", s.ShutdownTimeout))
	ctx, cancel := context.WithTimeout(context.Background(), s.ShutdownTimeout)
	defer cancel()
	if err := s.HTTPServer.Shutdown(ctx); err != nil {
		s.Logger.Error("application HTTP server shutting down error", log.Error(err))
		return fmt.Errorf("shut down HTTP server: %w", err)
	}
	s.Logger.Info("application HTTP server shut down")
	return nil
}

// GetPort returns the port the server listens on. It's 0 until the server is started.
func (s *HTTPServer) GetPort() int {
	return int(s.port.Load())
}

// BaseURL returns the URL with the actual listening port, useful when the address has port 0.
func (s *HTTPServer) BaseURL() string {
	host, _, err := net.SplitHostPort(s.HTTPServer.Addr)
	if err != nil || host == "" {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, strconv.Itoa(s.GetPort()))
}
