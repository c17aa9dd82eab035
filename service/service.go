/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package service

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/acronis/go-admitgate/log"
)

// DefaultShutdownSignals stop a Service created by New.
var DefaultShutdownSignals = []os.Signal{syscall.SIGINT, syscall.SIGTERM}

// Opts represents an options for Service.
type Opts struct {
	ShutdownSignals []os.Signal
}

// Service runs a unit until a shutdown signal, a context cancellation or a fatal unit error.
// Metrics of the unit are registered for the service lifetime.
type Service struct {
	Unit    Unit
	Signals chan os.Signal
	Logger  log.FieldLogger
	Opts    Opts
}

// New creates a Service stopped by DefaultShutdownSignals.
func New(logger log.FieldLogger, unit Unit) *Service {
	return NewWithOpts(logger, unit, Opts{ShutdownSignals: DefaultShutdownSignals})
}

// NewWithOpts is a more configurable version of New.
func NewWithOpts(logger log.FieldLogger, unit Unit, opts Opts) *Service {
	return &Service{Unit: unit, Signals: make(chan os.Signal, 1), Logger: logger, Opts: opts}
}

// Start is StartContext with the background context.
func (s *Service) Start() error {
	return s.StartContext(context.Background())
}

// StartContext runs the unit and blocks until it has to be stopped.
// After a fatal unit error the unit is not stopped, the error is returned wrapped.
func (s *Service) StartContext(ctx context.Context) error {
	if mr, ok := s.Unit.(MetricsRegisterer); ok {
		mr.MustRegisterMetrics()
		defer mr.UnregisterMetrics()
	}

	signal.Notify(s.Signals, s.Opts.ShutdownSignals...)
	defer signal.Stop(s.Signals)

	fatalErr := make(chan error, 1)
	go s.Unit.Start(fatalErr)

	if err := s.wait(ctx, fatalErr); err != nil {
		return err
	}
	if err := s.Unit.Stop(true); err != nil {
		return fmt.Errorf("stop service gracefully: %w", err)
	}
	return nil
}

func (s *Service) wait(ctx context.Context, fatalErr <-chan error) error {
	select {
	case err := <-fatalErr:
		s.Logger.Error("service fatal error", log.Error(err))
		return fmt.Errorf("fatal error: %w", err)
	case <-ctx.Done():
		s.Logger.Info("context is canceled, service will be stopped")
	case sig := <-s.Signals:
		s.Logger.Info("service got signal", log.String("signal", sig.String()))
	}
	return nil
}
