/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

// Package service runs the long-lived parts of the gate (HTTP server, persister, sweeper)
// as units with a common start/stop lifecycle.
package service

// Unit is a component with its own lifecycle.
//
// Start may return right after initialization or block for the whole unit lifetime.
// A unit reports failure by writing a single error to fatalErr and must not touch the channel
// once Start has returned successfully. Stop may be called even if Start failed or was never called.
type Unit interface {
	Start(fatalErr chan<- error)
	Stop(gracefully bool) error
}

// MetricsRegisterer is implemented by units that own Prometheus collectors.
type MetricsRegisterer interface {
	MustRegisterMetrics()
	UnregisterMetrics()
}
