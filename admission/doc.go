/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package admission decides whether a request from a client identity should be admitted
// according to a table of sliding-window stages (e.g. 5 requests per minute, 20 per 5 minutes
// and 100 per hour).
//
// Each (identity, window) pair has a log of request arrival times. Logs live in a process-local
// cache and are persisted in the background to a durable store.Store shared by all instances.
// A fresh cache entry (younger than the cache TTL) is trusted, otherwise the log is read from the store.
// Persisting every request would be expensive, so writes are suppressed unless the log is close
// to the limit or no write happened for the same identity and window in the current minute
// (a batch marker is kept in the store for that).
//
// The Checker never fails: any problem with the store, malformed persisted data or
// even an internal panic results in the request being admitted. Stages are evaluated in order
// and evaluation stops at the first exceeded stage, so looser stages that come after it
// do not record the blocked request.
package admission
