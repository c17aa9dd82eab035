/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package ratelimit contains the storage-agnostic part of the multi-stage sliding-window limiting.
//
// A Stage is a pair of a request limit and a window duration. Requests of a single client
// within a Stage are tracked as a TimestampLog: an ascending list of arrival times.
// Evaluate prunes the log to the trailing window, appends the current request
// and reports whether the limit is exceeded. It never touches any storage,
// so callers decide where the log comes from and where it goes.
package ratelimit
