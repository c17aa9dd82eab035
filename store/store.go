/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package store defines the contract of the durable key-value storage shared by all admission instances.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable is returned (usually wrapped) when the storage cannot be reached or did not answer in time.
var ErrUnavailable = errors.New("store unavailable")

// Store is a durable key-value storage with per-key expiration.
// Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the value stored by the key. found is false if the key is absent or expired.
	Get(ctx context.Context, key string) (value string, found bool, err error)

	// Put stores the value by the key. The value expires after ttl. Zero ttl means no expiration.
	Put(ctx context.Context, key string, value string, ttl time.Duration) error
}
