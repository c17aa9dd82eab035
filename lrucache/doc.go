/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package lrucache provides a bounded in-memory cache with LRU eviction, optional per-entry TTL,
// age-based sweeping and Prometheus metrics.
//
// Every entry remembers when it was stored. The time source is injectable (see Options.NowFunc),
// so the age of entries can be controlled in tests. All methods are safe for concurrent use:
// a single mutex guards the map and the recency list, and a sweep holds it for the duration
// of one pass over the entries.
package lrucache
