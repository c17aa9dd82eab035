/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package admission

import (
	"hash/fnv"
	"strconv"
	"time"
)

const (
	windowKeyPrefix      = "rate_limit:"
	batchMarkerKeyPrefix = "batch:"
	batchMarkerValue     = "1"
)

// windowKey returns a key of the log for the identity and the window.
// Stage limit is not a part of the key, so stages must have distinct windows.
func windowKey(identity string, window time.Duration) string {
	return windowKeyPrefix + identity + ":" + strconv.FormatInt(window.Milliseconds(), 10)
}

// batchMarkerKey returns a key of the batch marker for the identity, the window and the minute bucket of now.
func batchMarkerKey(identity string, window time.Duration, now time.Time) string {
	minuteBucket := now.UnixMilli() / time.Minute.Milliseconds()
	return batchMarkerKeyPrefix + identity + ":" + strconv.FormatInt(minuteBucket, 10) + ":" +
		strconv.FormatInt(window.Milliseconds(), 10)
}

// persistTTL returns the expiration of the persisted log: the window rounded up to whole seconds.
func persistTTL(window time.Duration) time.Duration {
	secs := (window + time.Second - 1) / time.Second
	return secs * time.Second
}

func stripeIndex(key string, stripes int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(stripes))
}
