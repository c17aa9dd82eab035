/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package ratelimit

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrMalformedLog is returned by DecodeTimestampLog when persisted data cannot be parsed.
var ErrMalformedLog = errors.New("malformed timestamp log")

// TimestampLog is an ascending list of request arrival times for a single window key.
type TimestampLog []time.Time

// Prune returns the entries that are younger than window relative to now (now - ts < window).
// Entries from the future (e.g. written by an instance with a skewed clock) are kept.
// The receiver is not modified. Pruning an already pruned log returns an equal log.
func (l TimestampLog) Prune(now time.Time, window time.Duration) TimestampLog {
	res := make(TimestampLog, 0, len(l)+1)
	for _, ts := range l {
		if now.Sub(ts) < window {
			res = append(res, ts)
		}
	}
	return res
}

// Oldest returns the first (oldest) entry of the log. It returns zero time for an empty log.
func (l TimestampLog) Oldest() time.Time {
	if len(l) == 0 {
		return time.Time{}
	}
	return l[0]
}

// Encode serializes the log as a JSON array of Unix milliseconds.
func (l TimestampLog) Encode() (string, error) {
	millis := make([]int64, len(l))
	for i, ts := range l {
		millis[i] = ts.UnixMilli()
	}
	data, err := json.Marshal(millis)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// DecodeTimestampLog parses a log previously serialized by TimestampLog.Encode.
// An empty string is decoded as an empty log.
func DecodeTimestampLog(data string) (TimestampLog, error) {
	if data == "" {
		return TimestampLog{}, nil
	}
	var millis []int64
	if err := json.Unmarshal([]byte(data), &millis); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedLog, err)
	}
	res := make(TimestampLog, len(millis))
	for i, ms := range millis {
		res[i] = time.UnixMilli(ms)
	}
	return res, nil
}
