/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package ratelimit

import "time"

// Evaluate applies one request arriving at now to the prior log of the stage.
// It returns the updated log (pruned to the stage window, with now appended)
// and whether the stage limit is exceeded.
// The comparison is strict: a log of exactly Limit entries, the current request included, is allowed.
func Evaluate(prior TimestampLog, now time.Time, stage Stage) (updated TimestampLog, exceeded bool) {
	updated = append(prior.Prune(now, stage.Window), now)
	return updated, len(updated) > stage.Limit
}
