/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package ratelimit

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrDuplicateWindow is returned by Stages.Validate when two stages share the same window duration.
// Window keys are derived from the identity and the window only, so such stages would share one log.
var ErrDuplicateWindow = errors.New("duplicate stage window")

// Stage describes a single sliding-window limit: no more than Limit requests within Window.
type Stage struct {
	Limit  int
	Window time.Duration
}

// String returns a human-readable representation of the stage (e.g. "5 per 1m0s").
func (s Stage) String() string {
	return fmt.Sprintf("%d per %s", s.Limit, s.Window)
}

// Validate checks that the stage has a positive limit and a positive window.
func (s Stage) Validate() error {
	if s.Limit < 1 {
		return fmt.Errorf("limit should be >= 1, got %d", s.Limit)
	}
	if s.Window <= 0 {
		return fmt.Errorf("window should be > 0, got %s", s.Window)
	}
	return nil
}

// Stages is an ordered table of stages. Stages are evaluated in the table order,
// the shortest (strictest) window conventionally goes first.
type Stages []Stage

// DefaultStages returns the default stage table: 5 requests per minute, 20 per 5 minutes and 100 per hour.
func DefaultStages() Stages {
	return Stages{
		{Limit: 5, Window: time.Minute},
		{Limit: 20, Window: 5 * time.Minute},
		{Limit: 100, Window: time.Hour},
	}
}

// Validate checks every stage and that window durations are pairwise distinct.
func (ss Stages) Validate() error {
	if len(ss) == 0 {
		return fmt.Errorf("at least one stage should be specified")
	}
	seen := make(map[time.Duration]int, len(ss))
	for i, s := range ss {
		if err := s.Validate(); err != nil {
			return fmt.Errorf("stage #%d: %w", i+1, err)
		}
		if j, ok := seen[s.Window]; ok {
			return fmt.Errorf("stages #%d and #%d: %w %s", j+1, i+1, ErrDuplicateWindow, s.Window)
		}
		seen[s.Window] = i
	}
	return nil
}

// String returns stages joined by a comma (e.g. "5 per 1m0s, 20 per 5m0s").
func (ss Stages) String() string {
	parts := make([]string, 0, len(ss))
	for _, s := range ss {
		parts = append(parts, s.String())
	}
	return strings.Join(parts, ", ")
}
