/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type SlidingLogTestSuite struct {
	suite.Suite
	now time.Time
}

func TestSlidingLog(t *testing.T) {
	suite.Run(t, new(SlidingLogTestSuite))
}

func (ts *SlidingLogTestSuite) SetupTest() {
	ts.now = time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)
}

func (ts *SlidingLogTestSuite) TestEvaluate_LimitIsStrict() {
	stage := Stage{Limit: 3, Window: time.Minute}

	var log TimestampLog
	var exceeded bool
	for i := 0; i < stage.Limit; i++ {
		log, exceeded = Evaluate(log, ts.now.Add(time.Duration(i)*time.Second), stage)
		ts.False(exceeded, "request #%d should be allowed", i+1)
	}
	ts.Len(log, 3)

	log, exceeded = Evaluate(log, ts.now.Add(10*time.Second), stage)
	ts.True(exceeded)
	ts.Len(log, 4)
}

func (ts *SlidingLogTestSuite) TestEvaluate_WindowSlides() {
	stage := Stage{Limit: 2, Window: time.Minute}

	log, _ := Evaluate(nil, ts.now, stage)
	log, _ = Evaluate(log, ts.now.Add(time.Second), stage)
	_, exceeded := Evaluate(log, ts.now.Add(2*time.Second), stage)
	ts.True(exceeded)

	// Both entries are exactly one window old or older, so they are pruned.
	log, exceeded = Evaluate(log, ts.now.Add(time.Minute+time.Second), stage)
	ts.False(exceeded)
	ts.Equal(TimestampLog{ts.now.Add(time.Minute + time.Second)}, log)
}

func (ts *SlidingLogTestSuite) TestEvaluate_DoesNotModifyPrior() {
	stage := Stage{Limit: 10, Window: time.Minute}
	prior := TimestampLog{ts.now.Add(-2 * time.Minute), ts.now.Add(-time.Second)}
	priorCopy := append(TimestampLog{}, prior...)

	updated, _ := Evaluate(prior, ts.now, stage)
	ts.Equal(priorCopy, prior)
	ts.Equal(TimestampLog{ts.now.Add(-time.Second), ts.now}, updated)
}

func (ts *SlidingLogTestSuite) TestPrune() {
	window := time.Minute
	log := TimestampLog{
		ts.now.Add(-2 * time.Minute),
		ts.now.Add(-time.Minute),
		ts.now.Add(-time.Minute + time.Millisecond),
		ts.now,
		ts.now.Add(time.Second),
	}

	pruned := log.Prune(ts.now, window)
	ts.Equal(TimestampLog{ts.now.Add(-time.Minute + time.Millisecond), ts.now, ts.now.Add(time.Second)}, pruned)

	ts.Equal(pruned, pruned.Prune(ts.now, window), "pruning a pruned log should be a no-op")
	ts.Empty(TimestampLog(nil).Prune(ts.now, window))
}

func (ts *SlidingLogTestSuite) TestEncodeDecode() {
	log := TimestampLog{time.UnixMilli(1741608000000), time.UnixMilli(1741608000250)}
	data, err := log.Encode()
	ts.Require().NoError(err)
	ts.Equal("[1741608000000,1741608000250]", data)

	decoded, err := DecodeTimestampLog(data)
	ts.Require().NoError(err)
	ts.Equal(log, decoded)

	decoded, err = DecodeTimestampLog("")
	ts.Require().NoError(err)
	ts.Empty(decoded)

	_, err = DecodeTimestampLog(`{"not":"a list"}`)
	ts.ErrorIs(err, ErrMalformedLog)
	_, err = DecodeTimestampLog(`[1, "x"]`)
	ts.ErrorIs(err, ErrMalformedLog)
}

func (ts *SlidingLogTestSuite) TestOldest() {
	ts.True(TimestampLog{}.Oldest().IsZero())
	ts.Equal(ts.now, TimestampLog{ts.now, ts.now.Add(time.Second)}.Oldest())
}
