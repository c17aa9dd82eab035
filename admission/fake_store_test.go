/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package admission

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/acronis/go-admitgate/store"
	"github.com/acronis/go-admitgate/store/memstore"
)

var testTime = time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)

// recordingStore wraps memstore and counts operations. Its failures can be switched on.
type recordingStore struct {
	*memstore.MemStore

	logGets    atomic.Int32
	logPuts    atomic.Int32
	markerGets atomic.Int32
	markerPuts atomic.Int32

	mu          sync.Mutex
	getErr      error
	putErrs     []error // returned by subsequent Put calls, one per call
	panicOnGet  bool
	putTTLByKey map[string]time.Duration
}

func newRecordingStore(now *time.Time) *recordingStore {
	ms, err := memstore.New(memstore.Opts{NowFunc: func() time.Time { return *now }})
	if err != nil {
		panic(err)
	}
	return &recordingStore{MemStore: ms, putTTLByKey: make(map[string]time.Duration)}
}

func (s *recordingStore) Get(ctx context.Context, key string) (string, bool, error) {
	if strings.HasPrefix(key, batchMarkerKeyPrefix) {
		s.markerGets.Inc()
	} else {
		s.logGets.Inc()
	}
	s.mu.Lock()
	getErr, panicOnGet := s.getErr, s.panicOnGet
	s.mu.Unlock()
	if panicOnGet {
		panic("unexpected store state")
	}
	if getErr != nil {
		return "", false, getErr
	}
	return s.MemStore.Get(ctx, key)
}

func (s *recordingStore) Put(ctx context.Context, key string, value string, ttl time.Duration) error {
	if strings.HasPrefix(key, batchMarkerKeyPrefix) {
		s.markerPuts.Inc()
	} else {
		s.logPuts.Inc()
	}
	s.mu.Lock()
	var putErr error
	if len(s.putErrs) > 0 {
		putErr, s.putErrs = s.putErrs[0], s.putErrs[1:]
	}
	s.putTTLByKey[key] = ttl
	s.mu.Unlock()
	if putErr != nil {
		return putErr
	}
	return s.MemStore.Put(ctx, key, value, ttl)
}

func (s *recordingStore) setGetErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getErr = err
}

func (s *recordingStore) setPanicOnGet(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.panicOnGet = v
}

func (s *recordingStore) failNextPuts(errs ...error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putErrs = append(s.putErrs, errs...)
}

func (s *recordingStore) putTTL(key string) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.putTTLByKey[key]
}

func errStoreUnavailable() error {
	return fmt.Errorf("dial tcp: %w", store.ErrUnavailable)
}

var errStorePermanent = errors.New("value is too large")
