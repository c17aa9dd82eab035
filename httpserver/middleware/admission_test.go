/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"

	"github.com/acronis/go-admitgate/admission"
	"github.com/acronis/go-admitgate/log"
	"github.com/acronis/go-admitgate/log/logtest"
	"github.com/acronis/go-admitgate/testutil"
)

const testErrDomain = "AdmitGate"

var testNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

type checkerFunc func(ctx context.Context, identity string, now time.Time) admission.Decision

func (f checkerFunc) Check(ctx context.Context, identity string, now time.Time) admission.Decision {
	return f(ctx, identity, now)
}

func newTestChecker(t *testing.T, stages admission.Stages) *admission.Checker {
	t.Helper()
	checker, err := admission.NewChecker(stages, logtest.NewLogger(), admission.CheckerOpts{})
	require.NoError(t, err)
	return checker
}

func makeCountingNext() (http.Handler, *atomic.Int32) {
	served := atomic.NewInt32(0)
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		served.Inc()
		rw.WriteHeader(http.StatusOK)
	}), served
}

func sendRequest(handler http.Handler, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	return resp
}

func TestAdmissionHandler_ServeHTTP(t *testing.T) {
	t.Run("limit exceeded, 429 with retry hint", func(t *testing.T) {
		next, served := makeCountingNext()
		checker := newTestChecker(t, admission.Stages{{Limit: 2, Window: time.Minute}, {Limit: 10, Window: 90 * time.Second}})
		handler := AdmissionWithOpts(checker, testErrDomain, AdmissionOpts{
			NowFunc:    func() time.Time { return testNow },
			InstanceID: "instance-1",
		})(next)
		headers := map[string]string{"X-Forwarded-For": "203.0.113.7"}

		require.Equal(t, http.StatusOK, sendRequest(handler, headers).Code)
		require.Equal(t, http.StatusOK, sendRequest(handler, headers).Code)

		resp := sendRequest(handler, headers)
		apiErr := testutil.RequireErrorInRecorder(t, resp, http.StatusTooManyRequests, testErrDomain, AdmissionErrCode)
		require.Equal(t, "60", resp.Header().Get("Retry-After"))
		require.Equal(t, "Rate limit exceeded: 2 requests per 60 seconds", apiErr.Message)
		require.Equal(t, map[string]interface{}{"retryAfter": float64(60), "limit": float64(2), "window": float64(60)}, apiErr.Context)
		require.Equal(t, "instance-1", apiErr.Debug["instance"])
		require.Equal(t, int32(2), served.Load())

		// Other clients have their own windows.
		require.Equal(t, http.StatusOK, sendRequest(handler, map[string]string{"X-Forwarded-For": "203.0.113.8"}).Code)
		require.Equal(t, int32(3), served.Load())
	})

	t.Run("requests are admitted again after the window slides", func(t *testing.T) {
		next, served := makeCountingNext()
		checker := newTestChecker(t, admission.Stages{{Limit: 1, Window: time.Minute}})
		now := testNow
		handler := AdmissionWithOpts(checker, testErrDomain, AdmissionOpts{NowFunc: func() time.Time { return now }})(next)

		require.Equal(t, http.StatusOK, sendRequest(handler, nil).Code)
		require.Equal(t, http.StatusTooManyRequests, sendRequest(handler, nil).Code)
		now = now.Add(30 * time.Second)
		require.Equal(t, http.StatusTooManyRequests, sendRequest(handler, nil).Code)
		now = now.Add(time.Minute)
		require.Equal(t, http.StatusOK, sendRequest(handler, nil).Code)
		require.Equal(t, int32(2), served.Load())
	})

	t.Run("bypassed identities are not counted", func(t *testing.T) {
		next, served := makeCountingNext()
		var checked atomic.Int32
		checker := checkerFunc(func(ctx context.Context, identity string, now time.Time) admission.Decision {
			checked.Inc()
			return admission.Decision{Blocked: true, ViolatedStage: admission.Stage{Limit: 1, Window: time.Second}}
		})
		handler := AdmissionWithOpts(checker, testErrDomain, AdmissionOpts{
			BypassIdentities: []string{"10.0.*", "*.internal"},
		})(next)

		require.Equal(t, http.StatusOK, sendRequest(handler, map[string]string{"X-Real-IP": "10.0.3.4"}).Code)
		require.Equal(t, http.StatusOK, sendRequest(handler, map[string]string{"X-Real-IP": "monitor.internal"}).Code)
		require.Equal(t, int32(0), checked.Load())
		require.Equal(t, http.StatusTooManyRequests, sendRequest(handler, map[string]string{"X-Real-IP": "10.1.3.4"}).Code)
		require.Equal(t, int32(1), checked.Load())
		require.Equal(t, int32(2), served.Load())
	})

	t.Run("dry run", func(t *testing.T) {
		next, served := makeCountingNext()
		checker := checkerFunc(func(ctx context.Context, identity string, now time.Time) admission.Decision {
			return admission.Decision{Blocked: true, ViolatedStage: admission.Stage{Limit: 5, Window: time.Minute}}
		})
		handler := AdmissionWithOpts(checker, testErrDomain, AdmissionOpts{DryRun: true})(next)

		logger := logtest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("CF-Connecting-IP", "198.51.100.1")
		req = req.WithContext(NewContextWithLogger(req.Context(), logger))
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)

		require.Equal(t, http.StatusOK, resp.Code)
		require.Equal(t, int32(1), served.Load())
		entry, found := logger.FindEntry("rate limit exceeded, serving will be continued because of dry run mode")
		require.True(t, found)
		require.Equal(t, log.LevelWarn, entry.Level)
		identityField, found := entry.FindField(AdmissionIdentityLogFieldKey)
		require.True(t, found)
		require.Equal(t, "198.51.100.1", string(identityField.Bytes))
	})

	t.Run("custom identity and reject func", func(t *testing.T) {
		next, served := makeCountingNext()
		var gotIdentity string
		checker := checkerFunc(func(ctx context.Context, identity string, now time.Time) admission.Decision {
			gotIdentity = identity
			return admission.Decision{Blocked: true, ViolatedStage: admission.Stage{Limit: 5, Window: time.Minute}}
		})
		handler := AdmissionWithOpts(checker, testErrDomain, AdmissionOpts{
			GetIdentity: func(r *http.Request) string { return r.Header.Get("X-Api-Key") },
			OnReject: func(rw http.ResponseWriter, r *http.Request, params AdmissionParams, next http.Handler, logger log.FieldLogger) {
				rw.WriteHeader(http.StatusServiceUnavailable)
			},
		})(next)

		resp := sendRequest(handler, map[string]string{"X-Api-Key": "key-1"})
		require.Equal(t, http.StatusServiceUnavailable, resp.Code)
		require.Equal(t, "key-1", gotIdentity)
		require.Equal(t, int32(0), served.Load())
	})

	t.Run("identity is available for next handlers", func(t *testing.T) {
		var gotIdentity string
		next := http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
			gotIdentity = GetClientIdentityFromContext(r.Context())
		})
		checker := checkerFunc(func(context.Context, string, time.Time) admission.Decision { return admission.Decision{} })
		sendRequest(Admission(checker, testErrDomain)(next), nil)
		require.Equal(t, UnknownClientIdentity, gotIdentity)
	})
}
