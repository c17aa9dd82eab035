/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package testutil

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

type mockT struct {
	failed bool
}

func (t *mockT) FailNow() {
	t.failed = true
}

func (t *mockT) Errorf(string, ...interface{}) {
	t.failed = true
}

func TestRequireErrorInRecorder(t *testing.T) {
	rec := httptest.NewRecorder()
	rec.Header().Set("Content-Type", contentTypeAppJSON)
	rec.WriteHeader(http.StatusTooManyRequests)
	_, _ = rec.WriteString(`{"error":{"domain":"Gate","code":"tooManyRequests","context":{"limit":5}}}`)

	got := RequireErrorInRecorder(t, rec, http.StatusTooManyRequests, "Gate", "tooManyRequests")
	require.Equal(t, float64(5), got.Context["limit"])

	rec = httptest.NewRecorder()
	rec.WriteHeader(http.StatusOK)
	mt := &mockT{}
	RequireErrorInRecorder(mt, rec, http.StatusTooManyRequests, "Gate", "tooManyRequests")
	require.True(t, mt.failed)
}

func TestRequireEmptyBodyInRecorder(t *testing.T) {
	rec := httptest.NewRecorder()
	rec.WriteHeader(http.StatusNoContent)
	RequireEmptyBodyInRecorder(t, rec)
}
