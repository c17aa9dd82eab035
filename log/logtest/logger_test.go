/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package logtest

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/acronis/go-admitgate/log"
)

func TestNewLoggerWithOpts(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithOpts(LoggerOpts{Output: &buf})

	logger.With(log.String("key", "rate_limit:A:60000")).Error("put log failed", log.Error(errors.New("timeout")))

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "error", entry["level"])
	require.Equal(t, "put log failed", entry["msg"])
	require.Equal(t, "rate_limit:A:60000", entry["key"])
	require.Equal(t, "timeout", entry["error"])
	require.Contains(t, entry, "time")
}
