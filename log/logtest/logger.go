/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package logtest

import (
	"io"
	"os"
	"sync"

	"github.com/ssgreg/logf"

	"github.com/acronis/go-admitgate/log"
)

// LoggerOpts contains options for NewLoggerWithOpts.
type LoggerOpts struct {
	// Output is os.Stderr if nil.
	Output io.Writer
}

// NewLogger returns a debug-level logger that synchronously writes JSON lines to stderr.
// Slow, for tests only.
func NewLogger() log.FieldLogger {
	return NewLoggerWithOpts(LoggerOpts{})
}

// NewLoggerWithOpts is a more configurable version of NewLogger.
func NewLoggerWithOpts(opts LoggerOpts) log.FieldLogger {
	output := opts.Output
	if output == nil {
		output = os.Stderr
	}
	w := &syncWriter{
		encoder: logf.NewJSONEncoder(logf.JSONEncoderConfig{EncodeTime: logf.RFC3339NanoTimeEncoder, FieldKeyTime: "time"}),
		output:  output,
	}
	return &log.LogfAdapter{Logger: logf.NewLogger(logf.LevelDebug, w)}
}

type syncWriter struct {
	mu      sync.Mutex
	encoder logf.Encoder
	output  io.Writer
}

//nolint:gocritic // logf.EntryWriter signature
func (w *syncWriter) WriteEntry(e logf.Entry) {
	w.mu.Lock()
	defer w.mu.Unlock()
	var buf logf.Buffer
	if err := w.encoder.Encode(&buf, e); err != nil {
		_, _ = io.WriteString(w.output, err.Error())
		return
	}
	_, _ = w.output.Write(buf.Data)
}
