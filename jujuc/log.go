// Copyright 2024 Dwellir AB.
// See LICENSE file for licensing details.

package jujuc

import (
	"fmt"
	"io"

	"github.com/juju/loggo/v2"
)

// execModule is the logger of the package juju-log is run through.
// Its records are never forwarded, or a failing juju-log would log
// about itself forever.
const execModule = "juju.util.exec"

// LogWriter is a loggo.Writer that sends records to the controller with
// juju-log. Records juju-log refuses are written to Fallback.
type LogWriter struct {
	Context  Context
	Fallback io.Writer
}

// Write implements loggo.Writer.
func (w *LogWriter) Write(entry loggo.Entry) {
	message := fmt.Sprintf("%s: %s", entry.Module, entry.Message)
	if entry.Module == execModule {
		w.fallback("%s %s\n", entry.Level, message)
		return
	}
	if err := w.Context.Log(entry.Level, message); err != nil {
		w.fallback("%s %s %s\n", entry.Level, message, err)
	}
}

func (w *LogWriter) fallback(format string, args ...interface{}) {
	if w.Fallback != nil {
		fmt.Fprintf(w.Fallback, format, args...)
	}
}

// ForwardLogs replaces the default loggo writer with one forwarding to
// juju-log. The returned function restores the previous writer.
func ForwardLogs(ctx Context, fallback io.Writer) (func(), error) {
	previous, err := loggo.ReplaceDefaultWriter(&LogWriter{
		Context:  ctx,
		Fallback: fallback,
	})
	if err != nil {
		return nil, err
	}
	return func() {
		_, _ = loggo.ReplaceDefaultWriter(previous)
	}, nil
}
