// Package logx wires the structured logger used across the streaming core.
package logx

import (
	"io"
	"os"
	"strings"

	"github.com/hashicorp/go-hclog"
)

// Logger is the structured logging surface every component depends on.
// It mirrors the key-value vocabulary the rest of the codebase is built
// against: a message followed by alternating key/value pairs.
type Logger = hclog.Logger

// Options controls how the root logger is constructed.
type Options struct {
	Name   string
	Level  string // debug, info, warn, error
	JSON   bool
	Output io.Writer
}

// New builds a named root logger. Call .With(...) on the result to attach
// request-scoped fields such as sessionId, sceneId, and quality.
func New(opts Options) Logger {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	level := hclog.LevelFromString(strings.ToUpper(opts.Level))
	if level == hclog.NoLevel {
		level = hclog.Info
	}
	return hclog.New(&hclog.LoggerOptions{
		Name:       opts.Name,
		Level:      level,
		Output:     out,
		JSONFormat: opts.JSON,
	})
}

// Session returns a child logger with the session-identifying fields
// attached, per the concurrency model's logging policy: every log line
// tied to a session carries sessionId, sceneId, and quality.
func Session(base Logger, sessionID, sceneID, quality string) Logger {
	return base.With("sessionId", sessionID, "sceneId", sceneID, "quality", quality)
}

// LineWriter adapts an io.Writer to split incoming bytes on newlines and
// forward each complete line to the logger at debug level. It is used to
// capture a transcoder subprocess's stdout/stderr without blocking on
// partial writes.
type LineWriter struct {
	logger Logger
	prefix string
	buf    []byte
}

// NewLineWriter constructs a LineWriter that logs complete lines under the
// given prefix (e.g. "stdout" or "stderr").
func NewLineWriter(logger Logger, prefix string) *LineWriter {
	return &LineWriter{logger: logger, prefix: prefix}
}

func (w *LineWriter) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	for {
		idx := strings.IndexByte(string(w.buf), '\n')
		if idx < 0 {
			break
		}
		line := strings.TrimRight(string(w.buf[:idx]), "\r")
		if line != "" {
			w.logger.Debug(w.prefix, "line", line)
		}
		w.buf = w.buf[idx+1:]
	}
	return len(p), nil
}

// Flush logs any trailing partial line left in the buffer. Callers should
// invoke it once the underlying process has exited.
func (w *LineWriter) Flush() {
	if len(w.buf) == 0 {
		return
	}
	line := strings.TrimRight(string(w.buf), "\r\n")
	if line != "" {
		w.logger.Debug(w.prefix, "line", line)
	}
	w.buf = nil
}
