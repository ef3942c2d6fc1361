// Package jdwplog wraps log/slog with the packet-trace gating the teacher
// driver applies around its own protocol reader/writer: tracing every frame
// is useful while developing against a new JVM but far too noisy (and too
// costly to format) for normal operation, so it is a boolean switch rather
// than a log level.
package jdwplog

import (
	"context"
	"log/slog"
	"os"
)

// direction labels mirror the teacher's clientTexts/dbTexts arrow markers.
const (
	DirOut   = "→CMD"
	DirIn    = "←REP"
	DirEvent = "←EVT"
)

// Logger is the ambient logger used across the engine. Packet tracing is
// gated by Trace so production runs pay no formatting cost walking typed
// Value trees on the hot path.
type Logger struct {
	base  *slog.Logger
	Trace bool
}

// New builds a Logger writing JSON lines to stderr at the given level, so
// stdout stays reserved for the tool-surface's newline-delimited JSON-RPC
// stream.
func New(level slog.Level, trace bool) *Logger {
	h := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return &Logger{base: slog.New(h), Trace: trace}
}

// Packet logs one framed packet at LevelDebug, tagged with its direction
// arrow, only when Trace is enabled.
func (l *Logger) Packet(ctx context.Context, dir, summary string, attrs ...slog.Attr) {
	if !l.Trace {
		return
	}
	l.base.LogAttrs(ctx, slog.LevelDebug, "PKT", append([]slog.Attr{slog.String("dir", dir), slog.String("summary", summary)}, attrs...)...)
}

// Info, Warn and Error proxy straight to the underlying slog.Logger; kept as
// thin wrappers so callers only ever import this package, not log/slog.
func (l *Logger) Info(msg string, args ...any)  { l.base.Info(msg, args...) }
func (l *Logger) Warn(msg string, args ...any)  { l.base.Warn(msg, args...) }
func (l *Logger) Error(msg string, args ...any) { l.base.Error(msg, args...) }
func (l *Logger) Debug(msg string, args ...any) { l.base.Debug(msg, args...) }

// Nop returns a Logger that discards everything; useful for tests.
func Nop() *Logger {
	return &Logger{base: slog.New(slog.NewTextHandler(discard{}, &slog.HandlerOptions{Level: slog.LevelError + 1}))}
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }
