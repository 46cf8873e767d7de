// Package logger is the structured logging surface for executed relation
// plans. Anything with slog-style leveled methods can be plugged in.
package logger

import "log/slog"

// Logger receives messages with alternating key/value attributes.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type discard struct{}

func (discard) Debug(string, ...any) {}
func (discard) Info(string, ...any)  {}
func (discard) Warn(string, ...any)  {}
func (discard) Error(string, ...any) {}

// Discard drops every message. A DB logs to it unless configured otherwise.
var Discard Logger = discard{}

// *slog.Logger already has the right method set.
type slogLogger struct{ *slog.Logger }

// FromSlog logs through l. A nil l yields Discard.
func FromSlog(l *slog.Logger) Logger {
	if l == nil {
		return Discard
	}
	return slogLogger{l}
}

// With returns a Logger that adds args to every message sent through l.
func With(l Logger, args ...any) Logger {
	if len(args) == 0 {
		return l
	}
	switch l := l.(type) {
	case discard:
		return l
	case slogLogger:
		return slogLogger{l.With(args...)}
	}
	return &bound{Logger: l, attrs: args}
}

type bound struct {
	Logger
	attrs []any
}

func (b *bound) merge(args []any) []any {
	return append(append(make([]any, 0, len(b.attrs)+len(args)), b.attrs...), args...)
}

func (b *bound) Debug(msg string, args ...any) { b.Logger.Debug(msg, b.merge(args)...) }
func (b *bound) Info(msg string, args ...any)  { b.Logger.Info(msg, b.merge(args)...) }
func (b *bound) Warn(msg string, args ...any)  { b.Logger.Warn(msg, b.merge(args)...) }
func (b *bound) Error(msg string, args ...any) { b.Logger.Error(msg, b.merge(args)...) }
