package audit

import (
	"context"
)

// Logger records audit events. Implementations must never block the caller
// on downstream failures; Record is fire-and-forget.
type Logger interface {
	Record(ctx context.Context, event *Event)
	Close() error
}

// NopLogger returns a Logger that discards every event.
func NopLogger() Logger {
	return nopLogger{}
}

type nopLogger struct{}

func (nopLogger) Record(ctx context.Context, event *Event) {}
func (nopLogger) Close() error                             { return nil }

// MultiLogger fans each event out to several loggers.
type MultiLogger struct {
	loggers []Logger
}

// NewMultiLogger combines loggers into one.
func NewMultiLogger(loggers ...Logger) *MultiLogger {
	return &MultiLogger{loggers: loggers}
}

func (m *MultiLogger) Record(ctx context.Context, event *Event) {
	for _, l := range m.loggers {
		l.Record(ctx, event)
	}
}

func (m *MultiLogger) Close() error {
	var firstErr error
	for _, l := range m.loggers {
		if err := l.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
