package observability

import (
	"runtime/debug"
)

// RecoverPanic recovers a panic and logs it with the full stack trace.
// Intended for defer statements in long-lived goroutines where a panic
// should not take down the process:
//
//	defer observability.RecoverPanic(logger, "token cleanup loop")
//
// The panic is not re-raised, so the goroutine exits normally.
func RecoverPanic(logger *Logger, context string) {
	if r := recover(); r != nil {
		logger.WithField("panic", r).
			WithField("stack", string(debug.Stack())).
			WithField("context", context).
			Error("PANIC recovered")
	}
}
