package observability

import (
	"runtime/debug"
)

// RecoverPanic recovers a panic and logs it with the full stack trace.
// Meant for defer statements around background work (shutdown hooks,
// sweep loops) where one panicking task must not take out its siblings.
// The panic is not re-raised.
func RecoverPanic(logger *Logger, context string) {
	if r := recover(); r != nil {
		logger.WithField("panic", r).
			WithField("stack", string(debug.Stack())).
			WithField("context", context).
			Error("PANIC recovered")
	}
}

// RecoverPanicWithCallback is RecoverPanic plus a cleanup hook that runs
// after the panic is logged, for closing channels or writing an error
// response on behalf of the crashed handler. The callback does not run
// when there was no panic.
func RecoverPanicWithCallback(logger *Logger, context string, callback func()) {
	if r := recover(); r != nil {
		logger.WithField("panic", r).
			WithField("stack", string(debug.Stack())).
			WithField("context", context).
			Error("PANIC recovered")
		if callback != nil {
			callback()
		}
	}
}
