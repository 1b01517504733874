package logger

import corelogger "github.com/fleetcore/dispatchd/core/logger"

// Logger is the interface the rest of the codebase logs through. The
// core package owns it so domain code never imports zerolog directly.
type Logger = corelogger.Logger

// New returns the process logger for a component.
func New(component string) Logger {
	return NewZerologLogger(component)
}
