package util

import "fmt"

// WarnOrFail centralizes the strict-mode policy: every component that may
// downgrade a recoverable error to a warning goes through this single
// function instead of checking a process-wide flag itself.
func WarnOrFail(strict bool, warn func(format string, args ...interface{}), message string, args ...interface{}) error {
	if strict {
		return NewStrictError(fmt.Sprintf(message, args...))
	}
	warn(message+"\n", args...)
	return nil
}
