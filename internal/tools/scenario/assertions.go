package scenario

import (
	"fmt"
	"log"
)

// AssertionMode controls how expectation failures are handled.
type AssertionMode string

const (
	// AssertionStrict fails the run on the first unmet expectation.
	AssertionStrict AssertionMode = "strict"
	// AssertionLogOnly logs unmet expectations and keeps going.
	AssertionLogOnly AssertionMode = "log-only"
)

// Assertions evaluates expectations according to the configured mode.
type Assertions struct {
	Mode   AssertionMode
	Logger *log.Logger
}

// Failf reports a hard failure regardless of mode.
func (a Assertions) Failf(format string, args ...any) error {
	return fmt.Errorf(format, args...)
}

// Assertf reports an unmet expectation: an error in strict mode, a log line
// otherwise.
func (a Assertions) Assertf(format string, args ...any) error {
	if a.Mode == AssertionLogOnly {
		if a.Logger != nil {
			a.Logger.Printf("assertion: "+format, args...)
		}
		return nil
	}
	return fmt.Errorf(format, args...)
}
