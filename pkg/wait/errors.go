package wait

import (
	"fmt"
	"time"
)

// TimeoutError is returned by Command.Wait when the element did not reach the
// awaited state in time. It wraps the *poll.TimeoutError that triggered it.
type TimeoutError struct {
	Command   string
	Target    string
	Reverse   bool
	Timeout   time.Duration
	Condition string
	cause     error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("element (%s) still %s after %dms", e.Target, e.Condition, e.Timeout.Milliseconds())
}

func (e *TimeoutError) Unwrap() error {
	return e.cause
}
