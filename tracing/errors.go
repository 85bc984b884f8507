package tracing

import (
	"errors"
	"fmt"
)

// ErrTimeout is the distinguished failure reported when a pooled
// invocation exceeds its configured timeout. Check for it with errors.Is.
var ErrTimeout = errors.New("invocation timed out")

// A PanicError wraps a value recovered from a panicking body so it can
// travel through the error channel of a future.
type PanicError struct {
	Value any
}

func (e PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}
