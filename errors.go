package jsbridge

import (
	"errors"
	"fmt"
)

var (
	// ErrLifecycle is returned for out-of-order engine lifecycle calls, such
	// as Initialize after Dispose.
	ErrLifecycle = errors.New("jsbridge: invalid lifecycle transition")

	// ErrNotInitialized is returned when an isolate is requested before
	// Initialize.
	ErrNotInitialized = errors.New("jsbridge: engine not initialized")

	// ErrDisposed reports work that was dropped because its isolate or the
	// engine went away first.
	ErrDisposed = errors.New("jsbridge: disposed")

	// ErrAllocationFailed is returned when the allocator could not provide
	// an ArrayBuffer backing store.
	ErrAllocationFailed = errors.New("jsbridge: array buffer allocation failed")

	// ErrNothing reports an absent result that was not caused by an
	// exception.
	ErrNothing = errors.New("jsbridge: no value")
)

// ExceptionError is the error form of a captured exception.
type ExceptionError struct {
	Exception Handle // durable, owned by the caller
	Message   *Message
}

func (e *ExceptionError) Error() string {
	if e.Message == nil {
		return "jsbridge: exception"
	}
	return e.Message.Text
}

// violation panics for contract violations. These are programming errors
// in the host and never surface as error values.
func violation(format string, args ...any) {
	panic(fmt.Sprintf("jsbridge: "+format, args...))
}
