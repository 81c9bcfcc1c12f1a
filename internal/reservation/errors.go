package reservation

import (
	"errors"
	"fmt"
)

// BackendError is a rejected or failed reserve call. The user may retry it.
type BackendError struct {
	// Status is the HTTP status, zero when no response was received.
	Status  int
	Message string
	Err     error
}

func (e *BackendError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("reservation backend returned %d: %s", e.Status, e.Message)
	}
	return "reservation backend: " + e.Message
}

func (e *BackendError) Unwrap() error { return e.Err }

// AsBackendError extracts the *BackendError from err's chain.
func AsBackendError(err error) (*BackendError, bool) {
	var be *BackendError
	if errors.As(err, &be) {
		return be, true
	}
	return nil, false
}
