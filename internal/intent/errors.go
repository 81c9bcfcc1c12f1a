package intent

import (
	"errors"
	"strings"
)

// ErrStoreUnavailable wraps failures of the durable slot itself (quota, closed
// connection, oversized cookie). Callers must not hand off control after it.
var ErrStoreUnavailable = errors.New("intent store unavailable")

// ValidationError reports an intent that is missing required fields. It is a
// local data-integrity fault and is never sent over the network.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "reservation intent missing required fields: " + strings.Join(e.Fields, ", ")
}

// IsValidation reports whether err is, or wraps, a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
