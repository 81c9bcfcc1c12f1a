package reconcile

import "errors"

type State string

const (
	Verifying State = "verifying"
	Success   State = "success"
	Recovery  State = "recovery"
	Failed    State = "failed"
)

// Messages shown to the user.
const (
	MsgReserved              = "Your reservation is confirmed."
	MsgPaymentUnverified     = "Payment could not be verified."
	MsgNoReservationData     = "No reservation data found."
	MsgReservationPendingFmt = "Payment succeeded, reservation pending: %s"
	MsgStoreUnreadable       = "Your reservation details could not be read."
	MsgReservedNotCleared    = "Your reservation is confirmed, but its details could not be removed from this browser."
)

var (
	// ErrNoIntentFound means there is nothing left to commit; only support can help.
	ErrNoIntentFound = errors.New("no pending reservation found")
	// ErrRetryNotAllowed is returned by Retry outside the recovery state.
	ErrRetryNotAllowed = errors.New("retry is only available while recovering")
)

// Outcome is what the confirmation surface renders.
type Outcome struct {
	State            State  `json:"state"`
	Message          string `json:"message,omitempty"`
	SessionReference string `json:"sessionReference,omitempty"`
	ItemID           string `json:"itemId,omitempty"`
	CanRetry         bool   `json:"canRetry"`
}
