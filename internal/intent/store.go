package intent

import "context"

// Store is the durable slot holding the single in-flight attempt of one
// browser plus a read-once error marker.
//
// Save replaces whatever attempt was stored before. Clear only removes the
// attempt named by sessionReference, so clearing a stale reference never drops
// a newer attempt. Every method returns only once the change is durable.
type Store interface {
	Save(ctx context.Context, in Intent) error
	Load(ctx context.Context) (Intent, bool, error)
	Clear(ctx context.Context, sessionReference string) error
	RecordError(ctx context.Context, message string) error
	TakeError(ctx context.Context) (string, bool, error)
}

// Slot names shared by the backends.
const (
	SlotPending = "pending_reservation"
	SlotError   = "reservation_error"
)
