// Package reservation performs the authoritative reserve call for a stored
// intent and clears the intent once the backend has accepted it.
package reservation

import (
	"context"
	"fmt"
	"log"

	"github.com/AnthonyGillesRudolfo/Item-Reservation-Checkout/internal/intent"
)

type CommitResult struct {
	OK bool
}

type Committer struct {
	backend Backend
	store   intent.Store
}

func NewCommitter(backend Backend, store intent.Store) *Committer {
	return &Committer{backend: backend, store: store}
}

// Commit reserves the item of in. It makes exactly one backend call and never
// retries. The intent is cleared only after the backend accepted it.
func (c *Committer) Commit(ctx context.Context, in intent.Intent) (CommitResult, error) {
	if err := in.Validate(); err != nil {
		log.Printf("[Commit %s] Refusing to commit: %v", in.SessionReference, err)
		return CommitResult{}, err
	}

	log.Printf("[Commit %s] Reserving item %s", in.SessionReference, in.ItemID)
	if err := c.backend.ReserveItem(ctx, in.ItemID, NewReserveRequest(in)); err != nil {
		log.Printf("[Commit %s] Reservation rejected: %v", in.SessionReference, err)
		if _, ok := AsBackendError(err); ok {
			return CommitResult{}, err
		}
		return CommitResult{}, &BackendError{Message: err.Error(), Err: err}
	}

	if err := c.store.Clear(ctx, in.SessionReference); err != nil {
		// OK stays true: the item is reserved even though the intent lingers.
		log.Printf("[Commit %s] Warning: reserved but failed to clear intent: %v", in.SessionReference, err)
		return CommitResult{OK: true}, fmt.Errorf("reserved item %s but failed to clear intent: %w", in.ItemID, err)
	}
	log.Printf("[Commit %s] Item %s reserved", in.SessionReference, in.ItemID)
	return CommitResult{OK: true}, nil
}
