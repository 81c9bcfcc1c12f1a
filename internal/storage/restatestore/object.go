// Package restatestore keeps the pending reservation slot in the durable state
// of a Restate virtual object keyed by client id. Restate serializes handlers
// per key, which gives the single-slot guarantee without extra locking.
package restatestore

import (
	"log"

	restate "github.com/restatedev/sdk-go"

	"github.com/AnthonyGillesRudolfo/Item-Reservation-Checkout/internal/intent"
)

// ServiceName is the virtual object name registered with the Restate runtime.
const ServiceName = "reservation.IntentStore"

// Slot is the Load response.
type Slot struct {
	Intent *intent.Intent `json:"intent,omitempty"`
}

// Marker is the TakeError response.
type Marker struct {
	Message string `json:"message"`
	Found   bool   `json:"found"`
}

func Save(ctx restate.ObjectContext, in intent.Intent) (restate.Void, error) {
	if err := in.Validate(); err != nil {
		return restate.Void{}, restate.TerminalError(err, 400)
	}
	restate.Set(ctx, intent.SlotPending, in)
	log.Printf("[IntentStore %s] Saved pending reservation %s", restate.Key(ctx), in.SessionReference)
	return restate.Void{}, nil
}

// Load is shared so confirmation loads never queue behind a write.
func Load(ctx restate.ObjectSharedContext, _ restate.Void) (Slot, error) {
	in, err := restate.Get[*intent.Intent](ctx, intent.SlotPending)
	if err != nil {
		return Slot{}, err
	}
	return Slot{Intent: in}, nil
}

func Clear(ctx restate.ObjectContext, sessionReference string) (restate.Void, error) {
	in, err := restate.Get[*intent.Intent](ctx, intent.SlotPending)
	if err != nil {
		return restate.Void{}, err
	}
	if in == nil || in.SessionReference != sessionReference {
		return restate.Void{}, nil
	}
	restate.Clear(ctx, intent.SlotPending)
	log.Printf("[IntentStore %s] Cleared pending reservation %s", restate.Key(ctx), sessionReference)
	return restate.Void{}, nil
}

func RecordError(ctx restate.ObjectContext, message string) (restate.Void, error) {
	restate.Set(ctx, intent.SlotError, message)
	return restate.Void{}, nil
}

func TakeError(ctx restate.ObjectContext, _ restate.Void) (Marker, error) {
	msg, err := restate.Get[*string](ctx, intent.SlotError)
	if err != nil {
		return Marker{}, err
	}
	if msg == nil {
		return Marker{}, nil
	}
	restate.Clear(ctx, intent.SlotError)
	return Marker{Message: *msg, Found: true}, nil
}
