package api

import (
	"net/http"

	"github.com/AnthonyGillesRudolfo/Item-Reservation-Checkout/internal/intent"
	"github.com/AnthonyGillesRudolfo/Item-Reservation-Checkout/internal/storage/cookie"
)

// SlotProvider resolves the intent slot of the browser behind a request.
type SlotProvider interface {
	Slot(w http.ResponseWriter, r *http.Request) (intent.Store, error)
}

// Scoper is implemented by the server-side backends.
type Scoper interface {
	Scope(clientID string) intent.Store
}

// CookieSlots keeps the slot in the browser's own cookies.
type CookieSlots struct {
	Codec *cookie.Codec
}

func (c CookieSlots) Slot(w http.ResponseWriter, r *http.Request) (intent.Store, error) {
	return c.Codec.Store(w, r), nil
}

// ScopedSlots keeps the slot server side, keyed by the client id cookie.
type ScopedSlots struct {
	Codec   *cookie.Codec
	Backend Scoper
}

func (s ScopedSlots) Slot(w http.ResponseWriter, r *http.Request) (intent.Store, error) {
	id, err := s.Codec.ClientID(w, r)
	if err != nil {
		return nil, err
	}
	return s.Backend.Scope(id), nil
}

// ClientIdentifier reports the verified client id behind a request, if any.
type ClientIdentifier interface {
	KnownClientID(r *http.Request) (string, bool)
}

func (c CookieSlots) KnownClientID(r *http.Request) (string, bool) {
	return c.Codec.KnownClientID(r)
}

func (s ScopedSlots) KnownClientID(r *http.Request) (string, bool) {
	return s.Codec.KnownClientID(r)
}
