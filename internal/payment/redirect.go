// Package payment hands control to the hosted payment page and, when the
// browser comes back, decides from the available evidence whether it paid.
package payment

import (
	"context"
	"fmt"
	"log"
	"net/url"

	"github.com/AnthonyGillesRudolfo/Item-Reservation-Checkout/internal/intent"
)

// Initiator persists the attempt and produces the payment page URL.
type Initiator struct {
	store       intent.Store
	providerURL string
}

func NewInitiator(store intent.Store, providerURL string) *Initiator {
	return &Initiator{store: store, providerURL: providerURL}
}

// BeginPayment saves in and returns the URL the browser must be sent to. No URL
// is returned unless the intent is durably stored, so a failed write never
// strands a paid user without a record.
func (i *Initiator) BeginPayment(ctx context.Context, in intent.Intent) (string, error) {
	if err := in.Validate(); err != nil {
		return "", err
	}
	redirectURL, err := RedirectURL(i.providerURL, in.SessionReference, in.Contact.Email)
	if err != nil {
		return "", err
	}
	if err := i.store.Save(ctx, in); err != nil {
		log.Printf("[Payment %s] Not redirecting, intent was not saved: %v", in.SessionReference, err)
		return "", fmt.Errorf("failed to persist reservation intent: %w", err)
	}
	log.Printf("[Payment %s] Redirecting item %s to payment page", in.SessionReference, in.ItemID)
	return redirectURL, nil
}

// RedirectURL appends the correlation parameters to the provider URL, keeping
// any query it already carries.
func RedirectURL(providerURL, sessionReference, email string) (string, error) {
	u, err := url.Parse(providerURL)
	if err != nil {
		return "", fmt.Errorf("invalid payment provider URL %q: %w", providerURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("invalid payment provider URL %q: missing scheme or host", providerURL)
	}
	q := u.Query()
	q.Set("client_reference_id", sessionReference)
	q.Set("prefilled_email", email)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
