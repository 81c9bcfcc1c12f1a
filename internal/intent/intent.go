package intent

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Method is how the reserved item is handed over.
type Method string

const (
	MethodAttended   Method = "attended"
	MethodUnattended Method = "unattended"
)

// Valid reports whether m is one of the known fulfillment methods.
func (m Method) Valid() bool {
	return m == MethodAttended || m == MethodUnattended
}

type Contact struct {
	FullName        string `json:"fullName"`
	Email           string `json:"email"`
	PhoneNumber     string `json:"phoneNumber"`
	DeliveryAddress string `json:"deliveryAddress"`
}

type Fulfillment struct {
	Method       Method `json:"method"`
	Day          string `json:"day"`
	TimeWindow   string `json:"timeWindow"`
	Instructions string `json:"instructions,omitempty"`
}

// Intent is the record of one reservation attempt. It is written before the
// browser leaves for the payment page and is the only state that survives the
// round trip.
type Intent struct {
	SessionReference string      `json:"sessionReference"`
	ItemID           string      `json:"itemId"`
	Contact          Contact     `json:"contact"`
	Fulfillment      Fulfillment `json:"fulfillment"`
	CreatedAt        time.Time   `json:"createdAt"`
}

// New creates an intent for itemID with a fresh session reference.
func New(itemID string, contact Contact, fulfillment Fulfillment, now time.Time) Intent {
	now = now.UTC()
	return Intent{
		SessionReference: NewSessionReference(itemID, now),
		ItemID:           itemID,
		Contact:          contact,
		Fulfillment:      fulfillment,
		CreatedAt:        now,
	}
}

// NewSessionReference derives a reference from the item and creation time. The
// random suffix separates two attempts started in the same millisecond.
func NewSessionReference(itemID string, now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%s-%d-%s", sanitize(itemID), now.UnixMilli(), suffix)
}

func sanitize(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "item"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, s)
}

// Validate checks the fields required before the intent may be persisted or
// committed. It returns a *ValidationError naming every missing field.
func (i Intent) Validate() error {
	var missing []string
	check := func(name, v string) {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, name)
		}
	}
	check("sessionReference", i.SessionReference)
	check("itemId", i.ItemID)
	check("contact.fullName", i.Contact.FullName)
	check("contact.email", i.Contact.Email)
	check("contact.phoneNumber", i.Contact.PhoneNumber)
	check("contact.deliveryAddress", i.Contact.DeliveryAddress)
	if !i.Fulfillment.Method.Valid() {
		missing = append(missing, "fulfillment.method")
	}
	if len(missing) > 0 {
		return &ValidationError{Fields: missing}
	}
	return nil
}
