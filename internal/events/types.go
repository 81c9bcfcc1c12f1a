package events

// ReservationsTopic carries every event of the reservation flow.
const ReservationsTopic = "reservations.v1"

const (
	TypeReservationCommitted    = "ReservationCommitted"
	TypeReservationCommitFailed = "ReservationCommitFailed"
	TypePaymentUnverified       = "PaymentUnverified"
	TypeSupportRequested        = "SupportRequested"
)

type ReservationCommitted struct {
	SessionReference string `json:"sessionReference"`
	ItemID           string `json:"itemId"`
	FullName         string `json:"fullName"`
	Email            string `json:"email"`
	Method           string `json:"method"`
	Day              string `json:"day"`
	TimeWindow       string `json:"timeWindow"`
	Retried          bool   `json:"retried"`
}

type ReservationCommitFailed struct {
	SessionReference string `json:"sessionReference"`
	ItemID           string `json:"itemId"`
	Status           int    `json:"status,omitempty"`
	Message          string `json:"message"`
	Retried          bool   `json:"retried"`
}

type PaymentUnverified struct {
	SessionReference string `json:"sessionReference"`
	ItemID           string `json:"itemId"`
	Verdict          string `json:"verdict"`
}

type SupportRequested struct {
	SessionReference string `json:"sessionReference,omitempty"`
	ItemID           string `json:"itemId,omitempty"`
	To               string `json:"to"`
	ReplyTo          string `json:"replyTo,omitempty"`
	Subject          string `json:"subject"`
	Body             string `json:"body"`
}
