package reservation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/AnthonyGillesRudolfo/Item-Reservation-Checkout/internal/intent"
)

// ReserveRequest is the body of POST /items/{itemId}/reserve.
type ReserveRequest struct {
	FullName            string `json:"fullName"`
	Email               string `json:"email"`
	PhoneNumber         string `json:"phoneNumber"`
	PickupMethod        string `json:"pickupMethod"`
	PickupTime          string `json:"pickupTime"`
	PickupDay           string `json:"pickupDay"`
	PickupInstructions  string `json:"pickupInstructions"`
	SpecialInstructions string `json:"specialInstructions"`
}

// NewReserveRequest maps an intent onto the backend's field names. The backend
// has no address field, so the delivery address travels in the special
// instructions.
func NewReserveRequest(in intent.Intent) ReserveRequest {
	return ReserveRequest{
		FullName:            in.Contact.FullName,
		Email:               in.Contact.Email,
		PhoneNumber:         in.Contact.PhoneNumber,
		PickupMethod:        string(in.Fulfillment.Method),
		PickupTime:          in.Fulfillment.TimeWindow,
		PickupDay:           in.Fulfillment.Day,
		PickupInstructions:  in.Fulfillment.Instructions,
		SpecialInstructions: "Delivery address: " + in.Contact.DeliveryAddress,
	}
}

// Backend performs the authoritative reservation.
type Backend interface {
	ReserveItem(ctx context.Context, itemID string, req ReserveRequest) error
}

type HTTPBackend struct {
	baseURL string
	client  *http.Client
}

func NewHTTPBackend(baseURL string, client *http.Client) *HTTPBackend {
	if client == nil {
		client = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}
	return &HTTPBackend{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

// ReserveItem returns a *BackendError for every kind of rejection, including
// transport failures, so callers have one type to surface.
func (b *HTTPBackend) ReserveItem(ctx context.Context, itemID string, reserve ReserveRequest) error {
	payload, err := json.Marshal(reserve)
	if err != nil {
		return fmt.Errorf("failed to encode reservation request: %w", err)
	}
	endpoint := fmt.Sprintf("%s/items/%s/reserve", b.baseURL, url.PathEscape(itemID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return &BackendError{Message: err.Error(), Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return &BackendError{Message: "reservation service unreachable", Err: err}
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var body struct {
		Success *bool  `json:"success"`
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	decodeErr := json.Unmarshal(raw, &body)
	message := body.Message
	if message == "" {
		message = body.Error
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if message == "" {
			message = strings.TrimSpace(string(raw))
		}
		if message == "" {
			message = http.StatusText(resp.StatusCode)
		}
		return &BackendError{Status: resp.StatusCode, Message: message}
	}
	if decodeErr != nil {
		return &BackendError{Status: resp.StatusCode, Message: "malformed reservation response", Err: decodeErr}
	}
	if body.Success == nil || !*body.Success {
		if message == "" {
			message = "reservation was not accepted"
		}
		return &BackendError{Status: resp.StatusCode, Message: message}
	}
	return nil
}
