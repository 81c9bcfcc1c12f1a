package restatestore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/AnthonyGillesRudolfo/Item-Reservation-Checkout/internal/intent"
)

// Client calls the IntentStore object through the Restate ingress.
type Client struct {
	runtimeURL string
	hc         *http.Client
}

func NewClient(runtimeURL string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}
	return &Client{runtimeURL: strings.TrimRight(runtimeURL, "/"), hc: hc}
}

// Scope returns the slot of one client.
func (c *Client) Scope(clientID string) intent.Store {
	return &remoteSlot{c: c, clientID: clientID}
}

type remoteSlot struct {
	c        *Client
	clientID string
}

func (s *remoteSlot) call(ctx context.Context, handler string, in, out any) error {
	url := fmt.Sprintf("%s/%s/%s/%s", s.c.runtimeURL, ServiceName, s.clientID, handler)
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode %s request: %w", handler, err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", intent.ErrStoreUnavailable, handler, err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("%w: failed to reach Restate runtime: %w", intent.ErrStoreUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("%w: %s returned %d: %s", intent.ErrStoreUnavailable, handler, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: failed to decode %s response: %w", intent.ErrStoreUnavailable, handler, err)
	}
	return nil
}

func (s *remoteSlot) Save(ctx context.Context, in intent.Intent) error {
	return s.call(ctx, "Save", in, nil)
}

func (s *remoteSlot) Load(ctx context.Context) (intent.Intent, bool, error) {
	var slot Slot
	if err := s.call(ctx, "Load", nil, &slot); err != nil {
		return intent.Intent{}, false, err
	}
	if slot.Intent == nil {
		return intent.Intent{}, false, nil
	}
	return *slot.Intent, true, nil
}

func (s *remoteSlot) Clear(ctx context.Context, sessionReference string) error {
	return s.call(ctx, "Clear", sessionReference, nil)
}

func (s *remoteSlot) RecordError(ctx context.Context, message string) error {
	return s.call(ctx, "RecordError", message, nil)
}

func (s *remoteSlot) TakeError(ctx context.Context) (string, bool, error) {
	var m Marker
	if err := s.call(ctx, "TakeError", nil, &m); err != nil {
		return "", false, err
	}
	return m.Message, m.Found, nil
}
