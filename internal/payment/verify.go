package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// ErrVerificationUnavailable means the authoritative status could not be
// obtained. Callers fall back to the return-path heuristics.
var ErrVerificationUnavailable = errors.New("payment verification unavailable")

// Verifier asks an authoritative source whether a session was paid.
type Verifier interface {
	Verify(ctx context.Context, sessionReference string) (bool, error)
}

// NewVerifier returns an HTTPVerifier for baseURL, or nil when no
// verification service is configured. The Resolver treats nil as unavailable.
func NewVerifier(baseURL string, client *http.Client) Verifier {
	if strings.TrimSpace(baseURL) == "" {
		return nil
	}
	return NewHTTPVerifier(baseURL, client)
}

// HTTPVerifier queries GET {baseURL}/verify-payment/{ref}.
type HTTPVerifier struct {
	baseURL string
	client  *http.Client
}

func NewHTTPVerifier(baseURL string, client *http.Client) *HTTPVerifier {
	if client == nil {
		client = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}
	return &HTTPVerifier{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

func (v *HTTPVerifier) Verify(ctx context.Context, sessionReference string) (bool, error) {
	endpoint := v.baseURL + "/verify-payment/" + url.PathEscape(sessionReference)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrVerificationUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := v.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrVerificationUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return false, fmt.Errorf("%w: status %d", ErrVerificationUnavailable, resp.StatusCode)
	}
	var body struct {
		Paid *bool `json:"paid"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return false, fmt.Errorf("%w: malformed response: %w", ErrVerificationUnavailable, err)
	}
	if body.Paid == nil {
		return false, fmt.Errorf("%w: response has no paid field", ErrVerificationUnavailable)
	}
	return *body.Paid, nil
}
