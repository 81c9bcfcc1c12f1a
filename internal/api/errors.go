package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/AnthonyGillesRudolfo/Item-Reservation-Checkout/internal/intent"
	"github.com/AnthonyGillesRudolfo/Item-Reservation-Checkout/internal/payment"
	"github.com/AnthonyGillesRudolfo/Item-Reservation-Checkout/internal/reconcile"
	"github.com/AnthonyGillesRudolfo/Item-Reservation-Checkout/internal/reservation"
)

var (
	errRateLimited      = errors.New("too many support requests, try again later")
	errMethodNotAllowed = errors.New("method not allowed")
	errNotFound         = errors.New("not found")
	errBadRequest       = errors.New("invalid request")
)

// Kind classifies err for API responses.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case intent.IsValidation(err), errors.Is(err, errBadRequest):
		return "invalid_request"
	case errors.Is(err, intent.ErrStoreUnavailable):
		return "store_unavailable"
	case errors.Is(err, reconcile.ErrNoIntentFound):
		return "no_intent"
	case errors.Is(err, reconcile.ErrRetryNotAllowed):
		return "retry_not_allowed"
	case errors.Is(err, payment.ErrVerificationUnavailable):
		return "verification_unavailable"
	case errors.Is(err, errRateLimited):
		return "rate_limited"
	case errors.Is(err, errMethodNotAllowed):
		return "method_not_allowed"
	case errors.Is(err, errNotFound):
		return "not_found"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	}
	if _, ok := reservation.AsBackendError(err); ok {
		return "reservation_rejected"
	}
	return "internal"
}

var kindToStatus = map[string]int{
	"":                         http.StatusOK,
	"invalid_request":          http.StatusBadRequest,
	"store_unavailable":        http.StatusServiceUnavailable,
	"no_intent":                http.StatusConflict,
	"retry_not_allowed":        http.StatusConflict,
	"verification_unavailable": http.StatusServiceUnavailable,
	"rate_limited":             http.StatusTooManyRequests,
	"method_not_allowed":       http.StatusMethodNotAllowed,
	"not_found":                http.StatusNotFound,
	"timeout":                  http.StatusGatewayTimeout,
	"canceled":                 http.StatusRequestTimeout,
	"reservation_rejected":     http.StatusBadGateway,
}

func HTTPStatus(err error) int {
	if s, ok := kindToStatus[Kind(err)]; ok {
		return s
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, HTTPStatus(err), map[string]string{
		"error": err.Error(),
		"kind":  Kind(err),
	})
}
