package payment

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPVerifier(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		want    bool
		wantErr bool
	}{
		{"paid", http.StatusOK, `{"paid":true}`, true, false},
		{"not paid", http.StatusOK, `{"paid":false}`, false, false},
		{"server error", http.StatusInternalServerError, `oops`, false, true},
		{"not found", http.StatusNotFound, `{}`, false, true},
		{"malformed", http.StatusOK, `<html>`, false, true},
		{"missing field", http.StatusOK, `{"status":"ok"}`, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var path string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				path = r.URL.Path
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			paid, err := NewHTTPVerifier(srv.URL+"/", srv.Client()).Verify(context.Background(), "r1")
			assert.Equal(t, "/verify-payment/r1", path)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrVerificationUnavailable)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, paid)
		})
	}
}

func TestHTTPVerifierUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewHTTPVerifier(url, nil).Verify(context.Background(), "r1")
	assert.ErrorIs(t, err, ErrVerificationUnavailable)
}

func TestHTTPVerifierHonoursDeadline(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := NewHTTPVerifier(srv.URL, srv.Client()).Verify(ctx, "r1")
	assert.ErrorIs(t, err, ErrVerificationUnavailable)
}

func TestNewVerifierWithoutURL(t *testing.T) {
	assert.Nil(t, NewVerifier("", nil))
	assert.Nil(t, NewVerifier("  ", nil))
	assert.NotNil(t, NewVerifier("http://verify.test", nil))

	r := NewResolver(NewVerifier("", nil), ResolverConfig{})
	assert.Equal(t, Paid, r.Resolve(context.Background(), "r1", ReturnSignals{PaymentSuccess: true}))
	assert.Equal(t, NotPaid, r.Resolve(context.Background(), "r1", ReturnSignals{}))
}
