package main

import (
	"bytes"
	"log"
	"net/http"
	"net/http/httptest"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appconfig "github.com/AnthonyGillesRudolfo/Item-Reservation-Checkout/internal/config"
	"github.com/AnthonyGillesRudolfo/Item-Reservation-Checkout/internal/intent/intenttest"
	"github.com/AnthonyGillesRudolfo/Item-Reservation-Checkout/internal/payment"
)

func TestCookieCodecWarnsOnGeneratedKeys(t *testing.T) {
	tests := []struct {
		name     string
		hashKey  string
		blockKey string
		warns    []string
	}{
		{"both missing", "", "", []string{"COOKIE_HASH_KEY", "COOKIE_BLOCK_KEY"}},
		{"block key missing", "0123456789abcdef0123456789abcdef", "", []string{"COOKIE_BLOCK_KEY"}},
		{"hash key missing", "", "abcdef0123456789abcdef0123456789", []string{"COOKIE_HASH_KEY"}},
		{"both set", "0123456789abcdef0123456789abcdef", "abcdef0123456789abcdef0123456789", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			var cfg appconfig.Config
			cfg.Store.CookieHashKey = tt.hashKey
			cfg.Store.CookieBlockKey = tt.blockKey

			codec := newCookieCodec(cfg, log.New(&buf, "", 0))
			require.NotNil(t, codec)

			for _, key := range []string{"COOKIE_HASH_KEY", "COOKIE_BLOCK_KEY"} {
				if slices.Contains(tt.warns, key) {
					assert.Contains(t, buf.String(), key+" not set")
				} else {
					assert.NotContains(t, buf.String(), key)
				}
			}
		})
	}
}

func TestCookieCodecRoundTripsWithConfiguredKeys(t *testing.T) {
	var cfg appconfig.Config
	cfg.Store.CookieHashKey = "0123456789abcdef0123456789abcdef"
	cfg.Store.CookieBlockKey = "abcdef0123456789abcdef0123456789"
	logger := log.New(&bytes.Buffer{}, "", 0)

	rec := httptest.NewRecorder()
	store := newCookieCodec(cfg, logger).Store(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, store.Save(t.Context(), intenttest.Sample()))

	// A restarted process with the same keys still reads the slot.
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}
	_, ok, err := newCookieCodec(cfg, logger).Store(httptest.NewRecorder(), req).Load(t.Context())
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestResolverWithoutVerifyURLUsesSignals(t *testing.T) {
	var cfg appconfig.Config
	r := newResolver(cfg)
	assert.Equal(t, payment.Paid, r.Resolve(t.Context(), "r1", payment.ReturnSignals{PaymentSuccess: true}))
}
