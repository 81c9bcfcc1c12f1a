package secrets

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOpenBao(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Vault-Token") != "tok" || r.URL.Path != "/v1/secret/data/reservations" {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestBootstrapExportsSecrets(t *testing.T) {
	srv := newOpenBao(t, http.StatusOK, `{"data":{"data":{"COOKIE_HASH_KEY":"abc","ORDER_DB_PORT":5433,"STRICT":true,"nested":{"x":1}}}}`)
	t.Setenv("COOKIE_HASH_KEY", "")
	t.Setenv("ORDER_DB_PORT", "")
	t.Setenv("STRICT", "")
	os.Unsetenv("COOKIE_HASH_KEY")
	os.Unsetenv("ORDER_DB_PORT")
	os.Unsetenv("STRICT")

	n, err := Bootstrap(context.Background(), OpenBaoConfig{Addr: srv.URL, Token: "tok", Mount: "secret", SecretPath: "reservations"})
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, "abc", os.Getenv("COOKIE_HASH_KEY"))
	assert.Equal(t, "5433", os.Getenv("ORDER_DB_PORT"))
	assert.Equal(t, "true", os.Getenv("STRICT"))
}

func TestBootstrapKeepsExistingValues(t *testing.T) {
	srv := newOpenBao(t, http.StatusOK, `{"data":{"data":{"SMTP_HOST":"vault-host"}}}`)
	t.Setenv("SMTP_HOST", "local-host")

	n, err := Bootstrap(context.Background(), OpenBaoConfig{Addr: srv.URL, Token: "tok", Mount: "secret", SecretPath: "reservations"})
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, "local-host", os.Getenv("SMTP_HOST"))
}

func TestBootstrapNotFound(t *testing.T) {
	srv := newOpenBao(t, http.StatusNotFound, `{}`)
	_, err := Bootstrap(context.Background(), OpenBaoConfig{Addr: srv.URL, Token: "tok", Mount: "secret", SecretPath: "reservations"})
	assert.ErrorIs(t, err, ErrOpenBaoSecretNotFound)
}

func TestBootstrapDisabled(t *testing.T) {
	n, err := Bootstrap(context.Background(), OpenBaoConfig{})
	require.NoError(t, err)
	assert.Zero(t, n)
}
