package cookie

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnthonyGillesRudolfo/Item-Reservation-Checkout/internal/intent"
	"github.com/AnthonyGillesRudolfo/Item-Reservation-Checkout/internal/intent/intenttest"
)

var (
	hashKey  = []byte("0123456789abcdef0123456789abcdef")
	blockKey = []byte("abcdef0123456789abcdef0123456789")
)

// browser replays Set-Cookie headers onto the next request, like a page reload.
type browser struct {
	intent.Store
	codec *Codec
	jar   map[string]*http.Cookie
	rec   *httptest.ResponseRecorder
}

func newBrowser(codec *Codec, jar map[string]*http.Cookie) *browser {
	req := httptest.NewRequest(http.MethodGet, "/api/reservations/confirmation", nil)
	for _, c := range jar {
		req.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
	}
	rec := httptest.NewRecorder()
	return &browser{Store: codec.Store(rec, req), codec: codec, jar: jar, rec: rec}
}

func (b *browser) reload() *browser {
	for _, c := range b.rec.Result().Cookies() {
		if c.MaxAge < 0 {
			delete(b.jar, c.Name)
			continue
		}
		b.jar[c.Name] = c
	}
	return newBrowser(b.codec, b.jar)
}

func TestStoreContract(t *testing.T) {
	intenttest.RunContract(t, intenttest.Factory{
		Open: func(t *testing.T) intent.Store {
			return newBrowser(NewCodec(Options{HashKey: hashKey, BlockKey: blockKey}), map[string]*http.Cookie{})
		},
		Reopen: func(t *testing.T, prev intent.Store) intent.Store {
			return prev.(*browser).reload()
		},
	})
}

func TestTamperedCookieReadsAsEmpty(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: intent.SlotPending, Value: "forged"})
	s := NewCodec(Options{HashKey: hashKey, BlockKey: blockKey}).Store(httptest.NewRecorder(), req)

	_, ok, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCookieFromAnotherKeyIsRejected(t *testing.T) {
	ctx := context.Background()
	other := newBrowser(NewCodec(Options{HashKey: []byte("another-hash-key-another-hash-ke")}), map[string]*http.Cookie{})
	require.NoError(t, other.Save(ctx, intenttest.Sample()))
	other.reload()

	b := newBrowser(NewCodec(Options{HashKey: hashKey, BlockKey: blockKey}), other.jar)
	_, ok, err := b.Load(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestOversizedIntentFailsSave(t *testing.T) {
	b := newBrowser(NewCodec(Options{HashKey: hashKey, BlockKey: blockKey}), map[string]*http.Cookie{})
	in := intenttest.Sample()
	in.Fulfillment.Instructions = strings.Repeat("x", 8000)

	err := b.Save(context.Background(), in)
	require.Error(t, err)
	assert.ErrorIs(t, err, intent.ErrStoreUnavailable)
	assert.Empty(t, b.rec.Result().Cookies())
}

func TestClientIDIsStable(t *testing.T) {
	codec := NewCodec(Options{HashKey: hashKey, BlockKey: blockKey})

	rec := httptest.NewRecorder()
	id, err := codec.ClientID(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	require.NotEmpty(t, id)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, ClientCookie, cookies[0].Name)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookies[0])
	rec2 := httptest.NewRecorder()
	again, err := codec.ClientID(rec2, req)
	require.NoError(t, err)
	assert.Equal(t, id, again)
	assert.Empty(t, rec2.Result().Cookies())
}

func TestKnownClientIDRejectsForgedValues(t *testing.T) {
	codec := NewCodec(Options{HashKey: hashKey, BlockKey: blockKey})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: ClientCookie, Value: "forged-1"})
	_, ok := codec.KnownClientID(req)
	assert.False(t, ok)

	_, ok = codec.KnownClientID(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.False(t, ok)

	rec := httptest.NewRecorder()
	id, err := codec.ClientID(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(rec.Result().Cookies()[0])
	got, ok := codec.KnownClientID(req)
	assert.True(t, ok)
	assert.Equal(t, id, got)
}
