// Package cookie keeps the pending reservation slot in the browser itself, as
// signed and encrypted cookies. It is the default backend of the HTTP service
// because the slot then lives exactly as long as the browser profile does.
package cookie

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/securecookie"

	"github.com/AnthonyGillesRudolfo/Item-Reservation-Checkout/internal/intent"
)

// ClientCookie carries the per-browser id used by the server-side backends.
const ClientCookie = "reservation_client"

type Options struct {
	HashKey  []byte
	BlockKey []byte
	MaxAge   time.Duration
	Secure   bool
}

// Codec turns a request/response pair into an intent.Store.
type Codec struct {
	sc     *securecookie.SecureCookie
	maxAge time.Duration
	secure bool
}

func NewCodec(opts Options) *Codec {
	sc := securecookie.New(opts.HashKey, opts.BlockKey)
	sc.SetSerializer(securecookie.JSONEncoder{})
	maxAge := opts.MaxAge
	if maxAge <= 0 {
		maxAge = 7 * 24 * time.Hour
	}
	sc.MaxAge(int(maxAge.Seconds()))
	return &Codec{sc: sc, maxAge: maxAge, secure: opts.Secure}
}

// Store returns the slot carried by r. Writes are sent back on w and are also
// visible to later reads within the same request.
func (c *Codec) Store(w http.ResponseWriter, r *http.Request) intent.Store {
	return &Store{codec: c, w: w, r: r}
}

// ClientID returns the browser's client id, issuing a new one when the request
// carries none or a tampered one.
func (c *Codec) ClientID(w http.ResponseWriter, r *http.Request) (string, error) {
	if id, ok := c.KnownClientID(r); ok {
		return id, nil
	}
	id := uuid.NewString()
	if err := c.write(w, ClientCookie, id); err != nil {
		return "", fmt.Errorf("%w: failed to issue client id: %w", intent.ErrStoreUnavailable, err)
	}
	return id, nil
}

// KnownClientID returns the client id of r only when its cookie verifies.
func (c *Codec) KnownClientID(r *http.Request) (string, bool) {
	ck, err := r.Cookie(ClientCookie)
	if err != nil {
		return "", false
	}
	var id string
	if err := c.sc.Decode(ClientCookie, ck.Value, &id); err != nil || id == "" {
		return "", false
	}
	return id, true
}

func (c *Codec) write(w http.ResponseWriter, name string, value any) error {
	encoded, err := c.sc.Encode(name, value)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name: name, Value: encoded, Path: "/",
		MaxAge:   int(c.maxAge.Seconds()),
		HttpOnly: true, Secure: c.secure, SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func (c *Codec) expire(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name: name, Value: "", Path: "/", MaxAge: -1,
		HttpOnly: true, Secure: c.secure, SameSite: http.SameSiteLaxMode,
	})
}

// Store is the slot of one request. The two cookies are decoded lazily once.
type Store struct {
	codec *Codec
	w     http.ResponseWriter
	r     *http.Request

	mu      sync.Mutex
	loaded  bool
	pending *intent.Intent
	errMsg  *string
}

func (s *Store) load() {
	if s.loaded {
		return
	}
	s.loaded = true
	if ck, err := s.r.Cookie(intent.SlotPending); err == nil {
		var in intent.Intent
		if err := s.codec.sc.Decode(intent.SlotPending, ck.Value, &in); err != nil {
			log.Printf("[Cookie] Ignoring unreadable %s cookie: %v", intent.SlotPending, err)
		} else {
			s.pending = &in
		}
	}
	if ck, err := s.r.Cookie(intent.SlotError); err == nil {
		var msg string
		if err := s.codec.sc.Decode(intent.SlotError, ck.Value, &msg); err != nil {
			log.Printf("[Cookie] Ignoring unreadable %s cookie: %v", intent.SlotError, err)
		} else {
			s.errMsg = &msg
		}
	}
}

func (s *Store) Save(_ context.Context, in intent.Intent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.load()
	if err := s.codec.write(s.w, intent.SlotPending, in); err != nil {
		return fmt.Errorf("%w: failed to save pending reservation: %w", intent.ErrStoreUnavailable, err)
	}
	cp := in
	s.pending = &cp
	return nil
}

func (s *Store) Load(_ context.Context) (intent.Intent, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.load()
	if s.pending == nil {
		return intent.Intent{}, false, nil
	}
	return *s.pending, true, nil
}

func (s *Store) Clear(_ context.Context, sessionReference string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.load()
	if s.pending == nil || s.pending.SessionReference != sessionReference {
		return nil
	}
	s.codec.expire(s.w, intent.SlotPending)
	s.pending = nil
	return nil
}

func (s *Store) RecordError(_ context.Context, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.load()
	if err := s.codec.write(s.w, intent.SlotError, message); err != nil {
		return fmt.Errorf("%w: failed to record reservation error: %w", intent.ErrStoreUnavailable, err)
	}
	msg := message
	s.errMsg = &msg
	return nil
}

func (s *Store) TakeError(_ context.Context) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.load()
	if s.errMsg == nil {
		return "", false, nil
	}
	msg := *s.errMsg
	s.errMsg = nil
	s.codec.expire(s.w, intent.SlotError)
	return msg, true, nil
}
