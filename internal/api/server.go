package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime"
	"net"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/AnthonyGillesRudolfo/Item-Reservation-Checkout/internal/events"
	"github.com/AnthonyGillesRudolfo/Item-Reservation-Checkout/internal/intent"
	"github.com/AnthonyGillesRudolfo/Item-Reservation-Checkout/internal/payment"
	"github.com/AnthonyGillesRudolfo/Item-Reservation-Checkout/internal/reconcile"
	"github.com/AnthonyGillesRudolfo/Item-Reservation-Checkout/internal/reservation"
)

type Options struct {
	ProviderURL          string
	SupportEmail         string
	SupportRatePerMinute int
	Topic                string
}

// Server exposes checkout and the confirmation surface. Every request builds
// its own initiator or controller around the slot of the calling browser.
type Server struct {
	opts      Options
	slots     SlotProvider
	resolver  reconcile.Resolver
	backend   reservation.Backend
	publisher events.Publisher
	limiter   *keyedLimiter
	now       func() time.Time
}

func NewServer(opts Options, slots SlotProvider, resolver reconcile.Resolver, backend reservation.Backend, publisher events.Publisher) *Server {
	if opts.Topic == "" {
		opts.Topic = events.ReservationsTopic
	}
	return &Server{
		opts:      opts,
		slots:     slots,
		resolver:  resolver,
		backend:   backend,
		publisher: publisher,
		limiter:   newKeyedLimiter(opts.SupportRatePerMinute),
		now:       time.Now,
	}
}

// Register wires the API endpoints into the provided mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.Handle("/api/items/", otelhttp.NewHandler(http.HandlerFunc(s.handleItems), "checkout"))
	mux.Handle("/api/reservations/confirmation", otelhttp.NewHandler(http.HandlerFunc(s.handleConfirmation), "confirmation"))
	mux.Handle("/api/reservations/confirmation/retry", otelhttp.NewHandler(http.HandlerFunc(s.handleRetry), "confirmation-retry"))
	mux.Handle("/api/reservations/confirmation/support", otelhttp.NewHandler(http.HandlerFunc(s.handleSupport), "confirmation-support"))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
}

func (s *Server) handleItems(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/items/")
	parts := strings.Split(path, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] != "checkout" {
		writeError(w, fmt.Errorf("%w: expected /api/items/{itemId}/checkout", errNotFound))
		return
	}
	if r.Method != http.MethodPost {
		writeError(w, errMethodNotAllowed)
		return
	}
	s.handleCheckout(w, r, parts[0])
}

type checkoutRequest struct {
	Contact     intent.Contact     `json:"contact"`
	Fulfillment intent.Fulfillment `json:"fulfillment"`
}

func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request, itemID string) {
	req, err := decodeCheckout(r)
	if err != nil {
		writeError(w, err)
		return
	}
	store, err := s.slots.Slot(w, r)
	if err != nil {
		writeError(w, err)
		return
	}

	in := intent.New(itemID, req.Contact, req.Fulfillment, s.now())
	redirectURL, err := payment.NewInitiator(store, s.opts.ProviderURL).BeginPayment(r.Context(), in)
	if err != nil {
		log.Printf("[Checkout %s] Not redirecting to payment: %v", itemID, err)
		writeError(w, err)
		return
	}
	http.Redirect(w, r, redirectURL, http.StatusSeeOther)
}

// decodeCheckout accepts the JSON body or a plain HTML form post.
func decodeCheckout(r *http.Request) (checkoutRequest, error) {
	var req checkoutRequest
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/x-www-form-urlencoded", "multipart/form-data":
		if err := r.ParseForm(); err != nil {
			return req, fmt.Errorf("%w: %w", errBadRequest, err)
		}
		req.Contact = intent.Contact{
			FullName:        strings.TrimSpace(r.PostFormValue("fullName")),
			Email:           strings.TrimSpace(r.PostFormValue("email")),
			PhoneNumber:     strings.TrimSpace(r.PostFormValue("phoneNumber")),
			DeliveryAddress: strings.TrimSpace(r.PostFormValue("deliveryAddress")),
		}
		req.Fulfillment = intent.Fulfillment{
			Method:       intent.Method(r.PostFormValue("method")),
			Day:          r.PostFormValue("day"),
			TimeWindow:   r.PostFormValue("timeWindow"),
			Instructions: r.PostFormValue("instructions"),
		}
	default:
		if err := json.NewDecoder(io.LimitReader(r.Body, 64<<10)).Decode(&req); err != nil {
			return req, fmt.Errorf("%w: %w", errBadRequest, err)
		}
	}
	return req, nil
}

func (s *Server) controller(store intent.Store) *reconcile.Controller {
	return reconcile.New(reconcile.Deps{
		Store:        store,
		Resolver:     s.resolver,
		Committer:    reservation.NewCommitter(s.backend, store),
		Publisher:    s.publisher,
		Topic:        s.opts.Topic,
		SupportEmail: s.opts.SupportEmail,
	})
}

func (s *Server) handleConfirmation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, errMethodNotAllowed)
		return
	}
	store, err := s.slots.Slot(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	out := s.controller(store).Reconcile(r.Context(), payment.SignalsFromRequest(r))
	writeJSON(w, http.StatusOK, out)
}

// handleRetry is stateless: each request builds a fresh controller, so a
// retry resumes from whatever intent is still stored. That includes a browser
// whose last confirmation load ended in Failed on a recorded error; its intent
// was kept, and the retry is an explicit user action.
func (s *Server) handleRetry(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, errMethodNotAllowed)
		return
	}
	store, err := s.slots.Slot(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	ctl := s.controller(store)
	if _, err := ctl.ResumeRecovery(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	out, err := ctl.Retry(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSupport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		writeError(w, errMethodNotAllowed)
		return
	}
	store, err := s.slots.Slot(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	req, err := s.controller(store).SupportFromStore(r.Context(), r.URL.Query().Get("error"))
	if err != nil {
		writeError(w, err)
		return
	}
	if r.Method == http.MethodGet {
		writeJSON(w, http.StatusOK, req)
		return
	}

	if !s.limiter.Allow(s.clientKey(r)) {
		writeError(w, errRateLimited)
		return
	}
	if err := s.escalate(r.Context(), store, req); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, req)
}

func (s *Server) escalate(ctx context.Context, store intent.Store, req reconcile.SupportRequest) error {
	if s.publisher == nil {
		return errors.New("support escalation is not configured")
	}
	evt := events.SupportRequested{To: req.To, ReplyTo: req.ReplyTo, Subject: req.Subject, Body: req.Body}
	if in, ok, err := store.Load(ctx); err == nil && ok {
		evt.SessionReference = in.SessionReference
		evt.ItemID = in.ItemID
	}
	key := evt.SessionReference
	if key == "" {
		key = req.ReplyTo
	}
	env, err := events.NewEnvelope(events.TypeSupportRequested, key, evt)
	if err != nil {
		return err
	}
	if err := s.publisher.Publish(ctx, s.opts.Topic, key, env); err != nil {
		return fmt.Errorf("failed to publish support request: %w", err)
	}
	log.Printf("[Support %s] Escalated to %s", key, req.To)
	return nil
}

// clientKey identifies the caller for rate limiting: the verified client id
// when the cookie decodes, the remote host otherwise. Unverified cookie values
// are never used, so forging new ones does not buy a fresh limiter.
func (s *Server) clientKey(r *http.Request) string {
	if ci, ok := s.slots.(ClientIdentifier); ok {
		if id, ok := ci.KnownClientID(r); ok {
			return "client:" + id
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "addr:" + host
}
