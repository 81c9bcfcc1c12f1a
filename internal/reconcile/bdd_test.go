package reconcile_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/cucumber/godog"

	"github.com/AnthonyGillesRudolfo/Item-Reservation-Checkout/internal/intent"
	"github.com/AnthonyGillesRudolfo/Item-Reservation-Checkout/internal/intent/intenttest"
	"github.com/AnthonyGillesRudolfo/Item-Reservation-Checkout/internal/payment"
	"github.com/AnthonyGillesRudolfo/Item-Reservation-Checkout/internal/reconcile"
	"github.com/AnthonyGillesRudolfo/Item-Reservation-Checkout/internal/reservation"
	"github.com/AnthonyGillesRudolfo/Item-Reservation-Checkout/internal/storage/sqlite"
)

func TestBDDFeatures(t *testing.T) {
	opts := godog.Options{
		Format: "pretty",
		Paths:  []string{"features"},
		Strict: true,
	}

	suite := godog.TestSuite{
		Name: "reservation-reconciliation",
		ScenarioInitializer: func(sc *godog.ScenarioContext) {
			world := &confirmationWorld{t: t}
			world.Register(sc)
		},
		Options: &opts,
	}

	if suite.Run() != 0 {
		t.Fail()
	}
}

// confirmationWorld wires the real resolver, committer and SQLite slot
// against fake verification and reservation services.
type confirmationWorld struct {
	t      *testing.T
	dbPath string
	saved  intent.Intent

	verifyURL  string
	backend    *fakeBackend
	backendSrv *httptest.Server
	servers    []*httptest.Server

	ctl     *reconcile.Controller
	outcome reconcile.Outcome
}

type fakeBackend struct {
	mu       sync.Mutex
	rejectIt string
	requests []string
}

func (b *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	itemID := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/items/"), "/reserve")
	b.requests = append(b.requests, itemID)
	w.Header().Set("Content-Type", "application/json")
	if b.rejectIt != "" {
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "message": b.rejectIt})
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"success": true})
}

func (w *confirmationWorld) Register(sc *godog.ScenarioContext) {
	sc.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
		w.dbPath = filepath.Join(w.t.TempDir(), "browser.db")
		w.backend = &fakeBackend{}
		w.backendSrv = httptest.NewServer(w.backend)
		w.servers = append(w.servers, w.backendSrv)
		return ctx, nil
	})
	sc.After(func(ctx context.Context, _ *godog.Scenario, _ error) (context.Context, error) {
		for _, srv := range w.servers {
			srv.Close()
		}
		w.servers = nil
		return ctx, nil
	})

	sc.Step(`^a pending reservation "([^"]+)" for item "([^"]+)"$`, w.pendingReservation)
	sc.Step(`^the payment verification service reports the session as (paid|unpaid)$`, w.verificationReports)
	sc.Step(`^the payment verification service is unreachable$`, w.verificationUnreachable)
	sc.Step(`^the reservation backend accepts reservations$`, w.backendAccepts)
	sc.Step(`^the reservation backend rejects reservations with "([^"]+)"$`, w.backendRejects)
	sc.Step(`^the browser returns to the confirmation page$`, func() error { return w.browserReturns("") })
	sc.Step(`^the browser returns to the confirmation page with "([^"]*)"$`, w.browserReturns)
	sc.Step(`^the user retries the reservation$`, w.userRetries)
	sc.Step(`^the reconciliation state is "([^"]+)"$`, w.stateIs)
	sc.Step(`^the message is "([^"]+)"$`, w.messageIs)
	sc.Step(`^no pending reservation is stored$`, w.noPendingReservation)
	sc.Step(`^the pending reservation "([^"]+)" is unchanged$`, w.pendingUnchanged)
	sc.Step(`^the reservation backend received (\d+) requests?$`, w.backendReceived)
	sc.Step(`^the reservation backend received (\d+) requests? for item "([^"]+)"$`, w.backendReceivedFor)
}

// withSlot opens the browser's slot for one page load.
func (w *confirmationWorld) withSlot(fn func(intent.Store) error) error {
	db, err := sqlite.Open(context.Background(), w.dbPath)
	if err != nil {
		return err
	}
	defer db.Close()
	return fn(db.Scope(sqlite.LocalClient))
}

func (w *confirmationWorld) pendingReservation(ref, itemID string) error {
	w.saved = intenttest.Sample()
	w.saved.SessionReference = ref
	w.saved.ItemID = itemID
	return w.withSlot(func(s intent.Store) error {
		return s.Save(context.Background(), w.saved)
	})
}

func (w *confirmationWorld) verificationReports(status string) error {
	paid := status == "paid"
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/verify-payment/"+w.saved.SessionReference {
			http.NotFound(rw, r)
			return
		}
		_ = json.NewEncoder(rw).Encode(map[string]bool{"paid": paid})
	}))
	w.servers = append(w.servers, srv)
	w.verifyURL = srv.URL
	return nil
}

func (w *confirmationWorld) verificationUnreachable() error {
	srv := httptest.NewServer(http.NotFoundHandler())
	w.verifyURL = srv.URL
	srv.Close()
	return nil
}

func (w *confirmationWorld) backendAccepts() error {
	w.backend.mu.Lock()
	defer w.backend.mu.Unlock()
	w.backend.rejectIt = ""
	return nil
}

func (w *confirmationWorld) backendRejects(message string) error {
	w.backend.mu.Lock()
	defer w.backend.mu.Unlock()
	w.backend.rejectIt = message
	return nil
}

func (w *confirmationWorld) controller(store intent.Store) *reconcile.Controller {
	resolver := payment.NewResolver(payment.NewHTTPVerifier(w.verifyURL, nil), payment.ResolverConfig{})
	committer := reservation.NewCommitter(reservation.NewHTTPBackend(w.backendSrv.URL, nil), store)
	return reconcile.New(reconcile.Deps{Store: store, Resolver: resolver, Committer: committer})
}

func (w *confirmationWorld) browserReturns(query string) error {
	target := "/api/reservations/confirmation"
	if query != "" {
		target += "?" + query
	}
	sig := payment.SignalsFromRequest(httptest.NewRequest(http.MethodGet, target, nil))
	return w.withSlot(func(s intent.Store) error {
		w.ctl = w.controller(s)
		w.outcome = w.ctl.Reconcile(context.Background(), sig)
		return nil
	})
}

func (w *confirmationWorld) userRetries() error {
	if w.ctl == nil {
		return fmt.Errorf("the confirmation page was never loaded")
	}
	return w.withSlot(func(s intent.Store) error {
		ctl := w.controller(s)
		if _, err := ctl.ResumeRecovery(context.Background()); err != nil {
			return err
		}
		out, err := ctl.Retry(context.Background())
		if err != nil {
			return err
		}
		w.ctl, w.outcome = ctl, out
		return nil
	})
}

func (w *confirmationWorld) stateIs(want string) error {
	if string(w.outcome.State) != want {
		return fmt.Errorf("expected state %s got %s (%s)", want, w.outcome.State, w.outcome.Message)
	}
	return nil
}

func (w *confirmationWorld) messageIs(want string) error {
	if w.outcome.Message != want {
		return fmt.Errorf("expected message %q got %q", want, w.outcome.Message)
	}
	return nil
}

func (w *confirmationWorld) noPendingReservation() error {
	return w.withSlot(func(s intent.Store) error {
		in, ok, err := s.Load(context.Background())
		if err != nil {
			return err
		}
		if ok {
			return fmt.Errorf("expected empty slot, found %s", in.SessionReference)
		}
		return nil
	})
}

func (w *confirmationWorld) pendingUnchanged(ref string) error {
	return w.withSlot(func(s intent.Store) error {
		in, ok, err := s.Load(context.Background())
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("expected pending reservation %s, slot is empty", ref)
		}
		got, _ := json.Marshal(in)
		want, _ := json.Marshal(w.saved)
		if in.SessionReference != ref || !bytes.Equal(got, want) {
			return fmt.Errorf("pending reservation changed: %+v", in)
		}
		return nil
	})
}

func (w *confirmationWorld) backendReceived(n int) error {
	w.backend.mu.Lock()
	defer w.backend.mu.Unlock()
	if len(w.backend.requests) != n {
		return fmt.Errorf("expected %d reserve requests got %d", n, len(w.backend.requests))
	}
	return nil
}

func (w *confirmationWorld) backendReceivedFor(n int, itemID string) error {
	if err := w.backendReceived(n); err != nil {
		return err
	}
	w.backend.mu.Lock()
	defer w.backend.mu.Unlock()
	for _, got := range w.backend.requests {
		if got != itemID {
			return fmt.Errorf("expected reserve requests for %s, got one for %s", itemID, got)
		}
	}
	return nil
}
