package payment

import (
	"context"
	"errors"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type Verdict int

const (
	Unknown Verdict = iota
	NotPaid
	Paid
)

func (v Verdict) String() string {
	switch v {
	case Paid:
		return "paid"
	case NotPaid:
		return "not_paid"
	default:
		return "unknown"
	}
}

// ReturnSignals is what the browser brings back from the payment page. None
// of it is trustworthy on its own.
type ReturnSignals struct {
	PaymentSuccess bool
	SessionID      string
	Referrer       string
}

// SignalsFromRequest reads payment_success, session_id and the Referer header.
func SignalsFromRequest(r *http.Request) ReturnSignals {
	q := r.URL.Query()
	return ReturnSignals{
		PaymentSuccess: q.Get("payment_success") == "true",
		SessionID:      strings.TrimSpace(q.Get("session_id")),
		Referrer:       r.Referer(),
	}
}

const DefaultVerifyTimeout = 5 * time.Second

type ResolverConfig struct {
	// ProviderDomains are the hosts (and their subdomains) a referrer must
	// come from to count as evidence.
	ProviderDomains []string
	Timeout         time.Duration
	// Strict refuses to treat heuristics alone as proof of payment.
	Strict bool
}

type Resolver struct {
	verifier Verifier
	cfg      ResolverConfig
}

func NewResolver(verifier Verifier, cfg ResolverConfig) *Resolver {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultVerifyTimeout
	}
	if len(cfg.ProviderDomains) == 0 {
		cfg.ProviderDomains = []string{"stripe.com"}
	}
	return &Resolver{verifier: verifier, cfg: cfg}
}

// Resolve returns the verdict for sessionReference. An authoritative answer
// wins over every heuristic. When it cannot be obtained, any one positive
// heuristic yields Paid (or Unknown in strict mode).
func (r *Resolver) Resolve(ctx context.Context, sessionReference string, sig ReturnSignals) Verdict {
	paid, err := r.verify(ctx, sessionReference)
	if err == nil {
		if paid {
			log.Printf("[Resolver %s] Authoritative check: paid", sessionReference)
			return Paid
		}
		log.Printf("[Resolver %s] Authoritative check: not paid", sessionReference)
		return NotPaid
	}
	log.Printf("[Resolver %s] Authoritative check unavailable, using return signals: %v", sessionReference, err)

	evidence := r.heuristic(sig)
	switch {
	case evidence != "" && r.cfg.Strict:
		log.Printf("[Resolver %s] Only heuristic evidence (%s), strict mode leaves verdict unknown", sessionReference, evidence)
		return Unknown
	case evidence != "":
		log.Printf("[Resolver %s] Treating as paid on %s", sessionReference, evidence)
		return Paid
	case r.cfg.Strict:
		return Unknown
	default:
		return NotPaid
	}
}

func (r *Resolver) verify(ctx context.Context, sessionReference string) (bool, error) {
	if r.verifier == nil {
		return false, ErrVerificationUnavailable
	}
	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()
	paid, err := r.verifier.Verify(ctx, sessionReference)
	if err != nil && !errors.Is(err, ErrVerificationUnavailable) {
		err = errors.Join(ErrVerificationUnavailable, err)
	}
	return paid, err
}

// heuristic names the strongest positive return signal, or "".
func (r *Resolver) heuristic(sig ReturnSignals) string {
	switch {
	case sig.PaymentSuccess:
		return "payment_success flag"
	case sig.SessionID != "":
		return "session_id parameter"
	case r.fromProvider(sig.Referrer):
		return "provider referrer"
	}
	return ""
}

func (r *Resolver) fromProvider(referrer string) bool {
	if referrer == "" {
		return false
	}
	u, err := url.Parse(referrer)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return false
	}
	for _, d := range r.cfg.ProviderDomains {
		d = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(d), "."))
		if d == "" {
			continue
		}
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}
