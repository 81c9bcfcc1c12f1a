package main

import (
	"github.com/spf13/cobra"

	"github.com/AnthonyGillesRudolfo/Item-Reservation-Checkout/internal/events"
	"github.com/AnthonyGillesRudolfo/Item-Reservation-Checkout/internal/intent"
	"github.com/AnthonyGillesRudolfo/Item-Reservation-Checkout/internal/payment"
	"github.com/AnthonyGillesRudolfo/Item-Reservation-Checkout/internal/reconcile"
	"github.com/AnthonyGillesRudolfo/Item-Reservation-Checkout/internal/reservation"
)

// controllerFlags point the controller at the verification and reservation
// services; empty values fall back to the environment.
type controllerFlags struct {
	verifyURL  string
	backendURL string
}

func (f *controllerFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.verifyURL, "verify-url", "", "payment verification service (defaults to PAYMENT_VERIFY_URL)")
	cmd.Flags().StringVar(&f.backendURL, "backend-url", "", "reservation backend (defaults to RESERVATION_BACKEND_URL)")
}

func (f *controllerFlags) controller(store intent.Store) (*reconcile.Controller, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if f.verifyURL == "" {
		f.verifyURL = cfg.Payment.VerifyURL
	}
	if f.backendURL == "" {
		f.backendURL = cfg.Backend.BaseURL
	}
	resolver := payment.NewResolver(payment.NewVerifier(f.verifyURL, nil), payment.ResolverConfig{
		ProviderDomains: cfg.Payment.ProviderDomains,
		Timeout:         cfg.Payment.VerifyTimeout,
		Strict:          cfg.Payment.Strict,
	})
	return reconcile.New(reconcile.Deps{
		Store:        store,
		Resolver:     resolver,
		Committer:    reservation.NewCommitter(reservation.NewHTTPBackend(f.backendURL, nil), store),
		Publisher:    events.LogPublisher{},
		SupportEmail: cfg.Support.Email,
	}), nil
}

func newReconcileCmd(g *globalFlags) *cobra.Command {
	var (
		f   controllerFlags
		sig payment.ReturnSignals
	)
	c := &cobra.Command{
		Use:   "reconcile",
		Short: "Run the confirmation flow as if the browser had just returned from payment",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return g.withStore(cmd.Context(), func(store intent.Store) error {
				ctl, err := f.controller(store)
				if err != nil {
					return err
				}
				return printJSON(cmd, ctl.Reconcile(cmd.Context(), sig))
			})
		},
	}
	f.register(c)
	c.Flags().BoolVar(&sig.PaymentSuccess, "payment-success", false, "the provider reported payment_success=true")
	c.Flags().StringVar(&sig.SessionID, "session-id", "", "session_id returned by the provider")
	c.Flags().StringVar(&sig.Referrer, "referrer", "", "referring URL")
	return c
}

func newRetryCmd(g *globalFlags) *cobra.Command {
	var f controllerFlags
	c := &cobra.Command{
		Use:   "retry",
		Short: "Retry committing the pending reservation",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return g.withStore(cmd.Context(), func(store intent.Store) error {
				ctl, err := f.controller(store)
				if err != nil {
					return err
				}
				if _, err := ctl.ResumeRecovery(cmd.Context()); err != nil {
					return err
				}
				out, err := ctl.Retry(cmd.Context())
				if err != nil {
					return err
				}
				return printJSON(cmd, out)
			})
		},
	}
	f.register(c)
	return c
}

func newSupportCmd(g *globalFlags) *cobra.Command {
	var (
		f         controllerFlags
		lastError string
	)
	c := &cobra.Command{
		Use:   "support",
		Short: "Print the support request for the pending reservation",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return g.withStore(cmd.Context(), func(store intent.Store) error {
				ctl, err := f.controller(store)
				if err != nil {
					return err
				}
				req, err := ctl.SupportFromStore(cmd.Context(), lastError)
				if err != nil {
					return err
				}
				return printJSON(cmd, req)
			})
		},
	}
	f.register(c)
	c.Flags().StringVar(&lastError, "error", "", "error message shown to the user")
	return c
}
