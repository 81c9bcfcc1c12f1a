package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/AnthonyGillesRudolfo/Item-Reservation-Checkout/internal/intent"
	"github.com/AnthonyGillesRudolfo/Item-Reservation-Checkout/internal/payment"
)

func newBeginCmd(g *globalFlags) *cobra.Command {
	var (
		contact     intent.Contact
		fulfillment intent.Fulfillment
		method      string
		providerURL string
	)
	c := &cobra.Command{
		Use:   "begin ITEM_ID",
		Short: "Store a reservation intent and print the payment redirect URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if providerURL == "" {
				cfg, err := loadConfig()
				if err != nil {
					return err
				}
				providerURL = cfg.Payment.ProviderURL
			}
			fulfillment.Method = intent.Method(method)
			in := intent.New(args[0], contact, fulfillment, time.Now())

			return g.withStore(cmd.Context(), func(store intent.Store) error {
				redirect, err := payment.NewInitiator(store, providerURL).BeginPayment(cmd.Context(), in)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), redirect)
				return nil
			})
		},
	}
	c.Flags().StringVar(&contact.FullName, "name", "", "full name")
	c.Flags().StringVar(&contact.Email, "email", "", "contact email")
	c.Flags().StringVar(&contact.PhoneNumber, "phone", "", "phone number")
	c.Flags().StringVar(&contact.DeliveryAddress, "address", "", "delivery address")
	c.Flags().StringVar(&method, "method", string(intent.MethodAttended), "attended or unattended")
	c.Flags().StringVar(&fulfillment.Day, "day", "", "pickup day")
	c.Flags().StringVar(&fulfillment.TimeWindow, "window", "", "pickup time window")
	c.Flags().StringVar(&fulfillment.Instructions, "instructions", "", "pickup instructions")
	c.Flags().StringVar(&providerURL, "provider-url", "", "payment page URL (defaults to PAYMENT_PROVIDER_URL)")
	return c
}

func newIntentCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "intent",
		Short: "Inspect or clear the stored reservation intent",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the pending reservation",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return g.withStore(cmd.Context(), func(store intent.Store) error {
				in, ok, err := store.Load(cmd.Context())
				if err != nil {
					return err
				}
				if !ok {
					return errors.New("no pending reservation")
				}
				return printJSON(cmd, in)
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "clear SESSION_REFERENCE",
		Short: "Remove the pending reservation if it has this reference",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withStore(cmd.Context(), func(store intent.Store) error {
				return store.Clear(cmd.Context(), args[0])
			})
		},
	})
	return cmd
}
