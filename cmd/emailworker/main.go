package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/segmentio/kafka-go"

	appconfig "github.com/AnthonyGillesRudolfo/Item-Reservation-Checkout/internal/config"
	"github.com/AnthonyGillesRudolfo/Item-Reservation-Checkout/internal/email"
	"github.com/AnthonyGillesRudolfo/Item-Reservation-Checkout/internal/events"
)

func main() {
	_ = godotenv.Load()
	cfg, err := appconfig.Load()
	if err != nil {
		log.Fatalf("[email-worker] config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Println("Email worker starting...")
	if err := consume(ctx, cfg, pickSender(cfg)); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("[email-worker] stopped: %v", err)
	}
}

func consume(ctx context.Context, cfg appconfig.Config, sender email.Sender) error {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Kafka.Brokers,
		Topic:    cfg.Kafka.ReservationsTopic,
		GroupID:  cfg.Kafka.EmailGroup,
		MinBytes: 1e3, MaxBytes: 10e6,
	})
	defer reader.Close()

	log.Printf("[email-worker] consuming %s (group=%s)", cfg.Kafka.ReservationsTopic, cfg.Kafka.EmailGroup)
	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			return err
		}
		var evt events.Envelope
		if err := json.Unmarshal(msg.Value, &evt); err != nil {
			log.Printf("[email-worker] bad json: %v; payload=%s", err, string(msg.Value))
			continue
		}
		if err := handle(sender, evt); err != nil {
			log.Printf("[email-worker] %s %s: %v", evt.EventType, evt.AggregateID, err)
		}
	}
}

// handle sends the mail for one event. Event types without a mail are ignored.
func handle(sender email.Sender, evt events.Envelope) error {
	switch evt.EventType {
	case events.TypeReservationCommitted:
		var data events.ReservationCommitted
		if err := json.Unmarshal(evt.Data, &data); err != nil {
			return fmt.Errorf("decode payload: %w", err)
		}
		if data.Email == "" {
			return errors.New("no recipient")
		}
		body, err := email.RenderReservationConfirmedEmail(email.ReservationConfirmed{
			SessionReference: data.SessionReference,
			ItemID:           data.ItemID,
			FullName:         data.FullName,
			Method:           data.Method,
			Day:              data.Day,
			TimeWindow:       data.TimeWindow,
		})
		if err != nil {
			return err
		}
		if err := sender.Send(data.Email, "Your reservation is confirmed", body); err != nil {
			return fmt.Errorf("send failed: %w", err)
		}
		log.Printf("[email-worker] sent ReservationCommitted email to=%s ref=%s", data.Email, data.SessionReference)

	case events.TypeSupportRequested:
		var data events.SupportRequested
		if err := json.Unmarshal(evt.Data, &data); err != nil {
			return fmt.Errorf("decode payload: %w", err)
		}
		body, err := email.RenderSupportRequestEmail(email.SupportRequest{
			SessionReference: data.SessionReference,
			ReplyTo:          data.ReplyTo,
			Body:             data.Body,
		})
		if err != nil {
			return err
		}
		if err := sender.Send(data.To, data.Subject, body); err != nil {
			return fmt.Errorf("send failed: %w", err)
		}
		log.Printf("[email-worker] forwarded support request to=%s ref=%s", data.To, data.SessionReference)
	}
	return nil
}

func pickSender(cfg appconfig.Config) email.Sender {
	if cfg.Email.UseLogSender {
		return email.LogSender{}
	}
	return email.NewSMTPSender(email.SMTPConfig{
		Host:     cfg.Email.SMTPHost,
		Port:     cfg.Email.SMTPPort,
		From:     cfg.Email.SMTPFrom,
		Username: cfg.Email.SMTPUser,
		Password: cfg.Email.SMTPPassword,
	})
}
