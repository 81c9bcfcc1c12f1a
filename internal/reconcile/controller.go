// Package reconcile drives a returning browser from "came back from the
// payment page" to one of success, recovery or failure. It is resumed from the
// stored intent on every confirmation load; nothing else survives the trip.
package reconcile

import (
	"context"
	"fmt"
	"log"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AnthonyGillesRudolfo/Item-Reservation-Checkout/internal/events"
	"github.com/AnthonyGillesRudolfo/Item-Reservation-Checkout/internal/intent"
	"github.com/AnthonyGillesRudolfo/Item-Reservation-Checkout/internal/payment"
	"github.com/AnthonyGillesRudolfo/Item-Reservation-Checkout/internal/reservation"
)

var tracer = otel.Tracer("github.com/AnthonyGillesRudolfo/Item-Reservation-Checkout/internal/reconcile")

type Resolver interface {
	Resolve(ctx context.Context, sessionReference string, sig payment.ReturnSignals) payment.Verdict
}

type Committer interface {
	Commit(ctx context.Context, in intent.Intent) (reservation.CommitResult, error)
}

type Deps struct {
	Store     intent.Store
	Resolver  Resolver
	Committer Committer
	// Publisher is optional; publish failures are logged and never change
	// the outcome.
	Publisher    events.Publisher
	Topic        string
	SupportEmail string
}

// Controller is the state machine of one confirmation page load.
type Controller struct {
	deps    Deps
	outcome Outcome
	current *intent.Intent
	lastErr string
}

func New(deps Deps) *Controller {
	if deps.Topic == "" {
		deps.Topic = events.ReservationsTopic
	}
	return &Controller{deps: deps, outcome: Outcome{State: Verifying}}
}

func (c *Controller) State() State { return c.outcome.State }

func (c *Controller) Outcome() Outcome { return c.outcome }

// Reconcile runs once per page load. A failure recorded by an earlier load
// wins over everything so a reload never commits automatically twice.
func (c *Controller) Reconcile(ctx context.Context, sig payment.ReturnSignals) Outcome {
	ctx, span := tracer.Start(ctx, "reconcile.Reconcile")
	defer span.End()

	c.outcome = Outcome{State: Verifying}

	in, found, err := c.deps.Store.Load(ctx)
	if err != nil {
		span.RecordError(err)
		log.Printf("[Reconcile] Failed to load pending reservation: %v", err)
		c.lastErr = err.Error()
		return c.finish(span, Outcome{State: Failed, Message: MsgStoreUnreadable})
	}
	if found {
		c.current = &in
		span.SetAttributes(
			attribute.String("reservation.session_reference", in.SessionReference),
			attribute.String("reservation.item_id", in.ItemID),
		)
	}

	marker, hasMarker, err := c.deps.Store.TakeError(ctx)
	if err != nil {
		span.RecordError(err)
		log.Printf("[Reconcile] Failed to read reservation error marker: %v", err)
		c.lastErr = err.Error()
		return c.finish(span, c.withIntent(Outcome{State: Failed, Message: MsgStoreUnreadable}))
	}
	if hasMarker {
		log.Printf("[Reconcile] Previous attempt failed, not committing again: %s", marker)
		c.lastErr = marker
		if marker == MsgReservedNotCleared && found {
			c.clearCommitted(ctx, in.SessionReference)
		}
		return c.finish(span, c.withIntent(Outcome{State: Failed, Message: marker}))
	}

	if !found {
		if sig.PaymentSuccess {
			log.Printf("[Reconcile] No pending reservation, return flag reports success")
			return c.finish(span, Outcome{State: Success, Message: MsgReserved})
		}
		log.Printf("[Reconcile] No pending reservation and no success flag")
		return c.finish(span, Outcome{State: Failed, Message: MsgNoReservationData})
	}

	ref := in.SessionReference
	verdict := c.deps.Resolver.Resolve(ctx, ref, sig)
	span.SetAttributes(attribute.String("payment.verdict", verdict.String()))
	if verdict != payment.Paid {
		log.Printf("[Reconcile %s] Payment verdict %s, entering recovery", ref, verdict)
		c.lastErr = MsgPaymentUnverified
		c.publish(ctx, ref, events.TypePaymentUnverified, events.PaymentUnverified{
			SessionReference: ref, ItemID: in.ItemID, Verdict: verdict.String(),
		})
		return c.finish(span, c.withIntent(Outcome{State: Recovery, Message: MsgPaymentUnverified, CanRetry: true}))
	}

	return c.finish(span, c.commit(ctx, in, false))
}

// ResumeRecovery re-enters the recovery state from the stored intent, for a
// retry request that arrives on a fresh page load. A controller that already
// reached Success or Failed stays there.
func (c *Controller) ResumeRecovery(ctx context.Context) (Outcome, error) {
	if c.outcome.State == Success || c.outcome.State == Failed {
		return c.outcome, ErrRetryNotAllowed
	}
	in, found, err := c.deps.Store.Load(ctx)
	if err != nil {
		return c.outcome, err
	}
	if !found {
		return c.outcome, ErrNoIntentFound
	}
	c.current = &in
	c.outcome = c.withIntent(Outcome{State: Recovery, CanRetry: true})
	return c.outcome, nil
}

// Retry re-commits the stored intent. It is user triggered and only allowed in
// recovery; a failed retry stays in recovery.
func (c *Controller) Retry(ctx context.Context) (Outcome, error) {
	if c.outcome.State != Recovery {
		return c.outcome, ErrRetryNotAllowed
	}
	ctx, span := tracer.Start(ctx, "reconcile.Retry")
	defer span.End()

	in, found, err := c.deps.Store.Load(ctx)
	if err != nil {
		span.RecordError(err)
		return c.outcome, err
	}
	if !found {
		return c.outcome, ErrNoIntentFound
	}
	c.current = &in
	span.SetAttributes(attribute.String("reservation.session_reference", in.SessionReference))
	log.Printf("[Reconcile %s] User requested retry", in.SessionReference)

	return c.finish(span, c.commit(ctx, in, true)), nil
}

func (c *Controller) commit(ctx context.Context, in intent.Intent, retried bool) Outcome {
	ref := in.SessionReference
	res, err := c.deps.Committer.Commit(ctx, in)
	if res.OK {
		if _, _, err := c.deps.Store.TakeError(ctx); err != nil {
			log.Printf("[Reconcile %s] Failed to consume error marker: %v", ref, err)
		}
		if err != nil {
			// The intent is still stored; the marker keeps the next load from
			// committing it again.
			log.Printf("[Reconcile %s] Reserved with warning: %v", ref, err)
			if err := c.deps.Store.RecordError(ctx, MsgReservedNotCleared); err != nil {
				log.Printf("[Reconcile %s] Failed to record error marker: %v", ref, err)
			}
		}
		c.lastErr = ""
		c.publish(ctx, ref, events.TypeReservationCommitted, events.ReservationCommitted{
			SessionReference: ref,
			ItemID:           in.ItemID,
			FullName:         in.Contact.FullName,
			Email:            in.Contact.Email,
			Method:           string(in.Fulfillment.Method),
			Day:              in.Fulfillment.Day,
			TimeWindow:       in.Fulfillment.TimeWindow,
			Retried:          retried,
		})
		return Outcome{State: Success, Message: MsgReserved, SessionReference: ref, ItemID: in.ItemID}
	}

	reason := err.Error()
	status := 0
	if be, ok := reservation.AsBackendError(err); ok {
		reason = be.Message
		status = be.Status
	}
	message := fmt.Sprintf(MsgReservationPendingFmt, reason)
	c.lastErr = reason
	log.Printf("[Reconcile %s] Commit failed: %v", ref, err)

	if err := c.deps.Store.RecordError(ctx, message); err != nil {
		log.Printf("[Reconcile %s] Failed to record error marker: %v", ref, err)
	}
	c.publish(ctx, ref, events.TypeReservationCommitFailed, events.ReservationCommitFailed{
		SessionReference: ref, ItemID: in.ItemID, Status: status, Message: reason, Retried: retried,
	})
	return c.withIntent(Outcome{State: Recovery, Message: message, CanRetry: true})
}

// clearCommitted retries removing an intent that was already reserved. While
// it keeps failing the marker is re-armed.
func (c *Controller) clearCommitted(ctx context.Context, ref string) {
	if err := c.deps.Store.Clear(ctx, ref); err != nil {
		log.Printf("[Reconcile %s] Still unable to clear reserved intent: %v", ref, err)
		if err := c.deps.Store.RecordError(ctx, MsgReservedNotCleared); err != nil {
			log.Printf("[Reconcile %s] Failed to record error marker: %v", ref, err)
		}
		return
	}
	log.Printf("[Reconcile %s] Cleared reserved intent", ref)
}

func (c *Controller) withIntent(o Outcome) Outcome {
	if c.current != nil {
		o.SessionReference = c.current.SessionReference
		o.ItemID = c.current.ItemID
	}
	return o
}

func (c *Controller) finish(span trace.Span, o Outcome) Outcome {
	c.outcome = o
	span.SetAttributes(attribute.String("reconcile.state", string(o.State)))
	if o.State == Failed {
		span.SetStatus(codes.Error, o.Message)
	}
	return o
}

func (c *Controller) publish(ctx context.Context, key, eventType string, data any) {
	if c.deps.Publisher == nil {
		return
	}
	evt, err := events.NewEnvelope(eventType, key, data)
	if err == nil {
		err = c.deps.Publisher.Publish(ctx, c.deps.Topic, key, evt)
	}
	if err != nil {
		log.Printf("[Reconcile %s] Failed to publish %s: %v", key, eventType, err)
	}
}
