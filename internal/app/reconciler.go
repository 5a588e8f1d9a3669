/**
 * @description
 * The reconciler applies payment webhook events to the subscription ledger and the payment
 * session store. Each delivery moves through RECEIVED, PARSED, SESSION_VALIDATED,
 * LEDGER_UPDATED and SESSION_COMPLETED before it is acknowledged, or stops early as
 * REJECTED. Write failures after validation are recorded on the Outcome and the event is
 * still acknowledged.
 *
 * @dependencies
 * - github.com/rs/zerolog: structured logging.
 * - internal/metrics: webhook counters and latency.
 */
package app

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/JojoDuke/papermind-ai-backend/internal/domain"
	"github.com/JojoDuke/papermind-ai-backend/internal/metrics"
	"github.com/rs/zerolog"
)

// State is a step of the reconciliation state machine.
type State string

const (
	StateReceived         State = "RECEIVED"
	StateParsed           State = "PARSED"
	StateSessionValidated State = "SESSION_VALIDATED"
	StateLedgerUpdated    State = "LEDGER_UPDATED"
	StateSessionCompleted State = "SESSION_COMPLETED"
	StateAck              State = "ACK"
	StateRejected         State = "REJECTED"
	StateDuplicate        State = "DUPLICATE"
)

// Rejection reasons returned to the payment provider.
const (
	ReasonNoReference      = "No reference_id found"
	ReasonInvalidReference = "Invalid reference_id format"
	ReasonSessionNotFound  = "Session not found or user mismatch"
	ReasonInvalidSignature = "Invalid webhook signature"
)

// RoutingKeyPaymentReconciled is the routing key of the event published after a full ACK.
const RoutingKeyPaymentReconciled = "payment.reconciled"

// ErrRolledBack marks a write that was undone because the other write in its transaction failed.
var ErrRolledBack = errors.New("rolled back with the reconciliation transaction")

// Ledger updates the per-user premium state.
type Ledger interface {
	ResetPremiumCredits(ctx context.Context, userID string, credits int) error
}

// Sessions reads and completes payment sessions.
type Sessions interface {
	LookupSession(ctx context.Context, ref domain.ReferenceID) (*domain.PaymentSession, error)
	MarkSessionCompleted(ctx context.Context, sessionID string, details domain.PaymentDetails) error
}

// Transactor runs fn so that ledger and session writes made with its context commit together.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// EventPublisher sends a domain event to a message broker.
type EventPublisher interface {
	Publish(ctx context.Context, exchange, routingKey string, body interface{}) error
}

// Outcome is the result of reconciling one delivery.
type Outcome struct {
	State     State
	EventType string
	Reference domain.ReferenceID
	// Reason is set when State is StateRejected.
	Reason     string
	LedgerErr  error
	SessionErr error
}

// Acknowledged reports whether the provider should be told the event was accepted.
func (o Outcome) Acknowledged() bool {
	return o.State == StateAck || o.State == StateDuplicate
}

// FullyApplied reports whether both writes of a payment event were persisted.
func (o Outcome) FullyApplied() bool {
	return o.State == StateAck && o.Reference.SessionID != "" && o.LedgerErr == nil && o.SessionErr == nil
}

// ReconcilerOptions configures the optional collaborators of a Reconciler.
type ReconcilerOptions struct {
	// Credits is the balance a successful payment resets the user to.
	Credits    int
	Transactor Transactor
	Dedup      Deduplicator
	Publisher  EventPublisher
	Exchange   string
}

// Reconciler applies payment events to the ledger and the session store.
type Reconciler struct {
	ledger   Ledger
	sessions Sessions
	opts     ReconcilerOptions
	logger   zerolog.Logger
	now      func() time.Time
}

// NewReconciler creates a reconciler. Credits of zero or less mean DefaultPremiumCredits,
// matching the coercion applied to PREMIUM_CREDIT_AMOUNT.
func NewReconciler(ledger Ledger, sessions Sessions, logger zerolog.Logger, opts ReconcilerOptions) *Reconciler {
	if opts.Credits <= 0 {
		opts.Credits = domain.DefaultPremiumCredits
	}
	return &Reconciler{
		ledger:   ledger,
		sessions: sessions,
		opts:     opts,
		logger:   logger.With().Str("component", "webhook_reconciler").Logger(),
		now:      time.Now,
	}
}

// ReconcilePayload decodes a raw webhook body and reconciles it. deliveryID is the
// provider's delivery identifier, or "" when the request carried none.
func (r *Reconciler) ReconcilePayload(ctx context.Context, body []byte, deliveryID string) Outcome {
	var event domain.WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		r.logger.Warn().Err(err).Msg("failed to decode webhook payload")
		return r.Reject(err.Error())
	}
	return r.Reconcile(ctx, event, deliveryID)
}

// Reconcile applies an already decoded event.
func (r *Reconciler) Reconcile(ctx context.Context, event domain.WebhookEvent, deliveryID string) Outcome {
	return r.finish(r.now(), r.reconcile(ctx, event, deliveryID))
}

// Reject records a delivery refused before it reached the state machine.
func (r *Reconciler) Reject(reason string) Outcome {
	return r.finish(r.now(), Outcome{State: StateRejected, Reason: reason})
}

func (r *Reconciler) finish(start time.Time, out Outcome) Outcome {
	eventType := out.EventType
	if eventType == "" {
		eventType = "unknown"
	}
	metrics.WebhookEventsTotal.WithLabelValues(eventType, string(out.State)).Inc()
	metrics.WebhookDuration.WithLabelValues(eventType).Observe(r.now().Sub(start).Seconds())
	return out
}

func (r *Reconciler) reconcile(ctx context.Context, event domain.WebhookEvent, deliveryID string) Outcome {
	out := Outcome{State: StateParsed, EventType: event.Type}
	log := r.logger.With().Str("event_type", event.Type).Str("delivery_id", deliveryID).Logger()

	switch event.Type {
	case domain.EventPaymentSucceeded, "":
		// Untyped payloads get their reference checked but never reach the writes.
	case domain.EventSubscriptionRenewed, domain.EventSubscriptionActive:
		log.Info().Msg("subscription event acknowledged")
		out.State = StateAck
		return out
	default:
		log.Debug().Msg("ignoring webhook event type")
		out.State = StateAck
		return out
	}

	raw := strings.TrimSpace(event.Data.ReferenceID)
	if raw == "" {
		log.Warn().Msg("payment event without reference_id")
		return reject(out, ReasonNoReference)
	}
	ref, err := domain.ParseReferenceID(raw)
	if err != nil {
		log.Warn().Str("reference_id", raw).Msg("malformed reference_id")
		return reject(out, ReasonInvalidReference)
	}
	if event.Type == "" {
		log.Warn().Msg("untyped webhook event acknowledged without changes")
		out.State = StateAck
		return out
	}
	out.Reference = ref
	log = log.With().Str("session_id", ref.SessionID).Str("user_id", ref.UserID).Logger()

	key := dedupKey(event, deliveryID)
	claimed := false
	if r.opts.Dedup != nil && key != "" {
		first, err := r.opts.Dedup.Claim(ctx, key)
		switch {
		case err != nil:
			log.Warn().Err(err).Msg("deduplication unavailable; processing event")
		case !first:
			log.Info().Str("dedup_key", key).Msg("duplicate webhook delivery skipped")
			out.State = StateDuplicate
			return out
		default:
			claimed = true
		}
	}

	if _, err := r.sessions.LookupSession(ctx, ref); err != nil {
		log.Warn().Err(err).Msg("payment session lookup failed")
		if claimed {
			r.release(ctx, log, key)
		}
		return reject(out, ReasonSessionNotFound)
	}
	out.State = StateSessionValidated

	details := event.Data.Details()
	if r.opts.Transactor != nil {
		r.applyAtomically(ctx, &out, details)
	} else {
		r.apply(ctx, &out, details)
	}

	if out.LedgerErr != nil {
		metrics.ReconcileWriteFailures.WithLabelValues("ledger").Inc()
		log.Error().Err(out.LedgerErr).Msg("failed to reset premium credits")
	}
	if out.SessionErr != nil {
		metrics.ReconcileWriteFailures.WithLabelValues("session").Inc()
		log.Error().Err(out.SessionErr).Msg("failed to complete payment session")
	}

	// A partially applied event must stay redeliverable.
	if claimed && !out.FullyApplied() {
		r.release(ctx, log, key)
	}

	out.State = StateAck
	if out.FullyApplied() {
		log.Info().Str("payment_id", details.PaymentIntentID).Int("credits", r.opts.Credits).Msg("payment reconciled")
		r.publish(ctx, log, ref, details)
	}
	return out
}

func (r *Reconciler) release(ctx context.Context, log zerolog.Logger, key string) {
	if err := r.opts.Dedup.Forget(ctx, key); err != nil {
		log.Warn().Err(err).Str("dedup_key", key).Msg("failed to release dedup key")
	}
}

// apply runs both writes independently; a failed ledger update does not stop the session update.
func (r *Reconciler) apply(ctx context.Context, out *Outcome, details domain.PaymentDetails) {
	out.LedgerErr = r.ledger.ResetPremiumCredits(ctx, out.Reference.UserID, r.opts.Credits)
	if out.LedgerErr == nil {
		out.State = StateLedgerUpdated
	}
	out.SessionErr = r.sessions.MarkSessionCompleted(ctx, out.Reference.SessionID, details)
	if out.SessionErr == nil && out.LedgerErr == nil {
		out.State = StateSessionCompleted
	}
}

func (r *Reconciler) applyAtomically(ctx context.Context, out *Outcome, details domain.PaymentDetails) {
	var ledgerErr, sessionErr error
	txErr := r.opts.Transactor.WithinTx(ctx, func(ctx context.Context) error {
		if ledgerErr = r.ledger.ResetPremiumCredits(ctx, out.Reference.UserID, r.opts.Credits); ledgerErr != nil {
			return ledgerErr
		}
		if sessionErr = r.sessions.MarkSessionCompleted(ctx, out.Reference.SessionID, details); sessionErr != nil {
			return sessionErr
		}
		return nil
	})

	switch {
	case ledgerErr != nil:
		out.LedgerErr = ledgerErr
		out.SessionErr = ErrRolledBack
	case sessionErr != nil:
		out.LedgerErr = ErrRolledBack
		out.SessionErr = sessionErr
	case txErr != nil:
		out.LedgerErr = txErr
		out.SessionErr = txErr
	default:
		out.State = StateSessionCompleted
	}
}

func (r *Reconciler) publish(ctx context.Context, log zerolog.Logger, ref domain.ReferenceID, details domain.PaymentDetails) {
	if r.opts.Publisher == nil {
		return
	}
	event := domain.PaymentReconciledEvent{
		UserID:     ref.UserID,
		SessionID:  ref.SessionID,
		PaymentID:  details.PaymentIntentID,
		Amount:     details.Amount,
		Currency:   details.Currency,
		Credits:    r.opts.Credits,
		OccurredAt: r.now().UTC(),
	}
	if err := r.opts.Publisher.Publish(ctx, r.opts.Exchange, RoutingKeyPaymentReconciled, event); err != nil {
		log.Warn().Err(err).Msg("failed to publish payment.reconciled event")
	}
}

func reject(out Outcome, reason string) Outcome {
	out.State = StateRejected
	out.Reason = reason
	return out
}

func dedupKey(event domain.WebhookEvent, deliveryID string) string {
	if id := strings.TrimSpace(deliveryID); id != "" {
		return id
	}
	if event.Data.PaymentID == "" {
		return ""
	}
	return event.Type + ":" + event.Data.PaymentID
}
