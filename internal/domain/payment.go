/**
 * @description
 * Domain models for the payment side of the service: the users table as seen by the
 * subscription ledger, payment sessions, and the webhook payloads sent by Dodo Payments.
 */
package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// SubscriptionStatus mirrors users.subscription_status.
type SubscriptionStatus string

const (
	SubscriptionInactive SubscriptionStatus = "inactive"
	SubscriptionActive   SubscriptionStatus = "active"
)

// SessionStatus mirrors payment_sessions.status.
type SessionStatus string

const (
	SessionPending   SessionStatus = "pending"
	SessionCompleted SessionStatus = "completed"
)

// DefaultPremiumCredits is the balance a successful payment resets a user to.
const DefaultPremiumCredits = 100

// User is a row of the users table.
type User struct {
	ID                    string             `json:"id"`
	CreditsRemaining      int                `json:"credits_remaining"`
	IsPremium             bool               `json:"is_premium"`
	SubscriptionStatus    SubscriptionStatus `json:"subscription_status"`
	SubscriptionUpdatedAt *time.Time         `json:"subscription_updated_at,omitempty"`
}

// PaymentSession correlates a checkout attempt with a user.
type PaymentSession struct {
	ID              string        `json:"id"`
	UserID          string        `json:"user_id"`
	Status          SessionStatus `json:"status"`
	PaymentIntentID *string       `json:"payment_intent_id,omitempty"`
	Amount          *int64        `json:"amount,omitempty"`
	Currency        *string       `json:"currency,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       *time.Time    `json:"updated_at,omitempty"`
}

// PaymentDetails are the provider fields stamped onto a completed session.
type PaymentDetails struct {
	PaymentIntentID string
	Amount          int64
	Currency        string
}

// Webhook event types sent by the payment provider.
const (
	EventPaymentSucceeded    = "payment.succeeded"
	EventSubscriptionRenewed = "subscription.renewed"
	EventSubscriptionActive  = "subscription.active"
)

const referenceIDSeparator = "_"

// WebhookEvent is the top-level payload posted to the webhook endpoint.
type WebhookEvent struct {
	Type       string           `json:"type"`
	BusinessID string           `json:"business_id,omitempty"`
	Timestamp  string           `json:"timestamp,omitempty"`
	Data       WebhookEventData `json:"data"`
}

// WebhookEventData holds the payment fields of an event.
type WebhookEventData struct {
	ReferenceID string          `json:"reference_id"`
	PaymentID   string          `json:"payment_id"`
	TotalAmount int64           `json:"total_amount"`
	Currency    string          `json:"currency"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
}

// Details extracts the fields written onto the payment session.
func (d WebhookEventData) Details() PaymentDetails {
	return PaymentDetails{
		PaymentIntentID: d.PaymentID,
		Amount:          d.TotalAmount,
		Currency:        d.Currency,
	}
}

// ReferenceID identifies the session and user a checkout belongs to. On the wire it
// travels as "<session_id>_<user_id>".
type ReferenceID struct {
	SessionID string
	UserID    string
}

// NewReferenceID builds a reference, refusing parts that would not survive a round trip.
// It is the constructor for the checkout side that mints reference_id values; this
// service only parses them.
func NewReferenceID(sessionID, userID string) (ReferenceID, error) {
	fields := []struct{ name, value string }{{"session_id", sessionID}, {"user_id", userID}}
	for _, f := range fields {
		if f.value == "" {
			return ReferenceID{}, fmt.Errorf("%w: %s is empty", ErrValidation, f.name)
		}
		if strings.Contains(f.value, referenceIDSeparator) {
			return ReferenceID{}, fmt.Errorf("%w: %s contains %q", ErrValidation, f.name, referenceIDSeparator)
		}
	}
	return ReferenceID{SessionID: sessionID, UserID: userID}, nil
}

// ParseReferenceID splits a wire reference. It requires exactly two non-empty parts,
// so an id that itself contains the separator is rejected rather than guessed at.
func ParseReferenceID(raw string) (ReferenceID, error) {
	parts := strings.Split(raw, referenceIDSeparator)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return ReferenceID{}, fmt.Errorf("%w: reference_id %q is not <session_id>_<user_id>", ErrValidation, raw)
	}
	return ReferenceID{SessionID: parts[0], UserID: parts[1]}, nil
}

func (r ReferenceID) String() string {
	return r.SessionID + referenceIDSeparator + r.UserID
}

// PaymentReconciledEvent is published once a payment has been applied to the ledger
// and its session completed.
type PaymentReconciledEvent struct {
	UserID     string    `json:"user_id"`
	SessionID  string    `json:"session_id"`
	PaymentID  string    `json:"payment_id"`
	Amount     int64     `json:"amount"`
	Currency   string    `json:"currency"`
	Credits    int       `json:"credits"`
	OccurredAt time.Time `json:"occurred_at"`
}
