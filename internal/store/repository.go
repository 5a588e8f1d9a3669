/**
 * @description
 * This file implements the data access layer for the payment reconciliation flow. It owns
 * the SQL for the users ledger and the payment_sessions table. Calls made inside WithinTx
 * share one transaction, carried on the context.
 */
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/JojoDuke/papermind-ai-backend/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrUserNotFound is returned when a ledger update matches no user row.
	ErrUserNotFound = fmt.Errorf("user not found: %w", domain.ErrNotFound)
	// ErrSessionNotFound is returned when no session matches both session and user id.
	ErrSessionNotFound = fmt.Errorf("payment session not found: %w", domain.ErrNotFound)
)

type querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type beginner interface {
	querier
	Begin(ctx context.Context) (pgx.Tx, error)
}

type txKey struct{}

// Repository handles database operations for users and payment sessions.
type Repository struct {
	db  beginner
	now func() time.Time
}

// NewRepository creates a new repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return newRepository(db)
}

func newRepository(db beginner) *Repository {
	return &Repository{db: db, now: time.Now}
}

func (r *Repository) conn(ctx context.Context) querier {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}
	return r.db
}

// WithinTx runs fn in a transaction. Repository calls made with the context passed to fn
// join that transaction; it commits when fn returns nil and rolls back otherwise.
func (r *Repository) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return fn(ctx)
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// ResetPremiumCredits marks a user premium and overwrites their balance with credits.
func (r *Repository) ResetPremiumCredits(ctx context.Context, userID string, credits int) error {
	query := `
        UPDATE users
        SET is_premium = TRUE,
            credits_remaining = $1,
            subscription_status = $2,
            subscription_updated_at = NOW()
        WHERE id = $3
    `
	tag, err := r.conn(ctx).Exec(ctx, query, credits, string(domain.SubscriptionActive), userID)
	if err != nil {
		return fmt.Errorf("reset premium credits for %s: %w", userID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// LookupSession finds the session named by ref, but only if it belongs to ref's user.
func (r *Repository) LookupSession(ctx context.Context, ref domain.ReferenceID) (*domain.PaymentSession, error) {
	var (
		session domain.PaymentSession
		status  string
	)
	query := `
        SELECT id, user_id, status, payment_intent_id, amount, currency, created_at, updated_at
        FROM payment_sessions
        WHERE id = $1 AND user_id = $2
    `
	err := r.conn(ctx).QueryRow(ctx, query, ref.SessionID, ref.UserID).Scan(
		&session.ID,
		&session.UserID,
		&status,
		&session.PaymentIntentID,
		&session.Amount,
		&session.Currency,
		&session.CreatedAt,
		&session.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("lookup payment session %s: %w", ref.SessionID, err)
	}
	session.Status = domain.SessionStatus(status)
	return &session, nil
}

// MarkSessionCompleted stamps provider details onto a session. Re-applying the same
// details leaves the row unchanged apart from updated_at.
func (r *Repository) MarkSessionCompleted(ctx context.Context, sessionID string, details domain.PaymentDetails) error {
	query := `
        UPDATE payment_sessions
        SET status = $1,
            payment_intent_id = $2,
            amount = $3,
            currency = $4,
            updated_at = NOW()
        WHERE id = $5
    `
	tag, err := r.conn(ctx).Exec(ctx, query,
		string(domain.SessionCompleted),
		details.PaymentIntentID,
		details.Amount,
		details.Currency,
		sessionID,
	)
	if err != nil {
		return fmt.Errorf("complete payment session %s: %w", sessionID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// CountStalePendingSessions counts sessions still pending after olderThan.
func (r *Repository) CountStalePendingSessions(ctx context.Context, olderThan time.Duration) (int, error) {
	var count int
	query := `
        SELECT COUNT(*)
        FROM payment_sessions
        WHERE status = $1 AND created_at < $2
    `
	cutoff := r.now().Add(-olderThan)
	if err := r.conn(ctx).QueryRow(ctx, query, string(domain.SessionPending), cutoff).Scan(&count); err != nil {
		return 0, fmt.Errorf("count stale payment sessions: %w", err)
	}
	return count, nil
}
