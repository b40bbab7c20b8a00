package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/vigilance-tracker-api/internal/models"
)

// PublishFunc delivers one outbox message. A returned error leaves the row pending.
type PublishFunc func(ctx context.Context, msg models.OutboxMessage) error

// OutboxRepository drains messages written alongside workflow transitions.
type OutboxRepository struct {
	db *sqlx.DB
}

// NewOutboxRepository constructs the repository.
func NewOutboxRepository(db *sqlx.DB) *OutboxRepository {
	return &OutboxRepository{db: db}
}

// Relay locks up to limit pending rows, publishes them in order and marks the delivered ones.
// Rows locked by a concurrent relay are skipped. It returns the number published.
func (r *OutboxRepository) Relay(ctx context.Context, limit int, publish PublishFunc) (published int, err error) {
	if limit <= 0 {
		limit = 100
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin outbox tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const selectPending = `SELECT id, topic, payload, attempts, created_at, published_at FROM outbox
WHERE published_at IS NULL ORDER BY created_at ASC LIMIT $1 FOR UPDATE SKIP LOCKED`
	var pending []models.OutboxMessage
	if err = tx.SelectContext(ctx, &pending, selectPending, limit); err != nil {
		return 0, fmt.Errorf("select pending outbox: %w", err)
	}

	now := time.Now().UTC()
	for _, msg := range pending {
		if pubErr := publish(ctx, msg); pubErr != nil {
			if _, err = tx.ExecContext(ctx, `UPDATE outbox SET attempts = attempts + 1, last_error = $2 WHERE id = $1`, msg.ID, pubErr.Error()); err != nil {
				return 0, fmt.Errorf("record outbox failure: %w", err)
			}
			// keep ordering: later messages wait for this one
			break
		}
		if _, err = tx.ExecContext(ctx, `UPDATE outbox SET published_at = $2 WHERE id = $1`, msg.ID, now); err != nil {
			return 0, fmt.Errorf("mark outbox published: %w", err)
		}
		published++
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit outbox tx: %w", err)
	}
	return published, nil
}

// OldestPendingAge returns how long the oldest unpublished message has waited. Zero when nothing is pending.
func (r *OutboxRepository) OldestPendingAge(ctx context.Context) (time.Duration, error) {
	const query = `SELECT MIN(created_at) FROM outbox WHERE published_at IS NULL`
	var oldest *time.Time
	if err := r.db.GetContext(ctx, &oldest, query); err != nil {
		return 0, fmt.Errorf("oldest pending outbox: %w", err)
	}
	if oldest == nil {
		return 0, nil
	}
	return time.Since(*oldest), nil
}

// PurgePublished deletes delivered messages older than cutoff.
func (r *OutboxRepository) PurgePublished(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM outbox WHERE published_at IS NOT NULL AND published_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge outbox: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
