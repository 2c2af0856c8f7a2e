package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/motorclub/mailer/internal/domain"
	"github.com/motorclub/mailer/internal/service/campaign"
)

// SubscriberRepo implements campaign.SubscriberDirectory against the
// membership database's subscribers table.
type SubscriberRepo struct{ db *sql.DB }

// NewSubscriberRepo creates a Postgres-backed subscriber directory.
func NewSubscriberRepo(db *sql.DB) *SubscriberRepo { return &SubscriberRepo{db: db} }

func (r *SubscriberRepo) ListConfirmed(ctx context.Context) ([]domain.Subscriber, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, email, status, subscribed_at, unsubscribed_at
		FROM subscribers
		WHERE status = $1
		ORDER BY subscribed_at ASC, id ASC
	`, domain.SubscriberConfirmed)
	if err != nil {
		return nil, fmt.Errorf("list confirmed subscribers: %w", err)
	}
	defer rows.Close()

	var out []domain.Subscriber
	for rows.Next() {
		var s domain.Subscriber
		if err := rows.Scan(&s.ID, &s.Email, &s.Status, &s.SubscribedAt, &s.UnsubscribedAt); err != nil {
			return nil, fmt.Errorf("scan subscriber: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *SubscriberRepo) Unsubscribe(ctx context.Context, subscriberID string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE subscribers
		SET status = $1, unsubscribed_at = NOW()
		WHERE id = $2
	`, domain.SubscriberUnsubscribed, subscriberID)
	if err != nil {
		return fmt.Errorf("unsubscribe: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return campaign.ErrNotFound
	}
	return nil
}
