package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/motorclub/mailer/internal/domain"
	"github.com/motorclub/mailer/internal/service/campaign"
)

// SendRepo implements campaign.SendLedger against PostgreSQL. The table
// carries a UNIQUE (campaign_id, subscriber_id) constraint; every
// idempotency property of the engine hangs on it.
type SendRepo struct{ db *sql.DB }

// NewSendRepo creates a Postgres-backed send ledger.
func NewSendRepo(db *sql.DB) *SendRepo { return &SendRepo{db: db} }

func (r *SendRepo) Get(ctx context.Context, id string) (*domain.Send, error) {
	s := &domain.Send{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, campaign_id, subscriber_id, email, status,
		       sent_at, COALESCE(error, ''), created_at
		FROM sends
		WHERE id = $1
	`, id).Scan(
		&s.ID, &s.CampaignID, &s.SubscriberID, &s.Email, &s.Status,
		&s.SentAt, &s.Error, &s.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, campaign.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get send: %w", err)
	}
	return s, nil
}

// CreateIfAbsent inserts pending rows inside one transaction. ON CONFLICT DO
// NOTHING skips pairs that already have a row in any status, so a terminal
// row is never reset to pending. Returns the number of rows created.
func (r *SendRepo) CreateIfAbsent(ctx context.Context, sends []domain.Send) (int, error) {
	if len(sends) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin snapshot: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO sends (id, campaign_id, subscriber_id, email, status, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (campaign_id, subscriber_id) DO NOTHING
	`)
	if err != nil {
		return 0, fmt.Errorf("prepare snapshot: %w", err)
	}
	defer stmt.Close()

	created := 0
	for _, s := range sends {
		res, err := stmt.ExecContext(ctx, s.ID, s.CampaignID, s.SubscriberID, s.Email, domain.SendPending)
		if err != nil {
			return 0, fmt.Errorf("insert send: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil {
			created += int(n)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit snapshot: %w", err)
	}
	return created, nil
}

// ListPending returns the campaign's dispatchable rows in insertion order,
// which gives every dispatch run the same fixed, reproducible sequence.
func (r *SendRepo) ListPending(ctx context.Context, campaignID string) ([]domain.Send, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, campaign_id, subscriber_id, email, status,
		       sent_at, COALESCE(error, ''), created_at
		FROM sends
		WHERE campaign_id = $1 AND status = $2
		ORDER BY created_at ASC, id ASC
	`, campaignID, domain.SendPending)
	if err != nil {
		return nil, fmt.Errorf("list pending sends: %w", err)
	}
	defer rows.Close()

	var out []domain.Send
	for rows.Next() {
		var s domain.Send
		if err := rows.Scan(
			&s.ID, &s.CampaignID, &s.SubscriberID, &s.Email, &s.Status,
			&s.SentAt, &s.Error, &s.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan send: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *SendRepo) MarkSent(ctx context.Context, id string, at time.Time) error {
	return r.settle(ctx, id, domain.SendSent, &at, "")
}

func (r *SendRepo) MarkFailed(ctx context.Context, id string, detail string) error {
	return r.settle(ctx, id, domain.SendFailed, nil, detail)
}

// settle moves one pending row to a terminal status. The status guard keeps
// a settled row settled even if two dispatchers ever raced past the lock.
func (r *SendRepo) settle(ctx context.Context, id string, status domain.SendStatus, at *time.Time, detail string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE sends
		SET status = $1, sent_at = $2, error = NULLIF($3, '')
		WHERE id = $4 AND status = $5
	`, status, at, detail, id, domain.SendPending)
	if err != nil {
		return fmt.Errorf("settle send: %w", err)
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

func (r *SendRepo) Stats(ctx context.Context, campaignID string) (domain.SendStats, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT status, COUNT(*)
		FROM sends
		WHERE campaign_id = $1
		GROUP BY status
	`, campaignID)
	if err != nil {
		return domain.SendStats{}, fmt.Errorf("send stats: %w", err)
	}
	defer rows.Close()

	var stats domain.SendStats
	for rows.Next() {
		var status domain.SendStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return domain.SendStats{}, fmt.Errorf("scan stats: %w", err)
		}
		switch status {
		case domain.SendPending:
			stats.Pending = count
		case domain.SendSent:
			stats.Sent = count
		case domain.SendFailed:
			stats.Failed = count
		}
	}
	return stats, rows.Err()
}
