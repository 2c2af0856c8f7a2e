// Package postgres implements the campaign service repositories against
// PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/motorclub/mailer/internal/domain"
	"github.com/motorclub/mailer/internal/service/campaign"
)

// CampaignRepo implements campaign.Repository against PostgreSQL.
type CampaignRepo struct{ db *sql.DB }

// NewCampaignRepo creates a Postgres-backed campaign repository.
func NewCampaignRepo(db *sql.DB) *CampaignRepo { return &CampaignRepo{db: db} }

func (r *CampaignRepo) Get(ctx context.Context, id string) (*domain.Campaign, error) {
	c := &domain.Campaign{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, title, subject, content, status, created_by,
		       scheduled_at, sent_at, sent_count, created_at, updated_at
		FROM campaigns
		WHERE id = $1
	`, id).Scan(
		&c.ID, &c.Title, &c.Subject, &c.Content, &c.Status, &c.CreatedBy,
		&c.ScheduledAt, &c.SentAt, &c.SentCount, &c.CreatedAt, &c.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, campaign.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get campaign: %w", err)
	}
	return c, nil
}

func (r *CampaignRepo) Create(ctx context.Context, c *domain.Campaign) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO campaigns
			(id, title, subject, content, status, created_by, scheduled_at,
			 sent_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 0, NOW(), NOW())
	`, c.ID, c.Title, c.Subject, c.Content, c.Status, c.CreatedBy, c.ScheduledAt)
	if err != nil {
		return fmt.Errorf("create campaign: %w", err)
	}
	return nil
}

// MarkSending is the engine's draft -> sending gate. The WHERE clause makes
// the transition atomic: of two concurrent prepare calls, exactly one
// matches a draft row and the other gets ErrInvalidState.
func (r *CampaignRepo) MarkSending(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE campaigns
		SET status = $1, sent_count = 0, updated_at = NOW()
		WHERE id = $2 AND status = $3
	`, domain.CampaignSending, id, domain.CampaignDraft)
	if err != nil {
		return fmt.Errorf("mark sending: %w", err)
	}
	return r.checkTransition(ctx, res, id)
}

func (r *CampaignRepo) MarkSent(ctx context.Context, id string, sentAt time.Time, sentCount int) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE campaigns
		SET status = $1, sent_at = $2, sent_count = $3, updated_at = NOW()
		WHERE id = $4 AND status = $5
	`, domain.CampaignSent, sentAt, sentCount, id, domain.CampaignSending)
	if err != nil {
		return fmt.Errorf("mark sent: %w", err)
	}
	return r.checkTransition(ctx, res, id)
}

// checkTransition distinguishes "campaign missing" from "campaign in the
// wrong status" when a guarded update matched nothing.
func (r *CampaignRepo) checkTransition(ctx context.Context, res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n > 0 {
		return nil
	}
	var exists bool
	if err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM campaigns WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("check campaign exists: %w", err)
	}
	if !exists {
		return campaign.ErrNotFound
	}
	return campaign.ErrInvalidState
}

func (r *CampaignRepo) ListScheduledDue(ctx context.Context, now time.Time) ([]domain.Campaign, error) {
	return r.list(ctx, `
		SELECT id, title, subject, content, status, created_by,
		       scheduled_at, sent_at, sent_count, created_at, updated_at
		FROM campaigns
		WHERE status = $1 AND scheduled_at IS NOT NULL AND scheduled_at <= $2
		ORDER BY scheduled_at ASC
	`, domain.CampaignDraft, now)
}

func (r *CampaignRepo) ListSending(ctx context.Context) ([]domain.Campaign, error) {
	return r.list(ctx, `
		SELECT id, title, subject, content, status, created_by,
		       scheduled_at, sent_at, sent_count, created_at, updated_at
		FROM campaigns
		WHERE status = $1
		ORDER BY updated_at ASC
	`, domain.CampaignSending)
}

func (r *CampaignRepo) list(ctx context.Context, query string, args ...interface{}) ([]domain.Campaign, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list campaigns: %w", err)
	}
	defer rows.Close()

	var out []domain.Campaign
	for rows.Next() {
		var c domain.Campaign
		if err := rows.Scan(
			&c.ID, &c.Title, &c.Subject, &c.Content, &c.Status, &c.CreatedBy,
			&c.ScheduledAt, &c.SentAt, &c.SentCount, &c.CreatedAt, &c.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan campaign: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
