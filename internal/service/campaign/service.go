package campaign

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/motorclub/mailer/internal/domain"
	"github.com/motorclub/mailer/internal/mailer"
	"github.com/motorclub/mailer/internal/pkg/logger"
	"github.com/motorclub/mailer/internal/render"
)

// Service implements the campaign delivery engine. It coordinates the
// repository layer, the template renderer, and the outbound transport.
// All public methods are safe for concurrent use if the underlying
// repositories are concurrency-safe; Dispatch additionally requires the
// caller to serialize per campaign (see Dispatcher).
type Service struct {
	campaigns   Repository
	ledger      SendLedger
	subscribers SubscriberDirectory
	transport   mailer.Mailer
	renderer    *render.Renderer
	signer      *render.UnsubscribeSigner

	// pacingDelay is the fixed wait after every delivery attempt.
	pacingDelay time.Duration
}

// NewService creates a campaign service.
func NewService(
	campaigns Repository,
	ledger SendLedger,
	subscribers SubscriberDirectory,
	transport mailer.Mailer,
	renderer *render.Renderer,
	signer *render.UnsubscribeSigner,
	pacingDelay time.Duration,
) *Service {
	return &Service{
		campaigns:   campaigns,
		ledger:      ledger,
		subscribers: subscribers,
		transport:   transport,
		renderer:    renderer,
		signer:      signer,
		pacingDelay: pacingDelay,
	}
}

// CreateInput holds the fields for creating a new campaign.
type CreateInput struct {
	Title       string     `json:"title"`
	Subject     string     `json:"subject"`
	Content     string     `json:"content"`
	CreatedBy   string     `json:"created_by"`
	ScheduledAt *time.Time `json:"scheduled_at,omitempty"`
}

// Create validates and persists a new campaign in draft status.
func (s *Service) Create(ctx context.Context, input CreateInput) (*domain.Campaign, error) {
	if input.Title == "" {
		return nil, fmt.Errorf("title is required")
	}
	if input.Subject == "" {
		return nil, fmt.Errorf("subject is required")
	}

	c := &domain.Campaign{
		ID:          uuid.New().String(),
		Title:       input.Title,
		Subject:     input.Subject,
		Content:     input.Content,
		Status:      domain.CampaignDraft,
		CreatedBy:   input.CreatedBy,
		ScheduledAt: input.ScheduledAt,
	}

	if err := s.campaigns.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Get returns a single campaign.
func (s *Service) Get(ctx context.Context, id string) (*domain.Campaign, error) {
	return s.campaigns.Get(ctx, id)
}

// Prepare snapshots the confirmed subscriber list into pending ledger rows
// and transitions the campaign from draft to sending. Re-invoking on a
// sending campaign is rejected, which protects against double-snapshotting
// mid-flight. Returns the number of rows now pending.
func (s *Service) Prepare(ctx context.Context, campaignID string) (int, error) {
	c, err := s.campaigns.Get(ctx, campaignID)
	if err != nil {
		return 0, err
	}
	if c.Status != domain.CampaignDraft {
		return 0, fmt.Errorf("prepare from %s: %w", c.Status, ErrInvalidState)
	}

	subs, err := s.subscribers.ListConfirmed(ctx)
	if err != nil {
		return 0, fmt.Errorf("list confirmed subscribers: %w", err)
	}

	rows := make([]domain.Send, 0, len(subs))
	for _, sub := range subs {
		rows = append(rows, domain.Send{
			ID:           uuid.New().String(),
			CampaignID:   campaignID,
			SubscriberID: sub.ID,
			Email:        sub.Email,
			Status:       domain.SendPending,
		})
	}

	created, err := s.ledger.CreateIfAbsent(ctx, rows)
	if err != nil {
		return 0, fmt.Errorf("snapshot ledger: %w", err)
	}

	if err := s.campaigns.MarkSending(ctx, campaignID); err != nil {
		return 0, err
	}

	stats, err := s.ledger.Stats(ctx, campaignID)
	if err != nil {
		return 0, fmt.Errorf("count pending: %w", err)
	}

	logger.Info("campaign prepared",
		"campaign_id", campaignID,
		"subscribers", len(subs),
		"rows_created", created,
		"pending", stats.Pending)

	return stats.Pending, nil
}

// Stats summarizes a campaign's ledger by row status. Pure read; safe to
// call at any point in the lifecycle, including mid-dispatch.
func (s *Service) Stats(ctx context.Context, campaignID string) (domain.SendStats, error) {
	if _, err := s.campaigns.Get(ctx, campaignID); err != nil {
		return domain.SendStats{}, err
	}
	return s.ledger.Stats(ctx, campaignID)
}

// Rendered is the output of Preview.
type Rendered struct {
	Subject string `json:"subject"`
	HTML    string `json:"html"`
	Text    string `json:"text"`
}

// Preview renders the campaign body with a placeholder unsubscribe
// reference. Deterministic: two previews of an unmodified campaign are
// byte-identical.
func (s *Service) Preview(ctx context.Context, campaignID string) (*Rendered, error) {
	c, err := s.campaigns.Get(ctx, campaignID)
	if err != nil {
		return nil, err
	}

	msg, err := s.renderer.Render(c.Content, render.PreviewToken, nil)
	if err != nil {
		return nil, fmt.Errorf("render preview: %w", err)
	}
	return &Rendered{Subject: c.Subject, HTML: msg.HTML, Text: msg.Text}, nil
}

// SendTest delivers the campaign once to the given address with a neutral
// unsubscribe placeholder, tagged as a test so ledger accounting never sees
// it. The campaign may be in any status. Transport failures propagate.
func (s *Service) SendTest(ctx context.Context, campaignID, address string) error {
	c, err := s.campaigns.Get(ctx, campaignID)
	if err != nil {
		return err
	}

	msg, err := s.renderer.Render(c.Content, render.TestSendURL, nil)
	if err != nil {
		return fmt.Errorf("render test send: %w", err)
	}

	return s.transport.Send(ctx, mailer.Message{
		To:       address,
		Subject:  c.Subject,
		HTMLBody: msg.HTML,
		TextBody: msg.Text,
		Tags: map[string]string{
			mailer.TagCampaignID: c.ID,
			mailer.TagKind:       "test",
		},
	})
}

// Unsubscribe resolves a signed unsubscribe reference to its ledger row and
// opts the subscriber out.
func (s *Service) Unsubscribe(ctx context.Context, token, signature string) error {
	sendID, err := s.signer.Verify(token, signature)
	if err != nil {
		return fmt.Errorf("verify unsubscribe token: %w", err)
	}

	row, err := s.ledger.Get(ctx, sendID)
	if err != nil {
		return err
	}

	if err := s.subscribers.Unsubscribe(ctx, row.SubscriberID); err != nil {
		return fmt.Errorf("unsubscribe subscriber: %w", err)
	}

	logger.Info("subscriber unsubscribed",
		"campaign_id", row.CampaignID,
		"subscriber_id", row.SubscriberID)
	return nil
}
