package campaign

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/motorclub/mailer/internal/domain"
	"github.com/motorclub/mailer/internal/mailer"
	"github.com/motorclub/mailer/internal/pkg/logger"
)

// DispatchResult tallies one dispatch run. Succeeded and Failed count only
// rows processed in this run; Total is their sum.
type DispatchResult struct {
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Total     int `json:"total"`
}

// Dispatch drains a sending campaign's pending ledger rows through the
// outbound transport and transitions the campaign to sent.
//
// Each row settles independently: a transport failure is recorded on the row
// and the loop continues, so one bad address never stops delivery to the
// rest of the list. Only pending rows are loaded, so an interrupted run can
// be re-invoked and will skip everything already settled. Callers must
// serialize Dispatch per campaign; two concurrent runs would read
// overlapping pending snapshots and double-send.
//
// The terminal transition is unconditional: a campaign whose sends all
// failed still ends sent, with the failures visible in Stats. Partial
// delivery is a normal outcome, not a pipeline fault.
func (s *Service) Dispatch(ctx context.Context, campaignID string) (*DispatchResult, error) {
	c, err := s.campaigns.Get(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if c.Status != domain.CampaignSending {
		return nil, fmt.Errorf("dispatch from %s: %w", c.Status, ErrInvalidState)
	}

	rows, err := s.ledger.ListPending(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("load pending rows: %w", err)
	}

	logger.Info("dispatch started", "campaign_id", campaignID, "pending", len(rows))

	result := &DispatchResult{}
	for _, row := range rows {
		// Cancellation takes effect between rows only, never mid-flight,
		// so a row can't end up with an ambiguous terminal status.
		if err := ctx.Err(); err != nil {
			return result, err
		}

		if err := s.dispatchOne(ctx, c, row); err != nil {
			var terr *mailer.TransportError
			if errors.As(err, &terr) {
				if lerr := s.ledger.MarkFailed(ctx, row.ID, terr.Error()); lerr != nil {
					return result, fmt.Errorf("settle failed row: %w", lerr)
				}
				result.Failed++
				logger.Warn("send failed",
					"campaign_id", campaignID,
					"send_id", row.ID,
					"recipient", row.Email,
					"error", terr.Error())
			} else {
				// Structural fault (render or ledger write): abort the
				// pass. Settled rows stay settled, the rest stay pending.
				return result, err
			}
		} else {
			result.Succeeded++
		}
		result.Total++

		s.pace(ctx)
	}

	stats, err := s.ledger.Stats(ctx, campaignID)
	if err != nil {
		return result, fmt.Errorf("final stats: %w", err)
	}
	if err := s.campaigns.MarkSent(ctx, campaignID, time.Now().UTC(), stats.Sent); err != nil {
		return result, err
	}

	logger.Info("dispatch complete",
		"campaign_id", campaignID,
		"succeeded", result.Succeeded,
		"failed", result.Failed,
		"total", result.Total)

	return result, nil
}

func (s *Service) dispatchOne(ctx context.Context, c *domain.Campaign, row domain.Send) error {
	msg, err := s.renderer.Render(c.Content, s.signer.URL(row.ID), map[string]interface{}{
		"email": row.Email,
	})
	if err != nil {
		return fmt.Errorf("render send %s: %w", row.ID, err)
	}

	if err := s.transport.Send(ctx, mailer.Message{
		To:       row.Email,
		Subject:  c.Subject,
		HTMLBody: msg.HTML,
		TextBody: msg.Text,
		Tags: map[string]string{
			mailer.TagCampaignID: c.ID,
			mailer.TagSendID:     row.ID,
			mailer.TagKind:       "campaign",
		},
	}); err != nil {
		return err
	}

	return s.ledger.MarkSent(ctx, row.ID, time.Now().UTC())
}

// pace applies the fixed inter-send delay, cut short by cancellation.
func (s *Service) pace(ctx context.Context) {
	if s.pacingDelay <= 0 {
		return
	}
	t := time.NewTimer(s.pacingDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
