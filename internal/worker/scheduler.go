// Package worker runs the background delivery loop for scheduled campaigns.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/motorclub/mailer/internal/pkg/logger"
	"github.com/motorclub/mailer/internal/service/campaign"
)

// DefaultPollInterval is how often the scheduler checks for due campaigns.
const DefaultPollInterval = 30 * time.Second

// Scheduler polls for draft campaigns whose scheduled time has arrived,
// prepares them, and dispatches them. Multiple instances can run against
// the same database: the draft -> sending transition admits one winner per
// campaign, and dispatch itself runs under the per-campaign lock.
type Scheduler struct {
	campaigns    campaign.Repository
	svc          *campaign.Service
	dispatcher   *campaign.Dispatcher
	pollInterval time.Duration

	// Control
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
	mu      sync.Mutex
}

// NewScheduler creates a scheduler. A zero pollInterval selects the default.
func NewScheduler(campaigns campaign.Repository, svc *campaign.Service, dispatcher *campaign.Dispatcher, pollInterval time.Duration) *Scheduler {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	return &Scheduler{
		campaigns:    campaigns,
		svc:          svc,
		dispatcher:   dispatcher,
		pollInterval: pollInterval,
	}
}

// Start begins the polling loop.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler already running")
	}
	s.running = true
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.mu.Unlock()

	logger.Info("scheduler starting", "poll_interval", s.pollInterval.String())

	s.wg.Add(1)
	go s.loop()
	return nil
}

// Stop gracefully stops the scheduler and waits for an in-flight pass to
// finish or yield at its next cancellation point.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
	logger.Info("scheduler stopped")
}

func (s *Scheduler) loop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(s.ctx)
		}
	}
}

// runOnce processes every campaign that is due right now, then resumes any
// campaign left mid-dispatch by a previous run.
func (s *Scheduler) runOnce(ctx context.Context) {
	due, err := s.campaigns.ListScheduledDue(ctx, time.Now().UTC())
	if err != nil {
		logger.Error("list scheduled campaigns", "error", err.Error())
		return
	}
	for _, c := range due {
		if ctx.Err() != nil {
			return
		}
		s.deliver(ctx, c.ID)
	}

	stuck, err := s.campaigns.ListSending(ctx)
	if err != nil {
		logger.Error("list sending campaigns", "error", err.Error())
		return
	}
	for _, c := range stuck {
		if ctx.Err() != nil {
			return
		}
		s.resume(ctx, c.ID)
	}
}

func (s *Scheduler) deliver(ctx context.Context, campaignID string) {
	prepared, err := s.svc.Prepare(ctx, campaignID)
	if errors.Is(err, campaign.ErrInvalidState) {
		// Another instance won the draft -> sending transition.
		return
	}
	if err != nil {
		logger.Error("prepare scheduled campaign", "campaign_id", campaignID, "error", err.Error())
		return
	}
	logger.Info("scheduled campaign prepared", "campaign_id", campaignID, "prepared_count", prepared)

	result, err := s.dispatcher.Dispatch(ctx, campaignID)
	if errors.Is(err, campaign.ErrLocked) {
		return
	}
	if err != nil {
		// Pending rows survive; the resume pass picks the campaign up again.
		logger.Error("dispatch scheduled campaign", "campaign_id", campaignID, "error", err.Error())
		return
	}
	logger.Info("scheduled campaign dispatched",
		"campaign_id", campaignID,
		"succeeded", result.Succeeded,
		"failed", result.Failed,
	)
}

// resume drains what is left of a campaign that never finished dispatching.
func (s *Scheduler) resume(ctx context.Context, campaignID string) {
	result, err := s.dispatcher.Dispatch(ctx, campaignID)
	if errors.Is(err, campaign.ErrLocked) || errors.Is(err, campaign.ErrInvalidState) {
		return
	}
	if err != nil {
		logger.Error("resume campaign", "campaign_id", campaignID, "error", err.Error())
		return
	}
	logger.Info("campaign resumed",
		"campaign_id", campaignID,
		"succeeded", result.Succeeded,
		"failed", result.Failed,
	)
}
