package campaign

import (
	"context"
	"fmt"

	"github.com/motorclub/mailer/internal/pkg/distlock"
)

// LockFactory returns the dispatch lock for one campaign. The key is the
// campaign id; implementations decide the backend (Redis or PG advisory).
type LockFactory func(campaignID string) distlock.Lock

// Dispatcher wraps Service.Dispatch with the per-campaign lock that keeps
// two dispatch runs off the same campaign. Both the HTTP layer and the
// scheduled-send worker go through here; nothing calls Service.Dispatch
// directly in production wiring.
type Dispatcher struct {
	svc   *Service
	locks LockFactory
}

// NewDispatcher creates a lock-guarded dispatcher.
func NewDispatcher(svc *Service, locks LockFactory) *Dispatcher {
	return &Dispatcher{svc: svc, locks: locks}
}

// Dispatch acquires the campaign's lock, runs the dispatch pass, and
// releases the lock. Returns ErrLocked when another dispatcher holds it.
func (d *Dispatcher) Dispatch(ctx context.Context, campaignID string) (*DispatchResult, error) {
	lock := d.locks(campaignID)

	ok, err := lock.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire dispatch lock: %w", err)
	}
	if !ok {
		return nil, ErrLocked
	}
	defer lock.Release(context.WithoutCancel(ctx))

	return d.svc.Dispatch(ctx, campaignID)
}
