package campaign

import (
	"context"
	"time"

	"github.com/motorclub/mailer/internal/domain"
)

// Repository defines the data access contract for campaigns.
// Implementations must be safe for concurrent use.
type Repository interface {
	// Get returns a single campaign. Returns ErrNotFound if it doesn't exist.
	Get(ctx context.Context, id string) (*domain.Campaign, error)

	// Create inserts a new campaign in draft status.
	Create(ctx context.Context, c *domain.Campaign) error

	// MarkSending atomically transitions draft -> sending and zeroes the
	// success counter. Returns ErrInvalidState if the campaign is not in
	// draft; this is what makes only one prepare call succeed.
	MarkSending(ctx context.Context, id string) error

	// MarkSent transitions sending -> sent, recording the completion time
	// and the count of ledger rows that ended sent.
	MarkSent(ctx context.Context, id string, sentAt time.Time, sentCount int) error

	// ListScheduledDue returns draft campaigns whose scheduled time has
	// passed, oldest first.
	ListScheduledDue(ctx context.Context, now time.Time) ([]domain.Campaign, error)

	// ListSending returns campaigns stuck mid-dispatch, oldest first. Used
	// to resume deliveries after a crash or shutdown.
	ListSending(ctx context.Context) ([]domain.Campaign, error)
}

// SendLedger defines the data access contract for the send ledger. One row
// per (campaign, subscriber) pair; the unique pairing is enforced by the
// implementation and is the engine's idempotency key.
type SendLedger interface {
	// Get returns a single ledger row. Returns ErrNotFound if absent.
	Get(ctx context.Context, id string) (*domain.Send, error)

	// CreateIfAbsent inserts pending rows, skipping pairs that already have
	// a row in any status. It never resets a terminal row. Returns the
	// number of rows actually created.
	CreateIfAbsent(ctx context.Context, sends []domain.Send) (int, error)

	// ListPending returns a campaign's pending rows in insertion order.
	ListPending(ctx context.Context, campaignID string) ([]domain.Send, error)

	// MarkSent settles one row as delivered.
	MarkSent(ctx context.Context, id string, at time.Time) error

	// MarkFailed settles one row with the transport's error detail.
	MarkFailed(ctx context.Context, id string, detail string) error

	// Stats counts a campaign's rows grouped by status, zero when absent.
	Stats(ctx context.Context, campaignID string) (domain.SendStats, error)
}

// SubscriberDirectory is the engine's read access to the membership system's
// subscriber list, plus the status flip the unsubscribe endpoint needs.
type SubscriberDirectory interface {
	// ListConfirmed returns all currently opt-in subscribers.
	ListConfirmed(ctx context.Context) ([]domain.Subscriber, error)

	// Unsubscribe marks one subscriber as opted out.
	Unsubscribe(ctx context.Context, subscriberID string) error
}
