package domain

import "time"

// SubscriberStatus enumerates the states a subscriber can be in.
type SubscriberStatus string

const (
	SubscriberConfirmed    SubscriberStatus = "confirmed"
	SubscriberUnconfirmed  SubscriberStatus = "unconfirmed"
	SubscriberUnsubscribed SubscriberStatus = "unsubscribed"
)

// Subscriber represents a single opt-in recipient. Subscription management
// itself lives in the membership system; the delivery engine only reads
// confirmed subscribers and flips status on unsubscribe.
type Subscriber struct {
	ID             string           `json:"id" db:"id"`
	Email          string           `json:"email" db:"email"`
	Status         SubscriberStatus `json:"status" db:"status"`
	SubscribedAt   time.Time        `json:"subscribed_at" db:"subscribed_at"`
	UnsubscribedAt *time.Time       `json:"unsubscribed_at" db:"unsubscribed_at"`
}
