package domain

import "time"

// CampaignStatus enumerates the lifecycle states of a campaign.
// A campaign only ever moves forward: draft -> sending -> sent.
type CampaignStatus string

const (
	CampaignDraft   CampaignStatus = "draft"
	CampaignSending CampaignStatus = "sending"
	CampaignSent    CampaignStatus = "sent"
)

// Valid reports whether s is a known campaign status.
func (s CampaignStatus) Valid() bool {
	return s == CampaignDraft || s == CampaignSending || s == CampaignSent
}

// Campaign represents one bulk mailing to the club's subscriber list.
type Campaign struct {
	ID          string         `json:"id" db:"id"`
	Title       string         `json:"title" db:"title"`
	Subject     string         `json:"subject" db:"subject"`
	Content     string         `json:"content" db:"content"`
	Status      CampaignStatus `json:"status" db:"status"`
	CreatedBy   string         `json:"created_by" db:"created_by"`
	ScheduledAt *time.Time     `json:"scheduled_at" db:"scheduled_at"`
	SentAt      *time.Time     `json:"sent_at" db:"sent_at"`
	SentCount   int            `json:"sent_count" db:"sent_count"`
	CreatedAt   time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at" db:"updated_at"`
}

// IsTerminal returns true if the campaign is in a final state.
func (c *Campaign) IsTerminal() bool {
	return c.Status == CampaignSent
}

// SendStatus enumerates the lifecycle of a single ledger row.
// Pending rows are the only dispatchable ones; sent and failed are terminal.
type SendStatus string

const (
	SendPending SendStatus = "pending"
	SendSent    SendStatus = "sent"
	SendFailed  SendStatus = "failed"
)

// Valid reports whether s is a known send status.
func (s SendStatus) Valid() bool {
	return s == SendPending || s == SendSent || s == SendFailed
}

// Terminal reports whether a row in this status may never be dispatched again.
func (s SendStatus) Terminal() bool {
	return s == SendSent || s == SendFailed
}

// Send is the ledger record of one delivery attempt for one
// (campaign, subscriber) pair. The pair is unique per campaign, which is what
// makes preparation idempotent and dispatch resumable. Email is denormalized
// at preparation time so later subscriber edits never change what a
// historical row says was mailed.
type Send struct {
	ID           string     `json:"id" db:"id"`
	CampaignID   string     `json:"campaign_id" db:"campaign_id"`
	SubscriberID string     `json:"subscriber_id" db:"subscriber_id"`
	Email        string     `json:"email" db:"email"`
	Status       SendStatus `json:"status" db:"status"`
	SentAt       *time.Time `json:"sent_at" db:"sent_at"`
	Error        string     `json:"error,omitempty" db:"error"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
}

// SendStats summarizes a campaign's ledger by row status.
type SendStats struct {
	Pending int `json:"pending"`
	Sent    int `json:"sent"`
	Failed  int `json:"failed"`
}

// Total returns the number of ledger rows covered by the summary.
func (s SendStats) Total() int {
	return s.Pending + s.Sent + s.Failed
}
