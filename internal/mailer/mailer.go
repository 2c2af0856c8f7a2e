// Package mailer defines the outbound mail transport and its provider
// implementations. The delivery engine only sees the Mailer interface; which
// ESP actually carries the mail is a configuration decision.
package mailer

import (
	"context"
	"fmt"
)

// Correlation tag keys attached to every outbound message. Downstream
// systems (bounce processing, log correlation) key on these.
const (
	TagCampaignID = "campaign_id"
	TagSendID     = "send_id"
	TagKind       = "kind" // "campaign" or "test"
)

// Message is one fully rendered email ready for a provider.
type Message struct {
	To       string
	Subject  string
	HTMLBody string
	TextBody string
	Tags     map[string]string
}

// TransportError is a single-recipient delivery failure: bad address,
// transient network fault, provider rejection. Dispatch records it on the
// ledger row instead of propagating it.
type TransportError struct {
	Detail string
	Err    error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transport: %s: %v", e.Detail, e.Err)
	}
	return fmt.Sprintf("transport: %s", e.Detail)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Mailer delivers a single message. Implementations return *TransportError
// for per-recipient failures so callers can tell them apart from structural
// ones.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}
