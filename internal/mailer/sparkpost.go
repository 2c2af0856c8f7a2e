package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	appconfig "github.com/motorclub/mailer/internal/config"
)

// SparkPostMailer sends through the SparkPost transmissions API.
type SparkPostMailer struct {
	apiKey     string
	baseURL    string
	fromName   string
	fromEmail  string
	replyTo    string
	httpClient *http.Client
}

// NewSparkPostMailer creates a SparkPost-backed mailer.
func NewSparkPostMailer(spCfg appconfig.SparkPostConfig, delivery appconfig.DeliveryConfig) *SparkPostMailer {
	return &SparkPostMailer{
		apiKey:    spCfg.APIKey,
		baseURL:   spCfg.BaseURL,
		fromName:  delivery.FromName,
		fromEmail: delivery.FromEmail,
		replyTo:   delivery.ReplyTo,
		httpClient: &http.Client{
			Timeout: time.Duration(spCfg.TimeoutSeconds) * time.Second,
		},
	}
}

// Send delivers one message via a SparkPost transmission. Correlation tags
// are carried in the recipient metadata.
func (m *SparkPostMailer) Send(ctx context.Context, msg Message) error {
	payload := map[string]interface{}{
		"recipients": []map[string]interface{}{
			{
				"address":  map[string]string{"email": msg.To},
				"metadata": msg.Tags,
			},
		},
		"content": map[string]interface{}{
			"from": map[string]string{
				"name":  m.fromName,
				"email": m.fromEmail,
			},
			"reply_to": m.replyTo,
			"subject":  msg.Subject,
			"html":     msg.HTMLBody,
			"text":     msg.TextBody,
		},
		"options": map[string]interface{}{
			"open_tracking":  false,
			"click_tracking": false,
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return &TransportError{Detail: "marshal transmission", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		m.baseURL+"/api/v1/transmissions", bytes.NewReader(body))
	if err != nil {
		return &TransportError{Detail: "build request", Err: err}
	}
	req.Header.Set("Authorization", m.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return &TransportError{Detail: "sparkpost request", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &TransportError{
			Detail: fmt.Sprintf("sparkpost status %d: %s", resp.StatusCode, bytes.TrimSpace(detail)),
		}
	}
	return nil
}
