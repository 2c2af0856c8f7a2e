package mailer

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	appconfig "github.com/motorclub/mailer/internal/config"
)

// SESMailer sends through AWS SES v2.
type SESMailer struct {
	client    *sesv2.Client
	fromName  string
	fromEmail string
	replyTo   string
	timeout   time.Duration
}

// NewSESMailer creates an SES-backed mailer with static credentials.
func NewSESMailer(ctx context.Context, sesCfg appconfig.SESConfig, delivery appconfig.DeliveryConfig) (*SESMailer, error) {
	creds := credentials.NewStaticCredentialsProvider(
		sesCfg.AccessKey,
		sesCfg.SecretKey,
		"", // session token (empty for static creds)
	)

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(sesCfg.Region),
		awsconfig.WithCredentialsProvider(creds),
	)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	return &SESMailer{
		client:    sesv2.NewFromConfig(awsCfg),
		fromName:  delivery.FromName,
		fromEmail: delivery.FromEmail,
		replyTo:   delivery.ReplyTo,
		timeout:   time.Duration(sesCfg.TimeoutSeconds) * time.Second,
	}, nil
}

// Send delivers one message via the SES SendEmail API. Correlation tags ride
// along as SES message tags.
func (m *SESMailer) Send(ctx context.Context, msg Message) error {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	tags := make([]types.MessageTag, 0, len(msg.Tags))
	for k, v := range msg.Tags {
		tags = append(tags, types.MessageTag{
			Name:  aws.String(k),
			Value: aws.String(v),
		})
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(fmt.Sprintf("%s <%s>", m.fromName, m.fromEmail)),
		Destination: &types.Destination{
			ToAddresses: []string{msg.To},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(msg.Subject)},
				Body: &types.Body{
					Html: &types.Content{Data: aws.String(msg.HTMLBody)},
					Text: &types.Content{Data: aws.String(msg.TextBody)},
				},
			},
		},
		EmailTags: tags,
	}
	if m.replyTo != "" {
		input.ReplyToAddresses = []string{m.replyTo}
	}

	if _, err := m.client.SendEmail(ctx, input); err != nil {
		return &TransportError{Detail: "ses send", Err: err}
	}
	return nil
}
