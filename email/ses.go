package email

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/velmie/unlocknotify"
)

const charset = "UTF-8"

// SESAPI is the subset of the SES v2 client used by SESSender.
type SESAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESSender delivers messages through Amazon SES v2.
type SESSender struct {
	client SESAPI
	from   string
}

var _ unlocknotify.Notifier = (*SESSender)(nil)

// NewSESSender wraps an SES client.
func NewSESSender(client SESAPI, from string) (*SESSender, error) {
	if client == nil {
		return nil, ErrClientRequired
	}
	if strings.TrimSpace(from) == "" {
		return nil, ErrFromRequired
	}

	return &SESSender{client: client, from: from}, nil
}

// NewSESSenderFromEnv loads the default AWS configuration (region, credentials) and builds a sender.
func NewSESSenderFromEnv(ctx context.Context, from string) (*SESSender, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("email: load aws config: %w", err)
	}

	return NewSESSender(sesv2.NewFromConfig(cfg), from)
}

// Send implements unlocknotify.Notifier.
func (s *SESSender) Send(ctx context.Context, to string, msg unlocknotify.Message) error {
	if strings.TrimSpace(to) == "" {
		return ErrRecipientRequired
	}

	body := &types.Body{
		Text: &types.Content{Data: aws.String(msg.Text), Charset: aws.String(charset)},
	}
	if msg.HTML != "" {
		body.Html = &types.Content{Data: aws.String(msg.HTML), Charset: aws.String(charset)}
	}

	_, err := s.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(s.from),
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(msg.Subject), Charset: aws.String(charset)},
				Body:    body,
			},
		},
	})
	if err != nil {
		return fmt.Errorf("email: ses send: %w", err)
	}

	return nil
}
