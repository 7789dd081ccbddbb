package mailer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/cloudsecnetwork/phishintel/internal/domain"
	"github.com/cloudsecnetwork/phishintel/internal/pkg/logger"
)

// SESTransport delivers mail through AWS SES using the SDK v2. Clients are
// cached per profile since SDK construction is not free.
type SESTransport struct {
	mu      sync.Mutex
	clients map[string]*sesv2.Client // keyed by profile ID
}

// NewSESTransport creates the SES transport.
func NewSESTransport() *SESTransport {
	return &SESTransport{clients: make(map[string]*sesv2.Client)}
}

func (t *SESTransport) client(ctx context.Context, p *domain.SenderProfile) (*sesv2.Client, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if c, ok := t.clients[p.ID]; ok {
		return c, nil
	}

	region := p.AWSRegion
	if region == "" {
		region = "us-east-1"
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if p.AWSKey != "" && p.AWSSecret != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(p.AWSKey, p.AWSSecret, "")))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("ses config for profile %s: %w", p.ID, err)
	}

	c := sesv2.NewFromConfig(cfg)
	t.clients[p.ID] = c
	return c, nil
}

// Send delivers a single message through AWS SES.
func (t *SESTransport) Send(ctx context.Context, p *domain.SenderProfile, msg *domain.EmailMessage) (*domain.SendResult, error) {
	client, err := t.client(ctx, p)
	if err != nil {
		return nil, err
	}

	fromName := msg.FromName
	if fromName == "" {
		fromName = p.DisplayName
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(fmt.Sprintf("%s <%s>", fromName, p.FromEmail)),
		Destination:      &types.Destination{ToAddresses: []string{msg.To}},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(msg.Subject), Charset: aws.String("UTF-8")},
				Body: &types.Body{
					Html: &types.Content{Data: aws.String(msg.HTMLContent), Charset: aws.String("UTF-8")},
				},
			},
		},
		EmailTags: []types.MessageTag{
			{Name: aws.String("campaign_id"), Value: aws.String(msg.CampaignID)},
			{Name: aws.String("tracking_id"), Value: aws.String(msg.TrackingID)},
		},
	}

	result, err := client.SendEmail(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("ses send: %w", err)
	}

	messageID := ""
	if result.MessageId != nil {
		messageID = *result.MessageId
	}
	logger.Debug("ses send ok", "recipient", msg.To, "message_id", messageID)

	return &domain.SendResult{
		Success:   true,
		MessageID: messageID,
		Vendor:    domain.VendorSES,
		SentAt:    time.Now(),
	}, nil
}

// Verify checks SES reachability and credentials with a GetAccount call.
func (t *SESTransport) Verify(ctx context.Context, p *domain.SenderProfile) error {
	client, err := t.client(ctx, p)
	if err != nil {
		return err
	}
	if _, err := client.GetAccount(ctx, &sesv2.GetAccountInput{}); err != nil {
		return fmt.Errorf("ses credentials rejected: %w", err)
	}
	return nil
}
