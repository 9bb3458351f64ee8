package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"go.uber.org/zap"

	"github.com/imemory/server/internal/logging"
)

// SNSConfig holds the settings for SNSSender.
type SNSConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	SenderID        string
	Timeout         time.Duration
}

type snsPublisher interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSSender sends transactional SMS through Amazon SNS.
type SNSSender struct {
	client   snsPublisher
	senderID string
	timeout  time.Duration
	log      *zap.Logger
}

// NewSNSSender builds an SNS client from static credentials, or from the
// default AWS credential chain when no keys are given.
func NewSNSSender(ctx context.Context, cfg SNSConfig, log *zap.Logger) (*SNSSender, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return newSNSSender(sns.NewFromConfig(awsCfg), cfg, log), nil
}

func newSNSSender(client snsPublisher, cfg SNSConfig, log *zap.Logger) *SNSSender {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &SNSSender{client: client, senderID: cfg.SenderID, timeout: timeout, log: log.Named("sns")}
}

func (s *SNSSender) SendSMS(ctx context.Context, phone, body string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	attrs := map[string]types.MessageAttributeValue{
		"AWS.SNS.SMS.SMSType": {
			DataType:    aws.String("String"),
			StringValue: aws.String("Transactional"),
		},
	}
	if s.senderID != "" {
		attrs["AWS.SNS.SMS.SenderID"] = types.MessageAttributeValue{
			DataType:    aws.String("String"),
			StringValue: aws.String(s.senderID),
		}
	}

	out, err := s.client.Publish(ctx, &sns.PublishInput{
		PhoneNumber:       aws.String(phone),
		Message:           aws.String(body),
		MessageAttributes: attrs,
	})
	if err != nil {
		s.log.Error("sms publish failed", logging.Phone(phone), zap.Error(err))
		return fmt.Errorf("failed to publish sms: %w", err)
	}

	s.log.Info("sms sent", logging.Phone(phone), zap.String("message_id", aws.ToString(out.MessageId)))
	return nil
}
