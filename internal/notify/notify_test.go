package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type fakeEmail struct{ to, subject, body string }

func (f *fakeEmail) SendEmail(_ context.Context, to, subject, body string) error {
	f.to, f.subject, f.body = to, subject, body
	return nil
}

func TestComposite_RoutesByChannel(t *testing.T) {
	email := &fakeEmail{}
	c := Composite{Email: email}

	require.NoError(t, c.SendEmail(context.Background(), "a@x.com", "subj", "body"))
	assert.Equal(t, "a@x.com", email.to)

	err := c.SendSMS(context.Background(), "+15550001111", "hi")
	assert.ErrorIs(t, err, ErrChannelUnavailable)
}

func TestSMSAvailable(t *testing.T) {
	assert.False(t, SMSAvailable(Composite{Email: &fakeEmail{}}))
	assert.True(t, SMSAvailable(Composite{Email: &fakeEmail{}, SMS: newSNSSender(&fakePublisher{}, SNSConfig{}, zap.NewNop())}))
	assert.True(t, SMSAvailable(NewLogDispatcher(zap.NewNop())), "dev dispatcher logs every channel")
}

type fakePublisher struct {
	input *sns.PublishInput
	err   error
}

func (f *fakePublisher) Publish(_ context.Context, in *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	f.input = in
	if f.err != nil {
		return nil, f.err
	}
	return &sns.PublishOutput{MessageId: aws.String("msg-1")}, nil
}

func TestSNSSender_PublishesTransactionalSMS(t *testing.T) {
	pub := &fakePublisher{}
	s := newSNSSender(pub, SNSConfig{SenderID: "IMemory"}, zap.NewNop())

	require.NoError(t, s.SendSMS(context.Background(), "+15550001111", "code 123456"))
	require.NotNil(t, pub.input)
	assert.Equal(t, "+15550001111", aws.ToString(pub.input.PhoneNumber))
	assert.Equal(t, "code 123456", aws.ToString(pub.input.Message))
	assert.Equal(t, "Transactional", aws.ToString(pub.input.MessageAttributes["AWS.SNS.SMS.SMSType"].StringValue))
	assert.Equal(t, "IMemory", aws.ToString(pub.input.MessageAttributes["AWS.SNS.SMS.SenderID"].StringValue))
}

func TestSNSSender_WrapsPublishError(t *testing.T) {
	boom := errors.New("throttled")
	s := newSNSSender(&fakePublisher{err: boom}, SNSConfig{}, zap.NewNop())

	err := s.SendSMS(context.Background(), "+15550001111", "x")
	assert.ErrorIs(t, err, boom)
}

func TestNewSMTPSender_RequiresHostAndSender(t *testing.T) {
	_, err := NewSMTPSender(SMTPConfig{Port: 587, From: "no-reply@x.com"}, zap.NewNop())
	assert.Error(t, err)

	s, err := NewSMTPSender(SMTPConfig{Host: "smtp.x.com", Port: 465, From: "no-reply@x.com", FromName: "I-Memory"}, zap.NewNop())
	require.NoError(t, err)
	assert.True(t, s.dialer.SSL)
	assert.Contains(t, s.from, "no-reply@x.com")
}

func TestSMTPSender_HonoursCancelledContext(t *testing.T) {
	// Port 1 on localhost refuses or hangs; a cancelled context returns first either way.
	s, err := NewSMTPSender(SMTPConfig{Host: "127.0.0.1", Port: 1, From: "no-reply@x.com"}, zap.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, s.SendEmail(ctx, "a@x.com", "s", "b"))
}

func TestLogDispatcher_MasksRecipients(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	d := NewLogDispatcher(zap.New(core))

	require.NoError(t, d.SendSMS(context.Background(), "+15550001111", "code 654321"))
	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "+1********11", fields["phone"])
	assert.Equal(t, "code 654321", fields["body"])
}
