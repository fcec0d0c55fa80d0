// internal/common/aws/aws_test.go
package aws

import (
	"context"
	"errors"
	"testing"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockSNS struct {
	PublishFunc func(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

func (m *mockSNS) Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
	return m.PublishFunc(ctx, params, optFns...)
}

type mockSES struct {
	SendEmailFunc func(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

func (m *mockSES) SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	return m.SendEmailFunc(ctx, params, optFns...)
}

func TestSNSClient_SendSMS(t *testing.T) {
	var got *sns.PublishInput
	client := NewSNSClientFrom(&mockSNS{
		PublishFunc: func(_ context.Context, params *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
			got = params
			return &sns.PublishOutput{MessageId: awssdk.String("msg-1")}, nil
		},
	}, "BancoZim")

	id, err := client.SendSMS(context.Background(), "+263772000001", "hello")
	require.NoError(t, err)
	assert.Equal(t, "msg-1", id)

	require.NotNil(t, got)
	assert.Equal(t, "+263772000001", awssdk.ToString(got.PhoneNumber))
	assert.Equal(t, "hello", awssdk.ToString(got.Message))
	assert.Equal(t, "Transactional", awssdk.ToString(got.MessageAttributes["AWS.SNS.SMS.SMSType"].StringValue))
	assert.Equal(t, "BancoZim", awssdk.ToString(got.MessageAttributes["AWS.SNS.SMS.SenderID"].StringValue))
}

func TestSNSClient_NoSenderID(t *testing.T) {
	client := NewSNSClientFrom(&mockSNS{
		PublishFunc: func(_ context.Context, params *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
			_, ok := params.MessageAttributes["AWS.SNS.SMS.SenderID"]
			assert.False(t, ok)
			return &sns.PublishOutput{}, nil
		},
	}, "")

	id, err := client.SendSMS(context.Background(), "+263772000001", "hello")
	require.NoError(t, err)
	assert.Empty(t, id)
}

func TestSNSClient_Error(t *testing.T) {
	client := NewSNSClientFrom(&mockSNS{
		PublishFunc: func(context.Context, *sns.PublishInput, ...func(*sns.Options)) (*sns.PublishOutput, error) {
			return nil, errors.New("throttled")
		},
	}, "")

	_, err := client.SendSMS(context.Background(), "+263772000001", "hello")
	assert.EqualError(t, err, "throttled")
}

func TestSESClient_SendEmail(t *testing.T) {
	var got *ses.SendEmailInput
	client := NewSESClientFrom(&mockSES{
		SendEmailFunc: func(_ context.Context, params *ses.SendEmailInput, _ ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
			got = params
			return &ses.SendEmailOutput{MessageId: awssdk.String("mail-1")}, nil
		},
	}, "noreply@bancozim.test")

	id, err := client.SendEmail(context.Background(), "tendai@example.com", "Subject", "Body")
	require.NoError(t, err)
	assert.Equal(t, "mail-1", id)

	require.NotNil(t, got)
	assert.Equal(t, "noreply@bancozim.test", awssdk.ToString(got.Source))
	assert.Equal(t, []string{"tendai@example.com"}, got.Destination.ToAddresses)
	assert.Equal(t, "Subject", awssdk.ToString(got.Message.Subject.Data))
	assert.Equal(t, "Body", awssdk.ToString(got.Message.Body.Text.Data))
}
