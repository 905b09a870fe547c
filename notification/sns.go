package notification

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"

	saerrors "github.com/byteness/supportaccess/errors"
)

// snsAPI defines the SNS operations used by SNSNotifier.
type snsAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSNotifier publishes notification events to an AWS SNS topic.
//
// Messages are JSON. Two message attributes allow subscription filtering:
// "event_type" and "tenant_id", so a tenant-facing subscriber can receive
// only the events that concern its own tenant.
type SNSNotifier struct {
	client   snsAPI
	topicARN string
}

// NewSNSNotifier creates a new SNSNotifier using the provided AWS configuration.
func NewSNSNotifier(cfg aws.Config, topicARN string) *SNSNotifier {
	return &SNSNotifier{
		client:   sns.NewFromConfig(cfg),
		topicARN: topicARN,
	}
}

// newSNSNotifierWithClient creates an SNSNotifier with a custom client.
func newSNSNotifierWithClient(client snsAPI, topicARN string) *SNSNotifier {
	return &SNSNotifier{
		client:   client,
		topicARN: topicARN,
	}
}

// Notify publishes the event to the configured SNS topic.
func (n *SNSNotifier) Notify(ctx context.Context, event *Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	attrs := map[string]types.MessageAttributeValue{
		"event_type": {
			DataType:    aws.String("String"),
			StringValue: aws.String(event.Type.String()),
		},
	}
	if event.Request != nil && event.Request.TargetTenantID != "" {
		attrs["tenant_id"] = types.MessageAttributeValue{
			DataType:    aws.String("String"),
			StringValue: aws.String(event.Request.TargetTenantID),
		}
	}

	_, err = n.client.Publish(ctx, &sns.PublishInput{
		TopicArn:          aws.String(n.topicARN),
		Message:           aws.String(string(payload)),
		Subject:           aws.String(subjectFor(event)),
		MessageAttributes: attrs,
	})
	if err != nil {
		return saerrors.WrapSNSError(err, n.topicARN)
	}

	return nil
}

func subjectFor(event *Event) string {
	switch event.Type {
	case EventRequested:
		return "Support access requested"
	case EventApproved:
		return "Support access approved"
	}
	return "Support access"
}
