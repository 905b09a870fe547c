package logging

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"
)

// CloudWatchConfig holds configuration for CloudWatch log forwarding.
type CloudWatchConfig struct {
	LogGroupName  string           // CloudWatch log group name
	LogStreamName string           // CloudWatch log stream name
	SignConfig    *SignatureConfig // nil disables signing
}

// CloudWatchAPI defines the CloudWatch Logs operations used.
type CloudWatchAPI interface {
	PutLogEvents(ctx context.Context, params *cloudwatchlogs.PutLogEventsInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.PutLogEventsOutput, error)
}

// CloudWatchLogger implements Logger by forwarding entries to CloudWatch Logs.
// Delivery failures are reported on stderr and never block the caller.
type CloudWatchLogger struct {
	client        CloudWatchAPI
	config        *CloudWatchConfig
	sequenceToken *string
	mu            sync.Mutex
	now           func() time.Time
}

// NewCloudWatchLogger creates a CloudWatch logger from AWS config.
func NewCloudWatchLogger(awsCfg aws.Config, config *CloudWatchConfig) *CloudWatchLogger {
	return NewCloudWatchLoggerWithClient(cloudwatchlogs.NewFromConfig(awsCfg), config)
}

// NewCloudWatchLoggerWithClient creates a CloudWatch logger with a custom client (for testing).
func NewCloudWatchLoggerWithClient(client CloudWatchAPI, config *CloudWatchConfig) *CloudWatchLogger {
	return &CloudWatchLogger{
		client: client,
		config: config,
		now:    time.Now,
	}
}

// LogSupportAccess signs (if configured) and forwards the entry.
func (l *CloudWatchLogger) LogSupportAccess(entry SupportAccessLogEntry) {
	var payload any = entry
	if l.config.SignConfig != nil {
		signed, err := NewSignedEntry(entry, l.config.SignConfig)
		if err != nil {
			fmt.Fprintf(os.Stderr, "cloudwatch signing error: %v\n", err)
		} else {
			payload = signed
		}
	}

	message, err := json.Marshal(payload)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cloudwatch marshal error: %v\n", err)
		return
	}

	l.putLogEvent(string(message))
}

// putLogEvent sends a single log event, carrying the sequence token forward.
func (l *CloudWatchLogger) putLogEvent(message string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	input := &cloudwatchlogs.PutLogEventsInput{
		LogGroupName:  aws.String(l.config.LogGroupName),
		LogStreamName: aws.String(l.config.LogStreamName),
		LogEvents: []types.InputLogEvent{
			{
				Message:   aws.String(message),
				Timestamp: aws.Int64(l.now().UnixMilli()),
			},
		},
		SequenceToken: l.sequenceToken,
	}

	output, err := l.client.PutLogEvents(context.Background(), input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cloudwatch PutLogEvents error: %v\n", err)
		return
	}

	if output != nil && output.NextSequenceToken != nil {
		l.sequenceToken = output.NextSequenceToken
	}
}
