// Package metrics publishes access verification outcome counts.
package metrics

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

// DefaultNamespace is the CloudWatch namespace for support access metrics.
const DefaultNamespace = "SupportAccess"

// MetricVerifications is the metric name for verification outcomes.
const MetricVerifications = "Verifications"

// Outcome classifies a verification result.
type Outcome string

const (
	OutcomeGranted  Outcome = "granted"
	OutcomePending  Outcome = "pending"
	OutcomeExpired  Outcome = "expired"
	OutcomeNotFound Outcome = "not_found"
	OutcomeDenied   Outcome = "denied"
)

// IsValid returns true if the outcome is a known value.
func (o Outcome) IsValid() bool {
	switch o {
	case OutcomeGranted, OutcomePending, OutcomeExpired, OutcomeNotFound, OutcomeDenied:
		return true
	}
	return false
}

// Recorder receives verification outcomes.
type Recorder interface {
	RecordVerification(ctx context.Context, outcome Outcome)
}

// NopRecorder discards all outcomes.
type NopRecorder struct{}

// RecordVerification discards the outcome.
func (NopRecorder) RecordVerification(ctx context.Context, outcome Outcome) {}

// CounterRecorder counts outcomes in memory.
type CounterRecorder struct {
	mu     sync.Mutex
	counts map[Outcome]int
}

// NewCounterRecorder creates an empty CounterRecorder.
func NewCounterRecorder() *CounterRecorder {
	return &CounterRecorder{counts: make(map[Outcome]int)}
}

// RecordVerification increments the outcome count.
func (c *CounterRecorder) RecordVerification(ctx context.Context, outcome Outcome) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[outcome]++
}

// Count returns how many times outcome was recorded.
func (c *CounterRecorder) Count(outcome Outcome) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[outcome]
}

// cloudwatchAPI defines the CloudWatch operations used by CloudWatchRecorder.
type cloudwatchAPI interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// CloudWatchRecorder publishes one data point per verification, dimensioned
// by outcome. Publishing failures are logged and never surface to callers.
type CloudWatchRecorder struct {
	client    cloudwatchAPI
	namespace string
	now       func() time.Time
}

// NewCloudWatchRecorder creates a CloudWatchRecorder using the provided AWS configuration.
// An empty namespace selects DefaultNamespace.
func NewCloudWatchRecorder(cfg aws.Config, namespace string) *CloudWatchRecorder {
	return newCloudWatchRecorderWithClient(cloudwatch.NewFromConfig(cfg), namespace)
}

func newCloudWatchRecorderWithClient(client cloudwatchAPI, namespace string) *CloudWatchRecorder {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return &CloudWatchRecorder{
		client:    client,
		namespace: namespace,
		now:       time.Now,
	}
}

// RecordVerification publishes a count of 1 for outcome.
func (r *CloudWatchRecorder) RecordVerification(ctx context.Context, outcome Outcome) {
	_, err := r.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(r.namespace),
		MetricData: []cwtypes.MetricDatum{
			{
				MetricName: aws.String(MetricVerifications),
				Dimensions: []cwtypes.Dimension{
					{Name: aws.String("Outcome"), Value: aws.String(string(outcome))},
				},
				Timestamp: aws.Time(r.now()),
				Unit:      cwtypes.StandardUnitCount,
				Value:     aws.Float64(1),
			},
		},
	})
	if err != nil {
		log.Printf("WARNING: failed to publish %s metric: %v", outcome, err)
	}
}
