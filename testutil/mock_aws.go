package testutil

import (
	"context"
	"errors"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// ============================================================================
// MockSSMClient - SSM Parameter Store operations
// ============================================================================

// MockSSMClient implements SSM GetParameter for testing.
type MockSSMClient struct {
	mu sync.Mutex

	GetParameterFunc func(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)

	GetParameterCalls []*ssm.GetParameterInput
}

// GetParameter implements SSM GetParameter operation.
func (m *MockSSMClient) GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	m.mu.Lock()
	m.GetParameterCalls = append(m.GetParameterCalls, params)
	m.mu.Unlock()

	if m.GetParameterFunc != nil {
		return m.GetParameterFunc(ctx, params, optFns...)
	}
	return nil, errors.New("GetParameter not implemented")
}

// GetParameterCallCount returns the number of GetParameter calls made.
func (m *MockSSMClient) GetParameterCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.GetParameterCalls)
}

// Reset clears all call tracking data.
func (m *MockSSMClient) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GetParameterCalls = nil
}

// ============================================================================
// MockDynamoDBClient - DynamoDB operations
// ============================================================================

// MockDynamoDBClient implements the DynamoDB item and table operations used
// by the store and the table provisioner.
type MockDynamoDBClient struct {
	mu sync.Mutex

	PutItemFunc                 func(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItemFunc                 func(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItemFunc              func(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	QueryFunc                   func(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	CreateTableFunc             func(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
	DescribeTableFunc           func(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
	UpdateContinuousBackupsFunc func(ctx context.Context, params *dynamodb.UpdateContinuousBackupsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateContinuousBackupsOutput, error)

	PutItemCalls                 []*dynamodb.PutItemInput
	GetItemCalls                 []*dynamodb.GetItemInput
	UpdateItemCalls              []*dynamodb.UpdateItemInput
	QueryCalls                   []*dynamodb.QueryInput
	CreateTableCalls             []*dynamodb.CreateTableInput
	DescribeTableCalls           []*dynamodb.DescribeTableInput
	UpdateContinuousBackupsCalls []*dynamodb.UpdateContinuousBackupsInput
}

// PutItem implements DynamoDB PutItem operation.
func (m *MockDynamoDBClient) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	m.mu.Lock()
	m.PutItemCalls = append(m.PutItemCalls, params)
	m.mu.Unlock()

	if m.PutItemFunc != nil {
		return m.PutItemFunc(ctx, params, optFns...)
	}
	return &dynamodb.PutItemOutput{}, nil
}

// GetItem implements DynamoDB GetItem operation.
func (m *MockDynamoDBClient) GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	m.mu.Lock()
	m.GetItemCalls = append(m.GetItemCalls, params)
	m.mu.Unlock()

	if m.GetItemFunc != nil {
		return m.GetItemFunc(ctx, params, optFns...)
	}
	return &dynamodb.GetItemOutput{}, nil
}

// UpdateItem implements DynamoDB UpdateItem operation.
func (m *MockDynamoDBClient) UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	m.mu.Lock()
	m.UpdateItemCalls = append(m.UpdateItemCalls, params)
	m.mu.Unlock()

	if m.UpdateItemFunc != nil {
		return m.UpdateItemFunc(ctx, params, optFns...)
	}
	return &dynamodb.UpdateItemOutput{}, nil
}

// Query implements DynamoDB Query operation.
func (m *MockDynamoDBClient) Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	m.mu.Lock()
	m.QueryCalls = append(m.QueryCalls, params)
	m.mu.Unlock()

	if m.QueryFunc != nil {
		return m.QueryFunc(ctx, params, optFns...)
	}
	return &dynamodb.QueryOutput{}, nil
}

// CreateTable implements DynamoDB CreateTable operation.
func (m *MockDynamoDBClient) CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error) {
	m.mu.Lock()
	m.CreateTableCalls = append(m.CreateTableCalls, params)
	m.mu.Unlock()

	if m.CreateTableFunc != nil {
		return m.CreateTableFunc(ctx, params, optFns...)
	}
	return &dynamodb.CreateTableOutput{}, nil
}

// DescribeTable implements DynamoDB DescribeTable operation.
func (m *MockDynamoDBClient) DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	m.mu.Lock()
	m.DescribeTableCalls = append(m.DescribeTableCalls, params)
	m.mu.Unlock()

	if m.DescribeTableFunc != nil {
		return m.DescribeTableFunc(ctx, params, optFns...)
	}
	return nil, errors.New("DescribeTable not implemented")
}

// UpdateContinuousBackups implements DynamoDB UpdateContinuousBackups operation.
func (m *MockDynamoDBClient) UpdateContinuousBackups(ctx context.Context, params *dynamodb.UpdateContinuousBackupsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateContinuousBackupsOutput, error) {
	m.mu.Lock()
	m.UpdateContinuousBackupsCalls = append(m.UpdateContinuousBackupsCalls, params)
	m.mu.Unlock()

	if m.UpdateContinuousBackupsFunc != nil {
		return m.UpdateContinuousBackupsFunc(ctx, params, optFns...)
	}
	return &dynamodb.UpdateContinuousBackupsOutput{}, nil
}

// Reset clears all call tracking data.
func (m *MockDynamoDBClient) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PutItemCalls = nil
	m.GetItemCalls = nil
	m.UpdateItemCalls = nil
	m.QueryCalls = nil
	m.CreateTableCalls = nil
	m.DescribeTableCalls = nil
	m.UpdateContinuousBackupsCalls = nil
}

// ============================================================================
// MockCloudWatchLogsClient - CloudWatch Logs operations
// ============================================================================

// MockCloudWatchLogsClient implements CloudWatch Logs PutLogEvents for testing.
type MockCloudWatchLogsClient struct {
	mu sync.Mutex

	PutLogEventsFunc func(ctx context.Context, params *cloudwatchlogs.PutLogEventsInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.PutLogEventsOutput, error)

	PutLogEventsCalls []*cloudwatchlogs.PutLogEventsInput
}

// PutLogEvents implements CloudWatch Logs PutLogEvents operation.
func (m *MockCloudWatchLogsClient) PutLogEvents(ctx context.Context, params *cloudwatchlogs.PutLogEventsInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.PutLogEventsOutput, error) {
	m.mu.Lock()
	m.PutLogEventsCalls = append(m.PutLogEventsCalls, params)
	m.mu.Unlock()

	if m.PutLogEventsFunc != nil {
		return m.PutLogEventsFunc(ctx, params, optFns...)
	}
	return &cloudwatchlogs.PutLogEventsOutput{}, nil
}

// Messages returns every log event message sent so far, in order.
func (m *MockCloudWatchLogsClient) Messages() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, call := range m.PutLogEventsCalls {
		for _, e := range call.LogEvents {
			out = append(out, aws.ToString(e.Message))
		}
	}
	return out
}

// ============================================================================
// MockSecretsManagerClient - Secrets Manager operations
// ============================================================================

// MockSecretsManagerClient implements Secrets Manager GetSecretValue for testing.
type MockSecretsManagerClient struct {
	mu sync.Mutex

	GetSecretValueFunc func(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)

	GetSecretValueCalls []*secretsmanager.GetSecretValueInput
}

// GetSecretValue implements Secrets Manager GetSecretValue operation.
func (m *MockSecretsManagerClient) GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	m.mu.Lock()
	m.GetSecretValueCalls = append(m.GetSecretValueCalls, params)
	m.mu.Unlock()

	if m.GetSecretValueFunc != nil {
		return m.GetSecretValueFunc(ctx, params, optFns...)
	}
	return nil, errors.New("GetSecretValue not implemented")
}

// GetSecretValueCallCount returns the number of GetSecretValue calls made.
func (m *MockSecretsManagerClient) GetSecretValueCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.GetSecretValueCalls)
}
