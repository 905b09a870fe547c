package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	saerrors "github.com/byteness/supportaccess/errors"
)

// ProvisionStatus represents the result status of a provision operation.
type ProvisionStatus string

const (
	// StatusCreated indicates the table was created successfully.
	StatusCreated ProvisionStatus = "CREATED"
	// StatusExists indicates the table already exists and is active.
	StatusExists ProvisionStatus = "EXISTS"
	// StatusFailed indicates the provision operation failed.
	StatusFailed ProvisionStatus = "FAILED"
)

// tableNotFound is the pseudo status reported for a missing table.
const tableNotFound = "NOT_FOUND"

// Polling configuration for waiting on table status.
const (
	initialBackoff = 1 * time.Second
	maxBackoff     = 30 * time.Second
	waitTimeout    = 5 * time.Minute
)

// dynamoDBProvisionerAPI defines the DynamoDB operations used by TableProvisioner.
type dynamoDBProvisionerAPI interface {
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
	UpdateContinuousBackups(ctx context.Context, params *dynamodb.UpdateContinuousBackupsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateContinuousBackupsOutput, error)
}

// TableProvisioner creates DynamoDB tables idempotently.
type TableProvisioner struct {
	client  dynamoDBProvisionerAPI
	backoff time.Duration
	timeout time.Duration
}

// NewTableProvisioner creates a new TableProvisioner using the provided AWS configuration.
func NewTableProvisioner(cfg aws.Config) *TableProvisioner {
	return newTableProvisionerWithClient(dynamodb.NewFromConfig(cfg))
}

// newTableProvisionerWithClient creates a TableProvisioner with a custom client.
func newTableProvisionerWithClient(client dynamoDBProvisionerAPI) *TableProvisioner {
	return &TableProvisioner{
		client:  client,
		backoff: initialBackoff,
		timeout: waitTimeout,
	}
}

// ProvisionResult contains the result of a table provisioning operation.
type ProvisionResult struct {
	TableName string          `json:"table_name"`
	Status    ProvisionStatus `json:"status"`
	ARN       string          `json:"arn,omitempty"`
	Error     string          `json:"error,omitempty"`
	err       error
}

// Err returns the failure cause when Status is StatusFailed.
func (r *ProvisionResult) Err() error {
	return r.err
}

func failed(table, arn string, err error) *ProvisionResult {
	return &ProvisionResult{TableName: table, Status: StatusFailed, ARN: arn, Error: err.Error(), err: err}
}

// ProvisionPlan describes what would be created for a table.
type ProvisionPlan struct {
	TableName           string   `json:"table_name"`
	PartitionKey        string   `json:"partition_key"`
	GSIs                []string `json:"gsis"`
	BillingMode         string   `json:"billing_mode"`
	DeletionProtection  bool     `json:"deletion_protection"`
	PointInTimeRecovery bool     `json:"point_in_time_recovery"`
	Encryption          string   `json:"encryption"`
}

// Plan describes the table that Create would make. It makes no AWS calls, so
// it works before the operator has DynamoDB permissions.
func (p *TableProvisioner) Plan(schema TableSchema) (*ProvisionPlan, error) {
	if err := schema.Validate(); err != nil {
		return nil, fmt.Errorf("invalid schema: %w", err)
	}
	plan := &ProvisionPlan{
		TableName:           schema.TableName,
		PartitionKey:        schema.PartitionKey.Name,
		GSIs:                schema.GSINames(),
		BillingMode:         string(types.BillingModePayPerRequest),
		DeletionProtection:  schema.DeletionProtection,
		PointInTimeRecovery: schema.PointInTimeRecovery,
		Encryption:          "AWS_OWNED",
	}
	if schema.KMSKeyARN != "" {
		plan.Encryption = "KMS:" + schema.KMSKeyARN
	}
	return plan, nil
}

// Create provisions a table from schema. An existing ACTIVE table yields
// StatusExists; a table still CREATING or UPDATING is waited on. Operational
// failures are reported in the result; only an invalid schema or a failed
// status check returns an error.
func (p *TableProvisioner) Create(ctx context.Context, schema TableSchema) (*ProvisionResult, error) {
	if err := schema.Validate(); err != nil {
		return nil, fmt.Errorf("invalid schema: %w", err)
	}
	name := schema.TableName

	status, arn, err := p.tableStatus(ctx, name)
	if err != nil {
		return nil, err
	}

	switch status {
	case string(types.TableStatusActive):
		return &ProvisionResult{TableName: name, Status: StatusExists, ARN: arn}, nil

	case string(types.TableStatusCreating), string(types.TableStatusUpdating):
		arn, err := p.waitForActive(ctx, name)
		if err != nil {
			return failed(name, "", err), nil
		}
		return &ProvisionResult{TableName: name, Status: StatusExists, ARN: arn}, nil

	case tableNotFound:
	default:
		return failed(name, arn, fmt.Errorf("table exists with unexpected status: %s", status)), nil
	}

	if _, err := p.client.CreateTable(ctx, createTableInput(schema)); err != nil {
		var inUse *types.ResourceInUseException
		if !errors.As(err, &inUse) {
			return failed(name, "", saerrors.WrapDynamoDBError(err, name, "CreateTable")), nil
		}
		// Created concurrently by someone else.
		arn, err := p.waitForActive(ctx, name)
		if err != nil {
			return failed(name, "", err), nil
		}
		return &ProvisionResult{TableName: name, Status: StatusExists, ARN: arn}, nil
	}

	arn, err = p.waitForActive(ctx, name)
	if err != nil {
		return failed(name, "", err), nil
	}

	if schema.PointInTimeRecovery {
		if err := p.enablePITR(ctx, name); err != nil {
			return failed(name, arn, fmt.Errorf("table created but point-in-time recovery failed: %w", err)), nil
		}
	}

	return &ProvisionResult{TableName: name, Status: StatusCreated, ARN: arn}, nil
}

// TableStatus returns the current status of a table, or NOT_FOUND.
func (p *TableProvisioner) TableStatus(ctx context.Context, tableName string) (string, error) {
	status, _, err := p.tableStatus(ctx, tableName)
	return status, err
}

func (p *TableProvisioner) tableStatus(ctx context.Context, tableName string) (string, string, error) {
	output, err := p.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(tableName),
	})
	if err != nil {
		var rnf *types.ResourceNotFoundException
		if errors.As(err, &rnf) {
			return tableNotFound, "", nil
		}
		return "", "", saerrors.WrapDynamoDBError(err, tableName, "DescribeTable")
	}
	if output.Table == nil {
		return tableNotFound, "", nil
	}
	return string(output.Table.TableStatus), aws.ToString(output.Table.TableArn), nil
}

// waitForActive polls with exponential backoff until the table is ACTIVE.
func (p *TableProvisioner) waitForActive(ctx context.Context, tableName string) (string, error) {
	backoff := p.backoff
	deadline := time.Now().Add(p.timeout)

	for {
		status, arn, err := p.tableStatus(ctx, tableName)
		if err != nil {
			return "", err
		}
		switch status {
		case string(types.TableStatusActive):
			return arn, nil
		case tableNotFound, string(types.TableStatusDeleting):
			return "", fmt.Errorf("table %s is %s", tableName, status)
		}

		if time.Now().Add(backoff).After(deadline) {
			return "", fmt.Errorf("timeout waiting for table %s to become ACTIVE", tableName)
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, maxBackoff)
	}
}

func (p *TableProvisioner) enablePITR(ctx context.Context, tableName string) error {
	_, err := p.client.UpdateContinuousBackups(ctx, &dynamodb.UpdateContinuousBackupsInput{
		TableName: aws.String(tableName),
		PointInTimeRecoverySpecification: &types.PointInTimeRecoverySpecification{
			PointInTimeRecoveryEnabled: aws.Bool(true),
		},
	})
	if err != nil {
		return saerrors.WrapDynamoDBError(err, tableName, "UpdateContinuousBackups")
	}
	return nil
}

// createTableInput converts a TableSchema to a DynamoDB CreateTableInput.
// Attribute definitions are deduplicated and sorted by name.
func createTableInput(schema TableSchema) *dynamodb.CreateTableInput {
	attrs := map[string]KeyType{schema.PartitionKey.Name: schema.PartitionKey.Type}

	gsis := make([]types.GlobalSecondaryIndex, 0, len(schema.GlobalSecondaryIndexes))
	for _, gsi := range schema.GlobalSecondaryIndexes {
		attrs[gsi.PartitionKey.Name] = gsi.PartitionKey.Type
		keys := []types.KeySchemaElement{
			{AttributeName: aws.String(gsi.PartitionKey.Name), KeyType: types.KeyTypeHash},
		}
		if gsi.SortKey != nil {
			attrs[gsi.SortKey.Name] = gsi.SortKey.Type
			keys = append(keys, types.KeySchemaElement{AttributeName: aws.String(gsi.SortKey.Name), KeyType: types.KeyTypeRange})
		}
		gsis = append(gsis, types.GlobalSecondaryIndex{
			IndexName:  aws.String(gsi.IndexName),
			KeySchema:  keys,
			Projection: &types.Projection{ProjectionType: types.ProjectionTypeAll},
		})
	}

	names := make([]string, 0, len(attrs))
	for name := range attrs {
		names = append(names, name)
	}
	sort.Strings(names)
	defs := make([]types.AttributeDefinition, 0, len(names))
	for _, name := range names {
		defs = append(defs, types.AttributeDefinition{
			AttributeName: aws.String(name),
			AttributeType: types.ScalarAttributeType(attrs[name]),
		})
	}

	input := &dynamodb.CreateTableInput{
		TableName:            aws.String(schema.TableName),
		AttributeDefinitions: defs,
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String(schema.PartitionKey.Name), KeyType: types.KeyTypeHash},
		},
		BillingMode:               types.BillingModePayPerRequest,
		DeletionProtectionEnabled: aws.Bool(schema.DeletionProtection),
	}
	if len(gsis) > 0 {
		input.GlobalSecondaryIndexes = gsis
	}
	if schema.KMSKeyARN != "" {
		input.SSESpecification = &types.SSESpecification{
			Enabled:        aws.Bool(true),
			SSEType:        types.SSETypeKms,
			KMSMasterKeyId: aws.String(schema.KMSKeyARN),
		}
	}
	return input
}
