// Package infrastructure provisions the AWS resources the support access
// service runs on. Today that is the DynamoDB request table.
package infrastructure

import (
	"errors"
	"fmt"

	"github.com/byteness/supportaccess/supportaccess"
)

// KeyType represents a DynamoDB attribute type for keys.
type KeyType string

const (
	// KeyTypeString represents the DynamoDB String type.
	KeyTypeString KeyType = "S"
	// KeyTypeNumber represents the DynamoDB Number type.
	KeyTypeNumber KeyType = "N"
)

// IsValid returns true if the KeyType is a supported key type.
func (kt KeyType) IsValid() bool {
	return kt == KeyTypeString || kt == KeyTypeNumber
}

// KeyAttribute represents a key attribute definition for DynamoDB tables.
type KeyAttribute struct {
	Name string
	Type KeyType
}

// Validate checks if the KeyAttribute has valid values.
func (ka KeyAttribute) Validate() error {
	if ka.Name == "" {
		return errors.New("key attribute name is required")
	}
	if !ka.Type.IsValid() {
		return fmt.Errorf("invalid key type %q: must be S or N", ka.Type)
	}
	return nil
}

// GSISchema represents a Global Secondary Index with ALL projection.
type GSISchema struct {
	IndexName    string
	PartitionKey KeyAttribute
	SortKey      *KeyAttribute
}

// Validate checks if the GSISchema has valid values.
func (gsi GSISchema) Validate() error {
	if gsi.IndexName == "" {
		return errors.New("GSI index name is required")
	}
	if err := gsi.PartitionKey.Validate(); err != nil {
		return fmt.Errorf("GSI %q partition key: %w", gsi.IndexName, err)
	}
	if gsi.SortKey != nil {
		if err := gsi.SortKey.Validate(); err != nil {
			return fmt.Errorf("GSI %q sort key: %w", gsi.IndexName, err)
		}
	}
	return nil
}

// TableSchema represents a DynamoDB table definition.
type TableSchema struct {
	TableName              string
	PartitionKey           KeyAttribute
	GlobalSecondaryIndexes []GSISchema

	// DeletionProtection blocks DeleteTable until it is turned off.
	DeletionProtection bool

	// PointInTimeRecovery enables continuous backups after creation.
	PointInTimeRecovery bool

	// KMSKeyARN selects a customer managed key. Empty uses the AWS owned key.
	KMSKeyARN string
}

// Validate checks if the TableSchema has valid values.
func (ts TableSchema) Validate() error {
	if ts.TableName == "" {
		return errors.New("table name is required")
	}
	if err := ts.PartitionKey.Validate(); err != nil {
		return fmt.Errorf("partition key: %w", err)
	}
	seen := make(map[string]bool, len(ts.GlobalSecondaryIndexes))
	for i, gsi := range ts.GlobalSecondaryIndexes {
		if err := gsi.Validate(); err != nil {
			return fmt.Errorf("GSI[%d]: %w", i, err)
		}
		if seen[gsi.IndexName] {
			return fmt.Errorf("GSI[%d]: duplicate index name %q", i, gsi.IndexName)
		}
		seen[gsi.IndexName] = true
	}
	return nil
}

// GSINames returns the names of all GSIs in this schema.
func (ts TableSchema) GSINames() []string {
	names := make([]string, len(ts.GlobalSecondaryIndexes))
	for i, gsi := range ts.GlobalSecondaryIndexes {
		names[i] = gsi.IndexName
	}
	return names
}

// SupportAccessTableSchema returns the schema expected by
// supportaccess.DynamoDBStore:
//   - Partition key: id (S)
//   - GSIs: gsi-status on status, gsi-tenant on target_tenant_id, both sorted by created_at
//   - Billing: PAY_PER_REQUEST
//
// Requests are never deleted, so there is no TTL; deletion protection and
// point-in-time recovery are on.
func SupportAccessTableSchema(tableName string) TableSchema {
	createdAt := &KeyAttribute{Name: "created_at", Type: KeyTypeString}

	return TableSchema{
		TableName:    tableName,
		PartitionKey: KeyAttribute{Name: "id", Type: KeyTypeString},
		GlobalSecondaryIndexes: []GSISchema{
			{
				IndexName:    supportaccess.GSIStatus,
				PartitionKey: KeyAttribute{Name: "status", Type: KeyTypeString},
				SortKey:      createdAt,
			},
			{
				IndexName:    supportaccess.GSITenant,
				PartitionKey: KeyAttribute{Name: "target_tenant_id", Type: KeyTypeString},
				SortKey:      createdAt,
			},
		},
		DeletionProtection:  true,
		PointInTimeRecovery: true,
	}
}
