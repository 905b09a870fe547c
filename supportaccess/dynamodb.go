package supportaccess

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	saerrors "github.com/byteness/supportaccess/errors"
)

// GSI name constants for DynamoDB Global Secondary Indexes.
// See infrastructure.SupportAccessTableSchema for the table definition.
const (
	// GSIStatus indexes requests by status with created_at sort key.
	GSIStatus = "gsi-status"
	// GSITenant indexes requests by target_tenant_id with created_at sort key.
	GSITenant = "gsi-tenant"
)

// dynamoDBAPI defines the DynamoDB operations used by DynamoDBStore.
type dynamoDBAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// DynamoDBStore implements Store using AWS DynamoDB.
//
// Each request is one item keyed by id. The audit trail is a list attribute
// on the item, and every mutation appends to it with list_append inside the
// same conditional UpdateItem, so a mutation and its audit entry commit
// together or not at all.
type DynamoDBStore struct {
	client    dynamoDBAPI
	tableName string
}

// NewDynamoDBStore creates a new DynamoDBStore using the provided AWS configuration.
func NewDynamoDBStore(cfg aws.Config, tableName string) *DynamoDBStore {
	return &DynamoDBStore{
		client:    dynamodb.NewFromConfig(cfg),
		tableName: tableName,
	}
}

// newDynamoDBStoreWithClient creates a DynamoDBStore with a custom client.
func newDynamoDBStoreWithClient(client dynamoDBAPI, tableName string) *DynamoDBStore {
	return &DynamoDBStore{
		client:    client,
		tableName: tableName,
	}
}

type dynamoSignature struct {
	SignatureData string `dynamodbav:"signature_data"`
	SignedAt      string `dynamodbav:"signed_at"` // fixed-width RFC3339
	IPAddress     string `dynamodbav:"ip_address,omitempty"`
	UserAgent     string `dynamodbav:"user_agent,omitempty"`
	ConsentText   string `dynamodbav:"consent_text"`
}

type dynamoAuditEntry struct {
	Action    string            `dynamodbav:"action"`
	UserID    string            `dynamodbav:"user_id"`
	Timestamp string            `dynamodbav:"timestamp"` // fixed-width RFC3339
	IPAddress string            `dynamodbav:"ip_address,omitempty"`
	UserAgent string            `dynamodbav:"user_agent,omitempty"`
	Details   map[string]string `dynamodbav:"details,omitempty"`
}

// dynamoItem represents the DynamoDB item structure for a SupportAccessRequest.
// Optional attributes are omitted rather than stored empty.
type dynamoItem struct {
	ID                  string             `dynamodbav:"id"`
	SuperadminID        string             `dynamodbav:"superadmin_id"`
	TargetTenantID      string             `dynamodbav:"target_tenant_id"`
	TargetUserID        string             `dynamodbav:"target_user_id,omitempty"`
	Purpose             string             `dynamodbav:"purpose"`
	Status              string             `dynamodbav:"status"`
	DigitalSignature    *dynamoSignature   `dynamodbav:"digital_signature,omitempty"`
	ApprovedBy          string             `dynamodbav:"approved_by,omitempty"`
	ExpirationTimestamp string             `dynamodbav:"expiration_timestamp,omitempty"`
	AuditTrail          []dynamoAuditEntry `dynamodbav:"audit_trail"`
	CreatedAt           string             `dynamodbav:"created_at"`
	UpdatedAt           string             `dynamodbav:"updated_at"`
}

// sortableTimeLayout keeps a fixed nine-digit fraction so stored timestamps
// sort lexically in time order. created_at is a GSI range key.
const sortableTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(sortableTimeLayout)
}

func signatureToItem(sig *DigitalSignature) *dynamoSignature {
	if sig == nil {
		return nil
	}
	return &dynamoSignature{
		SignatureData: sig.SignatureData,
		SignedAt:      formatTime(sig.SignedAt),
		IPAddress:     sig.IPAddress,
		UserAgent:     sig.UserAgent,
		ConsentText:   sig.ConsentText,
	}
}

func auditEntryToItem(e AuditEntry) dynamoAuditEntry {
	return dynamoAuditEntry{
		Action:    string(e.Action),
		UserID:    e.UserID,
		Timestamp: formatTime(e.Timestamp),
		IPAddress: e.IPAddress,
		UserAgent: e.UserAgent,
		Details:   e.Details,
	}
}

// requestToItem converts a SupportAccessRequest to a DynamoDB item structure.
func requestToItem(req *SupportAccessRequest) *dynamoItem {
	trail := make([]dynamoAuditEntry, len(req.AuditTrail))
	for i, e := range req.AuditTrail {
		trail[i] = auditEntryToItem(e)
	}
	return &dynamoItem{
		ID:                  req.ID,
		SuperadminID:        req.SuperadminID,
		TargetTenantID:      req.TargetTenantID,
		TargetUserID:        req.TargetUserID,
		Purpose:             req.Purpose,
		Status:              string(req.Status),
		DigitalSignature:    signatureToItem(req.DigitalSignature),
		ApprovedBy:          req.ApprovedBy,
		ExpirationTimestamp: formatTime(req.ExpirationTimestamp),
		AuditTrail:          trail,
		CreatedAt:           formatTime(req.CreatedAt),
		UpdatedAt:           formatTime(req.UpdatedAt),
	}
}

// itemToRequest converts a DynamoDB item structure back to a SupportAccessRequest.
func itemToRequest(item *dynamoItem) (*SupportAccessRequest, error) {
	createdAt, err := parseDynamoDBTime(item.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	updatedAt, err := parseDynamoDBTime(item.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}

	req := &SupportAccessRequest{
		ID:             item.ID,
		SuperadminID:   item.SuperadminID,
		TargetTenantID: item.TargetTenantID,
		TargetUserID:   item.TargetUserID,
		Purpose:        item.Purpose,
		Status:         Status(item.Status),
		ApprovedBy:     item.ApprovedBy,
		AuditTrail:     make([]AuditEntry, 0, len(item.AuditTrail)),
		CreatedAt:      createdAt,
		UpdatedAt:      updatedAt,
	}

	if item.ExpirationTimestamp != "" {
		if req.ExpirationTimestamp, err = parseDynamoDBTime(item.ExpirationTimestamp); err != nil {
			return nil, fmt.Errorf("parse expiration_timestamp: %w", err)
		}
	}

	if sig := item.DigitalSignature; sig != nil {
		signedAt, err := parseDynamoDBTime(sig.SignedAt)
		if err != nil {
			return nil, fmt.Errorf("parse signed_at: %w", err)
		}
		req.DigitalSignature = &DigitalSignature{
			SignatureData: sig.SignatureData,
			SignedAt:      signedAt,
			IPAddress:     sig.IPAddress,
			UserAgent:     sig.UserAgent,
			ConsentText:   sig.ConsentText,
		}
	}

	for i, e := range item.AuditTrail {
		ts, err := parseDynamoDBTime(e.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("parse audit_trail[%d].timestamp: %w", i, err)
		}
		req.AuditTrail = append(req.AuditTrail, AuditEntry{
			Action:    AuditAction(e.Action),
			UserID:    e.UserID,
			Timestamp: ts,
			IPAddress: e.IPAddress,
			UserAgent: e.UserAgent,
			Details:   e.Details,
		})
	}

	return req, nil
}

// parseDynamoDBTime parses a fixed-width or trimmed RFC3339Nano, RFC3339 or
// Unix seconds timestamp.
func parseDynamoDBTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("cannot parse time: %q", s)
}

func keyFor(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"id": &types.AttributeValueMemberS{Value: id},
	}
}

// marshalAuditAppend encodes entry as a one-element list for list_append.
func marshalAuditAppend(entry AuditEntry) (types.AttributeValue, error) {
	av, err := attributevalue.Marshal([]dynamoAuditEntry{auditEntryToItem(entry)})
	if err != nil {
		return nil, fmt.Errorf("marshal audit entry: %w", err)
	}
	return av, nil
}

// Create stores a new request. Returns ErrRequestExists if ID already exists.
func (s *DynamoDBStore) Create(ctx context.Context, req *SupportAccessRequest) error {
	av, err := attributevalue.MarshalMap(requestToItem(req))
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.tableName),
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(id)"),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return fmt.Errorf("%s: %w", req.ID, ErrRequestExists)
		}
		return saerrors.WrapDynamoDBError(err, s.tableName, "PutItem")
	}

	return nil
}

// Get retrieves a request by ID with a strongly consistent read.
func (s *DynamoDBStore) Get(ctx context.Context, id string) (*SupportAccessRequest, error) {
	output, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		Key:            keyFor(id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, saerrors.WrapDynamoDBError(err, s.tableName, "GetItem")
	}

	if output.Item == nil {
		return nil, fmt.Errorf("%s: %w", id, ErrRequestNotFound)
	}

	return unmarshalRequest(output.Item)
}

func unmarshalRequest(av map[string]types.AttributeValue) (*SupportAccessRequest, error) {
	var item dynamoItem
	if err := attributevalue.UnmarshalMap(av, &item); err != nil {
		return nil, fmt.Errorf("unmarshal request: %w", err)
	}
	return itemToRequest(&item)
}

// CompareAndPatch applies patch in one conditional UpdateItem guarded by
// "#status = :expected". On a failed condition the old item is returned by
// DynamoDB, which tells a missing record apart from a status mismatch without
// a second read.
func (s *DynamoDBStore) CompareAndPatch(ctx context.Context, id string, expected Status, patch Patch) (*SupportAccessRequest, error) {
	entry, err := marshalAuditAppend(patch.Audit)
	if err != nil {
		return nil, err
	}

	sets := []string{
		"#status = :status",
		"updated_at = :updated_at",
		"audit_trail = list_append(audit_trail, :audit)",
	}
	values := map[string]types.AttributeValue{
		":status":     &types.AttributeValueMemberS{Value: string(patch.Status)},
		":expected":   &types.AttributeValueMemberS{Value: string(expected)},
		":updated_at": &types.AttributeValueMemberS{Value: formatTime(patch.UpdatedAt)},
		":audit":      entry,
	}
	if patch.DigitalSignature != nil {
		sig, err := attributevalue.Marshal(signatureToItem(patch.DigitalSignature))
		if err != nil {
			return nil, fmt.Errorf("marshal signature: %w", err)
		}
		sets = append(sets, "digital_signature = :signature")
		values[":signature"] = sig
	}
	if patch.ApprovedBy != "" {
		sets = append(sets, "approved_by = :approved_by")
		values[":approved_by"] = &types.AttributeValueMemberS{Value: patch.ApprovedBy}
	}
	if !patch.ExpirationTimestamp.IsZero() {
		sets = append(sets, "expiration_timestamp = :expiration")
		values[":expiration"] = &types.AttributeValueMemberS{Value: formatTime(patch.ExpirationTimestamp)}
	}

	output, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                           aws.String(s.tableName),
		Key:                                 keyFor(id),
		UpdateExpression:                    aws.String("SET " + strings.Join(sets, ", ")),
		ConditionExpression:                 aws.String("attribute_exists(id) AND #status = :expected"),
		ExpressionAttributeNames:            map[string]string{"#status": "status"},
		ExpressionAttributeValues:           values,
		ReturnValues:                        types.ReturnValueAllNew,
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			if len(ccf.Item) == 0 {
				return nil, fmt.Errorf("%s: %w", id, ErrRequestNotFound)
			}
			return nil, fmt.Errorf("%s: %w", id, ErrConcurrentModification)
		}
		return nil, saerrors.WrapDynamoDBError(err, s.tableName, "UpdateItem")
	}

	return unmarshalRequest(output.Attributes)
}

// AppendAudit appends one entry to the audit trail of an existing request.
func (s *DynamoDBStore) AppendAudit(ctx context.Context, id string, entry AuditEntry) error {
	av, err := marshalAuditAppend(entry)
	if err != nil {
		return err
	}

	_, err = s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(s.tableName),
		Key:                 keyFor(id),
		UpdateExpression:    aws.String("SET audit_trail = list_append(audit_trail, :audit)"),
		ConditionExpression: aws.String("attribute_exists(id)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":audit": av,
		},
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return fmt.Errorf("%s: %w", id, ErrRequestNotFound)
		}
		return saerrors.WrapDynamoDBError(err, s.tableName, "UpdateItem")
	}
	return nil
}

// ListByStatus returns requests with a specific status, ordered by created_at desc.
func (s *DynamoDBStore) ListByStatus(ctx context.Context, status Status, limit int) ([]*SupportAccessRequest, error) {
	return s.queryByIndex(ctx, GSIStatus, "status", string(status), limit)
}

// ListByTenant returns requests targeting a tenant, ordered by created_at desc.
func (s *DynamoDBStore) ListByTenant(ctx context.Context, tenantID string, limit int) ([]*SupportAccessRequest, error) {
	return s.queryByIndex(ctx, GSITenant, "target_tenant_id", tenantID, limit)
}

// ListByScope returns every request the superadmin made for exactly the
// scope, newest first. The tenant partition is read to exhaustion and
// filtered server side.
func (s *DynamoDBStore) ListByScope(ctx context.Context, superadminID, tenantID, userID string) ([]*SupportAccessRequest, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		IndexName:              aws.String(GSITenant),
		KeyConditionExpression: aws.String("#k = :v"),
		FilterExpression:       aws.String("#sa = :sa AND attribute_not_exists(#u)"),
		ExpressionAttributeNames: map[string]string{
			"#k":  "target_tenant_id",
			"#sa": "superadmin_id",
			"#u":  "target_user_id",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":v":  &types.AttributeValueMemberS{Value: tenantID},
			":sa": &types.AttributeValueMemberS{Value: superadminID},
		},
		ScanIndexForward: aws.Bool(false),
	}
	if userID != "" {
		input.FilterExpression = aws.String("#sa = :sa AND #u = :u")
		input.ExpressionAttributeValues[":u"] = &types.AttributeValueMemberS{Value: userID}
	}
	return s.queryPages(ctx, input, 0)
}

// queryByIndex queries a GSI newest first, following LastEvaluatedKey until
// limit items are collected or the partition is exhausted.
func (s *DynamoDBStore) queryByIndex(ctx context.Context, indexName, keyAttr, keyValue string, limit int) ([]*SupportAccessRequest, error) {
	return s.queryPages(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		IndexName:              aws.String(indexName),
		KeyConditionExpression: aws.String("#k = :v"),
		ExpressionAttributeNames: map[string]string{
			"#k": keyAttr,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":v": &types.AttributeValueMemberS{Value: keyValue},
		},
		ScanIndexForward: aws.Bool(false),
	}, effectiveLimit(limit))
}

// queryPages runs input page by page. A positive want caps the result and
// sets each page's Limit; otherwise every page is read.
func (s *DynamoDBStore) queryPages(ctx context.Context, input *dynamodb.QueryInput, want int) ([]*SupportAccessRequest, error) {
	requests := make([]*SupportAccessRequest, 0)

	var startKey map[string]types.AttributeValue
	for {
		page := *input
		page.ExclusiveStartKey = startKey
		if want > 0 {
			page.Limit = aws.Int32(int32(want - len(requests)))
		}
		output, err := s.client.Query(ctx, &page)
		if err != nil {
			return nil, saerrors.WrapDynamoDBError(err, s.tableName, fmt.Sprintf("Query:%s", aws.ToString(input.IndexName)))
		}

		for _, av := range output.Items {
			req, err := unmarshalRequest(av)
			if err != nil {
				return nil, err
			}
			requests = append(requests, req)
		}

		if (want > 0 && len(requests) >= want) || len(output.LastEvaluatedKey) == 0 {
			break
		}
		startKey = output.LastEvaluatedKey
	}

	return requests, nil
}
