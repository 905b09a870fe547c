package supportaccess

import (
	"context"
	"errors"
	"time"
)

// Query limit constants for List operations.
const (
	// DefaultQueryLimit is the default number of results for List operations.
	DefaultQueryLimit = 100
	// MaxQueryLimit is the maximum number of results for List operations.
	MaxQueryLimit = 1000
)

// Storage-related sentinel errors for Store implementations.
var (
	// ErrRequestNotFound is returned when the request does not exist.
	ErrRequestNotFound = errors.New("support access request not found")

	// ErrRequestExists is returned when creating a request whose ID is taken.
	ErrRequestExists = errors.New("support access request already exists")

	// ErrConcurrentModification is returned when a compare-and-patch finds the
	// record in a different status than expected.
	ErrConcurrentModification = errors.New("concurrent modification detected")
)

// Patch describes one atomic mutation of a request. Zero-valued optional
// fields are left untouched. Audit is appended to the trail in the same
// write, so the mutation and its audit entry are never visible separately.
type Patch struct {
	Status              Status
	DigitalSignature    *DigitalSignature
	ApprovedBy          string
	ExpirationTimestamp time.Time
	UpdatedAt           time.Time
	Audit               AuditEntry
}

// apply mutates req in place.
func (p Patch) apply(req *SupportAccessRequest) {
	req.Status = p.Status
	if p.DigitalSignature != nil {
		sig := *p.DigitalSignature
		req.DigitalSignature = &sig
	}
	if p.ApprovedBy != "" {
		req.ApprovedBy = p.ApprovedBy
	}
	if !p.ExpirationTimestamp.IsZero() {
		req.ExpirationTimestamp = p.ExpirationTimestamp
	}
	req.UpdatedAt = p.UpdatedAt
	req.AuditTrail = append(req.AuditTrail, p.Audit.clone())
}

// Store defines the persistence contract for support access requests.
// Implementations must be safe for concurrent use.
type Store interface {
	// Create stores a new request. Returns ErrRequestExists if the ID is taken.
	Create(ctx context.Context, req *SupportAccessRequest) error

	// Get retrieves a request by ID. Returns ErrRequestNotFound if not exists.
	Get(ctx context.Context, id string) (*SupportAccessRequest, error)

	// CompareAndPatch applies patch only if the stored status equals expected,
	// and returns the updated request. Returns ErrRequestNotFound if the
	// request does not exist and ErrConcurrentModification if its status differs.
	CompareAndPatch(ctx context.Context, id string, expected Status, patch Patch) (*SupportAccessRequest, error)

	// AppendAudit appends one entry to the audit trail.
	// Returns ErrRequestNotFound if the request does not exist.
	AppendAudit(ctx context.Context, id string, entry AuditEntry) error

	// ListByStatus returns requests with the status, ordered by created_at desc.
	// If limit is 0, DefaultQueryLimit is used. Limit is capped at MaxQueryLimit.
	ListByStatus(ctx context.Context, status Status, limit int) ([]*SupportAccessRequest, error)

	// ListByTenant returns requests targeting the tenant, ordered by created_at desc.
	// If limit is 0, DefaultQueryLimit is used. Limit is capped at MaxQueryLimit.
	ListByTenant(ctx context.Context, tenantID string, limit int) ([]*SupportAccessRequest, error)

	// ListByScope returns every request superadminID made for exactly the
	// scope, ordered by created_at desc. An empty userID selects tenant-level
	// requests only. The result is not limited.
	ListByScope(ctx context.Context, superadminID, tenantID, userID string) ([]*SupportAccessRequest, error)
}

// effectiveLimit applies the query limit defaults and cap.
func effectiveLimit(limit int) int {
	if limit <= 0 {
		return DefaultQueryLimit
	}
	if limit > MaxQueryLimit {
		return MaxQueryLimit
	}
	return limit
}
