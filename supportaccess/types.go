// Package supportaccess implements break-glass support access for platform
// superadmins: time-boxed, consent-gated access to a tenant's data.
//
// A superadmin files a request naming a tenant (and optionally one user of that
// tenant). The affected party approves it with a freshly signed consent, which
// opens a one hour grant. Privileged code paths call Verifier.Verify before
// acting, and every step lands in the request's append-only audit trail.
//
// Expiry is never stored. A grant is expired when the clock has passed its
// ExpirationTimestamp; the record keeps StatusApproved forever.
package supportaccess

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"regexp"
	"time"
)

// Grant and signature windows.
const (
	// GrantLifetime is how long an approval stays active.
	GrantLifetime = time.Hour

	// SignatureFreshnessWindow is the maximum age of a consent signature
	// at approval time.
	SignatureFreshnessWindow = 5 * time.Minute

	// MaxPurposeLength is the maximum length of a request purpose.
	MaxPurposeLength = 1000
)

// RequestIDLength is the length of request IDs (16 lowercase hex characters).
const RequestIDLength = 16

var requestIDRegex = regexp.MustCompile(`^[0-9a-f]{16}$`)

// Status is the stored state of a support access request.
type Status string

const (
	// StatusPending means the request is waiting for the target party.
	StatusPending Status = "pending"
	// StatusApproved means the request was approved. Approval is terminal;
	// expiry is derived from ExpirationTimestamp at read time.
	StatusApproved Status = "approved"
)

// IsValid returns true if the status is a known value.
func (s Status) IsValid() bool {
	return s == StatusPending || s == StatusApproved
}

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// IsTerminal returns true if no further stored transition exists.
func (s Status) IsTerminal() bool {
	return s == StatusApproved
}

// AuditAction identifies an audit trail entry.
type AuditAction string

const (
	// ActionRequested is always the first entry of a trail.
	ActionRequested AuditAction = "requested"
	// ActionApproved is appended together with the approval.
	ActionApproved AuditAction = "approved"
	// ActionAccessed is appended on each successful verification.
	ActionAccessed AuditAction = "accessed"
)

// IsValid returns true if the action is a known value.
func (a AuditAction) IsValid() bool {
	switch a {
	case ActionRequested, ActionApproved, ActionAccessed:
		return true
	}
	return false
}

// String returns the string representation of the action.
func (a AuditAction) String() string {
	return string(a)
}

// DigitalSignature is the consent artifact produced by the approving party.
type DigitalSignature struct {
	SignatureData string    `json:"signature_data"`
	SignedAt      time.Time `json:"signed_at"`
	IPAddress     string    `json:"ip_address,omitempty"`
	UserAgent     string    `json:"user_agent,omitempty"`
	ConsentText   string    `json:"consent_text"`
}

// AuditEntry is one immutable element of a request's audit trail.
type AuditEntry struct {
	Action    AuditAction       `json:"action"`
	UserID    string            `json:"user_id"`
	Timestamp time.Time         `json:"timestamp"`
	IPAddress string            `json:"ip_address,omitempty"`
	UserAgent string            `json:"user_agent,omitempty"`
	Details   map[string]string `json:"details,omitempty"`
}

// SupportAccessRequest is the persisted record of one support access grant.
//
// DigitalSignature, ApprovedBy and ExpirationTimestamp are set together on
// approval and are absent (nil, empty, zero) while pending.
type SupportAccessRequest struct {
	ID                  string            `json:"id"`
	SuperadminID        string            `json:"superadmin_id"`
	TargetTenantID      string            `json:"target_tenant_id"`
	TargetUserID        string            `json:"target_user_id,omitempty"` // empty for tenant-level grants
	Purpose             string            `json:"purpose"`
	Status              Status            `json:"status"`
	DigitalSignature    *DigitalSignature `json:"digital_signature,omitempty"`
	ApprovedBy          string            `json:"approved_by,omitempty"`
	ExpirationTimestamp time.Time         `json:"expiration_timestamp,omitempty"`
	AuditTrail          []AuditEntry      `json:"audit_trail"`
	CreatedAt           time.Time         `json:"created_at"`
	UpdatedAt           time.Time         `json:"updated_at"`
}

// IsTenantLevel returns true if the request covers a whole tenant.
func (r *SupportAccessRequest) IsTenantLevel() bool {
	return r.TargetUserID == ""
}

// IsExpired returns true if the request was approved and its grant has lapsed.
// Pending requests are never expired.
func (r *SupportAccessRequest) IsExpired(now time.Time) bool {
	return r.Status == StatusApproved && now.After(r.ExpirationTimestamp)
}

// IsActive returns true if the request grants access at the given instant.
func (r *SupportAccessRequest) IsActive(now time.Time) bool {
	return r.Status == StatusApproved && !r.IsExpired(now)
}

// MatchesScope returns true if the request covers exactly the given scope.
// An empty userID selects tenant-level grants only, so user-level and
// tenant-level grants never match each other.
func (r *SupportAccessRequest) MatchesScope(tenantID, userID string) bool {
	return r.TargetTenantID == tenantID && r.TargetUserID == userID
}

// MarshalJSON omits expiration_timestamp while the request has none.
func (r SupportAccessRequest) MarshalJSON() ([]byte, error) {
	type plain SupportAccessRequest
	out := struct {
		plain
		ExpirationTimestamp *time.Time `json:"expiration_timestamp,omitempty"`
	}{plain: plain(r)}
	if !r.ExpirationTimestamp.IsZero() {
		exp := r.ExpirationTimestamp
		out.ExpirationTimestamp = &exp
	}
	return json.Marshal(out)
}

// Clone returns a deep copy of the request.
func (r *SupportAccessRequest) Clone() *SupportAccessRequest {
	if r == nil {
		return nil
	}
	c := *r
	if r.DigitalSignature != nil {
		sig := *r.DigitalSignature
		c.DigitalSignature = &sig
	}
	c.AuditTrail = make([]AuditEntry, len(r.AuditTrail))
	for i, e := range r.AuditTrail {
		c.AuditTrail[i] = e.clone()
	}
	return &c
}

func (e AuditEntry) clone() AuditEntry {
	if e.Details != nil {
		details := make(map[string]string, len(e.Details))
		for k, v := range e.Details {
			details[k] = v
		}
		e.Details = details
	}
	return e
}

// NewRequestID generates a new 16-character lowercase hex request ID
// using crypto/rand.
func NewRequestID() string {
	b := make([]byte, RequestIDLength/2)
	if _, err := rand.Read(b); err != nil {
		panic("crypto/rand failed: " + err.Error())
	}
	return hex.EncodeToString(b)
}

// ValidateRequestID returns true if id is a well-formed request ID.
func ValidateRequestID(id string) bool {
	return requestIDRegex.MatchString(id)
}
