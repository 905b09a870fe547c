package logging

import (
	"time"

	"github.com/byteness/supportaccess/iso8601"
)

// SupportAccessEvent names an audit log event.
type SupportAccessEvent string

const (
	// EventRequested is logged when a superadmin creates a request.
	EventRequested SupportAccessEvent = "support_access.requested"
	// EventApproved is logged when the target party approves a request.
	EventApproved SupportAccessEvent = "support_access.approved"
	// EventAccessed is logged when a verification grants access.
	EventAccessed SupportAccessEvent = "support_access.accessed"
	// EventDenied is logged when a verification refuses access.
	// Denials are not written to the request's audit trail.
	EventDenied SupportAccessEvent = "support_access.denied"
)

// IsValid returns true if the event is a known support access event.
func (e SupportAccessEvent) IsValid() bool {
	switch e {
	case EventRequested, EventApproved, EventAccessed, EventDenied:
		return true
	}
	return false
}

// String returns the string representation of the event.
func (e SupportAccessEvent) String() string {
	return string(e)
}

// SupportAccessLogEntry captures the context of one support access event.
type SupportAccessLogEntry struct {
	Timestamp      string `json:"timestamp"`                  // ISO8601 format
	Event          string `json:"event"`                      // "support_access.requested", etc.
	RequestID      string `json:"request_id,omitempty"`       // empty for denials with no matching record
	ActorID        string `json:"actor_id,omitempty"`         // user who triggered the event
	SuperadminID   string `json:"superadmin_id,omitempty"`    // requesting superadmin
	TargetTenantID string `json:"target_tenant_id"`           // tenant whose data is in scope
	TargetUserID   string `json:"target_user_id,omitempty"`   // empty for tenant-level grants
	Status         string `json:"status,omitempty"`           // stored status after the event
	Purpose        string `json:"purpose,omitempty"`          // only on requested
	ExpiresAt      string `json:"expires_at,omitempty"`       // on approved and accessed
	IPAddress      string `json:"ip_address,omitempty"`
	UserAgent      string `json:"user_agent,omitempty"`
	Reason         string `json:"reason,omitempty"`           // only on denied
}

// NewSupportAccessLogEntry creates an entry with the event name and timestamp
// populated. Callers fill the remaining fields from the request they hold.
func NewSupportAccessLogEntry(event SupportAccessEvent, at time.Time, targetTenantID string) SupportAccessLogEntry {
	return SupportAccessLogEntry{
		Timestamp:      iso8601.Format(at),
		Event:          string(event),
		TargetTenantID: targetTenantID,
	}
}

// WithExpiry sets ExpiresAt from t. A zero t leaves the field empty.
func (e SupportAccessLogEntry) WithExpiry(t time.Time) SupportAccessLogEntry {
	if !t.IsZero() {
		e.ExpiresAt = iso8601.Format(t)
	}
	return e
}
