// Package notification delivers support access lifecycle events to people
// who need to see them: the tenant whose data is about to be opened up and
// the platform team that owns the break-glass process.
//
// # Event Types
//
//   - support_access.requested: a superadmin asked for access to a tenant or user
//   - support_access.approved: a tenant member signed consent and the grant started
//
// # Notification Delivery
//
// The Notifier interface allows pluggable backends (SNS, webhooks).
// MultiNotifier fans out to several of them. NotifyStore wraps a
// supportaccess.Store so events fire only after a mutation has committed.
package notification

import (
	"time"

	"github.com/byteness/supportaccess/supportaccess"
)

// EventType represents the type of notification event.
type EventType string

const (
	// EventRequested is emitted when a superadmin creates a request.
	EventRequested EventType = "support_access.requested"
	// EventApproved is emitted when a pending request is approved.
	EventApproved EventType = "support_access.approved"
)

// IsValid returns true if the EventType is a known value.
func (t EventType) IsValid() bool {
	switch t {
	case EventRequested, EventApproved:
		return true
	}
	return false
}

// String returns the string representation of the EventType.
func (t EventType) String() string {
	return string(t)
}

// RequestInfo is the part of a request that leaves the system in a
// notification. Signature data and the audit trail are never included.
type RequestInfo struct {
	ID                  string               `json:"id"`
	SuperadminID        string               `json:"superadmin_id"`
	TargetTenantID      string               `json:"target_tenant_id"`
	TargetUserID        string               `json:"target_user_id,omitempty"`
	Purpose             string               `json:"purpose"`
	Status              supportaccess.Status `json:"status"`
	ApprovedBy          string               `json:"approved_by,omitempty"`
	ExpirationTimestamp *time.Time           `json:"expiration_timestamp,omitempty"`
	CreatedAt           time.Time            `json:"created_at"`
}

// NewRequestInfo copies the notifiable fields of req.
func NewRequestInfo(req *supportaccess.SupportAccessRequest) *RequestInfo {
	info := &RequestInfo{
		ID:             req.ID,
		SuperadminID:   req.SuperadminID,
		TargetTenantID: req.TargetTenantID,
		TargetUserID:   req.TargetUserID,
		Purpose:        req.Purpose,
		Status:         req.Status,
		ApprovedBy:     req.ApprovedBy,
		CreatedAt:      req.CreatedAt,
	}
	if !req.ExpirationTimestamp.IsZero() {
		exp := req.ExpirationTimestamp
		info.ExpirationTimestamp = &exp
	}
	return info
}

// Event represents a notification event triggered by a request state change.
type Event struct {
	// Type is the event type.
	Type EventType `json:"type"`

	// Request is the request that triggered this event.
	Request *RequestInfo `json:"request"`

	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"timestamp"`

	// Actor is who triggered the event:
	//   - the superadmin id for requested
	//   - the approving tenant member id for approved
	Actor string `json:"actor"`
}

// NewEvent creates a new notification event stamped with at.
func NewEvent(eventType EventType, req *supportaccess.SupportAccessRequest, actor string, at time.Time) *Event {
	return &Event{
		Type:      eventType,
		Request:   NewRequestInfo(req),
		Timestamp: at.UTC(),
		Actor:     actor,
	}
}
