package notification

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/byteness/supportaccess/supportaccess"
)

var t0 = time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

// testRequest creates a request with the given status.
func testRequest(status supportaccess.Status) *supportaccess.SupportAccessRequest {
	req := &supportaccess.SupportAccessRequest{
		ID:             "1234567890abcdef",
		SuperadminID:   "sa-1",
		TargetTenantID: "tenant-1",
		TargetUserID:   "user-x",
		Purpose:        "Investigate failed sync",
		Status:         status,
		AuditTrail:     []supportaccess.AuditEntry{{Action: supportaccess.ActionRequested, UserID: "sa-1", Timestamp: t0}},
		CreatedAt:      t0,
		UpdatedAt:      t0,
	}
	if status == supportaccess.StatusApproved {
		req.ApprovedBy = "user-x"
		req.ExpirationTimestamp = t0.Add(supportaccess.GrantLifetime)
		req.DigitalSignature = &supportaccess.DigitalSignature{
			SignatureData: "data:image/png;base64,SECRET",
			SignedAt:      t0,
			ConsentText:   "I consent",
		}
	}
	return req
}

func TestEventType_IsValid(t *testing.T) {
	tests := []struct {
		et   EventType
		want bool
	}{
		{EventRequested, true},
		{EventApproved, true},
		{"support_access.accessed", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := tt.et.IsValid(); got != tt.want {
			t.Errorf("EventType(%q).IsValid() = %v, want %v", tt.et, got, tt.want)
		}
	}
}

func TestNewEvent(t *testing.T) {
	local := t0.In(time.FixedZone("EST", -5*3600))
	event := NewEvent(EventApproved, testRequest(supportaccess.StatusApproved), "user-x", local)

	if event.Timestamp.Location() != time.UTC || !event.Timestamp.Equal(t0) {
		t.Errorf("Timestamp = %v, want %v in UTC", event.Timestamp, t0)
	}
	if event.Request.ExpirationTimestamp == nil || !event.Request.ExpirationTimestamp.Equal(t0.Add(time.Hour)) {
		t.Errorf("ExpirationTimestamp = %v", event.Request.ExpirationTimestamp)
	}
	if event.Request.ApprovedBy != "user-x" {
		t.Errorf("ApprovedBy = %q, want user-x", event.Request.ApprovedBy)
	}
}

func TestEvent_JSONOmitsSignature(t *testing.T) {
	event := NewEvent(EventApproved, testRequest(supportaccess.StatusApproved), "user-x", t0)

	data, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	for _, leak := range []string{"SECRET", "signature", "audit_trail"} {
		if strings.Contains(string(data), leak) {
			t.Errorf("event JSON contains %q: %s", leak, data)
		}
	}
	if !strings.Contains(string(data), `"type":"support_access.approved"`) {
		t.Errorf("event JSON missing type: %s", data)
	}
}

func TestNewRequestInfo_PendingHasNoExpiry(t *testing.T) {
	info := NewRequestInfo(testRequest(supportaccess.StatusPending))
	if info.ExpirationTimestamp != nil {
		t.Errorf("ExpirationTimestamp = %v, want nil", info.ExpirationTimestamp)
	}
}
