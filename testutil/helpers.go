// Package testutil provides reusable mocks, fixtures and assertion helpers
// for testing support access components.
package testutil

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/byteness/supportaccess/supportaccess"
)

// ============================================================================
// Time helpers
// ============================================================================

// MustParseTime parses a time string using the given layout and panics on error.
//
// Example:
//
//	t := MustParseTime(time.RFC3339, "2026-03-14T10:00:00Z")
func MustParseTime(layout, value string) time.Time {
	t, err := time.Parse(layout, value)
	if err != nil {
		panic("testutil.MustParseTime: " + err.Error())
	}
	return t
}

// ============================================================================
// Request fixtures
// ============================================================================

// MakeRequest creates a pending request. An empty userID makes it tenant-level.
func MakeRequest(superadminID, tenantID, userID string, createdAt time.Time) *supportaccess.SupportAccessRequest {
	return &supportaccess.SupportAccessRequest{
		ID:             supportaccess.NewRequestID(),
		SuperadminID:   superadminID,
		TargetTenantID: tenantID,
		TargetUserID:   userID,
		Purpose:        "Investigate reported issue",
		Status:         supportaccess.StatusPending,
		AuditTrail: []supportaccess.AuditEntry{
			{Action: supportaccess.ActionRequested, UserID: superadminID, Timestamp: createdAt},
		},
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
}

// MakeApprovedRequest creates a request approved by approverID at approvedAt,
// with a grant lasting GrantLifetime.
func MakeApprovedRequest(superadminID, tenantID, userID, approverID string, approvedAt time.Time) *supportaccess.SupportAccessRequest {
	req := MakeRequest(superadminID, tenantID, userID, approvedAt.Add(-time.Minute))
	req.Status = supportaccess.StatusApproved
	req.DigitalSignature = MakeSignature(approvedAt)
	req.ApprovedBy = approverID
	req.ExpirationTimestamp = approvedAt.Add(supportaccess.GrantLifetime)
	req.UpdatedAt = approvedAt
	req.AuditTrail = append(req.AuditTrail, supportaccess.AuditEntry{
		Action: supportaccess.ActionApproved, UserID: approverID, Timestamp: approvedAt,
	})
	return req
}

// MakeSignature creates a complete signature signed at signedAt.
func MakeSignature(signedAt time.Time) *supportaccess.DigitalSignature {
	return &supportaccess.DigitalSignature{
		SignatureData: "data:image/png;base64,iVBORw0KGgo=",
		SignedAt:      signedAt,
		ConsentText:   "I allow platform support to access my account for one hour.",
	}
}

// ============================================================================
// Assertion helpers
// ============================================================================

// AssertErrorIs checks if got error matches want error using errors.Is.
//
// Example:
//
//	AssertErrorIs(t, err, supportaccess.ErrRequestNotFound)
func AssertErrorIs(t *testing.T, got, want error) {
	t.Helper()
	if !errors.Is(got, want) {
		t.Errorf("error mismatch:\n  got:  %v\n  want: %v", got, want)
	}
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// AssertContains fails the test if got does not contain substr.
func AssertContains(t *testing.T, got, substr string) {
	t.Helper()
	if !strings.Contains(got, substr) {
		t.Errorf("expected %q to contain %q", got, substr)
	}
}

// AssertNotContains fails the test if got contains substr.
func AssertNotContains(t *testing.T, got, substr string) {
	t.Helper()
	if strings.Contains(got, substr) {
		t.Errorf("expected %q not to contain %q", got, substr)
	}
}

// AssertEqual fails the test if got != want.
func AssertEqual[T comparable](t *testing.T, got, want T) {
	t.Helper()
	if got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}
