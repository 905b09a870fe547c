package supportaccess

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	saerrors "github.com/byteness/supportaccess/errors"
)

// ValidatePurpose checks that a purpose is present and not too long.
func ValidatePurpose(purpose string) error {
	if strings.TrimSpace(purpose) == "" {
		return saerrors.Validation("Purpose is required")
	}
	if utf8.RuneCountInString(purpose) > MaxPurposeLength {
		return saerrors.Validation(fmt.Sprintf("Purpose cannot exceed %d characters", MaxPurposeLength))
	}
	return nil
}

// CanTransitionTo returns true if a stored request may move from s to target.
// The only stored transition is pending to approved.
func (s Status) CanTransitionTo(target Status) bool {
	return s == StatusPending && target == StatusApproved
}

// Validate checks the structural invariants of a request record.
func (r *SupportAccessRequest) Validate() error {
	if !ValidateRequestID(r.ID) {
		return fmt.Errorf("invalid request ID %q", r.ID)
	}
	if r.SuperadminID == "" {
		return errors.New("superadmin ID is required")
	}
	if r.TargetTenantID == "" {
		return errors.New("target tenant ID is required")
	}
	if err := ValidatePurpose(r.Purpose); err != nil {
		return err
	}
	if !r.Status.IsValid() {
		return fmt.Errorf("invalid status %q", r.Status)
	}

	approved := r.Status == StatusApproved
	if (r.DigitalSignature != nil) != approved ||
		(r.ApprovedBy != "") != approved ||
		(!r.ExpirationTimestamp.IsZero()) != approved {
		return fmt.Errorf("signature, approver and expiration must be set if and only if status is %s", StatusApproved)
	}

	if len(r.AuditTrail) == 0 || r.AuditTrail[0].Action != ActionRequested {
		return fmt.Errorf("audit trail must start with %s", ActionRequested)
	}
	for i, e := range r.AuditTrail {
		if !e.Action.IsValid() {
			return fmt.Errorf("audit entry %d: invalid action %q", i, e.Action)
		}
		if i > 0 && e.Action == ActionRequested {
			return fmt.Errorf("audit entry %d: %s may only appear first", i, ActionRequested)
		}
	}
	return nil
}
