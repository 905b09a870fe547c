package supportaccess

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	saerrors "github.com/byteness/supportaccess/errors"
	"github.com/byteness/supportaccess/logging"
)

// CreateInput carries the arguments of RequestAccess.
type CreateInput struct {
	ActorEmail     string
	TargetTenantID string
	TargetUserID   string // empty requests tenant-level access
	Purpose        string
	IPAddress      string
	UserAgent      string
}

// RequestSummary is returned by RequestAccess.
type RequestSummary struct {
	RequestID       string `json:"request_id"`
	TargetTenantID  string `json:"target_tenant_id"`
	TargetUserID    string `json:"target_user_id,omitempty"`
	TargetUserEmail string `json:"target_user_email,omitempty"` // user-level requests only
	Purpose         string `json:"purpose"`
	SuperadminEmail string `json:"superadmin_email"`
	SuperadminName  string `json:"superadmin_name"`
}

// ApproveInput carries the arguments of Approve. IPAddress and UserAgent are
// the network metadata of the approving call; they are recorded on the audit
// entry and fill the signature's own fields when those are empty.
type ApproveInput struct {
	RequestID  string
	ActorEmail string
	Signature  *DigitalSignature
	IPAddress  string
	UserAgent  string
}

// ApproveResult is returned by a successful Approve.
type ApproveResult struct {
	Success             bool      `json:"success"`
	ExpirationTimestamp time.Time `json:"expiration_timestamp"`
}

// GetInput carries the arguments of Get.
type GetInput struct {
	RequestID  string
	ActorEmail string
}

// ListInput carries the arguments of List. An empty Status lists everything.
type ListInput struct {
	ActorEmail string
	Status     Status
	Limit      int
}

// Manager creates and approves support access requests.
type Manager struct {
	store      Store
	resolver   ActorResolver
	clock      Clock
	signatures *SignatureValidator
	audit      *AuditLogger
}

// NewManager creates a Manager. A nil clock uses the system clock and a nil
// logger discards audit log output.
func NewManager(store Store, resolver ActorResolver, clock Clock, logger logging.Logger) *Manager {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Manager{
		store:      store,
		resolver:   resolver,
		clock:      clock,
		signatures: NewSignatureValidator(),
		audit:      NewAuditLogger(store, logger, clock),
	}
}

// resolveActor maps a missing user to a NotFound error with the given message.
func resolveActor(ctx context.Context, resolver ActorResolver, email, notFound string) (*Actor, error) {
	actor, err := resolver.ResolveActor(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, ErrActorNotFound) {
			return nil, saerrors.NotFound(notFound)
		}
		return nil, fmt.Errorf("resolve actor: %w", err)
	}
	return actor, nil
}

// RequestAccess files a pending support access request on behalf of a superadmin.
func (m *Manager) RequestAccess(ctx context.Context, in CreateInput) (*RequestSummary, error) {
	actor, err := resolveActor(ctx, m.resolver, in.ActorEmail, "User not found")
	if err != nil {
		return nil, err
	}
	if !actor.Role.CanRequestAccess() {
		return nil, saerrors.Authorization("Only superadmins can request support access")
	}

	exists, err := m.resolver.TenantExists(ctx, in.TargetTenantID)
	if err != nil {
		return nil, fmt.Errorf("check tenant: %w", err)
	}
	if !exists {
		return nil, saerrors.NotFound("Tenant not found")
	}

	var target *Actor
	if in.TargetUserID != "" {
		target, err = m.resolver.LookupUser(ctx, in.TargetUserID)
		if err != nil && !errors.Is(err, ErrActorNotFound) {
			return nil, fmt.Errorf("lookup target user: %w", err)
		}
		if target == nil || !target.BelongsTo(in.TargetTenantID) {
			return nil, saerrors.NotFound("Target user not found")
		}
	}

	if err := ValidatePurpose(in.Purpose); err != nil {
		return nil, err
	}

	now := m.clock.Now()
	entry := m.audit.NewEntry(ActionRequested, actor.ID, in.IPAddress, in.UserAgent,
		map[string]string{"purpose": in.Purpose})
	req := &SupportAccessRequest{
		ID:             NewRequestID(),
		SuperadminID:   actor.ID,
		TargetTenantID: in.TargetTenantID,
		TargetUserID:   in.TargetUserID,
		Purpose:        in.Purpose,
		Status:         StatusPending,
		AuditTrail:     []AuditEntry{entry},
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := m.store.Create(ctx, req); err != nil {
		return nil, fmt.Errorf("create support access request: %w", err)
	}
	m.audit.Committed(req, entry)

	summary := &RequestSummary{
		RequestID:       req.ID,
		TargetTenantID:  req.TargetTenantID,
		TargetUserID:    req.TargetUserID,
		Purpose:         req.Purpose,
		SuperadminEmail: actor.Email,
		SuperadminName:  actor.Name,
	}
	if target != nil {
		summary.TargetUserEmail = target.Email
	}
	return summary, nil
}

// Approve records the target party's consent and opens a one hour grant.
//
// Checks run in order: the request exists, it is pending, the actor is
// allowed to approve it, and the signature is complete and fresh. The
// transition and its audit entry are one compare-and-patch on the pending
// status, so of two concurrent approvals exactly one succeeds and the other
// gets the same StateConflict error as any late approval.
func (m *Manager) Approve(ctx context.Context, in ApproveInput) (*ApproveResult, error) {
	req, err := m.store.Get(ctx, in.RequestID)
	if err != nil {
		if errors.Is(err, ErrRequestNotFound) {
			return nil, saerrors.NotFound("Support access request not found")
		}
		return nil, err
	}

	actor, err := resolveActor(ctx, m.resolver, in.ActorEmail, "User not found")
	if err != nil {
		return nil, err
	}

	if req.Status != StatusPending {
		return nil, conflict(req.Status)
	}
	if reason := approvalDenial(req, actor); reason != "" {
		return nil, saerrors.Authorization(reason)
	}

	now := m.clock.Now()
	if err := m.signatures.Check(in.Signature, now); err != nil {
		return nil, err
	}

	sig := *in.Signature
	if sig.IPAddress == "" {
		sig.IPAddress = in.IPAddress
	}
	if sig.UserAgent == "" {
		sig.UserAgent = in.UserAgent
	}

	expiresAt := now.Add(GrantLifetime)
	entry := AuditEntry{
		Action:    ActionApproved,
		UserID:    actor.ID,
		Timestamp: now,
		IPAddress: in.IPAddress,
		UserAgent: in.UserAgent,
	}

	updated, err := m.store.CompareAndPatch(ctx, req.ID, StatusPending, Patch{
		Status:              StatusApproved,
		DigitalSignature:    &sig,
		ApprovedBy:          actor.ID,
		ExpirationTimestamp: expiresAt,
		UpdatedAt:           now,
		Audit:               entry,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrConcurrentModification):
			current, getErr := m.store.Get(ctx, req.ID)
			if getErr != nil {
				return nil, fmt.Errorf("re-read after conflict: %w", getErr)
			}
			return nil, conflict(current.Status)
		case errors.Is(err, ErrRequestNotFound):
			return nil, saerrors.NotFound("Support access request not found")
		}
		return nil, fmt.Errorf("approve support access request: %w", err)
	}
	m.audit.Committed(updated, entry)

	return &ApproveResult{Success: true, ExpirationTimestamp: expiresAt}, nil
}

func conflict(current Status) error {
	return saerrors.StateConflict(fmt.Sprintf("Cannot approve request with status: %s", current))
}

// Get returns a request to the requesting superadmin or the target party.
func (m *Manager) Get(ctx context.Context, in GetInput) (*SupportAccessRequest, error) {
	actor, err := resolveActor(ctx, m.resolver, in.ActorEmail, "User not found")
	if err != nil {
		return nil, err
	}

	req, err := m.store.Get(ctx, in.RequestID)
	if err != nil {
		if errors.Is(err, ErrRequestNotFound) {
			return nil, saerrors.NotFound("Support access request not found")
		}
		return nil, err
	}

	if !canView(req, actor) {
		return nil, saerrors.Authorization("Not authorized to view this support access request")
	}
	return req, nil
}

// List returns requests to a superadmin, newest first. Filtering by pending
// excludes every approved request, and filtering by approved includes
// approvals that have since expired.
func (m *Manager) List(ctx context.Context, in ListInput) ([]*SupportAccessRequest, error) {
	actor, err := resolveActor(ctx, m.resolver, in.ActorEmail, "User not found")
	if err != nil {
		return nil, err
	}
	if !actor.Role.CanListRequests() {
		return nil, saerrors.Authorization("Only superadmins can list support access requests")
	}

	if in.Status != "" {
		if !in.Status.IsValid() {
			return nil, saerrors.Validation(fmt.Sprintf("Invalid status filter: %s", in.Status))
		}
		return m.store.ListByStatus(ctx, in.Status, in.Limit)
	}

	all := make([]*SupportAccessRequest, 0)
	for _, status := range []Status{StatusPending, StatusApproved} {
		reqs, err := m.store.ListByStatus(ctx, status, in.Limit)
		if err != nil {
			return nil, err
		}
		all = append(all, reqs...)
	}
	sortNewestFirst(all)
	if n := effectiveLimit(in.Limit); len(all) > n {
		all = all[:n]
	}
	return all, nil
}
