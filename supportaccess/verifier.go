package supportaccess

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/byteness/supportaccess/logging"
	"github.com/byteness/supportaccess/metrics"
)

// Verification refusal reasons returned in VerifyResult.Error.
const (
	ReasonUserNotFound  = "User not found"
	ReasonNotSuperadmin = "Only superadmins can use support access"
	ReasonPending       = "Support access request is pending approval"
	ReasonExpired       = "Support access request has expired"
	ReasonNoApproved    = "No approved support access request found"
)

// VerifyInput carries the arguments of Verify. An empty TargetUserID asks
// about tenant-level access.
type VerifyInput struct {
	ActorEmail     string
	TargetTenantID string
	TargetUserID   string
	IPAddress      string
	UserAgent      string
}

// VerifyResult answers whether the actor currently holds access to a scope.
type VerifyResult struct {
	Authorized bool       `json:"authorized"`
	RequestID  string     `json:"request_id,omitempty"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"` // set only when Authorized
	Error      string     `json:"error,omitempty"`
}

// Verifier is the gate privileged code calls before using support access.
type Verifier struct {
	store    Store
	resolver ActorResolver
	clock    Clock
	audit    *AuditLogger
	metrics  metrics.Recorder
}

// NewVerifier creates a Verifier. Nil clock, logger and recorder fall back
// to the system clock and no-op implementations.
func NewVerifier(store Store, resolver ActorResolver, clock Clock, logger logging.Logger, recorder metrics.Recorder) *Verifier {
	if clock == nil {
		clock = SystemClock{}
	}
	if recorder == nil {
		recorder = metrics.NopRecorder{}
	}
	return &Verifier{
		store:    store,
		resolver: resolver,
		clock:    clock,
		audit:    NewAuditLogger(store, logger, clock),
		metrics:  recorder,
	}
}

// Verify reports whether the actor holds an active grant for exactly the
// requested scope. A user-level query only matches grants for that user, and
// a tenant-level query only matches tenant-level grants.
//
// Refusals are returned as a result with Authorized false, never as an error.
// The error is reserved for infrastructure failures, including a failure to
// record the access on the audit trail, in which case access is refused.
func (v *Verifier) Verify(ctx context.Context, in VerifyInput) (VerifyResult, error) {
	actor, err := v.resolver.ResolveActor(ctx, strings.TrimSpace(in.ActorEmail))
	if err != nil {
		if errors.Is(err, ErrActorNotFound) {
			return v.deny(ctx, "", in, "", ReasonUserNotFound, metrics.OutcomeDenied), nil
		}
		return VerifyResult{}, fmt.Errorf("resolve actor: %w", err)
	}
	if !actor.Role.CanRequestAccess() {
		return v.deny(ctx, actor.ID, in, "", ReasonNotSuperadmin, metrics.OutcomeDenied), nil
	}

	candidates, err := v.store.ListByScope(ctx, actor.ID, in.TargetTenantID, in.TargetUserID)
	if err != nil {
		return VerifyResult{}, fmt.Errorf("list scope requests: %w", err)
	}

	now := v.clock.Now()
	var active, pending, expired *SupportAccessRequest
	for _, req := range candidates {
		if req.SuperadminID != actor.ID || !req.MatchesScope(in.TargetTenantID, in.TargetUserID) {
			continue
		}
		if req.Status == StatusPending || req.Status == StatusApproved {
			if req, err = v.reload(ctx, req); err != nil {
				return VerifyResult{}, err
			}
		}
		switch {
		case req.IsActive(now):
			if active == nil || req.ExpirationTimestamp.After(active.ExpirationTimestamp) {
				active = req
			}
		case req.Status == StatusPending:
			if pending == nil {
				pending = req
			}
		case req.IsExpired(now):
			if expired == nil {
				expired = req
			}
		}
	}

	switch {
	case active != nil:
		entry := v.audit.NewEntry(ActionAccessed, actor.ID, in.IPAddress, in.UserAgent, nil)
		if err := v.audit.Append(ctx, active, entry); err != nil {
			return VerifyResult{Authorized: false, RequestID: active.ID, Error: "Failed to record access"}, err
		}
		v.metrics.RecordVerification(ctx, metrics.OutcomeGranted)
		expiresAt := active.ExpirationTimestamp
		return VerifyResult{
			Authorized: true,
			RequestID:  active.ID,
			ExpiresAt:  &expiresAt,
		}, nil
	case pending != nil:
		return v.deny(ctx, actor.ID, in, pending.ID, ReasonPending, metrics.OutcomePending), nil
	case expired != nil:
		return v.deny(ctx, actor.ID, in, expired.ID, ReasonExpired, metrics.OutcomeExpired), nil
	}
	return v.deny(ctx, actor.ID, in, "", ReasonNoApproved, metrics.OutcomeNotFound), nil
}

// reload re-reads a listed request by ID. Scope listings may come from an
// eventually consistent index, so a just-approved grant can still be listed
// as pending.
func (v *Verifier) reload(ctx context.Context, req *SupportAccessRequest) (*SupportAccessRequest, error) {
	fresh, err := v.store.Get(ctx, req.ID)
	if errors.Is(err, ErrRequestNotFound) {
		return req, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reload request %s: %w", req.ID, err)
	}
	return fresh, nil
}

func (v *Verifier) deny(ctx context.Context, actorID string, in VerifyInput, requestID, reason string, outcome metrics.Outcome) VerifyResult {
	v.audit.Denied(actorID, in, requestID, reason)
	v.metrics.RecordVerification(ctx, outcome)
	return VerifyResult{Authorized: false, RequestID: requestID, Error: reason}
}
