package supportaccess

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/byteness/supportaccess/metrics"
)

func TestVerify_GrantedAppendsAccessEntry(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	id := env.mustRequest(t, "ops@platform.test", "tenant-1", "user-x")
	res := env.mustApprove(t, id, "x@clinic-one.test")

	env.clock.Advance(10 * time.Minute)
	result, err := env.verifier.Verify(ctx, VerifyInput{
		ActorEmail:     "ops@platform.test",
		TargetTenantID: "tenant-1",
		TargetUserID:   "user-x",
		IPAddress:      "10.0.0.8",
		UserAgent:      "support-console/1.4",
	})
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}

	want := VerifyResult{Authorized: true, RequestID: id, ExpiresAt: &res.ExpirationTimestamp}
	if diff := cmp.Diff(want, result); diff != "" {
		t.Errorf("Verify() mismatch (-want +got):\n%s", diff)
	}

	req := env.mustGet(t, id)
	accessed := req.AuditTrail[len(req.AuditTrail)-1]
	wantEntry := AuditEntry{
		Action:    ActionAccessed,
		UserID:    "sa-1",
		Timestamp: t0.Add(10 * time.Minute),
		IPAddress: "10.0.0.8",
		UserAgent: "support-console/1.4",
	}
	if diff := cmp.Diff(wantEntry, accessed); diff != "" {
		t.Errorf("accessed entry mismatch (-want +got):\n%s", diff)
	}
	if env.counts.Count(metrics.OutcomeGranted) != 1 {
		t.Errorf("granted count = %d, want 1", env.counts.Count(metrics.OutcomeGranted))
	}
}

func TestVerify_AuditTrailOnlyGrows(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	id := env.mustRequest(t, "ops@platform.test", "tenant-1", "user-x")
	env.mustApprove(t, id, "x@clinic-one.test")

	prev := env.mustGet(t, id).AuditTrail
	for i := 0; i < 5; i++ {
		env.clock.Advance(time.Minute)
		if _, err := env.verifier.Verify(ctx, VerifyInput{
			ActorEmail: "ops@platform.test", TargetTenantID: "tenant-1", TargetUserID: "user-x",
		}); err != nil {
			t.Fatalf("Verify() error = %v", err)
		}

		cur := env.mustGet(t, id).AuditTrail
		if len(cur) != len(prev)+1 {
			t.Fatalf("len(AuditTrail) = %d, want %d", len(cur), len(prev)+1)
		}
		if diff := cmp.Diff(prev, cur[:len(prev)]); diff != "" {
			t.Fatalf("existing audit entries changed (-before +after):\n%s", diff)
		}
		prev = cur
	}
}

func TestVerify_ScopesAreDisjoint(t *testing.T) {
	tests := []struct {
		name        string
		grantUserID string
		verifyUser  string
		want        bool
	}{
		{"user grant, same user", "user-x", "user-x", true},
		{"user grant, other user", "user-x", "user-y", false},
		{"user grant, tenant query", "user-x", "", false},
		{"tenant grant, tenant query", "", "", true},
		{"tenant grant, user query", "", "user-x", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv()
			id := env.mustRequest(t, "ops@platform.test", "tenant-1", tt.grantUserID)
			approver := "x@clinic-one.test"
			env.mustApprove(t, id, approver)

			result, err := env.verifier.Verify(context.Background(), VerifyInput{
				ActorEmail: "ops@platform.test", TargetTenantID: "tenant-1", TargetUserID: tt.verifyUser,
			})
			if err != nil {
				t.Fatalf("Verify() error = %v", err)
			}
			if result.Authorized != tt.want {
				t.Errorf("Verify().Authorized = %v, want %v (error %q)", result.Authorized, tt.want, result.Error)
			}
			if !tt.want && result.Error != ReasonNoApproved {
				t.Errorf("Verify().Error = %q, want %q", result.Error, ReasonNoApproved)
			}
		})
	}
}

func TestVerify_OtherTenantNeverMatches(t *testing.T) {
	env := newTestEnv()
	id := env.mustRequest(t, "ops@platform.test", "tenant-1", "")
	env.mustApprove(t, id, "y@clinic-one.test")

	result, err := env.verifier.Verify(context.Background(), VerifyInput{
		ActorEmail: "ops@platform.test", TargetTenantID: "tenant-2",
	})
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if result.Authorized {
		t.Error("grant for tenant-1 authorized tenant-2")
	}
}

func TestVerify_Pending(t *testing.T) {
	env := newTestEnv()
	id := env.mustRequest(t, "ops@platform.test", "tenant-1", "user-x")

	result, err := env.verifier.Verify(context.Background(), VerifyInput{
		ActorEmail: "ops@platform.test", TargetTenantID: "tenant-1", TargetUserID: "user-x",
	})
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if result.Authorized {
		t.Fatal("pending request authorized access")
	}
	if !strings.Contains(result.Error, "pending") {
		t.Errorf("Verify().Error = %q, want mention of pending", result.Error)
	}
	if result.RequestID != id {
		t.Errorf("Verify().RequestID = %q, want %q", result.RequestID, id)
	}
	if got := len(env.mustGet(t, id).AuditTrail); got != 1 {
		t.Errorf("len(AuditTrail) = %d, want 1", got)
	}
	if env.counts.Count(metrics.OutcomePending) != 1 {
		t.Errorf("pending count = %d, want 1", env.counts.Count(metrics.OutcomePending))
	}
}

func TestVerify_LazyExpiry(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	id := env.mustRequest(t, "ops@platform.test", "tenant-1", "user-x")
	res := env.mustApprove(t, id, "x@clinic-one.test")
	in := VerifyInput{ActorEmail: "ops@platform.test", TargetTenantID: "tenant-1", TargetUserID: "user-x"}

	// The expiration instant itself is still inside the grant.
	env.clock.Set(res.ExpirationTimestamp)
	if result, _ := env.verifier.Verify(ctx, in); !result.Authorized {
		t.Errorf("Verify() at expiration = %+v, want authorized", result)
	}

	env.clock.Set(res.ExpirationTimestamp.Add(time.Millisecond))
	result, err := env.verifier.Verify(ctx, in)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if result.Authorized {
		t.Fatal("expired grant authorized access")
	}
	if result.Error != ReasonExpired {
		t.Errorf("Verify().Error = %q, want %q", result.Error, ReasonExpired)
	}

	req := env.mustGet(t, id)
	if req.Status != StatusApproved {
		t.Errorf("stored Status = %q, want %q", req.Status, StatusApproved)
	}
	if diff := cmp.Diff([]AuditAction{ActionRequested, ActionApproved, ActionAccessed}, actions(req)); diff != "" {
		t.Errorf("trail mismatch (-want +got):\n%s", diff)
	}
}

func TestVerify_NewerGrantWinsOverExpired(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	old := env.mustRequest(t, "ops@platform.test", "tenant-1", "user-x")
	env.mustApprove(t, old, "x@clinic-one.test")
	env.clock.Advance(3 * time.Hour)

	fresh := env.mustRequest(t, "ops@platform.test", "tenant-1", "user-x")
	env.mustApprove(t, fresh, "x@clinic-one.test")

	result, err := env.verifier.Verify(ctx, VerifyInput{
		ActorEmail: "ops@platform.test", TargetTenantID: "tenant-1", TargetUserID: "user-x",
	})
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if !result.Authorized || result.RequestID != fresh {
		t.Errorf("Verify() = %+v, want authorized by %s", result, fresh)
	}
	if got := len(env.mustGet(t, old).AuditTrail); got != 2 {
		t.Errorf("expired request trail length = %d, want 2", got)
	}
}

func TestVerify_GrantIsBoundToRequestingSuperadmin(t *testing.T) {
	env := newTestEnv()
	id := env.mustRequest(t, "ops@platform.test", "tenant-1", "user-x")
	env.mustApprove(t, id, "x@clinic-one.test")

	result, err := env.verifier.Verify(context.Background(), VerifyInput{
		ActorEmail: "oncall@platform.test", TargetTenantID: "tenant-1", TargetUserID: "user-x",
	})
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if result.Authorized {
		t.Error("another superadmin used a grant they did not request")
	}
}

func TestVerify_RefusedActors(t *testing.T) {
	tests := []struct {
		email  string
		reason string
	}{
		{"ghost@platform.test", ReasonUserNotFound},
		{"y@clinic-one.test", ReasonNotSuperadmin},
	}

	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			env := newTestEnv()

			result, err := env.verifier.Verify(context.Background(), VerifyInput{
				ActorEmail: tt.email, TargetTenantID: "tenant-1",
			})
			if err != nil {
				t.Fatalf("Verify() error = %v, want refusal result", err)
			}
			if result.Authorized || result.Error != tt.reason {
				t.Errorf("Verify() = %+v, want refusal %q", result, tt.reason)
			}
			if env.counts.Count(metrics.OutcomeDenied) != 1 {
				t.Errorf("denied count = %d, want 1", env.counts.Count(metrics.OutcomeDenied))
			}
		})
	}
}

func TestVerify_DenialIsLogged(t *testing.T) {
	env := newTestEnv()

	_, err := env.verifier.Verify(context.Background(), VerifyInput{
		ActorEmail: "ops@platform.test", TargetTenantID: "tenant-1", TargetUserID: "user-x", IPAddress: "10.1.1.1",
	})
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}

	entry := env.logs.last()
	if entry.Event != "support_access.denied" {
		t.Errorf("Event = %q, want %q", entry.Event, "support_access.denied")
	}
	if entry.ActorID != "sa-1" || entry.TargetUserID != "user-x" || entry.IPAddress != "10.1.1.1" {
		t.Errorf("denied entry = %+v", entry)
	}
	if entry.Reason != ReasonNoApproved {
		t.Errorf("Reason = %q, want %q", entry.Reason, ReasonNoApproved)
	}
	if env.counts.Count(metrics.OutcomeNotFound) != 1 {
		t.Errorf("not_found count = %d, want 1", env.counts.Count(metrics.OutcomeNotFound))
	}
}

// failingAppendStore rejects audit appends.
type failingAppendStore struct {
	*MemoryStore
}

func (s failingAppendStore) AppendAudit(ctx context.Context, id string, entry AuditEntry) error {
	return errors.New("ProvisionedThroughputExceededException")
}

func TestVerify_AuditFailureRefusesAccess(t *testing.T) {
	env := newTestEnv()
	id := env.mustRequest(t, "ops@platform.test", "tenant-1", "user-x")
	env.mustApprove(t, id, "x@clinic-one.test")

	verifier := NewVerifier(failingAppendStore{env.store}, env.resolver, env.clock, env.logs, env.counts)
	result, err := verifier.Verify(context.Background(), VerifyInput{
		ActorEmail: "ops@platform.test", TargetTenantID: "tenant-1", TargetUserID: "user-x",
	})
	if err == nil {
		t.Fatal("Verify() error = nil, want audit failure")
	}
	if result.Authorized {
		t.Error("access granted without an audit entry")
	}
	for _, e := range env.logs.events() {
		if e == "support_access.accessed" {
			t.Error("accessed event logged although the audit append failed")
		}
	}
}

func TestVerify_StoreFailureIsError(t *testing.T) {
	env := newTestEnv()
	env.resolver.err = errors.New("directory timeout")

	if _, err := env.verifier.Verify(context.Background(), VerifyInput{ActorEmail: "ops@platform.test", TargetTenantID: "tenant-1"}); err == nil {
		t.Error("Verify() error = nil, want resolver failure")
	}
}

func TestVerify_GrantFoundBehindLargeTenantHistory(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	id := env.mustRequest(t, "ops@platform.test", "tenant-1", "user-x")
	env.mustApprove(t, id, "x@clinic-one.test")

	for i := 0; i < MaxQueryLimit+1; i++ {
		r := validRequest()
		r.ID = fmt.Sprintf("%016x", i+1)
		r.SuperadminID = "sa-2"
		r.CreatedAt = t0.Add(time.Duration(i+1) * time.Second)
		r.UpdatedAt = r.CreatedAt
		if err := env.store.Create(ctx, r); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	env.clock.Advance(30 * time.Minute)
	result, err := env.verifier.Verify(ctx, VerifyInput{
		ActorEmail: "ops@platform.test", TargetTenantID: "tenant-1", TargetUserID: "user-x",
	})
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if !result.Authorized || result.RequestID != id {
		t.Errorf("Verify() = %+v, want grant %s", result, id)
	}
}

// staleScopeStore lists requests from a snapshot, as an eventually
// consistent index would right after a write.
type staleScopeStore struct {
	*MemoryStore
	snapshot []*SupportAccessRequest
}

func (s *staleScopeStore) ListByScope(ctx context.Context, superadminID, tenantID, userID string) ([]*SupportAccessRequest, error) {
	return s.snapshot, nil
}

func TestVerify_ReloadsListedRequests(t *testing.T) {
	tests := []struct {
		name    string
		approve bool
		wantOK  bool
		reason  string
	}{
		{"listed pending but approved", true, true, ""},
		{"still pending", false, false, ReasonPending},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv()
			ctx := context.Background()
			id := env.mustRequest(t, "ops@platform.test", "tenant-1", "user-x")

			snapshot, err := env.store.ListByScope(ctx, "sa-1", "tenant-1", "user-x")
			if err != nil || len(snapshot) != 1 {
				t.Fatalf("ListByScope() = %d, %v; want 1 request", len(snapshot), err)
			}
			if tt.approve {
				env.mustApprove(t, id, "x@clinic-one.test")
			}

			store := &staleScopeStore{MemoryStore: env.store, snapshot: snapshot}
			verifier := NewVerifier(store, env.resolver, env.clock, env.logs, env.counts)
			result, err := verifier.Verify(ctx, VerifyInput{
				ActorEmail: "ops@platform.test", TargetTenantID: "tenant-1", TargetUserID: "user-x",
			})
			if err != nil {
				t.Fatalf("Verify() error = %v", err)
			}
			if result.Authorized != tt.wantOK || result.Error != tt.reason || result.RequestID != id {
				t.Errorf("Verify() = %+v, want authorized=%v error=%q", result, tt.wantOK, tt.reason)
			}
		})
	}
}

func TestVerifyResult_JSONOmitsExpiryWhenRefused(t *testing.T) {
	env := newTestEnv()
	id := env.mustRequest(t, "ops@platform.test", "tenant-1", "user-x")

	result, err := env.verifier.Verify(context.Background(), VerifyInput{
		ActorEmail: "ops@platform.test", TargetTenantID: "tenant-1", TargetUserID: "user-x",
	})
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}

	data, err := json.Marshal(result)
	if err != nil {
		t.Fatalf("json.Marshal() error = %v", err)
	}
	want := `{"authorized":false,"request_id":"` + id + `","error":"` + ReasonPending + `"}`
	if string(data) != want {
		t.Errorf("json = %s, want %s", data, want)
	}
}
