package supportaccess

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/byteness/supportaccess/logging"
	"github.com/byteness/supportaccess/metrics"
)

var t0 = time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

// mockResolver implements ActorResolver over fixed users and tenants.
type mockResolver struct {
	users   []*Actor
	tenants map[string]bool
	err     error
}

func newMockResolver() *mockResolver {
	return &mockResolver{
		users: []*Actor{
			{ID: "sa-1", Email: "ops@platform.test", Name: "Olive Ops", Role: RoleSuperadmin},
			{ID: "sa-2", Email: "oncall@platform.test", Name: "Omar Oncall", Role: RoleSuperadmin},
			{ID: "sa-t", Email: "embedded@platform.test", Name: "Erin Embedded", Role: RoleSuperadmin, TenantID: "tenant-1"},
			{ID: "user-x", Email: "x@clinic-one.test", Name: "Xavier", Role: RoleUser, TenantID: "tenant-1"},
			{ID: "user-y", Email: "y@clinic-one.test", Name: "Yara", Role: RoleAdmin, TenantID: "tenant-1"},
			{ID: "user-z", Email: "z@clinic-two.test", Name: "Zed", Role: RoleStaff, TenantID: "tenant-2"},
		},
		tenants: map[string]bool{"tenant-1": true, "tenant-2": true},
	}
}

func (r *mockResolver) ResolveActor(ctx context.Context, email string) (*Actor, error) {
	if r.err != nil {
		return nil, r.err
	}
	for _, u := range r.users {
		if strings.EqualFold(u.Email, email) {
			a := *u
			return &a, nil
		}
	}
	return nil, fmt.Errorf("%s: %w", email, ErrActorNotFound)
}

func (r *mockResolver) LookupUser(ctx context.Context, userID string) (*Actor, error) {
	if r.err != nil {
		return nil, r.err
	}
	for _, u := range r.users {
		if u.ID == userID {
			a := *u
			return &a, nil
		}
	}
	return nil, fmt.Errorf("%s: %w", userID, ErrActorNotFound)
}

func (r *mockResolver) TenantExists(ctx context.Context, tenantID string) (bool, error) {
	if r.err != nil {
		return false, r.err
	}
	return r.tenants[tenantID], nil
}

// recordingLogger captures audit log entries.
type recordingLogger struct {
	mu      sync.Mutex
	entries []logging.SupportAccessLogEntry
}

func (l *recordingLogger) LogSupportAccess(entry logging.SupportAccessLogEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entry)
}

func (l *recordingLogger) events() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.entries))
	for i, e := range l.entries {
		out[i] = e.Event
	}
	return out
}

func (l *recordingLogger) last() logging.SupportAccessLogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.entries[len(l.entries)-1]
}

type testEnv struct {
	store    *MemoryStore
	clock    *ManualClock
	resolver *mockResolver
	logs     *recordingLogger
	counts   *metrics.CounterRecorder
	manager  *Manager
	verifier *Verifier
}

func newTestEnv() *testEnv {
	env := &testEnv{
		store:    NewMemoryStore(),
		clock:    NewManualClock(t0),
		resolver: newMockResolver(),
		logs:     &recordingLogger{},
		counts:   metrics.NewCounterRecorder(),
	}
	env.manager = NewManager(env.store, env.resolver, env.clock, env.logs)
	env.verifier = NewVerifier(env.store, env.resolver, env.clock, env.logs, env.counts)
	return env
}

func signedAt(at time.Time) *DigitalSignature {
	return &DigitalSignature{
		SignatureData: "data:image/png;base64,iVBORw0KGgo=",
		SignedAt:      at,
		ConsentText:   "I consent to temporary support access to my account.",
	}
}

// mustRequest creates a request and fails the test on error.
func (env *testEnv) mustRequest(t *testing.T, actorEmail, tenantID, userID string) string {
	t.Helper()
	summary, err := env.manager.RequestAccess(context.Background(), CreateInput{
		ActorEmail:     actorEmail,
		TargetTenantID: tenantID,
		TargetUserID:   userID,
		Purpose:        "Debugging",
	})
	if err != nil {
		t.Fatalf("RequestAccess() error = %v", err)
	}
	return summary.RequestID
}

// mustApprove approves with a signature made 30 seconds ago.
func (env *testEnv) mustApprove(t *testing.T, id, actorEmail string) *ApproveResult {
	t.Helper()
	res, err := env.manager.Approve(context.Background(), ApproveInput{
		RequestID:  id,
		ActorEmail: actorEmail,
		Signature:  signedAt(env.clock.Now().Add(-30 * time.Second)),
	})
	if err != nil {
		t.Fatalf("Approve() error = %v", err)
	}
	return res
}

func (env *testEnv) mustGet(t *testing.T, id string) *SupportAccessRequest {
	t.Helper()
	req, err := env.store.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("store.Get() error = %v", err)
	}
	return req
}

func actions(req *SupportAccessRequest) []AuditAction {
	out := make([]AuditAction, len(req.AuditTrail))
	for i, e := range req.AuditTrail {
		out[i] = e.Action
	}
	return out
}
