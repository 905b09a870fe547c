package supportaccess_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	saerrors "github.com/byteness/supportaccess/errors"
	"github.com/byteness/supportaccess/supportaccess"
)

// slowStore widens the window between the read in Approve and the
// compare-and-patch so that concurrent approvals really overlap.
type slowStore struct {
	*supportaccess.MemoryStore
	latency     time.Duration
	patchCalls  atomic.Int64
	patchErrors atomic.Int64
	appendCalls atomic.Int64
}

func (s *slowStore) Get(ctx context.Context, id string) (*supportaccess.SupportAccessRequest, error) {
	time.Sleep(s.latency)
	return s.MemoryStore.Get(ctx, id)
}

func (s *slowStore) CompareAndPatch(ctx context.Context, id string, expected supportaccess.Status, patch supportaccess.Patch) (*supportaccess.SupportAccessRequest, error) {
	s.patchCalls.Add(1)
	req, err := s.MemoryStore.CompareAndPatch(ctx, id, expected, patch)
	if err != nil {
		s.patchErrors.Add(1)
	}
	return req, err
}

func (s *slowStore) AppendAudit(ctx context.Context, id string, entry supportaccess.AuditEntry) error {
	s.appendCalls.Add(1)
	return s.MemoryStore.AppendAudit(ctx, id, entry)
}

type directory struct {
	users map[string]*supportaccess.Actor
}

func (d directory) ResolveActor(ctx context.Context, email string) (*supportaccess.Actor, error) {
	if a, ok := d.users[email]; ok {
		return a, nil
	}
	return nil, fmt.Errorf("%s: %w", email, supportaccess.ErrActorNotFound)
}

func (d directory) LookupUser(ctx context.Context, id string) (*supportaccess.Actor, error) {
	for _, a := range d.users {
		if a.ID == id {
			return a, nil
		}
	}
	return nil, fmt.Errorf("%s: %w", id, supportaccess.ErrActorNotFound)
}

func (d directory) TenantExists(ctx context.Context, id string) (bool, error) {
	return id == "tenant-1", nil
}

func newDirectory() directory {
	users := map[string]*supportaccess.Actor{
		"ops@platform.test": {ID: "sa-1", Email: "ops@platform.test", Role: supportaccess.RoleSuperadmin},
	}
	for i := 0; i < 10; i++ {
		email := fmt.Sprintf("member%d@clinic-one.test", i)
		users[email] = &supportaccess.Actor{ID: fmt.Sprintf("member-%d", i), Email: email, Role: supportaccess.RoleUser, TenantID: "tenant-1"}
	}
	return directory{users: users}
}

func TestConcurrentApprove_ExactlyOneWins(t *testing.T) {
	store := &slowStore{MemoryStore: supportaccess.NewMemoryStore(), latency: 5 * time.Millisecond}
	dir := newDirectory()
	clock := supportaccess.NewManualClock(time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC))
	mgr := supportaccess.NewManager(store, dir, clock, nil)
	ctx := context.Background()

	summary, err := mgr.RequestAccess(ctx, supportaccess.CreateInput{
		ActorEmail: "ops@platform.test", TargetTenantID: "tenant-1", Purpose: "Debugging",
	})
	if err != nil {
		t.Fatalf("RequestAccess() error = %v", err)
	}

	const approvers = 10
	var (
		wg        sync.WaitGroup
		start     = make(chan struct{})
		successes atomic.Int64
		conflicts atomic.Int64
		other     atomic.Int64
	)
	for i := 0; i < approvers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, err := mgr.Approve(ctx, supportaccess.ApproveInput{
				RequestID:  summary.RequestID,
				ActorEmail: fmt.Sprintf("member%d@clinic-one.test", i),
				Signature: &supportaccess.DigitalSignature{
					SignatureData: "sig",
					SignedAt:      clock.Now(),
					ConsentText:   "I consent",
				},
			})
			switch {
			case err == nil:
				successes.Add(1)
			case errors.Is(err, saerrors.ErrStateConflict):
				if !strings.Contains(err.Error(), "approved") {
					t.Errorf("conflict error %q does not name the current status", err)
				}
				conflicts.Add(1)
			default:
				t.Errorf("Approve() unexpected error = %v", err)
				other.Add(1)
			}
		}(i)
	}
	close(start)
	wg.Wait()

	if successes.Load() != 1 {
		t.Errorf("successful approvals = %d, want 1", successes.Load())
	}
	if conflicts.Load() != approvers-1 {
		t.Errorf("conflicts = %d, want %d", conflicts.Load(), approvers-1)
	}
	if calls, failed := store.patchCalls.Load(), store.patchErrors.Load(); calls-failed != 1 {
		t.Errorf("CompareAndPatch calls = %d with %d failures, want exactly one success", calls, failed)
	}

	req, err := store.MemoryStore.Get(ctx, summary.RequestID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if len(req.AuditTrail) != 2 {
		t.Errorf("len(AuditTrail) = %d, want exactly one approved entry after the requested one", len(req.AuditTrail))
	}
	if req.AuditTrail[1].UserID != req.ApprovedBy {
		t.Errorf("approved entry by %q, record approved by %q", req.AuditTrail[1].UserID, req.ApprovedBy)
	}
	if err := req.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestConcurrentVerify_EachAccessIsRecorded(t *testing.T) {
	store := &slowStore{MemoryStore: supportaccess.NewMemoryStore()}
	dir := newDirectory()
	clock := supportaccess.NewManualClock(time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC))
	mgr := supportaccess.NewManager(store, dir, clock, nil)
	verifier := supportaccess.NewVerifier(store, dir, clock, nil, nil)
	ctx := context.Background()

	summary, err := mgr.RequestAccess(ctx, supportaccess.CreateInput{
		ActorEmail: "ops@platform.test", TargetTenantID: "tenant-1", Purpose: "Debugging",
	})
	if err != nil {
		t.Fatalf("RequestAccess() error = %v", err)
	}
	if _, err := mgr.Approve(ctx, supportaccess.ApproveInput{
		RequestID:  summary.RequestID,
		ActorEmail: "member0@clinic-one.test",
		Signature:  &supportaccess.DigitalSignature{SignatureData: "sig", SignedAt: clock.Now(), ConsentText: "I consent"},
	}); err != nil {
		t.Fatalf("Approve() error = %v", err)
	}

	const callers = 25
	var wg sync.WaitGroup
	var granted atomic.Int64
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := verifier.Verify(ctx, supportaccess.VerifyInput{ActorEmail: "ops@platform.test", TargetTenantID: "tenant-1"})
			if err != nil {
				t.Errorf("Verify() error = %v", err)
				return
			}
			if res.Authorized {
				granted.Add(1)
			}
		}()
	}
	wg.Wait()

	if granted.Load() != callers {
		t.Errorf("granted = %d, want %d", granted.Load(), callers)
	}
	req, _ := store.MemoryStore.Get(ctx, summary.RequestID)
	if got := len(req.AuditTrail); got != 2+callers {
		t.Errorf("len(AuditTrail) = %d, want %d", got, 2+callers)
	}
	if got := store.appendCalls.Load(); got != callers {
		t.Errorf("AppendAudit calls = %d, want %d", got, callers)
	}
}
