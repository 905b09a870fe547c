package supportaccess_test

import (
	"context"
	"errors"
	"testing"
	"time"

	saerrors "github.com/byteness/supportaccess/errors"
	"github.com/byteness/supportaccess/logging"
	"github.com/byteness/supportaccess/supportaccess"
	"github.com/byteness/supportaccess/testutil"
)

var lifecycleStart = time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

type lifecycle struct {
	store    *testutil.MockStore
	logger   *testutil.MockLogger
	clock    *supportaccess.ManualClock
	manager  *supportaccess.Manager
	verifier *supportaccess.Verifier
}

func newLifecycle() *lifecycle {
	resolver := testutil.NewMockResolver("tenant-1").
		AddUser(supportaccess.Actor{ID: "sa-1", Email: "ops@platform.test", Role: supportaccess.RoleSuperadmin}).
		AddUser(supportaccess.Actor{ID: "u-1", Email: "owner@tenant.test", Role: supportaccess.RoleAdmin, TenantID: "tenant-1"})
	l := &lifecycle{
		store:  testutil.NewMockStore(),
		logger: testutil.NewMockLogger(),
		clock:  supportaccess.NewManualClock(lifecycleStart),
	}
	l.manager = supportaccess.NewManager(l.store, resolver, l.clock, l.logger)
	l.verifier = supportaccess.NewVerifier(l.store, resolver, l.clock, l.logger, nil)
	return l
}

func TestLifecycle_RequestApproveVerify(t *testing.T) {
	ctx := context.Background()
	l := newLifecycle()

	summary, err := l.manager.RequestAccess(ctx, supportaccess.CreateInput{
		ActorEmail:     "ops@platform.test",
		TargetTenantID: "tenant-1",
		TargetUserID:   "u-1",
		Purpose:        "Recover deleted appointment",
	})
	testutil.AssertNoError(t, err)

	_, err = l.manager.Approve(ctx, supportaccess.ApproveInput{
		RequestID:  summary.RequestID,
		ActorEmail: "owner@tenant.test",
		Signature:  testutil.MakeSignature(l.clock.Now().Add(-time.Minute)),
	})
	testutil.AssertNoError(t, err)

	result, err := l.verifier.Verify(ctx, supportaccess.VerifyInput{
		ActorEmail:     "ops@platform.test",
		TargetTenantID: "tenant-1",
		TargetUserID:   "u-1",
	})
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, result.Authorized, true)
	testutil.AssertEqual(t, l.store.AppendAuditCallCount(), 1)

	testutil.AssertEqual(t, l.logger.Count(logging.EventRequested), 1)
	testutil.AssertEqual(t, l.logger.Count(logging.EventApproved), 1)
	testutil.AssertEqual(t, l.logger.Count(logging.EventAccessed), 1)
	testutil.AssertEqual(t, l.logger.Last().RequestID, summary.RequestID)
}

func TestLifecycle_AuditFailureRefusesAccess(t *testing.T) {
	ctx := context.Background()
	l := newLifecycle()

	req := testutil.MakeApprovedRequest("sa-1", "tenant-1", "", "u-1", lifecycleStart)
	testutil.AssertNoError(t, l.store.Create(ctx, req))
	l.store.AppendAuditErr = errors.New("ProvisionedThroughputExceededException")

	result, err := l.verifier.Verify(ctx, supportaccess.VerifyInput{
		ActorEmail:     "ops@platform.test",
		TargetTenantID: "tenant-1",
	})
	testutil.AssertError(t, err)
	testutil.AssertEqual(t, result.Authorized, false)
	testutil.AssertContains(t, err.Error(), "ProvisionedThroughputExceeded")
	testutil.AssertEqual(t, l.logger.Count(logging.EventAccessed), 0)
}

func TestLifecycle_PendingIsDeniedAndLogged(t *testing.T) {
	ctx := context.Background()
	l := newLifecycle()

	req := testutil.MakeRequest("sa-1", "tenant-1", "", lifecycleStart)
	testutil.AssertNoError(t, l.store.Create(ctx, req))

	result, err := l.verifier.Verify(ctx, supportaccess.VerifyInput{
		ActorEmail:     "ops@platform.test",
		TargetTenantID: "tenant-1",
		IPAddress:      "192.0.2.10",
	})
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, result.Authorized, false)
	testutil.AssertEqual(t, result.RequestID, req.ID)

	denied := l.logger.Last()
	testutil.AssertEqual(t, denied.Event, string(logging.EventDenied))
	testutil.AssertContains(t, denied.Reason, "pending")
	testutil.AssertEqual(t, denied.IPAddress, "192.0.2.10")
	testutil.AssertEqual(t, l.store.AppendAuditCallCount(), 0)

	stored, err := l.store.Get(ctx, req.ID)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, len(stored.AuditTrail), 1)
}

func TestLifecycle_StaleSignature(t *testing.T) {
	ctx := context.Background()
	l := newLifecycle()

	req := testutil.MakeRequest("sa-1", "tenant-1", "", lifecycleStart)
	testutil.AssertNoError(t, l.store.Create(ctx, req))

	_, err := l.manager.Approve(ctx, supportaccess.ApproveInput{
		RequestID:  req.ID,
		ActorEmail: "owner@tenant.test",
		Signature:  testutil.MakeSignature(lifecycleStart.Add(-10 * time.Minute)),
	})
	testutil.AssertErrorIs(t, err, saerrors.ErrValidation)
	testutil.AssertNotContains(t, err.Error(), "signature data")
	testutil.AssertEqual(t, len(l.store.CompareAndPatchCalls), 0)
}
