package notification

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/byteness/supportaccess/supportaccess"
)

// NotifyStore wraps a supportaccess.Store and fires notifications after
// mutations commit. It implements supportaccess.Store.
//
// Delivery is asynchronous and never fails the wrapped operation. Call Wait
// before process exit to let in-flight deliveries finish.
type NotifyStore struct {
	store    supportaccess.Store
	notifier Notifier
	now      func() time.Time
	wg       sync.WaitGroup
}

// NewNotifyStore creates a new NotifyStore wrapping the given store.
// If notifier is nil, a NoopNotifier is used (no notifications fired).
func NewNotifyStore(store supportaccess.Store, notifier Notifier) *NotifyStore {
	if notifier == nil {
		notifier = &NoopNotifier{}
	}
	return &NotifyStore{
		store:    store,
		notifier: notifier,
		now:      time.Now,
	}
}

// Create stores a new request and fires EventRequested on success.
func (s *NotifyStore) Create(ctx context.Context, req *supportaccess.SupportAccessRequest) error {
	if err := s.store.Create(ctx, req); err != nil {
		return err
	}
	s.notify(ctx, EventRequested, req.Clone(), req.SuperadminID)
	return nil
}

// Get retrieves a request by ID. No notification is fired.
func (s *NotifyStore) Get(ctx context.Context, id string) (*supportaccess.SupportAccessRequest, error) {
	return s.store.Get(ctx, id)
}

// CompareAndPatch delegates to the wrapped store and fires EventApproved when
// a pending request becomes approved.
func (s *NotifyStore) CompareAndPatch(ctx context.Context, id string, expected supportaccess.Status, patch supportaccess.Patch) (*supportaccess.SupportAccessRequest, error) {
	updated, err := s.store.CompareAndPatch(ctx, id, expected, patch)
	if err != nil {
		return nil, err
	}
	if expected == supportaccess.StatusPending && updated.Status == supportaccess.StatusApproved {
		s.notify(ctx, EventApproved, updated.Clone(), updated.ApprovedBy)
	}
	return updated, nil
}

// AppendAudit delegates to the wrapped store. Access events are not notified;
// they are recorded in the audit trail and the audit log.
func (s *NotifyStore) AppendAudit(ctx context.Context, id string, entry supportaccess.AuditEntry) error {
	return s.store.AppendAudit(ctx, id, entry)
}

// ListByStatus delegates to the wrapped store.
func (s *NotifyStore) ListByStatus(ctx context.Context, status supportaccess.Status, limit int) ([]*supportaccess.SupportAccessRequest, error) {
	return s.store.ListByStatus(ctx, status, limit)
}

// ListByTenant delegates to the wrapped store.
func (s *NotifyStore) ListByTenant(ctx context.Context, tenantID string, limit int) ([]*supportaccess.SupportAccessRequest, error) {
	return s.store.ListByTenant(ctx, tenantID, limit)
}

// ListByScope delegates to the wrapped store.
func (s *NotifyStore) ListByScope(ctx context.Context, superadminID, tenantID, userID string) ([]*supportaccess.SupportAccessRequest, error) {
	return s.store.ListByScope(ctx, superadminID, tenantID, userID)
}

// Wait blocks until all in-flight notifications have been delivered or failed.
func (s *NotifyStore) Wait() {
	s.wg.Wait()
}

// notify delivers an event in the background. The caller's cancellation does
// not abort delivery; errors are logged.
func (s *NotifyStore) notify(ctx context.Context, eventType EventType, req *supportaccess.SupportAccessRequest, actor string) {
	event := NewEvent(eventType, req, actor, s.now())
	ctx = context.WithoutCancel(ctx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.notifier.Notify(ctx, event); err != nil {
			log.Printf("WARNING: notification failed (%s, request %s): %v", eventType, req.ID, err)
		}
	}()
}
