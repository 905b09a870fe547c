package testutil

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/byteness/supportaccess/logging"
	"github.com/byteness/supportaccess/notification"
	"github.com/byteness/supportaccess/supportaccess"
)

// ============================================================================
// MockStore - implements supportaccess.Store
// ============================================================================

// MockStore implements supportaccess.Store for testing. Unless a behavior
// function or error is set, calls go to an embedded MemoryStore, so stateful
// tests work out of the box.
type MockStore struct {
	mu    sync.Mutex
	inner *supportaccess.MemoryStore

	// Configurable behavior functions
	CreateFunc          func(ctx context.Context, req *supportaccess.SupportAccessRequest) error
	GetFunc             func(ctx context.Context, id string) (*supportaccess.SupportAccessRequest, error)
	CompareAndPatchFunc func(ctx context.Context, id string, expected supportaccess.Status, patch supportaccess.Patch) (*supportaccess.SupportAccessRequest, error)
	AppendAuditFunc     func(ctx context.Context, id string, entry supportaccess.AuditEntry) error
	ListByScopeFunc     func(ctx context.Context, superadminID, tenantID, userID string) ([]*supportaccess.SupportAccessRequest, error)

	// Error injection (used if behavior function is nil)
	CreateErr          error
	GetErr             error
	CompareAndPatchErr error
	AppendAuditErr     error
	ListErr            error

	// Call tracking
	CreateCalls          []*supportaccess.SupportAccessRequest
	GetCalls             []string
	CompareAndPatchCalls []CompareAndPatchCall
	AppendAuditCalls     []AppendAuditCall
	ListByStatusCalls    []supportaccess.Status
	ListByTenantCalls    []string
	ListByScopeCalls     []ScopeCall
}

// ScopeCall records one ListByScope invocation.
type ScopeCall struct {
	SuperadminID string
	TenantID     string
	UserID       string
}

// CompareAndPatchCall records one CompareAndPatch invocation.
type CompareAndPatchCall struct {
	ID       string
	Expected supportaccess.Status
	Patch    supportaccess.Patch
}

// AppendAuditCall records one AppendAudit invocation.
type AppendAuditCall struct {
	ID    string
	Entry supportaccess.AuditEntry
}

// NewMockStore creates a MockStore backed by an empty MemoryStore.
func NewMockStore() *MockStore {
	return &MockStore{inner: supportaccess.NewMemoryStore()}
}

// Create implements supportaccess.Store.
func (m *MockStore) Create(ctx context.Context, req *supportaccess.SupportAccessRequest) error {
	m.mu.Lock()
	m.CreateCalls = append(m.CreateCalls, req.Clone())
	m.mu.Unlock()

	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, req)
	}
	if m.CreateErr != nil {
		return m.CreateErr
	}
	return m.inner.Create(ctx, req)
}

// Get implements supportaccess.Store.
func (m *MockStore) Get(ctx context.Context, id string) (*supportaccess.SupportAccessRequest, error) {
	m.mu.Lock()
	m.GetCalls = append(m.GetCalls, id)
	m.mu.Unlock()

	if m.GetFunc != nil {
		return m.GetFunc(ctx, id)
	}
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	return m.inner.Get(ctx, id)
}

// CompareAndPatch implements supportaccess.Store.
func (m *MockStore) CompareAndPatch(ctx context.Context, id string, expected supportaccess.Status, patch supportaccess.Patch) (*supportaccess.SupportAccessRequest, error) {
	m.mu.Lock()
	m.CompareAndPatchCalls = append(m.CompareAndPatchCalls, CompareAndPatchCall{ID: id, Expected: expected, Patch: patch})
	m.mu.Unlock()

	if m.CompareAndPatchFunc != nil {
		return m.CompareAndPatchFunc(ctx, id, expected, patch)
	}
	if m.CompareAndPatchErr != nil {
		return nil, m.CompareAndPatchErr
	}
	return m.inner.CompareAndPatch(ctx, id, expected, patch)
}

// AppendAudit implements supportaccess.Store.
func (m *MockStore) AppendAudit(ctx context.Context, id string, entry supportaccess.AuditEntry) error {
	m.mu.Lock()
	m.AppendAuditCalls = append(m.AppendAuditCalls, AppendAuditCall{ID: id, Entry: entry})
	m.mu.Unlock()

	if m.AppendAuditFunc != nil {
		return m.AppendAuditFunc(ctx, id, entry)
	}
	if m.AppendAuditErr != nil {
		return m.AppendAuditErr
	}
	return m.inner.AppendAudit(ctx, id, entry)
}

// ListByStatus implements supportaccess.Store.
func (m *MockStore) ListByStatus(ctx context.Context, status supportaccess.Status, limit int) ([]*supportaccess.SupportAccessRequest, error) {
	m.mu.Lock()
	m.ListByStatusCalls = append(m.ListByStatusCalls, status)
	m.mu.Unlock()

	if m.ListErr != nil {
		return nil, m.ListErr
	}
	return m.inner.ListByStatus(ctx, status, limit)
}

// ListByTenant implements supportaccess.Store.
func (m *MockStore) ListByTenant(ctx context.Context, tenantID string, limit int) ([]*supportaccess.SupportAccessRequest, error) {
	m.mu.Lock()
	m.ListByTenantCalls = append(m.ListByTenantCalls, tenantID)
	m.mu.Unlock()

	if m.ListErr != nil {
		return nil, m.ListErr
	}
	return m.inner.ListByTenant(ctx, tenantID, limit)
}

// ListByScope implements supportaccess.Store.
func (m *MockStore) ListByScope(ctx context.Context, superadminID, tenantID, userID string) ([]*supportaccess.SupportAccessRequest, error) {
	m.mu.Lock()
	m.ListByScopeCalls = append(m.ListByScopeCalls, ScopeCall{SuperadminID: superadminID, TenantID: tenantID, UserID: userID})
	m.mu.Unlock()

	if m.ListByScopeFunc != nil {
		return m.ListByScopeFunc(ctx, superadminID, tenantID, userID)
	}
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	return m.inner.ListByScope(ctx, superadminID, tenantID, userID)
}

// AppendAuditCallCount returns the number of AppendAudit calls made.
func (m *MockStore) AppendAuditCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.AppendAuditCalls)
}

// ============================================================================
// MockResolver - implements supportaccess.ActorResolver
// ============================================================================

// MockResolver is an in-memory supportaccess.ActorResolver.
type MockResolver struct {
	mu      sync.Mutex
	users   map[string]*supportaccess.Actor
	tenants map[string]bool

	// Err, if set, is returned by every call.
	Err error
}

// NewMockResolver creates a resolver that knows the given tenants.
func NewMockResolver(tenants ...string) *MockResolver {
	r := &MockResolver{
		users:   make(map[string]*supportaccess.Actor),
		tenants: make(map[string]bool),
	}
	for _, t := range tenants {
		r.tenants[t] = true
	}
	return r
}

// AddUser registers a user and, if it has one, its tenant.
func (r *MockResolver) AddUser(a supportaccess.Actor) *MockResolver {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[a.ID] = &a
	if a.TenantID != "" {
		r.tenants[a.TenantID] = true
	}
	return r
}

// ResolveActor implements supportaccess.ActorResolver.
func (r *MockResolver) ResolveActor(_ context.Context, email string) (*supportaccess.Actor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	for _, a := range r.users {
		if strings.EqualFold(a.Email, email) {
			c := *a
			return &c, nil
		}
	}
	return nil, fmt.Errorf("%s: %w", email, supportaccess.ErrActorNotFound)
}

// LookupUser implements supportaccess.ActorResolver.
func (r *MockResolver) LookupUser(_ context.Context, userID string) (*supportaccess.Actor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	a, ok := r.users[userID]
	if !ok {
		return nil, fmt.Errorf("%s: %w", userID, supportaccess.ErrActorNotFound)
	}
	c := *a
	return &c, nil
}

// TenantExists implements supportaccess.ActorResolver.
func (r *MockResolver) TenantExists(_ context.Context, tenantID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return false, r.Err
	}
	return r.tenants[tenantID], nil
}

// ============================================================================
// MockNotifier - implements notification.Notifier
// ============================================================================

// MockNotifier captures notification events for verification.
type MockNotifier struct {
	mu sync.Mutex

	NotifyFunc func(ctx context.Context, event *notification.Event) error
	NotifyErr  error

	Events []*notification.Event
}

// NewMockNotifier creates a new MockNotifier.
func NewMockNotifier() *MockNotifier {
	return &MockNotifier{}
}

// Notify implements notification.Notifier.
func (m *MockNotifier) Notify(ctx context.Context, event *notification.Event) error {
	m.mu.Lock()
	m.Events = append(m.Events, event)
	m.mu.Unlock()

	if m.NotifyFunc != nil {
		return m.NotifyFunc(ctx, event)
	}
	return m.NotifyErr
}

// NotifyCallCount returns the number of Notify calls made.
func (m *MockNotifier) NotifyCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Events)
}

// LastNotification returns the last event, or nil if none.
func (m *MockNotifier) LastNotification() *notification.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Events) == 0 {
		return nil
	}
	return m.Events[len(m.Events)-1]
}

// ============================================================================
// MockLogger - implements logging.Logger
// ============================================================================

// MockLogger captures audit log entries for verification.
type MockLogger struct {
	mu      sync.Mutex
	Entries []logging.SupportAccessLogEntry
}

// NewMockLogger creates a new MockLogger.
func NewMockLogger() *MockLogger {
	return &MockLogger{}
}

// LogSupportAccess implements logging.Logger.
func (m *MockLogger) LogSupportAccess(entry logging.SupportAccessLogEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Entries = append(m.Entries, entry)
}

// Count returns the number of entries logged for event, or all entries if event is empty.
func (m *MockLogger) Count(event logging.SupportAccessEvent) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if event == "" {
		return len(m.Entries)
	}
	n := 0
	for _, e := range m.Entries {
		if e.Event == string(event) {
			n++
		}
	}
	return n
}

// Last returns the most recent entry, or the zero entry if none.
func (m *MockLogger) Last() logging.SupportAccessLogEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Entries) == 0 {
		return logging.SupportAccessLogEntry{}
	}
	return m.Entries[len(m.Entries)-1]
}
