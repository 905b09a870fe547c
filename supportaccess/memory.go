package supportaccess

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemoryStore implements Store in process memory. It backs tests and local
// runs without a table. All reads and writes copy records, so callers never
// share state with the store.
type MemoryStore struct {
	mu       sync.RWMutex
	requests map[string]*SupportAccessRequest
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{requests: make(map[string]*SupportAccessRequest)}
}

// Create stores a new request.
func (s *MemoryStore) Create(ctx context.Context, req *SupportAccessRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.requests[req.ID]; ok {
		return fmt.Errorf("%s: %w", req.ID, ErrRequestExists)
	}
	s.requests[req.ID] = req.Clone()
	return nil
}

// Get retrieves a request by ID.
func (s *MemoryStore) Get(ctx context.Context, id string) (*SupportAccessRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	req, ok := s.requests[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, ErrRequestNotFound)
	}
	return req.Clone(), nil
}

// CompareAndPatch applies patch under the store lock if the status matches.
func (s *MemoryStore) CompareAndPatch(ctx context.Context, id string, expected Status, patch Patch) (*SupportAccessRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.requests[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, ErrRequestNotFound)
	}
	if req.Status != expected {
		return nil, fmt.Errorf("%s: %w", id, ErrConcurrentModification)
	}

	updated := req.Clone()
	patch.apply(updated)
	s.requests[id] = updated
	return updated.Clone(), nil
}

// AppendAudit appends an entry to a request's audit trail.
func (s *MemoryStore) AppendAudit(ctx context.Context, id string, entry AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.requests[id]
	if !ok {
		return fmt.Errorf("%s: %w", id, ErrRequestNotFound)
	}
	req.AuditTrail = append(req.AuditTrail, entry.clone())
	return nil
}

// ListByStatus returns requests with the status, newest first.
func (s *MemoryStore) ListByStatus(ctx context.Context, status Status, limit int) ([]*SupportAccessRequest, error) {
	return s.list(limit, func(r *SupportAccessRequest) bool { return r.Status == status }), nil
}

// ListByTenant returns requests targeting the tenant, newest first.
func (s *MemoryStore) ListByTenant(ctx context.Context, tenantID string, limit int) ([]*SupportAccessRequest, error) {
	return s.list(limit, func(r *SupportAccessRequest) bool { return r.TargetTenantID == tenantID }), nil
}

// ListByScope returns every request the superadmin made for exactly the
// scope, newest first.
func (s *MemoryStore) ListByScope(ctx context.Context, superadminID, tenantID, userID string) ([]*SupportAccessRequest, error) {
	return s.filter(func(r *SupportAccessRequest) bool {
		return r.SuperadminID == superadminID && r.MatchesScope(tenantID, userID)
	}), nil
}

func (s *MemoryStore) list(limit int, keep func(*SupportAccessRequest) bool) []*SupportAccessRequest {
	results := s.filter(keep)
	if n := effectiveLimit(limit); len(results) > n {
		results = results[:n]
	}
	return results
}

// filter returns clones of every matching request, newest first.
func (s *MemoryStore) filter(keep func(*SupportAccessRequest) bool) []*SupportAccessRequest {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]*SupportAccessRequest, 0)
	for _, r := range s.requests {
		if keep(r) {
			results = append(results, r.Clone())
		}
	}
	sortNewestFirst(results)
	return results
}

// sortNewestFirst orders requests by CreatedAt descending, breaking ties by ID.
func sortNewestFirst(reqs []*SupportAccessRequest) {
	sort.SliceStable(reqs, func(i, j int) bool {
		if !reqs[i].CreatedAt.Equal(reqs[j].CreatedAt) {
			return reqs[i].CreatedAt.After(reqs[j].CreatedAt)
		}
		return reqs[i].ID > reqs[j].ID
	})
}
