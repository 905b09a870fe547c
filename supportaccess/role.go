package supportaccess

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Role is a platform role as reported by the directory.
type Role string

const (
	// RoleSuperadmin is platform staff. Only superadmins may request access.
	RoleSuperadmin Role = "superadmin"
	// RoleAdmin administers a single tenant.
	RoleAdmin Role = "admin"
	// RoleStaff is a regular tenant member with elevated in-tenant duties.
	RoleStaff Role = "staff"
	// RoleUser is a regular tenant member.
	RoleUser Role = "user"
)

// ParseRole converts a directory role string into a Role.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.IsValid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

// IsValid returns true if the role is a known value.
func (r Role) IsValid() bool {
	switch r {
	case RoleSuperadmin, RoleAdmin, RoleStaff, RoleUser:
		return true
	}
	return false
}

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// CanRequestAccess returns true if the role may file support access requests.
func (r Role) CanRequestAccess() bool {
	return r == RoleSuperadmin
}

// CanListRequests returns true if the role may list support access requests.
func (r Role) CanListRequests() bool {
	return r == RoleSuperadmin
}

// ErrActorNotFound is returned by ActorResolver implementations when an email
// or user ID does not resolve to an active user.
var ErrActorNotFound = errors.New("actor not found")

// Actor is a resolved user.
type Actor struct {
	ID       string
	Email    string
	Name     string
	Role     Role
	TenantID string // empty for platform users
}

// BelongsTo returns true if the actor is a member of the tenant.
func (a *Actor) BelongsTo(tenantID string) bool {
	return a.TenantID != "" && a.TenantID == tenantID
}

// ActorResolver looks up users and tenants in the host directory.
type ActorResolver interface {
	// ResolveActor resolves an email to an active user.
	// Returns an error wrapping ErrActorNotFound if none exists.
	ResolveActor(ctx context.Context, email string) (*Actor, error)

	// LookupUser resolves a user ID to an active user.
	// Returns an error wrapping ErrActorNotFound if none exists.
	LookupUser(ctx context.Context, userID string) (*Actor, error)

	// TenantExists reports whether an active tenant with the ID exists.
	TenantExists(ctx context.Context, tenantID string) (bool, error)
}

// Approval denial messages.
const (
	msgOnlyTargetUser   = "Only the target user can approve this support access request"
	msgOnlyTenantMember = "Only members of the target tenant can approve this support access request"
	msgNoSelfApproval   = "Superadmins cannot approve their own support access request"
)

// CanApprove returns true if actor may approve req.
// User-level requests are approvable only by the target user. Tenant-level
// requests are approvable by any member of the target tenant. The requesting
// superadmin can never approve their own request.
func CanApprove(req *SupportAccessRequest, actor *Actor) bool {
	return approvalDenial(req, actor) == ""
}

// approvalDenial returns the reason actor may not approve req, or "" if it may.
func approvalDenial(req *SupportAccessRequest, actor *Actor) string {
	if req.IsTenantLevel() {
		if !actor.BelongsTo(req.TargetTenantID) {
			return msgOnlyTenantMember
		}
	} else if actor.ID != req.TargetUserID {
		return msgOnlyTargetUser
	}
	if actor.ID == req.SuperadminID {
		return msgNoSelfApproval
	}
	return ""
}

// canView returns true if actor may read req: the requesting superadmin, the
// target user of a user-level request, or any member of the target tenant of
// a tenant-level request.
func canView(req *SupportAccessRequest, actor *Actor) bool {
	if actor.ID == req.SuperadminID {
		return true
	}
	if req.IsTenantLevel() {
		return actor.BelongsTo(req.TargetTenantID)
	}
	return actor.ID == req.TargetUserID
}
