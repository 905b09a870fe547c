// Package directory resolves the users and tenants that support access
// decisions are made about. A directory is a YAML document listing tenants
// and users; it is loaded from a file or from SSM Parameter Store and served
// through the supportaccess.ActorResolver interface.
//
// Example document:
//
//	tenants:
//	  - id: tenant-1
//	    name: Clinic One
//	users:
//	  - id: sa-1
//	    email: ops@platform.example
//	    role: superadmin
//	  - id: user-x
//	    email: owner@clinic-one.example
//	    role: admin
//	    tenant_id: tenant-1
//
// Entries are active unless they set active: false. Inactive users and
// tenants do not resolve.
package directory

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/byteness/supportaccess/supportaccess"
)

// Document is the YAML shape of a directory.
type Document struct {
	Tenants []TenantRecord `yaml:"tenants"`
	Users   []UserRecord   `yaml:"users"`
}

// TenantRecord is one tenant entry.
type TenantRecord struct {
	ID     string `yaml:"id"`
	Name   string `yaml:"name"`
	Active *bool  `yaml:"active,omitempty"`
}

// UserRecord is one user entry. TenantID is empty for platform users.
type UserRecord struct {
	ID       string `yaml:"id"`
	Email    string `yaml:"email"`
	Name     string `yaml:"name"`
	Role     string `yaml:"role"`
	TenantID string `yaml:"tenant_id,omitempty"`
	Active   *bool  `yaml:"active,omitempty"`
}

func isActive(flag *bool) bool {
	return flag == nil || *flag
}

// StaticDirectory is an immutable, validated directory. It is safe for
// concurrent use and implements supportaccess.ActorResolver.
type StaticDirectory struct {
	tenants map[string]bool // id -> active
	byID    map[string]*supportaccess.Actor
	byEmail map[string]*supportaccess.Actor
	active  map[string]bool // user id -> active
}

// ParseDirectory parses and validates a YAML directory document.
//
// Validation rejects unknown fields, duplicate tenant ids, duplicate user ids
// or emails (emails compare case-insensitively), unknown roles, and tenant
// members pointing at a tenant that is not listed.
func ParseDirectory(data []byte) (*StaticDirectory, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("empty directory")
	}

	var doc Document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("yaml: %w", err)
	}

	return NewStaticDirectory(doc)
}

// ParseDirectoryFromReader reads the entire reader and delegates to ParseDirectory.
func ParseDirectoryFromReader(r io.Reader) (*StaticDirectory, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}
	return ParseDirectory(data)
}

// NewStaticDirectory validates doc and builds the lookup indexes.
func NewStaticDirectory(doc Document) (*StaticDirectory, error) {
	d := &StaticDirectory{
		tenants: make(map[string]bool, len(doc.Tenants)),
		byID:    make(map[string]*supportaccess.Actor, len(doc.Users)),
		byEmail: make(map[string]*supportaccess.Actor, len(doc.Users)),
		active:  make(map[string]bool, len(doc.Users)),
	}

	for i, t := range doc.Tenants {
		id := strings.TrimSpace(t.ID)
		if id == "" {
			return nil, fmt.Errorf("tenants[%d]: id is required", i)
		}
		if _, dup := d.tenants[id]; dup {
			return nil, fmt.Errorf("tenants[%d]: duplicate tenant id %q", i, id)
		}
		d.tenants[id] = isActive(t.Active)
	}

	for i, u := range doc.Users {
		id := strings.TrimSpace(u.ID)
		email := normalizeEmail(u.Email)
		switch {
		case id == "":
			return nil, fmt.Errorf("users[%d]: id is required", i)
		case email == "":
			return nil, fmt.Errorf("users[%d]: email is required", i)
		}
		if _, dup := d.byID[id]; dup {
			return nil, fmt.Errorf("users[%d]: duplicate user id %q", i, id)
		}
		if _, dup := d.byEmail[email]; dup {
			return nil, fmt.Errorf("users[%d]: duplicate email %q", i, u.Email)
		}

		role, err := supportaccess.ParseRole(u.Role)
		if err != nil {
			return nil, fmt.Errorf("users[%d]: %w", i, err)
		}

		tenantID := strings.TrimSpace(u.TenantID)
		if tenantID == "" && role != supportaccess.RoleSuperadmin {
			return nil, fmt.Errorf("users[%d]: tenant_id is required for role %s", i, role)
		}
		if tenantID != "" {
			if _, ok := d.tenants[tenantID]; !ok {
				return nil, fmt.Errorf("users[%d]: unknown tenant %q", i, tenantID)
			}
		}

		actor := &supportaccess.Actor{
			ID:       id,
			Email:    strings.TrimSpace(u.Email),
			Name:     u.Name,
			Role:     role,
			TenantID: tenantID,
		}
		d.byID[id] = actor
		d.byEmail[email] = actor
		d.active[id] = isActive(u.Active)
	}

	return d, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// resolvable reports whether the user and, for tenant members, their tenant
// are both active.
func (d *StaticDirectory) resolvable(a *supportaccess.Actor) bool {
	if !d.active[a.ID] {
		return false
	}
	return a.TenantID == "" || d.tenants[a.TenantID]
}

func copyActor(a *supportaccess.Actor) *supportaccess.Actor {
	c := *a
	return &c
}

// ResolveActor resolves an email to an active user. Matching ignores case
// and surrounding whitespace.
func (d *StaticDirectory) ResolveActor(_ context.Context, email string) (*supportaccess.Actor, error) {
	a, ok := d.byEmail[normalizeEmail(email)]
	if !ok || !d.resolvable(a) {
		return nil, fmt.Errorf("%s: %w", email, supportaccess.ErrActorNotFound)
	}
	return copyActor(a), nil
}

// LookupUser resolves a user ID to an active user.
func (d *StaticDirectory) LookupUser(_ context.Context, userID string) (*supportaccess.Actor, error) {
	a, ok := d.byID[userID]
	if !ok || !d.resolvable(a) {
		return nil, fmt.Errorf("%s: %w", userID, supportaccess.ErrActorNotFound)
	}
	return copyActor(a), nil
}

// TenantExists returns true if the tenant is listed and active.
func (d *StaticDirectory) TenantExists(_ context.Context, tenantID string) (bool, error) {
	return d.tenants[tenantID], nil
}

// Counts returns the number of tenants and users in the directory.
func (d *StaticDirectory) Counts() (tenants, users int) {
	return len(d.tenants), len(d.byID)
}

// ErrDirectoryNotFound is returned when a directory source does not exist.
var ErrDirectoryNotFound = errors.New("directory not found")
