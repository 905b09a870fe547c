package directory

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	saerrors "github.com/byteness/supportaccess/errors"
	"github.com/byteness/supportaccess/supportaccess"
)

var t0 = time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

const sampleDirectory = `
tenants:
  - id: tenant-1
    name: Clinic One
  - id: tenant-2
    name: Clinic Two
  - id: tenant-old
    name: Closed Clinic
    active: false
users:
  - id: sa-1
    email: Ops@Platform.Example
    name: Platform Ops
    role: superadmin
  - id: user-x
    email: owner@clinic-one.example
    name: Owner
    role: admin
    tenant_id: tenant-1
  - id: user-y
    email: nurse@clinic-one.example
    role: staff
    tenant_id: tenant-1
    active: false
  - id: user-z
    email: old@closed.example
    role: user
    tenant_id: tenant-old
`

func mustParse(t *testing.T, doc string) *StaticDirectory {
	t.Helper()
	d, err := ParseDirectory([]byte(doc))
	if err != nil {
		t.Fatalf("ParseDirectory() error = %v", err)
	}
	return d
}

func TestParseDirectory(t *testing.T) {
	d := mustParse(t, sampleDirectory)

	tenants, users := d.Counts()
	if tenants != 3 || users != 4 {
		t.Errorf("Counts() = %d, %d; want 3, 4", tenants, users)
	}
}

func TestParseDirectory_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr string
	}{
		{"empty", "  \n", "empty directory"},
		{"bad yaml", "tenants: [", "yaml:"},
		{"unknown field", "tenants:\n  - id: t\n    region: eu\n", "field region not found"},
		{"tenant without id", "tenants:\n  - name: x\n", "tenants[0]: id is required"},
		{"duplicate tenant", "tenants:\n  - id: t\n  - id: t\n", "duplicate tenant id"},
		{"user without email", "users:\n  - id: u\n    role: superadmin\n", "users[0]: email is required"},
		{"duplicate email", "users:\n  - {id: a, email: A@x.io, role: superadmin}\n  - {id: b, email: a@X.io, role: superadmin}\n", "duplicate email"},
		{"duplicate id", "users:\n  - {id: a, email: a@x.io, role: superadmin}\n  - {id: a, email: b@x.io, role: superadmin}\n", "duplicate user id"},
		{"bad role", "users:\n  - {id: a, email: a@x.io, role: owner}\n", `unknown role "owner"`},
		{"member without tenant", "users:\n  - {id: a, email: a@x.io, role: admin}\n", "tenant_id is required for role admin"},
		{"unknown tenant", "users:\n  - {id: a, email: a@x.io, role: user, tenant_id: nope}\n", `unknown tenant "nope"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseDirectory([]byte(tt.doc))
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("ParseDirectory() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestParseDirectoryFromReader(t *testing.T) {
	d, err := ParseDirectoryFromReader(strings.NewReader(sampleDirectory))
	if err != nil {
		t.Fatalf("ParseDirectoryFromReader() error = %v", err)
	}
	if _, err := d.LookupUser(context.Background(), "user-x"); err != nil {
		t.Errorf("LookupUser() error = %v", err)
	}
}

func TestStaticDirectory_ResolveActor(t *testing.T) {
	d := mustParse(t, sampleDirectory)
	ctx := context.Background()

	got, err := d.ResolveActor(ctx, "  ops@PLATFORM.example ")
	if err != nil {
		t.Fatalf("ResolveActor() error = %v", err)
	}
	want := &supportaccess.Actor{
		ID:    "sa-1",
		Email: "Ops@Platform.Example",
		Name:  "Platform Ops",
		Role:  supportaccess.RoleSuperadmin,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ResolveActor() mismatch (-want +got):\n%s", diff)
	}

	for _, email := range []string{"nobody@x.io", "nurse@clinic-one.example", "old@closed.example"} {
		if _, err := d.ResolveActor(ctx, email); !errors.Is(err, supportaccess.ErrActorNotFound) {
			t.Errorf("ResolveActor(%q) error = %v, want ErrActorNotFound", email, err)
		}
	}
}

func TestStaticDirectory_ReturnsCopies(t *testing.T) {
	d := mustParse(t, sampleDirectory)
	a, _ := d.LookupUser(context.Background(), "user-x")
	a.Role = supportaccess.RoleSuperadmin

	b, _ := d.LookupUser(context.Background(), "user-x")
	if b.Role != supportaccess.RoleAdmin {
		t.Errorf("directory entry was mutated through a returned actor: role = %s", b.Role)
	}
}

func TestStaticDirectory_LookupUser(t *testing.T) {
	d := mustParse(t, sampleDirectory)
	ctx := context.Background()

	got, err := d.LookupUser(ctx, "user-x")
	if err != nil {
		t.Fatalf("LookupUser() error = %v", err)
	}
	if got.TenantID != "tenant-1" || got.Role != supportaccess.RoleAdmin {
		t.Errorf("LookupUser() = %+v", got)
	}

	for _, id := range []string{"missing", "user-y", "user-z"} {
		if _, err := d.LookupUser(ctx, id); !errors.Is(err, supportaccess.ErrActorNotFound) {
			t.Errorf("LookupUser(%q) error = %v, want ErrActorNotFound", id, err)
		}
	}
}

func TestStaticDirectory_TenantExists(t *testing.T) {
	d := mustParse(t, sampleDirectory)

	tests := []struct {
		id   string
		want bool
	}{
		{"tenant-1", true},
		{"tenant-2", true},
		{"tenant-old", false},
		{"tenant-9", false},
	}
	for _, tt := range tests {
		got, err := d.TenantExists(context.Background(), tt.id)
		if err != nil || got != tt.want {
			t.Errorf("TenantExists(%q) = %v, %v; want %v", tt.id, got, err, tt.want)
		}
	}
}

// The directory drives the real request flow end to end.
func TestStaticDirectory_WithManager(t *testing.T) {
	d := mustParse(t, sampleDirectory)
	clock := supportaccess.NewManualClock(t0)
	m := supportaccess.NewManager(supportaccess.NewMemoryStore(), d, clock, nil)

	summary, err := m.RequestAccess(context.Background(), supportaccess.CreateInput{
		ActorEmail:     "OPS@platform.example",
		TargetTenantID: "tenant-1",
		TargetUserID:   "user-x",
		Purpose:        "Investigate billing sync",
	})
	if err != nil {
		t.Fatalf("RequestAccess() error = %v", err)
	}
	if summary.TargetUserEmail != "owner@clinic-one.example" || summary.SuperadminName != "Platform Ops" {
		t.Errorf("summary = %+v", summary)
	}

	_, err = m.RequestAccess(context.Background(), supportaccess.CreateInput{
		ActorEmail:     "ops@platform.example",
		TargetTenantID: "tenant-old",
		Purpose:        "Closed tenant",
	})
	if !errors.Is(err, saerrors.ErrNotFound) {
		t.Errorf("RequestAccess(inactive tenant) error = %v, want not found", err)
	}
}
