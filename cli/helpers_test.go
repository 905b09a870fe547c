package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"

	"github.com/byteness/supportaccess/config"
	"github.com/byteness/supportaccess/supportaccess"
)

const testDirectory = `
tenants:
  - id: tenant-1
    name: Clinic One
  - id: tenant-2
    name: Clinic Two
users:
  - id: sa-1
    email: ops@platform.example
    role: superadmin
  - id: user-x
    email: owner@clinic-one.example
    role: admin
    tenant_id: tenant-1
  - id: user-y
    email: staff@clinic-one.example
    role: user
    tenant_id: tenant-1
  - id: user-z
    email: owner@clinic-two.example
    role: admin
    tenant_id: tenant-2
`

var testStart = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

// testEnv is an in-memory runtime shared by several SupportAccess values,
// one per operator, so a request made by one is visible to the others.
type testEnv struct {
	t       *testing.T
	clock   *supportaccess.ManualClock
	dirFile string
	out     *bytes.Buffer
	audit   *bytes.Buffer
	rt      *config.Runtime
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	path := filepath.Join(t.TempDir(), "directory.yaml")
	if err := os.WriteFile(path, []byte(testDirectory), 0o600); err != nil {
		t.Fatal(err)
	}
	env := &testEnv{
		t:       t,
		clock:   supportaccess.NewManualClock(testStart),
		dirFile: path,
		out:     &bytes.Buffer{},
		audit:   &bytes.Buffer{},
	}
	t.Cleanup(func() {
		if env.rt != nil {
			env.rt.Close()
		}
	})
	return env
}

// as returns a SupportAccess acting as the given operator.
func (e *testEnv) as(actor string) *SupportAccess {
	e.t.Helper()
	s := &SupportAccess{
		ActorEmail: actor,
		Stdout:     e.out,
		Config: config.Config{
			DirectoryFile:     e.dirFile,
			DirectoryCacheTTL: time.Minute,
		},
		version: "test",
		options: []config.Option{
			config.WithAWSConfig(aws.Config{Region: "us-east-1"}),
			config.WithClock(e.clock),
			config.WithLogOutput(e.audit),
		},
	}
	if e.rt == nil {
		rt, err := s.Runtime(context.Background())
		if err != nil {
			e.t.Fatalf("Runtime() error = %v", err)
		}
		e.rt = rt
	}
	s.runtime = e.rt
	return s
}

// decode reads the command output as JSON and resets the buffer.
func (e *testEnv) decode(v any) {
	e.t.Helper()
	if err := json.Unmarshal(e.out.Bytes(), v); err != nil {
		e.t.Fatalf("output is not JSON: %v\n%s", err, e.out.String())
	}
	e.out.Reset()
}

// request files a request as the superadmin and returns its ID.
func (e *testEnv) request(tenant, user string) string {
	e.t.Helper()
	err := RequestCommand(context.Background(), e.as("ops@platform.example"), RequestCommandInput{
		TenantID: tenant,
		UserID:   user,
		Purpose:  "Investigate failed invoice export",
	})
	if err != nil {
		e.t.Fatalf("RequestCommand() error = %v", err)
	}
	var summary supportaccess.RequestSummary
	e.decode(&summary)
	return summary.RequestID
}

// approve approves id as the given operator without prompting.
func (e *testEnv) approve(actor, id string) error {
	e.t.Helper()
	return ApproveCommand(context.Background(), e.as(actor), ApproveCommandInput{
		RequestID:     id,
		SignatureData: "data:image/png;base64,AAAA",
		ConsentText:   DefaultConsentText,
		Yes:           true,
		Now:           e.clock.Now,
	})
}
