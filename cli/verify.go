package cli

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/byteness/supportaccess/supportaccess"
)

// VerifyCommandInput contains the input for the verify command.
type VerifyCommandInput struct {
	TenantID  string
	UserID    string
	IPAddress string
}

// ConfigureVerifyCommand sets up the verify command with kingpin.
func ConfigureVerifyCommand(app *kingpin.Application, s *SupportAccess) {
	input := VerifyCommandInput{}

	cmd := app.Command("verify", "Check for an active grant and record the access")

	cmd.Flag("tenant", "Target tenant ID").
		Required().
		StringVar(&input.TenantID)

	cmd.Flag("user", "Target user ID (omit to check tenant-level access)").
		StringVar(&input.UserID)

	cmd.Flag("ip", "Client IP address recorded on the audit entry").
		StringVar(&input.IPAddress)

	cmd.Action(func(c *kingpin.ParseContext) error {
		s.run(app, "verify", func(ctx context.Context) error {
			return VerifyCommand(ctx, s, input)
		})
		return nil
	})
}

// VerifyCommand prints the verification result. A refusal is also returned
// as an error so scripts can rely on the exit status.
func VerifyCommand(ctx context.Context, s *SupportAccess, input VerifyCommandInput) error {
	if err := s.requireActor(); err != nil {
		return err
	}
	rt, err := s.Runtime(ctx)
	if err != nil {
		return err
	}

	result, err := rt.Verifier.Verify(ctx, supportaccess.VerifyInput{
		ActorEmail:     s.ActorEmail,
		TargetTenantID: input.TenantID,
		TargetUserID:   input.UserID,
		IPAddress:      input.IPAddress,
		UserAgent:      s.UserAgent(),
	})
	if err != nil {
		return err
	}
	if err := s.writeJSON(result); err != nil {
		return err
	}
	if !result.Authorized {
		return fmt.Errorf("access denied: %s", result.Error)
	}
	return nil
}
