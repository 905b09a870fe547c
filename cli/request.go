package cli

import (
	"context"

	"github.com/alecthomas/kingpin/v2"

	"github.com/byteness/supportaccess/supportaccess"
)

// RequestCommandInput contains the input for the request command.
type RequestCommandInput struct {
	TenantID  string
	UserID    string
	Purpose   string
	IPAddress string
}

// ConfigureRequestCommand sets up the request command with kingpin.
func ConfigureRequestCommand(app *kingpin.Application, s *SupportAccess) {
	input := RequestCommandInput{}

	cmd := app.Command("request", "Request support access to a tenant or one of its users")

	cmd.Flag("tenant", "Target tenant ID").
		Required().
		StringVar(&input.TenantID)

	cmd.Flag("user", "Target user ID (omit for tenant-level access)").
		StringVar(&input.UserID)

	cmd.Flag("purpose", "Why access is needed (shown to the approver)").
		Required().
		StringVar(&input.Purpose)

	cmd.Flag("ip", "Client IP address recorded on the audit entry").
		StringVar(&input.IPAddress)

	cmd.Action(func(c *kingpin.ParseContext) error {
		s.run(app, "request", func(ctx context.Context) error {
			return RequestCommand(ctx, s, input)
		})
		return nil
	})
}

// RequestCommand files a pending support access request and prints its summary.
func RequestCommand(ctx context.Context, s *SupportAccess, input RequestCommandInput) error {
	if err := s.requireActor(); err != nil {
		return err
	}
	rt, err := s.Runtime(ctx)
	if err != nil {
		return err
	}

	summary, err := rt.Manager.RequestAccess(ctx, supportaccess.CreateInput{
		ActorEmail:     s.ActorEmail,
		TargetTenantID: input.TenantID,
		TargetUserID:   input.UserID,
		Purpose:        input.Purpose,
		IPAddress:      input.IPAddress,
		UserAgent:      s.UserAgent(),
	})
	if err != nil {
		return err
	}
	return s.writeJSON(summary)
}
