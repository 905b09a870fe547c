package cli

import (
	"context"

	"github.com/alecthomas/kingpin/v2"

	"github.com/byteness/supportaccess/supportaccess"
)

// ConfigureShowCommand sets up the show command with kingpin.
func ConfigureShowCommand(app *kingpin.Application, s *SupportAccess) {
	var requestID string

	cmd := app.Command("show", "Show a support access request with its audit trail")

	cmd.Arg("request-id", "The request ID to show").
		Required().
		StringVar(&requestID)

	cmd.Action(func(c *kingpin.ParseContext) error {
		s.run(app, "show", func(ctx context.Context) error {
			return ShowCommand(ctx, s, requestID)
		})
		return nil
	})
}

// ShowCommand prints the full request. Only the requesting superadmin and
// the target party may view it.
func ShowCommand(ctx context.Context, s *SupportAccess, requestID string) error {
	if err := s.requireActor(); err != nil {
		return err
	}
	rt, err := s.Runtime(ctx)
	if err != nil {
		return err
	}

	req, err := rt.Manager.Get(ctx, supportaccess.GetInput{RequestID: requestID, ActorEmail: s.ActorEmail})
	if err != nil {
		return err
	}
	return s.writeJSON(req)
}
