package cli

import (
	"context"
	"time"

	"github.com/alecthomas/kingpin/v2"

	"github.com/byteness/supportaccess/supportaccess"
)

// ListCommandInput contains the input for the list command.
type ListCommandInput struct {
	Status string
	Limit  int

	// Now overrides the clock used for the active flag (for testing).
	Now func() time.Time
}

// RequestListItem is one row of list output. Signatures and audit trails
// are left out; use show for the full record.
type RequestListItem struct {
	ID                  string     `json:"id"`
	Status              string     `json:"status"`
	Active              bool       `json:"active"`
	SuperadminID        string     `json:"superadmin_id"`
	TargetTenantID      string     `json:"target_tenant_id"`
	TargetUserID        string     `json:"target_user_id,omitempty"`
	Purpose             string     `json:"purpose"`
	ApprovedBy          string     `json:"approved_by,omitempty"`
	ExpirationTimestamp *time.Time `json:"expiration_timestamp,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
}

// ConfigureListCommand sets up the list command with kingpin.
func ConfigureListCommand(app *kingpin.Application, s *SupportAccess) {
	input := ListCommandInput{}

	cmd := app.Command("list", "List support access requests (superadmins only)")

	cmd.Flag("status", "Filter by status").
		EnumVar(&input.Status, string(supportaccess.StatusPending), string(supportaccess.StatusApproved))

	cmd.Flag("limit", "Maximum number of requests to return").
		Default("50").
		IntVar(&input.Limit)

	cmd.Action(func(c *kingpin.ParseContext) error {
		s.run(app, "list", func(ctx context.Context) error {
			return ListCommand(ctx, s, input)
		})
		return nil
	})
}

// ListCommand prints requests newest first.
func ListCommand(ctx context.Context, s *SupportAccess, input ListCommandInput) error {
	if err := s.requireActor(); err != nil {
		return err
	}
	rt, err := s.Runtime(ctx)
	if err != nil {
		return err
	}

	reqs, err := rt.Manager.List(ctx, supportaccess.ListInput{
		ActorEmail: s.ActorEmail,
		Status:     supportaccess.Status(input.Status),
		Limit:      input.Limit,
	})
	if err != nil {
		return err
	}

	now := time.Now()
	if input.Now != nil {
		now = input.Now()
	}
	items := make([]RequestListItem, 0, len(reqs))
	for _, req := range reqs {
		item := RequestListItem{
			ID:             req.ID,
			Status:         string(req.Status),
			Active:         req.IsActive(now),
			SuperadminID:   req.SuperadminID,
			TargetTenantID: req.TargetTenantID,
			TargetUserID:   req.TargetUserID,
			Purpose:        req.Purpose,
			ApprovedBy:     req.ApprovedBy,
			CreatedAt:      req.CreatedAt,
		}
		if !req.ExpirationTimestamp.IsZero() {
			exp := req.ExpirationTimestamp
			item.ExpirationTimestamp = &exp
		}
		items = append(items, item)
	}
	return s.writeJSON(items)
}
