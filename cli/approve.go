package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/byteness/supportaccess/supportaccess"
)

// DefaultConsentText is recorded when --consent-text is not given.
const DefaultConsentText = "I authorize platform support staff to access my account for the stated purpose for one hour."

// errConsentDeclined is returned when the approver answers no at the prompt.
var errConsentDeclined = errors.New("approval cancelled")

// ApproveCommandInput contains the input for the approve command.
type ApproveCommandInput struct {
	RequestID     string
	SignatureData string
	SignatureFile string
	ConsentText   string
	IPAddress     string

	// Yes skips the interactive confirmation.
	Yes bool

	// Confirm overrides the interactive prompt (for testing).
	Confirm func(req *supportaccess.SupportAccessRequest, consent string) (bool, error)

	// Now overrides the signing time (for testing).
	Now func() time.Time
}

// ApproveCommandOutput represents the JSON output from the approve command.
type ApproveCommandOutput struct {
	RequestID           string    `json:"request_id"`
	Success             bool      `json:"success"`
	ExpirationTimestamp time.Time `json:"expiration_timestamp"`
}

// ConfigureApproveCommand sets up the approve command with kingpin.
func ConfigureApproveCommand(app *kingpin.Application, s *SupportAccess) {
	input := ApproveCommandInput{}

	cmd := app.Command("approve", "Approve a pending support access request with a consent signature")

	cmd.Arg("request-id", "The request ID to approve").
		Required().
		StringVar(&input.RequestID)

	cmd.Flag("signature", "Signature data (e.g. a data URL of the drawn signature)").
		StringVar(&input.SignatureData)

	cmd.Flag("signature-file", "Read signature data from a file").
		StringVar(&input.SignatureFile)

	cmd.Flag("consent-text", "Consent statement the approver agrees to").
		Default(DefaultConsentText).
		StringVar(&input.ConsentText)

	cmd.Flag("ip", "Client IP address recorded on the signature and audit entry").
		StringVar(&input.IPAddress)

	cmd.Flag("yes", "Skip the interactive confirmation").
		Short('y').
		BoolVar(&input.Yes)

	cmd.Action(func(c *kingpin.ParseContext) error {
		s.run(app, "approve", func(ctx context.Context) error {
			return ApproveCommand(ctx, s, input)
		})
		return nil
	})
}

// ApproveCommand approves a pending request. On a terminal it first shows
// the request and asks the approver to confirm the consent statement.
func ApproveCommand(ctx context.Context, s *SupportAccess, input ApproveCommandInput) error {
	if err := s.requireActor(); err != nil {
		return err
	}
	if !supportaccess.ValidateRequestID(input.RequestID) {
		return fmt.Errorf("invalid request ID: %s (must be %d lowercase hex characters)", input.RequestID, supportaccess.RequestIDLength)
	}

	sigData := input.SignatureData
	if input.SignatureFile != "" {
		data, err := os.ReadFile(input.SignatureFile)
		if err != nil {
			return fmt.Errorf("failed to read signature file: %w", err)
		}
		sigData = strings.TrimSpace(string(data))
	}

	rt, err := s.Runtime(ctx)
	if err != nil {
		return err
	}

	confirm := input.Confirm
	if confirm == nil && !input.Yes && isATerminal() {
		confirm = confirmConsent
	}
	if confirm != nil {
		req, err := rt.Manager.Get(ctx, supportaccess.GetInput{RequestID: input.RequestID, ActorEmail: s.ActorEmail})
		if err != nil {
			return err
		}
		ok, err := confirm(req, input.ConsentText)
		if err != nil {
			return err
		}
		if !ok {
			return errConsentDeclined
		}
	}

	now := time.Now
	if input.Now != nil {
		now = input.Now
	}
	ua := s.UserAgent()

	result, err := rt.Manager.Approve(ctx, supportaccess.ApproveInput{
		RequestID:  input.RequestID,
		ActorEmail: s.ActorEmail,
		Signature: &supportaccess.DigitalSignature{
			SignatureData: sigData,
			SignedAt:      now().UTC(),
			IPAddress:     input.IPAddress,
			UserAgent:     ua,
			ConsentText:   input.ConsentText,
		},
		IPAddress: input.IPAddress,
		UserAgent: ua,
	})
	if err != nil {
		return err
	}

	return s.writeJSON(ApproveCommandOutput{
		RequestID:           input.RequestID,
		Success:             result.Success,
		ExpirationTimestamp: result.ExpirationTimestamp,
	})
}

// confirmConsent renders the request and asks for explicit consent.
func confirmConsent(req *supportaccess.SupportAccessRequest, consent string) (bool, error) {
	label := lipgloss.NewStyle().Foreground(lipgloss.Color("15")).Bold(true)
	value := lipgloss.NewStyle().Foreground(lipgloss.Color("6"))

	scope := "entire tenant " + req.TargetTenantID
	if !req.IsTenantLevel() {
		scope = "user " + req.TargetUserID + " in tenant " + req.TargetTenantID
	}
	fmt.Fprintf(os.Stderr, "%s %s\n", label.Render("Request:"), value.Render(req.ID))
	fmt.Fprintf(os.Stderr, "%s %s\n", label.Render("Scope:  "), value.Render(scope))
	fmt.Fprintf(os.Stderr, "%s %s\n\n", label.Render("Purpose:"), value.Render(req.Purpose))

	var ok bool
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Grant support access for one hour?").
				Description(consent).
				Affirmative("I consent").
				Negative("Cancel").
				Value(&ok))).Run()
	if err != nil {
		return false, err
	}
	return ok, nil
}
