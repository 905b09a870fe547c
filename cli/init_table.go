package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/byteness/supportaccess/config"
	"github.com/byteness/supportaccess/infrastructure"
)

// tableProvisioner is the part of infrastructure.TableProvisioner used here.
type tableProvisioner interface {
	Plan(schema infrastructure.TableSchema) (*infrastructure.ProvisionPlan, error)
	Create(ctx context.Context, schema infrastructure.TableSchema) (*infrastructure.ProvisionResult, error)
}

// InitTableCommandInput contains the input for the init-table command.
type InitTableCommandInput struct {
	KMSKeyARN string
	Plan      bool

	// Provisioner is an optional provisioner for testing.
	// If nil, one is created from the AWS configuration.
	Provisioner tableProvisioner
}

// ConfigureInitTableCommand sets up the init-table command with kingpin.
func ConfigureInitTableCommand(app *kingpin.Application, s *SupportAccess) {
	input := InitTableCommandInput{}

	cmd := app.Command("init-table", "Create the DynamoDB table for support access requests")

	cmd.Flag("kms-key-arn", "Customer managed KMS key for table encryption").
		StringVar(&input.KMSKeyARN)

	cmd.Flag("plan", "Print what would be created without calling AWS").
		BoolVar(&input.Plan)

	cmd.Action(func(c *kingpin.ParseContext) error {
		err := InitTableCommand(context.Background(), s, input)
		app.FatalIfError(FormatErrorWithSuggestion(err), "init-table")
		return nil
	})
}

// InitTableCommand plans or creates the request table. Creating an
// existing table is not an error.
func InitTableCommand(ctx context.Context, s *SupportAccess, input InitTableCommandInput) error {
	if s.Config.TableName == "" {
		return fmt.Errorf("--table or %s is required", config.EnvTable)
	}

	schema := infrastructure.SupportAccessTableSchema(s.Config.TableName)
	schema.KMSKeyARN = input.KMSKeyARN

	p := input.Provisioner
	if p == nil {
		if input.Plan {
			p = &infrastructure.TableProvisioner{}
		} else {
			awsCfg, err := s.AWSConfig(ctx)
			if err != nil {
				return err
			}
			p = infrastructure.NewTableProvisioner(awsCfg)
		}
	}

	if input.Plan {
		plan, err := p.Plan(schema)
		if err != nil {
			return err
		}
		return s.writeJSON(plan)
	}

	result, err := p.Create(ctx, schema)
	if err != nil {
		return err
	}
	if err := s.writeJSON(result); err != nil {
		return err
	}
	if result.Status == infrastructure.StatusFailed {
		if cause := result.Err(); cause != nil {
			return cause
		}
		return errors.New(result.Error)
	}
	return nil
}
