package cli

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/byteness/supportaccess/config"
	"github.com/byteness/supportaccess/directory"
)

// ConfigValidateCommandInput contains the input for the config validate command.
type ConfigValidateCommandInput struct {
	// Fetch overrides how the SSM directory parameter is read (for testing).
	Fetch func(ctx context.Context, parameter string) ([]byte, error)
}

// ConfigTemplateCommandInput contains the input for the config template command.
type ConfigTemplateCommandInput struct {
	Superadmins []string
	Tenants     []string
}

// ConfigureConfigCommand sets up the config validate and template commands.
func ConfigureConfigCommand(app *kingpin.Application, s *SupportAccess) {
	configCmd := app.Command("config", "Validate settings and generate directory documents")

	validateInput := ConfigValidateCommandInput{}
	validateCmd := configCmd.Command("validate", "Validate the environment and the configured directory")
	validateCmd.Action(func(c *kingpin.ParseContext) error {
		err := ConfigValidateCommand(context.Background(), s, validateInput)
		app.FatalIfError(FormatErrorWithSuggestion(err), "config validate")
		return nil
	})

	templateInput := ConfigTemplateCommandInput{}
	templateCmd := configCmd.Command("template", "Print a starter directory document")
	templateCmd.Flag("superadmin", "Superadmin email (repeatable)").
		Required().
		StringsVar(&templateInput.Superadmins)
	templateCmd.Flag("tenant", "Tenant ID (repeatable)").
		StringsVar(&templateInput.Tenants)
	templateCmd.Action(func(c *kingpin.ParseContext) error {
		err := ConfigTemplateCommand(s, templateInput)
		app.FatalIfError(FormatErrorWithSuggestion(err), "config template")
		return nil
	})
}

// ConfigValidateCommand prints validation results for the environment and
// the directory source. It fails when any result has errors.
func ConfigValidateCommand(ctx context.Context, s *SupportAccess, input ConfigValidateCommandInput) error {
	results := []config.ValidationResult{s.Config.Check()}

	switch {
	case s.Config.DirectoryFile != "":
		result, _ := config.ValidateFile(s.Config.DirectoryFile)
		results = append(results, result)
	case s.Config.DirectoryParameter != "":
		fetch := input.Fetch
		if fetch == nil {
			fetch = func(ctx context.Context, parameter string) ([]byte, error) {
				awsCfg, err := s.AWSConfig(ctx)
				if err != nil {
					return nil, err
				}
				return directory.NewSSMLoader(awsCfg, parameter).Fetch(ctx)
			}
		}
		content, err := fetch(ctx, s.Config.DirectoryParameter)
		if err != nil {
			return err
		}
		results = append(results, config.ValidateDirectory(content, s.Config.DirectoryParameter))
	}

	all := config.NewAllResults(results...)
	if err := s.writeJSON(all); err != nil {
		return err
	}
	if all.Summary.Invalid > 0 {
		return fmt.Errorf("%d configuration error(s) found", all.Summary.Errors)
	}
	return nil
}

// ConfigTemplateCommand prints a starter directory document.
func ConfigTemplateCommand(s *SupportAccess, input ConfigTemplateCommandInput) error {
	out, err := config.GenerateDirectoryTemplate(config.TemplateInput{
		Superadmins: input.Superadmins,
		Tenants:     input.Tenants,
	})
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(s.Stdout, out)
	return err
}
