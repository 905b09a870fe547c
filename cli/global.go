package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/alecthomas/kingpin/v2"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/denisbrodbeck/machineid"
	isatty "github.com/mattn/go-isatty"

	"github.com/byteness/supportaccess/config"
)

// EnvActor names the operator the CLI acts as.
const EnvActor = "SUPPORTACCESS_ACTOR"

// hostAppID keys the hashed machine id carried in the user agent, so the raw
// machine id never leaves the host.
const hostAppID = "supportaccess-cli"

// SupportAccess holds shared state for all commands.
type SupportAccess struct {
	Debug      bool
	ActorEmail string
	Config     config.Config

	// Stdout receives command output. Defaults to os.Stdout.
	Stdout io.Writer

	version string
	options []config.Option
	runtime *config.Runtime
}

// ConfigureGlobals binds the global flags. Every service setting can also
// be given through its SUPPORTACCESS_* environment variable.
func ConfigureGlobals(app *kingpin.Application) *SupportAccess {
	s := &SupportAccess{
		Stdout:  os.Stdout,
		version: app.Model().Version,
	}

	app.Flag("debug", "Show debugging output").
		BoolVar(&s.Debug)

	app.Flag("as", "Email of the operator running the command").
		Envar(EnvActor).
		StringVar(&s.ActorEmail)

	app.Flag("table", "DynamoDB table for support access requests (in-memory when unset)").
		Envar(config.EnvTable).
		StringVar(&s.Config.TableName)

	app.Flag("region", "AWS region").
		Envar(config.EnvRegion).
		StringVar(&s.Config.Region)

	app.Flag("directory-file", "YAML directory of tenants and users").
		Envar(config.EnvDirectoryFile).
		StringVar(&s.Config.DirectoryFile)

	app.Flag("directory-parameter", "SSM parameter holding the directory document").
		Envar(config.EnvDirectoryParameter).
		StringVar(&s.Config.DirectoryParameter)

	app.Flag("directory-cache-ttl", "How long a loaded directory is reused").
		Default("5m").
		DurationVar(&s.Config.DirectoryCacheTTL)

	app.Flag("topic-arn", "SNS topic for request and approval notifications").
		Envar(config.EnvTopicARN).
		StringVar(&s.Config.TopicARN)

	app.Flag("webhook-url", "Webhook endpoint for request and approval notifications").
		Envar(config.EnvWebhookURL).
		StringVar(&s.Config.WebhookURL)

	app.Flag("webhook-secret", "HMAC secret for signing webhook bodies").
		Envar(config.EnvWebhookSecret).
		StringVar(&s.Config.WebhookSecret)

	app.Flag("cloudwatch-log-group", "CloudWatch Logs group for the audit log").
		Envar(config.EnvCloudWatchGroup).
		StringVar(&s.Config.CloudWatchLogGroup)

	app.Flag("cloudwatch-stream", "CloudWatch Logs stream for the audit log").
		Default(config.DefaultLogStream).
		Envar(config.EnvCloudWatchStream).
		StringVar(&s.Config.CloudWatchStream)

	app.Flag("log-signing-key", "Hex-encoded HMAC key for signing audit entries").
		Envar(config.EnvLogSigningKey).
		StringVar(&s.Config.LogSigningKey)

	app.Flag("log-signing-key-id", "Identifier recorded with each signed audit entry").
		Envar(config.EnvLogSigningKeyID).
		StringVar(&s.Config.LogSigningKeyID)

	app.Flag("log-signing-secret-id", "Secrets Manager secret holding the hex audit signing key").
		Envar(config.EnvLogSigningSecretID).
		StringVar(&s.Config.LogSigningSecretID)

	app.Flag("metrics-namespace", "CloudWatch namespace for verification metrics (disabled when unset)").
		Envar(config.EnvMetricsNamespace).
		StringVar(&s.Config.MetricsNamespace)

	app.PreAction(func(c *kingpin.ParseContext) error {
		if !s.Debug {
			log.SetOutput(io.Discard)
		}
		log.Printf("supportaccess %s", s.version)
		return nil
	})

	return s
}

// Runtime builds the service runtime on first use. The audit log goes to
// stderr so stdout carries only command output.
func (s *SupportAccess) Runtime(ctx context.Context) (*config.Runtime, error) {
	if s.runtime == nil {
		opts := append([]config.Option{config.WithLogOutput(os.Stderr)}, s.options...)
		rt, err := config.Build(ctx, &s.Config, opts...)
		if err != nil {
			return nil, err
		}
		s.runtime = rt
	}
	return s.runtime, nil
}

// Close flushes pending notifications.
func (s *SupportAccess) Close() {
	if s.runtime != nil {
		s.runtime.Close()
	}
}

// run executes a command action and flushes notifications before reporting
// its error, since FatalIfError exits without running deferred calls.
func (s *SupportAccess) run(app *kingpin.Application, name string, cmd func(ctx context.Context) error) {
	err := cmd(context.Background())
	s.Close()
	app.FatalIfError(FormatErrorWithSuggestion(err), "%s", name)
}

// AWSConfig loads the AWS configuration for commands that do not need the
// full runtime.
func (s *SupportAccess) AWSConfig(ctx context.Context) (aws.Config, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if s.Config.Region != "" {
		opts = append(opts, awsconfig.WithRegion(s.Config.Region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return cfg, nil
}

// UserAgent identifies this CLI on audit entries. It includes a short hashed
// host id when the machine id is readable.
func (s *SupportAccess) UserAgent() string {
	ua := "supportaccess-cli/" + s.version
	if id, err := machineid.ProtectedID(hostAppID); err == nil && len(id) >= 12 {
		ua += " (host " + id[:12] + ")"
	}
	return ua
}

func (s *SupportAccess) requireActor() error {
	if s.ActorEmail == "" {
		return fmt.Errorf("--as or %s is required", EnvActor)
	}
	return nil
}

// writeJSON writes v as indented JSON to the command output.
func (s *SupportAccess) writeJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output to JSON: %w", err)
	}
	_, err = fmt.Fprintln(s.Stdout, string(data))
	return err
}

func isATerminal() bool {
	fd := os.Stdin.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
