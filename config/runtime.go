package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"

	"github.com/byteness/supportaccess/directory"
	"github.com/byteness/supportaccess/logging"
	"github.com/byteness/supportaccess/metrics"
	"github.com/byteness/supportaccess/notification"
	"github.com/byteness/supportaccess/supportaccess"
)

// ErrInvalidConfig is returned by Build when validation finds errors.
var ErrInvalidConfig = errors.New("invalid configuration")

// Runtime holds the assembled service components.
type Runtime struct {
	Config    *Config
	Store     supportaccess.Store
	Directory *directory.CachedResolver
	Logger    logging.Logger
	Notifier  notification.Notifier
	Metrics   metrics.Recorder
	Manager   *supportaccess.Manager
	Verifier  *supportaccess.Verifier

	notifyStore *notification.NotifyStore
}

// Close waits for in-flight notifications. Call it before the process exits.
func (r *Runtime) Close() {
	if r.notifyStore != nil {
		r.notifyStore.Wait()
	}
}

type buildOptions struct {
	awsCfg    *aws.Config
	secrets   SecretsLoader
	clock     supportaccess.Clock
	logOutput io.Writer
}

// Option customizes Build.
type Option func(*buildOptions)

// WithAWSConfig skips loading the default AWS configuration.
func WithAWSConfig(cfg aws.Config) Option {
	return func(o *buildOptions) { o.awsCfg = &cfg }
}

// WithSecretsLoader replaces the Secrets Manager loader.
func WithSecretsLoader(l SecretsLoader) Option {
	return func(o *buildOptions) { o.secrets = l }
}

// WithClock replaces the system clock.
func WithClock(c supportaccess.Clock) Option {
	return func(o *buildOptions) { o.clock = c }
}

// WithLogOutput sets where stdout-style audit logs are written (default: os.Stdout).
func WithLogOutput(w io.Writer) Option {
	return func(o *buildOptions) { o.logOutput = w }
}

// Build validates cfg and assembles the runtime. The directory is loaded
// once up front so a broken directory fails at startup instead of on the
// first request.
func Build(ctx context.Context, cfg *Config, opts ...Option) (*Runtime, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	o := &buildOptions{
		clock:     supportaccess.SystemClock{},
		logOutput: os.Stdout,
	}
	for _, opt := range opts {
		opt(o)
	}

	var awsCfg aws.Config
	if o.awsCfg != nil {
		awsCfg = *o.awsCfg
	} else {
		var err error
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
	}

	rt := &Runtime{Config: cfg}

	var loader directory.Loader
	if cfg.DirectoryFile != "" {
		loader = directory.FileLoader{Path: cfg.DirectoryFile}
	} else {
		loader = directory.NewSSMLoader(awsCfg, cfg.DirectoryParameter)
	}
	rt.Directory = directory.NewCachedResolver(loader, cfg.DirectoryCacheTTL)
	if _, err := rt.Directory.Directory(ctx); err != nil {
		return nil, fmt.Errorf("failed to load directory: %w", err)
	}

	logger, err := configureLogger(ctx, awsCfg, cfg, o)
	if err != nil {
		return nil, fmt.Errorf("failed to configure logger: %w", err)
	}
	rt.Logger = logger

	notifier, err := configureNotifier(awsCfg, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to configure notifications: %w", err)
	}
	rt.Notifier = notifier

	var store supportaccess.Store
	if cfg.TableName != "" {
		store = supportaccess.NewDynamoDBStore(awsCfg, cfg.TableName)
	} else {
		log.Printf("WARNING: %s not set, using in-memory store (requests are lost on exit)", EnvTable)
		store = supportaccess.NewMemoryStore()
	}
	if notifier != nil {
		rt.notifyStore = notification.NewNotifyStore(store, notifier)
		store = rt.notifyStore
	}
	rt.Store = store

	if cfg.MetricsNamespace != "" {
		rt.Metrics = metrics.NewCloudWatchRecorder(awsCfg, cfg.MetricsNamespace)
	} else {
		rt.Metrics = metrics.NopRecorder{}
	}

	rt.Manager = supportaccess.NewManager(rt.Store, rt.Directory, o.clock, rt.Logger)
	rt.Verifier = supportaccess.NewVerifier(rt.Store, rt.Directory, o.clock, rt.Logger, rt.Metrics)

	return rt, nil
}

// configureLogger selects the audit logger:
//   - No signing, no CloudWatch: JSONLogger
//   - Signing, no CloudWatch: SignedLogger
//   - CloudWatch: CloudWatchLogger, signed when a key is configured
func configureLogger(ctx context.Context, awsCfg aws.Config, cfg *Config, o *buildOptions) (logging.Logger, error) {
	key, err := loadSigningKey(ctx, awsCfg, cfg, o)
	if err != nil {
		return nil, err
	}

	var signConfig *logging.SignatureConfig
	if key != nil {
		signConfig = &logging.SignatureConfig{KeyID: cfg.LogSigningKeyID, SecretKey: key}
	}

	if cfg.CloudWatchLogGroup != "" {
		if signConfig != nil {
			log.Printf("INFO: CloudWatch audit logging enabled with signing (group: %s, key: %s)",
				cfg.CloudWatchLogGroup, cfg.LogSigningKeyID)
		} else {
			log.Printf("INFO: CloudWatch audit logging enabled without signing (group: %s)", cfg.CloudWatchLogGroup)
		}
		return logging.NewCloudWatchLogger(awsCfg, &logging.CloudWatchConfig{
			LogGroupName:  cfg.CloudWatchLogGroup,
			LogStreamName: cfg.CloudWatchStream,
			SignConfig:    signConfig,
		}), nil
	}

	if signConfig != nil {
		return logging.NewSignedLogger(o.logOutput, signConfig), nil
	}
	return logging.NewJSONLogger(o.logOutput), nil
}

// loadSigningKey prefers Secrets Manager over the environment variable.
// It returns nil when signing is not configured.
func loadSigningKey(ctx context.Context, awsCfg aws.Config, cfg *Config, o *buildOptions) ([]byte, error) {
	if cfg.LogSigningSecretID == "" {
		if cfg.LogSigningKey == "" {
			return nil, nil
		}
		return decodeSigningKey(cfg.LogSigningKey)
	}

	if cfg.LogSigningKey != "" {
		log.Printf("WARNING: Both %s and %s are set. Using Secrets Manager (env var ignored).",
			EnvLogSigningSecretID, EnvLogSigningKey)
	}

	loader := o.secrets
	if loader == nil {
		loader = NewCachedSecretsLoader(awsCfg, DefaultSecretsCacheTTL)
	}
	secret, err := loader.GetSecret(ctx, cfg.LogSigningSecretID)
	if err != nil {
		return nil, fmt.Errorf("failed to load log signing key: %w", err)
	}
	key, err := decodeSigningKey(secret)
	if err != nil {
		return nil, fmt.Errorf("secret %s: %w", cfg.LogSigningSecretID, err)
	}
	return key, nil
}

// configureNotifier returns nil when no notification sink is configured.
func configureNotifier(awsCfg aws.Config, cfg *Config) (notification.Notifier, error) {
	var notifiers []notification.Notifier

	if cfg.TopicARN != "" {
		notifiers = append(notifiers, notification.NewSNSNotifier(awsCfg, cfg.TopicARN))
	}
	if cfg.WebhookURL != "" {
		webhook, err := notification.NewWebhookNotifier(notification.WebhookConfig{
			URL:    cfg.WebhookURL,
			Secret: cfg.WebhookSecret,
		})
		if err != nil {
			return nil, err
		}
		notifiers = append(notifiers, webhook)
	}

	switch len(notifiers) {
	case 0:
		log.Printf("INFO: Notifications disabled (%s and %s not set)", EnvTopicARN, EnvWebhookURL)
		return nil, nil
	case 1:
		return notifiers[0], nil
	}
	return notification.NewMultiNotifier(notifiers...), nil
}
