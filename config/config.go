// Package config loads the support access service settings from the
// environment, validates them together with the directory document, and
// assembles the runtime components.
package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/byteness/supportaccess/directory"
	"github.com/byteness/supportaccess/logging"
)

// Environment variable names.
const (
	EnvTable  = "SUPPORTACCESS_TABLE"
	EnvRegion = "AWS_REGION"

	// Exactly one directory source must be set.
	EnvDirectoryFile      = "SUPPORTACCESS_DIRECTORY_FILE"
	EnvDirectoryParameter = "SUPPORTACCESS_DIRECTORY_PARAMETER"
	EnvDirectoryCacheTTL  = "SUPPORTACCESS_DIRECTORY_CACHE_TTL" // seconds (default: 300)

	// Notification sinks. Either, both or neither may be set.
	EnvTopicARN      = "SUPPORTACCESS_TOPIC_ARN"
	EnvWebhookURL    = "SUPPORTACCESS_WEBHOOK_URL"
	EnvWebhookSecret = "SUPPORTACCESS_WEBHOOK_SECRET"

	// Audit log forwarding and signing.
	EnvCloudWatchGroup    = "SUPPORTACCESS_CLOUDWATCH_LOG_GROUP"
	EnvCloudWatchStream   = "SUPPORTACCESS_CLOUDWATCH_STREAM"     // default: DefaultLogStream
	EnvLogSigningKey      = "SUPPORTACCESS_LOG_SIGNING_KEY"       // hex-encoded, at least 32 bytes
	EnvLogSigningKeyID    = "SUPPORTACCESS_LOG_SIGNING_KEY_ID"    // key identifier for rotation
	EnvLogSigningSecretID = "SUPPORTACCESS_LOG_SIGNING_SECRET_ID" // Secrets Manager secret holding the hex key (preferred)

	// EnvMetricsNamespace enables CloudWatch verification metrics.
	EnvMetricsNamespace = "SUPPORTACCESS_METRICS_NAMESPACE"
)

// DefaultLogStream is the CloudWatch log stream used when none is configured.
const DefaultLogStream = "supportaccess"

// Config holds the service settings. The zero value is a development setup
// without a directory, which Validate rejects.
type Config struct {
	TableName string
	Region    string

	DirectoryFile      string
	DirectoryParameter string
	DirectoryCacheTTL  time.Duration

	TopicARN      string
	WebhookURL    string
	WebhookSecret string

	CloudWatchLogGroup string
	CloudWatchStream   string

	// LogSigningKey is the hex-encoded HMAC key. LogSigningSecretID takes
	// precedence when both are set.
	LogSigningKey      string
	LogSigningKeyID    string
	LogSigningSecretID string

	MetricsNamespace string
}

// LoadFromEnv reads the configuration from the process environment.
func LoadFromEnv() (*Config, error) {
	return loadFrom(os.Getenv)
}

func loadFrom(getenv func(string) string) (*Config, error) {
	cfg := &Config{
		TableName:          getenv(EnvTable),
		Region:             getenv(EnvRegion),
		DirectoryFile:      getenv(EnvDirectoryFile),
		DirectoryParameter: getenv(EnvDirectoryParameter),
		DirectoryCacheTTL:  directory.DefaultCacheTTL,
		TopicARN:           getenv(EnvTopicARN),
		WebhookURL:         getenv(EnvWebhookURL),
		WebhookSecret:      getenv(EnvWebhookSecret),
		CloudWatchLogGroup: getenv(EnvCloudWatchGroup),
		CloudWatchStream:   getenv(EnvCloudWatchStream),
		LogSigningKey:      getenv(EnvLogSigningKey),
		LogSigningKeyID:    getenv(EnvLogSigningKeyID),
		LogSigningSecretID: getenv(EnvLogSigningSecretID),
		MetricsNamespace:   getenv(EnvMetricsNamespace),
	}

	if ttlStr := getenv(EnvDirectoryCacheTTL); ttlStr != "" {
		sec, err := strconv.Atoi(ttlStr)
		if err != nil || sec <= 0 {
			return nil, fmt.Errorf("invalid %s: must be a positive number of seconds", EnvDirectoryCacheTTL)
		}
		cfg.DirectoryCacheTTL = time.Duration(sec) * time.Second
	}

	if cfg.CloudWatchLogGroup != "" && cfg.CloudWatchStream == "" {
		cfg.CloudWatchStream = DefaultLogStream
	}

	return cfg, nil
}

// Check validates the configuration and reports every issue found.
func (c *Config) Check() ValidationResult {
	result := ValidationResult{
		ConfigType: ConfigTypeEnvironment,
		Source:     "environment",
		Valid:      true,
		Issues:     []ValidationIssue{},
	}

	switch {
	case c.DirectoryFile == "" && c.DirectoryParameter == "":
		result.addError(EnvDirectoryFile, "no directory source configured",
			fmt.Sprintf("set %s to a YAML file or %s to an SSM parameter name", EnvDirectoryFile, EnvDirectoryParameter))
	case c.DirectoryFile != "" && c.DirectoryParameter != "":
		result.addError(EnvDirectoryParameter, "both directory sources are set",
			fmt.Sprintf("unset either %s or %s", EnvDirectoryFile, EnvDirectoryParameter))
	}

	if c.TableName == "" {
		result.addWarning(EnvTable, "no table configured - requests are kept in memory and lost on exit",
			fmt.Sprintf("set %s and run init-table for durable storage", EnvTable))
	}

	if c.TopicARN != "" && !strings.HasPrefix(c.TopicARN, "arn:") {
		result.addError(EnvTopicARN, fmt.Sprintf("%q is not an ARN", c.TopicARN),
			"use the full topic ARN, e.g. arn:aws:sns:us-east-1:123456789012:support-access")
	}
	if c.WebhookSecret != "" && c.WebhookURL == "" {
		result.addError(EnvWebhookSecret, "webhook secret set without a webhook URL",
			fmt.Sprintf("set %s or unset %s", EnvWebhookURL, EnvWebhookSecret))
	}

	if c.LogSigningKey != "" {
		if _, err := decodeSigningKey(c.LogSigningKey); err != nil {
			result.addError(EnvLogSigningKey, err.Error(),
				"generate a key with: openssl rand -hex 32")
		}
		if c.LogSigningSecretID != "" {
			result.addWarning(EnvLogSigningKey,
				fmt.Sprintf("both %s and %s are set - the secret is used", EnvLogSigningKey, EnvLogSigningSecretID),
				fmt.Sprintf("unset %s", EnvLogSigningKey))
		}
	}
	if c.LogSigningKeyID != "" && c.LogSigningKey == "" && c.LogSigningSecretID == "" {
		result.addWarning(EnvLogSigningKeyID, "signing key id set without a signing key - audit logs are unsigned",
			fmt.Sprintf("set %s to sign audit entries", EnvLogSigningSecretID))
	}

	return result
}

// Validate returns an error joining every error-severity issue from Check.
func (c *Config) Validate() error {
	var errs []error
	for _, issue := range c.Check().Errors() {
		errs = append(errs, fmt.Errorf("%s: %s", issue.Location, issue.Message))
	}
	return errors.Join(errs...)
}

// decodeSigningKey parses a hex-encoded HMAC key and enforces the minimum length.
func decodeSigningKey(keyHex string) ([]byte, error) {
	key, err := hex.DecodeString(strings.TrimSpace(keyHex))
	if err != nil {
		return nil, fmt.Errorf("signing key must be hex-encoded: %w", err)
	}
	if len(key) < logging.MinKeyLength {
		return nil, fmt.Errorf("signing key must be at least %d bytes (got %d)", logging.MinKeyLength, len(key))
	}
	return key, nil
}
