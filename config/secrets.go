package config

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// SecretsLoader loads secrets from a secrets management service.
type SecretsLoader interface {
	// GetSecret retrieves a secret string by its name or ARN.
	GetSecret(ctx context.Context, secretID string) (string, error)
}

// DefaultSecretsCacheTTL is the default TTL for cached secrets.
const DefaultSecretsCacheTTL = 1 * time.Hour

// secretsManagerAPI is the Secrets Manager operation CachedSecretsLoader uses.
type secretsManagerAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

type cachedSecret struct {
	value     string
	expiresAt time.Time
}

// CachedSecretsLoader implements SecretsLoader over AWS Secrets Manager with
// an in-process cache. Entries are refetched once their TTL passes.
type CachedSecretsLoader struct {
	client secretsManagerAPI
	ttl    time.Duration
	now    func() time.Time

	mu    sync.RWMutex
	cache map[string]*cachedSecret
}

// NewCachedSecretsLoader creates a CachedSecretsLoader. A non-positive ttl
// uses DefaultSecretsCacheTTL.
func NewCachedSecretsLoader(awsCfg aws.Config, ttl time.Duration) *CachedSecretsLoader {
	return newCachedSecretsLoaderWithClient(secretsmanager.NewFromConfig(awsCfg), ttl)
}

func newCachedSecretsLoaderWithClient(client secretsManagerAPI, ttl time.Duration) *CachedSecretsLoader {
	if ttl <= 0 {
		ttl = DefaultSecretsCacheTTL
	}
	return &CachedSecretsLoader{
		client: client,
		ttl:    ttl,
		now:    time.Now,
		cache:  make(map[string]*cachedSecret),
	}
}

// GetSecret returns the cached value if it is still fresh, otherwise it
// fetches the secret. Binary secrets are not supported.
func (l *CachedSecretsLoader) GetSecret(ctx context.Context, secretID string) (string, error) {
	if secretID == "" {
		return "", fmt.Errorf("secret ID is required")
	}

	l.mu.RLock()
	if cached, ok := l.cache[secretID]; ok && l.now().Before(cached.expiresAt) {
		l.mu.RUnlock()
		return cached.value, nil
	}
	l.mu.RUnlock()

	output, err := l.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(secretID),
	})
	if err != nil {
		return "", fmt.Errorf("failed to get secret %q: %w", secretID, err)
	}
	if output.SecretString == nil {
		return "", fmt.Errorf("secret %q is not a string type (binary secrets not supported)", secretID)
	}
	value := *output.SecretString

	l.mu.Lock()
	l.cache[secretID] = &cachedSecret{value: value, expiresAt: l.now().Add(l.ttl)}
	l.mu.Unlock()

	return value, nil
}
