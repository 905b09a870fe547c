package notification

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Webhook defaults applied to zero-valued WebhookConfig fields.
const (
	DefaultWebhookTimeout    = 10 * time.Second
	DefaultWebhookMaxRetries = 3
	DefaultWebhookRetryDelay = time.Second
)

// SignatureHeader carries the hex HMAC-SHA256 of the body when a secret is set.
const SignatureHeader = "X-Support-Access-Signature"

// EventHeader carries the event type.
const EventHeader = "X-Support-Access-Event"

// WebhookConfig contains configuration for the webhook notifier.
type WebhookConfig struct {
	// URL is the endpoint events are POSTed to.
	URL string

	// Secret, if set, signs each body so receivers can authenticate it.
	Secret string

	Timeout    time.Duration
	MaxRetries int

	// RetryDelay is the base delay; attempt n waits RetryDelay * 2^(n-1).
	RetryDelay time.Duration
}

// WebhookNotifier sends notifications to an HTTP webhook endpoint.
type WebhookNotifier struct {
	url        string
	secret     []byte
	client     *http.Client
	maxRetries int
	retryDelay time.Duration
}

// NewWebhookNotifier creates a new WebhookNotifier with the given configuration.
// Returns an error if the URL is empty or invalid.
func NewWebhookNotifier(config WebhookConfig) (*WebhookNotifier, error) {
	if config.URL == "" {
		return nil, errors.New("webhook URL is required")
	}
	if _, err := url.ParseRequestURI(config.URL); err != nil {
		return nil, fmt.Errorf("invalid webhook URL: %w", err)
	}

	if config.Timeout == 0 {
		config.Timeout = DefaultWebhookTimeout
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = DefaultWebhookMaxRetries
	}
	if config.RetryDelay == 0 {
		config.RetryDelay = DefaultWebhookRetryDelay
	}

	n := &WebhookNotifier{
		url:        config.URL,
		client:     &http.Client{Timeout: config.Timeout},
		maxRetries: config.MaxRetries,
		retryDelay: config.RetryDelay,
	}
	if config.Secret != "" {
		n.secret = []byte(config.Secret)
	}
	return n, nil
}

// SignBody returns the hex HMAC-SHA256 of body under secret.
func SignBody(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Notify POSTs the event as JSON. Network errors and 5xx responses are
// retried with exponential backoff; 4xx responses fail immediately.
func (w *WebhookNotifier) Notify(ctx context.Context, event *Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= w.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(w.retryDelay << (attempt - 1)):
			}
		}

		retry, err := w.post(ctx, event.Type, body)
		if err == nil {
			return nil
		}
		if !retry {
			return err
		}
		lastErr = err
	}

	return fmt.Errorf("webhook delivery failed after %d retries: %w", w.maxRetries, lastErr)
}

// post performs one delivery attempt and reports whether a failure is retryable.
func (w *WebhookNotifier) post(ctx context.Context, eventType EventType, body []byte) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(EventHeader, eventType.String())
	if w.secret != nil {
		req.Header.Set(SignatureHeader, SignBody(w.secret, body))
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return true, fmt.Errorf("request failed: %w", err)
	}
	resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return false, nil
	case resp.StatusCode >= 500:
		return true, fmt.Errorf("server error: status %d", resp.StatusCode)
	default:
		return false, fmt.Errorf("webhook request failed: status %d", resp.StatusCode)
	}
}
