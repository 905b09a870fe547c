package notification

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/byteness/supportaccess/supportaccess"
)

func TestWebhookNotifier_Notify(t *testing.T) {
	var body []byte
	var contentType, eventHeader, signature string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contentType = r.Header.Get("Content-Type")
		eventHeader = r.Header.Get(EventHeader)
		signature = r.Header.Get(SignatureHeader)
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	notifier, err := NewWebhookNotifier(WebhookConfig{URL: server.URL, Secret: "shared-secret"})
	if err != nil {
		t.Fatalf("NewWebhookNotifier: %v", err)
	}

	event := NewEvent(EventRequested, testRequest(supportaccess.StatusPending), "sa-1", t0)
	if err := notifier.Notify(context.Background(), event); err != nil {
		t.Fatalf("Notify: %v", err)
	}

	if contentType != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", contentType)
	}
	if eventHeader != string(EventRequested) {
		t.Errorf("%s = %q, want %q", EventHeader, eventHeader, EventRequested)
	}
	if want := SignBody([]byte("shared-secret"), body); signature != want {
		t.Errorf("%s = %q, want %q", SignatureHeader, signature, want)
	}

	var decoded Event
	if err := json.Unmarshal(body, &decoded); err != nil {
		t.Fatalf("body is not valid JSON: %v", err)
	}
	if decoded.Type != EventRequested {
		t.Errorf("decoded.Type = %q, want %q", decoded.Type, EventRequested)
	}
}

func TestWebhookNotifier_NoSecretNoSignature(t *testing.T) {
	var hasSignature bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, hasSignature = r.Header[SignatureHeader]
	}))
	defer server.Close()

	notifier, _ := NewWebhookNotifier(WebhookConfig{URL: server.URL})
	if err := notifier.Notify(context.Background(), NewEvent(EventRequested, testRequest("pending"), "sa-1", t0)); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if hasSignature {
		t.Error("signature header sent without a secret")
	}
}

func TestWebhookNotifier_Notify_Retry(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	notifier, err := NewWebhookNotifier(WebhookConfig{URL: server.URL, MaxRetries: 3, RetryDelay: time.Millisecond})
	if err != nil {
		t.Fatalf("NewWebhookNotifier: %v", err)
	}

	if err := notifier.Notify(context.Background(), NewEvent(EventApproved, testRequest("approved"), "user-x", t0)); err != nil {
		t.Fatalf("Notify should succeed after retries: %v", err)
	}
	if got := atomic.LoadInt32(&attempts); got != 3 {
		t.Errorf("attempts = %d, want 3", got)
	}
}

func TestWebhookNotifier_Notify_AllRetriesFail(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	notifier, _ := NewWebhookNotifier(WebhookConfig{URL: server.URL, MaxRetries: 2, RetryDelay: time.Millisecond})

	err := notifier.Notify(context.Background(), NewEvent(EventApproved, testRequest("approved"), "user-x", t0))
	if err == nil || !strings.Contains(err.Error(), "after 2 retries") {
		t.Fatalf("Notify() error = %v, want retries exhausted", err)
	}
	if got := atomic.LoadInt32(&attempts); got != 3 {
		t.Errorf("attempts = %d, want 3 (1 initial + 2 retries)", got)
	}
}

func TestWebhookNotifier_Notify_ClientErrorNotRetried(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	notifier, _ := NewWebhookNotifier(WebhookConfig{URL: server.URL, RetryDelay: time.Millisecond})

	err := notifier.Notify(context.Background(), NewEvent(EventRequested, testRequest("pending"), "sa-1", t0))
	if err == nil || !strings.Contains(err.Error(), "status 403") {
		t.Fatalf("Notify() error = %v, want status 403", err)
	}
	if got := atomic.LoadInt32(&attempts); got != 1 {
		t.Errorf("attempts = %d, want 1", got)
	}
}

func TestWebhookNotifier_Notify_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	notifier, _ := NewWebhookNotifier(WebhookConfig{URL: server.URL, RetryDelay: time.Hour})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := notifier.Notify(ctx, NewEvent(EventRequested, testRequest("pending"), "sa-1", t0)); err != context.DeadlineExceeded {
		t.Errorf("Notify() error = %v, want context.DeadlineExceeded", err)
	}
}

func TestNewWebhookNotifier_Validation(t *testing.T) {
	if _, err := NewWebhookNotifier(WebhookConfig{}); err == nil {
		t.Error("expected error for empty URL")
	}
	if _, err := NewWebhookNotifier(WebhookConfig{URL: "not a url"}); err == nil {
		t.Error("expected error for invalid URL")
	}

	n, err := NewWebhookNotifier(WebhookConfig{URL: "https://hooks.example.com/support"})
	if err != nil {
		t.Fatalf("NewWebhookNotifier: %v", err)
	}
	if n.maxRetries != DefaultWebhookMaxRetries || n.retryDelay != DefaultWebhookRetryDelay || n.client.Timeout != DefaultWebhookTimeout {
		t.Errorf("defaults not applied: %+v", n)
	}
}
