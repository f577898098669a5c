package config

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"
)

func TestBackoffStore(t *testing.T) {
	store := NewBackoffStore()
	base := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return base }

	if _, ok := store.NextRetryAt("83139"); ok {
		t.Fatal("expected no backoff for an unseen stop")
	}
	if store.ShouldSkip("83139") {
		t.Fatal("unseen stop should not be skipped")
	}

	store.UpdateBackoff("83139")
	first, ok := store.NextRetryAt("83139")
	if !ok {
		t.Fatal("expected backoff after first failure")
	}
	if first.Before(base.Add(BASE_BACKOFF)) || first.After(base.Add(BASE_BACKOFF*3/2)) {
		t.Errorf("first retry at %v outside [1s, 1.5s] window", first.Sub(base))
	}
	if !store.ShouldSkip("83139") {
		t.Error("stop inside its backoff window should be skipped")
	}

	store.UpdateBackoff("83139")
	second, _ := store.NextRetryAt("83139")
	if second.Before(base.Add(2 * BASE_BACKOFF)) {
		t.Errorf("second delay %v should be at least doubled", second.Sub(base))
	}

	store.now = func() time.Time { return base.Add(time.Hour) }
	if store.ShouldSkip("83139") {
		t.Error("stop past its retry time should not be skipped")
	}

	store.ResetBackoff("83139")
	if _, ok := store.NextRetryAt("83139"); ok {
		t.Error("expected backoff to be cleared")
	}
}

func TestCalculateNewBackoffDelay(t *testing.T) {
	if got := calculateNewBackoffDelay(BASE_BACKOFF); got != 2*BASE_BACKOFF {
		t.Errorf("got %v want %v", got, 2*BASE_BACKOFF)
	}
	if got := calculateNewBackoffDelay(MAX_BACKOFF); got != MAX_BACKOFF {
		t.Errorf("delay should be capped at %v, got %v", MAX_BACKOFF, got)
	}
}

func TestDoWithBackoff(t *testing.T) {
	orig := retryBaseDelay
	retryBaseDelay = 10 * time.Millisecond
	t.Cleanup(func() { retryBaseDelay = orig })

	tests := []struct {
		name          string
		maxRetries    int
		ctxTimeout    time.Duration
		handler       func(req *http.Request) (*http.Response, error)
		expectErr     string
		expectCalls   int
		expectSuccess bool
	}{
		{
			name:       "success on first try",
			maxRetries: 3,
			handler: func(req *http.Request) (*http.Response, error) {
				return &http.Response{StatusCode: 200, Body: http.NoBody}, nil
			},
			expectCalls:   1,
			expectSuccess: true,
		},
		{
			name:       "max retries exceeded",
			maxRetries: 2,
			handler: func(req *http.Request) (*http.Response, error) {
				return nil, errors.New("mock error")
			},
			expectErr:   "max retries exceeded",
			expectCalls: 3,
		},
		{
			name:       "server errors are retried",
			maxRetries: 1,
			handler: func(req *http.Request) (*http.Response, error) {
				return &http.Response{StatusCode: 503, Body: http.NoBody}, nil
			},
			expectErr:   "status 503",
			expectCalls: 2,
		},
		{
			name:       "context cancelled before success",
			maxRetries: 0,
			ctxTimeout: 50 * time.Millisecond,
			handler: func(req *http.Request) (*http.Response, error) {
				return nil, errors.New("fail")
			},
			expectErr:   "context deadline exceeded",
			expectCalls: -1,
		},
		{
			name:       "client errors are returned as is",
			maxRetries: 3,
			handler: func(req *http.Request) (*http.Response, error) {
				return &http.Response{StatusCode: 401, Body: http.NoBody}, nil
			},
			expectCalls:   1,
			expectSuccess: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &mockRoundTripper{handler: tt.handler}
			client := &http.Client{Transport: mock}
			req, _ := http.NewRequest("GET", "http://example.com", nil)

			ctx := context.Background()
			if tt.ctxTimeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, tt.ctxTimeout)
				defer cancel()
			}

			resp, err := DoWithBackoff(ctx, client, req, tt.maxRetries)

			if tt.expectErr == "" && err != nil {
				t.Fatalf("expected success, got error: %v", err)
			}
			if tt.expectErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.expectErr) {
					t.Fatalf("expected error containing %q, got %v", tt.expectErr, err)
				}
			}
			if tt.expectSuccess && resp == nil {
				t.Fatalf("expected response, got nil")
			}

			if tt.expectCalls >= 0 && mock.calls != tt.expectCalls {
				t.Errorf("expected %d calls, got %d", tt.expectCalls, mock.calls)
			}
		})
	}
}

func TestDoWithBackoffRecovers(t *testing.T) {
	orig := retryBaseDelay
	retryBaseDelay = 5 * time.Millisecond
	t.Cleanup(func() { retryBaseDelay = orig })

	mock := &mockRoundTripper{}
	mock.handler = func(req *http.Request) (*http.Response, error) {
		switch mock.calls {
		case 1:
			return nil, errors.New("connection reset")
		case 2:
			return &http.Response{StatusCode: http.StatusTooManyRequests, Body: http.NoBody}, nil
		default:
			return &http.Response{StatusCode: http.StatusOK, Body: http.NoBody}, nil
		}
	}
	client := &http.Client{Transport: mock}
	req, _ := http.NewRequest(http.MethodGet, "http://example.com/stops", nil)

	resp, err := DoWithBackoff(context.Background(), client, req, 5)
	if err != nil {
		t.Fatalf("expected recovery, got %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("got status %d, want 200", resp.StatusCode)
	}
	if mock.calls != 3 {
		t.Errorf("expected 3 calls, got %d", mock.calls)
	}
}

func TestDoWithBackoffCancelledContext(t *testing.T) {
	mock := &mockRoundTripper{handler: func(req *http.Request) (*http.Response, error) {
		return &http.Response{StatusCode: http.StatusOK, Body: http.NoBody}, nil
	}}
	client := &http.Client{Transport: mock}
	req, _ := http.NewRequest(http.MethodGet, "http://example.com/stops", nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := DoWithBackoff(ctx, client, req, 3)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if mock.calls != 0 {
		t.Errorf("expected no calls, got %d", mock.calls)
	}
}
