package imagevendor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"mueck/internal/domain"
)

func TestNotCreatedClassifiesSubmitErrors(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"empty prompt", fmt.Errorf("submit: %w", domain.ErrEmptyPrompt), true},
		{"missing key", ErrMissingAPIKey, true},
		{"bad request", &StatusError{Vendor: domain.VendorCivitAI, Code: http.StatusBadRequest}, true},
		{"unavailable", &StatusError{Vendor: domain.VendorCivitAI, Code: http.StatusServiceUnavailable}, true},
		{"bad gateway", &StatusError{Vendor: domain.VendorCivitAI, Code: http.StatusBadGateway}, false},
		{"gateway timeout", fmt.Errorf("wrapped: %w", &StatusError{Vendor: domain.VendorCivitAI, Code: http.StatusGatewayTimeout}), false},
		{"transport", errors.New("civitai: request failed: connection reset by peer"), false},
		{"deadline", context.DeadlineExceeded, false},
		{"nil", nil, false},
	}
	for _, tc := range cases {
		if got := NotCreated(tc.err); got != tc.want {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
	}
}

func TestNotCreatedWhenRequestNeverLeaves(t *testing.T) {
	client := newJSONClient(domain.VendorCivitAI, ClientOptions{Endpoint: "http://127.0.0.1:1", APIKey: "k", Limiter: NewLimiter(0.001)})
	// drain the single token so the next call has to wait past the deadline
	client.limiter.Allow()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := client.do(ctx, http.MethodPost, "/v1/consumer/jobs", map[string]string{"a": "b"})
	if err == nil {
		t.Fatalf("expected rate limit error")
	}
	if !NotCreated(err) {
		t.Fatalf("a request that was never sent must count as not created: %v", err)
	}
}

func TestNotCreatedUnknownAfterTransportFailure(t *testing.T) {
	client := newJSONClient(domain.VendorCivitAI, ClientOptions{Endpoint: "http://127.0.0.1:1", APIKey: "k"})
	_, err := client.do(context.Background(), http.MethodPost, "/v1/consumer/jobs", map[string]string{"a": "b"})
	if err == nil {
		t.Fatalf("expected connection error")
	}
	if NotCreated(err) {
		t.Fatalf("a transport failure leaves the outcome unknown: %v", err)
	}
}
