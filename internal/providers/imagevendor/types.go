package imagevendor

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/shopspring/decimal"

	"mueck/internal/domain"
)

// Kind identifies a generation backend.
type Kind = domain.VendorKind

// ErrMissingAPIKey indicates that a remote vendor was configured without credentials.
var ErrMissingAPIKey = errors.New("imagevendor: api key is required")

// SubmitRequest describes one generation request.
type SubmitRequest struct {
	Prompt string
	// Seed is domain.SeedVendorChooses when the vendor should pick one.
	Seed int64
	// IdempotencyKey is forwarded to vendors that deduplicate submissions.
	IdempotencyKey string
}

// Handle is the vendor-side reference to a submitted job.
type Handle struct {
	Kind       Kind
	ExternalID string
	Token      *string
	Status     domain.Status
	Credits    decimal.Decimal
	Raw        json.RawMessage
}

// PollResult is one read-only status observation.
type PollResult struct {
	Status        domain.Status
	Credits       decimal.Decimal
	QueuePosition *int
	QueueLength   *int
	Raw           json.RawMessage
}

// ImageResult is an artifact reference recovered from a completed job.
type ImageResult struct {
	ExternalID string
	SourceURL  string
	Seed       int64
	Width      int
	Height     int
}

// Vendor is implemented by every generation backend.
type Vendor interface {
	Kind() Kind
	// Submit creates a vendor job. An empty prompt yields domain.ErrEmptyPrompt.
	Submit(ctx context.Context, req SubmitRequest) (*Handle, error)
	// Poll reads the current job state without side effects.
	Poll(ctx context.Context, handle Handle) (*PollResult, error)
	// ParseResult extracts artifact references from a completed poll response.
	ParseResult(raw json.RawMessage) ([]ImageResult, error)
	// Resume rebuilds a handle from persisted identifiers without contacting the vendor.
	Resume(externalID string, token *string) (*Handle, error)
	// Idempotent reports whether resubmitting with the same key cannot create a second job.
	Idempotent() bool
}
