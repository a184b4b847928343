package imagevendor

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"

	"mueck/internal/domain"
)

// Local calls a self-hosted inference server that renders synchronously.
type Local struct {
	client  *jsonClient
	profile Profile
}

// NewLocal builds the local vendor. The API key is optional.
func NewLocal(opts ClientOptions, profile Profile) *Local {
	return &Local{client: newJSONClient(domain.VendorLocal, opts), profile: profile}
}

func (l *Local) Kind() Kind { return domain.VendorLocal }

// Idempotent is true: the server keys stored results by request_id.
func (l *Local) Idempotent() bool { return true }

type localRequest struct {
	RequestID     string  `json:"request_id"`
	Prompt        string  `json:"prompt"`
	Model         string  `json:"model,omitempty"`
	Seed          *int64  `json:"seed,omitempty"`
	Width         int     `json:"width"`
	Height        int     `json:"height"`
	Count         int     `json:"count"`
	Steps         int     `json:"num_inference_steps"`
	GuidanceScale float64 `json:"guidance_scale"`
}

type localResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Error  string `json:"error"`
	Images []struct {
		ID     string  `json:"id"`
		URL    string  `json:"url"`
		Seed   flexInt `json:"seed"`
		Width  int     `json:"width"`
		Height int     `json:"height"`
	} `json:"images"`
}

// Submit renders the prompt and returns an already terminal handle.
func (l *Local) Submit(ctx context.Context, req SubmitRequest) (*Handle, error) {
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return nil, domain.ErrEmptyPrompt
	}
	if l.client.endpoint == "" {
		return nil, fmt.Errorf("local: endpoint is not configured")
	}
	count := l.profile.Count
	if count <= 0 {
		count = 1
	}
	body := localRequest{
		RequestID:     req.IdempotencyKey,
		Prompt:        prompt,
		Model:         l.profile.Model,
		Width:         l.profile.Width,
		Height:        l.profile.Height,
		Count:         count,
		Steps:         l.profile.Steps,
		GuidanceScale: l.profile.CFGScale,
	}
	if req.Seed >= 0 {
		seed := req.Seed
		body.Seed = &seed
	}
	raw, err := l.client.do(ctx, http.MethodPost, "/v1/generate", body)
	if err != nil {
		return nil, err
	}
	resp, err := decodeLocal(raw)
	if err != nil {
		return nil, err
	}
	id := resp.ID
	if id == "" {
		id = req.IdempotencyKey
	}
	if id == "" {
		return nil, fmt.Errorf("local: response missing job id")
	}
	return &Handle{
		Kind:       domain.VendorLocal,
		ExternalID: id,
		Status:     mapLocalStatus(resp),
		Credits:    decimal.Zero,
		Raw:        raw,
	}, nil
}

// Poll re-reads a stored result.
func (l *Local) Poll(ctx context.Context, handle Handle) (*PollResult, error) {
	if handle.ExternalID == "" {
		return nil, fmt.Errorf("local: job id is required")
	}
	raw, err := l.client.do(ctx, http.MethodGet, "/v1/jobs/"+url.PathEscape(handle.ExternalID), nil)
	if err != nil {
		return nil, err
	}
	resp, err := decodeLocal(raw)
	if err != nil {
		return nil, err
	}
	return &PollResult{Status: mapLocalStatus(resp), Credits: decimal.Zero, Raw: raw}, nil
}

func decodeLocal(raw json.RawMessage) (*localResponse, error) {
	var resp localResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("local: decode response: %w", err)
	}
	return &resp, nil
}

func mapLocalStatus(resp *localResponse) domain.Status {
	switch strings.ToLower(strings.TrimSpace(resp.Status)) {
	case "failed", "error":
		return domain.StatusError
	case "running":
		return domain.StatusRunning
	case "queued", "pending":
		return domain.StatusQueued
	case "", "complete", "completed", "success":
		if resp.Error != "" {
			return domain.StatusError
		}
		return domain.StatusComplete
	default:
		return domain.StatusQueued
	}
}

// ParseResult lists the rendered files.
func (l *Local) ParseResult(raw json.RawMessage) ([]ImageResult, error) {
	resp, err := decodeLocal(raw)
	if err != nil {
		return nil, err
	}
	images := make([]ImageResult, 0, len(resp.Images))
	for _, img := range resp.Images {
		if img.ID == "" || img.URL == "" {
			l.client.logger.Warn().Str("job_id", resp.ID).Msg("local: image without id or url skipped")
			continue
		}
		result := ImageResult{ExternalID: img.ID, SourceURL: img.URL, Width: img.Width, Height: img.Height}
		if img.Seed.Valid {
			result.Seed = img.Seed.Value
		}
		images = append(images, result)
	}
	return images, nil
}

func (l *Local) Resume(externalID string, _ *string) (*Handle, error) {
	if strings.TrimSpace(externalID) == "" {
		return nil, fmt.Errorf("local: job id is required to resume")
	}
	return &Handle{Kind: domain.VendorLocal, ExternalID: externalID, Status: domain.StatusCreated}, nil
}

var _ Vendor = (*Local)(nil)
