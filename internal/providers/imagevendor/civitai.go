package imagevendor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"

	"mueck/internal/domain"
)

// CivitAI talks to the CivitAI orchestration API. Jobs are addressed by the submission token.
type CivitAI struct {
	client  *jsonClient
	profile Profile
}

// NewCivitAI builds the CivitAI vendor.
func NewCivitAI(opts ClientOptions, profile Profile) *CivitAI {
	if opts.Endpoint == "" {
		opts.Endpoint = "https://orchestration.civitai.com"
	}
	return &CivitAI{client: newJSONClient(domain.VendorCivitAI, opts), profile: profile}
}

func (c *CivitAI) Kind() Kind { return domain.VendorCivitAI }

// Idempotent is false: the consumer jobs API has no request deduplication.
func (c *CivitAI) Idempotent() bool { return false }

type civitaiRequest struct {
	Type     string        `json:"$type"`
	Model    string        `json:"model"`
	Quantity int           `json:"quantity"`
	Params   civitaiParams `json:"params"`
}

type civitaiParams struct {
	Prompt    string  `json:"prompt"`
	Scheduler string  `json:"scheduler,omitempty"`
	Steps     int     `json:"steps"`
	CFGScale  float64 `json:"cfgScale"`
	ClipSkip  int     `json:"clipSkip"`
	Width     int     `json:"width"`
	Height    int     `json:"height"`
	Seed      *int64  `json:"seed,omitempty"`
}

type civitaiResponse struct {
	Token string       `json:"token"`
	Jobs  []civitaiJob `json:"jobs"`
}

type civitaiJob struct {
	JobID     string          `json:"jobId"`
	Cost      decimal.Decimal `json:"cost"`
	Scheduled bool            `json:"scheduled"`
	Result    civitaiResults  `json:"result"`
}

type civitaiResult struct {
	BlobKey   string  `json:"blobKey"`
	BlobURL   string  `json:"blobUrl"`
	Available bool    `json:"available"`
	Seed      flexInt `json:"seed"`
}

// civitaiResults accepts either a single result object or a list of them.
type civitaiResults []civitaiResult

func (r *civitaiResults) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*r = nil
		return nil
	}
	if trimmed[0] == '{' {
		var one civitaiResult
		if err := json.Unmarshal(trimmed, &one); err != nil {
			return err
		}
		*r = civitaiResults{one}
		return nil
	}
	var many []civitaiResult
	if err := json.Unmarshal(trimmed, &many); err != nil {
		return err
	}
	*r = many
	return nil
}

// Submit schedules a text-to-image job and keeps the returned token.
func (c *CivitAI) Submit(ctx context.Context, req SubmitRequest) (*Handle, error) {
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return nil, domain.ErrEmptyPrompt
	}
	if !c.client.hasCredentials() {
		return nil, ErrMissingAPIKey
	}
	quantity := c.profile.Count
	if quantity <= 0 {
		quantity = 1
	}
	body := civitaiRequest{
		Type:     "textToImage",
		Model:    c.profile.Model,
		Quantity: quantity,
		Params: civitaiParams{
			Prompt:    prompt,
			Scheduler: c.profile.Scheduler,
			Steps:     c.profile.Steps,
			CFGScale:  c.profile.CFGScale,
			ClipSkip:  c.profile.ClipSkip,
			Width:     c.profile.Width,
			Height:    c.profile.Height,
		},
	}
	if req.Seed >= 0 {
		seed := req.Seed
		body.Params.Seed = &seed
	}

	raw, err := c.client.do(ctx, http.MethodPost, "/v1/consumer/jobs", body)
	if err != nil {
		return nil, err
	}
	var resp civitaiResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("civitai: decode submit response: %w", err)
	}
	if resp.Token == "" {
		return nil, fmt.Errorf("civitai: submit response missing token")
	}
	handle := &Handle{
		Kind:    domain.VendorCivitAI,
		Token:   &resp.Token,
		Status:  domain.StatusCreated,
		Credits: sumCost(resp.Jobs),
		Raw:     raw,
	}
	for _, job := range resp.Jobs {
		handle.ExternalID = job.JobID
	}
	if handle.ExternalID == "" {
		handle.ExternalID = resp.Token
	}
	return handle, nil
}

// Poll looks the jobs up by token.
func (c *CivitAI) Poll(ctx context.Context, handle Handle) (*PollResult, error) {
	if handle.Token == nil || *handle.Token == "" {
		return nil, fmt.Errorf("civitai: token is required to poll")
	}
	if !c.client.hasCredentials() {
		return nil, ErrMissingAPIKey
	}
	raw, err := c.client.do(ctx, http.MethodGet, "/v1/consumer/jobs?token="+url.QueryEscape(*handle.Token), nil)
	if err != nil {
		return nil, err
	}
	var resp civitaiResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("civitai: decode jobs: %w", err)
	}
	for _, job := range resp.Jobs {
		for _, res := range job.Result {
			if !res.Available {
				c.client.logger.Debug().Str("job_id", job.JobID).Str("image_id", res.BlobKey).Msg("civitai: image not available yet")
			}
		}
	}
	return &PollResult{
		Status:  mapCivitAIJobs(resp.Jobs),
		Credits: sumCost(resp.Jobs),
		Raw:     raw,
	}, nil
}

// mapCivitAIJobs folds the per-job state: scheduled or partially available work is running,
// work with every image available is complete, and work without results is created.
func mapCivitAIJobs(jobs []civitaiJob) domain.Status {
	if len(jobs) == 0 {
		return domain.StatusCreated
	}
	complete := 0
	for _, job := range jobs {
		switch mapCivitAIJob(job) {
		case domain.StatusRunning:
			return domain.StatusRunning
		case domain.StatusComplete:
			complete++
		}
	}
	if complete == len(jobs) {
		return domain.StatusComplete
	}
	return domain.StatusCreated
}

func mapCivitAIJob(job civitaiJob) domain.Status {
	if job.Scheduled {
		return domain.StatusRunning
	}
	if len(job.Result) == 0 {
		return domain.StatusCreated
	}
	for _, res := range job.Result {
		if !res.Available {
			return domain.StatusRunning
		}
	}
	return domain.StatusComplete
}

func sumCost(jobs []civitaiJob) decimal.Decimal {
	total := decimal.Zero
	for _, job := range jobs {
		total = total.Add(job.Cost)
	}
	return total
}

// ParseResult returns the available blobs of every job.
func (c *CivitAI) ParseResult(raw json.RawMessage) ([]ImageResult, error) {
	var resp civitaiResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("civitai: decode result: %w", err)
	}
	logger := c.client.logger
	var images []ImageResult
	for _, job := range resp.Jobs {
		for _, res := range job.Result {
			if !res.Available {
				logger.Debug().Str("job_id", job.JobID).Str("image_id", res.BlobKey).Msg("civitai: unavailable image skipped")
				continue
			}
			if res.BlobKey == "" || res.BlobURL == "" {
				logger.Warn().Str("job_id", job.JobID).Msg("civitai: image without blob key or url skipped")
				continue
			}
			image := ImageResult{ExternalID: res.BlobKey, SourceURL: res.BlobURL}
			if res.Seed.Valid {
				image.Seed = res.Seed.Value
			} else {
				logger.Warn().Str("job_id", job.JobID).Str("image_id", res.BlobKey).Msg("civitai: image seed missing")
			}
			images = append(images, image)
		}
	}
	return images, nil
}

// Resume rebuilds a handle; the token is mandatory because polling is keyed by it.
func (c *CivitAI) Resume(externalID string, token *string) (*Handle, error) {
	if token == nil || strings.TrimSpace(*token) == "" {
		return nil, fmt.Errorf("civitai: token is required to resume job %q", externalID)
	}
	tok := *token
	return &Handle{Kind: domain.VendorCivitAI, ExternalID: externalID, Token: &tok, Status: domain.StatusCreated}, nil
}

var _ Vendor = (*CivitAI)(nil)
