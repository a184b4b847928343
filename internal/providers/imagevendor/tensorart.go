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

// TensorArt talks to the TensorArt jobs API. Jobs are addressed by id.
type TensorArt struct {
	client  *jsonClient
	profile Profile
}

// NewTensorArt builds the TensorArt vendor.
func NewTensorArt(opts ClientOptions, profile Profile) *TensorArt {
	if opts.Endpoint == "" {
		opts.Endpoint = "https://ap-east-1.tensorart.cloud"
	}
	return &TensorArt{client: newJSONClient(domain.VendorTensorArt, opts), profile: profile}
}

func (t *TensorArt) Kind() Kind { return domain.VendorTensorArt }

// Idempotent is true: the submission key is sent as request_id, which TensorArt deduplicates.
func (t *TensorArt) Idempotent() bool { return true }

type tensorArtStage struct {
	Type            string                    `json:"type"`
	InputInitialize *tensorArtInputInitialize `json:"inputInitialize,omitempty"`
	Diffusion       *tensorArtDiffusion       `json:"diffusion,omitempty"`
}

type tensorArtInputInitialize struct {
	Count int   `json:"count"`
	Seed  int64 `json:"seed"`
}

type tensorArtDiffusion struct {
	CFGScale float64           `json:"cfgScale"`
	ClipSkip int               `json:"clipSkip"`
	Guidance float64           `json:"guidance,omitempty"`
	Width    int               `json:"width"`
	Height   int               `json:"height"`
	Prompts  []tensorArtPrompt `json:"prompts"`
	Sampler  string            `json:"sampler"`
	SDVAE    string            `json:"sdVae"`
	SDModel  string            `json:"sd_model"`
	Steps    int               `json:"steps"`
	Lora     *tensorArtLoras   `json:"lora,omitempty"`
}

type tensorArtPrompt struct {
	Text string `json:"text"`
}

type tensorArtLoras struct {
	Items []tensorArtLora `json:"items"`
}

type tensorArtLora struct {
	LoraModel string  `json:"loraModel"`
	Weight    float64 `json:"weight"`
}

type tensorArtRequest struct {
	RequestID string           `json:"request_id"`
	Stages    []tensorArtStage `json:"stages"`
}

type tensorArtEnvelope struct {
	Job tensorArtJob `json:"job"`
}

type tensorArtJob struct {
	ID          string          `json:"id"`
	Status      string          `json:"status"`
	Credits     decimal.Decimal `json:"credits"`
	WaitingInfo *struct {
		QueueRank flexInt `json:"queueRank"`
		QueueLen  flexInt `json:"queueLen"`
	} `json:"waitingInfo"`
	SuccessInfo *struct {
		Images []struct {
			ID  string `json:"id"`
			URL string `json:"url"`
		} `json:"images"`
		ImageExifMetaMap map[string]struct {
			Meta struct {
				ImageSize string  `json:"ImageSize"`
				Seed      flexInt `json:"Seed"`
			} `json:"meta"`
		} `json:"imageExifMetaMap"`
	} `json:"successInfo"`
}

// Submit creates a single-image job.
func (t *TensorArt) Submit(ctx context.Context, req SubmitRequest) (*Handle, error) {
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return nil, domain.ErrEmptyPrompt
	}
	if !t.client.hasCredentials() {
		return nil, ErrMissingAPIKey
	}
	count := t.profile.Count
	if count <= 0 {
		count = 1
	}
	diffusion := &tensorArtDiffusion{
		CFGScale: t.profile.CFGScale,
		ClipSkip: t.profile.ClipSkip,
		Guidance: t.profile.Guidance,
		Width:    t.profile.Width,
		Height:   t.profile.Height,
		Prompts:  []tensorArtPrompt{{Text: prompt}},
		Sampler:  t.profile.Sampler,
		SDVAE:    t.profile.VAE,
		SDModel:  t.profile.Model,
		Steps:    t.profile.Steps,
	}
	if len(t.profile.Loras) > 0 {
		items := make([]tensorArtLora, 0, len(t.profile.Loras))
		for _, l := range t.profile.Loras {
			items = append(items, tensorArtLora{LoraModel: l.Model, Weight: l.Weight})
		}
		diffusion.Lora = &tensorArtLoras{Items: items}
	}
	body := tensorArtRequest{
		RequestID: req.IdempotencyKey,
		Stages: []tensorArtStage{
			{Type: "INPUT_INITIALIZE", InputInitialize: &tensorArtInputInitialize{Count: count, Seed: req.Seed}},
			{Type: "DIFFUSION", Diffusion: diffusion},
		},
	}

	raw, err := t.client.do(ctx, http.MethodPost, "/v1/jobs", body)
	if err != nil {
		return nil, err
	}
	var env tensorArtEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("tensor_art: decode submit response: %w", err)
	}
	if env.Job.ID == "" {
		return nil, fmt.Errorf("tensor_art: submit response missing job id")
	}
	return &Handle{
		Kind:       domain.VendorTensorArt,
		ExternalID: env.Job.ID,
		Status:     domain.StatusCreated,
		Credits:    env.Job.Credits,
		Raw:        raw,
	}, nil
}

// Poll fetches the job and maps its vendor status.
func (t *TensorArt) Poll(ctx context.Context, handle Handle) (*PollResult, error) {
	if handle.ExternalID == "" {
		return nil, fmt.Errorf("tensor_art: job id is required")
	}
	if !t.client.hasCredentials() {
		return nil, ErrMissingAPIKey
	}
	raw, err := t.client.do(ctx, http.MethodGet, "/v1/jobs/"+url.PathEscape(handle.ExternalID), nil)
	if err != nil {
		return nil, err
	}
	var env tensorArtEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("tensor_art: decode job: %w", err)
	}
	result := &PollResult{
		Status:  MapTensorArtStatus(env.Job.Status),
		Credits: env.Job.Credits,
		Raw:     raw,
	}
	if result.Status == domain.StatusQueued && env.Job.WaitingInfo != nil {
		if env.Job.WaitingInfo.QueueRank.Valid {
			pos := int(env.Job.WaitingInfo.QueueRank.Value)
			result.QueuePosition = &pos
		}
		if env.Job.WaitingInfo.QueueLen.Valid {
			n := int(env.Job.WaitingInfo.QueueLen.Value)
			result.QueueLength = &n
		}
	}
	return result, nil
}

// MapTensorArtStatus maps a TensorArt job status. Unknown values count as queued.
func MapTensorArtStatus(status string) domain.Status {
	switch strings.ToUpper(strings.TrimSpace(status)) {
	case "CREATED":
		return domain.StatusCreated
	case "WAITING":
		return domain.StatusQueued
	case "RUNNING":
		return domain.StatusRunning
	case "SUCCESS":
		return domain.StatusComplete
	default:
		return domain.StatusQueued
	}
}

// ParseResult reads successInfo.images and the EXIF meta map of a completed job.
func (t *TensorArt) ParseResult(raw json.RawMessage) ([]ImageResult, error) {
	var env tensorArtEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("tensor_art: decode result: %w", err)
	}
	info := env.Job.SuccessInfo
	if info == nil {
		return nil, nil
	}
	logger := t.client.logger
	images := make([]ImageResult, 0, len(info.Images))
	for _, img := range info.Images {
		if img.ID == "" || img.URL == "" {
			logger.Warn().Str("job_id", env.Job.ID).Str("image_id", img.ID).Msg("tensor_art: image without id or url skipped")
			continue
		}
		result := ImageResult{ExternalID: img.ID, SourceURL: img.URL}
		meta, ok := info.ImageExifMetaMap[img.ID]
		if !ok {
			logger.Warn().Str("job_id", env.Job.ID).Str("image_id", img.ID).Msg("tensor_art: image metadata missing")
			images = append(images, result)
			continue
		}
		result.Width, result.Height = ParseSize(meta.Meta.ImageSize)
		if meta.Meta.Seed.Valid {
			result.Seed = meta.Meta.Seed.Value
		}
		images = append(images, result)
	}
	return images, nil
}

// Resume rebuilds a handle from the stored job id.
func (t *TensorArt) Resume(externalID string, _ *string) (*Handle, error) {
	if strings.TrimSpace(externalID) == "" {
		return nil, fmt.Errorf("tensor_art: job id is required to resume")
	}
	return &Handle{Kind: domain.VendorTensorArt, ExternalID: externalID, Status: domain.StatusCreated}, nil
}

var _ Vendor = (*TensorArt)(nil)
