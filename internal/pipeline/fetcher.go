package pipeline

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"mueck/internal/domain"
	"mueck/internal/imagemeta"
	"mueck/internal/infra"
	"mueck/internal/providers/imagevendor"
	"mueck/internal/storage"
)

// ArtifactWriter stores downloaded artifacts.
type ArtifactWriter interface {
	Write(ctx context.Context, key string, data []byte) (string, error)
}

// Fetcher downloads the images of a completed job and records them.
type Fetcher struct {
	jobs       domain.JobStore
	files      ArtifactWriter
	httpClient *http.Client
	maxBytes   int64
	logger     *infra.Logger
}

// FetcherOptions configures a Fetcher.
type FetcherOptions struct {
	HTTPClient *http.Client
	MaxBytes   int64
	Logger     *infra.Logger
}

func NewFetcher(jobs domain.JobStore, files ArtifactWriter, opts FetcherOptions) *Fetcher {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 2 * time.Minute}
	}
	maxBytes := opts.MaxBytes
	if maxBytes <= 0 {
		maxBytes = 64 << 20
	}
	logger := opts.Logger
	if logger == nil {
		nop := infra.NopLogger()
		logger = &nop
	}
	return &Fetcher{jobs: jobs, files: files, httpClient: client, maxBytes: maxBytes, logger: logger}
}

// Fetch stores every image and upserts its record. Any download or storage failure aborts the
// pass; records are keyed by (job, external image id) so a later pass can redo it safely.
func (f *Fetcher) Fetch(ctx context.Context, job *domain.GenerationJob, images []imagevendor.ImageResult) ([]domain.GeneratedImage, error) {
	saved := make([]domain.GeneratedImage, 0, len(images))
	for _, img := range images {
		data, err := f.download(ctx, img.SourceURL)
		if err != nil {
			return nil, fmt.Errorf("fetch image %s of job %d: %w", img.ExternalID, job.ID, err)
		}
		key, err := f.files.Write(ctx, storage.ImageKey(job.ID, img.ExternalID), data)
		if err != nil {
			return nil, fmt.Errorf("store image %s of job %d: %w", img.ExternalID, job.ID, err)
		}

		seed := img.Seed
		if seed == 0 {
			recovered, err := imagemeta.RecoverSeed(data)
			if err != nil {
				f.logger.Warn().Err(err).Int64("job_id", job.ID).Str("image_id", img.ExternalID).Msg("fetcher: seed not recoverable")
			} else {
				seed = recovered
			}
		}

		record := domain.GeneratedImage{
			JobID:           job.ID,
			ExternalImageID: img.ExternalID,
			SourceURL:       img.SourceURL,
			LocalFilename:   &key,
			Width:           img.Width,
			Height:          img.Height,
			Seed:            seed,
		}
		if err := f.jobs.SaveImage(ctx, &record); err != nil {
			return nil, fmt.Errorf("save image %s of job %d: %w", img.ExternalID, job.ID, err)
		}
		f.logger.Info().Int64("job_id", job.ID).Str("image_id", img.ExternalID).Str("file", key).Msg("fetcher: image stored")
		saved = append(saved, record)
	}
	return saved, nil
}

func (f *Fetcher) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > f.maxBytes {
		return nil, fmt.Errorf("image exceeds %d bytes", f.maxBytes)
	}
	return data, nil
}
