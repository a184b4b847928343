package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"path"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"mueck/internal/domain"
	"mueck/pkg/zip"
)

type eventResponse struct {
	ID                  int64      `json:"id"`
	IntegrationID       int64      `json:"integration_id"`
	Channel             string     `json:"channel"`
	RequestTS           string     `json:"request_ts"`
	ThreadTS            string     `json:"thread_ts,omitempty"`
	JobRef              *int64     `json:"job_ref"`
	SubmissionStartedAt *time.Time `json:"submission_started_at,omitempty"`
	HeldAt              *time.Time `json:"held_at,omitempty"`
	HoldReason          string     `json:"hold_reason,omitempty"`
	Created             time.Time  `json:"created"`
	ProcessedAt         *time.Time `json:"processed_at"`
}

type jobResponse struct {
	ID            int64     `json:"id"`
	EventID       int64     `json:"event_id"`
	Vendor        string    `json:"vendor"`
	ExternalID    string    `json:"external_id"`
	Prompt        string    `json:"prompt"`
	Seed          int64     `json:"seed"`
	Status        string    `json:"status"`
	Credits       string    `json:"credits"`
	QueuePosition int       `json:"queue_position"`
	QueueLength   int       `json:"queue_length"`
	Created       time.Time `json:"created"`
	Updated       time.Time `json:"updated"`
}

type imageResponse struct {
	ID              int64     `json:"id"`
	ExternalImageID string    `json:"external_image_id"`
	SourceURL       string    `json:"source_url"`
	LocalFilename   *string   `json:"local_filename"`
	Width           int       `json:"width"`
	Height          int       `json:"height"`
	Seed            int64     `json:"seed"`
	Created         time.Time `json:"created"`
}

func (a *App) GetEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := a.idParam(w, r)
	if !ok {
		return
	}
	ev, err := a.Events.Get(r.Context(), id)
	if err != nil {
		a.lookupError(w, r, "event", err)
		return
	}
	a.json(w, http.StatusOK, eventResponse{
		ID:                  ev.ID,
		IntegrationID:       ev.IntegrationID,
		Channel:             ev.Channel,
		RequestTS:           ev.RequestTS,
		ThreadTS:            ev.ThreadTS,
		JobRef:              ev.JobRef,
		SubmissionStartedAt: ev.SubmissionStartedAt,
		HeldAt:              ev.HeldAt,
		HoldReason:          ev.HoldReason,
		Created:             ev.Created,
		ProcessedAt:         ev.ProcessedAt,
	})
}

func (a *App) GetJob(w http.ResponseWriter, r *http.Request) {
	id, ok := a.idParam(w, r)
	if !ok {
		return
	}
	job, err := a.Jobs.Get(r.Context(), id)
	if err != nil {
		a.lookupError(w, r, "job", err)
		return
	}
	a.json(w, http.StatusOK, jobResponse{
		ID:            job.ID,
		EventID:       job.EventID,
		Vendor:        string(job.Vendor),
		ExternalID:    job.ExternalID,
		Prompt:        job.Prompt,
		Seed:          job.Seed,
		Status:        string(job.Status),
		Credits:       job.Credits.String(),
		QueuePosition: job.QueuePosition,
		QueueLength:   job.QueueLength,
		Created:       job.Created,
		Updated:       job.Updated,
	})
}

func (a *App) JobImages(w http.ResponseWriter, r *http.Request) {
	images, ok := a.loadImages(w, r)
	if !ok {
		return
	}
	items := make([]imageResponse, 0, len(images))
	for _, img := range images {
		items = append(items, imageResponse{
			ID:              img.ID,
			ExternalImageID: img.ExternalImageID,
			SourceURL:       img.SourceURL,
			LocalFilename:   img.LocalFilename,
			Width:           img.Width,
			Height:          img.Height,
			Seed:            img.Seed,
			Created:         img.Created,
		})
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}

// JobImagesZip streams the stored artifacts of a job as one archive. Images that were never
// stored locally are skipped.
func (a *App) JobImagesZip(w http.ResponseWriter, r *http.Request) {
	images, ok := a.loadImages(w, r)
	if !ok {
		return
	}
	jobID := chi.URLParam(r, "id")
	var assets []zip.Asset
	for _, img := range images {
		if img.LocalFilename == nil {
			continue
		}
		data, err := a.Files.Read(r.Context(), *img.LocalFilename)
		if err != nil {
			a.log(r).Warn().Err(err).Str("file", *img.LocalFilename).Msg("http: artifact missing from storage")
			continue
		}
		assets = append(assets, zip.Asset{
			Filename: fmt.Sprintf("%s-%s", jobID, path.Base(*img.LocalFilename)),
			MIME:     "image/png",
			Data:     data,
		})
	}
	if len(assets) == 0 {
		a.error(w, http.StatusNotFound, "not_found", "no stored images")
		return
	}
	archive, err := zip.ArchiveAssets(assets)
	if err != nil {
		a.log(r).Error().Err(err).Msg("http: build archive failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to build archive")
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=job-%s.zip", jobID))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(archive)
}

func (a *App) loadImages(w http.ResponseWriter, r *http.Request) ([]domain.GeneratedImage, bool) {
	id, ok := a.idParam(w, r)
	if !ok {
		return nil, false
	}
	if _, err := a.Jobs.Get(r.Context(), id); err != nil {
		a.lookupError(w, r, "job", err)
		return nil, false
	}
	images, err := a.Jobs.ListImages(r.Context(), id)
	if err != nil {
		a.log(r).Error().Err(err).Int64("job_id", id).Msg("http: list images failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load images")
		return nil, false
	}
	return images, true
}

func (a *App) idParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		a.error(w, http.StatusBadRequest, "bad_request", "id must be a positive integer")
		return 0, false
	}
	return id, true
}

func (a *App) lookupError(w http.ResponseWriter, r *http.Request, what string, err error) {
	if errors.Is(err, domain.ErrNotFound) {
		a.error(w, http.StatusNotFound, "not_found", what+" not found")
		return
	}
	a.log(r).Error().Err(err).Str("kind", what).Msg("http: lookup failed")
	a.error(w, http.StatusInternalServerError, "internal", "failed to load "+what)
}
