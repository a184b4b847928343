package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"mueck/internal/domain"
	"mueck/internal/infra"
	"mueck/internal/sqlinline"
)

// JobRepositoryPG implements domain.JobStore.
type JobRepositoryPG struct {
	sql infra.TxRunner
}

// NewJobRepository creates a job store backed by PostgreSQL.
func NewJobRepository(sql infra.TxRunner) *JobRepositoryPG {
	return &JobRepositoryPG{sql: sql}
}

// CreateForEvent inserts the job and claims slack_event.job_ref in one transaction.
func (r *JobRepositoryPG) CreateForEvent(ctx context.Context, job *domain.GenerationJob) error {
	if job == nil {
		return errors.New("job is required")
	}
	return r.sql.WithTx(ctx, func(tx infra.SQLExecutor) error {
		row := tx.QueryRow(ctx, sqlinline.QInsertJob,
			job.EventID,
			string(job.Vendor),
			job.ExternalID,
			job.VendorToken,
			job.Prompt,
			job.Seed,
			string(job.Status),
			job.Credits,
			job.QueuePosition,
			job.QueueLength,
		)
		if err := row.Scan(&job.ID, &job.Created, &job.Updated); err != nil {
			if infra.IsUniqueViolation(err) {
				return domain.ErrDuplicateOperation
			}
			return fmt.Errorf("insert job: %w", err)
		}
		tag, err := tx.Exec(ctx, sqlinline.QClaimEventJobRef, job.EventID, job.ID)
		if err != nil {
			if infra.IsUniqueViolation(err) {
				return domain.ErrDuplicateOperation
			}
			return fmt.Errorf("claim event job_ref: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrDuplicateOperation
		}
		return nil
	})
}

// Get fetches a job by its identifier.
func (r *JobRepositoryPG) Get(ctx context.Context, id int64) (*domain.GenerationJob, error) {
	row := r.sql.QueryRow(ctx, sqlinline.QSelectJob, id)
	job, err := scanJob(row)
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("select job: %w", err)
	}
	return job, nil
}

// UpdateStatus records a poll observation on a non-terminal job.
func (r *JobRepositoryPG) UpdateStatus(ctx context.Context, id int64, update domain.JobUpdate) error {
	if !update.Status.Valid() {
		return fmt.Errorf("invalid status %q", update.Status)
	}
	tag, err := r.sql.Exec(ctx, sqlinline.QUpdateJobStatus,
		id,
		string(update.Status),
		update.Credits,
		update.QueuePosition,
		update.QueueLength,
	)
	if err != nil {
		return fmt.Errorf("update job status: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	var current string
	if err := r.sql.QueryRow(ctx, sqlinline.QSelectJobStatus, id).Scan(&current); err != nil {
		if infra.IsNoRows(err) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("select job status: %w", err)
	}
	return domain.ErrTerminalJob
}

// SaveImage upserts an artifact keyed by (job, external image id).
func (r *JobRepositoryPG) SaveImage(ctx context.Context, image *domain.GeneratedImage) error {
	if image == nil {
		return errors.New("image is required")
	}
	row := r.sql.QueryRow(ctx, sqlinline.QUpsertGeneratedImage,
		image.JobID,
		image.ExternalImageID,
		image.SourceURL,
		image.LocalFilename,
		image.Width,
		image.Height,
		image.Seed,
	)
	if err := row.Scan(&image.ID, &image.LocalFilename, &image.Seed, &image.Created); err != nil {
		return fmt.Errorf("upsert generated image: %w", err)
	}
	return nil
}

// ListImages returns the artifacts stored for a job.
func (r *JobRepositoryPG) ListImages(ctx context.Context, jobID int64) ([]domain.GeneratedImage, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QListGeneratedImages, jobID)
	if err != nil {
		return nil, fmt.Errorf("list generated images: %w", err)
	}
	defer rows.Close()

	var images []domain.GeneratedImage
	for rows.Next() {
		var img domain.GeneratedImage
		if err := rows.Scan(
			&img.ID,
			&img.JobID,
			&img.ExternalImageID,
			&img.SourceURL,
			&img.LocalFilename,
			&img.Width,
			&img.Height,
			&img.Seed,
			&img.Created,
		); err != nil {
			return nil, fmt.Errorf("scan generated image: %w", err)
		}
		images = append(images, img)
	}
	return images, rows.Err()
}

func scanJob(row pgx.Row) (*domain.GenerationJob, error) {
	var (
		job    domain.GenerationJob
		vendor string
		status string
	)
	if err := row.Scan(
		&job.ID,
		&job.EventID,
		&vendor,
		&job.ExternalID,
		&job.VendorToken,
		&job.Prompt,
		&job.Seed,
		&status,
		&job.Credits,
		&job.QueuePosition,
		&job.QueueLength,
		&job.Created,
		&job.Updated,
	); err != nil {
		return nil, err
	}
	job.Vendor = domain.VendorKind(vendor)
	parsed, err := domain.ParseStatus(status)
	if err != nil {
		return nil, err
	}
	job.Status = parsed
	return &job, nil
}

var _ domain.JobStore = (*JobRepositoryPG)(nil)
