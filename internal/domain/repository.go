package domain

import "context"

// EventStore persists inbound events and their processing markers.
type EventStore interface {
	Insert(ctx context.Context, event *InboundEvent) error
	Get(ctx context.Context, id int64) (*InboundEvent, error)
	// NextUnprocessed returns the oldest event that is neither processed nor held, or ErrNotFound.
	NextUnprocessed(ctx context.Context) (*InboundEvent, error)
	ListUnprocessed(ctx context.Context, limit int) ([]InboundEvent, error)
	ListHeld(ctx context.Context, limit int) ([]InboundEvent, error)
	BeginSubmission(ctx context.Context, eventID int64, key string) error
	AbortSubmission(ctx context.Context, eventID int64) error
	Hold(ctx context.Context, eventID int64, reason string) error
	Release(ctx context.Context, eventID int64) error
	MarkProcessed(ctx context.Context, eventID int64) error
}

// JobStore persists generation jobs and the images they produce.
type JobStore interface {
	// CreateForEvent inserts job and claims it as the event's job reference in one step.
	// It fails with ErrDuplicateOperation when the event already references a job.
	CreateForEvent(ctx context.Context, job *GenerationJob) error
	Get(ctx context.Context, id int64) (*GenerationJob, error)
	// UpdateStatus fails with ErrTerminalJob when the stored job is complete or error.
	UpdateStatus(ctx context.Context, id int64, update JobUpdate) error
	SaveImage(ctx context.Context, image *GeneratedImage) error
	ListImages(ctx context.Context, jobID int64) ([]GeneratedImage, error)
}

// IntegrationStore resolves installed messaging-platform integrations.
type IntegrationStore interface {
	Get(ctx context.Context, id int64) (*Integration, error)
	GetByAppID(ctx context.Context, appID string) (*Integration, error)
}
