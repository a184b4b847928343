package domain

import "time"

// GeneratedImage is one artifact produced by a completed job.
type GeneratedImage struct {
	ID              int64
	JobID           int64
	ExternalImageID string
	SourceURL       string
	LocalFilename   *string
	Width           int
	Height          int
	Seed            int64
	Created         time.Time
}
