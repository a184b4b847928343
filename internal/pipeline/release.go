package pipeline

import (
	"context"
	"errors"
	"fmt"

	"mueck/internal/domain"
)

// ErrJobRecorded is returned when an operator asks to abandon a submission that already
// produced a job.
var ErrJobRecorded = errors.New("pipeline: event already references a job")

// ReleaseEvent clears the hold on an unprocessed event. With abandonSubmission it also drops
// the write-ahead submission record, so the next pass submits with a fresh key. Only do that
// after confirming at the vendor that the interrupted submission created nothing.
func ReleaseEvent(ctx context.Context, events domain.EventStore, eventID int64, abandonSubmission bool) error {
	event, err := events.Get(ctx, eventID)
	if err != nil {
		return fmt.Errorf("load event %d: %w", eventID, err)
	}
	if event.Processed() {
		return fmt.Errorf("event %d is already processed: %w", eventID, domain.ErrNotFound)
	}
	if abandonSubmission {
		if event.JobRef != nil {
			return fmt.Errorf("event %d has job %d: %w", eventID, *event.JobRef, ErrJobRecorded)
		}
		if err := events.AbortSubmission(ctx, eventID); err != nil {
			return fmt.Errorf("abandon submission of event %d: %w", eventID, err)
		}
	}
	if err := events.Release(ctx, eventID); err != nil {
		return fmt.Errorf("release event %d: %w", eventID, err)
	}
	return nil
}
