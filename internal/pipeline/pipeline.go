// Package pipeline turns stored chat events into finished vendor jobs: submit or resume a job,
// poll it to a terminal status, fetch its artifacts and mark the event processed.
package pipeline

import (
	"context"
	"errors"

	"mueck/internal/domain"
	"mueck/internal/providers/imagevendor"
	"mueck/internal/slack"
)

// ErrPollDeadline is returned when POLL_MAX_WAIT elapses before the job finishes.
var ErrPollDeadline = errors.New("pipeline: poll deadline exceeded")

// Notifier posts progress back to the originating conversation. Failures are logged by the
// caller and never abort processing.
type Notifier interface {
	StatusChanged(ctx context.Context, target slack.Target, status domain.Status) error
	Completed(ctx context.Context, target slack.Target, images []domain.GeneratedImage) error
	Failed(ctx context.Context, target slack.Target, reason string) error
}

// VendorSource resolves a vendor implementation by kind.
type VendorSource interface {
	Get(kind imagevendor.Kind) (imagevendor.Vendor, error)
}

// EventProcessor handles a single event end to end.
type EventProcessor interface {
	Process(ctx context.Context, event *domain.InboundEvent) error
}

type nopNotifier struct{}

func (nopNotifier) StatusChanged(context.Context, slack.Target, domain.Status) error { return nil }
func (nopNotifier) Completed(context.Context, slack.Target, []domain.GeneratedImage) error {
	return nil
}
func (nopNotifier) Failed(context.Context, slack.Target, string) error { return nil }
