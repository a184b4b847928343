package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"mueck/internal/domain"
	"mueck/internal/infra"
	"mueck/internal/providers/imagevendor"
	"mueck/internal/slack"
)

const (
	holdEmptyPrompt        = "empty prompt"
	holdJobFailed          = "vendor reported error"
	holdSubmissionInFlight = "submission in flight without a recorded job; vendor cannot deduplicate"
	holdSubmissionUnknown  = "submission outcome unknown; check the vendor before abandoning it"
	holdNoIntegration      = "integration not found"
)

// Processor runs one event through NEW, JOB_CREATING, JOB_ACTIVE, ARTIFACTS_FETCHED and PROCESSED.
type Processor struct {
	events       domain.EventStore
	jobs         domain.JobStore
	integrations domain.IntegrationStore
	vendors      VendorSource
	policy       imagevendor.Policy
	poller       *Poller
	fetcher      *Fetcher
	notifier     Notifier
	newKey       func() string
	logger       *infra.Logger
}

// ProcessorDeps wires a Processor.
type ProcessorDeps struct {
	Events       domain.EventStore
	Jobs         domain.JobStore
	Integrations domain.IntegrationStore
	Vendors      VendorSource
	Policy       imagevendor.Policy
	Poller       *Poller
	Fetcher      *Fetcher
	Notifier     Notifier
	// NewKey generates submission idempotency keys; uuid.NewString by default.
	NewKey func() string
	Logger *infra.Logger
}

func NewProcessor(deps ProcessorDeps) *Processor {
	notifier := deps.Notifier
	if notifier == nil {
		notifier = nopNotifier{}
	}
	newKey := deps.NewKey
	if newKey == nil {
		newKey = uuid.NewString
	}
	logger := deps.Logger
	if logger == nil {
		nop := infra.NopLogger()
		logger = &nop
	}
	return &Processor{
		events:       deps.Events,
		jobs:         deps.Jobs,
		integrations: deps.Integrations,
		vendors:      deps.Vendors,
		policy:       deps.Policy,
		poller:       deps.Poller,
		fetcher:      deps.Fetcher,
		notifier:     notifier,
		newKey:       newKey,
		logger:       logger,
	}
}

// active is a job that has a vendor handle and can be polled.
type active struct {
	job    *domain.GenerationJob
	vendor imagevendor.Vendor
	handle imagevendor.Handle
	// result is set when the submission already returned the terminal payload.
	result *imagevendor.PollResult
}

// Process handles one event. A returned error leaves the event unprocessed; events that must
// not be retried automatically are held before returning.
func (p *Processor) Process(ctx context.Context, event *domain.InboundEvent) error {
	if event == nil || event.Processed() {
		return nil
	}
	log := p.logger.With().Int64("event_id", event.ID).Logger()

	integration, err := p.integrations.Get(ctx, event.IntegrationID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			p.hold(ctx, event.ID, holdNoIntegration)
		}
		return fmt.Errorf("load integration %d: %w", event.IntegrationID, err)
	}
	target := slack.Target{Channel: event.Channel, ThreadTS: event.ReplyThread(), Token: integration.AccessToken}

	var job *active
	if event.JobRef != nil {
		job, err = p.resume(ctx, *event.JobRef)
	} else {
		job, err = p.create(ctx, event, integration.BotUserID, target)
	}
	if err != nil {
		return err
	}
	log.Info().Int64("job_id", job.job.ID).Str("vendor", string(job.job.Vendor)).Str("status", string(job.job.Status)).Msg("processor: job active")

	result := job.result
	if result == nil {
		if job.job.Status == domain.StatusError {
			return p.fail(ctx, event, target, domain.ErrJobFailed)
		}
		result, err = p.poller.Run(ctx, job.job, job.vendor, job.handle, target)
		if err != nil {
			if errors.Is(err, domain.ErrJobFailed) {
				return p.fail(ctx, event, target, err)
			}
			return err
		}
	}

	images, err := job.vendor.ParseResult(result.Raw)
	if err != nil {
		return fmt.Errorf("parse result of job %d: %w", job.job.ID, err)
	}
	saved, err := p.fetcher.Fetch(ctx, job.job, images)
	if err != nil {
		return err
	}
	if err := p.notifier.Completed(ctx, target, saved); err != nil {
		log.Warn().Err(err).Msg("processor: completion notification failed")
	}
	if err := p.events.MarkProcessed(ctx, event.ID); err != nil {
		return fmt.Errorf("mark event %d processed: %w", event.ID, err)
	}
	log.Info().Int64("job_id", job.job.ID).Int("images", len(saved)).Msg("processor: event processed")
	return nil
}

// resume rebuilds the vendor handle of an existing job without submitting again.
func (p *Processor) resume(ctx context.Context, jobID int64) (*active, error) {
	job, err := p.jobs.Get(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("load job %d: %w", jobID, err)
	}
	vendor, err := p.vendors.Get(job.Vendor)
	if err != nil {
		return nil, err
	}
	handle, err := vendor.Resume(job.ExternalID, job.VendorToken)
	if err != nil {
		return nil, fmt.Errorf("resume job %d: %w", job.ID, err)
	}
	handle.Status = job.Status
	handle.Credits = job.Credits
	return &active{job: job, vendor: vendor, handle: *handle}, nil
}

// create extracts the prompt, submits exactly once and records the job.
func (p *Processor) create(ctx context.Context, event *domain.InboundEvent, botUserID string, target slack.Target) (*active, error) {
	prompt, err := slack.ExtractPrompt(event.Payload, botUserID)
	if err != nil {
		if errors.Is(err, domain.ErrEmptyPrompt) {
			p.hold(ctx, event.ID, holdEmptyPrompt)
			p.notifyFailed(ctx, target, "no prompt found in message")
		}
		return nil, fmt.Errorf("event %d: %w", event.ID, err)
	}

	kind := imagevendor.Select(prompt.Text, p.policy)
	vendor, err := p.vendors.Get(kind)
	if err != nil {
		return nil, err
	}

	key := p.newKey()
	if event.SubmissionInFlight() {
		if !vendor.Idempotent() {
			p.hold(ctx, event.ID, holdSubmissionInFlight)
			return nil, fmt.Errorf("event %d: %w", event.ID, domain.ErrSubmissionInFlight)
		}
		if event.SubmissionKey != nil {
			key = *event.SubmissionKey
		}
		p.logger.Warn().Int64("event_id", event.ID).Str("vendor", string(kind)).Msg("processor: resubmitting interrupted submission with its original key")
	}
	if err := p.events.BeginSubmission(ctx, event.ID, key); err != nil {
		return nil, fmt.Errorf("record submission for event %d: %w", event.ID, err)
	}

	handle, err := vendor.Submit(ctx, imagevendor.SubmitRequest{Prompt: prompt.Text, Seed: prompt.Seed, IdempotencyKey: key})
	if err != nil {
		cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if imagevendor.NotCreated(err) {
			if abortErr := p.events.AbortSubmission(cleanupCtx, event.ID); abortErr != nil {
				p.logger.Error().Err(abortErr).Int64("event_id", event.ID).Msg("processor: clear submission record failed")
			}
			return nil, fmt.Errorf("submit event %d to %s: %w", event.ID, kind, err)
		}
		// the vendor may have created a job; the record stays so it is never submitted blind again
		p.logger.Warn().Err(err).Int64("event_id", event.ID).Str("vendor", string(kind)).Msg("processor: submission outcome unknown")
		if !vendor.Idempotent() {
			p.hold(cleanupCtx, event.ID, holdSubmissionUnknown)
		}
		return nil, fmt.Errorf("submit event %d to %s: %w", event.ID, kind, err)
	}

	job := &domain.GenerationJob{
		EventID:     event.ID,
		Vendor:      kind,
		ExternalID:  handle.ExternalID,
		VendorToken: handle.Token,
		Prompt:      prompt.Text,
		Seed:        prompt.Seed,
		Status:      handle.Status,
		Credits:     handle.Credits,
	}
	if err := p.jobs.CreateForEvent(ctx, job); err != nil {
		return nil, fmt.Errorf("record job for event %d: %w", event.ID, err)
	}
	p.logger.Info().
		Int64("event_id", event.ID).
		Int64("job_id", job.ID).
		Str("vendor", string(kind)).
		Str("external_id", job.ExternalID).
		Msg("processor: job submitted")

	act := &active{job: job, vendor: vendor, handle: *handle}
	if handle.Status.Terminal() && len(handle.Raw) > 0 {
		if err := p.notifier.StatusChanged(ctx, target, handle.Status); err != nil {
			p.logger.Warn().Err(err).Int64("event_id", event.ID).Msg("processor: status notification failed")
		}
		if handle.Status == domain.StatusError {
			return nil, p.fail(ctx, event, target, domain.ErrJobFailed)
		}
		act.result = &imagevendor.PollResult{Status: handle.Status, Credits: handle.Credits, Raw: handle.Raw}
	}
	return act, nil
}

func (p *Processor) fail(ctx context.Context, event *domain.InboundEvent, target slack.Target, err error) error {
	p.hold(ctx, event.ID, holdJobFailed)
	p.notifyFailed(ctx, target, "the image vendor reported an error")
	return fmt.Errorf("event %d: %w", event.ID, err)
}

func (p *Processor) hold(ctx context.Context, eventID int64, reason string) {
	if err := p.events.Hold(ctx, eventID, reason); err != nil {
		p.logger.Error().Err(err).Int64("event_id", eventID).Str("reason", reason).Msg("processor: hold event failed")
		return
	}
	p.logger.Warn().Int64("event_id", eventID).Str("reason", reason).Msg("processor: event held for review")
}

func (p *Processor) notifyFailed(ctx context.Context, target slack.Target, reason string) {
	if err := p.notifier.Failed(ctx, target, reason); err != nil {
		p.logger.Warn().Err(err).Str("channel", target.Channel).Msg("processor: failure notification failed")
	}
}
