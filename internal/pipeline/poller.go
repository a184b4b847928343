package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mueck/internal/domain"
	"mueck/internal/infra"
	"mueck/internal/providers/imagevendor"
	"mueck/internal/slack"
)

// Poller drives a job from its persisted status to a terminal one.
type Poller struct {
	jobs     domain.JobStore
	notifier Notifier
	interval time.Duration
	maxWait  time.Duration
	logger   *infra.Logger
}

// PollerOptions configures a Poller.
type PollerOptions struct {
	Interval time.Duration
	// MaxWait bounds the total polling time. Zero polls until a terminal status.
	MaxWait  time.Duration
	Notifier Notifier
	Logger   *infra.Logger
}

func NewPoller(jobs domain.JobStore, opts PollerOptions) *Poller {
	interval := opts.Interval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = nopNotifier{}
	}
	logger := opts.Logger
	if logger == nil {
		nop := infra.NopLogger()
		logger = &nop
	}
	return &Poller{jobs: jobs, notifier: notifier, interval: interval, maxWait: opts.MaxWait, logger: logger}
}

// Run polls immediately and then every interval. The first observation and every status change
// are persisted and announced; repeated statuses are not written again. A complete job returns
// its final poll result; an errored job returns domain.ErrJobFailed.
func (p *Poller) Run(ctx context.Context, job *domain.GenerationJob, vendor imagevendor.Vendor, handle imagevendor.Handle, target slack.Target) (*imagevendor.PollResult, error) {
	started := time.Now()
	first := true
	for {
		res, err := vendor.Poll(ctx, handle)
		if err != nil {
			return nil, fmt.Errorf("poll job %d: %w", job.ID, err)
		}
		if !res.Status.Valid() {
			return nil, fmt.Errorf("poll job %d: vendor produced invalid status %q", job.ID, res.Status)
		}

		if res.Status != job.Status || (first && !job.Status.Terminal()) {
			recorded, err := p.record(ctx, job, res)
			if err != nil {
				return nil, err
			}
			if recorded {
				if err := p.notifier.StatusChanged(ctx, target, res.Status); err != nil {
					p.logger.Warn().Err(err).Int64("job_id", job.ID).Msg("poller: status notification failed")
				}
			}
		}
		first = false

		switch res.Status {
		case domain.StatusComplete:
			return res, nil
		case domain.StatusError:
			return res, domain.ErrJobFailed
		}

		if p.maxWait > 0 && time.Since(started) >= p.maxWait {
			return nil, fmt.Errorf("job %d still %s after %s: %w", job.ID, res.Status, p.maxWait, ErrPollDeadline)
		}

		timer := time.NewTimer(p.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

func (p *Poller) record(ctx context.Context, job *domain.GenerationJob, res *imagevendor.PollResult) (bool, error) {
	update := domain.JobUpdate{
		Status:        res.Status,
		Credits:       res.Credits,
		QueuePosition: derefInt(res.QueuePosition),
		QueueLength:   derefInt(res.QueueLength),
	}
	err := p.jobs.UpdateStatus(ctx, job.ID, update)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrTerminalJob):
		p.logger.Debug().Int64("job_id", job.ID).Msg("poller: job already terminal, update skipped")
		return false, nil
	default:
		return false, fmt.Errorf("persist job %d status: %w", job.ID, err)
	}
	p.logger.Info().
		Int64("job_id", job.ID).
		Str("vendor", string(job.Vendor)).
		Str("from", string(job.Status)).
		Str("to", string(res.Status)).
		Msg("poller: status changed")
	job.Status = res.Status
	if res.Credits.GreaterThan(job.Credits) {
		job.Credits = res.Credits
	}
	job.QueuePosition = update.QueuePosition
	job.QueueLength = update.QueueLength
	return true, nil
}

func derefInt(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}
