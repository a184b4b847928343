package pipeline

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"mueck/internal/domain"
	"mueck/internal/infra"
)

// Worker pulls unprocessed events and hands them to an EventProcessor.
type Worker struct {
	events      domain.EventStore
	processor   EventProcessor
	lease       Lease
	wake        <-chan struct{}
	concurrency int
	idle        time.Duration
	leaseTTL    time.Duration
	logger      *infra.Logger

	mu         sync.Mutex
	inFlight   map[int64]struct{}
	retryAfter map[int64]time.Time
	done       chan struct{}
}

// WorkerOptions configures a Worker.
type WorkerOptions struct {
	// Concurrency of 1 processes events strictly one after another.
	Concurrency int
	Idle        time.Duration
	// LeaseTTL bounds a claim; it is renewed every third of its length while an event runs.
	LeaseTTL time.Duration
	Lease    Lease
	// Wake, when set, interrupts the idle wait as soon as new events arrive.
	Wake   <-chan struct{}
	Logger *infra.Logger
}

func NewWorker(events domain.EventStore, processor EventProcessor, opts WorkerOptions) *Worker {
	concurrency := opts.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	idle := opts.Idle
	if idle <= 0 {
		idle = 10 * time.Second
	}
	ttl := opts.LeaseTTL
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	lease := opts.Lease
	if lease == nil {
		lease = NewLocalLease()
	}
	logger := opts.Logger
	if logger == nil {
		nop := infra.NopLogger()
		logger = &nop
	}
	return &Worker{
		events:      events,
		processor:   processor,
		lease:       lease,
		wake:        opts.Wake,
		concurrency: concurrency,
		idle:        idle,
		leaseTTL:    ttl,
		logger:      logger,
		inFlight:    make(map[int64]struct{}),
		retryAfter:  make(map[int64]time.Time),
		done:        make(chan struct{}, 1),
	}
}

// Run blocks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info().Int("concurrency", w.concurrency).Dur("idle", w.idle).Msg("worker: started")
	var err error
	if w.concurrency == 1 {
		err = w.runSequential(ctx)
	} else {
		err = w.runPool(ctx)
	}
	w.logger.Info().Msg("worker: stopped")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (w *Worker) runSequential(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		event, claim, err := w.claimNext(ctx)
		if err != nil {
			w.logger.Error().Err(err).Msg("worker: fetch next event failed")
		}
		if claim == nil {
			if err := w.wait(ctx); err != nil {
				return err
			}
			continue
		}
		ok := w.process(ctx, event, claim)
		w.finish(event.ID, ok)
		if !ok {
			// back off before retrying a failing event
			if err := w.wait(ctx); err != nil {
				return err
			}
		}
	}
}

// claimNext leases the oldest event that is ready. When another process holds the head of
// the queue, or it is backing off, the rest of the queue is scanned.
func (w *Worker) claimNext(ctx context.Context) (*domain.InboundEvent, Claim, error) {
	head, err := w.events.NextUnprocessed(ctx)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	if event, claim := w.tryClaim(ctx, head.ID); claim != nil {
		return event, claim, nil
	}
	events, err := w.events.ListUnprocessed(ctx, scanBatch)
	if err != nil {
		return nil, nil, err
	}
	for i := range events {
		if events[i].ID == head.ID {
			continue
		}
		if event, claim := w.tryClaim(ctx, events[i].ID); claim != nil {
			return event, claim, nil
		}
	}
	return nil, nil, nil
}

func (w *Worker) runPool(ctx context.Context) error {
	var g errgroup.Group
	g.SetLimit(w.concurrency)
	defer func() { _ = g.Wait() }()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		events, err := w.events.ListUnprocessed(ctx, w.concurrency*2)
		if err != nil {
			w.logger.Error().Err(err).Msg("worker: list events failed")
		}
		for i := range events {
			id := events[i].ID
			current, claim := w.tryClaim(ctx, id)
			if claim == nil {
				continue
			}
			w.setInFlight(id, true)
			started := g.TryGo(func() error {
				ok := w.process(ctx, current, claim)
				w.finish(id, ok)
				return nil
			})
			if !started {
				w.setInFlight(id, false)
				claim.Release()
				break
			}
		}
		if err := w.wait(ctx); err != nil {
			return err
		}
	}
}

// tryClaim leases the event and re-reads it, since a listing may predate a run that
// finished since.
func (w *Worker) tryClaim(ctx context.Context, id int64) (*domain.InboundEvent, Claim) {
	if !w.ready(id) {
		return nil, nil
	}
	claim, ok, err := w.lease.Acquire(ctx, leaseKey(id), w.leaseTTL)
	if err != nil {
		w.logger.Error().Err(err).Int64("event_id", id).Msg("worker: lease failed")
		return nil, nil
	}
	if !ok {
		return nil, nil
	}
	current, err := w.events.Get(ctx, id)
	if err != nil || current.Processed() || current.HeldAt != nil {
		claim.Release()
		return nil, nil
	}
	return current, claim
}

// process runs handle while keeping the claim alive, and releases it afterwards. Losing the
// claim cancels the run.
func (w *Worker) process(ctx context.Context, event *domain.InboundEvent, claim Claim) bool {
	defer claim.Release()
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		w.keepAlive(runCtx, event.ID, claim, cancel)
	}()
	ok := w.handle(runCtx, event)
	cancel()
	wg.Wait()
	return ok
}

func (w *Worker) keepAlive(ctx context.Context, eventID int64, claim Claim, lost context.CancelFunc) {
	interval := w.leaseTTL / 3
	if interval <= 0 {
		interval = w.leaseTTL
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		err := claim.Extend(ctx, w.leaseTTL)
		switch {
		case err == nil:
		case errors.Is(err, ErrLeaseLost):
			w.logger.Error().Int64("event_id", eventID).Msg("worker: lease lost, abandoning event")
			lost()
			return
		case ctx.Err() != nil:
			return
		default:
			w.logger.Warn().Err(err).Int64("event_id", eventID).Msg("worker: lease extension failed")
		}
	}
}

// handle processes one event and reports whether it succeeded.
func (w *Worker) handle(ctx context.Context, event *domain.InboundEvent) bool {
	started := time.Now()
	w.logger.Info().Int64("event_id", event.ID).Msg("worker: processing event")
	if err := w.processor.Process(ctx, event); err != nil {
		if errors.Is(err, context.Canceled) {
			return false
		}
		w.logger.Error().Err(err).Int64("event_id", event.ID).Dur("elapsed", time.Since(started)).Msg("worker: event failed")
		return false
	}
	w.logger.Info().Int64("event_id", event.ID).Dur("elapsed", time.Since(started)).Msg("worker: event done")
	return true
}

func (w *Worker) finish(id int64, ok bool) {
	w.mu.Lock()
	delete(w.inFlight, id)
	if ok {
		delete(w.retryAfter, id)
	} else {
		w.retryAfter[id] = time.Now().Add(w.idle)
	}
	w.mu.Unlock()
	select {
	case w.done <- struct{}{}:
	default:
	}
}

func (w *Worker) wait(ctx context.Context) error {
	timer := time.NewTimer(w.idle)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-w.wake:
	case <-w.done:
	case <-timer.C:
	}
	return nil
}

// ready reports whether the event is neither running nor backing off after a failure.
func (w *Worker) ready(id int64) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, running := w.inFlight[id]; running {
		return false
	}
	if until, ok := w.retryAfter[id]; ok {
		if time.Now().Before(until) {
			return false
		}
		delete(w.retryAfter, id)
	}
	return true
}

func (w *Worker) setInFlight(id int64, on bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if on {
		w.inFlight[id] = struct{}{}
	} else {
		delete(w.inFlight, id)
	}
}

// scanBatch bounds how far past a blocked head the sequential loop looks.
const scanBatch = 32

func leaseKey(eventID int64) string {
	return "event:" + strconv.FormatInt(eventID, 10)
}
