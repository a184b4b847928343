package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"mueck/internal/adapter/memstore"
	"mueck/internal/domain"
)

// countingProcessor marks events processed and cancels once want events are done.
type countingProcessor struct {
	store  *memstore.Store
	cancel context.CancelFunc
	want   int
	failN  int

	mu    sync.Mutex
	runs  map[int64]int
	done  int
	fails int
}

func (p *countingProcessor) Process(ctx context.Context, event *domain.InboundEvent) error {
	p.mu.Lock()
	p.runs[event.ID]++
	if p.fails < p.failN {
		p.fails++
		p.mu.Unlock()
		return errors.New("vendor unavailable")
	}
	p.mu.Unlock()

	if err := p.store.MarkProcessed(ctx, event.ID); err != nil {
		return err
	}
	p.mu.Lock()
	p.done++
	if p.done == p.want {
		p.cancel()
	}
	p.mu.Unlock()
	return nil
}

func seedEvents(t *testing.T, store *memstore.Store, n int) []int64 {
	t.Helper()
	ids := make([]int64, 0, n)
	for i := 0; i < n; i++ {
		ev := &domain.InboundEvent{IntegrationID: 1, Channel: "C", RequestTS: time.Unix(int64(i), 0).String()}
		if err := store.Insert(context.Background(), ev); err != nil {
			t.Fatalf("insert: %v", err)
		}
		ids = append(ids, ev.ID)
	}
	return ids
}

func runWorker(t *testing.T, store *memstore.Store, proc *countingProcessor, opts WorkerOptions) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	proc.cancel = cancel
	if err := NewWorker(store, proc, opts).Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}
	if ctx.Err() == context.DeadlineExceeded {
		t.Fatalf("worker did not finish: %d of %d events", proc.done, proc.want)
	}
}

func TestWorkerSequentialProcessesQueueOnce(t *testing.T) {
	store := memstore.New()
	ids := seedEvents(t, store, 3)
	proc := &countingProcessor{store: store, want: 3, runs: map[int64]int{}}

	runWorker(t, store, proc, WorkerOptions{Concurrency: 1, Idle: time.Millisecond})

	for _, id := range ids {
		if proc.runs[id] != 1 {
			t.Fatalf("event %d processed %d times", id, proc.runs[id])
		}
	}
}

func TestWorkerSequentialRetriesAfterFailure(t *testing.T) {
	store := memstore.New()
	ids := seedEvents(t, store, 1)
	proc := &countingProcessor{store: store, want: 1, failN: 2, runs: map[int64]int{}}

	runWorker(t, store, proc, WorkerOptions{Concurrency: 1, Idle: time.Millisecond})

	if proc.runs[ids[0]] != 3 {
		t.Fatalf("expected 3 attempts, got %d", proc.runs[ids[0]])
	}
}

func TestWorkerPoolProcessesEachEventOnce(t *testing.T) {
	store := memstore.New()
	ids := seedEvents(t, store, 7)
	proc := &countingProcessor{store: store, want: 7, runs: map[int64]int{}}

	runWorker(t, store, proc, WorkerOptions{Concurrency: 3, Idle: time.Millisecond})

	proc.mu.Lock()
	defer proc.mu.Unlock()
	for _, id := range ids {
		if proc.runs[id] != 1 {
			t.Fatalf("event %d processed %d times", id, proc.runs[id])
		}
	}
}

func TestWorkerWakesOnNotification(t *testing.T) {
	store := memstore.New()
	proc := &countingProcessor{store: store, want: 1, runs: map[int64]int{}}
	wake := make(chan struct{}, 1)

	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = store.Insert(context.Background(), &domain.InboundEvent{IntegrationID: 1, Channel: "C", RequestTS: "late"})
		wake <- struct{}{}
	}()
	runWorker(t, store, proc, WorkerOptions{Concurrency: 1, Idle: time.Hour, Wake: wake})
}

func TestWorkerSkipsHeldEvents(t *testing.T) {
	store := memstore.New()
	ids := seedEvents(t, store, 2)
	if err := store.Hold(context.Background(), ids[0], "review"); err != nil {
		t.Fatalf("hold: %v", err)
	}
	proc := &countingProcessor{store: store, want: 1, runs: map[int64]int{}}

	runWorker(t, store, proc, WorkerOptions{Concurrency: 2, Idle: time.Millisecond})

	if proc.runs[ids[0]] != 0 || proc.runs[ids[1]] != 1 {
		t.Fatalf("unexpected runs %v", proc.runs)
	}
}

type processorFunc func(ctx context.Context, event *domain.InboundEvent) error

func (f processorFunc) Process(ctx context.Context, event *domain.InboundEvent) error {
	return f(ctx, event)
}

func TestWorkerSequentialHonoursLease(t *testing.T) {
	store := memstore.New()
	ids := seedEvents(t, store, 2)
	lease := NewLocalLease()
	// another process is working on the head of the queue
	other, ok, _ := lease.Acquire(context.Background(), leaseKey(ids[0]), time.Hour)
	if !ok {
		t.Fatalf("acquire: lease unavailable")
	}
	defer other.Release()
	proc := &countingProcessor{store: store, want: 1, runs: map[int64]int{}}

	runWorker(t, store, proc, WorkerOptions{Concurrency: 1, Idle: time.Millisecond, Lease: lease})

	if proc.runs[ids[0]] != 0 || proc.runs[ids[1]] != 1 {
		t.Fatalf("unexpected runs %v", proc.runs)
	}
}

func TestWorkerHoldsLeaseWhileProcessing(t *testing.T) {
	for _, concurrency := range []int{1, 2} {
		store := memstore.New()
		ids := seedEvents(t, store, 1)
		lease := NewLocalLease()
		ttl := 60 * time.Millisecond

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		var stolen, cancelled bool
		proc := processorFunc(func(runCtx context.Context, event *domain.InboundEvent) error {
			// outlive the ttl several times over, checking the claim is never up for grabs
			for i := 0; i < 5; i++ {
				select {
				case <-runCtx.Done():
					cancelled = true
					return runCtx.Err()
				case <-time.After(ttl):
				}
				if c, ok, _ := lease.Acquire(context.Background(), leaseKey(event.ID), ttl); ok {
					c.Release()
					stolen = true
				}
			}
			defer cancel()
			return store.MarkProcessed(runCtx, event.ID)
		})

		err := NewWorker(store, proc, WorkerOptions{Concurrency: concurrency, Idle: time.Millisecond, LeaseTTL: ttl, Lease: lease}).Run(ctx)
		cancel()
		if err != nil {
			t.Fatalf("concurrency %d: run: %v", concurrency, err)
		}
		if stolen || cancelled {
			t.Fatalf("concurrency %d: claim not kept alive (stolen=%v cancelled=%v)", concurrency, stolen, cancelled)
		}
		ev, _ := store.Get(context.Background(), ids[0])
		if !ev.Processed() {
			t.Fatalf("concurrency %d: event not processed", concurrency)
		}
	}
}

// lostLease hands out claims that can never be extended.
type lostLease struct{ *LocalLease }

type lostClaim struct{ Claim }

func (lostClaim) Extend(context.Context, time.Duration) error { return ErrLeaseLost }

func (l *lostLease) Acquire(ctx context.Context, key string, ttl time.Duration) (Claim, bool, error) {
	c, ok, err := l.LocalLease.Acquire(ctx, key, ttl)
	if !ok {
		return nil, ok, err
	}
	return lostClaim{c}, true, nil
}

func TestWorkerCancelsEventWhenLeaseLost(t *testing.T) {
	store := memstore.New()
	seedEvents(t, store, 1)
	lease := &lostLease{NewLocalLease()}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var mu sync.Mutex
	attempts := 0
	proc := processorFunc(func(runCtx context.Context, event *domain.InboundEvent) error {
		mu.Lock()
		attempts++
		n := attempts
		mu.Unlock()
		if n == 1 {
			<-runCtx.Done()
			return runCtx.Err()
		}
		defer cancel()
		return store.MarkProcessed(runCtx, event.ID)
	})

	if err := NewWorker(store, proc, WorkerOptions{Concurrency: 1, Idle: time.Millisecond, LeaseTTL: 30 * time.Millisecond, Lease: lease}).Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}
	if ctx.Err() == context.DeadlineExceeded {
		t.Fatalf("losing the lease did not cancel the running event")
	}
	mu.Lock()
	defer mu.Unlock()
	if attempts != 2 {
		t.Fatalf("expected a retry after the lost lease, got %d attempts", attempts)
	}
}
