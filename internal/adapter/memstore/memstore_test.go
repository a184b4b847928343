package memstore

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"mueck/internal/domain"
)

func seedEvent(t *testing.T, s *Store) *domain.InboundEvent {
	t.Helper()
	ev := &domain.InboundEvent{IntegrationID: 1, Channel: "C1", RequestTS: "1.0", Payload: []byte(`{}`)}
	if err := s.Insert(context.Background(), ev); err != nil {
		t.Fatalf("insert: %v", err)
	}
	return ev
}

func TestInsertDeduplicates(t *testing.T) {
	s := New()
	seedEvent(t, s)
	dup := &domain.InboundEvent{IntegrationID: 1, Channel: "C1", RequestTS: "1.0"}
	if err := s.Insert(context.Background(), dup); !errors.Is(err, domain.ErrDuplicateOperation) {
		t.Fatalf("expected duplicate, got %v", err)
	}
}

func TestJobRefIsClaimedOnce(t *testing.T) {
	ctx := context.Background()
	s := New()
	ev := seedEvent(t, s)
	jobs := s.Jobs()
	if err := jobs.CreateForEvent(ctx, &domain.GenerationJob{EventID: ev.ID, Status: domain.StatusCreated}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := jobs.CreateForEvent(ctx, &domain.GenerationJob{EventID: ev.ID, Status: domain.StatusCreated}); !errors.Is(err, domain.ErrDuplicateOperation) {
		t.Fatalf("expected duplicate, got %v", err)
	}
	got, _ := s.Get(ctx, ev.ID)
	if got.JobRef == nil {
		t.Fatalf("job ref not set")
	}
}

func TestTerminalJobsAreFrozen(t *testing.T) {
	ctx := context.Background()
	s := New()
	ev := seedEvent(t, s)
	jobs := s.Jobs()
	job := &domain.GenerationJob{EventID: ev.ID, Status: domain.StatusCreated}
	_ = jobs.CreateForEvent(ctx, job)

	if err := jobs.UpdateStatus(ctx, job.ID, domain.JobUpdate{Status: domain.StatusRunning, Credits: decimal.NewFromInt(2)}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := jobs.UpdateStatus(ctx, job.ID, domain.JobUpdate{Status: domain.StatusComplete, Credits: decimal.NewFromInt(1)}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := jobs.UpdateStatus(ctx, job.ID, domain.JobUpdate{Status: domain.StatusRunning}); !errors.Is(err, domain.ErrTerminalJob) {
		t.Fatalf("expected ErrTerminalJob, got %v", err)
	}
	got, _ := jobs.Get(ctx, job.ID)
	if got.Status != domain.StatusComplete || !got.Credits.Equal(decimal.NewFromInt(2)) {
		t.Fatalf("unexpected job %+v", got)
	}
}

func TestHeldEventsLeaveQueue(t *testing.T) {
	ctx := context.Background()
	s := New()
	ev := seedEvent(t, s)
	if err := s.Hold(ctx, ev.ID, "empty prompt"); err != nil {
		t.Fatalf("hold: %v", err)
	}
	if _, err := s.NextUnprocessed(ctx); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("held event still queued: %v", err)
	}
	held, _ := s.ListHeld(ctx, 10)
	if len(held) != 1 || held[0].HoldReason != "empty prompt" {
		t.Fatalf("unexpected held list %+v", held)
	}
	if err := s.Release(ctx, ev.ID); err != nil {
		t.Fatalf("release: %v", err)
	}
	if next, err := s.NextUnprocessed(ctx); err != nil || next.ID != ev.ID {
		t.Fatalf("released event not queued: %v", err)
	}
}

func TestSaveImageIsIdempotent(t *testing.T) {
	ctx := context.Background()
	jobs := New().Jobs()
	first := &domain.GeneratedImage{JobID: 1, ExternalImageID: "a", SourceURL: "u"}
	if err := jobs.SaveImage(ctx, first); err != nil {
		t.Fatalf("save: %v", err)
	}
	name := "images/1/a.png"
	second := &domain.GeneratedImage{JobID: 1, ExternalImageID: "a", SourceURL: "u", LocalFilename: &name, Seed: 9}
	if err := jobs.SaveImage(ctx, second); err != nil {
		t.Fatalf("save: %v", err)
	}
	images, _ := jobs.ListImages(ctx, 1)
	if len(images) != 1 || images[0].Seed != 9 || images[0].LocalFilename == nil || second.ID != first.ID {
		t.Fatalf("unexpected images %+v", images)
	}
}
