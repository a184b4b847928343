// Package memstore holds in-memory stores with the same semantics as the Postgres
// repositories. They back tests and local dry runs.
package memstore

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"mueck/internal/domain"
)

// Store implements domain.EventStore, domain.JobStore and domain.IntegrationStore.
type Store struct {
	mu           sync.Mutex
	now          func() time.Time
	nextID       int64
	events       map[int64]*domain.InboundEvent
	jobs         map[int64]*domain.GenerationJob
	images       map[int64][]*domain.GeneratedImage
	integrations map[int64]*domain.Integration

	// StatusWrites counts successful UpdateStatus calls per job.
	StatusWrites map[int64]int
}

// New returns an empty store.
func New() *Store {
	return &Store{
		now:          time.Now,
		events:       make(map[int64]*domain.InboundEvent),
		jobs:         make(map[int64]*domain.GenerationJob),
		images:       make(map[int64][]*domain.GeneratedImage),
		integrations: make(map[int64]*domain.Integration),
		StatusWrites: make(map[int64]int),
	}
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

// AddIntegration registers an integration and assigns its id when zero.
func (s *Store) AddIntegration(in domain.Integration) *domain.Integration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if in.ID == 0 {
		in.ID = s.id()
	}
	cp := in
	s.integrations[in.ID] = &cp
	return &in
}

func (s *Store) Insert(_ context.Context, event *domain.InboundEvent) error {
	if event == nil {
		return errors.New("event is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.events {
		if existing.IntegrationID == event.IntegrationID && existing.Channel == event.Channel && existing.RequestTS == event.RequestTS {
			return domain.ErrDuplicateOperation
		}
	}
	event.ID = s.id()
	event.Created = s.now()
	cp := cloneEvent(event)
	s.events[event.ID] = cp
	return nil
}

func (s *Store) Get(_ context.Context, id int64) (*domain.InboundEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev, ok := s.events[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneEvent(ev), nil
}

func (s *Store) NextUnprocessed(ctx context.Context) (*domain.InboundEvent, error) {
	events, err := s.ListUnprocessed(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, domain.ErrNotFound
	}
	return &events[0], nil
}

func (s *Store) ListUnprocessed(_ context.Context, limit int) ([]domain.InboundEvent, error) {
	return s.list(limit, func(e *domain.InboundEvent) bool { return e.ProcessedAt == nil && e.HeldAt == nil }), nil
}

func (s *Store) ListHeld(_ context.Context, limit int) ([]domain.InboundEvent, error) {
	return s.list(limit, func(e *domain.InboundEvent) bool { return e.ProcessedAt == nil && e.HeldAt != nil }), nil
}

func (s *Store) list(limit int, keep func(*domain.InboundEvent) bool) []domain.InboundEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.InboundEvent
	for _, ev := range s.events {
		if keep(ev) {
			out = append(out, *cloneEvent(ev))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Created.Equal(out[j].Created) {
			return out[i].Created.Before(out[j].Created)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (s *Store) BeginSubmission(_ context.Context, eventID int64, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev, ok := s.events[eventID]
	if !ok || ev.JobRef != nil || ev.ProcessedAt != nil {
		return domain.ErrDuplicateOperation
	}
	if ev.SubmissionKey != nil && *ev.SubmissionKey != key {
		return domain.ErrDuplicateOperation
	}
	k := key
	ev.SubmissionKey = &k
	if ev.SubmissionStartedAt == nil {
		now := s.now()
		ev.SubmissionStartedAt = &now
	}
	return nil
}

func (s *Store) AbortSubmission(_ context.Context, eventID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ev, ok := s.events[eventID]; ok && ev.JobRef == nil {
		ev.SubmissionKey = nil
		ev.SubmissionStartedAt = nil
	}
	return nil
}

func (s *Store) Hold(_ context.Context, eventID int64, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev, ok := s.events[eventID]
	if !ok || ev.ProcessedAt != nil {
		return domain.ErrNotFound
	}
	now := s.now()
	ev.HeldAt = &now
	ev.HoldReason = reason
	return nil
}

func (s *Store) Release(_ context.Context, eventID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev, ok := s.events[eventID]
	if !ok || ev.ProcessedAt != nil {
		return domain.ErrNotFound
	}
	ev.HeldAt = nil
	ev.HoldReason = ""
	return nil
}

func (s *Store) MarkProcessed(_ context.Context, eventID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev, ok := s.events[eventID]
	if !ok {
		return domain.ErrNotFound
	}
	if ev.ProcessedAt == nil {
		now := s.now()
		ev.ProcessedAt = &now
	}
	return nil
}

// Jobs returns the JobStore view. Get on Store itself reads events.
func (s *Store) Jobs() *JobView { return &JobView{s: s} }

// Integrations returns an IntegrationStore view.
func (s *Store) Integrations() *IntegrationView { return &IntegrationView{s: s} }

// JobView implements domain.JobStore on top of Store.
type JobView struct{ s *Store }

func (v *JobView) CreateForEvent(_ context.Context, job *domain.GenerationJob) error {
	if job == nil {
		return errors.New("job is required")
	}
	s := v.s
	s.mu.Lock()
	defer s.mu.Unlock()
	ev, ok := s.events[job.EventID]
	if !ok {
		return domain.ErrNotFound
	}
	if ev.JobRef != nil {
		return domain.ErrDuplicateOperation
	}
	for _, existing := range s.jobs {
		if existing.EventID == job.EventID {
			return domain.ErrDuplicateOperation
		}
	}
	job.ID = s.id()
	job.Created = s.now()
	job.Updated = job.Created
	cp := *job
	s.jobs[job.ID] = &cp
	ref := job.ID
	ev.JobRef = &ref
	return nil
}

func (v *JobView) Get(_ context.Context, id int64) (*domain.GenerationJob, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	job, ok := v.s.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *job
	return &cp, nil
}

func (v *JobView) UpdateStatus(_ context.Context, id int64, update domain.JobUpdate) error {
	s := v.s
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return domain.ErrNotFound
	}
	if job.Status.Terminal() {
		return domain.ErrTerminalJob
	}
	job.Status = update.Status
	if update.Credits.GreaterThan(job.Credits) {
		job.Credits = update.Credits
	}
	job.QueuePosition = update.QueuePosition
	job.QueueLength = update.QueueLength
	job.Updated = s.now()
	s.StatusWrites[id]++
	return nil
}

func (v *JobView) SaveImage(_ context.Context, image *domain.GeneratedImage) error {
	if image == nil {
		return errors.New("image is required")
	}
	s := v.s
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.images[image.JobID] {
		if existing.ExternalImageID != image.ExternalImageID {
			continue
		}
		if existing.LocalFilename == nil && image.LocalFilename != nil {
			name := *image.LocalFilename
			existing.LocalFilename = &name
		}
		if existing.Seed == 0 {
			existing.Seed = image.Seed
		}
		image.ID = existing.ID
		image.LocalFilename = existing.LocalFilename
		image.Seed = existing.Seed
		image.Created = existing.Created
		return nil
	}
	image.ID = s.id()
	image.Created = s.now()
	cp := *image
	s.images[image.JobID] = append(s.images[image.JobID], &cp)
	return nil
}

func (v *JobView) ListImages(_ context.Context, jobID int64) ([]domain.GeneratedImage, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	out := make([]domain.GeneratedImage, 0, len(v.s.images[jobID]))
	for _, img := range v.s.images[jobID] {
		out = append(out, *img)
	}
	return out, nil
}

// IntegrationView implements domain.IntegrationStore on top of Store.
type IntegrationView struct{ s *Store }

func (v *IntegrationView) Get(_ context.Context, id int64) (*domain.Integration, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	in, ok := v.s.integrations[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *in
	return &cp, nil
}

func (v *IntegrationView) GetByAppID(_ context.Context, appID string) (*domain.Integration, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	var found *domain.Integration
	for _, in := range v.s.integrations {
		if in.AppID == appID && (found == nil || in.ID > found.ID) {
			found = in
		}
	}
	if found == nil {
		return nil, domain.ErrNotFound
	}
	cp := *found
	return &cp, nil
}

func cloneEvent(ev *domain.InboundEvent) *domain.InboundEvent {
	cp := *ev
	cp.Payload = append([]byte(nil), ev.Payload...)
	if ev.JobRef != nil {
		v := *ev.JobRef
		cp.JobRef = &v
	}
	if ev.SubmissionKey != nil {
		v := *ev.SubmissionKey
		cp.SubmissionKey = &v
	}
	if ev.SubmissionStartedAt != nil {
		v := *ev.SubmissionStartedAt
		cp.SubmissionStartedAt = &v
	}
	if ev.HeldAt != nil {
		v := *ev.HeldAt
		cp.HeldAt = &v
	}
	if ev.ProcessedAt != nil {
		v := *ev.ProcessedAt
		cp.ProcessedAt = &v
	}
	return &cp
}

var (
	_ domain.EventStore       = (*Store)(nil)
	_ domain.JobStore         = (*JobView)(nil)
	_ domain.IntegrationStore = (*IntegrationView)(nil)
)
