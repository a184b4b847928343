package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"mueck/internal/domain"
	"mueck/internal/mocks"
	"mueck/internal/providers/imagevendor"
	"mueck/internal/slack"
)

func newVendor(ctrl *gomock.Controller, idempotent bool) *mocks.MockVendor {
	v := mocks.NewMockVendor(ctrl)
	v.EXPECT().Kind().Return(domain.VendorTensorArt).AnyTimes()
	v.EXPECT().Idempotent().Return(idempotent).AnyTimes()
	return v
}

func newProcessor(f *fixture, vendor imagevendor.Vendor, notifier Notifier) *Processor {
	return NewProcessor(ProcessorDeps{
		Events:       f.store,
		Jobs:         f.store.Jobs(),
		Integrations: f.store.Integrations(),
		Vendors:      imagevendor.NewRegistry(vendor),
		Policy:       imagevendor.Policy{DefaultVendor: domain.VendorTensorArt},
		Poller:       fastPoller(f.store, notifier),
		Fetcher:      NewFetcher(f.store.Jobs(), f.files, FetcherOptions{}),
		Notifier:     notifier,
		NewKey:       func() string { return "key-1" },
	})
}

func TestProcessEndToEnd(t *testing.T) {
	ctrl := gomock.NewController(t)
	f := newFixture(t, "a lighthouse at dusk")
	images := newImageServer(t, map[string][]byte{
		"/a.png": []byte("plain bytes"),
		"/b.png": pngWithSeed(777),
	})

	raw := json.RawMessage(`{"done":true}`)
	vendor := newVendor(ctrl, true)
	vendor.EXPECT().Submit(gomock.Any(), imagevendor.SubmitRequest{Prompt: "a lighthouse at dusk", Seed: domain.SeedVendorChooses, IdempotencyKey: "key-1"}).
		Return(&imagevendor.Handle{Kind: domain.VendorTensorArt, ExternalID: "ext-1", Status: domain.StatusCreated}, nil).Times(1)
	gomock.InOrder(
		vendor.EXPECT().Poll(gomock.Any(), gomock.Any()).Return(&imagevendor.PollResult{Status: domain.StatusCreated}, nil),
		vendor.EXPECT().Poll(gomock.Any(), gomock.Any()).Return(&imagevendor.PollResult{Status: domain.StatusQueued}, nil),
		vendor.EXPECT().Poll(gomock.Any(), gomock.Any()).Return(&imagevendor.PollResult{Status: domain.StatusQueued}, nil),
		vendor.EXPECT().Poll(gomock.Any(), gomock.Any()).Return(&imagevendor.PollResult{Status: domain.StatusRunning}, nil),
		vendor.EXPECT().Poll(gomock.Any(), gomock.Any()).Return(&imagevendor.PollResult{Status: domain.StatusComplete, Raw: raw}, nil),
	)
	vendor.EXPECT().ParseResult(raw).Return([]imagevendor.ImageResult{
		{ExternalID: "img-a", SourceURL: images.URL + "/a.png", Seed: 42, Width: 512, Height: 768},
		{ExternalID: "img-b", SourceURL: images.URL + "/b.png"},
	}, nil).Times(1)

	notifier := mocks.NewMockNotifier(ctrl)
	var statuses []domain.Status
	notifier.EXPECT().StatusChanged(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ slack.Target, st domain.Status) error {
			statuses = append(statuses, st)
			return nil
		}).Times(4)
	notifier.EXPECT().Completed(gomock.Any(), slack.Target{Channel: "C1", ThreadTS: "1700000000.000100", Token: "xoxb"}, gomock.Len(2)).
		DoAndReturn(func(context.Context, slack.Target, []domain.GeneratedImage) error {
			assert.False(t, f.reload(t).Processed(), "event must not be processed before images are announced")
			return nil
		})

	err := newProcessor(f, vendor, notifier).Process(context.Background(), f.event)
	require.NoError(t, err)

	ev := f.reload(t)
	require.True(t, ev.Processed())
	require.NotNil(t, ev.JobRef)
	assert.Equal(t, []domain.Status{domain.StatusCreated, domain.StatusQueued, domain.StatusRunning, domain.StatusComplete}, statuses)
	assert.Equal(t, 4, f.store.StatusWrites[*ev.JobRef])

	job, err := f.store.Jobs().Get(context.Background(), *ev.JobRef)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusComplete, job.Status)
	assert.Equal(t, "ext-1", job.ExternalID)

	saved, err := f.store.Jobs().ListImages(context.Background(), job.ID)
	require.NoError(t, err)
	require.Len(t, saved, 2)
	seeds := map[string]int64{}
	for _, img := range saved {
		seeds[img.ExternalImageID] = img.Seed
		require.NotNil(t, img.LocalFilename)
		data, err := f.files.Read(context.Background(), *img.LocalFilename)
		require.NoError(t, err)
		assert.NotEmpty(t, data)
	}
	assert.Equal(t, map[string]int64{"img-a": 42, "img-b": 777}, seeds)

	// A processed event is a no-op.
	require.NoError(t, newProcessor(f, vendor, notifier).Process(context.Background(), ev))
}

func TestProcessResumesWithoutResubmitting(t *testing.T) {
	ctrl := gomock.NewController(t)
	f := newFixture(t, "resume me")
	images := newImageServer(t, map[string][]byte{"/x.png": []byte("x")})
	token := "tok"

	vendor := newVendor(ctrl, false)
	vendor.EXPECT().Submit(gomock.Any(), gomock.Any()).
		Return(&imagevendor.Handle{ExternalID: "ext-9", Token: &token, Status: domain.StatusCreated}, nil).Times(1)
	crash := errors.New("connection reset")
	raw := json.RawMessage(`{"n":1}`)
	gomock.InOrder(
		vendor.EXPECT().Poll(gomock.Any(), gomock.Any()).Return(&imagevendor.PollResult{Status: domain.StatusQueued}, nil),
		vendor.EXPECT().Poll(gomock.Any(), gomock.Any()).Return(nil, crash),
		vendor.EXPECT().Resume("ext-9", &token).Return(&imagevendor.Handle{ExternalID: "ext-9", Token: &token}, nil),
		vendor.EXPECT().Poll(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, h imagevendor.Handle) (*imagevendor.PollResult, error) {
				assert.Equal(t, domain.StatusQueued, h.Status, "resumed handle carries the persisted status")
				return &imagevendor.PollResult{Status: domain.StatusRunning}, nil
			}),
		vendor.EXPECT().Poll(gomock.Any(), gomock.Any()).Return(&imagevendor.PollResult{Status: domain.StatusComplete, Raw: raw}, nil),
	)
	vendor.EXPECT().ParseResult(raw).Return([]imagevendor.ImageResult{{ExternalID: "x", SourceURL: images.URL + "/x.png", Seed: 5}}, nil)

	proc := newProcessor(f, vendor, nil)
	err := proc.Process(context.Background(), f.event)
	require.ErrorIs(t, err, crash)

	ev := f.reload(t)
	require.False(t, ev.Processed())
	require.Nil(t, ev.HeldAt)
	require.NotNil(t, ev.JobRef)
	jobID := *ev.JobRef

	require.NoError(t, proc.Process(context.Background(), ev))
	ev = f.reload(t)
	assert.True(t, ev.Processed())
	assert.Equal(t, jobID, *ev.JobRef)
	assert.Equal(t, 3, f.store.StatusWrites[jobID])
}

func TestProcessHoldsInFlightSubmissionForNonIdempotentVendor(t *testing.T) {
	ctrl := gomock.NewController(t)
	f := newFixture(t, "interrupted")
	require.NoError(t, f.store.BeginSubmission(context.Background(), f.event.ID, "key-0"))

	vendor := newVendor(ctrl, false)
	notifier := mocks.NewMockNotifier(ctrl)

	err := newProcessor(f, vendor, notifier).Process(context.Background(), f.reload(t))
	require.ErrorIs(t, err, domain.ErrSubmissionInFlight)

	ev := f.reload(t)
	assert.NotNil(t, ev.HeldAt)
	assert.Equal(t, holdSubmissionInFlight, ev.HoldReason)
	assert.Nil(t, ev.JobRef)
}

func TestProcessResubmitsInFlightWithOriginalKey(t *testing.T) {
	ctrl := gomock.NewController(t)
	f := newFixture(t, "interrupted")
	require.NoError(t, f.store.BeginSubmission(context.Background(), f.event.ID, "key-0"))

	raw := json.RawMessage(`{"images":[]}`)
	vendor := newVendor(ctrl, true)
	vendor.EXPECT().Submit(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req imagevendor.SubmitRequest) (*imagevendor.Handle, error) {
			assert.Equal(t, "key-0", req.IdempotencyKey)
			return &imagevendor.Handle{ExternalID: "ext-0", Status: domain.StatusComplete, Raw: raw}, nil
		}).Times(1)
	vendor.EXPECT().ParseResult(raw).Return(nil, nil)

	require.NoError(t, newProcessor(f, vendor, nil).Process(context.Background(), f.reload(t)))
	ev := f.reload(t)
	assert.True(t, ev.Processed())
	require.NotNil(t, ev.JobRef)
	assert.Zero(t, f.store.StatusWrites[*ev.JobRef], "a terminal submission is not polled")
}

func TestProcessHoldsEmptyPrompt(t *testing.T) {
	ctrl := gomock.NewController(t)
	f := newFixture(t, "   ")
	vendor := newVendor(ctrl, true)
	notifier := mocks.NewMockNotifier(ctrl)
	notifier.EXPECT().Failed(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).Times(1)

	err := newProcessor(f, vendor, notifier).Process(context.Background(), f.event)
	require.ErrorIs(t, err, domain.ErrEmptyPrompt)

	ev := f.reload(t)
	assert.Equal(t, holdEmptyPrompt, ev.HoldReason)
	assert.Nil(t, ev.JobRef)
	assert.Nil(t, ev.SubmissionStartedAt)
}

func TestProcessClearsSubmissionOnSubmitFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	f := newFixture(t, "try again")
	vendor := newVendor(ctrl, false)
	rejected := &imagevendor.StatusError{Vendor: "tensor_art", Code: 400, Body: "invalid model"}
	vendor.EXPECT().Submit(gomock.Any(), gomock.Any()).Return(nil, rejected).Times(1)

	err := newProcessor(f, vendor, nil).Process(context.Background(), f.event)
	require.ErrorIs(t, err, rejected)

	ev := f.reload(t)
	assert.Nil(t, ev.SubmissionKey)
	assert.Nil(t, ev.SubmissionStartedAt)
	assert.Nil(t, ev.HeldAt)
	assert.Nil(t, ev.JobRef)
}

func TestProcessKeepsSubmissionWhenOutcomeUnknown(t *testing.T) {
	ctrl := gomock.NewController(t)
	f := newFixture(t, "lost in transit")
	vendor := newVendor(ctrl, false)
	vendor.EXPECT().Submit(gomock.Any(), gomock.Any()).Return(nil, errors.New("civitai: request failed: connection reset by peer")).Times(1)
	proc := newProcessor(f, vendor, nil)

	err := proc.Process(context.Background(), f.event)
	require.Error(t, err)
	ev := f.reload(t)
	assert.Equal(t, holdSubmissionUnknown, ev.HoldReason)
	require.NotNil(t, ev.SubmissionKey)
	assert.Equal(t, "key-1", *ev.SubmissionKey)
	assert.Nil(t, ev.JobRef)

	// A plain release cannot resubmit blind: the record is still there.
	require.NoError(t, ReleaseEvent(context.Background(), f.store, ev.ID, false))
	err = proc.Process(context.Background(), f.reload(t))
	require.ErrorIs(t, err, domain.ErrSubmissionInFlight)
	assert.Equal(t, holdSubmissionInFlight, f.reload(t).HoldReason)
}

func TestProcessSubmitsOnceAfterAbandonedSubmission(t *testing.T) {
	ctrl := gomock.NewController(t)
	f := newFixture(t, "interrupted")
	require.NoError(t, f.store.BeginSubmission(context.Background(), f.event.ID, "key-0"))
	vendor := newVendor(ctrl, false)
	proc := newProcessor(f, vendor, nil)

	err := proc.Process(context.Background(), f.reload(t))
	require.ErrorIs(t, err, domain.ErrSubmissionInFlight)

	require.NoError(t, ReleaseEvent(context.Background(), f.store, f.event.ID, true))
	ev := f.reload(t)
	assert.Nil(t, ev.HeldAt)
	assert.Nil(t, ev.SubmissionKey)
	assert.Nil(t, ev.SubmissionStartedAt)

	raw := json.RawMessage(`{"images":[]}`)
	vendor.EXPECT().Submit(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req imagevendor.SubmitRequest) (*imagevendor.Handle, error) {
			assert.Equal(t, "key-1", req.IdempotencyKey, "an abandoned submission gets a fresh key")
			return &imagevendor.Handle{ExternalID: "ext-1", Status: domain.StatusComplete, Raw: raw}, nil
		}).Times(1)
	vendor.EXPECT().ParseResult(raw).Return(nil, nil)

	require.NoError(t, proc.Process(context.Background(), ev))
	ev = f.reload(t)
	assert.True(t, ev.Processed())
	require.NotNil(t, ev.JobRef)

	err = ReleaseEvent(context.Background(), f.store, ev.ID, true)
	require.ErrorIs(t, err, domain.ErrNotFound, "processed events cannot be released")
}

func TestReleaseRefusesToAbandonRecordedJob(t *testing.T) {
	f := newFixture(t, "x")
	job := &domain.GenerationJob{EventID: f.event.ID, Vendor: domain.VendorCivitAI, ExternalID: "j", Status: domain.StatusError}
	require.NoError(t, f.store.Jobs().CreateForEvent(context.Background(), job))
	require.NoError(t, f.store.Hold(context.Background(), f.event.ID, holdJobFailed))

	err := ReleaseEvent(context.Background(), f.store, f.event.ID, true)
	require.ErrorIs(t, err, ErrJobRecorded)
	assert.NotNil(t, f.reload(t).HeldAt, "a refused release leaves the hold in place")
}

func TestProcessRetriesUnknownOutcomeWithSameKey(t *testing.T) {
	ctrl := gomock.NewController(t)
	f := newFixture(t, "timeout")
	vendor := newVendor(ctrl, true)
	raw := json.RawMessage(`{"images":[]}`)
	var keys []string
	gomock.InOrder(
		vendor.EXPECT().Submit(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, req imagevendor.SubmitRequest) (*imagevendor.Handle, error) {
				keys = append(keys, req.IdempotencyKey)
				return nil, context.DeadlineExceeded
			}),
		vendor.EXPECT().Submit(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, req imagevendor.SubmitRequest) (*imagevendor.Handle, error) {
				keys = append(keys, req.IdempotencyKey)
				return &imagevendor.Handle{ExternalID: "ext", Status: domain.StatusComplete, Raw: raw}, nil
			}),
	)
	vendor.EXPECT().ParseResult(raw).Return(nil, nil)
	proc := newProcessor(f, vendor, nil)
	n := 0
	proc.newKey = func() string { n++; return fmt.Sprintf("key-%d", n) }

	require.ErrorIs(t, proc.Process(context.Background(), f.event), context.DeadlineExceeded)
	ev := f.reload(t)
	assert.Nil(t, ev.HeldAt, "idempotent vendors retry instead of holding")
	require.NotNil(t, ev.SubmissionKey)

	require.NoError(t, proc.Process(context.Background(), ev))
	assert.Equal(t, []string{"key-1", "key-1"}, keys)
	assert.True(t, f.reload(t).Processed())
}

func TestProcessHoldsFailedJob(t *testing.T) {
	ctrl := gomock.NewController(t)
	f := newFixture(t, "doomed")
	vendor := newVendor(ctrl, true)
	vendor.EXPECT().Submit(gomock.Any(), gomock.Any()).Return(&imagevendor.Handle{ExternalID: "e", Status: domain.StatusQueued}, nil)
	vendor.EXPECT().Poll(gomock.Any(), gomock.Any()).Return(&imagevendor.PollResult{Status: domain.StatusError}, nil)
	notifier := mocks.NewMockNotifier(ctrl)
	notifier.EXPECT().StatusChanged(gomock.Any(), gomock.Any(), domain.StatusError).Return(nil)
	notifier.EXPECT().Failed(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)

	proc := newProcessor(f, vendor, notifier)
	err := proc.Process(context.Background(), f.event)
	require.ErrorIs(t, err, domain.ErrJobFailed)
	ev := f.reload(t)
	assert.Equal(t, holdJobFailed, ev.HoldReason)
	assert.False(t, ev.Processed())

	// Releasing the hold resumes the stored job and fails again without polling.
	require.NoError(t, f.store.Release(context.Background(), ev.ID))
	vendor.EXPECT().Resume("e", nil).Return(&imagevendor.Handle{ExternalID: "e"}, nil)
	notifier.EXPECT().Failed(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
	err = proc.Process(context.Background(), f.reload(t))
	require.ErrorIs(t, err, domain.ErrJobFailed)
}

func TestProcessHoldsUnknownIntegration(t *testing.T) {
	ctrl := gomock.NewController(t)
	f := newFixture(t, "orphan")
	ev := f.reload(t)
	ev.IntegrationID = 999

	err := newProcessor(f, newVendor(ctrl, true), nil).Process(context.Background(), ev)
	require.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, holdNoIntegration, f.reload(t).HoldReason)
}
