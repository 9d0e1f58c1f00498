package app

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"video_pipeline_service/internal/video/domain"
	"video_pipeline_service/pkg/database"
	"video_pipeline_service/pkg/logger"
	"video_pipeline_service/pkg/queue"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type workerFixture struct {
	worker  *TranscodeWorker
	repo    *MockVideoRepo
	dlq     *MockDeadLetterRepo
	store   *MockObjectStore
	engine  *MockTranscoder
	dir     string
	removed []string
}

func newWorkerFixture(t *testing.T) *workerFixture {
	t.Helper()
	logger.SetNewNop()
	f := &workerFixture{
		repo:   new(MockVideoRepo),
		dlq:    new(MockDeadLetterRepo),
		store:  new(MockObjectStore),
		engine: new(MockTranscoder),
		dir:    t.TempDir(),
	}
	f.worker = NewTranscodeWorker(f.repo, f.dlq, f.store, f.engine, WorkerOptions{
		ScratchDir:  f.dir,
		StepBackoff: time.Millisecond,
	})

	orig := removeFile
	removeFile = func(p string) error {
		f.removed = append(f.removed, p)
		return nil
	}
	t.Cleanup(func() { removeFile = orig })
	return f
}

func (f *workerFixture) scratch(name string) string {
	return filepath.Join(f.dir, name)
}

func newJob(t *testing.T, attempt, max int) *queue.Job {
	t.Helper()
	payload, err := json.Marshal(domain.TranscodeJob{VideoID: "abc", RawKey: "videos/abc/raw.mp4"})
	require.NoError(t, err)
	return &queue.Job{ID: "job-1", VideoID: "abc", Attempt: attempt, AttemptsMade: attempt - 1, MaxAttempts: max, Payload: payload}
}

func video(status domain.Status) *domain.Video {
	return &domain.Video{ID: "abc", Status: status, RawKey: "videos/abc/raw.mp4"}
}

func fieldsWith(pred func(domain.Fields) bool) interface{} {
	return mock.MatchedBy(pred)
}

var anyFields = mock.AnythingOfType("domain.Fields")

// expectThroughPrimary wire the mocks for preflight, fetch, thumbnail and the 480p rendition of attempt 1
func (f *workerFixture) expectThroughPrimary() {
	raw := f.scratch("abc-a1-raw.mp4")
	f.repo.On("Read", mock.Anything, "abc").Return(video(domain.StatusQueued), nil)
	f.repo.On("Transition", mock.Anything, "abc", domain.StatusQueued, domain.StatusProcessing,
		fieldsWith(func(fl domain.Fields) bool { return fl.ProcessingStartedAt != nil })).Return(true, nil)
	f.store.On("DownloadFile", mock.Anything, "videos/abc/raw.mp4", raw).Return(nil)
	f.engine.On("ExtractFrame", mock.Anything, raw, f.scratch("abc-a1-thumb.jpg"), 2*time.Second).Return(nil)
	f.store.On("UploadFile", mock.Anything, "videos/abc/thumb.jpg", f.scratch("abc-a1-thumb.jpg"), "image/jpeg").Return(nil)
	f.repo.On("Transition", mock.Anything, "abc", domain.StatusProcessing, domain.StatusProcessing,
		fieldsWith(func(fl domain.Fields) bool {
			return fl.ThumbKey != nil && *fl.ThumbKey == "videos/abc/thumb.jpg" && fl.ThumbGeneratedAt != nil
		})).Return(true, nil)
	f.engine.On("Encode", mock.Anything, raw, f.scratch("abc-a1-480p.mp4"), domain.Resolution480p).Return(nil)
	f.store.On("UploadFile", mock.Anything, "videos/abc/480p.mp4", f.scratch("abc-a1-480p.mp4"), "video/mp4").Return(nil)
}

func TestProcessHappyPath(t *testing.T) {
	t.Run("tall source gets both renditions", func(t *testing.T) {
		f := newWorkerFixture(t)
		f.expectThroughPrimary()
		raw := f.scratch("abc-a1-raw.mp4")
		f.engine.On("ProbeHeight", mock.Anything, raw).Return(1080, nil)
		f.engine.On("Encode", mock.Anything, raw, f.scratch("abc-a1-720p.mp4"), domain.Resolution720p).Return(nil)
		f.store.On("UploadFile", mock.Anything, "videos/abc/720p.mp4", f.scratch("abc-a1-720p.mp4"), "video/mp4").Return(nil)

		want := domain.Variants{
			{Resolution: domain.Resolution480p, Key: "videos/abc/480p.mp4"},
			{Resolution: domain.Resolution720p, Key: "videos/abc/720p.mp4"},
		}
		f.repo.On("Transition", mock.Anything, "abc", domain.StatusProcessing, domain.StatusProcessed,
			fieldsWith(func(fl domain.Fields) bool {
				return assert.ObjectsAreEqual(want, fl.Variants) && fl.TranscodedAt != nil
			})).Return(true, nil)

		require.NoError(t, f.worker.Process(testContext(t), newJob(t, 1, 5)))

		f.repo.AssertExpectations(t)
		f.store.AssertExpectations(t)
		f.engine.AssertExpectations(t)
		f.dlq.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
		assert.ElementsMatch(t, []string{
			raw, f.scratch("abc-a1-thumb.jpg"), f.scratch("abc-a1-480p.mp4"), f.scratch("abc-a1-720p.mp4"),
		}, f.removed)
	})

	t.Run("short source gets only the baseline", func(t *testing.T) {
		f := newWorkerFixture(t)
		f.expectThroughPrimary()
		f.engine.On("ProbeHeight", mock.Anything, f.scratch("abc-a1-raw.mp4")).Return(480, nil)
		f.repo.On("Transition", mock.Anything, "abc", domain.StatusProcessing, domain.StatusProcessed,
			fieldsWith(func(fl domain.Fields) bool {
				return len(fl.Variants) == 1 && fl.Variants[0].Resolution == domain.Resolution480p
			})).Return(true, nil)

		require.NoError(t, f.worker.Process(testContext(t), newJob(t, 1, 5)))
		f.engine.AssertNotCalled(t, "Encode", mock.Anything, mock.Anything, mock.Anything, domain.Resolution720p)
	})

	t.Run("finalize lost to another writer is not an error", func(t *testing.T) {
		f := newWorkerFixture(t)
		f.expectThroughPrimary()
		f.engine.On("ProbeHeight", mock.Anything, mock.Anything).Return(360, nil)
		f.repo.On("Transition", mock.Anything, "abc", domain.StatusProcessing, domain.StatusProcessed, anyFields).Return(false, nil)

		assert.NoError(t, f.worker.Process(testContext(t), newJob(t, 1, 5)))
	})
}

func TestProcessStaleJob(t *testing.T) {
	for _, status := range []domain.Status{domain.StatusProcessed, domain.StatusFailed, domain.StatusUploaded} {
		t.Run(string(status), func(t *testing.T) {
			f := newWorkerFixture(t)
			f.repo.On("Read", mock.Anything, "abc").Return(video(status), nil)

			require.NoError(t, f.worker.Process(testContext(t), newJob(t, 1, 5)))
			f.store.AssertNotCalled(t, "DownloadFile", mock.Anything, mock.Anything, mock.Anything)
			f.repo.AssertNotCalled(t, "Transition", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		})
	}

	t.Run("thumbnail guard lost", func(t *testing.T) {
		f := newWorkerFixture(t)
		raw := f.scratch("abc-a2-raw.mp4")
		f.repo.On("Read", mock.Anything, "abc").Return(video(domain.StatusProcessing), nil)
		f.store.On("DownloadFile", mock.Anything, "videos/abc/raw.mp4", raw).Return(nil)
		f.engine.On("ExtractFrame", mock.Anything, raw, mock.Anything, mock.Anything).Return(nil)
		f.store.On("UploadFile", mock.Anything, "videos/abc/thumb.jpg", mock.Anything, "image/jpeg").Return(nil)
		f.repo.On("Transition", mock.Anything, "abc", domain.StatusProcessing, domain.StatusProcessing, anyFields).Return(false, nil)

		require.NoError(t, f.worker.Process(testContext(t), newJob(t, 2, 5)))
		f.engine.AssertNotCalled(t, "Encode", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestProcessFailures(t *testing.T) {
	engineErr := &domain.ExecutionError{Step: "encode_480p", Err: errors.New("exit status 1")}

	t.Run("non-final attempt leaves the video processing", func(t *testing.T) {
		f := newWorkerFixture(t)
		raw := f.scratch("abc-a2-raw.mp4")
		f.repo.On("Read", mock.Anything, "abc").Return(video(domain.StatusProcessing), nil)
		f.store.On("DownloadFile", mock.Anything, "videos/abc/raw.mp4", raw).Return(nil)
		f.engine.On("ExtractFrame", mock.Anything, raw, mock.Anything, mock.Anything).Return(engineErr)

		err := f.worker.Process(testContext(t), newJob(t, 2, 5))
		var execErr *domain.ExecutionError
		require.ErrorAs(t, err, &execErr)
		f.dlq.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
		f.repo.AssertNotCalled(t, "Transition", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		assert.Contains(t, f.removed, raw)
	})

	t.Run("final attempt records dead letter then fails the video", func(t *testing.T) {
		f := newWorkerFixture(t)
		f.repo.On("Read", mock.Anything, "abc").Return(video(domain.StatusProcessing), nil)
		f.store.On("DownloadFile", mock.Anything, "videos/abc/raw.mp4", f.scratch("abc-a3-raw.mp4")).Return(database.ErrObjectNotFound)

		var order []string
		f.dlq.On("Append", mock.Anything, mock.MatchedBy(func(r domain.DeadLetterRecord) bool {
			return r.VideoID == "abc" && r.JobID == "job-1" && r.Attempts == 3 && r.ID != "" && r.Error != ""
		})).Run(func(mock.Arguments) { order = append(order, "dlq") }).Return(nil)
		f.repo.On("Transition", mock.Anything, "abc", domain.StatusProcessing, domain.StatusFailed,
			fieldsWith(func(fl domain.Fields) bool { return fl.LastError != nil && fl.IncrementFailCount })).
			Run(func(mock.Arguments) { order = append(order, "failed") }).Return(true, nil)

		err := f.worker.Process(testContext(t), newJob(t, 3, 3))
		assert.ErrorIs(t, err, domain.ErrNotFound)
		assert.Equal(t, []string{"dlq", "failed"}, order)
		f.store.AssertNumberOfCalls(t, "DownloadFile", 1)
	})

	t.Run("dead letter outage still fails the video", func(t *testing.T) {
		f := newWorkerFixture(t)
		f.repo.On("Read", mock.Anything, "abc").Return(video(domain.StatusProcessing), nil)
		f.store.On("DownloadFile", mock.Anything, mock.Anything, mock.Anything).Return(nil)
		f.engine.On("ExtractFrame", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(engineErr)
		f.dlq.On("Append", mock.Anything, mock.Anything).Return(errors.New("mongo down"))
		f.repo.On("Transition", mock.Anything, "abc", domain.StatusProcessing, domain.StatusFailed, anyFields).Return(true, nil)

		err := f.worker.Process(testContext(t), newJob(t, 5, 5))
		assert.ErrorIs(t, err, engineErr)
		f.dlq.AssertNumberOfCalls(t, "Append", 3)
		f.repo.AssertExpectations(t)
	})

	t.Run("missing video on the final attempt", func(t *testing.T) {
		f := newWorkerFixture(t)
		f.repo.On("Read", mock.Anything, "abc").Return(nil, domain.ErrNotFound)
		f.repo.On("Transition", mock.Anything, "abc", domain.StatusQueued, domain.StatusProcessing, anyFields).Return(false, domain.ErrNotFound)
		f.dlq.On("Append", mock.Anything, mock.Anything).Return(nil)
		f.repo.On("Transition", mock.Anything, "abc", domain.StatusProcessing, domain.StatusFailed, anyFields).Return(false, domain.ErrNotFound)

		err := f.worker.Process(testContext(t), newJob(t, 1, 1))
		assert.ErrorIs(t, err, domain.ErrNotFound)
		f.dlq.AssertExpectations(t)
	})

	t.Run("final attempt failing before the claim still fails the video", func(t *testing.T) {
		f := newWorkerFixture(t)
		readErr := domain.Transient("read video", errors.New("connection refused"))
		f.repo.On("Read", mock.Anything, "abc").Return(nil, readErr)

		var order []string
		f.repo.On("Transition", mock.Anything, "abc", domain.StatusQueued, domain.StatusProcessing,
			fieldsWith(func(fl domain.Fields) bool { return fl.ProcessingStartedAt != nil })).
			Run(func(mock.Arguments) { order = append(order, "claim") }).Return(true, nil)
		f.dlq.On("Append", mock.Anything, mock.MatchedBy(func(r domain.DeadLetterRecord) bool {
			return r.VideoID == "abc" && r.Attempts == 5
		})).Run(func(mock.Arguments) { order = append(order, "dlq") }).Return(nil)
		f.repo.On("Transition", mock.Anything, "abc", domain.StatusProcessing, domain.StatusFailed,
			fieldsWith(func(fl domain.Fields) bool { return fl.LastError != nil && fl.IncrementFailCount })).
			Run(func(mock.Arguments) { order = append(order, "failed") }).Return(true, nil)

		err := f.worker.Process(testContext(t), newJob(t, 5, 5))
		assert.True(t, domain.IsTransient(err))
		assert.Equal(t, []string{"claim", "dlq", "failed"}, order)
		f.dlq.AssertNumberOfCalls(t, "Append", 1)
	})

	t.Run("unreachable store on the final attempt writes no dead letter", func(t *testing.T) {
		f := newWorkerFixture(t)
		down := domain.Transient("postgres", errors.New("connection refused"))
		f.repo.On("Read", mock.Anything, "abc").Return(nil, down)
		f.repo.On("Transition", mock.Anything, "abc", domain.StatusQueued, domain.StatusProcessing, anyFields).Return(false, down)

		err := f.worker.Process(testContext(t), newJob(t, 5, 5))
		assert.Error(t, err)
		f.dlq.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
		f.repo.AssertNotCalled(t, "Transition", mock.Anything, "abc", domain.StatusProcessing, domain.StatusFailed, mock.Anything)
	})

	t.Run("bad payload counts against the budget", func(t *testing.T) {
		f := newWorkerFixture(t)
		job := &queue.Job{ID: "job-x", VideoID: "abc", Attempt: 1, MaxAttempts: 2, Payload: json.RawMessage(`"oops"`)}
		assert.Error(t, f.worker.Process(testContext(t), job))
		f.repo.AssertNotCalled(t, "Read", mock.Anything, mock.Anything)
	})
}

func TestProcessTransientRetry(t *testing.T) {
	t.Run("transient store errors are retried in place", func(t *testing.T) {
		f := newWorkerFixture(t)
		raw := f.scratch("abc-a1-raw.mp4")
		f.repo.On("Read", mock.Anything, "abc").Return(video(domain.StatusProcessing), nil)
		f.store.On("DownloadFile", mock.Anything, "videos/abc/raw.mp4", raw).Return(errors.New("connection reset")).Twice()
		f.store.On("DownloadFile", mock.Anything, "videos/abc/raw.mp4", raw).Return(nil).Once()
		f.engine.On("ExtractFrame", mock.Anything, raw, mock.Anything, mock.Anything).
			Return(&domain.ExecutionError{Step: "thumbnail", Err: errors.New("exit status 1")})

		err := f.worker.Process(testContext(t), newJob(t, 1, 5))
		var execErr *domain.ExecutionError
		require.ErrorAs(t, err, &execErr)
		f.store.AssertNumberOfCalls(t, "DownloadFile", 3)
	})

	t.Run("retries exhausted fail the attempt", func(t *testing.T) {
		f := newWorkerFixture(t)
		f.repo.On("Read", mock.Anything, "abc").Return(video(domain.StatusProcessing), nil)
		f.store.On("DownloadFile", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("connection reset"))

		err := f.worker.Process(testContext(t), newJob(t, 1, 5))
		assert.True(t, domain.IsTransient(err))
		f.store.AssertNumberOfCalls(t, "DownloadFile", 3)
		f.engine.AssertNotCalled(t, "ExtractFrame", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("transient read is retried", func(t *testing.T) {
		f := newWorkerFixture(t)
		f.repo.On("Read", mock.Anything, "abc").Return(nil, domain.Transient("read video", errors.New("timeout"))).Once()
		f.repo.On("Read", mock.Anything, "abc").Return(video(domain.StatusProcessed), nil).Once()

		require.NoError(t, f.worker.Process(testContext(t), newJob(t, 1, 5)))
		f.repo.AssertNumberOfCalls(t, "Read", 2)
	})
}

func TestStoreErr(t *testing.T) {
	assert.NoError(t, storeErr("op", nil))
	assert.ErrorIs(t, storeErr("op", database.ErrObjectNotFound), domain.ErrNotFound)
	assert.False(t, domain.IsTransient(storeErr("op", database.ErrObjectNotFound)))
	assert.True(t, domain.IsTransient(storeErr("op", errors.New("reset"))))
}

// testContext stands in for t.Context (Go 1.24+): a context canceled when the test finishes.
func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return ctx
}
