package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"video_pipeline_service/pkg/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testPayload struct {
	VideoID string `json:"videoId"`
}

func newTestQueue(t *testing.T, opts Options) (*Queue, *miniredis.Miniredis) {
	t.Helper()
	logger.SetNewNop()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return New(client, opts), mr
}

func freezeClock(t *testing.T, at time.Time) func(time.Duration) {
	t.Helper()
	current := at
	now = func() time.Time { return current }
	t.Cleanup(func() { now = time.Now })
	return func(d time.Duration) { current = current.Add(d) }
}

func TestSubmitIsIdempotentPerVideo(t *testing.T) {
	q, _ := newTestQueue(t, Options{})
	ctx := context.Background()

	id1, created, err := q.Submit(ctx, "abc", testPayload{VideoID: "abc"})
	require.NoError(t, err)
	assert.True(t, created)

	id2, created, err := q.Submit(ctx, "abc", testPayload{VideoID: "abc"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, id1, id2)

	_, created, err = q.Submit(ctx, "other", testPayload{VideoID: "other"})
	require.NoError(t, err)
	assert.True(t, created)

	stats, err := q.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Waiting)
}

func TestCompletePurgesJob(t *testing.T) {
	q, _ := newTestQueue(t, Options{})
	ctx := context.Background()

	_, _, err := q.Submit(ctx, "abc", testPayload{VideoID: "abc"})
	require.NoError(t, err)

	job, err := q.dequeue(ctx)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, 1, job.Attempt)
	assert.Equal(t, defaultMaxAttempts, job.MaxAttempts)

	var p testPayload
	require.NoError(t, job.Decode(&p))
	assert.Equal(t, "abc", p.VideoID)

	q.process(ctx, func(context.Context, *Job) error { return nil }, job)

	stats, err := q.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{}, stats)

	_, created, err := q.Submit(ctx, "abc", testPayload{VideoID: "abc"})
	require.NoError(t, err)
	assert.True(t, created, "a completed job no longer blocks submissions")
}

func TestFailedAttemptIsDelayedByBackoff(t *testing.T) {
	advance := freezeClock(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	q, _ := newTestQueue(t, Options{Backoff: Backoff{Base: 5 * time.Second, Factor: 2}})
	ctx := context.Background()

	_, _, err := q.Submit(ctx, "abc", testPayload{VideoID: "abc"})
	require.NoError(t, err)

	job, err := q.dequeue(ctx)
	require.NoError(t, err)
	q.process(ctx, func(context.Context, *Job) error { return errors.New("engine failed") }, job)

	stats, err := q.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{Delayed: 1}, stats)

	advance(4 * time.Second)
	n, err := q.PromoteDue(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	advance(time.Second)
	n, err = q.PromoteDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	job, err = q.dequeue(ctx)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, 2, job.Attempt)
	assert.Equal(t, "engine failed", job.LastError)

	_, created, err := q.Submit(ctx, "abc", testPayload{VideoID: "abc"})
	require.NoError(t, err)
	assert.False(t, created, "a retrying job still holds the video")
}

func TestExhaustedJobMovesToFailed(t *testing.T) {
	advance := freezeClock(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	q, _ := newTestQueue(t, Options{MaxAttempts: 3, Backoff: Backoff{Base: time.Second, Factor: 2}})
	ctx := context.Background()

	jobID, _, err := q.Submit(ctx, "xyz", testPayload{VideoID: "xyz"})
	require.NoError(t, err)

	var finals []bool
	fail := func(_ context.Context, job *Job) error {
		finals = append(finals, job.FinalAttempt())
		return errors.New("boom")
	}

	for i := 0; i < 3; i++ {
		_, err := q.PromoteDue(ctx)
		require.NoError(t, err)
		job, err := q.dequeue(ctx)
		require.NoError(t, err)
		require.NotNil(t, job, "attempt %d", i+1)
		q.process(ctx, fail, job)
		advance(time.Minute)
	}
	assert.Equal(t, []bool{false, false, true}, finals)

	stats, err := q.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{Failed: 1}, stats)

	failed, err := q.FailedJobs(ctx)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, jobID, failed[0].ID)
	assert.Equal(t, 3, failed[0].AttemptsMade)
	assert.Equal(t, "boom", failed[0].LastError)
	assert.NotNil(t, failed[0].FailedAt)

	newID, created, err := q.Submit(ctx, "xyz", testPayload{VideoID: "xyz"})
	require.NoError(t, err)
	assert.True(t, created, "an exhausted job releases the video for an operator retry")
	assert.NotEqual(t, jobID, newID)
}

func TestHandlerPanicCountsAsFailure(t *testing.T) {
	q, _ := newTestQueue(t, Options{MaxAttempts: 1})
	ctx := context.Background()

	_, _, err := q.Submit(ctx, "abc", testPayload{VideoID: "abc"})
	require.NoError(t, err)
	job, err := q.dequeue(ctx)
	require.NoError(t, err)

	q.process(ctx, func(context.Context, *Job) error { panic("bad input") }, job)

	failed, err := q.FailedJobs(ctx)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Contains(t, failed[0].LastError, "bad input")
}

func TestExpiredLeaseIsRequeuedWithoutConsumingAttempt(t *testing.T) {
	advance := freezeClock(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	q, _ := newTestQueue(t, Options{LeaseTimeout: time.Minute})
	ctx := context.Background()

	_, _, err := q.Submit(ctx, "abc", testPayload{VideoID: "abc"})
	require.NoError(t, err)
	job, err := q.dequeue(ctx)
	require.NoError(t, err)
	require.NotNil(t, job)

	n, err := q.RequeueExpired(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	advance(2 * time.Minute)
	n, err = q.RequeueExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	again, err := q.dequeue(ctx)
	require.NoError(t, err)
	require.NotNil(t, again)
	assert.Equal(t, job.ID, again.ID)
	assert.Equal(t, 1, again.Attempt)
}

func TestStaleAttemptCannotSettleRequeuedJob(t *testing.T) {
	advance := freezeClock(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	q, _ := newTestQueue(t, Options{LeaseTimeout: time.Minute})
	ctx := context.Background()

	_, _, err := q.Submit(ctx, "abc", testPayload{VideoID: "abc"})
	require.NoError(t, err)
	first, err := q.dequeue(ctx)
	require.NoError(t, err)
	require.NotNil(t, first)

	// 心跳失聯, lease 過期後由另一個 worker 接手
	advance(2 * time.Minute)
	_, err = q.RequeueExpired(ctx)
	require.NoError(t, err)
	second, err := q.dequeue(ctx)
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.Equal(t, first.ID, second.ID)

	assert.ErrorIs(t, q.complete(ctx, first), ErrLeaseLost)
	assert.ErrorIs(t, q.recordFailure(ctx, first, errors.New("late failure")), ErrLeaseLost)

	stats, err := q.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{Active: 1}, stats)
	_, created, err := q.Submit(ctx, "abc", testPayload{VideoID: "abc"})
	require.NoError(t, err)
	assert.False(t, created, "the running attempt still holds the video")

	require.NoError(t, q.complete(ctx, second))
	stats, err = q.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{}, stats)
}

func TestStartProcessesJobsAndShutdownWaits(t *testing.T) {
	q, _ := newTestQueue(t, Options{Workers: 2, PollInterval: 10 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		mu   sync.Mutex
		seen = map[string]int{}
	)
	handler := func(_ context.Context, job *Job) error {
		mu.Lock()
		seen[job.VideoID]++
		mu.Unlock()
		return nil
	}

	for _, id := range []string{"a", "b", "c"} {
		_, _, err := q.Submit(ctx, id, testPayload{VideoID: id})
		require.NoError(t, err)
	}
	require.NoError(t, q.Start(ctx, handler))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 3
	}, 2*time.Second, 10*time.Millisecond)

	shutdownCtx, done := context.WithTimeout(context.Background(), time.Second)
	defer done()
	require.NoError(t, q.Shutdown(shutdownCtx))
	assert.ErrorIs(t, q.Start(ctx, handler), ErrQueueStopped)

	mu.Lock()
	defer mu.Unlock()
	for id, n := range seen {
		assert.Equal(t, 1, n, id)
	}
}

func TestBackoffDelay(t *testing.T) {
	b := Backoff{Base: 5 * time.Second, Factor: 2}
	assert.Equal(t, 5*time.Second, b.Delay(1))
	assert.Equal(t, 10*time.Second, b.Delay(2))
	assert.Equal(t, 20*time.Second, b.Delay(3))
	assert.Equal(t, 40*time.Second, b.Delay(4))

	capped := Backoff{Base: 5 * time.Second, Factor: 2, Max: 15 * time.Second}
	assert.Equal(t, 15*time.Second, capped.Delay(3))

	assert.Equal(t, defaultBackoffBase, Backoff{}.Delay(1))
	assert.Equal(t, defaultBackoffBase, Backoff{}.Delay(0))
}
