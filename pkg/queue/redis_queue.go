package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"time"

	"video_pipeline_service/pkg/logger"
	"video_pipeline_service/pkg/metrics"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultMaxAttempts  = 5
	defaultLeaseTimeout = 5 * time.Minute
	defaultPollInterval = time.Second
	moveBatch           = 100
)

// ErrQueueStopped Start called after Shutdown
var ErrQueueStopped = errors.New("queue stopped")

// ErrLeaseLost the lease expired and the job was handed to another attempt, this outcome is dropped
var ErrLeaseLost = errors.New("job lease lost")

// Handler run one attempt of a job. A nil return completes the job.
type Handler func(ctx context.Context, job *Job) error

// Options queue tuning, zero values take defaults
type Options struct {
	Name         string
	Workers      int
	MaxAttempts  int
	Backoff      Backoff
	LeaseTimeout time.Duration
	PollInterval time.Duration
}

// now swapped in tests
var now = time.Now

// Queue durable retrying job queue on redis. A job lives in exactly one of wait, delayed, active or failed.
type Queue struct {
	client redis.UniversalClient
	opts   Options

	keyJobs    string
	keyWait    string
	keyDelayed string
	keyActive  string
	keyFailed  string
	keyDedup   string
	keyLeases  string

	mu      sync.Mutex
	started bool
	stopped bool
	stop    chan struct{}
	wg      sync.WaitGroup
}

// New create a queue bound to client
func New(client redis.UniversalClient, opts Options) *Queue {
	if opts.Name == "" {
		opts.Name = "transcode"
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU() / 2
		if opts.Workers < 1 {
			opts.Workers = 1
		}
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	if opts.LeaseTimeout <= 0 {
		opts.LeaseTimeout = defaultLeaseTimeout
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}

	prefix := "queue:" + opts.Name + ":"
	return &Queue{
		client:     client,
		opts:       opts,
		keyJobs:    prefix + "jobs",
		keyWait:    prefix + "wait",
		keyDelayed: prefix + "delayed",
		keyActive:  prefix + "active",
		keyFailed:  prefix + "failed",
		keyDedup:   prefix + "video:",
		keyLeases:  prefix + "leases",
		stop:       make(chan struct{}),
	}
}

// Options effective options after defaults
func (q *Queue) Options() Options {
	return q.opts
}

// Submit enqueue a job for videoID. While a job for the video is live (waiting, delayed or active)
// the existing job id is returned with created=false.
func (q *Queue) Submit(ctx context.Context, videoID string, payload interface{}) (string, bool, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", false, fmt.Errorf("marshal payload: %w", err)
	}

	job := Job{
		ID:          uuid.NewString(),
		VideoID:     videoID,
		MaxAttempts: q.opts.MaxAttempts,
		Payload:     raw,
		EnqueuedAt:  now().UTC(),
	}
	data, err := json.Marshal(job)
	if err != nil {
		return "", false, fmt.Errorf("marshal job: %w", err)
	}

	res, err := submitScript.Run(ctx, q.client,
		[]string{q.keyDedup + videoID, q.keyJobs, q.keyWait},
		job.ID, data,
	).Slice()
	if err != nil {
		return "", false, fmt.Errorf("submit job videoID[%s]: %w", videoID, err)
	}
	if len(res) != 2 {
		return "", false, fmt.Errorf("submit job videoID[%s]: unexpected reply %v", videoID, res)
	}

	created, _ := res[0].(int64)
	id, _ := res[1].(string)
	metrics.JobsSubmitted.WithLabelValues(strconv.FormatBool(created == 1)).Inc()
	return id, created == 1, nil
}

// Start launch the worker pool and the scheduler. Attempts run on a context detached from ctx,
// so cancelling ctx or calling Shutdown never interrupts a running attempt.
func (q *Queue) Start(ctx context.Context, handler Handler) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.stopped {
		return ErrQueueStopped
	}
	if q.started {
		return nil
	}
	q.started = true

	runCtx := context.WithoutCancel(ctx)
	go func() {
		select {
		case <-ctx.Done():
			q.signalStop()
		case <-q.stop:
		}
	}()

	q.wg.Add(1)
	go q.schedule(runCtx)
	for i := 0; i < q.opts.Workers; i++ {
		q.wg.Add(1)
		go q.worker(runCtx, handler)
	}

	logger.Log.Info("queue started",
		zap.String("queue", q.opts.Name),
		zap.Int("workers", q.opts.Workers),
		zap.Int("maxAttempts", q.opts.MaxAttempts),
	)
	return nil
}

// Shutdown stop dequeuing and wait for in-flight attempts until ctx expires
func (q *Queue) Shutdown(ctx context.Context) error {
	q.signalStop()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *Queue) signalStop() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.stopped {
		q.stopped = true
		close(q.stop)
	}
}

func (q *Queue) stopping() bool {
	select {
	case <-q.stop:
		return true
	default:
		return false
	}
}

// schedule promote due delayed jobs and requeue active jobs whose lease expired
func (q *Queue) schedule(ctx context.Context) {
	defer q.wg.Done()
	ticker := time.NewTicker(q.opts.PollInterval)
	defer ticker.Stop()

	for {
		if _, err := q.PromoteDue(ctx); err != nil {
			logger.Log.Warn("promote delayed jobs failed", zap.String("queue", q.opts.Name), zap.Error(err))
		}
		if _, err := q.RequeueExpired(ctx); err != nil {
			logger.Log.Warn("requeue expired leases failed", zap.String("queue", q.opts.Name), zap.Error(err))
		}

		select {
		case <-q.stop:
			return
		case <-ticker.C:
		}
	}
}

// PromoteDue move delayed jobs whose backoff elapsed to wait
func (q *Queue) PromoteDue(ctx context.Context) (int64, error) {
	return moveDueScript.Run(ctx, q.client,
		[]string{q.keyDelayed, q.keyWait},
		now().UnixMilli(), moveBatch,
	).Int64()
}

// RequeueExpired move active jobs with an expired lease back to wait. The attempt is not counted,
// the owning worker is presumed dead.
func (q *Queue) RequeueExpired(ctx context.Context) (int64, error) {
	n, err := moveDueScript.Run(ctx, q.client,
		[]string{q.keyActive, q.keyWait},
		now().UnixMilli(), moveBatch,
	).Int64()
	if err == nil && n > 0 {
		logger.Log.Warn("requeued jobs with expired lease", zap.String("queue", q.opts.Name), zap.Int64("count", n))
	}
	return n, err
}

func (q *Queue) worker(ctx context.Context, handler Handler) {
	defer q.wg.Done()
	for {
		if q.stopping() {
			return
		}

		job, err := q.dequeue(ctx)
		if err != nil {
			logger.Log.Warn("dequeue failed", zap.String("queue", q.opts.Name), zap.Error(err))
		}
		if job == nil {
			select {
			case <-q.stop:
				return
			case <-time.After(q.opts.PollInterval):
			}
			continue
		}

		q.process(ctx, handler, job)
	}
}

func (q *Queue) dequeue(ctx context.Context) (*Job, error) {
	deadline := now().Add(q.opts.LeaseTimeout).UnixMilli()
	res, err := dequeueScript.Run(ctx, q.client,
		[]string{q.keyWait, q.keyActive, q.keyJobs, q.keyLeases},
		deadline,
	).Slice()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(res) != 3 {
		return nil, fmt.Errorf("dequeue: unexpected reply %v", res)
	}

	data, _ := res[1].(string)
	var job Job
	if err := json.Unmarshal([]byte(data), &job); err != nil {
		id, _ := res[0].(string)
		return nil, fmt.Errorf("decode job[%s]: %w", id, err)
	}
	job.Attempt = job.AttemptsMade + 1
	job.lease, _ = res[2].(int64)
	return &job, nil
}

// process run one attempt under a lease heartbeat and record its outcome
func (q *Queue) process(ctx context.Context, handler Handler, job *Job) {
	metrics.ActiveJobs.Inc()
	defer metrics.ActiveJobs.Dec()

	hbCtx, stopHeartbeat := context.WithCancel(ctx)
	go q.heartbeat(hbCtx, job)

	err := runHandler(ctx, handler, job)
	stopHeartbeat()

	if err == nil {
		if err := q.complete(ctx, job); err != nil {
			q.logSettleErr("complete job failed", job, err)
			return
		}
		metrics.JobOutcomes.WithLabelValues("completed").Inc()
		return
	}

	if err := q.recordFailure(ctx, job, err); err != nil {
		q.logSettleErr("record job failure failed", job, err)
	}
}

func (q *Queue) logSettleErr(msg string, job *Job, err error) {
	if errors.Is(err, ErrLeaseLost) {
		logger.Log.Warn("attempt outcome discarded, lease taken over",
			zap.String("jobID", job.ID),
			zap.Int("attempt", job.Attempt),
		)
		return
	}
	logger.Log.Error(msg, zap.String("jobID", job.ID), zap.Error(err))
}

func runHandler(ctx context.Context, handler Handler, job *Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return handler(ctx, job)
}

func (q *Queue) heartbeat(ctx context.Context, job *Job) {
	ticker := time.NewTicker(q.opts.LeaseTimeout / 3)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deadline := now().Add(q.opts.LeaseTimeout).UnixMilli()
			if err := extendScript.Run(ctx, q.client,
				[]string{q.keyActive, q.keyLeases},
				job.ID, job.lease, deadline,
			).Err(); err != nil {
				logger.Log.Warn("extend lease failed", zap.String("jobID", job.ID), zap.Error(err))
			}
		}
	}
}

func (q *Queue) complete(ctx context.Context, job *Job) error {
	n, err := completeScript.Run(ctx, q.client,
		[]string{q.keyActive, q.keyJobs, q.keyDedup + job.VideoID, q.keyLeases},
		job.ID, job.lease,
	).Int64()
	return q.settled(job, n, err)
}

// settled turn a settle script reply into ErrLeaseLost when another dequeue owns the job now
func (q *Queue) settled(job *Job, n int64, err error) error {
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("job[%s] attempt %d: %w", job.ID, job.Attempt, ErrLeaseLost)
	}
	return nil
}

// recordFailure count the attempt, then schedule a retry after backoff or park the job in failed
func (q *Queue) recordFailure(ctx context.Context, job *Job, cause error) error {
	job.AttemptsMade = job.Attempt
	job.LastError = cause.Error()

	if job.AttemptsMade >= job.MaxAttempts {
		failedAt := now().UTC()
		job.FailedAt = &failedAt
		data, err := json.Marshal(job)
		if err != nil {
			return err
		}
		logger.Log.Warn("job exhausted attempts",
			zap.String("jobID", job.ID),
			zap.String("videoID", job.VideoID),
			zap.Int("attempts", job.AttemptsMade),
			zap.Error(cause),
		)
		metrics.JobOutcomes.WithLabelValues("exhausted").Inc()
		n, err := failScript.Run(ctx, q.client,
			[]string{q.keyActive, q.keyJobs, q.keyFailed, q.keyDedup + job.VideoID, q.keyLeases},
			job.ID, data, failedAt.UnixMilli(), job.lease,
		).Int64()
		return q.settled(job, n, err)
	}

	delay := q.opts.Backoff.Delay(job.AttemptsMade)
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	logger.Log.Info("job attempt failed, retry scheduled",
		zap.String("jobID", job.ID),
		zap.String("videoID", job.VideoID),
		zap.Int("attempt", job.AttemptsMade),
		zap.Duration("delay", delay),
		zap.Error(cause),
	)
	metrics.JobOutcomes.WithLabelValues("retried").Inc()
	n, err := retryScript.Run(ctx, q.client,
		[]string{q.keyActive, q.keyJobs, q.keyDelayed, q.keyLeases},
		job.ID, data, now().Add(delay).UnixMilli(), job.lease,
	).Int64()
	return q.settled(job, n, err)
}

// FailedJobs exhausted jobs, most recent first
func (q *Queue) FailedJobs(ctx context.Context) ([]Job, error) {
	ids, err := q.client.ZRevRange(ctx, q.keyFailed, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list failed jobs: %w", err)
	}
	if len(ids) == 0 {
		return []Job{}, nil
	}

	values, err := q.client.HMGet(ctx, q.keyJobs, ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("load failed jobs: %w", err)
	}

	jobs := make([]Job, 0, len(values))
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		var job Job
		if err := json.Unmarshal([]byte(s), &job); err != nil {
			logger.Log.Warn("skip undecodable failed job", zap.String("jobID", ids[i]), zap.Error(err))
			continue
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// Stats job counts per set
func (q *Queue) Stats(ctx context.Context) (Stats, error) {
	pipe := q.client.Pipeline()
	wait := pipe.LLen(ctx, q.keyWait)
	delayed := pipe.ZCard(ctx, q.keyDelayed)
	active := pipe.ZCard(ctx, q.keyActive)
	failed := pipe.ZCard(ctx, q.keyFailed)
	if _, err := pipe.Exec(ctx); err != nil {
		return Stats{}, fmt.Errorf("queue stats: %w", err)
	}
	return Stats{
		Waiting: wait.Val(),
		Delayed: delayed.Val(),
		Active:  active.Val(),
		Failed:  failed.Val(),
	}, nil
}
