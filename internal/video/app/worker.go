package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	"video_pipeline_service/internal/video/domain"
	"video_pipeline_service/internal/video/repository"
	"video_pipeline_service/pkg/database"
	"video_pipeline_service/pkg/logger"
	"video_pipeline_service/pkg/metrics"
	"video_pipeline_service/pkg/queue"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
)

const (
	defaultScratchDir      = "./tmp"
	defaultThumbnailOffset = 2 * time.Second
	defaultStepRetries     = 2
	defaultStepBackoff     = 500 * time.Millisecond
)

// errStaleJob the video left processing, the job has nothing left to do
var errStaleJob = errors.New("stale job")

// WorkerOptions transcode worker tuning
type WorkerOptions struct {
	ScratchDir      string
	ThumbnailOffset time.Duration
	// HighResMinimum source height that also gets a 720p rendition
	HighResMinimum int
	// StepRetries in-place retries for transient store errors, on top of the first try
	StepRetries uint64
	StepBackoff time.Duration
}

// TranscodeWorker 處理一個轉碼工作:
// fetch raw, thumbnail, 480p, optional 720p, finalize.
// Every attempt restarts from the raw object; artifacts of an earlier attempt are overwritten.
type TranscodeWorker struct {
	repo        repository.VideoRepo
	deadLetters repository.DeadLetterRepo
	store       ObjectStore
	engine      Transcoder
	opts        WorkerOptions
}

// NewTranscodeWorker create TranscodeWorker
func NewTranscodeWorker(repo repository.VideoRepo, deadLetters repository.DeadLetterRepo, store ObjectStore, engine Transcoder, opts WorkerOptions) *TranscodeWorker {
	if opts.ScratchDir == "" {
		opts.ScratchDir = defaultScratchDir
	}
	if opts.ThumbnailOffset <= 0 {
		opts.ThumbnailOffset = defaultThumbnailOffset
	}
	if opts.HighResMinimum <= 0 {
		opts.HighResMinimum = domain.Resolution720p.Height()
	}
	if opts.StepRetries == 0 {
		opts.StepRetries = defaultStepRetries
	}
	if opts.StepBackoff <= 0 {
		opts.StepBackoff = defaultStepBackoff
	}
	return &TranscodeWorker{repo: repo, deadLetters: deadLetters, store: store, engine: engine, opts: opts}
}

// 讓 worker test 可以替換檔案操作
var (
	removeFile = os.Remove
	createDir  = func(p string) error { return os.MkdirAll(p, 0o755) }
)

// Process queue.Handler. A nil return completes the job; an error consumes one attempt.
func (w *TranscodeWorker) Process(ctx context.Context, job *queue.Job) error {
	var payload domain.TranscodeJob
	if err := job.Decode(&payload); err != nil {
		err = fmt.Errorf("decode job[%s]: %w", job.ID, err)
		if job.FinalAttempt() {
			w.fail(ctx, job, job.VideoID, err, false)
		}
		return err
	}
	if payload.VideoID == "" {
		payload.VideoID = job.VideoID
	}

	log := logger.Log.With(
		zap.String("videoID", payload.VideoID),
		zap.String("jobID", job.ID),
		zap.Int("attempt", job.Attempt),
	)
	log.Info("transcode attempt started")

	claimed, err := w.attempt(ctx, payload, job.Attempt)
	switch {
	case err == nil:
		log.Info("transcode attempt finished")
		return nil
	case errors.Is(err, errStaleJob):
		log.Info("stale job acknowledged without work")
		return nil
	}

	if job.FinalAttempt() {
		w.fail(ctx, job, payload.VideoID, err, claimed)
	} else {
		log.Warn("transcode attempt failed", zap.Error(err))
	}
	return err
}

// attempt run every step once, claimed reports whether the video was seen in processing
func (w *TranscodeWorker) attempt(ctx context.Context, payload domain.TranscodeJob, attempt int) (claimed bool, err error) {
	v, err := w.preflight(ctx, payload.VideoID)
	if err != nil {
		return false, err
	}
	return true, w.run(ctx, v, payload, attempt)
}

func (w *TranscodeWorker) run(ctx context.Context, v *domain.Video, payload domain.TranscodeJob, attempt int) error {
	rawKey := v.RawKey
	if rawKey == "" {
		rawKey = payload.RawKey
	}

	var scratch []string
	defer func() { w.cleanup(scratch) }()
	scratchPath := func(name string) string {
		p := filepath.Join(w.opts.ScratchDir, fmt.Sprintf("%s-a%d-%s", v.ID, attempt, name))
		scratch = append(scratch, p)
		return p
	}

	if err := createDir(w.opts.ScratchDir); err != nil {
		return fmt.Errorf("create scratch dir: %w", err)
	}

	// fetch
	rawPath := scratchPath("raw" + path.Ext(rawKey))
	if err := w.step(ctx, "fetch", func(ctx context.Context) error {
		return storeErr("download raw", w.store.DownloadFile(ctx, rawKey, rawPath))
	}); err != nil {
		return err
	}

	// thumbnail
	thumbPath := scratchPath("thumb.jpg")
	if err := w.engineStep("thumbnail", func() error {
		return w.engine.ExtractFrame(ctx, rawPath, thumbPath, w.opts.ThumbnailOffset)
	}); err != nil {
		return err
	}
	thumbKey := domain.ThumbKey(v.ID)
	if err := w.step(ctx, "upload_thumbnail", func(ctx context.Context) error {
		return storeErr("upload thumbnail", w.store.UploadFile(ctx, thumbKey, thumbPath, "image/jpeg"))
	}); err != nil {
		return err
	}
	thumbAt := time.Now().UTC()
	if err := w.guarded(ctx, v.ID, domain.StatusProcessing, domain.Fields{ThumbKey: &thumbKey, ThumbGeneratedAt: &thumbAt}); err != nil {
		return err
	}

	// primary variant
	variants := domain.Variants{}
	primary, err := w.encodeVariant(ctx, v.ID, rawPath, domain.Resolution480p, scratchPath)
	if err != nil {
		return err
	}
	variants = append(variants, primary)

	// optional variant
	var height int
	if err := w.engineStep("probe", func() (err error) {
		height, err = w.engine.ProbeHeight(ctx, rawPath)
		return err
	}); err != nil {
		return err
	}
	if height >= w.opts.HighResMinimum {
		high, err := w.encodeVariant(ctx, v.ID, rawPath, domain.Resolution720p, scratchPath)
		if err != nil {
			return err
		}
		variants = append(variants, high)
	} else {
		logger.Log.Debug("source below high-res minimum, 720p skipped",
			zap.String("videoID", v.ID),
			zap.Int("height", height),
		)
	}

	// finalize
	doneAt := time.Now().UTC()
	var applied bool
	err = w.step(ctx, "finalize", func(ctx context.Context) (err error) {
		applied, err = w.repo.Transition(ctx, v.ID, domain.StatusProcessing, domain.StatusProcessed,
			domain.Fields{Variants: variants, TranscodedAt: &doneAt})
		return err
	})
	if err != nil {
		return err
	}
	if !applied {
		logger.Log.Warn("finalize skipped, video left processing", zap.String("videoID", v.ID))
	}
	return nil
}

// preflight 確認影片狀態, queued is claimed here, processing means a retry or an operator re-arm
func (w *TranscodeWorker) preflight(ctx context.Context, videoID string) (*domain.Video, error) {
	var v *domain.Video
	if err := w.step(ctx, "preflight", func(ctx context.Context) (err error) {
		v, err = w.repo.Read(ctx, videoID)
		return err
	}); err != nil {
		return nil, err
	}

	switch v.Status {
	case domain.StatusProcessing:
		return v, nil
	case domain.StatusQueued:
		startedAt := time.Now().UTC()
		var applied bool
		if err := w.step(ctx, "claim", func(ctx context.Context) (err error) {
			applied, err = w.repo.Transition(ctx, videoID, domain.StatusQueued, domain.StatusProcessing,
				domain.Fields{ProcessingStartedAt: &startedAt})
			return err
		}); err != nil {
			return nil, err
		}
		if !applied {
			return nil, fmt.Errorf("video[%s] changed while claiming: %w", videoID, errStaleJob)
		}
		v.Status = domain.StatusProcessing
		return v, nil
	default:
		logger.Log.Info("video not claimable",
			zap.String("videoID", videoID),
			zap.String("status", string(v.Status)),
		)
		return nil, fmt.Errorf("video[%s] is %s: %w", videoID, v.Status, errStaleJob)
	}
}

func (w *TranscodeWorker) encodeVariant(ctx context.Context, videoID, rawPath string, r domain.Resolution, scratchPath func(string) string) (domain.Variant, error) {
	out := scratchPath(string(r) + ".mp4")
	if err := w.engineStep("encode_"+string(r), func() error {
		return w.engine.Encode(ctx, rawPath, out, r)
	}); err != nil {
		return domain.Variant{}, err
	}
	key := domain.VariantKey(videoID, r)
	if err := w.step(ctx, "upload_"+string(r), func(ctx context.Context) error {
		return storeErr("upload "+string(r), w.store.UploadFile(ctx, key, out, "video/mp4"))
	}); err != nil {
		return domain.Variant{}, err
	}
	return domain.Variant{Resolution: r, Key: key}, nil
}

// guarded field update under status, a lost guard means someone else moved the video
func (w *TranscodeWorker) guarded(ctx context.Context, videoID string, status domain.Status, fields domain.Fields) error {
	var applied bool
	if err := w.step(ctx, "update_fields", func(ctx context.Context) (err error) {
		applied, err = w.repo.Transition(ctx, videoID, status, status, fields)
		return err
	}); err != nil {
		return err
	}
	if !applied {
		return fmt.Errorf("video[%s] left %s: %w", videoID, status, errStaleJob)
	}
	return nil
}

// step run fn, retrying transient errors in place
func (w *TranscodeWorker) step(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	defer metrics.ObserveStep(name, time.Now())
	b := retry.WithMaxRetries(w.opts.StepRetries, retry.NewExponential(w.opts.StepBackoff))
	return retry.Do(ctx, b, func(ctx context.Context) error {
		err := fn(ctx)
		if err != nil && domain.IsTransient(err) {
			logger.Log.Warn("transient step error", zap.String("step", name), zap.Error(err))
			return retry.RetryableError(err)
		}
		return err
	})
}

func (w *TranscodeWorker) engineStep(name string, fn func() error) error {
	defer metrics.ObserveStep(name, time.Now())
	return fn()
}

// fail final attempt: dead letter first, then the terminal transition. A video never claimed by this
// job is claimed here so it can reach failed; if the store cannot be reached the video is left for the
// reconciler and no dead letter is written.
func (w *TranscodeWorker) fail(ctx context.Context, job *queue.Job, videoID string, cause error, claimed bool) {
	if !claimed {
		startedAt := time.Now().UTC()
		err := w.step(ctx, "claim", func(ctx context.Context) error {
			_, err := w.repo.Transition(ctx, videoID, domain.StatusQueued, domain.StatusProcessing,
				domain.Fields{ProcessingStartedAt: &startedAt})
			return err
		})
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			logger.Log.Error("final attempt could not reach the video store, dead letter skipped",
				zap.String("videoID", videoID),
				zap.String("jobID", job.ID),
				zap.Error(err),
			)
			return
		}
	}

	record := domain.DeadLetterRecord{
		ID:       uuid.NewString(),
		VideoID:  videoID,
		JobID:    job.ID,
		Error:    cause.Error(),
		Attempts: job.Attempt,
		FailedAt: time.Now().UTC(),
	}
	if err := w.step(ctx, "dead_letter", func(ctx context.Context) error {
		return domain.Transient("append dead letter", w.deadLetters.Append(ctx, record))
	}); err != nil {
		logger.Log.Error("append dead letter failed", zap.String("videoID", videoID), zap.Error(err))
	} else {
		metrics.DeadLetters.Inc()
	}

	msg := cause.Error()
	var applied bool
	err := w.step(ctx, "mark_failed", func(ctx context.Context) (err error) {
		applied, err = w.repo.Transition(ctx, videoID, domain.StatusProcessing, domain.StatusFailed,
			domain.Fields{LastError: &msg, IncrementFailCount: true})
		return err
	})
	switch {
	case err != nil:
		logger.Log.Error("mark video failed", zap.String("videoID", videoID), zap.Error(err))
	case !applied:
		logger.Log.Warn("video not in processing, failure not recorded on video", zap.String("videoID", videoID))
	default:
		logger.Log.Error("video failed after final attempt",
			zap.String("videoID", videoID),
			zap.String("jobID", job.ID),
			zap.Int("attempts", job.Attempt),
			zap.Error(cause),
		)
	}
}

func (w *TranscodeWorker) cleanup(files []string) {
	for _, f := range files {
		if err := removeFile(f); err != nil && !os.IsNotExist(err) {
			logger.Log.Warn("remove scratch file failed", zap.String("path", f), zap.Error(err))
		}
	}
}

// storeErr a missing object aborts the attempt, anything else from the store is transient
func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, database.ErrObjectNotFound) {
		return fmt.Errorf("%s: %w: %v", op, domain.ErrNotFound, err)
	}
	return domain.Transient(op, err)
}
