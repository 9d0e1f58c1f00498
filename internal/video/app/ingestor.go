package app

import (
	"context"
	"errors"
	"time"

	"video_pipeline_service/internal/video/domain"
	"video_pipeline_service/internal/video/repository"
	"video_pipeline_service/pkg/logger"
	"video_pipeline_service/pkg/metrics"
	"video_pipeline_service/pkg/notification"

	"go.uber.org/zap"
)

const (
	defaultBatchSize     = 5
	defaultWaitTime      = 20 * time.Second
	receiveBackoffStart  = time.Second
	receiveBackoffMax    = 30 * time.Second
	defaultReconcileTick = time.Minute
)

// IngestorOptions receive loop tuning
type IngestorOptions struct {
	BatchSize         int
	WaitTime          time.Duration
	ReconcileInterval time.Duration
}

// Ingestor 監聽上傳完成通知並把影片送進轉碼佇列
type Ingestor struct {
	source    notification.Source
	admission *Admission
	repo      repository.VideoRepo
	opts      IngestorOptions
}

// NewIngestor create Ingestor
func NewIngestor(source notification.Source, admission *Admission, repo repository.VideoRepo, opts IngestorOptions) *Ingestor {
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	if opts.WaitTime <= 0 {
		opts.WaitTime = defaultWaitTime
	}
	if opts.ReconcileInterval <= 0 {
		opts.ReconcileInterval = defaultReconcileTick
	}
	return &Ingestor{source: source, admission: admission, repo: repo, opts: opts}
}

// sleepCtx swapped in tests
var sleepCtx = func(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// Run receive loop, returns nil once ctx is cancelled
func (i *Ingestor) Run(ctx context.Context) error {
	logger.Log.Info("ingestor started",
		zap.Int("batch", i.opts.BatchSize),
		zap.Duration("wait", i.opts.WaitTime),
	)
	backoff := receiveBackoffStart
	for {
		if ctx.Err() != nil {
			logger.Log.Info("ingestor stopped")
			return nil
		}

		msgs, err := i.source.Receive(ctx, i.opts.BatchSize, i.opts.WaitTime)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			if errors.Is(err, notification.ErrSourceClosed) {
				return err
			}
			logger.Log.Error("receive notifications failed", zap.Duration("backoff", backoff), zap.Error(err))
			sleepCtx(ctx, backoff)
			backoff *= 2
			if backoff > receiveBackoffMax {
				backoff = receiveBackoffMax
			}
			continue
		}
		backoff = receiveBackoffStart

		for _, msg := range msgs {
			i.HandleMessage(ctx, msg)
		}
	}
}

// HandleMessage admit every raw upload in the message, then ack it. Any admission failure
// releases the whole message for redelivery; admission is idempotent so replaying is safe.
func (i *Ingestor) HandleMessage(ctx context.Context, msg notification.Message) {
	keys, err := notification.ObjectKeys(msg.Body)
	if err != nil {
		logger.Log.Warn("unparseable notification, discarded", zap.String("messageID", msg.ID), zap.Error(err))
		metrics.IngestedMessages.WithLabelValues("discarded").Inc()
		i.ack(ctx, msg)
		return
	}

	admitted := 0
	for _, key := range keys {
		videoID, ok := domain.ParseRawKey(key)
		if !ok {
			logger.Log.Debug("not a raw upload key, skipped", zap.String("key", key))
			continue
		}
		ok, err := i.admission.Admit(ctx, videoID)
		if err != nil {
			logger.Log.Error("admission failed, message released",
				zap.String("messageID", msg.ID),
				zap.String("videoID", videoID),
				zap.Error(err),
			)
			metrics.IngestedMessages.WithLabelValues("released").Inc()
			if err := i.source.Release(ctx, msg); err != nil {
				logger.Log.Error("release message failed", zap.String("messageID", msg.ID), zap.Error(err))
			}
			return
		}
		if ok {
			admitted++
		}
	}

	if admitted > 0 {
		metrics.IngestedMessages.WithLabelValues("admitted").Inc()
	} else {
		metrics.IngestedMessages.WithLabelValues("discarded").Inc()
	}
	i.ack(ctx, msg)
}

func (i *Ingestor) ack(ctx context.Context, msg notification.Message) {
	if err := i.source.Ack(ctx, msg); err != nil {
		logger.Log.Error("ack message failed", zap.String("messageID", msg.ID), zap.Error(err))
	}
}

// Reconcile resubmit videos left in queued by a submission that failed after the transition.
// Submission dedups per video, so a video with a live job is not queued twice.
func (i *Ingestor) Reconcile(ctx context.Context) (int, error) {
	videos, err := i.repo.ListByStatus(ctx, domain.StatusQueued)
	if err != nil {
		return 0, err
	}
	n := 0
	for idx := range videos {
		if err := i.admission.Resubmit(ctx, &videos[idx]); err != nil {
			logger.Log.Error("reconcile submit failed", zap.String("videoID", videos[idx].ID), zap.Error(err))
			continue
		}
		n++
	}
	return n, nil
}

// RunReconciler Reconcile now and then every ReconcileInterval until ctx is done
func (i *Ingestor) RunReconciler(ctx context.Context) error {
	ticker := time.NewTicker(i.opts.ReconcileInterval)
	defer ticker.Stop()
	for {
		if n, err := i.Reconcile(ctx); err != nil {
			logger.Log.Error("reconcile failed", zap.Error(err))
		} else if n > 0 {
			logger.Log.Info("reconciled queued videos", zap.Int("count", n))
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
