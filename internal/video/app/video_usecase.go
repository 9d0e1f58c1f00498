package app

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"video_pipeline_service/internal/video/domain"
	"video_pipeline_service/internal/video/repository"
	"video_pipeline_service/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultUploadTTL = 10 * time.Minute

// VideoUseCase 對外提供的影片服務
type VideoUseCase interface {
	List(ctx context.Context) ([]domain.Video, error)
	Get(ctx context.Context, videoID string) (*domain.Video, error)
	Retry(ctx context.Context, videoID string) error
	RequestUpload(ctx context.Context, title, filename string) (*domain.UploadSlot, error)
	CompleteUpload(ctx context.Context, videoID string) (bool, error)
}

type videoUseCase struct {
	repo      repository.VideoRepo
	store     ObjectStore
	queue     JobQueue
	admission *Admission
	uploadTTL time.Duration
}

// NewVideoUseCase create VideoUseCase
func NewVideoUseCase(repo repository.VideoRepo, store ObjectStore, queue JobQueue, uploadTTL time.Duration) VideoUseCase {
	if uploadTTL <= 0 {
		uploadTTL = defaultUploadTTL
	}
	return &videoUseCase{
		repo:      repo,
		store:     store,
		queue:     queue,
		admission: NewAdmission(repo, queue),
		uploadTTL: uploadTTL,
	}
}

// newVideoID swapped in tests
var newVideoID = func() string { return uuid.NewString() }

func (u *videoUseCase) List(ctx context.Context) ([]domain.Video, error) {
	return u.repo.List(ctx)
}

func (u *videoUseCase) Get(ctx context.Context, videoID string) (*domain.Video, error) {
	return u.repo.Read(ctx, videoID)
}

// Retry 人工重試, only a failed video is re-armed. The old lastError is cleared and
// failCount is kept.
func (u *videoUseCase) Retry(ctx context.Context, videoID string) error {
	v, err := u.repo.Read(ctx, videoID)
	if err != nil {
		return err
	}
	if v.Status != domain.StatusFailed {
		return fmt.Errorf("video[%s] is %s: %w", videoID, v.Status, domain.ErrNotRetryable)
	}

	applied, err := u.repo.Transition(ctx, videoID, domain.StatusFailed, domain.StatusProcessing, domain.Fields{ClearLastError: true})
	if err != nil {
		return err
	}
	if !applied {
		return fmt.Errorf("video[%s] changed concurrently: %w", videoID, domain.ErrNotRetryable)
	}

	jobID, created, err := u.queue.Submit(ctx, videoID, domain.TranscodeJob{VideoID: videoID, RawKey: v.RawKey})
	if err != nil {
		// 退回 failed, 讓 operator 可以再重試
		msg := "retry submit failed: " + err.Error()
		if _, rerr := u.repo.Transition(ctx, videoID, domain.StatusProcessing, domain.StatusFailed, domain.Fields{LastError: &msg}); rerr != nil {
			logger.Log.Error("revert retry to failed",
				zap.String("videoID", videoID),
				zap.NamedError("submitErr", err),
				zap.Error(rerr),
			)
		}
		return domain.Transient("submit retry job", err)
	}
	logger.Log.Info("manual retry submitted",
		zap.String("videoID", videoID),
		zap.String("jobID", jobID),
		zap.Bool("created", created),
	)
	return nil
}

// RequestUpload 建立 uploaded 紀錄並回傳 presigned PUT URL
func (u *videoUseCase) RequestUpload(ctx context.Context, title, filename string) (*domain.UploadSlot, error) {
	ext := strings.ToLower(path.Ext(filename))
	id := newVideoID()
	key := domain.RawKey(id, ext)

	url, err := u.store.PresignPutURL(ctx, key, u.uploadTTL)
	if err != nil {
		return nil, domain.Transient("presign upload", err)
	}
	if strings.TrimSpace(title) == "" && filename != "" {
		title = strings.TrimSuffix(path.Base(filename), path.Ext(filename))
	}
	if _, err := u.repo.Create(ctx, id, title, key); err != nil {
		return nil, err
	}
	return &domain.UploadSlot{
		VideoID:   id,
		Key:       key,
		UploadURL: url,
		ExpiresIn: int(u.uploadTTL / time.Second),
	}, nil
}

// CompleteUpload admission triggered by the client instead of the bucket notification
func (u *videoUseCase) CompleteUpload(ctx context.Context, videoID string) (bool, error) {
	if _, err := u.repo.Read(ctx, videoID); err != nil {
		return false, err
	}
	return u.admission.Admit(ctx, videoID)
}
