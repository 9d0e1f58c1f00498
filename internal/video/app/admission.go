package app

import (
	"context"
	"errors"
	"fmt"

	"video_pipeline_service/internal/video/domain"
	"video_pipeline_service/internal/video/repository"
	"video_pipeline_service/pkg/logger"

	"go.uber.org/zap"
)

// Admission moves an uploaded video into the queue, shared by the ingestor and the upload-complete API
type Admission struct {
	repo  repository.VideoRepo
	queue JobQueue
}

// NewAdmission create Admission
func NewAdmission(repo repository.VideoRepo, queue JobQueue) *Admission {
	return &Admission{repo: repo, queue: queue}
}

// Admit 只有 uploaded 的影片會被送進佇列.
// (false, nil) means nothing to do: the video is missing, past uploaded, or another admission won the race.
// An error after the transition landed leaves the video in queued for Reconcile to resubmit.
func (a *Admission) Admit(ctx context.Context, videoID string) (bool, error) {
	v, err := a.repo.Read(ctx, videoID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			logger.Log.Warn("admission: unknown video, discarded", zap.String("videoID", videoID))
			return false, nil
		}
		return false, err
	}
	if v.Status != domain.StatusUploaded {
		logger.Log.Info("admission: video already admitted",
			zap.String("videoID", videoID),
			zap.String("status", string(v.Status)),
		)
		return false, nil
	}

	applied, err := a.repo.Transition(ctx, videoID, domain.StatusUploaded, domain.StatusQueued, domain.Fields{})
	if err != nil {
		return false, err
	}
	if !applied {
		return false, nil
	}

	if err := a.submit(ctx, v); err != nil {
		return false, err
	}
	return true, nil
}

// Resubmit submit a job for a video already in queued
func (a *Admission) Resubmit(ctx context.Context, v *domain.Video) error {
	return a.submit(ctx, v)
}

func (a *Admission) submit(ctx context.Context, v *domain.Video) error {
	jobID, created, err := a.queue.Submit(ctx, v.ID, domain.TranscodeJob{VideoID: v.ID, RawKey: v.RawKey})
	if err != nil {
		return domain.Transient("submit job", fmt.Errorf("video[%s]: %w", v.ID, err))
	}
	logger.Log.Info("transcode job submitted",
		zap.String("videoID", v.ID),
		zap.String("jobID", jobID),
		zap.Bool("created", created),
	)
	return nil
}
