package inspector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"video_pipeline_service/internal/video/repository"
	"video_pipeline_service/pkg/queue"
)

// Entry one exhausted job as shown to the operator
type Entry struct {
	VideoID  string
	JobID    string
	Attempts int
	Error    string
	FailedAt time.Time
}

// FailedJobLister queue side record of exhausted jobs
type FailedJobLister interface {
	FailedJobs(ctx context.Context) ([]queue.Job, error)
}

// Loader fetch the current entries
type Loader func(ctx context.Context) ([]Entry, error)

// NewLoader read the dead letter sink; a write-only sink (kafka) falls back to the queue's failed set
func NewLoader(deadLetters repository.DeadLetterRepo, failed FailedJobLister, limit int64) Loader {
	return func(ctx context.Context) ([]Entry, error) {
		if deadLetters != nil {
			records, err := deadLetters.List(ctx, limit)
			if err == nil {
				entries := make([]Entry, 0, len(records))
				for _, r := range records {
					entries = append(entries, Entry{
						VideoID:  r.VideoID,
						JobID:    r.JobID,
						Attempts: r.Attempts,
						Error:    r.Error,
						FailedAt: r.FailedAt,
					})
				}
				return entries, nil
			}
			if !errors.Is(err, repository.ErrListUnsupported) {
				return nil, err
			}
		}

		jobs, err := failed.FailedJobs(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed jobs: %w", err)
		}
		entries := make([]Entry, 0, len(jobs))
		for _, j := range jobs {
			e := Entry{VideoID: j.VideoID, JobID: j.ID, Attempts: j.AttemptsMade, Error: j.LastError}
			if j.FailedAt != nil {
				e.FailedAt = *j.FailedAt
			}
			entries = append(entries, e)
			if limit > 0 && int64(len(entries)) >= limit {
				break
			}
		}
		return entries, nil
	}
}
