package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"video_pipeline_service/internal/video/domain"

	"gorm.io/gorm"
)

// VideoRepo video state store, the only writer of lifecycle state
type VideoRepo interface {
	Read(ctx context.Context, id string) (*domain.Video, error)
	Create(ctx context.Context, id, title, rawKey string) (*domain.Video, error)
	// Transition conditional update. A status other than expected is a no-op reported as (false, nil).
	Transition(ctx context.Context, id string, expected, next domain.Status, fields domain.Fields) (bool, error)
	List(ctx context.Context) ([]domain.Video, error)
	ListByStatus(ctx context.Context, status domain.Status) ([]domain.Video, error)
}

type videoRepo struct {
	db *gorm.DB
}

// NewVideoRepo create VideoRepo
func NewVideoRepo(db *gorm.DB) VideoRepo {
	return &videoRepo{db: db}
}

// nowFunc swapped in tests
var nowFunc = func() time.Time { return time.Now().UTC() }

// Read get video by id
func (r *videoRepo) Read(ctx context.Context, id string) (*domain.Video, error) {
	var v domain.Video
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&v).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("video[%s]: %w", id, domain.ErrNotFound)
		}
		return nil, domain.Transient("read video", err)
	}
	return &v, nil
}

// Create insert an uploaded video
func (r *videoRepo) Create(ctx context.Context, id, title, rawKey string) (*domain.Video, error) {
	now := nowFunc()
	v := &domain.Video{
		ID:        id,
		Title:     title,
		Status:    domain.StatusUploaded,
		RawKey:    rawKey,
		Variants:  domain.Variants{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := r.db.WithContext(ctx).Create(v).Error; err != nil {
		return nil, fmt.Errorf("create video[%s]: %w", id, err)
	}
	return v, nil
}

// Transition 以 WHERE status = expected 做條件更新, RowsAffected 0 means another writer got there first
func (r *videoRepo) Transition(ctx context.Context, id string, expected, next domain.Status, fields domain.Fields) (bool, error) {
	if !domain.CanTransition(expected, next) {
		return false, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, expected, next)
	}
	if err := fields.Validate(next); err != nil {
		return false, err
	}

	res := r.db.WithContext(ctx).
		Model(&domain.Video{}).
		Where("id = ? AND status = ?", id, string(expected)).
		Updates(updateColumns(next, fields))
	if res.Error != nil {
		return false, domain.Transient("transition video", res.Error)
	}
	if res.RowsAffected > 0 {
		return true, nil
	}

	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.Video{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, domain.Transient("transition video", err)
	}
	if count == 0 {
		return false, fmt.Errorf("video[%s]: %w", id, domain.ErrNotFound)
	}
	return false, nil
}

// updateColumns raw_key is never part of an update
func updateColumns(next domain.Status, f domain.Fields) map[string]interface{} {
	cols := map[string]interface{}{
		"status":     string(next),
		"updated_at": nowFunc(),
	}
	if f.ThumbKey != nil {
		cols["thumb_key"] = *f.ThumbKey
	}
	if len(f.Variants) > 0 {
		cols["variants"] = f.Variants
	}
	if f.LastError != nil {
		cols["last_error"] = *f.LastError
	}
	if f.ClearLastError {
		cols["last_error"] = nil
	}
	if f.IncrementFailCount {
		cols["fail_count"] = gorm.Expr("fail_count + ?", 1)
	}
	if f.ProcessingStartedAt != nil {
		cols["processing_started_at"] = *f.ProcessingStartedAt
	}
	if f.ThumbGeneratedAt != nil {
		cols["thumb_generated_at"] = *f.ThumbGeneratedAt
	}
	if f.TranscodedAt != nil {
		cols["transcoded_at"] = *f.TranscodedAt
	}
	return cols
}

// List all videos, newest first
func (r *videoRepo) List(ctx context.Context) ([]domain.Video, error) {
	var videos []domain.Video
	if err := r.db.WithContext(ctx).Order("created_at DESC").Find(&videos).Error; err != nil {
		return nil, domain.Transient("list videos", err)
	}
	return videos, nil
}

// ListByStatus videos in status, oldest first
func (r *videoRepo) ListByStatus(ctx context.Context, status domain.Status) ([]domain.Video, error) {
	var videos []domain.Video
	if err := r.db.WithContext(ctx).Where("status = ?", string(status)).Order("created_at ASC").Find(&videos).Error; err != nil {
		return nil, domain.Transient("list videos by status", err)
	}
	return videos, nil
}
