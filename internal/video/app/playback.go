package app

import (
	"context"
	"fmt"
	"time"

	"video_pipeline_service/internal/video/domain"
	"video_pipeline_service/internal/video/repository"
)

const defaultPlaybackTTL = time.Hour

// PlaybackResolver turn a processed video into a time-limited rendition URL
type PlaybackResolver struct {
	repo  repository.VideoRepo
	store ObjectStore
	ttl   time.Duration
}

// NewPlaybackResolver create PlaybackResolver, ttl <= 0 uses one hour
func NewPlaybackResolver(repo repository.VideoRepo, store ObjectStore, ttl time.Duration) *PlaybackResolver {
	if ttl <= 0 {
		ttl = defaultPlaybackTTL
	}
	return &PlaybackResolver{repo: repo, store: store, ttl: ttl}
}

// Resolve presigned URL for the preferred rendition
func (p *PlaybackResolver) Resolve(ctx context.Context, videoID string) (*domain.PlaybackRef, error) {
	v, err := p.repo.Read(ctx, videoID)
	if err != nil {
		return nil, err
	}
	if v.Status != domain.StatusProcessed {
		return nil, fmt.Errorf("video[%s] is %s: %w", videoID, v.Status, domain.ErrNotReady)
	}
	variant, ok := v.Variants.Preferred()
	if !ok {
		return nil, fmt.Errorf("video[%s]: %w", videoID, domain.ErrNoVariants)
	}

	url, err := p.store.PresignGetURL(ctx, variant.Key, p.ttl)
	if err != nil {
		return nil, domain.Transient("presign playback", err)
	}
	return &domain.PlaybackRef{
		URL:        url,
		Resolution: variant.Resolution,
		ExpiresIn:  int(p.ttl / time.Second),
	}, nil
}

// Thumbnail presigned URL for the thumbnail, missing until the worker produced one
func (p *PlaybackResolver) Thumbnail(ctx context.Context, videoID string) (string, error) {
	v, err := p.repo.Read(ctx, videoID)
	if err != nil {
		return "", err
	}
	if v.ThumbKey == nil || *v.ThumbKey == "" {
		return "", fmt.Errorf("thumbnail of video[%s]: %w", videoID, domain.ErrNotFound)
	}
	url, err := p.store.PresignGetURL(ctx, *v.ThumbKey, p.ttl)
	if err != nil {
		return "", domain.Transient("presign thumbnail", err)
	}
	return url, nil
}
