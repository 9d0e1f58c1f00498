package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"video_pipeline_service/internal/video/domain"
	"video_pipeline_service/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	logger.SetNewNop()
	ctx := context.Background()

	tests := []struct {
		name    string
		video   *domain.Video
		readErr error
		wantErr error
		wantKey string
		wantRes domain.Resolution
	}{
		{
			name:    "missing video",
			readErr: domain.ErrNotFound,
			wantErr: domain.ErrNotFound,
		},
		{
			name:    "still processing",
			video:   &domain.Video{ID: "abc", Status: domain.StatusProcessing},
			wantErr: domain.ErrNotReady,
		},
		{
			name:    "failed",
			video:   &domain.Video{ID: "abc", Status: domain.StatusFailed},
			wantErr: domain.ErrNotReady,
		},
		{
			name:    "processed without variants",
			video:   &domain.Video{ID: "abc", Status: domain.StatusProcessed, Variants: domain.Variants{}},
			wantErr: domain.ErrNotFound,
		},
		{
			name: "prefers 480p",
			video: &domain.Video{ID: "abc", Status: domain.StatusProcessed, Variants: domain.Variants{
				{Resolution: domain.Resolution720p, Key: "videos/abc/720p.mp4"},
				{Resolution: domain.Resolution480p, Key: "videos/abc/480p.mp4"},
			}},
			wantKey: "videos/abc/480p.mp4",
			wantRes: domain.Resolution480p,
		},
		{
			name: "falls back to the first variant",
			video: &domain.Video{ID: "abc", Status: domain.StatusProcessed, Variants: domain.Variants{
				{Resolution: domain.Resolution720p, Key: "videos/abc/720p.mp4"},
			}},
			wantKey: "videos/abc/720p.mp4",
			wantRes: domain.Resolution720p,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockVideoRepo)
			store := new(MockObjectStore)
			repo.On("Read", ctx, "abc").Return(tt.video, tt.readErr)
			if tt.wantKey != "" {
				store.On("PresignGetURL", ctx, tt.wantKey, time.Hour).Return("https://minio/signed", nil)
			}

			ref, err := NewPlaybackResolver(repo, store, 0).Resolve(ctx, "abc")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				store.AssertNotCalled(t, "PresignGetURL", mock.Anything, mock.Anything, mock.Anything)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "https://minio/signed", ref.URL)
			assert.Equal(t, tt.wantRes, ref.Resolution)
			assert.Equal(t, 3600, ref.ExpiresIn)
		})
	}

	t.Run("presign failure is transient", func(t *testing.T) {
		repo := new(MockVideoRepo)
		store := new(MockObjectStore)
		repo.On("Read", ctx, "abc").Return(&domain.Video{ID: "abc", Status: domain.StatusProcessed, Variants: domain.Variants{
			{Resolution: domain.Resolution480p, Key: "videos/abc/480p.mp4"},
		}}, nil)
		store.On("PresignGetURL", ctx, "videos/abc/480p.mp4", 5*time.Minute).Return("", errors.New("dial tcp"))

		_, err := NewPlaybackResolver(repo, store, 5*time.Minute).Resolve(ctx, "abc")
		assert.True(t, domain.IsTransient(err))
	})
}

func TestThumbnail(t *testing.T) {
	ctx := context.Background()
	thumb := "videos/abc/thumb.jpg"

	repo := new(MockVideoRepo)
	store := new(MockObjectStore)
	repo.On("Read", ctx, "abc").Return(&domain.Video{ID: "abc", Status: domain.StatusProcessing, ThumbKey: &thumb}, nil)
	repo.On("Read", ctx, "new").Return(&domain.Video{ID: "new", Status: domain.StatusUploaded}, nil)
	store.On("PresignGetURL", ctx, thumb, time.Hour).Return("https://minio/thumb", nil)

	p := NewPlaybackResolver(repo, store, 0)
	url, err := p.Thumbnail(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, "https://minio/thumb", url)

	_, err = p.Thumbnail(ctx, "new")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
