package app

import (
	"context"
	"time"
)

// ObjectStore 物件儲存, implemented by database.MinIOClient
type ObjectStore interface {
	UploadFile(ctx context.Context, objectName, filePath, contentType string) error
	DownloadFile(ctx context.Context, objectName, destPath string) error
	PresignGetURL(ctx context.Context, objectName string, expiry time.Duration) (string, error)
	PresignPutURL(ctx context.Context, objectName string, expiry time.Duration) (string, error)
}

// JobQueue submit side of queue.Queue
type JobQueue interface {
	// Submit is idempotent per videoID while a job for the video is live
	Submit(ctx context.Context, videoID string, payload interface{}) (string, bool, error)
}
