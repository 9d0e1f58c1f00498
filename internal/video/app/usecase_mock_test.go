package app

import (
	"context"
	"time"

	"video_pipeline_service/internal/video/domain"
	"video_pipeline_service/pkg/notification"

	"github.com/stretchr/testify/mock"
)

// MockVideoRepo mock repository.VideoRepo
type MockVideoRepo struct {
	mock.Mock
}

func (m *MockVideoRepo) Read(ctx context.Context, id string) (*domain.Video, error) {
	args := m.Called(ctx, id)
	if args.Get(0) != nil {
		return args.Get(0).(*domain.Video), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockVideoRepo) Create(ctx context.Context, id, title, rawKey string) (*domain.Video, error) {
	args := m.Called(ctx, id, title, rawKey)
	if args.Get(0) != nil {
		return args.Get(0).(*domain.Video), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockVideoRepo) Transition(ctx context.Context, id string, expected, next domain.Status, fields domain.Fields) (bool, error) {
	args := m.Called(ctx, id, expected, next, fields)
	return args.Bool(0), args.Error(1)
}

func (m *MockVideoRepo) List(ctx context.Context) ([]domain.Video, error) {
	args := m.Called(ctx)
	if args.Get(0) != nil {
		return args.Get(0).([]domain.Video), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockVideoRepo) ListByStatus(ctx context.Context, status domain.Status) ([]domain.Video, error) {
	args := m.Called(ctx, status)
	if args.Get(0) != nil {
		return args.Get(0).([]domain.Video), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockDeadLetterRepo mock repository.DeadLetterRepo
type MockDeadLetterRepo struct {
	mock.Mock
}

func (m *MockDeadLetterRepo) Append(ctx context.Context, record domain.DeadLetterRecord) error {
	return m.Called(ctx, record).Error(0)
}

func (m *MockDeadLetterRepo) List(ctx context.Context, limit int64) ([]domain.DeadLetterRecord, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) != nil {
		return args.Get(0).([]domain.DeadLetterRecord), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockObjectStore mock ObjectStore
type MockObjectStore struct {
	mock.Mock
}

func (m *MockObjectStore) UploadFile(ctx context.Context, objectName, filePath, contentType string) error {
	return m.Called(ctx, objectName, filePath, contentType).Error(0)
}

func (m *MockObjectStore) DownloadFile(ctx context.Context, objectName, destPath string) error {
	return m.Called(ctx, objectName, destPath).Error(0)
}

func (m *MockObjectStore) PresignGetURL(ctx context.Context, objectName string, expiry time.Duration) (string, error) {
	args := m.Called(ctx, objectName, expiry)
	return args.String(0), args.Error(1)
}

func (m *MockObjectStore) PresignPutURL(ctx context.Context, objectName string, expiry time.Duration) (string, error) {
	args := m.Called(ctx, objectName, expiry)
	return args.String(0), args.Error(1)
}

// MockJobQueue mock JobQueue
type MockJobQueue struct {
	mock.Mock
}

func (m *MockJobQueue) Submit(ctx context.Context, videoID string, payload interface{}) (string, bool, error) {
	args := m.Called(ctx, videoID, payload)
	return args.String(0), args.Bool(1), args.Error(2)
}

// MockTranscoder mock Transcoder
type MockTranscoder struct {
	mock.Mock
}

func (m *MockTranscoder) ExtractFrame(ctx context.Context, input, output string, offset time.Duration) error {
	return m.Called(ctx, input, output, offset).Error(0)
}

func (m *MockTranscoder) Encode(ctx context.Context, input, output string, r domain.Resolution) error {
	return m.Called(ctx, input, output, r).Error(0)
}

func (m *MockTranscoder) ProbeHeight(ctx context.Context, input string) (int, error) {
	args := m.Called(ctx, input)
	return args.Int(0), args.Error(1)
}

// MockSource mock notification.Source
type MockSource struct {
	mock.Mock
}

func (m *MockSource) Receive(ctx context.Context, max int, wait time.Duration) ([]notification.Message, error) {
	args := m.Called(ctx, max, wait)
	if args.Get(0) != nil {
		return args.Get(0).([]notification.Message), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockSource) Ack(ctx context.Context, msg notification.Message) error {
	return m.Called(ctx, msg).Error(0)
}

func (m *MockSource) Release(ctx context.Context, msg notification.Message) error {
	return m.Called(ctx, msg).Error(0)
}

func (m *MockSource) Close() error {
	return m.Called().Error(0)
}
