package handlers

import (
	"context"
	"time"

	"video_pipeline_service/internal/video/app"
	"video_pipeline_service/internal/video/domain"
	"video_pipeline_service/pkg/logger"
	"video_pipeline_service/pkg/middlewares"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"
)

const defaultStatusPoll = 2 * time.Second

// Playback resolves presigned URLs for processed videos
type Playback interface {
	Resolve(ctx context.Context, videoID string) (*domain.PlaybackRef, error)
	Thumbnail(ctx context.Context, videoID string) (string, error)
}

// VideoHandler 影片相關的 HTTP 請求
type VideoHandler struct {
	Videos       app.VideoUseCase
	Playback     Playback
	PollInterval time.Duration
}

// NewVideoHandler create VideoHandler
func NewVideoHandler(videos app.VideoUseCase, playback Playback) *VideoHandler {
	return &VideoHandler{
		Videos:       videos,
		Playback:     playback,
		PollInterval: defaultStatusPoll,
	}
}

// List 影片列表
// @Summary List videos
// @Description Every video newest first, with its lifecycle status
// @Tags Videos
// @Produce json
// @Success 200 {array} domain.Video
// @Failure 503 {object} string "Store unavailable"
// @Router /videos [get]
func (h *VideoHandler) List(c *fiber.Ctx) error {
	videos, err := h.Videos.List(c.UserContext())
	if err != nil {
		return replyError(c, err)
	}
	return c.JSON(videos)
}

// Get 單一影片
// @Summary Get video
// @Tags Videos
// @Produce json
// @Param id path string true "Video ID"
// @Success 200 {object} domain.Video
// @Failure 404 {object} string "video not found"
// @Router /videos/{id} [get]
func (h *VideoHandler) Get(c *fiber.Ctx) error {
	v, err := h.Videos.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return replyError(c, err)
	}
	return c.JSON(v)
}

// Retry 人工重試失敗的影片
// @Summary Retry a failed video
// @Description Moves a failed video back to processing and submits a new transcode job
// @Tags Videos
// @Produce json
// @Security BearerAuth
// @Param id path string true "Video ID"
// @Success 202 {object} map[string]string
// @Failure 400 {object} string "video is not in failed status"
// @Failure 404 {object} string "video not found"
// @Router /videos/{id}/retry [post]
func (h *VideoHandler) Retry(c *fiber.Ctx) error {
	id := c.Params("id")
	if err := h.Videos.Retry(c.UserContext(), id); err != nil {
		return replyError(c, err)
	}
	logger.Log.Info("retry requested",
		zap.String("videoID", id),
		zap.Any("by", c.Locals(middlewares.TokenAccountID)),
	)
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"videoId": id, "message": "retry queued"})
}

// Play 取得播放網址
// @Summary Resolve playback URL
// @Description Presigned URL of the preferred rendition, the 480p baseline when present
// @Tags Playback
// @Produce json
// @Param id path string true "Video ID"
// @Success 200 {object} domain.PlaybackRef
// @Failure 404 {object} string "video not found"
// @Failure 409 {object} string "video not ready"
// @Router /videos/{id}/play [get]
func (h *VideoHandler) Play(c *fiber.Ctx) error {
	ref, err := h.Playback.Resolve(c.UserContext(), c.Params("id"))
	if err != nil {
		return replyError(c, err)
	}
	return c.JSON(ref)
}

// Thumbnail 取得縮圖網址
// @Summary Resolve thumbnail URL
// @Tags Playback
// @Produce json
// @Param id path string true "Video ID"
// @Success 200 {object} map[string]string
// @Failure 404 {object} string "video not found"
// @Router /videos/{id}/thumbnail [get]
func (h *VideoHandler) Thumbnail(c *fiber.Ctx) error {
	url, err := h.Playback.Thumbnail(c.UserContext(), c.Params("id"))
	if err != nil {
		return replyError(c, err)
	}
	return c.JSON(fiber.Map{"thumbnailUrl": url})
}

type uploadRequest struct {
	Title    string `json:"title" validate:"required_without=Filename"`
	Filename string `json:"filename"`
}

// RequestUpload 建立影片並回傳上傳用的 presigned URL
// @Summary Request an upload slot
// @Description Creates an uploaded video record and returns a presigned PUT URL for videos/<id>/raw.<ext>. Without a title the filename base is used.
// @Tags Upload
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body uploadRequest true "title and original filename"
// @Success 201 {object} domain.UploadSlot
// @Failure 400 {object} string "title or filename is required"
// @Router /upload/request [post]
func (h *VideoHandler) RequestUpload(c *fiber.Ctx) error {
	var req uploadRequest
	if ok, err := parseBody(c, &req); !ok {
		return err
	}
	slot, err := h.Videos.RequestUpload(c.UserContext(), req.Title, req.Filename)
	if err != nil {
		return replyError(c, err)
	}
	logger.Log.Info("upload slot issued",
		zap.String("videoID", slot.VideoID),
		zap.Any("by", c.Locals(middlewares.TokenAccountID)),
	)
	return c.Status(fiber.StatusCreated).JSON(slot)
}

type completeRequest struct {
	VideoID string `json:"videoId" validate:"required"`
}

// CompleteUpload client side notice that the PUT finished
// @Summary Complete an upload
// @Description Queues the transcode job without waiting for the bucket notification. Idempotent.
// @Tags Upload
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body completeRequest true "video id"
// @Success 202 {object} map[string]interface{}
// @Failure 404 {object} string "video not found"
// @Router /upload/complete [post]
func (h *VideoHandler) CompleteUpload(c *fiber.Ctx) error {
	var req completeRequest
	if ok, err := parseBody(c, &req); !ok {
		return err
	}
	queued, err := h.Videos.CompleteUpload(c.UserContext(), req.VideoID)
	if err != nil {
		return replyError(c, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"videoId": req.VideoID, "queued": queued})
}

type statusEvent struct {
	VideoID   string        `json:"videoId"`
	Status    domain.Status `json:"status"`
	FailCount int           `json:"failCount"`
	LastError *string       `json:"lastError,omitempty"`
}

// StatusSocket push status changes of one video until it reaches processed or failed
func (h *VideoHandler) StatusSocket(c *websocket.Conn) {
	id := c.Params("id")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// client 關閉連線時停止輪詢
	go func() {
		defer cancel()
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()

	interval := h.PollInterval
	if interval <= 0 {
		interval = defaultStatusPoll
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last domain.Status
	for {
		v, err := h.Videos.Get(ctx, id)
		if err != nil {
			if ctx.Err() == nil {
				_, msg := errorStatus(err)
				_ = c.WriteJSON(fiber.Map{"error": msg})
			}
			return
		}
		if v.Status != last {
			last = v.Status
			event := statusEvent{VideoID: v.ID, Status: v.Status, FailCount: v.FailCount, LastError: v.LastError}
			if err := c.WriteJSON(event); err != nil {
				logger.Log.Debug("status socket write failed", zap.String("videoID", id), zap.Error(err))
				return
			}
		}
		if last == domain.StatusProcessed || last == domain.StatusFailed {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
