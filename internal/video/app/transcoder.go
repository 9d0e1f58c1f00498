package app

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"video_pipeline_service/internal/video/domain"
	"video_pipeline_service/pkg/logger"

	"go.uber.org/zap"
)

const defaultEngineTimeout = 30 * time.Minute

// Transcoder external transcoding engine, every call is synchronous with no partial progress
type Transcoder interface {
	ExtractFrame(ctx context.Context, input, output string, offset time.Duration) error
	Encode(ctx context.Context, input, output string, r domain.Resolution) error
	ProbeHeight(ctx context.Context, input string) (int, error)
}

// FFmpeg Transcoder backed by the ffmpeg and ffprobe binaries
type FFmpeg struct {
	FFmpegPath  string
	FFprobePath string
	// Timeout bounds each invocation, a hung process is killed and reported as an ExecutionError
	Timeout time.Duration
}

// NewFFmpeg create FFmpeg with defaults for empty fields
func NewFFmpeg(ffmpegPath, ffprobePath string, timeout time.Duration) *FFmpeg {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	if timeout <= 0 {
		timeout = defaultEngineTimeout
	}
	return &FFmpeg{FFmpegPath: ffmpegPath, FFprobePath: ffprobePath, Timeout: timeout}
}

// execCommand swapped in tests
var execCommand = exec.CommandContext

// encodeProfiles libx264 settings per rendition
var encodeProfiles = map[domain.Resolution][]string{
	domain.Resolution480p: {"-c:v", "libx264", "-preset", "veryfast", "-crf", "23", "-c:a", "aac"},
	domain.Resolution720p: {"-c:v", "libx264", "-preset", "veryfast", "-crf", "21", "-b:v", "3000k", "-c:a", "aac"},
}

// ExtractFrame write one still frame at offset
func (f *FFmpeg) ExtractFrame(ctx context.Context, input, output string, offset time.Duration) error {
	args := []string{"-y", "-ss", formatOffset(offset), "-i", input, "-frames:v", "1", output}
	_, err := f.run(ctx, "thumbnail", f.FFmpegPath, args)
	return err
}

// Encode re-encode input to the rendition height, keeping aspect ratio
func (f *FFmpeg) Encode(ctx context.Context, input, output string, r domain.Resolution) error {
	profile, ok := encodeProfiles[r]
	if !ok {
		return fmt.Errorf("encode: unsupported resolution %q", r)
	}
	args := []string{"-y", "-i", input, "-vf", fmt.Sprintf("scale=-2:%d", r.Height())}
	args = append(args, profile...)
	args = append(args, output)
	_, err := f.run(ctx, "encode_"+string(r), f.FFmpegPath, args)
	return err
}

// ProbeHeight vertical resolution of the first video stream
func (f *FFmpeg) ProbeHeight(ctx context.Context, input string) (int, error) {
	args := []string{"-v", "error", "-select_streams", "v:0", "-show_entries", "stream=height", "-of", "csv=p=0", input}
	out, err := f.run(ctx, "probe", f.FFprobePath, args)
	if err != nil {
		return 0, err
	}
	return parseHeight(out, args)
}

func parseHeight(out []byte, args []string) (int, error) {
	line := strings.TrimSpace(string(out))
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = strings.TrimSpace(line[:i])
	}
	line = strings.TrimSuffix(line, ",")
	height, err := strconv.Atoi(line)
	if err != nil || height <= 0 {
		if err == nil {
			err = fmt.Errorf("non-positive height %d", height)
		}
		return 0, &domain.ExecutionError{Step: "probe", Args: args, Output: string(out), Err: err}
	}
	return height, nil
}

func (f *FFmpeg) run(ctx context.Context, step, bin string, args []string) ([]byte, error) {
	timeout := f.Timeout
	if timeout <= 0 {
		timeout = defaultEngineTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	logger.Log.Debug("run engine", zap.String("step", step), zap.String("bin", bin), zap.Strings("args", args))
	cmd := execCommand(runCtx, bin, args...)
	out, err := cmd.CombinedOutput()
	if err == nil {
		return out, nil
	}

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return nil, &domain.ExecutionError{
			Step:     step,
			Args:     args,
			Output:   string(out),
			TimedOut: true,
			Err:      fmt.Errorf("exceeded %s: %w", timeout, context.DeadlineExceeded),
		}
	}
	return nil, &domain.ExecutionError{Step: step, Args: args, Output: string(out), Err: err}
}

// formatOffset hh:mm:ss.mmm accepted by -ss
func formatOffset(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	h := int(d / time.Hour)
	d -= time.Duration(h) * time.Hour
	m := int(d / time.Minute)
	d -= time.Duration(m) * time.Minute
	s := int(d / time.Second)
	d -= time.Duration(s) * time.Second
	ms := int(d / time.Millisecond)
	if ms == 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, s, ms)
}
