package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"

	"video_pipeline_service/internal/video/domain"
	"video_pipeline_service/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEngine run this test binary as the engine, TestHelperProcess decides the behaviour
func fakeEngine(t *testing.T, mode string) *[]string {
	t.Helper()
	var calls []string
	execCommand = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		calls = append(calls, name+" "+strings.Join(args, " "))
		cs := append([]string{"-test.run=TestHelperProcess", "--", name}, args...)
		cmd := exec.CommandContext(ctx, os.Args[0], cs...)
		cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1", "HELPER_MODE="+mode)
		return cmd
	}
	t.Cleanup(func() { execCommand = exec.CommandContext })
	return &calls
}

func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	switch os.Getenv("HELPER_MODE") {
	case "height1080":
		fmt.Fprintln(os.Stdout, "1080")
	case "height-garbage":
		fmt.Fprintln(os.Stdout, "N/A")
	case "fail":
		fmt.Fprintln(os.Stderr, "Invalid data found when processing input")
		os.Exit(1)
	case "hang":
		time.Sleep(10 * time.Second)
	}
	os.Exit(0)
}

func TestFFmpeg(t *testing.T) {
	logger.SetNewNop()
	ctx := context.Background()

	t.Run("encode args", func(t *testing.T) {
		calls := fakeEngine(t, "ok")
		f := NewFFmpeg("", "", time.Minute)

		require.NoError(t, f.Encode(ctx, "in.mp4", "out480.mp4", domain.Resolution480p))
		require.NoError(t, f.Encode(ctx, "in.mp4", "out720.mp4", domain.Resolution720p))
		require.NoError(t, f.ExtractFrame(ctx, "in.mp4", "thumb.jpg", 2*time.Second))

		require.Len(t, *calls, 3)
		assert.Equal(t, "ffmpeg -y -i in.mp4 -vf scale=-2:480 -c:v libx264 -preset veryfast -crf 23 -c:a aac out480.mp4", (*calls)[0])
		assert.Equal(t, "ffmpeg -y -i in.mp4 -vf scale=-2:720 -c:v libx264 -preset veryfast -crf 21 -b:v 3000k -c:a aac out720.mp4", (*calls)[1])
		assert.Equal(t, "ffmpeg -y -ss 00:00:02 -i in.mp4 -frames:v 1 thumb.jpg", (*calls)[2])
	})

	t.Run("probe height", func(t *testing.T) {
		calls := fakeEngine(t, "height1080")
		h, err := NewFFmpeg("", "/usr/bin/ffprobe", time.Minute).ProbeHeight(ctx, "in.mp4")
		require.NoError(t, err)
		assert.Equal(t, 1080, h)
		assert.True(t, strings.HasPrefix((*calls)[0], "/usr/bin/ffprobe -v error -select_streams v:0"))
	})

	t.Run("probe garbage", func(t *testing.T) {
		fakeEngine(t, "height-garbage")
		_, err := NewFFmpeg("", "", time.Minute).ProbeHeight(ctx, "in.mp4")
		var execErr *domain.ExecutionError
		require.ErrorAs(t, err, &execErr)
		assert.Equal(t, "probe", execErr.Step)
	})

	t.Run("engine failure", func(t *testing.T) {
		fakeEngine(t, "fail")
		err := NewFFmpeg("", "", time.Minute).Encode(ctx, "in.mp4", "out.mp4", domain.Resolution480p)
		var execErr *domain.ExecutionError
		require.ErrorAs(t, err, &execErr)
		assert.False(t, execErr.TimedOut)
		assert.Contains(t, execErr.Output, "Invalid data")
	})

	t.Run("engine timeout", func(t *testing.T) {
		fakeEngine(t, "hang")
		err := NewFFmpeg("", "", 100*time.Millisecond).ExtractFrame(ctx, "in.mp4", "t.jpg", 2*time.Second)
		var execErr *domain.ExecutionError
		require.ErrorAs(t, err, &execErr)
		assert.True(t, execErr.TimedOut)
		assert.True(t, errors.Is(err, context.DeadlineExceeded))
	})

	t.Run("unsupported resolution", func(t *testing.T) {
		err := NewFFmpeg("", "", time.Minute).Encode(ctx, "in", "out", domain.Resolution("1080p"))
		assert.Error(t, err)
	})
}

func TestFormatOffset(t *testing.T) {
	assert.Equal(t, "00:00:02", formatOffset(2*time.Second))
	assert.Equal(t, "01:02:03.500", formatOffset(time.Hour+2*time.Minute+3*time.Second+500*time.Millisecond))
	assert.Equal(t, "00:00:00", formatOffset(-time.Second))
}
