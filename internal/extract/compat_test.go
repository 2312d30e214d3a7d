package extract

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func probeEngine(output string, err error) *Engine {
	runner := &fakeRunner{fn: func(string, []string) ([]byte, []byte, error) {
		return []byte(output), nil, err
	}}
	return NewWithRunner(Config{}, runner, zap.NewNop())
}

func probeJSON(videoCodec, audioCodec, format string, bFrames int) string {
	return fmt.Sprintf(`{
		"streams": [
			{"codec_type": "video", "codec_name": "%s", "has_b_frames": %d},
			{"codec_type": "audio", "codec_name": "%s", "has_b_frames": 0}
		],
		"format": {"format_name": "%s"}
	}`, videoCodec, bFrames, audioCodec, format)
}

func TestCheckCompatibility(t *testing.T) {
	ctx := context.Background()

	t.Run("h264 aac mp4 is fully compatible", func(t *testing.T) {
		engine := probeEngine(probeJSON("h264", "aac", "mov,mp4,m4a,3gp,3g2,mj2", 0), nil)

		report, err := engine.CheckCompatibility(ctx, "in.mp4")
		require.NoError(t, err)

		assert.True(t, report.Compatible)
		assert.Equal(t, "h264", report.VideoCodec)
		assert.Equal(t, "aac", report.AudioCodec)
		assert.False(t, report.HasBFrames)
		assert.Empty(t, report.Warnings)
	})

	t.Run("b-frames warn without flipping compatible", func(t *testing.T) {
		engine := probeEngine(probeJSON("h264", "aac", "mov,mp4,m4a,3gp,3g2,mj2", 2), nil)

		report, err := engine.CheckCompatibility(ctx, "in.mp4")
		require.NoError(t, err)

		assert.True(t, report.Compatible)
		assert.True(t, report.HasBFrames)
		require.Len(t, report.Warnings, 1)
		assert.Contains(t, report.Warnings[0], "B-frames")
	})

	t.Run("unsupported video codec", func(t *testing.T) {
		engine := probeEngine(probeJSON("prores", "aac", "mov,mp4,m4a,3gp,3g2,mj2", 0), nil)

		report, err := engine.CheckCompatibility(ctx, "in.mov")
		require.NoError(t, err)

		assert.False(t, report.Compatible)
		assert.Contains(t, report.Warnings[0], "prores")
	})

	t.Run("unsupported container", func(t *testing.T) {
		engine := probeEngine(probeJSON("h264", "aac", "avi", 0), nil)

		report, err := engine.CheckCompatibility(ctx, "in.avi")
		require.NoError(t, err)

		assert.False(t, report.Compatible)
		assert.Contains(t, report.Warnings[0], "avi")
	})

	t.Run("unsupported audio codec", func(t *testing.T) {
		engine := probeEngine(probeJSON("vp9", "pcm_s16le", "matroska,webm", 0), nil)

		report, err := engine.CheckCompatibility(ctx, "in.mkv")
		require.NoError(t, err)

		assert.False(t, report.Compatible)
	})

	t.Run("video-only file is compatible", func(t *testing.T) {
		engine := probeEngine(`{
			"streams": [{"codec_type": "video", "codec_name": "vp9", "has_b_frames": 0}],
			"format": {"format_name": "matroska,webm"}
		}`, nil)

		report, err := engine.CheckCompatibility(ctx, "silent.webm")
		require.NoError(t, err)

		assert.True(t, report.Compatible)
		assert.Empty(t, report.AudioCodec)
	})

	t.Run("probe failure returns error", func(t *testing.T) {
		engine := probeEngine("", errors.New("exit status 1"))

		_, err := engine.CheckCompatibility(ctx, "missing.mp4")
		assert.Error(t, err)
	})
}

func TestContainerSupported(t *testing.T) {
	tests := []struct {
		formatName string
		want       bool
	}{
		{"mov,mp4,m4a,3gp,3g2,mj2", true},
		{"matroska,webm", true},
		{"webm", true},
		{"avi", false},
		{"mpegts", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.formatName, func(t *testing.T) {
			assert.Equal(t, tt.want, containerSupported(tt.formatName))
		})
	}
}
