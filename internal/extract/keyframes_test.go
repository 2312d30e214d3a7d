package extract

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestLocator(runner Runner) *Locator {
	return NewLocator("ffprobe", runner, zap.NewNop(), time.Second, time.Second)
}

func TestLocateExactScan(t *testing.T) {
	t.Run("parses csv timestamps", func(t *testing.T) {
		runner := &fakeRunner{fn: func(name string, args []string) ([]byte, []byte, error) {
			require.True(t, hasArg(args, "nokey"))
			return []byte("0.000000\n2.002000\n4.004000\n"), nil, nil
		}}

		got := newTestLocator(runner).Locate(context.Background(), "in.mp4")
		assert.Equal(t, []float64{0, 2.002, 4.004}, got)
		assert.Len(t, runner.calls, 1)
	})

	t.Run("skips blank, N/A and trailing-comma lines", func(t *testing.T) {
		runner := &fakeRunner{fn: func(name string, args []string) ([]byte, []byte, error) {
			return []byte("0.000000,\n\nN/A\n2.000000,\nnot-a-number\n"), nil, nil
		}}

		got := newTestLocator(runner).Locate(context.Background(), "in.mp4")
		assert.Equal(t, []float64{0, 2}, got)
	})

	t.Run("sorts and deduplicates", func(t *testing.T) {
		runner := &fakeRunner{fn: func(name string, args []string) ([]byte, []byte, error) {
			return []byte("4.0\n0.0\n2.0\n2.0\n"), nil, nil
		}}

		got := newTestLocator(runner).Locate(context.Background(), "in.mp4")
		assert.Equal(t, []float64{0, 2, 4}, got)
	})
}

func TestLocateFrameTypeFallback(t *testing.T) {
	frameJSON := []byte(`{"frames":[
		{"pts_time":"0.000000","pict_type":"I"},
		{"pts_time":"0.033367","pict_type":"P"},
		{"pts_time":"0.066733","pict_type":"B"},
		{"pts_time":"2.002000","pict_type":"I"}
	]}`)

	runner := &fakeRunner{fn: func(name string, args []string) ([]byte, []byte, error) {
		if hasArg(args, "nokey") {
			return nil, nil, errors.New("exit status 1")
		}
		require.True(t, hasArg(args, "pict_type"))
		return frameJSON, nil, nil
	}}

	got := newTestLocator(runner).Locate(context.Background(), "in.mkv")
	assert.Equal(t, []float64{0, 2.002}, got)
	assert.Len(t, runner.calls, 2)
}

func TestLocateSyntheticFallback(t *testing.T) {
	t.Run("estimates from duration", func(t *testing.T) {
		runner := &fakeRunner{fn: func(name string, args []string) ([]byte, []byte, error) {
			if hasArg(args, "format=duration") {
				return []byte("7.5\n"), nil, nil
			}
			return nil, nil, errors.New("exit status 1")
		}}

		got := newTestLocator(runner).Locate(context.Background(), "in.avi")
		assert.Equal(t, []float64{0, 2, 4, 6}, got)
	})

	t.Run("empty when duration also fails", func(t *testing.T) {
		runner := &fakeRunner{fn: func(name string, args []string) ([]byte, []byte, error) {
			return nil, nil, errors.New("exit status 1")
		}}

		got := newTestLocator(runner).Locate(context.Background(), "broken.bin")
		assert.Empty(t, got)
	})
}
