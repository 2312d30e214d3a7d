package extract

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// syntheticGOPInterval is the assumed keyframe spacing when the source
// cannot be scanned. Matches the common 2-second GOP of web-delivered video.
const syntheticGOPInterval = 2.0

// Locator finds keyframe timestamps in a video file. It degrades through
// three strategies and never returns an error; callers always get a usable
// (possibly estimated, possibly empty) timeline.
type Locator struct {
	ffprobePath  string
	runner       Runner
	logger       *zap.Logger
	exactTimeout time.Duration
	scanTimeout  time.Duration
}

// NewLocator creates a keyframe locator.
func NewLocator(ffprobePath string, runner Runner, logger *zap.Logger, exactTimeout, scanTimeout time.Duration) *Locator {
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &Locator{
		ffprobePath:  ffprobePath,
		runner:       runner,
		logger:       logger,
		exactTimeout: exactTimeout,
		scanTimeout:  scanTimeout,
	}
}

// Locate returns the sorted, deduplicated keyframe timestamps for path.
// An empty slice means every strategy failed.
func (l *Locator) Locate(ctx context.Context, path string) []float64 {
	if kf := l.exactScan(ctx, path); len(kf) > 0 {
		return normalize(kf)
	}

	l.logger.Debug("exact keyframe scan produced nothing, trying frame-type scan",
		zap.String("path", path))
	if kf := l.frameTypeScan(ctx, path); len(kf) > 0 {
		return normalize(kf)
	}

	l.logger.Warn("keyframe scans failed, synthesizing timeline from duration",
		zap.String("path", path))
	return l.synthetic(ctx, path)
}

// exactScan decodes only keyframes and reads their timestamps.
func (l *Locator) exactScan(ctx context.Context, path string) []float64 {
	stdout, _, err := l.runner.Run(ctx, l.exactTimeout, l.ffprobePath,
		"-v", "error",
		"-select_streams", "v:0",
		"-skip_frame", "nokey",
		"-show_entries", "frame=pts_time",
		"-of", "csv=p=0",
		path)
	if err != nil {
		return nil
	}

	var keyframes []float64
	for _, line := range strings.Split(string(stdout), "\n") {
		line = strings.TrimSuffix(strings.TrimSpace(line), ",")
		if line == "" || line == "N/A" {
			continue
		}
		ts, err := strconv.ParseFloat(line, 64)
		if err != nil {
			continue
		}
		keyframes = append(keyframes, ts)
	}
	return keyframes
}

// frameTypeScan walks every frame and keeps the I-frames. Slower than the
// exact scan but survives containers where -skip_frame is unreliable.
func (l *Locator) frameTypeScan(ctx context.Context, path string) []float64 {
	stdout, _, err := l.runner.Run(ctx, l.scanTimeout, l.ffprobePath,
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "frame=pts_time,pict_type",
		"-of", "json",
		path)
	if err != nil {
		return nil
	}

	var keyframes []float64
	gjson.GetBytes(stdout, "frames").ForEach(func(_, frame gjson.Result) bool {
		if frame.Get("pict_type").String() != "I" {
			return true
		}
		pts := frame.Get("pts_time")
		if !pts.Exists() {
			return true
		}
		ts, err := strconv.ParseFloat(pts.String(), 64)
		if err != nil {
			return true
		}
		keyframes = append(keyframes, ts)
		return true
	})
	return keyframes
}

// synthetic builds an estimated timeline at the assumed GOP interval.
func (l *Locator) synthetic(ctx context.Context, path string) []float64 {
	duration, err := l.duration(ctx, path)
	if err != nil || duration <= 0 {
		l.logger.Error("could not determine duration, no keyframe timeline available",
			zap.String("path", path), zap.Error(err))
		return nil
	}

	var keyframes []float64
	for t := 0.0; t < duration; t += syntheticGOPInterval {
		keyframes = append(keyframes, t)
	}
	return keyframes
}

func (l *Locator) duration(ctx context.Context, path string) (float64, error) {
	stdout, _, err := l.runner.Run(ctx, l.exactTimeout, l.ffprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=nokey=1:noprint_wrappers=1",
		path)
	if err != nil {
		return 0, err
	}
	return strconv.ParseFloat(strings.TrimSpace(string(stdout)), 64)
}

// normalize sorts and deduplicates timestamps.
func normalize(keyframes []float64) []float64 {
	sort.Float64s(keyframes)
	out := keyframes[:0]
	for _, ts := range keyframes {
		if len(out) > 0 && out[len(out)-1] == ts {
			continue
		}
		out = append(out, ts)
	}
	return out
}
