package extract

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// Config holds engine settings. Zero-value durations fall back to defaults.
type Config struct {
	FFmpegPath  string
	FFprobePath string

	KeyframeScanTimeout time.Duration
	FrameScanTimeout    time.Duration
	StreamCopyTimeout   time.Duration
	SmartCutTimeout     time.Duration
	ReEncodeTimeout     time.Duration

	// Tolerance for the keyframe-aligned decision (seconds).
	Tolerance float64

	Profiles Profiles

	// WorkRoot, when set, hosts the scratch directories for in-flight
	// outputs. Empty means the OS temp dir.
	WorkRoot string

	// WorkDir acquires a scratch directory for one extraction. Defaults to
	// a MkdirTemp under WorkRoot; services inject their storage layer's
	// working-zone variant here.
	WorkDir func(prefix string) (dir string, cleanup func(), err error)
}

func (c *Config) applyDefaults() {
	if c.FFmpegPath == "" {
		c.FFmpegPath = "ffmpeg"
	}
	if c.FFprobePath == "" {
		c.FFprobePath = "ffprobe"
	}
	if c.KeyframeScanTimeout == 0 {
		c.KeyframeScanTimeout = 10 * time.Second
	}
	if c.FrameScanTimeout == 0 {
		c.FrameScanTimeout = 60 * time.Second
	}
	if c.StreamCopyTimeout == 0 {
		c.StreamCopyTimeout = 60 * time.Second
	}
	if c.SmartCutTimeout == 0 {
		c.SmartCutTimeout = 180 * time.Second
	}
	if c.ReEncodeTimeout == 0 {
		c.ReEncodeTimeout = 300 * time.Second
	}
	if c.Tolerance == 0 {
		c.Tolerance = DefaultAlignmentTolerance
	}
	if c.Profiles.ReEncode.Name == "" {
		c.Profiles = DefaultProfiles()
	}
	if c.WorkDir == nil {
		root := c.WorkRoot
		c.WorkDir = func(prefix string) (string, func(), error) {
			dir, err := os.MkdirTemp(root, prefix+"-*")
			if err != nil {
				return "", nil, err
			}
			return dir, func() { os.RemoveAll(dir) }, nil
		}
	}
}

// Engine runs the tiered extraction chain.
type Engine struct {
	cfg     Config
	runner  Runner
	locator *Locator
	logger  *zap.Logger
}

// New creates an engine that shells out to ffmpeg/ffprobe.
func New(cfg Config, logger *zap.Logger) *Engine {
	return NewWithRunner(cfg, NewRunner(logger), logger)
}

// NewWithRunner creates an engine with a custom subprocess runner.
func NewWithRunner(cfg Config, runner Runner, logger *zap.Logger) *Engine {
	cfg.applyDefaults()
	return &Engine{
		cfg:     cfg,
		runner:  runner,
		locator: NewLocator(cfg.FFprobePath, runner, logger, cfg.KeyframeScanTimeout, cfg.FrameScanTimeout),
		logger:  logger,
	}
}

// strategy is one tier of the chain. applies decides eligibility without
// side effects; run writes the clip to dst or fails.
type strategy struct {
	method  Method
	applies func(req CutRequest, alignment AlignmentResult, keyframes []float64) (bool, string)
	run     func(ctx context.Context, req CutRequest, alignment AlignmentResult, keyframes []float64, dst string) error
}

// Extract runs the tier chain for req. The returned error is non-nil only
// for a malformed request; tier failures are folded into the Outcome.
func (e *Engine) Extract(ctx context.Context, req CutRequest) (Outcome, error) {
	if err := req.Validate(); err != nil {
		return Outcome{Success: false, Method: MethodFailed}, fmt.Errorf("invalid cut request: %w", err)
	}

	started := time.Now()
	outcome := Outcome{Method: MethodFailed}

	keyframes := e.locator.Locate(ctx, req.Source)
	alignment := Evaluate(req.Start, req.End, keyframes, e.cfg.Tolerance)

	if req.ForceKeyframeSnap && !alignment.KeyframeAligned() {
		snapped := Snap(alignment, keyframes, e.cfg.Tolerance)
		if snapped != alignment {
			e.logger.Info("snapped cut bounds to keyframes",
				zap.Float64("start", snapped.EffectiveStart),
				zap.Float64("end", snapped.EffectiveEnd))
			alignment = snapped
		}
	}
	outcome.KeyframeAligned = alignment.KeyframeAligned()

	// All tiers write into a scratch dir; the caller-visible output path
	// only ever receives a complete file.
	workDir, cleanup, err := e.cfg.WorkDir("extract")
	if err != nil {
		outcome.ProcessingTimeSeconds = time.Since(started).Seconds()
		outcome.Warnings = append(outcome.Warnings, fmt.Sprintf("could not create work dir: %v", err))
		return outcome, nil
	}
	defer cleanup()

	for _, s := range e.strategies() {
		ok, reason := s.applies(req, alignment, keyframes)
		if !ok {
			outcome.Warnings = append(outcome.Warnings, fmt.Sprintf("%s skipped: %s", s.method, reason))
			continue
		}

		dst := filepath.Join(workDir, string(s.method)+filepath.Ext(req.Output))
		if err := s.run(ctx, req, alignment, keyframes, dst); err != nil {
			e.logger.Warn("extraction tier failed",
				zap.String("method", string(s.method)), zap.Error(err))
			outcome.FailedTiers = append(outcome.FailedTiers, s.method)
			outcome.Warnings = append(outcome.Warnings, fmt.Sprintf("%s failed: %v", s.method, err))
			continue
		}

		size, err := nonEmptyFileSize(dst)
		if err != nil {
			outcome.FailedTiers = append(outcome.FailedTiers, s.method)
			outcome.Warnings = append(outcome.Warnings, fmt.Sprintf("%s produced no output: %v", s.method, err))
			continue
		}

		if err := moveFile(dst, req.Output); err != nil {
			outcome.FailedTiers = append(outcome.FailedTiers, s.method)
			outcome.Warnings = append(outcome.Warnings, fmt.Sprintf("%s output could not be placed: %v", s.method, err))
			continue
		}

		outcome.Success = true
		outcome.Method = s.method
		outcome.OutputFileSizeBytes = size
		outcome.QualityPreserved = s.method == MethodStreamCopy || s.method == MethodSmartCut

		switch s.method {
		case MethodSmartCut:
			outcome.Warnings = append(outcome.Warnings, "smart cut re-encoded a keyframe-bracketed segment; minimal quality loss possible")
		case MethodReEncoded:
			outcome.Warnings = append(outcome.Warnings, "clip was re-encoded; quality loss is minimal at CRF 18")
		case MethodFallbackEncoded:
			outcome.Warnings = append(outcome.Warnings, "fallback encoder used; noticeable quality loss possible")
		}
		break
	}

	outcome.ProcessingTimeSeconds = time.Since(started).Seconds()
	if !outcome.Success {
		e.logger.Error("all extraction tiers failed",
			zap.String("source", req.Source),
			zap.Float64("start", req.Start),
			zap.Float64("end", req.End))
	}
	return outcome, nil
}

func (e *Engine) strategies() []strategy {
	return []strategy{
		{
			method: MethodStreamCopy,
			applies: func(req CutRequest, alignment AlignmentResult, _ []float64) (bool, string) {
				if !alignment.KeyframeAligned() {
					return false, "cut bounds are not keyframe-aligned"
				}
				return true, ""
			},
			run: e.runStreamCopy,
		},
		{
			method: MethodSmartCut,
			applies: func(req CutRequest, alignment AlignmentResult, keyframes []float64) (bool, string) {
				if !req.AllowSmartCut {
					return false, "not enabled for this request"
				}
				// Without a keyframe timeline there is no bracketed span to
				// trim; a plain seek here would just be a hidden re-encode.
				if len(keyframes) == 0 {
					return false, "no keyframe information available"
				}
				return true, ""
			},
			run: e.runSmartCut,
		},
		{
			method: MethodReEncoded,
			applies: func(CutRequest, AlignmentResult, []float64) (bool, string) { return true, "" },
			run:     e.runReEncode,
		},
		{
			method: MethodFallbackEncoded,
			applies: func(CutRequest, AlignmentResult, []float64) (bool, string) { return true, "" },
			run:     e.runFallback,
		},
	}
}

// runStreamCopy remuxes without touching the bitstream. Only valid on
// keyframe-aligned bounds.
func (e *Engine) runStreamCopy(ctx context.Context, req CutRequest, alignment AlignmentResult, _ []float64, dst string) error {
	args := []string{
		"-y",
		"-ss", formatSeconds(alignment.EffectiveStart),
		"-i", req.Source,
		"-t", formatSeconds(alignment.EffectiveEnd - alignment.EffectiveStart),
		"-c", "copy",
		"-avoid_negative_ts", "make_zero",
		dst,
	}
	_, _, err := e.runner.Run(ctx, e.cfg.StreamCopyTimeout, e.cfg.FFmpegPath, args...)
	return err
}

// runSmartCut decodes from the keyframe bracketing the cut and trims to the
// exact bounds with a filter graph, re-encoding only the bracketed span.
// Falls back to a plain seek when the filter graph fails.
func (e *Engine) runSmartCut(ctx context.Context, req CutRequest, alignment AlignmentResult, keyframes []float64, dst string) error {
	profile := e.cfg.Profiles.SmartCut

	pre, okPre := NearestKeyframe(alignment.EffectiveStart, keyframes, true)
	post, okPost := NearestKeyframe(alignment.EffectiveEnd, keyframes, false)
	if okPre && okPost && post > pre {
		// Trim offsets are relative to the seek point.
		trimStart := alignment.EffectiveStart - pre
		trimEnd := alignment.EffectiveEnd - pre

		filter := fmt.Sprintf(
			"[0:v]trim=start=%.6f:end=%.6f,setpts=PTS-STARTPTS[v];[0:a]atrim=start=%.6f:end=%.6f,asetpts=PTS-STARTPTS[a]",
			trimStart, trimEnd, trimStart, trimEnd)

		args := []string{
			"-y",
			"-ss", formatSeconds(pre),
			"-i", req.Source,
			"-t", formatSeconds(post - pre),
			"-filter_complex", filter,
			"-map", "[v]",
			"-map", "[a]",
		}
		args = append(args, profile.args()...)
		args = append(args, dst)

		if _, _, err := e.runner.Run(ctx, e.cfg.SmartCutTimeout, e.cfg.FFmpegPath, args...); err == nil {
			return nil
		}
		e.logger.Debug("smart cut filter graph failed, retrying with plain seek")
	}

	args := []string{
		"-y",
		"-ss", formatSeconds(alignment.EffectiveStart),
		"-i", req.Source,
		"-t", formatSeconds(alignment.EffectiveEnd - alignment.EffectiveStart),
	}
	args = append(args, profile.args()...)
	args = append(args, dst)

	_, _, err := e.runner.Run(ctx, e.cfg.SmartCutTimeout, e.cfg.FFmpegPath, args...)
	return err
}

// runReEncode does a full quality re-encode of the requested span.
func (e *Engine) runReEncode(ctx context.Context, req CutRequest, alignment AlignmentResult, _ []float64, dst string) error {
	args := []string{
		"-y",
		"-ss", formatSeconds(alignment.EffectiveStart),
		"-i", req.Source,
		"-t", formatSeconds(alignment.EffectiveEnd - alignment.EffectiveStart),
	}
	args = append(args, e.cfg.Profiles.ReEncode.args()...)
	args = append(args, dst)

	_, _, err := e.runner.Run(ctx, e.cfg.ReEncodeTimeout, e.cfg.FFmpegPath, args...)
	return err
}

// runFallback tries the compatibility profile, then encoder defaults.
func (e *Engine) runFallback(ctx context.Context, req CutRequest, alignment AlignmentResult, _ []float64, dst string) error {
	base := []string{
		"-y",
		"-ss", formatSeconds(alignment.EffectiveStart),
		"-i", req.Source,
		"-t", formatSeconds(alignment.EffectiveEnd - alignment.EffectiveStart),
	}

	args := append(append([]string{}, base...), e.cfg.Profiles.Fallback.args()...)
	args = append(args, dst)
	if _, _, err := e.runner.Run(ctx, e.cfg.ReEncodeTimeout, e.cfg.FFmpegPath, args...); err == nil {
		return nil
	}

	args = append(append([]string{}, base...), e.cfg.Profiles.LastResort.args()...)
	args = append(args, dst)
	_, _, err := e.runner.Run(ctx, e.cfg.ReEncodeTimeout, e.cfg.FFmpegPath, args...)
	return err
}

func formatSeconds(s float64) string {
	return fmt.Sprintf("%.6f", s)
}

func nonEmptyFileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	if info.Size() == 0 {
		return 0, fmt.Errorf("output file is empty")
	}
	return info.Size(), nil
}

// moveFile renames src to dst, copying across filesystems when rename fails.
func moveFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return err
	}
	return os.Remove(src)
}
