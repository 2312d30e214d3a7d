package extract

import (
	"context"
	"fmt"
	"math"
	"os"
	"regexp"
	"strconv"
)

// MetricGrade buckets a quality metric for human consumption.
type MetricGrade string

const (
	GradeExcellent MetricGrade = "excellent"
	GradeGood      MetricGrade = "good"
	GradeFair      MetricGrade = "fair"
	GradePoor      MetricGrade = "poor"
)

// Verdict values for the overall quality judgement.
const (
	VerdictLossless     = "lossless"
	VerdictNearLossless = "near_lossless"
	VerdictLossy        = "lossy"
)

// QualityReport compares a processed file against its original.
type QualityReport struct {
	SSIM      float64     `json:"ssim"`
	SSIMGrade MetricGrade `json:"ssimGrade"`
	PSNR      float64     `json:"psnr"`
	PSNRGrade MetricGrade `json:"psnrGrade"`
	VMAF      *float64    `json:"vmaf,omitempty"`
	SizeRatio float64     `json:"sizeRatio"`
	Verdict   string      `json:"verdict"`
}

var (
	ssimRe = regexp.MustCompile(`All:([0-9.]+)`)
	psnrRe = regexp.MustCompile(`average:([0-9.]+|inf)`)
	vmafRe = regexp.MustCompile(`VMAF score: ([0-9.]+)`)
)

// AnalyzeQuality measures SSIM and PSNR between original and processed using
// ffmpeg's lavfi filters, plus VMAF when the local build supports it.
func (e *Engine) AnalyzeQuality(ctx context.Context, original, processed string) (*QualityReport, error) {
	ssim, err := e.runMetric(ctx, original, processed, "ssim", ssimRe)
	if err != nil {
		return nil, fmt.Errorf("ssim analysis failed: %w", err)
	}

	psnr, err := e.runMetric(ctx, original, processed, "psnr", psnrRe)
	if err != nil {
		return nil, fmt.Errorf("psnr analysis failed: %w", err)
	}

	report := &QualityReport{
		SSIM:      ssim,
		SSIMGrade: gradeSSIM(ssim),
		PSNR:      psnr,
		PSNRGrade: gradePSNR(psnr),
	}

	// VMAF requires a libvmaf-enabled build; absence is not an error.
	if vmaf, err := e.runMetric(ctx, original, processed, "libvmaf", vmafRe); err == nil {
		report.VMAF = &vmaf
	}

	origSize, err := fileSize(original)
	if err != nil {
		return nil, err
	}
	procSize, err := fileSize(processed)
	if err != nil {
		return nil, err
	}
	if origSize > 0 {
		report.SizeRatio = float64(procSize) / float64(origSize)
	}

	report.Verdict = verdict(report.SSIMGrade, report.PSNRGrade)
	return report, nil
}

// runMetric runs one lavfi comparison filter and parses its score from
// stderr, where ffmpeg prints filter summaries.
func (e *Engine) runMetric(ctx context.Context, original, processed, filter string, re *regexp.Regexp) (float64, error) {
	_, stderr, err := e.runner.Run(ctx, e.cfg.ReEncodeTimeout, e.cfg.FFmpegPath,
		"-i", processed,
		"-i", original,
		"-lavfi", filter,
		"-f", "null", "-")
	if err != nil {
		return 0, err
	}

	match := re.FindSubmatch(stderr)
	if match == nil {
		return 0, fmt.Errorf("no %s score in ffmpeg output", filter)
	}
	if string(match[1]) == "inf" {
		return math.Inf(1), nil
	}
	return strconv.ParseFloat(string(match[1]), 64)
}

func gradeSSIM(v float64) MetricGrade {
	switch {
	case v >= 0.99:
		return GradeExcellent
	case v >= 0.95:
		return GradeGood
	case v >= 0.90:
		return GradeFair
	default:
		return GradePoor
	}
}

func gradePSNR(v float64) MetricGrade {
	switch {
	case v >= 45:
		return GradeExcellent
	case v >= 35:
		return GradeGood
	case v >= 25:
		return GradeFair
	default:
		return GradePoor
	}
}

func verdict(ssim, psnr MetricGrade) string {
	if ssim == GradeExcellent && psnr == GradeExcellent {
		return VerdictLossless
	}
	if atLeastGood(ssim) && atLeastGood(psnr) {
		return VerdictNearLossless
	}
	return VerdictLossy
}

func atLeastGood(g MetricGrade) bool {
	return g == GradeExcellent || g == GradeGood
}

func fileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	return info.Size(), nil
}
