package extract

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func qualityEngine(t *testing.T, ssimLine, psnrLine string) (*Engine, string, string) {
	t.Helper()
	dir := t.TempDir()
	original := filepath.Join(dir, "original.mp4")
	processed := filepath.Join(dir, "processed.mp4")
	require.NoError(t, os.WriteFile(original, []byte("0123456789"), 0644))
	require.NoError(t, os.WriteFile(processed, []byte("0123456789"), 0644))

	runner := &fakeRunner{fn: func(name string, args []string) ([]byte, []byte, error) {
		switch {
		case hasArg(args, "ssim"):
			return nil, []byte(ssimLine), nil
		case hasArg(args, "psnr"):
			return nil, []byte(psnrLine), nil
		default:
			// No libvmaf in this build.
			return nil, []byte("Unrecognized filter"), assert.AnError
		}
	}}
	return NewWithRunner(Config{}, runner, zap.NewNop()), original, processed
}

func TestAnalyzeQualityIdenticalFiles(t *testing.T) {
	engine, original, processed := qualityEngine(t,
		"[Parsed_ssim_0 @ 0x55] SSIM Y:1.000000 U:1.000000 V:1.000000 All:1.000000 (inf)",
		"[Parsed_psnr_0 @ 0x55] PSNR y:inf u:inf v:inf average:inf min:inf max:inf")

	report, err := engine.AnalyzeQuality(context.Background(), original, processed)
	require.NoError(t, err)

	assert.Equal(t, 1.0, report.SSIM)
	assert.Equal(t, GradeExcellent, report.SSIMGrade)
	assert.True(t, math.IsInf(report.PSNR, 1))
	assert.Equal(t, GradeExcellent, report.PSNRGrade)
	assert.Equal(t, 1.0, report.SizeRatio)
	assert.Equal(t, VerdictLossless, report.Verdict)
	assert.Nil(t, report.VMAF)
}

func TestAnalyzeQualityNearLossless(t *testing.T) {
	engine, original, processed := qualityEngine(t,
		"[Parsed_ssim_0 @ 0x55] SSIM All:0.976321 (16.2)",
		"[Parsed_psnr_0 @ 0x55] PSNR average:38.44 min:30.1 max:44.8")

	report, err := engine.AnalyzeQuality(context.Background(), original, processed)
	require.NoError(t, err)

	assert.Equal(t, GradeGood, report.SSIMGrade)
	assert.Equal(t, GradeGood, report.PSNRGrade)
	assert.Equal(t, VerdictNearLossless, report.Verdict)
}

func TestAnalyzeQualityLossy(t *testing.T) {
	engine, original, processed := qualityEngine(t,
		"[Parsed_ssim_0 @ 0x55] SSIM All:0.912345 (10.5)",
		"[Parsed_psnr_0 @ 0x55] PSNR average:27.80 min:22.0 max:33.1")

	report, err := engine.AnalyzeQuality(context.Background(), original, processed)
	require.NoError(t, err)

	assert.Equal(t, GradeFair, report.SSIMGrade)
	assert.Equal(t, GradeFair, report.PSNRGrade)
	assert.Equal(t, VerdictLossy, report.Verdict)
}

func TestAnalyzeQualityMissingScore(t *testing.T) {
	engine, original, processed := qualityEngine(t, "no score here", "irrelevant")

	_, err := engine.AnalyzeQuality(context.Background(), original, processed)
	assert.ErrorContains(t, err, "ssim")
}

func TestGradeThresholds(t *testing.T) {
	t.Run("ssim", func(t *testing.T) {
		assert.Equal(t, GradeExcellent, gradeSSIM(0.99))
		assert.Equal(t, GradeGood, gradeSSIM(0.95))
		assert.Equal(t, GradeFair, gradeSSIM(0.90))
		assert.Equal(t, GradePoor, gradeSSIM(0.89))
	})

	t.Run("psnr", func(t *testing.T) {
		assert.Equal(t, GradeExcellent, gradePSNR(45))
		assert.Equal(t, GradeGood, gradePSNR(35))
		assert.Equal(t, GradeFair, gradePSNR(25))
		assert.Equal(t, GradePoor, gradePSNR(24.9))
	})
}
