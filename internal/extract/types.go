package extract

import (
	"errors"
	"fmt"
)

// Method identifies the extraction tier that produced (or failed to produce)
// an output file.
type Method string

const (
	MethodStreamCopy      Method = "stream_copy"
	MethodSmartCut        Method = "smart_cut"
	MethodReEncoded       Method = "re_encoded"
	MethodFallbackEncoded Method = "fallback_encoded"
	MethodFailed          Method = "failed"
)

// CutRequest describes a single clip extraction.
type CutRequest struct {
	Source string  `json:"source"`
	Start  float64 `json:"start"`
	End    float64 `json:"end"`
	Output string  `json:"output"`

	// ForceKeyframeSnap moves the cut bounds to nearby keyframes (within the
	// snap tolerance) before extraction, trading precision for copyability.
	ForceKeyframeSnap bool `json:"forceKeyframeSnap"`

	// AllowSmartCut enables the precise-trim tier between stream copy and
	// the full re-encode.
	AllowSmartCut bool `json:"allowSmartCut"`
}

var (
	ErrEmptySource = errors.New("source path is empty")
	ErrEmptyOutput = errors.New("output path is empty")
)

// Validate rejects malformed requests before any subprocess is spawned.
func (r CutRequest) Validate() error {
	if r.Source == "" {
		return ErrEmptySource
	}
	if r.Output == "" {
		return ErrEmptyOutput
	}
	if r.Start < 0 {
		return fmt.Errorf("start must be non-negative, got %.3f", r.Start)
	}
	if r.End <= r.Start {
		return fmt.Errorf("end (%.3f) must be greater than start (%.3f)", r.End, r.Start)
	}
	return nil
}

// Duration returns the requested clip length in seconds.
func (r CutRequest) Duration() float64 {
	return r.End - r.Start
}

// AlignmentResult reports how the requested bounds relate to the source's
// keyframe grid.
type AlignmentResult struct {
	EffectiveStart float64 `json:"effectiveStart"`
	EffectiveEnd   float64 `json:"effectiveEnd"`
	StartAligned   bool    `json:"startAligned"`
	EndAligned     bool    `json:"endAligned"`
}

// KeyframeAligned reports whether both bounds sit on keyframes.
func (a AlignmentResult) KeyframeAligned() bool {
	return a.StartAligned && a.EndAligned
}

// Outcome is the result of one extraction attempt chain.
type Outcome struct {
	Success               bool     `json:"success"`
	Method                Method   `json:"method"`
	QualityPreserved      bool     `json:"qualityPreserved"`
	KeyframeAligned       bool     `json:"keyframeAligned"`
	ProcessingTimeSeconds float64  `json:"processingTimeSeconds"`
	OutputFileSizeBytes   int64    `json:"outputFileSizeBytes"`
	Warnings              []string `json:"warnings"`

	// FailedTiers lists the tiers that were attempted and failed before the
	// final method, in order.
	FailedTiers []Method `json:"failedTiers,omitempty"`
}
