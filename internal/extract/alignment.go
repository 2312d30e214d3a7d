package extract

import (
	"math"
	"sort"
)

const (
	// DefaultAlignmentTolerance decides whether a bound already sits on a
	// keyframe closely enough for stream copy.
	DefaultAlignmentTolerance = 0.1

	// SnapTolerance is the looser bound used when the caller opts in to
	// moving cut points onto keyframes.
	SnapTolerance = 1.0
)

// NearestKeyframe returns the keyframe nearest to t on the requested side.
// With preferBefore it returns the last keyframe at or before t, otherwise
// the first keyframe at or after t. The result clamps to the first or last
// keyframe when t falls outside the timeline. ok is false only when the
// timeline is empty.
func NearestKeyframe(t float64, keyframes []float64, preferBefore bool) (ts float64, ok bool) {
	if len(keyframes) == 0 {
		return 0, false
	}

	idx := sort.SearchFloat64s(keyframes, t)

	if preferBefore {
		// keyframes[idx] is the first element >= t.
		if idx < len(keyframes) && keyframes[idx] == t {
			return keyframes[idx], true
		}
		if idx == 0 {
			return keyframes[0], true
		}
		return keyframes[idx-1], true
	}

	if idx == len(keyframes) {
		return keyframes[len(keyframes)-1], true
	}
	return keyframes[idx], true
}

// Evaluate reports whether start and end each sit within tolerance of a
// keyframe. The check is directional: start is judged against the nearest
// keyframe at or before it, end against the nearest at or after it, since
// those are the cut boundaries stream copy would actually land on. The
// effective bounds are the requested ones; snapping is a separate, opt-in
// step.
func Evaluate(start, end float64, keyframes []float64, tolerance float64) AlignmentResult {
	return AlignmentResult{
		EffectiveStart: start,
		EffectiveEnd:   end,
		StartAligned:   alignedTo(start, keyframes, true, tolerance),
		EndAligned:     alignedTo(end, keyframes, false, tolerance),
	}
}

// Snap moves each unaligned bound onto its nearest keyframe when that
// keyframe is within SnapTolerance. Bounds with no keyframe in reach keep
// their requested values. A snap that would collapse the clip is discarded.
func Snap(res AlignmentResult, keyframes []float64, tolerance float64) AlignmentResult {
	start := res.EffectiveStart
	end := res.EffectiveEnd

	if !res.StartAligned {
		if ts, ok := nearestEitherSide(start, keyframes); ok && math.Abs(ts-start) <= SnapTolerance {
			start = ts
		}
	}
	if !res.EndAligned {
		if ts, ok := nearestEitherSide(end, keyframes); ok && math.Abs(ts-end) <= SnapTolerance {
			end = ts
		}
	}

	if end <= start {
		return res
	}
	return Evaluate(start, end, keyframes, tolerance)
}

// nearestEitherSide finds the globally closest keyframe to t.
func nearestEitherSide(t float64, keyframes []float64) (float64, bool) {
	before, okB := NearestKeyframe(t, keyframes, true)
	after, okA := NearestKeyframe(t, keyframes, false)
	if !okB && !okA {
		return 0, false
	}
	if math.Abs(before-t) <= math.Abs(after-t) {
		return before, true
	}
	return after, true
}

func alignedTo(t float64, keyframes []float64, preferBefore bool, tolerance float64) bool {
	ts, ok := NearestKeyframe(t, keyframes, preferBefore)
	return ok && math.Abs(ts-t) <= tolerance
}
