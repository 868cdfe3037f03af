package rally

import (
	"sort"

	"github.com/rawblock/solrank/pkg/models"
)

// median returns the median of a sorted slice. Caller must sort first.
func median(sorted []float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// quartiles returns Q1/Q3 of a sorted slice via linear interpolation on rank.
func quartiles(sorted []float64) (q1, q3 float64) {
	n := len(sorted)
	if n == 0 {
		return 0, 0
	}
	return percentile(sorted, 0.25), percentile(sorted, 0.75)
}

func percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 1 {
		return sorted[0]
	}
	rank := p * float64(n-1)
	lo := int(rank)
	hi := lo + 1
	if hi >= n {
		return sorted[n-1]
	}
	frac := rank - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// volumeBaseline computes the baseline USD volume at index i: the median
// of the lookback=15 candles before i, after dropping IQR outliers outside
// [Q25-2*IQR, Q75+2*IQR] (only applied once the window holds more than 5
// candles, matching pump_detector.py's get_volume_baseline). useFixed
// reports that there isn't enough history to trust a baseline at all
// (i < smallIndexFloor, or fewer than minBaselineWindow lookback candles)
// — callers must compare against the absolute fixedVolumeFloor instead of
// a baseline-relative threshold in that case.
func volumeBaseline(candles []models.Candle, i int) (baseline float64, useFixed bool) {
	if i < smallIndexFloor {
		return 0, true
	}

	start := i - volumeLookback
	if start < 0 {
		start = 0
	}
	window := candles[start:i]
	if len(window) < minBaselineWindow {
		return 0, true
	}

	values := make([]float64, len(window))
	for idx, c := range window {
		values[idx] = c.VolumeUSD
	}
	sort.Float64s(values)

	if len(values) > 5 {
		q1, q3 := quartiles(values)
		iqr := q3 - q1
		lowerBound := q1 - 2*iqr
		upperBound := q3 + 2*iqr

		trimmed := make([]float64, 0, len(values))
		for _, v := range values {
			if v >= lowerBound && v <= upperBound {
				trimmed = append(trimmed, v)
			}
		}
		if len(trimmed) > 0 {
			values = trimmed
		}
	}
	return median(values), false
}

// startVolumeThreshold is the baseline-relative volume bar a candidate
// start candle's own volume must clear: 0.3x baseline below the
// breakpoint, 0.5x at or above it (pump_detector.py is_valid_rally_start).
func startVolumeThreshold(baseline float64) float64 {
	if baseline < volumeThresholdBreakpoint {
		return baseline * lowVolumeMultiplier
	}
	return baseline * highVolumeMultiplier
}
