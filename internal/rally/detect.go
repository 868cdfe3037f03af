package rally

import (
	"sort"

	"github.com/rawblock/solrank/pkg/models"
)

// Detect returns a time-ordered, non-overlapping set of rallies found in
// candles. Short input (fewer than 5 candles) or no valid starts yields
// nil (§4.3 Result).
func Detect(candles []models.Candle) []models.Rally {
	if len(candles) < 5 {
		return nil
	}

	var provisional []models.Rally
	for i := range candles {
		if !isValidStart(candles, i) {
			continue
		}
		if r, ok := growWindow(candles, i); ok {
			provisional = append(provisional, r)
		}
	}

	return dedupe(provisional)
}

// isValidStart implements §4.3 "Valid start": green, per-candle gain >=
// MinStartGain, and volume clears either the absolute floor (too little
// history for a baseline) or the baseline-relative bar.
func isValidStart(candles []models.Candle, i int) bool {
	c := candles[i]
	if !c.IsGreen() {
		return false
	}
	if c.PctChange() < MinStartGain {
		return false
	}
	baseline, useFixed := volumeBaseline(candles, i)
	if useFixed {
		return c.VolumeUSD >= fixedVolumeFloor
	}
	return c.VolumeUSD >= startVolumeThreshold(baseline)
}

// growWindow extends a rally from startIdx, evaluating the end conditions
// incrementally as length grows, then validates the resulting window.
func growWindow(candles []models.Candle, startIdx int) (models.Rally, bool) {
	n := len(candles)
	peakPrice := candles[startIdx].Close
	peakIdx := startIdx
	var volSum float64
	greenCount, redCount := 0, 0

	endIdx := startIdx
	for i := startIdx; i < n; i++ {
		c := candles[i]
		if c.Close > peakPrice {
			peakPrice = c.Close
			peakIdx = i
		}
		if c.IsGreen() {
			greenCount++
		} else {
			redCount++
		}
		volSum += c.VolumeUSD
		endIdx = i

		length := i - startIdx + 1
		if length >= MaxRallyLength {
			break
		}
		if length < 2 {
			continue // need at least 2 candles before any end rule can fire
		}

		avgVol := volSum / float64(length)
		if shouldEnd(candles, startIdx, i, peakPrice, avgVol) {
			break
		}
	}

	return buildRally(candles, startIdx, endIdx, peakIdx, peakPrice, greenCount, redCount)
}

// shouldEnd implements §4.3 "End detection", conditions (a)-(d), evaluated
// against the window [startIdx, i] discovered so far.
func shouldEnd(candles []models.Candle, startIdx, i int, peakPrice, avgRallyVol float64) bool {
	length := i - startIdx + 1
	c := candles[i]

	// (a) last three candles each below ConsolidationThreshold in absolute move
	if i-startIdx >= 2 {
		allFlat := true
		for k := i; k > i-3 && k >= startIdx; k-- {
			if abs(candles[k].PctChange()) >= ConsolidationThreshold {
				allFlat = false
				break
			}
		}
		if i-2 >= startIdx && allFlat {
			return true
		}
	}

	// (b) current close drops below peak by DrawdownEndThreshold
	if peakPrice > 0 {
		drawdown := (c.Close - peakPrice) / peakPrice * 100
		if drawdown <= DrawdownEndThreshold {
			return true
		}
	}

	// (c) length >= 5 and current volume < VolumeExhaustion * average rally volume
	if length >= 5 && avgRallyVol > 0 && c.VolumeUSD < VolumeExhaustion*avgRallyVol {
		return true
	}

	// (d) 3 of the last 5 candles are red
	if i-startIdx >= 4 {
		redInWindow := 0
		for k := i; k > i-5 && k >= startIdx; k-- {
			if !candles[k].IsGreen() {
				redInWindow++
			}
		}
		if redInWindow >= 3 {
			return true
		}
	}

	return false
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

// buildRally validates the provisional window and, if it passes,
// computes the full Rally record (§4.3 Window validation).
func buildRally(candles []models.Candle, startIdx, endIdx, peakIdx int, peakPrice float64, greenCount, redCount int) (models.Rally, bool) {
	if endIdx < startIdx+1 {
		return models.Rally{}, false
	}

	startPrice := candles[startIdx].Close
	endPrice := candles[endIdx].Close
	if startPrice <= 0 {
		return models.Rally{}, false
	}

	totalGain := (endPrice - startPrice) / startPrice * 100
	peakGain := (peakPrice - startPrice) / startPrice * 100
	length := endIdx - startIdx + 1
	greenRatio := float64(greenCount) / float64(length)

	if totalGain < MinTotalGain || totalGain > maxTotalGainDataError {
		return models.Rally{}, false
	}
	if greenRatio < MinGreenRatio {
		return models.Rally{}, false
	}

	var combinedVol float64
	for i := startIdx; i <= endIdx; i++ {
		combinedVol += candles[i].VolumeUSD
	}

	maxDrawdown := computeMaxDrawdown(candles, startIdx, endIdx)

	r := models.Rally{
		StartIdx:     startIdx,
		EndIdx:       endIdx,
		StartTime:    candles[startIdx].T,
		EndTime:      candles[endIdx].T,
		TotalGainPct: totalGain,
		PeakGainPct:  peakGain,
		GreenRatio:   greenRatio,
		GreenCount:   greenCount,
		RedCount:     redCount,
		CombinedVol:  combinedVol,
		StartPrice:   startPrice,
		EndPrice:     endPrice,
		PeakPrice:    peakPrice,
		MaxDrawdown:  maxDrawdown,
	}
	r.Type = classify(r)
	return r, true
}

func computeMaxDrawdown(candles []models.Candle, startIdx, endIdx int) float64 {
	runningPeak := candles[startIdx].Close
	worst := 0.0
	for i := startIdx; i <= endIdx; i++ {
		c := candles[i].Close
		if c > runningPeak {
			runningPeak = c
		}
		if runningPeak > 0 {
			dd := (c - runningPeak) / runningPeak * 100
			if dd < worst {
				worst = dd
			}
		}
	}
	return worst
}

// classify buckets a validated rally by length, total/peak gain, and
// green ratio, gated in the same order and on the same thresholds as
// pump_detector.py's classify_rally_type — length and shape alone aren't
// enough to tell an explosive pump from a standard one at the same
// length; the gain gates are what separates them.
func classify(r models.Rally) models.RallyType {
	length := r.Length()
	switch {
	case length <= 6 && r.TotalGainPct >= 40 && r.GreenRatio >= 0.75:
		return models.RallyExplosive
	case length >= 4 && length <= 20 && r.TotalGainPct >= 30 && r.GreenRatio >= 0.55:
		return models.RallyChoppy
	case length >= 10 && length <= 50 && r.TotalGainPct >= 80 && r.GreenRatio >= 0.45:
		return models.RallyGrind
	case length > 20 && r.GreenRatio >= 0.40 && r.PeakGainPct >= 100:
		return models.RallyUltraChoppy
	default:
		return models.RallyStandard
	}
}

// dedupe implements §4.3's greedy acceptance with quality-score override:
// sort by start index ascending, accept greedily, reject a later rally
// that overlaps an accepted one by more than overlapBoundPct of the
// shorter length unless its quality score beats the accepted one by
// qualityOverrideFactor, in which case it replaces the accepted rally.
func dedupe(rallies []models.Rally) []models.Rally {
	if len(rallies) == 0 {
		return nil
	}

	sorted := make([]models.Rally, len(rallies))
	copy(sorted, rallies)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].StartIdx < sorted[j].StartIdx })

	var accepted []models.Rally
	for _, candidate := range sorted {
		replacedIdx := -1
		overlapsAny := false

		for i, acc := range accepted {
			ov := overlapLength(acc, candidate)
			if ov <= 0 {
				continue
			}
			shorter := acc.Length()
			if candidate.Length() < shorter {
				shorter = candidate.Length()
			}
			if float64(ov) <= overlapBoundPct*float64(shorter) {
				continue // overlap within the tolerated bound; both can stand
			}

			overlapsAny = true
			if candidate.QualityScore() >= qualityOverrideFactor*acc.QualityScore() {
				replacedIdx = i
			}
			break
		}

		switch {
		case replacedIdx >= 0:
			accepted[replacedIdx] = candidate
		case !overlapsAny:
			accepted = append(accepted, candidate)
		}
	}

	sort.Slice(accepted, func(i, j int) bool { return accepted[i].StartIdx < accepted[j].StartIdx })
	return accepted
}

func overlapLength(a, b models.Rally) int {
	lo := a.StartIdx
	if b.StartIdx > lo {
		lo = b.StartIdx
	}
	hi := a.EndIdx
	if b.EndIdx < hi {
		hi = b.EndIdx
	}
	if hi < lo {
		return 0
	}
	return hi - lo + 1
}
