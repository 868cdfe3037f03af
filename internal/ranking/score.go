// Package ranking implements C7: the ROI-to-score mapping, the per-token
// professional score, tier assignment, and cross-token aggregation.
//
// The composite-score-into-a-struct shape and the stepwise tier function
// are grounded on the teacher's heuristics.CalibratePrivacyScore and
// heuristics.classifySeverity/recommendAction — weighted-signal scoring
// clamped to [0,100], and score-range switch statements, respectively.
package ranking

import (
	"math"
	"sort"

	"github.com/rawblock/solrank/pkg/models"
)

// DefaultCeiling is the §4.7 ROI-to-score ceiling.
const DefaultCeiling = 1000.0

// Score weights for the professional score composite (§4.7).
const (
	WeightEntryQuality = 0.60
	WeightTotalROI     = 0.30
	WeightConsistency  = 0.10
)

// ROIToScore log-scales a ROI multiplier into [0,100]. m<=1 maps to 0;
// m==ceiling maps to 100; strictly increasing in between.
func ROIToScore(m, ceiling float64) float64 {
	if ceiling <= 1 {
		ceiling = DefaultCeiling
	}
	if m <= 1 {
		return 0
	}
	score := math.Log10(m) / math.Log10(ceiling) * 100
	if score > 100 {
		return 100
	}
	if score < 0 {
		return 0
	}
	return score
}

// Breakdown carries the three weighted components of a professional
// score, so callers can audit how a wallet's score was built instead of
// only seeing the final number.
type Breakdown struct {
	EntryQualityScore float64
	TotalROIScore     float64
	Consistency       float64
	Professional      float64
}

// EntryConsistency is the §4.7 10% component: a normalised inverse of the
// wallet's own entry-price variance across its buys in this token. A
// single buy is awarded half credit, since variance is undefined.
func EntryConsistency(buys []models.Buy) float64 {
	if len(buys) == 0 {
		return 0
	}
	if len(buys) == 1 {
		return 50
	}

	var sum float64
	for _, b := range buys {
		sum += b.PriceUSD
	}
	mean := sum / float64(len(buys))
	if mean <= 0 {
		return 0
	}

	var variance float64
	for _, b := range buys {
		d := b.PriceUSD - mean
		variance += d * d
	}
	variance /= float64(len(buys))
	stdev := math.Sqrt(variance)
	coefficientOfVariation := stdev / mean

	// Normalised inverse: a CoV of 0 is perfectly consistent (100); a CoV
	// of 1 or more (stdev as large as the mean) is treated as 0.
	consistency := (1 - coefficientOfVariation) * 100
	if consistency < 0 {
		return 0
	}
	if consistency > 100 {
		return 100
	}
	return consistency
}

// ProfessionalScore computes the §4.7 60/30/10 composite for a qualified
// wallet in one token.
func ProfessionalScore(q models.QualifiedWallet, ceiling float64) Breakdown {
	entryQuality := ROIToScore(q.EntryToATHMultiplier, ceiling)

	bestROI := q.RealizedROIMultiplier
	if q.TotalROIMultiplier > bestROI {
		bestROI = q.TotalROIMultiplier
	}
	totalROI := ROIToScore(bestROI, ceiling)

	consistency := EntryConsistency(q.Buys)

	professional := WeightEntryQuality*entryQuality + WeightTotalROI*totalROI + WeightConsistency*consistency

	return Breakdown{
		EntryQualityScore: entryQuality,
		TotalROIScore:     totalROI,
		Consistency:       consistency,
		Professional:      professional,
	}
}

// sortQualifiedByScoreThenTime breaks professional-score ties by earlier
// entryTimestamp first, per §4.7.
func sortQualifiedByScoreThenTime(wallets []models.QualifiedWallet, scores []float64) []int {
	idx := make([]int, len(wallets))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool {
		if scores[idx[a]] != scores[idx[b]] {
			return scores[idx[a]] > scores[idx[b]]
		}
		return wallets[idx[a]].EntryTimestamp.Before(wallets[idx[b]].EntryTimestamp)
	})
	return idx
}
