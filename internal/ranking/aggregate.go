package ranking

import (
	"math"
	"sort"

	"github.com/rawblock/solrank/pkg/models"
)

// WalletTokenResult is one wallet's scored outcome on one token, the unit
// the cross-token aggregator consumes. EntryLagMinutes is the time from
// the subject token's first rally start to this wallet's entry —
// avg_timing_minutes/earliest_call_minutes are built from it.
type WalletTokenResult struct {
	Address           string
	Ticker            string
	ProfessionalScore float64
	DistanceToATHPct  float64
	EntryMarketCapUSD float64
	ATHMarketCapUSD   float64
	EntryTimestamp    int64 // unix seconds, for tie-break
	EntryLagMinutes   float64
	HighConfidence    bool
}

// RankSingleToken sorts a single token's scored wallets by professional
// score (earlier entry breaks ties) and returns the top 20, per §4.7
// Output.
func RankSingleToken(results []WalletTokenResult) []models.ScoredWallet {
	sorted := make([]WalletTokenResult, len(results))
	copy(sorted, results)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].ProfessionalScore != sorted[j].ProfessionalScore {
			return sorted[i].ProfessionalScore > sorted[j].ProfessionalScore
		}
		return sorted[i].EntryTimestamp < sorted[j].EntryTimestamp
	})
	if len(sorted) > 20 {
		sorted = sorted[:20]
	}

	out := make([]models.ScoredWallet, 0, len(sorted))
	for _, r := range sorted {
		tier := AssignTier(TierInput{PumpCount: 1, AvgDistance: r.DistanceToATHPct, Stdev: 0})
		out = append(out, toScoredWallet(r, tier, []WalletTokenResult{r}))
	}
	return out
}

// accumulator holds the per-wallet running cross-token state while
// building the aggregate map — the "single aggregator map keyed on
// walletAddress" design called for in spec §9 (no pointer graphs).
type accumulator struct {
	address string
	perToken []WalletTokenResult
}

// CrossTokenResult is the two-stage §4.7 output: the qualifying overlap
// wallets (top 10, surfaced separately per §6) and the full top-20
// ranking (overlap wallets first, then single-token backfill).
type CrossTokenResult struct {
	Overlap []models.ScoredWallet
	Top20   []models.ScoredWallet
}

// RankCrossToken builds the wallet -> {tokensHit, per-token scores} map,
// applies the min_runner_hits filter, and produces the final two-stage
// ordering from §4.7.
func RankCrossToken(results []WalletTokenResult, minRunnerHits int) CrossTokenResult {
	byAddr := make(map[string]*accumulator)
	var order []string
	for _, r := range results {
		acc, ok := byAddr[r.Address]
		if !ok {
			acc = &accumulator{address: r.Address}
			byAddr[r.Address] = acc
			order = append(order, r.Address)
		}
		acc.perToken = append(acc.perToken, r)
	}

	var overlap, single []*accumulator
	for _, addr := range order {
		acc := byAddr[addr]
		if len(acc.perToken) >= minRunnerHits {
			overlap = append(overlap, acc)
		} else {
			single = append(single, acc)
		}
	}

	sort.Slice(overlap, func(i, j int) bool {
		a, b := overlap[i], overlap[j]
		if len(a.perToken) != len(b.perToken) {
			return len(a.perToken) > len(b.perToken)
		}
		return avgScore(a.perToken) > avgScore(b.perToken)
	})
	sort.Slice(single, func(i, j int) bool {
		return avgScore(single[i].perToken) > avgScore(single[j].perToken)
	})

	overlapWallets := make([]models.ScoredWallet, 0, len(overlap))
	for _, acc := range overlap {
		overlapWallets = append(overlapWallets, buildCrossTokenWallet(acc))
	}
	if len(overlapWallets) > 10 {
		overlapWallets = overlapWallets[:10]
	}

	top20 := make([]models.ScoredWallet, 0, 20)
	for _, acc := range overlap {
		if len(top20) >= 20 {
			break
		}
		top20 = append(top20, buildCrossTokenWallet(acc))
	}
	for _, acc := range single {
		if len(top20) >= 20 {
			break
		}
		top20 = append(top20, buildCrossTokenWallet(acc))
	}

	return CrossTokenResult{Overlap: overlapWallets, Top20: top20}
}

func avgScore(tokens []WalletTokenResult) float64 {
	if len(tokens) == 0 {
		return 0
	}
	var sum float64
	for _, t := range tokens {
		sum += t.ProfessionalScore
	}
	return sum / float64(len(tokens))
}

func buildCrossTokenWallet(acc *accumulator) models.ScoredWallet {
	avgDist, stdevDist := meanStdev(distances(acc.perToken))
	tier := AssignTier(TierInput{PumpCount: len(acc.perToken), AvgDistance: avgDist, Stdev: stdevDist})

	best := acc.perToken[0]
	for _, t := range acc.perToken {
		if t.ProfessionalScore > best.ProfessionalScore {
			best = t
		}
	}
	return toScoredWallet(best, tier, acc.perToken)
}

func distances(tokens []WalletTokenResult) []float64 {
	out := make([]float64, len(tokens))
	for i, t := range tokens {
		out[i] = t.DistanceToATHPct
	}
	return out
}

func meanStdev(values []float64) (mean, stdev float64) {
	if len(values) == 0 {
		return 0, 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean = sum / float64(len(values))

	var variance float64
	for _, v := range values {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(values))
	return mean, math.Sqrt(variance)
}

func toScoredWallet(best WalletTokenResult, tier models.Tier, perToken []WalletTokenResult) models.ScoredWallet {
	tickers := make([]string, 0, len(perToken))
	scores := make([]models.PerTokenScore, 0, len(perToken))
	var lagSum, earliestLag float64
	var highConf int
	earliestLag = math.MaxFloat64

	for _, t := range perToken {
		tickers = append(tickers, t.Ticker)
		scores = append(scores, models.PerTokenScore{
			Ticker:               t.Ticker,
			ProfessionalScore:    t.ProfessionalScore,
			DistanceToATHPct:     t.DistanceToATHPct,
			EntryMarketCapUSD:    t.EntryMarketCapUSD,
			ATHMarketCapUSD:      t.ATHMarketCapUSD,
		})
		lagSum += t.EntryLagMinutes
		if t.EntryLagMinutes < earliestLag {
			earliestLag = t.EntryLagMinutes
		}
		if t.HighConfidence {
			highConf++
		}
	}

	avgScoreVal := avgScore(perToken)
	if earliestLag == math.MaxFloat64 {
		earliestLag = 0
	}

	return models.ScoredWallet{
		Address:             best.Address,
		ProfessionalScore:   avgScoreVal,
		Tier:                tier,
		TokensHit:           tickers,
		PerToken:            scores,
		EntryMarketCapUSD:   best.EntryMarketCapUSD,
		ATHMarketCapUSD:     best.ATHMarketCapUSD,
		PumpsCalled:         len(perToken),
		AvgTimingMinutes:    lagSum / float64(len(perToken)),
		EarliestCallMinutes: earliestLag,
		HighConfidenceCount: highConf,
	}
}
