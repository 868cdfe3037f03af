package models

import "time"

// SourceTag records how a wallet entered the candidate pool. A wallet can
// carry more than one — sources are merged by union (§3 Candidate wallet).
type SourceTag string

const (
	SourceTopTrader    SourceTag = "topTrader"
	SourceFirstBuyer   SourceTag = "firstBuyer"
	SourceTopHolder    SourceTag = "topHolder"
	SourceRecentTrader SourceTag = "recentTrader"
)

// SourceMetrics holds the per-source raw numbers a candidate carried in
// from whichever provider endpoint surfaced it. Zero value is a valid
// "not reported by this source" state — avoids the dynamic-dispatch
// account-stats pattern called out in spec §9.
type SourceMetrics struct {
	VolumeUSD       float64   `json:"volumeUsd,omitempty"`
	HoldingUSD      float64   `json:"holdingUsd,omitempty"`
	FirstBuyAt      time.Time `json:"firstBuyAt,omitempty"`
}

// CandidateWallet is a chain address discovered by one or more source
// fan-outs, before any qualification check has run.
type CandidateWallet struct {
	Address string                        `json:"address"`
	Sources map[SourceTag]bool            `json:"sources"`
	Metrics map[SourceTag]SourceMetrics   `json:"metrics"`
}

// NewCandidateWallet starts a fresh candidate carrying a single source.
func NewCandidateWallet(address string, source SourceTag, metrics SourceMetrics) *CandidateWallet {
	return &CandidateWallet{
		Address: address,
		Sources: map[SourceTag]bool{source: true},
		Metrics: map[SourceTag]SourceMetrics{source: metrics},
	}
}

// MergeSource unions another source's sighting of the same address into
// this candidate. Pure union — no precedence between sources.
func (c *CandidateWallet) MergeSource(source SourceTag, metrics SourceMetrics) {
	if c.Sources == nil {
		c.Sources = make(map[SourceTag]bool)
	}
	if c.Metrics == nil {
		c.Metrics = make(map[SourceTag]SourceMetrics)
	}
	c.Sources[source] = true
	c.Metrics[source] = metrics
}

// HasSource reports whether the candidate was seen via the given source.
func (c *CandidateWallet) HasSource(source SourceTag) bool {
	return c.Sources[source]
}

// HasStrongSource reports whether the candidate qualifies for
// pre-qualification without a PnL round trip (§4.6 step 5): top-trader or
// first-buyer sources are considered strong evidence on their own.
func (c *CandidateWallet) HasStrongSource() bool {
	return c.HasSource(SourceTopTrader) || c.HasSource(SourceFirstBuyer)
}

// Buy is one recorded entry into a token, used to compute entry-price
// consistency (§4.7, 10% component).
type Buy struct {
	PriceUSD  float64   `json:"priceUsd"`
	Timestamp time.Time `json:"timestamp"`
	VolumeUSD float64   `json:"volumeUsd"`
}

// QualifiedWallet is a candidate promoted after §4.6 step 6/7: it carries
// the subject-token entry data needed for scoring.
type QualifiedWallet struct {
	Address                string      `json:"address"`
	Sources                 []SourceTag `json:"sources"`
	Buys                    []Buy       `json:"buys"`
	EntryPriceUSD           float64     `json:"entryPriceUsd"`
	EntryTimestamp          time.Time   `json:"entryTimestamp"`
	RealizedROIMultiplier   float64     `json:"realizedRoiMultiplier"`
	TotalROIMultiplier      float64     `json:"totalRoiMultiplier"`
	EntryToATHMultiplier    float64     `json:"entryToAthMultiplier"`
	DistanceToATHPct        float64     `json:"distanceToAthPct"`
	HoldingUSD              float64     `json:"holdingUsd,omitempty"`
}

// NumBuys returns how many distinct buy transactions fed this wallet's
// entry — used in the duplicate-buyer-aggregation scenario (spec §8,
// end-to-end scenario 6).
func (q QualifiedWallet) NumBuys() int { return len(q.Buys) }

// TotalVolumeUSD sums the USD volume across all recorded buys.
func (q QualifiedWallet) TotalVolumeUSD() float64 {
	var total float64
	for _, b := range q.Buys {
		total += b.VolumeUSD
	}
	return total
}

// Tier is the coarse S/A/B/C bucket assigned in §4.7.
type Tier string

const (
	TierS Tier = "S"
	TierA Tier = "A"
	TierB Tier = "B"
	TierC Tier = "C"
)

// PerTokenScore is one token's contribution to a cross-token scored
// wallet: the score it earned there, and the ticker for display.
type PerTokenScore struct {
	Ticker              string  `json:"ticker"`
	ProfessionalScore    float64 `json:"professionalScore"`
	EntryToATHMultiplier float64 `json:"entryToAthMultiplier"`
	DistanceToATHPct     float64 `json:"distanceToAthPct"`
	EntryMarketCapUSD    float64 `json:"entryMarketCapUsd"`
	ATHMarketCapUSD      float64 `json:"athMarketCapUsd"`
	EntryTimestamp       time.Time `json:"entryTimestamp"`
}

// ScoredWallet is a qualified wallet plus the §4.7 composite score, tier,
// and (after cross-token aggregation) the set of tokens it hit.
type ScoredWallet struct {
	Address            string          `json:"address"`
	ProfessionalScore  float64         `json:"professionalScore"`
	ConsistencyScore   float64         `json:"consistencyScore"`
	Tier               Tier            `json:"tier"`
	TokensHit          []string        `json:"tokensHit"`
	PerToken           []PerTokenScore `json:"perToken"`
	EntryMarketCapUSD  float64         `json:"entryMarketCapUsd"`
	ATHMarketCapUSD    float64         `json:"athMarketCapUsd"`
	PumpsCalled        int             `json:"pumpsCalled"`
	AvgTimingMinutes   float64         `json:"avgTimingMinutes"`
	EarliestCallMinutes float64        `json:"earliestCallMinutes"`
	HighConfidenceCount int            `json:"highConfidenceCount,omitempty"`
}
