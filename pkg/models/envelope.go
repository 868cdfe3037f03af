package models

// AnalysisOptions carries the tunables from §6; zero values are replaced
// with the documented defaults by DefaultOptions, which the pipeline calls.
type AnalysisOptions struct {
	MinROIMultiplier  float64    `json:"min_roi_multiplier"`
	MinRunnerHits     int        `json:"min_runner_hits"`
	AnalysisTimeframe string     `json:"analysis_timeframe"`
	CandleSize        Resolution `json:"candle_size"`
}

// DefaultOptions fills in the §6 defaults for any zero-valued field.
func DefaultOptions(o AnalysisOptions) AnalysisOptions {
	if o.MinROIMultiplier <= 0 {
		o.MinROIMultiplier = 5.0
	}
	if o.MinRunnerHits <= 0 {
		o.MinRunnerHits = 2 // spec §9 open question 2: batch-path default
	}
	if o.CandleSize == "" {
		o.CandleSize = Res5m
	}
	if o.AnalysisTimeframe == "" {
		o.AnalysisTimeframe = "24h"
	}
	return o
}

// TokenRequest is one entry of the request's `tokens` array.
type TokenRequest struct {
	Address     string `json:"address"`
	Chain       string `json:"chain"`
	Ticker      string `json:"ticker"`
	Name        string `json:"name"`
	PairAddress string `json:"pair_address,omitempty"`
}

// AnalysisRequest is the top-level §6 request shape.
type AnalysisRequest struct {
	Tokens  []TokenRequest  `json:"tokens"`
	Options AnalysisOptions `json:"options"`
}

// RallyExport is the §6 rally export shape, distinct from the internal
// Rally type so indices never leak across the wire.
type RallyExport struct {
	StartTime      int64      `json:"start_time"`
	EndTime        int64      `json:"end_time"`
	TotalGainPct   float64    `json:"total_gain_pct"`
	PeakGainPct    float64    `json:"peak_gain_pct"`
	RallyType      RallyType  `json:"rally_type"`
	CandleCount    int        `json:"candle_count"`
	GreenRatioPct  float64    `json:"green_ratio_pct"`
	VolumeData     VolumeData `json:"volume_data"`
}

// VolumeData is the rally export's nested volume summary.
type VolumeData struct {
	AvgVolumeUSD     float64 `json:"avg_volume"`
	PeakVolumeUSD    float64 `json:"peak_volume"`
	VolumeSpikeRatio float64 `json:"volume_spike_ratio"`
}

// ScoredWalletExport is the §6 ScoredWallet export shape.
type ScoredWalletExport struct {
	Address             string   `json:"address"`
	Tier                Tier     `json:"tier"`
	ProfessionalScore   float64  `json:"professional_score"`
	EntryMarketCapUSD   float64  `json:"entry_market_cap"`
	ATHMarketCapUSD     float64  `json:"ath_market_cap"`
	TokensHit           []string `json:"tokens_hit"`
	PumpsCalled         int      `json:"pumps_called"`
	AvgTimingMinutes    float64  `json:"avg_timing_minutes"`
	EarliestCallMinutes float64  `json:"earliest_call_minutes"`
	HighConfidenceCount int      `json:"high_confidence_count,omitempty"`
}

// ToExport converts an internal ScoredWallet into its wire shape.
func (s ScoredWallet) ToExport() ScoredWalletExport {
	return ScoredWalletExport{
		Address:             s.Address,
		Tier:                s.Tier,
		ProfessionalScore:   s.ProfessionalScore,
		EntryMarketCapUSD:   s.EntryMarketCapUSD,
		ATHMarketCapUSD:     s.ATHMarketCapUSD,
		TokensHit:           s.TokensHit,
		PumpsCalled:         s.PumpsCalled,
		AvgTimingMinutes:    s.AvgTimingMinutes,
		EarliestCallMinutes: s.EarliestCallMinutes,
		HighConfidenceCount: s.HighConfidenceCount,
	}
}

// TokenResult is one entry of the result envelope's `results` array.
type TokenResult struct {
	Token       TokenRequest         `json:"token"`
	Success     bool                 `json:"success"`
	Error       string               `json:"error,omitempty"`
	Rallies     int                  `json:"rallies"`
	PumpInfo    string               `json:"pump_info,omitempty"`
	RallyDetails []RallyExport       `json:"rally_details"`
	TopWallets  []ScoredWalletExport `json:"top_wallets"`
}

// Summary is the result envelope's `summary` block.
type Summary struct {
	TotalTokens         int `json:"total_tokens"`
	Successful          int `json:"successful"`
	Failed              int `json:"failed"`
	TotalPumps          int `json:"total_pumps"`
	CrossTokenAccounts  int `json:"cross_token_accounts"`
}

// AnalysisResult is the top-level §6 result envelope.
type AnalysisResult struct {
	Success           bool                 `json:"success"`
	Summary           Summary              `json:"summary"`
	Results           []TokenResult        `json:"results"`
	CrossTokenOverlap []ScoredWalletExport `json:"cross_token_overlap"`
}
