package pipeline

import (
	"encoding/json"

	"github.com/rawblock/solrank/pkg/models"
)

// Job function names registered against the taskqueue.Runtime. Matches
// original_source/Backend/services/token_analyzer.py's task names, one
// function per leaf/batch operation in spec §4.6.
const (
	FnTopTraders   = "leaf.top_traders"
	FnFirstBuyers  = "leaf.first_buyers"
	FnRecentTrades = "leaf.recent_trades"
	FnOHLCVRally   = "leaf.ohlcv_rally"
	FnTopHolders   = "leaf.top_holders"
	FnPnLSubBatch  = "batch.pnl_subbatch"
)

type leafArgs struct {
	TokenAddress string `json:"tokenAddress"`
	DaysBack     int    `json:"daysBack,omitempty"`
}

type ohlcvResult struct {
	Candles []models.Candle `json:"candles"`
	Rallies []models.Rally  `json:"rallies"`
}

type pnlSubBatchArgs struct {
	TokenAddress  string   `json:"tokenAddress"`
	Wallets       []string `json:"wallets"`
	MinROIMultiplier float64 `json:"minRoiMultiplier"`
}

// pnlVerdict is one wallet's outcome from a PnL sub-batch job: whether it
// cleared MIN_ROI_MULT on either the realized or total multiplier.
type pnlVerdict struct {
	Address  string  `json:"address"`
	Passed   bool    `json:"passed"`
	Realized float64 `json:"realized"`
	Total    float64 `json:"total"`
}

type pnlSubBatchResult struct {
	Verdicts []pnlVerdict `json:"verdicts"`
}

func encodeJSON(v any) []byte {
	b, _ := json.Marshal(v)
	return b
}

func decodeJSON[T any](b []byte) (T, error) {
	var v T
	err := json.Unmarshal(b, &v)
	return v, err
}
