package marketdata

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"time"

	"github.com/rawblock/solrank/internal/apperr"
	"github.com/rawblock/solrank/pkg/models"
)

type providerWalletDTO struct {
	Address     string  `json:"wallet"`
	VolumeUSD   float64 `json:"volumeUsd"`
	HoldingUSD  float64 `json:"holdingUsd"`
	FirstBuyMs  int64   `json:"firstBuyAt"`
}

func (d providerWalletDTO) toCandidate(source models.SourceTag) *models.CandidateWallet {
	metrics := models.SourceMetrics{VolumeUSD: d.VolumeUSD, HoldingUSD: d.HoldingUSD}
	if d.FirstBuyMs > 0 {
		metrics.FirstBuyAt = time.UnixMilli(d.FirstBuyMs)
	}
	return models.NewCandidateWallet(d.Address, source, metrics)
}

func (c *Client) fetchCandidates(ctx context.Context, endpoint string, params url.Values, source models.SourceTag) ([]*models.CandidateWallet, error) {
	body, err := c.adapter.Get(ctx, endpoint, params)
	if err != nil {
		return nil, err
	}
	var dtos []providerWalletDTO
	if err := json.Unmarshal(body, &dtos); err != nil {
		return nil, apperr.Wrap(apperr.ErrProviderBadData, endpoint+": "+err.Error())
	}
	out := make([]*models.CandidateWallet, 0, len(dtos))
	for _, d := range dtos {
		out = append(out, d.toCandidate(source))
	}
	return out, nil
}

// GetTopTraders fetches the top-performing traders over windowDays.
func (c *Client) GetTopTraders(ctx context.Context, address string, windowDays int) ([]*models.CandidateWallet, error) {
	params := url.Values{"windowDays": {strconv.Itoa(windowDays)}}
	return c.fetchCandidates(ctx, "/tokens/"+address+"/top-traders", params, models.SourceTopTrader)
}

// GetTopHolders fetches current holders, pre-filtered by holdingUSD and
// capped at limit, per §4.2's default minHoldingUSD=100, limit=1000.
func (c *Client) GetTopHolders(ctx context.Context, address string, minHoldingUSD float64, limit int) ([]*models.CandidateWallet, error) {
	if minHoldingUSD <= 0 {
		minHoldingUSD = 100
	}
	if limit <= 0 {
		limit = 1000
	}
	params := url.Values{
		"minHoldingUsd": {strconv.FormatFloat(minHoldingUSD, 'f', -1, 64)},
		"limit":         {strconv.Itoa(limit)},
	}
	holders, err := c.fetchCandidates(ctx, "/tokens/"+address+"/top-holders", params, models.SourceTopHolder)
	if err != nil {
		return nil, err
	}
	filtered := holders[:0]
	for _, h := range holders {
		if h.Metrics[models.SourceTopHolder].HoldingUSD >= minHoldingUSD {
			filtered = append(filtered, h)
		}
	}
	return filtered, nil
}

// GetFirstBuyers fetches the earliest buyers of the token.
func (c *Client) GetFirstBuyers(ctx context.Context, address string) ([]*models.CandidateWallet, error) {
	return c.fetchCandidates(ctx, "/tokens/"+address+"/first-buyers", nil, models.SourceFirstBuyer)
}

// GetRecentTrades fetches trades since sinceMs (unix milliseconds).
func (c *Client) GetRecentTrades(ctx context.Context, address string, sinceMs int64) ([]*models.CandidateWallet, error) {
	params := url.Values{"sinceMs": {strconv.FormatInt(sinceMs, 10)}}
	return c.fetchCandidates(ctx, "/tokens/"+address+"/recent-trades", params, models.SourceRecentTrader)
}

// PnL is the wallet's realized/total ROI multipliers for one token.
type PnL struct {
	RealizedMultiplier float64
	TotalMultiplier    float64
}

type providerPnLDTO struct {
	RealizedMultiplier float64 `json:"realizedMultiplier"`
	TotalMultiplier    float64 `json:"totalMultiplier"`
	HasData            bool    `json:"hasData"`
}

// GetWalletPnL fetches a wallet's PnL against one token, returning nil
// when the provider has no data for that pair (§4.2).
func (c *Client) GetWalletPnL(ctx context.Context, wallet, token string) (*PnL, error) {
	params := url.Values{"wallet": {wallet}, "token": {token}}
	body, err := c.adapter.Get(ctx, "/wallets/pnl", params)
	if err != nil {
		return nil, err
	}
	var dto providerPnLDTO
	if err := json.Unmarshal(body, &dto); err != nil {
		return nil, apperr.Wrap(apperr.ErrProviderBadData, "getWalletPnL: "+err.Error())
	}
	if !dto.HasData {
		return nil, nil
	}
	return &PnL{RealizedMultiplier: dto.RealizedMultiplier, TotalMultiplier: dto.TotalMultiplier}, nil
}

// EntryPrice is a wallet's resolved entry into a token.
type EntryPrice struct {
	PriceUSD  float64
	Timestamp time.Time
}

type providerEntryDTO struct {
	PriceUSD  float64 `json:"priceUsd"`
	AtMs      int64   `json:"timestamp"`
	HasData   bool    `json:"hasData"`
}

// GetEntryPrice fetches a wallet's entry price/timestamp for one token.
func (c *Client) GetEntryPrice(ctx context.Context, wallet, token string) (*EntryPrice, error) {
	params := url.Values{"wallet": {wallet}, "token": {token}}
	body, err := c.adapter.Get(ctx, "/wallets/entry-price", params)
	if err != nil {
		return nil, err
	}
	var dto providerEntryDTO
	if err := json.Unmarshal(body, &dto); err != nil {
		return nil, apperr.Wrap(apperr.ErrProviderBadData, "getEntryPrice: "+err.Error())
	}
	if !dto.HasData {
		return nil, nil
	}
	return &EntryPrice{PriceUSD: dto.PriceUSD, Timestamp: time.UnixMilli(dto.AtMs)}, nil
}

// extractPriceSanityMin/Max bound plausible memecoin price-per-token in
// USD (§4.2 Price extraction from a swap transaction).
const (
	extractPriceSanityMin = 0.0
	extractPriceSanityMax = 10.0
)

// ExtractSwapPrice prefers a direct provider-reported price when it falls
// in the sanity bound; otherwise derives volumeUSD/tokenAmount for
// whichever side references the subject mint, accepting only if that
// falls in the same bound. Returns ok=false when extraction fails.
func ExtractSwapPrice(reportedPriceUSD, volumeUSD, tokenAmount float64) (price float64, ok bool) {
	if reportedPriceUSD > extractPriceSanityMin && reportedPriceUSD < extractPriceSanityMax {
		return reportedPriceUSD, true
	}
	if tokenAmount <= 0 {
		return 0, false
	}
	derived := volumeUSD / tokenAmount
	if derived > extractPriceSanityMin && derived < extractPriceSanityMax {
		return derived, true
	}
	return 0, false
}
