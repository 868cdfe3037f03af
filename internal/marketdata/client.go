// Package marketdata provides typed wrappers (C2) over the external
// market-data provider's HTTP endpoints, built on top of the keypool's
// RequestAdapter (C1). Every method here is a pure projection of one
// provider endpoint into the shared domain types in pkg/models.
package marketdata

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"time"

	"github.com/rawblock/solrank/internal/apperr"
	"github.com/rawblock/solrank/internal/keypool"
	"github.com/rawblock/solrank/pkg/models"
)

// Client wraps the provider's REST surface. Mirrors the teacher's
// bitcoin.Client shape: one struct holding the transport, one method per
// provider endpoint, typed inputs and outputs.
type Client struct {
	adapter *keypool.RequestAdapter
}

// NewClient builds a market-data client over a shared key pool.
func NewClient(pool *keypool.Pool, baseURL string) *Client {
	return &Client{adapter: keypool.NewRequestAdapter(pool, baseURL)}
}

// resolutionSeconds maps a Resolution to candle width in seconds. Nothing
// in this package reads it; provider output is not validated against it.
var resolutionSeconds = map[models.Resolution]int64{
	models.Res1m:  60,
	models.Res5m:  300,
	models.Res15m: 900,
	models.Res1h:  3600,
	models.Res4h:  14400,
	models.Res1d:  86400,
}

// providerTokenDTO is the wire shape returned by the token-search and
// token-metadata endpoints before normalization.
type providerTokenDTO struct {
	Mint         string  `json:"mint"`
	Ticker       string  `json:"symbol"`
	Name         string  `json:"name"`
	PairAddress  string  `json:"pairAddress"`
	LiquidityUSD float64 `json:"liquidityUsd"`
	PriceUSD     float64 `json:"priceUsd"`
	MarketCapUSD float64 `json:"marketCapUsd"`
	Volume24h    float64 `json:"volume24h"`
	Holders      int     `json:"holders"`
	CreatedAtMs  int64   `json:"createdAt"`
	LPBurnPct    float64 `json:"lpBurnPct"`
	MintRevoked  bool    `json:"mintAuthorityRevoked"`
	FreezeRevoked bool   `json:"freezeAuthorityRevoked"`
}

func (d providerTokenDTO) toToken() models.Token {
	return models.Token{
		Address:      d.Mint,
		Chain:        models.Chain,
		Ticker:       d.Ticker,
		Name:         d.Name,
		PairAddress:  d.PairAddress,
		LiquidityUSD: d.LiquidityUSD,
		PriceUSD:     d.PriceUSD,
		MarketCapUSD: d.MarketCapUSD,
		Volume24hUSD: d.Volume24h,
		Holders:      d.Holders,
		CreatedAt:    time.UnixMilli(d.CreatedAtMs),
		Flags: models.Flags{
			LPBurnPercent:          d.LPBurnPct,
			MintAuthorityRevoked:   d.MintRevoked,
			FreezeAuthorityRevoked: d.FreezeRevoked,
		},
	}
}

// SearchTokens searches the provider's token index. minLiquidity is not
// sent to the provider; it is applied client-side to the returned tokens.
func (c *Client) SearchTokens(ctx context.Context, query string, limit int, minLiquidity float64, sortBy string) ([]models.Token, error) {
	params := url.Values{
		"query":   {query},
		"limit":   {strconv.Itoa(limit)},
		"sortBy":  {sortBy},
	}
	body, err := c.adapter.Get(ctx, "/tokens/search", params)
	if err != nil {
		return nil, err
	}

	var dtos []providerTokenDTO
	if err := json.Unmarshal(body, &dtos); err != nil {
		return nil, apperr.Wrap(apperr.ErrProviderBadData, "searchTokens: "+err.Error())
	}

	out := make([]models.Token, 0, len(dtos))
	for _, d := range dtos {
		if d.LiquidityUSD < minLiquidity {
			continue
		}
		out = append(out, d.toToken())
	}
	return out, nil
}

// GetTokenMetadata fetches a single token's current metadata. Returns
// (zero, false, nil) when the provider answers with an empty or `null`
// body — the caller treats that as "not found" rather than an error. An
// HTTP 404 is not special-cased: the request adapter reports it as an error.
func (c *Client) GetTokenMetadata(ctx context.Context, address string) (models.Token, bool, error) {
	body, err := c.adapter.Get(ctx, "/tokens/"+address, nil)
	if err != nil {
		return models.Token{}, false, err
	}
	if len(body) == 0 || string(body) == "null" {
		return models.Token{}, false, nil
	}

	var dto providerTokenDTO
	if err := json.Unmarshal(body, &dto); err != nil {
		return models.Token{}, false, apperr.Wrap(apperr.ErrProviderBadData, "getTokenMetadata: "+err.Error())
	}
	return dto.toToken(), true, nil
}
