package marketdata

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"

	"github.com/rawblock/solrank/internal/apperr"
	"github.com/rawblock/solrank/pkg/models"
)

// CandleSizeMapping mirrors the provider's resolution-name convention,
// grounded on original_source/Backend/pump_detector.py's CANDLE_SIZE_MAPPING.
var CandleSizeMapping = map[models.Resolution]string{
	models.Res1m:  "1m",
	models.Res5m:  "5m",
	models.Res15m: "15m",
	models.Res1h:  "1h",
	models.Res4h:  "4h",
	models.Res1d:  "1d",
}

type providerCandleDTO struct {
	T      int64   `json:"time"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
	VolUSD float64 `json:"volumeUsd"`
}

// GetOHLCV fetches a normalized, time-ascending candle sequence.
// daysBack must be in [1, 90] per §4.2.
func (c *Client) GetOHLCV(ctx context.Context, address string, daysBack int, resolution models.Resolution) ([]models.Candle, error) {
	if daysBack < 1 {
		daysBack = 1
	}
	if daysBack > 90 {
		daysBack = 90
	}

	params := url.Values{
		"type":     {CandleSizeMapping[resolution]},
		"daysBack": {strconv.Itoa(daysBack)},
	}
	body, err := c.adapter.Get(ctx, "/tokens/"+address+"/chart", params)
	if err != nil {
		return nil, err
	}

	var dtos []providerCandleDTO
	if err := json.Unmarshal(body, &dtos); err != nil {
		return nil, apperr.Wrap(apperr.ErrProviderBadData, "getOHLCV: "+err.Error())
	}

	candles := make([]models.Candle, 0, len(dtos))
	var lastT int64 = -1
	for _, d := range dtos {
		if d.T <= lastT {
			continue // guards the strictly-monotonic-t invariant (§3 Candle)
		}
		candles = append(candles, models.Candle{
			T:          d.T,
			Open:       d.Open,
			High:       d.High,
			Low:        d.Low,
			Close:      d.Close,
			BaseVolume: d.Volume,
			VolumeUSD:  d.VolUSD,
		})
		lastT = d.T
	}
	return candles, nil
}

// ATH is the resolved all-time-high used for scoring and display — same
// value feeds both, per DESIGN.md's decision on spec §9 open question 4.
type ATH struct {
	PriceUSD     float64
	MarketCapUSD float64
	At           int64
}

type providerOverviewDTO struct {
	ATHPriceUSD     float64 `json:"athPriceUsd"`
	ATHMarketCapUSD float64 `json:"athMarketCapUsd"`
	ATHAt           int64   `json:"athAt"`
}

// GetTokenATH resolves ATH via the three-level hybrid in §4.2: the
// provider's overview field, else the max of a long historical window,
// else the max close already present in an in-hand OHLCV sequence.
func (c *Client) GetTokenATH(ctx context.Context, address string, fallbackCandles []models.Candle) (*ATH, error) {
	if ath, ok, err := c.athFromOverview(ctx, address); err != nil {
		return nil, err
	} else if ok {
		return ath, nil
	}

	if ath, ok, err := c.athFromHistory(ctx, address); err != nil {
		return nil, err
	} else if ok {
		return ath, nil
	}

	if ath, ok := athFromCandles(fallbackCandles); ok {
		return ath, nil
	}
	return nil, nil
}

func (c *Client) athFromOverview(ctx context.Context, address string) (*ATH, bool, error) {
	body, err := c.adapter.Get(ctx, "/tokens/"+address+"/overview", nil)
	if err != nil {
		return nil, false, err
	}
	var dto providerOverviewDTO
	if err := json.Unmarshal(body, &dto); err != nil {
		return nil, false, nil // treat malformed overview as "missing", not fatal
	}
	if dto.ATHPriceUSD <= 0 {
		return nil, false, nil
	}
	return &ATH{PriceUSD: dto.ATHPriceUSD, MarketCapUSD: dto.ATHMarketCapUSD, At: dto.ATHAt}, true, nil
}

// athLookbackDays and athLookbackResolution are the "long window" the
// hybrid resolution falls back to, per §4.2.
const athLookbackDays = 90

var athLookbackResolution = models.Res5m

func (c *Client) athFromHistory(ctx context.Context, address string) (*ATH, bool, error) {
	candles, err := c.GetOHLCV(ctx, address, athLookbackDays, athLookbackResolution)
	if err != nil {
		return nil, false, nil // degrade to the next fallback level rather than fail the request
	}
	return athFromCandles(candles)
}

func athFromCandles(candles []models.Candle) (*ATH, bool) {
	if len(candles) == 0 {
		return nil, false
	}
	var max models.Candle
	for _, c := range candles {
		if c.Close > max.Close {
			max = c
		}
	}
	if max.Close <= 0 {
		return nil, false
	}
	return &ATH{PriceUSD: max.Close, At: max.T}, true
}
