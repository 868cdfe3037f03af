package marketdata

import (
	"testing"

	"github.com/rawblock/solrank/pkg/models"
)

func TestExtractSwapPrice_PrefersReportedPrice(t *testing.T) {
	price, ok := ExtractSwapPrice(0.05, 1000, 500)
	if !ok || price != 0.05 {
		t.Errorf("expected reported price 0.05, got %v ok=%v", price, ok)
	}
}

func TestExtractSwapPrice_FallsBackToDerived(t *testing.T) {
	// reported price out of sanity bound -> derive from volume/amount
	price, ok := ExtractSwapPrice(50, 1000, 2000)
	if !ok || price != 0.5 {
		t.Errorf("expected derived price 0.5, got %v ok=%v", price, ok)
	}
}

func TestExtractSwapPrice_RejectsOutOfBoundDerived(t *testing.T) {
	_, ok := ExtractSwapPrice(50, 1000, 10)
	if ok {
		t.Errorf("expected extraction to fail when derived price is out of (0,10) bound")
	}
}

func TestAthFromCandles_PicksMaxClose(t *testing.T) {
	candles := []models.Candle{
		{T: 1, Close: 1.0},
		{T: 2, Close: 3.5},
		{T: 3, Close: 2.0},
	}
	ath, ok := athFromCandles(candles)
	if !ok || ath.PriceUSD != 3.5 || ath.At != 2 {
		t.Errorf("expected ATH 3.5@t=2, got %+v ok=%v", ath, ok)
	}
}

func TestAthFromCandles_EmptyInput(t *testing.T) {
	if _, ok := athFromCandles(nil); ok {
		t.Errorf("expected no ATH from an empty candle sequence")
	}
}
