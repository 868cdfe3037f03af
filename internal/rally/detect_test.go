package rally

import (
	"testing"

	"github.com/rawblock/solrank/pkg/models"
)

func candle(t int64, open, close, volUSD float64) models.Candle {
	high := open
	if close > high {
		high = close
	}
	low := open
	if close < low {
		low = close
	}
	return models.Candle{T: t, Open: open, High: high, Low: low, Close: close, VolumeUSD: volUSD}
}

func TestDetect_EmptyBelowFiveCandles(t *testing.T) {
	candles := []models.Candle{
		candle(0, 1, 1.1, 1000),
		candle(1, 1.1, 1.2, 1000),
	}
	if rallies := Detect(candles); rallies != nil {
		t.Errorf("expected nil for <5 candles, got %v", rallies)
	}
}

func TestDetect_FlatRandomWalkNoRally(t *testing.T) {
	var candles []models.Candle
	price := 1.0
	for i := 0; i < 30; i++ {
		next := price * 1.002 // +0.2% per candle, well under MinStartGain
		candles = append(candles, candle(int64(i), price, next, 500))
		price = next
	}
	if rallies := Detect(candles); len(rallies) != 0 {
		t.Errorf("expected no rallies for a slow grind below thresholds, got %d", len(rallies))
	}
}

func TestDetect_ClearRallyIsDetected(t *testing.T) {
	var candles []models.Candle
	price := 1.0
	// five quiet candles to build baseline volume history
	for i := 0; i < 5; i++ {
		candles = append(candles, candle(int64(i), price, price*1.001, 500))
	}
	// explosive 8-candle rally: +10% per candle, high volume, all green
	rallyStart := len(candles)
	for i := 0; i < 8; i++ {
		next := price * 1.10
		candles = append(candles, candle(int64(rallyStart+i), price, next, 5000))
		price = next
	}

	rallies := Detect(candles)
	if len(rallies) == 0 {
		t.Fatalf("expected at least one rally, got none")
	}
	r := rallies[0]
	if r.TotalGainPct < MinTotalGain {
		t.Errorf("expected totalGain >= %v, got %v", MinTotalGain, r.TotalGainPct)
	}
	if r.GreenRatio < MinGreenRatio {
		t.Errorf("expected greenRatio >= %v, got %v", MinGreenRatio, r.GreenRatio)
	}
}

func TestDetect_RalliesNeverOverlapBeyondBound(t *testing.T) {
	rallies := []models.Rally{
		{StartIdx: 0, EndIdx: 10, PeakGainPct: 50, GreenRatio: 0.8},
		{StartIdx: 9, EndIdx: 20, PeakGainPct: 20, GreenRatio: 0.5}, // overlaps by 2/11 candles, within bound
	}
	result := dedupe(rallies)
	for i := 0; i < len(result); i++ {
		for j := i + 1; j < len(result); j++ {
			ov := overlapLength(result[i], result[j])
			shorter := result[i].Length()
			if result[j].Length() < shorter {
				shorter = result[j].Length()
			}
			if float64(ov) > overlapBoundPct*float64(shorter) {
				t.Errorf("rallies %d and %d overlap %d candles, exceeding the %v bound of %d",
					i, j, ov, overlapBoundPct, shorter)
			}
		}
	}
}

func TestDedupe_HigherQualityReplacesAccepted(t *testing.T) {
	weak := models.Rally{StartIdx: 0, EndIdx: 10, PeakGainPct: 20, GreenRatio: 0.5} // quality = 20*0.5*sqrt(11) ≈ 33.2
	strong := models.Rally{StartIdx: 5, EndIdx: 16, PeakGainPct: 60, GreenRatio: 0.8} // heavily overlapping, much higher quality

	result := dedupe([]models.Rally{weak, strong})
	if len(result) != 1 || result[0].StartIdx != strong.StartIdx {
		t.Errorf("expected the higher-quality overlapping rally to replace the weaker one, got %+v", result)
	}
}

func TestVolumeBaseline_DropsIQROutliers(t *testing.T) {
	var candles []models.Candle
	for i := 0; i < 16; i++ {
		vol := 1000.0
		if i == 10 {
			vol = 1_000_000 // extreme outlier
		}
		candles = append(candles, candle(int64(i), 1, 1.001, vol))
	}
	baseline, _ := volumeBaseline(candles, 15)
	if baseline > 2000 {
		t.Errorf("expected the outlier to be dropped from the baseline, got %v", baseline)
	}
}
