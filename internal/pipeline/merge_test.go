package pipeline

import (
	"testing"

	"github.com/rawblock/solrank/pkg/models"
)

func TestMergeCandidates_UnionsSourcesByAddress(t *testing.T) {
	traders := []*models.CandidateWallet{
		models.NewCandidateWallet("wallet1", models.SourceTopTrader, models.SourceMetrics{VolumeUSD: 100}),
	}
	recent := []*models.CandidateWallet{
		models.NewCandidateWallet("wallet1", models.SourceRecentTrader, models.SourceMetrics{VolumeUSD: 50}),
		models.NewCandidateWallet("wallet2", models.SourceRecentTrader, models.SourceMetrics{VolumeUSD: 10}),
	}

	merged := mergeCandidates(traders, recent)
	if len(merged) != 2 {
		t.Fatalf("expected 2 merged candidates, got %d", len(merged))
	}
	var w1 *models.CandidateWallet
	for _, w := range merged {
		if w.Address == "wallet1" {
			w1 = w
		}
	}
	if w1 == nil {
		t.Fatal("expected wallet1 in merged output")
	}
	if !w1.HasSource(models.SourceTopTrader) || !w1.HasSource(models.SourceRecentTrader) {
		t.Errorf("expected wallet1 to carry both sources, got %+v", w1.Sources)
	}
}

func TestMergeCandidates_OrderIndependentResult(t *testing.T) {
	a := []*models.CandidateWallet{models.NewCandidateWallet("w1", models.SourceTopTrader, models.SourceMetrics{})}
	b := []*models.CandidateWallet{models.NewCandidateWallet("w1", models.SourceFirstBuyer, models.SourceMetrics{})}

	ab := mergeCandidates(a, b)
	ba := mergeCandidates(b, a)
	if len(ab) != 1 || len(ba) != 1 {
		t.Fatalf("expected single merged candidate regardless of order")
	}
	if !ab[0].HasSource(models.SourceFirstBuyer) || !ba[0].HasSource(models.SourceTopTrader) {
		t.Errorf("expected both sources present regardless of merge order")
	}
}

func TestSplitPreQualification_StrongSourcesBypassPnLCheck(t *testing.T) {
	candidates := []*models.CandidateWallet{
		models.NewCandidateWallet("strong1", models.SourceTopTrader, models.SourceMetrics{}),
		models.NewCandidateWallet("strong2", models.SourceFirstBuyer, models.SourceMetrics{}),
		models.NewCandidateWallet("weak1", models.SourceTopHolder, models.SourceMetrics{}),
		models.NewCandidateWallet("weak2", models.SourceRecentTrader, models.SourceMetrics{}),
	}

	strong, weak := splitPreQualification(candidates)
	if len(strong) != 2 {
		t.Errorf("expected 2 strong candidates, got %d", len(strong))
	}
	if len(weak) != 2 {
		t.Errorf("expected 2 weak candidates, got %d", len(weak))
	}
}

func TestDaysBackFor_MapsTimeframeToLookbackWindow(t *testing.T) {
	cases := map[string]int{"24h": 2, "7d": 7, "30d": 30, "unknown": 2}
	for tf, want := range cases {
		if got := daysBackFor(tf); got != want {
			t.Errorf("daysBackFor(%q) = %d, want %d", tf, got, want)
		}
	}
}

func TestClamp01_BoundsToUnitInterval(t *testing.T) {
	if clamp01(-0.5) != 0 {
		t.Error("expected negative values clamped to 0")
	}
	if clamp01(1.5) != 1 {
		t.Error("expected values above 1 clamped to 1")
	}
	if clamp01(0.42) != 0.42 {
		t.Error("expected in-range values unchanged")
	}
}
