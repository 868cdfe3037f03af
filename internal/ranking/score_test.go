package ranking

import (
	"math"
	"testing"

	"github.com/rawblock/solrank/pkg/models"
)

func TestROIToScore_WorkedPoints(t *testing.T) {
	cases := []struct {
		m        float64
		expected float64
		tol      float64
	}{
		{1, 0, 0.01},
		{5, 23.3, 0.1},
		{10, 33.3, 0.1},
		{50, 56.7, 0.1},
		{100, 66.7, 0.1},
		{500, 89.9, 0.1},
		{1000, 100, 0.01},
	}
	for _, c := range cases {
		got := ROIToScore(c.m, 1000)
		if math.Abs(got-c.expected) > c.tol {
			t.Errorf("ROIToScore(%v) = %v, want ~%v", c.m, got, c.expected)
		}
	}
}

func TestROIToScore_BoundedAndMonotonic(t *testing.T) {
	prev := -1.0
	for _, m := range []float64{1, 1.01, 2, 5, 20, 100, 999, 1000} {
		score := ROIToScore(m, 1000)
		if score < 0 || score > 100 {
			t.Fatalf("ROIToScore(%v) = %v out of [0,100]", m, score)
		}
		if m > 1 && score <= prev {
			t.Errorf("expected strictly increasing score at m=%v, got %v <= previous %v", m, score, prev)
		}
		prev = score
	}
}

func TestProfessionalScore_MatchesWeightedFormula(t *testing.T) {
	q := models.QualifiedWallet{
		EntryToATHMultiplier:  50,
		RealizedROIMultiplier: 10,
		TotalROIMultiplier:    8,
		Buys: []models.Buy{
			{PriceUSD: 1.0},
			{PriceUSD: 1.0},
		},
	}
	bd := ProfessionalScore(q, 1000)

	expected := WeightEntryQuality*bd.EntryQualityScore + WeightTotalROI*bd.TotalROIScore + WeightConsistency*bd.Consistency
	if math.Abs(bd.Professional-expected) > 0.01 {
		t.Errorf("professionalScore %v does not reproduce from components: %v", bd.Professional, expected)
	}
}

func TestEntryConsistency_SingleBuyAwardsHalf(t *testing.T) {
	c := EntryConsistency([]models.Buy{{PriceUSD: 1.0}})
	if c != 50 {
		t.Errorf("expected 50 for a single buy, got %v", c)
	}
}

func TestEntryConsistency_IdenticalPricesIsPerfect(t *testing.T) {
	c := EntryConsistency([]models.Buy{{PriceUSD: 2.0}, {PriceUSD: 2.0}, {PriceUSD: 2.0}})
	if c != 100 {
		t.Errorf("expected 100 for identical buy prices, got %v", c)
	}
}

func TestAssignTier_Stepwise(t *testing.T) {
	cases := []struct {
		in   TierInput
		want models.Tier
	}{
		{TierInput{PumpCount: 12, AvgDistance: 80, Stdev: 10}, models.TierS},
		{TierInput{PumpCount: 7, AvgDistance: 65, Stdev: 20}, models.TierA},
		{TierInput{PumpCount: 4, AvgDistance: 50, Stdev: 40}, models.TierB},
		{TierInput{PumpCount: 1, AvgDistance: 10, Stdev: 5}, models.TierC},
	}
	for _, c := range cases {
		if got := AssignTier(c.in); got != c.want {
			t.Errorf("AssignTier(%+v) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestRankCrossToken_OverlapWalletsRankBeforeSingleTokenWallets(t *testing.T) {
	results := []WalletTokenResult{
		{Address: "w1", Ticker: "A", ProfessionalScore: 10},
		{Address: "w1", Ticker: "B", ProfessionalScore: 10},
		{Address: "w2", Ticker: "A", ProfessionalScore: 99}, // single-token, very high score
	}
	res := RankCrossToken(results, 2)

	if len(res.Top20) != 2 {
		t.Fatalf("expected 2 wallets in the final ranking, got %d", len(res.Top20))
	}
	if res.Top20[0].Address != "w1" {
		t.Errorf("expected the cross-token wallet first regardless of the single-token wallet's higher score, got %s", res.Top20[0].Address)
	}
	if res.Top20[1].Address != "w2" {
		t.Errorf("expected the single-token wallet backfilled second, got %s", res.Top20[1].Address)
	}
}

func TestRankCrossToken_OverlapCappedAtTen(t *testing.T) {
	var results []WalletTokenResult
	for i := 0; i < 15; i++ {
		addr := string(rune('a' + i))
		results = append(results,
			WalletTokenResult{Address: addr, Ticker: "A", ProfessionalScore: float64(i)},
			WalletTokenResult{Address: addr, Ticker: "B", ProfessionalScore: float64(i)},
		)
	}
	res := RankCrossToken(results, 2)
	if len(res.Overlap) != 10 {
		t.Errorf("expected cross_token_overlap capped at 10, got %d", len(res.Overlap))
	}
}
