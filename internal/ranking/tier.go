package ranking

import "github.com/rawblock/solrank/pkg/models"

// TierInput is the three statistics the stepwise tier function reads:
// how many requested tokens the wallet qualified in, the average
// distance-to-ATH percent across them, and that distance's stdev.
type TierInput struct {
	PumpCount   int
	AvgDistance float64
	Stdev       float64
}

// AssignTier maps a wallet's cross-token pump stats to S/A/B/C (§4.7).
// Stepwise switch grounded on the teacher's classifySeverity/
// recommendAction score-range dispatch.
func AssignTier(in TierInput) models.Tier {
	switch {
	case in.PumpCount >= 10 && in.AvgDistance >= 75 && in.Stdev < 15:
		return models.TierS
	case in.PumpCount >= 6 && in.AvgDistance >= 60 && in.Stdev < 25:
		return models.TierA
	case in.PumpCount >= 3 && in.AvgDistance >= 45:
		return models.TierB
	default:
		return models.TierC
	}
}
