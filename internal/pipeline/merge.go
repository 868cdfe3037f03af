package pipeline

import "github.com/rawblock/solrank/pkg/models"

// mergeCandidates unions wallets discovered across the four source
// fan-outs by address, per §4.6 step 4. Source order doesn't affect the
// result — the merge is commutative, matching §5's ordering guarantee.
func mergeCandidates(sourceLists ...[]*models.CandidateWallet) []*models.CandidateWallet {
	byAddr := make(map[string]*models.CandidateWallet)
	var order []string
	for _, list := range sourceLists {
		for _, w := range list {
			existing, ok := byAddr[w.Address]
			if !ok {
				byAddr[w.Address] = w
				order = append(order, w.Address)
				continue
			}
			for source, metrics := range w.Metrics {
				existing.MergeSource(source, metrics)
			}
		}
	}
	out := make([]*models.CandidateWallet, 0, len(order))
	for _, addr := range order {
		out = append(out, byAddr[addr])
	}
	return out
}

// splitPreQualification separates candidates with a strong source
// (top-trader/first-buyer — accepted without a PnL round trip) from the
// remainder, which must clear the PnL check in §4.6 step 6.
func splitPreQualification(candidates []*models.CandidateWallet) (strong, weak []*models.CandidateWallet) {
	for _, c := range candidates {
		if c.HasStrongSource() {
			strong = append(strong, c)
		} else {
			weak = append(weak, c)
		}
	}
	return strong, weak
}
