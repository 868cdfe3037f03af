package pipeline

import (
	"context"

	"github.com/rawblock/solrank/internal/ranking"
	"github.com/rawblock/solrank/pkg/models"
)

// AnalyzeRequest runs §4.6/§4.7 across every token in the request and, for
// a multi-token request, layers the §4.7 cross-token aggregation on top —
// the operator-facing entrypoint behind POST /api/v1/analyze.
func (c *Coordinator) AnalyzeRequest(ctx context.Context, req models.AnalysisRequest) models.AnalysisResult {
	opts := models.DefaultOptions(req.Options)

	out := models.AnalysisResult{Success: true}
	var allWalletResults []ranking.WalletTokenResult

	for _, token := range req.Tokens {
		result, walletResults, err := c.AnalyzeToken(ctx, token, opts)
		if err != nil {
			result.Success = false
			result.Error = err.Error()
			out.Success = false
			out.Summary.Failed++
		} else {
			out.Summary.Successful++
			out.Summary.TotalPumps += result.Rallies
			allWalletResults = append(allWalletResults, walletResults...)
		}
		out.Results = append(out.Results, result)
	}
	out.Summary.TotalTokens = len(req.Tokens)

	if len(req.Tokens) < 2 {
		return out
	}

	// Per-token TopWallets (set in AnalyzeToken) stays as each token's own
	// ranking; cross_token_overlap is the additional §4.7 view highlighting
	// wallets that hit min_runner_hits or more of the requested tokens. The
	// full two-stage top-20 (overlap first, single-token backfill) is
	// `cross.Top20` — exposed here as the overlap field's superset isn't
	// part of the §6 envelope, so only the capped overlap list is surfaced.
	cross := ranking.RankCrossToken(allWalletResults, opts.MinRunnerHits)
	overlap := make([]models.ScoredWalletExport, 0, len(cross.Overlap))
	for _, w := range cross.Overlap {
		overlap = append(overlap, w.ToExport())
	}
	out.CrossTokenOverlap = overlap
	out.Summary.CrossTokenAccounts = len(cross.Overlap)

	return out
}
