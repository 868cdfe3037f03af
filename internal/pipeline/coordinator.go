// Package pipeline implements C6: the per-token sub-pipeline that fans
// out to C1-C3 via C4, merges and qualifies candidate wallets, and hands
// the result to C7 for scoring.
//
// Grounded on original_source/Backend/services/token_analyzer.py's
// TokenAnalyzerService.analyze_single_token (step ordering: fetch OHLCV,
// detect rallies, fetch wallet sources, qualify, score) and on
// internal/heuristics/investigation.go's InvestigationManager (a
// mutex-guarded map of in-flight request state) for the request-scoped
// coordinator in crosstoken.go.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rawblock/solrank/internal/apperr"
	"github.com/rawblock/solrank/internal/marketdata"
	"github.com/rawblock/solrank/internal/rally"
	"github.com/rawblock/solrank/internal/ranking"
	"github.com/rawblock/solrank/internal/resultcache"
	"github.com/rawblock/solrank/internal/taskqueue"
	"github.com/rawblock/solrank/pkg/models"
)

// barrierPollInterval is how often the coordinator re-checks a
// batch-completion barrier while it waits for leaf jobs.
const barrierPollInterval = 250 * time.Millisecond

// Coordinator runs one request's worth of per-token sub-pipelines. It
// holds no per-request state itself — each call builds its own parent job
// id — so a single Coordinator is safe to share across concurrent
// requests.
type Coordinator struct {
	queue  *taskqueue.Runtime
	cache  *resultcache.Store
	market *marketdata.Client
}

// NewCoordinator wires C2-C5 together. Call pipeline.RegisterHandlers
// separately against the same *taskqueue.Runtime before starting workers.
func NewCoordinator(queue *taskqueue.Runtime, cache *resultcache.Store, market *marketdata.Client) *Coordinator {
	return &Coordinator{queue: queue, cache: cache, market: market}
}

func daysBackFor(timeframe string) int {
	switch timeframe {
	case "1h", "6h", "12h", "24h":
		return 2
	case "3d":
		return 3
	case "7d":
		return 7
	case "30d":
		return 30
	default:
		return 2
	}
}

// AnalyzeToken runs the full §4.6 sub-pipeline for one token and returns
// its scored wallets plus the per-wallet ranking.WalletTokenResult rows a
// caller needs for cross-token aggregation.
func (c *Coordinator) AnalyzeToken(ctx context.Context, req models.TokenRequest, opts models.AnalysisOptions) (models.TokenResult, []ranking.WalletTokenResult, error) {
	opts = models.DefaultOptions(opts)
	result := models.TokenResult{Token: req}

	cached, ok, err := c.cache.GetTokenQualified(ctx, req.Address)
	if err != nil {
		return result, nil, err
	}

	var qualified []models.QualifiedWallet
	var candles []models.Candle
	var rallies []models.Rally

	if ok && len(cached.Wallets) > 0 {
		qualified = cached.Wallets
		candles, rallies, err = c.fetchOHLCVAndRally(ctx, req.Address, opts)
		if err != nil {
			return result, nil, err
		}
	} else {
		candles, rallies, qualified, err = c.discoverAndQualify(ctx, req.Address, opts)
		if err != nil {
			return result, nil, err
		}
		if err := c.cache.SetTokenQualified(ctx, models.TokenQualifiedCache{
			TokenAddress: req.Address,
			Wallets:      qualified,
			WalletCount:  len(qualified),
			CreatedAt:    time.Now().UTC(),
		}); err != nil {
			return result, nil, err
		}
	}

	if len(rallies) == 0 {
		result.Success = true
		result.Rallies = 0
		return result, nil, nil
	}

	ath, err := c.market.GetTokenATH(ctx, req.Address, candles)
	if err != nil {
		return result, nil, err
	}
	var athPrice, athMcap float64
	if ath != nil {
		athPrice, athMcap = ath.PriceUSD, ath.MarketCapUSD
	}

	tokenResults := make([]ranking.WalletTokenResult, 0, len(qualified))
	for i := range qualified {
		if athPrice > 0 && qualified[i].EntryPriceUSD > 0 {
			qualified[i].EntryToATHMultiplier = athPrice / qualified[i].EntryPriceUSD
		}
		q := qualified[i]
		bd := ranking.ProfessionalScore(q, ranking.DefaultCeiling)
		distance := 0.0
		if athPrice > 0 && q.EntryPriceUSD > 0 {
			distance = clamp01((1 - q.EntryPriceUSD/athPrice)) * 100
		}
		lagMinutes := 0.0
		if !q.EntryTimestamp.IsZero() {
			lagMinutes = q.EntryTimestamp.Sub(time.Unix(rallies[0].StartTime, 0)).Minutes()
		}
		tokenResults = append(tokenResults, ranking.WalletTokenResult{
			Address:           q.Address,
			Ticker:            req.Ticker,
			ProfessionalScore: bd.Professional,
			DistanceToATHPct:  distance,
			EntryMarketCapUSD: entryMarketCap(q, athMcap, athPrice),
			ATHMarketCapUSD:   athMcap,
			EntryTimestamp:    q.EntryTimestamp.Unix(),
			EntryLagMinutes:   lagMinutes,
			HighConfidence:    q.RealizedROIMultiplier >= opts.MinROIMultiplier*2 || q.TotalROIMultiplier >= opts.MinROIMultiplier*2,
		})
	}

	ranked := ranking.RankSingleToken(tokenResults)
	result.Success = true
	result.Rallies = len(rallies)
	result.RallyDetails = exportRallies(rallies)
	result.TopWallets = toExports(ranked)

	return result, tokenResults, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func entryMarketCap(q models.QualifiedWallet, athMcap, athPrice float64) float64 {
	if athPrice <= 0 || q.EntryPriceUSD <= 0 {
		return 0
	}
	return athMcap * (q.EntryPriceUSD / athPrice)
}

func exportRallies(rallies []models.Rally) []models.RallyExport {
	out := make([]models.RallyExport, 0, len(rallies))
	for _, r := range rallies {
		out = append(out, models.RallyExport{
			StartTime:     r.StartTime,
			EndTime:       r.EndTime,
			TotalGainPct:  r.TotalGainPct,
			PeakGainPct:   r.PeakGainPct,
			RallyType:     r.Type,
			CandleCount:   r.Length(),
			GreenRatioPct: r.GreenRatio * 100,
			VolumeData: models.VolumeData{
				AvgVolumeUSD: r.CombinedVol / float64(maxInt(r.Length(), 1)),
			},
		})
	}
	return out
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func toExports(wallets []models.ScoredWallet) []models.ScoredWalletExport {
	out := make([]models.ScoredWalletExport, 0, len(wallets))
	for _, w := range wallets {
		out = append(out, w.ToExport())
	}
	return out
}

// fetchOHLCVAndRally runs the OHLCV+rally step directly (not through the
// queue) on the cache short-circuit path, since there's nothing left to
// fan out to besides this one series.
func (c *Coordinator) fetchOHLCVAndRally(ctx context.Context, address string, opts models.AnalysisOptions) ([]models.Candle, []models.Rally, error) {
	candles, err := c.market.GetOHLCV(ctx, address, daysBackFor(opts.AnalysisTimeframe), opts.CandleSize)
	if err != nil {
		return nil, nil, err
	}
	if len(candles) < 5 {
		return candles, nil, nil
	}
	return candles, rally.Detect(candles), nil
}

// discoverAndQualify runs §4.6 steps 2-7: fan out the four wallet sources
// plus OHLCV/rally detection through the task queue, merge candidates,
// pre-qualify, run the PnL batch check on the remainder, then attach
// entry prices and drop anything that entered after the first rally
// started.
func (c *Coordinator) discoverAndQualify(ctx context.Context, address string, opts models.AnalysisOptions) ([]models.Candle, []models.Rally, []models.QualifiedWallet, error) {
	parentID := "parent-" + uuid.NewString()

	leafArgsBytes := encodeJSON(leafArgs{TokenAddress: address, DaysBack: daysBackFor(opts.AnalysisTimeframe)})

	topTradersJob := taskqueue.NewJob(models.QueueHigh, FnTopTraders, leafArgsBytes)
	firstBuyersJob := taskqueue.NewJob(models.QueueHigh, FnFirstBuyers, leafArgsBytes)
	recentTradesJob := taskqueue.NewJob(models.QueueHigh, FnRecentTrades, leafArgsBytes)
	ohlcvJob := taskqueue.NewJob(models.QueueHigh, FnOHLCVRally, leafArgsBytes)
	topHoldersJob := taskqueue.NewJob(models.QueueBatch, FnTopHolders, leafArgsBytes)

	leaves := []models.Job{topTradersJob, firstBuyersJob, recentTradesJob, ohlcvJob, topHoldersJob}
	if err := c.cache.SetBatchTotal(ctx, parentID, len(leaves)); err != nil {
		return nil, nil, nil, err
	}
	for i := range leaves {
		leaves[i].BatchID = parentID
	}
	for _, job := range leaves {
		if err := c.queue.Enqueue(ctx, job); err != nil {
			return nil, nil, nil, err
		}
		if err := c.cache.AddBatchMember(ctx, parentID, job.ID); err != nil {
			return nil, nil, nil, err
		}
	}

	if err := c.awaitBarrier(ctx, parentID, len(leaves)); err != nil {
		return nil, nil, nil, err
	}

	topTraders, topTradersOK, err := c.readCandidates(ctx, topTradersJob.ID)
	if err != nil {
		return nil, nil, nil, err
	}
	firstBuyers, firstBuyersOK, err := c.readCandidates(ctx, firstBuyersJob.ID)
	if err != nil {
		return nil, nil, nil, err
	}
	recentTrades, _, err := c.readCandidates(ctx, recentTradesJob.ID)
	if err != nil {
		return nil, nil, nil, err
	}
	topHolders, _, err := c.readCandidates(ctx, topHoldersJob.ID)
	if err != nil {
		return nil, nil, nil, err
	}

	// §7 quorum: a failed leaf degrades to "found nothing" on its own, but
	// the coordinator may only proceed if at least one of top-traders or
	// first-buyers — the two strong-source leaves pre-qualification relies
	// on — actually produced a result. Losing both means there's no
	// reliable source left to qualify wallets from at all.
	if !topTradersOK && !firstBuyersOK {
		return nil, nil, nil, apperr.Wrap(apperr.ErrProviderUnavailable, "neither top-traders nor first-buyers leaf succeeded: insufficient sources to meet qualification quorum")
	}

	ohlcvRes, err := c.readOHLCVResult(ctx, ohlcvJob.ID)
	if err != nil {
		return nil, nil, nil, err
	}
	if len(ohlcvRes.Candles) < 5 {
		return ohlcvRes.Candles, nil, nil, nil
	}

	candidates := mergeCandidates(topTraders, firstBuyers, recentTrades, topHolders)
	strong, weak := splitPreQualification(candidates)

	promoted, pnlVerdicts, err := c.runPnLQualification(ctx, address, weak, opts.MinROIMultiplier)
	if err != nil {
		return nil, nil, nil, err
	}
	promoted = append(strong, promoted...)

	qualified, err := c.attachEntryPrices(ctx, address, promoted, ohlcvRes.Rallies, pnlVerdicts)
	if err != nil {
		return nil, nil, nil, err
	}

	return ohlcvRes.Candles, ohlcvRes.Rallies, qualified, nil
}

// readCandidates reads one leaf's candidate-wallet result. ok reports
// whether the leaf actually produced a result (as opposed to having
// failed/never run) — callers that need a minimum-quorum of leaves before
// proceeding (§7) check ok rather than just treating a nil slice as "zero
// wallets found".
func (c *Coordinator) readCandidates(ctx context.Context, jobID string) ([]*models.CandidateWallet, bool, error) {
	res, ok, err := c.cache.GetJobResult(ctx, jobID)
	if err != nil {
		return nil, false, err
	}
	if !ok || !res.Success {
		return nil, false, nil // leaf failed/never ran; degrade to "found nothing" per §4.6's tolerance for partial sources
	}
	wallets, err := decodeJSON[[]*models.CandidateWallet](res.Payload)
	if err != nil {
		return nil, false, apperr.Wrap(apperr.ErrProviderBadData, "decode candidate list: "+err.Error())
	}
	return wallets, true, nil
}

func (c *Coordinator) readOHLCVResult(ctx context.Context, jobID string) (ohlcvResult, error) {
	res, ok, err := c.cache.GetJobResult(ctx, jobID)
	if err != nil {
		return ohlcvResult{}, err
	}
	if !ok || !res.Success {
		return ohlcvResult{}, apperr.Wrap(apperr.ErrInsufficientData, "ohlcv leaf produced no result: "+res.Error)
	}
	out, err := decodeJSON[ohlcvResult](res.Payload)
	if err != nil {
		return ohlcvResult{}, apperr.Wrap(apperr.ErrProviderBadData, "decode ohlcv result: "+err.Error())
	}
	return out, nil
}

// awaitBarrier polls batch_done until it reaches total (the child count
// the caller enqueued; batch_total is not read back), the parent is marked
// abandoned, or the context deadline elapses, per §4.6's completion-barrier design and
// §5's "aggregators suspend at the batch-completion barrier."
func (c *Coordinator) awaitBarrier(ctx context.Context, parentID string, total int) error {
	ticker := time.NewTicker(barrierPollInterval)
	defer ticker.Stop()
	for {
		done, err := c.cache.GetBatchDone(ctx, parentID)
		if err != nil {
			return err
		}
		if int(done) >= total {
			return nil
		}
		abandoned, err := c.cache.IsAbandoned(ctx, parentID)
		if err != nil {
			return err
		}
		if abandoned {
			return apperr.Wrap(apperr.ErrInsufficientData, "parent job abandoned before barrier completed")
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("pipeline: %w waiting on batch barrier %s", ctx.Err(), parentID)
		case <-ticker.C:
		}
	}
}

// runPnLQualification chops weak candidates into sub-batches of three,
// enqueues them staggered 8s apart per §4.4/§4.6 step 6, and returns the
// wallets whose PnL cleared the ROI threshold plus every returned
// verdict (keyed by address) so the caller can carry the realized/total
// ROI multipliers forward into the QualifiedWallet it builds — these are
// the inputs ranking.ProfessionalScore's 30% total-ROI component reads.
func (c *Coordinator) runPnLQualification(ctx context.Context, address string, weak []*models.CandidateWallet, minROI float64) ([]*models.CandidateWallet, map[string]pnlVerdict, error) {
	if len(weak) == 0 {
		return nil, nil, nil
	}

	addrs := make([]string, len(weak))
	byAddr := make(map[string]*models.CandidateWallet, len(weak))
	for i, w := range weak {
		addrs[i] = w.Address
		byAddr[w.Address] = w
	}

	parentID := "pnl-" + uuid.NewString()

	subBatches := taskqueue.SplitSubBatches(addrs, taskqueue.SubBatchSize)
	jobBatches := make([][]models.Job, len(subBatches))
	for i, batch := range subBatches {
		args := encodeJSON(pnlSubBatchArgs{TokenAddress: address, Wallets: batch, MinROIMultiplier: minROI})
		job := taskqueue.NewJob(models.QueueBatch, FnPnLSubBatch, args)
		job.BatchID = parentID
		jobBatches[i] = []models.Job{job}
	}

	if err := c.cache.SetBatchTotal(ctx, parentID, len(jobBatches)); err != nil {
		return nil, nil, err
	}
	for _, batch := range jobBatches {
		if err := c.cache.AddBatchMember(ctx, parentID, batch[0].ID); err != nil {
			return nil, nil, err
		}
	}

	if _, err := c.queue.EnqueueStaggered(ctx, jobBatches); err != nil {
		return nil, nil, err
	}

	if err := c.awaitBarrier(ctx, parentID, len(jobBatches)); err != nil {
		return nil, nil, err
	}

	var promoted []*models.CandidateWallet
	verdicts := make(map[string]pnlVerdict, len(weak))
	for _, batch := range jobBatches {
		res, ok, err := c.cache.GetJobResult(ctx, batch[0].ID)
		if err != nil {
			return nil, nil, err
		}
		if !ok || !res.Success {
			continue
		}
		out, err := decodeJSON[pnlSubBatchResult](res.Payload)
		if err != nil {
			continue
		}
		for _, v := range out.Verdicts {
			verdicts[v.Address] = v
			if v.Passed {
				if w, ok := byAddr[v.Address]; ok {
					promoted = append(promoted, w)
				}
			}
		}
	}
	return promoted, verdicts, nil
}

// attachEntryPrices fetches each promoted wallet's entry price/timestamp
// directly (§4.6 step 7 names no specific queue, unlike steps 2 and 6) and
// drops any wallet whose entry postdates the first rally's start.
//
// verdicts carries the realized/total ROI multiplier each weak candidate's
// PnL sub-batch produced, keyed by address; a candidate with no entry
// (promoted via a strong source, which never goes through a PnL round
// trip — see splitPreQualification/HasStrongSource) is intentionally left
// at the zero value here, same as the original pre-qualification path it's
// grounded on, which accepts top-trader/first-buyer wallets without
// spending a PnL API call on them.
func (c *Coordinator) attachEntryPrices(ctx context.Context, address string, candidates []*models.CandidateWallet, rallies []models.Rally, verdicts map[string]pnlVerdict) ([]models.QualifiedWallet, error) {
	if len(rallies) == 0 {
		return nil, nil
	}
	rallyStart := time.Unix(rallies[0].StartTime, 0)

	out := make([]models.QualifiedWallet, 0, len(candidates))
	for _, cand := range candidates {
		entry, err := c.market.GetEntryPrice(ctx, cand.Address, address)
		if err != nil {
			return nil, err
		}
		if entry == nil {
			continue
		}
		if entry.Timestamp.After(rallyStart) {
			continue // entered after the rally already started
		}

		v := verdicts[cand.Address]
		q := models.QualifiedWallet{
			Address:               cand.Address,
			EntryPriceUSD:          entry.PriceUSD,
			EntryTimestamp:         entry.Timestamp,
			Buys:                   []models.Buy{{PriceUSD: entry.PriceUSD, Timestamp: entry.Timestamp}},
			HoldingUSD:             cand.Metrics[models.SourceTopHolder].HoldingUSD,
			RealizedROIMultiplier:  v.Realized,
			TotalROIMultiplier:     v.Total,
		}
		for source := range cand.Sources {
			q.Sources = append(q.Sources, source)
		}
		out = append(out, q)
	}
	return out, nil
}
