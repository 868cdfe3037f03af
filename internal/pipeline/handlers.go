package pipeline

import (
	"context"

	"github.com/rawblock/solrank/internal/apperr"
	"github.com/rawblock/solrank/internal/marketdata"
	"github.com/rawblock/solrank/internal/rally"
	"github.com/rawblock/solrank/internal/taskqueue"
	"github.com/rawblock/solrank/pkg/models"
)

// RegisterHandlers binds every leaf/batch job function to the task graph
// runtime, closing over the shared market-data client. Call once per
// process before starting workers, mirroring how internal/mempool's
// poller is wired against one shared bitcoin.Client in the teacher's
// cmd/engine/main.go.
func RegisterHandlers(rt *taskqueue.Runtime, market *marketdata.Client) {
	rt.Register(FnTopTraders, func(ctx context.Context, job models.Job) ([]byte, error) {
		args, err := decodeJSON[leafArgs](job.Args)
		if err != nil {
			return nil, apperr.Wrap(apperr.ErrInvalidRequest, "decode top-traders args: "+err.Error())
		}
		wallets, err := market.GetTopTraders(ctx, args.TokenAddress, 7)
		if err != nil {
			return nil, err
		}
		return encodeJSON(wallets), nil
	})

	rt.Register(FnFirstBuyers, func(ctx context.Context, job models.Job) ([]byte, error) {
		args, err := decodeJSON[leafArgs](job.Args)
		if err != nil {
			return nil, apperr.Wrap(apperr.ErrInvalidRequest, "decode first-buyers args: "+err.Error())
		}
		wallets, err := market.GetFirstBuyers(ctx, args.TokenAddress)
		if err != nil {
			return nil, err
		}
		return encodeJSON(wallets), nil
	})

	rt.Register(FnRecentTrades, func(ctx context.Context, job models.Job) ([]byte, error) {
		args, err := decodeJSON[leafArgs](job.Args)
		if err != nil {
			return nil, apperr.Wrap(apperr.ErrInvalidRequest, "decode recent-trades args: "+err.Error())
		}
		wallets, err := market.GetRecentTrades(ctx, args.TokenAddress, 0)
		if err != nil {
			return nil, err
		}
		return encodeJSON(wallets), nil
	})

	rt.Register(FnTopHolders, func(ctx context.Context, job models.Job) ([]byte, error) {
		args, err := decodeJSON[leafArgs](job.Args)
		if err != nil {
			return nil, apperr.Wrap(apperr.ErrInvalidRequest, "decode top-holders args: "+err.Error())
		}
		wallets, err := market.GetTopHolders(ctx, args.TokenAddress, 100, 1000)
		if err != nil {
			return nil, err
		}
		return encodeJSON(wallets), nil
	})

	rt.Register(FnOHLCVRally, func(ctx context.Context, job models.Job) ([]byte, error) {
		args, err := decodeJSON[leafArgs](job.Args)
		if err != nil {
			return nil, apperr.Wrap(apperr.ErrInvalidRequest, "decode ohlcv args: "+err.Error())
		}
		candles, err := market.GetOHLCV(ctx, args.TokenAddress, args.DaysBack, models.Res5m)
		if err != nil {
			return nil, err
		}
		if len(candles) < 5 {
			return nil, apperr.Wrap(apperr.ErrInsufficientData, "ohlcv: fewer than 5 candles")
		}
		rallies := rally.Detect(candles)
		return encodeJSON(ohlcvResult{Candles: candles, Rallies: rallies}), nil
	})

	rt.Register(FnPnLSubBatch, func(ctx context.Context, job models.Job) ([]byte, error) {
		args, err := decodeJSON[pnlSubBatchArgs](job.Args)
		if err != nil {
			return nil, apperr.Wrap(apperr.ErrInvalidRequest, "decode pnl sub-batch args: "+err.Error())
		}
		verdicts := make([]pnlVerdict, 0, len(args.Wallets))
		for _, wallet := range args.Wallets {
			pnl, err := market.GetWalletPnL(ctx, wallet, args.TokenAddress)
			if err != nil {
				return nil, err
			}
			if pnl == nil {
				continue // unresolvable wallet, dropped per §4.6 step 6
			}
			passed := pnl.RealizedMultiplier >= args.MinROIMultiplier || pnl.TotalMultiplier >= args.MinROIMultiplier
			verdicts = append(verdicts, pnlVerdict{
				Address:  wallet,
				Passed:   passed,
				Realized: pnl.RealizedMultiplier,
				Total:    pnl.TotalMultiplier,
			})
		}
		return encodeJSON(pnlSubBatchResult{Verdicts: verdicts}), nil
	})
}
