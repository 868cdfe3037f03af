package taskqueue

import (
	"context"
	"time"

	"github.com/rawblock/solrank/pkg/models"
)

// SubBatchSize and SubBatchStagger implement §4.4's fan-out back-pressure:
// wallet lists are chopped into sub-batches of 3, and sub-batch i is
// released index*8s after the batch starts so the downstream rate-limited
// market-data API never receives more than a handful of concurrent
// requests at once.
const (
	SubBatchSize    = 3
	SubBatchStagger = 8 * time.Second
)

// SplitSubBatches chops items into fixed-size groups in order, the unit
// the staggered enqueuer schedules.
func SplitSubBatches[T any](items []T, size int) [][]T {
	if size <= 0 {
		size = SubBatchSize
	}
	var out [][]T
	for i := 0; i < len(items); i += size {
		end := i + size
		if end > len(items) {
			end = len(items)
		}
		out = append(out, items[i:end])
	}
	return out
}

// staggerDelay returns how long sub-batch index i should wait before its
// jobs become visible to workers, per §4.4.
func staggerDelay(index int) time.Duration {
	return time.Duration(index) * SubBatchStagger
}

// EnqueueStaggered enqueues each sub-batch's jobs after that sub-batch's
// stagger delay, one sub-batch index at a time; jobs within a sub-batch are
// enqueued in sequence (not concurrently), matching the single in-flight
// request per sub-batch called for in §4.4. Sub-batch 0 is enqueued
// immediately and the call returns without waiting for the later stagger
// delays; each later sub-batch's job records are saved and pushed by a
// background goroutine once its delay has elapsed, and an enqueue error
// there is dropped.
func (r *Runtime) EnqueueStaggered(ctx context.Context, subBatches [][]models.Job) ([]string, error) {
	ids := make([]string, 0)
	for i, batch := range subBatches {
		for _, job := range batch {
			ids = append(ids, job.ID)
		}
		delay := staggerDelay(i)
		jobs := batch
		if delay == 0 {
			if err := r.enqueueSequential(ctx, jobs); err != nil {
				return nil, err
			}
			continue
		}
		go func(jobs []models.Job, delay time.Duration) {
			time.Sleep(delay)
			_ = r.enqueueSequential(context.Background(), jobs)
		}(jobs, delay)
	}
	return ids, nil
}

func (r *Runtime) enqueueSequential(ctx context.Context, jobs []models.Job) error {
	for _, job := range jobs {
		if err := r.Enqueue(ctx, job); err != nil {
			return err
		}
	}
	return nil
}
