package taskqueue

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rawblock/solrank/internal/apperr"
	"github.com/rawblock/solrank/pkg/models"
)

// deferredRequeueDelay is how long a job that's blocked on an unfinished
// dependency waits before it's made visible again, to avoid a dequeue/
// requeue busy loop between a coordinator and its leaves.
const deferredRequeueDelay = 2 * time.Second

// Worker pulls jobs off one or more queues in priority order and runs them
// against the registered handler. Shaped after internal/mempool/poller.go's
// ticker-driven loop with an atomic progress counter, adapted to a
// blocking-pop loop since Redis already provides the wait primitive.
type Worker struct {
	rt       *Runtime
	queues   []models.Queue
	stopCh   chan struct{}
	Processed int64
	Failed    int64
}

// NewWorker returns a worker that drains queues in the given priority
// order — list the highest-priority queue first, e.g. {QueueCompute,
// QueueHigh, QueueBatch} for a coordinator-leaning worker.
func NewWorker(rt *Runtime, queues ...models.Queue) *Worker {
	return &Worker{rt: rt, queues: queues, stopCh: make(chan struct{})}
}

// Stop signals the run loop to exit after its current BRPOP call returns.
func (w *Worker) Stop() { close(w.stopCh) }

// Run blocks, dequeuing and executing jobs until ctx is cancelled or Stop
// is called.
func (w *Worker) Run(ctx context.Context) {
	keys := make([]string, len(w.queues))
	for i, q := range w.queues {
		keys[i] = queueKey(q)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		default:
		}

		res, err := w.rt.rdb.BRPop(ctx, 2*time.Second, keys...).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("taskqueue: brpop error: %v", err)
			time.Sleep(time.Second)
			continue
		}
		// res is [key, value]; value is the job id.
		jobID := res[1]
		w.process(ctx, jobID)
	}
}

func (w *Worker) process(ctx context.Context, jobID string) {
	job, ok, err := w.rt.GetJob(ctx, jobID)
	if err != nil || !ok {
		log.Printf("taskqueue: dropping unknown job id %s (ok=%v err=%v)", jobID, ok, err)
		return
	}

	if !job.Deadline.IsZero() && time.Now().After(job.Deadline) {
		w.finishFailed(ctx, job, "job exceeded its wall-clock deadline")
		return
	}

	if len(job.Dependencies) > 0 {
		satisfied, err := w.rt.dependenciesSatisfied(ctx, job.Dependencies)
		if err != nil {
			log.Printf("taskqueue: dependency check failed for %s: %v", job.ID, err)
		}
		if err != nil || !satisfied {
			job.Status = models.StatusDeferred
			_ = w.rt.saveJob(ctx, job)
			go func() {
				time.Sleep(deferredRequeueDelay)
				_ = w.rt.rdb.LPush(context.Background(), queueKey(job.Queue), job.ID).Err()
			}()
			return
		}
	}

	handler, ok := w.rt.handler(job.Function)
	if !ok {
		w.finishFailed(ctx, job, "no handler registered for function "+job.Function)
		return
	}

	job.Status = models.StatusStarted
	job.StartedAt = time.Now().UTC()
	_ = w.rt.saveJob(ctx, job)

	jobCtx, cancel := context.WithDeadline(ctx, job.Deadline)
	payload, runErr := handler(jobCtx, job)
	cancel()

	if runErr == nil {
		w.Processed++
		job.Status = models.StatusFinished
		_ = w.rt.saveJob(ctx, job)
		if err := w.rt.writeResult(ctx, job.ID, true, payload, ""); err != nil {
			log.Printf("taskqueue: write result for %s: %v", job.ID, err)
		}
		if err := w.rt.incrBatchDone(ctx, job.BatchID); err != nil {
			log.Printf("taskqueue: incr batch done for %s (batch %s): %v", job.ID, job.BatchID, err)
		}
		return
	}

	w.Failed++
	if isFatal(runErr) || job.RetriesUsed >= job.RetryBudget {
		w.finishFailed(ctx, job, runErr.Error())
		return
	}

	w.retry(ctx, job, runErr)
}

func isFatal(err error) bool {
	return errors.Is(err, apperr.ErrFatal) || errors.Is(err, apperr.ErrInvalidRequest)
}

func (w *Worker) retry(ctx context.Context, job models.Job, cause error) {
	backoffs := models.RetryBackoffs[job.Queue]
	delay := time.Duration(0)
	if len(backoffs) > 0 {
		idx := job.RetriesUsed
		if idx >= len(backoffs) {
			idx = len(backoffs) - 1
		}
		delay = backoffs[idx]
	}

	job.RetriesUsed++
	job.Status = models.StatusQueued
	job.Error = cause.Error()
	_ = w.rt.saveJob(ctx, job)

	id := job.ID
	queue := job.Queue
	go func() {
		time.Sleep(delay)
		_ = w.rt.rdb.LPush(context.Background(), queueKey(queue), id).Err()
	}()
}

func (w *Worker) finishFailed(ctx context.Context, job models.Job, reason string) {
	job.Status = models.StatusFailed
	job.Error = reason
	_ = w.rt.saveJob(ctx, job)
	if err := w.rt.writeResult(ctx, job.ID, false, nil, reason); err != nil {
		log.Printf("taskqueue: write failure result for %s: %v", job.ID, err)
	}
	// A failed leaf still counts toward its batch barrier — readCandidates
	// degrades a missing/failed result to "found nothing" rather than
	// blocking the barrier on a leaf that will never finish.
	if err := w.rt.incrBatchDone(ctx, job.BatchID); err != nil {
		log.Printf("taskqueue: incr batch done for %s (batch %s): %v", job.ID, job.BatchID, err)
	}
}
