// Package taskqueue implements C4: the named-queue task graph runtime that
// schedules per-token and per-batch work across the high/batch/compute
// lanes, with dependency gating, retry backoff, and a wall-clock deadline
// per job.
//
// Grounded on internal/mempool/poller.go and internal/scanner/block_scanner.go
// for the goroutine+ticker+atomic-counter worker-loop shape, and on
// original_source/Backend/celery_app.py for the queue names, retry
// backoffs, and the 1-hour task_time_limit — see DESIGN.md.
package taskqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/rawblock/solrank/internal/apperr"
	"github.com/rawblock/solrank/pkg/models"
)

// Handler executes a job's work and returns the payload to store under
// job_result:{jobId}. A returned error is classified retryable unless it
// wraps apperr.ErrFatal or apperr.ErrInvalidRequest.
type Handler func(ctx context.Context, job models.Job) ([]byte, error)

// ResultWriter persists a finished job's outcome and advances the
// batch-completion barrier its job belongs to, if any. internal/resultcache.Store
// satisfies this directly (see cmd/engine wiring); kept as an interface
// here so taskqueue doesn't import resultcache directly and the two
// C4/C5 packages stay decoupled.
type ResultWriter interface {
	WriteJobResult(ctx context.Context, jobID string, success bool, payload []byte, errMsg string) error
	// IncrBatchDone atomically advances the batch_done:{batchID} counter a
	// §4.6 completion barrier polls. Called once per job that reaches a
	// terminal state (finished or failed) and carries a non-empty BatchID.
	IncrBatchDone(ctx context.Context, batchID string) (int64, error)
}

// Runtime is the process-wide task graph: one Redis connection backing the
// three named lists (queue:{name}) plus one job record per id (job:{id}).
type Runtime struct {
	rdb    *redis.Client
	results ResultWriter

	mu       sync.RWMutex
	handlers map[string]Handler
}

func queueKey(q models.Queue) string { return "queue:" + string(q) }
func jobKey(id string) string        { return "job:" + id }

// New wraps an already-dialled Redis client. The task queue and the result
// cache share one Redis instance in this system but are kept as separate
// packages, matching the separation of concerns in §4.4 vs §4.5.
func New(rdb *redis.Client) *Runtime {
	return &Runtime{rdb: rdb, handlers: make(map[string]Handler)}
}

// SetResultWriter wires the store that receives terminal job outcomes.
// Optional: a Runtime with no result writer still runs jobs and tracks
// their status, it just has nowhere to publish payloads for fan-in readers.
func (r *Runtime) SetResultWriter(w ResultWriter) { r.results = w }

func (r *Runtime) writeResult(ctx context.Context, jobID string, success bool, payload []byte, errMsg string) error {
	if r.results == nil {
		return nil
	}
	return r.results.WriteJobResult(ctx, jobID, success, payload, errMsg)
}

// incrBatchDone advances the batch-completion barrier a job belongs to.
// A no-op for jobs with no BatchID (most leaf jobs run outside a batch
// barrier entirely, e.g. jobs enqueued directly by a caller without one)
// or when no result writer is wired.
func (r *Runtime) incrBatchDone(ctx context.Context, batchID string) error {
	if batchID == "" || r.results == nil {
		return nil
	}
	_, err := r.results.IncrBatchDone(ctx, batchID)
	return err
}

// Register binds a function name (the value used in Job.Function) to a
// handler. Workers look up handlers by this name when a job is dequeued.
func (r *Runtime) Register(function string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[function] = h
}

func (r *Runtime) handler(function string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[function]
	return h, ok
}

// NewJob builds a queued job with the §4.4 defaults (retry budget 3,
// 1-hour deadline) and a fresh id.
func NewJob(queue models.Queue, function string, args []byte, deps ...models.Dependency) models.Job {
	now := time.Now().UTC()
	return models.Job{
		ID:           uuid.NewString(),
		Queue:        queue,
		Function:     function,
		Args:         args,
		Status:       models.StatusQueued,
		RetryBudget:  models.DefaultRetryBudget,
		Dependencies: deps,
		EnqueuedAt:   now,
		Deadline:     now.Add(models.DefaultJobTimeout),
	}
}

// Enqueue persists the job record and pushes its id onto the named queue.
// LPUSH/BRPOP gives FIFO order within a queue.
func (r *Runtime) Enqueue(ctx context.Context, job models.Job) error {
	if err := r.saveJob(ctx, job); err != nil {
		return err
	}
	if err := r.rdb.LPush(ctx, queueKey(job.Queue), job.ID).Err(); err != nil {
		return apperr.Wrap(apperr.ErrFatal, "taskqueue: lpush: "+err.Error())
	}
	return nil
}

func (r *Runtime) saveJob(ctx context.Context, job models.Job) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("taskqueue: marshal job: %w", err)
	}
	ttl := models.DefaultJobTimeout + 10*time.Minute
	if err := r.rdb.Set(ctx, jobKey(job.ID), payload, ttl).Err(); err != nil {
		return apperr.Wrap(apperr.ErrFatal, "taskqueue: save job record: "+err.Error())
	}
	return nil
}

// GetJob reads the current job record, used by dependents checking whether
// a dependency has reached a terminal state and by callers polling a
// parent job's own status.
func (r *Runtime) GetJob(ctx context.Context, id string) (models.Job, bool, error) {
	raw, err := r.rdb.Get(ctx, jobKey(id)).Bytes()
	if err == redis.Nil {
		return models.Job{}, false, nil
	}
	if err != nil {
		return models.Job{}, false, apperr.Wrap(apperr.ErrFatal, "taskqueue: get job record: "+err.Error())
	}
	var job models.Job
	if err := json.Unmarshal(raw, &job); err != nil {
		return models.Job{}, false, apperr.Wrap(apperr.ErrProviderBadData, "taskqueue: corrupt job record: "+err.Error())
	}
	return job, true, nil
}

// dependenciesSatisfied reports whether every dependency has reached a
// terminal state usable by the dependent: finished, or failed with
// AllowFailure set. The task graph treats this as advisory — the result
// cache (internal/resultcache) remains authoritative for data, per §4.4's
// closing note that aggregators must still bound their wait on the cache.
func (r *Runtime) dependenciesSatisfied(ctx context.Context, deps []models.Dependency) (bool, error) {
	for _, dep := range deps {
		job, ok, err := r.GetJob(ctx, dep.JobID)
		if err != nil {
			return false, err
		}
		if !ok {
			// Dependency record expired or was never enqueued under this
			// id; treat as satisfied rather than blocking forever.
			continue
		}
		switch job.Status {
		case models.StatusFinished:
			continue
		case models.StatusFailed:
			if dep.AllowFailure {
				continue
			}
			return false, nil
		default:
			return false, nil
		}
	}
	return true, nil
}
