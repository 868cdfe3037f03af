// Package resultcache implements C5: the KV store for per-job results and
// per-token qualified-wallet snapshots, backed by Redis.
//
// Grounded on internal/db's store-wrapper shape (one struct holding a
// client handle, one method per operation, context-first signatures),
// ported from pgx to go-redis since the pack carries no Postgres-specific
// requirement for this concern — see DESIGN.md.
package resultcache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rawblock/solrank/internal/apperr"
	"github.com/rawblock/solrank/pkg/models"
)

// TTLs from §4.5.
const (
	JobResultTTL      = 24 * time.Hour
	TokenQualifiedTTL = 6 * time.Hour
)

// Store wraps a Redis client with the C5 operations. It is one of the two
// process-global singletons named in spec §9.
type Store struct {
	rdb *redis.Client
}

// Connect dials Redis with the connection discipline from §4.5:
// keep-alive, generous socket timeout for long fan-in aggregations, and
// retry on transient drop (handled by go-redis's built-in backoff).
func Connect(redisURL string) (*Store, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("resultcache: parse redis url: %w", err)
	}
	opts.ReadTimeout = 60 * time.Second
	opts.WriteTimeout = 60 * time.Second
	opts.MaxRetries = 3

	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("resultcache: ping: %w", err)
	}
	return &Store{rdb: rdb}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error { return s.rdb.Close() }

// HealthCheck pings Redis once. It is called by the /healthz handler and
// by the scheduler's daily stats report; nothing runs it on a timer.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func jobResultKey(jobID string) string        { return "job_result:" + jobID }
func tokenQualifiedKey(address string) string { return "token_qualified:" + address }
func batchTotalKey(parentJobID string) string { return "batch_total:" + parentJobID }
func batchDoneKey(parentJobID string) string  { return "batch_done:" + parentJobID }

// SetJobResult writes a job's result under job_result:{jobId} with the
// §4.5 24h TTL.
func (s *Store) SetJobResult(ctx context.Context, jobID string, result models.JobResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("resultcache: marshal job result: %w", err)
	}
	return s.rdb.Set(ctx, jobResultKey(jobID), payload, JobResultTTL).Err()
}

// GetJobResult reads a job's result, returning ok=false on a cache miss.
func (s *Store) GetJobResult(ctx context.Context, jobID string) (models.JobResult, bool, error) {
	raw, err := s.rdb.Get(ctx, jobResultKey(jobID)).Bytes()
	if err == redis.Nil {
		return models.JobResult{}, false, nil
	}
	if err != nil {
		return models.JobResult{}, false, apperr.Wrap(apperr.ErrFatal, "resultcache: get job result: "+err.Error())
	}
	var result models.JobResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return models.JobResult{}, false, apperr.Wrap(apperr.ErrProviderBadData, "resultcache: corrupt job result: "+err.Error())
	}
	return result, true, nil
}

// WriteJobResult adapts SetJobResult to the shape internal/taskqueue's
// ResultWriter expects, so the task graph runtime can publish a job's
// terminal outcome here without this package importing taskqueue.
func (s *Store) WriteJobResult(ctx context.Context, jobID string, success bool, payload []byte, errMsg string) error {
	return s.SetJobResult(ctx, jobID, models.JobResult{
		JobID:      jobID,
		Success:    success,
		Payload:    payload,
		Error:      errMsg,
		FinishedAt: time.Now().UTC(),
	})
}

// DeleteJobResult removes a job's result. The task runtime does not call
// it: a retried job keeps its id, so its next result overwrites the old
// record under the same key.
func (s *Store) DeleteJobResult(ctx context.Context, jobID string) error {
	return s.rdb.Del(ctx, jobResultKey(jobID)).Err()
}

// SetTokenQualified writes the per-token qualified-wallet snapshot with
// the §4.5 6h TTL.
func (s *Store) SetTokenQualified(ctx context.Context, snapshot models.TokenQualifiedCache) error {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("resultcache: marshal token snapshot: %w", err)
	}
	return s.rdb.Set(ctx, tokenQualifiedKey(snapshot.TokenAddress), payload, TokenQualifiedTTL).Err()
}

// GetTokenQualified reads a per-token qualified-wallet snapshot, used for
// the §4.6 step 1 cache short-circuit.
func (s *Store) GetTokenQualified(ctx context.Context, address string) (models.TokenQualifiedCache, bool, error) {
	raw, err := s.rdb.Get(ctx, tokenQualifiedKey(address)).Bytes()
	if err == redis.Nil {
		return models.TokenQualifiedCache{}, false, nil
	}
	if err != nil {
		return models.TokenQualifiedCache{}, false, apperr.Wrap(apperr.ErrFatal, "resultcache: get token snapshot: "+err.Error())
	}
	var snapshot models.TokenQualifiedCache
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return models.TokenQualifiedCache{}, false, apperr.Wrap(apperr.ErrProviderBadData, "resultcache: corrupt token snapshot: "+err.Error())
	}
	return snapshot, true, nil
}

// SetBatchTotal records how many children a batch-completion barrier
// expects. TTL matches the job wall-clock limit so a crashed batch
// doesn't leave the counter alive forever.
func (s *Store) SetBatchTotal(ctx context.Context, parentJobID string, total int) error {
	return s.rdb.Set(ctx, batchTotalKey(parentJobID), total, models.DefaultJobTimeout).Err()
}

// GetBatchTotal reads the expected child count. ok=false means "unknown"
// (e.g. after a store restart) — callers must degrade to a bounded poll
// rather than waiting indefinitely (§4.5).
func (s *Store) GetBatchTotal(ctx context.Context, parentJobID string) (int, bool, error) {
	total, err := s.rdb.Get(ctx, batchTotalKey(parentJobID)).Int()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, apperr.Wrap(apperr.ErrFatal, "resultcache: get batch total: "+err.Error())
	}
	return total, true, nil
}

// IncrBatchDone atomically increments and returns the completion
// counter, used by the aggregator to detect the done==total transition.
func (s *Store) IncrBatchDone(ctx context.Context, parentJobID string) (int64, error) {
	val, err := s.rdb.Incr(ctx, batchDoneKey(parentJobID)).Result()
	if err != nil {
		return 0, apperr.Wrap(apperr.ErrFatal, "resultcache: incr batch done: "+err.Error())
	}
	s.rdb.Expire(ctx, batchDoneKey(parentJobID), models.DefaultJobTimeout)
	return val, nil
}

// GetBatchDone reads the current completion count without incrementing.
func (s *Store) GetBatchDone(ctx context.Context, parentJobID string) (int64, error) {
	val, err := s.rdb.Get(ctx, batchDoneKey(parentJobID)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, apperr.Wrap(apperr.ErrFatal, "resultcache: get batch done: "+err.Error())
	}
	return val, nil
}

// SetAbandoned writes the sentinel key a request-level caller uses to
// mark a parent job abandoned (§5 Cancellation and timeouts).
func (s *Store) SetAbandoned(ctx context.Context, parentJobID string) error {
	return s.rdb.Set(ctx, "abandoned:"+parentJobID, 1, models.DefaultJobTimeout).Err()
}

// IsAbandoned checks the sentinel key; coordinators check this between
// fan-in waits.
func (s *Store) IsAbandoned(ctx context.Context, parentJobID string) (bool, error) {
	n, err := s.rdb.Exists(ctx, "abandoned:"+parentJobID).Result()
	if err != nil {
		return false, apperr.Wrap(apperr.ErrFatal, "resultcache: check abandoned: "+err.Error())
	}
	return n > 0, nil
}
