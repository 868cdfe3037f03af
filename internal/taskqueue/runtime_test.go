package taskqueue

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rawblock/solrank/pkg/models"
)

func connectOrSkip(t *testing.T) *redis.Client {
	t.Helper()
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set, skipping taskqueue integration test")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		t.Fatalf("parse TEST_REDIS_URL: %v", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		t.Skipf("could not reach test redis: %v", err)
	}
	return rdb
}

func TestEnqueueAndDequeue_RunsRegisteredHandler(t *testing.T) {
	rdb := connectOrSkip(t)
	defer rdb.Close()

	rt := New(rdb)
	done := make(chan models.Job, 1)
	rt.Register("echo", func(ctx context.Context, job models.Job) ([]byte, error) {
		done <- job
		return []byte("ok"), nil
	})

	job := NewJob(models.QueueHigh, "echo", []byte(`{}`))
	if err := rt.Enqueue(context.Background(), job); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	w := NewWorker(rt, models.QueueHigh)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	go w.Run(ctx)

	select {
	case got := <-done:
		if got.ID != job.ID {
			t.Errorf("handler ran for job %s, want %s", got.ID, job.ID)
		}
	case <-time.After(4 * time.Second):
		t.Fatal("handler never ran")
	}

	time.Sleep(100 * time.Millisecond) // let the worker persist the terminal status
	final, ok, err := rt.GetJob(context.Background(), job.ID)
	if err != nil || !ok {
		t.Fatalf("GetJob: ok=%v err=%v", ok, err)
	}
	if final.Status != models.StatusFinished {
		t.Errorf("expected job finished, got status %s", final.Status)
	}
}

func TestDependenciesSatisfied_BlocksUntilDependencyFinishes(t *testing.T) {
	rdb := connectOrSkip(t)
	defer rdb.Close()

	rt := New(rdb)
	parent := NewJob(models.QueueCompute, "noop", nil)
	parent.Status = models.StatusStarted
	if err := rt.saveJob(context.Background(), parent); err != nil {
		t.Fatalf("saveJob: %v", err)
	}

	ok, err := rt.dependenciesSatisfied(context.Background(), []models.Dependency{{JobID: parent.ID}})
	if err != nil {
		t.Fatalf("dependenciesSatisfied: %v", err)
	}
	if ok {
		t.Fatal("expected unsatisfied while parent is still started")
	}

	parent.Status = models.StatusFinished
	if err := rt.saveJob(context.Background(), parent); err != nil {
		t.Fatalf("saveJob: %v", err)
	}
	ok, err = rt.dependenciesSatisfied(context.Background(), []models.Dependency{{JobID: parent.ID}})
	if err != nil {
		t.Fatalf("dependenciesSatisfied: %v", err)
	}
	if !ok {
		t.Fatal("expected satisfied once parent finished")
	}
}

func TestDependenciesSatisfied_AllowFailurePassesThroughFailedDependency(t *testing.T) {
	rdb := connectOrSkip(t)
	defer rdb.Close()

	rt := New(rdb)
	parent := NewJob(models.QueueCompute, "noop", nil)
	parent.Status = models.StatusFailed
	if err := rt.saveJob(context.Background(), parent); err != nil {
		t.Fatalf("saveJob: %v", err)
	}

	ok, err := rt.dependenciesSatisfied(context.Background(), []models.Dependency{{JobID: parent.ID, AllowFailure: true}})
	if err != nil {
		t.Fatalf("dependenciesSatisfied: %v", err)
	}
	if !ok {
		t.Fatal("expected satisfied: dependency failed but AllowFailure is set")
	}

	ok, err = rt.dependenciesSatisfied(context.Background(), []models.Dependency{{JobID: parent.ID, AllowFailure: false}})
	if err != nil {
		t.Fatalf("dependenciesSatisfied: %v", err)
	}
	if ok {
		t.Fatal("expected unsatisfied: dependency failed and AllowFailure is not set")
	}
}
