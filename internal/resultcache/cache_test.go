package resultcache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/rawblock/solrank/pkg/models"
)

// These are integration tests against a real Redis instance; they're
// skipped unless one is reachable, matching how the rest of this repo
// treats external stores in CI.
func connectOrSkip(t *testing.T) *Store {
	t.Helper()
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set, skipping resultcache integration test")
	}
	store, err := Connect(url)
	if err != nil {
		t.Skipf("could not connect to test redis: %v", err)
	}
	return store
}

func TestJobResult_RoundTrip(t *testing.T) {
	store := connectOrSkip(t)
	defer store.Close()

	ctx := context.Background()
	jobID := "test-job-1"
	want := models.JobResult{JobID: jobID, Success: true, Payload: []byte(`{"ok":true}`), FinishedAt: time.Now().UTC()}

	if err := store.SetJobResult(ctx, jobID, want); err != nil {
		t.Fatalf("SetJobResult: %v", err)
	}
	defer store.DeleteJobResult(ctx, jobID)

	got, ok, err := store.GetJobResult(ctx, jobID)
	if err != nil || !ok {
		t.Fatalf("GetJobResult: ok=%v err=%v", ok, err)
	}
	if got.JobID != want.JobID || got.Success != want.Success {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestBatchCompletionBarrier(t *testing.T) {
	store := connectOrSkip(t)
	defer store.Close()

	ctx := context.Background()
	parent := "test-parent-1"

	if err := store.SetBatchTotal(ctx, parent, 3); err != nil {
		t.Fatalf("SetBatchTotal: %v", err)
	}

	for i := 0; i < 3; i++ {
		if _, err := store.IncrBatchDone(ctx, parent); err != nil {
			t.Fatalf("IncrBatchDone: %v", err)
		}
	}

	total, ok, err := store.GetBatchTotal(ctx, parent)
	if err != nil || !ok || total != 3 {
		t.Fatalf("expected total=3 ok=true, got total=%d ok=%v err=%v", total, ok, err)
	}
	done, err := store.GetBatchDone(ctx, parent)
	if err != nil || done != 3 {
		t.Fatalf("expected done=3, got %d err=%v", done, err)
	}
}

func TestGetBatchTotal_MissingIsUnknown(t *testing.T) {
	store := connectOrSkip(t)
	defer store.Close()

	_, ok, err := store.GetBatchTotal(context.Background(), "never-existed")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Errorf("expected ok=false for a missing batch_total key")
	}
}
