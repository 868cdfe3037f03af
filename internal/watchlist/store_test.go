package watchlist

import (
	"context"
	"os"
	"testing"
)

// These are integration tests against a real Postgres instance; they're
// skipped unless one is reachable, matching how the rest of this repo
// treats external stores in CI.
func connectOrSkip(t *testing.T) *Store {
	t.Helper()
	connStr := os.Getenv("TEST_POSTGRES_URL")
	if connStr == "" {
		t.Skip("TEST_POSTGRES_URL not set, skipping watchlist integration test")
	}
	ctx := context.Background()
	store, err := Connect(ctx, connStr)
	if err != nil {
		t.Skipf("could not connect to test postgres: %v", err)
	}
	if err := store.InitSchema(ctx); err != nil {
		t.Fatalf("InitSchema: %v", err)
	}
	return store
}

func TestUpsert_RejectsInvalidAddress(t *testing.T) {
	store := connectOrSkip(t)
	defer store.Close()

	err := store.Upsert(context.Background(), "user1", "not-a-valid-address", "")
	if err == nil {
		t.Fatal("expected error for invalid address")
	}
}

func TestUpsert_RejectsEmptyUserID(t *testing.T) {
	store := connectOrSkip(t)
	defer store.Close()

	err := store.Upsert(context.Background(), "", "11111111111111111111111111111111", "")
	if err == nil {
		t.Fatal("expected error for empty userID")
	}
}

func TestUpsertGetRemove_RoundTrip(t *testing.T) {
	store := connectOrSkip(t)
	defer store.Close()

	ctx := context.Background()
	userID := "test-user"
	address := "11111111111111111111111111111111"

	if err := store.Upsert(ctx, userID, address, "whale"); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	defer store.Remove(ctx, userID, address)

	entry, ok, err := store.Get(ctx, userID, address)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Fatal("expected entry to exist after upsert")
	}
	if entry.Label != "whale" {
		t.Errorf("Label = %q, want %q", entry.Label, "whale")
	}

	if err := store.Remove(ctx, userID, address); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, ok, err := store.Get(ctx, userID, address); err != nil || ok {
		t.Fatalf("expected entry gone after remove, ok=%v err=%v", ok, err)
	}
}

func TestList_ReturnsAllEntriesForUser(t *testing.T) {
	store := connectOrSkip(t)
	defer store.Close()

	ctx := context.Background()
	userID := "test-user-list"
	addrs := []string{
		"11111111111111111111111111111111",
		"So11111111111111111111111111111111111111112",
	}
	for _, a := range addrs {
		if err := store.Upsert(ctx, userID, a, ""); err != nil {
			t.Fatalf("Upsert(%s): %v", a, err)
		}
		defer store.Remove(ctx, userID, a)
	}

	entries, err := store.List(ctx, userID)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != len(addrs) {
		t.Errorf("List returned %d entries, want %d", len(entries), len(addrs))
	}
}
