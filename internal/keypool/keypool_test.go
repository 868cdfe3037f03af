package keypool

import (
	"testing"
	"time"
)

func TestNext_RoundRobin(t *testing.T) {
	p := New(map[string]string{"a": "ca", "b": "cb"}, time.Minute)

	seen := map[string]int{}
	for i := 0; i < 4; i++ {
		k, ok := p.Next()
		if !ok {
			t.Fatalf("expected a key on call %d", i)
		}
		seen[k.Identifier]++
	}

	if seen["a"] != 2 || seen["b"] != 2 {
		t.Errorf("expected round-robin split 2/2, got %v", seen)
	}
}

func TestNext_EmptyPoolReturnsFalse(t *testing.T) {
	p := New(map[string]string{}, time.Minute)
	if _, ok := p.Next(); ok {
		t.Errorf("expected no key from an empty pool")
	}
}

func TestMarkRateLimited_ExcludesKeyUntilCooldownExpires(t *testing.T) {
	p := New(map[string]string{"only": "c"}, 10*time.Millisecond)

	p.MarkRateLimited("only")
	if _, ok := p.Next(); ok {
		t.Errorf("expected cooling key to be excluded from Next()")
	}

	time.Sleep(20 * time.Millisecond)
	if _, ok := p.Next(); !ok {
		t.Errorf("expected key to be promoted back to active after cooldown")
	}
}

func TestMarkFailed_PermanentlyExcludesKey(t *testing.T) {
	p := New(map[string]string{"bad": "c", "good": "c2"}, time.Minute)
	p.MarkFailed("bad")

	for i := 0; i < 5; i++ {
		k, ok := p.Next()
		if !ok {
			t.Fatalf("expected the remaining active key")
		}
		if k.Identifier == "bad" {
			t.Fatalf("failed key must never be returned by Next()")
		}
	}
}

func TestStats_ReflectsStatusDistribution(t *testing.T) {
	p := New(map[string]string{"a": "c", "b": "c", "c": "c"}, time.Minute)
	p.MarkRateLimited("a")
	p.MarkFailed("b")

	stats := p.Stats()
	if stats.Active != 1 || stats.Cooling != 1 || stats.Failed != 1 || stats.Total != 3 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}
