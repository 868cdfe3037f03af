package api

import "testing"

func TestRateLimiter_AllowsUpToBurstThenBlocks(t *testing.T) {
	rl := NewRateLimiter(60, 3) // 1 token/sec, burst 3
	for i := 0; i < 3; i++ {
		if allowed, _ := rl.allow("1.2.3.4"); !allowed {
			t.Fatalf("request %d: expected allowed within burst", i)
		}
	}
	if allowed, retryAfter := rl.allow("1.2.3.4"); allowed {
		t.Fatal("expected 4th request beyond burst to be blocked")
	} else if retryAfter <= 0 {
		t.Error("expected a positive retry-after duration")
	}
}

func TestRateLimiter_TracksEachIPIndependently(t *testing.T) {
	rl := NewRateLimiter(60, 1)
	if allowed, _ := rl.allow("1.1.1.1"); !allowed {
		t.Fatal("expected first request from 1.1.1.1 to be allowed")
	}
	if allowed, _ := rl.allow("2.2.2.2"); !allowed {
		t.Fatal("expected first request from a different IP to be allowed regardless of 1.1.1.1's state")
	}
}
