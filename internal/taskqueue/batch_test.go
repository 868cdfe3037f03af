package taskqueue

import (
	"testing"
	"time"
)

func TestSplitSubBatches_ChopsIntoFixedSizeGroups(t *testing.T) {
	items := []string{"a", "b", "c", "d", "e", "f", "g"}
	got := SplitSubBatches(items, 3)
	if len(got) != 3 {
		t.Fatalf("expected 3 sub-batches, got %d", len(got))
	}
	if len(got[0]) != 3 || len(got[1]) != 3 || len(got[2]) != 1 {
		t.Errorf("expected sizes [3,3,1], got [%d,%d,%d]", len(got[0]), len(got[1]), len(got[2]))
	}
}

func TestSplitSubBatches_EmptyInput(t *testing.T) {
	if got := SplitSubBatches([]string{}, 3); len(got) != 0 {
		t.Errorf("expected no sub-batches for empty input, got %d", len(got))
	}
}

func TestSplitSubBatches_DefaultsSizeWhenNonPositive(t *testing.T) {
	items := make([]int, 7)
	got := SplitSubBatches(items, 0)
	if len(got) != 3 {
		t.Fatalf("expected default size 3 to produce 3 sub-batches for 7 items, got %d", len(got))
	}
}

func TestStaggerDelay_ScalesByIndex(t *testing.T) {
	cases := []struct {
		index int
		want  time.Duration
	}{
		{0, 0},
		{1, 8 * time.Second},
		{3, 24 * time.Second},
	}
	for _, c := range cases {
		if got := staggerDelay(c.index); got != c.want {
			t.Errorf("staggerDelay(%d) = %v, want %v", c.index, got, c.want)
		}
	}
}
