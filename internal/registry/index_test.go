package registry

import (
	"testing"
	"time"

	"github.com/kozaktomas/pose-guard/internal/config"
)

func TestIndex_Nearest(t *testing.T) {
	now := time.Now()
	targets := []*Target{
		NewTarget("a", []float32{0, 0}, now),
		NewTarget("b", []float32{1, 0}, now),
		NewTarget("c", []float32{5, 5}, now),
		NewTarget("odd", []float32{1, 2, 3}, now),
		NewTarget("empty", nil, now),
	}
	idx := NewIndex(config.MetricEuclidean, targets)
	if idx.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", idx.Len())
	}

	got := idx.Nearest([]float32{0.9, 0}, 2)
	if len(got) != 2 {
		t.Fatalf("Nearest() returned %d matches", len(got))
	}
	if got[0].Name != "b" || got[1].Name != "a" {
		t.Errorf("Nearest() order = %+v", got)
	}
	if got[0].Distance > got[1].Distance {
		t.Error("matches must be sorted by distance")
	}

	if got := idx.Nearest([]float32{1, 2, 3}, 1); got != nil {
		t.Errorf("dimension mismatch should return nil, got %+v", got)
	}
}

func TestIndex_Empty(t *testing.T) {
	idx := NewIndex(config.MetricCosine, nil)
	if got := idx.Nearest([]float32{1}, 3); got != nil {
		t.Errorf("empty index should return nil, got %+v", got)
	}
}
