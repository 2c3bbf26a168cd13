package position

import (
	"math"
	"testing"
)

func TestClassifyTaxonomy(t *testing.T) {
	cases := []struct {
		current      int32
		wantStatus   Status
		wantCoverage float64
	}{
		{150, StatusInRange, 0.50},
		{95, StatusOutOfRangeBelow, -0.05},
		{185, StatusNearUpperEdge, 0.85},
		{105, StatusNearLowerEdge, 0.05},
		{200, StatusOutOfRangeAbove, 1.0},
		{100, StatusNearLowerEdge, 0.0},
	}

	for _, tc := range cases {
		status, coverage := Classify(100, 200, tc.current, 0)
		if status != tc.wantStatus {
			t.Fatalf("tick %d: got %v want %v", tc.current, status, tc.wantStatus)
		}
		if math.Abs(coverage-tc.wantCoverage) > 1e-9 {
			t.Fatalf("tick %d: coverage %v want %v", tc.current, coverage, tc.wantCoverage)
		}
	}
}

func TestClassifyCustomEdgeFraction(t *testing.T) {
	// With a 5% edge band, 185/85% coverage is comfortably in range.
	status, _ := Classify(100, 200, 185, 0.05)
	if status != StatusInRange {
		t.Fatalf("got %v want IN_RANGE", status)
	}
	status, _ = Classify(100, 200, 196, 0.05)
	if status != StatusNearUpperEdge {
		t.Fatalf("got %v want NEAR_UPPER_EDGE", status)
	}
}

func TestStatusHealthy(t *testing.T) {
	if !StatusInRange.Healthy() {
		t.Fatalf("IN_RANGE must be healthy")
	}
	for _, s := range []Status{StatusNearLowerEdge, StatusNearUpperEdge, StatusOutOfRangeBelow, StatusOutOfRangeAbove} {
		if s.Healthy() {
			t.Fatalf("%v must not be healthy", s)
		}
	}
}

func TestPositionInRange(t *testing.T) {
	pos := Position{TickLower: 100, TickUpper: 200}
	if !pos.InRange(100) {
		t.Fatalf("lower bound is inclusive")
	}
	if pos.InRange(200) {
		t.Fatalf("upper bound is exclusive")
	}
}
