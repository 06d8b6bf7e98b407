package rng

import (
	"math"
	"testing"
)

func TestIntRangeInclusive(t *testing.T) {
	if got := IntRange(NewScript(0), 3, 6); got != 3 {
		t.Fatalf("low end=%d want 3", got)
	}
	if got := IntRange(NewScript(0.999999), 3, 6); got != 6 {
		t.Fatalf("high end=%d want 6", got)
	}
	if got := IntRange(NewScript(0.5), 4, 4); got != 4 {
		t.Fatalf("degenerate range=%d want 4", got)
	}
}

func TestRange(t *testing.T) {
	if got := Range(NewScript(0.25), -2, 2); got != -1 {
		t.Fatalf("Range=%v want -1", got)
	}
}

func TestInsideUnitCircle(t *testing.T) {
	src := NewSeeded(1)
	for i := 0; i < 1000; i++ {
		p := InsideUnitCircle(src)
		if p.Len() > 1+1e-12 {
			t.Fatalf("point outside unit circle: %+v", p)
		}
	}
}

func TestScriptClampsAndCycles(t *testing.T) {
	s := NewScript(-1, 2, 0.5)
	if s.Float64() != 0 {
		t.Fatalf("negative should clamp to 0")
	}
	if v := s.Float64(); v >= 1 || v != math.Nextafter(1, 0) {
		t.Fatalf("value >=1 should clamp below 1, got %v", v)
	}
	if s.Float64() != 0.5 {
		t.Fatalf("third value mismatch")
	}
	if s.Float64() != 0 {
		t.Fatalf("script should cycle")
	}
	if s.Calls() != 4 {
		t.Fatalf("Calls=%d want 4", s.Calls())
	}
}
