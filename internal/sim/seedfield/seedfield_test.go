package seedfield

import (
	"errors"
	"math"
	"testing"

	"overgrowth.dev/internal/sim/mathx"
	"overgrowth.dev/internal/sim/rng"
)

func TestGenerateCountAndBounds(t *testing.T) {
	src := rng.NewSeeded(7)
	bounds := mathx.V(5, 3)
	offset := mathx.V(100, -40)
	for _, count := range []int{0, 1, 10, 257} {
		f, err := New(src, bounds, offset, count)
		if err != nil {
			t.Fatalf("count=%d: %v", count, err)
		}
		if f.Len() != count {
			t.Fatalf("count=%d: got %d points", count, f.Len())
		}
		for _, p := range f.Points() {
			if !f.Contains(p) {
				t.Fatalf("point %+v outside bounds %+v offset %+v", p, bounds, offset)
			}
		}
	}
}

func TestGenerateExtremesStayInclusive(t *testing.T) {
	// 0 maps to the low edge, values just below 1 approach the high edge.
	src := rng.NewScript(0, 0, 0.9999999, 0.9999999)
	pts, err := Generate(src, mathx.V(2, 2), mathx.V(1, 1), 2)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if pts[0] != mathx.V(-1, -1) {
		t.Fatalf("low corner=%+v", pts[0])
	}
	if pts[1].X > 3 || pts[1].Y > 3 || pts[1].X < 2.99 {
		t.Fatalf("high corner=%+v", pts[1])
	}
}

func TestGenerateZeroCountIsEmpty(t *testing.T) {
	pts, err := Generate(rng.NewScript(0.5), mathx.V(1, 1), mathx.Vec2{}, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pts) != 0 {
		t.Fatalf("expected empty result, got %d", len(pts))
	}
}

func TestGenerateRejectsInvalidInput(t *testing.T) {
	src := rng.NewScript(0.5)
	cases := []struct {
		name   string
		bounds mathx.Vec2
		offset mathx.Vec2
		count  int
	}{
		{"negative count", mathx.V(1, 1), mathx.Vec2{}, -1},
		{"negative bounds", mathx.V(-1, 1), mathx.Vec2{}, 3},
		{"nan bounds", mathx.V(math.NaN(), 1), mathx.Vec2{}, 3},
		{"inf offset", mathx.V(1, 1), mathx.V(math.Inf(1), 0), 3},
	}
	for _, tc := range cases {
		if _, err := Generate(src, tc.bounds, tc.offset, tc.count); !errors.Is(err, ErrInvalidArgument) {
			t.Fatalf("%s: err=%v want ErrInvalidArgument", tc.name, err)
		}
	}
	if _, err := Generate(nil, mathx.V(1, 1), mathx.Vec2{}, 1); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("nil source: err=%v", err)
	}
}

func TestPointsReturnsCopy(t *testing.T) {
	f, err := New(rng.NewSeeded(1), mathx.V(1, 1), mathx.Vec2{}, 3)
	if err != nil {
		t.Fatal(err)
	}
	pts := f.Points()
	pts[0] = mathx.V(99, 99)
	if f.Points()[0] == mathx.V(99, 99) {
		t.Fatalf("Points must not expose internal storage")
	}
}
