package noise

import "testing"

func TestPerlinRangeAndDeterminism(t *testing.T) {
	a := NewPerlin(7)
	b := NewPerlin(7)
	for i := -200; i < 200; i++ {
		x := float64(i) * 0.29
		y := float64(i) * -0.43
		v := a.At(x, y)
		if v < 0 || v > 1 {
			t.Fatalf("At(%v,%v)=%v out of [0,1]", x, y, v)
		}
		if w := b.At(x, y); w != v {
			t.Fatalf("same seed differs at (%v,%v): %v vs %v", x, y, v, w)
		}
	}
}

func TestNewSelectsKind(t *testing.T) {
	if _, ok := New(KindValue, 1).(*Value); !ok {
		t.Fatalf("value kind should build *Value")
	}
	if _, ok := New(KindPerlin, 1).(*Perlin); !ok {
		t.Fatalf("perlin kind should build *Perlin")
	}
	if _, ok := New("", 1).(*Perlin); !ok {
		t.Fatalf("empty kind should default to *Perlin")
	}
}
