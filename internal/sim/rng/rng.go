// Package rng wraps the random source used by generation so callers can swap the
// ambient time-seeded generator for a fixed one.
package rng

import (
	"math"
	"math/rand"
	"time"

	"overgrowth.dev/internal/sim/mathx"
)

// Source yields uniform floats in [0,1). *rand.Rand satisfies it.
type Source interface {
	Float64() float64
}

// NewAmbient returns a generator seeded from the wall clock.
func NewAmbient() *rand.Rand {
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}

// NewSeeded returns a reproducible generator.
func NewSeeded(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

// Range returns a float uniform in [lo, hi].
func Range(src Source, lo, hi float64) float64 {
	return lo + src.Float64()*(hi-lo)
}

// IntRange returns an int uniform in [lo, hi], both inclusive.
func IntRange(src Source, lo, hi int) int {
	if hi <= lo {
		return lo
	}
	n := hi - lo + 1
	i := int(src.Float64() * float64(n))
	if i >= n {
		i = n - 1
	}
	return lo + i
}

// Chance reports true with probability p.
func Chance(src Source, p float64) bool {
	return src.Float64() < p
}

// InsideUnitCircle samples a point uniformly from the unit disc.
func InsideUnitCircle(src Source) mathx.Vec2 {
	r := math.Sqrt(src.Float64())
	a := src.Float64() * 2 * math.Pi
	return mathx.Vec2{X: r * math.Cos(a), Y: r * math.Sin(a)}
}

// Script replays a fixed list of values, cycling when exhausted. Values are
// clamped into [0,1).
type Script struct {
	vals []float64
	i    int
}

func NewScript(vals ...float64) *Script {
	if len(vals) == 0 {
		vals = []float64{0}
	}
	return &Script{vals: vals}
}

func (s *Script) Float64() float64 {
	v := s.vals[s.i%len(s.vals)]
	s.i++
	if v < 0 {
		return 0
	}
	if v >= 1 {
		return math.Nextafter(1, 0)
	}
	return v
}

// Calls reports how many values have been drawn.
func (s *Script) Calls() int { return s.i }
