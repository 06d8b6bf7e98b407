// Package noise provides smooth 2D noise fields in [0,1].
package noise

import (
	"math"

	"overgrowth.dev/internal/sim/mathx"
)

// Value is lattice value noise: hashed corner values blended with a quintic fade.
type Value struct {
	seed int64
}

func NewValue(seed int64) *Value {
	return &Value{seed: seed}
}

// At samples the field at (x, y). The result is always in [0,1].
func (n *Value) At(x, y float64) float64 {
	x0 := math.Floor(x)
	y0 := math.Floor(y)
	ix, iy := int(x0), int(y0)
	fx := fade(x - x0)
	fy := fade(y - y0)

	c00 := n.corner(ix, iy)
	c10 := n.corner(ix+1, iy)
	c01 := n.corner(ix, iy+1)
	c11 := n.corner(ix+1, iy+1)

	top := lerp(fx, c00, c10)
	bot := lerp(fx, c01, c11)
	return clamp01(lerp(fy, top, bot))
}

func (n *Value) AtVec(p mathx.Vec2) float64 { return n.At(p.X, p.Y) }

func (n *Value) corner(x, y int) float64 {
	return mathx.Unit01(mathx.Hash2(n.seed, x, y))
}

// fade applies the smoothstep 6t^5 - 15t^4 + 10t^3.
func fade(t float64) float64 {
	return t * t * t * (t*(t*6-15) + 10)
}

func lerp(t, a, b float64) float64 {
	return a + t*(b-a)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
