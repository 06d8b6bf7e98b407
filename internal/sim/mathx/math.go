package mathx

import "math"

// Vec2 is a point or direction in world space.
type Vec2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func V(x, y float64) Vec2 { return Vec2{X: x, Y: y} }

func (a Vec2) Add(b Vec2) Vec2      { return Vec2{X: a.X + b.X, Y: a.Y + b.Y} }
func (a Vec2) Sub(b Vec2) Vec2      { return Vec2{X: a.X - b.X, Y: a.Y - b.Y} }
func (a Vec2) Scale(s float64) Vec2 { return Vec2{X: a.X * s, Y: a.Y * s} }
func (a Vec2) Mul(b Vec2) Vec2      { return Vec2{X: a.X * b.X, Y: a.Y * b.Y} }
func (a Vec2) Len() float64         { return math.Hypot(a.X, a.Y) }
func (a Vec2) Dist(b Vec2) float64  { return a.Sub(b).Len() }
func (a Vec2) Finite() bool         { return isFinite(a.X) && isFinite(a.Y) }
func (a Vec2) Array() [2]float64    { return [2]float64{a.X, a.Y} }
func FromArray(v [2]float64) Vec2   { return Vec2{X: v[0], Y: v[1]} }
func (a Vec2) Lerp(b Vec2, t float64) Vec2 {
	return Vec2{X: a.X + (b.X-a.X)*t, Y: a.Y + (b.Y-a.Y)*t}
}

// Normalized returns the unit vector of a, or the zero vector when a has no length.
func (a Vec2) Normalized() Vec2 {
	l := a.Len()
	if l == 0 {
		return Vec2{}
	}
	return Vec2{X: a.X / l, Y: a.Y / l}
}

// FromAngle returns the unit vector for an angle in degrees.
func FromAngle(deg float64) Vec2 {
	r := deg * math.Pi / 180
	return Vec2{X: math.Cos(r), Y: math.Sin(r)}
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func FloorDiv(a, b int) int {
	// b > 0
	q := a / b
	r := a % b
	if r < 0 {
		q--
	}
	return q
}

func Mod(a, b int) int {
	// b > 0
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}

func AbsInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// Chebyshev is the L∞ distance between two lattice cells.
func Chebyshev(ax, ay, bx, by int) int {
	dx := AbsInt(ax - bx)
	dy := AbsInt(ay - by)
	if dx > dy {
		return dx
	}
	return dy
}

func mix64(z uint64) uint64 {
	z += 0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

func Hash2(seed int64, x, y int) uint64 {
	ux := uint64(uint32(int32(x)))
	uy := uint64(uint32(int32(y)))
	v := uint64(seed) ^ (ux * 0x9e3779b97f4a7c15) ^ (uy * 0xbf58476d1ce4e5b9)
	return mix64(v)
}

// Unit01 maps a hash onto [0,1].
func Unit01(h uint64) float64 {
	return float64(h>>11) / float64(1<<53-1)
}
