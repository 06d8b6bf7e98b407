package growth

import (
	"math"
	"time"

	"overgrowth.dev/internal/sim/item"
	"overgrowth.dev/internal/sim/mathx"
	"overgrowth.dev/internal/sim/rng"
)

// vineJitter scales the noise sample into a world-space offset.
const vineJitter = 0.05

type vineTask struct {
	e *Engine

	p0, c1, c2, p3 mathx.Vec2

	res   int
	k     int
	t     float64
	width float64
}

func (e *Engine) newVine(p, q mathx.Vec2) *vineTask {
	cfg := e.cfg.Vine
	d := p.Dist(q)
	dir := q.Sub(p).Normalized()
	mid := p.Add(q).Scale(0.5)
	spread := cfg.ControlPointRandomness * d
	push := dir.Scale(cfg.MidpointOffset * d)

	c1 := mid.Add(rng.InsideUnitCircle(e.src).Scale(spread)).Sub(push)
	c2 := mid.Add(rng.InsideUnitCircle(e.src).Scale(spread)).Add(push)

	return &vineTask{
		e:     e,
		p0:    p,
		c1:    c1,
		c2:    c2,
		p3:    q,
		res:   VineSteps(d, cfg.CurveResolutionMultiplier),
		width: cfg.InitialWidth,
	}
}

// VineSteps is the number of spawns along a vine of length d.
func VineSteps(d, multiplier float64) int {
	n := int(math.Ceil(d * multiplier))
	if n < 1 {
		n = 1
	}
	return n
}

// Bezier evaluates the cubic curve p0,c1,c2,p3 at t.
func Bezier(p0, c1, c2, p3 mathx.Vec2, t float64) mathx.Vec2 {
	u := 1 - t
	return p0.Scale(u * u * u).
		Add(c1.Scale(3 * u * u * t)).
		Add(c2.Scale(3 * u * t * t)).
		Add(p3.Scale(t * t * t))
}

func (v *vineTask) Step() (time.Duration, bool) {
	e := v.e
	cfg := e.cfg.Vine

	// t advances by integer steps so the last spawn lands exactly on t == 1.
	v.k++
	v.t = float64(v.k) / float64(v.res)

	pt := Bezier(v.p0, v.c1, v.c2, v.p3, v.t)
	amp := e.noise.At(pt.X*cfg.NoiseScale, pt.Y*cfg.NoiseScale) * vineJitter
	pt = pt.Add(rng.InsideUnitCircle(e.src).Scale(amp))

	e.ledger.Spawn(item.Item{
		Kind:  item.KindVine,
		Pos:   pt,
		Scale: v.width,
		Color: item.Color{G: rng.Range(e.src, 0.3, 0.5), A: 0.8},
	})
	v.width *= cfg.WidthTaper

	if float64(v.k+1)/float64(v.res) > 1 {
		return 0, true
	}
	return cfg.GrowthDelay, false
}
