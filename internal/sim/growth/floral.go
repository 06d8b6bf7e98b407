package growth

import (
	"time"

	"overgrowth.dev/internal/sim/item"
	"overgrowth.dev/internal/sim/mathx"
	"overgrowth.dev/internal/sim/rng"
)

type branchTask struct {
	e *Engine

	pos     mathx.Vec2
	heading float64 // degrees
	steps   int
	step    int
	width   float64
	depth   int
}

func (e *Engine) newBranch(origin mathx.Vec2, depth int) *branchTask {
	cfg := e.cfg.Floral
	return &branchTask{
		e:       e,
		pos:     origin.Add(rng.InsideUnitCircle(e.src).Scale(cfg.RootOffset)),
		heading: e.src.Float64() * 360,
		steps:   rng.IntRange(e.src, cfg.MinBranchSteps, cfg.MaxBranchSteps),
		width:   cfg.BranchWidth,
		depth:   depth,
	}
}

func (b *branchTask) Step() (time.Duration, bool) {
	e := b.e
	cfg := e.cfg.Floral
	if b.step >= b.steps {
		e.branchDone()
		return 0, true
	}

	b.heading += rng.Range(e.src, -cfg.HeadingJitterDeg, cfg.HeadingJitterDeg)
	b.pos = b.pos.Add(mathx.FromAngle(b.heading).Scale(cfg.StepLength))

	clusters := rng.IntRange(e.src, cfg.MinClusterCount, cfg.MaxClusterCount)
	for i := 0; i < clusters; i++ {
		off := rng.InsideUnitCircle(e.src).Scale(b.width * cfg.BranchOffsetScale)
		e.ledger.Spawn(item.Item{
			Kind:  item.KindBloom,
			Pos:   b.pos.Add(off),
			Scale: rng.Range(e.src, cfg.MinClusterScale, b.width),
			Color: item.Color{G: rng.Range(e.src, 0.4, 0.6), A: 1},
		})
	}

	b.width *= cfg.BranchTaper
	cur := b.step
	b.step++

	if b.width < cfg.MinBranchWidth {
		e.branchDone()
		return 0, true
	}
	if cur > cfg.ForkWarmupSteps && rng.Chance(e.src, cfg.BranchingChance) {
		e.stats.Forks++
		e.startBranch(b.pos, b.depth+1)
	}
	if b.step >= b.steps {
		e.branchDone()
		return 0, true
	}
	return cfg.GrowthDelay, false
}
