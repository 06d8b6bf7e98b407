package growth

import (
	"fmt"

	"overgrowth.dev/internal/sim/item"
	"overgrowth.dev/internal/sim/mathx"
	"overgrowth.dev/internal/sim/noise"
	"overgrowth.dev/internal/sim/rng"
)

// PointSource supplies the anchors an engine grows from.
type PointSource interface {
	Points() []mathx.Vec2
}

type Stats struct {
	Markers         int `json:"markers"`
	Vines           int `json:"vines"`
	Branches        int `json:"branches"`
	Forks           int `json:"forks"`
	ForksSuppressed int `json:"forks_suppressed"`
	MaxDepth        int `json:"max_depth"`
}

// Engine grows vines and floral branches for one segment. All of its tasks run in
// a single scheduler group and spawn into a single ledger.
type Engine struct {
	cfg    Config
	src    rng.Source
	noise  noise.Field
	ledger *item.Ledger
	sched  *Scheduler
	group  *Group

	points       []mathx.Vec2
	liveBranches int
	stats        Stats
}

func NewEngine(cfg Config, sched *Scheduler, ledger *item.Ledger, src rng.Source) *Engine {
	// The fork caps cannot be switched off; unset or negative values take the defaults.
	def := DefaultConfig()
	if cfg.MaxBranchTasks <= 0 {
		cfg.MaxBranchTasks = def.MaxBranchTasks
	}
	if cfg.MaxBranchDepth <= 0 {
		cfg.MaxBranchDepth = def.MaxBranchDepth
	}
	return &Engine{
		cfg:    cfg,
		src:    src,
		noise:  noise.New(cfg.Vine.Noise, cfg.NoiseSeed),
		ledger: ledger,
		sched:  sched,
		group:  sched.NewGroup(),
	}
}

// Grow places anchor markers and starts one vine task per anchor that has a
// partner plus one root branch per anchor. It returns the number of tasks started.
func (e *Engine) Grow(ps PointSource) (int, error) {
	if ps == nil {
		return 0, fmt.Errorf("growth: nil point source: %w", ErrInvalidArgument)
	}
	if e.src == nil || e.ledger == nil {
		return 0, fmt.Errorf("growth: engine missing random source or ledger: %w", ErrInvalidArgument)
	}
	pts := ps.Points()
	if len(pts) == 0 {
		return 0, fmt.Errorf("growth: no anchor points: %w", ErrMissingDependency)
	}
	e.points = pts

	if e.cfg.AnchorMarkers {
		for _, p := range pts {
			if _, ok := e.ledger.Spawn(item.Item{
				Kind:  item.KindMarker,
				Pos:   p,
				Scale: e.cfg.MarkerScale,
				Color: item.Color{G: 1, A: 1},
			}); ok {
				e.stats.Markers++
			}
		}
	}

	started := 0
	if e.cfg.DrawVines {
		for i, p := range pts {
			j, ok := Nearest(pts, i)
			if !ok {
				continue
			}
			if e.sched.Start(e.group, e.newVine(p, pts[j])) {
				e.stats.Vines++
				started++
			}
		}
	}
	for _, p := range pts {
		if e.startBranch(p, 0) {
			started++
		}
	}
	return started, nil
}

// Cancel stops all of the engine's tasks. Spawned items stay in the ledger.
func (e *Engine) Cancel() int {
	return e.sched.Cancel(e.group)
}

func (e *Engine) Group() *Group        { return e.group }
func (e *Engine) Stats() Stats         { return e.stats }
func (e *Engine) LiveBranches() int    { return e.liveBranches }
func (e *Engine) Points() []mathx.Vec2 { return e.points }

func (e *Engine) startBranch(origin mathx.Vec2, depth int) bool {
	if e.liveBranches >= e.cfg.MaxBranchTasks {
		e.stats.ForksSuppressed++
		return false
	}
	if depth > e.cfg.MaxBranchDepth {
		e.stats.ForksSuppressed++
		return false
	}
	if !e.sched.Start(e.group, e.newBranch(origin, depth)) {
		return false
	}
	e.liveBranches++
	e.stats.Branches++
	if depth > e.stats.MaxDepth {
		e.stats.MaxDepth = depth
	}
	return true
}

func (e *Engine) branchDone() {
	if e.liveBranches > 0 {
		e.liveBranches--
	}
}

// Nearest returns the index of the point closest to pts[i], excluding i itself.
// Ties keep the first index encountered. ok is false when no other point exists.
func Nearest(pts []mathx.Vec2, i int) (int, bool) {
	if i < 0 || i >= len(pts) {
		return 0, false
	}
	best := -1
	bestDist := 0.0
	for j, q := range pts {
		if j == i {
			continue
		}
		d := pts[i].Dist(q)
		if best < 0 || d < bestDist {
			best = j
			bestDist = d
		}
	}
	return best, best >= 0
}
