package growth

import (
	"errors"
	"math"
	"testing"
	"time"

	"overgrowth.dev/internal/sim/item"
	"overgrowth.dev/internal/sim/mathx"
	"overgrowth.dev/internal/sim/rng"
)

type recorder struct {
	items    []item.Item
	released []item.Handle
}

func (r *recorder) Spawn(it item.Item) item.Handle {
	r.items = append(r.items, it)
	return item.Handle(len(r.items))
}

func (r *recorder) Release(h item.Handle) { r.released = append(r.released, h) }

func (r *recorder) kind(k item.Kind) []item.Item {
	var out []item.Item
	for _, it := range r.items {
		if it.Kind == k {
			out = append(out, it)
		}
	}
	return out
}

type points []mathx.Vec2

func (p points) Points() []mathx.Vec2 { return p }

func newTestEngine(cfg Config, src rng.Source) (*Engine, *Scheduler, *recorder) {
	rec := &recorder{}
	s := NewScheduler(0)
	return NewEngine(cfg, s, item.NewLedger(rec), src), s, rec
}

func drain(t *testing.T, s *Scheduler) {
	t.Helper()
	for i := 0; i < 100000 && s.Len() > 0; i++ {
		s.Advance(s.Now() + time.Second)
	}
	if s.Len() != 0 {
		t.Fatalf("scheduler did not drain: %d pending", s.Len())
	}
}

func TestNearestFirstEncounteredWinsTies(t *testing.T) {
	pts := []mathx.Vec2{
		mathx.V(0, 0),  // query
		mathx.V(1, 0),  // A, distance 1
		mathx.V(0, -1), // B, distance 1, later
		mathx.V(2, 0),  // C, distance 2
	}
	j, ok := Nearest(pts, 0)
	if !ok || j != 1 {
		t.Fatalf("Nearest=%d,%v want 1,true", j, ok)
	}
}

func TestNearestWithoutPartner(t *testing.T) {
	if _, ok := Nearest([]mathx.Vec2{mathx.V(3, 3)}, 0); ok {
		t.Fatalf("single point should have no neighbour")
	}
	if _, ok := Nearest(nil, 0); ok {
		t.Fatalf("empty set should have no neighbour")
	}
}

func TestNearestOriginIsALegitimateNeighbour(t *testing.T) {
	j, ok := Nearest([]mathx.Vec2{mathx.V(5, 5), mathx.V(0, 0)}, 0)
	if !ok || j != 1 {
		t.Fatalf("Nearest=%d,%v want 1,true", j, ok)
	}
}

func TestBezierEndpoints(t *testing.T) {
	p0, c1, c2, p3 := mathx.V(0, 0), mathx.V(1, 5), mathx.V(3, -5), mathx.V(4, 0)
	if got := Bezier(p0, c1, c2, p3, 0); got != p0 {
		t.Fatalf("t=0 -> %+v", got)
	}
	if got := Bezier(p0, c1, c2, p3, 1); got.Dist(p3) > 1e-12 {
		t.Fatalf("t=1 -> %+v", got)
	}
}

func TestVineSteps(t *testing.T) {
	if got := VineSteps(2.5, 4); got != 10 {
		t.Fatalf("VineSteps(2.5,4)=%d want 10", got)
	}
	if got := VineSteps(0.26, 20); got != 6 {
		t.Fatalf("VineSteps(0.26,20)=%d want 6", got)
	}
	if got := VineSteps(0, 20); got != 1 {
		t.Fatalf("coincident points should still take one step, got %d", got)
	}
}

func TestVineStepCountTaperAndEndpoint(t *testing.T) {
	cfg := DefaultConfig()
	e, _, rec := newTestEngine(cfg, rng.NewSeeded(5))
	p, q := mathx.V(0, 0), mathx.V(1, 0)
	v := e.newVine(p, q)
	if v.res != 20 {
		t.Fatalf("res=%d want 20", v.res)
	}

	steps := 0
	for {
		delay, done := v.Step()
		steps++
		if done {
			break
		}
		if delay != cfg.Vine.GrowthDelay {
			t.Fatalf("delay=%v want %v", delay, cfg.Vine.GrowthDelay)
		}
		if steps > 1000 {
			t.Fatalf("vine did not terminate")
		}
	}
	if steps != 20 {
		t.Fatalf("steps=%d want 20", steps)
	}
	if v.t != 1 {
		t.Fatalf("final t=%v want 1", v.t)
	}
	if next := float64(v.k+1) / float64(v.res); next <= 1 {
		t.Fatalf("loop must exit with t > 1, next=%v", next)
	}

	vines := rec.kind(item.KindVine)
	if len(vines) != 20 {
		t.Fatalf("spawned %d vine items want 20", len(vines))
	}
	for n, it := range vines {
		want := cfg.Vine.InitialWidth * math.Pow(cfg.Vine.WidthTaper, float64(n))
		if math.Abs(it.Scale-want) > 1e-12 {
			t.Fatalf("width after %d steps=%v want %v", n, it.Scale, want)
		}
		if n > 0 && it.Scale >= vines[n-1].Scale {
			t.Fatalf("width must decrease monotonically")
		}
		if it.Color.G < 0.3 || it.Color.G > 0.5 || it.Color.A != 0.8 {
			t.Fatalf("vine colour out of range: %+v", it.Color)
		}
	}
	if d := vines[len(vines)-1].Pos.Dist(q); d > vineJitter+1e-12 {
		t.Fatalf("final vine point %v away from endpoint", d)
	}
}

func TestFloralBranchTerminatesWhenWidthFallsBelowThreshold(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DrawVines = false
	cfg.AnchorMarkers = false
	cfg.Floral.MinBranchSteps = 50
	cfg.Floral.MaxBranchSteps = 50
	cfg.Floral.MinClusterCount = 1
	cfg.Floral.MaxClusterCount = 1
	cfg.Floral.BranchingChance = 0

	e, s, rec := newTestEngine(cfg, rng.NewSeeded(2))
	started, err := e.Grow(points{mathx.V(0, 0)})
	if err != nil || started != 1 {
		t.Fatalf("Grow=%d,%v", started, err)
	}
	drain(t, s)

	bound := int(math.Ceil(math.Log(cfg.Floral.MinBranchWidth/cfg.Floral.BranchWidth) / math.Log(cfg.Floral.BranchTaper)))
	blooms := rec.kind(item.KindBloom)
	if len(blooms) != bound {
		t.Fatalf("branch took %d steps, want %d", len(blooms), bound)
	}
	if e.LiveBranches() != 0 {
		t.Fatalf("live branches=%d after drain", e.LiveBranches())
	}
}

func TestFloralBranchRespectsStepRoll(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DrawVines = false
	cfg.AnchorMarkers = false
	cfg.Floral.MinBranchSteps = 4
	cfg.Floral.MaxBranchSteps = 4
	cfg.Floral.MinClusterCount = 2
	cfg.Floral.MaxClusterCount = 2

	e, s, rec := newTestEngine(cfg, rng.NewSeeded(3))
	if _, err := e.Grow(points{mathx.V(1, 1)}); err != nil {
		t.Fatal(err)
	}
	drain(t, s)
	blooms := rec.kind(item.KindBloom)
	if len(blooms) != 8 {
		t.Fatalf("blooms=%d want 8", len(blooms))
	}
	w := cfg.Floral.BranchWidth
	for i, it := range blooms {
		width := w * math.Pow(cfg.Floral.BranchTaper, float64(i/2))
		if it.Scale < cfg.Floral.MinClusterScale-1e-12 || it.Scale > width+1e-12 {
			t.Fatalf("bloom %d scale %v outside [%v,%v]", i, it.Scale, cfg.Floral.MinClusterScale, width)
		}
		if it.Color.G < 0.4 || it.Color.G > 0.6 {
			t.Fatalf("bloom colour out of range: %+v", it.Color)
		}
	}
}

func TestFloralNoForkDuringWarmup(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DrawVines = false
	cfg.AnchorMarkers = false
	cfg.Floral.MinBranchSteps = 6
	cfg.Floral.MaxBranchSteps = 6
	cfg.Floral.BranchTaper = 1
	cfg.Floral.BranchingChance = 1

	e, s, _ := newTestEngine(cfg, rng.NewSeeded(4))
	if _, err := e.Grow(points{mathx.V(0, 0)}); err != nil {
		t.Fatal(err)
	}
	drain(t, s)
	if st := e.Stats(); st.Branches != 1 || st.Forks != 0 {
		t.Fatalf("stats=%+v want a single unforked branch", st)
	}
}

func TestFloralForkingIsCapped(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DrawVines = false
	cfg.AnchorMarkers = false
	cfg.Floral.MinBranchSteps = 10
	cfg.Floral.MaxBranchSteps = 10
	cfg.Floral.BranchTaper = 1
	cfg.Floral.BranchingChance = 1
	cfg.MaxBranchTasks = 8
	cfg.MaxBranchDepth = 3

	e, s, _ := newTestEngine(cfg, rng.NewSeeded(6))
	if _, err := e.Grow(points{mathx.V(0, 0)}); err != nil {
		t.Fatal(err)
	}
	peak := 0
	for i := 0; i < 100000 && s.Len() > 0; i++ {
		s.Advance(s.Now() + cfg.Floral.GrowthDelay)
		if e.LiveBranches() > peak {
			peak = e.LiveBranches()
		}
	}
	if s.Len() != 0 {
		t.Fatalf("runaway forking: %d tasks pending", s.Len())
	}
	st := e.Stats()
	if peak > cfg.MaxBranchTasks {
		t.Fatalf("live branches peaked at %d, cap %d", peak, cfg.MaxBranchTasks)
	}
	if st.ForksSuppressed == 0 || st.MaxDepth > cfg.MaxBranchDepth {
		t.Fatalf("stats=%+v", st)
	}
}

func TestZeroForkCapsFallBackToDefaults(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DrawVines = false
	cfg.AnchorMarkers = false
	cfg.Floral.MinBranchSteps = 10
	cfg.Floral.MaxBranchSteps = 10
	cfg.Floral.BranchTaper = 1
	cfg.Floral.BranchingChance = 1
	cfg.Floral.GrowthDelay = 0
	cfg.MaxBranchTasks = 0
	cfg.MaxBranchDepth = 0

	e, s, _ := newTestEngine(cfg, rng.NewSeeded(6))
	if _, err := e.Grow(points{mathx.V(0, 0)}); err != nil {
		t.Fatal(err)
	}
	def := DefaultConfig()
	peak := 0
	for i := 0; i < 100000 && s.Len() > 0; i++ {
		s.Advance(s.Now() + time.Millisecond)
		if e.LiveBranches() > peak {
			peak = e.LiveBranches()
		}
	}
	if s.Len() != 0 {
		t.Fatalf("runaway forking: %d tasks pending", s.Len())
	}
	st := e.Stats()
	if peak > def.MaxBranchTasks || st.MaxDepth > def.MaxBranchDepth {
		t.Fatalf("peak=%d stats=%+v, caps %d/%d", peak, st, def.MaxBranchTasks, def.MaxBranchDepth)
	}
	if st.ForksSuppressed == 0 {
		t.Fatalf("expected suppressed forks with the default caps: %+v", st)
	}
}

func TestGrowStartsVinesBranchesAndMarkers(t *testing.T) {
	cfg := DefaultConfig()
	e, _, rec := newTestEngine(cfg, rng.NewSeeded(8))
	started, err := e.Grow(points{mathx.V(0, 0), mathx.V(1, 0), mathx.V(5, 5)})
	if err != nil {
		t.Fatal(err)
	}
	if started != 6 {
		t.Fatalf("started=%d want 6", started)
	}
	st := e.Stats()
	if st.Markers != 3 || st.Vines != 3 || st.Branches != 3 {
		t.Fatalf("stats=%+v", st)
	}
	if got := len(rec.kind(item.KindMarker)); got != 3 {
		t.Fatalf("markers spawned=%d", got)
	}
}

func TestGrowSingleAnchorHasNoVine(t *testing.T) {
	e, _, _ := newTestEngine(DefaultConfig(), rng.NewSeeded(9))
	started, err := e.Grow(points{mathx.V(2, 2)})
	if err != nil {
		t.Fatal(err)
	}
	if started != 1 || e.Stats().Vines != 0 {
		t.Fatalf("started=%d stats=%+v", started, e.Stats())
	}
}

func TestGrowErrors(t *testing.T) {
	e, _, _ := newTestEngine(DefaultConfig(), rng.NewSeeded(1))
	if _, err := e.Grow(nil); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("nil source err=%v", err)
	}
	n, err := e.Grow(points{})
	if !errors.Is(err, ErrMissingDependency) || n != 0 {
		t.Fatalf("empty source n=%d err=%v", n, err)
	}
}

func TestCancelKeepsSpawnedItems(t *testing.T) {
	e, s, rec := newTestEngine(DefaultConfig(), rng.NewSeeded(10))
	if _, err := e.Grow(points{mathx.V(0, 0), mathx.V(3, 0)}); err != nil {
		t.Fatal(err)
	}
	s.Advance(50 * time.Millisecond)
	spawned := len(rec.items)
	if spawned == 0 {
		t.Fatalf("expected some growth before cancel")
	}
	e.Cancel()
	s.Advance(10 * time.Second)
	if len(rec.items) != spawned {
		t.Fatalf("spawned after cancel: %d -> %d", spawned, len(rec.items))
	}
	if len(rec.released) != 0 {
		t.Fatalf("cancel must not release items")
	}
	if e.Cancel() != 0 {
		t.Fatalf("second cancel should be a no-op")
	}
}
