package stream

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"overgrowth.dev/internal/sim/growth"
	"overgrowth.dev/internal/sim/item"
	"overgrowth.dev/internal/sim/mathx"
	"overgrowth.dev/internal/sim/rng"
	"overgrowth.dev/internal/sim/seedfield"
)

type camera struct{ pos mathx.Vec2 }

func (c *camera) Viewpoint() mathx.Vec2 { return c.pos }

type harness struct {
	cam   *camera
	sched *growth.Scheduler
	mem   *item.Memory
	s     *Streamer
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()
	h := &harness{cam: &camera{}, sched: growth.NewScheduler(0), mem: item.NewMemory()}
	s, err := New(cfg, h.cam, h.sched, h.mem, rng.NewSeeded(42), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	h.s = s
	return h
}

func (h *harness) poll(t *testing.T) Transition {
	t.Helper()
	tr, err := h.s.Poll()
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	return tr
}

func coordSet(rs []Report) map[Coord]bool {
	out := map[Coord]bool{}
	for _, r := range rs {
		out[r.Coord] = true
	}
	return out
}

func TestFirstPollLoadsWholeWindow(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	tr := h.poll(t)
	if !tr.Changed || len(tr.Loaded) != 9 || len(tr.Unloaded) != 0 {
		t.Fatalf("first poll: changed=%v loaded=%d unloaded=%d", tr.Changed, len(tr.Loaded), len(tr.Unloaded))
	}
	if tr.Loaded[0].Coord != (Coord{}) {
		t.Fatalf("centre cell should load first, got %+v", tr.Loaded[0].Coord)
	}
	for _, c := range h.s.Live() {
		seg, _ := h.s.Segment(c)
		if seg.State != StateLive {
			t.Fatalf("segment %+v state %v", c, seg.State)
		}
		if seg.Field.Len() != 10 {
			t.Fatalf("segment %+v has %d anchors", c, seg.Field.Len())
		}
		for _, p := range seg.Field.Points() {
			if got, err := CellOf(p, h.s.Config().SegmentSize); err != nil || got != c {
				t.Fatalf("anchor %+v outside its segment %+v", p, c)
			}
		}
	}
}

func TestPollWithinCellIsNoop(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	h.poll(t)
	before := h.mem.Spawned()
	h.cam.pos = mathx.V(9.99, 0.01)
	tr := h.poll(t)
	if tr.Changed || len(tr.Loaded) != 0 || len(tr.Unloaded) != 0 {
		t.Fatalf("poll inside the same cell changed state: %+v", tr)
	}
	if h.mem.Spawned() != before {
		t.Fatalf("no-op poll spawned items")
	}
}

func TestCrossingLoadsAndUnloadsSymmetricDifference(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	h.poll(t)
	h.cam.pos = mathx.V(10.5, 5)
	tr := h.poll(t)

	loaded := coordSet(tr.Loaded)
	unloaded := coordSet(tr.Unloaded)
	if len(loaded) != 3 || len(unloaded) != 3 {
		t.Fatalf("loaded=%v unloaded=%v", loaded, unloaded)
	}
	for y := -1; y <= 1; y++ {
		if !loaded[Coord{X: 2, Y: y}] {
			t.Fatalf("column x=2 should load, got %v", loaded)
		}
		if !unloaded[Coord{X: -1, Y: y}] {
			t.Fatalf("column x=-1 should unload, got %v", unloaded)
		}
	}
	if h.s.Len() != 9 {
		t.Fatalf("live=%d want 9", h.s.Len())
	}
}

func TestNegativeCoordinatesFloor(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	h.cam.pos = mathx.V(-0.5, -10)
	tr := h.poll(t)
	if tr.Center != (Coord{X: -1, Y: -1}) {
		t.Fatalf("center=%+v want -1,-1", tr.Center)
	}
}

func TestHugeViewpointRejected(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	h.poll(t)
	before := h.s.Live()
	for _, p := range []mathx.Vec2{mathx.V(1e300, 0), mathx.V(0, -1e12), mathx.V(21474836480, 0)} {
		h.cam.pos = p
		tr, err := h.s.Poll()
		if !errors.Is(err, ErrInvalidArgument) {
			t.Fatalf("viewpoint %+v: err=%v want ErrInvalidArgument", p, err)
		}
		if tr.Changed || tr.Center != (Coord{}) {
			t.Fatalf("viewpoint %+v moved the window: %+v", p, tr)
		}
	}
	if got := h.s.Live(); len(got) != len(before) {
		t.Fatalf("live=%d want %d", len(got), len(before))
	}

	// The last cell on the int32 grid is still accepted.
	h.cam.pos = mathx.V(21474836470, 0)
	if tr := h.poll(t); tr.Center.X != 2147483647 {
		t.Fatalf("center=%+v", tr.Center)
	}
}

func TestWindowSizeFollowsRadius(t *testing.T) {
	for _, r := range []int{0, 1, 2, 3} {
		cfg := DefaultConfig()
		cfg.LoadRadius = r
		cfg.AnchorCount = 2
		h := newHarness(t, cfg)
		h.poll(t)
		if want := (2*r + 1) * (2*r + 1); h.s.Len() != want {
			t.Fatalf("radius %d: live=%d want %d", r, h.s.Len(), want)
		}
	}
}

func TestRandomWalkKeepsWindowExactAndUnique(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AnchorCount = 3
	h := newHarness(t, cfg)
	r := rand.New(rand.NewSource(7))
	step := 0.0
	for i := 0; i < 400; i++ {
		h.cam.pos = h.cam.pos.Add(mathx.V(r.Float64()*16-8, r.Float64()*16-8))
		tr := h.poll(t)
		for _, rep := range tr.Unloaded {
			if rep.ItemsReleased != rep.ItemsSpawned {
				t.Fatalf("segment %+v released %d of %d items", rep.Coord, rep.ItemsReleased, rep.ItemsSpawned)
			}
		}
		step += 0.1
		h.sched.Advance(time.Duration(step * float64(time.Second)))

		center, _ := h.s.Center()
		want := Window(center, cfg.LoadRadius)
		if h.s.Len() != len(want) {
			t.Fatalf("iteration %d: live=%d want %d", i, h.s.Len(), len(want))
		}
		for _, c := range want {
			if _, ok := h.s.Segment(c); !ok {
				t.Fatalf("iteration %d: %+v missing from live set", i, c)
			}
		}
	}
	if h.mem.DoubleReleases() != 0 {
		t.Fatalf("double releases: %d", h.mem.DoubleReleases())
	}
	h.s.Close()
	if h.mem.Live() != 0 {
		t.Fatalf("items leaked after Close: %d", h.mem.Live())
	}
	if h.sched.Len() != 0 {
		t.Fatalf("tasks left after Close: %d", h.sched.Len())
	}
}

func TestUnloadAfterGrowthFinished(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AnchorCount = 2
	h := newHarness(t, cfg)
	h.poll(t)
	for h.sched.Len() > 0 {
		h.sched.Advance(h.sched.Now() + time.Second)
	}
	h.cam.pos = mathx.V(100, 100)
	tr := h.poll(t)
	if len(tr.Unloaded) != 9 {
		t.Fatalf("unloaded=%d want 9", len(tr.Unloaded))
	}
	for _, rep := range tr.Unloaded {
		if rep.TasksCancelled != 0 {
			t.Fatalf("finished segment cancelled %d tasks", rep.TasksCancelled)
		}
	}
	if h.mem.DoubleReleases() != 0 {
		t.Fatalf("double releases: %d", h.mem.DoubleReleases())
	}
}

func TestUnloadCancelsRunningGrowth(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	h.poll(t)
	h.sched.Advance(30 * time.Millisecond)
	h.cam.pos = mathx.V(1000, 0)
	tr := h.poll(t)
	cancelled := 0
	for _, rep := range tr.Unloaded {
		cancelled += rep.TasksCancelled
	}
	if cancelled == 0 {
		t.Fatalf("expected in-flight tasks to be cancelled")
	}
	for _, rep := range tr.Unloaded {
		if rep.ItemsReleased != rep.ItemsSpawned {
			t.Fatalf("segment %+v released %d of %d", rep.Coord, rep.ItemsReleased, rep.ItemsSpawned)
		}
	}
	owned := 0
	for _, c := range h.s.Live() {
		seg, _ := h.s.Segment(c)
		owned += seg.Ledger.Len()
	}
	h.sched.Advance(time.Hour)
	grown := 0
	for _, c := range h.s.Live() {
		seg, _ := h.s.Segment(c)
		grown += seg.Ledger.Len()
	}
	if h.mem.Live() != grown || grown < owned {
		t.Fatalf("live items %d, owned by live segments %d", h.mem.Live(), grown)
	}
}

func TestZeroAnchorsIsBenign(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AnchorCount = 0
	h := newHarness(t, cfg)
	tr := h.poll(t)
	if len(tr.Loaded) != 9 || h.sched.Len() != 0 {
		t.Fatalf("loaded=%d pending=%d", len(tr.Loaded), h.sched.Len())
	}
}

func TestNegativeAnchorCountReportedWithoutStopping(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AnchorCount = -1
	h := newHarness(t, cfg)
	tr, err := h.s.Poll()
	if !errors.Is(err, seedfield.ErrInvalidArgument) {
		t.Fatalf("err=%v", err)
	}
	if h.s.Len() != 9 || len(tr.Loaded) != 9 {
		t.Fatalf("window should still be complete: live=%d", h.s.Len())
	}
	h.cam.pos = mathx.V(25, 0)
	if _, err := h.s.Poll(); err == nil {
		t.Fatalf("expected the new segments to fail again")
	}
	if h.s.Len() != 9 {
		t.Fatalf("live=%d", h.s.Len())
	}
}

func TestNewRejectsBadArguments(t *testing.T) {
	sched := growth.NewScheduler(0)
	mem := item.NewMemory()
	src := rng.NewSeeded(1)
	if _, err := New(DefaultConfig(), nil, sched, mem, src, nil); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("nil viewpoint err=%v", err)
	}
	cfg := DefaultConfig()
	cfg.SegmentSize = mathx.V(0, 10)
	if _, err := New(cfg, &camera{}, sched, mem, src, nil); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("zero segment size err=%v", err)
	}
}

func TestWindowOrder(t *testing.T) {
	w := Window(Coord{X: 3, Y: -2}, 1)
	if len(w) != 9 || w[0] != (Coord{X: 3, Y: -2}) {
		t.Fatalf("window=%v", w)
	}
	if w[1] != (Coord{X: 2, Y: -3}) {
		t.Fatalf("ring order: %v", w)
	}
}
