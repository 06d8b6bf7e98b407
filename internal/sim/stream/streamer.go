// Package stream keeps a square window of segments live around a moving
// viewpoint, loading growth for cells that enter the window and tearing down
// cells that leave it.
package stream

import (
	"errors"
	"fmt"
	"io"
	"log"
	"sort"

	"overgrowth.dev/internal/sim/growth"
	"overgrowth.dev/internal/sim/item"
	"overgrowth.dev/internal/sim/mathx"
	"overgrowth.dev/internal/sim/rng"
	"overgrowth.dev/internal/sim/seedfield"
)

var ErrInvalidArgument = errors.New("invalid argument")

type State int

const (
	StateUnloaded State = iota
	StateLoading
	StateLive
	StateUnloading
)

func (s State) String() string {
	switch s {
	case StateUnloaded:
		return "UNLOADED"
	case StateLoading:
		return "LOADING"
	case StateLive:
		return "LIVE"
	case StateUnloading:
		return "UNLOADING"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// ViewpointProvider is polled for the observer position once per Poll.
type ViewpointProvider interface {
	Viewpoint() mathx.Vec2
}

type ViewpointFunc func() mathx.Vec2

func (f ViewpointFunc) Viewpoint() mathx.Vec2 { return f() }

type Config struct {
	SegmentSize mathx.Vec2
	LoadRadius  int
	AnchorCount int
	Growth      growth.Config
}

func DefaultConfig() Config {
	return Config{
		SegmentSize: mathx.V(10, 10),
		LoadRadius:  1,
		AnchorCount: 10,
		Growth:      growth.DefaultConfig(),
	}
}

// Segment is the runtime record of one loaded cell. It exclusively owns its
// field, engine and ledger.
type Segment struct {
	Coord  Coord
	State  State
	Field  *seedfield.Field
	Engine *growth.Engine
	Ledger *item.Ledger

	TasksStarted int
}

// Report summarizes one load or unload.
type Report struct {
	Coord          Coord `json:"coord"`
	Anchors        int   `json:"anchors"`
	TasksStarted   int   `json:"tasks_started"`
	TasksCancelled int   `json:"tasks_cancelled"`
	ItemsSpawned   int   `json:"items_spawned"`
	ItemsReleased  int   `json:"items_released"`

	// Err is set when generation for the segment failed.
	Err error `json:"-"`
}

// Transition is the outcome of one Poll. Changed is false when the viewpoint
// stayed inside the current cell.
type Transition struct {
	Changed  bool
	Center   Coord
	Loaded   []Report
	Unloaded []Report
}

type Streamer struct {
	cfg     Config
	view    ViewpointProvider
	sched   *growth.Scheduler
	spawner item.Spawner
	src     rng.Source
	logger  *log.Logger

	segments  map[Coord]*Segment
	center    Coord
	hasCenter bool
}

func New(cfg Config, view ViewpointProvider, sched *growth.Scheduler, spawner item.Spawner, src rng.Source, logger *log.Logger) (*Streamer, error) {
	if view == nil || sched == nil || spawner == nil || src == nil {
		return nil, fmt.Errorf("stream: missing collaborator: %w", ErrInvalidArgument)
	}
	if !cfg.SegmentSize.Finite() || cfg.SegmentSize.X <= 0 || cfg.SegmentSize.Y <= 0 {
		return nil, fmt.Errorf("stream: segment size %+v: %w", cfg.SegmentSize, ErrInvalidArgument)
	}
	if cfg.LoadRadius < 0 {
		return nil, fmt.Errorf("stream: load radius %d: %w", cfg.LoadRadius, ErrInvalidArgument)
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Streamer{
		cfg:      cfg,
		view:     view,
		sched:    sched,
		spawner:  spawner,
		src:      src,
		logger:   logger,
		segments: map[Coord]*Segment{},
	}, nil
}

func (s *Streamer) Config() Config { return s.cfg }

// Center is the cell the window is currently built around; ok is false before
// the first Poll.
func (s *Streamer) Center() (Coord, bool) { return s.center, s.hasCenter }

func (s *Streamer) Len() int { return len(s.segments) }

func (s *Streamer) Segment(c Coord) (*Segment, bool) {
	seg, ok := s.segments[c]
	return seg, ok
}

// Live returns the loaded coordinates sorted by X then Y.
func (s *Streamer) Live() []Coord {
	out := make([]Coord, 0, len(s.segments))
	for c := range s.segments {
		out = append(out, c)
	}
	sortCoords(out)
	return out
}

// Poll samples the viewpoint and, if it has moved into a different cell,
// rebuilds the window around it. Per-segment failures are logged and joined into
// the returned error; they never stop the streamer.
func (s *Streamer) Poll() (Transition, error) {
	vp := s.view.Viewpoint()
	if !vp.Finite() {
		return Transition{Center: s.center}, fmt.Errorf("stream: viewpoint %+v: %w", vp, ErrInvalidArgument)
	}
	desired, err := CellOf(vp, s.cfg.SegmentSize)
	if err != nil {
		return Transition{Center: s.center}, err
	}
	if s.hasCenter && desired == s.center {
		return Transition{Center: desired}, nil
	}
	return s.Recenter(desired)
}

// Recenter moves the window to center. Segments outside the new window are
// unloaded first, then missing cells are loaded nearest first.
func (s *Streamer) Recenter(center Coord) (Transition, error) {
	tr := Transition{Changed: true, Center: center}
	s.center = center
	s.hasCenter = true

	want := Window(center, s.cfg.LoadRadius)
	inWindow := make(map[Coord]struct{}, len(want))
	for _, c := range want {
		inWindow[c] = struct{}{}
	}

	for _, c := range s.Live() {
		if _, ok := inWindow[c]; ok {
			continue
		}
		tr.Unloaded = append(tr.Unloaded, s.unload(c))
	}

	var errs []error
	for _, c := range want {
		if _, ok := s.segments[c]; ok {
			continue
		}
		rep, err := s.load(c)
		if err != nil {
			s.logger.Printf("load %d,%d: %v", c.X, c.Y, err)
			errs = append(errs, err)
			rep.Err = err
		}
		tr.Loaded = append(tr.Loaded, rep)
	}
	return tr, errors.Join(errs...)
}

// Close unloads every live segment.
func (s *Streamer) Close() []Report {
	var out []Report
	for _, c := range s.Live() {
		out = append(out, s.unload(c))
	}
	s.hasCenter = false
	return out
}

func (s *Streamer) load(c Coord) (Report, error) {
	seg := &Segment{Coord: c, State: StateLoading, Ledger: item.NewLedger(s.spawner)}
	s.segments[c] = seg
	rep := Report{Coord: c}

	// A segment whose generation fails stays live and empty so the window remains
	// complete and the cell is not retried until it leaves the window.
	defer func() { seg.State = StateLive }()

	size := s.cfg.SegmentSize
	field, err := seedfield.New(s.src, size.Scale(0.5), c.Center(size), s.cfg.AnchorCount)
	if err != nil {
		return rep, fmt.Errorf("segment %d,%d: %w", c.X, c.Y, err)
	}
	seg.Field = field
	rep.Anchors = field.Len()

	seg.Engine = growth.NewEngine(s.cfg.Growth, s.sched, seg.Ledger, s.src)
	started, err := seg.Engine.Grow(field)
	if err != nil && !errors.Is(err, growth.ErrMissingDependency) {
		return rep, fmt.Errorf("segment %d,%d: %w", c.X, c.Y, err)
	}
	seg.TasksStarted = started
	rep.TasksStarted = started
	rep.ItemsSpawned = seg.Ledger.Spawned()
	return rep, nil
}

func (s *Streamer) unload(c Coord) Report {
	seg := s.segments[c]
	seg.State = StateUnloading
	rep := Report{Coord: c, TasksStarted: seg.TasksStarted}
	if seg.Field != nil {
		rep.Anchors = seg.Field.Len()
	}
	if seg.Engine != nil {
		rep.TasksCancelled = seg.Engine.Cancel()
	}
	rep.ItemsSpawned = seg.Ledger.Spawned()
	rep.ItemsReleased = seg.Ledger.ReleaseAll()
	delete(s.segments, c)
	seg.State = StateUnloaded
	return rep
}

func sortCoords(cs []Coord) {
	sort.Slice(cs, func(i, j int) bool {
		if cs[i].X != cs[j].X {
			return cs[i].X < cs[j].X
		}
		return cs[i].Y < cs[j].Y
	})
}
