package world

import (
	"io"
	"log"
	"sync/atomic"
	"time"

	"overgrowth.dev/internal/observerproto"
	"overgrowth.dev/internal/sim/growth"
	"overgrowth.dev/internal/sim/mathx"
	"overgrowth.dev/internal/sim/rng"
	"overgrowth.dev/internal/sim/stream"
)

type WorldConfig struct {
	TickRateHz      int
	MaxStepsPerTick int
	Stream          stream.Config

	// Seed makes every session's growth reproducible; 0 uses a time-seeded source.
	Seed int64
}

type JoinRequest struct {
	SessionID string
	Pos       mathx.Vec2
	Out       chan observerproto.FrameMsg
}

type MoveRequest struct {
	SessionID string
	Pos       mathx.Vec2
}

// World drives the growth scheduler and one segment streamer per observer
// session. All state must be accessed only from the world loop goroutine.
type World struct {
	cfg    WorldConfig
	logger *log.Logger
	src    rng.Source
	sched  *growth.Scheduler

	tick atomic.Uint64
	now  time.Duration

	sessions map[string]*session

	join  chan JoinRequest
	leave chan string
	move  chan MoveRequest
	stop  chan struct{}

	// Optional lifecycle sinks (may be empty). Implemented in internal/persistence/*.
	sinks []EventSink

	totals  totals
	metrics atomic.Value
}

type totals struct {
	loads          uint64
	unloads        uint64
	loadErrors     uint64
	itemsSpawned   uint64
	itemsReleased  uint64
	tasksCancelled uint64
	framesDeferred uint64
	sinkErrors     uint64
}

func New(cfg WorldConfig, logger *log.Logger) (*World, error) {
	if cfg.TickRateHz <= 0 {
		cfg.TickRateHz = 20
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	var src rng.Source
	if cfg.Seed != 0 {
		src = rng.NewSeeded(cfg.Seed)
	} else {
		src = rng.NewAmbient()
	}
	w := &World{
		cfg:      cfg,
		logger:   logger,
		src:      src,
		sched:    growth.NewScheduler(cfg.MaxStepsPerTick),
		sessions: map[string]*session{},
		join:     make(chan JoinRequest, 64),
		leave:    make(chan string, 64),
		move:     make(chan MoveRequest, 1024),
		stop:     make(chan struct{}),
	}
	w.metrics.Store(Metrics{})
	return w, nil
}

func (w *World) AddEventSink(s EventSink) {
	if s != nil {
		w.sinks = append(w.sinks, s)
	}
}

func (w *World) Join() chan<- JoinRequest     { return w.join }
func (w *World) Leave() chan<- string         { return w.leave }
func (w *World) Move() chan<- MoveRequest     { return w.move }
func (w *World) Config() WorldConfig          { return w.cfg }
func (w *World) CurrentTick() uint64          { return w.tick.Load() }
func (w *World) Scheduler() *growth.Scheduler { return w.sched }

// TickDuration is the virtual time the scheduler advances per tick.
func (w *World) TickDuration() time.Duration {
	return time.Second / time.Duration(w.cfg.TickRateHz)
}

func (w *World) Bootstrap() observerproto.BootstrapResponse {
	sc := w.cfg.Stream
	return observerproto.BootstrapResponse{
		ProtocolVersion: observerproto.Version,
		Tick:            w.CurrentTick(),
		WorldParams: observerproto.WorldParams{
			TickRateHz:    w.cfg.TickRateHz,
			SegmentSize:   sc.SegmentSize.Array(),
			LoadRadius:    sc.LoadRadius,
			AnchorCount:   sc.AnchorCount,
			DrawVines:     sc.Growth.DrawVines,
			AnchorMarkers: sc.Growth.AnchorMarkers,
		},
	}
}
