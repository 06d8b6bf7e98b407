package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/gdamore/tcell/v2"

	"overgrowth.dev/internal/observerproto"
	"overgrowth.dev/internal/sim/mathx"
	"overgrowth.dev/internal/sim/tuning"
	"overgrowth.dev/internal/sim/world"
)

const sessionID = "viewer"

func main() {
	var (
		tuningPath = flag.String("tuning", "./configs/tuning.yaml", "path to tuning.yaml (defaults apply when missing)")
		seed       = flag.Int64("seed", 1, "growth seed (0 = time-seeded)")
		zoom       = flag.Float64("zoom", 0.5, "world units per terminal row")
		stepSize   = flag.Float64("step", 1, "world units moved per arrow key press")
		volume     = flag.Float64("volume", 0.3, "chime volume (0 = mute)")
		logPath    = flag.String("log", "", "log file (default: discard)")
	)
	flag.Parse()

	var out io.Writer = io.Discard
	if *logPath != "" {
		f, err := os.OpenFile(*logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintln(os.Stderr, "open log:", err)
			os.Exit(1)
		}
		defer f.Close()
		out = f
	}
	logger := log.New(out, "[viewer] ", log.LstdFlags|log.Lmicroseconds)

	tune, err := tuning.Load(*tuningPath)
	if err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintln(os.Stderr, "load tuning:", err)
			os.Exit(1)
		}
		tune = tuning.Defaults()
	}

	w, err := world.New(world.WorldConfig{
		TickRateHz:      tune.TickRateHz,
		MaxStepsPerTick: tune.MaxStepsPerTick,
		Stream:          tune.Stream(),
		Seed:            *seed,
	}, log.New(out, "[world] ", log.LstdFlags|log.Lmicroseconds))
	if err != nil {
		fmt.Fprintln(os.Stderr, "world:", err)
		os.Exit(1)
	}

	screen, err := tcell.NewScreen()
	if err != nil {
		fmt.Fprintln(os.Stderr, "screen:", err)
		os.Exit(1)
	}
	if err := screen.Init(); err != nil {
		fmt.Fprintln(os.Stderr, "screen:", err)
		os.Exit(1)
	}
	defer screen.Fini()

	ch := newChime(*volume)
	if err := ch.init(); err != nil {
		// Non-fatal, the viewer runs silently.
		logger.Printf("audio init failed: %v", err)
	}
	defer ch.close()

	v := &viewer{
		world:   w,
		screen:  screen,
		chime:   ch,
		logger:  logger,
		scene:   newScene(),
		frames:  make(chan observerproto.FrameMsg, 256),
		zoom:    *zoom,
		step:    *stepSize,
		segSize: w.Bootstrap().WorldParams.SegmentSize,
		camera:  newCamera(tune.TickRateHz, 6, 1),
	}
	v.run(w.TickDuration())
}

type viewer struct {
	world  *world.World
	screen tcell.Screen
	chime  *chime
	logger *log.Logger
	scene  *scene
	frames chan observerproto.FrameMsg

	pos     mathx.Vec2
	zoom    float64
	step    float64
	segSize [2]float64
	moved   bool
	camera  *camera
}

func (v *viewer) run(tick time.Duration) {
	events := make(chan tcell.Event, 100)
	go func() {
		for {
			ev := v.screen.PollEvent()
			if ev == nil {
				return
			}
			events <- ev
		}
	}()

	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	v.world.StepOnce([]world.JoinRequest{{SessionID: sessionID, Pos: v.pos, Out: v.frames}}, nil, nil)
	v.drain()
	v.draw()

	for {
		select {
		case ev := <-events:
			if !v.handleInput(ev) {
				v.world.StepOnce(nil, []string{sessionID}, nil)
				v.drain()
				v.logger.Printf("quit: loads=%d unloads=%d items=%d", v.scene.loads, v.scene.unloads, len(v.scene.items))
				return
			}
		case <-ticker.C:
			var moves []world.MoveRequest
			if v.moved {
				moves = append(moves, world.MoveRequest{SessionID: sessionID, Pos: v.pos})
				v.moved = false
			}
			v.world.StepOnce(nil, nil, moves)
			v.drain()
			v.draw()
		}
	}
}

// drain applies every frame the world has queued for this session.
func (v *viewer) drain() {
	for {
		select {
		case f := <-v.frames:
			if n := v.scene.apply(f); n > 0 {
				v.logger.Printf("tick=%d center=%v loaded=%d unloaded=%d", f.Tick, f.Center, n, len(f.Unloaded))
				v.chime.play(n)
			}
		default:
			return
		}
	}
}

func (v *viewer) handleInput(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		switch ev.Key() {
		case tcell.KeyEscape, tcell.KeyCtrlC:
			return false
		case tcell.KeyLeft:
			v.nudge(-v.step, 0)
		case tcell.KeyRight:
			v.nudge(v.step, 0)
		case tcell.KeyUp:
			v.nudge(0, v.step)
		case tcell.KeyDown:
			v.nudge(0, -v.step)
		case tcell.KeyRune:
			switch ev.Rune() {
			case 'q':
				return false
			case '+':
				v.zoom = max(v.zoom/2, 0.05)
			case '-':
				v.zoom = min(v.zoom*2, 8)
			}
		}
	case *tcell.EventResize:
		v.screen.Sync()
	}
	return true
}

func (v *viewer) nudge(dx, dy float64) {
	v.pos = mathx.Vec2{X: v.pos.X + dx, Y: v.pos.Y + dy}
	v.moved = true
}

func (v *viewer) draw() {
	w, h := v.screen.Size()
	v.scene.draw(v.screen, viewport{
		width:       w,
		height:      h,
		unitsPerRow: v.zoom,
		origin:      v.camera.step(v.pos.Array()),
	}, v.pos.Array(), v.segSize)
}
