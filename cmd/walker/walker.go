package main

import (
	"fmt"
	"time"

	"overgrowth.dev/internal/observerproto"
)

// walker moves the viewpoint along +x at a constant speed.
type walker struct {
	x, y  float64
	speed float64
}

func newWalker(x, y, speed float64) *walker {
	return &walker{x: x, y: y, speed: speed}
}

func (w *walker) advance(dt time.Duration) [2]float64 {
	if dt > 0 {
		w.x += w.speed * dt.Seconds()
	}
	return [2]float64{w.x, w.y}
}

// tracker mirrors the server-side live sets from frames.
type tracker struct {
	segments map[[2]int]bool
	items    map[uint64]string
	frames   int
}

func newTracker() *tracker {
	return &tracker{segments: map[[2]int]bool{}, items: map[uint64]string{}}
}

func (t *tracker) apply(f observerproto.FrameMsg) error {
	t.frames++
	var err error
	for _, s := range f.Unloaded {
		if !t.segments[s.Coord] && err == nil {
			err = fmt.Errorf("unload of segment %v that is not live", s.Coord)
		}
		delete(t.segments, s.Coord)
	}
	for _, s := range f.Loaded {
		if t.segments[s.Coord] && err == nil {
			err = fmt.Errorf("segment %v loaded twice", s.Coord)
		}
		t.segments[s.Coord] = true
	}
	for _, sp := range f.Spawns {
		t.items[sp.ID] = sp.Kind
	}
	for _, id := range f.Releases {
		if _, ok := t.items[id]; !ok && err == nil {
			err = fmt.Errorf("release of unknown item %d", id)
		}
		delete(t.items, id)
	}
	return err
}

func (t *tracker) summary() string {
	return fmt.Sprintf("frames=%d segments=%d items=%d", t.frames, len(t.segments), len(t.items))
}
