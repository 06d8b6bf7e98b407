package main

import (
	"fmt"
	"math"

	"github.com/gdamore/tcell/v2"

	"overgrowth.dev/internal/observerproto"
)

// scene mirrors one session's live items and segments from frames.
type scene struct {
	items    map[uint64]observerproto.Spawn
	segments map[[2]int]observerproto.SegmentInfo
	center   [2]int
	tick     uint64

	loads, unloads uint64
}

func newScene() *scene {
	return &scene{
		items:    map[uint64]observerproto.Spawn{},
		segments: map[[2]int]observerproto.SegmentInfo{},
	}
}

// apply folds f into the scene and reports how many segments it loaded.
func (s *scene) apply(f observerproto.FrameMsg) int {
	s.tick = f.Tick
	s.center = f.Center
	for _, seg := range f.Unloaded {
		delete(s.segments, seg.Coord)
		s.unloads++
	}
	for _, seg := range f.Loaded {
		s.segments[seg.Coord] = seg
		s.loads++
	}
	for _, sp := range f.Spawns {
		s.items[sp.ID] = sp
	}
	for _, id := range f.Releases {
		delete(s.items, id)
	}
	return len(f.Loaded)
}

// viewport maps world positions to terminal cells centred on the observer.
// Terminal cells are about twice as tall as wide, so x is scaled by 2.
type viewport struct {
	width, height int
	unitsPerRow   float64
	origin        [2]float64
}

func (v viewport) project(p [2]float64) (x, y int, ok bool) {
	if v.unitsPerRow <= 0 {
		return 0, 0, false
	}
	dx := (p[0] - v.origin[0]) / v.unitsPerRow * 2
	dy := (p[1] - v.origin[1]) / v.unitsPerRow
	x = v.width/2 + int(math.Floor(dx))
	y = v.height/2 - int(math.Ceil(dy))
	if x < 0 || y < 0 || x >= v.width || y >= v.height {
		return 0, 0, false
	}
	return x, y, true
}

func glyph(kind string, scale float64) rune {
	switch kind {
	case "MARKER":
		return '+'
	case "VINE":
		switch {
		case scale >= 0.5:
			return '#'
		case scale >= 0.2:
			return ':'
		default:
			return '.'
		}
	case "BLOOM":
		switch {
		case scale >= 1.5:
			return '@'
		case scale >= 0.8:
			return '*'
		default:
			return 'o'
		}
	}
	return '?'
}

func itemStyle(c [4]float64) tcell.Style {
	ch := func(v float64) int32 {
		return int32(math.Round(math.Max(0, math.Min(1, v)) * 255))
	}
	return tcell.StyleDefault.Foreground(tcell.NewRGBColor(ch(c[0]), ch(c[1]), ch(c[2])))
}

func (s *scene) draw(screen tcell.Screen, v viewport, observer, segSize [2]float64) {
	screen.Clear()

	// Segment borders first so items paint over them.
	border := tcell.StyleDefault.Foreground(tcell.ColorDarkSlateGray)
	for c := range s.segments {
		corner := [2]float64{float64(c[0]) * segSize[0], float64(c[1]+1) * segSize[1]}
		if x, y, ok := v.project(corner); ok {
			screen.SetContent(x, y, '┼', nil, border)
		}
	}

	// Larger items last so blooms are not hidden by vine segments.
	for _, pass := range []string{"VINE", "MARKER", "BLOOM"} {
		for _, it := range s.items {
			if it.Kind != pass {
				continue
			}
			if x, y, ok := v.project(it.Pos); ok {
				screen.SetContent(x, y, glyph(it.Kind, it.Scale), nil, itemStyle(it.Color))
			}
		}
	}

	you := tcell.StyleDefault.Foreground(tcell.ColorWhite).Reverse(true)
	if x, y, ok := v.project(observer); ok {
		screen.SetContent(x, y, '@', nil, you)
	}

	status := fmt.Sprintf(" tick=%d pos=(%.1f,%.1f) segment=%v live=%d items=%d loads=%d unloads=%d  arrows: move  q: quit ",
		s.tick, observer[0], observer[1], s.center, len(s.segments), len(s.items), s.loads, s.unloads)
	bar := tcell.StyleDefault.Reverse(true)
	for i, r := range []rune(status) {
		if i >= v.width {
			break
		}
		screen.SetContent(i, v.height-1, r, nil, bar)
	}
	screen.Show()
}
