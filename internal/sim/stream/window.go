package stream

import (
	"fmt"
	"math"
	"sort"

	"overgrowth.dev/internal/sim/mathx"
)

// Coord addresses one segment on the integer grid.
type Coord struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// CellOf returns the segment containing p for segments of the given size.
// Points whose cell falls outside the int32 grid, NaN included, are rejected.
func CellOf(p, size mathx.Vec2) (Coord, error) {
	x, y := math.Floor(p.X/size.X), math.Floor(p.Y/size.Y)
	if !onGrid(x) || !onGrid(y) {
		return Coord{}, fmt.Errorf("stream: point %+v is off the segment grid: %w", p, ErrInvalidArgument)
	}
	return Coord{X: int(x), Y: int(y)}, nil
}

func onGrid(f float64) bool { return f >= math.MinInt32 && f <= math.MaxInt32 }

// Center is the world-space midpoint of c.
func (c Coord) Center(size mathx.Vec2) mathx.Vec2 {
	return mathx.V((float64(c.X)+0.5)*size.X, (float64(c.Y)+0.5)*size.Y)
}

// Window lists the coordinates within Chebyshev distance radius of center,
// nearest first, then by X, then by Y.
func Window(center Coord, radius int) []Coord {
	if radius < 0 {
		radius = 0
	}
	type cell struct {
		c    Coord
		dist int
	}
	side := 2*radius + 1
	cells := make([]cell, 0, side*side)
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			c := Coord{X: center.X + dx, Y: center.Y + dy}
			cells = append(cells, cell{c: c, dist: mathx.Chebyshev(center.X, center.Y, c.X, c.Y)})
		}
	}
	sort.Slice(cells, func(i, j int) bool {
		if cells[i].dist != cells[j].dist {
			return cells[i].dist < cells[j].dist
		}
		if cells[i].c.X != cells[j].c.X {
			return cells[i].c.X < cells[j].c.X
		}
		return cells[i].c.Y < cells[j].c.Y
	})
	out := make([]Coord, 0, len(cells))
	for _, it := range cells {
		out = append(out, it.c)
	}
	return out
}
