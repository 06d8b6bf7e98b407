// Package seedfield scatters anchor points uniformly inside a rectangle.
//
// Despite the historical "voronoi" naming of the anchor layer, no cell boundaries
// are computed; only the seed points are produced.
package seedfield

import (
	"errors"
	"fmt"

	"overgrowth.dev/internal/sim/mathx"
	"overgrowth.dev/internal/sim/rng"
)

var ErrInvalidArgument = errors.New("invalid argument")

// Generate returns count points uniformly sampled inside
// [-bounds.X, bounds.X] × [-bounds.Y, bounds.Y], each translated by offset.
func Generate(src rng.Source, bounds, offset mathx.Vec2, count int) ([]mathx.Vec2, error) {
	if count < 0 {
		return nil, fmt.Errorf("seedfield: count %d: %w", count, ErrInvalidArgument)
	}
	if !bounds.Finite() || bounds.X < 0 || bounds.Y < 0 {
		return nil, fmt.Errorf("seedfield: bounds %+v: %w", bounds, ErrInvalidArgument)
	}
	if !offset.Finite() {
		return nil, fmt.Errorf("seedfield: offset %+v: %w", offset, ErrInvalidArgument)
	}
	if src == nil {
		return nil, fmt.Errorf("seedfield: nil random source: %w", ErrInvalidArgument)
	}
	out := make([]mathx.Vec2, 0, count)
	for i := 0; i < count; i++ {
		p := mathx.Vec2{
			X: rng.Range(src, -bounds.X, bounds.X),
			Y: rng.Range(src, -bounds.Y, bounds.Y),
		}
		out = append(out, p.Add(offset))
	}
	return out, nil
}

// Field is one generated batch of anchors, immutable after New.
type Field struct {
	Bounds mathx.Vec2
	Offset mathx.Vec2
	points []mathx.Vec2
}

func New(src rng.Source, bounds, offset mathx.Vec2, count int) (*Field, error) {
	pts, err := Generate(src, bounds, offset, count)
	if err != nil {
		return nil, err
	}
	return &Field{Bounds: bounds, Offset: offset, points: pts}, nil
}

// Points returns a copy of the anchors in generation order.
func (f *Field) Points() []mathx.Vec2 {
	out := make([]mathx.Vec2, len(f.points))
	copy(out, f.points)
	return out
}

func (f *Field) Len() int { return len(f.points) }

// Contains reports whether p lies inside the translated bounds, edges included.
func (f *Field) Contains(p mathx.Vec2) bool {
	d := p.Sub(f.Offset)
	return d.X >= -f.Bounds.X && d.X <= f.Bounds.X && d.Y >= -f.Bounds.Y && d.Y <= f.Bounds.Y
}
