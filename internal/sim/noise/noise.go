package noise

import (
	"github.com/aquilax/go-perlin"
)

const (
	KindPerlin = "perlin"
	KindValue  = "value"
)

// Field is a smooth 2D scalar field with values in [0,1].
type Field interface {
	At(x, y float64) float64
}

// New returns the field for kind. Unknown kinds use Perlin noise.
func New(kind string, seed int64) Field {
	if kind == KindValue {
		return NewValue(seed)
	}
	return NewPerlin(seed)
}

// Perlin is gradient noise remapped from [-1,1] to [0,1].
type Perlin struct {
	p *perlin.Perlin
}

func NewPerlin(seed int64) *Perlin {
	return &Perlin{p: perlin.NewPerlin(2, 2, 3, seed)}
}

func (n *Perlin) At(x, y float64) float64 {
	return clamp01((n.p.Noise2D(x, y) + 1) / 2)
}
