// Package item defines the spawn collaborator contract and the per-segment
// ownership ledger of spawned handles.
package item

import (
	"overgrowth.dev/internal/sim/mathx"
)

type Kind string

const (
	KindMarker Kind = "MARKER"
	KindVine   Kind = "VINE"
	KindBloom  Kind = "BLOOM"
)

// Color channels are in [0,1].
type Color struct {
	R float64 `json:"r"`
	G float64 `json:"g"`
	B float64 `json:"b"`
	A float64 `json:"a"`
}

type Item struct {
	Kind  Kind
	Pos   mathx.Vec2
	Scale float64
	Color Color
}

// Handle is opaque to the core; only the Spawner that issued it interprets it.
type Handle uint64

// Spawner creates and destroys visual objects. It is called from the goroutine
// driving the world and does not need to be safe for concurrent use.
type Spawner interface {
	Spawn(it Item) Handle
	Release(h Handle)
}

// Ledger records every handle spawned on behalf of one segment. Growth tasks
// append to it; only the owning segment releases it.
type Ledger struct {
	sp       Spawner
	handles  []Handle
	spawned  int
	released bool
}

func NewLedger(sp Spawner) *Ledger {
	return &Ledger{sp: sp}
}

// Spawn requests an item and tracks its handle. Returns false once the ledger has
// been released.
func (l *Ledger) Spawn(it Item) (Handle, bool) {
	if l.released || l.sp == nil {
		return 0, false
	}
	h := l.sp.Spawn(it)
	l.handles = append(l.handles, h)
	l.spawned++
	return h, true
}

// ReleaseAll releases every tracked handle exactly once and closes the ledger.
// Later calls release nothing.
func (l *Ledger) ReleaseAll() int {
	if l.released {
		return 0
	}
	l.released = true
	n := len(l.handles)
	for _, h := range l.handles {
		l.sp.Release(h)
	}
	l.handles = nil
	return n
}

func (l *Ledger) Len() int       { return len(l.handles) }
func (l *Ledger) Spawned() int   { return l.spawned }
func (l *Ledger) Released() bool { return l.released }
