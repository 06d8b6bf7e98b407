package main

import (
	"fmt"

	"overgrowth.dev/internal/sim/world"
)

type liveKey struct {
	session string
	coord   [2]int
}

// verifier replays segment lifecycle events and records every ordering or
// accounting violation it sees.
type verifier struct {
	live       map[liveKey]uint64
	sessions   map[string]struct{}
	sum        Summary
	Violations []string
}

type Summary struct {
	Events        int
	Sessions      int
	Loads         int
	Unloads       int
	LoadErrors    int
	ItemsSpawned  int
	ItemsReleased int
	StillLive     int
}

func newVerifier() *verifier {
	return &verifier{live: map[liveKey]uint64{}, sessions: map[string]struct{}{}}
}

func (v *verifier) Apply(ev world.SegmentEvent) {
	v.sum.Events++
	v.sessions[ev.SessionID] = struct{}{}
	k := liveKey{session: ev.SessionID, coord: ev.Coord}

	switch ev.Kind {
	case world.SegmentLoad:
		v.sum.Loads++
		if ev.Error != "" {
			v.sum.LoadErrors++
		}
		if at, ok := v.live[k]; ok {
			v.violate(ev, "loaded again without unload (live since tick %d)", at)
		}
		v.live[k] = ev.Tick
	case world.SegmentUnload:
		v.sum.Unloads++
		v.sum.ItemsSpawned += ev.ItemsSpawned
		v.sum.ItemsReleased += ev.ItemsReleased
		if _, ok := v.live[k]; !ok {
			v.violate(ev, "unload of a segment that is not live")
		}
		delete(v.live, k)
		if ev.ItemsReleased != ev.ItemsSpawned {
			v.violate(ev, "released %d items but spawned %d", ev.ItemsReleased, ev.ItemsSpawned)
		}
		if ev.TasksCancelled > ev.TasksStarted {
			v.violate(ev, "cancelled %d tasks but started %d", ev.TasksCancelled, ev.TasksStarted)
		}
	default:
		v.violate(ev, "unknown event kind %q", ev.Kind)
	}
}

func (v *verifier) Summary() Summary {
	s := v.sum
	s.Sessions = len(v.sessions)
	s.StillLive = len(v.live)
	return s
}

func (v *verifier) violate(ev world.SegmentEvent, format string, args ...any) {
	prefix := fmt.Sprintf("tick=%d session=%s coord=%v: ", ev.Tick, ev.SessionID, ev.Coord)
	v.Violations = append(v.Violations, prefix+fmt.Sprintf(format, args...))
}
