package world

import (
	"context"
	"sort"
	"time"

	"overgrowth.dev/internal/observerproto"
)

func (w *World) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.TickDuration())
	defer ticker.Stop()
	defer w.closeSessions()

	var pendingJoins []JoinRequest
	var pendingLeaves []string
	var pendingMoves []MoveRequest

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stop:
			return nil
		case req := <-w.join:
			pendingJoins = append(pendingJoins, req)
		case id := <-w.leave:
			pendingLeaves = append(pendingLeaves, id)
		case req := <-w.move:
			pendingMoves = append(pendingMoves, req)
		case <-ticker.C:
			w.step(pendingJoins, pendingLeaves, pendingMoves)
			pendingJoins = pendingJoins[:0]
			pendingLeaves = pendingLeaves[:0]
			pendingMoves = pendingMoves[:0]
		}
	}
}

func (w *World) Stop() { close(w.stop) }

// StepOnce advances the world by a single tick using the same ordering semantics
// as the server loop. It is intended for tests and in-process tools.
func (w *World) StepOnce(joins []JoinRequest, leaves []string, moves []MoveRequest) uint64 {
	tick := w.tick.Load()
	w.step(joins, leaves, moves)
	return tick
}

// step applies joins, leaves and moves, polls every session's streamer, advances
// growth by one tick of virtual time and flushes per-session frames.
func (w *World) step(joins []JoinRequest, leaves []string, moves []MoveRequest) {
	start := time.Now()
	tick := w.tick.Load()

	// Joins first: a client that subscribes and disconnects within one tick
	// queues both, and its leave must find the session.
	for _, req := range joins {
		w.handleJoin(req)
	}
	for _, id := range leaves {
		w.handleLeave(id)
	}
	for _, req := range moves {
		w.handleMove(req)
	}

	ids := w.sessionIDs()
	frames := make(map[string]*observerproto.FrameMsg, len(ids))
	for _, id := range ids {
		s := w.sessions[id]
		tr, err := s.streamer.Poll()
		if err != nil {
			w.logger.Printf("tick %d session %s: %v", tick, id, err)
		}
		f := &observerproto.FrameMsg{Tick: tick, Center: [2]int{tr.Center.X, tr.Center.Y}}
		for _, rep := range tr.Unloaded {
			w.recordUnload(id, rep)
			f.Unloaded = append(f.Unloaded, segmentInfo(rep))
		}
		for _, rep := range tr.Loaded {
			w.recordLoad(id, rep)
			f.Loaded = append(f.Loaded, segmentInfo(rep))
		}
		frames[id] = f
	}

	w.now += w.TickDuration()
	steps := w.sched.Advance(w.now)

	itemsLive := 0
	for _, id := range ids {
		s := w.sessions[id]
		f := frames[id]
		f.Spawns, f.Releases = s.sp.drain()
		w.totals.itemsSpawned += uint64(len(f.Spawns))
		itemsLive += s.sp.live
		w.flush(s, *f)
	}

	w.tick.Add(1)
	w.publishMetrics(steps, itemsLive, time.Since(start))
}

func (w *World) sessionIDs() []string {
	ids := make([]string, 0, len(w.sessions))
	for id := range w.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (w *World) closeSessions() {
	for _, id := range w.sessionIDs() {
		w.handleLeave(id)
	}
}
