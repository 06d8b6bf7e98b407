package world

import (
	"overgrowth.dev/internal/observerproto"
	"overgrowth.dev/internal/sim/item"
	"overgrowth.dev/internal/sim/mathx"
	"overgrowth.dev/internal/sim/stream"
)

type session struct {
	id       string
	pos      mathx.Vec2
	out      chan observerproto.FrameMsg
	sp       *frameSpawner
	streamer *stream.Streamer

	// backlog holds changes a full Out channel could not take yet.
	backlog    observerproto.FrameMsg
	hasBacklog bool
}

// frameSpawner issues per-session handles and buffers spawns and releases until
// the next frame is flushed.
type frameSpawner struct {
	next     item.Handle
	live     int
	spawns   []observerproto.Spawn
	releases []uint64
}

func (f *frameSpawner) Spawn(it item.Item) item.Handle {
	f.next++
	f.live++
	f.spawns = append(f.spawns, observerproto.Spawn{
		ID:    uint64(f.next),
		Kind:  string(it.Kind),
		Pos:   it.Pos.Array(),
		Scale: it.Scale,
		Color: [4]float64{it.Color.R, it.Color.G, it.Color.B, it.Color.A},
	})
	return f.next
}

func (f *frameSpawner) Release(h item.Handle) {
	f.live--
	f.releases = append(f.releases, uint64(h))
}

func (f *frameSpawner) drain() ([]observerproto.Spawn, []uint64) {
	s, r := f.spawns, f.releases
	f.spawns, f.releases = nil, nil
	return s, r
}

func (w *World) handleJoin(req JoinRequest) {
	if req.SessionID == "" {
		return
	}
	if _, ok := w.sessions[req.SessionID]; ok {
		w.logger.Printf("join %s: duplicate session ignored", req.SessionID)
		return
	}
	s := &session{id: req.SessionID, pos: req.Pos, out: req.Out, sp: &frameSpawner{}}
	view := stream.ViewpointFunc(func() mathx.Vec2 { return s.pos })
	st, err := stream.New(w.cfg.Stream, view, w.sched, s.sp, w.src, w.logger)
	if err != nil {
		w.logger.Printf("join %s: %v", req.SessionID, err)
		return
	}
	s.streamer = st
	w.sessions[s.id] = s
}

func (w *World) handleLeave(id string) {
	s, ok := w.sessions[id]
	if !ok {
		return
	}
	center, _ := s.streamer.Center()
	for _, rep := range s.streamer.Close() {
		w.recordUnload(s.id, rep)
	}
	w.logger.Printf("leave %s at %d,%d", id, center.X, center.Y)
	delete(w.sessions, id)
}

func (w *World) handleMove(req MoveRequest) {
	s, ok := w.sessions[req.SessionID]
	if !ok || !req.Pos.Finite() {
		return
	}
	s.pos = req.Pos
}

// flush sends the session's pending frame without blocking. A frame that does
// not fit is merged into the backlog and retried on the next tick.
func (w *World) flush(s *session, f observerproto.FrameMsg) {
	if s.hasBacklog {
		s.backlog.Merge(f)
		f = s.backlog
	}
	if f.Empty() {
		s.backlog, s.hasBacklog = observerproto.FrameMsg{}, false
		return
	}
	if s.out == nil {
		return
	}
	select {
	case s.out <- f:
		s.backlog, s.hasBacklog = observerproto.FrameMsg{}, false
	default:
		s.backlog, s.hasBacklog = f, true
		w.totals.framesDeferred++
	}
}

func segmentInfo(rep stream.Report) observerproto.SegmentInfo {
	return observerproto.SegmentInfo{
		Coord:          [2]int{rep.Coord.X, rep.Coord.Y},
		Anchors:        rep.Anchors,
		TasksStarted:   rep.TasksStarted,
		TasksCancelled: rep.TasksCancelled,
		ItemsSpawned:   rep.ItemsSpawned,
		ItemsReleased:  rep.ItemsReleased,
	}
}
