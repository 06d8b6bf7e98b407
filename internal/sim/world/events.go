package world

import "overgrowth.dev/internal/sim/stream"

const (
	SegmentLoad   = "LOAD"
	SegmentUnload = "UNLOAD"
)

// SegmentEvent is the lifecycle record of one segment load or unload. It carries
// counts only, never generated content.
type SegmentEvent struct {
	Tick      uint64 `json:"tick"`
	Kind      string `json:"kind"`
	SessionID string `json:"session_id"`
	Coord     [2]int `json:"coord"`

	Anchors        int `json:"anchors"`
	TasksStarted   int `json:"tasks_started"`
	TasksCancelled int `json:"tasks_cancelled"`
	ItemsSpawned   int `json:"items_spawned"`
	ItemsReleased  int `json:"items_released"`

	Error string `json:"error,omitempty"`
}

type EventSink interface {
	WriteSegmentEvent(ev SegmentEvent) error
}

func (w *World) recordLoad(sessionID string, rep stream.Report) {
	w.totals.loads++
	ev := newSegmentEvent(w.tick.Load(), SegmentLoad, sessionID, rep)
	if rep.Err != nil {
		w.totals.loadErrors++
		ev.Error = rep.Err.Error()
	}
	w.emit(ev)
}

func (w *World) recordUnload(sessionID string, rep stream.Report) {
	w.totals.unloads++
	w.totals.itemsReleased += uint64(rep.ItemsReleased)
	w.totals.tasksCancelled += uint64(rep.TasksCancelled)
	w.emit(newSegmentEvent(w.tick.Load(), SegmentUnload, sessionID, rep))
}

func (w *World) emit(ev SegmentEvent) {
	for _, s := range w.sinks {
		if err := s.WriteSegmentEvent(ev); err != nil {
			w.totals.sinkErrors++
		}
	}
}

func newSegmentEvent(tick uint64, kind, sessionID string, rep stream.Report) SegmentEvent {
	return SegmentEvent{
		Tick:           tick,
		Kind:           kind,
		SessionID:      sessionID,
		Coord:          [2]int{rep.Coord.X, rep.Coord.Y},
		Anchors:        rep.Anchors,
		TasksStarted:   rep.TasksStarted,
		TasksCancelled: rep.TasksCancelled,
		ItemsSpawned:   rep.ItemsSpawned,
		ItemsReleased:  rep.ItemsReleased,
	}
}
