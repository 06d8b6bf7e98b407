package world

import "time"

// Metrics is a thread-safe read-only view of key world runtime signals.
// It is updated from the world loop goroutine and read from HTTP handlers/tests.
type Metrics struct {
	Tick uint64 `json:"tick"`

	Sessions      int    `json:"sessions"`
	LiveSegments  int    `json:"live_segments"`
	PendingTasks  int    `json:"pending_tasks"`
	ItemsLive     int    `json:"items_live"`
	StepsLastTick int    `json:"steps_last_tick"`
	StepsTotal    uint64 `json:"steps_total"`

	LoadsTotal          uint64 `json:"loads_total"`
	UnloadsTotal        uint64 `json:"unloads_total"`
	LoadErrorsTotal     uint64 `json:"load_errors_total"`
	ItemsSpawnedTotal   uint64 `json:"items_spawned_total"`
	ItemsReleasedTotal  uint64 `json:"items_released_total"`
	TasksCancelledTotal uint64 `json:"tasks_cancelled_total"`
	FramesDeferredTotal uint64 `json:"frames_deferred_total"`
	SinkErrorsTotal     uint64 `json:"sink_errors_total"`

	QueueDepths QueueDepths `json:"queue_depths"`

	StepMS float64 `json:"step_ms"`
}

type QueueDepths struct {
	Join  int `json:"join"`
	Leave int `json:"leave"`
	Move  int `json:"move"`
}

func (w *World) Metrics() Metrics {
	if w == nil {
		return Metrics{}
	}
	m, ok := w.metrics.Load().(Metrics)
	if !ok {
		return Metrics{}
	}
	return m
}

func (w *World) publishMetrics(steps, itemsLive int, took time.Duration) {
	live := 0
	for _, s := range w.sessions {
		live += s.streamer.Len()
	}
	w.metrics.Store(Metrics{
		Tick:                w.tick.Load(),
		Sessions:            len(w.sessions),
		LiveSegments:        live,
		PendingTasks:        w.sched.Len(),
		ItemsLive:           itemsLive,
		StepsLastTick:       steps,
		StepsTotal:          w.sched.StepsTotal(),
		LoadsTotal:          w.totals.loads,
		UnloadsTotal:        w.totals.unloads,
		LoadErrorsTotal:     w.totals.loadErrors,
		ItemsSpawnedTotal:   w.totals.itemsSpawned,
		ItemsReleasedTotal:  w.totals.itemsReleased,
		TasksCancelledTotal: w.totals.tasksCancelled,
		FramesDeferredTotal: w.totals.framesDeferred,
		SinkErrorsTotal:     w.totals.sinkErrors,
		QueueDepths: QueueDepths{
			Join:  len(w.join),
			Leave: len(w.leave),
			Move:  len(w.move),
		},
		StepMS: float64(took.Microseconds()) / 1000,
	})
}
