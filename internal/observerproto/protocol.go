package observerproto

// Version is the observer protocol version.
const Version = "1.0"

const (
	TypeSubscribe = "SUBSCRIBE"
	TypeMove      = "MOVE"
	TypeFrame     = "FRAME"
)

const (
	CompressionNone = "none"
	CompressionZstd = "zstd"
)

// Client -> Server. First message on the observer WS connection.
type SubscribeMsg struct {
	Type            string     `json:"type"`
	ProtocolVersion string     `json:"protocol_version"`
	Pos             [2]float64 `json:"pos"`

	// Optional: "zstd" switches FRAME messages to compressed binary frames.
	Compression string `json:"compression,omitempty"`
}

// Client -> Server. Moves the session viewpoint.
type MoveMsg struct {
	Type string     `json:"type"`
	Pos  [2]float64 `json:"pos"`
}

// HTTP response for GET /v1/bootstrap.
type BootstrapResponse struct {
	ProtocolVersion string      `json:"protocol_version"`
	Tick            uint64      `json:"tick"`
	WorldParams     WorldParams `json:"world_params"`
}

type WorldParams struct {
	TickRateHz    int        `json:"tick_rate_hz"`
	SegmentSize   [2]float64 `json:"segment_size"`
	LoadRadius    int        `json:"load_radius"`
	AnchorCount   int        `json:"anchor_count"`
	DrawVines     bool       `json:"draw_vines"`
	AnchorMarkers bool       `json:"anchor_markers"`
}

// Server -> Client. Sent every tick in which something changed for the session.
type FrameMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Tick            uint64 `json:"tick"`
	Center          [2]int `json:"center"`

	Loaded   []SegmentInfo `json:"loaded,omitempty"`
	Unloaded []SegmentInfo `json:"unloaded,omitempty"`
	Spawns   []Spawn       `json:"spawns,omitempty"`
	Releases []uint64      `json:"releases,omitempty"`
}

// Empty reports whether the frame carries no changes.
func (f *FrameMsg) Empty() bool {
	return len(f.Loaded) == 0 && len(f.Unloaded) == 0 && len(f.Spawns) == 0 && len(f.Releases) == 0
}

// Merge folds next, which happened after f, into f and takes its tick and
// center. Clients apply Unloaded before Loaded and Spawns before Releases, so a
// segment loaded in f and unloaded in next cancels out, as does an item spawned
// in f and released in next. A segment unloaded in f and loaded again in next
// stays in both lists, which the client applies as a reload.
func (f *FrameMsg) Merge(next FrameMsg) {
	f.Tick = next.Tick
	f.Center = next.Center

	for _, u := range next.Unloaded {
		if i := indexSegment(f.Loaded, u.Coord); i >= 0 {
			f.Loaded = append(f.Loaded[:i], f.Loaded[i+1:]...)
			continue
		}
		f.Unloaded = append(f.Unloaded, u)
	}
	f.Loaded = append(f.Loaded, next.Loaded...)

	spawned := make(map[uint64]int, len(f.Spawns))
	for i, sp := range f.Spawns {
		spawned[sp.ID] = i
	}
	dropped := map[uint64]bool{}
	for _, id := range next.Releases {
		if _, ok := spawned[id]; ok {
			dropped[id] = true
			continue
		}
		f.Releases = append(f.Releases, id)
	}
	if len(dropped) > 0 {
		kept := f.Spawns[:0]
		for _, sp := range f.Spawns {
			if !dropped[sp.ID] {
				kept = append(kept, sp)
			}
		}
		f.Spawns = kept
	}
	f.Spawns = append(f.Spawns, next.Spawns...)
}

func indexSegment(segs []SegmentInfo, c [2]int) int {
	for i, s := range segs {
		if s.Coord == c {
			return i
		}
	}
	return -1
}

type SegmentInfo struct {
	Coord          [2]int `json:"coord"`
	Anchors        int    `json:"anchors"`
	TasksStarted   int    `json:"tasks_started"`
	TasksCancelled int    `json:"tasks_cancelled,omitempty"`
	ItemsSpawned   int    `json:"items_spawned"`
	ItemsReleased  int    `json:"items_released,omitempty"`
}

type Spawn struct {
	ID    uint64     `json:"id"`
	Kind  string     `json:"kind"`
	Pos   [2]float64 `json:"pos"`
	Scale float64    `json:"scale"`
	Color [4]float64 `json:"color"`
}
