package observerproto

import (
	"errors"
	"testing"
)

func TestParseSubscribe(t *testing.T) {
	sub, err := ParseSubscribe([]byte(`{"type":"SUBSCRIBE","protocol_version":"1.0","pos":[3.5,-2]}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if sub.Pos != [2]float64{3.5, -2} || sub.Compression != CompressionNone {
		t.Fatalf("sub=%+v", sub)
	}
}

func TestParseSubscribeRejects(t *testing.T) {
	for _, raw := range []string{
		`not json`,
		`{"type":"MOVE","protocol_version":"1.0","pos":[0,0]}`,
		`{"type":"SUBSCRIBE","protocol_version":"1.0"}`,
		`{"type":"SUBSCRIBE","protocol_version":"1.0","pos":[0]}`,
		`{"type":"SUBSCRIBE","protocol_version":"1.0","pos":[0,0],"compression":"gzip"}`,
		`{"type":"SUBSCRIBE","protocol_version":"0.1","pos":[0,0]}`,
	} {
		if _, err := ParseSubscribe([]byte(raw)); !errors.Is(err, ErrBadMessage) {
			t.Fatalf("%s: err=%v", raw, err)
		}
	}
}

func TestFrameZstdRoundTrip(t *testing.T) {
	in := FrameMsg{
		Tick:     7,
		Center:   [2]int{1, -1},
		Loaded:   []SegmentInfo{{Coord: [2]int{1, -1}, Anchors: 10, TasksStarted: 20, ItemsSpawned: 10}},
		Spawns:   []Spawn{{ID: 1, Kind: "MARKER", Pos: [2]float64{15, -5}, Scale: 0.1, Color: [4]float64{0, 1, 0, 1}}},
		Releases: []uint64{3, 4},
	}
	b, binary, err := EncodeFrame(in, CompressionZstd)
	if err != nil || !binary {
		t.Fatalf("encode: binary=%v err=%v", binary, err)
	}
	out, err := DecodeFrame(b, binary)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Type != TypeFrame || out.Tick != 7 || len(out.Spawns) != 1 || out.Spawns[0].Kind != "MARKER" || len(out.Releases) != 2 {
		t.Fatalf("out=%+v", out)
	}

	plain, binary, err := EncodeFrame(in, CompressionNone)
	if err != nil || binary {
		t.Fatalf("plain encode: binary=%v err=%v", binary, err)
	}
	if _, err := DecodeFrame(plain, true); err == nil {
		t.Fatalf("plain JSON should not decode as zstd")
	}
}

func TestFrameMerge(t *testing.T) {
	f := FrameMsg{Tick: 1, Spawns: []Spawn{{ID: 1}}}
	if f.Empty() {
		t.Fatalf("frame with spawns reported empty")
	}
	f.Merge(FrameMsg{Tick: 2, Center: [2]int{0, 1}, Spawns: []Spawn{{ID: 2}}, Releases: []uint64{1, 9}})
	if f.Tick != 2 || f.Center != [2]int{0, 1} {
		t.Fatalf("merged tick/center=%d/%v", f.Tick, f.Center)
	}
	// Item 1 was spawned and released inside the backlog; item 9 was spawned in
	// an earlier, already delivered frame.
	if len(f.Spawns) != 1 || f.Spawns[0].ID != 2 || len(f.Releases) != 1 || f.Releases[0] != 9 {
		t.Fatalf("merged spawns=%+v releases=%v", f.Spawns, f.Releases)
	}
}

// applyFrame mirrors a client: unloads before loads, spawns before releases.
func applyFrame(t *testing.T, live map[[2]int]bool, f FrameMsg) {
	t.Helper()
	for _, s := range f.Unloaded {
		if !live[s.Coord] {
			t.Fatalf("unload of %v which is not live", s.Coord)
		}
		delete(live, s.Coord)
	}
	for _, s := range f.Loaded {
		if live[s.Coord] {
			t.Fatalf("load of %v which is already live", s.Coord)
		}
		live[s.Coord] = true
	}
}

func TestFrameMergeKeepsSegmentOrder(t *testing.T) {
	seg := func(x int) SegmentInfo { return SegmentInfo{Coord: [2]int{x, 0}} }
	live := map[[2]int]bool{{0, 0}: true, {1, 0}: true}

	// Out: unload 0, load 2. Back: unload 2, load 0. Out again: unload 0, load 3.
	var f FrameMsg
	f.Merge(FrameMsg{Unloaded: []SegmentInfo{seg(0)}, Loaded: []SegmentInfo{seg(2)}})
	f.Merge(FrameMsg{Unloaded: []SegmentInfo{seg(2)}, Loaded: []SegmentInfo{seg(0)}})
	if len(f.Loaded) != 1 || len(f.Unloaded) != 1 {
		t.Fatalf("out and back: loaded=%v unloaded=%v", f.Loaded, f.Unloaded)
	}
	f.Merge(FrameMsg{Unloaded: []SegmentInfo{seg(0)}, Loaded: []SegmentInfo{seg(3)}})

	applyFrame(t, live, f)
	if len(live) != 2 || !live[[2]int{1, 0}] || !live[[2]int{3, 0}] {
		t.Fatalf("client live=%v want {1,0} {3,0}", live)
	}
}
