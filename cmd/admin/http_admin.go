package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"overgrowth.dev/internal/sim/tuning"
	"overgrowth.dev/internal/sim/world"
)

// stateResponse is the body of GET /admin/v1/state.
type stateResponse struct {
	Tick    uint64        `json:"tick"`
	Metrics world.Metrics `json:"metrics"`
	Tuning  tuning.Tuning `json:"tuning"`
}

func stateCmd(args []string) {
	fs := flag.NewFlagSet("state", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	raw := fs.Bool("raw", false, "print the decoded state as indented JSON")
	timeout := fs.Duration("timeout", 5*time.Second, "request timeout")
	_ = fs.Parse(args)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	st, err := fetchState(ctx, http.DefaultClient, *baseURL)
	if err != nil {
		fmt.Fprintln(os.Stderr, "state:", err)
		os.Exit(1)
	}
	if *raw {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(st)
		return
	}
	printState(os.Stdout, st)
}

func fetchState(ctx context.Context, cl *http.Client, baseURL string) (stateResponse, error) {
	u := strings.TrimRight(strings.TrimSpace(baseURL), "/") + "/admin/v1/state"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return stateResponse{}, err
	}
	resp, err := cl.Do(req)
	if err != nil {
		return stateResponse{}, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return stateResponse{}, fmt.Errorf("%s: %s", resp.Status, strings.TrimSpace(string(b)))
	}
	var st stateResponse
	dec := json.NewDecoder(resp.Body)
	if err := dec.Decode(&st); err != nil {
		return stateResponse{}, fmt.Errorf("decode state: %w", err)
	}
	return st, nil
}

func printState(w io.Writer, st stateResponse) {
	m := st.Metrics
	fmt.Fprintf(w, "tick\t%d\n", st.Tick)
	fmt.Fprintf(w, "sessions\t%d\n", m.Sessions)
	fmt.Fprintf(w, "segments\t%d live (%d loaded, %d unloaded, %d failed)\n", m.LiveSegments, m.LoadsTotal, m.UnloadsTotal, m.LoadErrorsTotal)
	fmt.Fprintf(w, "items\t%d live (%d spawned, %d released)\n", m.ItemsLive, m.ItemsSpawnedTotal, m.ItemsReleasedTotal)
	fmt.Fprintf(w, "tasks\t%d pending (%d cancelled)\n", m.PendingTasks, m.TasksCancelledTotal)
	fmt.Fprintf(w, "step\t%.2fms (%d steps)\n", m.StepMS, m.StepsLastTick)
	if m.FramesDeferredTotal > 0 || m.SinkErrorsTotal > 0 {
		fmt.Fprintf(w, "warn\tframes_deferred=%d sink_errors=%d\n", m.FramesDeferredTotal, m.SinkErrorsTotal)
	}
	t := st.Tuning
	fmt.Fprintf(w, "tuning\tsegment=%v radius=%d anchors=%d tick=%dHz\n", t.SegmentSize, t.LoadRadius, t.AnchorCount, t.TickRateHz)
}
