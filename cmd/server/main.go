package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	persistlog "overgrowth.dev/internal/persistence/log"
	"overgrowth.dev/internal/sim/tuning"
	"overgrowth.dev/internal/sim/world"
	"overgrowth.dev/internal/transport/observer"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		configDir  = flag.String("configs", "./configs", "config directory")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		seed       = flag.Int64("seed", 0, "growth seed (0 = time-seeded)")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite lifecycle index")
		disableLog = flag.Bool("disable_event_log", false, "disable the JSONL segment event log")
		public     = flag.Bool("observer_public", false, "accept observer connections from non-loopback addresses")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatalf("load tuning: %v", err)
		}
		logger.Printf("tuning not found (%s); using defaults", tp)
		tune = tuning.Defaults()
	}

	_ = os.MkdirAll(*dataDir, 0o755)

	// Optional: read-model index backend (does not affect growth).
	idx, err := openRuntimeIndex(*dataDir, *disableDB)
	if err != nil {
		logger.Fatalf("open index backend: %v", err)
	}
	if idx != nil {
		defer idx.Close()
		if err := idx.UpsertTuning(tune); err != nil {
			logger.Printf("index backend: upsert tuning: %v", err)
		}
	}

	w, err := world.New(world.WorldConfig{
		TickRateHz:      tune.TickRateHz,
		MaxStepsPerTick: tune.MaxStepsPerTick,
		Stream:          tune.Stream(),
		Seed:            *seed,
	}, log.New(os.Stdout, "[world] ", log.LstdFlags|log.Lmicroseconds))
	if err != nil {
		logger.Fatalf("world: %v", err)
	}

	var segLog *persistlog.SegmentLogger
	if !*disableLog {
		segLog = persistlog.NewSegmentLogger(*dataDir)
		defer segLog.Close()
		w.AddEventSink(segLog)
	}
	if idx != nil {
		w.AddEventSink(idx)
	}

	ctx, cancel := signalContext()
	defer cancel()

	worldDone := make(chan struct{})
	go func() {
		defer close(worldDone)
		if err := w.Run(ctx); err != nil && err != context.Canceled {
			logger.Printf("world stopped: %v", err)
		}
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", metricsHandler(w, idx, segLog))
	mux.HandleFunc("/admin/v1/state", func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		rw.Header().Set("Content-Type", "application/json")
		resp := struct {
			Tick    uint64        `json:"tick"`
			Metrics world.Metrics `json:"metrics"`
			Tuning  tuning.Tuning `json:"tuning"`
		}{
			Tick:    w.CurrentTick(),
			Metrics: w.Metrics(),
			Tuning:  tune,
		}
		_ = json.NewEncoder(rw).Encode(resp)
	})
	if enablePprofHTTP() {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	} else {
		logger.Printf("pprof endpoints disabled (OG_ENABLE_PPROF_HTTP=false)")
	}

	obsSrv := observer.NewServer(w, log.New(os.Stdout, "[observer] ", log.LstdFlags|log.Lmicroseconds))
	obsSrv.AllowRemote = *public
	mux.HandleFunc("/v1/bootstrap", obsSrv.BootstrapHandler())
	mux.HandleFunc("/v1/observer/ws", obsSrv.WSHandler())

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s (segment=%v radius=%d tick=%dHz)", *addr, tune.SegmentSize, tune.LoadRadius, tune.TickRateHz)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
	<-worldDone
}

func metricsHandler(w *world.World, idx runtimeIndex, segLog *persistlog.SegmentLogger) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")

		m := w.Metrics()

		// Minimal Prometheus exposition format.
		gauge := func(name, help string, v any) {
			fmt.Fprintf(rw, "# HELP %s %s\n", name, help)
			fmt.Fprintf(rw, "# TYPE %s gauge\n", name)
			fmt.Fprintf(rw, "%s %v\n", name, v)
		}
		counter := func(name, help string, v uint64) {
			fmt.Fprintf(rw, "# HELP %s %s\n", name, help)
			fmt.Fprintf(rw, "# TYPE %s counter\n", name)
			fmt.Fprintf(rw, "%s %d\n", name, v)
		}

		gauge("overgrowth_world_tick", "Current world tick.", m.Tick)
		gauge("overgrowth_sessions", "Connected observer sessions.", m.Sessions)
		gauge("overgrowth_live_segments", "Live segments across all sessions.", m.LiveSegments)
		gauge("overgrowth_pending_tasks", "Suspended growth tasks.", m.PendingTasks)
		gauge("overgrowth_items_live", "Spawned items not yet released.", m.ItemsLive)
		gauge("overgrowth_steps_last_tick", "Growth steps run in the last tick.", m.StepsLastTick)
		gauge("overgrowth_world_step_ms", "Duration of the last world step.", m.StepMS)

		fmt.Fprintf(rw, "# HELP overgrowth_world_queue_depth World input queue depth.\n")
		fmt.Fprintf(rw, "# TYPE overgrowth_world_queue_depth gauge\n")
		fmt.Fprintf(rw, "overgrowth_world_queue_depth{queue=\"join\"} %d\n", m.QueueDepths.Join)
		fmt.Fprintf(rw, "overgrowth_world_queue_depth{queue=\"leave\"} %d\n", m.QueueDepths.Leave)
		fmt.Fprintf(rw, "overgrowth_world_queue_depth{queue=\"move\"} %d\n", m.QueueDepths.Move)

		counter("overgrowth_steps_total", "Growth steps run.", m.StepsTotal)
		counter("overgrowth_segment_loads_total", "Segments loaded.", m.LoadsTotal)
		counter("overgrowth_segment_unloads_total", "Segments unloaded.", m.UnloadsTotal)
		counter("overgrowth_segment_load_errors_total", "Segment loads whose generation failed.", m.LoadErrorsTotal)
		counter("overgrowth_items_spawned_total", "Items spawned.", m.ItemsSpawnedTotal)
		counter("overgrowth_items_released_total", "Items released.", m.ItemsReleasedTotal)
		counter("overgrowth_tasks_cancelled_total", "Growth tasks cancelled by unloads.", m.TasksCancelledTotal)
		counter("overgrowth_frames_deferred_total", "Frames merged into a backlog because the client was slow.", m.FramesDeferredTotal)
		counter("overgrowth_sink_errors_total", "Lifecycle sink write failures.", m.SinkErrorsTotal)

		if idx != nil {
			st := idx.Stats()
			gauge("overgrowth_index_queue_depth", "Index writer queue depth.", st.QueueDepth)
			counter("overgrowth_index_dropped_total", "Lifecycle events dropped by the index queue.", st.DropSegmentTotal)
			counter("overgrowth_index_write_fail_total", "Lifecycle events the index failed to commit.", st.WriteFailTotal)
		}
		if segLog != nil {
			st := segLog.Stats()
			counter("overgrowth_event_log_lines_total", "Lifecycle events appended to the event log.", st.Lines)
			counter("overgrowth_event_log_bytes_total", "Uncompressed bytes appended to the event log.", st.Bytes)
			counter("overgrowth_event_log_files_total", "Event log files opened.", st.Files)
			counter("overgrowth_event_log_write_errors_total", "Event log writes that failed.", st.WriteErrors)
		}
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func enablePprofHTTP() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("OG_ENABLE_PPROF_HTTP"))) {
	case "1", "true", "yes":
		return true
	default:
		return false
	}
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
