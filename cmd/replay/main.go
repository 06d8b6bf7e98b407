package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	persistlog "overgrowth.dev/internal/persistence/log"
	"overgrowth.dev/internal/sim/world"
)

func main() {
	var (
		dataDir   = flag.String("data", "./data", "runtime data directory")
		eventsDir = flag.String("events", "", "events dir containing events-*.jsonl.zst (default: <data>/events)")
		session   = flag.String("session", "", "only verify this session id (optional)")
		maxErrs   = flag.Int("max_errors", 20, "stop printing violations after this many")
	)
	flag.Parse()

	dir := *eventsDir
	if dir == "" {
		dir = filepath.Join(*dataDir, "events")
	}
	files, err := persistlog.Files(dir, "events")
	if err != nil {
		fmt.Fprintln(os.Stderr, "list events:", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "no event files in", dir)
		os.Exit(1)
	}

	v := newVerifier()
	for _, path := range files {
		err := persistlog.ReadSegmentEvents(path, func(ev world.SegmentEvent) error {
			if *session != "" && ev.SessionID != *session {
				return nil
			}
			v.Apply(ev)
			return nil
		})
		if err != nil {
			fmt.Fprintln(os.Stderr, "read events:", err)
			os.Exit(1)
		}
	}

	sum := v.Summary()
	fmt.Printf("files=%d events=%d sessions=%d loads=%d unloads=%d load_errors=%d items_spawned=%d items_released=%d still_live=%d\n",
		len(files), sum.Events, sum.Sessions, sum.Loads, sum.Unloads, sum.LoadErrors, sum.ItemsSpawned, sum.ItemsReleased, sum.StillLive)

	if len(v.Violations) == 0 {
		fmt.Println("OK")
		return
	}
	for i, msg := range v.Violations {
		if i >= *maxErrs {
			fmt.Printf("... %d more\n", len(v.Violations)-i)
			break
		}
		fmt.Println("violation:", msg)
	}
	os.Exit(1)
}
