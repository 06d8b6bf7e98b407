package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"overgrowth.dev/internal/persistence/archive"
	persistlog "overgrowth.dev/internal/persistence/log"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "db":
			dbCmd(os.Args[2:])
			return
		case "state":
			stateCmd(os.Args[2:])
			return
		case "archive":
			archiveCmd(os.Args[2:])
			return
		}
	}
	listCmd(os.Args[1:])
}

// listCmd prints the rotated segment event logs under the data dir.
func listCmd(args []string) {
	fs := flag.NewFlagSet("admin", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	_ = fs.Parse(args)

	files, err := persistlog.Files(filepath.Join(*dataDir, "events"), "events")
	if err != nil {
		fmt.Fprintln(os.Stderr, "list:", err)
		os.Exit(1)
	}
	for _, f := range files {
		st, err := os.Stat(f)
		if err != nil {
			fmt.Println(filepath.Base(f))
			continue
		}
		fmt.Printf("%s\t%d\n", filepath.Base(f), st.Size())
	}
}

// archiveCmd moves closed hourly event logs into per-day archive directories.
func archiveCmd(args []string) {
	fs := flag.NewFlagSet("archive", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	olderThan := fs.Duration("older_than", 0, "only archive hours that closed at least this long ago")
	_ = fs.Parse(args)

	res, err := archive.ArchiveEventLogs(*dataDir, time.Now().Add(-*olderThan))
	if err != nil {
		fmt.Fprintln(os.Stderr, "archive:", err)
		os.Exit(1)
	}
	fmt.Printf("archive ok: days=%v files=%d bytes=%d\n", res.Days, res.Files, res.Bytes)
}
