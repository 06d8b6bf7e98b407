package archive

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	persistlog "overgrowth.dev/internal/persistence/log"
)

const hourLayout = "2006-01-02-15"

type DayArchiveMeta struct {
	Day        string   `json:"day"`
	Files      []string `json:"files"`
	Bytes      int64    `json:"bytes"`
	ArchivedAt string   `json:"archived_at"`
}

type Result struct {
	Days  []string
	Files int
	Bytes int64
}

// ArchiveEventLogs moves closed hourly segment logs from `dataDir/events/` into
// `dataDir/archives/<YYYY-MM-DD>/`. A file is closed when its hour ends at or before
// `before`; the file for the current hour is never touched.
func ArchiveEventLogs(dataDir string, before time.Time) (Result, error) {
	var res Result
	files, err := persistlog.Files(filepath.Join(dataDir, "events"), "events")
	if err != nil {
		return res, err
	}

	byDay := map[string][]string{}
	for _, path := range files {
		hour, ok := fileHour(path)
		if !ok || hour.Add(time.Hour).After(before.UTC()) {
			continue
		}
		day := hour.Format("2006-01-02")
		byDay[day] = append(byDay[day], path)
	}

	days := make([]string, 0, len(byDay))
	for d := range byDay {
		days = append(days, d)
	}
	sort.Strings(days)

	for _, day := range days {
		dir := filepath.Join(dataDir, "archives", day)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return res, err
		}
		meta := readMeta(dir)
		meta.Day = day
		for _, src := range byDay[day] {
			dst := filepath.Join(dir, filepath.Base(src))
			n, err := copyFile(src, dst)
			if err != nil {
				return res, fmt.Errorf("archive %s: %w", filepath.Base(src), err)
			}
			if err := os.Remove(src); err != nil {
				return res, err
			}
			meta.Files = append(meta.Files, filepath.Base(dst))
			meta.Bytes += n
			res.Files++
			res.Bytes += n
		}
		meta.ArchivedAt = time.Now().UTC().Format(time.RFC3339Nano)
		if b, err := json.MarshalIndent(meta, "", "  "); err == nil {
			_ = os.WriteFile(filepath.Join(dir, "meta.json"), b, 0o644)
		}
		res.Days = append(res.Days, day)
	}
	return res, nil
}

func fileHour(path string) (time.Time, bool) {
	name := filepath.Base(path)
	name = strings.TrimPrefix(name, "events-")
	name = strings.TrimSuffix(name, ".jsonl.zst")
	t, err := time.ParseInLocation(hourLayout, name, time.UTC)
	return t, err == nil
}

func readMeta(dir string) DayArchiveMeta {
	var meta DayArchiveMeta
	if b, err := os.ReadFile(filepath.Join(dir, "meta.json")); err == nil {
		_ = json.Unmarshal(b, &meta)
	}
	return meta
}

func copyFile(src, dst string) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return 0, err
	}
	defer func() { _ = out.Close() }()

	n, err := io.Copy(out, in)
	if err != nil {
		return n, err
	}
	return n, out.Close()
}
