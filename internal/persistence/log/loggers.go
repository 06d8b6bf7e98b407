package log

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"overgrowth.dev/internal/sim/world"
)

const hourLayout = "2006-01-02-15"

// Stats counts what an HourlyLog has written since it was created.
type Stats struct {
	Lines       uint64 `json:"lines"`
	Bytes       uint64 `json:"bytes"` // uncompressed
	Files       uint64 `json:"files"`
	WriteErrors uint64 `json:"write_errors"`
}

// HourlyLog appends JSON lines to <dir>/<prefix>-<YYYY-MM-DD-HH>.jsonl.zst,
// starting a new file when the UTC hour changes. A failed write closes the
// current file; the next write reopens it in append mode, which zstd readers
// accept as a second frame.
type HourlyLog struct {
	dir    string
	prefix string
	now    func() time.Time

	mu    sync.Mutex
	hour  string
	f     *os.File
	enc   *zstd.Encoder
	buf   *bufio.Writer
	stats Stats
}

func NewHourlyLog(dir, prefix string) *HourlyLog {
	return &HourlyLog{dir: dir, prefix: prefix, now: time.Now}
}

// Write encodes v as one line and flushes it into the compressor.
func (l *HourlyLog) Write(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if hour := l.now().UTC().Format(hourLayout); hour != l.hour || l.f == nil {
		if err := l.openLocked(hour); err != nil {
			l.stats.WriteErrors++
			return err
		}
	}
	b = append(b, '\n')
	if _, err := l.buf.Write(b); err != nil {
		return l.failLocked(err)
	}
	if err := l.buf.Flush(); err != nil {
		return l.failLocked(err)
	}
	l.stats.Lines++
	l.stats.Bytes += uint64(len(b))
	return nil
}

func (l *HourlyLog) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stats
}

func (l *HourlyLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closeLocked()
}

func (l *HourlyLog) failLocked(err error) error {
	l.stats.WriteErrors++
	_ = l.closeLocked()
	return err
}

func (l *HourlyLog) openLocked(hour string) error {
	if err := l.closeLocked(); err != nil {
		return err
	}
	path := l.path(hour)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	if l.enc == nil {
		enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
		if err != nil {
			_ = f.Close()
			return err
		}
		l.enc = enc
	} else {
		l.enc.Reset(f)
	}
	l.f = f
	l.buf = bufio.NewWriterSize(l.enc, 128*1024)
	l.hour = hour
	l.stats.Files++
	return nil
}

// closeLocked ends the current zstd frame and closes the file. The encoder
// is kept for the next file.
func (l *HourlyLog) closeLocked() error {
	if l.f == nil {
		return nil
	}
	err := l.buf.Flush()
	if cerr := l.enc.Close(); err == nil {
		err = cerr
	}
	if cerr := l.f.Close(); err == nil {
		err = cerr
	}
	l.f, l.buf = nil, nil
	return err
}

func (l *HourlyLog) path(hour string) string {
	return filepath.Join(l.dir, fmt.Sprintf("%s-%s.jsonl.zst", l.prefix, hour))
}

// SegmentLogger records segment loads and unloads under <dataDir>/events.
type SegmentLogger struct{ l *HourlyLog }

func NewSegmentLogger(dataDir string) *SegmentLogger {
	return &SegmentLogger{l: NewHourlyLog(filepath.Join(dataDir, "events"), "events")}
}

func (s *SegmentLogger) WriteSegmentEvent(ev world.SegmentEvent) error { return s.l.Write(ev) }
func (s *SegmentLogger) Stats() Stats                                  { return s.l.Stats() }
func (s *SegmentLogger) Close() error                                  { return s.l.Close() }
