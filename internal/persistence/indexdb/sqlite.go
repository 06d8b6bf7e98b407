package indexdb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"overgrowth.dev/internal/sim/tuning"
	"overgrowth.dev/internal/sim/world"
)

type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	// mu orders sends on ch against close(ch).
	mu     sync.RWMutex
	closed atomic.Bool

	dropSegmentTotal atomic.Uint64
	writeFailTotal   atomic.Uint64
	writtenTotal     atomic.Uint64
}

type Stats struct {
	QueueDepth       int    `json:"queue_depth"`
	QueueCapacity    int    `json:"queue_capacity"`
	DropSegmentTotal uint64 `json:"drop_segment_total"`
	WriteFailTotal   uint64 `json:"write_fail_total"`
	WrittenTotal     uint64 `json:"written_total"`
}

type req struct {
	ev         world.SegmentEvent
	recordedAt string
	flush      chan struct{}
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		// Bursty: a session crossing a boundary emits a full window of loads and unloads.
		ch: make(chan req, 65536),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS config (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS segments (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			tick INTEGER NOT NULL,
			kind TEXT NOT NULL,
			session_id TEXT NOT NULL,
			cx INTEGER NOT NULL,
			cy INTEGER NOT NULL,
			anchors INTEGER NOT NULL,
			tasks_started INTEGER NOT NULL,
			tasks_cancelled INTEGER NOT NULL,
			items_spawned INTEGER NOT NULL,
			items_released INTEGER NOT NULL,
			error TEXT,
			recorded_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_segments_session_tick ON segments(session_id, tick);`,
		`CREATE INDEX IF NOT EXISTS idx_segments_coord ON segments(cx, cy, tick);`,
		`CREATE TABLE IF NOT EXISTS sessions (
			session_id TEXT PRIMARY KEY,
			first_tick INTEGER NOT NULL,
			last_tick INTEGER NOT NULL,
			loads INTEGER NOT NULL,
			unloads INTEGER NOT NULL,
			load_errors INTEGER NOT NULL,
			items_spawned INTEGER NOT NULL,
			items_released INTEGER NOT NULL
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.mu.Lock()
		s.closed.Store(true)
		close(s.ch)
		s.mu.Unlock()
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// WriteSegmentEvent queues ev for the writer goroutine. It never blocks the
// world loop: when the queue is full the event is dropped and counted.
func (s *SQLiteIndex) WriteSegmentEvent(ev world.SegmentEvent) error {
	if s == nil {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{ev: ev, recordedAt: time.Now().UTC().Format(time.RFC3339Nano)}:
	default:
		// JSONL logs remain the source of truth.
		s.dropSegmentTotal.Add(1)
	}
	return nil
}

// Flush blocks until every event queued before the call is committed.
func (s *SQLiteIndex) Flush(ctx context.Context) error {
	if s == nil {
		return nil
	}
	done := make(chan struct{})
	s.mu.RLock()
	if s.closed.Load() {
		s.mu.RUnlock()
		return nil
	}
	select {
	case s.ch <- req{flush: done}:
		s.mu.RUnlock()
	case <-ctx.Done():
		s.mu.RUnlock()
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:       len(s.ch),
		QueueCapacity:    cap(s.ch),
		DropSegmentTotal: s.dropSegmentTotal.Load(),
		WriteFailTotal:   s.writeFailTotal.Load(),
		WrittenTotal:     s.writtenTotal.Load(),
	}
}

// UpsertTuning stores the tuning actually applied, as canonical JSON.
func (s *SQLiteIndex) UpsertTuning(tune tuning.Tuning) error {
	if s == nil {
		return nil
	}
	b, err := json.Marshal(tune)
	if err != nil {
		return err
	}
	sum := sha256.Sum256(b)
	now := time.Now().UTC().Format(time.RFC3339Nano)

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	if _, err := tx.Exec(`INSERT OR REPLACE INTO config(name,digest,json,updated_at) VALUES(?,?,?,?)`,
		"tuning", hex.EncodeToString(sum[:]), string(b), now); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertSegment, _ := s.db.Prepare(`INSERT INTO segments(tick,kind,session_id,cx,cy,anchors,tasks_started,tasks_cancelled,items_spawned,items_released,error,recorded_at) VALUES(?,?,?,?,?,?,?,?,?,?,?,?)`)
	upsertSession, _ := s.db.Prepare(`INSERT INTO sessions(session_id,first_tick,last_tick,loads,unloads,load_errors,items_spawned,items_released)
		VALUES(?,?,?,?,?,?,?,?)
		ON CONFLICT(session_id) DO UPDATE SET
			last_tick=excluded.last_tick,
			loads=loads+excluded.loads,
			unloads=unloads+excluded.unloads,
			load_errors=load_errors+excluded.load_errors,
			items_spawned=items_spawned+excluded.items_spawned,
			items_released=items_released+excluded.items_released`)
	defer func() {
		if insertSegment != nil {
			_ = insertSegment.Close()
		}
		if upsertSession != nil {
			_ = upsertSession.Close()
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 2000
		commitMaxWait = 2 * time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		if err := tx.Commit(); err != nil {
			s.writeFailTotal.Add(uint64(opCount))
		} else {
			s.writtenTotal.Add(uint64(opCount))
		}
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		s.writeFailTotal.Add(uint64(opCount) + 1)
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}

	flushIfNeeded := func() {
		if tx == nil {
			return
		}
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}

	handle := func(r req) {
		if r.flush != nil {
			commit()
			close(r.flush)
			return
		}
		begin()
		if tx == nil || insertSegment == nil || upsertSession == nil {
			s.writeFailTotal.Add(1)
			return
		}
		ev := r.ev
		var loads, unloads, loadErrors, spawned, released int
		switch ev.Kind {
		case world.SegmentLoad:
			loads = 1
			if ev.Error != "" {
				loadErrors = 1
			}
		case world.SegmentUnload:
			unloads = 1
			spawned = ev.ItemsSpawned
			released = ev.ItemsReleased
		}
		var errText any
		if ev.Error != "" {
			errText = ev.Error
		}
		if _, err := tx.Stmt(insertSegment).Exec(
			int64(ev.Tick),
			ev.Kind,
			ev.SessionID,
			ev.Coord[0], ev.Coord[1],
			ev.Anchors,
			ev.TasksStarted,
			ev.TasksCancelled,
			ev.ItemsSpawned,
			ev.ItemsReleased,
			errText,
			r.recordedAt,
		); err != nil {
			rollback()
			return
		}
		if _, err := tx.Stmt(upsertSession).Exec(
			ev.SessionID,
			int64(ev.Tick),
			int64(ev.Tick),
			loads, unloads, loadErrors, spawned, released,
		); err != nil {
			rollback()
			return
		}
		opCount++
		flushIfNeeded()
	}

	// The open transaction holds the only connection; commit it on idle too.
	idle := time.NewTicker(commitMaxWait)
	defer idle.Stop()
	for {
		select {
		case r, ok := <-s.ch:
			if !ok {
				commit()
				return
			}
			handle(r)
		case <-idle.C:
			flushIfNeeded()
		}
	}
}
