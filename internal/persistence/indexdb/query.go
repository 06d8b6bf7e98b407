package indexdb

import (
	"context"
	"database/sql"
)

type SegmentRow struct {
	Seq            int64  `json:"seq"`
	Tick           int64  `json:"tick"`
	Kind           string `json:"kind"`
	SessionID      string `json:"session_id"`
	Coord          [2]int `json:"coord"`
	Anchors        int    `json:"anchors"`
	TasksStarted   int    `json:"tasks_started"`
	TasksCancelled int    `json:"tasks_cancelled"`
	ItemsSpawned   int    `json:"items_spawned"`
	ItemsReleased  int    `json:"items_released"`
	Error          string `json:"error,omitempty"`
}

type SessionRow struct {
	SessionID     string `json:"session_id"`
	FirstTick     int64  `json:"first_tick"`
	LastTick      int64  `json:"last_tick"`
	Loads         int    `json:"loads"`
	Unloads       int    `json:"unloads"`
	LoadErrors    int    `json:"load_errors"`
	ItemsSpawned  int    `json:"items_spawned"`
	ItemsReleased int    `json:"items_released"`
}

// QuerySegments returns the latest segment events, newest first. An empty
// sessionID matches every session.
func QuerySegments(ctx context.Context, db *sql.DB, sessionID string, limit int) ([]SegmentRow, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.QueryContext(ctx, `SELECT seq,tick,kind,session_id,cx,cy,anchors,tasks_started,tasks_cancelled,items_spawned,items_released,COALESCE(error,'')
		FROM segments WHERE (?='' OR session_id=?) ORDER BY seq DESC LIMIT ?`, sessionID, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []SegmentRow
	for rows.Next() {
		var r SegmentRow
		if err := rows.Scan(&r.Seq, &r.Tick, &r.Kind, &r.SessionID, &r.Coord[0], &r.Coord[1], &r.Anchors, &r.TasksStarted, &r.TasksCancelled, &r.ItemsSpawned, &r.ItemsReleased, &r.Error); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func QuerySessions(ctx context.Context, db *sql.DB, limit int) ([]SessionRow, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.QueryContext(ctx, `SELECT session_id,first_tick,last_tick,loads,unloads,load_errors,items_spawned,items_released
		FROM sessions ORDER BY last_tick DESC, session_id LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []SessionRow
	for rows.Next() {
		var r SessionRow
		if err := rows.Scan(&r.SessionID, &r.FirstTick, &r.LastTick, &r.Loads, &r.Unloads, &r.LoadErrors, &r.ItemsSpawned, &r.ItemsReleased); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// DB exposes the underlying handle for read queries.
func (s *SQLiteIndex) DB() *sql.DB { return s.db }
