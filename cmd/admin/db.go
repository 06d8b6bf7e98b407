package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"overgrowth.dev/internal/persistence/indexdb"
)

func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	dbPath := fs.String("db", "", "sqlite db path (optional; defaults to <data>/index/overgrowth.sqlite)")
	session := fs.String("session", "", "session_id filter (segments)")
	limit := fs.Int("limit", 20, "result limit")
	_ = fs.Parse(args)

	q := "segments"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}

	path := strings.TrimSpace(*dbPath)
	if path == "" {
		path = filepath.Join(*dataDir, "index", "overgrowth.sqlite")
	}
	if _, err := os.Stat(path); err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := runQuery(ctx, os.Stdout, db, q, *session, *limit); err != nil {
		fmt.Fprintln(os.Stderr, "query:", err)
		os.Exit(1)
	}
}

func runQuery(ctx context.Context, out io.Writer, db *sql.DB, q, session string, limit int) error {
	switch q {
	case "segments":
		rows, err := indexdb.QuerySegments(ctx, db, session, limit)
		if err != nil {
			return err
		}
		for _, r := range rows {
			printJSON(out, r)
		}
	case "sessions":
		rows, err := indexdb.QuerySessions(ctx, db, limit)
		if err != nil {
			return err
		}
		for _, r := range rows {
			printJSON(out, r)
		}
	case "tuning":
		var digest, raw, updated string
		err := db.QueryRowContext(ctx, `SELECT digest,json,updated_at FROM config WHERE name='tuning'`).Scan(&digest, &raw, &updated)
		if err != nil {
			return err
		}
		printJSON(out, struct {
			Digest    string          `json:"digest"`
			UpdatedAt string          `json:"updated_at"`
			Tuning    json.RawMessage `json:"tuning"`
		}{digest, updated, json.RawMessage(raw)})
	default:
		return fmt.Errorf("unknown query %q (want segments|sessions|tuning)", q)
	}
	return nil
}

func printJSON(out io.Writer, v any) {
	b, _ := json.Marshal(v)
	fmt.Fprintln(out, string(b))
}
