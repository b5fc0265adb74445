// Package statsdb records node work statistics of flowgraph runs in a
// SQLite database.
package statsdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tliron/commonlog"
	_ "modernc.org/sqlite"

	"github.com/chazu/blockbridge/engine"
)

var log = commonlog.GetLogger("blockbridge.statsdb")

// ErrRunNotFound indicates the requested run doesn't exist
var ErrRunNotFound = errors.New("run not found")

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	graph      TEXT NOT NULL,
	started_at INTEGER NOT NULL,
	ended_at   INTEGER
);
CREATE TABLE IF NOT EXISTS work_stats (
	run_id            INTEGER NOT NULL REFERENCES runs(id),
	node              TEXT NOT NULL,
	work_calls        INTEGER NOT NULL,
	work_errors       INTEGER NOT NULL,
	bytes_consumed    INTEGER NOT NULL,
	bytes_produced    INTEGER NOT NULL,
	msgs_consumed     INTEGER NOT NULL,
	msgs_produced     INTEGER NOT NULL,
	labels_produced   INTEGER NOT NULL,
	labels_propagated INTEGER NOT NULL,
	slot_calls        INTEGER NOT NULL,
	work_time_ns      INTEGER NOT NULL,
	last_work         INTEGER,
	PRIMARY KEY (run_id, node)
);`

// Run is one recorded flowgraph run.
type Run struct {
	ID      int64
	Graph   string
	Started time.Time
	Ended   time.Time
}

// Store handles SQLite storage for run statistics
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Set busy timeout for concurrent access
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating tables: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// BeginRun starts a run of graph and returns its id.
func (s *Store) BeginRun(graph string, started time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec("INSERT INTO runs (graph, started_at) VALUES (?, ?)", graph, started.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("starting run: %w", err)
	}
	return res.LastInsertId()
}

// EndRun marks a run finished.
func (s *Store) EndRun(runID int64, ended time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec("UPDATE runs SET ended_at = ? WHERE id = ?", ended.UnixNano(), runID)
	if err != nil {
		return fmt.Errorf("ending run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrRunNotFound
	}
	return nil
}

// Record replaces the run's statistics with stats.
func (s *Store) Record(runID int64, stats []engine.WorkStats) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("recording stats: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO work_stats (
		run_id, node, work_calls, work_errors, bytes_consumed, bytes_produced,
		msgs_consumed, msgs_produced, labels_produced, labels_propagated,
		slot_calls, work_time_ns, last_work
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("recording stats: %w", err)
	}
	defer stmt.Close()

	for _, ws := range stats {
		var last sql.NullInt64
		if !ws.TimeLastWork.IsZero() {
			last = sql.NullInt64{Int64: ws.TimeLastWork.UnixNano(), Valid: true}
		}
		_, err := stmt.Exec(runID, ws.Node,
			int64(ws.NumWorkCalls), int64(ws.NumWorkErrors),
			int64(ws.BytesConsumed), int64(ws.BytesProduced),
			int64(ws.MsgsConsumed), int64(ws.MsgsProduced),
			int64(ws.LabelsProduced), int64(ws.LabelsPropagated),
			int64(ws.SlotCalls), int64(ws.TotalWorkTime), last)
		if err != nil {
			return fmt.Errorf("recording stats for %s: %w", ws.Node, err)
		}
	}
	return tx.Commit()
}

// Runs lists recorded runs, newest first.
func (s *Store) Runs() ([]Run, error) {
	rows, err := s.db.Query("SELECT id, graph, started_at, ended_at FROM runs ORDER BY id DESC")
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r       Run
			started int64
			ended   sql.NullInt64
		)
		if err := rows.Scan(&r.ID, &r.Graph, &started, &ended); err != nil {
			return nil, err
		}
		r.Started = time.Unix(0, started)
		if ended.Valid {
			r.Ended = time.Unix(0, ended.Int64)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Stats returns the statistics recorded for a run, ordered by node.
func (s *Store) Stats(runID int64) ([]engine.WorkStats, error) {
	var exists int
	err := s.db.QueryRow("SELECT 1 FROM runs WHERE id = ?", runID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying run: %w", err)
	}

	rows, err := s.db.Query(`SELECT node, work_calls, work_errors, bytes_consumed,
		bytes_produced, msgs_consumed, msgs_produced, labels_produced,
		labels_propagated, slot_calls, work_time_ns, last_work
		FROM work_stats WHERE run_id = ? ORDER BY node`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying stats: %w", err)
	}
	defer rows.Close()

	var out []engine.WorkStats
	for rows.Next() {
		var (
			ws       engine.WorkStats
			workTime int64
			last     sql.NullInt64
		)
		err := rows.Scan(&ws.Node, &ws.NumWorkCalls, &ws.NumWorkErrors,
			&ws.BytesConsumed, &ws.BytesProduced, &ws.MsgsConsumed, &ws.MsgsProduced,
			&ws.LabelsProduced, &ws.LabelsPropagated, &ws.SlotCalls, &workTime, &last)
		if err != nil {
			return nil, err
		}
		ws.TotalWorkTime = time.Duration(workTime)
		if last.Valid {
			ws.TimeLastWork = time.Unix(0, last.Int64)
		}
		out = append(out, ws)
	}
	return out, rows.Err()
}

// Watch records snapshot() every interval until ctx is done, then records
// a final snapshot.
func (s *Store) Watch(ctx context.Context, runID int64, interval time.Duration, snapshot func() []engine.WorkStats) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := s.Record(runID, snapshot()); err != nil {
				log.Errorf("run %d: %s", runID, err)
			}
		case <-ctx.Done():
			return s.Record(runID, snapshot())
		}
	}
}
