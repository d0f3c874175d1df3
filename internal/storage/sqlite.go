//go:build sqlite

package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/lizqwerscott/ocs2-ros2/internal/dynamo"
	"github.com/lizqwerscott/ocs2-ros2/internal/slq"
	_ "modernc.org/sqlite"
)

const databaseFile = "runs.db"

// SQLiteStore keeps every run in a single database file.
type SQLiteStore struct {
	mu  sync.Mutex
	dir string
	db  *sql.DB
}

func NewSQLiteStore(dir string) (Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", filepath.Join(dir, databaseFile))
	if err != nil {
		return nil, fmt.Errorf("storage: open database: %w", err)
	}
	return &SQLiteStore{dir: dir, db: db}, nil
}

func (s *SQLiteStore) Init() error {
	schema := `
		CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			model TEXT NOT NULL,
			kind TEXT NOT NULL,
			timestamp DATETIME NOT NULL,
			iterations INTEGER,
			converged INTEGER,
			reason TEXT,
			elapsed_ns INTEGER,
			metrics TEXT DEFAULT '{}'
		);

		CREATE TABLE IF NOT EXISTS iterations (
			run_id TEXT NOT NULL,
			iteration INTEGER NOT NULL,
			cost REAL, merit REAL,
			ise1 REAL, max_norm1 REAL,
			ise2 REAL, max_norm2 REAL,
			learning_rate REAL, max_delta REAL,
			step TEXT
		);

		CREATE TABLE IF NOT EXISTS samples (
			run_id TEXT NOT NULL,
			k INTEGER NOT NULL,
			time REAL NOT NULL,
			event INTEGER NOT NULL,
			state TEXT NOT NULL,
			input TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_iterations_run ON iterations(run_id);
		CREATE INDEX IF NOT EXISTS idx_samples_run ON samples(run_id, k);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Save(run *Run) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	newID(&run.Meta)
	m := run.Meta
	metrics, err := json.Marshal(m.Metrics)
	if err != nil {
		return "", err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`INSERT INTO runs (id, model, kind, timestamp, iterations, converged, reason, elapsed_ns, metrics)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.Model, m.Kind, m.Timestamp.UTC().Format(time.RFC3339Nano), m.Iterations, m.Converged, m.Reason,
		int64(m.Elapsed), string(metrics)); err != nil {
		return "", fmt.Errorf("storage: insert run: %w", err)
	}

	for _, r := range run.Iterations {
		p := r.Performance
		if _, err := tx.Exec(`INSERT INTO iterations
			(run_id, iteration, cost, merit, ise1, max_norm1, ise2, max_norm2, learning_rate, max_delta, step)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			m.ID, r.Iteration, p.Cost, p.Merit, p.ISE1, p.MaxNorm1, p.ISE2, p.MaxNorm2,
			r.LearningRate, r.MaxDelta, r.StepType); err != nil {
			return "", fmt.Errorf("storage: insert iteration: %w", err)
		}
	}

	tr := &run.Trajectory
	events := make(map[int]bool, len(tr.Events))
	for _, e := range tr.Events {
		events[e] = true
	}
	for k := 0; k < tr.Len(); k++ {
		x, _ := json.Marshal(tr.States[k])
		u, _ := json.Marshal(tr.Inputs[k])
		if _, err := tx.Exec(`INSERT INTO samples (run_id, k, time, event, state, input) VALUES (?, ?, ?, ?, ?, ?)`,
			m.ID, k, tr.Times[k], events[k], string(x), string(u)); err != nil {
			return "", fmt.Errorf("storage: insert sample: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	return m.ID, nil
}

func (s *SQLiteStore) List() ([]RunMetadata, error) {
	rows, err := s.db.Query(`SELECT id FROM runs ORDER BY timestamp`)
	if err != nil {
		return nil, err
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	runs := make([]RunMetadata, 0, len(ids))
	for _, id := range ids {
		meta, err := s.Load(id)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *meta)
	}
	return runs, nil
}

func (s *SQLiteStore) Load(id string) (*RunMetadata, error) {
	var (
		meta      RunMetadata
		timestamp string
		elapsed   int64
		metrics   string
	)
	err := s.db.QueryRow(`SELECT id, model, kind, timestamp, iterations, converged, reason, elapsed_ns, metrics
		FROM runs WHERE id = ?`, id).Scan(
		&meta.ID, &meta.Model, &meta.Kind, &timestamp, &meta.Iterations, &meta.Converged, &meta.Reason, &elapsed, &metrics)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	meta.Elapsed = time.Duration(elapsed)
	if meta.Timestamp, err = time.Parse(time.RFC3339Nano, timestamp); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(metrics), &meta.Metrics); err != nil {
		return nil, err
	}
	return &meta, nil
}

func (s *SQLiteStore) LoadIterations(id string) ([]slq.IterationRecord, error) {
	rows, err := s.db.Query(`SELECT iteration, cost, merit, ise1, max_norm1, ise2, max_norm2, learning_rate, max_delta, step
		FROM iterations WHERE run_id = ? ORDER BY iteration`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []slq.IterationRecord
	for rows.Next() {
		var r slq.IterationRecord
		p := &r.Performance
		if err := rows.Scan(&r.Iteration, &p.Cost, &p.Merit, &p.ISE1, &p.MaxNorm1, &p.ISE2, &p.MaxNorm2,
			&r.LearningRate, &r.MaxDelta, &r.StepType); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) LoadTrajectory(id string) (*dynamo.Trajectory, error) {
	rows, err := s.db.Query(`SELECT time, event, state, input FROM samples WHERE run_id = ? ORDER BY k`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tr := &dynamo.Trajectory{}
	for rows.Next() {
		var (
			t            float64
			event        bool
			state, input string
			x            dynamo.State
			u            dynamo.Input
		)
		if err := rows.Scan(&t, &event, &state, &input); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(state), &x); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(input), &u); err != nil {
			return nil, err
		}
		if event {
			tr.MarkEvent()
		}
		tr.Append(t, x, u)
	}
	return tr, rows.Err()
}
