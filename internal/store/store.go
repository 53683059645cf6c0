// Package store provides a SQLite-backed store of assembled testcase
// records, so runs can be inspected and queried after the fact.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"caseport/internal/models"
	"caseport/internal/outputs"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS testcases (
	id         TEXT PRIMARY KEY,
	title      TEXT NOT NULL DEFAULT '',
	file       TEXT NOT NULL DEFAULT '',
	line       INTEGER NOT NULL DEFAULT 0,
	outcome    TEXT NOT NULL DEFAULT '',
	duration   REAL NOT NULL DEFAULT 0,
	fields     TEXT NOT NULL DEFAULT '{}',
	steps      TEXT NOT NULL DEFAULT '[]',
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_testcases_outcome ON testcases(outcome);
`

// Row is one stored testcase record.
type Row struct {
	ID        string            `json:"id"`
	Title     string            `json:"title"`
	File      string            `json:"file"`
	Line      int               `json:"line"`
	Outcome   string            `json:"outcome,omitempty"`
	Duration  float64           `json:"duration"`
	Fields    map[string]string `json:"fields"`
	Steps     []StepRow         `json:"steps,omitempty"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// StepRow is one reconciled step stored with a record.
type StepRow struct {
	Index  int    `json:"index"`
	Step   string `json:"step"`
	Result string `json:"result"`
}

// Store wraps a sql.DB with testcase record operations.
type Store struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*Store, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("store: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}
	return &Store{conn: conn}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

// Upsert inserts or replaces one record.
func (s *Store) Upsert(row Row) error {
	fieldsJSON, err := json.Marshal(row.Fields)
	if err != nil {
		return fmt.Errorf("store: marshal fields: %w", err)
	}
	steps := row.Steps
	if steps == nil {
		steps = []StepRow{}
	}
	stepsJSON, err := json.Marshal(steps)
	if err != nil {
		return fmt.Errorf("store: marshal steps: %w", err)
	}

	_, err = s.conn.Exec(`
		INSERT INTO testcases (id, title, file, line, outcome, duration, fields, steps, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title      = excluded.title,
			file       = excluded.file,
			line       = excluded.line,
			outcome    = excluded.outcome,
			duration   = excluded.duration,
			fields     = excluded.fields,
			steps      = excluded.steps,
			updated_at = excluded.updated_at
	`, row.ID, row.Title, row.File, row.Line, row.Outcome, row.Duration,
		string(fieldsJSON), string(stepsJSON), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("store: upsert %s: %w", row.ID, err)
	}
	return nil
}

// Get returns one record by id or nil when it does not exist.
func (s *Store) Get(id string) (*Row, error) {
	row := s.conn.QueryRow(`
		SELECT id, title, file, line, outcome, duration, fields, steps, updated_at
		FROM testcases WHERE id = ?
	`, id)
	out, err := scanRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return out, err
}

// List returns records ordered by id.
func (s *Store) List(limit, offset int) ([]Row, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.conn.Query(`
		SELECT id, title, file, line, outcome, duration, fields, steps, updated_at
		FROM testcases ORDER BY id LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("store: list: %w", err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		r, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRow(sc scanner) (*Row, error) {
	var r Row
	var fieldsJSON, stepsJSON string
	if err := sc.Scan(&r.ID, &r.Title, &r.File, &r.Line, &r.Outcome, &r.Duration,
		&fieldsJSON, &stepsJSON, &r.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("store: scan: %w", err)
	}
	if err := json.Unmarshal([]byte(fieldsJSON), &r.Fields); err != nil {
		return nil, fmt.Errorf("store: decode fields for %s: %w", r.ID, err)
	}
	if err := json.Unmarshal([]byte(stepsJSON), &r.Steps); err != nil {
		return nil, fmt.Errorf("store: decode steps for %s: %w", r.ID, err)
	}
	return &r, nil
}

// Save persists one assembled item.
func (s *Store) Save(it outputs.Item) error {
	row := Row{
		ID:     it.Test.ID,
		Title:  it.Test.ID,
		File:   it.Test.Location.File,
		Line:   it.Test.Location.Line,
		Fields: make(map[string]string),
	}
	if title, ok := it.Record.Value("title"); ok {
		row.Title = title
	}
	if res := it.Test.Result; res != nil {
		row.Outcome = string(res.Outcome)
		row.Duration = res.Duration
	}
	for _, name := range it.Record.Names() {
		v, _ := it.Record.Value(name)
		row.Fields[name] = v
	}
	for _, p := range it.Record.Steps {
		row.Steps = append(row.Steps, StepRow{Index: p.Index, Step: p.Step, Result: p.Result})
	}
	return s.Upsert(row)
}

// Generate implements outputs.Generator: every assembled record is saved.
func (s *Store) Generate(rep *models.Report, items []outputs.Item) error {
	for _, it := range items {
		if err := s.Save(it); err != nil {
			return err
		}
	}
	return nil
}
