package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	session_key  TEXT PRIMARY KEY,
	file_name    TEXT NOT NULL DEFAULT '',
	generated    INTEGER NOT NULL DEFAULT 0,
	run_id       TEXT NOT NULL DEFAULT '',
	completed_at TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS results (
	session_key       TEXT NOT NULL,
	position          INTEGER NOT NULL,
	model             TEXT NOT NULL,
	text              TEXT NOT NULL,
	response_id       TEXT NOT NULL,
	created           INTEGER NOT NULL,
	service_model     TEXT NOT NULL,
	prompt_tokens     INTEGER NOT NULL,
	completion_tokens INTEGER NOT NULL,
	err               TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (session_key, position)
);`

// Store keeps accumulators in a sqlite file so the held table survives
// between command invocations.
type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("Sitzungsverzeichnis anlegen fehlgeschlagen: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("Sitzungsdatenbank öffnen fehlgeschlagen (%s): %w", path, err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("Sitzungsdatenbank initialisieren fehlgeschlagen: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Load returns the accumulator stored under key, or an empty one.
func (s *Store) Load(ctx context.Context, key string) (*Accumulator, error) {
	acc := NewAccumulator(key)
	var (
		generated   int
		completedAt string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT file_name, generated, run_id, completed_at FROM sessions WHERE session_key = ?`, key,
	).Scan(&acc.FileName, &generated, &acc.RunID, &completedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return acc, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Sitzung laden fehlgeschlagen: %w", err)
	}
	acc.Generated = generated == 1
	if completedAt != "" {
		if ts, perr := time.Parse(time.RFC3339Nano, completedAt); perr == nil {
			acc.CompletedAt = ts
		}
	}

	rows, err := s.db.QueryContext(ctx, `SELECT model, text, response_id, created, service_model,
		prompt_tokens, completion_tokens, err FROM results WHERE session_key = ? ORDER BY position`, key)
	if err != nil {
		return nil, fmt.Errorf("Ergebnisse laden fehlgeschlagen: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.Model, &r.Text, &r.ResponseID, &r.Created, &r.ServiceModel,
			&r.PromptTokens, &r.CompletionTokens, &r.Err); err != nil {
			return nil, fmt.Errorf("Ergebnisse laden fehlgeschlagen: %w", err)
		}
		acc.table = append(acc.table, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("Ergebnisse laden fehlgeschlagen: %w", err)
	}
	return acc, nil
}

// Save writes the accumulator and replaces its stored result rows.
func (s *Store) Save(ctx context.Context, acc *Accumulator) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("Sitzung speichern fehlgeschlagen: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	completedAt := ""
	if !acc.CompletedAt.IsZero() {
		completedAt = acc.CompletedAt.Format(time.RFC3339Nano)
	}
	generated := 0
	if acc.Generated {
		generated = 1
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO sessions (session_key, file_name, generated, run_id, completed_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(session_key) DO UPDATE SET file_name = excluded.file_name, generated = excluded.generated,
			run_id = excluded.run_id, completed_at = excluded.completed_at`,
		acc.Key, acc.FileName, generated, acc.RunID, completedAt); err != nil {
		return fmt.Errorf("Sitzung speichern fehlgeschlagen: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM results WHERE session_key = ?`, acc.Key); err != nil {
		return fmt.Errorf("Ergebnisse speichern fehlgeschlagen: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO results (session_key, position, model, text, response_id,
		created, service_model, prompt_tokens, completion_tokens, err) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("Ergebnisse speichern fehlgeschlagen: %w", err)
	}
	defer stmt.Close()
	for i, r := range acc.table {
		if _, err := stmt.ExecContext(ctx, acc.Key, i, r.Model, r.Text, r.ResponseID, r.Created,
			r.ServiceModel, r.PromptTokens, r.CompletionTokens, r.Err); err != nil {
			return fmt.Errorf("Ergebnisse speichern fehlgeschlagen: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("Sitzung speichern fehlgeschlagen: %w", err)
	}
	return nil
}
