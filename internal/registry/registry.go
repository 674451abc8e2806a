// Package registry provides SQLite-backed storage for completed
// resolution runs.
//
// The registry serves two purposes:
//   - an audit record of every resolution (run token, inclusion
//     verdict, weight, applied steps, and the full assignment set), and
//   - the historical result table that results-mode downselect
//     expressions are evaluated against after simulation.
//
// Database configuration follows the single-writer SQLite pattern:
// WAL mode, synchronous=NORMAL, busy_timeout=5000, foreign_keys=ON,
// one open connection.
package registry

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Registry stores resolution run records.
type Registry struct {
	db *sql.DB
}

// Open creates or opens the registry database at path. Idempotent:
// pragmas and schema are applied on every open.
func Open(path string) (*Registry, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open registry: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to registry: %w", err)
	}

	// SQLite allows one writer; a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply registry schema: %w", err)
	}
	return &Registry{db: db}, nil
}

// Close closes the database connection.
func (r *Registry) Close() error {
	if r.db == nil {
		return nil
	}
	return r.db.Close()
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %q: %w", pragma, err)
		}
	}
	return nil
}

// Assignment is one parameter/option pair of a recorded run, in column
// order.
type Assignment struct {
	Parameter string
	Option    string
}

// RunRecord is one completed resolution run.
type RunRecord struct {
	RunToken     string
	BuildingID   int
	Included     bool
	Weight       *float64 // nil when no weight was computed
	AppliedSteps []string
	Assignments  []Assignment
}

// Record writes one run and its assignments in a single transaction.
func (r *Registry) Record(ctx context.Context, rec RunRecord) error {
	stepsJSON, err := json.Marshal(rec.AppliedSteps)
	if err != nil {
		return fmt.Errorf("record run %s: marshal applied steps: %w", rec.RunToken, err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("record run %s: begin: %w", rec.RunToken, err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (run_token, building_id, included, weight, applied_steps)
		VALUES (?, ?, ?, ?, ?)
	`, rec.RunToken, rec.BuildingID, rec.Included, rec.Weight, string(stepsJSON))
	if err != nil {
		return fmt.Errorf("record run %s: %w", rec.RunToken, err)
	}

	for i, a := range rec.Assignments {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO run_assignments (run_token, position, parameter, option)
			VALUES (?, ?, ?, ?)
		`, rec.RunToken, i, a.Parameter, a.Option)
		if err != nil {
			return fmt.Errorf("record run %s assignment %q: %w", rec.RunToken, a.Parameter, err)
		}
	}
	return tx.Commit()
}
