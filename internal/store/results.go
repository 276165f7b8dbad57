// Package store persists batch results to SQLite so the external
// visualization adapter can read them after the process exits. The
// archive is strictly one-directional: nothing in the simulation core
// depends on it.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/glebarez/go-sqlite"

	"github.com/jialuechen/genmarket/internal/domain"
)

// ResultStore archives simulation batches in SQLite.
type ResultStore struct {
	db *sql.DB
}

// Open creates or opens the archive at path with WAL mode enabled.
func Open(path string) (*ResultStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return nil, fmt.Errorf("set pragma %s: %w", pragma, err)
		}
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS batches (
			id TEXT PRIMARY KEY,
			created_at INTEGER NOT NULL,
			config TEXT NOT NULL
		);
	`); err != nil {
		return nil, fmt.Errorf("create batches table: %w", err)
	}
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			batch_id TEXT NOT NULL REFERENCES batches(id),
			run_index INTEGER NOT NULL,
			seed INTEGER NOT NULL,
			status TEXT NOT NULL,
			payload BLOB NOT NULL,
			PRIMARY KEY (batch_id, run_index)
		);
	`); err != nil {
		return nil, fmt.Errorf("create runs table: %w", err)
	}

	return &ResultStore{db: db}, nil
}

// SaveBatch archives one batch: the raw configuration document plus
// every run's result, in a single transaction.
func (s *ResultStore) SaveBatch(ctx context.Context, batchID string, configDoc []byte, results []domain.SimulationResult) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO batches (id, created_at, config) VALUES (?, ?, ?)",
		batchID, time.Now().Unix(), string(configDoc),
	); err != nil {
		return fmt.Errorf("insert batch: %w", err)
	}

	for _, res := range results {
		payload, err := json.Marshal(res)
		if err != nil {
			return fmt.Errorf("marshal run %d: %w", res.RunIndex, err)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO runs (batch_id, run_index, seed, status, payload) VALUES (?, ?, ?, ?, ?)",
			batchID, res.RunIndex, res.Seed, string(res.Status), payload,
		); err != nil {
			return fmt.Errorf("insert run %d: %w", res.RunIndex, err)
		}
	}

	return tx.Commit()
}

// GetBatch loads a batch's results ordered by run index. Returns
// domain.ErrBatchNotFound for unknown IDs.
func (s *ResultStore) GetBatch(ctx context.Context, batchID string) ([]domain.SimulationResult, error) {
	var exists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM batches WHERE id = ?", batchID,
	).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("lookup batch: %w", err)
	}
	if exists == 0 {
		return nil, domain.ErrBatchNotFound
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT payload FROM runs WHERE batch_id = ? ORDER BY run_index", batchID,
	)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var results []domain.SimulationResult
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		var res domain.SimulationResult
		if err := json.Unmarshal(payload, &res); err != nil {
			return nil, fmt.Errorf("unmarshal run: %w", err)
		}
		results = append(results, res)
	}
	return results, rows.Err()
}

// Close releases the underlying database handle.
func (s *ResultStore) Close() error {
	return s.db.Close()
}
