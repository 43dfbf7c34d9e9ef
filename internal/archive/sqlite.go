// Package archive mirrors merged observations into a SQLite database so the
// history can be queried with SQL.
package archive

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"katsuo-market/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS observations (
	date TEXT NOT NULL,
	port TEXT NOT NULL,
	size TEXT NOT NULL,
	price REAL NOT NULL,
	volume REAL NOT NULL,
	run_id TEXT NOT NULL,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (date, port, size)
);
CREATE INDEX IF NOT EXISTS idx_observations_series ON observations(port, size, date);

CREATE TABLE IF NOT EXISTS runs (
	run_id TEXT PRIMARY KEY,
	observations INTEGER NOT NULL,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
`

// Store is a SQLite-backed archive.
type Store struct {
	db *sql.DB
}

// Open creates or opens the archive at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// single writer
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Archive upserts observations under runID in a single transaction; the
// last run to write a key wins, as in the JSON dataset.
func (s *Store) Archive(ctx context.Context, runID string, obs []model.PriceObservation) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin archive: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO observations (date, port, size, price, volume, run_id, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(date, port, size) DO UPDATE SET
		price = excluded.price,
		volume = excluded.volume,
		run_id = excluded.run_id,
		updated_at = CURRENT_TIMESTAMP`)
	if err != nil {
		return fmt.Errorf("prepare archive: %w", err)
	}
	defer stmt.Close()

	for _, o := range obs {
		if _, err := stmt.ExecContext(ctx,
			o.Date.Format(model.DateLayout), string(o.Port), o.Size,
			model.RoundPrice(o.Price), o.Volume, runID,
		); err != nil {
			return fmt.Errorf("archive %s: %w", o.Key(), err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs (run_id, observations) VALUES (?, ?)
		 ON CONFLICT(run_id) DO UPDATE SET observations = excluded.observations`,
		runID, len(obs),
	); err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return tx.Commit()
}

// Series returns the archived series for (port, size), oldest first.
func (s *Store) Series(ctx context.Context, port model.Port, size string) ([]model.PriceObservation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT date, price, volume FROM observations WHERE port = ? AND size = ? ORDER BY date`,
		string(port), size,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.PriceObservation
	for rows.Next() {
		var (
			date          string
			price, volume float64
		)
		if err := rows.Scan(&date, &price, &volume); err != nil {
			return nil, err
		}
		d, err := time.Parse(model.DateLayout, date)
		if err != nil {
			return nil, fmt.Errorf("archived date %q: %w", date, err)
		}
		out = append(out, model.PriceObservation{Date: d, Port: port, Size: size, Price: price, Volume: volume})
	}
	return out, rows.Err()
}

// RunCount returns how many runs have been archived.
func (s *Store) RunCount(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs`).Scan(&n)
	return n, err
}
