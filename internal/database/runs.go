package database

import (
	"database/sql"
	"fmt"
	"time"
)

// Run is one recorded generation operation.
type Run struct {
	ID        int64
	Operation string
	Seed      int64
	FixedSeed bool
	Summary   string
	CreatedAt time.Time
}

// RecordRun stores the seed and summary of an operation so it can be
// reproduced later. It returns the new run's ID.
func (d *Database) RecordRun(operation string, seed int64, fixed bool, summary string) (int64, error) {
	query := d.qb.BuildWithReturning(
		"INSERT INTO runs (operation, seed, fixed_seed, summary) VALUES (?, ?, ?, ?)", "id")
	args := []any{operation, seed, boolInt(fixed), summary}

	if !d.dialect.SupportsLastInsertID() {
		var id int64
		if err := d.db.QueryRow(query, args...).Scan(&id); err != nil {
			return 0, fmt.Errorf("failed to record run: %w", err)
		}
		return id, nil
	}

	result, err := d.db.Exec(query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to record run: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get run ID: %w", err)
	}
	return id, nil
}

// Runs returns the most recent runs, newest first. limit <= 0 returns all.
func (d *Database) Runs(limit int) ([]Run, error) {
	query := "SELECT id, operation, seed, fixed_seed, summary, created_at FROM runs ORDER BY id DESC"
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := d.db.Query(d.qb.Build(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var fixed int
		if err := rows.Scan(&r.ID, &r.Operation, &r.Seed, &fixed, &r.Summary, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.FixedSeed = fixed != 0
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// RunBySeed finds the latest run of operation that used seed.
func (d *Database) RunBySeed(operation string, seed int64) (Run, bool, error) {
	var r Run
	var fixed int
	err := d.db.QueryRow(
		d.qb.Build("SELECT id, operation, seed, fixed_seed, summary, created_at FROM runs WHERE operation = ? AND seed = ? ORDER BY id DESC LIMIT 1"),
		operation, seed,
	).Scan(&r.ID, &r.Operation, &r.Seed, &fixed, &r.Summary, &r.CreatedAt)
	if err == sql.ErrNoRows {
		return Run{}, false, nil
	}
	if err != nil {
		return Run{}, false, fmt.Errorf("failed to find run: %w", err)
	}
	r.FixedSeed = fixed != 0
	return r, true, nil
}
