// Package database persists a levelforge session between runs: the world
// snapshot, the registry's bookkeeping and the history of seeded runs.
// SQLite is the default store; PostgreSQL is supported for shared setups.
package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/lawnchairsociety/levelforge/internal/logger"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Database wraps the connection and its dialect.
type Database struct {
	db      *sql.DB
	dialect Dialect
	qb      *QueryBuilder
}

// Open opens or creates a SQLite store at path.
func Open(path string) (*Database, error) {
	return OpenWithConfig(DefaultConfig(path))
}

// OpenWithConfig connects to the configured store and migrates it.
func OpenWithConfig(cfg Config) (*Database, error) {
	dialect := NewDialect(DialectType(cfg.Driver))

	var dsn string
	switch DialectType(cfg.Driver) {
	case DialectPostgres:
		dsn = cfg.Postgres.DSN()
	case DialectSQLite, "":
		if cfg.SQLitePath == "" {
			return nil, fmt.Errorf("sqlite path is empty")
		}
		if err := os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		dsn = cfg.SQLitePath
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}

	db, err := sql.Open(dialect.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, ok := dialect.(*SQLiteDialect); ok {
		// Pragmas are per connection.
		db.SetMaxOpenConns(1)
	}
	if _, ok := dialect.(*PostgresDialect); ok {
		db.SetMaxOpenConns(cfg.Postgres.MaxOpenConns)
		db.SetMaxIdleConns(cfg.Postgres.MaxIdleConns)
		db.SetConnMaxLifetime(cfg.Postgres.ConnMaxLifetime)
		if err := db.Ping(); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
	}

	for _, stmt := range dialect.InitStatements() {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to run %q: %w", stmt, err)
		}
	}

	d := &Database{db: db, dialect: dialect, qb: NewQueryBuilder(dialect)}
	if err := d.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	logger.Debug("Opened session store", "driver", dialect.DriverName())
	return d, nil
}

// Close closes the database connection.
func (d *Database) Close() error {
	return d.db.Close()
}

// Dialect returns the store's SQL dialect.
func (d *Database) Dialect() Dialect {
	return d.dialect
}

func (d *Database) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			name TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS levels (
			id BIGINT PRIMARY KEY,
			asset TEXT NOT NULL,
			package TEXT NOT NULL,
			name TEXT NOT NULL,
			loc_x DOUBLE PRECISION NOT NULL,
			loc_y DOUBLE PRECISION NOT NULL,
			loc_z DOUBLE PRECISION NOT NULL,
			yaw DOUBLE PRECISION NOT NULL,
			folder TEXT NOT NULL DEFAULT '',
			color TEXT NOT NULL,
			visible INTEGER NOT NULL DEFAULT 1,
			state INTEGER NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS actors (
			id BIGINT PRIMARY KEY,
			level_id BIGINT NOT NULL,
			name TEXT NOT NULL,
			class TEXT NOT NULL,
			tags TEXT NOT NULL DEFAULT '[]',
			loc_x DOUBLE PRECISION NOT NULL,
			loc_y DOUBLE PRECISION NOT NULL,
			loc_z DOUBLE PRECISION NOT NULL,
			yaw DOUBLE PRECISION NOT NULL,
			entry INTEGER NOT NULL DEFAULT 0,
			hidden INTEGER NOT NULL DEFAULT 0
		)`,

		`CREATE TABLE IF NOT EXISTS room_groups (
			root BIGINT PRIMARY KEY,
			position INTEGER NOT NULL,
			source TEXT NOT NULL,
			loc_x DOUBLE PRECISION NOT NULL,
			loc_y DOUBLE PRECISION NOT NULL,
			loc_z DOUBLE PRECISION NOT NULL,
			yaw DOUBLE PRECISION NOT NULL,
			folder TEXT NOT NULL DEFAULT '',
			color TEXT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS group_members (
			root BIGINT NOT NULL REFERENCES room_groups(root) ON DELETE CASCADE,
			position INTEGER NOT NULL,
			level_id BIGINT NOT NULL,
			asset TEXT NOT NULL,
			loc_x DOUBLE PRECISION NOT NULL,
			loc_y DOUBLE PRECISION NOT NULL,
			loc_z DOUBLE PRECISION NOT NULL,
			yaw DOUBLE PRECISION NOT NULL,
			PRIMARY KEY (root, position)
		)`,

		`CREATE TABLE IF NOT EXISTS replacement_links (
			original BIGINT PRIMARY KEY,
			replacement BIGINT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS actor_links (
			original BIGINT PRIMARY KEY,
			replacement BIGINT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS filtered_actors (
			actor_id BIGINT PRIMARY KEY,
			tag TEXT NOT NULL
		)`,

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS runs (
			id %s,
			operation TEXT NOT NULL,
			seed BIGINT NOT NULL,
			fixed_seed INTEGER NOT NULL DEFAULT 0,
			summary TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`, d.dialect.AutoIncrementKey()),

		`CREATE INDEX IF NOT EXISTS idx_actors_level_id ON actors(level_id)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_operation ON runs(operation)`,
	}

	for _, m := range migrations {
		if _, err := d.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
