package database

// SQLiteDialect implements Dialect for modernc.org/sqlite.
type SQLiteDialect struct{}

func (d *SQLiteDialect) DriverName() string { return "sqlite" }

// Placeholder is always "?".
func (d *SQLiteDialect) Placeholder(position int) string { return "?" }

func (d *SQLiteDialect) SupportsLastInsertID() bool { return true }

// ReturningClause is empty; SQLite inserts report LastInsertId.
func (d *SQLiteDialect) ReturningClause(column string) string { return "" }

func (d *SQLiteDialect) AutoIncrementKey() string {
	return "INTEGER PRIMARY KEY AUTOINCREMENT"
}

// InitStatements enables foreign keys and WAL and waits on locks.
func (d *SQLiteDialect) InitStatements() []string {
	return []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
	}
}
