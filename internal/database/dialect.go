package database

// Dialect abstracts the SQL differences between SQLite and PostgreSQL.
type Dialect interface {
	// DriverName is the database/sql driver: "sqlite" or "postgres".
	DriverName() string

	// Placeholder returns the parameter placeholder for a 1-indexed position.
	Placeholder(position int) string

	// SupportsLastInsertID reports whether Result.LastInsertId works.
	SupportsLastInsertID() bool

	// ReturningClause returns the clause that makes an INSERT yield column.
	ReturningClause(column string) string

	// AutoIncrementKey is the column definition of a generated integer key.
	AutoIncrementKey() string

	// InitStatements run once after connecting.
	InitStatements() []string
}

// DialectType identifies the database dialect.
type DialectType string

const (
	DialectSQLite   DialectType = "sqlite"
	DialectPostgres DialectType = "postgres"
)

// NewDialect creates a Dialect; unknown types fall back to SQLite.
func NewDialect(dialectType DialectType) Dialect {
	switch dialectType {
	case DialectPostgres:
		return &PostgresDialect{}
	default:
		return &SQLiteDialect{}
	}
}
