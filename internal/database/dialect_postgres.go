package database

import "fmt"

// PostgresDialect implements Dialect for PostgreSQL through lib/pq.
type PostgresDialect struct{}

func (d *PostgresDialect) DriverName() string { return "postgres" }

// Placeholder returns "$N".
func (d *PostgresDialect) Placeholder(position int) string {
	return fmt.Sprintf("$%d", position)
}

func (d *PostgresDialect) SupportsLastInsertID() bool { return false }

func (d *PostgresDialect) ReturningClause(column string) string {
	return fmt.Sprintf(" RETURNING %s", column)
}

func (d *PostgresDialect) AutoIncrementKey() string {
	return "BIGSERIAL PRIMARY KEY"
}

// InitStatements is empty; foreign keys are always enforced.
func (d *PostgresDialect) InitStatements() []string { return nil }
