package database

import "strings"

// QueryBuilder rewrites queries written with ? placeholders for the
// store's dialect.
type QueryBuilder struct {
	dialect Dialect
}

// NewQueryBuilder creates a QueryBuilder for dialect.
func NewQueryBuilder(dialect Dialect) *QueryBuilder {
	return &QueryBuilder{dialect: dialect}
}

// Build numbers the placeholders for PostgreSQL ("? AND ?" becomes
// "$1 AND $2") and leaves SQLite queries untouched.
func (qb *QueryBuilder) Build(query string) string {
	if _, ok := qb.dialect.(*SQLiteDialect); ok {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString(qb.dialect.Placeholder(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// BuildWithReturning is Build plus the RETURNING clause for dialects that
// cannot report the inserted key any other way.
func (qb *QueryBuilder) BuildWithReturning(query, column string) string {
	q := qb.Build(query)
	if !qb.dialect.SupportsLastInsertID() {
		q += qb.dialect.ReturningClause(column)
	}
	return q
}
