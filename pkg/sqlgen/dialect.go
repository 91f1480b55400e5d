package sqlgen

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/lib/pq"
)

// Dialect names a database/sql driver and the SQL flavour it speaks.
type Dialect string

const (
	Postgres Dialect = "postgres"
	PGX      Dialect = "pgx"
	SQLite   Dialect = "sqlite3"
	MySQL    Dialect = "mysql"
)

// ParseDialect accepts a driver name or a common alias.
func ParseDialect(s string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "postgres", "postgresql", "pq":
		return Postgres, nil
	case "pgx":
		return PGX, nil
	case "sqlite3", "sqlite":
		return SQLite, nil
	case "mysql", "mariadb":
		return MySQL, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownDialect, s)
}

// Driver returns the database/sql driver name.
func (d Dialect) Driver() string { return string(d) }

// IsPostgres reports whether d talks to PostgreSQL.
func (d Dialect) IsPostgres() bool { return d == Postgres || d == PGX }

// QuoteIdent quotes a single identifier.
func (d Dialect) QuoteIdent(name string) string {
	if d == MySQL {
		return "`" + strings.ReplaceAll(name, "`", "``") + "`"
	}
	return pq.QuoteIdentifier(name)
}

// QuoteTable quotes a possibly schema-qualified table name part by part.
func (d Dialect) QuoteTable(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = d.QuoteIdent(p)
	}
	return strings.Join(parts, ".")
}

// Rebind rewrites ? placeholders to $n for PostgreSQL. Question marks
// inside single-quoted literals are left alone.
func (d Dialect) Rebind(query string) string {
	if !d.IsPostgres() {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	inLit := false
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case c == '\'':
			inLit = !inLit
			b.WriteByte(c)
		case c == '?' && !inLit:
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
