// Package sqlstore implements store.Store, store.History and
// sbeams.GrantSource on a relational database through database/sql.
//
// The same queries run on PostgreSQL (lib/pq or pgx), MySQL and SQLite.
// Queries are written with ? placeholders and rebound for PostgreSQL.
//
// # Usage
//
//	st, err := sqlstore.Open("postgres", "postgres://localhost/sbeams?sslmode=disable")
//	if err != nil {
//	    return err
//	}
//	defer st.Close()
//	if err := st.EnsureSchema(ctx); err != nil {
//	    return err
//	}
//	report, err := loader.LoadFile(ctx, st, "Microarray_table_column.txt", loader.Options{})
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/systemsbiology/sbeams-core/pkg/sqlgen"
	"github.com/systemsbiology/sbeams-core/pkg/store"
	ddl "github.com/systemsbiology/sbeams-core/sql"
)

// Store is a database-backed descriptor store.
type Store struct {
	db *sql.DB
	d  sqlgen.Dialect
}

// Open connects to a database. driver is a database/sql driver name
// ("postgres", "pgx", "mysql", "sqlite3").
func Open(driver, dsn string) (*Store, error) {
	d, err := sqlgen.ParseDialect(driver)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(d.Driver(), dsn)
	if err != nil {
		return nil, fmt.Errorf("opening %s database: %w", d, err)
	}
	if d == sqlgen.SQLite {
		// SQLite allows one writer; a single connection avoids SQLITE_BUSY.
		db.SetMaxOpenConns(1)
	}
	return New(db, d), nil
}

// New wraps an open database.
func New(db *sql.DB, d sqlgen.Dialect) *Store {
	return &Store{db: db, d: d}
}

// DB returns the underlying database handle.
func (s *Store) DB() *sql.DB { return s.db }

// Dialect returns the store's SQL dialect.
func (s *Store) Dialect() sqlgen.Dialect { return s.d }

// Ping verifies the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) view() view {
	return view{q: s.db, d: s.d}
}

// EnsureSchema creates the driver table, history and security tables if
// they do not exist. It is safe to run on every start.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, script := range []struct {
		name string
		sql  string
	}{
		{"registry.sql", ddl.RegistrySQL},
		{"security.sql", ddl.SecuritySQL},
	} {
		for i, stmt := range statements(script.sql) {
			if _, err := s.db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("applying %s statement %d: %w", script.name, i+1, err)
			}
		}
	}
	return nil
}

// statements splits a DDL script on semicolons that end a line, dropping
// comment lines.
func statements(script string) []string {
	var out []string
	var cur strings.Builder
	for _, line := range strings.Split(script, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		cur.WriteString(line)
		cur.WriteByte('\n')
		if strings.HasSuffix(trimmed, ";") {
			stmt := strings.TrimSuffix(strings.TrimSpace(cur.String()), ";")
			out = append(out, stmt)
			cur.Reset()
		}
	}
	if rest := strings.TrimSpace(cur.String()); rest != "" {
		out = append(out, rest)
	}
	return out
}

// Atomic implements store.Store. fn runs inside one transaction that is
// committed only if fn returns nil.
func (s *Store) Atomic(ctx context.Context, fn func(store.Tx) error) error {
	return s.inTx(ctx, func(v view) error { return fn(v) })
}

func (s *Store) inTx(ctx context.Context, fn func(view) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(view{q: tx, d: s.d}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Status describes the database state.
type Status struct {
	// SchemaApplied indicates that the driver tables exist.
	SchemaApplied bool

	Tables      int
	Columns     int
	TableGroups int
	WorkGroups  int

	// LastLoads holds the most recent load of each file, newest first.
	LastLoads []store.LoadRecord
}

// GetStatus reports whether the schema is applied and how much it holds.
func (s *Store) GetStatus(ctx context.Context) (*Status, error) {
	st := &Status{}
	applied, err := s.SchemaApplied(ctx)
	if err != nil {
		return nil, err
	}
	st.SchemaApplied = applied
	if !applied {
		return st, nil
	}

	counts := []struct {
		table string
		dst   *int
	}{
		{"table_property", &st.Tables},
		{"table_column", &st.Columns},
		{"table_group", &st.TableGroups},
		{"work_group", &st.WorkGroups},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+c.table).Scan(c.dst); err != nil {
			return nil, fmt.Errorf("counting %s: %w", c.table, err)
		}
	}

	st.LastLoads, err = s.Loads(ctx)
	if err != nil {
		return nil, err
	}
	return st, nil
}

// SchemaApplied reports whether EnsureSchema has created the driver tables.
func (s *Store) SchemaApplied(ctx context.Context) (bool, error) {
	return s.relationExists(ctx, "table_property")
}

func (s *Store) relationExists(ctx context.Context, name string) (bool, error) {
	var q string
	switch {
	case s.d == sqlgen.SQLite:
		q = `SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`
	case s.d == sqlgen.MySQL:
		q = `SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = DATABASE() AND table_name = ?`
	default:
		q = `SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = current_schema() AND table_name = ?`
	}
	var n int
	if err := s.db.QueryRowContext(ctx, s.d.Rebind(q), name).Scan(&n); err != nil {
		return false, fmt.Errorf("checking %s: %w", name, err)
	}
	return n > 0, nil
}

var (
	_ store.Store   = (*Store)(nil)
	_ store.History = (*Store)(nil)
)
