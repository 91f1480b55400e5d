package sqlgen

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/systemsbiology/sbeams-core/pkg/registry"
)

// Option configures CreateTable.
type Option func(*createOptions)

type createOptions struct {
	resolveFK func(table string) (string, error)
}

// WithForeignKeys emits a FOREIGN KEY clause for each column with fk_table
// set. resolve maps a registry table name to its physical name.
func WithForeignKeys(resolve func(table string) (string, error)) Option {
	return func(o *createOptions) {
		o.resolveFK = resolve
	}
}

// CreateTable renders CREATE TABLE for t. physical is the resolved table
// name; cols must already be in render order.
func CreateTable(t registry.TableDescriptor, cols []registry.ColumnDescriptor, physical string, d Dialect, opts ...Option) (string, error) {
	var o createOptions
	for _, opt := range opts {
		opt(&o)
	}
	if len(cols) == 0 {
		return "", fmt.Errorf("%w: %s", ErrNoColumns, t.Name)
	}

	inlinePK := false
	defs := make([]string, 0, len(cols)+2)
	for _, c := range cols {
		def, pk := columnDef(c, t.PKColumn, d)
		inlinePK = inlinePK || pk
		defs = append(defs, def)
	}

	if t.PKColumn != "" && !inlinePK {
		defs = append(defs, fmt.Sprintf("PRIMARY KEY (%s)", d.QuoteIdent(t.PKColumn)))
	}

	if o.resolveFK != nil {
		for _, c := range cols {
			if c.FKTable == "" || c.FKColumn == "" {
				continue
			}
			ref, err := o.resolveFK(c.FKTable)
			if err != nil {
				return "", fmt.Errorf("foreign key %s.%s: %w", t.Name, c.Name, err)
			}
			defs = append(defs, fmt.Sprintf("FOREIGN KEY (%s) REFERENCES %s (%s)",
				d.QuoteIdent(c.Name), d.QuoteTable(ref), d.QuoteIdent(c.FKColumn)))
		}
	}

	return fmt.Sprintf("CREATE TABLE %s (\n    %s\n)", d.QuoteTable(physical), strings.Join(defs, ",\n    ")), nil
}

// columnDef renders one column definition. It reports whether the primary
// key was declared inline, which SQLite requires for AUTOINCREMENT.
func columnDef(c registry.ColumnDescriptor, pk string, d Dialect) (string, bool) {
	name := d.QuoteIdent(c.Name)
	if c.AutoIncrement {
		switch {
		case d == SQLite && c.Name == pk:
			return name + " INTEGER PRIMARY KEY AUTOINCREMENT", true
		case d.IsPostgres():
			return name + " SERIAL NOT NULL", false
		case d == MySQL:
			return name + " INT NOT NULL AUTO_INCREMENT", false
		}
	}

	var b strings.Builder
	b.WriteString(name)
	b.WriteByte(' ')
	b.WriteString(ColumnType(c, d))
	if !c.Nullable || c.Name == pk {
		b.WriteString(" NOT NULL")
	}
	if c.Default != "" {
		b.WriteString(" DEFAULT ")
		b.WriteString(defaultExpr(c.Default))
	}
	return b.String(), false
}

// ColumnType maps an SBEAMS datatype (as written for SQL Server) to d.
// Unknown types are passed through upper-cased.
func ColumnType(c registry.ColumnDescriptor, d Dialect) string {
	dt := strings.ToLower(strings.TrimSpace(c.DataType))
	size := func(def int) int {
		if c.Scale != nil && *c.Scale > 0 {
			return *c.Scale
		}
		return def
	}

	switch dt {
	case "int", "integer":
		return "INTEGER"
	case "bigint":
		return "BIGINT"
	case "smallint":
		return "SMALLINT"
	case "tinyint":
		if d == MySQL {
			return "TINYINT"
		}
		return "SMALLINT"
	case "bit", "boolean", "bool":
		switch {
		case d.IsPostgres():
			return "BOOLEAN"
		case d == MySQL:
			return "TINYINT(1)"
		}
		return "INTEGER"
	case "varchar", "nvarchar":
		return "VARCHAR(" + strconv.Itoa(size(255)) + ")"
	case "char", "nchar":
		return "CHAR(" + strconv.Itoa(size(1)) + ")"
	case "text", "ntext":
		return "TEXT"
	case "datetime", "smalldatetime", "timestamp":
		if d.IsPostgres() {
			return "TIMESTAMP"
		}
		return "DATETIME"
	case "real", "float", "double":
		if d == MySQL {
			return "DOUBLE"
		}
		if d.IsPostgres() {
			return "DOUBLE PRECISION"
		}
		return "REAL"
	case "numeric", "decimal", "money":
		if c.Scale == nil {
			return "NUMERIC"
		}
		prec := 0
		if c.Precision != nil {
			prec = *c.Precision
		}
		return fmt.Sprintf("NUMERIC(%d,%d)", *c.Scale, prec)
	case "image", "varbinary", "blob":
		if d.IsPostgres() {
			return "BYTEA"
		}
		return "BLOB"
	case "":
		return "TEXT"
	}
	return strings.ToUpper(dt)
}

var rawDefaults = map[string]bool{
	"null":              true,
	"current_timestamp": true,
	"getdate()":         true,
	"now()":             true,
}

// defaultExpr renders a default_value: numbers, keywords and already
// quoted strings verbatim, anything else as a string literal.
func defaultExpr(v string) string {
	if rawDefaults[strings.ToLower(v)] {
		if strings.EqualFold(v, "getdate()") {
			return "CURRENT_TIMESTAMP"
		}
		return v
	}
	if _, err := strconv.ParseFloat(v, 64); err == nil {
		return v
	}
	if len(v) >= 2 && v[0] == '\'' && v[len(v)-1] == '\'' {
		return v
	}
	return Lit(v).SQL()
}
