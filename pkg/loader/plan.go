package loader

import (
	"context"
	"fmt"
	"io"

	"github.com/systemsbiology/sbeams-core/pkg/driverfile"
	"github.com/systemsbiology/sbeams-core/pkg/registry"
	"github.com/systemsbiology/sbeams-core/pkg/store"
)

type key struct{ table, column string }

// plan walks a batch against a store. With a nil Writer it only counts and
// describes the changes.
type plan struct {
	batch  *driverfile.Batch
	opts   Options
	report *Report
	out    io.Writer

	seen map[key]bool
}

func (p *plan) header() {
	_, _ = fmt.Fprintf(p.out, "-- Driver table load (dry-run)\n")
	_, _ = fmt.Fprintf(p.out, "-- File: %s\n", p.opts.Source)
	_, _ = fmt.Fprintf(p.out, "-- Kind: %s\n", p.batch.Kind)
	_, _ = fmt.Fprintf(p.out, "-- Checksum: %s\n", p.report.Checksum)
	for _, re := range p.batch.Errors {
		_, _ = fmt.Fprintf(p.out, "-- %s\n", re.Error())
	}
}

func (p *plan) printf(format string, args ...any) {
	if p.out != nil {
		_, _ = fmt.Fprintf(p.out, format, args...)
	}
}

func (p *plan) run(ctx context.Context, r store.Reader, w store.Writer) error {
	p.seen = make(map[key]bool)
	switch p.batch.Kind {
	case registry.KindTableProperty:
		return p.runTables(ctx, r, w)
	case registry.KindColumnProperty:
		if err := p.runColumns(ctx, r, w); err != nil {
			return err
		}
		if p.opts.Merge {
			return nil
		}
		return p.deleteMissing(ctx, r, w)
	}
	return fmt.Errorf("%w: %d", driverfile.ErrUnknownKind, int(p.batch.Kind))
}

// upserted records an upsert outcome. Without a writer, inserted is derived
// from the stored state and earlier rows of the batch.
func (p *plan) upserted(k key, inserted bool) {
	if p.seen[k] {
		inserted = false
	}
	p.seen[k] = true
	if inserted {
		p.report.Inserted++
	} else {
		p.report.Updated++
	}
}

func (p *plan) dangling(line int, table, column, field, format string, args ...any) {
	p.report.Errors = append(p.report.Errors, driverfile.RowError{
		Source: p.opts.Source,
		Line:   line,
		Kind:   driverfile.DanglingReference,
		Table:  table,
		Column: column,
		Field:  field,
		Msg:    fmt.Sprintf(format, args...),
	})
}

func (p *plan) runTables(ctx context.Context, r store.Reader, w store.Writer) error {
	for _, row := range p.batch.Tables {
		t := row.TableDescriptor
		if t.TableGroup != "" {
			ok, err := r.TableGroupExists(ctx, t.TableGroup)
			if err != nil {
				return err
			}
			if !ok {
				p.dangling(row.Line, t.Name, "", "table_group", "unknown table group %q", t.TableGroup)
			}
		}

		var inserted bool
		if w != nil {
			var err error
			if inserted, err = w.UpsertTable(ctx, t); err != nil {
				return err
			}
		} else {
			exists, err := r.TableExists(ctx, t.Name)
			if err != nil {
				return err
			}
			inserted = !exists
		}
		p.printf("%s table_property %s\n", verb(inserted && !p.seen[key{table: t.Name}]), t.Name)
		p.upserted(key{table: t.Name}, inserted)
	}
	return nil
}

func (p *plan) runColumns(ctx context.Context, r store.Reader, w store.Writer) error {
	// Tables described by this file count as known foreign key targets.
	inFile := make(map[string]bool)
	for _, row := range p.batch.Columns {
		inFile[row.Table] = true
	}
	known := func(table string) (bool, error) {
		if inFile[table] {
			return true, nil
		}
		ok, err := r.TableExists(ctx, table)
		if err != nil || ok {
			return ok, err
		}
		cols, err := r.ListColumns(ctx, table)
		return len(cols) > 0, err
	}

	for _, row := range p.batch.Columns {
		c := row.ColumnDescriptor
		if c.FKTable != "" {
			ok, err := known(c.FKTable)
			if err != nil {
				return err
			}
			if !ok {
				p.dangling(row.Line, c.Table, c.Name, "fk_table", "unknown foreign key table %q", c.FKTable)
			}
			if c.FKColumn == "" {
				p.dangling(row.Line, c.Table, c.Name, "fk_column_name", "fk_table %q set without fk_column_name", c.FKTable)
			}
		}

		k := key{table: c.Table, column: c.Name}
		var inserted bool
		if w != nil {
			var err error
			if inserted, err = w.UpsertColumn(ctx, c); err != nil {
				return err
			}
		} else {
			exists, err := columnExists(ctx, r, c.Table, c.Name)
			if err != nil {
				return err
			}
			inserted = !exists
		}
		p.printf("%s table_column %s.%s\n", verb(inserted && !p.seen[k]), c.Table, c.Name)
		p.upserted(k, inserted)
	}
	return nil
}

// deleteMissing removes stored columns of every table in the file that the
// file does not list. Columns named by a rejected row are kept.
func (p *plan) deleteMissing(ctx context.Context, r store.Reader, w store.Writer) error {
	keep := make(map[key]bool, len(p.seen))
	for k := range p.seen {
		keep[k] = true
	}
	for _, re := range p.batch.Errors {
		if re.Table != "" && re.Column != "" {
			keep[key{table: re.Table, column: re.Column}] = true
		}
	}

	for _, table := range p.batch.TableNames() {
		stored, err := r.ListColumns(ctx, table)
		if err != nil {
			return err
		}
		for _, c := range stored {
			if keep[key{table: table, column: c.Name}] {
				continue
			}
			if w != nil {
				if err := w.DeleteColumn(ctx, table, c.Name); err != nil {
					return err
				}
			}
			p.printf("DELETE table_column %s.%s\n", table, c.Name)
			p.report.Deleted++
		}
	}
	return nil
}

func columnExists(ctx context.Context, r store.Reader, table, column string) (bool, error) {
	cols, err := r.ListColumns(ctx, table)
	if err != nil {
		return false, err
	}
	for _, c := range cols {
		if c.Name == column {
			return true, nil
		}
	}
	return false, nil
}

func verb(inserted bool) string {
	if inserted {
		return "INSERT"
	}
	return "UPDATE"
}
