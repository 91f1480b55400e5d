package sqlstore

import (
	"cmp"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/systemsbiology/sbeams-core/pkg/registry"
	"github.com/systemsbiology/sbeams-core/pkg/sqlgen"
	"github.com/systemsbiology/sbeams-core/pkg/store"
)

// view runs the Reader and Writer queries against a *sql.DB or *sql.Tx.
type view struct {
	q Execer
	d sqlgen.Dialect
}

const tableColumns = `table_name, category, table_group, manage_table_allowed, db_table_name,
	pk_column_name, multi_insert_column, table_url, manage_tables, next_step`

const columnColumns = `table_name, column_number, column_name, column_title, datatype,
	column_scale, column_precision, nullable, default_value, is_auto_inc,
	fk_table, fk_column_name, is_required, input_type, input_length,
	onchange, is_data, is_displayed, is_key_field, column_text,
	optionlist_query, url`

func (v view) exec(ctx context.Context, q string, args ...any) (sql.Result, error) {
	return v.q.ExecContext(ctx, v.d.Rebind(q), args...)
}

func (v view) query(ctx context.Context, q string, args ...any) (*sql.Rows, error) {
	return v.q.QueryContext(ctx, v.d.Rebind(q), args...)
}

func (v view) queryRow(ctx context.Context, q string, args ...any) *sql.Row {
	return v.q.QueryRowContext(ctx, v.d.Rebind(q), args...)
}

func scanTable(sc scanner) (registry.TableDescriptor, error) {
	var t registry.TableDescriptor
	var manage int64
	var manageTables, nextSteps string
	err := sc.Scan(&t.Name, &t.Category, &t.TableGroup, &manage, &t.PhysicalTable,
		&t.PKColumn, &t.MultiInsertColumn, &t.URL, &manageTables, &nextSteps)
	if err != nil {
		return t, err
	}
	t.ManageAllowed = manage != 0
	t.ManageTables = splitList(manageTables)
	t.NextSteps = splitList(nextSteps)
	return t, nil
}

func scanColumn(sc scanner) (registry.ColumnDescriptor, error) {
	var c registry.ColumnDescriptor
	var scale, precision, inputLength sql.NullInt64
	var nullable, autoInc, required, isData, keyField int64
	var inputType, display, url string
	err := sc.Scan(&c.Table, &c.Number, &c.Name, &c.Title, &c.DataType,
		&scale, &precision, &nullable, &c.Default, &autoInc,
		&c.FKTable, &c.FKColumn, &required, &inputType, &inputLength,
		&c.OnChange, &isData, &display, &keyField, &c.Text,
		&c.OptionListQuery, &url)
	if err != nil {
		return c, err
	}
	c.Scale = intPtr(scale)
	c.Precision = intPtr(precision)
	c.InputLength = intPtr(inputLength)
	c.Nullable = nullable != 0
	c.AutoIncrement = autoInc != 0
	c.Required = required != 0
	c.IsData = isData != 0
	c.KeyField = keyField != 0
	c.InputType = registry.InputType(inputType)
	c.Display = registry.DisplayMode(display)
	c.URLMode = registry.URLMode(url)
	return c, nil
}

func (v view) GetTable(ctx context.Context, name string) (registry.TableDescriptor, error) {
	row := v.queryRow(ctx, `SELECT `+tableColumns+` FROM table_property WHERE table_name = ?`, name)
	t, err := scanTable(row)
	if errors.Is(err, sql.ErrNoRows) {
		return t, fmt.Errorf("table %s: %w", name, store.ErrNotFound)
	}
	if err != nil {
		return t, fmt.Errorf("querying table %s: %w", name, err)
	}
	return t, nil
}

func (v view) ListTables(ctx context.Context) ([]registry.TableDescriptor, error) {
	rows, err := v.query(ctx, `SELECT `+tableColumns+` FROM table_property ORDER BY table_name`)
	if err != nil {
		return nil, fmt.Errorf("querying tables: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []registry.TableDescriptor
	for rows.Next() {
		t, err := scanTable(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning table: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// listColumns returns rows in database order; collation differs between
// databases, so callers sort.
func (v view) listColumns(ctx context.Context, where string, args ...any) ([]registry.ColumnDescriptor, error) {
	rows, err := v.query(ctx, `SELECT `+columnColumns+` FROM table_column `+where+
		` ORDER BY table_name, column_number, column_name`, args...)
	if err != nil {
		return nil, fmt.Errorf("querying columns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []registry.ColumnDescriptor
	for rows.Next() {
		c, err := scanColumn(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning column: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (v view) ListColumns(ctx context.Context, table string) ([]registry.ColumnDescriptor, error) {
	cols, err := v.listColumns(ctx, `WHERE table_name = ?`, table)
	if err != nil {
		return nil, err
	}
	registry.SortColumns(cols)
	return cols, nil
}

func (v view) ListAllColumns(ctx context.Context) ([]registry.ColumnDescriptor, error) {
	cols, err := v.listColumns(ctx, "")
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(cols, func(a, b registry.ColumnDescriptor) int {
		if c := cmp.Compare(a.Table, b.Table); c != 0 {
			return c
		}
		return registry.CompareColumns(a, b)
	})
	return cols, nil
}

func (v view) count(ctx context.Context, q string, args ...any) (int, error) {
	var n int
	if err := v.queryRow(ctx, q, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (v view) TableExists(ctx context.Context, name string) (bool, error) {
	n, err := v.count(ctx, `SELECT COUNT(*) FROM table_property WHERE table_name = ?`, name)
	if err != nil {
		return false, fmt.Errorf("checking table %s: %w", name, err)
	}
	return n > 0, nil
}

func (v view) TableGroupExists(ctx context.Context, group string) (bool, error) {
	n, err := v.count(ctx, `
		SELECT COUNT(*) FROM (
			SELECT table_group FROM table_group WHERE table_group = ?
			UNION ALL
			SELECT table_group FROM table_group_security WHERE table_group = ?
		) g`, group, group)
	if err != nil {
		return false, fmt.Errorf("checking table group %s: %w", group, err)
	}
	return n > 0, nil
}

func (v view) UpsertTable(ctx context.Context, t registry.TableDescriptor) (bool, error) {
	exists, err := v.TableExists(ctx, t.Name)
	if err != nil {
		return false, err
	}
	args := []any{t.Category, t.TableGroup, boolInt(t.ManageAllowed), t.PhysicalTable,
		t.PKColumn, t.MultiInsertColumn, t.URL, joinList(t.ManageTables), joinList(t.NextSteps), t.Name}

	if exists {
		_, err = v.exec(ctx, `
			UPDATE table_property SET
				category = ?, table_group = ?, manage_table_allowed = ?, db_table_name = ?,
				pk_column_name = ?, multi_insert_column = ?, table_url = ?, manage_tables = ?, next_step = ?
			WHERE table_name = ?`, args...)
	} else {
		_, err = v.exec(ctx, `
			INSERT INTO table_property (category, table_group, manage_table_allowed, db_table_name,
				pk_column_name, multi_insert_column, table_url, manage_tables, next_step, table_name)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, args...)
	}
	if err != nil {
		return false, fmt.Errorf("upserting table %s: %w", t.Name, err)
	}
	return !exists, nil
}

func (v view) UpsertColumn(ctx context.Context, c registry.ColumnDescriptor) (bool, error) {
	n, err := v.count(ctx, `SELECT COUNT(*) FROM table_column WHERE table_name = ? AND column_name = ?`, c.Table, c.Name)
	if err != nil {
		return false, fmt.Errorf("checking column %s.%s: %w", c.Table, c.Name, err)
	}
	exists := n > 0

	args := []any{c.Number, c.Title, c.DataType, nullInt(c.Scale), nullInt(c.Precision),
		boolInt(c.Nullable), c.Default, boolInt(c.AutoIncrement), c.FKTable, c.FKColumn,
		boolInt(c.Required), string(c.InputType), nullInt(c.InputLength), c.OnChange, boolInt(c.IsData),
		string(c.Display), boolInt(c.KeyField), c.Text, c.OptionListQuery, string(c.URLMode),
		c.Table, c.Name}

	if exists {
		_, err = v.exec(ctx, `
			UPDATE table_column SET
				column_number = ?, column_title = ?, datatype = ?, column_scale = ?, column_precision = ?,
				nullable = ?, default_value = ?, is_auto_inc = ?, fk_table = ?, fk_column_name = ?,
				is_required = ?, input_type = ?, input_length = ?, onchange = ?, is_data = ?,
				is_displayed = ?, is_key_field = ?, column_text = ?, optionlist_query = ?, url = ?
			WHERE table_name = ? AND column_name = ?`, args...)
	} else {
		_, err = v.exec(ctx, `
			INSERT INTO table_column (column_number, column_title, datatype, column_scale, column_precision,
				nullable, default_value, is_auto_inc, fk_table, fk_column_name,
				is_required, input_type, input_length, onchange, is_data,
				is_displayed, is_key_field, column_text, optionlist_query, url,
				table_name, column_name)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, args...)
	}
	if err != nil {
		return false, fmt.Errorf("upserting column %s.%s: %w", c.Table, c.Name, err)
	}
	return !exists, nil
}

func (v view) DeleteColumn(ctx context.Context, table, column string) error {
	res, err := v.exec(ctx, `DELETE FROM table_column WHERE table_name = ? AND column_name = ?`, table, column)
	if err != nil {
		return fmt.Errorf("deleting column %s.%s: %w", table, column, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("column %s.%s: %w", table, column, store.ErrNotFound)
	}
	return nil
}

// Reader methods on Store run outside any transaction.

func (s *Store) GetTable(ctx context.Context, name string) (registry.TableDescriptor, error) {
	return s.view().GetTable(ctx, name)
}

func (s *Store) ListTables(ctx context.Context) ([]registry.TableDescriptor, error) {
	return s.view().ListTables(ctx)
}

func (s *Store) ListColumns(ctx context.Context, table string) ([]registry.ColumnDescriptor, error) {
	return s.view().ListColumns(ctx, table)
}

func (s *Store) ListAllColumns(ctx context.Context) ([]registry.ColumnDescriptor, error) {
	return s.view().ListAllColumns(ctx)
}

func (s *Store) TableExists(ctx context.Context, name string) (bool, error) {
	return s.view().TableExists(ctx, name)
}

func (s *Store) TableGroupExists(ctx context.Context, group string) (bool, error) {
	return s.view().TableGroupExists(ctx, group)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullInt(p *int) any {
	if p == nil {
		return nil
	}
	return int64(*p)
}

func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

func joinList(items []string) string {
	return strings.Join(items, ",")
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
var _ registry.Source = (*Store)(nil)
