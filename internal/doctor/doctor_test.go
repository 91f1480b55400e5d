package doctor

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systemsbiology/sbeams-core/pkg/loader"
	"github.com/systemsbiology/sbeams-core/pkg/registry"
	"github.com/systemsbiology/sbeams-core/pkg/store"
)

func findCheck(t *testing.T, r *Report, category, name string) CheckResult {
	t.Helper()
	for _, c := range r.Checks {
		if c.Category == category && c.Name == name {
			return c
		}
	}
	t.Fatalf("check %s/%s not found", category, name)
	return CheckResult{}
}

func columnLine(table, number, name string, set map[int]string) string {
	f := make([]string, 22)
	f[0], f[1], f[2] = table, number, name
	for i, v := range set {
		f[i] = v
	}
	return strings.Join(f, "\t")
}

func TestDoctor_HealthyRegistry(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	st := store.NewMemory()
	st.AddTableGroups("MicroarrayCore")

	cols := filepath.Join(dir, "Microarray_table_column.txt")
	tables := filepath.Join(dir, "Microarray_table_property.txt")
	keyField := map[int]string{18: "Y"}
	require.NoError(t, os.WriteFile(cols, []byte(columnLine("MA_array", "1", "array_id", keyField)+"\n"), 0o644))
	require.NoError(t, os.WriteFile(tables, []byte("MA_array\tArrays\tMicroarrayCore\tYES\t\tarray_id\t\t\t\t\n"), 0o644))

	for _, p := range []string{cols, tables} {
		_, err := loader.LoadFile(ctx, st, p, loader.Options{})
		require.NoError(t, err)
	}

	report, err := New(st, WithConfDir(dir)).Run(ctx)
	require.NoError(t, err)
	assert.False(t, report.HasErrors())
	assert.Equal(t, StatusPass, findCheck(t, report, "Registry", "columns").Status)
	assert.Equal(t, StatusPass, findCheck(t, report, "Registry", "primary_keys").Status)
	assert.Equal(t, StatusPass, findCheck(t, report, "References", "table_groups").Status)
	assert.Equal(t, StatusPass, findCheck(t, report, "Load History", "current").Status)
}

func TestDoctor_Problems(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	st := store.NewMemory()

	require.NoError(t, st.Atomic(ctx, func(tx store.Tx) error {
		for _, td := range []registry.TableDescriptor{
			{Name: "MA_array", TableGroup: "MicroarrayCore", PKColumn: "array_pk", PhysicalTable: "$TBMA_ARRAY"},
			{Name: "MA_empty", TableGroup: "MicroarrayCore"},
		} {
			if _, err := tx.UpsertTable(ctx, td); err != nil {
				return err
			}
		}
		for _, c := range []registry.ColumnDescriptor{
			{Table: "MA_array", Number: 1, Name: "array_id", FKTable: "MA_protocol", FKColumn: "protocol_id"},
			{Table: "MA_array", Number: 1, Name: "array_name"},
			{Table: "MA_ghost", Number: 1, Name: "ghost_id"},
		} {
			if _, err := tx.UpsertColumn(ctx, c); err != nil {
				return err
			}
		}
		return nil
	}))

	short := "MA_array\t2\tarray_name\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Microarray_table_column.txt"),
		[]byte(columnLine("MA_array", "1", "array_id", nil)+"\n"+short), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.txt"), []byte("ignored"), 0o644))

	d := New(st, WithConfDir(dir), WithTableVars(map[string]string{"TBMA_OTHER": "x"}))
	report, err := d.Run(ctx)
	require.NoError(t, err)
	assert.True(t, report.HasErrors())

	parse := findCheck(t, report, "Driver Files", "parse")
	assert.Equal(t, StatusWarn, parse.Status)
	assert.Contains(t, parse.Message, "1 of 2 rows rejected")

	empty := findCheck(t, report, "Registry", "columns")
	assert.Equal(t, StatusFail, empty.Status)
	assert.Equal(t, "MA_empty", empty.Details)

	assert.Equal(t, "MA_ghost", findCheck(t, report, "Registry", "orphans").Details)
	assert.Equal(t, "MA_array: array_pk", findCheck(t, report, "Registry", "primary_keys").Details)
	assert.Equal(t, "MA_array: column 1 (array_id, array_name)", findCheck(t, report, "Registry", "column_numbers").Details)
	assert.Equal(t, StatusFail, findCheck(t, report, "Registry", "table_vars").Status)
	assert.Equal(t, "MicroarrayCore", findCheck(t, report, "References", "table_groups").Details)
	assert.Equal(t, "MA_array.array_id -> MA_protocol", findCheck(t, report, "References", "foreign_keys").Details)
	assert.Equal(t, StatusWarn, findCheck(t, report, "Load History", "loaded").Status)

	var buf bytes.Buffer
	report.Print(&buf, true)
	out := buf.String()
	assert.Contains(t, out, "Registry\n")
	assert.Contains(t, out, "Fix: Load the MODULE_table_column file before the table property file")
	assert.Contains(t, out, "Summary:")
}

func TestDoctor_MissingConfDir(t *testing.T) {
	report, err := New(store.NewMemory(), WithConfDir(filepath.Join(t.TempDir(), "nope"))).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusFail, findCheck(t, report, "Driver Files", "conf_dir").Status)
}

func TestTruncate(t *testing.T) {
	items := make([]string, maxDetails+3)
	for i := range items {
		items[i] = "x"
	}
	assert.True(t, strings.HasSuffix(truncate(items), "... and 3 more"))
	assert.Equal(t, "a\nb", truncate([]string{"a", "b"}))
}
