package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systemsbiology/sbeams-core"
	"github.com/systemsbiology/sbeams-core/internal/cli"
	"github.com/systemsbiology/sbeams-core/pkg/driverfile"
	"github.com/systemsbiology/sbeams-core/pkg/registry"
	"github.com/systemsbiology/sbeams-core/pkg/sqlgen"
)

func testSnapshot() *registry.Snapshot {
	return registry.NewSnapshot(
		[]registry.TableDescriptor{
			{Name: "MA_array", TableGroup: "MicroarrayCore", PKColumn: "array_id"},
			{Name: "MA_slide_type", TableGroup: "MicroarrayCore", PKColumn: "slide_type_id"},
		},
		[]registry.ColumnDescriptor{
			{Table: "MA_array", Number: 1, Name: "array_id", DataType: "int", AutoIncrement: true},
			{Table: "MA_array", Number: 2, Name: "array_name", DataType: "varchar", KeyField: true, Required: true},
			{Table: "MA_array", Number: 3, Name: "slide_type_id", DataType: "int", FKTable: "MA_slide_type", FKColumn: "slide_type_id"},
			{Table: "MA_array", Number: 4, Name: "comment", DataType: "text", Display: registry.DisplayMedium},
			{Table: "MA_slide_type", Number: 1, Name: "slide_type_id", DataType: "int", AutoIncrement: true},
		},
	)
}

func TestRunCheck(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "Microarray_table_property.txt")
	require.NoError(t, os.WriteFile(good, []byte("MA_array\tArrays\tMicroarrayCore\tYES\t\tarray_id\t\t\t\t\n"), 0o644))

	t.Run("valid file", func(t *testing.T) {
		var out bytes.Buffer
		cmd := checkCmd
		cmd.SetOut(&out)
		err := runCheck(cmd, []string{good}, driverfile.HeaderAuto)
		require.NoError(t, err)
		assert.Contains(t, out.String(), "1 row(s), 0 rejected")
	})

	t.Run("rejected row", func(t *testing.T) {
		bad := filepath.Join(dir, "Broken_table_property.txt")
		require.NoError(t, os.WriteFile(bad, []byte("MA_array\tArrays\n"), 0o644))

		var out bytes.Buffer
		cmd := checkCmd
		cmd.SetOut(&out)
		err := runCheck(cmd, []string{bad}, driverfile.HeaderAuto)
		require.Error(t, err)
		assert.Equal(t, cli.ExitParse, cli.ExitCode(err))
		assert.Contains(t, out.String(), "MalformedRow")
	})

	t.Run("unknown kind", func(t *testing.T) {
		other := filepath.Join(dir, "notes.txt")
		require.NoError(t, os.WriteFile(other, []byte("hello\n"), 0o644))

		cmd := checkCmd
		cmd.SetOut(&bytes.Buffer{})
		err := runCheck(cmd, []string{other}, driverfile.HeaderAuto)
		require.Error(t, err)
		assert.Equal(t, cli.ExitParse, cli.ExitCode(err))
	})
}

func TestDriverFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"B_table_property.txt", "A_table_column.txt", "README.md"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "old"), 0o755))

	paths, err := driverFiles(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "A_table_column.txt"),
		filepath.Join(dir, "B_table_property.txt"),
	}, paths)

	_, err = driverFiles(filepath.Join(dir, "missing"))
	assert.Equal(t, cli.ExitConfig, cli.ExitCode(err))
}

func TestRunDescribe(t *testing.T) {
	snap := testSnapshot()

	t.Run("text", func(t *testing.T) {
		describeOutput, describeDetail, describeForm = "text", "", false
		var out bytes.Buffer
		require.NoError(t, runDescribe(&out, snap, "MA_array"))
		s := out.String()
		assert.Contains(t, s, "Table group:  MicroarrayCore")
		assert.Contains(t, s, "MA_slide_type.slide_type_id")
		assert.Less(t, strings.Index(s, "array_name"), strings.Index(s, "comment"))
	})

	t.Run("brief detail hides medium columns", func(t *testing.T) {
		describeOutput, describeDetail, describeForm = "yaml", "brief", false
		t.Cleanup(func() { describeDetail = "" })
		var out bytes.Buffer
		require.NoError(t, runDescribe(&out, snap, "MA_array"))
		assert.Contains(t, out.String(), "physical_table: MA_array")
		assert.NotContains(t, out.String(), "column_name: comment")
	})

	t.Run("unknown table", func(t *testing.T) {
		describeOutput = "text"
		err := runDescribe(&bytes.Buffer{}, snap, "MA_nothing")
		require.Error(t, err)
		assert.ErrorIs(t, err, registry.ErrTableNotFound)
	})

	t.Run("unknown format", func(t *testing.T) {
		describeOutput = "xml"
		t.Cleanup(func() { describeOutput = "text" })
		err := runDescribe(&bytes.Buffer{}, snap, "MA_array")
		assert.Equal(t, cli.ExitConfig, cli.ExitCode(err))
	})
}

func TestRunDDL(t *testing.T) {
	ddlKeyCheck, ddlNoFKs, ddlAllTables = true, false, false
	t.Cleanup(func() { ddlKeyCheck = false })

	var out bytes.Buffer
	require.NoError(t, runDDL(&out, testSnapshot(), []string{"MA_array", "MA_slide_type"}, sqlgen.Postgres))
	s := out.String()
	assert.Contains(t, s, `CREATE TABLE "MA_array"`)
	assert.Contains(t, s, "FOREIGN KEY")
	assert.Contains(t, s, "-- key check (array_name)")
	assert.Contains(t, s, "-- MA_slide_type has no key fields")
}

func TestRunAccess(t *testing.T) {
	grants := sbeams.NewStaticGrants(
		[]sbeams.Grant{{WorkGroup: "Array_user", TableGroup: "MicroarrayCore", Level: sbeams.PrivilegeDataGroupModifier}},
		[]sbeams.Membership{{User: "edeutsch", WorkGroup: "Array_user"}},
	)
	r := sbeams.NewResolver(grants)
	p := sbeams.NewPrincipal("edeutsch", "Array_user")
	ctx := context.Background()

	t.Run("privilege only", func(t *testing.T) {
		accessStatus, accessCreatedBy, accessModifiedBy, accessOwnerGroup = "", "", "", ""
		var out bytes.Buffer
		require.NoError(t, runAccess(ctx, &out, r, p, "MicroarrayCore"))
		assert.Contains(t, out.String(), "Privilege:   data_groupmodifier")
		assert.Contains(t, out.String(), "Insert:      allowed")
		assert.NotContains(t, out.String(), "Write")
	})

	t.Run("owned normal record", func(t *testing.T) {
		accessStatus, accessCreatedBy, accessModifiedBy, accessOwnerGroup = "N", "kdeutsch", "kdeutsch", "Array_user"
		t.Cleanup(func() { accessStatus, accessCreatedBy, accessModifiedBy, accessOwnerGroup = "", "", "", "" })
		var out bytes.Buffer
		require.NoError(t, runAccess(ctx, &out, r, p, "MicroarrayCore"))
		assert.Contains(t, out.String(), "allowed ("+string(sbeams.ReasonGroupModifier)+")")
	})

	t.Run("locked record", func(t *testing.T) {
		accessStatus, accessModifiedBy, accessCreatedBy, accessOwnerGroup = "L", "kdeutsch", "kdeutsch", "Array_user"
		t.Cleanup(func() { accessStatus, accessCreatedBy, accessModifiedBy, accessOwnerGroup = "", "", "", "" })
		var out bytes.Buffer
		require.NoError(t, runAccess(ctx, &out, r, p, "MicroarrayCore"))
		assert.Contains(t, out.String(), "denied ("+string(sbeams.ReasonLocked)+")")
	})
}
