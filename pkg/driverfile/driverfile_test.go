package driverfile_test

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx"

	"github.com/systemsbiology/sbeams-core/pkg/driverfile"
	"github.com/systemsbiology/sbeams-core/pkg/registry"
)

// columnLine builds a 22-field table_column line.
func columnLine(table string, number, name string, overrides map[int]string) string {
	f := make([]string, 22)
	f[0], f[1], f[2] = table, number, name
	f[3] = strings.ToUpper(name[:1]) + name[1:]
	f[4] = "int"
	f[7] = "N"
	f[13] = "text"
	f[16] = "Y"
	f[17] = "Y"
	for i, v := range overrides {
		f[i] = v
	}
	return strings.Join(f, "\t")
}

func tableLine(fields ...string) string {
	f := make([]string, 10)
	copy(f, fields)
	return strings.Join(f, "\t")
}

func TestParse_TableProperty(t *testing.T) {
	content := strings.Join([]string{
		"table_name\tCategory\ttable_group\tmanage_table_allowed\tdb_table_name\tPK_column_name\tmulti_insert_column\ttable_url\tmanage_tables\tnext_step",
		tableLine("MA_array", "Arrays", "MicroarrayCore", "YES", "$TBMA_ARRAY", "array_id", "", "ManageTable.cgi?TABLE_NAME=MA_array", "MA_array, MA_array_layout", "MA_array_scan"),
		"",
		tableLine("MA_slide_type", "Slide Types", "MicroarrayCore", "NO", "$TBMA_SLIDE_TYPE", "slide_type_id"),
	}, "\r\n")

	b, err := driverfile.ParseString(content, registry.KindTableProperty, driverfile.Options{Source: "Microarray_table_property.txt"})
	require.NoError(t, err)
	require.Empty(t, b.Errors)
	require.Len(t, b.Tables, 2)
	assert.Equal(t, 2, b.Lines)

	arr := b.Tables[0]
	assert.Equal(t, 2, arr.Line)
	assert.Equal(t, "MA_array", arr.Name)
	assert.True(t, arr.ManageAllowed)
	assert.Equal(t, "$TBMA_ARRAY", arr.PhysicalTable)
	assert.Equal(t, []string{"MA_array", "MA_array_layout"}, arr.ManageTables)
	assert.Equal(t, []string{"MA_array_scan"}, arr.NextSteps)

	slide := b.Tables[1]
	assert.Equal(t, 4, slide.Line)
	assert.False(t, slide.ManageAllowed)
	assert.Empty(t, slide.NextSteps)
	assert.Empty(t, slide.MultiInsertColumn)
}

func TestParse_MalformedRowFourOfColumnFile(t *testing.T) {
	short := strings.Join(strings.Split(columnLine("MA_array", "4", "layout_id", nil), "\t")[:10], "\t")
	lines := []string{
		columnLine("MA_array", "1", "array_id", map[int]string{9: "Y"}),
		columnLine("MA_array", "2", "array_name", nil),
		columnLine("MA_array", "3", "slide_type_id", map[int]string{10: "MA_slide_type", 11: "slide_type_id"}),
		short,
		columnLine("MA_array", "5", "comment", nil),
		columnLine("MA_array", "6", "record_status", map[int]string{16: "N", 17: "N"}),
	}

	b, err := driverfile.ParseString(strings.Join(lines, "\n")+"\n", registry.KindColumnProperty, driverfile.Options{})
	require.NoError(t, err)

	require.Len(t, b.Errors, 1)
	re := b.Errors[0]
	assert.Equal(t, driverfile.MalformedRow, re.Kind)
	assert.Equal(t, 4, re.Line)
	assert.Equal(t, "MA_array", re.Table)
	assert.Equal(t, "layout_id", re.Column)
	assert.True(t, re.Fatal())

	require.Len(t, b.Columns, 5)
	var got []int
	for _, c := range b.Columns {
		got = append(got, c.Line)
	}
	assert.Equal(t, []int{1, 2, 3, 5, 6}, got)
	assert.Equal(t, 6, b.Lines)
	assert.Equal(t, 1, b.Count(driverfile.MalformedRow))
}

func TestParse_ExtraFields(t *testing.T) {
	line := columnLine("MA_array", "1", "array_id", nil)
	content := line + "\t\t\n" + line + "\tstray\n"

	b, err := driverfile.ParseString(content, registry.KindColumnProperty, driverfile.Options{})
	require.NoError(t, err)
	require.Len(t, b.Columns, 1, "empty extra fields are tolerated")
	require.Len(t, b.Errors, 1)
	assert.Equal(t, driverfile.MalformedRow, b.Errors[0].Kind)
	assert.Equal(t, 2, b.Errors[0].Line)
}

func TestParse_ColumnValues(t *testing.T) {
	line := columnLine("MA_array", "3", "slide_type_id", map[int]string{
		5:  "8",
		6:  "",
		8:  "1",
		10: "MA_slide_type",
		11: "slide_type_id",
		12: "y",
		13: "OptionList",
		14: "20",
		17: "p",
		18: "Y",
		19: "Type of slide",
		20: `"SELECT slide_type_id, name FROM $TBMA_SLIDE_TYPE ORDER BY name"`,
		21: "pkDEFAULT",
	})
	b, err := driverfile.ParseString(line, registry.KindColumnProperty, driverfile.Options{Header: driverfile.HeaderNone})
	require.NoError(t, err)
	require.Empty(t, b.Errors)
	require.Len(t, b.Columns, 1)

	c := b.Columns[0]
	assert.Equal(t, 3, c.Number)
	require.NotNil(t, c.Scale)
	assert.Equal(t, 8, *c.Scale)
	assert.Nil(t, c.Precision, "empty field is not set")
	assert.Equal(t, "1", c.Default)
	assert.True(t, c.Required)
	assert.Equal(t, registry.InputOptionList, c.InputType)
	require.NotNil(t, c.InputLength)
	assert.Equal(t, 20, *c.InputLength)
	assert.Equal(t, registry.DisplayPrivate, c.Display)
	assert.True(t, c.KeyField)
	assert.True(t, c.IsData)
	assert.Equal(t, "SELECT slide_type_id, name FROM $TBMA_SLIDE_TYPE ORDER BY name", c.OptionListQuery)
	assert.Equal(t, registry.URLPKDefault, c.URLMode)
}

func TestParse_RowErrors(t *testing.T) {
	tests := []struct {
		name  string
		line  string
		kind  driverfile.ErrorKind
		field string
	}{
		{"missing table name", columnLine("", "1", "array_id", nil), driverfile.MissingField, "table_name"},
		{"missing column number", columnLine("MA_array", "", "array_id", nil), driverfile.MissingField, "column_number"},
		{"missing column name", columnLine("MA_array", "1", "x", map[int]string{2: ""}), driverfile.MissingField, "column_name"},
		{"non-integer column number", columnLine("MA_array", "one", "array_id", nil), driverfile.InvalidValue, "column_number"},
		{"non-integer scale", columnLine("MA_array", "1", "array_id", map[int]string{5: "wide"}), driverfile.InvalidValue, "scale"},
		{"bad flag", columnLine("MA_array", "1", "array_id", map[int]string{12: "maybe"}), driverfile.InvalidValue, "is_required"},
		{"bad input type", columnLine("MA_array", "1", "array_id", map[int]string{13: "checkbox"}), driverfile.InvalidValue, "input_type"},
		{"bad display mode", columnLine("MA_array", "1", "array_id", map[int]string{17: "X"}), driverfile.InvalidValue, "is_displayed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := driverfile.ParseString(tt.line, registry.KindColumnProperty, driverfile.Options{Header: driverfile.HeaderNone})
			require.NoError(t, err)
			assert.Empty(t, b.Columns)
			require.NotEmpty(t, b.Errors)
			assert.Equal(t, tt.kind, b.Errors[0].Kind)
			assert.Equal(t, tt.field, b.Errors[0].Field)
			assert.Equal(t, 1, b.Errors[0].Line)
		})
	}
}

func TestParse_ForeignKeyTableWithoutColumn(t *testing.T) {
	line := columnLine("MA_array", "3", "slide_type_id", map[int]string{10: "MA_slide_type"})
	b, err := driverfile.ParseString(line, registry.KindColumnProperty, driverfile.Options{Header: driverfile.HeaderNone})
	require.NoError(t, err)
	assert.Empty(t, b.Errors)
	require.Len(t, b.Columns, 1)
	assert.Equal(t, "MA_slide_type", b.Columns[0].FKTable)
	assert.Empty(t, b.Columns[0].FKColumn)
}

func TestParse_HeaderModes(t *testing.T) {
	header := tableLine("table_name", "Category", "table_group")
	row := tableLine("MA_array", "Arrays", "MicroarrayCore")

	b, err := driverfile.ParseString(header+"\n"+row, registry.KindTableProperty, driverfile.Options{})
	require.NoError(t, err)
	assert.Len(t, b.Tables, 1)
	assert.Empty(t, b.Errors)

	b, err = driverfile.ParseString(row+"\n"+row, registry.KindTableProperty, driverfile.Options{})
	require.NoError(t, err)
	assert.Len(t, b.Tables, 2, "auto mode keeps a first line that is not a header")

	b, err = driverfile.ParseString(row+"\n"+row, registry.KindTableProperty, driverfile.Options{Header: driverfile.HeaderPresent})
	require.NoError(t, err)
	assert.Len(t, b.Tables, 1)

	b, err = driverfile.ParseString(header+"\n"+row, registry.KindTableProperty, driverfile.Options{Header: driverfile.HeaderNone})
	require.NoError(t, err)
	assert.Len(t, b.Tables, 2, "header parsed as a table named table_name")
}

func TestParse_UnknownKind(t *testing.T) {
	_, err := driverfile.ParseString("x", registry.Kind(0), driverfile.Options{})
	assert.True(t, driverfile.IsUnknownKindErr(err))
}

func TestRowError_Error(t *testing.T) {
	re := driverfile.RowError{Source: "a.txt", Line: 4, Kind: driverfile.InvalidValue, Field: "scale", Msg: `"x" is not an integer`}
	assert.Equal(t, `a.txt:4: InvalidValue: scale: "x" is not an integer`, re.Error())

	re = driverfile.RowError{Line: 2, Kind: driverfile.DanglingReference, Msg: "unknown table group"}
	assert.Equal(t, "line 2: DanglingReference: unknown table group", re.Error())
	assert.False(t, re.Fatal())
}

func TestDetectKind(t *testing.T) {
	tests := []struct {
		path   string
		kind   registry.Kind
		manual bool
	}{
		{"lib/conf/Proteomics/Proteomics_table_property.txt", registry.KindTableProperty, false},
		{"Proteomics_table_column.txt", registry.KindColumnProperty, false},
		{"Proteomics_column_property.txt", registry.KindColumnProperty, false},
		{"Proteomics_column_property_MANUAL.txt", registry.KindColumnProperty, true},
		{"Microarray_table_column.xlsx", registry.KindColumnProperty, false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			k, err := driverfile.DetectKind(tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.kind, k)
			assert.Equal(t, tt.manual, driverfile.IsManual(tt.path))
		})
	}

	_, err := driverfile.DetectKind("README.txt")
	assert.True(t, driverfile.IsUnknownKindErr(err))
}

func TestParseXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Microarray_table_column.xlsx")

	wb := xlsx.NewFile()
	sheet, err := wb.AddSheet("Sheet1")
	require.NoError(t, err)
	addRow := func(cells ...string) {
		row := sheet.AddRow()
		for _, v := range cells {
			row.AddCell().Value = v
		}
	}
	addRow("table_name", "column_number", "column_name")
	addRow("MA_array", "1", "array_id", "Array ID", "int")
	addRow("MA_array", "2", "array_name", "Name", "varchar", "50", "", "N", "", "N", "", "", "Y", "text", "", "", "Y", "Y", "Y")
	addRow("MA_array", "two", "bad")
	require.NoError(t, wb.Save(path))

	assert.True(t, driverfile.IsSpreadsheet(path))

	b, err := driverfile.ParseXLSX(path, registry.KindColumnProperty, driverfile.Options{})
	require.NoError(t, err)
	assert.Equal(t, "Microarray_table_column.xlsx", b.Source)
	require.Len(t, b.Columns, 2)
	assert.Equal(t, 2, b.Columns[0].Line)
	assert.Equal(t, "array_name", b.Columns[1].Name)
	assert.True(t, b.Columns[1].KeyField)
	require.Len(t, b.Errors, 1)
	assert.Equal(t, driverfile.InvalidValue, b.Errors[0].Kind)
	assert.Equal(t, 4, b.Errors[0].Line)
}
