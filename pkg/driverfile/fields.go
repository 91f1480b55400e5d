package driverfile

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/systemsbiology/sbeams-core/pkg/registry"
)

// table_property positions.
const (
	tpTableName = iota
	tpCategory
	tpTableGroup
	tpManageAllowed
	tpDBTableName
	tpPKColumn
	tpMultiInsert
	tpTableURL
	tpManageTables
	tpNextStep
)

// table_column positions.
const (
	tcTableName = iota
	tcColumnNumber
	tcColumnName
	tcColumnTitle
	tcDataType
	tcScale
	tcPrecision
	tcNullable
	tcDefault
	tcAutoInc
	tcFKTable
	tcFKColumn
	tcRequired
	tcInputType
	tcInputLength
	tcOnChange
	tcIsData
	tcDisplayed
	tcKeyField
	tcColumnText
	tcOptionListQuery
	tcURL
)

func tableFromFields(f []string, base RowError) (registry.TableDescriptor, []RowError) {
	t := registry.TableDescriptor{
		Name:              f[tpTableName],
		Category:          f[tpCategory],
		TableGroup:        f[tpTableGroup],
		ManageAllowed:     strings.EqualFold(f[tpManageAllowed], "YES"),
		PhysicalTable:     f[tpDBTableName],
		PKColumn:          f[tpPKColumn],
		MultiInsertColumn: f[tpMultiInsert],
		URL:               f[tpTableURL],
		ManageTables:      splitList(f[tpManageTables]),
		NextSteps:         splitList(f[tpNextStep]),
	}
	return t, validateRow(&t, base)
}

func columnFromFields(f []string, base RowError) (registry.ColumnDescriptor, []RowError) {
	base.Column = f[tcColumnName]
	var errs []RowError
	fail := func(kind ErrorKind, field, format string, args ...any) {
		re := base
		re.Kind = kind
		re.Field = field
		re.Msg = fmt.Sprintf(format, args...)
		errs = append(errs, re)
	}

	c := registry.ColumnDescriptor{
		Table:           f[tcTableName],
		Name:            f[tcColumnName],
		Title:           f[tcColumnTitle],
		DataType:        f[tcDataType],
		Default:         f[tcDefault],
		FKTable:         f[tcFKTable],
		FKColumn:        f[tcFKColumn],
		InputType:       registry.InputType(strings.ToLower(f[tcInputType])),
		OnChange:        f[tcOnChange],
		Display:         registry.DisplayMode(strings.ToUpper(f[tcDisplayed])),
		Text:            f[tcColumnText],
		OptionListQuery: f[tcOptionListQuery],
		URLMode:         registry.URLMode(f[tcURL]),
	}

	if f[tcColumnNumber] == "" {
		fail(MissingField, "column_number", "value is required")
	} else if n, err := strconv.Atoi(f[tcColumnNumber]); err != nil {
		fail(InvalidValue, "column_number", "%q is not an integer", f[tcColumnNumber])
	} else {
		c.Number = n
	}

	ints := []struct {
		pos   int
		field string
		dst   **int
	}{
		{tcScale, "scale", &c.Scale},
		{tcPrecision, "precision", &c.Precision},
		{tcInputLength, "input_length", &c.InputLength},
	}
	for _, in := range ints {
		n, ok, err := optionalInt(f[in.pos])
		if err != nil {
			fail(InvalidValue, in.field, "%q is not an integer", f[in.pos])
			continue
		}
		if ok {
			*in.dst = &n
		}
	}

	flags := []struct {
		pos   int
		field string
		dst   *bool
	}{
		{tcNullable, "nullable", &c.Nullable},
		{tcAutoInc, "is_auto_inc", &c.AutoIncrement},
		{tcRequired, "is_required", &c.Required},
		{tcIsData, "is_data", &c.IsData},
		{tcKeyField, "is_key_field", &c.KeyField},
	}
	for _, fl := range flags {
		v, err := parseFlag(f[fl.pos])
		if err != nil {
			fail(InvalidValue, fl.field, "%v", err)
			continue
		}
		*fl.dst = v
	}

	errs = append(errs, validateRow(&c, base)...)
	return c, errs
}

// optionalInt parses an integer field; empty means not set.
func optionalInt(s string) (int, bool, error) {
	if s == "" {
		return 0, false, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false, err
	}
	return n, true, nil
}

// parseFlag reads a Y/N column. Empty is false.
func parseFlag(s string) (bool, error) {
	switch strings.ToUpper(s) {
	case "", "N", "NO", "0", "FALSE":
		return false, nil
	case "Y", "YES", "1", "TRUE":
		return true, nil
	}
	return false, fmt.Errorf("%q is not Y or N", s)
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
