package registry

import (
	"fmt"
	"strings"
)

// Kind identifies which driver table a file or row describes.
type Kind int

const (
	// KindTableProperty rows describe tables (table_property, fields A-J).
	KindTableProperty Kind = iota + 1

	// KindColumnProperty rows describe columns (table_column, fields A-V).
	KindColumnProperty
)

// String returns the driver table name for the kind.
func (k Kind) String() string {
	switch k {
	case KindTableProperty:
		return "table_property"
	case KindColumnProperty:
		return "table_column"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// FieldCount returns the number of positional fields a row of this kind has.
func (k Kind) FieldCount() int {
	switch k {
	case KindTableProperty:
		return 10
	case KindColumnProperty:
		return 22
	default:
		return 0
	}
}

// ParseKind accepts "table_property"/"table" or "table_column"/"column_property"/"column".
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "table_property", "table", "tables":
		return KindTableProperty, nil
	case "table_column", "column_property", "column", "columns":
		return KindColumnProperty, nil
	}
	return 0, fmt.Errorf("unknown driver table kind %q", s)
}

// InputType is the form widget used to edit a column.
type InputType string

const (
	InputText             InputType = "text"
	InputTextArea         InputType = "textarea"
	InputTextDate         InputType = "textdate"
	InputOptionList       InputType = "optionlist"
	InputMultiOptionList  InputType = "multioptionlist"
	InputScrollOptionList InputType = "scrolloptionlist"
	InputFile             InputType = "file"
	InputFixed            InputType = "fixed"
)

var inputTypes = map[InputType]bool{
	InputText:             true,
	InputTextArea:         true,
	InputTextDate:         true,
	InputOptionList:       true,
	InputMultiOptionList:  true,
	InputScrollOptionList: true,
	InputFile:             true,
	InputFixed:            true,
}

// Valid reports whether t is unset or one of the known widget kinds.
func (t InputType) Valid() bool {
	return t == "" || inputTypes[t]
}

// IsSelect reports whether the widget is populated by an option list query.
func (t InputType) IsSelect() bool {
	return t == InputOptionList || t == InputMultiOptionList || t == InputScrollOptionList
}

// DisplayMode controls whether a column appears in view mode.
type DisplayMode string

const (
	// DisplayAlways columns are shown in every view.
	DisplayAlways DisplayMode = "Y"

	// DisplayNever columns are not shown.
	DisplayNever DisplayMode = "N"

	// DisplayPrivate columns are hidden unless the user is the owner or an admin.
	DisplayPrivate DisplayMode = "P"

	// DisplayMedium columns are shown only at medium detail or above.
	DisplayMedium DisplayMode = "2"
)

// Valid reports whether d is unset or a known display mode.
func (d DisplayMode) Valid() bool {
	switch d {
	case "", DisplayAlways, DisplayNever, DisplayPrivate, DisplayMedium:
		return true
	}
	return false
}

// URLMode describes the link attached to a column's value in result tables.
// Values other than the two named modes are literal URL templates.
type URLMode string

const (
	URLNone      URLMode = ""
	URLPKDefault URLMode = "pkDEFAULT"
	URLSelf      URLMode = "SELF"
)

// IsLiteral reports whether m is a literal URL template rather than a mode.
func (m URLMode) IsLiteral() bool {
	return m != URLNone && m != URLPKDefault && m != URLSelf
}

// TableDescriptor is one table_property row.
type TableDescriptor struct {
	Name              string   `json:"table_name" validate:"required"`
	Category          string   `json:"category,omitempty"`
	TableGroup        string   `json:"table_group,omitempty"`
	ManageAllowed     bool     `json:"manage_table_allowed"`
	PhysicalTable     string   `json:"db_table_name,omitempty"`
	PKColumn          string   `json:"pk_column_name,omitempty"`
	MultiInsertColumn string   `json:"multi_insert_column,omitempty"`
	URL               string   `json:"table_url,omitempty"`
	ManageTables      []string `json:"manage_tables,omitempty"`
	NextSteps         []string `json:"next_step,omitempty"`
}

// SecurityDomain returns the table group that access grants are expressed
// over, so a TableDescriptor can be passed directly to the resolver.
func (t TableDescriptor) SecurityDomain() string {
	return t.TableGroup
}

// ColumnDescriptor is one table_column row.
type ColumnDescriptor struct {
	Table           string      `json:"table_name" validate:"required"`
	Number          int         `json:"column_number"`
	Name            string      `json:"column_name" validate:"required"`
	Title           string      `json:"column_title,omitempty"`
	DataType        string      `json:"datatype,omitempty"`
	Scale           *int        `json:"scale,omitempty" validate:"omitempty,min=0"`
	Precision       *int        `json:"precision,omitempty" validate:"omitempty,min=0"`
	Nullable        bool        `json:"nullable"`
	Default         string      `json:"default_value,omitempty"`
	AutoIncrement   bool        `json:"is_auto_inc"`
	FKTable         string      `json:"fk_table,omitempty"`
	FKColumn        string      `json:"fk_column_name,omitempty"`
	Required        bool        `json:"is_required"`
	InputType       InputType   `json:"input_type,omitempty" validate:"inputTypeValidator"`
	InputLength     *int        `json:"input_length,omitempty" validate:"omitempty,min=0"`
	OnChange        string      `json:"onchange,omitempty"`
	IsData          bool        `json:"is_data"`
	Display         DisplayMode `json:"is_displayed,omitempty" validate:"displayModeValidator"`
	KeyField        bool        `json:"is_key_field"`
	Text            string      `json:"column_text,omitempty"`
	OptionListQuery string      `json:"optionlist_query,omitempty"`
	URLMode         URLMode     `json:"url,omitempty"`
}

// Detail is the verbosity of a view.
type Detail int

const (
	DetailBrief Detail = iota
	DetailMedium
	DetailFull
)

// ViewContext describes who is looking at a table and how much they asked for.
type ViewContext struct {
	Detail       Detail
	OwnerOrAdmin bool
}

// Visible reports whether the column is shown in view mode under vc.
// An unset display mode is treated as DisplayAlways.
func (c ColumnDescriptor) Visible(vc ViewContext) bool {
	switch c.Display {
	case "", DisplayAlways:
		return true
	case DisplayPrivate:
		return vc.OwnerOrAdmin
	case DisplayMedium:
		return vc.Detail >= DetailMedium
	default:
		return false
	}
}
