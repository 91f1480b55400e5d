package driverfile

import (
	"errors"
	"fmt"
)

// ErrUnknownKind is returned when a file name matches no driver table kind.
var ErrUnknownKind = errors.New("driverfile: cannot determine driver table kind")

// IsUnknownKindErr returns true if err is or wraps ErrUnknownKind.
func IsUnknownKindErr(err error) bool {
	return errors.Is(err, ErrUnknownKind)
}

// ErrorKind classifies a RowError.
type ErrorKind int

const (
	// MalformedRow: the row has the wrong number of fields. The row is skipped.
	MalformedRow ErrorKind = iota + 1

	// MissingField: a key field is empty. The row is skipped.
	MissingField

	// InvalidValue: a field is not a number, flag or enum value it should
	// be. The row is skipped.
	InvalidValue

	// DanglingReference: table_group or fk_table names nothing known. The
	// row is still stored.
	DanglingReference
)

// String returns the kind name.
func (k ErrorKind) String() string {
	switch k {
	case MalformedRow:
		return "MalformedRow"
	case MissingField:
		return "MissingField"
	case InvalidValue:
		return "InvalidValue"
	case DanglingReference:
		return "DanglingReference"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// RowError describes one problem with one line of a driver file.
type RowError struct {
	Source string    `json:"source,omitempty"`
	Line   int       `json:"line"`
	Kind   ErrorKind `json:"kind"`
	Table  string    `json:"table_name,omitempty"`
	Column string    `json:"column_name,omitempty"`
	Field  string    `json:"field,omitempty"`
	Msg    string    `json:"message"`
}

func (e RowError) Error() string {
	loc := fmt.Sprintf("line %d", e.Line)
	if e.Source != "" {
		loc = e.Source + ":" + fmt.Sprint(e.Line)
	}
	if e.Field != "" {
		return fmt.Sprintf("%s: %s: %s: %s", loc, e.Kind, e.Field, e.Msg)
	}
	return fmt.Sprintf("%s: %s: %s", loc, e.Kind, e.Msg)
}

// Fatal reports whether the row was skipped because of the error.
func (e RowError) Fatal() bool {
	return e.Kind != DanglingReference
}
