package registry

import "errors"

var (
	// ErrTableNotFound is returned when a table name has no table_property row.
	ErrTableNotFound = errors.New("registry: table not found")

	// ErrUnresolvedTableVar is returned when a db_table_name names a
	// $TB variable with no configured value.
	ErrUnresolvedTableVar = errors.New("registry: unresolved table variable")
)

// IsTableNotFoundErr returns true if err is or wraps ErrTableNotFound.
func IsTableNotFoundErr(err error) bool {
	return errors.Is(err, ErrTableNotFound)
}

// IsUnresolvedTableVarErr returns true if err is or wraps ErrUnresolvedTableVar.
func IsUnresolvedTableVarErr(err error) bool {
	return errors.Is(err, ErrUnresolvedTableVar)
}
