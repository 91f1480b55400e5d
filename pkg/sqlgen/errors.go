package sqlgen

import "errors"

var (
	// ErrNoKeyColumns is returned by KeyCheckQuery for a table with no
	// is_key_field columns.
	ErrNoKeyColumns = errors.New("sqlgen: table has no key columns")

	// ErrNoColumns is returned by CreateTable for a table with no columns.
	ErrNoColumns = errors.New("sqlgen: table has no columns")

	// ErrUnknownDialect is returned for an unsupported database driver name.
	ErrUnknownDialect = errors.New("sqlgen: unknown dialect")
)

// IsNoKeyColumnsErr returns true if err is or wraps ErrNoKeyColumns.
func IsNoKeyColumnsErr(err error) bool {
	return errors.Is(err, ErrNoKeyColumns)
}
