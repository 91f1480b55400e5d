// Package store defines the persistence contract for driver table
// descriptors and provides an in-memory implementation.
//
// Reads go through Reader. All writes go through Atomic, which hands the
// callback a Tx and commits only if the callback returns nil, so a load is
// visible either entirely or not at all.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/systemsbiology/sbeams-core/pkg/registry"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("store: not found")

// IsNotFoundErr returns true if err is or wraps ErrNotFound.
func IsNotFoundErr(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// Reader reads descriptor rows.
type Reader interface {
	// GetTable returns the table_property row for name or ErrNotFound.
	GetTable(ctx context.Context, name string) (registry.TableDescriptor, error)

	// ListTables returns every table_property row sorted by name.
	ListTables(ctx context.Context) ([]registry.TableDescriptor, error)

	// ListColumns returns the columns of table in render order.
	ListColumns(ctx context.Context, table string) ([]registry.ColumnDescriptor, error)

	// ListAllColumns returns every table_column row, including rows whose
	// table has no table_property row.
	ListAllColumns(ctx context.Context) ([]registry.ColumnDescriptor, error)

	TableExists(ctx context.Context, name string) (bool, error)

	// TableGroupExists reports whether group is a known security domain.
	TableGroupExists(ctx context.Context, group string) (bool, error)
}

// Writer writes descriptor rows by natural key.
type Writer interface {
	// UpsertTable inserts or replaces the row keyed by t.Name.
	UpsertTable(ctx context.Context, t registry.TableDescriptor) (inserted bool, err error)

	// UpsertColumn inserts or replaces the row keyed by (c.Table, c.Name).
	UpsertColumn(ctx context.Context, c registry.ColumnDescriptor) (inserted bool, err error)

	DeleteColumn(ctx context.Context, table, column string) error
}

// Tx is the view of a store inside Atomic.
type Tx interface {
	Reader
	Writer
}

// Store is a descriptor store.
type Store interface {
	Reader

	// Atomic runs fn in a transaction. If fn returns an error nothing it
	// wrote is kept.
	Atomic(ctx context.Context, fn func(Tx) error) error
}

// LoadRecord is one entry of the driver table load history.
type LoadRecord struct {
	ID       uuid.UUID     `json:"id"`
	File     string        `json:"file"`
	Kind     registry.Kind `json:"kind"`
	Checksum string        `json:"checksum"`
	Inserted int           `json:"inserted"`
	Updated  int           `json:"updated"`
	Deleted  int           `json:"deleted"`
	Errors   int           `json:"errors"`
	LoadedAt time.Time     `json:"loaded_at"`
}

// History records completed loads so unchanged files can be skipped.
type History interface {
	RecordLoad(ctx context.Context, rec LoadRecord) error

	// LastLoad returns the most recent load of file or ErrNotFound.
	LastLoad(ctx context.Context, file string) (LoadRecord, error)

	// Loads returns the most recent load of every file, newest first.
	Loads(ctx context.Context) ([]LoadRecord, error)
}
