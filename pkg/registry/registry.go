// Package registry holds the driver table metadata: one TableDescriptor per
// managed table and its ColumnDescriptors in render order.
//
// A Registry serves lookups from an immutable Snapshot. Reload builds a new
// Snapshot from a Source and swaps it in atomically, so concurrent readers see
// either the old metadata or the new, never a mix. Callers that need several
// lookups to agree with each other should take one Snapshot and query it.
package registry

import (
	"cmp"
	"context"
	"fmt"
	"iter"
	"slices"
	"strings"
	"sync/atomic"
	"time"
)

// Source supplies descriptor rows to Reload. store.Reader implementations
// satisfy it.
type Source interface {
	ListTables(ctx context.Context) ([]TableDescriptor, error)
	ListAllColumns(ctx context.Context) ([]ColumnDescriptor, error)
}

// Snapshot is an immutable view of the driver tables.
type Snapshot struct {
	tables   map[string]TableDescriptor
	columns  map[string][]ColumnDescriptor
	names    []string
	vars     map[string]string
	loadedAt time.Time
}

// NewSnapshot indexes tables and columns. Columns of one table are sorted
// into render order. Columns whose table has no descriptor are kept and
// reported by Orphans.
func NewSnapshot(tables []TableDescriptor, columns []ColumnDescriptor) *Snapshot {
	s := &Snapshot{
		tables:   make(map[string]TableDescriptor, len(tables)),
		columns:  make(map[string][]ColumnDescriptor),
		loadedAt: time.Now(),
	}
	for _, t := range tables {
		if _, dup := s.tables[t.Name]; !dup {
			s.names = append(s.names, t.Name)
		}
		s.tables[t.Name] = t
	}
	slices.Sort(s.names)
	for _, c := range columns {
		s.columns[c.Table] = append(s.columns[c.Table], c)
	}
	for _, cols := range s.columns {
		SortColumns(cols)
	}
	return s
}

// SortColumns orders columns by column number, ties broken by column name.
func SortColumns(cols []ColumnDescriptor) {
	slices.SortStableFunc(cols, CompareColumns)
}

// CompareColumns is the render order comparison used by SortColumns.
func CompareColumns(a, b ColumnDescriptor) int {
	if c := cmp.Compare(a.Number, b.Number); c != 0 {
		return c
	}
	return cmp.Compare(a.Name, b.Name)
}

// LoadedAt returns when the snapshot was built.
func (s *Snapshot) LoadedAt() time.Time { return s.loadedAt }

// Len returns the number of registered tables.
func (s *Snapshot) Len() int { return len(s.tables) }

// TableNames returns the registered table names in ascending order.
func (s *Snapshot) TableNames() []string {
	return slices.Clone(s.names)
}

// DescribeTable returns the descriptor for name.
func (s *Snapshot) DescribeTable(name string) (TableDescriptor, error) {
	t, ok := s.tables[name]
	if !ok {
		return TableDescriptor{}, fmt.Errorf("%w: %s", ErrTableNotFound, name)
	}
	return t, nil
}

// DescribeColumns returns a copy of the columns of name in render order.
// A registered table with no columns yields an empty slice.
func (s *Snapshot) DescribeColumns(name string) ([]ColumnDescriptor, error) {
	if _, ok := s.tables[name]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrTableNotFound, name)
	}
	return slices.Clone(s.columns[name]), nil
}

// Columns returns the columns of name in render order. The sequence is
// empty for an unregistered table and may be iterated any number of times.
func (s *Snapshot) Columns(name string) iter.Seq[ColumnDescriptor] {
	var cols []ColumnDescriptor
	if _, ok := s.tables[name]; ok {
		cols = s.columns[name]
	}
	return func(yield func(ColumnDescriptor) bool) {
		for _, c := range cols {
			if !yield(c) {
				return
			}
		}
	}
}

func (s *Snapshot) filter(name string, keep func(ColumnDescriptor) bool) ([]ColumnDescriptor, error) {
	if _, ok := s.tables[name]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrTableNotFound, name)
	}
	var out []ColumnDescriptor
	for _, c := range s.columns[name] {
		if keep(c) {
			out = append(out, c)
		}
	}
	return out, nil
}

// FormColumns returns the data columns of name, i.e. those that appear on
// an edit form, in render order.
func (s *Snapshot) FormColumns(name string) ([]ColumnDescriptor, error) {
	return s.filter(name, func(c ColumnDescriptor) bool { return c.IsData })
}

// KeyColumns returns the columns that together must be unique before an insert.
func (s *Snapshot) KeyColumns(name string) ([]ColumnDescriptor, error) {
	return s.filter(name, func(c ColumnDescriptor) bool { return c.KeyField })
}

// RequiredColumns returns the columns a form must have a value for.
func (s *Snapshot) RequiredColumns(name string) ([]ColumnDescriptor, error) {
	return s.filter(name, func(c ColumnDescriptor) bool { return c.Required })
}

// VisibleColumns returns the columns shown in view mode under vc.
func (s *Snapshot) VisibleColumns(name string, vc ViewContext) ([]ColumnDescriptor, error) {
	return s.filter(name, func(c ColumnDescriptor) bool { return c.Visible(vc) })
}

// TablesInGroup returns the tables whose security domain is tableGroup,
// sorted by name.
func (s *Snapshot) TablesInGroup(tableGroup string) []TableDescriptor {
	var out []TableDescriptor
	for _, name := range s.names {
		if t := s.tables[name]; t.TableGroup == tableGroup {
			out = append(out, t)
		}
	}
	return out
}

// TableGroups returns the distinct non-empty table groups, sorted.
func (s *Snapshot) TableGroups() []string {
	seen := make(map[string]bool)
	var out []string
	for _, t := range s.tables {
		if t.TableGroup != "" && !seen[t.TableGroup] {
			seen[t.TableGroup] = true
			out = append(out, t.TableGroup)
		}
	}
	slices.Sort(out)
	return out
}

// Orphans returns the names of tables that have columns but no descriptor.
func (s *Snapshot) Orphans() []string {
	var out []string
	for name := range s.columns {
		if _, ok := s.tables[name]; !ok {
			out = append(out, name)
		}
	}
	slices.Sort(out)
	return out
}

// ResolvePhysical returns the physical table name for name.
//
// db_table_name holds either a literal name or a variable such as
// $TBMA_ARRAY, which is looked up in the table variables the Registry was
// built with. An empty db_table_name resolves to the table name itself.
func (s *Snapshot) ResolvePhysical(name string) (string, error) {
	t, err := s.DescribeTable(name)
	if err != nil {
		return "", err
	}
	return resolveVar(t.PhysicalTable, t.Name, s.vars)
}

func resolveVar(ref, fallback string, vars map[string]string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return fallback, nil
	}
	if !strings.HasPrefix(ref, "$") {
		return ref, nil
	}
	v, ok := vars[strings.ToUpper(strings.TrimPrefix(ref, "$"))]
	if !ok || v == "" {
		return "", fmt.Errorf("%w: %s", ErrUnresolvedTableVar, ref)
	}
	return v, nil
}

// Registry serves the current Snapshot.
type Registry struct {
	snap atomic.Pointer[Snapshot]
	vars map[string]string
}

// Option configures a Registry.
type Option func(*Registry)

// WithTableVars sets the values of the $TB variables used in db_table_name.
// Keys are variable names with or without the leading "$", e.g. "TBMA_ARRAY",
// and match case-insensitively.
func WithTableVars(vars map[string]string) Option {
	return func(r *Registry) {
		r.vars = make(map[string]string, len(vars))
		for k, v := range vars {
			r.vars[strings.ToUpper(strings.TrimPrefix(k, "$"))] = v
		}
	}
}

// New returns a Registry holding an empty snapshot.
func New(opts ...Option) *Registry {
	r := &Registry{}
	for _, opt := range opts {
		opt(r)
	}
	r.Replace(NewSnapshot(nil, nil))
	return r
}

// Snapshot returns the current snapshot.
func (r *Registry) Snapshot() *Snapshot {
	return r.snap.Load()
}

// Replace installs s as the current snapshot.
func (r *Registry) Replace(s *Snapshot) {
	s.vars = r.vars
	r.snap.Store(s)
}

// Reload reads every descriptor from src and installs the result. On error
// the current snapshot is left in place.
func (r *Registry) Reload(ctx context.Context, src Source) error {
	tables, err := src.ListTables(ctx)
	if err != nil {
		return fmt.Errorf("listing tables: %w", err)
	}
	columns, err := src.ListAllColumns(ctx)
	if err != nil {
		return fmt.Errorf("listing columns: %w", err)
	}
	r.Replace(NewSnapshot(tables, columns))
	return nil
}

// DescribeTable returns the descriptor for name from the current snapshot.
func (r *Registry) DescribeTable(name string) (TableDescriptor, error) {
	return r.Snapshot().DescribeTable(name)
}

// DescribeColumns returns the columns of name in render order from the
// current snapshot.
func (r *Registry) DescribeColumns(name string) ([]ColumnDescriptor, error) {
	return r.Snapshot().DescribeColumns(name)
}

// MustDescribeColumns is like DescribeColumns but panics for an
// unregistered table.
func (r *Registry) MustDescribeColumns(name string) []ColumnDescriptor {
	cols, err := r.DescribeColumns(name)
	if err != nil {
		panic(fmt.Sprintf("registry.MustDescribeColumns: %v", err))
	}
	return cols
}

// Columns returns the columns of name from the current snapshot.
func (r *Registry) Columns(name string) iter.Seq[ColumnDescriptor] {
	return r.Snapshot().Columns(name)
}

// ResolvePhysical returns the physical table name for name.
func (r *Registry) ResolvePhysical(name string) (string, error) {
	return r.Snapshot().ResolvePhysical(name)
}
