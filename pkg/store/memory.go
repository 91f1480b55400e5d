package store

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	sbeams "github.com/systemsbiology/sbeams-core"
	"github.com/systemsbiology/sbeams-core/pkg/registry"
)

type memState struct {
	tables  map[string]registry.TableDescriptor
	columns map[string]map[string]registry.ColumnDescriptor
}

func (s *memState) clone() *memState {
	c := &memState{
		tables:  maps.Clone(s.tables),
		columns: make(map[string]map[string]registry.ColumnDescriptor, len(s.columns)),
	}
	for table, cols := range s.columns {
		c.columns[table] = maps.Clone(cols)
	}
	return c
}

// Memory is an in-process Store. Readers see an immutable state; Atomic
// works on a copy and swaps it in on success. Memory also serves grant data
// and load history.
type Memory struct {
	writeMu sync.Mutex
	state   atomic.Pointer[memState]

	secMu  sync.RWMutex
	grants *sbeams.StaticGrants
	groups map[string]bool

	histMu sync.Mutex
	loads  []LoadRecord
	now    func() time.Time
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	m := &Memory{
		grants: sbeams.NewStaticGrants(nil, nil),
		groups: make(map[string]bool),
		now:    time.Now,
	}
	m.state.Store(&memState{
		tables:  make(map[string]registry.TableDescriptor),
		columns: make(map[string]map[string]registry.ColumnDescriptor),
	})
	return m
}

// SetGrants replaces the security data. Every table group named by a grant
// becomes a known security domain.
func (m *Memory) SetGrants(grants []sbeams.Grant, memberships []sbeams.Membership) {
	m.secMu.Lock()
	defer m.secMu.Unlock()
	m.grants = sbeams.NewStaticGrants(grants, memberships)
	for _, g := range grants {
		m.groups[g.TableGroup] = true
	}
}

// AddTableGroups declares security domains that have no grants yet.
func (m *Memory) AddTableGroups(groups ...string) {
	m.secMu.Lock()
	defer m.secMu.Unlock()
	for _, g := range groups {
		m.groups[g] = true
	}
}

// Memberships implements sbeams.GrantSource.
func (m *Memory) Memberships(ctx context.Context, user string) ([]sbeams.Membership, error) {
	m.secMu.RLock()
	defer m.secMu.RUnlock()
	return m.grants.Memberships(ctx, user)
}

// Grants implements sbeams.GrantSource.
func (m *Memory) Grants(ctx context.Context, workGroup string) ([]sbeams.Grant, error) {
	m.secMu.RLock()
	defer m.secMu.RUnlock()
	return m.grants.Grants(ctx, workGroup)
}

func (m *Memory) GetTable(ctx context.Context, name string) (registry.TableDescriptor, error) {
	return memView{m.state.Load(), m}.GetTable(ctx, name)
}

func (m *Memory) ListTables(ctx context.Context) ([]registry.TableDescriptor, error) {
	return memView{m.state.Load(), m}.ListTables(ctx)
}

func (m *Memory) ListColumns(ctx context.Context, table string) ([]registry.ColumnDescriptor, error) {
	return memView{m.state.Load(), m}.ListColumns(ctx, table)
}

func (m *Memory) ListAllColumns(ctx context.Context) ([]registry.ColumnDescriptor, error) {
	return memView{m.state.Load(), m}.ListAllColumns(ctx)
}

func (m *Memory) TableExists(ctx context.Context, name string) (bool, error) {
	return memView{m.state.Load(), m}.TableExists(ctx, name)
}

func (m *Memory) TableGroupExists(ctx context.Context, group string) (bool, error) {
	return memView{m.state.Load(), m}.TableGroupExists(ctx, group)
}

// Atomic implements Store. Writers are serialized.
func (m *Memory) Atomic(ctx context.Context, fn func(Tx) error) error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	next := m.state.Load().clone()
	if err := fn(memView{next, m}); err != nil {
		return err
	}
	m.state.Store(next)
	return nil
}

// memView reads and writes one memState.
type memView struct {
	s *memState
	m *Memory
}

func (v memView) GetTable(_ context.Context, name string) (registry.TableDescriptor, error) {
	t, ok := v.s.tables[name]
	if !ok {
		return registry.TableDescriptor{}, fmt.Errorf("table %s: %w", name, ErrNotFound)
	}
	return t, nil
}

func (v memView) ListTables(context.Context) ([]registry.TableDescriptor, error) {
	out := slices.Collect(maps.Values(v.s.tables))
	slices.SortFunc(out, func(a, b registry.TableDescriptor) int { return cmp.Compare(a.Name, b.Name) })
	return out, nil
}

func (v memView) ListColumns(_ context.Context, table string) ([]registry.ColumnDescriptor, error) {
	out := slices.Collect(maps.Values(v.s.columns[table]))
	registry.SortColumns(out)
	return out, nil
}

func (v memView) ListAllColumns(ctx context.Context) ([]registry.ColumnDescriptor, error) {
	var out []registry.ColumnDescriptor
	for _, table := range slices.Sorted(maps.Keys(v.s.columns)) {
		cols, _ := v.ListColumns(ctx, table)
		out = append(out, cols...)
	}
	return out, nil
}

func (v memView) TableExists(_ context.Context, name string) (bool, error) {
	_, ok := v.s.tables[name]
	return ok, nil
}

func (v memView) TableGroupExists(_ context.Context, group string) (bool, error) {
	v.m.secMu.RLock()
	defer v.m.secMu.RUnlock()
	return v.m.groups[group], nil
}

func (v memView) UpsertTable(_ context.Context, t registry.TableDescriptor) (bool, error) {
	_, existed := v.s.tables[t.Name]
	v.s.tables[t.Name] = t
	return !existed, nil
}

func (v memView) UpsertColumn(_ context.Context, c registry.ColumnDescriptor) (bool, error) {
	cols, ok := v.s.columns[c.Table]
	if !ok {
		cols = make(map[string]registry.ColumnDescriptor)
		v.s.columns[c.Table] = cols
	}
	_, existed := cols[c.Name]
	cols[c.Name] = c
	return !existed, nil
}

func (v memView) DeleteColumn(_ context.Context, table, column string) error {
	cols := v.s.columns[table]
	if _, ok := cols[column]; !ok {
		return fmt.Errorf("column %s.%s: %w", table, column, ErrNotFound)
	}
	delete(cols, column)
	if len(cols) == 0 {
		delete(v.s.columns, table)
	}
	return nil
}

// RecordLoad implements History. A zero ID or LoadedAt is filled in.
func (m *Memory) RecordLoad(_ context.Context, rec LoadRecord) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.LoadedAt.IsZero() {
		rec.LoadedAt = m.now()
	}
	m.histMu.Lock()
	m.loads = append(m.loads, rec)
	m.histMu.Unlock()
	return nil
}

// LastLoad implements History.
func (m *Memory) LastLoad(_ context.Context, file string) (LoadRecord, error) {
	m.histMu.Lock()
	defer m.histMu.Unlock()
	for i := len(m.loads) - 1; i >= 0; i-- {
		if m.loads[i].File == file {
			return m.loads[i], nil
		}
	}
	return LoadRecord{}, fmt.Errorf("load of %s: %w", file, ErrNotFound)
}

// Loads implements History.
func (m *Memory) Loads(context.Context) ([]LoadRecord, error) {
	m.histMu.Lock()
	defer m.histMu.Unlock()
	seen := make(map[string]bool)
	var out []LoadRecord
	for i := len(m.loads) - 1; i >= 0; i-- {
		if rec := m.loads[i]; !seen[rec.File] {
			seen[rec.File] = true
			out = append(out, rec)
		}
	}
	return out, nil
}

var (
	_ Store              = (*Memory)(nil)
	_ History            = (*Memory)(nil)
	_ sbeams.GrantSource = (*Memory)(nil)
	_ registry.Source    = (*Memory)(nil)
)
