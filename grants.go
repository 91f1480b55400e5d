package sbeams

import (
	"context"
	"fmt"
	"os"
	"sync"

	"sigs.k8s.io/yaml"
)

// Grant gives a work group one privilege level over one table group.
type Grant struct {
	WorkGroup  string         `json:"work_group"`
	TableGroup string         `json:"table_group"`
	Level      PrivilegeLevel `json:"privilege"`
}

// Membership places a user in a work group. Level is the user's own privilege
// within the group; the zero value means the membership does not cap the
// group's grants.
type Membership struct {
	User      string         `json:"user"`
	WorkGroup string         `json:"work_group"`
	Level     PrivilegeLevel `json:"privilege,omitempty"`
}

// GrantSource supplies the read-only security reference data. It is
// implemented by StaticGrants, store.Memory and sqlstore.Store.
type GrantSource interface {
	// Memberships returns every work group the user belongs to.
	Memberships(ctx context.Context, user string) ([]Membership, error)

	// Grants returns the table group grants held by a work group.
	Grants(ctx context.Context, workGroup string) ([]Grant, error)
}

// StaticGrants is an in-memory GrantSource. It is safe for concurrent use.
type StaticGrants struct {
	mu          sync.RWMutex
	grants      map[string][]Grant
	memberships map[string][]Membership
}

// NewStaticGrants builds a StaticGrants from grant and membership lists.
func NewStaticGrants(grants []Grant, memberships []Membership) *StaticGrants {
	s := &StaticGrants{
		grants:      make(map[string][]Grant),
		memberships: make(map[string][]Membership),
	}
	for _, g := range grants {
		s.grants[g.WorkGroup] = append(s.grants[g.WorkGroup], g)
	}
	for _, m := range memberships {
		s.memberships[m.User] = append(s.memberships[m.User], m)
	}
	return s
}

// AddGrant appends a grant.
func (s *StaticGrants) AddGrant(g Grant) {
	s.mu.Lock()
	s.grants[g.WorkGroup] = append(s.grants[g.WorkGroup], g)
	s.mu.Unlock()
}

// AddMembership appends a membership.
func (s *StaticGrants) AddMembership(m Membership) {
	s.mu.Lock()
	s.memberships[m.User] = append(s.memberships[m.User], m)
	s.mu.Unlock()
}

// Memberships implements GrantSource.
func (s *StaticGrants) Memberships(_ context.Context, user string) ([]Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Membership(nil), s.memberships[user]...), nil
}

// Grants implements GrantSource.
func (s *StaticGrants) Grants(_ context.Context, workGroup string) ([]Grant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Grant(nil), s.grants[workGroup]...), nil
}

// TableGroups returns every table group named by at least one grant.
func (s *StaticGrants) TableGroups() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]bool)
	var groups []string
	for _, gs := range s.grants {
		for _, g := range gs {
			if !seen[g.TableGroup] {
				seen[g.TableGroup] = true
				groups = append(groups, g.TableGroup)
			}
		}
	}
	return groups
}

// GrantsFile is the on-disk shape of a security fixture:
//
//	grants:
//	  - work_group: Array_user
//	    table_group: MicroarrayCore
//	    privilege: data_writer
//	memberships:
//	  - user: edeutsch
//	    work_group: Array_user
type GrantsFile struct {
	Grants      []Grant      `json:"grants"`
	Memberships []Membership `json:"memberships"`
}

// LoadGrantsYAML reads a GrantsFile and returns it as a StaticGrants.
// Grants with an undefined privilege level are rejected.
func LoadGrantsYAML(path string) (*StaticGrants, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading grants file: %w", err)
	}
	return ParseGrantsYAML(data)
}

// ParseGrantsYAML parses GrantsFile content into a StaticGrants.
func ParseGrantsYAML(data []byte) (*StaticGrants, error) {
	f, err := ParseGrantsFile(data)
	if err != nil {
		return nil, err
	}
	return NewStaticGrants(f.Grants, f.Memberships), nil
}

// ParseGrantsFile parses and validates GrantsFile content.
func ParseGrantsFile(data []byte) (*GrantsFile, error) {
	var f GrantsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing grants file: %w", err)
	}
	for i, g := range f.Grants {
		if !g.Level.Valid() {
			return nil, fmt.Errorf("grant %d (%s/%s): %w: %d", i, g.WorkGroup, g.TableGroup, ErrInvalidPrivilege, int(g.Level))
		}
	}
	for i, m := range f.Memberships {
		if m.Level != 0 && !m.Level.Valid() {
			return nil, fmt.Errorf("membership %d (%s/%s): %w: %d", i, m.User, m.WorkGroup, ErrInvalidPrivilege, int(m.Level))
		}
	}
	return &f, nil
}

var _ GrantSource = (*StaticGrants)(nil)
