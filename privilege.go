package sbeams

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// PrivilegeLevel is one of the six ordered access tiers a work group holds
// over a table group, or a user holds within a work group.
//
// Lower numeric values are stronger privileges. The numeric values match the
// privilege_id column of the security tables and must not be renumbered; all
// comparisons go through the methods below rather than raw integer operators
// so that the ordering is defined in exactly one place.
type PrivilegeLevel int

const (
	// PrivilegeAdministrator has full rights to nearly everything.
	PrivilegeAdministrator PrivilegeLevel = 10

	// PrivilegeDataModifier may modify anyone else's records.
	PrivilegeDataModifier PrivilegeLevel = 20

	// PrivilegeDataGroupModifier may modify records written under the
	// principal's current work group.
	PrivilegeDataGroupModifier PrivilegeLevel = 25

	// PrivilegeDataWriter may only insert new records.
	PrivilegeDataWriter PrivilegeLevel = 30

	// PrivilegeDataReader may only read records.
	PrivilegeDataReader PrivilegeLevel = 40

	// PrivilegeNone has no privilege over a given object.
	PrivilegeNone PrivilegeLevel = 50
)

var privilegeNames = map[PrivilegeLevel]string{
	PrivilegeAdministrator:     "administrator",
	PrivilegeDataModifier:      "data_modifier",
	PrivilegeDataGroupModifier: "data_groupmodifier",
	PrivilegeDataWriter:        "data_writer",
	PrivilegeDataReader:        "data_reader",
	PrivilegeNone:              "none",
}

// AllPrivilegeLevels lists every level from strongest to weakest.
var AllPrivilegeLevels = []PrivilegeLevel{
	PrivilegeAdministrator,
	PrivilegeDataModifier,
	PrivilegeDataGroupModifier,
	PrivilegeDataWriter,
	PrivilegeDataReader,
	PrivilegeNone,
}

// String returns the canonical privilege name, e.g. "data_writer".
func (p PrivilegeLevel) String() string {
	if name, ok := privilegeNames[p]; ok {
		return name
	}
	return fmt.Sprintf("privilege(%d)", int(p))
}

// Valid reports whether p is one of the six defined levels.
func (p PrivilegeLevel) Valid() bool {
	_, ok := privilegeNames[p]
	return ok
}

// AtLeast reports whether p is as strong as, or stronger than, min.
// Undefined levels are never at least anything, which keeps a corrupt grant
// row from widening access.
func (p PrivilegeLevel) AtLeast(min PrivilegeLevel) bool {
	if !p.Valid() || !min.Valid() {
		return false
	}
	return p <= min
}

// StrongerThan reports whether p is strictly stronger than other.
func (p PrivilegeLevel) StrongerThan(other PrivilegeLevel) bool {
	return p.Valid() && other.Valid() && p < other
}

// Strongest returns the strongest of the given levels, PrivilegeNone if empty.
func Strongest(levels ...PrivilegeLevel) PrivilegeLevel {
	best := PrivilegeNone
	for _, l := range levels {
		if l.StrongerThan(best) {
			best = l
		}
	}
	return best
}

// Weakest returns the weakest of the given levels. Undefined levels count
// as PrivilegeNone. An empty argument list yields PrivilegeNone.
func Weakest(levels ...PrivilegeLevel) PrivilegeLevel {
	if len(levels) == 0 {
		return PrivilegeNone
	}
	worst := PrivilegeAdministrator
	for _, l := range levels {
		if !l.Valid() {
			return PrivilegeNone
		}
		if worst.StrongerThan(l) {
			worst = l
		}
	}
	return worst
}

// ParsePrivilegeLevel accepts a level name ("data_writer") or its numeric
// privilege_id ("30").
func ParsePrivilegeLevel(s string) (PrivilegeLevel, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		p := PrivilegeLevel(n)
		if !p.Valid() {
			return PrivilegeNone, fmt.Errorf("%w: %d", ErrInvalidPrivilege, n)
		}
		return p, nil
	}
	for p, name := range privilegeNames {
		if strings.EqualFold(name, s) {
			return p, nil
		}
	}
	return PrivilegeNone, fmt.Errorf("%w: %q", ErrInvalidPrivilege, s)
}

// MarshalText implements encoding.TextMarshaler using the level name.
func (p PrivilegeLevel) MarshalText() ([]byte, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPrivilege, int(p))
	}
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler, accepting names or ids.
func (p *PrivilegeLevel) UnmarshalText(text []byte) error {
	level, err := ParsePrivilegeLevel(string(text))
	if err != nil {
		return err
	}
	*p = level
	return nil
}

// UnmarshalJSON accepts a quoted name or id, or a bare numeric id, so that
// YAML fixtures may write either "privilege: data_writer" or "privilege: 30".
func (p *PrivilegeLevel) UnmarshalJSON(data []byte) error {
	return p.UnmarshalText(bytes.Trim(data, `"`))
}
