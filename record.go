package sbeams

import (
	"fmt"
	"strings"
)

// RecordStatus is the per-row override stored in record_status.
type RecordStatus string

const (
	// StatusNormal records follow the privilege rules.
	StatusNormal RecordStatus = "N"

	// StatusLocked records may be changed by no one but the modified_by user.
	StatusLocked RecordStatus = "L"

	// StatusModifiable records may be changed by anyone with write privilege
	// over the table group.
	StatusModifiable RecordStatus = "M"
)

// String returns the status name.
func (s RecordStatus) String() string {
	switch s {
	case StatusNormal:
		return "Normal"
	case StatusLocked:
		return "Locked"
	case StatusModifiable:
		return "Modifiable"
	default:
		return fmt.Sprintf("status(%s)", string(s))
	}
}

// ParseRecordStatus accepts the stored code ("N", "L", "M") or the name.
// An empty string is Normal, matching rows written before record_status
// existed.
func ParseRecordStatus(s string) (RecordStatus, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "n", "normal":
		return StatusNormal, nil
	case "l", "locked":
		return StatusLocked, nil
	case "m", "modifiable", "modifyable":
		return StatusModifiable, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
}

// Record carries the housekeeping columns every managed row has.
type Record struct {
	// TableGroup is the security domain of the record's table.
	TableGroup string

	CreatedBy  string
	ModifiedBy string

	// OwnerGroup is the work group the writer was using when the record
	// was written.
	OwnerGroup string

	Status RecordStatus
}

// SecurityDomain implements Securable.
func (r Record) SecurityDomain() string {
	return r.TableGroup
}

// IsNew reports whether the record has not been written yet: neither
// created_by nor modified_by is set. Authorization for a new record is an
// insert check, so data_writer suffices whatever its Status and OwnerGroup.
//
// Once created_by or modified_by is set the record is existing and the write
// rules apply. Unless the user is its last modifier or it is Modifiable, a
// Normal record then needs data_modifier or stronger, or data_groupmodifier
// within the owning work group; data_writer alone is denied.
func (r Record) IsNew() bool {
	return r.CreatedBy == "" && r.ModifiedBy == ""
}
