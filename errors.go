package sbeams

import "errors"

// Sentinel errors for resolver failures. These indicate that the security
// data could not be consulted or violates a precondition, never that access
// was denied. Denied checks return (false, nil).
var (
	// ErrNoWorkGroup is returned when the acting user belongs to no work
	// group at all. Every SBEAMS user is expected to have at least one
	// membership; a user without any is a configuration error.
	ErrNoWorkGroup = errors.New("sbeams: user belongs to no work group")

	// ErrNoCurrentGroup is returned when a Principal has an empty WorkGroup.
	ErrNoCurrentGroup = errors.New("sbeams: principal has no current work group")

	// ErrInvalidPrivilege is returned when a privilege name or id is not one
	// of the six defined levels.
	ErrInvalidPrivilege = errors.New("sbeams: invalid privilege level")

	// ErrInvalidStatus is returned when a record status code is unknown.
	ErrInvalidStatus = errors.New("sbeams: invalid record status")

	// ErrNoGrantSource is returned when a check needs grant data but the
	// Resolver was built without a GrantSource.
	ErrNoGrantSource = errors.New("sbeams: no grant source configured")
)

// IsNoWorkGroupErr returns true if err is or wraps ErrNoWorkGroup.
func IsNoWorkGroupErr(err error) bool {
	return errors.Is(err, ErrNoWorkGroup)
}

// IsNoCurrentGroupErr returns true if err is or wraps ErrNoCurrentGroup.
func IsNoCurrentGroupErr(err error) bool {
	return errors.Is(err, ErrNoCurrentGroup)
}

// IsInvalidPrivilegeErr returns true if err is or wraps ErrInvalidPrivilege.
func IsInvalidPrivilegeErr(err error) bool {
	return errors.Is(err, ErrInvalidPrivilege)
}

// IsInvalidStatusErr returns true if err is or wraps ErrInvalidStatus.
func IsInvalidStatusErr(err error) bool {
	return errors.Is(err, ErrInvalidStatus)
}
