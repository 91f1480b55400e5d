// Package sbeams implements the SBEAMS row-level security model: work groups
// hold privileges over table groups, users act under exactly one current work
// group, and individual records carry ownership and a status that adjusts the
// default outcome.
//
// # Module Structure
//
// The root package is the access control resolver. It has no dependency on
// the driver-table registry; the two meet only through the Securable interface,
// which registry.TableDescriptor implements.
//
//   - github.com/systemsbiology/sbeams-core: Resolver, privileges, grants.
//   - github.com/systemsbiology/sbeams-core/pkg/registry: Table/column descriptors.
//   - github.com/systemsbiology/sbeams-core/pkg/loader: Driver file loading.
//
// # Core Concepts
//
// A Principal is the (user, current work group) pair of a session. It is a
// value, passed explicitly to every check:
//
//	p := sbeams.NewPrincipal("edeutsch", "Array_user")
//
// Tables are grouped into table groups (security domains). Work groups hold a
// PrivilegeLevel over table groups:
//
//	Array_user  MicroarrayCore  data_writer
//
// # Basic Usage
//
//	resolver := sbeams.NewResolver(grantSource)
//	ok, err := resolver.CanWrite(ctx, p, sbeams.Record{
//	    TableGroup: "MicroarrayCore",
//	    CreatedBy:  "someone",
//	    ModifiedBy: "someone",
//	    OwnerGroup: "Array_user",
//	    Status:     sbeams.StatusNormal,
//	})
//
// Denials are not errors: checks return (false, nil). Errors mean the grant
// data could not be consulted, or the user belongs to no work group at all.
//
// # Caching
//
//	cache := sbeams.NewCache(sbeams.WithTTL(time.Minute))
//	resolver := sbeams.NewResolver(src, sbeams.WithCache(cache))
//
// # Decision Overrides
//
//	resolver := sbeams.NewResolver(nil, sbeams.WithDecision(sbeams.DecisionAllow))
package sbeams

// Principal is the acting user together with the work group they are
// currently working under.
//
// Permission evaluation always uses WorkGroup, never the user's full
// membership set. A user who belongs to several groups and works under the
// "wrong" one sees permission failures and writes records owned by that group;
// making the group an explicit field of every call keeps that choice visible.
type Principal struct {
	User      string
	WorkGroup string
}

// NewPrincipal returns a Principal for user acting under workGroup.
func NewPrincipal(user, workGroup string) Principal {
	return Principal{User: user, WorkGroup: workGroup}
}

// String returns "user@work_group", used in logs and panics.
func (p Principal) String() string {
	return p.User + "@" + p.WorkGroup
}

// Securable is anything that belongs to a table group. Table descriptors and
// records implement it, allowing domain types to be checked directly.
type Securable interface {
	SecurityDomain() string
}

// TableGroup is a bare table group name that implements Securable.
type TableGroup string

// SecurityDomain returns the table group itself.
func (g TableGroup) SecurityDomain() string {
	return string(g)
}
