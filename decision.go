package sbeams

import "context"

// Decision short-circuits the resolver without touching grant data.
//
// Administrative jobs need it: a driver table load running as the registry
// owner, or a batch import that must write regardless of record_status.
// Tests use it to reach the allowed and denied branches of handler code
// without seeding work groups.
//
// A Resolver built with WithDecision applies its decision to every check.
// A Resolver built with WithContextDecision additionally honors a decision
// placed on the request context by WithDecisionContext, which takes
// precedence. Resolvers without WithContextDecision ignore the context, so
// an override set for one subsystem cannot grant access in another.
type Decision int

type decisionContextKey struct{}

var decisionKey = decisionContextKey{}

const (
	// DecisionUnset resolves privileges from the grant source.
	DecisionUnset Decision = iota

	// DecisionAllow permits every read, insert and write, Locked records
	// included. StrongestPrivilege reports PrivilegeAdministrator.
	DecisionAllow

	// DecisionDeny refuses every check, self-edits included.
	// StrongestPrivilege reports PrivilegeNone.
	DecisionDeny
)

// String returns "allow", "deny" or "unset".
func (d Decision) String() string {
	switch d {
	case DecisionAllow:
		return "allow"
	case DecisionDeny:
		return "deny"
	default:
		return "unset"
	}
}

// WithDecisionContext returns a copy of ctx carrying decision. Only
// resolvers created with WithContextDecision read it.
func WithDecisionContext(ctx context.Context, decision Decision) context.Context {
	return context.WithValue(ctx, decisionKey, decision)
}

// GetDecisionContext returns the decision carried by ctx, or DecisionUnset.
func GetDecisionContext(ctx context.Context) Decision {
	if decision, ok := ctx.Value(decisionKey).(Decision); ok {
		return decision
	}
	return DecisionUnset
}
