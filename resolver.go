package sbeams

import (
	"context"
	"fmt"
)

// Resolver answers read, insert and write permission questions for a
// Principal against the work group grants supplied by a GrantSource.
//
// Resolvers are lightweight and safe to create per request. They hold no
// state beyond the grant source, the optional cache and the decision override.
// Every check is a pure function of its arguments and the grant data.
type Resolver struct {
	src                GrantSource
	cache              Cache
	decision           Decision
	useContextDecision bool
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithCache enables caching of resolved privilege levels.
func WithCache(c Cache) Option {
	return func(r *Resolver) {
		r.cache = c
	}
}

// WithDecision sets a decision override that bypasses grant lookups.
// Use DecisionAllow for admin tools or testing authorized paths.
// Use DecisionDeny for testing unauthorized paths.
func WithDecision(d Decision) Option {
	return func(r *Resolver) {
		r.decision = d
	}
}

// WithContextDecision enables context-based decision overrides.
//
// Decision precedence when enabled:
//  1. Context decision (via WithDecisionContext)
//  2. Resolver decision (via WithDecision)
//  3. Grant lookup
func WithContextDecision() Option {
	return func(r *Resolver) {
		r.useContextDecision = true
	}
}

// NewResolver creates a Resolver over src. src may be nil when a decision
// override makes lookups unnecessary.
func NewResolver(src GrantSource, opts ...Option) *Resolver {
	r := &Resolver{
		src:      src,
		decision: DecisionUnset,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// override returns the effective decision override for ctx.
func (r *Resolver) override(ctx context.Context) Decision {
	if r.useContextDecision {
		if d := GetDecisionContext(ctx); d != DecisionUnset {
			return d
		}
	}
	return r.decision
}

// StrongestPrivilege returns the privilege the principal holds over
// tableGroup under its current work group.
//
// The result is PrivilegeNone when the current work group has no grant over
// the table group, when the table group is empty or unknown, or when the user
// is not a member of the current work group. A membership level caps the
// group's grant: the effective privilege is the weaker of the two.
//
// Errors are returned only when grant data cannot be read, the principal has
// no current work group, or the user belongs to no work group at all.
func (r *Resolver) StrongestPrivilege(ctx context.Context, p Principal, tableGroup string) (PrivilegeLevel, error) {
	switch r.override(ctx) {
	case DecisionAllow:
		return PrivilegeAdministrator, nil
	case DecisionDeny:
		return PrivilegeNone, nil
	}

	if p.WorkGroup == "" {
		return PrivilegeNone, ErrNoCurrentGroup
	}
	if tableGroup == "" {
		return PrivilegeNone, nil
	}

	key := CacheKey{User: p.User, WorkGroup: p.WorkGroup, TableGroup: tableGroup}
	if r.cache != nil {
		if level, ok := r.cache.Get(key); ok {
			return level, nil
		}
	}

	level, err := r.resolve(ctx, p, tableGroup)
	if err != nil {
		return PrivilegeNone, err
	}

	if r.cache != nil {
		r.cache.Set(key, level)
	}
	return level, nil
}

// resolve performs the grant lookup without cache or overrides.
func (r *Resolver) resolve(ctx context.Context, p Principal, tableGroup string) (PrivilegeLevel, error) {
	if r.src == nil {
		return PrivilegeNone, ErrNoGrantSource
	}

	memberships, err := r.src.Memberships(ctx, p.User)
	if err != nil {
		return PrivilegeNone, fmt.Errorf("memberships of %s: %w", p.User, err)
	}
	if len(memberships) == 0 {
		return PrivilegeNone, fmt.Errorf("%w: %s", ErrNoWorkGroup, p.User)
	}

	var member *Membership
	for i := range memberships {
		if memberships[i].WorkGroup == p.WorkGroup {
			member = &memberships[i]
			break
		}
	}
	if member == nil {
		return PrivilegeNone, nil
	}

	grants, err := r.src.Grants(ctx, p.WorkGroup)
	if err != nil {
		return PrivilegeNone, fmt.Errorf("grants of %s: %w", p.WorkGroup, err)
	}

	level := PrivilegeNone
	for _, g := range grants {
		if g.TableGroup == tableGroup {
			level = Strongest(level, g.Level)
		}
	}

	if member.Level != 0 {
		level = Weakest(level, member.Level)
	}
	return level, nil
}

// CanRead reports whether the principal may read rows of t.
// Reading is binary: data_reader or stronger is allowed.
func (r *Resolver) CanRead(ctx context.Context, p Principal, t Securable) (bool, error) {
	level, err := r.StrongestPrivilege(ctx, p, t.SecurityDomain())
	if err != nil {
		return false, err
	}
	return level.AtLeast(PrivilegeDataReader), nil
}

// CanInsert reports whether the principal may insert new rows into t.
// Inserting requires data_writer or stronger.
func (r *Resolver) CanInsert(ctx context.Context, p Principal, t Securable) (bool, error) {
	level, err := r.StrongestPrivilege(ctx, p, t.SecurityDomain())
	if err != nil {
		return false, err
	}
	return level.AtLeast(PrivilegeDataWriter), nil
}

// Reason names the rule that decided a write evaluation.
type Reason string

const (
	ReasonOverride      Reason = "decision override"
	ReasonInsert        Reason = "insert requires data_writer"
	ReasonSelfEdit      Reason = "user last modified the record"
	ReasonLocked        Reason = "record is locked"
	ReasonModifiable    Reason = "modifiable record requires data_writer"
	ReasonModifier      Reason = "normal record requires data_modifier"
	ReasonGroupModifier Reason = "data_groupmodifier within the owning work group"
	ReasonUnknownStatus Reason = "unknown record status"
)

// Evaluation is the outcome of a write check with the rule that produced it.
type Evaluation struct {
	Allowed bool
	Level   PrivilegeLevel
	Reason  Reason
}

// EvaluateWrite applies the write rules to rec and reports which rule
// decided. For an existing record the rules are evaluated in order:
//
//  1. The user who last modified the record may always change it, even when
//     it is Locked.
//  2. A Locked record is denied to everyone else, whatever their privilege.
//  3. A Modifiable record needs data_writer or stronger.
//  4. A Normal record needs data_modifier or stronger, or exactly
//     data_groupmodifier with the current work group owning the record.
//
// A new record (IsNew) is an insert and needs data_writer or stronger.
func (r *Resolver) EvaluateWrite(ctx context.Context, p Principal, rec Record) (Evaluation, error) {
	switch r.override(ctx) {
	case DecisionAllow:
		return Evaluation{Allowed: true, Level: PrivilegeAdministrator, Reason: ReasonOverride}, nil
	case DecisionDeny:
		return Evaluation{Allowed: false, Level: PrivilegeNone, Reason: ReasonOverride}, nil
	}

	if rec.IsNew() {
		level, err := r.StrongestPrivilege(ctx, p, rec.TableGroup)
		if err != nil {
			return Evaluation{Level: PrivilegeNone}, err
		}
		return Evaluation{Allowed: level.AtLeast(PrivilegeDataWriter), Level: level, Reason: ReasonInsert}, nil
	}

	if p.User != "" && p.User == rec.ModifiedBy {
		return Evaluation{Allowed: true, Level: PrivilegeNone, Reason: ReasonSelfEdit}, nil
	}

	status := rec.Status
	if status == "" {
		status = StatusNormal
	}
	if status == StatusLocked {
		return Evaluation{Allowed: false, Level: PrivilegeNone, Reason: ReasonLocked}, nil
	}

	level, err := r.StrongestPrivilege(ctx, p, rec.TableGroup)
	if err != nil {
		return Evaluation{Level: PrivilegeNone}, err
	}

	switch status {
	case StatusModifiable:
		return Evaluation{Allowed: level.AtLeast(PrivilegeDataWriter), Level: level, Reason: ReasonModifiable}, nil
	case StatusNormal:
		if level.AtLeast(PrivilegeDataModifier) {
			return Evaluation{Allowed: true, Level: level, Reason: ReasonModifier}, nil
		}
		if level == PrivilegeDataGroupModifier && p.WorkGroup == rec.OwnerGroup {
			return Evaluation{Allowed: true, Level: level, Reason: ReasonGroupModifier}, nil
		}
		return Evaluation{Allowed: false, Level: level, Reason: ReasonModifier}, nil
	}
	return Evaluation{Allowed: false, Level: level, Reason: ReasonUnknownStatus}, nil
}

// CanWrite reports whether the principal may write rec. See EvaluateWrite.
func (r *Resolver) CanWrite(ctx context.Context, p Principal, rec Record) (bool, error) {
	ev, err := r.EvaluateWrite(ctx, p, rec)
	if err != nil {
		return false, err
	}
	return ev.Allowed, nil
}

// Must panics if the write check fails or errors.
//
// Use it on code paths where a denied write indicates a bug in the caller,
// e.g. after the form layer already hid the submit button. Prefer CanWrite
// where the user should see a "permission denied" page.
func (r *Resolver) Must(ctx context.Context, p Principal, rec Record) {
	ok, err := r.CanWrite(ctx, p, rec)
	if err != nil {
		panic(fmt.Sprintf("sbeams.Must: %v", err))
	}
	if !ok {
		panic(fmt.Sprintf("sbeams.Must: %s may not write %s record in %s", p, rec.Status, rec.TableGroup))
	}
}
