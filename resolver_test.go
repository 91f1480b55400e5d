package sbeams_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sbeams "github.com/systemsbiology/sbeams-core"
)

const (
	arrayUser = "Array_user"
	arrays    = "Arrays"
	coreGroup = "MicroarrayCore"
)

// newFixture builds grants where each work group in levels holds that level
// over MicroarrayCore, and user "u" is a member of all of them.
func newFixture(levels map[string]sbeams.PrivilegeLevel) *sbeams.StaticGrants {
	src := sbeams.NewStaticGrants(nil, nil)
	for group, level := range levels {
		src.AddGrant(sbeams.Grant{WorkGroup: group, TableGroup: coreGroup, Level: level})
		src.AddMembership(sbeams.Membership{User: "u", WorkGroup: group})
	}
	return src
}

func existing(status sbeams.RecordStatus, owner string) sbeams.Record {
	return sbeams.Record{
		TableGroup: coreGroup,
		CreatedBy:  "author",
		ModifiedBy: "author",
		OwnerGroup: owner,
		Status:     status,
	}
}

func TestStrongestPrivilege(t *testing.T) {
	ctx := context.Background()

	t.Run("grant over table group", func(t *testing.T) {
		r := sbeams.NewResolver(newFixture(map[string]sbeams.PrivilegeLevel{arrayUser: sbeams.PrivilegeDataWriter}))
		level, err := r.StrongestPrivilege(ctx, sbeams.NewPrincipal("u", arrayUser), coreGroup)
		require.NoError(t, err)
		assert.Equal(t, sbeams.PrivilegeDataWriter, level)
	})

	t.Run("no grant is none", func(t *testing.T) {
		r := sbeams.NewResolver(newFixture(map[string]sbeams.PrivilegeLevel{arrayUser: sbeams.PrivilegeDataWriter}))
		level, err := r.StrongestPrivilege(ctx, sbeams.NewPrincipal("u", arrayUser), "ProteomicsCore")
		require.NoError(t, err)
		assert.Equal(t, sbeams.PrivilegeNone, level)
	})

	t.Run("empty table group fails closed", func(t *testing.T) {
		r := sbeams.NewResolver(newFixture(map[string]sbeams.PrivilegeLevel{arrayUser: sbeams.PrivilegeAdministrator}))
		level, err := r.StrongestPrivilege(ctx, sbeams.NewPrincipal("u", arrayUser), "")
		require.NoError(t, err)
		assert.Equal(t, sbeams.PrivilegeNone, level)
	})

	t.Run("strongest of several grants wins", func(t *testing.T) {
		src := newFixture(map[string]sbeams.PrivilegeLevel{arrayUser: sbeams.PrivilegeDataReader})
		src.AddGrant(sbeams.Grant{WorkGroup: arrayUser, TableGroup: coreGroup, Level: sbeams.PrivilegeDataGroupModifier})
		r := sbeams.NewResolver(src)
		level, err := r.StrongestPrivilege(ctx, sbeams.NewPrincipal("u", arrayUser), coreGroup)
		require.NoError(t, err)
		assert.Equal(t, sbeams.PrivilegeDataGroupModifier, level)
	})

	t.Run("only the current group counts", func(t *testing.T) {
		r := sbeams.NewResolver(newFixture(map[string]sbeams.PrivilegeLevel{
			arrayUser: sbeams.PrivilegeDataReader,
			arrays:    sbeams.PrivilegeAdministrator,
		}))
		level, err := r.StrongestPrivilege(ctx, sbeams.NewPrincipal("u", arrayUser), coreGroup)
		require.NoError(t, err)
		assert.Equal(t, sbeams.PrivilegeDataReader, level)
	})

	t.Run("non-member of current group is none", func(t *testing.T) {
		src := newFixture(map[string]sbeams.PrivilegeLevel{arrayUser: sbeams.PrivilegeDataWriter})
		src.AddGrant(sbeams.Grant{WorkGroup: "Admin", TableGroup: coreGroup, Level: sbeams.PrivilegeAdministrator})
		r := sbeams.NewResolver(src)
		level, err := r.StrongestPrivilege(ctx, sbeams.NewPrincipal("u", "Admin"), coreGroup)
		require.NoError(t, err)
		assert.Equal(t, sbeams.PrivilegeNone, level)
	})

	t.Run("membership level caps group grant", func(t *testing.T) {
		src := sbeams.NewStaticGrants(
			[]sbeams.Grant{{WorkGroup: arrays, TableGroup: coreGroup, Level: sbeams.PrivilegeDataModifier}},
			[]sbeams.Membership{{User: "u", WorkGroup: arrays, Level: sbeams.PrivilegeDataReader}},
		)
		r := sbeams.NewResolver(src)
		level, err := r.StrongestPrivilege(ctx, sbeams.NewPrincipal("u", arrays), coreGroup)
		require.NoError(t, err)
		assert.Equal(t, sbeams.PrivilegeDataReader, level)
	})

	t.Run("user without work groups is an error", func(t *testing.T) {
		r := sbeams.NewResolver(newFixture(map[string]sbeams.PrivilegeLevel{arrayUser: sbeams.PrivilegeDataWriter}))
		_, err := r.StrongestPrivilege(ctx, sbeams.NewPrincipal("nobody", arrayUser), coreGroup)
		require.Error(t, err)
		assert.True(t, sbeams.IsNoWorkGroupErr(err))
	})

	t.Run("principal without current group is an error", func(t *testing.T) {
		r := sbeams.NewResolver(newFixture(nil))
		_, err := r.StrongestPrivilege(ctx, sbeams.NewPrincipal("u", ""), coreGroup)
		assert.True(t, sbeams.IsNoCurrentGroupErr(err))
	})

	t.Run("missing grant source is an error", func(t *testing.T) {
		r := sbeams.NewResolver(nil)
		_, err := r.StrongestPrivilege(ctx, sbeams.NewPrincipal("u", arrayUser), coreGroup)
		assert.ErrorIs(t, err, sbeams.ErrNoGrantSource)
	})
}

func TestCanRead(t *testing.T) {
	ctx := context.Background()
	p := sbeams.NewPrincipal("u", arrayUser)

	tests := []struct {
		level sbeams.PrivilegeLevel
		want  bool
	}{
		{sbeams.PrivilegeAdministrator, true},
		{sbeams.PrivilegeDataModifier, true},
		{sbeams.PrivilegeDataGroupModifier, true},
		{sbeams.PrivilegeDataWriter, true},
		{sbeams.PrivilegeDataReader, true},
		{sbeams.PrivilegeNone, false},
	}
	for _, tt := range tests {
		t.Run(tt.level.String(), func(t *testing.T) {
			r := sbeams.NewResolver(newFixture(map[string]sbeams.PrivilegeLevel{arrayUser: tt.level}))
			ok, err := r.CanRead(ctx, p, sbeams.TableGroup(coreGroup))
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}

	t.Run("unknown table group denied", func(t *testing.T) {
		r := sbeams.NewResolver(newFixture(map[string]sbeams.PrivilegeLevel{arrayUser: sbeams.PrivilegeAdministrator}))
		ok, err := r.CanRead(ctx, p, sbeams.TableGroup("MicroarayCore"))
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestCanWrite_NormalRecord(t *testing.T) {
	ctx := context.Background()
	p := sbeams.NewPrincipal("u", arrayUser)

	tests := []struct {
		level     sbeams.PrivilegeLevel
		sameOwner bool
		otherOwn  bool
	}{
		{sbeams.PrivilegeAdministrator, true, true},
		{sbeams.PrivilegeDataModifier, true, true},
		{sbeams.PrivilegeDataGroupModifier, true, false},
		{sbeams.PrivilegeDataWriter, false, false},
		{sbeams.PrivilegeDataReader, false, false},
		{sbeams.PrivilegeNone, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.level.String(), func(t *testing.T) {
			r := sbeams.NewResolver(newFixture(map[string]sbeams.PrivilegeLevel{arrayUser: tt.level}))

			ok, err := r.CanWrite(ctx, p, existing(sbeams.StatusNormal, arrayUser))
			require.NoError(t, err)
			assert.Equal(t, tt.sameOwner, ok, "record owned by current group")

			ok, err = r.CanWrite(ctx, p, existing(sbeams.StatusNormal, "Other"))
			require.NoError(t, err)
			assert.Equal(t, tt.otherOwn, ok, "record owned by another group")
		})
	}
}

func TestCanWrite_ModifiableRecord(t *testing.T) {
	ctx := context.Background()
	p := sbeams.NewPrincipal("u", arrayUser)

	for _, level := range sbeams.AllPrivilegeLevels {
		t.Run(level.String(), func(t *testing.T) {
			r := sbeams.NewResolver(newFixture(map[string]sbeams.PrivilegeLevel{arrayUser: level}))
			ok, err := r.CanWrite(ctx, p, existing(sbeams.StatusModifiable, "Other"))
			require.NoError(t, err)
			assert.Equal(t, level.AtLeast(sbeams.PrivilegeDataWriter), ok)
		})
	}
}

func TestCanWrite_LockedDeniesEveryoneElse(t *testing.T) {
	ctx := context.Background()
	p := sbeams.NewPrincipal("u", arrayUser)

	for _, level := range sbeams.AllPrivilegeLevels {
		for _, owner := range []string{arrayUser, "Other"} {
			t.Run(fmt.Sprintf("%s/%s", level, owner), func(t *testing.T) {
				r := sbeams.NewResolver(newFixture(map[string]sbeams.PrivilegeLevel{arrayUser: level}))
				ok, err := r.CanWrite(ctx, p, existing(sbeams.StatusLocked, owner))
				require.NoError(t, err)
				assert.False(t, ok)
			})
		}
	}
}

func TestCanWrite_SelfEditAlwaysAllowed(t *testing.T) {
	ctx := context.Background()
	p := sbeams.NewPrincipal("u", arrayUser)
	statuses := []sbeams.RecordStatus{sbeams.StatusNormal, sbeams.StatusLocked, sbeams.StatusModifiable}

	for _, level := range sbeams.AllPrivilegeLevels {
		for _, status := range statuses {
			t.Run(fmt.Sprintf("%s/%s", level, status), func(t *testing.T) {
				r := sbeams.NewResolver(newFixture(map[string]sbeams.PrivilegeLevel{arrayUser: level}))
				rec := existing(status, "Other")
				rec.ModifiedBy = "u"

				ev, err := r.EvaluateWrite(ctx, p, rec)
				require.NoError(t, err)
				assert.True(t, ev.Allowed)
				assert.Equal(t, sbeams.ReasonSelfEdit, ev.Reason)
			})
		}
	}

	t.Run("needs no grant data", func(t *testing.T) {
		r := sbeams.NewResolver(nil)
		rec := existing(sbeams.StatusLocked, "Other")
		rec.ModifiedBy = "u"
		ok, err := r.CanWrite(ctx, p, rec)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("created_by alone is not self-edit", func(t *testing.T) {
		r := sbeams.NewResolver(newFixture(map[string]sbeams.PrivilegeLevel{arrayUser: sbeams.PrivilegeDataWriter}))
		rec := existing(sbeams.StatusLocked, arrayUser)
		rec.CreatedBy = "u"
		ok, err := r.CanWrite(ctx, p, rec)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

// TestCanWrite_ArrayUserWriterBoundary covers a user of Array_user writing a
// new Normal record owned by Array_user: data_writer passes, data_reader fails.
func TestCanWrite_ArrayUserWriterBoundary(t *testing.T) {
	ctx := context.Background()
	p := sbeams.NewPrincipal("u", arrayUser)
	rec := sbeams.Record{TableGroup: coreGroup, OwnerGroup: arrayUser, Status: sbeams.StatusNormal}
	require.True(t, rec.IsNew())

	r := sbeams.NewResolver(newFixture(map[string]sbeams.PrivilegeLevel{arrayUser: sbeams.PrivilegeDataWriter}))
	ev, err := r.EvaluateWrite(ctx, p, rec)
	require.NoError(t, err)
	assert.True(t, ev.Allowed)
	assert.Equal(t, sbeams.PrivilegeDataWriter, ev.Level)
	assert.Equal(t, sbeams.ReasonInsert, ev.Reason)

	r = sbeams.NewResolver(newFixture(map[string]sbeams.PrivilegeLevel{arrayUser: sbeams.PrivilegeDataReader}))
	ok, err := r.CanWrite(ctx, p, rec)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = r.CanInsert(ctx, p, sbeams.TableGroup(coreGroup))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCanWrite_ExistingNormalRecordNeedsGroupModifier(t *testing.T) {
	ctx := context.Background()
	p := sbeams.NewPrincipal("u", arrayUser)
	rec := existing(sbeams.StatusNormal, arrayUser)
	require.False(t, rec.IsNew())

	r := sbeams.NewResolver(newFixture(map[string]sbeams.PrivilegeLevel{arrayUser: sbeams.PrivilegeDataWriter}))
	ev, err := r.EvaluateWrite(ctx, p, rec)
	require.NoError(t, err)
	assert.False(t, ev.Allowed)
	assert.Equal(t, sbeams.ReasonModifier, ev.Reason)

	r = sbeams.NewResolver(newFixture(map[string]sbeams.PrivilegeLevel{arrayUser: sbeams.PrivilegeDataGroupModifier}))
	ev, err = r.EvaluateWrite(ctx, p, rec)
	require.NoError(t, err)
	assert.True(t, ev.Allowed)
	assert.Equal(t, sbeams.ReasonGroupModifier, ev.Reason)
}

func TestCanWrite_NoGrantDenied(t *testing.T) {
	ctx := context.Background()
	p := sbeams.NewPrincipal("u", arrayUser)
	r := sbeams.NewResolver(newFixture(map[string]sbeams.PrivilegeLevel{arrayUser: sbeams.PrivilegeAdministrator}))

	rec := existing(sbeams.StatusModifiable, arrayUser)
	rec.TableGroup = "Genotyping"
	ok, err := r.CanWrite(ctx, p, rec)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = r.CanRead(ctx, p, rec)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCanWrite_UnknownStatusDenied(t *testing.T) {
	r := sbeams.NewResolver(newFixture(map[string]sbeams.PrivilegeLevel{arrayUser: sbeams.PrivilegeAdministrator}))
	ev, err := r.EvaluateWrite(context.Background(), sbeams.NewPrincipal("u", arrayUser), existing("D", arrayUser))
	require.NoError(t, err)
	assert.False(t, ev.Allowed)
	assert.Equal(t, sbeams.ReasonUnknownStatus, ev.Reason)
}

type failingSource struct{}

func (failingSource) Memberships(context.Context, string) ([]sbeams.Membership, error) {
	return nil, errors.New("connection refused")
}

func (failingSource) Grants(context.Context, string) ([]sbeams.Grant, error) {
	return nil, errors.New("connection refused")
}

func TestResolver_SourceErrorsPropagate(t *testing.T) {
	r := sbeams.NewResolver(failingSource{})
	ok, err := r.CanWrite(context.Background(), sbeams.NewPrincipal("u", arrayUser), existing(sbeams.StatusNormal, arrayUser))
	require.Error(t, err)
	assert.False(t, ok)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestResolver_DecisionOverrides(t *testing.T) {
	ctx := context.Background()
	p := sbeams.NewPrincipal("u", arrayUser)
	locked := existing(sbeams.StatusLocked, "Other")

	t.Run("DecisionAllow bypasses grants", func(t *testing.T) {
		r := sbeams.NewResolver(nil, sbeams.WithDecision(sbeams.DecisionAllow))
		ok, err := r.CanWrite(ctx, p, locked)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("DecisionDeny bypasses grants", func(t *testing.T) {
		r := sbeams.NewResolver(nil, sbeams.WithDecision(sbeams.DecisionDeny))
		ok, err := r.CanRead(ctx, p, sbeams.TableGroup(coreGroup))
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("DecisionDeny refuses self-edit", func(t *testing.T) {
		r := sbeams.NewResolver(nil, sbeams.WithDecision(sbeams.DecisionDeny))
		own := existing(sbeams.StatusNormal, arrayUser)
		own.ModifiedBy = "u"
		ev, err := r.EvaluateWrite(ctx, p, own)
		require.NoError(t, err)
		assert.False(t, ev.Allowed)
		assert.Equal(t, sbeams.ReasonOverride, ev.Reason)
	})

	t.Run("context decision takes precedence", func(t *testing.T) {
		r := sbeams.NewResolver(nil, sbeams.WithDecision(sbeams.DecisionDeny), sbeams.WithContextDecision())
		ok, err := r.CanWrite(sbeams.WithDecisionContext(ctx, sbeams.DecisionAllow), p, locked)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("context decision opt-in required", func(t *testing.T) {
		r := sbeams.NewResolver(nil, sbeams.WithDecision(sbeams.DecisionDeny))
		ok, err := r.CanWrite(sbeams.WithDecisionContext(ctx, sbeams.DecisionAllow), p, locked)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

type countingSource struct {
	sbeams.GrantSource
	grantCalls int
}

func (c *countingSource) Grants(ctx context.Context, workGroup string) ([]sbeams.Grant, error) {
	c.grantCalls++
	return c.GrantSource.Grants(ctx, workGroup)
}

func TestResolver_UsesCache(t *testing.T) {
	ctx := context.Background()
	src := &countingSource{GrantSource: newFixture(map[string]sbeams.PrivilegeLevel{arrayUser: sbeams.PrivilegeDataReader})}
	cache := sbeams.NewCache()
	r := sbeams.NewResolver(src, sbeams.WithCache(cache))
	p := sbeams.NewPrincipal("u", arrayUser)

	for i := 0; i < 3; i++ {
		ok, err := r.CanRead(ctx, p, sbeams.TableGroup(coreGroup))
		require.NoError(t, err)
		assert.True(t, ok)
	}
	assert.Equal(t, 1, src.grantCalls)
	assert.Equal(t, 1, cache.Size())
}

func TestMust(t *testing.T) {
	ctx := context.Background()
	p := sbeams.NewPrincipal("u", arrayUser)
	r := sbeams.NewResolver(newFixture(map[string]sbeams.PrivilegeLevel{arrayUser: sbeams.PrivilegeDataModifier}))

	assert.NotPanics(t, func() { r.Must(ctx, p, existing(sbeams.StatusNormal, "Other")) })
	assert.PanicsWithValue(t,
		"sbeams.Must: u@Array_user may not write Locked record in MicroarrayCore",
		func() { r.Must(ctx, p, existing(sbeams.StatusLocked, "Other")) },
	)
}
