package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	sbeams "github.com/systemsbiology/sbeams-core"
)

// Memberships implements sbeams.GrantSource.
func (s *Store) Memberships(ctx context.Context, user string) ([]sbeams.Membership, error) {
	rows, err := s.db.QueryContext(ctx, s.d.Rebind(`
		SELECT username, work_group_name, privilege_id
		FROM user_work_group
		WHERE username = ?
		ORDER BY work_group_name`), user)
	if err != nil {
		return nil, fmt.Errorf("querying memberships of %s: %w", user, err)
	}
	defer func() { _ = rows.Close() }()

	var out []sbeams.Membership
	for rows.Next() {
		var m sbeams.Membership
		var level sql.NullInt64
		if err := rows.Scan(&m.User, &m.WorkGroup, &level); err != nil {
			return nil, fmt.Errorf("scanning membership: %w", err)
		}
		if level.Valid {
			m.Level = sbeams.PrivilegeLevel(level.Int64)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Grants implements sbeams.GrantSource.
func (s *Store) Grants(ctx context.Context, workGroup string) ([]sbeams.Grant, error) {
	rows, err := s.db.QueryContext(ctx, s.d.Rebind(`
		SELECT work_group_name, table_group, privilege_id
		FROM table_group_security
		WHERE work_group_name = ?
		ORDER BY table_group`), workGroup)
	if err != nil {
		return nil, fmt.Errorf("querying grants of %s: %w", workGroup, err)
	}
	defer func() { _ = rows.Close() }()

	var out []sbeams.Grant
	for rows.Next() {
		var g sbeams.Grant
		var level int64
		if err := rows.Scan(&g.WorkGroup, &g.TableGroup, &level); err != nil {
			return nil, fmt.Errorf("scanning grant: %w", err)
		}
		g.Level = sbeams.PrivilegeLevel(level)
		out = append(out, g)
	}
	return out, rows.Err()
}

// SetGrants replaces all grants and memberships in one transaction. Work
// groups and table groups named by the data are registered as well; existing
// work_group and table_group rows are kept.
func (s *Store) SetGrants(ctx context.Context, grants []sbeams.Grant, memberships []sbeams.Membership) error {
	for _, g := range grants {
		if !g.Level.Valid() {
			return fmt.Errorf("grant %s/%s: %w: %d", g.WorkGroup, g.TableGroup, sbeams.ErrInvalidPrivilege, int(g.Level))
		}
	}

	return s.inTx(ctx, func(v view) error {
		return v.replaceGrants(ctx, grants, memberships)
	})
}

func (v view) replaceGrants(ctx context.Context, grants []sbeams.Grant, memberships []sbeams.Membership) error {
	for _, q := range []string{`DELETE FROM table_group_security`, `DELETE FROM user_work_group`} {
		if _, err := v.exec(ctx, q); err != nil {
			return fmt.Errorf("clearing grants: %w", err)
		}
	}

	workGroups := make(map[string]bool)
	tableGroups := make(map[string]bool)
	for _, g := range grants {
		workGroups[g.WorkGroup] = true
		tableGroups[g.TableGroup] = true
		if _, err := v.exec(ctx, `
			INSERT INTO table_group_security (work_group_name, table_group, privilege_id)
			VALUES (?, ?, ?)`, g.WorkGroup, g.TableGroup, int(g.Level)); err != nil {
			return fmt.Errorf("inserting grant %s/%s: %w", g.WorkGroup, g.TableGroup, err)
		}
	}
	for _, m := range memberships {
		workGroups[m.WorkGroup] = true
		var level any
		if m.Level != 0 {
			level = int(m.Level)
		}
		if _, err := v.exec(ctx, `
			INSERT INTO user_work_group (username, work_group_name, privilege_id)
			VALUES (?, ?, ?)`, m.User, m.WorkGroup, level); err != nil {
			return fmt.Errorf("inserting membership %s/%s: %w", m.User, m.WorkGroup, err)
		}
	}

	for wg := range workGroups {
		if err := v.insertName(ctx, "work_group", "work_group_name", wg); err != nil {
			return err
		}
	}
	for tg := range tableGroups {
		if err := v.insertName(ctx, "table_group", "table_group", tg); err != nil {
			return err
		}
	}
	return nil
}

// AddTableGroups registers security domains that no grant names yet.
func (s *Store) AddTableGroups(ctx context.Context, groups ...string) error {
	return s.inTx(ctx, func(v view) error {
		for _, g := range groups {
			if err := v.insertName(ctx, "table_group", "table_group", g); err != nil {
				return err
			}
		}
		return nil
	})
}

// insertName inserts a single-column key row unless it already exists.
func (v view) insertName(ctx context.Context, table, column, name string) error {
	n, err := v.count(ctx, `SELECT COUNT(*) FROM `+table+` WHERE `+column+` = ?`, name)
	if err != nil {
		return fmt.Errorf("checking %s %s: %w", table, name, err)
	}
	if n > 0 {
		return nil
	}
	if _, err := v.exec(ctx, `INSERT INTO `+table+` (`+column+`) VALUES (?)`, name); err != nil {
		return fmt.Errorf("inserting %s %s: %w", table, name, err)
	}
	return nil
}

var _ sbeams.GrantSource = (*Store)(nil)
