package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/systemsbiology/sbeams-core"
	"github.com/systemsbiology/sbeams-core/internal/cli"
	"github.com/systemsbiology/sbeams-core/pkg/cache/rediscache"
	"github.com/systemsbiology/sbeams-core/pkg/store/sqlstore"
)

var grantsCmd = &cobra.Command{
	Use:   "grants",
	Short: "Security table utilities",
}

var grantsImportCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Replace the security tables from a grants file",
	Long: `Replace every work group grant and user membership in the database with
the contents of a grants YAML file. Table groups and work groups named by the
file are registered.`,
	Example: `  # Import grants
  sbeams grants import conf/security.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return cli.GeneralError("reading grants file", err)
		}
		f, err := sbeams.ParseGrantsFile(data)
		if err != nil {
			return cli.ParseError(args[0], err)
		}

		ctx := cmd.Context()
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		if err := st.SetGrants(ctx, f.Grants, f.Memberships); err != nil {
			return cli.GeneralError("importing grants", err)
		}
		if cfg.Cache.RedisURL != "" {
			cache, err := dialRedis(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = cache.Close() }()
			if err := cache.Clear(ctx); err != nil {
				return cli.GeneralError("clearing privilege cache", err)
			}
		}
		if !quiet {
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d grant(s) and %d membership(s)\n", len(f.Grants), len(f.Memberships))
		}
		return nil
	},
}

var (
	accessUser       string
	accessWorkGroup  string
	accessTableGroup string
	accessStatus     string
	accessCreatedBy  string
	accessModifiedBy string
	accessOwnerGroup string
)

var accessCmd = &cobra.Command{
	Use:   "access [TABLE]",
	Short: "Evaluate a user's privilege on a table or record",
	Long: `Report the strongest privilege a user holds over a table's group while
acting under a work group, and whether they may read and insert.

With --status, --created-by or --modified-by a write check for an existing
record is evaluated and the deciding rule is printed.

Grants come from security_file when it is set, otherwise from the database.`,
	Example: `  # Can edeutsch insert into MA_array as Array_user?
  sbeams access MA_array --user edeutsch --work-group Array_user

  # Can they change a locked record someone else modified?
  sbeams access --table-group MicroarrayCore --user edeutsch --work-group Array_user \
      --status L --modified-by kdeutsch --owner-group Array_user`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if accessUser == "" || accessWorkGroup == "" {
			return cli.ConfigError("--user and --work-group are required", nil)
		}
		if len(args) == 0 && accessTableGroup == "" {
			return cli.ConfigError("name a table or use --table-group", nil)
		}

		ctx := cmd.Context()
		var st *sqlstore.Store
		if len(args) > 0 || cfg.SecurityFile == "" {
			var err error
			st, err = openStore(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()
		}

		tableGroup := accessTableGroup
		if len(args) > 0 {
			reg, err := loadRegistry(ctx, st)
			if err != nil {
				return err
			}
			t, err := reg.DescribeTable(args[0])
			if err != nil {
				return cli.GeneralError("access", err)
			}
			tableGroup = t.SecurityDomain()
		}

		src, err := grantSource(st)
		if err != nil {
			return err
		}
		cache, closeCache, err := privilegeCache(ctx)
		if err != nil {
			return err
		}
		defer closeCache()

		r := sbeams.NewResolver(src, sbeams.WithCache(cache))
		p := sbeams.Principal{User: accessUser, WorkGroup: accessWorkGroup}
		return runAccess(ctx, cmd.OutOrStdout(), r, p, tableGroup)
	},
}

func init() {
	f := accessCmd.Flags()
	f.StringVar(&accessUser, "user", "", "user name")
	f.StringVar(&accessWorkGroup, "work-group", "", "current work group of the user")
	f.StringVar(&accessTableGroup, "table-group", "", "table group to check instead of a table's")
	f.StringVar(&accessStatus, "status", "", "record_status of an existing record: N, L, M")
	f.StringVar(&accessCreatedBy, "created-by", "", "created_by of an existing record")
	f.StringVar(&accessModifiedBy, "modified-by", "", "modified_by of an existing record")
	f.StringVar(&accessOwnerGroup, "owner-group", "", "owner_group of an existing record")

	grantsCmd.AddCommand(grantsImportCmd)
}

func runAccess(ctx context.Context, w io.Writer, r *sbeams.Resolver, p sbeams.Principal, tableGroup string) error {
	level, err := r.StrongestPrivilege(ctx, p, tableGroup)
	if err != nil {
		return cli.GeneralError("resolving privilege", err)
	}
	fmt.Fprintf(w, "Principal:   %s\n", p)
	fmt.Fprintf(w, "Table group: %s\n", tableGroup)
	fmt.Fprintf(w, "Privilege:   %s\n", level)
	fmt.Fprintf(w, "Read:        %s\n", allowed(level.AtLeast(sbeams.PrivilegeDataReader)))
	fmt.Fprintf(w, "Insert:      %s\n", allowed(level.AtLeast(sbeams.PrivilegeDataWriter)))

	if accessStatus == "" && accessCreatedBy == "" && accessModifiedBy == "" {
		return nil
	}

	status, err := sbeams.ParseRecordStatus(accessStatus)
	if err != nil {
		return cli.ConfigError("invalid --status", err)
	}
	rec := sbeams.Record{
		TableGroup: tableGroup,
		CreatedBy:  accessCreatedBy,
		ModifiedBy: accessModifiedBy,
		OwnerGroup: accessOwnerGroup,
		Status:     status,
	}
	ev, err := r.EvaluateWrite(ctx, p, rec)
	if err != nil {
		return cli.GeneralError("evaluating write", err)
	}
	fmt.Fprintf(w, "Write %s:  %s (%s)\n", status, allowed(ev.Allowed), ev.Reason)
	return nil
}

func allowed(ok bool) string {
	if ok {
		return "allowed"
	}
	return "denied"
}

// grantSource returns the security_file grants when configured, else st.
func grantSource(st *sqlstore.Store) (sbeams.GrantSource, error) {
	if cfg.SecurityFile != "" {
		g, err := sbeams.LoadGrantsYAML(cfg.SecurityFile)
		if err != nil {
			return nil, cli.ConfigError("loading security_file", err)
		}
		return g, nil
	}
	return st, nil
}

// privilegeCache returns the shared Redis cache when cache.redis_url is set,
// else an in-process cache.
func privilegeCache(ctx context.Context) (sbeams.Cache, func(), error) {
	if cfg.Cache.RedisURL == "" {
		return sbeams.NewCache(sbeams.WithTTL(cfg.Cache.TTL)), func() {}, nil
	}
	c, err := dialRedis(ctx)
	if err != nil {
		return nil, nil, err
	}
	return c, func() { _ = c.Close() }, nil
}

func dialRedis(ctx context.Context) (*rediscache.Cache, error) {
	opt, err := redis.ParseURL(cfg.Cache.RedisURL)
	if err != nil {
		return nil, cli.ConfigError("invalid cache.redis_url", err)
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, cli.DBConnectError("connecting to redis", err)
	}
	return rediscache.New(client, rediscache.WithTTL(cfg.Cache.TTL)), nil
}
