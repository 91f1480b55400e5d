package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/systemsbiology/sbeams-core/internal/cli"
	"github.com/systemsbiology/sbeams-core/pkg/registry"
	"github.com/systemsbiology/sbeams-core/pkg/sqlgen"
)

var (
	ddlDialect   string
	ddlNoFKs     bool
	ddlKeyCheck  bool
	ddlAllTables bool
)

var ddlCmd = &cobra.Command{
	Use:   "ddl [TABLE...]",
	Short: "Print CREATE TABLE SQL for registered tables",
	Long: `Print CREATE TABLE statements generated from the table and column descriptors.

Physical names are resolved through table_vars. With --key-check the
duplicate-row query for the table's is_key_field columns is printed as well.`,
	Example: `  # PostgreSQL DDL for one table
  sbeams ddl MA_array

  # MySQL DDL for every table, without foreign keys
  sbeams ddl --all --dialect mysql --no-fks`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 && !ddlAllTables {
			return cli.ConfigError("name at least one table or use --all", nil)
		}

		var d sqlgen.Dialect
		var err error
		if ddlDialect != "" {
			d, err = sqlgen.ParseDialect(ddlDialect)
		} else {
			d, err = cfg.Dialect()
		}
		if err != nil {
			return cli.ConfigError("invalid dialect", err)
		}

		ctx := cmd.Context()
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		reg, err := loadRegistry(ctx, st)
		if err != nil {
			return err
		}
		snap := reg.Snapshot()

		names := args
		if ddlAllTables {
			names = snap.TableNames()
		}
		return runDDL(cmd.OutOrStdout(), snap, names, d)
	},
}

func init() {
	f := ddlCmd.Flags()
	f.StringVar(&ddlDialect, "dialect", "", "SQL dialect (default: database.driver)")
	f.BoolVar(&ddlNoFKs, "no-fks", false, "omit FOREIGN KEY clauses")
	f.BoolVar(&ddlKeyCheck, "key-check", false, "also print the duplicate key check query")
	f.BoolVar(&ddlAllTables, "all", false, "print every registered table")
}

func runDDL(w io.Writer, snap *registry.Snapshot, names []string, d sqlgen.Dialect) error {
	var opts []sqlgen.Option
	if !ddlNoFKs {
		opts = append(opts, sqlgen.WithForeignKeys(snap.ResolvePhysical))
	}

	for i, name := range names {
		t, err := snap.DescribeTable(name)
		if err != nil {
			return cli.GeneralError("ddl", err)
		}
		cols, err := snap.DescribeColumns(name)
		if err != nil {
			return cli.GeneralError("ddl", err)
		}
		physical, err := snap.ResolvePhysical(name)
		if err != nil {
			return cli.ConfigError("resolving physical table", err)
		}

		stmt, err := sqlgen.CreateTable(t, cols, physical, d, opts...)
		if ddlAllTables && errors.Is(err, sqlgen.ErrNoColumns) {
			fmt.Fprintf(w, "-- %s has no columns\n", name)
			continue
		}
		if err != nil {
			return cli.GeneralError(fmt.Sprintf("generating %s", name), err)
		}
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "-- %s\n%s;\n", name, strings.TrimSuffix(stmt, ";"))

		if !ddlKeyCheck {
			continue
		}
		q, keys, err := sqlgen.KeyCheckQuery(physical, t, cols, d)
		if sqlgen.IsNoKeyColumnsErr(err) {
			fmt.Fprintf(w, "-- %s has no key fields\n", name)
			continue
		}
		if err != nil {
			return cli.GeneralError(fmt.Sprintf("generating %s key check", name), err)
		}
		fmt.Fprintf(w, "-- key check (%s)\n%s;\n", strings.Join(keys, ", "), q)
	}
	return nil
}
