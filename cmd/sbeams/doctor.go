package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/systemsbiology/sbeams-core/internal/cli"
	"github.com/systemsbiology/sbeams-core/internal/doctor"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run health checks",
	Long: `Run health checks on the driver files in conf_dir and the registry database:
unparseable rows, tables without columns, dangling table groups and foreign
keys, unresolved table variables, and files changed since their last load.`,
	Example: `  # Run health checks
  sbeams doctor --db postgres://localhost/sbeams

  # Run with verbose output
  sbeams doctor -v`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		out := cmd.OutOrStdout()
		if !quiet {
			fmt.Fprintln(out, "sbeams doctor - Health Check")
		}

		d := doctor.New(st, doctor.WithConfDir(cfg.ConfDir), doctor.WithTableVars(cfg.TableVars))
		report, err := d.Run(ctx)
		if err != nil {
			return cli.GeneralError("running doctor", err)
		}

		report.Print(out, verbose > 0)

		if report.HasErrors() {
			return cli.GeneralError("health checks failed", nil)
		}
		return nil
	},
}
