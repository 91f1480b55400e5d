package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/systemsbiology/sbeams-core/internal/cli"
	"github.com/systemsbiology/sbeams-core/pkg/store/sqlstore"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show registry database status",
	Long:  `Show whether the driver tables exist, how many rows they hold, and the last load of each file.`,
	Example: `  # Check status
  sbeams status --db postgres://localhost/sbeams`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		s, err := st.GetStatus(ctx)
		if err != nil {
			return cli.GeneralError("getting status", err)
		}
		printStatus(cmd.OutOrStdout(), s)
		return nil
	},
}

func printStatus(w io.Writer, s *sqlstore.Status) {
	if !s.SchemaApplied {
		fmt.Fprintln(w, "Driver tables: missing")
		return
	}
	fmt.Fprintln(w, "Driver tables: present")
	fmt.Fprintf(w, "Tables:        %d\n", s.Tables)
	fmt.Fprintf(w, "Columns:       %d\n", s.Columns)
	fmt.Fprintf(w, "Table groups:  %d\n", s.TableGroups)
	fmt.Fprintf(w, "Work groups:   %d\n", s.WorkGroups)

	if len(s.LastLoads) == 0 {
		fmt.Fprintln(w, "\nNo driver files loaded yet.")
		return
	}
	fmt.Fprintln(w, "\nLast loads:")
	for _, l := range s.LastLoads {
		fmt.Fprintf(w, "  %-40s %s  %s  +%d ~%d -%d  %d error(s)\n",
			l.File, l.LoadedAt.Local().Format("2006-01-02 15:04:05"), l.Checksum[:min(12, len(l.Checksum))],
			l.Inserted, l.Updated, l.Deleted, l.Errors)
	}
}
