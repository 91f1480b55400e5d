package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/systemsbiology/sbeams-core/internal/cli"
	"github.com/systemsbiology/sbeams-core/pkg/driverfile"
)

var checkHeader string

var checkCmd = &cobra.Command{
	Use:   "check [FILE...]",
	Short: "Parse driver table files and report rejected rows",
	Long: `Parse driver table files without touching the database.

Every row error is printed. The command fails when a row would be skipped by
a load; dangling references are reported but do not fail the check.`,
	Example: `  # Check every driver file in conf_dir
  sbeams check

  # Check one file that has no header line
  sbeams check --header none Proteomics_table_property.txt`,
	RunE: func(cmd *cobra.Command, args []string) error {
		header, err := driverfile.ParseHeaderMode(resolveString(checkHeader, cfg.Load.Header))
		if err != nil {
			return cli.ConfigError("invalid --header", err)
		}

		paths := args
		if len(paths) == 0 {
			paths, err = driverFiles(cfg.ConfDir)
			if err != nil {
				return err
			}
		}
		return runCheck(cmd, paths, header)
	},
}

func init() {
	checkCmd.Flags().StringVar(&checkHeader, "header", "", "header line handling: auto, none, present")
}

func runCheck(cmd *cobra.Command, paths []string, header driverfile.HeaderMode) error {
	out := cmd.OutOrStdout()
	rejected := 0
	for _, path := range paths {
		batch, err := parseDriverFile(path, header)
		if err != nil {
			return cli.ParseError(path, err)
		}
		fatal := 0
		for _, e := range batch.Errors {
			if e.Fatal() {
				fatal++
			}
			fmt.Fprintf(out, "  %s\n", e)
		}
		if !quiet {
			fmt.Fprintf(out, "%-40s %s: %d row(s), %d rejected\n", path, batch.Kind, batch.Len(), fatal)
		}
		rejected += fatal
	}
	if rejected > 0 {
		return cli.ParseError(fmt.Sprintf("%d row(s) rejected", rejected), nil)
	}
	return nil
}

// parseDriverFile parses a text or spreadsheet driver file by name.
func parseDriverFile(path string, header driverfile.HeaderMode) (*driverfile.Batch, error) {
	kind, err := driverfile.DetectKind(path)
	if err != nil {
		return nil, err
	}
	opts := driverfile.Options{Header: header, Source: path}
	if driverfile.IsSpreadsheet(path) {
		return driverfile.ParseXLSX(path, kind, opts)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return driverfile.Parse(f, kind, opts)
}
