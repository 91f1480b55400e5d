package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/systemsbiology/sbeams-core/internal/cli"
	"github.com/systemsbiology/sbeams-core/pkg/driverfile"
	"github.com/systemsbiology/sbeams-core/pkg/loader"
)

var (
	loadDryRun bool
	loadForce  bool
	loadStrict bool
	loadHeader string
	loadMerge  bool
)

var loadCmd = &cobra.Command{
	Use:   "load [FILE...]",
	Short: "Load driver table files into the registry",
	Long: `Load table_property and table_column driver files into the registry database.

With no arguments every driver file in conf_dir is loaded. Column files load
before table property files, and _MANUAL files load last and are merged
rather than replacing the columns of their tables.

Files whose checksum matches their last load are skipped unless --force is given.`,
	Example: `  # Load every driver file in conf_dir
  sbeams load

  # Preview the changes for one file
  sbeams load --dry-run conf/Microarray_table_column.txt

  # Fail when any row is rejected
  sbeams load --strict`,
	RunE: func(cmd *cobra.Command, args []string) error {
		header, err := driverfile.ParseHeaderMode(resolveString(loadHeader, cfg.Load.Header))
		if err != nil {
			return cli.ConfigError("invalid --header", err)
		}

		paths := args
		if len(paths) == 0 {
			paths, err = driverFiles(cfg.ConfDir)
			if err != nil {
				return err
			}
			if len(paths) == 0 {
				return cli.ConfigError(fmt.Sprintf("no driver files found in %s", cfg.ConfDir), nil)
			}
		}

		opts := loader.Options{
			Header: header,
			Merge:  loadMerge,
			Force:  resolveBool(loadForce, cfg.Load.Force),
		}
		if resolveBool(loadDryRun, cfg.Load.DryRun) {
			opts.DryRun = cmd.OutOrStdout()
		}
		return runLoad(cmd, loader.OrderFiles(paths), opts, resolveBool(loadStrict, cfg.Load.Strict))
	},
}

func init() {
	f := loadCmd.Flags()
	f.BoolVar(&loadDryRun, "dry-run", false, "print the planned changes without applying them")
	f.BoolVar(&loadForce, "force", false, "load files even if unchanged since the last load")
	f.BoolVar(&loadStrict, "strict", false, "exit with an error when any row is rejected")
	f.StringVar(&loadHeader, "header", "", "header line handling: auto, none, present")
	f.BoolVar(&loadMerge, "merge", false, "keep stored columns the file does not list")
}

func runLoad(cmd *cobra.Command, paths []string, opts loader.Options, strict bool) error {
	ctx := cmd.Context()
	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	var bar *progressbar.ProgressBar
	if len(paths) > 1 && opts.DryRun == nil && !quiet {
		bar = progressbar.NewOptions(len(paths),
			progressbar.OptionSetDescription("Loading driver files"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowCount(),
			progressbar.OptionThrottle(65*time.Millisecond),
			progressbar.OptionOnCompletion(func() { fmt.Fprint(os.Stderr, "\n") }),
			progressbar.OptionSetRenderBlankState(true),
		)
	}

	var reports []*loader.Report
	for _, path := range paths {
		if bar != nil {
			bar.Describe(path)
		}
		report, err := loader.LoadFile(ctx, st, path, opts)
		if err != nil {
			if driverfile.IsUnknownKindErr(err) {
				return cli.ParseError(path, err)
			}
			return cli.GeneralError(fmt.Sprintf("loading %s", path), err)
		}
		reports = append(reports, report)
		if bar != nil {
			_ = bar.Add(1)
		}
	}

	out := cmd.OutOrStdout()
	rejected := 0
	for _, r := range reports {
		if r.Skipped {
			log.Ctx(ctx).Debug().Str("file", r.Source).Msg("unchanged, skipped")
			if !quiet {
				fmt.Fprintf(out, "%-40s unchanged\n", r.Source)
			}
			continue
		}
		if !quiet {
			fmt.Fprintf(out, "%-40s %s: %d inserted, %d updated, %d deleted, %d error(s)\n",
				r.Source, r.Kind, r.Inserted, r.Updated, r.Deleted, len(r.Errors))
		}
		for _, e := range r.Errors {
			fmt.Fprintf(cmd.ErrOrStderr(), "  %s\n", e)
		}
		rejected += r.Fatal()
	}

	if strict && rejected > 0 {
		return cli.RowErrors(rejected)
	}
	return nil
}
