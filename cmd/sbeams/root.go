package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/systemsbiology/sbeams-core/internal/cli"
)

var (
	// Global state set during PersistentPreRunE
	cfg        *cli.Config
	configPath string

	// Persistent flags
	cfgFile  string
	verbose  int
	quiet    bool
	dbURL    string
	dbDriver string
)

var rootCmd = &cobra.Command{
	Use:   "sbeams",
	Short: "SBEAMS driver table registry",
	Long: `sbeams - SBEAMS driver table registry

Loads the MODULE_table_property and MODULE_table_column driver files that
describe every managed table, and answers access questions against the
work group security tables.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip config loading for help/completion/version commands
		if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "version" {
			return nil
		}

		var err error
		cfg, configPath, err = cli.LoadConfig(cfgFile)
		if err != nil {
			return cli.ConfigError("loading configuration", err)
		}

		logCfg := cfg.Log
		switch {
		case quiet:
			logCfg.Level = "error"
		case verbose == 1:
			logCfg.Level = "debug"
		case verbose > 1:
			logCfg.Level = "trace"
		}
		logger, err := cli.NewLogger(logCfg, os.Stderr)
		if err != nil {
			return cli.ConfigError("configuring logging", err)
		}

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		cmd.SetContext(cli.WithLogger(ctx, logger))
		return nil
	},
	SilenceUsage:  true, // Don't show usage on errors
	SilenceErrors: true, // We handle errors ourselves
}

// Command group IDs
const (
	groupRegistry = "registry"
	groupSecurity = "security"
	groupUtility  = "utility"
)

func init() {
	// Persistent flags (available to all commands)
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default: auto-discover sbeams.yaml)")
	pf.CountVarP(&verbose, "verbose", "v", "increase verbosity (can be repeated)")
	pf.BoolVarP(&quiet, "quiet", "q", false, "suppress non-error output")
	pf.StringVar(&dbURL, "db", "", "database URL or DSN")
	pf.StringVar(&dbDriver, "driver", "", "database driver (postgres, pgx, mysql, sqlite3)")

	// Define command groups
	rootCmd.AddGroup(
		&cobra.Group{ID: groupRegistry, Title: "Registry:"},
		&cobra.Group{ID: groupSecurity, Title: "Security:"},
		&cobra.Group{ID: groupUtility, Title: "Utility:"},
	)

	// Registry commands
	for _, c := range []*cobra.Command{loadCmd, checkCmd, describeCmd, ddlCmd, statusCmd, doctorCmd} {
		c.GroupID = groupRegistry
		rootCmd.AddCommand(c)
	}

	// Security commands
	for _, c := range []*cobra.Command{accessCmd, grantsCmd} {
		c.GroupID = groupSecurity
		rootCmd.AddCommand(c)
	}

	// Utility commands
	configCmd.GroupID = groupUtility
	versionCmd.GroupID = groupUtility
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		cli.ExitWithError(err)
	}
}

// resolveString returns the first non-empty string from the provided values.
// Used to implement precedence: flag > config > default.
func resolveString(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// resolveBool returns true if any of the provided values is true.
// Used for boolean flags where any true value should win.
func resolveBool(values ...bool) bool {
	for _, v := range values {
		if v {
			return true
		}
	}
	return false
}
