package main

import (
	"context"
	"os"
	"path/filepath"
	"sort"

	"github.com/systemsbiology/sbeams-core/internal/cli"
	"github.com/systemsbiology/sbeams-core/pkg/driverfile"
	"github.com/systemsbiology/sbeams-core/pkg/registry"
	"github.com/systemsbiology/sbeams-core/pkg/store/sqlstore"
)

// resolveDSN returns the database connection string from the flag or config.
func resolveDSN(flagDSN string) (string, error) {
	if flagDSN != "" {
		return flagDSN, nil
	}

	dsn, err := cfg.DSN()
	if err != nil {
		return "", cli.ConfigError("database configuration", err)
	}
	if dsn == "" {
		return "", cli.ConfigError("database URL is required (use --db or set in config)", nil)
	}
	return dsn, nil
}

// openStore connects to the configured database and makes sure the driver
// tables exist.
func openStore(ctx context.Context) (*sqlstore.Store, error) {
	dsn, err := resolveDSN(dbURL)
	if err != nil {
		return nil, err
	}
	driver := resolveString(dbDriver, cfg.Database.Driver, "postgres")

	st, err := sqlstore.Open(driver, dsn)
	if err != nil {
		return nil, cli.ConfigError("opening database", err)
	}
	if err := st.Ping(ctx); err != nil {
		_ = st.Close()
		return nil, cli.DBConnectError("connecting to database", err)
	}
	if err := st.EnsureSchema(ctx); err != nil {
		_ = st.Close()
		return nil, cli.GeneralError("creating driver tables", err)
	}
	return st, nil
}

// loadRegistry builds a registry from the store contents.
func loadRegistry(ctx context.Context, st *sqlstore.Store) (*registry.Registry, error) {
	reg := registry.New(registry.WithTableVars(cfg.TableVars))
	if err := reg.Reload(ctx, st); err != nil {
		return nil, cli.GeneralError("loading registry", err)
	}
	return reg, nil
}

// driverFiles returns the driver table files in dir in load order.
func driverFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, cli.ConfigError("reading conf_dir", err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, err := driverfile.DetectKind(e.Name()); err != nil {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}
