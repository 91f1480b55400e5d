// Package loader applies driver table files to a descriptor store.
//
// A load parses one file, upserts every valid row by its natural key and,
// for column files, deletes stored columns the file no longer lists. All
// writes of a load run inside one store transaction, so readers see either
// the previous state or the complete new one.
//
// # Usage
//
//	report, err := loader.LoadFile(ctx, st, "Microarray_table_column.txt", loader.Options{})
//	if err != nil {
//	    return err
//	}
//	for _, re := range report.Errors {
//	    fmt.Println(re)
//	}
//
// Stores that also implement store.History remember the checksum of every
// load; an unchanged file is skipped unless Options.Force is set.
package loader

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"

	"github.com/rs/zerolog/log"

	"github.com/systemsbiology/sbeams-core/pkg/driverfile"
	"github.com/systemsbiology/sbeams-core/pkg/registry"
	"github.com/systemsbiology/sbeams-core/pkg/store"
)

// Options configures a load.
type Options struct {
	// Header controls header line handling. See driverfile.HeaderMode.
	Header driverfile.HeaderMode

	// Source names the file in row errors and in the load history. Loads
	// without a Source are not recorded and never skipped.
	Source string

	// Merge keeps stored columns that the file does not list. LoadFile sets
	// it for _MANUAL files.
	Merge bool

	// DryRun writes the planned changes to the provided writer without
	// touching the store.
	DryRun io.Writer

	// Force loads the file even if its checksum matches the last load.
	Force bool
}

// Report summarizes one load.
type Report struct {
	Source   string                `json:"source,omitempty"`
	Kind     registry.Kind         `json:"kind"`
	Inserted int                   `json:"inserted"`
	Updated  int                   `json:"updated"`
	Deleted  int                   `json:"deleted"`
	Errors   []driverfile.RowError `json:"errors,omitempty"`

	// Skipped is set when the file matched the checksum of its last load.
	Skipped  bool   `json:"skipped,omitempty"`
	Checksum string `json:"checksum"`
}

// Fatal returns the number of errors that caused a row to be skipped.
func (r *Report) Fatal() int {
	n := 0
	for _, e := range r.Errors {
		if e.Fatal() {
			n++
		}
	}
	return n
}

// Checksum returns the SHA-256 hex digest used to detect unchanged files.
func Checksum(content []byte) string {
	h := sha256.Sum256(content)
	return hex.EncodeToString(h[:])
}

// LoadFromSource parses contents as a driver table of the given kind and
// applies it to st.
func LoadFromSource(ctx context.Context, st store.Store, contents string, kind registry.Kind, opts Options) (*Report, error) {
	checksum := Checksum([]byte(contents))
	if report, skip, err := checkUnchanged(ctx, st, kind, checksum, opts); err != nil || skip {
		return report, err
	}

	batch, err := driverfile.ParseString(contents, kind, driverfile.Options{Header: opts.Header, Source: opts.Source})
	if err != nil {
		return nil, err
	}
	return apply(ctx, st, batch, checksum, opts)
}

// LoadFile loads a driver table file. The kind is detected from the file
// name; .xlsx workbooks are read with driverfile.ParseXLSX. Files named
// *_MANUAL.* are merged rather than replacing the columns of their tables.
func LoadFile(ctx context.Context, st store.Store, path string, opts Options) (*Report, error) {
	kind, err := driverfile.DetectKind(path)
	if err != nil {
		return nil, err
	}
	if driverfile.IsManual(path) {
		opts.Merge = true
	}
	if opts.Source == "" {
		opts.Source = filepath.Base(path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if !driverfile.IsSpreadsheet(path) {
		return LoadFromSource(ctx, st, string(data), kind, opts)
	}

	checksum := Checksum(data)
	if report, skip, err := checkUnchanged(ctx, st, kind, checksum, opts); err != nil || skip {
		return report, err
	}
	batch, err := driverfile.ParseXLSX(path, kind, driverfile.Options{Header: opts.Header, Source: opts.Source})
	if err != nil {
		return nil, err
	}
	return apply(ctx, st, batch, checksum, opts)
}

// OrderFiles returns paths in load order: column files, then table property
// files, then _MANUAL files. Loading columns first keeps a newly
// registered table from being visible without columns. Files of unknown
// kind sort last. The order within each group is preserved.
func OrderFiles(paths []string) []string {
	rank := func(p string) int {
		kind, err := driverfile.DetectKind(p)
		switch {
		case err != nil:
			return 4
		case driverfile.IsManual(p) && kind == registry.KindColumnProperty:
			return 2
		case driverfile.IsManual(p):
			return 3
		case kind == registry.KindColumnProperty:
			return 0
		default:
			return 1
		}
	}
	out := slices.Clone(paths)
	slices.SortStableFunc(out, func(a, b string) int {
		return rank(a) - rank(b)
	})
	return out
}

// checkUnchanged reports whether the load can be skipped because the store
// history holds the same checksum for opts.Source.
func checkUnchanged(ctx context.Context, st store.Store, kind registry.Kind, checksum string, opts Options) (*Report, bool, error) {
	hist, ok := st.(store.History)
	if !ok || opts.Force || opts.DryRun != nil || opts.Source == "" {
		return nil, false, nil
	}
	last, err := hist.LastLoad(ctx, opts.Source)
	if store.IsNotFoundErr(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("checking last load of %s: %w", opts.Source, err)
	}
	if last.Checksum != checksum {
		return nil, false, nil
	}
	log.Ctx(ctx).Info().Str("file", opts.Source).Msg("driver table unchanged, skipping")
	return &Report{Source: opts.Source, Kind: kind, Skipped: true, Checksum: checksum}, true, nil
}

// apply writes batch to st, or describes the writes when opts.DryRun is set.
func apply(ctx context.Context, st store.Store, batch *driverfile.Batch, checksum string, opts Options) (*Report, error) {
	report := &Report{
		Source:   opts.Source,
		Kind:     batch.Kind,
		Errors:   slices.Clone(batch.Errors),
		Checksum: checksum,
	}
	logger := log.Ctx(ctx).With().Str("file", opts.Source).Str("kind", batch.Kind.String()).Logger()

	if opts.DryRun != nil {
		p := &plan{batch: batch, opts: opts, report: report, out: opts.DryRun}
		p.header()
		if err := p.run(ctx, st, nil); err != nil {
			return nil, err
		}
		return report, nil
	}

	err := st.Atomic(ctx, func(tx store.Tx) error {
		p := &plan{batch: batch, opts: opts, report: report}
		return p.run(ctx, tx, tx)
	})
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", batch.Kind, err)
	}

	if hist, ok := st.(store.History); ok && opts.Source != "" {
		if err := hist.RecordLoad(ctx, store.LoadRecord{
			File:     opts.Source,
			Kind:     batch.Kind,
			Checksum: checksum,
			Inserted: report.Inserted,
			Updated:  report.Updated,
			Deleted:  report.Deleted,
			Errors:   len(report.Errors),
		}); err != nil {
			return nil, err
		}
	}

	for _, re := range report.Errors {
		logger.Warn().Int("line", re.Line).Str("error_kind", re.Kind.String()).Msg(re.Msg)
	}
	logger.Info().
		Int("inserted", report.Inserted).
		Int("updated", report.Updated).
		Int("deleted", report.Deleted).
		Int("errors", len(report.Errors)).
		Msg("driver table loaded")
	return report, nil
}
