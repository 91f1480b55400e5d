// Package doctor provides health checks for the driver table registry.
//
// The doctor command validates that the registry is consistent: the driver
// files parse, the database holds the schema, every registered table has
// columns and resolvable references, and the store is up to date with the
// files on disk.
//
// Example usage:
//
//	d := doctor.New(st, doctor.WithConfDir("lib/conf/Microarray"))
//	report, err := d.Run(ctx)
//	if err != nil {
//		log.Fatal(err)
//	}
//	report.Print(os.Stdout, true) // verbose=true
package doctor

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/systemsbiology/sbeams-core/pkg/driverfile"
	"github.com/systemsbiology/sbeams-core/pkg/loader"
	"github.com/systemsbiology/sbeams-core/pkg/registry"
	"github.com/systemsbiology/sbeams-core/pkg/store"
)

// Status represents the result of a health check.
type Status int

const (
	// StatusPass indicates the check passed.
	StatusPass Status = iota
	// StatusWarn indicates a non-critical issue.
	StatusWarn
	// StatusFail indicates a critical issue that will cause failures.
	StatusFail
)

func (s Status) String() string {
	switch s {
	case StatusPass:
		return "pass"
	case StatusWarn:
		return "warn"
	case StatusFail:
		return "fail"
	default:
		return "unknown"
	}
}

// Symbol returns a status indicator symbol for terminal output.
func (s Status) Symbol() string {
	switch s {
	case StatusPass:
		return "✓"
	case StatusWarn:
		return "⚠"
	case StatusFail:
		return "✗"
	default:
		return "?"
	}
}

// CheckResult represents the outcome of a single health check.
type CheckResult struct {
	// Category groups related checks (e.g., "Driver Files", "Registry").
	Category string

	// Name is a short identifier for the check.
	Name string

	// Status is the check outcome.
	Status Status

	// Message is a human-readable description of the result.
	Message string

	// Details provides additional information for verbose output.
	Details string

	// FixHint suggests how to resolve issues.
	FixHint string
}

// Report contains all health check results.
type Report struct {
	Checks []CheckResult

	// Summary counts.
	Passed   int
	Warnings int
	Errors   int
}

// AddCheck adds a check result and updates summary counts.
func (r *Report) AddCheck(check CheckResult) {
	r.Checks = append(r.Checks, check)
	switch check.Status {
	case StatusPass:
		r.Passed++
	case StatusWarn:
		r.Warnings++
	case StatusFail:
		r.Errors++
	}
}

// Print writes the report to the given writer.
func (r *Report) Print(w io.Writer, verbose bool) {
	// Group checks by category
	categories := make(map[string][]CheckResult)
	var categoryOrder []string
	for _, check := range r.Checks {
		if _, exists := categories[check.Category]; !exists {
			categoryOrder = append(categoryOrder, check.Category)
		}
		categories[check.Category] = append(categories[check.Category], check)
	}

	// Print each category
	for _, cat := range categoryOrder {
		_, _ = fmt.Fprintf(w, "\n%s\n", cat)
		for _, check := range categories[cat] {
			_, _ = fmt.Fprintf(w, "  %s %s\n", check.Status.Symbol(), check.Message)
			if verbose && check.Details != "" {
				// Indent details
				for _, line := range strings.Split(check.Details, "\n") {
					_, _ = fmt.Fprintf(w, "      %s\n", line)
				}
			}
			if check.Status != StatusPass && check.FixHint != "" {
				_, _ = fmt.Fprintf(w, "      Fix: %s\n", check.FixHint)
			}
		}
	}

	// Print summary
	_, _ = fmt.Fprintf(w, "\nSummary: %d passed, %d warnings, %d errors\n",
		r.Passed, r.Warnings, r.Errors)
}

// HasErrors returns true if any check failed.
func (r *Report) HasErrors() bool {
	return r.Errors > 0
}

// SchemaStatus is implemented by stores that can report whether their
// schema is applied, such as sqlstore.Store.
type SchemaStatus interface {
	SchemaApplied(ctx context.Context) (bool, error)
}

// maxDetails bounds the items listed in a check's details.
const maxDetails = 20

// Doctor performs health checks on a descriptor store and its driver files.
type Doctor struct {
	st      store.Store
	confDir string
	vars    map[string]string

	// Cached data from checks (populated during Run)
	files []string
	snap  *registry.Snapshot
}

// Option configures a Doctor.
type Option func(*Doctor)

// WithConfDir enables the driver file checks for the files in dir.
func WithConfDir(dir string) Option {
	return func(d *Doctor) {
		d.confDir = dir
	}
}

// WithTableVars sets the $TB variables checked against db_table_name.
func WithTableVars(vars map[string]string) Option {
	return func(d *Doctor) {
		d.vars = vars
	}
}

// New creates a new Doctor instance.
func New(st store.Store, opts ...Option) *Doctor {
	d := &Doctor{st: st}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run executes all health checks and returns a report.
func (d *Doctor) Run(ctx context.Context) (*Report, error) {
	report := &Report{}

	d.checkDriverFiles(report)
	applied, err := d.checkSchema(ctx, report)
	if err != nil {
		return nil, fmt.Errorf("checking schema: %w", err)
	}
	if !applied {
		return report, nil
	}
	if err := d.checkRegistry(ctx, report); err != nil {
		return nil, fmt.Errorf("checking registry: %w", err)
	}
	if err := d.checkReferences(ctx, report); err != nil {
		return nil, fmt.Errorf("checking references: %w", err)
	}
	if err := d.checkLoadHistory(ctx, report); err != nil {
		return nil, fmt.Errorf("checking load history: %w", err)
	}
	return report, nil
}

// checkDriverFiles parses every driver file in the conf directory.
func (d *Doctor) checkDriverFiles(report *Report) {
	if d.confDir == "" {
		return
	}
	entries, err := os.ReadDir(d.confDir)
	if err != nil {
		report.AddCheck(CheckResult{
			Category: "Driver Files",
			Name:     "conf_dir",
			Status:   StatusFail,
			Message:  fmt.Sprintf("Cannot read driver file directory %s", d.confDir),
			Details:  err.Error(),
			FixHint:  "Set conf_dir in sbeams.yaml or pass --conf-dir",
		})
		return
	}

	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, err := driverfile.DetectKind(e.Name()); err == nil {
			d.files = append(d.files, filepath.Join(d.confDir, e.Name()))
		}
	}
	d.files = loader.OrderFiles(d.files)

	if len(d.files) == 0 {
		report.AddCheck(CheckResult{
			Category: "Driver Files",
			Name:     "found",
			Status:   StatusWarn,
			Message:  fmt.Sprintf("No driver files found in %s", d.confDir),
			FixHint:  "Driver files are named MODULE_table_property.txt and MODULE_table_column.txt",
		})
		return
	}
	report.AddCheck(CheckResult{
		Category: "Driver Files",
		Name:     "found",
		Status:   StatusPass,
		Message:  fmt.Sprintf("%d driver file(s) found in %s", len(d.files), d.confDir),
	})

	for _, path := range d.files {
		batch, err := parseFile(path)
		name := filepath.Base(path)
		if err != nil {
			report.AddCheck(CheckResult{
				Category: "Driver Files",
				Name:     "parse",
				Status:   StatusFail,
				Message:  fmt.Sprintf("%s cannot be read", name),
				Details:  err.Error(),
			})
			continue
		}
		if len(batch.Errors) > 0 {
			var lines []string
			for _, re := range batch.Errors {
				lines = append(lines, re.Error())
			}
			report.AddCheck(CheckResult{
				Category: "Driver Files",
				Name:     "parse",
				Status:   StatusWarn,
				Message:  fmt.Sprintf("%s: %d of %d rows rejected", name, len(batch.Errors), batch.Lines),
				Details:  truncate(lines),
				FixHint:  "Rejected rows are skipped on load; fix them in the spreadsheet and re-export",
			})
			continue
		}
		report.AddCheck(CheckResult{
			Category: "Driver Files",
			Name:     "parse",
			Status:   StatusPass,
			Message:  fmt.Sprintf("%s parses cleanly (%d rows)", name, batch.Len()),
		})
	}
}

func parseFile(path string) (*driverfile.Batch, error) {
	kind, err := driverfile.DetectKind(path)
	if err != nil {
		return nil, err
	}
	opts := driverfile.Options{Source: filepath.Base(path)}
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

// checkSchema verifies the store holds the driver tables.
func (d *Doctor) checkSchema(ctx context.Context, report *Report) (bool, error) {
	ss, ok := d.st.(SchemaStatus)
	if !ok {
		return true, nil
	}
	applied, err := ss.SchemaApplied(ctx)
	if err != nil {
		return false, err
	}
	if !applied {
		report.AddCheck(CheckResult{
			Category: "Database",
			Name:     "schema",
			Status:   StatusFail,
			Message:  "Driver tables do not exist",
			FixHint:  "Run 'sbeams load' to create them",
		})
		return false, nil
	}
	report.AddCheck(CheckResult{
		Category: "Database",
		Name:     "schema",
		Status:   StatusPass,
		Message:  "Driver tables exist",
	})
	return true, nil
}

// checkRegistry builds a snapshot and checks every table has columns and
// every column belongs to a table.
func (d *Doctor) checkRegistry(ctx context.Context, report *Report) error {
	reg := registry.New(registry.WithTableVars(d.vars))
	if err := reg.Reload(ctx, d.st); err != nil {
		return err
	}
	d.snap = reg.Snapshot()

	report.AddCheck(CheckResult{
		Category: "Registry",
		Name:     "tables",
		Status:   StatusPass,
		Message:  fmt.Sprintf("%d table(s) registered in %d table group(s)", d.snap.Len(), len(d.snap.TableGroups())),
	})

	var empty, noKey, badPK, badVar, ties []string
	for _, name := range d.snap.TableNames() {
		t, _ := d.snap.DescribeTable(name)
		cols, _ := d.snap.DescribeColumns(name)
		if len(cols) == 0 {
			empty = append(empty, name)
			continue
		}
		if keys, _ := d.snap.KeyColumns(name); len(keys) == 0 {
			noKey = append(noKey, name)
		}
		for i := 1; i < len(cols); i++ {
			if cols[i].Number == cols[i-1].Number {
				ties = append(ties, fmt.Sprintf("%s: column %d (%s, %s)", name, cols[i].Number, cols[i-1].Name, cols[i].Name))
			}
		}
		if t.PKColumn != "" && !hasColumn(cols, t.PKColumn) {
			badPK = append(badPK, fmt.Sprintf("%s: %s", name, t.PKColumn))
		}
		if len(d.vars) > 0 {
			if _, err := d.snap.ResolvePhysical(name); err != nil {
				badVar = append(badVar, err.Error())
			}
		}
	}

	addList(report, "Registry", "columns", StatusFail, empty,
		"Every table has columns",
		"%d table(s) have no columns",
		"Load the MODULE_table_column file before the table property file")
	addList(report, "Registry", "orphans", StatusWarn, d.snap.Orphans(),
		"Every column belongs to a registered table",
		"%d table(s) have columns but no table_property row",
		"Add the tables to MODULE_table_property.txt")
	addList(report, "Registry", "primary_keys", StatusWarn, badPK,
		"Every PK_column_name names a column",
		"%d table(s) name a missing primary key column",
		"Fix PK_column_name in the table property file")
	addList(report, "Registry", "column_numbers", StatusWarn, ties,
		"Every column_number is unique within its table",
		"%d column_number tie(s); render order falls back to column_name",
		"Renumber the columns in the table column file")
	addList(report, "Registry", "key_fields", StatusWarn, noKey,
		"Every table has key fields",
		"%d table(s) have no is_key_field column; duplicate rows will not be detected",
		"")
	if len(d.vars) > 0 {
		addList(report, "Registry", "table_vars", StatusFail, badVar,
			"Every db_table_name resolves",
			"%d db_table_name variable(s) are undefined",
			"Add them to table_vars in sbeams.yaml")
	}
	return nil
}

// checkReferences checks table groups and foreign key targets.
func (d *Doctor) checkReferences(ctx context.Context, report *Report) error {
	var groups []string
	for _, g := range d.snap.TableGroups() {
		ok, err := d.st.TableGroupExists(ctx, g)
		if err != nil {
			return err
		}
		if !ok {
			groups = append(groups, g)
		}
	}
	addList(report, "References", "table_groups", StatusWarn, groups,
		"Every table_group is a known security domain",
		"%d table group(s) have no grants; their tables are readable by nobody",
		"Grant a work group privileges on the table group")

	var fks []string
	for _, name := range d.snap.TableNames() {
		for c := range d.snap.Columns(name) {
			if c.FKTable == "" {
				continue
			}
			if _, err := d.snap.DescribeTable(c.FKTable); err != nil {
				fks = append(fks, fmt.Sprintf("%s.%s -> %s", name, c.Name, c.FKTable))
			}
		}
	}
	addList(report, "References", "foreign_keys", StatusWarn, fks,
		"Every fk_table is registered",
		"%d foreign key(s) reference unregistered tables",
		"Register the referenced tables or clear fk_table")
	return nil
}

// checkLoadHistory compares driver files with their last recorded load.
func (d *Doctor) checkLoadHistory(ctx context.Context, report *Report) error {
	hist, ok := d.st.(store.History)
	if !ok || len(d.files) == 0 {
		return nil
	}

	var stale, never []string
	for _, path := range d.files {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		name := filepath.Base(path)
		last, err := hist.LastLoad(ctx, name)
		if store.IsNotFoundErr(err) {
			never = append(never, name)
			continue
		}
		if err != nil {
			return err
		}
		if last.Checksum != loader.Checksum(data) {
			stale = append(stale, fmt.Sprintf("%s (last loaded %s)", name, last.LoadedAt.Format("2006-01-02 15:04")))
		}
	}

	addList(report, "Load History", "loaded", StatusWarn, never,
		"Every driver file has been loaded",
		"%d driver file(s) were never loaded",
		"Run 'sbeams load'")
	addList(report, "Load History", "current", StatusWarn, stale,
		"The registry matches the driver files",
		"%d driver file(s) changed since their last load",
		"Run 'sbeams load'")
	return nil
}

// addList adds a pass check when items is empty and a check with the given
// status listing the items otherwise.
func addList(report *Report, category, name string, status Status, items []string, passMsg, failFmt, hint string) {
	if len(items) == 0 {
		report.AddCheck(CheckResult{Category: category, Name: name, Status: StatusPass, Message: passMsg})
		return
	}
	sort.Strings(items)
	report.AddCheck(CheckResult{
		Category: category,
		Name:     name,
		Status:   status,
		Message:  fmt.Sprintf(failFmt, len(items)),
		Details:  truncate(items),
		FixHint:  hint,
	})
}

func truncate(items []string) string {
	if len(items) <= maxDetails {
		return strings.Join(items, "\n")
	}
	return strings.Join(items[:maxDetails], "\n") + fmt.Sprintf("\n... and %d more", len(items)-maxDetails)
}

func hasColumn(cols []registry.ColumnDescriptor, name string) bool {
	for _, c := range cols {
		if c.Name == name {
			return true
		}
	}
	return false
}
