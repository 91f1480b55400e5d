// Package driverfile reads the tab-delimited driver table files
// (MODULE_table_property.txt, MODULE_table_column.txt) into registry
// descriptors.
//
// Parsing is fail-soft: every problem with a line becomes a RowError
// carrying the 1-based line number, the line is skipped, and parsing
// continues. The returned error is reserved for I/O failures.
//
// # Basic Usage
//
//	f, _ := os.Open("Microarray_table_column.txt")
//	batch, err := driverfile.Parse(f, registry.KindColumnProperty, driverfile.Options{})
//	if err != nil {
//	    return err
//	}
//	for _, re := range batch.Errors {
//	    fmt.Println(re)
//	}
//
// Spreadsheets saved as .xlsx go through ParseXLSX, which feeds the first
// sheet through the same row pipeline.
package driverfile

import (
	"bufio"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/systemsbiology/sbeams-core/pkg/registry"
)

// HeaderMode controls header line handling.
type HeaderMode int

const (
	// HeaderAuto skips the first non-empty line when its first field is
	// "table_name".
	HeaderAuto HeaderMode = iota

	// HeaderNone treats every line as data.
	HeaderNone

	// HeaderPresent always skips the first non-empty line.
	HeaderPresent
)

// ParseHeaderMode accepts "auto", "none" or "present".
func ParseHeaderMode(s string) (HeaderMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return HeaderAuto, nil
	case "none", "no", "false":
		return HeaderNone, nil
	case "present", "yes", "true":
		return HeaderPresent, nil
	}
	return HeaderAuto, fmt.Errorf("unknown header mode %q", s)
}

// Options configures parsing.
type Options struct {
	Header HeaderMode

	// Source names the input in RowErrors, typically the file name.
	Source string
}

// TableRow is a parsed table_property line.
type TableRow struct {
	Line int
	registry.TableDescriptor
}

// ColumnRow is a parsed table_column line.
type ColumnRow struct {
	Line int
	registry.ColumnDescriptor
}

// Batch is the result of parsing one driver file.
type Batch struct {
	Kind    registry.Kind
	Source  string
	Tables  []TableRow
	Columns []ColumnRow
	Errors  []RowError

	// Lines is the number of data lines seen, valid or not.
	Lines int
}

// Len returns the number of rows that parsed successfully.
func (b *Batch) Len() int {
	return len(b.Tables) + len(b.Columns)
}

// Count returns the number of errors of kind k.
func (b *Batch) Count(k ErrorKind) int {
	n := 0
	for _, e := range b.Errors {
		if e.Kind == k {
			n++
		}
	}
	return n
}

// TableNames returns the distinct table names in file order.
func (b *Batch) TableNames() []string {
	seen := make(map[string]bool)
	var out []string
	add := func(name string) {
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	for _, t := range b.Tables {
		add(t.Name)
	}
	for _, c := range b.Columns {
		add(c.Table)
	}
	return out
}

// maxLineSize bounds a single line; optionlist queries can be long.
const maxLineSize = 1 << 20

// Parse reads tab-delimited rows of the given kind from r.
func Parse(r io.Reader, kind registry.Kind, opts Options) (*Batch, error) {
	p, err := newParser(kind, opts)
	if err != nil {
		return nil, err
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimRight(sc.Text(), "\r\n")
		if strings.TrimSpace(text) == "" {
			continue
		}
		p.record(line, strings.Split(text, "\t"), false)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", p.batch.Source, err)
	}
	return p.batch, nil
}

// ParseString is Parse over a string.
func ParseString(content string, kind registry.Kind, opts Options) (*Batch, error) {
	return Parse(strings.NewReader(content), kind, opts)
}

type parser struct {
	batch      *Batch
	header     HeaderMode
	seenHeader bool
}

func newParser(kind registry.Kind, opts Options) (*parser, error) {
	if kind.FieldCount() == 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	return &parser{
		batch:  &Batch{Kind: kind, Source: opts.Source},
		header: opts.Header,
	}, nil
}

// record handles one non-empty line. padded rows come from spreadsheets,
// which do not store trailing empty cells.
func (p *parser) record(line int, fields []string, padded bool) {
	if !p.seenHeader {
		p.seenHeader = true
		switch p.header {
		case HeaderPresent:
			return
		case HeaderAuto:
			if strings.EqualFold(strings.TrimSpace(fields[0]), "table_name") {
				return
			}
		}
	}

	b := p.batch
	b.Lines++
	want := b.Kind.FieldCount()
	base := RowError{Source: b.Source, Line: line, Table: unquote(strings.TrimSpace(fields[0]))}
	if b.Kind == registry.KindColumnProperty && len(fields) > tcColumnName {
		base.Column = unquote(strings.TrimSpace(fields[tcColumnName]))
	}

	if padded && len(fields) < want {
		fields = append(fields, make([]string, want-len(fields))...)
	}
	if len(fields) < want {
		base.Kind = MalformedRow
		base.Msg = fmt.Sprintf("%d fields, want %d", len(fields), want)
		b.Errors = append(b.Errors, base)
		return
	}
	for i := want; i < len(fields); i++ {
		if strings.TrimSpace(fields[i]) != "" {
			base.Kind = MalformedRow
			base.Msg = fmt.Sprintf("%d fields, want %d", len(fields), want)
			b.Errors = append(b.Errors, base)
			return
		}
	}

	for i := range fields[:want] {
		fields[i] = unquote(strings.TrimSpace(fields[i]))
	}

	switch b.Kind {
	case registry.KindTableProperty:
		t, errs := tableFromFields(fields, base)
		if len(errs) > 0 {
			b.Errors = append(b.Errors, errs...)
			return
		}
		b.Tables = append(b.Tables, TableRow{Line: line, TableDescriptor: t})
	case registry.KindColumnProperty:
		c, errs := columnFromFields(fields, base)
		if len(errs) > 0 {
			b.Errors = append(b.Errors, errs...)
			return
		}
		b.Columns = append(b.Columns, ColumnRow{Line: line, ColumnDescriptor: c})
	}
}

// unquote removes the double quotes spreadsheet exports put around fields
// containing commas or quotes.
func unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return strings.ReplaceAll(s[1:len(s)-1], `""`, `"`)
	}
	return s
}

// DetectKind infers the driver table kind from a file name such as
// Proteomics_table_property.txt or Proteomics_column_property_MANUAL.txt.
func DetectKind(path string) (registry.Kind, error) {
	base := strings.ToLower(filepath.Base(path))
	switch {
	case strings.Contains(base, "table_property"):
		return registry.KindTableProperty, nil
	case strings.Contains(base, "table_column"), strings.Contains(base, "column_property"):
		return registry.KindColumnProperty, nil
	}
	return 0, fmt.Errorf("%w: %s", ErrUnknownKind, filepath.Base(path))
}

// IsManual reports whether path is a hand-maintained _MANUAL supplement,
// which is merged into the registry rather than replacing a table's columns.
func IsManual(path string) bool {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return strings.HasSuffix(strings.ToUpper(base), "_MANUAL")
}
