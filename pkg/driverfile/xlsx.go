package driverfile

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/tealeg/xlsx"

	"github.com/systemsbiology/sbeams-core/pkg/registry"
)

// ParseXLSX reads the first sheet of an .xlsx workbook as a driver file.
// Line numbers in RowErrors are spreadsheet row numbers. Rows shorter than
// the kind's field count are padded, since workbooks do not store trailing
// empty cells.
func ParseXLSX(path string, kind registry.Kind, opts Options) (*Batch, error) {
	if opts.Source == "" {
		opts.Source = filepath.Base(path)
	}
	p, err := newParser(kind, opts)
	if err != nil {
		return nil, err
	}

	wb, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening workbook %s: %w", path, err)
	}
	if len(wb.Sheets) == 0 {
		return p.batch, nil
	}

	for i, row := range wb.Sheets[0].Rows {
		if row == nil {
			continue
		}
		fields := make([]string, len(row.Cells))
		empty := true
		for j, cell := range row.Cells {
			if cell == nil {
				continue
			}
			fields[j] = cell.Value
			if strings.TrimSpace(cell.Value) != "" {
				empty = false
			}
		}
		if empty {
			continue
		}
		p.record(i+1, fields, true)
	}
	return p.batch, nil
}

// IsSpreadsheet reports whether path names an .xlsx workbook.
func IsSpreadsheet(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".xlsx")
}
