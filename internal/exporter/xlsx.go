package exporter

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

const (
	defaultSheet  = "index"
	infoSheet     = "info"
	maxSheetChars = 31
)

// sheetName makes a group label usable as a worksheet name
func sheetName(group string, used map[string]bool) string {
	name := group
	if name == "" {
		name = defaultSheet
	}
	name = strings.Map(func(r rune) rune {
		if strings.ContainsRune(`[]:*?/\`, r) {
			return '_'
		}
		return r
	}, name)
	if len(name) > maxSheetChars {
		name = name[:maxSheetChars]
	}

	base := name
	for i := 2; used[strings.ToLower(name)] || strings.EqualFold(name, infoSheet); i++ {
		suffix := fmt.Sprintf("~%d", i)
		if len(base)+len(suffix) > maxSheetChars {
			base = base[:maxSheetChars-len(suffix)]
		}
		name = base + suffix
	}
	used[strings.ToLower(name)] = true
	return name
}

// writeXLSX writes one worksheet per table plus an info sheet with the
// method, observation count and fit of each table
func (e *Exporter) writeXLSX(w io.Writer, tables []Labelled) error {
	f := excelize.NewFile()
	defer f.Close()

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	used := make(map[string]bool)
	first := true
	for _, t := range tables {
		name := sheetName(t.Group, used)
		if first {
			if err := f.SetSheetName("Sheet1", name); err != nil {
				return fmt.Errorf("failed to rename sheet: %w", err)
			}
			first = false
		} else if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("failed to create sheet %s: %w", name, err)
		}

		if err := f.SetSheetRow(name, "A1", &[]interface{}{"period", "index_value"}); err != nil {
			return fmt.Errorf("failed to write headers: %w", err)
		}
		if err := f.SetCellStyle(name, "A1", "B1", bold); err != nil {
			return fmt.Errorf("failed to style headers: %w", err)
		}

		for i, row := range t.Table.Rows {
			cell, err := excelize.CoordinatesToCellName(1, i+2)
			if err != nil {
				return err
			}
			if err := f.SetSheetRow(name, cell, &[]interface{}{row.Period, row.Value}); err != nil {
				return fmt.Errorf("failed to write record %d: %w", i, err)
			}
		}
	}

	if err := e.writeInfoSheet(f, tables, bold); err != nil {
		return err
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func (e *Exporter) writeInfoSheet(f *excelize.File, tables []Labelled, headerStyle int) error {
	if _, err := f.NewSheet(infoSheet); err != nil {
		return fmt.Errorf("failed to create info sheet: %w", err)
	}

	header := []interface{}{e.opts.GroupColumn, "method", "observations", "periods", "r2", "rank_deficient"}
	if err := f.SetSheetRow(infoSheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write info headers: %w", err)
	}
	if err := f.SetCellStyle(infoSheet, "A1", "F1", headerStyle); err != nil {
		return fmt.Errorf("failed to style info headers: %w", err)
	}

	for i, t := range tables {
		r2, deficient := 0.0, false
		if t.Table.Fit != nil {
			r2, deficient = t.Table.Fit.R2, t.Table.Fit.Pseudoinverse
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []interface{}{t.Group, t.Table.Method.String(), t.Table.Observations, t.Table.Len(), r2, deficient}
		if err := f.SetSheetRow(infoSheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write info row %d: %w", i, err)
		}
	}
	return nil
}
