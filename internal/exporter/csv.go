package exporter

import (
	"encoding/csv"
	"fmt"
	"io"
)

func (e *Exporter) writeCSV(w io.Writer, tables []Labelled) error {
	if e.opts.BOMPrefix {
		if _, err := w.Write([]byte{0xEF, 0xBB, 0xBF}); err != nil {
			return fmt.Errorf("failed to write BOM: %w", err)
		}
	}

	writer := csv.NewWriter(w)
	if err := writer.Write(e.headers(tables)); err != nil {
		return fmt.Errorf("failed to write headers: %w", err)
	}

	withGroup := grouped(tables)
	for _, t := range tables {
		for i, row := range t.Table.Rows {
			record := []string{row.Period, formatFloat(row.Value, e.opts.Precision)}
			if withGroup {
				record = append([]string{t.Group}, record...)
			}
			if err := writer.Write(record); err != nil {
				return fmt.Errorf("failed to write record %d: %w", i, err)
			}
		}
	}

	writer.Flush()
	return writer.Error()
}
