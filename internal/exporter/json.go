package exporter

import (
	"encoding/json"
	"fmt"
	"io"

	"priceindex/internal/multilateral"
)

type jsonTable struct {
	Group string `json:"group,omitempty"`
	*multilateral.IndexTable
}

// writeJSON writes a single ungrouped table as an object and anything else as an array
func (e *Exporter) writeJSON(w io.Writer, tables []Labelled) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	var v interface{}
	if len(tables) == 1 && tables[0].Group == "" {
		v = tables[0].Table
	} else {
		out := make([]jsonTable, len(tables))
		for i, t := range tables {
			out[i] = jsonTable{Group: t.Group, IndexTable: t.Table}
		}
		v = out
	}

	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode json: %w", err)
	}
	return nil
}
