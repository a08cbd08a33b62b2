// Package exporter writes computed index tables to CSV, XLSX or JSON.
//
// CSV output has a period,index_value header; grouped exports prepend a
// group column. XLSX output puts every table on its own worksheet and adds
// an "info" sheet with the method, observation count and fit statistics.
// JSON output is the IndexTable itself, or an array of tables with their
// group label.
//
// Example usage:
//
//	exp := exporter.New(exporter.DefaultOptions(), logger)
//
//	// format inferred from the extension
//	err := exp.WriteFile("out/index.xlsx", "", exporter.Labelled{Table: table})
//
//	// grouped computation streamed to an HTTP response
//	err = exp.Write(w, exporter.FormatCSV, tables...)
package exporter
