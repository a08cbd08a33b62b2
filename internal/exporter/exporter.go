package exporter

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"priceindex/internal/multilateral"
)

// Labelled pairs an index table with the group it was computed for.
// Group is empty for an ungrouped computation.
type Labelled struct {
	Group string
	Table *multilateral.IndexTable
}

// Options configures the exporter
type Options struct {
	// GroupColumn names the leading column written for grouped tables
	GroupColumn string
	// Precision is the number of decimals for index values, -1 for shortest
	Precision int
	// BOMPrefix adds a UTF-8 BOM to CSV output for Excel
	BOMPrefix bool
}

// DefaultOptions returns options with shortest float formatting and no BOM
func DefaultOptions() Options {
	return Options{GroupColumn: "group", Precision: -1}
}

// Exporter writes index tables as CSV, XLSX or JSON
type Exporter struct {
	opts   Options
	logger *slog.Logger
}

// New creates an exporter; a nil logger uses slog.Default
func New(opts Options, logger *slog.Logger) *Exporter {
	if opts.GroupColumn == "" {
		opts.GroupColumn = "group"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{opts: opts, logger: logger.With(slog.String("component", "exporter"))}
}

// Write encodes the tables to w in the given format
func (e *Exporter) Write(w io.Writer, format Format, tables ...Labelled) error {
	if len(tables) == 0 {
		return fmt.Errorf("nothing to export")
	}
	for i, t := range tables {
		if t.Table == nil {
			return fmt.Errorf("table %d is nil", i)
		}
	}

	switch format {
	case FormatCSV:
		return e.writeCSV(w, tables)
	case FormatXLSX:
		return e.writeXLSX(w, tables)
	case FormatJSON:
		return e.writeJSON(w, tables)
	default:
		return fmt.Errorf("unsupported export format %q", format)
	}
}

// WriteFile writes the tables to path, creating parent directories. An
// empty format is inferred from the file extension.
func (e *Exporter) WriteFile(path string, format Format, tables ...Labelled) error {
	if format == "" {
		f, err := FormatFromPath(path)
		if err != nil {
			return err
		}
		format = f
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}

	if err := e.Write(file, format, tables...); err != nil {
		file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close file: %w", err)
	}

	e.logger.Info("index exported",
		slog.String("file_path", path),
		slog.String("format", string(format)),
		slog.Int("tables", len(tables)))
	return nil
}

// grouped reports whether any table carries a group label
func grouped(tables []Labelled) bool {
	for _, t := range tables {
		if t.Group != "" {
			return true
		}
	}
	return false
}

// headers returns the column names for flat (CSV) output
func (e *Exporter) headers(tables []Labelled) []string {
	if grouped(tables) {
		return []string{e.opts.GroupColumn, "period", multilateral.ValueColumn}
	}
	return []string{"period", multilateral.ValueColumn}
}
