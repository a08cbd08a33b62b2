// Command indexcalc computes a multilateral price index from a CSV or XLSX
// panel and writes it as CSV, XLSX or JSON.
//
//	indexcalc -in prices.csv -method TPD
//	indexcalc -in prices.xlsx -method TDH -characteristics brand,size -out index.xlsx
//	indexcalc -in prices.csv -method TPD -group region -format json
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"priceindex/internal/config"
	"priceindex/internal/exporter"
	"priceindex/internal/infrastructure"
	"priceindex/internal/panel"
	"priceindex/internal/services"
	"priceindex/internal/validation"
)

// options holds the parsed command line
type options struct {
	in              string
	sheet           string
	method          string
	price           string
	quantity        string
	date            string
	id              string
	characteristics string
	group           string
	base            string
	out             string
	format          string
	precision       int
	bom             bool
	configPath      string
	logLevel        string
}

// errUsage marks command line errors, which exit with status 2
var errUsage = errors.New("usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	if err != nil && !errors.Is(err, flag.ErrHelp) {
		fmt.Fprintf(os.Stderr, "indexcalc: %v\n", err)
	}
	os.Exit(exitCode(err))
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errUsage):
		return 2
	default:
		return 1
	}
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	fs := flag.NewFlagSet("indexcalc", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var o options
	fs.StringVar(&o.in, "in", "", "input panel (.csv or .xlsx)")
	fs.StringVar(&o.sheet, "sheet", "", "worksheet to read from an xlsx input (defaults to the first)")
	fs.StringVar(&o.method, "method", "", "TPD | TDH (defaults to index.default_method)")
	fs.StringVar(&o.price, "price", "", "price column name")
	fs.StringVar(&o.quantity, "quantity", "", "quantity column name")
	fs.StringVar(&o.date, "date", "", "period column name")
	fs.StringVar(&o.id, "id", "", "product id column name")
	fs.StringVar(&o.characteristics, "characteristics", "", "comma separated characteristic columns for TDH")
	fs.StringVar(&o.group, "group", "", "compute one index per value of this column")
	fs.StringVar(&o.base, "base", "", "rebase the index so this period equals 1")
	fs.StringVar(&o.out, "out", "", "output file (defaults to stdout)")
	fs.StringVar(&o.format, "format", "", "csv | xlsx | json (defaults to the -out extension, else csv)")
	fs.IntVar(&o.precision, "precision", -1, "decimals for index values, -1 for shortest")
	fs.BoolVar(&o.bom, "bom", false, "prefix csv output with a UTF-8 BOM")
	fs.StringVar(&o.configPath, "config", "", "YAML config file")
	fs.StringVar(&o.logLevel, "log-level", "warn", "debug | info | warn | error")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("%w: %w", errUsage, err)
	}
	if o.in == "" {
		fs.Usage()
		return nil, fmt.Errorf("%w: -in is required", errUsage)
	}
	return &o, nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	o, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(o.configPath)
	if err != nil {
		return err
	}

	logger := infrastructure.NewLogger(stderr, o.logLevel)

	cols := columns(cfg.Index.Columns(), o)
	method := o.method
	if method == "" {
		method = cfg.Index.DefaultMethod
	}

	format, err := outputFormat(o)
	if err != nil {
		return err
	}

	files := validation.NewFileValidator(logger)
	if _, err := files.ValidateInputFile(o.in); err != nil {
		return err
	}
	if o.out != "" {
		if err := files.ValidateOutputPath(o.out); err != nil {
			return err
		}
	}

	start := time.Now()
	p, err := panel.ReadFile(o.in, o.sheet, cols)
	if err != nil {
		return err
	}
	logger.InfoContext(ctx, "panel loaded",
		slog.String("file", o.in),
		slog.Int("observations", p.Len()),
		slog.Int("periods", len(p.Periods())),
	)

	svc := services.NewIndexService(logger,
		services.WithMaxConcurrency(cfg.Index.MaxConcurrency),
		services.WithMaxObservations(cfg.Index.MaxObservations),
	)
	req := services.ComputeRequest{Method: method, Panel: p, Source: o.in}

	var tables []exporter.Labelled
	if o.group != "" {
		grouped, err := svc.ComputeGrouped(ctx, req, o.group)
		if err != nil {
			return err
		}
		for _, run := range grouped.Runs {
			tables = append(tables, exporter.Labelled{Group: run.Group, Table: run.Table})
		}
	} else {
		run, err := svc.Compute(ctx, req)
		if err != nil {
			return err
		}
		tables = append(tables, exporter.Labelled{Table: run.Table})
	}

	if o.base != "" {
		for i := range tables {
			if tables[i].Table, err = tables[i].Table.Rebased(o.base); err != nil {
				return fmt.Errorf("%s: %w", groupLabel(tables[i].Group), err)
			}
		}
	}

	exp := exporter.New(exporter.Options{
		GroupColumn: o.group,
		Precision:   o.precision,
		BOMPrefix:   o.bom,
	}, logger)

	if o.out == "" {
		err = exp.Write(stdout, format, tables...)
	} else {
		err = exp.WriteFile(o.out, format, tables...)
	}
	if err != nil {
		return err
	}

	logger.InfoContext(ctx, "index computed",
		slog.String("method", method),
		slog.Int("tables", len(tables)),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}

// loadConfig reads the explicit file when given, else the usual locations
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}

// columns overlays the column flags on the configured mapping
func columns(cols panel.Columns, o *options) panel.Columns {
	for _, override := range []struct {
		value string
		dst   *string
	}{
		{o.price, &cols.Price},
		{o.quantity, &cols.Quantity},
		{o.date, &cols.Date},
		{o.id, &cols.ProductID},
	} {
		if override.value != "" {
			*override.dst = override.value
		}
	}
	if o.characteristics != "" {
		cols.Characteristics = nil
		for _, name := range strings.Split(o.characteristics, ",") {
			if name = strings.TrimSpace(name); name != "" {
				cols.Characteristics = append(cols.Characteristics, name)
			}
		}
	}
	return cols
}

func outputFormat(o *options) (exporter.Format, error) {
	switch {
	case o.format != "":
		return exporter.ParseFormat(o.format)
	case o.out != "":
		return exporter.FormatFromPath(o.out)
	default:
		return exporter.FormatCSV, nil
	}
}

func groupLabel(group string) string {
	if group == "" {
		return "index"
	}
	return "group " + group
}
