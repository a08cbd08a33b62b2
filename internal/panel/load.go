package panel

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/xuri/excelize/v2"
)

// Observation is a single typed row, used when panels arrive as JSON
type Observation struct {
	ProductID       string         `json:"id" validate:"required"`
	Period          string         `json:"period" validate:"required"`
	Price           float64        `json:"price" validate:"gt=0"`
	Quantity        float64        `json:"quantity" validate:"gte=0"`
	Characteristics map[string]any `json:"characteristics,omitempty"`
}

// labelTypes forces identifier columns to be read as strings so that
// period labels such as "1" or "2024-01" keep their original spelling.
func labelTypes(cols Columns) map[string]series.Type {
	return map[string]series.Type{
		cols.Date:      series.String,
		cols.ProductID: series.String,
	}
}

// ReadCSV loads a panel from CSV with a header row
func ReadCSV(r io.Reader, cols Columns) (*Panel, error) {
	cols = cols.withDefaults()
	df := dataframe.ReadCSV(r, dataframe.WithTypes(labelTypes(cols)))
	if df.Err != nil {
		return nil, fmt.Errorf("read csv: %w", df.Err)
	}
	return New(df, cols)
}

// ReadXLSX loads a panel from a worksheet whose first row is the header.
// An empty sheet name selects the first sheet in the workbook.
func ReadXLSX(r io.Reader, sheet string, cols Columns) (*Panel, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("workbook has no sheets")
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheet, err)
	}
	if len(rows) < 2 {
		return nil, ErrEmptyPanel
	}

	// excelize trims trailing empty cells, so pad every row to the header width
	width := len(rows[0])
	records := make([][]string, 0, len(rows))
	for _, row := range rows {
		if len(strings.Join(row, "")) == 0 {
			continue
		}
		rec := make([]string, width)
		copy(rec, row)
		for i := range rec {
			rec[i] = strings.TrimSpace(rec[i])
		}
		records = append(records, rec)
	}

	cols = cols.withDefaults()
	df := dataframe.LoadRecords(records, dataframe.WithTypes(labelTypes(cols)))
	if df.Err != nil {
		return nil, fmt.Errorf("load sheet %s: %w", sheet, df.Err)
	}
	return New(df, cols)
}

// ReadFile picks ReadCSV or ReadXLSX from the file extension
func ReadFile(path, sheet string, cols Columns) (*Panel, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return ReadXLSX(f, sheet, cols)
	case ".csv", ".txt", "":
		return ReadCSV(f, cols)
	default:
		return nil, fmt.Errorf("unsupported input format: %s", filepath.Ext(path))
	}
}

// FromObservations builds a panel from typed rows. Only the characteristics
// named in cols, plus any extra columns, are materialized; keys present on
// some rows but not requested are ignored. Characteristics whose values are
// all numbers become float columns, anything else is a string column.
func FromObservations(obs []Observation, cols Columns, extra ...string) (*Panel, error) {
	if len(obs) == 0 {
		return nil, ErrEmptyPanel
	}
	cols = cols.withDefaults()

	ids := make([]string, len(obs))
	periods := make([]string, len(obs))
	prices := make([]float64, len(obs))
	quantities := make([]float64, len(obs))
	for i, o := range obs {
		ids[i] = o.ProductID
		periods[i] = o.Period
		prices[i] = o.Price
		quantities[i] = o.Quantity
	}

	columns := []series.Series{
		series.New(ids, series.String, cols.ProductID),
		series.New(periods, series.String, cols.Date),
		series.New(prices, series.Float, cols.Price),
		series.New(quantities, series.Float, cols.Quantity),
	}

	names := append([]string(nil), cols.Characteristics...)
	for _, name := range extra {
		if !slices.Contains(names, name) {
			names = append(names, name)
		}
	}
	for _, name := range names {
		s, err := characteristicSeries(obs, name)
		if err != nil {
			return nil, err
		}
		columns = append(columns, s)
	}

	return New(dataframe.New(columns...), cols)
}

func characteristicSeries(obs []Observation, name string) (series.Series, error) {
	floats := make([]float64, len(obs))
	strs := make([]string, len(obs))
	numeric := true
	for i, o := range obs {
		v, ok := o.Characteristics[name]
		if !ok || v == nil {
			return series.Series{}, &SchemaError{Column: name, Reason: fmt.Sprintf("missing for product %s in period %s", o.ProductID, o.Period)}
		}
		switch x := v.(type) {
		case float64:
			floats[i] = x
		case int:
			floats[i] = float64(x)
		default:
			numeric = false
		}
		strs[i] = fmt.Sprint(v)
	}

	if numeric {
		return series.New(floats, series.Float, name), nil
	}
	return series.New(strs, series.String, name), nil
}
