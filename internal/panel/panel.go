// Package panel holds price/quantity panel data in a gota DataFrame and
// provides the column-level operations the index methods need.
package panel

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// WeightsColumn is the name of the column added by WithWeights
const WeightsColumn = "weights"

var (
	// ErrEmptyPanel is returned when a panel has no rows
	ErrEmptyPanel = errors.New("panel has no observations")
	// ErrZeroExpenditure is returned when a period's prices times quantities sum to zero
	ErrZeroExpenditure = errors.New("zero total expenditure")
)

// Columns maps the logical fields of an observation to dataframe column names
type Columns struct {
	Price           string   `json:"price" yaml:"price" validate:"required"`
	Quantity        string   `json:"quantity" yaml:"quantity" validate:"required"`
	Date            string   `json:"date" yaml:"date" validate:"required"`
	ProductID       string   `json:"product_id" yaml:"product_id" validate:"required"`
	Characteristics []string `json:"characteristics,omitempty" yaml:"characteristics"`
}

// DefaultColumns returns the conventional column names
func DefaultColumns() Columns {
	return Columns{
		Price:     "price",
		Quantity:  "quantity",
		Date:      "month",
		ProductID: "id",
	}
}

// withDefaults fills empty names with the defaults
func (c Columns) withDefaults() Columns {
	d := DefaultColumns()
	if c.Price == "" {
		c.Price = d.Price
	}
	if c.Quantity == "" {
		c.Quantity = d.Quantity
	}
	if c.Date == "" {
		c.Date = d.Date
	}
	if c.ProductID == "" {
		c.ProductID = d.ProductID
	}
	return c
}

// SchemaError reports a column that is missing or has an unusable type
type SchemaError struct {
	Column string
	Reason string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("column %q: %s", e.Column, e.Reason)
}

// Panel is an immutable set of observations plus the column mapping used to read them
type Panel struct {
	df   dataframe.DataFrame
	cols Columns
}

// New wraps a DataFrame after checking that the mapped columns exist and
// that price and quantity are numeric.
func New(df dataframe.DataFrame, cols Columns) (*Panel, error) {
	if df.Err != nil {
		return nil, fmt.Errorf("load dataframe: %w", df.Err)
	}

	cols = cols.withDefaults()
	present := make(map[string]series.Type, df.Ncol())
	names := df.Names()
	types := df.Types()
	for i, name := range names {
		present[name] = types[i]
	}

	required := []string{cols.Price, cols.Quantity, cols.Date, cols.ProductID}
	required = append(required, cols.Characteristics...)
	for _, name := range required {
		if _, ok := present[name]; !ok {
			return nil, &SchemaError{Column: name, Reason: "not found"}
		}
	}

	for _, name := range []string{cols.Price, cols.Quantity} {
		if !isNumeric(present[name]) {
			return nil, &SchemaError{Column: name, Reason: fmt.Sprintf("expected numeric, got %s", present[name])}
		}
		if df.Col(name).HasNaN() {
			return nil, &SchemaError{Column: name, Reason: "contains missing values"}
		}
	}

	// a NaN regressor would poison the whole design matrix
	for _, name := range cols.Characteristics {
		if df.Col(name).HasNaN() {
			return nil, &SchemaError{Column: name, Reason: "contains missing values"}
		}
	}

	return &Panel{df: df, cols: cols}, nil
}

func isNumeric(t series.Type) bool {
	return t == series.Float || t == series.Int
}

// DataFrame returns the underlying frame
func (p *Panel) DataFrame() dataframe.DataFrame {
	return p.df
}

// Columns returns the column mapping
func (p *Panel) Columns() Columns {
	return p.cols
}

// Len returns the number of observations
func (p *Panel) Len() int {
	return p.df.Nrow()
}

// Prices returns the price column
func (p *Panel) Prices() []float64 {
	return p.df.Col(p.cols.Price).Float()
}

// Quantities returns the quantity column
func (p *Panel) Quantities() []float64 {
	return p.df.Col(p.cols.Quantity).Float()
}

// DateLabels returns the date column rendered as strings, one per row
func (p *Panel) DateLabels() []string {
	return p.df.Col(p.cols.Date).Records()
}

// ProductIDs returns the product id column rendered as strings, one per row
func (p *Panel) ProductIDs() []string {
	return p.df.Col(p.cols.ProductID).Records()
}

// Column returns an arbitrary column by name
func (p *Panel) Column(name string) (series.Series, error) {
	for _, n := range p.df.Names() {
		if n == name {
			return p.df.Col(name), nil
		}
	}
	return series.Series{}, &SchemaError{Column: name, Reason: "not found"}
}

// Periods returns the distinct values of the date column in order.
// Labels are ordered numerically when all of them parse as finite numbers,
// lexicographically otherwise.
func (p *Panel) Periods() []string {
	return DistinctSorted(p.DateLabels())
}

// DistinctSorted returns the unique labels using the same ordering as Periods
func DistinctSorted(labels []string) []string {
	seen := make(map[string]struct{}, len(labels))
	out := make([]string, 0)
	for _, l := range labels {
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, l)
	}

	numeric := make([]float64, len(out))
	allNumeric := len(out) > 0
	for i, l := range out {
		v, err := strconv.ParseFloat(l, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			allNumeric = false
			break
		}
		numeric[i] = v
	}

	if allNumeric {
		idx := make([]int, len(out))
		for i := range idx {
			idx[i] = i
		}
		sort.SliceStable(idx, func(a, b int) bool { return numeric[idx[a]] < numeric[idx[b]] })
		sorted := make([]string, len(out))
		for i, j := range idx {
			sorted[i] = out[j]
		}
		return sorted
	}

	sort.Strings(out)
	return out
}

// ExpenditureShares computes, for every row, price*quantity divided by the
// summed price*quantity of all rows in the same period.
func (p *Panel) ExpenditureShares() ([]float64, error) {
	if p.Len() == 0 {
		return nil, ErrEmptyPanel
	}

	prices := p.Prices()
	quantities := p.Quantities()
	dates := p.DateLabels()

	expenditure := make([]float64, len(prices))
	totals := make(map[string]float64)
	for i := range prices {
		expenditure[i] = prices[i] * quantities[i]
		totals[dates[i]] += expenditure[i]
	}

	shares := make([]float64, len(prices))
	for i := range expenditure {
		total := totals[dates[i]]
		if total == 0 || math.IsNaN(total) {
			return nil, fmt.Errorf("%w in period %s", ErrZeroExpenditure, dates[i])
		}
		shares[i] = expenditure[i] / total
	}
	return shares, nil
}

// WithWeights returns a copy of the panel with the expenditure share column added
func (p *Panel) WithWeights() (*Panel, error) {
	shares, err := p.ExpenditureShares()
	if err != nil {
		return nil, err
	}

	df := p.df.Mutate(series.New(shares, series.Float, WeightsColumn))
	if df.Err != nil {
		return nil, fmt.Errorf("add weights column: %w", df.Err)
	}
	return &Panel{df: df, cols: p.cols}, nil
}

// Weights returns the weights column if WithWeights has been applied
func (p *Panel) Weights() ([]float64, error) {
	s, err := p.Column(WeightsColumn)
	if err != nil {
		return nil, err
	}
	return s.Float(), nil
}

// GroupBy splits the panel on the distinct values of a column.
// Keys are returned in the same order as DistinctSorted.
func (p *Panel) GroupBy(column string) ([]string, map[string]*Panel, error) {
	s, err := p.Column(column)
	if err != nil {
		return nil, nil, err
	}

	labels := s.Records()
	rows := make(map[string][]int)
	for i, l := range labels {
		rows[l] = append(rows[l], i)
	}

	keys := DistinctSorted(labels)
	groups := make(map[string]*Panel, len(keys))
	for _, k := range keys {
		sub := p.df.Subset(rows[k])
		if sub.Err != nil {
			return nil, nil, fmt.Errorf("subset group %s: %w", k, sub.Err)
		}
		groups[k] = &Panel{df: sub, cols: p.cols}
	}
	return keys, groups, nil
}
