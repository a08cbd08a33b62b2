package multilateral

import (
	"fmt"
	"math"

	"github.com/go-gota/gota/series"
	"gonum.org/v1/gonum/mat"

	"priceindex/internal/panel"
)

// Design is a regression design matrix with its response and column labels
type Design struct {
	X     *mat.Dense
	Y     *mat.VecDense
	Names []string
	// TimeColumns holds the column index of the dummy for each period after the first
	TimeColumns []int
	Periods     []string
}

// regressor is a named column of the design matrix
type regressor struct {
	name   string
	values []float64
}

// BuildDesign constructs intercept, time dummies and either product
// dummies (no characteristics) or characteristic regressors. The first
// period and the first level of every categorical variable are dropped.
func BuildDesign(p *panel.Panel, characteristics []string) (*Design, error) {
	n := p.Len()
	if n == 0 {
		return nil, panel.ErrEmptyPanel
	}

	prices := p.Prices()
	y := mat.NewVecDense(n, nil)
	for i, price := range prices {
		if price <= 0 || math.IsNaN(price) {
			return nil, fmt.Errorf("%w: row %d has price %v", ErrNonPositivePrice, i, price)
		}
		y.SetVec(i, math.Log(price))
	}

	dates := p.DateLabels()
	periods := panel.DistinctSorted(dates)

	regs := []regressor{{name: "const", values: constant(n)}}
	timeStart := len(regs)
	regs = append(regs, dummies(p.Columns().Date, dates, periods)...)
	timeEnd := len(regs)

	if len(characteristics) == 0 {
		ids := p.ProductIDs()
		regs = append(regs, dummies(p.Columns().ProductID, ids, panel.DistinctSorted(ids))...)
	} else {
		for _, name := range characteristics {
			col, err := p.Column(name)
			if err != nil {
				return nil, err
			}
			regs = append(regs, characteristicRegressors(col)...)
		}
	}

	x := mat.NewDense(n, len(regs), nil)
	names := make([]string, len(regs))
	for j, r := range regs {
		names[j] = r.name
		x.SetCol(j, r.values)
	}

	timeCols := make([]int, 0, timeEnd-timeStart)
	for j := timeStart; j < timeEnd; j++ {
		timeCols = append(timeCols, j)
	}

	return &Design{
		X:           x,
		Y:           y,
		Names:       names,
		TimeColumns: timeCols,
		Periods:     periods,
	}, nil
}

func constant(n int) []float64 {
	v := make([]float64, n)
	for i := range v {
		v[i] = 1
	}
	return v
}

// dummies encodes labels as 0/1 columns for every level but the first
func dummies(prefix string, labels, levels []string) []regressor {
	if len(levels) < 2 {
		return nil
	}
	pos := make(map[string]int, len(levels))
	for i, l := range levels {
		pos[l] = i
	}

	out := make([]regressor, len(levels)-1)
	for i, l := range levels[1:] {
		out[i] = regressor{name: prefix + "_" + l, values: make([]float64, len(labels))}
	}
	for row, l := range labels {
		if k := pos[l]; k > 0 {
			out[k-1].values[row] = 1
		}
	}
	return out
}

// characteristicRegressors enters numeric columns directly and dummy encodes the rest
func characteristicRegressors(col series.Series) []regressor {
	switch col.Type() {
	case series.Float, series.Int:
		return []regressor{{name: col.Name, values: col.Float()}}
	default:
		labels := col.Records()
		return dummies(col.Name, labels, panel.DistinctSorted(labels))
	}
}
