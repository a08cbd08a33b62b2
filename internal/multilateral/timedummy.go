package multilateral

import (
	"context"
	"fmt"
	"math"

	"priceindex/internal/panel"
)

// Estimate is the outcome of a time dummy regression
type Estimate struct {
	Periods []string
	// Index holds exp(δ_t) per period, the first period fixed at 1
	Index  []float64
	Fit    *Fit
	Design []string
}

// TimeDummy runs the time dummy regression on a panel that already carries
// the weights column. numPeriods must equal the number of distinct periods.
// With no characteristics the regression uses product dummies (TPD),
// otherwise it uses the named characteristic columns (TDH).
func TimeDummy(ctx context.Context, p *panel.Panel, numPeriods int, characteristics []string) (*Estimate, error) {
	weights, err := p.Weights()
	if err != nil {
		return nil, fmt.Errorf("weights: %w", err)
	}

	design, err := BuildDesign(p, characteristics)
	if err != nil {
		return nil, fmt.Errorf("build design: %w", err)
	}
	if len(design.Periods) != numPeriods {
		return nil, fmt.Errorf("%w: panel has %d, expected %d", ErrPeriodMismatch, len(design.Periods), numPeriods)
	}

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("time dummy cancelled: %w", ctx.Err())
	default:
	}

	fit, err := WLS(design.X, design.Y, weights)
	if err != nil {
		return nil, fmt.Errorf("solve wls: %w", err)
	}

	index := make([]float64, numPeriods)
	index[0] = 1
	for i, col := range design.TimeColumns {
		index[i+1] = math.Exp(fit.Coefficients[col])
	}

	return &Estimate{
		Periods: design.Periods,
		Index:   index,
		Fit:     fit,
		Design:  design.Names,
	}, nil
}
