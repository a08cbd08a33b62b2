package multilateral

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"priceindex/internal/panel"
)

// ValueColumn is the label of the index column in exported tables
const ValueColumn = "index_value"

// IndexRow is one labelled index value
type IndexRow struct {
	Period string  `json:"period"`
	Value  float64 `json:"index_value"`
}

// IndexTable holds one index value per period, in period order
type IndexTable struct {
	Method       Method     `json:"method"`
	Rows         []IndexRow `json:"rows"`
	Observations int        `json:"observations"`
	Fit          *Fit       `json:"fit,omitempty"`
}

// Len returns the number of periods
func (t *IndexTable) Len() int {
	return len(t.Rows)
}

// Periods returns the row labels
func (t *IndexTable) Periods() []string {
	out := make([]string, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = r.Period
	}
	return out
}

// Value looks up the index for a period
func (t *IndexTable) Value(period string) (float64, bool) {
	for _, r := range t.Rows {
		if r.Period == period {
			return r.Value, true
		}
	}
	return 0, false
}

// Rebased returns a copy of the table divided through by the value of the given period
func (t *IndexTable) Rebased(period string) (*IndexTable, error) {
	base, ok := t.Value(period)
	if !ok {
		return nil, fmt.Errorf("rebase: period %q not in index", period)
	}
	out := *t
	out.Rows = make([]IndexRow, len(t.Rows))
	for i, r := range t.Rows {
		out.Rows[i] = IndexRow{Period: r.Period, Value: r.Value / base}
	}
	return &out, nil
}

// Calculator computes multilateral indexes
type Calculator struct {
	logger *slog.Logger
}

// NewCalculator creates a calculator; a nil logger uses slog.Default
func NewCalculator(logger *slog.Logger) *Calculator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Calculator{logger: logger.With(slog.String("component", "multilateral"))}
}

// Calculate computes the index for every distinct period of the panel.
// The method is checked before anything else; TDH additionally requires
// the panel to name at least one characteristic column.
func (c *Calculator) Calculate(ctx context.Context, p *panel.Panel, method Method) (*IndexTable, error) {
	if !method.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMethod, string(method))
	}

	characteristics := p.Columns().Characteristics
	if method.RequiresCharacteristics() && len(characteristics) == 0 {
		return nil, ErrCharacteristicsRequired
	}
	if method == TPD {
		characteristics = nil
	}

	start := time.Now()
	periods := p.Periods()
	c.logger.DebugContext(ctx, "starting index calculation",
		"method", method.String(),
		"observations", p.Len(),
		"periods", len(periods),
	)

	weighted, err := p.WithWeights()
	if err != nil {
		return nil, fmt.Errorf("calculate weights: %w", err)
	}

	est, err := TimeDummy(ctx, weighted, len(periods), characteristics)
	if err != nil {
		return nil, err
	}

	table := &IndexTable{
		Method:       method,
		Rows:         make([]IndexRow, len(periods)),
		Observations: p.Len(),
		Fit:          est.Fit,
	}
	for i, period := range periods {
		table.Rows[i] = IndexRow{Period: period, Value: est.Index[i]}
	}

	if est.Fit.Pseudoinverse {
		c.logger.WarnContext(ctx, "design matrix is rank deficient, used minimum norm solution",
			"method", method.String(),
			"rank", est.Fit.Rank,
			"columns", len(est.Design),
		)
	}
	c.logger.InfoContext(ctx, "index calculation completed",
		"method", method.String(),
		"periods", table.Len(),
		"r2", est.Fit.R2,
		"duration", time.Since(start),
	)
	return table, nil
}
