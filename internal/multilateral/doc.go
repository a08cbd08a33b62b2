// Package multilateral computes multilateral price indexes from panel data
// using time dummy regressions.
//
// # Methods
//
//   - TPD (Time Product Dummy): log price regressed on time dummies and
//     product dummies.
//   - TDH (Time Dummy Hedonic): log price regressed on time dummies and
//     product characteristics instead of product identity.
//
// Both regressions are estimated by weighted least squares. The weight of an
// observation is its expenditure share within its own period:
//
//	w_i = p_i q_i / Σ_{j in t(i)} p_j q_j
//
// The index for period t is exp(δ_t), where δ_t is the coefficient of the
// period t dummy and the first period is the base (δ_1 = 0, index 1.0).
//
// # Usage
//
//	p, err := panel.ReadFile("prices.csv", "", panel.DefaultColumns())
//	if err != nil {
//	    return err
//	}
//	calc := multilateral.NewCalculator(slog.Default())
//	table, err := calc.Calculate(ctx, p, multilateral.TPD)
//	if err != nil {
//	    return err
//	}
//	for _, row := range table.Rows {
//	    fmt.Println(row.Period, row.Value)
//	}
package multilateral
