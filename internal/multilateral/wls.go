package multilateral

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// DefaultRankTolerance is the relative singular value cutoff used by the SVD fallback
const DefaultRankTolerance = 1e-10

// Fit holds the result of a weighted least squares regression
type Fit struct {
	Coefficients []float64 `json:"coefficients"`
	RSS          float64   `json:"rss"`
	R2           float64   `json:"r2"`
	DF           int       `json:"df"`
	Rank         int       `json:"rank"`
	// Pseudoinverse is set when the design was rank deficient and the
	// minimum norm solution was returned.
	Pseudoinverse bool `json:"pseudoinverse"`
}

// WLS solves min Σ w_i (y_i - x_i·β)² by scaling rows with √w_i and solving
// the resulting least squares problem through a thin SVD. Rank deficient
// systems get the minimum norm solution.
func WLS(x mat.Matrix, y mat.Vector, w []float64) (*Fit, error) {
	n, k := x.Dims()
	if n == 0 || k == 0 {
		return nil, errors.New("wls: empty design matrix")
	}
	if y.Len() != n {
		return nil, fmt.Errorf("wls: response has %d rows, design has %d", y.Len(), n)
	}
	if len(w) != n {
		return nil, fmt.Errorf("wls: %d weights for %d rows", len(w), n)
	}

	sw := make([]float64, n)
	for i, wi := range w {
		if wi < 0 || math.IsNaN(wi) || math.IsInf(wi, 0) {
			return nil, fmt.Errorf("wls: invalid weight %v at row %d", wi, i)
		}
		sw[i] = math.Sqrt(wi)
	}

	xw := mat.NewDense(n, k, nil)
	yw := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < k; j++ {
			xw.Set(i, j, x.At(i, j)*sw[i])
		}
		yw.SetVec(i, y.AtVec(i)*sw[i])
	}

	fit := &Fit{}
	var beta mat.VecDense
	if err := solveSVD(&beta, xw, yw, fit); err != nil {
		return nil, err
	}
	fit.Pseudoinverse = fit.Rank < k

	fit.Coefficients = make([]float64, k)
	for j := 0; j < k; j++ {
		fit.Coefficients[j] = beta.AtVec(j)
	}
	fit.DF = n - fit.Rank
	summarize(fit, x, y, w, &beta)
	return fit, nil
}

// solveSVD computes the least squares solution with singular values below
// DefaultRankTolerance (relative to the largest) treated as zero.
func solveSVD(dst *mat.VecDense, x *mat.Dense, y *mat.VecDense, fit *Fit) error {
	var svd mat.SVD
	if ok := svd.Factorize(x, mat.SVDThin); !ok {
		return errors.New("wls: SVD factorization failed")
	}
	rank := svd.Rank(DefaultRankTolerance)
	if rank == 0 {
		return errors.New("wls: design matrix has rank zero")
	}
	svd.SolveVecTo(dst, y, rank)
	fit.Rank = rank
	return nil
}

// summarize fills the weighted residual sum of squares and R²
func summarize(fit *Fit, x mat.Matrix, y mat.Vector, w []float64, beta *mat.VecDense) {
	var yhat mat.VecDense
	yhat.MulVec(x, beta)

	var sumW, sumWY float64
	for i, wi := range w {
		sumW += wi
		sumWY += wi * y.AtVec(i)
	}
	mean := 0.0
	if sumW > 0 {
		mean = sumWY / sumW
	}

	var rss, tss float64
	for i, wi := range w {
		r := y.AtVec(i) - yhat.AtVec(i)
		rss += wi * r * r
		d := y.AtVec(i) - mean
		tss += wi * d * d
	}
	fit.RSS = rss
	if tss > 0 {
		fit.R2 = 1 - rss/tss
	} else {
		fit.R2 = 1
	}
}
