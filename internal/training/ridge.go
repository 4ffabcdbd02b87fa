package training

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/tigerroll/stationcast/pkg/batch/support/util/exception"
)

// RidgeRegressor is an L2-penalised linear model fitted on standardized features.
type RidgeRegressor struct {
	Lambda float64

	means     []float64
	scales    []float64
	coef      []float64
	intercept float64
}

// NewRidgeRegressor creates an unfitted regressor with penalty lambda.
func NewRidgeRegressor(lambda float64) *RidgeRegressor {
	return &RidgeRegressor{Lambda: lambda}
}

// Fit solves (ZᵀZ + λI)β = Zᵀ(y - ȳ) by Cholesky, where Z is X standardized per column.
// Constant columns get a zero coefficient.
func (r *RidgeRegressor) Fit(x mat.Matrix, y []float64) error {
	n, p := x.Dims()
	if n != len(y) {
		return exception.NewBatchErrorf(moduleName, "feature matrix has %d rows but target has %d", n, len(y))
	}
	if n == 0 {
		return exception.NewBatchError(moduleName, "cannot fit on zero rows", exception.ErrEmptyDataset, false, false)
	}

	r.means = make([]float64, p)
	r.scales = make([]float64, p)
	constant := make([]bool, p)
	col := make([]float64, n)
	for j := 0; j < p; j++ {
		mat.Col(col, j, x)
		mean, std := stat.PopMeanStdDev(col, nil)
		r.means[j] = mean
		if std == 0 || math.IsNaN(std) {
			std, constant[j] = 1, true
		}
		r.scales[j] = std
	}
	z := r.standardize(x)

	gram := mat.NewSymDense(p, nil)
	gram.SymOuterK(1, z.T())
	for j := 0; j < p; j++ {
		d := gram.At(j, j) + r.Lambda
		if constant[j] {
			d++
		}
		gram.SetSym(j, j, d)
	}

	r.intercept = stat.Mean(y, nil)
	centered := make([]float64, n)
	for i, v := range y {
		centered[i] = v - r.intercept
	}
	var rhs mat.VecDense
	rhs.MulVec(z.T(), mat.NewVecDense(n, centered))

	var chol mat.Cholesky
	if ok := chol.Factorize(gram); !ok {
		return exception.NewBatchErrorf(moduleName, "normal equations are singular; increase ridge_lambda (currently %v)", r.Lambda)
	}
	var beta mat.VecDense
	if err := chol.SolveVecTo(&beta, &rhs); err != nil {
		return exception.NewBatchError(moduleName, "failed to solve normal equations", err, false, false)
	}
	r.coef = make([]float64, p)
	for j := range r.coef {
		if !constant[j] {
			r.coef[j] = beta.AtVec(j)
		}
	}
	return nil
}

func (r *RidgeRegressor) standardize(x mat.Matrix) *mat.Dense {
	n, p := x.Dims()
	z := mat.NewDense(n, p, nil)
	z.Apply(func(i, j int, v float64) float64 {
		return (v - r.means[j]) / r.scales[j]
	}, x)
	return z
}

// Predict returns one estimate per row of x.
func (r *RidgeRegressor) Predict(x mat.Matrix) ([]float64, error) {
	if r.coef == nil {
		return nil, exception.NewBatchErrorf(moduleName, "regressor is not fitted")
	}
	n, p := x.Dims()
	if p != len(r.coef) {
		return nil, exception.NewBatchErrorf(moduleName, "expected %d features, got %d", len(r.coef), p)
	}
	var out mat.VecDense
	out.MulVec(r.standardize(x), mat.NewVecDense(p, r.coef))
	pred := make([]float64, n)
	for i := range pred {
		pred[i] = out.AtVec(i) + r.intercept
	}
	return pred, nil
}

// Coefficients returns the coefficients on the standardized features.
func (r *RidgeRegressor) Coefficients() []float64 {
	return append([]float64(nil), r.coef...)
}

// Intercept is the mean of the training target.
func (r *RidgeRegressor) Intercept() float64 { return r.intercept }

// FeatureImportances returns |coefficient| normalised to sum to 1.
func (r *RidgeRegressor) FeatureImportances() []float64 {
	imp := make([]float64, len(r.coef))
	for j, c := range r.coef {
		imp[j] = math.Abs(c)
	}
	if sum := floats.Sum(imp); sum > 0 {
		floats.Scale(1/sum, imp)
	}
	return imp
}
