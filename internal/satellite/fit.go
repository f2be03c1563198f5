package satellite

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	apperrors "macrostress/internal/errors"
	"macrostress/internal/panel"
)

const target = "__target"

var machineEpsilon = math.Nextafter(1, 2) - 1

// PrepareRegressionData aligns macro history with one bucket's loss-rate history
// on their common quarters, drops incomplete rows and prepends the intercept
// column. No regressors means DefaultRegressors.
func PrepareRegressionData(macro *panel.Frame, lossRates panel.Series, regressors []string) (*panel.Frame, panel.Series, error) {
	if len(regressors) == 0 {
		regressors = DefaultRegressors()
	}
	if macro == nil {
		return nil, panel.Series{}, apperrors.NewValidationError("macro history is required")
	}
	if err := macro.Require(regressors...); err != nil {
		return nil, panel.Series{}, fmt.Errorf("macro history: %w", err)
	}

	x, err := macro.Select(regressors...)
	if err != nil {
		return nil, panel.Series{}, err
	}
	yf, err := panel.Series{Name: target, Index: lossRates.Index, Values: lossRates.Values}.Frame()
	if err != nil {
		return nil, panel.Series{}, err
	}
	joined, err := x.InnerJoin(yf)
	if err != nil {
		return nil, panel.Series{}, err
	}
	joined = joined.DropNA()

	idx := joined.Index()
	cols := append([]string{Const}, regressors...)
	data := map[string][]float64{Const: ones(len(idx))}
	for _, r := range regressors {
		data[r], _ = joined.Column(r)
	}
	design, err := panel.New(idx, cols, data)
	if err != nil {
		return nil, panel.Series{}, err
	}
	yv, _ := joined.Column(target)
	return design, panel.Series{Name: lossRates.Name, Index: idx, Values: yv}, nil
}

// FitSatelliteModel fits y on every column of x by least squares. The rows are
// re-aligned on their common quarters first. The solve uses the Moore-Penrose
// pseudo-inverse, so a rank-deficient design yields the minimum-norm solution.
func FitSatelliteModel(x *panel.Frame, y panel.Series) (*OLSModel, error) {
	if x == nil || len(x.Columns()) == 0 {
		return nil, apperrors.NewValidationError("regressor matrix has no columns")
	}
	yf, err := panel.Series{Name: target, Index: y.Index, Values: y.Values}.Frame()
	if err != nil {
		return nil, err
	}
	joined, err := x.InnerJoin(yf)
	if err != nil {
		return nil, err
	}
	joined = joined.DropNA()
	n := joined.Len()
	if n == 0 {
		return nil, apperrors.NewAlignmentError("regressors and target have no overlapping quarters")
	}

	names := x.Columns()
	k := len(names)
	design := mat.NewDense(n, k, nil)
	for j, name := range names {
		col, _ := joined.Column(name)
		if err := finite(col); err != nil {
			return nil, err
		}
		for i, v := range col {
			design.Set(i, j, v)
		}
	}
	yv, _ := joined.Column(target)
	if err := finite(yv); err != nil {
		return nil, err
	}

	beta, rank, err := pinvSolve(design, yv)
	if err != nil {
		return nil, err
	}

	m := &OLSModel{
		names: names,
		beta:  beta,
		nobs:  n,
		rank:  rank,
	}
	for _, name := range names {
		if name == Const {
			m.intercept = true
		}
	}
	m.rSquared, m.stdErr = goodnessOfFit(design, beta, yv, rank)
	return m, nil
}

func pinvSolve(a *mat.Dense, y []float64) ([]float64, int, error) {
	var svd mat.SVD
	if ok := svd.Factorize(a, mat.SVDThin); !ok {
		return nil, 0, apperrors.NewArithmeticError("singular value decomposition did not converge")
	}
	s := svd.Values(nil)
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	r, c := a.Dims()
	tol := 0.0
	if len(s) > 0 {
		tol = s[0] * float64(max(r, c)) * machineEpsilon
	}

	var uty mat.VecDense
	uty.MulVec(u.T(), mat.NewVecDense(len(y), append([]float64(nil), y...)))
	rank := 0
	for i, sv := range s {
		if sv > tol {
			uty.SetVec(i, uty.AtVec(i)/sv)
			rank++
		} else {
			uty.SetVec(i, 0)
		}
	}

	var beta mat.VecDense
	beta.MulVec(&v, &uty)
	out := make([]float64, c)
	for i := range out {
		out[i] = beta.AtVec(i)
	}
	return out, rank, nil
}

func goodnessOfFit(a *mat.Dense, beta, y []float64, rank int) (rsq, stdErr float64) {
	var fitted mat.VecDense
	fitted.MulVec(a, mat.NewVecDense(len(beta), append([]float64(nil), beta...)))

	mean := 0.0
	for _, v := range y {
		mean += v
	}
	mean /= float64(len(y))

	var ssRes, ssTot float64
	for i, v := range y {
		e := v - fitted.AtVec(i)
		ssRes += e * e
		d := v - mean
		ssTot += d * d
	}

	switch {
	case ssTot > 0:
		rsq = 1 - ssRes/ssTot
	case ssRes <= 1e-24:
		rsq = 1
	}
	if dof := len(y) - rank; dof > 0 {
		stdErr = math.Sqrt(ssRes / float64(dof))
	}
	return rsq, stdErr
}

// FitBucketModels fits one model per bucket column of lossRates on the default
// regressors. Empty buckets means every loss-rate column.
func FitBucketModels(macro, lossRates *panel.Frame, buckets []string) (map[string]Model, error) {
	return FitBucketModelsWith(macro, lossRates, buckets, DefaultRegressors())
}

// FitBucketModelsWith is FitBucketModels with an explicit regressor set.
func FitBucketModelsWith(macro, lossRates *panel.Frame, buckets, regressors []string) (map[string]Model, error) {
	if lossRates == nil {
		return nil, apperrors.NewValidationError("loss-rate history is required")
	}
	if len(buckets) == 0 {
		buckets = lossRates.Columns()
	}
	if err := lossRates.Require(buckets...); err != nil {
		return nil, fmt.Errorf("loss-rate history: %w", err)
	}

	models := make(map[string]Model, len(buckets))
	for _, bucket := range buckets {
		y, _ := lossRates.Series(bucket)
		x, yy, err := PrepareRegressionData(macro, y, regressors)
		if err != nil {
			return nil, fmt.Errorf("bucket %s: %w", bucket, err)
		}
		m, err := FitSatelliteModel(x, yy)
		if err != nil {
			return nil, fmt.Errorf("bucket %s: %w", bucket, err)
		}
		models[bucket] = m
	}
	return models, nil
}

// SortedBuckets returns the keys of models in sorted order.
func SortedBuckets(models map[string]Model) []string {
	keys := make([]string, 0, len(models))
	for k := range models {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func ones(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 1
	}
	return out
}
