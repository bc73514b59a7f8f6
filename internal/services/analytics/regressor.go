package analytics

import (
	"errors"
	"fmt"
	"math"

	"RiskPulse/internal/domain/models"
	"RiskPulse/internal/services/features"

	"github.com/sajari/regression"
	"gonum.org/v1/gonum/mat"
)

// Target identifies what a regressor or forecaster predicts.
type Target string

const (
	TargetRisk   Target = "risk"
	TargetAmount Target = "amount"
	TargetCount  Target = "count"
)

// Fit methods, in attempt order.
const (
	MethodOLS   = "ols"
	MethodRidge = "ridge"
)

// maxCondition rejects least-squares designs that are numerically singular.
const maxCondition = 1e10

var (
	errNoData       = errors.New("no training rows")
	errIllCondition = errors.New("design matrix is ill-conditioned")
	errNonFinite    = errors.New("non-finite coefficients")
)

// LinearModel is a fitted regressor paired with the scaler used to train it.
type LinearModel struct {
	Target    Target
	Method    string
	Scaler    Scaler
	Intercept float64
	Coef      []float64
}

// Predict scales raw predictors with the stored parameters and applies the model.
func (m *LinearModel) Predict(raw []float64) (float64, error) {
	if len(raw) != len(m.Coef) {
		return 0, fmt.Errorf("%w: %d predictors, model expects %d", models.ErrMalformedInput, len(raw), len(m.Coef))
	}
	x := m.Scaler.Transform(raw)
	y := m.Intercept
	for j, c := range m.Coef {
		y += c * x[j]
	}
	if math.IsNaN(y) || math.IsInf(y, 0) {
		return 0, fmt.Errorf("%s regressor produced %v", m.Target, y)
	}
	return y, nil
}

type linearFit func(x [][]float64, y []float64) (float64, []float64, error)

// fitRegressor standardizes x and tries OLS, then ridge. Every attempt is recorded.
func fitRegressor(target Target, x [][]float64, y []float64, lambda float64) (*LinearModel, []models.FitAttempt, error) {
	if len(x) == 0 || len(x) != len(y) {
		return nil, nil, &models.ModelFitError{Target: string(target), Method: MethodOLS, Err: errNoData}
	}
	scaler := FitScaler(x)
	xs := scaler.TransformAll(x)

	candidates := []struct {
		method string
		fit    linearFit
	}{
		{MethodOLS, fitOLS},
		{MethodRidge, func(x [][]float64, y []float64) (float64, []float64, error) { return fitRidge(x, y, lambda) }},
	}

	var attempts []models.FitAttempt
	var lastErr error
	for _, c := range candidates {
		intercept, coef, err := safeLinearFit(c.fit, xs, y)
		attempt := models.FitAttempt{Target: string(target), Method: c.method, OK: err == nil}
		if err != nil {
			attempt.Error = err.Error()
			attempts = append(attempts, attempt)
			lastErr = &models.ModelFitError{Target: string(target), Method: c.method, Err: err}
			continue
		}
		attempts = append(attempts, attempt)
		return &LinearModel{Target: target, Method: c.method, Scaler: scaler, Intercept: intercept, Coef: coef}, attempts, nil
	}
	return nil, attempts, lastErr
}

func safeLinearFit(fn linearFit, x [][]float64, y []float64) (intercept float64, coef []float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("fit panicked: %v", r)
		}
	}()
	return fn(x, y)
}

// fitOLS runs ordinary least squares with an intercept.
func fitOLS(x [][]float64, y []float64) (float64, []float64, error) {
	width := len(x[0])
	design := mat.NewDense(len(x), width+1, nil)
	for i, row := range x {
		design.Set(i, 0, 1)
		for j, v := range row {
			design.Set(i, j+1, v)
		}
	}
	if c := mat.Cond(design, 2); c > maxCondition || math.IsNaN(c) {
		return 0, nil, errIllCondition
	}

	var r regression.Regression
	r.SetObserved("target")
	for j := 0; j < width; j++ {
		r.SetVar(j, fmt.Sprintf("x%d", j))
	}
	for i := range x {
		r.Train(regression.DataPoint(y[i], x[i]))
	}
	if err := r.Run(); err != nil {
		return 0, nil, err
	}
	coeffs := r.GetCoeffs()
	if len(coeffs) != width+1 {
		return 0, nil, fmt.Errorf("expected %d coefficients, got %d", width+1, len(coeffs))
	}
	if !allFinite(coeffs) {
		return 0, nil, errNonFinite
	}
	return coeffs[0], append([]float64(nil), coeffs[1:]...), nil
}

// fitRidge solves (XᵀX + λI)β = Xᵀ(y - ȳ) for standardized x; the intercept is ȳ.
func fitRidge(x [][]float64, y []float64, lambda float64) (float64, []float64, error) {
	if lambda <= 0 {
		return 0, nil, fmt.Errorf("ridge lambda must be positive, got %v", lambda)
	}
	n, p := len(x), len(x[0])
	X := mat.NewDense(n, p, nil)
	for i, row := range x {
		X.SetRow(i, row)
	}
	ybar := features.Mean(y)
	yc := make([]float64, n)
	for i, v := range y {
		yc[i] = v - ybar
	}

	var gram mat.SymDense
	gram.SymOuterK(1, X.T())
	for j := 0; j < p; j++ {
		gram.SetSym(j, j, gram.At(j, j)+lambda)
	}
	var chol mat.Cholesky
	if ok := chol.Factorize(&gram); !ok {
		return 0, nil, errors.New("ridge system is not positive definite")
	}
	var xty, beta mat.VecDense
	xty.MulVec(X.T(), mat.NewVecDense(n, yc))
	if err := chol.SolveVecTo(&beta, &xty); err != nil {
		return 0, nil, err
	}
	coef := make([]float64, p)
	for j := range coef {
		coef[j] = beta.AtVec(j)
	}
	if !allFinite(coef) || !allFinite([]float64{ybar}) {
		return 0, nil, errNonFinite
	}
	return ybar, coef, nil
}

func allFinite(xs []float64) bool {
	for _, v := range xs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
