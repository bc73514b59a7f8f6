package analytics

import (
	"errors"
	"fmt"
	"math"

	"RiskPulse/internal/domain/models"
	"RiskPulse/internal/services/features"

	"github.com/sajari/regression"
	"gonum.org/v1/gonum/optimize"
)

// Forecaster methods, in attempt order.
const (
	MethodARIMA111 = "arima(1,1,1)"
	MethodAR1      = "arima(1,0,0)"
)

// MinForecastPoints is the series length a forecaster must exceed.
const MinForecastPoints = 30

// SeriesModel projects one metric forward.
type SeriesModel interface {
	Method() string
	Forecast(steps int) []float64
}

// arimaModel is ARIMA(1,1,1) without constant, fitted by conditional sum of squares.
type arimaModel struct {
	phi, theta float64
	lastLevel  float64 // y_N
	lastDiff   float64 // w_N
	lastResid  float64 // e_N
}

func (m *arimaModel) Method() string { return MethodARIMA111 }

func (m *arimaModel) Forecast(steps int) []float64 {
	out := make([]float64, 0, steps)
	level, diff := m.lastLevel, 0.0
	for h := 1; h <= steps; h++ {
		if h == 1 {
			diff = m.phi*m.lastDiff + m.theta*m.lastResid
		} else {
			diff = m.phi * diff
		}
		level += diff
		out = append(out, level)
	}
	return out
}

// arModel is y_t = c + phi*y_{t-1}.
type arModel struct {
	c, phi float64
	last   float64
}

func (m *arModel) Method() string { return MethodAR1 }

func (m *arModel) Forecast(steps int) []float64 {
	out := make([]float64, 0, steps)
	y := m.last
	for h := 0; h < steps; h++ {
		y = m.c + m.phi*y
		out = append(out, y)
	}
	return out
}

// fitForecaster tries ARIMA(1,1,1) then AR(1). A nil model means the
// forecaster is absent; the attempts say why.
func fitForecaster(target Target, y []float64, maxEvals int) (SeriesModel, []models.FitAttempt) {
	if len(y) <= MinForecastPoints {
		err := models.InsufficientHistory(string(target)+" forecaster", len(y), MinForecastPoints+1)
		return nil, []models.FitAttempt{{Target: string(target), Method: MethodARIMA111, Error: err.Error()}}
	}

	candidates := []struct {
		method string
		fit    func() (SeriesModel, error)
	}{
		{MethodARIMA111, func() (SeriesModel, error) { return fitARIMA111(y, maxEvals) }},
		{MethodAR1, func() (SeriesModel, error) { return fitAR1(y) }},
	}

	var attempts []models.FitAttempt
	for _, c := range candidates {
		m, err := safeSeriesFit(c.fit)
		attempt := models.FitAttempt{Target: string(target), Method: c.method, OK: err == nil}
		if err != nil {
			attempt.Error = err.Error()
		}
		attempts = append(attempts, attempt)
		if err == nil {
			return m, attempts
		}
	}
	return nil, attempts
}

func safeSeriesFit(fn func() (SeriesModel, error)) (m SeriesModel, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("fit panicked: %v", r)
		}
	}()
	return fn()
}

// cssResiduals returns the conditional residuals of w under (phi, theta), e_0 = 0.
func cssResiduals(w []float64, phi, theta float64) []float64 {
	e := make([]float64, len(w))
	for t := 1; t < len(w); t++ {
		e[t] = w[t] - phi*w[t-1] - theta*e[t-1]
	}
	return e
}

func fitARIMA111(y []float64, maxEvals int) (SeriesModel, error) {
	if !allFinite(y) {
		return nil, errors.New("series contains non-finite values")
	}
	w := make([]float64, len(y)-1)
	for t := 1; t < len(y); t++ {
		w[t-1] = y[t] - y[t-1]
	}
	if len(w) < 3 {
		return nil, errors.New("too few differenced points")
	}

	// tanh keeps both coefficients inside (-1, 1): stationary and invertible.
	sse := func(p []float64) float64 {
		e := cssResiduals(w, math.Tanh(p[0]), math.Tanh(p[1]))
		s := 0.0
		for _, v := range e[1:] {
			s += v * v
		}
		return s
	}

	settings := &optimize.Settings{FuncEvaluations: maxEvals}
	res, err := optimize.Minimize(optimize.Problem{Func: sse}, []float64{0, 0}, settings, &optimize.NelderMead{})
	if res == nil {
		return nil, fmt.Errorf("optimize: %w", err)
	}
	if !allFinite(res.X) || math.IsNaN(res.F) || math.IsInf(res.F, 0) {
		return nil, fmt.Errorf("optimize: non-finite solution (status %v)", res.Status)
	}

	phi, theta := math.Tanh(res.X[0]), math.Tanh(res.X[1])
	e := cssResiduals(w, phi, theta)
	return &arimaModel{
		phi:       phi,
		theta:     theta,
		lastLevel: y[len(y)-1],
		lastDiff:  w[len(w)-1],
		lastResid: e[len(e)-1],
	}, nil
}

func fitAR1(y []float64) (SeriesModel, error) {
	if _, std := features.MeanStd(y[:len(y)-1]); std == 0 {
		return nil, errors.New("constant series")
	}
	var r regression.Regression
	r.SetObserved("y")
	r.SetVar(0, "y_lag_1")
	for t := 1; t < len(y); t++ {
		r.Train(regression.DataPoint(y[t], []float64{y[t-1]}))
	}
	if err := r.Run(); err != nil {
		return nil, err
	}
	c, phi := r.Coeff(0), r.Coeff(1)
	if !allFinite([]float64{c, phi}) {
		return nil, errNonFinite
	}
	return &arModel{c: c, phi: phi, last: y[len(y)-1]}, nil
}
