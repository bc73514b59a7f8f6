package analytics

import (
	"errors"
	"math"
	"testing"

	"RiskPulse/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func designRows(n int) [][]float64 {
	x := make([][]float64, n)
	for i := range x {
		fi := float64(i)
		x[i] = []float64{math.Sin(fi), math.Cos(fi / 3), fi / 10}
	}
	return x
}

func TestFitRegressorOLSRecoversLinearModel(t *testing.T) {
	x := designRows(40)
	y := make([]float64, len(x))
	for i, r := range x {
		y[i] = 3 + 2*r[0] - r[1] + 0.5*r[2]
	}

	m, attempts, err := fitRegressor(TargetRisk, x, y, 1)
	require.NoError(t, err)
	require.Len(t, attempts, 1)
	assert.Equal(t, MethodOLS, m.Method)
	assert.True(t, attempts[0].OK)

	got, err := m.Predict([]float64{0.3, -0.2, 1.5})
	require.NoError(t, err)
	assert.InDelta(t, 3+0.6+0.2+0.75, got, 1e-6)
}

func TestFitRegressorFallsBackToRidge(t *testing.T) {
	x := designRows(40)
	for i := range x {
		x[i] = append(x[i], 2*x[i][0]) // collinear column
	}
	y := make([]float64, len(x))
	for i, r := range x {
		y[i] = 1 + r[0]
	}

	m, attempts, err := fitRegressor(TargetAmount, x, y, 1)
	require.NoError(t, err)
	require.Len(t, attempts, 2)
	assert.False(t, attempts[0].OK)
	assert.Equal(t, MethodOLS, attempts[0].Method)
	assert.NotEmpty(t, attempts[0].Error)
	assert.True(t, attempts[1].OK)
	assert.Equal(t, MethodRidge, m.Method)

	got, err := m.Predict(x[5])
	require.NoError(t, err)
	assert.InDelta(t, y[5], got, 0.5)
}

func TestFitRegressorErrors(t *testing.T) {
	_, _, err := fitRegressor(TargetCount, nil, nil, 1)
	var fitErr *models.ModelFitError
	assert.True(t, errors.As(err, &fitErr))

	_, _, err = fitRidge(designRows(5), []float64{1, 2, 3, 4, 5}, 0)
	assert.Error(t, err)
}

func TestLinearModelPredictRejectsWrongWidth(t *testing.T) {
	m := &LinearModel{Target: TargetRisk, Coef: []float64{1, 2}}
	_, err := m.Predict([]float64{1})
	assert.True(t, errors.Is(err, models.ErrMalformedInput))
}

func TestScaler(t *testing.T) {
	s := FitScaler([][]float64{{1, 5}, {3, 5}})
	assert.Equal(t, []float64{2, 5}, s.Mean)
	assert.Equal(t, []float64{1, 1}, s.Scale, "constant column keeps unit scale")
	assert.Equal(t, []float64{1, 0}, s.Transform([]float64{3, 5}))
}
