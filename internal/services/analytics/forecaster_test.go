package analytics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFitForecasterNeedsMoreThan30Points(t *testing.T) {
	m, attempts := fitForecaster(TargetRisk, make([]float64, 30), 100)
	assert.Nil(t, m)
	require.Len(t, attempts, 1)
	assert.False(t, attempts[0].OK)
}

func TestFitForecasterARIMAOnTrend(t *testing.T) {
	y := make([]float64, 40)
	for i := range y {
		y[i] = float64(i)
	}
	m, attempts := fitForecaster(TargetCount, y, 2000)
	require.NotNil(t, m)
	require.Len(t, attempts, 1)
	assert.Equal(t, MethodARIMA111, m.Method())

	f := m.Forecast(5)
	require.Len(t, f, 5)
	for _, v := range f {
		assert.False(t, math.IsNaN(v) || math.IsInf(v, 0))
	}
	assert.Greater(t, f[0], y[len(y)-1])
}

func TestFitForecasterAllAttemptsFail(t *testing.T) {
	y := make([]float64, 40)
	y[10] = math.NaN()
	m, attempts := fitForecaster(TargetAmount, y, 100)
	assert.Nil(t, m)
	require.Len(t, attempts, 2)
	assert.Equal(t, MethodARIMA111, attempts[0].Method)
	assert.Equal(t, MethodAR1, attempts[1].Method)
	assert.False(t, attempts[0].OK)
	assert.False(t, attempts[1].OK)
}

func TestFitAR1(t *testing.T) {
	y := make([]float64, 35)
	for i := 1; i < len(y); i++ {
		y[i] = 5 + 0.5*y[i-1]
	}
	m, err := fitAR1(y)
	require.NoError(t, err)
	ar := m.(*arModel)
	assert.InDelta(t, 5, ar.c, 1e-6)
	assert.InDelta(t, 0.5, ar.phi, 1e-6)
	assert.InDelta(t, 10, m.Forecast(3)[2], 1e-6)

	_, err = fitAR1(make([]float64, 35))
	assert.Error(t, err)
}

func TestARIMAForecastRecursion(t *testing.T) {
	m := &arimaModel{phi: 0.5, theta: 0.2, lastLevel: 100, lastDiff: 4, lastResid: 5}
	f := m.Forecast(3)
	// w1 = 0.5*4 + 0.2*5 = 3, w2 = 1.5, w3 = 0.75
	assert.InDeltaSlice(t, []float64{103, 104.5, 105.25}, f, 1e-12)
}
