package features

import (
	"errors"
	"testing"
	"time"

	"RiskPulse/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func linearSeries(n int) []models.DailySeriesRow {
	d0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]models.DailySeriesRow, n)
	for i := range out {
		out[i] = models.DailySeriesRow{
			Date:             d0.AddDate(0, 0, i),
			TransactionCount: i + 1,
			TotalAmount:      float64(100 * (i + 1)),
			AvgAmount:        100,
			AvgRisk:          float64(i),
			MaxRisk:          float64(2 * i),
		}
	}
	return out
}

func TestBuildFeatureRowsDropsWarmup(t *testing.T) {
	rows, err := BuildFeatureRows(linearSeries(40))
	require.NoError(t, err)
	require.Len(t, rows, 33)

	r := rows[0] // day index 7
	assert.Equal(t, 8, r.Current.TransactionCount)
	d := r.Derived[models.MetricTransactionCount]
	assert.Equal(t, 7.0, d.Lag1)
	assert.Equal(t, 1.0, d.Lag7)
	// prior window holds counts 1..7
	assert.InDelta(t, 4, d.RollingMean, 1e-12)
	assert.InDelta(t, 2, d.RollingStd, 1e-12)

	assert.Len(t, r.Predictors(), models.PredictorCount)
}

func TestBuildFeatureRowsExcludesCurrentValues(t *testing.T) {
	series := linearSeries(40)
	series[20].AvgRisk = 99
	rows, err := BuildFeatureRows(series)
	require.NoError(t, err)

	row := rows[20-LongLag]
	assert.Equal(t, 99.0, row.Current.AvgRisk)
	for _, v := range row.Predictors() {
		assert.NotEqual(t, 99.0, v)
	}
}

func TestBuildFeatureRowsInsufficient(t *testing.T) {
	rows, err := BuildFeatureRows(linearSeries(36))
	assert.True(t, errors.Is(err, models.ErrInsufficientHistory))
	assert.Len(t, rows, 29)

	_, err = BuildFeatureRows(linearSeries(37))
	assert.NoError(t, err)
}

func TestNextDayPredictors(t *testing.T) {
	series := linearSeries(10)
	x, err := NextDayPredictors(series)
	require.NoError(t, err)
	require.Len(t, x, models.PredictorCount)
	// transaction_count block: lag1 = 10, lag7 = count at index 3 = 4, mean of 4..10 = 7
	assert.Equal(t, 10.0, x[0])
	assert.Equal(t, 4.0, x[1])
	assert.InDelta(t, 7, x[2], 1e-12)

	short, err := NextDayPredictors(series[:3])
	require.NoError(t, err)
	assert.Equal(t, 1.0, short[1], "lag-7 falls back to the earliest row")

	_, err = NextDayPredictors(nil)
	assert.True(t, errors.Is(err, models.ErrEmptyInput))
}

func TestRollingMeanStd(t *testing.T) {
	xs := []float64{1, 2, 3, 4, 5, 6, 7, 8}
	_, _, ok := RollingMeanStd(xs, 5, 7)
	assert.False(t, ok)
	m, _, ok := RollingMeanStd(xs, 7, 7)
	assert.True(t, ok)
	assert.InDelta(t, 5, m, 1e-12)
}
