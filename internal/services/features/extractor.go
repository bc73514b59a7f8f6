package features

import (
	"fmt"

	"RiskPulse/internal/domain/models"
)

const (
	// LongLag is the largest lag used; rows before it cannot be populated.
	LongLag = 7
	// RollingWindow is the trailing window for rolling mean/std.
	RollingWindow = 7
	// MinTrainingRows is the floor of complete feature rows for training.
	MinTrainingRows = 30
)

// BuildFeatureRows derives lag-1, lag-7 and trailing 7-day rolling mean/std
// for every base metric. Rolling statistics cover the seven days before the
// row, so the row's own values never feed its predictors. Rows that cannot be
// fully populated are dropped. Fewer than MinTrainingRows complete rows is
// reported as ErrInsufficientHistory together with the rows that were built.
func BuildFeatureRows(series []models.DailySeriesRow) ([]models.FeatureRow, error) {
	first := max(LongLag, RollingWindow)
	cols := columns(series)

	var rows []models.FeatureRow
	for i := first; i < len(series); i++ {
		rows = append(rows, models.FeatureRow{
			Date:    series[i].Date,
			Current: series[i],
			Derived: derive(cols, i),
		})
	}
	if len(rows) < MinTrainingRows {
		return rows, models.InsufficientHistory("training", len(rows), MinTrainingRows)
	}
	return rows, nil
}

// NextDayPredictors builds the predictor vector for the day after the last
// row. Lag-7 falls back to the earliest row when fewer than seven days exist
// and the rolling window shrinks to whatever is available.
func NextDayPredictors(series []models.DailySeriesRow) ([]float64, error) {
	n := len(series)
	if n == 0 {
		return nil, fmt.Errorf("next day predictors: %w", models.ErrEmptyInput)
	}
	row := models.FeatureRow{Derived: derive(columns(series), n)}
	return row.Predictors(), nil
}

func columns(series []models.DailySeriesRow) map[models.Metric][]float64 {
	cols := make(map[models.Metric][]float64, len(models.BaseMetrics))
	for _, m := range models.BaseMetrics {
		cols[m] = models.Column(series, m)
	}
	return cols
}

// derive computes the derived features of position i from rows strictly before it.
func derive(cols map[models.Metric][]float64, i int) map[models.Metric]models.LagFeatures {
	out := make(map[models.Metric]models.LagFeatures, len(cols))
	for m, xs := range cols {
		lag7 := i - LongLag
		if lag7 < 0 {
			lag7 = 0
		}
		from := i - RollingWindow
		if from < 0 {
			from = 0
		}
		mean, std := MeanStd(xs[from:i])
		out[m] = models.LagFeatures{
			Lag1:        xs[i-1],
			Lag7:        xs[lag7],
			RollingMean: mean,
			RollingStd:  std,
		}
	}
	return out
}

// RollingMeanStd returns the mean and population std of the window of size w
// ending at (and including) position i. ok is false until a full window exists.
func RollingMeanStd(xs []float64, i, w int) (mean, std float64, ok bool) {
	if w <= 0 || i < w-1 || i >= len(xs) {
		return 0, 0, false
	}
	mean, std = MeanStd(xs[i-w+1 : i+1])
	return mean, std, true
}
