package models

import "time"

// Metric names a column of the daily series.
type Metric string

const (
	MetricTransactionCount Metric = "transaction_count"
	MetricTotalAmount      Metric = "total_amount"
	MetricAvgAmount        Metric = "avg_amount"
	MetricStdAmount        Metric = "std_amount"
	MetricAvgRisk          Metric = "avg_risk"
	MetricMaxRisk          Metric = "max_risk"
	MetricStdRisk          Metric = "std_risk"
)

// BaseMetrics is the fixed column order used for feature vectors.
var BaseMetrics = []Metric{
	MetricTransactionCount,
	MetricTotalAmount,
	MetricAvgAmount,
	MetricStdAmount,
	MetricAvgRisk,
	MetricMaxRisk,
	MetricStdRisk,
}

// IsValidMetric returns true if m is one of the base metrics.
func IsValidMetric(m Metric) bool {
	for _, b := range BaseMetrics {
		if b == m {
			return true
		}
	}
	return false
}

// DailySeriesRow aggregates one calendar day (UTC). Days without
// transactions are present with every numeric field at zero.
type DailySeriesRow struct {
	Date             time.Time `json:"date"`
	TransactionCount int       `json:"transaction_count"`
	TotalAmount      float64   `json:"total_amount"`
	AvgAmount        float64   `json:"avg_amount"`
	StdAmount        float64   `json:"std_amount"`
	AvgRisk          float64   `json:"avg_risk"`
	MaxRisk          float64   `json:"max_risk"`
	StdRisk          float64   `json:"std_risk"`
}

// Value returns the row's value for metric m.
func (r DailySeriesRow) Value(m Metric) float64 {
	switch m {
	case MetricTransactionCount:
		return float64(r.TransactionCount)
	case MetricTotalAmount:
		return r.TotalAmount
	case MetricAvgAmount:
		return r.AvgAmount
	case MetricStdAmount:
		return r.StdAmount
	case MetricAvgRisk:
		return r.AvgRisk
	case MetricMaxRisk:
		return r.MaxRisk
	case MetricStdRisk:
		return r.StdRisk
	default:
		return 0
	}
}

// Column extracts metric m from every row in order.
func Column(rows []DailySeriesRow, m Metric) []float64 {
	out := make([]float64, len(rows))
	for i, r := range rows {
		out[i] = r.Value(m)
	}
	return out
}

// LagFeatures holds the per-metric derived values of a feature row.
type LagFeatures struct {
	Lag1        float64 `json:"lag_1"`
	Lag7        float64 `json:"lag_7"`
	RollingMean float64 `json:"rolling_mean_7"`
	RollingStd  float64 `json:"rolling_std_7"`
}

// FeatureRow is one fully populated supervised-learning row.
type FeatureRow struct {
	Date    time.Time              `json:"date"`
	Current DailySeriesRow         `json:"current"`
	Derived map[Metric]LagFeatures `json:"derived"`
}

// PredictorCount is the width of a predictor vector (4 derived values per base metric).
const PredictorCount = 4 * 7

// Predictors flattens the derived features in BaseMetrics order.
// Current-day values are never part of it.
func (f FeatureRow) Predictors() []float64 {
	out := make([]float64, 0, PredictorCount)
	for _, m := range BaseMetrics {
		d := f.Derived[m]
		out = append(out, d.Lag1, d.Lag7, d.RollingMean, d.RollingStd)
	}
	return out
}

// PredictorNames returns labels aligned with Predictors.
func PredictorNames() []string {
	out := make([]string, 0, PredictorCount)
	for _, m := range BaseMetrics {
		s := string(m)
		out = append(out, s+"_lag_1", s+"_lag_7", s+"_rolling_mean_7", s+"_rolling_std_7")
	}
	return out
}
