package analytics

import (
	"math"
	"sort"

	"RiskPulse/internal/domain/models"
	"RiskPulse/internal/services/features"
	xutil "RiskPulse/pkg/util"
)

const (
	trendWindow        = 7
	trendChangePercent = 5.0
	minTrendPoints     = trendWindow + 1 // more than 7
	seasonalityPoints  = 31              // more than 30

	anomalyWindow    = 7
	anomalyThreshold = 2.0
	minAnomalyPoints = 15 // more than 14
)

var trendMetrics = []models.Metric{
	models.MetricTransactionCount,
	models.MetricTotalAmount,
	models.MetricAvgAmount,
	models.MetricAvgRisk,
	models.MetricMaxRisk,
}

var anomalyMetrics = []models.Metric{
	models.MetricTransactionCount,
	models.MetricTotalAmount,
	models.MetricAvgRisk,
	models.MetricMaxRisk,
}

// AnalyzeTrends classifies the direction of each trend metric, adds weekday
// seasonality for long series and embeds the anomaly scan. Anomaly detection
// needs more history than trends; when it cannot run it is listed in Omissions.
func AnalyzeTrends(series []models.DailySeriesRow) (models.TrendReport, error) {
	if len(series) < minTrendPoints {
		return models.TrendReport{}, models.InsufficientHistory("trend analysis", len(series), minTrendPoints)
	}

	report := models.TrendReport{
		Trends:     make(map[models.Metric]models.TrendEntry, len(trendMetrics)),
		DataPoints: len(series),
	}
	for _, m := range trendMetrics {
		if entry, ok := classifyTrend(models.Column(series, m)); ok {
			report.Trends[m] = entry
		}
	}
	if len(series) >= seasonalityPoints {
		report.Seasonality = weekdaySeasonality(series)
	}

	anomalies, err := DetectAnomalies(series)
	if err != nil {
		report.Omissions = map[string]string{"anomalies": err.Error()}
		anomalies = []models.AnomalyRecord{}
	}
	report.Anomalies = anomalies
	return report, nil
}

// classifyTrend compares the mean of the last 7 points with the 7 before them,
// or with the first half of the remaining points, rounded down but never
// empty, when the series is shorter than 14. ok is false when the previous
// mean is not positive.
func classifyTrend(xs []float64) (models.TrendEntry, bool) {
	n := len(xs)
	recent := features.Mean(xs[n-trendWindow:])
	rest := xs[:n-trendWindow]

	var prevWindow []float64
	if n >= 2*trendWindow {
		prevWindow = rest[len(rest)-trendWindow:]
	} else {
		half := len(rest) / 2
		if half == 0 {
			half = 1
		}
		prevWindow = rest[:half]
	}
	previous := features.Mean(prevWindow)
	if previous <= 0 {
		return models.TrendEntry{}, false
	}

	change := (recent - previous) / previous * 100
	direction := models.TrendStable
	switch {
	case change > trendChangePercent:
		direction = models.TrendIncreasing
	case change < -trendChangePercent:
		direction = models.TrendDecreasing
	}
	return models.TrendEntry{
		Direction:     direction,
		ChangePercent: round(change, 2),
		RecentAvg:     round(recent, 2),
		PreviousAvg:   round(previous, 2),
	}, true
}

func weekdaySeasonality(series []models.DailySeriesRow) *models.Seasonality {
	var riskSum, volSum [7]float64
	var days [7]int
	for _, r := range series {
		wd := xutil.WeekdayIndex(r.Date)
		riskSum[wd] += r.AvgRisk
		volSum[wd] += float64(r.TransactionCount)
		days[wd]++
	}
	s := &models.Seasonality{
		RiskByWeekday:   make(map[int]float64, 7),
		VolumeByWeekday: make(map[int]float64, 7),
	}
	for wd := 0; wd < 7; wd++ {
		if days[wd] == 0 {
			continue
		}
		s.RiskByWeekday[wd] = riskSum[wd] / float64(days[wd])
		s.VolumeByWeekday[wd] = volSum[wd] / float64(days[wd])
	}
	return s
}

// DetectAnomalies flags points farther than 2σ from the mean of the 7-point
// window ending at them. The first 6 points of each metric are never flagged,
// nor are points of a flat window.
func DetectAnomalies(series []models.DailySeriesRow) ([]models.AnomalyRecord, error) {
	if len(series) < minAnomalyPoints {
		return nil, models.InsufficientHistory("anomaly detection", len(series), minAnomalyPoints)
	}

	out := []models.AnomalyRecord{}
	for _, m := range anomalyMetrics {
		xs := models.Column(series, m)
		for i := anomalyWindow - 1; i < len(xs); i++ {
			mean, std, ok := features.RollingMeanStd(xs, i, anomalyWindow)
			if !ok {
				continue
			}
			if negligibleStd(mean, std) {
				continue
			}
			dev := math.Abs(xs[i] - mean)
			if dev <= anomalyThreshold*std {
				continue
			}
			out = append(out, models.AnomalyRecord{
				Date:   series[i].Date,
				Metric: m,
				Value:  round(xs[i], 2),
				ExpectedRange: models.ExpectedRange{
					Min: round(mean-anomalyThreshold*std, 2),
					Max: round(mean+anomalyThreshold*std, 2),
				},
				Deviation: round(dev/std, 2),
			})
		}
	}
	return out, nil
}

// RankAnomalies returns a copy ordered by deviation, largest first, then by
// date and metric for a stable order.
func RankAnomalies(in []models.AnomalyRecord) []models.AnomalyRecord {
	out := make([]models.AnomalyRecord, len(in))
	copy(out, in)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Deviation != out[j].Deviation {
			return out[i].Deviation > out[j].Deviation
		}
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.After(out[j].Date)
		}
		return out[i].Metric < out[j].Metric
	})
	return out
}

// negligibleStd reports whether std is rounding noise around mean. A flat
// window can leave mean one ulp off its values with std exactly 0.
func negligibleStd(mean, std float64) bool {
	return std <= 1e-12*math.Max(1, math.Abs(mean))
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
