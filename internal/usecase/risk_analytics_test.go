package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"RiskPulse/internal/domain/models"
	domrepo "RiskPulse/internal/domain/repository"
	domsvc "RiskPulse/internal/domain/service"
	"RiskPulse/internal/services/analytics"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAnalytics(store domrepo.TransactionStore, f domsvc.RiskForecaster, tr domsvc.TrendAnalyzer, sc domsvc.TransactionScorer) *RiskAnalytics {
	a := NewRiskAnalytics(store, f, tr, sc, DefaultLookbacks())
	a.SetClock(testClock)
	return a
}

func engineAnalytics(t *testing.T, recs []models.TransactionRecord) (*RiskAnalytics, *analytics.Engine) {
	t.Helper()
	e := analytics.NewEngine(analytics.WithClock(testClock))
	a := newTestAnalytics(&memStore{recs: recs}, e, e, analytics.NewTransactionRiskPredictor())
	return a, e
}

func TestForecastRequiresTrainedModels(t *testing.T) {
	a, _ := engineAnalytics(t, syntheticRecords(60))

	_, err := a.Forecast(context.Background(), ForecastParams{Days: 30})
	assert.ErrorIs(t, err, models.ErrModelNotTrained)
}

func TestForecastAfterTraining(t *testing.T) {
	a, e := engineAnalytics(t, syntheticRecords(60))
	trainer := NewModelTrainer(a, e, time.Minute, nil)
	_, err := trainer.Train(context.Background())
	require.NoError(t, err)

	report, err := a.Forecast(context.Background(), ForecastParams{Days: 30, IncludeTrends: true})
	require.NoError(t, err)
	require.Len(t, report.Predictions, 3)
	assert.Equal(t, 30, report.ForecastPeriodDays)
	assert.NotNil(t, report.TrendAnalysis)
	assert.NotEmpty(t, report.Recommendations)

	report, err = a.Forecast(context.Background(), ForecastParams{Days: 10, IncludeTrends: false})
	require.NoError(t, err)
	require.Len(t, report.Predictions, 1)
	assert.Equal(t, 7, report.Predictions[0].Days)
	assert.Nil(t, report.TrendAnalysis)
}

func TestTrendsFiltersMetrics(t *testing.T) {
	a, _ := engineAnalytics(t, syntheticRecords(60))
	w := domrepo.Lookback(testNow, 90*24*time.Hour)

	s, err := a.Trends(context.Background(), TrendParams{Window: w, Metrics: []models.Metric{models.MetricAvgRisk}})
	require.NoError(t, err)
	assert.Equal(t, 60, s.DataPoints)
	assert.Len(t, s.Trends, 1)
	assert.Contains(t, s.Trends, models.MetricAvgRisk)
	assert.NotNil(t, s.Seasonality)
	assert.Equal(t, 90, s.AnalysisPeriod.Days)

	all, err := a.Trends(context.Background(), TrendParams{Window: w})
	require.NoError(t, err)
	assert.Greater(t, len(all.Trends), 1)
}

func TestTrendsEmptyWindow(t *testing.T) {
	a, _ := engineAnalytics(t, nil)
	_, err := a.Trends(context.Background(), TrendParams{Window: domrepo.Lookback(testNow, time.Hour)})
	assert.ErrorIs(t, err, models.ErrEmptyInput)
}

func TestAnomaliesThresholdRankingAndCap(t *testing.T) {
	var found []models.AnomalyRecord
	for i := 0; i < 5; i++ {
		found = append(found, models.AnomalyRecord{Date: testNow.AddDate(0, 0, -i), Metric: models.MetricAvgRisk, Deviation: 1.5})
	}
	for i := 0; i < 55; i++ {
		found = append(found, models.AnomalyRecord{
			Date:      testNow.AddDate(0, 0, -i),
			Metric:    models.MetricTotalAmount,
			Deviation: 3 + float64(i)/100,
		})
	}
	a := newTestAnalytics(&memStore{recs: syntheticRecords(30)}, &blockingForecaster{}, &stubTrends{anomalies: found}, &captureScorer{})

	s, err := a.Anomalies(context.Background(), AnomalyParams{
		Window:    domrepo.Lookback(testNow, 40*24*time.Hour),
		Threshold: 2.0,
	})
	require.NoError(t, err)
	assert.Equal(t, 55, s.TotalAnomalies)
	assert.Equal(t, 55, s.HighSeverity, "tiers count every match, not just the reported ones")
	assert.Len(t, s.Anomalies, MaxReportedAnomalies)
	assert.InDelta(t, 3.54, s.Anomalies[0].Deviation, 1e-9)
	assert.Equal(t, 2.0, s.Threshold)
	assert.Equal(t, 30, s.DataPointsAnalyzed)
	for _, r := range s.Anomalies {
		assert.GreaterOrEqual(t, r.Deviation, 2.0)
	}
}

func TestAnomaliesSeverityCounts(t *testing.T) {
	found := []models.AnomalyRecord{
		{Date: testNow, Metric: models.MetricAvgRisk, Deviation: 1.5},
		{Date: testNow, Metric: models.MetricMaxRisk, Deviation: 2.5},
		{Date: testNow, Metric: models.MetricTotalAmount, Deviation: 2.99},
		{Date: testNow, Metric: models.MetricTransactionCount, Deviation: 3},
		{Date: testNow.AddDate(0, 0, -1), Metric: models.MetricAvgRisk, Deviation: 4.1},
	}
	a := newTestAnalytics(&memStore{recs: syntheticRecords(30)}, &blockingForecaster{}, &stubTrends{anomalies: found}, &captureScorer{})

	s, err := a.Anomalies(context.Background(), AnomalyParams{
		Window:    domrepo.Lookback(testNow, 40*24*time.Hour),
		Threshold: 1.0,
	})
	require.NoError(t, err)
	assert.Equal(t, 5, s.TotalAnomalies)
	assert.Equal(t, 2, s.HighSeverity)
	assert.Equal(t, 2, s.MediumSeverity)
	assert.Equal(t, 1, s.LowSeverity)

	body, err := json.Marshal(s)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"high_severity":2`)
}

func TestPredictTransactionDefaultsToNoonMonday(t *testing.T) {
	sc := &captureScorer{}
	a := newTestAnalytics(&memStore{recs: syntheticRecords(60)}, &blockingForecaster{}, &stubTrends{}, sc)

	res, err := a.PredictTransaction(context.Background(), PredictParams{Amount: decimal.NewFromInt(250)})
	require.NoError(t, err)
	assert.Equal(t, 25.0, res.RiskScore)

	assert.Equal(t, DefaultPredictHour, sc.candidate.Hour)
	assert.Equal(t, DefaultPredictWeekday, sc.candidate.Weekday)
	assert.Equal(t, testNow, sc.candidate.Reference)
	assert.True(t, decimal.NewFromInt(250).Equal(sc.candidate.Amount))
	require.Len(t, sc.history, RecentHistorySize)
	assert.True(t, sc.history[0].Date.After(sc.history[1].Date))
}

func TestPredictTransactionExplicitTime(t *testing.T) {
	sc := &captureScorer{}
	a := newTestAnalytics(&memStore{}, &blockingForecaster{}, &stubTrends{}, sc)
	hour, dow := 3, 6

	_, err := a.PredictTransaction(context.Background(), PredictParams{Amount: decimal.NewFromInt(5), Hour: &hour, DayOfWeek: &dow})
	require.NoError(t, err)
	assert.Equal(t, 3, sc.candidate.Hour)
	assert.Equal(t, 6, sc.candidate.Weekday)
	assert.Empty(t, sc.history)
}

func TestPredictTransactionRejectsNonPositiveAmount(t *testing.T) {
	a := newTestAnalytics(&memStore{}, &blockingForecaster{}, &stubTrends{}, &captureScorer{})

	_, err := a.PredictTransaction(context.Background(), PredictParams{Amount: decimal.Zero})
	assert.ErrorIs(t, err, models.ErrMalformedInput)
}

func TestStoreErrorsPropagate(t *testing.T) {
	boom := errors.New("clickhouse down")
	a := newTestAnalytics(&memStore{err: boom}, &blockingForecaster{}, &stubTrends{}, &captureScorer{})

	_, err := a.Trends(context.Background(), TrendParams{Window: domrepo.Lookback(testNow, time.Hour)})
	assert.ErrorIs(t, err, boom)
	_, err = a.PredictTransaction(context.Background(), PredictParams{Amount: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, boom)
}

func TestParseMetrics(t *testing.T) {
	ms, err := ParseMetrics("transaction_count, avg_risk,,")
	require.NoError(t, err)
	assert.Equal(t, []models.Metric{models.MetricTransactionCount, models.MetricAvgRisk}, ms)

	ms, err = ParseMetrics("")
	require.NoError(t, err)
	assert.Empty(t, ms)

	_, err = ParseMetrics("avg_risk,volatility")
	assert.ErrorIs(t, err, models.ErrMalformedInput)
}
