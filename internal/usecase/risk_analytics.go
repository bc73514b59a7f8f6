package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"RiskPulse/internal/domain/models"
	domrepo "RiskPulse/internal/domain/repository"
	domsvc "RiskPulse/internal/domain/service"
	"RiskPulse/internal/services/analytics"
	"RiskPulse/internal/services/features"
	applogger "RiskPulse/pkg/logger"

	"github.com/shopspring/decimal"
)

const (
	// MaxReportedAnomalies caps the anomaly list returned by Anomalies.
	MaxReportedAnomalies = 50
	// RecentHistorySize is how many prior transactions the scorer sees.
	RecentHistorySize = 10
)

// Lookbacks are the default windows of each analytics view.
type Lookbacks struct {
	Forecast  time.Duration
	Trends    time.Duration
	Anomalies time.Duration
	History   time.Duration
	Training  time.Duration
}

// DefaultLookbacks mirrors the dashboard defaults: 90/90/30/30 days.
func DefaultLookbacks() Lookbacks {
	day := 24 * time.Hour
	return Lookbacks{
		Forecast:  90 * day,
		Trends:    90 * day,
		Anomalies: 30 * day,
		History:   30 * day,
		Training:  90 * day,
	}
}

// RiskAnalytics loads transaction windows and runs the analytics engine over them.
type RiskAnalytics struct {
	store      domrepo.TransactionStore
	forecaster domsvc.RiskForecaster
	trends     domsvc.TrendAnalyzer
	scorer     domsvc.TransactionScorer
	lookbacks  Lookbacks
	now        func() time.Time
	l          *applogger.Logger
}

func NewRiskAnalytics(
	store domrepo.TransactionStore,
	forecaster domsvc.RiskForecaster,
	trends domsvc.TrendAnalyzer,
	scorer domsvc.TransactionScorer,
	lookbacks Lookbacks,
) *RiskAnalytics {
	return &RiskAnalytics{
		store:      store,
		forecaster: forecaster,
		trends:     trends,
		scorer:     scorer,
		lookbacks:  lookbacks,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// SetLogger sets optional logger.
func (a *RiskAnalytics) SetLogger(l *applogger.Logger) { a.l = l }

// SetClock overrides the time source.
func (a *RiskAnalytics) SetClock(now func() time.Time) { a.now = now }

// Lookbacks returns the configured default windows.
func (a *RiskAnalytics) Lookbacks() Lookbacks { return a.lookbacks }

// Now returns the current time of the analytics clock.
func (a *RiskAnalytics) Now() time.Time { return a.now() }

// DailySeries loads the records of w and aggregates them per day.
func (a *RiskAnalytics) DailySeries(ctx context.Context, w domrepo.Window) ([]models.DailySeriesRow, error) {
	recs, err := a.store.GetTransactions(ctx, w)
	if err != nil {
		return nil, fmt.Errorf("load transactions: %w", err)
	}
	series, err := features.BuildDailySeries(recs)
	if err != nil {
		return nil, err
	}
	if a.l != nil {
		a.l.Debug("daily series built",
			applogger.Int("records", len(recs)),
			applogger.Int("days", len(series)),
		)
	}
	return series, nil
}

type ForecastParams struct {
	Days          int
	IncludeTrends bool
}

// Forecast builds a fresh risk forecast over the forecast lookback. Never cached.
func (a *RiskAnalytics) Forecast(ctx context.Context, p ForecastParams) (*models.ForecastReport, error) {
	if p.Days <= 0 {
		p.Days = 30
	}
	if !a.forecaster.Trained() {
		return nil, models.ErrModelNotTrained
	}
	series, err := a.DailySeries(ctx, domrepo.Lookback(a.now(), a.lookbacks.Forecast))
	if err != nil {
		return nil, err
	}
	report, err := a.forecaster.GenerateRiskForecast(series, p.Days)
	if err != nil {
		return nil, err
	}
	if !p.IncludeTrends {
		report.TrendAnalysis = nil
	}
	return &report, nil
}

type TrendParams struct {
	Window  domrepo.Window
	Metrics []models.Metric // empty keeps every analyzed metric
}

// Trends analyzes the window and keeps only the requested metrics.
func (a *RiskAnalytics) Trends(ctx context.Context, p TrendParams) (*models.TrendSummary, error) {
	series, err := a.DailySeries(ctx, p.Window)
	if err != nil {
		return nil, err
	}
	report, err := a.trends.AnalyzeTrends(series)
	if err != nil {
		return nil, err
	}

	trends := report.Trends
	if len(p.Metrics) > 0 {
		trends = make(map[models.Metric]models.TrendEntry, len(p.Metrics))
		for _, m := range p.Metrics {
			if e, ok := report.Trends[m]; ok {
				trends[m] = e
			}
		}
	}
	return &models.TrendSummary{
		AnalysisPeriod: period(p.Window),
		DataPoints:     report.DataPoints,
		Trends:         trends,
		Seasonality:    report.Seasonality,
		Anomalies:      report.Anomalies,
		Omissions:      report.Omissions,
	}, nil
}

type AnomalyParams struct {
	Window    domrepo.Window
	Threshold float64
}

// Anomalies returns ranked anomalies whose deviation is at least Threshold.
func (a *RiskAnalytics) Anomalies(ctx context.Context, p AnomalyParams) (*models.AnomalySummary, error) {
	series, err := a.DailySeries(ctx, p.Window)
	if err != nil {
		return nil, err
	}
	found, err := a.trends.DetectAnomalies(series)
	if err != nil {
		return nil, err
	}

	kept := make([]models.AnomalyRecord, 0, len(found))
	for _, r := range found {
		if r.Deviation >= p.Threshold {
			kept = append(kept, r)
		}
	}
	kept = analytics.RankAnomalies(kept)
	summary := &models.AnomalySummary{
		AnalysisPeriod:     period(p.Window),
		TotalAnomalies:     len(kept),
		Threshold:          p.Threshold,
		DataPointsAnalyzed: len(series),
	}
	for _, r := range kept {
		switch models.SeverityOf(r.Deviation) {
		case models.SeverityHigh:
			summary.HighSeverity++
		case models.SeverityMedium:
			summary.MediumSeverity++
		default:
			summary.LowSeverity++
		}
	}
	if len(kept) > MaxReportedAnomalies {
		kept = kept[:MaxReportedAnomalies]
	}
	summary.Anomalies = kept
	return summary, nil
}

type PredictParams struct {
	Amount      decimal.Decimal
	Hour        *int
	DayOfWeek   *int
	Description string
}

// Candidate defaults when the request leaves hour or weekday out: noon on a Monday.
const (
	DefaultPredictHour    = 12
	DefaultPredictWeekday = 0
)

// PredictTransaction scores a candidate against the most recent history.
// Hour and weekday default to DefaultPredictHour and DefaultPredictWeekday.
func (a *RiskAnalytics) PredictTransaction(ctx context.Context, p PredictParams) (*models.TransactionRiskResult, error) {
	if !p.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be positive", models.ErrMalformedInput)
	}
	now := a.now()
	recent, err := a.store.GetRecentTransactions(ctx, now.Add(-a.lookbacks.History), RecentHistorySize)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	c := models.TransactionCandidate{
		Amount:    p.Amount,
		Hour:      DefaultPredictHour,
		Weekday:   DefaultPredictWeekday,
		Reference: now,
	}
	if p.Hour != nil {
		c.Hour = *p.Hour
	}
	if p.DayOfWeek != nil {
		c.Weekday = *p.DayOfWeek
	}

	res := a.scorer.PredictTransactionRisk(c, models.HistoryFromRecords(recent))
	return &res, nil
}

// ParseMetrics parses a comma separated metric list. Blank input selects nothing.
func ParseMetrics(s string) ([]models.Metric, error) {
	var out []models.Metric
	for _, part := range strings.Split(s, ",") {
		name := strings.TrimSpace(part)
		if name == "" {
			continue
		}
		if !models.IsValidMetric(models.Metric(name)) {
			return nil, fmt.Errorf("%w: unknown metric %q", models.ErrMalformedInput, name)
		}
		out = append(out, models.Metric(name))
	}
	return out, nil
}

func period(w domrepo.Window) models.AnalysisPeriod {
	return models.AnalysisPeriod{StartDate: w.From, EndDate: w.To, Days: w.Days()}
}
