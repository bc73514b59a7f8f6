package analytics

import (
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"RiskPulse/internal/domain/models"
	domsvc "RiskPulse/internal/domain/service"
	"RiskPulse/internal/services/features"
	xlogger "RiskPulse/pkg/logger"
)

// StandardHorizons are the forecast horizons reported by GenerateRiskForecast.
var StandardHorizons = []int{7, 14, 30}

// Engine owns one model set. Fit is pure, Install swaps the set atomically
// and every read path works on a snapshot, so predictions may run
// concurrently with each other and with a training run.
type Engine struct {
	models atomic.Pointer[ModelSet]
	l      *xlogger.Logger

	ridgeLambda    float64
	maxEvaluations int
	now            func() time.Time
}

// EngineOption configures Engine.
type EngineOption func(*Engine)

// WithRidgeLambda sets the ridge penalty used when OLS cannot be fitted.
func WithRidgeLambda(lambda float64) EngineOption {
	return func(e *Engine) {
		if lambda > 0 {
			e.ridgeLambda = lambda
		}
	}
}

// WithMaxEvaluations bounds the objective evaluations of a forecaster fit.
func WithMaxEvaluations(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.maxEvaluations = n
		}
	}
}

// WithClock overrides the time source for report timestamps.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{
		ridgeLambda:    1.0,
		maxEvaluations: 2000,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SetLogger sets optional logger.
func (e *Engine) SetLogger(l *xlogger.Logger) { e.l = l }

// Install makes m the active model set.
func (e *Engine) Install(m domsvc.TrainedModels) error {
	set, ok := m.(*ModelSet)
	if !ok || set == nil {
		return fmt.Errorf("%w: foreign model set %T", models.ErrMalformedInput, m)
	}
	e.models.Store(set)
	if e.l != nil {
		e.l.Info("model set installed",
			xlogger.String("run_id", set.summary.RunID),
			xlogger.Int("feature_rows", set.summary.FeatureRows),
			xlogger.Strings("forecasters", set.summary.Forecasters),
		)
	}
	return nil
}

// Train fits and installs in one step. On failure the previous set stays active.
func (e *Engine) Train(series []models.DailySeriesRow) (models.TrainingSummary, error) {
	set, err := e.fitModels(series)
	if err != nil {
		if e.l != nil {
			e.l.Warn("training failed", xlogger.Error(err))
		}
		return models.TrainingSummary{}, err
	}
	if err := e.Install(set); err != nil {
		return models.TrainingSummary{}, err
	}
	return set.summary, nil
}

func (e *Engine) Trained() bool { return e.models.Load() != nil }

// Models returns the active model set, nil when untrained.
func (e *Engine) Models() *ModelSet { return e.models.Load() }

// PredictFutureRisk predicts next-day values with the regressors and projects
// horizonDays ahead with the forecasters. Either part may be omitted; the call
// fails only when no risk value at all can be produced.
func (e *Engine) PredictFutureRisk(series []models.DailySeriesRow, horizonDays int) (models.RiskPrediction, error) {
	set := e.models.Load()
	if set == nil {
		return models.RiskPrediction{}, models.ErrModelNotTrained
	}
	return predictWith(set, series, horizonDays)
}

func predictWith(set *ModelSet, series []models.DailySeriesRow, horizonDays int) (models.RiskPrediction, error) {
	if horizonDays <= 0 {
		return models.RiskPrediction{}, fmt.Errorf("%w: horizon %d", models.ErrMalformedInput, horizonDays)
	}
	pred := models.RiskPrediction{HorizonDays: horizonDays, Omissions: map[string]string{}}

	var regErr error
	x, err := features.NextDayPredictors(series)
	if err != nil {
		regErr = err
		pred.Omissions["next_day"] = err.Error()
	} else {
		for _, t := range regressorTargets {
			v, err := set.regressors[t].Predict(x)
			if err != nil {
				if t == TargetRisk {
					regErr = err
				}
				pred.Omissions["next_day_"+string(t)] = err.Error()
				continue
			}
			switch t {
			case TargetRisk:
				v = clamp(v, 0, 100)
				pred.NextDayRisk = &v
			case TargetAmount:
				v = math.Max(v, 0)
				pred.NextDayAmount = &v
			case TargetCount:
				v = math.Max(v, 0)
				pred.NextDayCount = &v
			}
		}
	}

	for _, t := range forecasterTargets {
		m, ok := set.forecasters[t]
		if !ok {
			pred.Omissions[string(t)+"_trend"] = "forecaster not fitted"
			continue
		}
		trend := m.Forecast(horizonDays)
		for i, v := range trend {
			if t == TargetRisk {
				trend[i] = clamp(v, 0, 100)
			} else {
				trend[i] = math.Max(v, 0)
			}
		}
		switch t {
		case TargetRisk:
			pred.RiskTrend = trend
		case TargetAmount:
			pred.AmountTrend = trend
		case TargetCount:
			pred.CountTrend = trend
		}
	}

	if pred.NextDayRisk == nil && pred.RiskTrend == nil {
		if regErr == nil {
			regErr = errors.New("no risk regressor output")
		}
		return models.RiskPrediction{}, fmt.Errorf("predict future risk: %w", regErr)
	}
	pred.Status = models.StatusComplete
	if len(pred.Omissions) > 0 {
		pred.Status = models.StatusPartial
	} else {
		pred.Omissions = nil
	}
	return pred, nil
}

// GenerateRiskForecast assembles the full report: per-horizon predictions,
// current risk level, trend analysis, ranked anomalies and recommendations.
func (e *Engine) GenerateRiskForecast(series []models.DailySeriesRow, requestedDays int) (models.ForecastReport, error) {
	if len(series) == 0 {
		return models.ForecastReport{}, models.InsufficientHistory("risk forecast", 0, 1)
	}
	set := e.models.Load()
	if set == nil {
		return models.ForecastReport{}, models.ErrModelNotTrained
	}
	if requestedDays <= 0 {
		return models.ForecastReport{}, fmt.Errorf("%w: forecast days %d", models.ErrMalformedInput, requestedDays)
	}

	report := models.ForecastReport{
		ForecastPeriodDays: requestedDays,
		GeneratedAt:        e.now(),
		Predictions:        []models.HorizonForecast{},
		Anomalies:          []models.AnomalyRecord{},
		Omissions:          map[string]string{},
	}

	for _, h := range StandardHorizons {
		if h > requestedDays {
			continue
		}
		hf := models.HorizonForecast{Days: h}
		pred, err := predictWith(set, series, h)
		if err != nil {
			hf.Error = err.Error()
			report.Omissions[fmt.Sprintf("predictions_%d_days", h)] = err.Error()
		} else {
			hf.Prediction = &pred
			if pred.Status == models.StatusPartial {
				report.Omissions[fmt.Sprintf("predictions_%d_days", h)] = "partial"
			}
		}
		report.Predictions = append(report.Predictions, hf)
	}

	report.CurrentRiskLevel = AssessRiskLevel(series[len(series)-1].AvgRisk)

	if trends, err := AnalyzeTrends(series); err != nil {
		report.Omissions["trend_analysis"] = err.Error()
	} else {
		report.TrendAnalysis = &trends
		report.Anomalies = RankAnomalies(trends.Anomalies)
		for k, v := range trends.Omissions {
			report.Omissions[k] = v
		}
	}

	report.Recommendations = Recommendations(report.CurrentRiskLevel, report.TrendAnalysis)

	report.Status = models.StatusComplete
	if len(report.Omissions) > 0 {
		report.Status = models.StatusPartial
	} else {
		report.Omissions = nil
	}
	return report, nil
}

// AnalyzeTrends implements domsvc.TrendAnalyzer.
func (e *Engine) AnalyzeTrends(series []models.DailySeriesRow) (models.TrendReport, error) {
	return AnalyzeTrends(series)
}

// DetectAnomalies implements domsvc.TrendAnalyzer.
func (e *Engine) DetectAnomalies(series []models.DailySeriesRow) ([]models.AnomalyRecord, error) {
	return DetectAnomalies(series)
}

var (
	_ domsvc.RiskForecaster = (*Engine)(nil)
	_ domsvc.TrendAnalyzer  = (*Engine)(nil)
	_ domsvc.TrainedModels  = (*ModelSet)(nil)
)
