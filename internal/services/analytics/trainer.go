package analytics

import (
	"fmt"
	"time"

	"RiskPulse/internal/domain/models"
	domsvc "RiskPulse/internal/domain/service"
	"RiskPulse/internal/services/features"
	xlogger "RiskPulse/pkg/logger"

	"github.com/google/uuid"
)

var regressorTargets = []Target{TargetRisk, TargetAmount, TargetCount}

// forecasters are fitted in this order; each is independent of the others.
var forecasterTargets = []Target{TargetRisk, TargetCount, TargetAmount}

// ModelSet is an immutable set of fitted models. A missing forecaster key
// means that forecaster is absent.
type ModelSet struct {
	regressors  map[Target]*LinearModel
	forecasters map[Target]SeriesModel
	summary     models.TrainingSummary
}

func (s *ModelSet) Summary() models.TrainingSummary { return s.summary }

// Regressor returns the fitted regressor for t.
func (s *ModelSet) Regressor(t Target) (*LinearModel, bool) {
	m, ok := s.regressors[t]
	return m, ok
}

// Forecaster returns the fitted forecaster for t, if any.
func (s *ModelSet) Forecaster(t Target) (SeriesModel, bool) {
	m, ok := s.forecasters[t]
	return m, ok
}

func targetValue(row models.DailySeriesRow, t Target) float64 {
	switch t {
	case TargetRisk:
		return row.AvgRisk
	case TargetAmount:
		return row.TotalAmount
	default:
		return float64(row.TransactionCount)
	}
}

// Fit trains a complete model set from series without touching the installed
// one. It succeeds iff all three regressors fit; forecaster failures only
// leave that forecaster absent.
func (e *Engine) Fit(series []models.DailySeriesRow) (domsvc.TrainedModels, error) {
	set, err := e.fitModels(series)
	if err != nil {
		return nil, err
	}
	return set, nil
}

func (e *Engine) fitModels(series []models.DailySeriesRow) (*ModelSet, error) {
	start := time.Now()
	rows, err := features.BuildFeatureRows(series)
	if err != nil {
		return nil, fmt.Errorf("build features: %w", err)
	}

	x := make([][]float64, len(rows))
	for i, r := range rows {
		x[i] = r.Predictors()
	}

	set := &ModelSet{
		regressors:  make(map[Target]*LinearModel, len(regressorTargets)),
		forecasters: make(map[Target]SeriesModel, len(forecasterTargets)),
		summary: models.TrainingSummary{
			RunID:       uuid.NewString(),
			SeriesDays:  len(series),
			FeatureRows: len(rows),
		},
	}

	for _, t := range regressorTargets {
		y := make([]float64, len(rows))
		for i, r := range rows {
			y[i] = targetValue(r.Current, t)
		}
		m, attempts, err := fitRegressor(t, x, y, e.ridgeLambda)
		set.summary.Attempts = append(set.summary.Attempts, attempts...)
		e.logAttempts(attempts)
		if err != nil {
			return nil, err
		}
		set.regressors[t] = m
	}

	for _, t := range forecasterTargets {
		y := make([]float64, len(rows))
		for i, r := range rows {
			y[i] = targetValue(r.Current, t)
		}
		m, attempts := fitForecaster(t, y, e.maxEvaluations)
		set.summary.Attempts = append(set.summary.Attempts, attempts...)
		e.logAttempts(attempts)
		if m == nil {
			continue
		}
		set.forecasters[t] = m
		set.summary.Forecasters = append(set.summary.Forecasters, string(t))
	}

	set.summary.TrainedAt = e.now()
	set.summary.Duration = time.Since(start).String()
	return set, nil
}

func (e *Engine) logAttempts(attempts []models.FitAttempt) {
	if e.l == nil {
		return
	}
	for _, a := range attempts {
		if a.OK {
			e.l.Debug("model fitted", xlogger.String("target", a.Target), xlogger.String("method", a.Method))
			continue
		}
		e.l.Warn("model fit failed",
			xlogger.String("target", a.Target),
			xlogger.String("method", a.Method),
			xlogger.String("reason", a.Error),
		)
	}
}
