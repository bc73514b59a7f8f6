package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"RiskPulse/internal/domain/models"
	domrepo "RiskPulse/internal/domain/repository"
	domsvc "RiskPulse/internal/domain/service"
	applogger "RiskPulse/pkg/logger"
)

var (
	ErrTrainingInProgress = errors.New("training already in progress")
	ErrTrainingTimeout    = errors.New("training timed out")
)

// TrainingMetrics receives the outcome of every training run.
type TrainingMetrics interface {
	RecordTraining(outcome string, seconds float64)
}

// ModelTrainer fits model sets off the request path. Runs are serialized;
// a failed or timed out run leaves the installed set untouched.
type ModelTrainer struct {
	analytics  *RiskAnalytics
	forecaster domsvc.RiskForecaster
	timeout    time.Duration
	metrics    TrainingMetrics
	l          *applogger.Logger

	mu      sync.Mutex
	last    atomic.Pointer[models.TrainingSummary]
	lastErr atomic.Pointer[string]
}

func NewModelTrainer(a *RiskAnalytics, f domsvc.RiskForecaster, timeout time.Duration, m TrainingMetrics) *ModelTrainer {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &ModelTrainer{analytics: a, forecaster: f, timeout: timeout, metrics: m}
}

// SetLogger sets optional logger.
func (t *ModelTrainer) SetLogger(l *applogger.Logger) { t.l = l }

// LastSummary returns the summary of the last installed model set.
func (t *ModelTrainer) LastSummary() (models.TrainingSummary, bool) {
	s := t.last.Load()
	if s == nil {
		return models.TrainingSummary{}, false
	}
	return *s, true
}

// LastError returns the error of the most recent failed run, if the run after it has not succeeded.
func (t *ModelTrainer) LastError() string {
	if s := t.lastErr.Load(); s != nil {
		return *s
	}
	return ""
}

// Train loads the training window, fits a model set within the timeout and installs it.
func (t *ModelTrainer) Train(ctx context.Context) (models.TrainingSummary, error) {
	if !t.mu.TryLock() {
		return models.TrainingSummary{}, ErrTrainingInProgress
	}
	unlock := true
	defer func() {
		if unlock {
			t.mu.Unlock()
		}
	}()

	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	w := domrepo.Lookback(t.analytics.Now(), t.analytics.Lookbacks().Training)
	series, err := t.analytics.DailySeries(ctx, w)
	if err != nil {
		return t.fail(start, "load", err)
	}

	type result struct {
		m   domsvc.TrainedModels
		err error
	}
	done := make(chan result, 1)
	go func() {
		m, err := t.forecaster.Fit(series)
		done <- result{m, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return t.fail(start, "fit", r.err)
		}
		if err := t.forecaster.Install(r.m); err != nil {
			return t.fail(start, "install", err)
		}
		sum := r.m.Summary()
		t.last.Store(&sum)
		t.lastErr.Store(nil)
		t.observe("ok", start)
		if t.l != nil {
			t.l.Info("training complete",
				applogger.String("run_id", sum.RunID),
				applogger.Int("series_days", sum.SeriesDays),
				applogger.Int("feature_rows", sum.FeatureRows),
				applogger.Duration("duration_ms", time.Since(start)),
			)
		}
		return sum, nil
	case <-ctx.Done():
		// The fit cannot be interrupted; hold the lock until it returns and discard its result.
		unlock = false
		go func() {
			<-done
			t.mu.Unlock()
		}()
		return t.fail(start, "timeout", fmt.Errorf("%w: %v", ErrTrainingTimeout, ctx.Err()))
	}
}

// Run trains immediately and then every interval until ctx is cancelled.
func (t *ModelTrainer) Run(ctx context.Context, interval time.Duration) {
	t.trainLogged(ctx)
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.trainLogged(ctx)
		}
	}
}

func (t *ModelTrainer) trainLogged(ctx context.Context) {
	if _, err := t.Train(ctx); err != nil && t.l != nil && !errors.Is(err, ErrTrainingInProgress) {
		t.l.Warn("scheduled training failed", applogger.Error(err))
	}
}

func (t *ModelTrainer) fail(start time.Time, stage string, err error) (models.TrainingSummary, error) {
	msg := err.Error()
	t.lastErr.Store(&msg)
	t.observe(stage+"_error", start)
	if t.l != nil {
		t.l.Error("training failed", applogger.String("stage", stage), applogger.Error(err))
	}
	return models.TrainingSummary{}, fmt.Errorf("train models: %w", err)
}

func (t *ModelTrainer) observe(outcome string, start time.Time) {
	if t.metrics != nil {
		t.metrics.RecordTraining(outcome, time.Since(start).Seconds())
	}
}
