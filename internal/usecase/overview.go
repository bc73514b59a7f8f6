package usecase

import (
	"context"
	"sync"
	"time"

	"RiskPulse/internal/domain/models"
	domrepo "RiskPulse/internal/domain/repository"
)

// OverviewUseCase computes the dashboard views concurrently.
type OverviewUseCase struct {
	analytics *RiskAnalytics
	timeout   time.Duration
}

func NewOverviewUseCase(a *RiskAnalytics) *OverviewUseCase {
	return &OverviewUseCase{analytics: a, timeout: 30 * time.Second}
}

type OverviewParams struct {
	Days int // forecast period
}

// GetOverview runs forecast, trends and anomalies in parallel. A failing part
// is reported in Errors and does not fail the whole overview.
func (uc *OverviewUseCase) GetOverview(ctx context.Context, p OverviewParams) (*models.Overview, error) {
	if p.Days <= 0 {
		p.Days = 30
	}

	ctx, cancel := context.WithTimeout(ctx, uc.timeout)
	defer cancel()

	now := uc.analytics.Now()
	lb := uc.analytics.Lookbacks()
	res := &models.Overview{
		GeneratedAt: now,
		Errors:      map[string]string{},
	}

	type item struct {
		name string
		val  interface{}
		err  error
	}
	ch := make(chan item, 3)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		v, err := uc.analytics.Forecast(ctx, ForecastParams{Days: p.Days})
		ch <- item{"forecast", v, err}
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		v, err := uc.analytics.Trends(ctx, TrendParams{Window: domrepo.Lookback(now, lb.Trends)})
		ch <- item{"trends", v, err}
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		v, err := uc.analytics.Anomalies(ctx, AnomalyParams{
			Window:    domrepo.Lookback(now, lb.Anomalies),
			Threshold: 2.0,
		})
		ch <- item{"anomalies", v, err}
	}()

	go func() { wg.Wait(); close(ch) }()

	for it := range ch {
		if it.err != nil {
			res.Errors[it.name] = it.err.Error()
			continue
		}
		switch it.name {
		case "forecast":
			res.Forecast = it.val.(*models.ForecastReport)
		case "trends":
			res.Trends = it.val.(*models.TrendSummary)
		case "anomalies":
			res.Anomalies = it.val.(*models.AnomalySummary)
		}
	}

	if len(res.Errors) == 0 {
		res.Errors = nil
	}
	return res, nil
}
