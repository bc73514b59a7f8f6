package service

import "RiskPulse/internal/domain/models"

// TrainedModels is an immutable fitted model set produced by Fit.
type TrainedModels interface {
	Summary() models.TrainingSummary
}

// RiskForecaster fits model sets and produces forecasts from the installed one.
// Fit is pure; Install swaps the active set atomically.
type RiskForecaster interface {
	Fit(series []models.DailySeriesRow) (TrainedModels, error)
	Install(m TrainedModels) error
	Trained() bool
	PredictFutureRisk(series []models.DailySeriesRow, horizonDays int) (models.RiskPrediction, error)
	GenerateRiskForecast(series []models.DailySeriesRow, requestedDays int) (models.ForecastReport, error)
}

// TrendAnalyzer classifies trends and flags anomalies in a daily series.
type TrendAnalyzer interface {
	AnalyzeTrends(series []models.DailySeriesRow) (models.TrendReport, error)
	DetectAnomalies(series []models.DailySeriesRow) ([]models.AnomalyRecord, error)
}

// TransactionScorer scores a single candidate transaction without a trained model.
type TransactionScorer interface {
	PredictTransactionRisk(candidate models.TransactionCandidate, history []models.HistoryEntry) models.TransactionRiskResult
}
