package models

import "time"

// RiskLevel is the three-tier classification of a 0..100 score.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Risk level thresholds.
const (
	HighRiskThreshold   = 70.0
	MediumRiskThreshold = 40.0
)

// LevelForScore maps a score to its level.
func LevelForScore(score float64) RiskLevel {
	switch {
	case score >= HighRiskThreshold:
		return RiskHigh
	case score >= MediumRiskThreshold:
		return RiskMedium
	default:
		return RiskLow
	}
}

// Status tags a result as complete or degraded.
type Status string

const (
	StatusComplete Status = "complete"
	StatusPartial  Status = "partial"
)

// RiskAssessment classifies the latest day's average risk.
type RiskAssessment struct {
	Level       RiskLevel `json:"level"`
	Description string    `json:"description"`
	Color       string    `json:"color"` // danger | warning | success
	Score       float64   `json:"score"`
}

// RiskPrediction is the output of a single future-risk prediction.
// Every value is optional; Omissions explains what is missing.
type RiskPrediction struct {
	HorizonDays   int               `json:"horizon_days"`
	NextDayRisk   *float64          `json:"next_day_risk,omitempty"`
	NextDayAmount *float64          `json:"next_day_amount,omitempty"`
	NextDayCount  *float64          `json:"next_day_count,omitempty"`
	RiskTrend     []float64         `json:"risk_trend,omitempty"`
	AmountTrend   []float64         `json:"amount_trend,omitempty"`
	CountTrend    []float64         `json:"count_trend,omitempty"`
	Status        Status            `json:"status"`
	Omissions     map[string]string `json:"omissions,omitempty"`
}

// HorizonForecast pairs a standard horizon with its prediction.
type HorizonForecast struct {
	Days       int             `json:"days"`
	Prediction *RiskPrediction `json:"prediction,omitempty"`
	Error      string          `json:"error,omitempty"`
}

// ForecastReport is produced fresh on every call.
type ForecastReport struct {
	ForecastPeriodDays int               `json:"forecast_period_days"`
	GeneratedAt        time.Time         `json:"generated_at"`
	Predictions        []HorizonForecast `json:"predictions"`
	CurrentRiskLevel   RiskAssessment    `json:"current_risk_level"`
	TrendAnalysis      *TrendReport      `json:"trend_analysis,omitempty"`
	Anomalies          []AnomalyRecord   `json:"anomalies"`
	Recommendations    []string          `json:"recommendations"`
	Status             Status            `json:"status"`
	Omissions          map[string]string `json:"omissions,omitempty"`
}

// Trend directions.
const (
	TrendIncreasing = "increasing"
	TrendDecreasing = "decreasing"
	TrendStable     = "stable"
)

// TrendEntry is the direction classification for one metric.
type TrendEntry struct {
	Direction     string  `json:"direction"`
	ChangePercent float64 `json:"change_percent"`
	RecentAvg     float64 `json:"recent_avg"`
	PreviousAvg   float64 `json:"previous_avg"`
}

// Seasonality holds per-weekday means (index 0 = Monday).
type Seasonality struct {
	RiskByWeekday   map[int]float64 `json:"risk_by_day"`
	VolumeByWeekday map[int]float64 `json:"volume_by_day"`
}

// TrendReport is the combined trend, seasonality and anomaly analysis.
type TrendReport struct {
	Trends      map[Metric]TrendEntry `json:"trends"`
	Seasonality *Seasonality          `json:"seasonality,omitempty"`
	Anomalies   []AnomalyRecord       `json:"anomalies"`
	DataPoints  int                   `json:"data_points"`
	Omissions   map[string]string     `json:"omissions,omitempty"`
}

// ExpectedRange is the [mean-kσ, mean+kσ] band of a rolling window.
type ExpectedRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// AnomalyRecord flags one metric value outside its rolling band.
type AnomalyRecord struct {
	Date          time.Time     `json:"date"`
	Metric        Metric        `json:"metric"`
	Value         float64       `json:"value"`
	ExpectedRange ExpectedRange `json:"expected_range"`
	Deviation     float64       `json:"deviation"` // |value-mean| in units of σ
}

// Severity grades an anomaly by its deviation.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// SeverityOf maps a deviation in σ to a tier: high from 3σ, medium from 2.5σ.
func SeverityOf(deviation float64) Severity {
	switch {
	case deviation >= 3:
		return SeverityHigh
	case deviation >= 2.5:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// FitAttempt records one candidate fit in attempt order.
type FitAttempt struct {
	Target string `json:"target"`
	Method string `json:"method"`
	OK     bool   `json:"ok"`
	Error  string `json:"error,omitempty"`
}

// TrainingSummary describes a completed training run.
type TrainingSummary struct {
	RunID       string       `json:"run_id"`
	TrainedAt   time.Time    `json:"trained_at"`
	SeriesDays  int          `json:"series_days"`
	FeatureRows int          `json:"feature_rows"`
	Attempts    []FitAttempt `json:"attempts"`
	Forecasters []string     `json:"forecasters"` // targets with a fitted forecaster
	Duration    string       `json:"duration"`
}
