package models

import "time"

// AnalysisPeriod is the window a report was computed over.
type AnalysisPeriod struct {
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	Days      int       `json:"days"`
}

// TrendSummary is the trend report restricted to the requested metrics.
type TrendSummary struct {
	AnalysisPeriod AnalysisPeriod        `json:"analysis_period"`
	DataPoints     int                   `json:"data_points"`
	Trends         map[Metric]TrendEntry `json:"trends"`
	Seasonality    *Seasonality          `json:"seasonality,omitempty"`
	Anomalies      []AnomalyRecord       `json:"anomalies"`
	Omissions      map[string]string     `json:"omissions,omitempty"`
}

// AnomalySummary lists ranked anomalies at or above Threshold.
type AnomalySummary struct {
	AnalysisPeriod     AnalysisPeriod  `json:"analysis_period"`
	TotalAnomalies     int             `json:"total_anomalies"`
	HighSeverity       int             `json:"high_severity"`
	MediumSeverity     int             `json:"medium_severity"`
	LowSeverity        int             `json:"low_severity"`
	Threshold          float64         `json:"threshold"`
	Anomalies          []AnomalyRecord `json:"anomalies"`
	DataPointsAnalyzed int             `json:"data_points_analyzed"`
}

// Overview bundles the dashboard views; a failed part is reported in Errors.
type Overview struct {
	GeneratedAt time.Time         `json:"generated_at"`
	Forecast    *ForecastReport   `json:"forecast,omitempty"`
	Trends      *TrendSummary     `json:"trends,omitempty"`
	Anomalies   *AnomalySummary   `json:"anomalies,omitempty"`
	Errors      map[string]string `json:"errors,omitempty"`
}
