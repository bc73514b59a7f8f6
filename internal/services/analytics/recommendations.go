package analytics

import (
	"fmt"

	"RiskPulse/internal/domain/models"
)

const (
	RecHighMitigation  = "High risk level detected - Implement immediate risk mitigation measures"
	RecHighMonitoring  = "Increase transaction monitoring frequency"
	RecHighThresholds  = "Review and update risk thresholds"
	RecMediumMonitor   = "Monitor risk trends closely over the next week"
	RecVolumeIncrease  = "Transaction volume is increasing - ensure monitoring capacity is adequate"
	RecStable          = "Risk levels are stable - continue normal monitoring procedures"
	recRiskTrendFormat = "Risk scores are trending upward (%.1f%%) - investigate causes"
	recAnomalyFormat   = "Detected %d anomalous patterns - review recent transactions"
)

// AssessRiskLevel classifies the latest average risk score.
func AssessRiskLevel(score float64) models.RiskAssessment {
	score = clamp(score, 0, 100)
	a := models.RiskAssessment{Level: models.LevelForScore(score), Score: round(score, 1)}
	switch a.Level {
	case models.RiskHigh:
		a.Description = "High risk - Immediate attention required"
		a.Color = "danger"
	case models.RiskMedium:
		a.Description = "Medium risk - Monitor closely"
		a.Color = "warning"
	default:
		a.Description = "Low risk - Normal operations"
		a.Color = "success"
	}
	return a
}

// Recommendations evaluates the rules in fixed priority order. trends may be nil.
func Recommendations(level models.RiskAssessment, trends *models.TrendReport) []string {
	var out []string
	switch level.Level {
	case models.RiskHigh:
		out = append(out, RecHighMitigation, RecHighMonitoring, RecHighThresholds)
	case models.RiskMedium:
		out = append(out, RecMediumMonitor)
	}

	if trends != nil {
		if t, ok := trends.Trends[models.MetricAvgRisk]; ok && t.Direction == models.TrendIncreasing {
			out = append(out, fmt.Sprintf(recRiskTrendFormat, t.ChangePercent))
		}
		if n := len(trends.Anomalies); n > 0 {
			out = append(out, fmt.Sprintf(recAnomalyFormat, n))
		}
		if t, ok := trends.Trends[models.MetricTransactionCount]; ok && t.Direction == models.TrendIncreasing {
			out = append(out, RecVolumeIncrease)
		}
	}

	if len(out) == 0 {
		out = append(out, RecStable)
	}
	return out
}
