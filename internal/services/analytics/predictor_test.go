package analytics

import (
	"testing"
	"time"

	"RiskPulse/internal/domain/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

var refTime = time.Date(2024, 6, 12, 12, 0, 0, 0, time.UTC)

func candidate(amount string, hour int) models.TransactionCandidate {
	return models.TransactionCandidate{Amount: decimal.RequireFromString(amount), Hour: hour, Weekday: 2, Reference: refTime}
}

func entries(n int, age time.Duration, amount string, risk float64) []models.HistoryEntry {
	out := make([]models.HistoryEntry, n)
	for i := range out {
		out[i] = models.HistoryEntry{Date: refTime.Add(-age), Amount: decimal.RequireFromString(amount), RiskScore: risk}
	}
	return out
}

func TestPredictTransactionRiskLargeOffHoursNoHistory(t *testing.T) {
	p := NewTransactionRiskPredictor()

	res := p.PredictTransactionRisk(candidate("10000.01", 3), nil)
	assert.Equal(t, 40.0, res.RiskScore)
	assert.Equal(t, 0.6, res.Confidence)
	assert.Equal(t, []string{FactorHighAmount, FactorOffHours}, res.RiskFactors)
	assert.Equal(t, models.RiskMedium, res.RiskLevel)

	// exactly 10000 sits in the 5000-10000 tier
	res = p.PredictTransactionRisk(candidate("10000", 3), nil)
	assert.Equal(t, 25.0, res.RiskScore)
	assert.Equal(t, 0.6, res.Confidence)
	assert.Equal(t, []string{FactorElevatedAmount, FactorOffHours}, res.RiskFactors)
	assert.Equal(t, models.RiskLow, res.RiskLevel)
}

func TestPredictTransactionRiskNoFactors(t *testing.T) {
	res := NewTransactionRiskPredictor().PredictTransactionRisk(candidate("20", 12), nil)
	assert.Equal(t, 0.0, res.RiskScore)
	assert.Equal(t, 0.5, res.Confidence)
	assert.Equal(t, []string{FactorNone}, res.RiskFactors)
}

func TestPredictTransactionRiskFrequency(t *testing.T) {
	p := NewTransactionRiskPredictor()

	res := p.PredictTransactionRisk(candidate("100", 12), entries(6, time.Hour, "100", 0))
	assert.Equal(t, 15.0, res.RiskScore)
	assert.Equal(t, 0.7, res.Confidence)
	assert.Equal(t, []string{FactorHighFrequency}, res.RiskFactors)

	// only the 10 most recent entries count and the burst tier never applies
	res = p.PredictTransactionRisk(candidate("100", 12), entries(14, time.Hour, "100", 0))
	assert.Equal(t, 15.0, res.RiskScore)

	// whole elapsed days: 47h floors to 1 day, 49h to 2
	res = p.PredictTransactionRisk(candidate("100", 12), entries(6, 47*time.Hour, "100", 0))
	assert.Equal(t, 15.0, res.RiskScore)
	res = p.PredictTransactionRisk(candidate("100", 12), entries(6, 49*time.Hour, "100", 0))
	assert.Equal(t, 0.0, res.RiskScore)
	assert.Equal(t, 0.5, res.Confidence)
}

func TestPredictTransactionRiskDeviation(t *testing.T) {
	p := NewTransactionRiskPredictor()
	old := entries(3, 5*24*time.Hour, "100", 0)

	assert.Equal(t, 20.0, p.PredictTransactionRisk(candidate("250", 12), old).RiskScore)
	assert.Equal(t, 10.0, p.PredictTransactionRisk(candidate("160", 12), old).RiskScore)
	assert.Equal(t, 0.0, p.PredictTransactionRisk(candidate("150", 12), old).RiskScore)

	res := p.PredictTransactionRisk(candidate("160", 12), old)
	assert.Equal(t, []string{FactorDeviation}, res.RiskFactors)
}

func TestPredictTransactionRiskUsesMostRecentRisk(t *testing.T) {
	hist := []models.HistoryEntry{
		{Date: refTime.Add(-96 * time.Hour), Amount: decimal.NewFromInt(100), RiskScore: 10},
		{Date: refTime.Add(-72 * time.Hour), Amount: decimal.NewFromInt(100), RiskScore: 80},
		{Date: refTime.Add(-120 * time.Hour), Amount: decimal.NewFromInt(100), RiskScore: 30},
	}
	res := NewTransactionRiskPredictor().PredictTransactionRisk(candidate("100", 12), hist)
	assert.Equal(t, 24.0, res.RiskScore)
	assert.Equal(t, []string{FactorPriorRisk}, res.RiskFactors)
}

func TestPredictTransactionRiskClampsAndIsPure(t *testing.T) {
	p := NewTransactionRiskPredictor()
	hist := entries(6, time.Hour, "1000", 100)
	c := candidate("20000", 2)

	first := p.PredictTransactionRisk(c, hist)
	assert.Equal(t, 100.0, first.RiskScore)
	assert.Equal(t, models.RiskHigh, first.RiskLevel)
	assert.Equal(t, 0.8, first.Confidence)
	assert.Equal(t, first, p.PredictTransactionRisk(c, hist))
}

func TestPredictTransactionRiskFallback(t *testing.T) {
	p := NewTransactionRiskPredictor()
	assert.Equal(t, FallbackRiskResult(), p.PredictTransactionRisk(candidate("100", 25), nil))

	bad := []models.HistoryEntry{{Amount: decimal.NewFromInt(1)}}
	assert.Equal(t, FallbackRiskResult(), p.PredictTransactionRisk(candidate("100", 12), bad))

	noRef := candidate("100", 12)
	noRef.Reference = time.Time{}
	assert.Equal(t, FallbackRiskResult(), p.PredictTransactionRisk(noRef, entries(1, time.Hour, "1", 0)))
}
