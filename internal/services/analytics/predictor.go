package analytics

import (
	"fmt"
	"math"
	"sort"

	"RiskPulse/internal/domain/models"
	domsvc "RiskPulse/internal/domain/service"

	"github.com/shopspring/decimal"
)

// Rule weights and thresholds of the transaction scorer.
var (
	amountHigh     = decimal.NewFromInt(10000)
	amountElevated = decimal.NewFromInt(5000)
	amountNotable  = decimal.NewFromInt(1000)

	deviationMajor = decimal.NewFromInt(1)
	deviationMinor = decimal.NewFromFloat(0.5)
)

const (
	historyDepth = 10

	scoreAmountHigh     = 30.0
	scoreAmountElevated = 15.0
	scoreAmountNotable  = 5.0
	scoreOffHours       = 10.0
	scoreFrequency      = 15.0
	scoreFrequencyBurst = 25.0
	scoreDeviationMajor = 20.0
	scoreDeviationMinor = 10.0
	lastRiskWeight      = 0.3

	highFrequency       = 5
	burstFrequency      = 10
	priorRiskPattern    = 50.0
	baseConfidence      = 0.5
	maxConfidence       = 0.95
	frequencyConfidence = 0.2
	amountConfidence    = 0.1
)

const (
	FactorHighAmount     = "High transaction amount"
	FactorElevatedAmount = "Above-average transaction amount"
	FactorOffHours       = "Transaction outside business hours"
	FactorHighFrequency  = "High transaction frequency"
	FactorDeviation      = "Significant deviation from average transaction amount"
	FactorPriorRisk      = "Previous high-risk transaction pattern"
	FactorNone           = "No significant risk factors identified"
	FactorUnavailable    = "Unable to analyze transaction"
)

// FallbackRiskResult is returned whenever the inputs cannot be analyzed.
func FallbackRiskResult() models.TransactionRiskResult {
	return models.TransactionRiskResult{
		RiskScore:   50.0,
		Confidence:  0.5,
		RiskFactors: []string{FactorUnavailable},
		RiskLevel:   models.RiskMedium,
	}
}

// TransactionRiskPredictor is a stateless rule-based scorer.
type TransactionRiskPredictor struct{}

func NewTransactionRiskPredictor() *TransactionRiskPredictor { return &TransactionRiskPredictor{} }

type txFeatures struct {
	amount    decimal.Decimal
	hour      int
	frequency int
	avgAmount decimal.Decimal
	lastRisk  float64
}

// PredictTransactionRisk scores candidate against its recent history. The 10
// most recent entries by date are considered. It never fails: unusable input
// yields FallbackRiskResult.
func (p *TransactionRiskPredictor) PredictTransactionRisk(candidate models.TransactionCandidate, history []models.HistoryEntry) models.TransactionRiskResult {
	f, err := extractTxFeatures(candidate, history)
	if err != nil {
		return FallbackRiskResult()
	}
	score := round(clamp(ruleScore(f), 0, 100), 1)
	return models.TransactionRiskResult{
		RiskScore:   score,
		Confidence:  round(confidence(f), 2),
		RiskFactors: riskFactors(f),
		RiskLevel:   models.LevelForScore(score),
	}
}

func extractTxFeatures(c models.TransactionCandidate, history []models.HistoryEntry) (txFeatures, error) {
	if c.Hour < 0 || c.Hour > 23 {
		return txFeatures{}, fmt.Errorf("%w: hour %d", models.ErrMalformedInput, c.Hour)
	}
	if c.Amount.IsNegative() {
		return txFeatures{}, fmt.Errorf("%w: negative amount", models.ErrMalformedInput)
	}
	f := txFeatures{amount: c.Amount, hour: c.Hour}
	if len(history) == 0 {
		return f, nil
	}
	if c.Reference.IsZero() {
		return txFeatures{}, fmt.Errorf("%w: missing reference time", models.ErrMalformedInput)
	}

	recent := make([]models.HistoryEntry, len(history))
	copy(recent, history)
	for _, h := range recent {
		if h.Date.IsZero() || math.IsNaN(h.RiskScore) || math.IsInf(h.RiskScore, 0) {
			return txFeatures{}, fmt.Errorf("%w: history entry", models.ErrMalformedInput)
		}
	}
	sort.SliceStable(recent, func(i, j int) bool { return recent[i].Date.After(recent[j].Date) })
	if len(recent) > historyDepth {
		recent = recent[:historyDepth]
	}

	sum := decimal.Zero
	for _, h := range recent {
		// whole days elapsed, floored
		days := int(math.Floor(c.Reference.Sub(h.Date).Hours() / 24))
		if days <= 1 {
			f.frequency++
		}
		sum = sum.Add(h.Amount)
	}
	f.avgAmount = sum.Div(decimal.NewFromInt(int64(len(recent))))
	f.lastRisk = recent[0].RiskScore
	return f, nil
}

func isOffHours(hour int) bool { return hour < 6 || hour > 22 }

// deviation is |amount-avg|/avg; ok is false without a positive average.
func deviation(f txFeatures) (decimal.Decimal, bool) {
	if !f.avgAmount.IsPositive() {
		return decimal.Zero, false
	}
	return f.amount.Sub(f.avgAmount).Abs().Div(f.avgAmount), true
}

func ruleScore(f txFeatures) float64 {
	score := 0.0
	switch {
	case f.amount.GreaterThan(amountHigh):
		score += scoreAmountHigh
	case f.amount.GreaterThan(amountElevated):
		score += scoreAmountElevated
	case f.amount.GreaterThan(amountNotable):
		score += scoreAmountNotable
	}
	if isOffHours(f.hour) {
		score += scoreOffHours
	}
	// The burst tier is unreachable: any frequency above it already matched the high tier.
	if f.frequency > highFrequency {
		score += scoreFrequency
	} else if f.frequency > burstFrequency {
		score += scoreFrequencyBurst
	}
	score += f.lastRisk * lastRiskWeight
	if dev, ok := deviation(f); ok {
		switch {
		case dev.GreaterThan(deviationMajor):
			score += scoreDeviationMajor
		case dev.GreaterThan(deviationMinor):
			score += scoreDeviationMinor
		}
	}
	return score
}

func confidence(f txFeatures) float64 {
	c := baseConfidence
	if f.frequency > 0 {
		c += frequencyConfidence
	}
	if f.amount.GreaterThan(amountNotable) {
		c += amountConfidence
	}
	return math.Min(c, maxConfidence)
}

func riskFactors(f txFeatures) []string {
	var factors []string
	switch {
	case f.amount.GreaterThan(amountHigh):
		factors = append(factors, FactorHighAmount)
	case f.amount.GreaterThan(amountElevated):
		factors = append(factors, FactorElevatedAmount)
	}
	if isOffHours(f.hour) {
		factors = append(factors, FactorOffHours)
	}
	if f.frequency > highFrequency {
		factors = append(factors, FactorHighFrequency)
	}
	if dev, ok := deviation(f); ok && dev.GreaterThan(deviationMinor) {
		factors = append(factors, FactorDeviation)
	}
	if f.lastRisk > priorRiskPattern {
		factors = append(factors, FactorPriorRisk)
	}
	if len(factors) == 0 {
		return []string{FactorNone}
	}
	return factors
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

var _ domsvc.TransactionScorer = (*TransactionRiskPredictor)(nil)
