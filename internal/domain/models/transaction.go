package models

import (
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionRecord is the unit the engine consumes. It is never mutated.
type TransactionRecord struct {
	ID          string          `json:"id"`
	Timestamp   time.Time       `json:"timestamp"`
	Amount      decimal.Decimal `json:"amount"`
	RiskScore   *float64        `json:"risk_score,omitempty"` // 0..100, nil when unscored
	Description string          `json:"description,omitempty"`
}

// Validate checks the fields every ingested transaction must carry.
func (t *TransactionRecord) Validate() error {
	switch {
	case t == nil:
		return fmt.Errorf("%w: nil transaction", ErrMalformedInput)
	case t.ID == "":
		return fmt.Errorf("%w: missing id", ErrMalformedInput)
	case t.Timestamp.IsZero():
		return fmt.Errorf("%w: transaction %s has no timestamp", ErrMalformedInput, t.ID)
	case t.Amount.IsNegative():
		return fmt.Errorf("%w: transaction %s has negative amount", ErrMalformedInput, t.ID)
	case t.RiskScore != nil && (math.IsNaN(*t.RiskScore) || *t.RiskScore < 0 || *t.RiskScore > 100):
		return fmt.Errorf("%w: transaction %s risk score outside [0,100]", ErrMalformedInput, t.ID)
	}
	return nil
}

// HistoryEntry is one prior transaction handed to the rule-based scorer.
type HistoryEntry struct {
	Date      time.Time       `json:"date"`
	Amount    decimal.Decimal `json:"amount"`
	RiskScore float64         `json:"risk_score"`
}

// HistoryFromRecords converts records (most recent first) into scorer history.
func HistoryFromRecords(recs []TransactionRecord) []HistoryEntry {
	out := make([]HistoryEntry, 0, len(recs))
	for _, r := range recs {
		h := HistoryEntry{Date: r.Timestamp, Amount: r.Amount}
		if r.RiskScore != nil {
			h.RiskScore = *r.RiskScore
		}
		out = append(out, h)
	}
	return out
}

// TransactionCandidate is a transaction to be scored before it is accepted.
type TransactionCandidate struct {
	Amount    decimal.Decimal `json:"amount"`
	Hour      int             `json:"hour"`        // 0..23
	Weekday   int             `json:"day_of_week"` // 0=Monday
	Reference time.Time       `json:"-"`           // "now" for the frequency window
}

// TransactionRiskResult is the output of the rule-based scorer.
type TransactionRiskResult struct {
	RiskScore   float64   `json:"risk_score"`
	Confidence  float64   `json:"confidence"`
	RiskFactors []string  `json:"risk_factors"`
	RiskLevel   RiskLevel `json:"risk_level"`
}
