package features

import (
	"fmt"
	"math"
	"time"

	"RiskPulse/internal/domain/models"
	xutil "RiskPulse/pkg/util"

	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/stat"
)

type dayBucket struct {
	count  int
	total  decimal.Decimal
	amount []float64
	risk   []float64
}

// BuildDailySeries buckets records by UTC calendar day and gap-fills the
// span [first day, last day] with zero rows.
func BuildDailySeries(recs []models.TransactionRecord) ([]models.DailySeriesRow, error) {
	return BuildDailySeriesRange(recs, time.Time{}, time.Time{})
}

// BuildDailySeriesRange is BuildDailySeries reindexed over [from, to] as well.
// Zero bounds are ignored; the result always covers every record's day.
func BuildDailySeriesRange(recs []models.TransactionRecord, from, to time.Time) ([]models.DailySeriesRow, error) {
	if len(recs) == 0 {
		return nil, models.ErrEmptyInput
	}

	buckets := make(map[time.Time]*dayBucket)
	var first, last time.Time
	for i := range recs {
		r := &recs[i]
		if err := validateRecord(r); err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		day := xutil.Day(r.Timestamp)
		b, ok := buckets[day]
		if !ok {
			b = &dayBucket{}
			buckets[day] = b
		}
		b.count++
		b.total = b.total.Add(r.Amount)
		b.amount = append(b.amount, r.Amount.InexactFloat64())
		if r.RiskScore != nil {
			b.risk = append(b.risk, *r.RiskScore)
		}
		if first.IsZero() || day.Before(first) {
			first = day
		}
		if day.After(last) {
			last = day
		}
	}

	if !from.IsZero() && xutil.Day(from).Before(first) {
		first = xutil.Day(from)
	}
	if !to.IsZero() && xutil.Day(to).After(last) {
		last = xutil.Day(to)
	}

	out := make([]models.DailySeriesRow, 0, xutil.DaysBetween(first, last)+1)
	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		row := models.DailySeriesRow{Date: d}
		if b, ok := buckets[d]; ok {
			row.TransactionCount = b.count
			row.TotalAmount = b.total.InexactFloat64()
			row.AvgAmount, row.StdAmount = MeanStd(b.amount)
			if len(b.risk) > 0 {
				row.AvgRisk, row.StdRisk = MeanStd(b.risk)
				row.MaxRisk = maxOf(b.risk)
			}
		}
		out = append(out, row)
	}
	return out, nil
}

func validateRecord(r *models.TransactionRecord) error {
	if r.ID == "" {
		return fmt.Errorf("%w: missing id", models.ErrMalformedInput)
	}
	if r.Timestamp.IsZero() {
		return fmt.Errorf("%w: missing timestamp", models.ErrMalformedInput)
	}
	if r.RiskScore != nil {
		s := *r.RiskScore
		if math.IsNaN(s) || s < 0 || s > 100 {
			return fmt.Errorf("%w: risk score %v outside [0,100]", models.ErrMalformedInput, s)
		}
	}
	return nil
}

// MeanStd returns the mean and population standard deviation of xs, (0, 0) when empty.
func MeanStd(xs []float64) (float64, float64) {
	switch len(xs) {
	case 0:
		return 0, 0
	case 1:
		return xs[0], 0
	}
	return stat.PopMeanStdDev(xs, nil)
}

// Mean returns the arithmetic mean of xs, 0 when empty.
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	return stat.Mean(xs, nil)
}

func maxOf(xs []float64) float64 {
	m := xs[0]
	for _, v := range xs[1:] {
		if v > m {
			m = v
		}
	}
	return m
}
