package usecase

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"RiskPulse/internal/domain/models"
	domrepo "RiskPulse/internal/domain/repository"
	domsvc "RiskPulse/internal/domain/service"
	applogger "RiskPulse/pkg/logger"

	"github.com/shopspring/decimal"
)

var testNow = time.Date(2024, 3, 1, 15, 30, 0, 0, time.UTC)

func testClock() time.Time { return testNow }

// memStore is an in-memory TransactionStore.
type memStore struct {
	recs []models.TransactionRecord
	err  error
}

func (s *memStore) GetTransactions(_ context.Context, w domrepo.Window) ([]models.TransactionRecord, error) {
	if s.err != nil {
		return nil, s.err
	}
	var out []models.TransactionRecord
	for _, r := range s.recs {
		if !r.Timestamp.Before(w.From) && r.Timestamp.Before(w.To) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (s *memStore) GetRecentTransactions(_ context.Context, since time.Time, n int) ([]models.TransactionRecord, error) {
	if s.err != nil {
		return nil, s.err
	}
	var out []models.TransactionRecord
	for _, r := range s.recs {
		if !r.Timestamp.Before(since) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if len(out) > n {
		out = out[:n]
	}
	return out, nil
}

// syntheticRecords produces days of scored transactions ending the day before testNow.
func syntheticRecords(days int) []models.TransactionRecord {
	var out []models.TransactionRecord
	start := testNow.Truncate(24*time.Hour).AddDate(0, 0, -days)
	for d := 0; d < days; d++ {
		n := 3 + d%4
		for k := 0; k < n; k++ {
			risk := 30 + 10*math.Sin(float64(d)/3) + float64(k*4)
			out = append(out, models.TransactionRecord{
				ID:        fmt.Sprintf("tx-%d-%d", d, k),
				Timestamp: start.AddDate(0, 0, d).Add(time.Duration(9+k) * time.Hour),
				Amount:    decimal.NewFromFloat(100 + 20*math.Cos(float64(d)) + float64(k*15)).Round(2),
				RiskScore: &risk,
			})
		}
	}
	return out
}

// stubTrends returns canned anomalies.
type stubTrends struct {
	anomalies []models.AnomalyRecord
	report    models.TrendReport
	err       error
}

func (s *stubTrends) AnalyzeTrends([]models.DailySeriesRow) (models.TrendReport, error) {
	return s.report, s.err
}

func (s *stubTrends) DetectAnomalies([]models.DailySeriesRow) ([]models.AnomalyRecord, error) {
	return s.anomalies, s.err
}

// captureScorer records what it was asked to score.
type captureScorer struct {
	candidate models.TransactionCandidate
	history   []models.HistoryEntry
}

func (s *captureScorer) PredictTransactionRisk(c models.TransactionCandidate, h []models.HistoryEntry) models.TransactionRiskResult {
	s.candidate = c
	s.history = h
	return models.TransactionRiskResult{RiskScore: 25, Confidence: 0.8, RiskLevel: models.RiskLow, RiskFactors: []string{}}
}

type stubModels struct{ summary models.TrainingSummary }

func (m stubModels) Summary() models.TrainingSummary { return m.summary }

// blockingForecaster's Fit waits for release when set; it counts installs.
type blockingForecaster struct {
	started  chan struct{} // optional, signalled when Fit begins
	release  chan struct{}
	fitErr   error
	mu       sync.Mutex
	installs int
}

func (f *blockingForecaster) Fit([]models.DailySeriesRow) (domsvc.TrainedModels, error) {
	if f.started != nil {
		select {
		case f.started <- struct{}{}:
		default:
		}
	}
	if f.release != nil {
		<-f.release
	}
	if f.fitErr != nil {
		return nil, f.fitErr
	}
	return stubModels{models.TrainingSummary{RunID: "run-1"}}, nil
}

func (f *blockingForecaster) Install(domsvc.TrainedModels) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.installs++
	return nil
}

func (f *blockingForecaster) installCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.installs
}

func (f *blockingForecaster) Trained() bool { return f.installCount() > 0 }

func (f *blockingForecaster) PredictFutureRisk([]models.DailySeriesRow, int) (models.RiskPrediction, error) {
	return models.RiskPrediction{}, models.ErrModelNotTrained
}

func (f *blockingForecaster) GenerateRiskForecast([]models.DailySeriesRow, int) (models.ForecastReport, error) {
	return models.ForecastReport{}, models.ErrModelNotTrained
}

type trainingOutcomes struct {
	mu       sync.Mutex
	outcomes []string
}

func (m *trainingOutcomes) RecordTraining(outcome string, _ float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes = append(m.outcomes, outcome)
}

func (m *trainingOutcomes) list() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.outcomes...)
}

// countingMetrics implements domrepo.Metrics.
type countingMetrics struct {
	mu     sync.Mutex
	sent   map[string]int
	errors map[string]int
	risks  []float64
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{sent: map[string]int{}, errors: map[string]int{}}
}

func (m *countingMetrics) RecordMessageSent(backend string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent[backend]++
}

func (m *countingMetrics) RecordError(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[kind]++
}

func (m *countingMetrics) RecordLatency(string, float64) {}

func (m *countingMetrics) RecordRiskScore(score float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.risks = append(m.risks, score)
}

// memStorage implements domrepo.Storage and domrepo.Publisher.
type memStorage struct {
	mu     sync.Mutex
	stored []*models.TransactionRecord
	err    error
	closed bool
}

func (s *memStorage) Health(context.Context) error { return nil }

func (s *memStorage) Store(ctx context.Context, t *models.TransactionRecord) error {
	return s.StoreBatch(ctx, []*models.TransactionRecord{t})
}

func (s *memStorage) StoreBatch(_ context.Context, txs []*models.TransactionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.stored = append(s.stored, txs...)
	return nil
}

func (s *memStorage) Publish(ctx context.Context, t *models.TransactionRecord) error {
	return s.Store(ctx, t)
}

func (s *memStorage) PublishBatch(ctx context.Context, txs []*models.TransactionRecord) error {
	return s.StoreBatch(ctx, txs)
}

func (s *memStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *memStorage) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.stored)
}

func nopLogger() *applogger.Logger { return applogger.Nop() }
