package server

import (
	"context"
	"errors"
	"testing"
	"time"

	"RiskPulse/internal/domain/models"
	domrepo "RiskPulse/internal/domain/repository"
	"RiskPulse/internal/services/analytics"
	"RiskPulse/internal/usecase"
	"RiskPulse/pkg/config"
	xhttp "RiskPulse/pkg/http"
	applogger "RiskPulse/pkg/logger"
	"RiskPulse/pkg/queue"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type emptyStore struct{}

func (emptyStore) GetTransactions(context.Context, domrepo.Window) ([]models.TransactionRecord, error) {
	return nil, nil
}

func (emptyStore) GetRecentTransactions(context.Context, time.Time, int) ([]models.TransactionRecord, error) {
	return nil, nil
}

type brokenQueue struct{ queue.Dispatcher }

func (brokenQueue) Start() error { return errors.New("redis unreachable") }

func newTestApp(t *testing.T, q queue.Dispatcher) (*App, *usecase.ModelTrainer) {
	t.Helper()
	cfg := &config.Config{}
	cfg.Server.ShutdownTimeout = 2 * time.Second

	engine := analytics.NewEngine()
	ra := usecase.NewRiskAnalytics(emptyStore{}, engine, engine, analytics.NewTransactionRiskPredictor(), usecase.DefaultLookbacks())
	trainer := usecase.NewModelTrainer(ra, engine, time.Second, nil)

	srv := xhttp.NewServer(nil, xhttp.WithHost("127.0.0.1"), xhttp.WithPort(0), xhttp.WithMetricsPath(""))
	return New(cfg, applogger.Nop(), srv, trainer, q), trainer
}

func TestAppRunTrainsAndShutsDown(t *testing.T) {
	lgr := applogger.Nop()
	app, trainer := newTestApp(t, queue.NewLocalQueue(lgr, &queue.QueueConfig{Workers: 1}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.RunContext(ctx) }()

	// no stored history, so the startup training run fails and records why
	assert.Eventually(t, func() bool { return trainer.LastError() != "" }, 2*time.Second, 10*time.Millisecond)
	_, trained := trainer.LastSummary()
	assert.False(t, trained)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("app did not shut down")
	}
}

func TestAppRunFailsWhenQueueCannotStart(t *testing.T) {
	app, _ := newTestApp(t, brokenQueue{})
	err := app.RunContext(context.Background())
	assert.EqualError(t, err, "redis unreachable")
}
