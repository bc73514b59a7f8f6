package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"RiskPulse/internal/usecase"
	pkgch "RiskPulse/pkg/clickhouse"
	"RiskPulse/pkg/config"
	xhttp "RiskPulse/pkg/http"
	pkgkafka "RiskPulse/pkg/kafka"
	applogger "RiskPulse/pkg/logger"
	"RiskPulse/pkg/queue"

	"github.com/redis/go-redis/v9"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	logger     *applogger.Logger
	httpServer *xhttp.Server
	trainer    *usecase.ModelTrainer
	queue      queue.Dispatcher

	// optional, nil when disabled in config
	collector *usecase.TransactionCollector
	consumer  *pkgkafka.Consumer
	kh        pkgkafka.MessageHandler
	chClient  *pkgch.Client
	processor *usecase.TransactionProcessor
	redis     *redis.Client
}

// New creates a new App instance with the always-on services.
func New(
	cfg *config.Config,
	logger *applogger.Logger,
	httpServer *xhttp.Server,
	trainer *usecase.ModelTrainer,
	q queue.Dispatcher,
) *App {
	return &App{
		cfg:        cfg,
		logger:     logger,
		httpServer: httpServer,
		trainer:    trainer,
		queue:      q,
	}
}

// SetIngest attaches the feed collector and the processor behind it.
func (a *App) SetIngest(collector *usecase.TransactionCollector, processor *usecase.TransactionProcessor) {
	a.collector = collector
	a.processor = processor
}

// SetConsumer attaches a Kafka consumer and the handler it dispatches to.
func (a *App) SetConsumer(consumer *pkgkafka.Consumer, kh pkgkafka.MessageHandler) {
	a.consumer = consumer
	a.kh = kh
}

// SetClients hands infrastructure clients to the app so they are closed on shutdown.
func (a *App) SetClients(ch *pkgch.Client, rdb *redis.Client) {
	a.chClient = ch
	a.redis = rdb
}

// Run starts the application and blocks until SIGINT or SIGTERM.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.RunContext(ctx)
}

// RunContext starts every service and blocks until ctx is done, then shuts down.
func (a *App) RunContext(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := a.queue.Start(); err != nil {
		a.logger.Error("queue start error", applogger.Error(err))
		return err
	}

	go a.trainer.Run(runCtx, a.cfg.Analytics.RetrainInterval)
	a.logger.Info("model trainer started", applogger.Duration("retrain_interval_ms", a.cfg.Analytics.RetrainInterval))

	if a.collector != nil {
		if err := a.collector.Start(runCtx); err != nil {
			// the feed is optional; analytics keep serving stored history
			a.logger.Error("collector start error", applogger.Error(err))
		} else {
			a.logger.Info("collector started", applogger.Strings("channels", a.cfg.Feed.Channels))
		}
	}

	if a.consumer != nil && a.kh != nil {
		a.consumer.RegisterHandler(a.kh)
		if err := a.consumer.Start(runCtx); err != nil {
			a.logger.Error("kafka consumer error", applogger.Error(err))
		} else {
			a.logger.Info("kafka consumer started", applogger.String("topic", a.kh.Topic()))
		}
	}

	if err := a.httpServer.Start(); err != nil {
		a.logger.Error("http server start error", applogger.Error(err))
		return err
	}

	<-ctx.Done()
	a.logger.Info("shutdown signal received")
	cancel()
	return a.shutdown()
}

// shutdown gracefully stops all services.
func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	a.logger.Info("shutting down...")

	if a.collector != nil {
		if err := a.collector.Shutdown(ctx); err != nil {
			a.logger.Warn("collector stop error", applogger.Error(err))
		}
	}

	if err := a.httpServer.Stop(ctx); err != nil {
		a.logger.Error("http shutdown error", applogger.Error(err))
	}

	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			a.logger.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	if err := a.queue.Stop(ctx); err != nil {
		a.logger.Warn("queue stop error", applogger.Error(err))
	}

	// pending error aggregates go out through the producer, so flush them first
	a.logger.RemoveCollector()

	if a.processor != nil {
		a.processor.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("redis close error", applogger.Error(err))
		}
	}
	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			a.logger.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	a.logger.Info("shutdown complete", applogger.Time("at", time.Now()))
	return nil
}
