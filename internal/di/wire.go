//go:build wireinject
// +build wireinject

package di

import (
	"RiskPulse/pkg/config"
	"RiskPulse/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Infrastructure clients
		ProvideKafkaProducer,
		ProvideLogger,
		ProvideClickHouseClient,
		ProvideRedisClient,
		ProvideMetrics,

		// Repositories
		ProvideTransactionStorage,
		ProvideTransactionPublisher,
		ProvideTransactionStore,

		// Analytics
		ProvideEngine,
		ProvideRiskAnalytics,
		ProvideModelTrainer,
		ProvideQueue,
		ProvideTrainScheduler,
		ProvideOverview,

		// HTTP
		ProvideResponseCache,
		ProvideRiskHandler,
		ProvideHTTPServer,

		// Ingest
		ProvideTransactionProcessor,
		ProvideTransactionCollector,
		ProvideKafkaConsumer,
		ProvideKafkaTransactionsHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
