package di

import (
	"context"
	"fmt"
	"time"

	"RiskPulse/internal/domain/repository"
	"RiskPulse/internal/handler/api"
	mid "RiskPulse/internal/middleware"
	internalrepo "RiskPulse/internal/repository"
	icache "RiskPulse/internal/service/cache"
	"RiskPulse/internal/service/feed"
	"RiskPulse/internal/services/analytics"
	"RiskPulse/internal/usecase"
	pkgch "RiskPulse/pkg/clickhouse"
	"RiskPulse/pkg/config"
	xhttp "RiskPulse/pkg/http"
	pkgkafka "RiskPulse/pkg/kafka"
	applogger "RiskPulse/pkg/logger"
	"RiskPulse/pkg/metrics"
	"RiskPulse/pkg/queue"
	"RiskPulse/pkg/server"

	"github.com/redis/go-redis/v9"
)

const (
	transactionsTable = "transactions"
	cachePrefix       = "riskpulse:cache:"
	localCacheTTL     = 5 * time.Second
)

// ProvideLogger creates the application logger. Warnings and errors are
// aggregated onto Log.Topic when a producer is available.
func ProvideLogger(cfg *config.Config, producer *pkgkafka.Producer) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Output:  cfg.Log.Output,
		Service: "riskpulse",
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	if producer != nil && cfg.Log.Topic != "" {
		l.AddCollector(&applogger.CollectionConfig{
			FlushInterval: cfg.Log.FlushInterval,
			MaxEntries:    cfg.Log.FlushCount,
			Topic:         cfg.Log.Topic,
			Source:        cfg.Analytics.InstanceID,
			Publisher:     producer,
		})
	}
	return l, nil
}

// ProvideClickHouseClient creates a ClickHouse client and ensures the schema.
func ProvideClickHouseClient(cfg *config.Config, l *applogger.Logger) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := client.InitSchema(ctx, internalrepo.SchemaStatements(cfg.ClickHouse.Database)); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}

	l.Info("clickhouse ready",
		applogger.String("host", cfg.ClickHouse.Host),
		applogger.String("database", cfg.ClickHouse.Database),
	)
	return client, nil
}

// ProvideKafkaProducer creates a Kafka producer, or nil when neither Kafka
// nor the kafka backend is configured.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled && cfg.Backend.Type != "kafka" {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithClientID(cfg.Analytics.InstanceID),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatching(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.BatchBytes, cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideRedisClient returns a shared Redis client, or nil when Redis is disabled.
func ProvideRedisClient(cfg *config.Config) *redis.Client {
	if !cfg.Redis.Enabled {
		return nil
	}
	return icache.NewRedisClient(icache.RedisConfig{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() *metrics.Recorder {
	return metrics.New()
}

// ProvideTransactionStorage creates the ClickHouse write side.
func ProvideTransactionStorage(chClient *pkgch.Client, cfg *config.Config) repository.Storage {
	return internalrepo.NewClickHouseStorage(chClient.DB(), cfg.ClickHouse.Database+"."+transactionsTable)
}

// ProvideTransactionPublisher creates the Kafka publisher, or nil without a producer.
func ProvideTransactionPublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.Publisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaPublisher(producer, cfg.Kafka.Topic)
}

// ProvideTransactionStore creates the ClickHouse read side used by analytics.
func ProvideTransactionStore(chClient *pkgch.Client, cfg *config.Config, l *applogger.Logger) repository.TransactionStore {
	store := internalrepo.NewCHTransactionStore(chClient, cfg.ClickHouse.Database+"."+transactionsTable, cfg.Analytics.MaxRecords)
	store.SetLogger(l)
	return store
}

// ProvideEngine creates the analytics engine.
func ProvideEngine(cfg *config.Config, l *applogger.Logger) *analytics.Engine {
	e := analytics.NewEngine(
		analytics.WithRidgeLambda(cfg.Analytics.RidgeLambda),
		analytics.WithMaxEvaluations(cfg.Analytics.MaxEvaluations),
	)
	e.SetLogger(l)
	return e
}

// ProvideRiskAnalytics creates the analytics use case.
func ProvideRiskAnalytics(
	store repository.TransactionStore,
	engine *analytics.Engine,
	cfg *config.Config,
	l *applogger.Logger,
) *usecase.RiskAnalytics {
	a := usecase.NewRiskAnalytics(store, engine, engine, analytics.NewTransactionRiskPredictor(), usecase.Lookbacks{
		Forecast:  cfg.Analytics.ForecastLookback,
		Trends:    cfg.Analytics.TrendLookback,
		Anomalies: cfg.Analytics.AnomalyLookback,
		History:   cfg.Analytics.HistoryLookback,
		Training:  cfg.Analytics.TrainLookback,
	})
	a.SetLogger(l)
	return a
}

// ProvideModelTrainer creates the background model trainer.
func ProvideModelTrainer(
	a *usecase.RiskAnalytics,
	engine *analytics.Engine,
	m *metrics.Recorder,
	cfg *config.Config,
	l *applogger.Logger,
) *usecase.ModelTrainer {
	t := usecase.NewModelTrainer(a, engine, cfg.Analytics.TrainTimeout, m)
	t.SetLogger(l)
	return t
}

// ProvideQueue creates the job dispatcher: Redis backed when Redis is
// enabled so training requests survive restarts, in-process otherwise.
func ProvideQueue(cfg *config.Config, l *applogger.Logger, rdb *redis.Client, trainer *usecase.ModelTrainer) queue.Dispatcher {
	qcfg := &queue.QueueConfig{
		Workers:    cfg.Analytics.Queue.Workers,
		RetryLimit: cfg.Analytics.Queue.RetryLimit,
		RetryDelay: cfg.Analytics.Queue.RetryDelay,
	}
	var q queue.Dispatcher
	if rdb != nil {
		// trained models live in process memory, so each instance runs its own requests
		q = queue.NewRedisQueue(l, qcfg, rdb, queue.WithKeyPrefix(queue.DefaultKeyPrefix+":"+cfg.Analytics.InstanceID))
	} else {
		q = queue.NewLocalQueue(l, qcfg)
	}
	q.RegisterJob(usecase.NewTrainJob(trainer))
	return q
}

// ProvideTrainScheduler creates the training request scheduler.
func ProvideTrainScheduler(q queue.Dispatcher) *usecase.TrainScheduler {
	return usecase.NewTrainScheduler(q)
}

// ProvideOverview creates the overview use case.
func ProvideOverview(a *usecase.RiskAnalytics) *usecase.OverviewUseCase {
	return usecase.NewOverviewUseCase(a)
}

// ProvideResponseCache layers a short-lived local cache over Redis when
// Redis is enabled.
func ProvideResponseCache(rdb *redis.Client) icache.BytesCache {
	local := icache.NewTTLCache()
	if rdb == nil {
		return local
	}
	return icache.NewLayeredCache(local, icache.NewRedisCache(rdb, cachePrefix), localCacheTTL)
}

// ProvideRiskHandler creates the risk API handler.
func ProvideRiskHandler(
	l *applogger.Logger,
	a *usecase.RiskAnalytics,
	overview *usecase.OverviewUseCase,
	trainer *usecase.ModelTrainer,
	scheduler *usecase.TrainScheduler,
	cache icache.BytesCache,
	cfg *config.Config,
) *api.RiskEchoHandler {
	h := api.NewRiskEchoHandler(l, a, overview, trainer, scheduler)
	h.SetCache(cache, api.CacheTTL{
		Trends:    cfg.Analytics.CacheTTL.Trends,
		Anomalies: cfg.Analytics.CacheTTL.Anomalies,
	})
	h.SetRateLimit(api.RateLimit{
		Capacity:   cfg.Analytics.RateLimit.Capacity,
		RefillRate: cfg.Analytics.RateLimit.RefillRate,
	})
	return h
}

// ProvideHTTPServer creates the Echo server with the risk routes.
func ProvideHTTPServer(cfg *config.Config, l *applogger.Logger, h *api.RiskEchoHandler, store repository.Storage) *xhttp.Server {
	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}
	return xhttp.NewServer([]xhttp.Handler{h},
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithMetricsPath(metricsPath),
		xhttp.WithLogger(l),
		xhttp.WithReadiness(store.Health),
	)
}

// ProvideTransactionProcessor creates the ingest processor.
func ProvideTransactionProcessor(
	pub repository.Publisher,
	store repository.Storage,
	m *metrics.Recorder,
	cfg *config.Config,
) *usecase.TransactionProcessor {
	return usecase.NewTransactionProcessor(pub, store, m, cfg.Backend.Type)
}

// ProvideTransactionCollector creates the feed collector, or nil when the
// feed is disabled.
func ProvideTransactionCollector(
	cfg *config.Config,
	l *applogger.Logger,
	processor *usecase.TransactionProcessor,
	m *metrics.Recorder,
) *usecase.TransactionCollector {
	if !cfg.Feed.Enabled {
		return nil
	}
	stream := feed.New(
		cfg.Feed.URL,
		cfg.Feed.Token,
		cfg.Feed.Channels,
		cfg.Feed.ReconnectDelay,
		cfg.Feed.PingInterval,
		l,
	)
	// Build middleware pipeline between the feed and the backend
	pipe := mid.NewRealtimePipeline(processor, m,
		mid.WithBufferSize(2000),
		mid.WithBatch(cfg.Backend.BatchSize, cfg.Backend.BatchTimeout),
	)
	c := usecase.NewTransactionCollector(stream, processor, m, pipe)
	c.SetLogger(l)
	return c
}

// ProvideKafkaConsumer creates a Kafka consumer, or nil when Kafka is disabled.
func ProvideKafkaConsumer(cfg *config.Config, l *applogger.Logger, m *metrics.Recorder) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.SetLogger(l)
	consumer.WithConsumerHook(pkgkafka.NewMetricsHook(m))
	return consumer, nil
}

// ProvideKafkaTransactionsHandler handles the transactions topic.
func ProvideKafkaTransactionsHandler(store repository.Storage, m *metrics.Recorder, cfg *config.Config) *usecase.KafkaTransactionsHandler {
	return usecase.NewKafkaTransactionsHandler(cfg.Kafka.Topic, store, m)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	srv *xhttp.Server,
	trainer *usecase.ModelTrainer,
	q queue.Dispatcher,
	processor *usecase.TransactionProcessor,
	collector *usecase.TransactionCollector,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaTransactionsHandler,
	chClient *pkgch.Client,
	rdb *redis.Client,
) *server.App {
	app := server.New(cfg, l, srv, trainer, q)
	app.SetIngest(collector, processor)
	if consumer != nil {
		app.SetConsumer(consumer, kh)
	}
	app.SetClients(chClient, rdb)
	return app
}
