package internal

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/Analogium/PriceWatch/internal/adapters/browserfetcher"
	"github.com/Analogium/PriceWatch/internal/adapters/extractor"
	"github.com/Analogium/PriceWatch/internal/adapters/identity"
	logger_adapter "github.com/Analogium/PriceWatch/internal/adapters/logger"
	"github.com/Analogium/PriceWatch/internal/adapters/memory"
	postgres_adapter "github.com/Analogium/PriceWatch/internal/adapters/postgres"
	rabbitmq_adapter "github.com/Analogium/PriceWatch/internal/adapters/rabbitmq"
	redis_adapter "github.com/Analogium/PriceWatch/internal/adapters/redis"
	"github.com/Analogium/PriceWatch/internal/adapters/rest"
	"github.com/Analogium/PriceWatch/internal/adapters/scheduler"
	"github.com/Analogium/PriceWatch/internal/adapters/sitefetcher"
	"github.com/Analogium/PriceWatch/internal/configs"
	"github.com/Analogium/PriceWatch/internal/constants"
	"github.com/Analogium/PriceWatch/internal/core/port"
	usecases_port "github.com/Analogium/PriceWatch/internal/core/port/usecases"
	"github.com/Analogium/PriceWatch/internal/core/resilience"
	"github.com/Analogium/PriceWatch/internal/core/usecase"
	fluentlogger "github.com/Analogium/PriceWatch/pkg/fluentlogger"
	"github.com/Analogium/PriceWatch/pkg/postgres"
	"github.com/Analogium/PriceWatch/pkg/rabbitmq/rabbitmq_common"
	"github.com/Analogium/PriceWatch/pkg/rabbitmq/rabbitmq_producer"
	"github.com/Analogium/PriceWatch/pkg/redisclient"

	"github.com/fluent/fluent-logger-golang/fluent"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// Options - что поднимать помимо ядра. Разовые команды CLI слушателей не запускают.
type Options struct {
	EnvPath       string
	WithListeners bool
}

// App – структура приложения
type App struct {
	config        *configs.AppConfig
	dbPool        *pgxpool.Pool
	redisClient   *redis.Client
	connManager   *rabbitmq_common.ConnectionManager
	eventProducer *rabbitmq_producer.Publisher
	fluentClient  *fluent.Fluent
	browser       port.BrowserScraperPort
	logger        port.LoggerPort

	checkBucketUC  usecases_port.CheckBucketPort
	checkProductUC usecases_port.CheckProductPort
	maintenanceUC  usecases_port.MaintenancePort
	historyUC      usecases_port.PriceHistoryPort

	restServer *rest.Server
	// Входящие порты
	schedulerListener     port.EventListenerPort
	checkRequestsListener port.EventListenerPort
}

// NewApp создает новый экземпляр приложения.
// Это "Composition Root", где все зависимости создаются и связываются.
func NewApp(opts Options) (*App, error) {
	appConfig, err := configs.LoadConfig(opts.EnvPath)
	if err != nil {
		return nil, fmt.Errorf("error loading application configuration: %w", err)
	}

	// --- 1. ЛОГГЕРЫ ---
	var activeLoggers []port.LoggerPort

	stdoutLogger := logger_adapter.NewSlogAdapter(logger_adapter.SlogConfig{
		Level:    parseLogLevel(appConfig.StdoutLogger.Level),
		IsJSON:   appConfig.StdoutLogger.IsJSON,
		UseColor: !appConfig.StdoutLogger.IsJSON,
	})
	activeLoggers = append(activeLoggers, stdoutLogger)

	var fluentClient *fluent.Fluent
	if appConfig.FluentBit.Enabled {
		fluentClient, err = fluentlogger.NewClient(fluentlogger.Config{
			Host:      appConfig.FluentBit.Host,
			Port:      appConfig.FluentBit.Port,
			TagPrefix: appConfig.AppName,
		})
		if err != nil {
			stdoutLogger.Error("Failed to create fluentbit client", err, nil)
			return nil, fmt.Errorf("failed to create fluentbit client: %w", err)
		}

		fluentAdapter, err := logger_adapter.NewFluentLoggerAdapter(fluentClient, parseLogLevel(appConfig.FluentBit.Level))
		if err != nil {
			stdoutLogger.Error("Failed to create fluentbit adapter", err, nil)
			fluentClient.Close()
			return nil, err
		}
		activeLoggers = append(activeLoggers, fluentAdapter)
	}

	multiLogger, err := logger_adapter.NewMultiloggerAdapter(activeLoggers...)
	if err != nil {
		return nil, fmt.Errorf("failed to create multi-logger: %w", err)
	}

	baseLogger := multiLogger.WithFields(port.Fields{"service_name": appConfig.AppName})
	appLogger := baseLogger.WithFields(port.Fields{"component": "app"})
	appLogger.Info("Logger system initialized", port.Fields{
		"active_loggers": len(activeLoggers), "fluent_enabled": appConfig.FluentBit.Enabled,
	})

	application := &App{
		config:       appConfig,
		fluentClient: fluentClient,
		logger:       appLogger,
	}
	// при ошибке сборки закрываем то, что уже успели открыть
	ok := false
	defer func() {
		if !ok {
			application.closeResources()
			if fluentClient != nil {
				fluentClient.Close()
			}
		}
	}()

	// --- 2. ИНФРАСТРУКТУРА ---
	application.dbPool, err = postgres.NewClient(context.Background(), postgres.Config{
		DatabaseURL: appConfig.Database.URL,
		MaxConns:    int32(appConfig.Database.MaxConns),
	})
	if err != nil {
		appLogger.Error("Failed to connect to PostgreSQL", err, nil)
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	appLogger.Info("Successfully connected to PostgreSQL pool!", nil)

	needRedis := (appConfig.Cache.Enabled && appConfig.Cache.Backend == "redis") ||
		(appConfig.CircuitBreaker.Enabled && appConfig.CircuitBreaker.Backend == "redis")
	if needRedis {
		application.redisClient, err = redisclient.NewClient(context.Background(), redisclient.Config{
			URL:      appConfig.Redis.URL,
			Addr:     appConfig.Redis.Addr,
			Password: appConfig.Redis.Password,
			DB:       appConfig.Redis.DB,
		})
		if err != nil {
			appLogger.Error("Failed to connect to Redis", err, nil)
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		appLogger.Info("Successfully connected to Redis!", nil)
	}

	connManagerBridge := rabbitmq_adapter.NewPkgLoggerBridge(baseLogger.WithFields(port.Fields{"component": "rabbitmq_conn_manager"}))
	application.connManager, err = rabbitmq_common.GetManager(appConfig.RabbitMQ.URL, connManagerBridge)
	if err != nil {
		appLogger.Error("Failed to create connection manager", err, nil)
		return nil, fmt.Errorf("failed to create connection manager: %w", err)
	}
	appLogger.Info("RabbitMQ Connection Manager initialized.", nil)

	application.eventProducer, err = rabbitmq_producer.NewPublisher(rabbitmq_producer.PublisherConfig{
		Config:                   rabbitmq_common.Config{URL: appConfig.RabbitMQ.URL},
		ExchangeName:             constants.ExchangeNotifications,
		ExchangeType:             "topic",
		DurableExchange:          true,
		DeclareExchangeIfMissing: true,
		Logger:                   rabbitmq_adapter.NewPkgLoggerBridge(baseLogger.WithFields(port.Fields{"component": "rabbitmq_producer"})),
	}, application.connManager)
	if err != nil {
		appLogger.Error("Failed to create RabbitMQ producer", err, nil)
		return nil, fmt.Errorf("failed to create RabbitMQ producer: %w", err)
	}

	// --- 3. АДАПТЕРЫ ---
	productRepo, err := postgres_adapter.NewPostgresProductRepository(application.dbPool)
	if err != nil {
		return nil, err
	}
	historyRepo, err := postgres_adapter.NewPostgresPriceHistoryRepository(application.dbPool)
	if err != nil {
		return nil, err
	}
	statsRepo, err := postgres_adapter.NewPostgresScrapingStatsRepository(application.dbPool)
	if err != nil {
		return nil, err
	}

	alertPublisher, err := rabbitmq_adapter.NewPriceAlertPublisher(application.eventProducer, constants.RoutingKeyPriceAlert)
	if err != nil {
		return nil, err
	}

	identities := identity.NewRotator(identity.Config{
		ProxyEnabled: appConfig.Proxy.Enabled,
		Proxies:      appConfig.Proxy.List,
		RandomProxy:  appConfig.Proxy.Random,
	})

	registry := extractor.NewRegistry()
	fetcher, err := sitefetcher.NewAdapter(sitefetcher.Config{
		RequestTimeout: appConfig.Scraper.RequestTimeout,
		Parallelism:    appConfig.Scraper.SiteParallelism,
		RandomDelay:    appConfig.Scraper.RandomDelay,
		RatePerSecond:  appConfig.Scraper.SiteRateLimit,
	}, registry, identities)
	if err != nil {
		return nil, fmt.Errorf("failed to create site fetcher: %w", err)
	}

	deps := usecase.ScrapeDeps{
		Detector:   extractor.Detector{},
		Fetcher:    fetcher,
		Identities: identities,
		Stats:      statsRepo,
	}

	if appConfig.Scraper.BrowserFallback {
		browserCfg := browserfetcher.Config{
			Bin:         appConfig.Browser.Bin,
			Headless:    appConfig.Browser.Headless,
			MaxPages:    appConfig.Browser.MaxPages,
			PageTimeout: appConfig.Browser.Timeout,
			Attempts:    appConfig.Browser.Attempts,
		}
		if appConfig.Proxy.Enabled && len(appConfig.Proxy.List) > 0 {
			browserCfg.Proxy = appConfig.Proxy.List[0]
		}
		browser, err := browserfetcher.NewAdapter(browserCfg, registry)
		if err != nil {
			return nil, fmt.Errorf("failed to create browser fetcher: %w", err)
		}
		application.browser = browser
		deps.Browser = browser
	}

	// интерфейсные поля заполняются только реальными значениями: typed nil сломал бы проверки на nil
	var breaker port.CircuitBreakerPort
	if appConfig.CircuitBreaker.Enabled {
		var store port.CircuitStorePort
		if appConfig.CircuitBreaker.Backend == "redis" {
			store = redis_adapter.NewCircuitStoreAdapter(application.redisClient)
		} else {
			store = memory.NewCircuitStore()
		}
		breaker = resilience.NewCircuitBreaker(store, resilience.BreakerConfig{
			FailureThreshold: appConfig.CircuitBreaker.FailureThreshold,
			RecoveryTimeout:  appConfig.CircuitBreaker.RecoveryTimeout,
			SuccessThreshold: appConfig.CircuitBreaker.SuccessThreshold,
			SiteThresholds:   appConfig.CircuitBreaker.SiteThresholds,
		}, baseLogger.WithFields(port.Fields{"component": "CircuitBreaker"}))
		deps.Breaker = breaker
	}

	var cache port.ResultCachePort
	if appConfig.Cache.Enabled {
		if appConfig.Cache.Backend == "redis" {
			cache = redis_adapter.NewResultCacheAdapter(application.redisClient, appConfig.Cache.TTL)
		} else {
			cache = memory.NewResultCache(appConfig.Cache.TTL)
		}
		deps.Cache = cache
	}
	appLogger.Info("Scrape pipeline assembled", port.Fields{
		"breaker_enabled":  appConfig.CircuitBreaker.Enabled,
		"breaker_backend":  appConfig.CircuitBreaker.Backend,
		"cache_enabled":    appConfig.Cache.Enabled,
		"cache_backend":    appConfig.Cache.Backend,
		"browser_fallback": appConfig.Scraper.BrowserFallback,
		"proxy_enabled":    appConfig.Proxy.Enabled,
	})

	// --- 4. USE CASES ---
	retry := resilience.NewRetryPolicy(
		appConfig.Scraper.MaxRetries,
		appConfig.Scraper.RetryBaseDelay,
		appConfig.Scraper.ForbiddenBackoffFactor,
	)
	scrapeUC := usecase.NewScrapeProductUseCase(deps, retry, usecase.ScrapeConfig{
		CacheTTL:       appConfig.Cache.TTL,
		UseFullHeaders: appConfig.Scraper.UseFullHeaders,
	})
	applyUC := usecase.NewApplyResultUseCase(productRepo, historyRepo, alertPublisher)
	application.checkBucketUC = usecase.NewCheckBucketUseCase(productRepo, statsRepo, extractor.Detector{}, scrapeUC, applyUC, usecase.BatchConfig{
		BatchSize:      appConfig.Scheduler.BatchSize,
		WorkerPoolSize: appConfig.Scheduler.WorkerPoolSize,
	})
	application.checkProductUC = usecase.NewCheckProductUseCase(productRepo, scrapeUC, applyUC)
	application.maintenanceUC = usecase.NewMaintenanceUseCase(breaker, cache)
	application.historyUC = usecase.NewPriceHistoryUseCase(historyRepo)

	// --- 5. ВХОДЯЩИЕ АДАПТЕРЫ ---
	if opts.WithListeners {
		handlers := rest.NewAdminHandler(application.checkProductUC, application.checkBucketUC, application.historyUC, application.maintenanceUC)
		application.restServer = rest.NewServer(appConfig.Rest.Port, handlers, baseLogger.WithFields(port.Fields{"component": "rest_server"}))

		if appConfig.Scheduler.Enabled {
			application.schedulerListener, err = scheduler.NewTickerScheduler(application.checkBucketUC, appConfig.Scheduler.Buckets, baseLogger)
			if err != nil {
				return nil, err
			}
		}

		if appConfig.RabbitMQ.ConsumerEnabled {
			consumerCfg := rabbitmq_adapter.CheckRequestConsumerConfig(appConfig.RabbitMQ.URL, appConfig.RabbitMQ.PrefetchCount)
			application.checkRequestsListener, err = rabbitmq_adapter.NewCheckRequestConsumer(
				consumerCfg, application.checkProductUC, baseLogger.WithFields(port.Fields{"component": "CheckRequestConsumer"}), application.connManager,
			)
			if err != nil {
				appLogger.Error("Failed to create check requests listener", err, nil)
				return nil, err
			}
			appLogger.Info("Check Requests Listener initialized.", nil)
		}
	}

	ok = true
	return application, nil
}

func (a *App) Logger() port.LoggerPort { return a.logger }
func (a *App) CheckBucket() usecases_port.CheckBucketPort { return a.checkBucketUC }
func (a *App) CheckProduct() usecases_port.CheckProductPort { return a.checkProductUC }
func (a *App) Maintenance() usecases_port.MaintenancePort { return a.maintenanceUC }
func (a *App) PriceHistory() usecases_port.PriceHistoryPort { return a.historyUC }

// Run запускает все компоненты приложения и управляет их жизненным циклом
func (a *App) Run() error {
	appCtx, cancelApp := context.WithCancel(context.Background())
	defer cancelApp()

	var wg sync.WaitGroup

	defer func() {
		a.logger.Info("Shutdown sequence initiated...", nil)

		if a.restServer != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			if err := a.restServer.Stop(shutdownCtx); err != nil {
				a.logger.Error("Error stopping REST server", err, nil)
			}
			cancel()
		}

		a.logger.Info("Waiting for background processes to finish...", nil)
		wg.Wait()
		a.logger.Info("All background processes finished.", nil)

		a.Close()
	}()

	a.logger.Info("Application is starting...", nil)

	componentErrors := make(chan error, 3)

	startListener := func(name string, listener port.EventListenerPort) {
		defer wg.Done()
		listenerLogger := a.logger.WithFields(port.Fields{"listener_name": name})
		listenerLogger.Info("Starting listener...", nil)

		if err := listener.Start(appCtx); err != nil {
			listenerLogger.Error("Listener stopped with an unexpected error", err, nil)
			componentErrors <- fmt.Errorf("%s error: %w", name, err)
		} else {
			listenerLogger.Info("Listener stopped gracefully due to context cancellation.", nil)
		}
	}

	if a.schedulerListener != nil {
		wg.Add(1)
		go startListener("Bucket Scheduler", a.schedulerListener)
	}
	if a.checkRequestsListener != nil {
		wg.Add(1)
		go startListener("Check Requests Listener", a.checkRequestsListener)
	}
	if a.restServer != nil {
		go func() {
			if err := a.restServer.Start(); err != nil {
				componentErrors <- err
			}
		}()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	a.logger.Info("Application running. Waiting for signals or component error...", nil)
	select {
	case receivedSignal := <-quit:
		a.logger.Warn("Received signal, shutting down", port.Fields{"signal": receivedSignal.String()})
	case err := <-componentErrors:
		a.logger.Error("A critical component failed, shutting down", err, nil)
	case <-appCtx.Done():
		a.logger.Warn("Context was cancelled unexpectedly, shutting down", nil)
	}

	cancelApp()
	return nil
}

// Close закрывает слушателей и освобождает ресурсы. Нужен и для разовых команд CLI.
func (a *App) Close() {
	if a.schedulerListener != nil {
		if err := a.schedulerListener.Close(); err != nil {
			a.logger.Error("Error closing scheduler", err, nil)
		}
	}
	if a.checkRequestsListener != nil {
		if err := a.checkRequestsListener.Close(); err != nil {
			a.logger.Error("Error closing check requests listener", err, nil)
		}
	}
	a.closeResources()
	a.logger.Info("Application shut down gracefully.", nil)

	if a.fluentClient != nil {
		if err := a.fluentClient.Close(); err != nil {
			log.Printf("App: Error closing fluent client: %v\n", err)
		}
		a.fluentClient = nil
	}
}

func (a *App) closeResources() {
	if a.browser != nil {
		if err := a.browser.Close(); err != nil {
			a.logger.Error("Error closing browser", err, nil)
		}
		a.browser = nil
	}
	if a.eventProducer != nil {
		if err := a.eventProducer.Close(); err != nil {
			a.logger.Error("Error closing event producer", err, nil)
		}
		a.eventProducer = nil
	}
	if a.connManager != nil {
		if err := a.connManager.Close(); err != nil {
			a.logger.Error("Error closing RabbitMQ connection manager", err, nil)
		}
		a.connManager = nil
	}
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Error("Error closing Redis client", err, nil)
		}
		a.redisClient = nil
	}
	if a.dbPool != nil {
		a.dbPool.Close()
		a.logger.Info("PostgreSQL pool closed.", nil)
		a.dbPool = nil
	}
}

func parseLogLevel(levelStr string) slog.Level {
	switch strings.ToLower(levelStr) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		log.Printf("Warning: Unknown log level '%s'. Defaulting to 'info'.", levelStr)
		return slog.LevelInfo
	}
}
