package configs

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Analogium/PriceWatch/internal/constants"
	"github.com/Analogium/PriceWatch/internal/core/domain"
	"github.com/joho/godotenv"
)

type DBConfig struct {
	URL      string
	MaxConns int
}

type RedisConfig struct {
	URL      string
	Addr     string
	Password string
	DB       int
}

type RabbitMQConfig struct {
	URL string
	// Включает потребителя очереди запросов на проверку товара
	ConsumerEnabled bool
	PrefetchCount   int
}

type RestConfig struct {
	Port string
}

type StdoutLogConfig struct {
	Level  string
	IsJSON bool
}

type FluentBitConfig struct {
	Host    string
	Port    int
	Enabled bool
	Level   string
}

type ScraperConfig struct {
	MaxRetries             int
	RetryBaseDelay         time.Duration
	ForbiddenBackoffFactor float64
	RequestTimeout         time.Duration
	// Запросов в секунду к одному сайту, 0 - без ограничения
	SiteRateLimit float64
	// Одновременных запросов к одному хосту
	SiteParallelism int
	// Верхняя граница случайной паузы после запроса к хосту
	RandomDelay     time.Duration
	BrowserFallback bool
	UseFullHeaders  bool
}

type SchedulerConfig struct {
	Enabled        bool
	Buckets        []int
	BatchSize      int
	WorkerPoolSize int
}

type CacheConfig struct {
	Enabled bool
	TTL     time.Duration
	// redis или memory
	Backend string
}

type CircuitBreakerConfig struct {
	Enabled          bool
	FailureThreshold int
	RecoveryTimeout  time.Duration
	SuccessThreshold int
	SiteThresholds   map[domain.SiteTag]domain.SiteThreshold
	// redis или memory
	Backend string
}

type ProxyConfig struct {
	Enabled bool
	List    []string
	Random  bool
}

type BrowserConfig struct {
	Bin      string
	Headless bool
	MaxPages int
	Timeout  time.Duration
	Attempts int
}

// AppConfig хранит всю конфигурацию приложения
type AppConfig struct {
	AppName        string
	Database       DBConfig
	Redis          RedisConfig
	RabbitMQ       RabbitMQConfig
	Rest           RestConfig
	FluentBit      FluentBitConfig
	StdoutLogger   StdoutLogConfig
	Scraper        ScraperConfig
	Scheduler      SchedulerConfig
	Cache          CacheConfig
	CircuitBreaker CircuitBreakerConfig
	Proxy          ProxyConfig
	Browser        BrowserConfig
}

// LoadConfig загружает конфигурацию из переменных окружения.
// Файл .env необязателен: в контейнере переменные приходят из окружения.
func LoadConfig(envPath ...string) (*AppConfig, error) {
	var err error
	if len(envPath) > 0 && envPath[0] != "" {
		err = godotenv.Load(envPath[0])
		if err != nil {
			return nil, fmt.Errorf("could not load .env file (path: %v): %w", envPath[0], err)
		}
	} else if err = godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("Info: Could not load .env file: %v.\n", err)
	}

	cfg := &AppConfig{}
	cfg.AppName = getEnvAsString("APP_NAME", "pricewatch")

	cfg.Database.URL = os.Getenv("DATABASE_URL")
	if cfg.Database.URL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is required")
	}
	cfg.Database.MaxConns = getEnvAsInt("DATABASE_MAX_CONNS", 0)

	cfg.Redis.URL = getEnvAsString("REDIS_URL", "")
	cfg.Redis.Addr = getEnvAsString("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnvAsString("REDIS_PASSWORD", "")
	cfg.Redis.DB = getEnvAsInt("REDIS_DB", 0)

	cfg.RabbitMQ.URL = os.Getenv("RABBITMQ_URL")
	if cfg.RabbitMQ.URL == "" {
		return nil, fmt.Errorf("RABBITMQ_URL environment variable is required")
	}
	cfg.RabbitMQ.ConsumerEnabled = getEnvAsBool("RABBITMQ_CONSUMER_ENABLED", true)
	cfg.RabbitMQ.PrefetchCount = getEnvAsInt("RABBITMQ_PREFETCH_COUNT", 5)

	cfg.Rest.Port = getEnvAsString("REST_PORT", "8080")

	cfg.FluentBit.Enabled = getEnvAsBool("FLUENTBIT_ENABLED", false)
	if cfg.FluentBit.Enabled {
		cfg.FluentBit.Host = os.Getenv("FLUENTBIT_HOST")
		if cfg.FluentBit.Host == "" {
			log.Println("WARNING: FLUENTBIT_ENABLED is true, but FLUENTBIT_HOST is not set. Disabling Fluent Bit.")
			cfg.FluentBit.Enabled = false
		}
		cfg.FluentBit.Port = getEnvAsInt("FLUENTBIT_PORT", 24224)
		cfg.FluentBit.Level = getEnvAsString("FLUENTBIT_LOG_LEVEL", "info")
	}

	cfg.StdoutLogger.Level = getEnvAsString("STDOUT_LOG_LEVEL", "debug")
	cfg.StdoutLogger.IsJSON = getEnvAsBool("STDOUT_LOG_JSON", false)

	cfg.Scraper.MaxRetries = getEnvAsInt("SCRAPER_MAX_RETRIES", constants.DefaultMaxRetries)
	cfg.Scraper.RetryBaseDelay = getEnvAsDuration("SCRAPER_RETRY_DELAY", constants.DefaultRetryBaseDelay)
	cfg.Scraper.ForbiddenBackoffFactor = getEnvAsFloat("SCRAPER_FORBIDDEN_BACKOFF_FACTOR", constants.DefaultForbiddenBackoffFactor)
	cfg.Scraper.RequestTimeout = getEnvAsDuration("SCRAPER_REQUEST_TIMEOUT", constants.DefaultRequestTimeout)
	cfg.Scraper.SiteRateLimit = getEnvAsFloat("SCRAPER_SITE_RATE_LIMIT", 1)
	cfg.Scraper.SiteParallelism = getEnvAsInt("SCRAPER_SITE_PARALLELISM", 2)
	cfg.Scraper.RandomDelay = getEnvAsDuration("SCRAPER_RANDOM_DELAY", 0)
	cfg.Scraper.BrowserFallback = getEnvAsBool("SCRAPER_BROWSER_FALLBACK", true)
	cfg.Scraper.UseFullHeaders = getEnvAsBool("SCRAPER_FULL_HEADERS", true)
	if cfg.Scraper.MaxRetries < 1 {
		return nil, fmt.Errorf("SCRAPER_MAX_RETRIES must be at least 1, got %d", cfg.Scraper.MaxRetries)
	}

	cfg.Scheduler.Enabled = getEnvAsBool("SCHEDULER_ENABLED", true)
	cfg.Scheduler.BatchSize = getEnvAsInt("SCRAPING_BATCH_SIZE", constants.DefaultBatchSize)
	cfg.Scheduler.WorkerPoolSize = getEnvAsInt("SCRAPING_MAX_WORKERS", constants.DefaultWorkerPoolSize)
	buckets, err := parseBuckets(getEnvAsList("SCHEDULER_BUCKETS", nil))
	if err != nil {
		return nil, err
	}
	if len(buckets) == 0 {
		buckets = append(buckets, constants.DefaultBuckets...)
	}
	cfg.Scheduler.Buckets = buckets
	if cfg.Scheduler.BatchSize < 1 || cfg.Scheduler.WorkerPoolSize < 1 {
		return nil, fmt.Errorf("SCRAPING_BATCH_SIZE and SCRAPING_MAX_WORKERS must be positive")
	}

	cfg.Cache.Enabled = getEnvAsBool("CACHE_ENABLED", true)
	cfg.Cache.TTL = getEnvAsDuration("CACHE_TTL", constants.DefaultCacheTTL)
	cfg.Cache.Backend = getEnvAsString("CACHE_BACKEND", "redis")

	cfg.CircuitBreaker.Enabled = getEnvAsBool("CIRCUIT_BREAKER_ENABLED", true)
	cfg.CircuitBreaker.FailureThreshold = getEnvAsInt("CIRCUIT_FAILURE_THRESHOLD", constants.DefaultFailureThreshold)
	cfg.CircuitBreaker.RecoveryTimeout = getEnvAsDuration("CIRCUIT_RECOVERY_TIMEOUT", constants.DefaultRecoveryTimeout)
	cfg.CircuitBreaker.SuccessThreshold = getEnvAsInt("CIRCUIT_SUCCESS_THRESHOLD", constants.DefaultSuccessThreshold)
	cfg.CircuitBreaker.Backend = getEnvAsString("CIRCUIT_BACKEND", "redis")
	thresholds, err := ParseSiteThresholds(getEnvAsString("CIRCUIT_SITE_THRESHOLDS", "amazon:10:120,cdiscount:8:90"))
	if err != nil {
		return nil, err
	}
	cfg.CircuitBreaker.SiteThresholds = thresholds

	cfg.Proxy.Enabled = getEnvAsBool("PROXY_ROTATION_ENABLED", false)
	cfg.Proxy.List = getEnvAsList("PROXY_LIST", nil)
	cfg.Proxy.Random = getEnvAsBool("PROXY_RANDOM", false)

	cfg.Browser.Bin = getEnvAsString("BROWSER_BIN", "")
	cfg.Browser.Headless = getEnvAsBool("BROWSER_HEADLESS", true)
	cfg.Browser.MaxPages = getEnvAsInt("BROWSER_MAX_PAGES", 2)
	cfg.Browser.Timeout = getEnvAsDuration("BROWSER_TIMEOUT", 30*time.Second)
	cfg.Browser.Attempts = getEnvAsInt("BROWSER_ATTEMPTS", constants.DefaultBrowserAttempts)

	return cfg, nil
}

// ParseSiteThresholds разбирает строку вида "amazon:10:120,cdiscount:8:90",
// где второе число - время восстановления в секундах
func ParseSiteThresholds(raw string) (map[domain.SiteTag]domain.SiteThreshold, error) {
	result := make(map[domain.SiteTag]domain.SiteThreshold)
	for _, item := range strings.Split(raw, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		parts := strings.Split(item, ":")
		if len(parts) != 3 {
			return nil, fmt.Errorf("invalid circuit threshold %q: expected site:failures:seconds", item)
		}
		failures, err := strconv.Atoi(parts[1])
		if err != nil || failures < 1 {
			return nil, fmt.Errorf("invalid failure threshold in %q", item)
		}
		seconds, err := strconv.Atoi(parts[2])
		if err != nil || seconds < 1 {
			return nil, fmt.Errorf("invalid recovery timeout in %q", item)
		}
		result[domain.SiteTag(strings.ToLower(strings.TrimSpace(parts[0])))] = domain.SiteThreshold{
			FailureThreshold: failures,
			RecoveryTimeout:  time.Duration(seconds) * time.Second,
		}
	}
	return result, nil
}

func parseBuckets(values []string) ([]int, error) {
	buckets := make([]int, 0, len(values))
	for _, v := range values {
		hours, err := strconv.Atoi(v)
		if err != nil || !domain.ValidBucket(hours) {
			return nil, fmt.Errorf("invalid scheduler bucket %q: allowed values are 6, 12, 24", v)
		}
		buckets = append(buckets, hours)
	}
	return buckets, nil
}

// getEnvAsString читает переменную окружения как строку или возвращает значение по умолчанию
func getEnvAsString(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvAsInt читает переменную окружения как int.
// Если значение не разбирается, пишет предупреждение и возвращает значение по умолчанию.
func getEnvAsInt(key string, defaultValue int) int {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	valueInt, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Warning: Environment variable %s (value: %s) could not be parsed as int: %v. Using default value: %d\n", key, valueStr, err, defaultValue)
		return defaultValue
	}
	return valueInt
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		log.Printf("Warning: Environment variable %s (value: %s) could not be parsed as float: %v. Using default value: %v\n", key, valueStr, err, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valStr, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	valBool, err := strconv.ParseBool(valStr)
	if err != nil {
		log.Printf("Warning: Environment variable %s (value: %s) could not be parsed as bool: %v. Using default value: %t\n", key, valStr, err, defaultValue)
		return defaultValue
	}
	return valBool
}

// getEnvAsDuration принимает как "90s"/"2m", так и целое число секунд
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valStr, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	if seconds, err := strconv.Atoi(valStr); err == nil {
		return time.Duration(seconds) * time.Second
	}
	d, err := time.ParseDuration(valStr)
	if err != nil {
		log.Printf("Warning: Environment variable %s (value: %s) could not be parsed as duration: %v. Using default value: %s\n", key, valStr, err, defaultValue)
		return defaultValue
	}
	return d
}

func getEnvAsList(key string, defaultValue []string) []string {
	valStr, exists := os.LookupEnv(key)
	if !exists || strings.TrimSpace(valStr) == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(valStr, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
