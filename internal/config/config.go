package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Configはアプリ全体の設定
type Config struct {
	Port     string // サーバーポート（8080）
	GoEnv    string // dev/prod
	LogLevel string // debug/info/warn/error

	DatabaseURL      string // あればPOSTGRES_*より優先
	PostgresUser     string // DBユーザー
	PostgresPassword string // DBパスワード
	PostgresDB       string // DB名
	PostgresHost     string // DBホスト（localhost）
	PostgresPort     int    // DBポート（5432）
	PostgresSSLMode  string
	DBMaxOpenConns   int

	CacheDriver    string        // redis/memory
	CacheTTL       time.Duration // 30m
	CacheKeyPrefix string
	CacheMaxItems  int // memoryのみ
	RedisAddr      string
	RedisPassword  string
	RedisDB        int

	KafkaBrokers string // CSV。空ならpublishしない

	WebhookOrderCreatedURL   string
	WebhookOrderCancelledURL string
	WebhookTimeout           time.Duration

	InfraTimeout time.Duration // store/cache/queue 1回あたりの上限

	OutboxInterval    time.Duration
	OutboxBatch       int
	OutboxMaxAttempts int

	OtelEndpoint   string // 空ならtraceをexportしない
	ServiceName    string
	ServiceVersion string
}

// Loadは環境変数
func Load() (Config, error) {
	var errs []string
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err.Error())
		}
	}

	pgPort, err := intOr("POSTGRES_PORT", 5432)
	collect(err)
	maxConns, err := intOr("DB_MAX_OPEN_CONNS", 20)
	collect(err)
	redisDB, err := intOr("REDIS_DB", 0)
	collect(err)
	cacheMax, err := intOr("CACHE_MAX_ITEMS", 10000)
	collect(err)
	outboxBatch, err := intOr("OUTBOX_BATCH", 50)
	collect(err)
	outboxMax, err := intOr("OUTBOX_MAX_ATTEMPTS", 8)
	collect(err)

	cacheTTL, err := durationOr("CACHE_TTL", 30*time.Minute)
	collect(err)
	webhookTimeout, err := durationOr("WEBHOOK_TIMEOUT", 5*time.Second)
	collect(err)
	infraTimeout, err := durationOr("INFRA_TIMEOUT", 5*time.Second)
	collect(err)
	outboxInterval, err := durationOr("OUTBOX_INTERVAL", 10*time.Second)
	collect(err)

	if len(errs) > 0 {
		return Config{}, fmt.Errorf("invalid config: %s", strings.Join(errs, "; "))
	}

	cfg := Config{
		Port:     getenv("PORT", "8080"),
		GoEnv:    getenv("GO_ENV", "dev"),
		LogLevel: getenv("LOG_LEVEL", "info"),

		DatabaseURL:      os.Getenv("DATABASE_URL"),
		PostgresUser:     getenv("POSTGRES_USER", "postgres"),
		PostgresPassword: getenv("POSTGRES_PASSWORD", "postgres"),
		PostgresDB:       getenv("POSTGRES_DB", "orders"),
		PostgresHost:     getenv("POSTGRES_HOST", "localhost"),
		PostgresPort:     pgPort,
		PostgresSSLMode:  getenv("POSTGRES_SSLMODE", "disable"),
		DBMaxOpenConns:   maxConns,

		CacheDriver:    strings.ToLower(getenv("CACHE_DRIVER", "memory")),
		CacheTTL:       cacheTTL,
		CacheKeyPrefix: getenv("CACHE_KEY_PREFIX", "ecom:"),
		CacheMaxItems:  cacheMax,
		RedisAddr:      getenv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:  os.Getenv("REDIS_PASSWORD"),
		RedisDB:        redisDB,

		KafkaBrokers: os.Getenv("KAFKA_BROKERS"),

		WebhookOrderCreatedURL:   os.Getenv("WEBHOOK_ORDER_CREATED_URL"),
		WebhookOrderCancelledURL: os.Getenv("WEBHOOK_ORDER_CANCELLED_URL"),
		WebhookTimeout:           webhookTimeout,

		InfraTimeout: infraTimeout,

		OutboxInterval:    outboxInterval,
		OutboxBatch:       outboxBatch,
		OutboxMaxAttempts: outboxMax,

		OtelEndpoint:   os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		ServiceName:    getenv("SERVICE_NAME", "order-service"),
		ServiceVersion: getenv("SERVICE_VERSION", "dev"),
	}

	//値チェック
	switch cfg.CacheDriver {
	case "redis", "memory":
	default:
		return Config{}, fmt.Errorf("CACHE_DRIVER must be redis or memory")
	}
	if cfg.InfraTimeout <= 0 {
		return Config{}, fmt.Errorf("INFRA_TIMEOUT must be > 0")
	}
	if cfg.OutboxMaxAttempts < 1 {
		return Config{}, fmt.Errorf("OUTBOX_MAX_ATTEMPTS must be >= 1")
	}

	return cfg, nil
}

// ListenAddr は ":8080" の形
func (c Config) ListenAddr() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return ":" + c.Port
}

func (c Config) IsDev() bool {
	return c.GoEnv == "dev"
}

func getenv(key string, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func intOr(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be number: %w", key, err)
	}
	return i, nil
}

func durationOr(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be duration: %w", key, err)
	}
	return d, nil
}
