package config

import (
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/spf13/cast"
)

type Config struct {
	API       APIConfig
	Queue     QueueConfig
	Worker    WorkerConfig
	Storage   StorageConfig
	Database  DatabaseConfig
	RateLimit RateLimitConfig
	Telemetry TelemetryConfig
	Webhook   WebhookConfig
}

type APIConfig struct {
	Addr       string
	PublicURL  string
	PresignTTL time.Duration
}

type QueueConfig struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	Name          string
}

func (q QueueConfig) RedisClientOpt() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     q.RedisAddr,
		Password: q.RedisPassword,
		DB:       q.RedisDB,
	}
}

type WorkerConfig struct {
	Concurrency      int
	MaxActiveRenders int
	LocalOutputDir   string
	MetricsAddr      string
}

// StorageConfig selects where rendered job artifacts go. Backend is "minio"
// or "local"; the local backend writes under Worker.LocalOutputDir.
type StorageConfig struct {
	Backend   string
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// DatabaseConfig.DSN empty means jobs are kept in memory.
type DatabaseConfig struct {
	DSN string
}

type RateLimitConfig struct {
	Enabled    bool
	Backend    string
	Requests   int
	Window     time.Duration
	UserHeader string
}

type TelemetryConfig struct {
	TracesExporter string
	OTLPEndpoint   string
	OTLPInsecure   bool
	SampleRatio    float64
}

type WebhookConfig struct {
	SigningSecret string
	MaxAttempts   int
	Timeout       time.Duration
}

func Load() Config {
	defaultRenderSlots := max(1, runtime.NumCPU()/2)

	return Config{
		API: APIConfig{
			Addr:       env("CHARTFLOW_API_ADDR", ":8080"),
			PublicURL:  strings.TrimRight(env("CHARTFLOW_PUBLIC_URL", "http://localhost:8080"), "/"),
			PresignTTL: envDuration("CHARTFLOW_PRESIGN_TTL", 15*time.Minute),
		},
		Queue: QueueConfig{
			RedisAddr:     env("REDIS_ADDR", "localhost:6379"),
			RedisPassword: env("REDIS_PASSWORD", ""),
			RedisDB:       envInt("REDIS_DB", 0),
			Name:          env("ASYNC_QUEUE", "default"),
		},
		Worker: WorkerConfig{
			Concurrency:      envInt("WORKER_CONCURRENCY", max(2, runtime.NumCPU())),
			MaxActiveRenders: envInt("WORKER_MAX_ACTIVE_RENDERS", defaultRenderSlots),
			LocalOutputDir:   env("WORKER_LOCAL_OUTPUT_DIR", "./.chartflow-output"),
			MetricsAddr:      env("CHARTFLOW_METRICS_ADDR", ":9091"),
		},
		Storage: StorageConfig{
			Backend:   strings.ToLower(env("STORAGE_BACKEND", "minio")),
			Endpoint:  env("MINIO_ENDPOINT", "localhost:9000"),
			AccessKey: env("MINIO_ACCESS_KEY", "minioadmin"),
			SecretKey: env("MINIO_SECRET_KEY", "minioadmin"),
			Bucket:    env("MINIO_BUCKET", "chartflow-charts"),
			UseSSL:    envBool("MINIO_USE_SSL", false),
		},
		Database: DatabaseConfig{
			DSN: env("POSTGRES_DSN", ""),
		},
		RateLimit: RateLimitConfig{
			Enabled:    envBool("RATE_LIMIT_ENABLED", false),
			Backend:    strings.ToLower(env("RATE_LIMIT_BACKEND", "memory")),
			Requests:   envInt("RATE_LIMIT_REQUESTS", 60),
			Window:     envDuration("RATE_LIMIT_WINDOW", time.Minute),
			UserHeader: env("RATE_LIMIT_USER_HEADER", "X-User-ID"),
		},
		Telemetry: TelemetryConfig{
			TracesExporter: env("OTEL_TRACES_EXPORTER", "none"),
			OTLPEndpoint:   env("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			OTLPInsecure:   envBool("OTEL_EXPORTER_OTLP_INSECURE", true),
			SampleRatio:    envFloat("OTEL_TRACES_SAMPLER_ARG", 1),
		},
		Webhook: WebhookConfig{
			SigningSecret: env("WEBHOOK_SIGNING_SECRET", ""),
			MaxAttempts:   envInt("WEBHOOK_MAX_ATTEMPTS", 3),
			Timeout:       envDuration("WEBHOOK_TIMEOUT", 10*time.Second),
		},
	}
}

func env(key, fallback string) string {
	value, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(value) == "" {
		return fallback
	}
	return strings.TrimSpace(value)
}

func envInt(key string, fallback int) int {
	value := env(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := cast.ToIntE(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envBool(key string, fallback bool) bool {
	value := env(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := cast.ToBoolE(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envFloat(key string, fallback float64) float64 {
	value := env(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := cast.ToFloat64E(value)
	if err != nil {
		return fallback
	}
	return parsed
}

// envDuration accepts Go duration strings ("90s", "1m30s") or a bare number
// of nanoseconds, as cast does.
func envDuration(key string, fallback time.Duration) time.Duration {
	value := env(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := cast.ToDurationE(value)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}
