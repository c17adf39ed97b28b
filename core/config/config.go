package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"kwik.app/dispatch/core/db"
)

type Config struct {
	OTel          OTelConfig
	Pipeline      PipelineConfig
	TriageLLM     LLMConfig
	Triage        TriageConfig
	Locator       LocatorConfig
	EmotionStream EmotionStreamConfig
	Env           string
	Port          string
	DashboardURL  string
	MockDataPath  string
	DB            db.Config
}

type OTelConfig struct {
	Endpoint       string
	Headers        string
	ServiceName    string
	ServiceVersion string
}

type PipelineConfig struct {
	RedisURL        string
	RedisStream     string
	RedisGroup      string
	RedisDLQStream  string
	RedisConsumer   string
	TraceHeaderName string
}

type LLMConfig struct {
	Provider  string // "openai" or "anthropic"
	APIKey    string
	BaseURL   string // Optional: for custom endpoints
	Model     string
	MaxTokens int
}

// TriageConfig bounds the single outbound extractor call made per call record.
type TriageConfig struct {
	Timeout      time.Duration
	RatePerSec   float64
	Burst        int
	ExtractorURL string // Optional: remote extraction endpoint instead of the LLM
}

type LocatorConfig struct {
	GoogleMapsAPIKey string
	BaseLatitude     float64
	BaseLongitude    float64
	Jitter           float64
}

type EmotionStreamConfig struct {
	URL      string
	APIKey   string
	ConfigID string
}

type ServiceType string

const (
	ServiceTypeServer ServiceType = "server"
	ServiceTypeWorker ServiceType = "worker"
	ServiceTypeCLI    ServiceType = "cli"
)

// Load loads configuration from environment variables.
// In development, it loads from service-specific .env files:
//   - .env.server for the API server
//   - .env.worker for the background worker
//
// Falls back to .env if service-specific file doesn't exist.
func Load(serviceType ServiceType) (Config, error) {
	if getEnv("KWIK_ENV", "development") == "development" {
		envFile := fmt.Sprintf(".env.%s", serviceType)
		if err := godotenv.Load(envFile); err != nil {
			_ = godotenv.Load(".env")
		}
	}

	cfg := Config{
		Env:          getEnv("KWIK_ENV", "development"),
		Port:         getEnv("PORT", "8080"),
		DashboardURL: getEnv("DASHBOARD_URL", "http://localhost:3000"),
		MockDataPath: getEnv("MOCK_DATA_PATH", "data/mock_calls.yaml"),
		DB: db.Config{
			DSN:      getEnv("DATABASE_URL", ""),
			MaxConns: getEnvInt32("DB_MAX_CONNS", 10),
			MinConns: getEnvInt32("DB_MIN_CONNS", 2),
		},
		OTel: OTelConfig{
			Endpoint:       getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			Headers:        getEnv("OTEL_EXPORTER_OTLP_HEADERS", ""),
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "kwik-dispatch"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "dev"),
		},
		Pipeline: PipelineConfig{
			RedisURL:        getEnv("REDIS_URL", ""),
			RedisStream:     getEnv("REDIS_STREAM", "kwik_conversations"),
			RedisGroup:      getEnv("REDIS_CONSUMER_GROUP", "kwik_group"),
			RedisDLQStream:  getEnv("REDIS_DLQ_STREAM", "kwik_conversations_dlq"),
			RedisConsumer:   getEnv("REDIS_CONSUMER_NAME", "dispatch-worker"),
			TraceHeaderName: getEnv("TRACE_HEADER_NAME", "X-Trace-Id"),
		},
		TriageLLM: LLMConfig{
			Provider:  getEnv("TRIAGE_LLM_PROVIDER", "openai"),
			APIKey:    getEnv("TRIAGE_LLM_API_KEY", ""),
			BaseURL:   getEnv("TRIAGE_LLM_BASE_URL", ""),
			Model:     getEnv("TRIAGE_LLM_MODEL", ""),
			MaxTokens: getEnvInt("TRIAGE_LLM_MAX_TOKENS", 1000),
		},
		Triage: TriageConfig{
			Timeout:      getEnvDuration("TRIAGE_TIMEOUT", 10*time.Second),
			RatePerSec:   getEnvFloat("TRIAGE_RATE_PER_SEC", 5),
			Burst:        getEnvInt("TRIAGE_BURST", 10),
			ExtractorURL: getEnv("TRIAGE_EXTRACTOR_URL", ""),
		},
		Locator: LocatorConfig{
			GoogleMapsAPIKey: getEnv("GOOGLE_MAPS_API_KEY", ""),
			BaseLatitude:     getEnvFloat("LOCATOR_BASE_LAT", 37.7749),
			BaseLongitude:    getEnvFloat("LOCATOR_BASE_LNG", -122.4194),
			Jitter:           getEnvFloat("LOCATOR_JITTER", 0.1),
		},
		EmotionStream: EmotionStreamConfig{
			URL:      getEnv("EMOTION_STREAM_URL", "wss://api.hume.ai/v0/assistant/chat"),
			APIKey:   getEnv("EMOTION_STREAM_API_KEY", ""),
			ConfigID: getEnv("EMOTION_STREAM_CONFIG_ID", ""),
		},
	}

	if serviceType == ServiceTypeWorker && !cfg.Pipeline.Enabled() {
		return Config{}, fmt.Errorf("REDIS_URL is required for the worker")
	}

	if cfg.Triage.Timeout <= 0 {
		return Config{}, fmt.Errorf("TRIAGE_TIMEOUT must be positive")
	}

	return cfg, nil
}

func (c Config) IsProduction() bool {
	return c.Env == "production"
}

func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

func (c OTelConfig) Enabled() bool {
	return c.Endpoint != ""
}

func (c PipelineConfig) Enabled() bool {
	return c.RedisURL != ""
}

func (c LLMConfig) Enabled() bool {
	return c.APIKey != "" && (c.Provider == "openai" || c.Provider == "anthropic")
}

func (c LocatorConfig) GeocodingEnabled() bool {
	return c.GoogleMapsAPIKey != ""
}

func (c EmotionStreamConfig) Enabled() bool {
	return c.URL != "" && c.APIKey != ""
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt32(key string, fallback int32) int32 {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(i)
		}
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
