// Package config loads service configuration from the environment.
// Invalid values fall back to defaults rather than failing startup.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the full service configuration.
type Config struct {
	Service       ServiceConfig
	STT           STTConfig
	Relay         RelayConfig
	OpenAI        OpenAIConfig
	Budget        BudgetConfig
	Kafka         KafkaConfig
	Storage       StorageConfig
	Observability ObservabilityConfig
}

// ServiceConfig identifies the service and its listen ports.
type ServiceConfig struct {
	Principal string
	HTTPPort  string
}

// STTConfig configures the upstream speech-recognition engine.
type STTConfig struct {
	Provider       string // assemblyai, google, mock
	APIKey         string
	SampleRateHz   int
	LanguageCode   string
	StartupTimeout time.Duration // max wait for the upstream handshake
	FrameQueueSize int           // frames buffered while a session is starting
	IdleTimeout    time.Duration // sessions with no audio past this are reaped
}

// RelayConfig configures the client-facing websocket relay.
type RelayConfig struct {
	KeepaliveInterval time.Duration
	WriteTimeout      time.Duration
	MaxFrameBytes     int64
}

// OpenAIConfig configures the reasoning model invoker.
type OpenAIConfig struct {
	APIKey         string
	BaseURL        string
	Model          string
	MaxAttempts    int
	AttemptTimeout time.Duration
	RetryBackoff   time.Duration
}

// BudgetConfig configures the context budget planner heuristic.
type BudgetConfig struct {
	CharsPerToken float64
	ContextWindow int
}

// KafkaConfig configures the optional event mirror.
type KafkaConfig struct {
	Enabled         bool
	Brokers         []string
	TopicTranscript string
	TopicAnalysis   string
	Principal       string
}

// StorageConfig configures the interview record store.
type StorageConfig struct {
	Path string
}

// ObservabilityConfig configures logging and the metrics server.
type ObservabilityConfig struct {
	LogLevel    string
	LogFormat   string
	MetricsAddr string
}

// Load reads configuration from the environment.
func Load() *Config {
	principal := envOrDefault("SERVICE_PRINCIPAL", "svc-interview-backend")

	return &Config{
		Service: ServiceConfig{
			Principal: principal,
			HTTPPort:  envOrDefault("HTTP_PORT", "8080"),
		},
		STT: STTConfig{
			Provider:       envOrDefault("STT_PROVIDER", "mock"),
			APIKey:         os.Getenv("ASSEMBLYAI_API_KEY"),
			SampleRateHz:   envOrDefaultInt("STT_SAMPLE_RATE_HZ", 16000),
			LanguageCode:   envOrDefault("STT_LANGUAGE_CODE", "en-US"),
			StartupTimeout: envOrDefaultDuration("STT_STARTUP_TIMEOUT", 10*time.Second),
			FrameQueueSize: envOrDefaultInt("STT_FRAME_QUEUE_SIZE", 256),
			IdleTimeout:    envOrDefaultDuration("STT_IDLE_TIMEOUT", 2*time.Minute),
		},
		Relay: RelayConfig{
			KeepaliveInterval: envOrDefaultDuration("RELAY_KEEPALIVE_INTERVAL", 50*time.Second),
			WriteTimeout:      envOrDefaultDuration("RELAY_WRITE_TIMEOUT", 10*time.Second),
			MaxFrameBytes:     int64(envOrDefaultInt("RELAY_MAX_FRAME_BYTES", 1<<20)),
		},
		OpenAI: OpenAIConfig{
			APIKey:         os.Getenv("OPENAI_API_KEY"),
			BaseURL:        envOrDefault("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			Model:          envOrDefault("OPENAI_MODEL", "gpt-4"),
			MaxAttempts:    envOrDefaultInt("OPENAI_MAX_ATTEMPTS", 3),
			AttemptTimeout: envOrDefaultDuration("OPENAI_ATTEMPT_TIMEOUT", 30*time.Second),
			RetryBackoff:   envOrDefaultDuration("OPENAI_RETRY_BACKOFF", 2*time.Second),
		},
		Budget: BudgetConfig{
			CharsPerToken: envOrDefaultFloat("BUDGET_CHARS_PER_TOKEN", 4.0),
			ContextWindow: envOrDefaultInt("BUDGET_CONTEXT_WINDOW", 8192),
		},
		Kafka: KafkaConfig{
			Enabled:         envOrDefaultBool("KAFKA_ENABLED", false),
			Brokers:         envOrDefaultSlice("KAFKA_BROKERS", nil),
			TopicTranscript: envOrDefault("KAFKA_TOPIC_TRANSCRIPT", "interview.transcript.final"),
			TopicAnalysis:   envOrDefault("KAFKA_TOPIC_ANALYSIS", "interview.analysis.completed"),
			Principal:       envOrDefault("KAFKA_PRINCIPAL", principal),
		},
		Storage: StorageConfig{
			Path: envOrDefault("STORAGE_PATH", "./data"),
		},
		Observability: ObservabilityConfig{
			LogLevel:    envOrDefault("LOG_LEVEL", "info"),
			LogFormat:   envOrDefault("LOG_FORMAT", "json"),
			MetricsAddr: envOrDefault("METRICS_ADDR", ":9090"),
		},
	}
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envOrDefaultFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			return f
		}
	}
	return def
}

func envOrDefaultBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(strings.ToLower(v)); err == nil {
			return b
		}
	}
	return def
}

func envOrDefaultDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func envOrDefaultSlice(key string, def []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				out = append(out, s)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return def
}
