// Package config loads the world engine's configuration from a YAML file
// overlaid with environment variables, mirroring the teacher's
// internal/config package shape: one typed struct per concern, defaults
// applied in Load.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type ServiceConfig struct {
	HTTPAddr string `yaml:"http_addr"`
}

type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogPath string `yaml:"log_path"`
}

type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Endpoint    string `yaml:"endpoint"`
	ServiceName string `yaml:"service_name"`
}

type StoreConfig struct {
	Driver     string `yaml:"driver"` // "postgres" | "memory"
	DSN        string `yaml:"dsn"`
	MaxConns   int32  `yaml:"max_conns"`
}

type LLMGatewayConfig struct {
	Provider           string        `yaml:"provider"` // "openai" | "anthropic" | "gemini"; cmd/worldd always wires the OpenAI driver and does not read this field
	EmbeddingModel     string        `yaml:"embedding_model"`
	CompletionModel    string        `yaml:"completion_model"`
	EmbeddingDimension int           `yaml:"embedding_dimensions"`
	RequestTimeout     time.Duration `yaml:"request_timeout"`
	MaxConcurrentCalls int           `yaml:"max_concurrent_calls"`
	// PerWorldConcurrentCalls bounds how many in-flight LM calls a single
	// world may hold at once, in addition to MaxConcurrentCalls, so one busy
	// world cannot starve the others sharing this gateway.
	PerWorldConcurrentCalls int           `yaml:"per_world_concurrent_calls"`
	RedisAddr               string        `yaml:"redis_addr"`
	CacheTTL                time.Duration `yaml:"cache_ttl"`
	MaxRetries              int           `yaml:"max_retries"`
}

type MemoryConfig struct {
	WindowSize            int     `yaml:"window_size"` // T, default 2000
	QdrantAddr            string  `yaml:"qdrant_addr"`
	ANNThreshold          int     `yaml:"ann_threshold"`
	RecencyHalfLifeHours  float64 `yaml:"recency_half_life_hours"` // default 24
	ReflectionThresh      float64 `yaml:"reflection_threshold"`    // default 150
}

type SchedulerConfig struct {
	TickInterval    time.Duration `yaml:"tick_interval"`
	TickDeadline    time.Duration `yaml:"tick_deadline"`
	MaxConcurrentAgents int       `yaml:"max_concurrent_agents"`
}

type EventsConfig struct {
	KafkaBrokers []string `yaml:"kafka_brokers"`
	KafkaTopic   string   `yaml:"kafka_topic"`
}

type Config struct {
	Service   ServiceConfig    `yaml:"service"`
	Logging   LoggingConfig    `yaml:"logging"`
	Telemetry TelemetryConfig  `yaml:"telemetry"`
	Store     StoreConfig      `yaml:"store"`
	LLM       LLMGatewayConfig `yaml:"llm"`
	Memory    MemoryConfig     `yaml:"memory"`
	Scheduler SchedulerConfig  `yaml:"scheduler"`
	Events    EventsConfig     `yaml:"events"`
}

func defaults() Config {
	return Config{
		Service: ServiceConfig{HTTPAddr: ":8080"},
		Logging: LoggingConfig{Level: "info"},
		Telemetry: TelemetryConfig{
			ServiceName: "genworld",
		},
		Store: StoreConfig{Driver: "memory", MaxConns: 10},
		LLM: LLMGatewayConfig{
			Provider:           "openai",
			EmbeddingModel:     "text-embedding-3-small",
			CompletionModel:    "gpt-4o-mini",
			EmbeddingDimension: 768,
			RequestTimeout:          30 * time.Second,
			MaxConcurrentCalls:      8,
			PerWorldConcurrentCalls: 4,
			CacheTTL:                10 * time.Minute,
			MaxRetries:         3,
		},
		Memory: MemoryConfig{
			WindowSize:           2000,
			ANNThreshold:         2000,
			RecencyHalfLifeHours: 24,
			ReflectionThresh:     150,
		},
		Scheduler: SchedulerConfig{
			TickInterval:        time.Second,
			TickDeadline:        5 * time.Second,
			MaxConcurrentAgents: 16,
		},
		Events: EventsConfig{KafkaTopic: "genworld.events"},
	}
}

// Load reads path (if it exists), applies a local .env (if present), then
// overlays a handful of environment variables. Missing file is not an
// error: callers get pure defaults, matching the teacher's permissive
// Load() that never hard-fails on a missing config file in dev.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	cfg := defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	overlayEnv(&cfg)
	return cfg, nil
}

func overlayEnv(cfg *Config) {
	if v := os.Getenv("GENWORLD_HTTP_ADDR"); v != "" {
		cfg.Service.HTTPAddr = v
	}
	if v := os.Getenv("GENWORLD_STORE_DSN"); v != "" {
		cfg.Store.DSN = v
		cfg.Store.Driver = "postgres"
	}
	if v := os.Getenv("GENWORLD_LLM_PROVIDER"); v != "" {
		cfg.LLM.Provider = v
	}
	if v := os.Getenv("GENWORLD_REDIS_ADDR"); v != "" {
		cfg.LLM.RedisAddr = v
	}
	if v := os.Getenv("GENWORLD_QDRANT_ADDR"); v != "" {
		cfg.Memory.QdrantAddr = v
	}
	if v := os.Getenv("GENWORLD_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("GENWORLD_OTEL_ENDPOINT"); v != "" {
		cfg.Telemetry.Endpoint = v
		cfg.Telemetry.Enabled = true
	}
	if v := os.Getenv("GENWORLD_MAX_CONCURRENT_AGENTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Scheduler.MaxConcurrentAgents = n
		}
	}
}
