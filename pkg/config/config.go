package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"careerprep/pkg/constants"
)

type Config struct {
	Port              string  `yaml:"port"`
	LogLevel          string  `yaml:"log_level"`
	PodID             string  `yaml:"pod_id"`
	StoreBackend      string  `yaml:"store_backend"`
	RedisURL          string  `yaml:"redis_url"`
	SQLitePath        string  `yaml:"sqlite_path"`
	LLMBaseURL        string  `yaml:"llm_base_url"`
	LLMAPIKey         string  `yaml:"llm_api_key"`
	LLMModel          string  `yaml:"llm_model"`
	LLMMaxTokens      int     `yaml:"llm_max_tokens"`
	LLMTemperature    float64 `yaml:"llm_temperature"`
	LLMTimeoutMS      int64   `yaml:"llm_timeout_ms"` // 0 leaves the completion call unbounded
	BatchSize         int     `yaml:"batch_size"`
	ProcessIntervalMS int64   `yaml:"process_interval_ms"` // 0 disables the periodic batch
	ClaimTTLMS        int64   `yaml:"claim_ttl_ms"`
	LeaderElectionTTL int     `yaml:"leader_election_ttl"`
	Timezone          string  `yaml:"timezone"`
}

func Defaults() *Config {
	return &Config{
		Port:              "8080",
		LogLevel:          "info",
		StoreBackend:      constants.BackendRedis,
		RedisURL:          "redis://localhost:6379",
		SQLitePath:        "./data/careerprep.db",
		LLMBaseURL:        "https://api.openai.com/v1",
		LLMModel:          constants.DefaultLLMModel,
		LLMMaxTokens:      constants.DefaultLLMMaxTokens,
		LLMTemperature:    constants.DefaultLLMTemperature,
		BatchSize:         constants.DefaultBatchSize,
		ClaimTTLMS:        constants.DefaultClaimTTLMS,
		LeaderElectionTTL: constants.DefaultLeaderTTLSeconds,
	}
}

// Load builds the configuration from defaults, an optional YAML file and the
// environment, in increasing order of precedence. An empty path falls back to
// CONFIG_FILE.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.PodID = getEnv("POD_ID", cfg.PodID)
	cfg.StoreBackend = getEnv("STORE_BACKEND", cfg.StoreBackend)
	cfg.RedisURL = getEnv("REDIS_URL", cfg.RedisURL)
	cfg.SQLitePath = getEnv("SQLITE_PATH", cfg.SQLitePath)
	cfg.LLMBaseURL = getEnv("LLM_BASE_URL", cfg.LLMBaseURL)
	cfg.LLMAPIKey = getEnv("LLM_API_KEY", cfg.LLMAPIKey)
	cfg.LLMModel = getEnv("LLM_MODEL", cfg.LLMModel)
	cfg.LLMMaxTokens = getEnvInt("LLM_MAX_TOKENS", cfg.LLMMaxTokens)
	cfg.LLMTemperature = getEnvFloat("LLM_TEMPERATURE", cfg.LLMTemperature)
	cfg.LLMTimeoutMS = getEnvInt64("LLM_TIMEOUT_MS", cfg.LLMTimeoutMS)
	cfg.BatchSize = getEnvInt("BATCH_SIZE", cfg.BatchSize)
	cfg.ProcessIntervalMS = getEnvInt64("PROCESS_INTERVAL_MS", cfg.ProcessIntervalMS)
	cfg.ClaimTTLMS = getEnvInt64("CLAIM_TTL_MS", cfg.ClaimTTLMS)
	cfg.LeaderElectionTTL = getEnvInt("LEADER_ELECTION_TTL", cfg.LeaderElectionTTL)
	cfg.Timezone = getEnv("TIMEZONE", cfg.Timezone)

	if cfg.PodID == "" {
		cfg.PodID = generatePodID()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

func (c *Config) Validate() error {
	switch c.StoreBackend {
	case constants.BackendRedis, constants.BackendSQLite:
	default:
		return fmt.Errorf("store_backend: unknown backend %q (expected redis or sqlite)", c.StoreBackend)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch_size: must be positive, got %d", c.BatchSize)
	}
	if c.LLMTemperature < 0 || c.LLMTemperature > 2 {
		return fmt.Errorf("llm_temperature: must be within [0, 2], got %v", c.LLMTemperature)
	}
	if c.LLMMaxTokens <= 0 {
		return fmt.Errorf("llm_max_tokens: must be positive, got %d", c.LLMMaxTokens)
	}
	if c.LLMTimeoutMS < 0 || c.ProcessIntervalMS < 0 || c.ClaimTTLMS < 0 {
		return fmt.Errorf("durations must not be negative")
	}
	return nil
}

func (c *Config) LLMTimeout() time.Duration {
	return constants.MillisecondsToDuration(c.LLMTimeoutMS)
}

func (c *Config) ProcessInterval() time.Duration {
	return constants.MillisecondsToDuration(c.ProcessIntervalMS)
}

func (c *Config) ClaimTTL() time.Duration {
	return constants.MillisecondsToDuration(c.ClaimTTLMS)
}

func (c *Config) LeaderElectionTTLDuration() time.Duration {
	return constants.SecondsToDuration(c.LeaderElectionTTL)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func generatePodID() string {
	hostname, err := os.Hostname()
	if err != nil {
		return uuid.New().String()
	}
	return hostname + "-" + uuid.New().String()[:8]
}
