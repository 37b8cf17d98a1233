// Package config provides configuration management for Engram. It loads
// settings from environment variables with the ENGRAM_ prefix and provides
// sensible defaults for all configuration options.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/scrypster/engram/pkg/types"
)

// Config holds all configuration settings for the Engram daemon.
type Config struct {
	Server      ServerConfig
	Storage     StorageConfig
	LLM         LLMConfig
	Recognition RecognitionConfig
	Pipeline    PipelineConfig
	Security    SecurityConfig
	RateLimit   RateLimitConfig
	Backup      BackupConfig
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Port int    // Server port (default: 7171)
	Host string // Server host (default: 0.0.0.0)
}

// StorageConfig contains record store configuration.
type StorageConfig struct {
	Engine       string // Storage engine: sqlite, postgres (default: sqlite)
	SQLitePath   string // Path to the SQLite database file (default: ./data/engram.db)
	PostgresDSN  string // Postgres connection string (required when Engine is postgres)
	EnableVector bool   // Enable the pgvector scope on Postgres (default: false)
}

// LLMConfig contains LLM provider configuration.
type LLMConfig struct {
	Provider          string  // LLM provider: ollama, openai, anthropic, none (default: ollama)
	OllamaURL         string  // Ollama API URL (default: http://localhost:11434)
	OllamaModel       string  // Ollama model name (default: qwen2.5:7b)
	OpenAIAPIKey      string  // OpenAI API key
	OpenAIModel       string  // OpenAI model name (default: gpt-4o-mini)
	AnthropicAPIKey   string  // Anthropic API key
	AnthropicModel    string  // Anthropic model name (default: claude-haiku-4-5-20251001)
	RequestsPerSecond float64 // Sustained LLM call rate (default: 5)
	MaxConcurrent     int     // Concurrent LLM call cap (default: 4)
}

// RecognitionConfig contains the default confidence bands for recognition
// calls that do not supply their own.
type RecognitionConfig struct {
	Threshold        float64 // Deterministic match boundary (default: 0.75)
	LLMLowerBound    float64 // Floor of the uncertain band (default: 0.60)
	LLMUpperBound    float64 // Ceiling of the uncertain band (default: 0.75)
	SimilarThreshold float64 // AreSimilar cutoff for the scorer (default: 0.5)
	CandidateLimit   int     // Candidate retrieval cap (default: 50)
}

// PipelineConfig locates the declarative stage profile.
type PipelineConfig struct {
	ProfilePath string // Path to the YAML pipeline profile (default: ./profiles/default.yaml)
}

// SecurityConfig contains security and authentication settings.
type SecurityConfig struct {
	Mode     string // Security mode: development, production (default: development)
	APIToken string // Bearer token required in production mode
}

// RateLimitConfig bounds the HTTP API.
type RateLimitConfig struct {
	RequestsPerSecond float64 // Sustained request rate per client (default: 20)
	Burst             int     // Burst size (default: 40)
}

// BackupConfig schedules SQLite snapshots. An empty Dir disables them.
type BackupConfig struct {
	Dir      string        // Snapshot directory (default: disabled)
	Interval time.Duration // Time between snapshots (default: 6h)
	Keep     int           // Snapshots to retain (default: 10)
}

// LoadConfig loads configuration from environment variables with defaults.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: getEnvInt("ENGRAM_PORT", 7171),
			Host: getEnv("ENGRAM_HOST", "0.0.0.0"),
		},
		Storage: StorageConfig{
			Engine:       getEnv("ENGRAM_STORAGE_ENGINE", "sqlite"),
			SQLitePath:   getEnv("ENGRAM_SQLITE_PATH", "./data/engram.db"),
			PostgresDSN:  getEnv("ENGRAM_POSTGRES_DSN", ""),
			EnableVector: getEnvBool("ENGRAM_ENABLE_VECTOR", false),
		},
		LLM: LLMConfig{
			Provider:          getEnv("ENGRAM_LLM_PROVIDER", "ollama"),
			OllamaURL:         getEnv("ENGRAM_OLLAMA_URL", "http://localhost:11434"),
			OllamaModel:       getEnv("ENGRAM_OLLAMA_MODEL", "qwen2.5:7b"),
			OpenAIAPIKey:      getEnv("ENGRAM_OPENAI_API_KEY", ""),
			OpenAIModel:       getEnv("ENGRAM_OPENAI_MODEL", "gpt-4o-mini"),
			AnthropicAPIKey:   getEnv("ENGRAM_ANTHROPIC_API_KEY", ""),
			AnthropicModel:    getEnv("ENGRAM_ANTHROPIC_MODEL", "claude-haiku-4-5-20251001"),
			RequestsPerSecond: getEnvFloat("ENGRAM_LLM_RATE", 5),
			MaxConcurrent:     getEnvInt("ENGRAM_LLM_MAX_CONCURRENT", 4),
		},
		Recognition: RecognitionConfig{
			Threshold:        getEnvFloat("ENGRAM_RECOGNITION_THRESHOLD", 0.75),
			LLMLowerBound:    getEnvFloat("ENGRAM_RECOGNITION_LLM_LOWER", 0.60),
			LLMUpperBound:    getEnvFloat("ENGRAM_RECOGNITION_LLM_UPPER", 0.75),
			SimilarThreshold: getEnvFloat("ENGRAM_SIMILAR_THRESHOLD", 0.5),
			CandidateLimit:   getEnvInt("ENGRAM_CANDIDATE_LIMIT", 50),
		},
		Pipeline: PipelineConfig{
			ProfilePath: getEnv("ENGRAM_PIPELINE_PROFILE", "./profiles/default.yaml"),
		},
		Security: SecurityConfig{
			Mode:     getEnv("ENGRAM_SECURITY_MODE", "development"),
			APIToken: getEnv("ENGRAM_API_TOKEN", ""),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: getEnvFloat("ENGRAM_RATE_LIMIT", 20),
			Burst:             getEnvInt("ENGRAM_RATE_BURST", 40),
		},
		Backup: BackupConfig{
			Dir:      getEnv("ENGRAM_BACKUP_DIR", ""),
			Interval: time.Duration(getEnvInt("ENGRAM_BACKUP_INTERVAL_MINUTES", 360)) * time.Minute,
			Keep:     getEnvInt("ENGRAM_BACKUP_KEEP", 10),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for inconsistencies that must fail at
// startup, never at per-request time.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: invalid server port %d", types.ErrConfiguration, c.Server.Port)
	}

	switch c.Storage.Engine {
	case "sqlite":
		if c.Storage.SQLitePath == "" {
			return fmt.Errorf("%w: sqlite storage requires ENGRAM_SQLITE_PATH", types.ErrConfiguration)
		}
	case "postgres":
		if c.Storage.PostgresDSN == "" {
			return fmt.Errorf("%w: postgres storage requires ENGRAM_POSTGRES_DSN", types.ErrConfiguration)
		}
	default:
		return fmt.Errorf("%w: unknown storage engine %q", types.ErrConfiguration, c.Storage.Engine)
	}

	switch c.LLM.Provider {
	case "ollama", "openai", "anthropic", "none":
	default:
		return fmt.Errorf("%w: unknown LLM provider %q", types.ErrConfiguration, c.LLM.Provider)
	}

	bands := types.RecognitionOptions{
		Entities:      types.EntityTypeMap{"_": "_"},
		Threshold:     c.Recognition.Threshold,
		LLMLowerBound: c.Recognition.LLMLowerBound,
		LLMUpperBound: c.Recognition.LLMUpperBound,
	}
	if err := bands.Validate(); err != nil {
		return err
	}

	if c.Security.Mode == "production" && c.Security.APIToken == "" {
		return fmt.Errorf("%w: production security mode requires ENGRAM_API_TOKEN", types.ErrConfiguration)
	}
	return nil
}

// getEnv retrieves a string environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns a default
// value. Unparseable values fall back to the default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvFloat retrieves a float environment variable or returns a default
// value. Unparseable values fall back to the default.
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getEnvBool retrieves a boolean environment variable or returns a default
// value. It recognizes "true", "1", "yes" and "false", "0", "no".
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		switch value {
		case "true", "1", "yes", "True", "TRUE", "Yes", "YES":
			return true
		case "false", "0", "no", "False", "FALSE", "No", "NO":
			return false
		}
	}
	return defaultValue
}
