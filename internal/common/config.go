package common

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Engine   EngineConfig
	LLM      LLMConfig
	Log      LogConfig
}

// DatabaseConfig holds result-cache database configuration
type DatabaseConfig struct {
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	GRPCAddr string
}

// EngineConfig points at the YAML engine configuration and batch knobs
type EngineConfig struct {
	ConfigPath     string
	Workers        int
	ProcessTimeout time.Duration
}

// LLMConfig holds candidate-provider configuration
type LLMConfig struct {
	Provider    string // "", "openai" or "gemini"
	Model       string
	APIKey      string
	BaseURL     string
	Temperature float32
	Timeout     time.Duration
	// Threshold below which the rule-based result is re-run with a provider candidate.
	Threshold float64
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string
	Format string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	provider := strings.ToLower(getEnv("LLM_PROVIDER", ""))
	llm := LLMConfig{
		Provider:    provider,
		Model:       getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		APIKey:      getEnv("OPENAI_API_KEY", ""),
		BaseURL:     getEnv("OPENAI_BASE_URL", ""),
		Temperature: getEnvAsFloat32("OPENAI_TEMPERATURE", 0.0),
		Timeout:     getEnvAsDuration("OPENAI_TIMEOUT", 45*time.Second),
		Threshold:   getEnvAsFloat64("LLM_CONFIDENCE_THRESHOLD", 0.7),
	}
	if provider == "gemini" {
		llm.Model = getEnv("GEMINI_MODEL", "gemini-2.5-flash")
		llm.APIKey = getEnv("GEMINI_API_KEY", "")
		llm.Timeout = getEnvAsDuration("GEMINI_TIMEOUT", 30*time.Second)
	}

	return &Config{
		Database: DatabaseConfig{
			DSN:              getEnv("DB_URL", ""),
			MaxConns:         getEnvAsInt32("DB_MAX_CONNS", 10),
			MinConns:         getEnvAsInt32("DB_MIN_CONNS", 1),
			MaxConnLifetime:  getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:  getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:      getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout: getEnvAsDuration("DB_STATEMENT_TIMEOUT", 0),
		},
		Server: ServerConfig{
			GRPCAddr: getEnv("GRPC_ADDR", ":8080"),
		},
		Engine: EngineConfig{
			ConfigPath:     getEnv("ENGINE_CONFIG", ""),
			Workers:        getEnvAsInt("ENGINE_WORKERS", 4),
			ProcessTimeout: getEnvAsDuration("ENGINE_PROCESS_TIMEOUT", 2*time.Minute),
		},
		LLM: llm,
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.Server.GRPCAddr == "" {
		return NewAppError("CONFIG_ERROR", "GRPC_ADDR is required", ErrInvalidInput)
	}
	if c.Engine.Workers <= 0 {
		return NewAppError("CONFIG_ERROR", "ENGINE_WORKERS must be positive", ErrInvalidInput)
	}
	switch c.LLM.Provider {
	case "":
	case "openai", "gemini":
		if c.LLM.APIKey == "" {
			return NewAppError("CONFIG_ERROR", "API key is required for LLM_PROVIDER="+c.LLM.Provider, ErrInvalidInput)
		}
	default:
		return NewAppError("CONFIG_ERROR", "unknown LLM_PROVIDER "+c.LLM.Provider, ErrInvalidInput)
	}
	if c.LLM.Threshold < 0 || c.LLM.Threshold > 1 {
		return NewAppError("CONFIG_ERROR", "LLM_CONFIDENCE_THRESHOLD must be within [0,1]", ErrInvalidInput)
	}
	return nil
}
