package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Supported LLM providers
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// Config holds all configuration for the application
type Config struct {
	// Server settings
	Port string `json:"port"`
	Host string `json:"host"`

	// Session cookie signing key
	SecretKey string `json:"-"` // Don't expose in JSON

	// Storage settings
	DatabasePath   string `json:"database_path"`
	MaxUploadBytes int64  `json:"max_upload_bytes"`

	// LLM settings
	LLMProvider   string `json:"llm_provider"`
	GeminiAPIKey  string `json:"-"`
	GeminiModel   string `json:"gemini_model"`
	GeminiBaseURL string `json:"gemini_base_url"`
	OpenAIAPIKey  string `json:"-"`
	OpenAIModel   string `json:"openai_model"`
	OpenAIBaseURL string `json:"openai_base_url"`

	// Admin account name
	AdminUsername string `json:"admin_username"`

	// Cache settings
	CacheType     string `json:"cache_type"`     // "memory", "cloud-storage" or "none"
	CacheDuration int    `json:"cache_duration"` // in hours
	CacheBucket   string `json:"cache_bucket"`

	// Rate limiting
	MaxConcurrentRequests int `json:"max_concurrent_requests"`

	// Cron spec for cache cleanup and statistics snapshots
	MaintenanceSchedule string `json:"maintenance_schedule"`
}

// Load reads configuration from environment variables and .env file
func Load() (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	config := &Config{
		Port:                  getEnvOrDefault("PORT", "8080"),
		Host:                  getEnvOrDefault("HOST", "0.0.0.0"),
		SecretKey:             getEnvOrDefault("SECRET_KEY", ""),
		DatabasePath:          getEnvOrDefault("SQLITE_PATH", "smartnotes.db"),
		MaxUploadBytes:        int64(getEnvOrDefaultInt("MAX_UPLOAD_MB", 16)) * 1024 * 1024,
		LLMProvider:           strings.ToLower(getEnvOrDefault("LLM_PROVIDER", ProviderGemini)),
		GeminiAPIKey:          getEnvOrDefault("GEMINI_API_KEY", ""),
		GeminiModel:           getEnvOrDefault("GEMINI_MODEL", "gemini-2.5-flash"),
		GeminiBaseURL:         getEnvOrDefault("GEMINI_BASE_URL", ""),
		OpenAIAPIKey:          getEnvOrDefault("OPENAI_API_KEY", ""),
		OpenAIModel:           getEnvOrDefault("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIBaseURL:         getEnvOrDefault("OPENAI_BASE_URL", ""),
		AdminUsername:         getEnvOrDefault("ADMIN_USERNAME", "admin"),
		CacheType:             getEnvOrDefault("CACHE_TYPE", "memory"),
		CacheDuration:         getEnvOrDefaultInt("CACHE_DURATION_HOURS", 24),
		CacheBucket:           getEnvOrDefault("CACHE_BUCKET", "smartnotes-cache"),
		MaxConcurrentRequests: getEnvOrDefaultInt("MAX_CONCURRENT_REQUESTS", 4),
		MaintenanceSchedule:   getEnvOrDefault("MAINTENANCE_SCHEDULE", "@hourly"),
	}

	return config, config.validate()
}

// validate checks if required configuration values are present
func (c *Config) validate() error {
	if c.SecretKey == "" {
		return &ConfigError{Field: "SECRET_KEY", Message: "session secret key is required"}
	}

	switch c.LLMProvider {
	case ProviderGemini:
		if c.GeminiAPIKey == "" {
			return &ConfigError{Field: "GEMINI_API_KEY", Message: "Gemini API key is required"}
		}
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			return &ConfigError{Field: "OPENAI_API_KEY", Message: "OpenAI API key is required"}
		}
	default:
		return &ConfigError{Field: "LLM_PROVIDER", Message: fmt.Sprintf("unsupported provider %q", c.LLMProvider)}
	}

	switch c.CacheType {
	case "memory", "cloud-storage", "none":
	default:
		return &ConfigError{Field: "CACHE_TYPE", Message: fmt.Sprintf("unsupported cache type %q", c.CacheType)}
	}

	if c.MaxConcurrentRequests < 1 {
		c.MaxConcurrentRequests = 1
	}
	return nil
}

// Addr returns the listen address
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// getEnvOrDefault returns environment variable value or default if not set
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvOrDefaultInt returns environment variable value as int or default if not set
func getEnvOrDefaultInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Field + ": " + e.Message
}
