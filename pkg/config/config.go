package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Redis     RedisConfig
	Typesense TypesenseConfig
	OpenAI    OpenAIConfig
	Pipeline  PipelineConfig
	Cache     CacheConfig
	RateLimit RateLimitConfig
	OTEL      OTELConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host string
	Port int
	Env  string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// TypesenseConfig holds Typesense configuration
type TypesenseConfig struct {
	URL        string
	APIKey     string
	Collection string
}

// OpenAIConfig holds OpenAI configuration for embeddings and generation
type OpenAIConfig struct {
	APIKey              string
	BaseURL             string
	EmbeddingModel      string
	EmbeddingDimensions int
	ChatModel           string
	Temperature         float64
	MaxOutputTokens     int
	EmbeddingEnabled    bool
	GenerationEnabled   bool
}

// PipelineConfig holds query pipeline configuration
type PipelineConfig struct {
	DeadlineMs             int
	DefaultResultCount     int
	MaxResultCount         int
	DefaultSimilarityFloor float64
	MaxQueryLength         int
	MaxEmbedInputChars     int
	ContextCharBudget      int
}

// CacheConfig holds answer cache configuration
type CacheConfig struct {
	Backend    string
	Capacity   int
	TTLSeconds int
}

// RateLimitConfig holds per-provider sliding window configuration
type RateLimitConfig struct {
	WindowSeconds   int
	EmbeddingLimit  int
	RetrievalLimit  int
	GenerationLimit int
	MaxWaitMs       int
	FailFast        bool
}

// OTELConfig holds OpenTelemetry configuration
type OTELConfig struct {
	ServiceName    string
	ServiceVersion string
	Endpoint       string
	Enabled        bool
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	return &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: getEnvAsInt("SERVER_PORT", 8080),
			Env:  getEnv("APP_ENV", "development"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvAsInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Typesense: TypesenseConfig{
			URL:        getEnv("TYPESENSE_URL", "http://localhost:8108"),
			APIKey:     getEnv("TYPESENSE_API_KEY", "xyz"),
			Collection: getEnv("TYPESENSE_COLLECTION", "fragments"),
		},
		OpenAI: OpenAIConfig{
			APIKey:              getEnv("OPENAI_API_KEY", ""),
			BaseURL:             getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			EmbeddingModel:      getEnv("OPENAI_EMBEDDING_MODEL", "text-embedding-3-small"),
			EmbeddingDimensions: getEnvAsInt("OPENAI_EMBEDDING_DIMENSIONS", 1536),
			ChatModel:           getEnv("OPENAI_CHAT_MODEL", "gpt-4o-mini"),
			Temperature:         getEnvAsFloat("OPENAI_TEMPERATURE", 0.2),
			MaxOutputTokens:     getEnvAsInt("OPENAI_MAX_OUTPUT_TOKENS", 600),
			EmbeddingEnabled:    getEnvAsBool("EMBEDDING_ENABLED", true),
			GenerationEnabled:   getEnvAsBool("GENERATION_ENABLED", true),
		},
		Pipeline: PipelineConfig{
			DeadlineMs:             getEnvAsInt("PIPELINE_DEADLINE_MS", 10000),
			DefaultResultCount:     getEnvAsInt("PIPELINE_DEFAULT_RESULT_COUNT", 5),
			MaxResultCount:         getEnvAsInt("PIPELINE_MAX_RESULT_COUNT", 20),
			DefaultSimilarityFloor: getEnvAsFloat("PIPELINE_DEFAULT_SIMILARITY_FLOOR", 0.3),
			MaxQueryLength:         getEnvAsInt("PIPELINE_MAX_QUERY_LENGTH", 512),
			MaxEmbedInputChars:     getEnvAsInt("PIPELINE_MAX_EMBED_INPUT_CHARS", 8000),
			ContextCharBudget:      getEnvAsInt("PIPELINE_CONTEXT_CHAR_BUDGET", 6000),
		},
		Cache: CacheConfig{
			Backend:    getEnv("CACHE_BACKEND", "memory"),
			Capacity:   getEnvAsInt("CACHE_CAPACITY", 1024),
			TTLSeconds: getEnvAsInt("CACHE_TTL_SECONDS", 300),
		},
		RateLimit: RateLimitConfig{
			WindowSeconds:   getEnvAsInt("RATE_LIMIT_WINDOW_SECONDS", 60),
			EmbeddingLimit:  getEnvAsInt("RATE_LIMIT_EMBEDDING", 120),
			RetrievalLimit:  getEnvAsInt("RATE_LIMIT_RETRIEVAL", 300),
			GenerationLimit: getEnvAsInt("RATE_LIMIT_GENERATION", 60),
			MaxWaitMs:       getEnvAsInt("RATE_LIMIT_MAX_WAIT_MS", 2000),
			FailFast:        getEnvAsBool("RATE_LIMIT_FAIL_FAST", false),
		},
		OTEL: OTELConfig{
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "insurance-qa"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "1.0.0"),
			Endpoint:       getEnv("OTEL_ENDPOINT", ""),
			Enabled:        getEnvAsBool("OTEL_ENABLED", false),
		},
	}, nil
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Deadline returns the overall pipeline deadline as a duration
func (c *PipelineConfig) Deadline() time.Duration {
	return time.Duration(c.DeadlineMs) * time.Millisecond
}

// TTL returns the cache entry time-to-live as a duration
func (c *CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

// Window returns the sliding window length as a duration
func (c *RateLimitConfig) Window() time.Duration {
	return time.Duration(c.WindowSeconds) * time.Second
}

// MaxWait returns the bounded wait for a rate-limit slot
func (c *RateLimitConfig) MaxWait() time.Duration {
	if c.FailFast {
		return 0
	}
	return time.Duration(c.MaxWaitMs) * time.Millisecond
}

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

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
