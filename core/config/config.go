// Package config loads engine configuration from the process environment.
package config

import (
	"os"
	"strconv"
	"time"
)

// LLMProvider selects which chat-completion backend common/llm wires up.
type LLMProvider string

const (
	ProviderOpenAI    LLMProvider = "openai"
	ProviderAnthropic LLMProvider = "anthropic"
)

// Config holds all engine configuration.
type Config struct {
	Env string

	// LLM selects and configures the chat-completion backend.
	LLMProviderName LLMProvider
	LLMAPIKey       string
	LLMBaseURL      string
	LLMModel        string

	// EmbeddingModel names the embedding model passed to the embedding provider.
	EmbeddingModel string

	// WebSearchAPIKey authenticates the web search provider collaborator.
	WebSearchAPIKey string

	// KBBaseDir is the root directory under which each user's sanitized
	// knowledge-base subdirectory lives.
	KBBaseDir string

	// ConsentJWTSecret verifies the HS256 signature on consent tokens.
	ConsentJWTSecret string

	// SchedulerMaxIterations bounds the scheduler sub-agent's tool-calling
	// loop (original source has no cap; this engine picks a finite one).
	SchedulerMaxIterations int

	// ProviderTimeout bounds every outbound call to an external collaborator
	// (LLM, embeddings, web search, mail, calendar).
	ProviderTimeout time.Duration

	OTel OTelConfig
}

// OTelConfig configures the OpenTelemetry tracer/logger provider.
type OTelConfig struct {
	ExporterEndpoint string
	ServiceName      string
	ServiceVersion   string
	Headers          string
}

// Enabled reports whether an OTLP exporter endpoint has been configured.
func (c OTelConfig) Enabled() bool {
	return c.ExporterEndpoint != ""
}

// Load loads configuration from environment variables, with sensible
// development defaults.
func Load() Config {
	return Config{
		Env:                    getEnv("ENGINE_ENV", "development"),
		LLMProviderName:        LLMProvider(getEnv("LLM_PROVIDER", string(ProviderOpenAI))),
		LLMAPIKey:              getEnv("LLM_API_KEY", ""),
		LLMBaseURL:             getEnv("LLM_BASE_URL", ""),
		LLMModel:               getEnv("LLM_MODEL", ""),
		EmbeddingModel:         getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),
		WebSearchAPIKey:        getEnv("WEB_SEARCH_API_KEY", ""),
		KBBaseDir:              getEnv("KB_BASE_DIR", "./data/kb"),
		ConsentJWTSecret:       getEnv("CONSENT_JWT_SECRET", ""),
		SchedulerMaxIterations: getEnvInt("SCHEDULER_MAX_ITERATIONS", 10),
		ProviderTimeout:        getEnvDuration("PROVIDER_TIMEOUT", 30*time.Second),
		OTel: OTelConfig{
			ExporterEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			ServiceName:      getEnv("OTEL_SERVICE_NAME", "mailrelay-engine"),
			ServiceVersion:   getEnv("OTEL_SERVICE_VERSION", "dev"),
			Headers:          getEnv("OTEL_EXPORTER_OTLP_HEADERS", ""),
		},
	}
}

// IsProduction returns true if running in production environment.
func (c Config) IsProduction() bool {
	return c.Env == "production"
}

// IsDevelopment returns true if running in development environment.
func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
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

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
