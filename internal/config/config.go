package config

import (
	"os"
	"strconv"
)

// Config holds all configuration for the DB Genie server.
type Config struct {
	Port      int
	Version   string
	Database  DatabaseConfig
	Provider  ProviderConfig
	Embedding EmbeddingConfig
	Vector    VectorConfig
	Telemetry TelemetryConfig
}

type DatabaseConfig struct {
	// Driver is "sqlite" or "postgres".
	Driver string
	// URL is the DSN: a file path (or :memory:) for sqlite, a
	// postgres:// URL for postgres. Empty disables the database,
	// in which case every query routes to document search.
	URL string
}

type ProviderConfig struct {
	// Kind is "openai", "azure-openai", "anthropic" or "ollama".
	Kind     string
	Endpoint string
	APIKey   string
	Model    string
	// Optional second provider tried when the primary fails.
	FallbackKind     string
	FallbackEndpoint string
	FallbackAPIKey   string
	FallbackModel    string
}

type EmbeddingConfig struct {
	// Kind is "openai" or "ollama".
	Kind     string
	Endpoint string
	APIKey   string
	Model    string
}

type VectorConfig struct {
	// Kind is "embedded" or "pgvector".
	Kind string
	// URL is the pgvector connection string (pgvector only).
	URL string
	// TopK is the number of passages retrieved per document search.
	TopK int
}

type TelemetryConfig struct {
	Enabled      bool
	OTLPEndpoint string
	ServiceName  string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		Port:    envInt("DBGENIE_PORT", 8080),
		Version: envStr("DBGENIE_VERSION", "0.2.0"),
		Database: DatabaseConfig{
			Driver: envStr("DBGENIE_DB_DRIVER", "sqlite"),
			URL:    envStr("DBGENIE_DB_URL", "hr_data.db"),
		},
		Provider: ProviderConfig{
			Kind:             envStr("DBGENIE_PROVIDER", "openai"),
			Endpoint:         envStr("DBGENIE_PROVIDER_ENDPOINT", ""),
			APIKey:           envStr("DBGENIE_PROVIDER_API_KEY", ""),
			Model:            envStr("DBGENIE_PROVIDER_MODEL", "gpt-4o-mini"),
			FallbackKind:     envStr("DBGENIE_FALLBACK_PROVIDER", ""),
			FallbackEndpoint: envStr("DBGENIE_FALLBACK_ENDPOINT", ""),
			FallbackAPIKey:   envStr("DBGENIE_FALLBACK_API_KEY", ""),
			FallbackModel:    envStr("DBGENIE_FALLBACK_MODEL", ""),
		},
		Embedding: EmbeddingConfig{
			Kind:     envStr("DBGENIE_EMBEDDING", "openai"),
			Endpoint: envStr("DBGENIE_EMBEDDING_ENDPOINT", ""),
			APIKey:   envStr("DBGENIE_EMBEDDING_API_KEY", ""),
			Model:    envStr("DBGENIE_EMBEDDING_MODEL", "text-embedding-3-small"),
		},
		Vector: VectorConfig{
			Kind: envStr("DBGENIE_VECTOR_STORE", "embedded"),
			URL:  envStr("DBGENIE_PGVECTOR_URL", ""),
			TopK: envInt("DBGENIE_SEARCH_TOP_K", 4),
		},
		Telemetry: TelemetryConfig{
			Enabled:      envBool("OTEL_ENABLED", false),
			OTLPEndpoint: envStr("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			ServiceName:  envStr("OTEL_SERVICE_NAME", "dbgenie-server"),
		},
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
