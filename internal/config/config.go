// Package config provides application configuration management with
// multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.helpline/config.yaml or ./config.yaml)
//  3. Default values
//
// Sensitive values (PostgreSQL password) are masked in MarshalJSON and
// String. Validation runs immediately after load and returns sentinel
// errors checkable with errors.Is().
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrMissingAPIKey indicates the selected provider's API key is not set.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidModelName indicates the model name is invalid.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidTemperature indicates the temperature is out of range.
	ErrInvalidTemperature = errors.New("invalid temperature")

	// ErrInvalidMode indicates an unknown operating mode.
	ErrInvalidMode = errors.New("invalid mode")

	// ErrInvalidTopK indicates top_k is out of range.
	ErrInvalidTopK = errors.New("invalid top_k")

	// ErrInvalidRerankK indicates rerank_k is out of range or exceeds top_k.
	ErrInvalidRerankK = errors.New("invalid rerank_k")

	// ErrInvalidMaxIterations indicates max_iterations is out of range.
	ErrInvalidMaxIterations = errors.New("invalid max_iterations")

	// ErrInvalidEmbedDimension indicates the embedding dimension does not
	// match the database schema.
	ErrInvalidEmbedDimension = errors.New("invalid embedding dimension")

	// ErrInvalidChunking indicates chunk size or overlap is out of range.
	ErrInvalidChunking = errors.New("invalid chunking parameters")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is invalid.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidPostgresPassword indicates the PostgreSQL password is invalid.
	ErrInvalidPostgresPassword = errors.New("invalid PostgreSQL password")

	// ErrInvalidPostgresSSLMode indicates the PostgreSQL SSL mode is invalid.
	ErrInvalidPostgresSSLMode = errors.New("invalid PostgreSQL SSL mode")
)

// Operating modes.
const (
	// ModeAgent runs the full tool-calling agent loop.
	ModeAgent = "agent"

	// ModeRAG answers directly from retrieval; non-knowledge-base tools
	// are refused.
	ModeRAG = "rag"
)

// VectorDimension is the embedding dimension of the chunks table. All
// provider embedders are configured to produce vectors of this size; see
// the vector(1024) column in the migrations.
const VectorDimension = 1024

// Config stores application configuration.
// SECURITY: sensitive fields are masked in MarshalJSON; update it when
// adding new secrets.
type Config struct {
	// Provider and model configuration. Provider may be left empty to be
	// detected from the model name prefix.
	Provider      string  `mapstructure:"provider" json:"provider"`
	ModelName     string  `mapstructure:"model_name" json:"model_name"`
	EmbedderModel string  `mapstructure:"embedder_model" json:"embedder_model"`
	RerankModel   string  `mapstructure:"rerank_model" json:"rerank_model"`
	Temperature   float64 `mapstructure:"temperature" json:"temperature"`

	// Mode selects between the agent loop and direct RAG answering.
	Mode string `mapstructure:"mode" json:"mode"`

	// Retrieval configuration. TopK candidates are fetched from the vector
	// index and reranked down to RerankK.
	TopK           int `mapstructure:"top_k" json:"top_k"`
	RerankK        int `mapstructure:"rerank_k" json:"rerank_k"`
	EmbedDimension int `mapstructure:"embed_dimension" json:"embed_dimension"`

	// Agent configuration.
	MaxIterations int `mapstructure:"max_iterations" json:"max_iterations"`

	// Ingestion configuration.
	ChunkSize    int `mapstructure:"chunk_size" json:"chunk_size"`
	ChunkOverlap int `mapstructure:"chunk_overlap" json:"chunk_overlap"`

	// HTTP server configuration.
	HTTPAddr string `mapstructure:"http_addr" json:"http_addr"`

	// Logging configuration.
	LogLevel string `mapstructure:"log_level" json:"log_level"`
	LogJSON  bool   `mapstructure:"log_json" json:"log_json"`

	// Storage configuration (see storage.go).
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`
}

// Load loads configuration.
// Priority: environment variables > configuration file > default values.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".helpline")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".")

	setDefaults()
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		// A missing config file is fine, defaults apply.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values",
			"search_paths", []string{configDir, "."})
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// DATABASE_URL takes precedence over individual postgres_* settings.
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("provider", "")
	viper.SetDefault("model_name", "command-r-plus")
	viper.SetDefault("embedder_model", "")
	viper.SetDefault("rerank_model", "")
	viper.SetDefault("temperature", 0.3)

	viper.SetDefault("mode", ModeAgent)

	viper.SetDefault("top_k", 10)
	viper.SetDefault("rerank_k", 3)
	viper.SetDefault("embed_dimension", VectorDimension)

	viper.SetDefault("max_iterations", 5)

	viper.SetDefault("chunk_size", 500)
	viper.SetDefault("chunk_overlap", 50)

	viper.SetDefault("http_addr", ":8080")

	viper.SetDefault("log_level", "info")
	viper.SetDefault("log_json", false)

	// PostgreSQL defaults matching docker-compose.yml
	viper.SetDefault("postgres_host", "localhost")
	viper.SetDefault("postgres_port", 5432)
	viper.SetDefault("postgres_user", "helpline")
	viper.SetDefault("postgres_password", "helpline_dev_password")
	viper.SetDefault("postgres_db_name", "helpline")
	viper.SetDefault("postgres_ssl_mode", "disable")
}

// bindEnvVariables binds runtime overrides explicitly. Provider API keys
// (COHERE_API_KEY, GEMINI_API_KEY, OPENAI_API_KEY) are read by the provider
// adapters directly, not via Viper; Validate checks their presence based on
// the selected provider.
func bindEnvVariables() {
	// Hardcoded keys cannot fail to bind; a panic here is a bug.
	mustBind := func(key, envVar string) {
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("provider", "HELPLINE_PROVIDER")
	mustBind("model_name", "HELPLINE_MODEL")
	mustBind("embedder_model", "HELPLINE_EMBEDDER_MODEL")
	mustBind("mode", "HELPLINE_MODE")
	mustBind("max_iterations", "HELPLINE_MAX_ITERATIONS")
	mustBind("http_addr", "HELPLINE_HTTP_ADDR")
	mustBind("log_level", "HELPLINE_LOG_LEVEL")
	mustBind("log_json", "HELPLINE_LOG_JSON")
}

// maskedValue is the placeholder for masked sensitive data. Full-width
// blocks avoid accidental substring matches against real secrets.
const maskedValue = "████████"

// maskSecret masks a secret for safe logging. Short secrets are fully
// masked; longer ones keep the first and last two characters for debug
// utility. This defends against accidental logging, nothing more.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + "<" + maskedValue + ">" + s[len(s)-2:]
}

// MarshalJSON implements json.Marshaler with sensitive field masking.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.PostgresPassword = maskSecret(a.PostgresPassword)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}
