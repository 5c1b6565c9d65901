// Package config loads and validates the application configuration from
// JSON files and environment variables.
package config

import (
	"time"
)

// Config represents the complete configuration for hembot
type Config struct {
	// Version of the configuration format
	Version string `json:"version"`

	// Gemini API configuration
	Gemini GeminiConfig `json:"gemini"`

	// Catalog index configuration
	Catalog CatalogConfig `json:"catalog"`

	// Cart automation configuration
	Cart CartConfig `json:"cart"`

	// Server configuration for the web front end
	Server ServerConfig `json:"server"`

	// Storage configuration
	Storage StorageConfig `json:"storage"`

	// Logging configuration
	Logging LoggingConfig `json:"logging"`

	// Debug enables general debug logging
	Debug bool `json:"debug,omitempty"`
}

// GeminiConfig configures the language-understanding client.
type GeminiConfig struct {
	// APIKey for the Gemini API. Usually supplied via GEMINI_API_KEY.
	APIKey string `json:"api_key,omitempty"`

	// APIKeyEnvVar names the environment variable checked when APIKey is
	// empty.
	APIKeyEnvVar string `json:"api_key_env_var,omitempty"`

	// BaseURL overrides the API endpoint, mainly for tests.
	BaseURL string `json:"base_url,omitempty" validate:"omitempty,url"`

	// Model used for classification and replies.
	Model string `json:"model,omitempty"`

	// EmbedModel used for catalog embeddings.
	EmbedModel string `json:"embed_model,omitempty"`

	// Timeout per API call.
	Timeout time.Duration `json:"timeout,omitempty"`

	// MaxRetries for transient failures.
	MaxRetries int `json:"max_retries,omitempty" validate:"omitempty,min=1,max=10"`

	// RetryDelay is the base delay between retries.
	RetryDelay time.Duration `json:"retry_delay,omitempty"`
}

// CatalogConfig configures the product index.
type CatalogConfig struct {
	// Path to the SQLite catalog database.
	Path string `json:"path,omitempty"`

	// Dimensions of the embedding vectors.
	Dimensions int `json:"dimensions,omitempty" validate:"omitempty,min=1"`

	// SourceFile is the scraped-products JSON consumed by ingestion.
	SourceFile string `json:"source_file,omitempty"`
}

// CartConfig configures the browser-automation cart backend.
type CartConfig struct {
	// BaseURL of the retailer site.
	BaseURL string `json:"base_url,omitempty" validate:"omitempty,url"`

	// Headless controls browser visibility. A nil value means "not set" so
	// merging can tell an omitted field from an explicit false.
	Headless *bool `json:"headless,omitempty"`

	// StateFile persists browser cookies between runs.
	StateFile string `json:"state_file,omitempty"`

	// ClipsDir receives screenshots of cart actions.
	ClipsDir string `json:"clips_dir,omitempty"`

	// Timeout per cart operation.
	Timeout time.Duration `json:"timeout,omitempty"`
}

// HeadlessEnabled reports the effective headless setting; unset means on.
func (c CartConfig) HeadlessEnabled() bool {
	return c.Headless == nil || *c.Headless
}

// ServerConfig configures the HTTP front end.
type ServerConfig struct {
	// Host to bind.
	Host string `json:"host,omitempty"`

	// Port to listen on.
	Port int `json:"port,omitempty" validate:"omitempty,min=1,max=65535"`
}

// StorageConfig configures session persistence.
type StorageConfig struct {
	// Path to the sessions SQLite database.
	Path string `json:"path,omitempty"`
}

// LoggingConfig defines logging configuration
type LoggingConfig struct {
	// Level is the minimum log level (debug, info, warn, error)
	Level string `json:"level,omitempty" validate:"omitempty,oneof=debug info warn error"`

	// Format is the output format (text, json)
	Format string `json:"format,omitempty" validate:"omitempty,oneof=text json"`
}

// ValidationError describes a single invalid configuration field.
type ValidationError struct {
	Field   string
	Message string
	Value   interface{}
}

func (e ValidationError) Error() string {
	return "config: invalid " + e.Field + ": " + e.Message
}
