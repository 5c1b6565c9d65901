package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

func boolPtr(v bool) *bool { return &v }

// DefaultConfig returns a default configuration with sensible defaults
func DefaultConfig() *Config {
	dataDir := filepath.Join(xdg.DataHome, "hembot")

	return &Config{
		Version: "1.0",
		Gemini: GeminiConfig{
			APIKeyEnvVar: "GEMINI_API_KEY",
			Model:        "gemini-2.5-flash",
			EmbedModel:   "gemini-embedding-001",
			Timeout:      30 * time.Second,
			MaxRetries:   3,
			RetryDelay:   time.Second,
		},
		Catalog: CatalogConfig{
			Path:       filepath.Join(dataDir, "catalog.db"),
			Dimensions: 768,
			SourceFile: filepath.Join(dataDir, "products.json"),
		},
		Cart: CartConfig{
			BaseURL:   "https://www.ikea.com/us/en",
			Headless:  boolPtr(true),
			StateFile: filepath.Join(dataDir, "cart_state.json"),
			ClipsDir:  filepath.Join(dataDir, "clips"),
			Timeout:   30 * time.Second,
		},
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 5000,
		},
		Storage: StorageConfig{
			Path: filepath.Join(dataDir, "sessions.db"),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
