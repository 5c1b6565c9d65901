package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/adrg/xdg"
)

// ConfigPrecedence names the file and environment sources consulted, from
// lowest to highest precedence.
type ConfigPrecedence struct {
	UserConfig        string
	LocalConfig       string
	EnvironmentPrefix string
}

// Loader handles loading and merging configurations from multiple sources
type Loader struct {
	precedence ConfigPrecedence
	validator  *Validator
}

// NewLoader creates a new configuration loader
func NewLoader(precedence ConfigPrecedence) *Loader {
	return &Loader{
		precedence: precedence,
		validator:  NewValidator(),
	}
}

// Load loads configuration from all sources and merges them
func (l *Loader) Load() (*Config, error) {
	config := DefaultConfig()

	for _, path := range []string{l.precedence.UserConfig, l.precedence.LocalConfig} {
		if path == "" {
			continue
		}
		if cfg, err := l.loadFile(path); err == nil {
			config = mergeConfigs(config, cfg)
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
		}
	}

	if l.precedence.EnvironmentPrefix != "" {
		applyEnvironmentOverrides(config, l.precedence.EnvironmentPrefix)
	}

	// The API key may live in its named environment variable instead of
	// any config file.
	if config.Gemini.APIKey == "" && config.Gemini.APIKeyEnvVar != "" {
		config.Gemini.APIKey = os.Getenv(config.Gemini.APIKeyEnvVar)
	}

	if err := l.validator.Validate(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

func (l *Loader) loadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}

	return &config, nil
}

// SaveFile saves configuration to a file
func (l *Loader) SaveFile(config *Config, path string) error {
	if err := l.validator.Validate(config); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	return nil
}

// mergeConfigs merges two configurations with the second taking precedence
func mergeConfigs(base, override *Config) *Config {
	result := *base

	if override.Gemini.APIKey != "" {
		result.Gemini.APIKey = override.Gemini.APIKey
	}
	if override.Gemini.APIKeyEnvVar != "" {
		result.Gemini.APIKeyEnvVar = override.Gemini.APIKeyEnvVar
	}
	if override.Gemini.BaseURL != "" {
		result.Gemini.BaseURL = override.Gemini.BaseURL
	}
	if override.Gemini.Model != "" {
		result.Gemini.Model = override.Gemini.Model
	}
	if override.Gemini.EmbedModel != "" {
		result.Gemini.EmbedModel = override.Gemini.EmbedModel
	}
	if override.Gemini.Timeout != 0 {
		result.Gemini.Timeout = override.Gemini.Timeout
	}
	if override.Gemini.MaxRetries != 0 {
		result.Gemini.MaxRetries = override.Gemini.MaxRetries
	}
	if override.Gemini.RetryDelay != 0 {
		result.Gemini.RetryDelay = override.Gemini.RetryDelay
	}

	if override.Catalog.Path != "" {
		result.Catalog.Path = override.Catalog.Path
	}
	if override.Catalog.Dimensions != 0 {
		result.Catalog.Dimensions = override.Catalog.Dimensions
	}
	if override.Catalog.SourceFile != "" {
		result.Catalog.SourceFile = override.Catalog.SourceFile
	}

	if override.Cart.BaseURL != "" {
		result.Cart.BaseURL = override.Cart.BaseURL
	}
	if override.Cart.Headless != nil {
		result.Cart.Headless = override.Cart.Headless
	}
	if override.Cart.StateFile != "" {
		result.Cart.StateFile = override.Cart.StateFile
	}
	if override.Cart.ClipsDir != "" {
		result.Cart.ClipsDir = override.Cart.ClipsDir
	}
	if override.Cart.Timeout != 0 {
		result.Cart.Timeout = override.Cart.Timeout
	}

	if override.Server.Host != "" {
		result.Server.Host = override.Server.Host
	}
	if override.Server.Port != 0 {
		result.Server.Port = override.Server.Port
	}

	if override.Storage.Path != "" {
		result.Storage.Path = override.Storage.Path
	}

	if override.Logging.Level != "" {
		result.Logging.Level = override.Logging.Level
	}
	if override.Logging.Format != "" {
		result.Logging.Format = override.Logging.Format
	}
	if override.Debug {
		result.Debug = true
	}

	return &result
}

// applyEnvironmentOverrides applies environment variable overrides to config
func applyEnvironmentOverrides(config *Config, prefix string) {
	if apiKey := os.Getenv(prefix + "_API_KEY"); apiKey != "" {
		config.Gemini.APIKey = apiKey
	}
	if model := os.Getenv(prefix + "_MODEL"); model != "" {
		config.Gemini.Model = model
	}
	if baseURL := os.Getenv(prefix + "_BASE_URL"); baseURL != "" {
		config.Gemini.BaseURL = baseURL
	}
	if cartURL := os.Getenv(prefix + "_CART_BASE_URL"); cartURL != "" {
		config.Cart.BaseURL = cartURL
	}
	if port := os.Getenv(prefix + "_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if level := os.Getenv(prefix + "_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if timeout := os.Getenv(prefix + "_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			config.Gemini.Timeout = d
			config.Cart.Timeout = d
		}
	}
}

// GetConfigPaths returns the configuration file paths to check
func GetConfigPaths() ConfigPrecedence {
	return ConfigPrecedence{
		UserConfig:        filepath.Join(xdg.ConfigHome, "hembot", "config.json"),
		LocalConfig:       filepath.Join(".hembot", "config.json"),
		EnvironmentPrefix: "HEMBOT",
	}
}

// FindConfigFile searches for a configuration file in standard locations
func FindConfigFile() (string, error) {
	paths := GetConfigPaths()

	for _, path := range []string{paths.LocalConfig, paths.UserConfig} {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("no configuration file found")
}
