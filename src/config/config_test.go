package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "GEMINI_API_KEY", cfg.Gemini.APIKeyEnvVar)
	assert.Equal(t, "gemini-2.5-flash", cfg.Gemini.Model)
	assert.Equal(t, "gemini-embedding-001", cfg.Gemini.EmbedModel)
	assert.Equal(t, 30*time.Second, cfg.Gemini.Timeout)
	assert.Equal(t, 768, cfg.Catalog.Dimensions)
	assert.Equal(t, "https://www.ikea.com/us/en", cfg.Cart.BaseURL)
	assert.True(t, cfg.Cart.HeadlessEnabled())
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 5000, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Logging.Level)

	require.NoError(t, NewValidator().Validate(cfg))
}

func TestLoad_DefaultsOnly(t *testing.T) {
	l := NewLoader(ConfigPrecedence{})

	cfg, err := l.Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Server.Port, cfg.Server.Port)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfigFile(t, `{
		"gemini": {"model": "gemini-2.5-pro"},
		"server": {"port": 8080},
		"logging": {"level": "debug"}
	}`)
	l := NewLoader(ConfigPrecedence{UserConfig: path})

	cfg, err := l.Load()
	require.NoError(t, err)
	assert.Equal(t, "gemini-2.5-pro", cfg.Gemini.Model)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Logging.Level)
	// Untouched fields keep their defaults.
	assert.Equal(t, "gemini-embedding-001", cfg.Gemini.EmbedModel)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
}

func TestLoad_LocalConfigWinsOverUser(t *testing.T) {
	user := writeConfigFile(t, `{"server": {"port": 8080}}`)
	local := writeConfigFile(t, `{"server": {"port": 9090}}`)
	l := NewLoader(ConfigPrecedence{UserConfig: user, LocalConfig: local})

	cfg, err := l.Load()
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
}

func TestLoad_MissingFilesIgnored(t *testing.T) {
	l := NewLoader(ConfigPrecedence{
		UserConfig:  filepath.Join(t.TempDir(), "nope.json"),
		LocalConfig: filepath.Join(t.TempDir(), "also-nope.json"),
	})

	_, err := l.Load()
	assert.NoError(t, err)
}

func TestLoad_MalformedFileFails(t *testing.T) {
	path := writeConfigFile(t, `{not json`)
	l := NewLoader(ConfigPrecedence{UserConfig: path})

	_, err := l.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse JSON")
}

func TestLoad_HeadlessSurvivesFilesThatOmitIt(t *testing.T) {
	// A file touching only unrelated sections must not flip the headless
	// default off.
	path := writeConfigFile(t, `{"server": {"port": 8080}}`)
	l := NewLoader(ConfigPrecedence{UserConfig: path})

	cfg, err := l.Load()
	require.NoError(t, err)
	assert.True(t, cfg.Cart.HeadlessEnabled())

	// An explicit false still wins.
	path = writeConfigFile(t, `{"cart": {"headless": false}}`)
	cfg, err = NewLoader(ConfigPrecedence{UserConfig: path}).Load()
	require.NoError(t, err)
	assert.False(t, cfg.Cart.HeadlessEnabled())
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("HEMBOT_MODEL", "gemini-2.5-pro")
	t.Setenv("HEMBOT_PORT", "7777")
	t.Setenv("HEMBOT_LOG_LEVEL", "warn")
	t.Setenv("HEMBOT_TIMEOUT", "45s")

	l := NewLoader(ConfigPrecedence{EnvironmentPrefix: "HEMBOT"})
	cfg, err := l.Load()
	require.NoError(t, err)

	assert.Equal(t, "gemini-2.5-pro", cfg.Gemini.Model)
	assert.Equal(t, 7777, cfg.Server.Port)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, 45*time.Second, cfg.Gemini.Timeout)
	assert.Equal(t, 45*time.Second, cfg.Cart.Timeout)
}

func TestLoad_EnvironmentBeatsFile(t *testing.T) {
	path := writeConfigFile(t, `{"server": {"port": 8080}}`)
	t.Setenv("HEMBOT_PORT", "9999")

	l := NewLoader(ConfigPrecedence{UserConfig: path, EnvironmentPrefix: "HEMBOT"})
	cfg, err := l.Load()
	require.NoError(t, err)
	assert.Equal(t, 9999, cfg.Server.Port)
}

func TestLoad_APIKeyFromNamedEnvVar(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "secret-from-env")

	l := NewLoader(ConfigPrecedence{})
	cfg, err := l.Load()
	require.NoError(t, err)
	assert.Equal(t, "secret-from-env", cfg.Gemini.APIKey)
}

func TestLoad_ValidationFailure(t *testing.T) {
	path := writeConfigFile(t, `{"logging": {"level": "loud"}}`)
	l := NewLoader(ConfigPrecedence{UserConfig: path})

	_, err := l.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")
}

func TestValidate_BadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }},
		{"port out of range", func(c *Config) { c.Server.Port = 70000 }},
		{"bad cart url", func(c *Config) { c.Cart.BaseURL = "not a url" }},
		{"zero dimensions ok but negative not", func(c *Config) { c.Catalog.Dimensions = -1 }},
		{"too many retries", func(c *Config) { c.Gemini.MaxRetries = 50 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, NewValidator().Validate(cfg))
		})
	}
}

func TestSaveFile_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.json")

	cfg := DefaultConfig()
	cfg.Server.Port = 8123

	l := NewLoader(ConfigPrecedence{})
	require.NoError(t, l.SaveFile(cfg, path))

	reload := NewLoader(ConfigPrecedence{UserConfig: path})
	got, err := reload.Load()
	require.NoError(t, err)
	assert.Equal(t, 8123, got.Server.Port)
}
