package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "leaptext.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func testFlags() *pflag.FlagSet {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("backend", "", "")
	flags.Duration("timeout", 0, "")
	flags.Int("port", 0, "")
	flags.BoolP("verbose", "v", false, "")
	flags.StringP("output", "o", "", "")
	flags.String("log-format", "", "")
	return flags
}

func TestLoadConfig_Defaults(t *testing.T) {
	ResetConfig()
	t.Chdir(t.TempDir())

	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)

	assert.Equal(t, DefaultBackendURL, cfg.Backend.URL)
	assert.Equal(t, 30*time.Second, cfg.Backend.Timeout)
	assert.Equal(t, []string{"не найдена", "not found"}, cfg.Backend.ColumnNotFoundPatterns)
	assert.Equal(t, "input_text", cfg.Backend.Fields.Text)
	assert.Equal(t, "text_column", cfg.Backend.Fields.Column)
	assert.Equal(t, "file", cfg.Backend.Fields.File)
	assert.Equal(t, 16<<20, cfg.Upload.MaxSize)
	assert.Equal(t, "text", cfg.Upload.DefaultColumn)
	assert.Equal(t, "text", cfg.Upload.AutoColumn)
	assert.Equal(t, DefaultPort, cfg.UI.Port)
	assert.Equal(t, DefaultSessionTTL, cfg.UI.SessionTTL)
	assert.Equal(t, "auto", cfg.OutputFormat)
	assert.Empty(t, GetConfigFileUsed())
	assert.Same(t, cfg, GetCurrentConfig())
}

func TestLoadConfig_FileFoundUpward(t *testing.T) {
	ResetConfig()
	root := t.TempDir()
	path := writeConfig(t, root, `
backend:
  url: http://backend.internal:9000/api
  timeout: 5s
  column_not_found_patterns: ["missing column"]
upload:
  default_column: body
ui:
  session_ttl: 1h
`)
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o750))
	t.Chdir(nested)

	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)

	assert.Equal(t, path, GetConfigFileUsed())
	assert.Equal(t, "http://backend.internal:9000/api", cfg.Backend.URL)
	assert.Equal(t, 5*time.Second, cfg.Backend.Timeout)
	assert.Equal(t, []string{"missing column"}, cfg.Backend.ColumnNotFoundPatterns)
	assert.Equal(t, "body", cfg.Upload.DefaultColumn)
	assert.Equal(t, "text", cfg.Upload.AutoColumn, "unset keys keep defaults")
	assert.Equal(t, time.Hour, cfg.UI.SessionTTL)
}

func TestLoadConfig_Precedence(t *testing.T) {
	ResetConfig()
	dir := t.TempDir()
	t.Chdir(dir)
	path := writeConfig(t, dir, `
backend:
  url: http://from-file:5000
  timeout: 10s
output: text
`)

	t.Run("env overrides file", func(t *testing.T) {
		ResetConfig()
		t.Setenv("LEAPTEXT_BACKEND__URL", "http://from-env:5000")
		t.Setenv("LEAPTEXT_BACKEND__COLUMN_NOT_FOUND_PATTERNS", "a,b")
		t.Setenv("LEAPTEXT_LOG_FORMAT", "json")

		cfg, err := LoadConfig(path, nil)
		require.NoError(t, err)
		assert.Equal(t, "http://from-env:5000", cfg.Backend.URL)
		assert.Equal(t, 10*time.Second, cfg.Backend.Timeout)
		assert.Equal(t, []string{"a", "b"}, cfg.Backend.ColumnNotFoundPatterns)
		assert.Equal(t, "json", cfg.LogFormat)
	})

	t.Run("set flags override env", func(t *testing.T) {
		ResetConfig()
		t.Setenv("LEAPTEXT_BACKEND__URL", "http://from-env:5000")

		flags := testFlags()
		require.NoError(t, flags.Parse([]string{"--backend", "http://from-flag:5000", "--timeout", "2s", "-o", "json"}))

		cfg, err := LoadConfig(path, flags)
		require.NoError(t, err)
		assert.Equal(t, "http://from-flag:5000", cfg.Backend.URL)
		assert.Equal(t, 2*time.Second, cfg.Backend.Timeout)
		assert.Equal(t, "json", cfg.OutputFormat)
	})

	t.Run("unset flags do not override", func(t *testing.T) {
		ResetConfig()
		flags := testFlags()
		require.NoError(t, flags.Parse(nil))

		cfg, err := LoadConfig(path, flags)
		require.NoError(t, err)
		assert.Equal(t, "http://from-file:5000", cfg.Backend.URL)
		assert.Equal(t, "text", cfg.OutputFormat)
		assert.Equal(t, DefaultPort, cfg.UI.Port)
	})
}

func TestLoadConfig_ExpandsSecrets(t *testing.T) {
	ResetConfig()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("LEAPTEXT_TEST_SECRET", "s3cret")
	path := writeConfig(t, dir, `
ui:
  session_secret: ${LEAPTEXT_TEST_SECRET}
`)

	cfg, err := LoadConfig(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "s3cret", cfg.UI.SessionSecret)

	eff := Effective()
	ui, ok := eff["ui"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "********", ui["session_secret"])
}

func TestLoadConfig_Errors(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	t.Run("missing explicit file", func(t *testing.T) {
		ResetConfig()
		_, err := LoadConfig(filepath.Join(dir, "nope.yaml"), nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "error reading config file")
	})

	t.Run("bad duration", func(t *testing.T) {
		ResetConfig()
		path := writeConfig(t, dir, "backend:\n  timeout: soon\n")
		_, err := LoadConfig(path, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unable to decode config")
	})

	t.Run("invalid value", func(t *testing.T) {
		ResetConfig()
		path := writeConfig(t, dir, "output: html\n")
		_, err := LoadConfig(path, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown output format")
	})
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		errSubstr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"relative url", func(c *Config) { c.Backend.URL = "/api" }, "absolute http(s) URL"},
		{"ftp url", func(c *Config) { c.Backend.URL = "ftp://host" }, "absolute http(s) URL"},
		{"zero timeout", func(c *Config) { c.Backend.Timeout = 0 }, "backend.timeout"},
		{"zero max size", func(c *Config) { c.Upload.MaxSize = 0 }, "upload.max_size"},
		{"bad port", func(c *Config) { c.UI.Port = 70000 }, "ui.port"},
		{"zero ttl", func(c *Config) { c.UI.SessionTTL = 0 }, "ui.session_ttl"},
		{"bad output", func(c *Config) { c.OutputFormat = "xml" }, "unknown output format"},
		{"bad log format", func(c *Config) { c.LogFormat = "logfmt" }, "unknown log format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.errSubstr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errSubstr)
		})
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("TEST_VAR_ONE", "value_one")

	assert.Equal(t, "value_one", expandEnvVars("${TEST_VAR_ONE}"))
	assert.Equal(t, "x-value_one-y", expandEnvVars("x-${TEST_VAR_ONE}-y"))
	assert.Equal(t, "${TEST_VAR_UNSET}", expandEnvVars("${TEST_VAR_UNSET}"))
}

func TestBackendClientConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Backend.Fields.Text = "text"

	bc := cfg.BackendClientConfig()
	assert.Equal(t, DefaultBackendURL, bc.BaseURL)
	assert.Equal(t, "text", bc.Fields.Text)
	assert.Equal(t, cfg.Backend.ColumnNotFoundPatterns, bc.ColumnNotFoundPatterns)
}
