// Package config provides configuration management for the leaptext CLI.
//
// Values are layered with koanf: built-in defaults, then leaptext.yaml,
// then LEAPTEXT_* environment variables, then explicitly set flags.
package config

import (
	"time"

	"github.com/leapstack-labs/leaptext/internal/backend"
	"github.com/leapstack-labs/leaptext/internal/orchestrator"
)

// Config holds all CLI configuration options.
type Config struct {
	Backend      BackendConfig `koanf:"backend" yaml:"backend"`
	Upload       UploadConfig  `koanf:"upload" yaml:"upload"`
	UI           UIConfig      `koanf:"ui" yaml:"ui"`
	Verbose      bool          `koanf:"verbose" yaml:"verbose"`
	OutputFormat string        `koanf:"output" yaml:"output"`
	LogFormat    string        `koanf:"log_format" yaml:"log_format"`
	LogFile      string        `koanf:"log_file" yaml:"log_file"`
}

// BackendConfig locates and describes the text-processing backend.
type BackendConfig struct {
	URL                    string        `koanf:"url" yaml:"url"`
	Timeout                time.Duration `koanf:"timeout" yaml:"timeout"`
	StrictContract         bool          `koanf:"strict_contract" yaml:"strict_contract"`
	ColumnNotFoundPatterns []string      `koanf:"column_not_found_patterns" yaml:"column_not_found_patterns"`
	Fields                 FieldsConfig  `koanf:"fields" yaml:"fields"`
}

// FieldsConfig names the form fields the backend reads.
type FieldsConfig struct {
	Text   string `koanf:"text" yaml:"text"`
	Column string `koanf:"column" yaml:"column"`
	File   string `koanf:"file" yaml:"file"`
}

// UploadConfig bounds uploads and picks the column to process.
type UploadConfig struct {
	MaxSize       int    `koanf:"max_size" yaml:"max_size"`
	DefaultColumn string `koanf:"default_column" yaml:"default_column"`
	AutoColumn    string `koanf:"auto_column" yaml:"auto_column"`
}

// UIConfig holds configuration for the browser UI server.
type UIConfig struct {
	Port          int           `koanf:"port" yaml:"port"`
	AutoOpen      bool          `koanf:"auto_open" yaml:"auto_open"`
	SessionSecret string        `koanf:"session_secret" yaml:"session_secret"`
	SessionTTL    time.Duration `koanf:"session_ttl" yaml:"session_ttl"`
}

// Default configuration values.
const (
	DefaultBackendURL = "http://localhost:5000"
	DefaultPort       = 8765
	DefaultSessionTTL = 30 * time.Minute
	DefaultOutput     = "auto" // Auto-detect: TTY=text, non-TTY=markdown
	DefaultLogFormat  = "text"
)

// Defaults returns the built-in configuration.
func Defaults() *Config {
	return &Config{
		Backend: BackendConfig{
			URL:                    DefaultBackendURL,
			Timeout:                backend.DefaultTimeout,
			ColumnNotFoundPatterns: append([]string(nil), backend.DefaultColumnNotFoundPatterns...),
			Fields: FieldsConfig{
				Text:   backend.DefaultTextField,
				Column: backend.DefaultColumnField,
				File:   backend.DefaultFileField,
			},
		},
		Upload: UploadConfig{
			MaxSize:       orchestrator.DefaultMaxFileSize,
			DefaultColumn: orchestrator.DefaultColumn,
			AutoColumn:    orchestrator.DefaultColumn,
		},
		UI: UIConfig{
			Port:       DefaultPort,
			AutoOpen:   true,
			SessionTTL: DefaultSessionTTL,
		},
		OutputFormat: DefaultOutput,
		LogFormat:    DefaultLogFormat,
	}
}

// defaultMap is Defaults flattened into koanf keys.
func defaultMap() map[string]any {
	d := Defaults()
	return map[string]any{
		"backend.url":                       d.Backend.URL,
		"backend.timeout":                   d.Backend.Timeout.String(),
		"backend.strict_contract":           d.Backend.StrictContract,
		"backend.column_not_found_patterns": d.Backend.ColumnNotFoundPatterns,
		"backend.fields.text":               d.Backend.Fields.Text,
		"backend.fields.column":             d.Backend.Fields.Column,
		"backend.fields.file":               d.Backend.Fields.File,
		"upload.max_size":                   d.Upload.MaxSize,
		"upload.default_column":             d.Upload.DefaultColumn,
		"upload.auto_column":                d.Upload.AutoColumn,
		"ui.port":                           d.UI.Port,
		"ui.auto_open":                      d.UI.AutoOpen,
		"ui.session_secret":                 d.UI.SessionSecret,
		"ui.session_ttl":                    d.UI.SessionTTL.String(),
		"verbose":                           d.Verbose,
		"output":                            d.OutputFormat,
		"log_format":                        d.LogFormat,
		"log_file":                          d.LogFile,
	}
}

// BackendClientConfig converts the backend section into a client config.
func (c *Config) BackendClientConfig() backend.Config {
	return backend.Config{
		BaseURL: c.Backend.URL,
		Timeout: c.Backend.Timeout,
		Fields: backend.Fields{
			Text:   c.Backend.Fields.Text,
			Column: c.Backend.Fields.Column,
			File:   c.Backend.Fields.File,
		},
		ColumnNotFoundPatterns: c.Backend.ColumnNotFoundPatterns,
	}
}
