package config

import (
	"fmt"
	"net/url"
	"slices"
)

// OutputModes and LogFormats list the accepted values.
var (
	OutputModes = []string{"auto", "text", "markdown", "json"}
	LogFormats  = []string{"text", "json"}
)

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Backend.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("backend.url %q must be an absolute http(s) URL\nHint: set it in leaptext.yaml, LEAPTEXT_BACKEND__URL or --backend", c.Backend.URL)
	}
	if c.Backend.Timeout <= 0 {
		return fmt.Errorf("backend.timeout must be positive, got %s", c.Backend.Timeout)
	}
	if c.Upload.MaxSize <= 0 {
		return fmt.Errorf("upload.max_size must be positive, got %d", c.Upload.MaxSize)
	}
	if c.UI.Port < 0 || c.UI.Port > 65535 {
		return fmt.Errorf("ui.port %d is out of range", c.UI.Port)
	}
	if c.UI.SessionTTL <= 0 {
		return fmt.Errorf("ui.session_ttl must be positive, got %s", c.UI.SessionTTL)
	}
	if c.OutputFormat != "" && !slices.Contains(OutputModes, c.OutputFormat) {
		return fmt.Errorf("unknown output format %q (expected one of %v)", c.OutputFormat, OutputModes)
	}
	if c.LogFormat != "" && !slices.Contains(LogFormats, c.LogFormat) {
		return fmt.Errorf("unknown log format %q (expected one of %v)", c.LogFormat, LogFormats)
	}
	return nil
}
