package config

import (
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
)

// Environment variables read at startup.
const (
	EnvIgnorePath          = "IGNORE_PATH"
	EnvIgnoreHealthCheck   = "IGNORE_HEALTH_CHECK"
	EnvUpstreamEndpoint    = "UPSTREAM_ENDPOINT"
	EnvUpstreamTimeout     = "UPSTREAM_TIMEOUT"
	EnvUpstreamRewriteHost = "UPSTREAM_REWRITE_HOST"
	EnvPort                = "PORT"
	EnvLogLevel            = "LOG_LEVEL"
	EnvLogOutput           = "LOG_OUTPUT"
	EnvHistoryMaxEntries   = "HISTORY_MAX_ENTRIES"
	EnvTracingEndpoint     = "TRACING_ENDPOINT"
)

// Loader handles configuration loading and parsing
type Loader struct {
	envPattern *regexp.Regexp
	lookupEnv  func(string) (string, bool)
}

// NewLoader creates a new configuration loader
func NewLoader() *Loader {
	return &Loader{
		envPattern: regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`),
		lookupEnv:  os.LookupEnv,
	}
}

// LoadFromEnv builds the configuration from defaults and environment variables.
func (l *Loader) LoadFromEnv() (*Config, error) {
	cfg := DefaultConfig()
	if err := l.ApplyEnv(cfg); err != nil {
		return nil, err
	}
	if err := l.validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Load reads a YAML configuration file. Environment variables override file values.
func (l *Loader) Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return l.Parse(data)
}

// Parse parses configuration from YAML bytes
func (l *Loader) Parse(data []byte) (*Config, error) {
	expanded := l.expandEnvVars(string(data))

	cfg := DefaultConfig()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := l.ApplyEnv(cfg); err != nil {
		return nil, err
	}

	if err := l.validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// ApplyEnv overrides cfg with any environment variables that are set.
func (l *Loader) ApplyEnv(cfg *Config) error {
	if v, ok := l.lookupEnv(EnvIgnorePath); ok {
		cfg.Filter.IgnorePaths = SplitList(v)
	}

	if v, ok := l.lookupEnv(EnvIgnoreHealthCheck); ok {
		b, err := parseIntBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvIgnoreHealthCheck, err)
		}
		cfg.Filter.IgnoreHealthCheck = b
	}

	if v, ok := l.lookupEnv(EnvUpstreamEndpoint); ok {
		cfg.Upstream.Endpoint = strings.TrimSpace(v)
	}

	if v, ok := l.lookupEnv(EnvUpstreamTimeout); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvUpstreamTimeout, err)
		}
		cfg.Upstream.Timeout = d
	}

	if v, ok := l.lookupEnv(EnvUpstreamRewriteHost); ok {
		b, err := parseIntBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvUpstreamRewriteHost, err)
		}
		cfg.Upstream.RewriteHost = b
	}

	if v, ok := l.lookupEnv(EnvPort); ok {
		port, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: invalid port %q", EnvPort, v)
		}
		cfg.Listen.Port = port
	}

	if v, ok := l.lookupEnv(EnvLogLevel); ok {
		cfg.Logging.Level = v
	}
	if v, ok := l.lookupEnv(EnvLogOutput); ok {
		cfg.Logging.Output = v
	}

	if v, ok := l.lookupEnv(EnvHistoryMaxEntries); ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: invalid number %q", EnvHistoryMaxEntries, v)
		}
		cfg.History.MaxEntries = n
	}

	if v, ok := l.lookupEnv(EnvTracingEndpoint); ok && v != "" {
		cfg.Tracing.Enabled = true
		cfg.Tracing.Endpoint = v
	}

	return nil
}

// expandEnvVars replaces ${VAR_NAME} with environment variable values
func (l *Loader) expandEnvVars(input string) string {
	return l.envPattern.ReplaceAllStringFunc(input, func(match string) string {
		varName := strings.TrimPrefix(strings.TrimSuffix(match, "}"), "${")
		if value, exists := l.lookupEnv(varName); exists {
			return value
		}
		return match // Keep original if env var not set
	})
}

// validate checks configuration for errors
func (l *Loader) validate(cfg *Config) error {
	if cfg.Listen.Port <= 0 || cfg.Listen.Port > 65535 {
		return fmt.Errorf("listen port %d out of range", cfg.Listen.Port)
	}

	if cfg.Upstream.Enabled() {
		u, err := url.Parse(cfg.Upstream.Endpoint)
		if err != nil {
			return fmt.Errorf("upstream endpoint: %w", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("upstream endpoint %q: scheme must be http or https", cfg.Upstream.Endpoint)
		}
		if u.Host == "" {
			return fmt.Errorf("upstream endpoint %q: host is required", cfg.Upstream.Endpoint)
		}
		if u.RawQuery != "" || u.Fragment != "" {
			return fmt.Errorf("upstream endpoint %q: query and fragment are not allowed", cfg.Upstream.Endpoint)
		}
	}

	if cfg.Mock.StatusCode < 100 || cfg.Mock.StatusCode > 599 {
		return fmt.Errorf("mock status_code %d is not a valid HTTP status", cfg.Mock.StatusCode)
	}

	if cfg.History.MaxEntries < 0 {
		return fmt.Errorf("history max_entries must not be negative")
	}

	if cfg.Capture.MaxDecodedSize <= 0 {
		cfg.Capture.MaxDecodedSize = DefaultMaxDecodedSize
	}

	if cfg.Upstream.Timeout == 0 {
		cfg.Upstream.Timeout = DefaultUpstreamTimeout
	}

	if cfg.Tracing.Enabled {
		if cfg.Tracing.SampleRate < 0 || cfg.Tracing.SampleRate > 1 {
			return fmt.Errorf("tracing sample_rate must be between 0 and 1")
		}
	}

	return nil
}

// SplitList splits a comma-separated list, trimming whitespace and dropping empty items.
func SplitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// parseIntBool accepts integers (0 is false) as well as strconv.ParseBool values.
func parseIntBool(s string) (bool, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		return n != 0, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid boolean %q", s)
	}
	return b, nil
}
