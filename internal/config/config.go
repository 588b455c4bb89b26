package config

import "time"

// Config represents the complete dummy configuration
type Config struct {
	Listen   ListenConfig   `yaml:"listen"`
	Filter   FilterConfig   `yaml:"filter"`
	Upstream UpstreamConfig `yaml:"upstream"`
	Mock     MockConfig     `yaml:"mock"`
	Capture  CaptureConfig  `yaml:"capture"`
	History  HistoryConfig  `yaml:"history"`
	Logging  LoggingConfig  `yaml:"logging"`
	Tracing  TracingConfig  `yaml:"tracing"`
}

// ListenConfig defines the HTTP listener.
type ListenConfig struct {
	Port              int           `yaml:"port"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
	IdleTimeout       time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
}

// FilterConfig selects which requests are kept out of stats and history.
type FilterConfig struct {
	IgnorePaths          []string `yaml:"ignore_paths"`
	IgnoreHealthCheck    bool     `yaml:"ignore_health_check"`
	HealthCheckUserAgent string   `yaml:"health_check_user_agent"`
}

// UpstreamConfig defines the optional upstream. An empty Endpoint means mock mode.
type UpstreamConfig struct {
	Endpoint    string          `yaml:"endpoint"`
	Timeout     time.Duration   `yaml:"timeout"`      // <0 disables the deadline
	RewriteHost bool            `yaml:"rewrite_host"` // send the upstream host instead of the inbound Host
	Transport   TransportConfig `yaml:"transport"`
}

// Enabled reports whether requests are forwarded.
func (u UpstreamConfig) Enabled() bool {
	return u.Endpoint != ""
}

// TransportConfig overrides connection pool settings for the upstream client.
type TransportConfig struct {
	MaxIdleConns          int           `yaml:"max_idle_conns"`
	MaxIdleConnsPerHost   int           `yaml:"max_idle_conns_per_host"`
	MaxConnsPerHost       int           `yaml:"max_conns_per_host"`
	IdleConnTimeout       time.Duration `yaml:"idle_conn_timeout"`
	DialTimeout           time.Duration `yaml:"dial_timeout"`
	TLSHandshakeTimeout   time.Duration `yaml:"tls_handshake_timeout"`
	ResponseHeaderTimeout time.Duration `yaml:"response_header_timeout"`
	DisableKeepAlives     bool          `yaml:"disable_keep_alives"`
	InsecureSkipVerify    bool          `yaml:"insecure_skip_verify"`
	CAFile                string        `yaml:"ca_file"`
	ForceHTTP2            *bool         `yaml:"force_http2"`
}

// MockConfig is the fixed response of the catch-all route in mock mode.
type MockConfig struct {
	StatusCode int               `yaml:"status_code"`
	Body       string            `yaml:"body"`
	Headers    map[string]string `yaml:"headers"`
}

// CaptureConfig controls how request bodies are turned into recorded text.
type CaptureConfig struct {
	DecodeContentEncoding bool  `yaml:"decode_content_encoding"`
	MaxDecodedSize        int64 `yaml:"max_decoded_size"`
}

// HistoryConfig bounds the recent interaction log. 0 keeps everything.
// Stats are not bounded: dropped entries stay counted in /dummy/stats.
type HistoryConfig struct {
	MaxEntries int `yaml:"max_entries"`
}

// LoggingConfig defines logging settings
type LoggingConfig struct {
	Level    string            `yaml:"level"`
	Output   string            `yaml:"output"`
	Rotation LogRotationConfig `yaml:"rotation"`
}

// LogRotationConfig defines log file rotation settings (powered by lumberjack).
type LogRotationConfig struct {
	MaxSize    int  `yaml:"max_size"`    // max megabytes before rotation (default 100)
	MaxBackups int  `yaml:"max_backups"` // old rotated files to keep (default 3)
	MaxAge     int  `yaml:"max_age"`     // days to retain old files (default 28)
	Compress   bool `yaml:"compress"`    // gzip rotated files (default true)
	LocalTime  bool `yaml:"local_time"`  // use local time in backup filenames (default false)
}

// TracingConfig defines OpenTelemetry export of upstream call spans.
type TracingConfig struct {
	Enabled     bool              `yaml:"enabled"`
	Endpoint    string            `yaml:"endpoint"`
	ServiceName string            `yaml:"service_name"`
	SampleRate  float64           `yaml:"sample_rate"` // 0.0 to 1.0
	Insecure    bool              `yaml:"insecure"`
	Headers     map[string]string `yaml:"headers"`
}

// Default values shared by the env and file loaders.
const (
	DefaultPort                 = 8888
	DefaultIgnorePath           = "/favicon.ico, /ignoreme"
	DefaultHealthCheckUserAgent = "ELB-HealthChecker/2.0"
	DefaultMockBody             = `{"message": "Oops"}`
	DefaultUpstreamTimeout      = 30 * time.Second
	DefaultMaxDecodedSize       = 10 << 20
)

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Listen: ListenConfig{
			Port:              DefaultPort,
			ReadHeaderTimeout: 15 * time.Second,
			IdleTimeout:       60 * time.Second,
			ShutdownTimeout:   10 * time.Second,
		},
		Filter: FilterConfig{
			IgnorePaths:          SplitList(DefaultIgnorePath),
			IgnoreHealthCheck:    true,
			HealthCheckUserAgent: DefaultHealthCheckUserAgent,
		},
		Upstream: UpstreamConfig{
			Timeout: DefaultUpstreamTimeout,
		},
		Mock: MockConfig{
			StatusCode: 500,
			Body:       DefaultMockBody,
			Headers:    map[string]string{"Content-Type": "application/json"},
		},
		Capture: CaptureConfig{
			MaxDecodedSize: DefaultMaxDecodedSize,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: "stdout",
			Rotation: LogRotationConfig{
				MaxSize:    100,
				MaxBackups: 3,
				MaxAge:     28,
				Compress:   true,
			},
		},
		Tracing: TracingConfig{
			ServiceName: "dummy",
			SampleRate:  1.0,
		},
	}
}
