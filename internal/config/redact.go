package config

import (
	"fmt"
	"net/url"

	"github.com/goccy/go-yaml"
)

// RedactedValue is the placeholder string used for redacted secrets.
const RedactedValue = "[REDACTED]"

// Redacted returns a copy of c that is safe to print or log. Tracing
// exporter header values are masked and the upstream password is hidden.
// c is not modified.
func (c *Config) Redacted() *Config {
	cp := *c

	if len(c.Tracing.Headers) > 0 {
		cp.Tracing.Headers = make(map[string]string, len(c.Tracing.Headers))
		for k := range c.Tracing.Headers {
			cp.Tracing.Headers[k] = RedactedValue
		}
	}

	if u, err := url.Parse(c.Upstream.Endpoint); err == nil && u.User != nil {
		if _, ok := u.User.Password(); ok {
			u.User = url.UserPassword(u.User.Username(), RedactedValue)
		}
		cp.Upstream.Endpoint = u.String()
	}

	return &cp
}

// MarshalRedacted renders the redacted configuration as YAML.
func (c *Config) MarshalRedacted() ([]byte, error) {
	data, err := yaml.Marshal(c.Redacted())
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}
