// Package filter decides which captured requests are kept out of stats and history.
package filter

import (
	"strings"

	"github.com/wudi/dummy/internal/capture"
	"github.com/wudi/dummy/internal/config"
)

// Decision is the outcome of evaluating a request.
type Decision int

const (
	Record Decision = iota
	Skip
)

func (d Decision) String() string {
	if d == Skip {
		return "skip"
	}
	return "record"
}

// Policy holds the ignore list and the health-check rule.
type Policy struct {
	ignorePaths     map[string]struct{}
	skipHealthCheck bool
	healthCheckUA   string
}

// New creates a Policy from config.
func New(cfg config.FilterConfig) *Policy {
	p := &Policy{
		ignorePaths:     make(map[string]struct{}, len(cfg.IgnorePaths)),
		skipHealthCheck: cfg.IgnoreHealthCheck,
		healthCheckUA:   cfg.HealthCheckUserAgent,
	}
	if p.healthCheckUA == "" {
		p.healthCheckUA = config.DefaultHealthCheckUserAgent
	}
	for _, path := range cfg.IgnorePaths {
		if path = strings.TrimSpace(path); path != "" {
			p.ignorePaths[path] = struct{}{}
		}
	}
	return p
}

// Evaluate returns Skip for ignored paths and, when enabled, for health-check probes.
func (p *Policy) Evaluate(req *capture.Request) Decision {
	if _, ok := p.ignorePaths[req.Path()]; ok {
		return Skip
	}
	if p.skipHealthCheck && req.Headers["user-agent"] == p.healthCheckUA {
		return Skip
	}
	return Record
}

// IgnorePaths returns the configured ignore list.
func (p *Policy) IgnorePaths() []string {
	out := make([]string, 0, len(p.ignorePaths))
	for path := range p.ignorePaths {
		out = append(out, path)
	}
	return out
}
