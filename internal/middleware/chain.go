// Package middleware holds the handler wrappers applied to every inbound request.
package middleware

import "net/http"

// Middleware wraps an http.Handler
type Middleware func(http.Handler) http.Handler

// Chain is an ordered list of middlewares. The first one runs outermost.
type Chain struct {
	middlewares []Middleware
}

// NewChain creates a chain
func NewChain(middlewares ...Middleware) *Chain {
	return &Chain{middlewares: middlewares}
}

// Then wraps h with every middleware in the chain
func (c *Chain) Then(h http.Handler) http.Handler {
	for i := len(c.middlewares) - 1; i >= 0; i-- {
		h = c.middlewares[i](h)
	}
	return h
}

// Append returns a new chain with middlewares added at the end
func (c *Chain) Append(middlewares ...Middleware) *Chain {
	out := make([]Middleware, 0, len(c.middlewares)+len(middlewares))
	out = append(out, c.middlewares...)
	out = append(out, middlewares...)
	return &Chain{middlewares: out}
}

// Builder assembles a chain where some middlewares depend on configuration
type Builder struct {
	middlewares []Middleware
}

// NewBuilder creates an empty builder
func NewBuilder() *Builder {
	return &Builder{}
}

// Use adds m
func (b *Builder) Use(m Middleware) *Builder {
	b.middlewares = append(b.middlewares, m)
	return b
}

// UseIf adds m only when condition holds
func (b *Builder) UseIf(condition bool, m Middleware) *Builder {
	if condition {
		b.middlewares = append(b.middlewares, m)
	}
	return b
}

// Build returns the chain
func (b *Builder) Build() *Chain {
	return NewChain(b.middlewares...)
}

// Handler wraps h with the built chain
func (b *Builder) Handler(h http.Handler) http.Handler {
	return b.Build().Then(h)
}
