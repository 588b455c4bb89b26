package middleware

import (
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/wudi/dummy/internal/logging"
)

var loggingRWPool = sync.Pool{
	New: func() any { return &loggingResponseWriter{} },
}

// LoggingConfig configures the access log middleware
type LoggingConfig struct {
	// SkipPaths are request paths that are never logged
	SkipPaths []string
	// Logger defaults to the global logger
	Logger *zap.Logger
}

// Logging creates an access log middleware that logs every request
func Logging() Middleware {
	return LoggingWithConfig(LoggingConfig{})
}

// LoggingWithConfig creates an access log middleware
func LoggingWithConfig(cfg LoggingConfig) Middleware {
	skipPaths := make(map[string]bool, len(cfg.SkipPaths))
	for _, p := range cfg.SkipPaths {
		skipPaths[p] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if skipPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			r, ann := withAnnotations(r)

			lrw := loggingRWPool.Get().(*loggingResponseWriter)
			lrw.ResponseWriter = w
			lrw.status = http.StatusOK
			lrw.bytes = 0

			next.ServeHTTP(lrw, r)

			var fields [12]zap.Field
			n := 0
			fields[n] = zap.String("remote_addr", r.RemoteAddr); n++
			fields[n] = zap.String("method", r.Method); n++
			fields[n] = zap.String("path", r.URL.Path); n++
			fields[n] = zap.Int("status", lrw.status); n++
			fields[n] = zap.Int64("body_bytes", lrw.bytes); n++
			fields[n] = zap.Duration("response_time", time.Since(start)); n++
			if r.URL.RawQuery != "" {
				fields[n] = zap.String("query", r.URL.RawQuery); n++
			}
			if ua := r.UserAgent(); ua != "" {
				fields[n] = zap.String("user_agent", ua); n++
			}
			if ann.InteractionID != "" {
				fields[n] = zap.String("interaction_id", ann.InteractionID); n++
				fields[n] = zap.Bool("recorded", ann.Recorded); n++
			}
			if ann.Mode != "" {
				fields[n] = zap.String("mode", ann.Mode); n++
			}
			if ann.UpstreamError != "" {
				fields[n] = zap.String("upstream_error", ann.UpstreamError); n++
			}

			if cfg.Logger != nil {
				cfg.Logger.Info("HTTP request", fields[:n]...)
			} else {
				logging.Info("HTTP request", fields[:n]...)
			}

			lrw.ResponseWriter = nil
			loggingRWPool.Put(lrw)
		})
	}
}

// loggingResponseWriter captures status and bytes written
type loggingResponseWriter struct {
	http.ResponseWriter
	status int
	bytes  int64
}

func (lrw *loggingResponseWriter) WriteHeader(status int) {
	lrw.status = status
	lrw.ResponseWriter.WriteHeader(status)
}

func (lrw *loggingResponseWriter) Write(b []byte) (int, error) {
	n, err := lrw.ResponseWriter.Write(b)
	lrw.bytes += int64(n)
	return n, err
}

// Flush implements http.Flusher
func (lrw *loggingResponseWriter) Flush() {
	if f, ok := lrw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap lets http.ResponseController reach the underlying writer
func (lrw *loggingResponseWriter) Unwrap() http.ResponseWriter {
	return lrw.ResponseWriter
}
