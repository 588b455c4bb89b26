package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLoggingFields(t *testing.T) {
	core, obs := observer.New(zapcore.InfoLevel)
	mw := LoggingWithConfig(LoggingConfig{Logger: zap.New(core)})

	final := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte("created"))
	}))

	req := httptest.NewRequest("POST", "/items?foo=bar", nil)
	req.Header.Set("User-Agent", "test-agent")
	rr := httptest.NewRecorder()
	final.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Errorf("expected status 201, got %d", rr.Code)
	}

	entries := obs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["method"] != "POST" {
		t.Errorf("method = %v", fields["method"])
	}
	if fields["path"] != "/items" {
		t.Errorf("path = %v", fields["path"])
	}
	if fields["query"] != "foo=bar" {
		t.Errorf("query = %v", fields["query"])
	}
	if fields["status"] != int64(201) {
		t.Errorf("status = %v", fields["status"])
	}
	if fields["body_bytes"] != int64(7) {
		t.Errorf("body_bytes = %v", fields["body_bytes"])
	}
	if fields["user_agent"] != "test-agent" {
		t.Errorf("user_agent = %v", fields["user_agent"])
	}
	if _, ok := fields["interaction_id"]; ok {
		t.Error("interaction_id should be absent when nothing was recorded")
	}
}

func TestLoggingAnnotations(t *testing.T) {
	core, obs := observer.New(zapcore.InfoLevel)
	mw := LoggingWithConfig(LoggingConfig{Logger: zap.New(core)})

	final := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ann := GetAnnotations(r)
		if ann == nil {
			t.Fatal("annotations missing from request")
		}
		ann.InteractionID = "abc"
		ann.Recorded = true
		ann.Mode = "proxy"
		ann.UpstreamError = "connection refused"
		w.WriteHeader(http.StatusBadGateway)
	}))

	final.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/x", nil))

	fields := obs.All()[0].ContextMap()
	if fields["interaction_id"] != "abc" {
		t.Errorf("interaction_id = %v", fields["interaction_id"])
	}
	if fields["recorded"] != true {
		t.Errorf("recorded = %v", fields["recorded"])
	}
	if fields["mode"] != "proxy" {
		t.Errorf("mode = %v", fields["mode"])
	}
	if fields["upstream_error"] != "connection refused" {
		t.Errorf("upstream_error = %v", fields["upstream_error"])
	}
}

func TestLoggingSharesOuterAnnotations(t *testing.T) {
	core, obs := observer.New(zapcore.InfoLevel)
	h := NewChain(Annotate(), LoggingWithConfig(LoggingConfig{Logger: zap.New(core)})).
		Then(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			GetAnnotations(r).InteractionID = "outer"
		}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))

	if got := obs.All()[0].ContextMap()["interaction_id"]; got != "outer" {
		t.Errorf("interaction_id = %v, want outer", got)
	}
}

func TestLoggingSkipPaths(t *testing.T) {
	core, obs := observer.New(zapcore.InfoLevel)
	mw := LoggingWithConfig(LoggingConfig{
		SkipPaths: []string{"/dummy/health"},
		Logger:    zap.New(core),
	})
	final := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	final.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/dummy/health", nil))
	if n := obs.Len(); n != 0 {
		t.Errorf("expected skipped path to produce no log, got %d entries", n)
	}

	final.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/dummy/health/x", nil))
	if n := obs.Len(); n != 1 {
		t.Errorf("expected 1 entry for non-skipped path, got %d", n)
	}
}

func TestLoggingResponseWriterDefaults(t *testing.T) {
	rr := httptest.NewRecorder()
	lrw := &loggingResponseWriter{ResponseWriter: rr, status: http.StatusOK}

	lrw.Write([]byte("abc"))
	lrw.Write([]byte("de"))

	if lrw.status != http.StatusOK {
		t.Errorf("expected implicit 200, got %d", lrw.status)
	}
	if lrw.bytes != 5 {
		t.Errorf("expected 5 bytes, got %d", lrw.bytes)
	}
	if lrw.Unwrap() != rr {
		t.Error("Unwrap should return the wrapped writer")
	}

	lrw.Flush()
	if !rr.Flushed {
		t.Error("Flush should delegate to the wrapped writer")
	}
}
