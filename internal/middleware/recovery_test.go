package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRecovery(t *testing.T) {
	var loggedErr interface{}
	var loggedStack []byte

	final := RecoveryWithConfig(RecoveryConfig{
		PrintStack: true,
		LogFunc: func(err interface{}, stack []byte) {
			loggedErr = err
			loggedStack = stack
		},
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("custom panic")
	}))

	rr := httptest.NewRecorder()
	final.ServeHTTP(rr, httptest.NewRequest("GET", "/test", nil))

	if rr.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rr.Code)
	}
	if loggedErr != "custom panic" {
		t.Errorf("expected 'custom panic', got %v", loggedErr)
	}
	if len(loggedStack) == 0 {
		t.Error("expected stack trace")
	}

	var body map[string]interface{}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("response is not JSON: %v", err)
	}
	if body["details"] != "panic: custom panic" {
		t.Errorf("details = %v", body["details"])
	}
}

func TestRecoveryNoPanic(t *testing.T) {
	final := Recovery()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}))

	rr := httptest.NewRecorder()
	final.ServeHTTP(rr, httptest.NewRequest("GET", "/test", nil))

	if rr.Code != http.StatusOK || rr.Body.String() != "ok" {
		t.Errorf("unexpected response %d %q", rr.Code, rr.Body.String())
	}
}

func TestRecoveryWithoutStack(t *testing.T) {
	var loggedStack []byte
	called := false
	final := RecoveryWithConfig(RecoveryConfig{
		LogFunc: func(err interface{}, stack []byte) {
			called = true
			loggedStack = stack
		},
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("no stack")
	}))

	final.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))

	if !called {
		t.Fatal("LogFunc not called")
	}
	if loggedStack != nil {
		t.Error("stack should be nil when PrintStack is false")
	}
}

func TestRecoveryIncludesInteractionID(t *testing.T) {
	final := NewChain(Annotate(), RecoveryWithConfig(RecoveryConfig{})).
		Then(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			GetAnnotations(r).InteractionID = "id-123"
			panic("after recording")
		}))

	rr := httptest.NewRecorder()
	final.ServeHTTP(rr, httptest.NewRequest("GET", "/", nil))

	var body map[string]interface{}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("response is not JSON: %v", err)
	}
	if body["interaction_id"] != "id-123" {
		t.Errorf("interaction_id = %v", body["interaction_id"])
	}
}

func TestRecoveryRepanicsAbort(t *testing.T) {
	final := RecoveryWithConfig(RecoveryConfig{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	defer func() {
		if recover() != http.ErrAbortHandler {
			t.Error("expected ErrAbortHandler to propagate")
		}
	}()
	final.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))
}
