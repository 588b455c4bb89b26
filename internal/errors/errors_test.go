package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNew(t *testing.T) {
	e := New(400, "bad request")
	if e.Code != 400 {
		t.Errorf("Code = %d, want 400", e.Code)
	}
	if e.Error() != "bad request" {
		t.Errorf("Error() = %q, want %q", e.Error(), "bad request")
	}
}

func TestWrap(t *testing.T) {
	inner := fmt.Errorf("connection refused")
	e := Wrap(inner, 502, "upstream error")

	want := "upstream error: connection refused"
	if e.Error() != want {
		t.Errorf("Error() = %q, want %q", e.Error(), want)
	}
	if !errors.Is(e, inner) {
		t.Error("errors.Is should find the underlying error")
	}
}

func TestWithDetailsDoesNotMutateBase(t *testing.T) {
	e := ErrBadGateway.WithDetails("dial tcp: connection refused")

	if e.Details != "dial tcp: connection refused" {
		t.Errorf("Details = %q", e.Details)
	}
	if ErrBadGateway.Details != "" {
		t.Error("WithDetails mutated the base error")
	}
	if e.Code != http.StatusBadGateway {
		t.Errorf("Code = %d, want 502", e.Code)
	}
}

func TestWithInteractionID(t *testing.T) {
	e := ErrGatewayTimeout.WithDetails("deadline").WithInteractionID("abc")
	if e.InteractionID != "abc" || e.Details != "deadline" {
		t.Errorf("got %+v", e)
	}
}

func TestWriteJSON(t *testing.T) {
	tests := []struct {
		name string
		err  *HTTPError
	}{
		{"pre-serialized", ErrBadGateway},
		{"with details", ErrBadGateway.WithDetails("boom")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tt.err.WriteJSON(rec)

			if rec.Code != tt.err.Code {
				t.Errorf("status = %d, want %d", rec.Code, tt.err.Code)
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q", ct)
			}
			var body HTTPError
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Message != tt.err.Message || body.Details != tt.err.Details {
				t.Errorf("body = %+v, want %+v", body, tt.err)
			}
		})
	}
}

func TestAs(t *testing.T) {
	if _, ok := As(ErrBadRequest); !ok {
		t.Error("As should match *HTTPError")
	}
	if _, ok := As(fmt.Errorf("plain")); ok {
		t.Error("As should not match a plain error")
	}
}
