package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// HTTPError is an error answered to the caller as a JSON body.
type HTTPError struct {
	Code          int    `json:"code"`
	Message       string `json:"message"`
	Details       string `json:"details,omitempty"`
	InteractionID string `json:"interaction_id,omitempty"`
	underlying    error
}

func (e *HTTPError) Error() string {
	if e.underlying != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.underlying)
	}
	return e.Message
}

func (e *HTTPError) Unwrap() error {
	return e.underlying
}

// WriteJSON writes the error as JSON to the response.
// Base errors are written from pre-serialized bytes.
func (e *HTTPError) WriteJSON(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.Code)
	if pre, ok := preSerialized[e]; ok {
		w.Write(pre)
		return
	}
	json.NewEncoder(w).Encode(e)
}

// Common errors
var (
	ErrBadRequest = &HTTPError{
		Code:    http.StatusBadRequest,
		Message: "Bad Request",
	}

	ErrInternalServer = &HTTPError{
		Code:    http.StatusInternalServerError,
		Message: "Internal Server Error",
	}

	ErrBadGateway = &HTTPError{
		Code:    http.StatusBadGateway,
		Message: "Bad Gateway",
	}

	ErrGatewayTimeout = &HTTPError{
		Code:    http.StatusGatewayTimeout,
		Message: "Gateway Timeout",
	}
)

var preSerialized map[*HTTPError][]byte

func init() {
	bases := []*HTTPError{
		ErrBadRequest, ErrInternalServer, ErrBadGateway, ErrGatewayTimeout,
	}
	preSerialized = make(map[*HTTPError][]byte, len(bases))
	for _, e := range bases {
		b, _ := json.Marshal(e)
		b = append(b, '\n') // match json.Encoder behavior
		preSerialized[e] = b
	}
}

// New creates a new HTTPError
func New(code int, message string) *HTTPError {
	return &HTTPError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an error with an HTTP status and message
func Wrap(err error, code int, message string) *HTTPError {
	return &HTTPError{
		Code:       code,
		Message:    message,
		underlying: err,
	}
}

// WithDetails returns a copy of e carrying details
func (e *HTTPError) WithDetails(details string) *HTTPError {
	return &HTTPError{
		Code:          e.Code,
		Message:       e.Message,
		Details:       details,
		InteractionID: e.InteractionID,
		underlying:    e.underlying,
	}
}

// WithInteractionID returns a copy of e tagged with the recorded interaction ID
func (e *HTTPError) WithInteractionID(id string) *HTTPError {
	return &HTTPError{
		Code:          e.Code,
		Message:       e.Message,
		Details:       e.Details,
		InteractionID: id,
		underlying:    e.underlying,
	}
}

// As reports whether err is an *HTTPError.
func As(err error) (*HTTPError, bool) {
	if he, ok := err.(*HTTPError); ok {
		return he, true
	}
	return nil, false
}
