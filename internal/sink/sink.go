// Package sink is the catch-all handler: it records every accepted request and
// answers either with the fixed mock response or with the upstream's response.
package sink

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/wudi/dummy/internal/capture"
	"github.com/wudi/dummy/internal/config"
	"github.com/wudi/dummy/internal/errors"
	"github.com/wudi/dummy/internal/filter"
	"github.com/wudi/dummy/internal/logging"
	"github.com/wudi/dummy/internal/middleware"
	"github.com/wudi/dummy/internal/proxy"
	"github.com/wudi/dummy/internal/recorder"
)

const (
	ModeMock  = "mock"
	ModeProxy = "proxy"
)

// Options wires a Handler.
type Options struct {
	Normalizer *capture.Normalizer
	Policy     *filter.Policy
	Store      *recorder.Store
	// Forwarder is nil in mock mode.
	Forwarder *proxy.Forwarder
	Mock      config.MockConfig
	// Decoder, when set, decodes content-encoded upstream bodies for the history.
	Decoder *capture.Decoder
	Logger  *zap.Logger
}

// Handler runs the record-and-respond pipeline.
type Handler struct {
	normalizer *capture.Normalizer
	policy     *filter.Policy
	store      *recorder.Store
	forwarder  *proxy.Forwarder
	decoder    *capture.Decoder
	logger     *zap.Logger

	mockStatus  int
	mockHeaders http.Header
	mockBody    []byte
}

// New creates a Handler.
func New(opts Options) *Handler {
	h := &Handler{
		normalizer: opts.Normalizer,
		policy:     opts.Policy,
		store:      opts.Store,
		forwarder:  opts.Forwarder,
		decoder:    opts.Decoder,
		logger:     opts.Logger,
		mockStatus: opts.Mock.StatusCode,
		mockBody:   []byte(opts.Mock.Body),
	}
	if h.normalizer == nil {
		h.normalizer = capture.NewNormalizer(capture.Options{})
	}
	if h.logger == nil {
		h.logger = logging.Global()
	}
	if h.mockStatus == 0 {
		h.mockStatus = http.StatusInternalServerError
	}
	h.mockHeaders = make(http.Header, len(opts.Mock.Headers)+1)
	for k, v := range opts.Mock.Headers {
		h.mockHeaders.Set(k, v)
	}
	if h.mockHeaders.Get("Content-Type") == "" {
		h.mockHeaders.Set("Content-Type", "application/json")
	}
	h.mockHeaders.Set("Content-Length", strconv.Itoa(len(h.mockBody)))
	return h
}

// Mode reports "mock" or "proxy".
func (h *Handler) Mode() string {
	if h.forwarder != nil {
		return ModeProxy
	}
	return ModeMock
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	req, err := h.normalizer.Normalize(r)
	if err != nil {
		h.logger.Warn("failed to read request", zap.String("path", r.URL.Path), zap.Error(err))
		errors.ErrBadRequest.WithDetails(err.Error()).WriteJSON(w)
		return
	}

	decision := h.policy.Evaluate(req)
	ann := middleware.GetAnnotations(r)
	if ann != nil {
		ann.Mode = h.Mode()
	}

	if h.forwarder == nil {
		if decision == filter.Record {
			h.record(ann, req, nil)
		}
		h.writeMock(w)
		return
	}

	resp, err := h.forwarder.Forward(r.Context(), req)
	if err != nil {
		httpErr, ok := errors.As(err)
		if !ok {
			httpErr = errors.ErrBadGateway.WithDetails(err.Error())
		}
		if ann != nil {
			ann.UpstreamError = httpErr.Details
		}
		h.logger.Warn("upstream request failed",
			zap.String("id", req.ID),
			zap.String("method", req.Method),
			zap.String("url", req.URL),
			zap.Int("status", httpErr.Code),
			zap.Error(err),
		)
		if decision == filter.Record {
			h.record(ann, req, &recorder.Response{Error: httpErr.Details})
			httpErr = httpErr.WithInteractionID(req.ID)
		}
		httpErr.WriteJSON(w)
		return
	}

	if decision == filter.Record {
		h.record(ann, req, h.responseRecord(resp))
	}
	h.writeUpstream(w, r, resp)
}

func (h *Handler) record(ann *middleware.Annotations, req *capture.Request, resp *recorder.Response) {
	h.store.Record(req, resp)
	if ann != nil {
		ann.InteractionID = req.ID
		ann.Recorded = true
	}

	fields := []zap.Field{
		zap.String("id", req.ID),
		zap.String("method", req.Method),
		zap.String("url", req.URL),
		zap.Reflect("request", req),
	}
	if resp != nil {
		if resp.Error != "" {
			fields = append(fields, zap.String("upstream_error", resp.Error))
		} else {
			fields = append(fields, zap.Int("status", resp.StatusCode))
		}
	}
	h.logger.Info("request recorded", fields...)
}

func (h *Handler) responseRecord(resp *proxy.Response) *recorder.Response {
	body := resp.Body
	if h.decoder != nil {
		if decoded, ok := h.decoder.Decode(resp.Header.Get("Content-Encoding"), body); ok {
			body = decoded
		}
	}
	return &recorder.Response{
		StatusCode: resp.StatusCode,
		Headers:    capture.FlattenHeaders(resp.Header, ""),
		Body:       capture.Text(body),
	}
}

// writeMock answers with the configured fixed response.
func (h *Handler) writeMock(w http.ResponseWriter) {
	header := w.Header()
	for k, vv := range h.mockHeaders {
		header[k] = vv
	}
	w.WriteHeader(h.mockStatus)
	w.Write(h.mockBody)
}

// writeUpstream relays the upstream response.
func (h *Handler) writeUpstream(w http.ResponseWriter, r *http.Request, resp *proxy.Response) {
	header := w.Header()
	for k, vv := range resp.Header {
		header[k] = vv
	}
	w.WriteHeader(resp.StatusCode)
	if r.Method == http.MethodHead || len(resp.Body) == 0 {
		return
	}
	if _, err := w.Write(resp.Body); err != nil {
		h.logger.Debug("failed to write response", zap.String("path", r.URL.Path), zap.Error(err))
	}
}
