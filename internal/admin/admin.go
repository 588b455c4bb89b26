// Package admin serves the /dummy/* endpoints for inspecting and resetting
// what has been recorded.
package admin

import (
	"fmt"
	"html/template"
	"net/http"

	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"

	"github.com/wudi/dummy/internal/logging"
	"github.com/wudi/dummy/internal/recorder"
)

// Route paths
const (
	PathHealth = "/dummy/health"
	PathStats  = "/dummy/stats"
	PathRecent = "/dummy/recent"
	PathFlush  = "/dummy/flush"
)

var (
	healthBody = []byte(`{"status":"ok"}` + "\n")
	flushBody  = []byte(`{"message":"ok"}` + "\n")
)

// Handler serves the admin endpoints.
type Handler struct {
	store     *recorder.Store
	viewerTpl *template.Template
	logger    *zap.Logger
}

// NewHandler creates the admin handler. logger may be nil.
func NewHandler(store *recorder.Store, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = logging.Global()
	}
	return &Handler{
		store:     store,
		viewerTpl: template.Must(template.New("viewer").Parse(viewerHTML)),
		logger:    logger,
	}
}

// RegisterRoutes registers the admin endpoints for GET.
func (h *Handler) RegisterRoutes(router *httprouter.Router) {
	router.HandlerFunc(http.MethodGet, PathHealth, h.Health)
	router.HandlerFunc(http.MethodGet, PathStats, h.Stats)
	router.HandlerFunc(http.MethodGet, PathRecent, h.Recent)
	router.HandlerFunc(http.MethodGet, PathFlush, h.Flush)
}

// Health always answers 200.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(healthBody)
}

// Stats returns request counts keyed with the query string (query=true, the
// default) or without it, most frequent first.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	withQuery := true
	if v := r.URL.Query().Get("query"); v != "" {
		b, err := parseBool(v)
		if err != nil {
			badRequest(w, fmt.Errorf("query: %w", err))
			return
		}
		withQuery = b
	}
	f, err := negotiate(r)
	if err != nil {
		badRequest(w, err)
		return
	}

	counts := h.store.Stats(withQuery)
	var total int64
	for _, c := range counts {
		total += c.Count
	}
	keyedBy := "path and query"
	if !withQuery {
		keyedBy = "path"
	}
	h.render(w, r, f, "stats", fmt.Sprintf("%d requests, %d keys by %s", total, len(counts), keyedBy), counts)
}

// Recent returns every recorded interaction, most recent first.
func (h *Handler) Recent(w http.ResponseWriter, r *http.Request) {
	f, err := negotiate(r)
	if err != nil {
		badRequest(w, err)
		return
	}

	recent := h.store.Recent()
	h.render(w, r, f, "recent", fmt.Sprintf("%d interactions, newest first", len(recent)), recent)
}

// Flush clears stats and history.
func (h *Handler) Flush(w http.ResponseWriter, r *http.Request) {
	dropped := h.store.Flush()
	h.logger.Info("recorded data flushed",
		zap.Int("interactions", dropped.Interactions),
		zap.Int("path_keys", dropped.PathKeys),
		zap.Int("url_keys", dropped.URLKeys),
		zap.String("remote_addr", r.RemoteAddr),
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(flushBody)
}
