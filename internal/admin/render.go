package admin

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/wudi/dummy/internal/errors"
)

type format int

const (
	formatJSON format = iota
	formatHTML
)

// negotiate picks the rendering: ?format= wins, then an Accept header
// that asks for text/html, then JSON.
func negotiate(r *http.Request) (format, error) {
	switch strings.ToLower(r.URL.Query().Get("format")) {
	case "json":
		return formatJSON, nil
	case "html":
		return formatHTML, nil
	case "":
	default:
		return formatJSON, fmt.Errorf("format must be json or html, got %q", r.URL.Query().Get("format"))
	}

	for _, part := range strings.Split(r.Header.Get("Accept"), ",") {
		mediaType, _, _ := strings.Cut(strings.TrimSpace(part), ";")
		if strings.EqualFold(strings.TrimSpace(mediaType), "text/html") {
			return formatHTML, nil
		}
	}
	return formatJSON, nil
}

// parseBool accepts the usual spellings of a boolean query value.
func parseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes", "on", "t", "y":
		return true, nil
	case "false", "0", "no", "off", "f", "n":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean %q", s)
}

type viewerData struct {
	Title     string
	Summary   string
	JSON      string
	JSONQuery string
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, f format, title, summary string, v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		h.logger.Error("failed to encode response", zap.String("path", r.URL.Path), zap.Error(err))
		errors.ErrInternalServer.WithDetails(err.Error()).WriteJSON(w)
		return
	}

	if f == formatHTML {
		q := r.URL.Query()
		q.Set("format", "json")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := h.viewerTpl.Execute(w, viewerData{
			Title:     title,
			Summary:   summary,
			JSON:      string(data),
			JSONQuery: q.Encode(),
		}); err != nil {
			h.logger.Debug("failed to render viewer", zap.Error(err))
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(append(data, '\n'))
}

func badRequest(w http.ResponseWriter, err error) {
	errors.ErrBadRequest.WithDetails(err.Error()).WriteJSON(w)
}
