package recorder

import "github.com/wudi/dummy/internal/capture"

// Response is what the recorded request got back from the upstream.
// Error is set instead of the other fields when the exchange failed.
type Response struct {
	StatusCode int               `json:"status_code,omitempty"`
	Headers    map[string]string `json:"headers,omitempty"`
	Body       string            `json:"body,omitempty"`
	Error      string            `json:"error,omitempty"`
}

// Interaction is a recorded request and, in proxy mode, its response.
type Interaction struct {
	*capture.Request
	Response *Response `json:"response,omitempty"`
}

// History is the ordered interaction log. maxEntries of 0 means unbounded.
// Like Stats it relies on Store for synchronization.
type History struct {
	entries    []Interaction
	maxEntries int
}

// NewHistory creates an empty log.
func NewHistory(maxEntries int) *History {
	return &History{maxEntries: maxEntries}
}

// Append adds it to the end of the log, dropping the oldest entry when bounded and full.
func (h *History) Append(it Interaction) {
	if h.maxEntries > 0 && len(h.entries) >= h.maxEntries {
		n := copy(h.entries, h.entries[len(h.entries)-h.maxEntries+1:])
		h.entries = h.entries[:n]
	}
	h.entries = append(h.entries, it)
}

// SnapshotReversed returns a copy of the log, most recent first.
func (h *History) SnapshotReversed() []Interaction {
	out := make([]Interaction, len(h.entries))
	for i, it := range h.entries {
		out[len(h.entries)-1-i] = it
	}
	return out
}

// Reset empties the log.
func (h *History) Reset() {
	h.entries = nil
}

// Len returns the number of entries.
func (h *History) Len() int {
	return len(h.entries)
}
