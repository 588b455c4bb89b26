package recorder

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/wudi/dummy/internal/capture"
)

// Count is one stat entry.
type Count struct {
	Key   string
	Count int64
}

// Counts is an ordered stat mapping. It marshals to a JSON object whose
// member order is the slice order.
type Counts []Count

// MarshalJSON implements json.Marshaler.
func (c Counts) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range c {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(e.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		fmt.Fprintf(&buf, "%d", e.Count)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON implements json.Unmarshaler, keeping document order.
// It lets clients of /dummy/stats decode the response back into Counts.
func (c *Counts) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("counts: expected object, got %v", tok)
	}
	out := Counts{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := tok.(string)
		var n int64
		if err := dec.Decode(&n); err != nil {
			return fmt.Errorf("counts: value of %q: %w", key, err)
		}
		out = append(out, Count{Key: key, Count: n})
	}
	*c = out
	return nil
}

// Get returns the count for key, or 0.
func (c Counts) Get(key string) int64 {
	for _, e := range c {
		if e.Key == key {
			return e.Count
		}
	}
	return 0
}

// PathKey is the "{METHOD} {PATH}" stat key.
func PathKey(req *capture.Request) string {
	return req.Method + " " + req.Path()
}

// URLKey is the "{METHOD} {PATH_WITH_QUERY}" stat key.
func URLKey(req *capture.Request) string {
	return req.Method + " " + req.URL
}

// counter keeps counts in first-seen order.
type counter struct {
	index   map[string]int
	entries []Count
}

func newCounter() *counter {
	return &counter{index: make(map[string]int)}
}

func (c *counter) incr(key string) {
	if i, ok := c.index[key]; ok {
		c.entries[i].Count++
		return
	}
	c.index[key] = len(c.entries)
	c.entries = append(c.entries, Count{Key: key, Count: 1})
}

// sorted returns a copy ordered by count descending, ties in first-seen order.
func (c *counter) sorted() Counts {
	out := make(Counts, len(c.entries))
	copy(out, c.entries)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Count > out[j].Count
	})
	return out
}

// Stats aggregates request counts by path and by path with query.
// It is not safe for concurrent use on its own; Store serializes access.
type Stats struct {
	byPath *counter
	byURL  *counter
}

// NewStats creates empty stats.
func NewStats() *Stats {
	return &Stats{byPath: newCounter(), byURL: newCounter()}
}

// Record counts req once in both mappings.
func (s *Stats) Record(req *capture.Request) {
	s.byPath.incr(PathKey(req))
	s.byURL.incr(URLKey(req))
}

// Snapshot returns the mapping keyed with (true) or without (false) the query string.
func (s *Stats) Snapshot(withQuery bool) Counts {
	if withQuery {
		return s.byURL.sorted()
	}
	return s.byPath.sorted()
}

// Reset clears both mappings.
func (s *Stats) Reset() {
	s.byPath = newCounter()
	s.byURL = newCounter()
}

// Len returns the number of distinct keys in each mapping.
func (s *Stats) Len() (paths, urls int) {
	return len(s.byPath.entries), len(s.byURL.entries)
}
