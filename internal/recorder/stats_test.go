package recorder

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wudi/dummy/internal/capture"
)

func newRequest(t *testing.T, method, target string) *capture.Request {
	t.Helper()
	req, err := capture.NewNormalizer(capture.Options{}).Normalize(httptest.NewRequest(method, target, nil))
	require.NoError(t, err)
	return req
}

func TestStatsRecord(t *testing.T) {
	s := NewStats()
	s.Record(newRequest(t, "GET", "/a?x=1"))
	s.Record(newRequest(t, "GET", "/a?x=2"))
	s.Record(newRequest(t, "POST", "/a"))

	byPath := s.Snapshot(false)
	assert.Equal(t, Counts{{"GET /a", 2}, {"POST /a", 1}}, byPath)

	byURL := s.Snapshot(true)
	assert.Equal(t, Counts{{"GET /a?x=1", 1}, {"GET /a?x=2", 1}, {"POST /a", 1}}, byURL)
}

func TestStatsOrdering(t *testing.T) {
	s := NewStats()
	for _, target := range []string{"/b", "/a", "/c", "/a", "/c", "/a"} {
		s.Record(newRequest(t, "GET", target))
	}

	got := s.Snapshot(false)
	// counts descending, ties broken by first appearance
	assert.Equal(t, Counts{{"GET /a", 3}, {"GET /c", 2}, {"GET /b", 1}}, got)

	// snapshots are copies
	got[0].Count = 100
	assert.Equal(t, int64(3), s.Snapshot(false).Get("GET /a"))
}

func TestStatsTotalsMatch(t *testing.T) {
	s := NewStats()
	targets := []string{"/x", "/x?q=1", "/y", "/y?q=2", "/y?q=2", "/z"}
	for _, target := range targets {
		s.Record(newRequest(t, "DELETE", target))
	}

	var sumPath, sumURL int64
	for _, c := range s.Snapshot(false) {
		sumPath += c.Count
	}
	for _, c := range s.Snapshot(true) {
		sumURL += c.Count
	}
	assert.Equal(t, int64(len(targets)), sumPath)
	assert.Equal(t, sumPath, sumURL)
}

func TestStatsReset(t *testing.T) {
	s := NewStats()
	s.Record(newRequest(t, "GET", "/a"))
	s.Reset()

	assert.Empty(t, s.Snapshot(false))
	assert.Empty(t, s.Snapshot(true))
	paths, urls := s.Len()
	assert.Zero(t, paths)
	assert.Zero(t, urls)
}

func TestCountsJSON(t *testing.T) {
	c := Counts{{"GET /z", 5}, {"GET /a", 2}, {`GET /"q"`, 1}}

	data, err := json.Marshal(c)
	require.NoError(t, err)
	assert.Equal(t, `{"GET /z":5,"GET /a":2,"GET /\"q\"":1}`, string(data))

	var back Counts
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, c, back)

	data, err = json.Marshal(Counts{})
	require.NoError(t, err)
	assert.Equal(t, `{}`, string(data))
}

func TestCountsUnmarshalRejectsArray(t *testing.T) {
	var c Counts
	assert.Error(t, json.Unmarshal([]byte(`[1,2]`), &c))
}
