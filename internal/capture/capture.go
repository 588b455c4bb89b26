// Package capture turns inbound HTTP requests into canonical records.
package capture

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

func init() {
	// Batch crypto/rand reads into a pool to avoid a syscall per UUID.
	uuid.EnableRandPool()
}

// Request is the normalized form of an inbound request.
type Request struct {
	ID      string            `json:"id"`
	Time    time.Time         `json:"time"`
	Method  string            `json:"method"`
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers"`
	Cookies map[string]string `json:"cookies,omitempty"`
	Body    string            `json:"body,omitempty"`

	path        string
	escapedPath string
	rawQuery    string
	host        string
	header      http.Header
	rawBody     []byte
}

// Path is the URL path without the query string.
func (r *Request) Path() string { return r.path }

// EscapedPath is the path as it appeared on the wire.
func (r *Request) EscapedPath() string { return r.escapedPath }

// RawQuery is the undecoded query string, without the leading "?".
func (r *Request) RawQuery() string { return r.rawQuery }

// Host is the Host the request was sent to.
func (r *Request) Host() string { return r.host }

// Header returns the original multi-valued header. Callers must not modify it.
func (r *Request) Header() http.Header { return r.header }

// RawBody returns the body bytes exactly as received.
func (r *Request) RawBody() []byte { return r.rawBody }

// Normalizer builds Requests from *http.Request.
type Normalizer struct {
	decoder *Decoder // nil unless Content-Encoding decoding is enabled
	now     func() time.Time
}

// Options configures a Normalizer.
type Options struct {
	DecodeContentEncoding bool
	MaxDecodedSize        int64
}

// NewNormalizer creates a Normalizer.
func NewNormalizer(opts Options) *Normalizer {
	n := &Normalizer{now: time.Now}
	if opts.DecodeContentEncoding {
		n.decoder = NewDecoder(opts.MaxDecodedSize)
	}
	return n
}

// Normalize reads the full body of r and returns its canonical record.
// The body of r is replaced with an in-memory reader over the same bytes.
func (n *Normalizer) Normalize(r *http.Request) (*Request, error) {
	var raw []byte
	if r.Body != nil && r.Body != http.NoBody {
		var err error
		raw, err = io.ReadAll(r.Body)
		r.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("read request body: %w", err)
		}
		r.Body = io.NopCloser(bytes.NewReader(raw))
	}

	req := &Request{
		ID:          uuid.NewString(),
		Time:        n.now().UTC(),
		Method:      strings.ToUpper(r.Method),
		URL:         JoinURL(r.URL.Path, r.URL.RawQuery),
		Headers:     FlattenHeaders(r.Header, r.Host),
		path:        r.URL.Path,
		escapedPath: r.URL.EscapedPath(),
		rawQuery:    r.URL.RawQuery,
		host:        r.Host,
		header:      r.Header.Clone(),
		rawBody:     raw,
	}

	if cookies := r.Cookies(); len(cookies) > 0 {
		req.Cookies = make(map[string]string, len(cookies))
		for _, c := range cookies {
			req.Cookies[c.Name] = c.Value
		}
	}

	text := raw
	if n.decoder != nil {
		if decoded, ok := n.decoder.Decode(r.Header.Get("Content-Encoding"), raw); ok {
			text = decoded
		}
	}
	if len(text) > 0 {
		req.Body = Text(text)
	}

	return req, nil
}

// JoinURL appends "?"+rawQuery to path only when the query is non-empty.
func JoinURL(path, rawQuery string) string {
	if rawQuery == "" {
		return path
	}
	return path + "?" + rawQuery
}

// FlattenHeaders lower-cases header names and keeps the last value of each.
// net/http moves Host out of the header map, so it is put back when known.
func FlattenHeaders(h http.Header, host string) map[string]string {
	out := make(map[string]string, len(h)+1)
	if host != "" {
		out["host"] = host
	}
	for k, vv := range h {
		if len(vv) == 0 {
			continue
		}
		out[strings.ToLower(k)] = vv[len(vv)-1]
	}
	return out
}

// Text decodes b as UTF-8, replacing invalid sequences with U+FFFD.
func Text(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	return strings.ToValidUTF8(string(b), string(utf8.RuneError))
}
