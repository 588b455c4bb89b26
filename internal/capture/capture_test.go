package capture

import (
	"bytes"
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	t.Run("url_without_query", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/orders", nil)

		got, err := NewNormalizer(Options{}).Normalize(req)
		require.NoError(t, err)

		assert.Equal(t, "GET", got.Method)
		assert.Equal(t, "/orders", got.URL)
		assert.Equal(t, "/orders", got.Path())
		assert.Empty(t, got.RawQuery())
		assert.Empty(t, got.Body)
		assert.Nil(t, got.Cookies)
		assert.NotEmpty(t, got.ID)
	})

	t.Run("url_with_query", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/orders?id=5&sort=desc", nil)

		got, err := NewNormalizer(Options{}).Normalize(req)
		require.NoError(t, err)

		assert.Equal(t, "/orders?id=5&sort=desc", got.URL)
		assert.Equal(t, "/orders", got.Path())
		assert.Equal(t, "id=5&sort=desc", got.RawQuery())
	})

	t.Run("empty_query_has_no_question_mark", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/orders?", nil)

		got, err := NewNormalizer(Options{}).Normalize(req)
		require.NoError(t, err)

		assert.Equal(t, "/orders", got.URL)
	})

	t.Run("headers_lower_cased_last_wins", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Add("X-Trace", "first")
		req.Header.Add("X-Trace", "second")
		req.Header.Set("Content-Type", "text/plain")

		got, err := NewNormalizer(Options{}).Normalize(req)
		require.NoError(t, err)

		assert.Equal(t, "second", got.Headers["x-trace"])
		assert.Equal(t, "text/plain", got.Headers["content-type"])
		assert.Equal(t, "example.com", got.Headers["host"])
		assert.Equal(t, []string{"first", "second"}, got.Header().Values("X-Trace"))
	})

	t.Run("cookies", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Cookie", "session=abc; theme=dark")

		got, err := NewNormalizer(Options{}).Normalize(req)
		require.NoError(t, err)

		assert.Equal(t, map[string]string{"session": "abc", "theme": "dark"}, got.Cookies)
	})

	t.Run("body_is_text_and_restored", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/submit", strings.NewReader(`{"a":1}`))
		req.Header.Set("Content-Type", "application/json")

		got, err := NewNormalizer(Options{}).Normalize(req)
		require.NoError(t, err)

		assert.Equal(t, `{"a":1}`, got.Body)
		assert.Equal(t, []byte(`{"a":1}`), got.RawBody())

		rest, err := io.ReadAll(req.Body)
		require.NoError(t, err)
		assert.Equal(t, `{"a":1}`, string(rest))
	})

	t.Run("invalid_utf8_is_lossy", func(t *testing.T) {
		raw := []byte{'o', 'k', 0xff, 0xfe, '!'}
		req := httptest.NewRequest(http.MethodPost, "/bin", bytes.NewReader(raw))

		got, err := NewNormalizer(Options{}).Normalize(req)
		require.NoError(t, err)

		assert.Equal(t, "ok�!", got.Body)
		assert.Equal(t, raw, got.RawBody())
	})

	t.Run("method_upper_cased", func(t *testing.T) {
		req := httptest.NewRequest("patch", "/x", nil)

		got, err := NewNormalizer(Options{}).Normalize(req)
		require.NoError(t, err)

		assert.Equal(t, "PATCH", got.Method)
	})

	t.Run("time_is_utc", func(t *testing.T) {
		n := NewNormalizer(Options{})
		fixed := time.Date(2024, 1, 2, 3, 4, 5, 0, time.FixedZone("X", 3600))
		n.now = func() time.Time { return fixed }

		got, err := n.Normalize(httptest.NewRequest(http.MethodGet, "/", nil))
		require.NoError(t, err)

		assert.Equal(t, fixed.UTC(), got.Time)
	})

	t.Run("body_read_error", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", io.NopCloser(failingReader{}))

		_, err := NewNormalizer(Options{}).Normalize(req)
		require.Error(t, err)
	})
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, io.ErrUnexpectedEOF }

func TestNormalizeDecodesContentEncoding(t *testing.T) {
	t.Parallel()

	const plain = "hello compressed world"

	encoders := map[string]func(t *testing.T) []byte{
		"gzip": func(t *testing.T) []byte {
			var buf bytes.Buffer
			zw := gzip.NewWriter(&buf)
			_, err := zw.Write([]byte(plain))
			require.NoError(t, err)
			require.NoError(t, zw.Close())
			return buf.Bytes()
		},
		"br": func(t *testing.T) []byte {
			var buf bytes.Buffer
			bw := brotli.NewWriter(&buf)
			_, err := bw.Write([]byte(plain))
			require.NoError(t, err)
			require.NoError(t, bw.Close())
			return buf.Bytes()
		},
		"zstd": func(t *testing.T) []byte {
			enc, err := zstd.NewWriter(nil)
			require.NoError(t, err)
			defer enc.Close()
			return enc.EncodeAll([]byte(plain), nil)
		},
	}

	for name, encode := range encoders {
		t.Run(name, func(t *testing.T) {
			compressed := encode(t)
			req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(compressed))
			req.Header.Set("Content-Encoding", name)

			got, err := NewNormalizer(Options{DecodeContentEncoding: true}).Normalize(req)
			require.NoError(t, err)

			assert.Equal(t, plain, got.Body)
			assert.Equal(t, compressed, got.RawBody(), "raw body must stay encoded for forwarding")
		})
	}

	t.Run("disabled_keeps_raw", func(t *testing.T) {
		compressed := encoders["gzip"](t)
		req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(compressed))
		req.Header.Set("Content-Encoding", "gzip")

		got, err := NewNormalizer(Options{}).Normalize(req)
		require.NoError(t, err)

		assert.Equal(t, Text(compressed), got.Body)
	})

	t.Run("corrupt_falls_back_to_raw", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("not gzip"))
		req.Header.Set("Content-Encoding", "gzip")

		got, err := NewNormalizer(Options{DecodeContentEncoding: true}).Normalize(req)
		require.NoError(t, err)

		assert.Equal(t, "not gzip", got.Body)
	})
}

func TestDecoderMaxSize(t *testing.T) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, _ = zw.Write(bytes.Repeat([]byte("a"), 1024))
	require.NoError(t, zw.Close())

	_, ok := NewDecoder(100).Decode("gzip", buf.Bytes())
	assert.False(t, ok)

	out, ok := NewDecoder(2048).Decode("gzip", buf.Bytes())
	assert.True(t, ok)
	assert.Len(t, out, 1024)
}

func TestDecoderUnsupported(t *testing.T) {
	_, ok := NewDecoder(0).Decode("compress", []byte("x"))
	assert.False(t, ok)
	_, ok = NewDecoder(0).Decode("", []byte("x"))
	assert.False(t, ok)
}

func TestJoinURL(t *testing.T) {
	assert.Equal(t, "/a", JoinURL("/a", ""))
	assert.Equal(t, "/a?b=1", JoinURL("/a", "b=1"))
}
