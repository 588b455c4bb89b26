package capture

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"errors"
	"io"
	"strings"
	"sync"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/zstd"
)

var errTooLarge = errors.New("decoded body exceeds maximum size")

// Decoder decodes Content-Encoding'd bodies for recording.
type Decoder struct {
	maxSize  int64
	zstdPool sync.Pool
}

// NewDecoder creates a Decoder that refuses output larger than maxSize bytes.
func NewDecoder(maxSize int64) *Decoder {
	if maxSize <= 0 {
		maxSize = 10 << 20
	}
	return &Decoder{
		maxSize: maxSize,
		zstdPool: sync.Pool{
			New: func() any {
				dec, _ := zstd.NewReader(nil)
				return dec
			},
		},
	}
}

// Decode returns the decoded body. ok is false when the encoding is empty,
// unsupported, or the payload fails to decode; callers then keep the raw bytes.
func (d *Decoder) Decode(encoding string, body []byte) ([]byte, bool) {
	encoding = strings.TrimSpace(strings.ToLower(encoding))
	if encoding == "" || encoding == "identity" || len(body) == 0 {
		return nil, false
	}

	var (
		r       io.Reader
		release func()
	)
	src := bytes.NewReader(body)
	switch encoding {
	case "gzip", "x-gzip":
		zr, err := gzip.NewReader(src)
		if err != nil {
			return nil, false
		}
		defer zr.Close()
		r = zr
	case "deflate":
		fr := flate.NewReader(src)
		defer fr.Close()
		r = fr
	case "br":
		r = brotli.NewReader(src)
	case "zstd":
		dec, ok := d.zstdPool.Get().(*zstd.Decoder)
		if !ok || dec == nil {
			return nil, false
		}
		if err := dec.Reset(src); err != nil {
			return nil, false
		}
		r = dec
		release = func() { d.zstdPool.Put(dec) }
	default:
		return nil, false
	}
	if release != nil {
		defer release()
	}

	out, err := readLimited(r, d.maxSize)
	if err != nil {
		return nil, false
	}
	return out, true
}

func readLimited(r io.Reader, max int64) ([]byte, error) {
	out, err := io.ReadAll(io.LimitReader(r, max+1))
	if err != nil {
		return nil, err
	}
	if int64(len(out)) > max {
		return nil, errTooLarge
	}
	return out, nil
}
