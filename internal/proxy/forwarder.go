// Package proxy forwards recorded requests to the configured upstream.
package proxy

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/wudi/dummy/internal/capture"
	"github.com/wudi/dummy/internal/config"
	"github.com/wudi/dummy/internal/errors"
	"github.com/wudi/dummy/internal/tracing"
)

// Response is an upstream response read in full.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Forwarder sends requests to one upstream over a shared connection pool.
type Forwarder struct {
	target      *url.URL
	client      *http.Client
	transport   *http.Transport
	timeout     time.Duration
	rewriteHost bool
	tracer      *tracing.Tracer
}

// New creates a Forwarder for cfg.Endpoint. tracer may be nil.
func New(cfg config.UpstreamConfig, tracer *tracing.Tracer) (*Forwarder, error) {
	target, err := url.Parse(cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse upstream endpoint: %w", err)
	}
	if target.Scheme != "http" && target.Scheme != "https" {
		return nil, fmt.Errorf("upstream endpoint %q: scheme must be http or https", cfg.Endpoint)
	}
	if target.Host == "" {
		return nil, fmt.Errorf("upstream endpoint %q: missing host", cfg.Endpoint)
	}

	transport, err := NewTransport(MergeTransportConfigs(DefaultTransportConfig, cfg.Transport))
	if err != nil {
		return nil, err
	}

	return &Forwarder{
		target:    target,
		transport: transport,
		client: &http.Client{
			Transport: transport,
			// redirects go back to the caller untouched
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		timeout:     cfg.Timeout,
		rewriteHost: cfg.RewriteHost,
		tracer:      tracer,
	}, nil
}

// Target returns the upstream base URL.
func (f *Forwarder) Target() string {
	return f.target.String()
}

// Forward replays req against the upstream and reads the whole response.
// Failures are returned as *errors.HTTPError with status 502 or 504.
func (f *Forwarder) Forward(ctx context.Context, req *capture.Request) (*Response, error) {
	if _, ok := ctx.Deadline(); !ok && f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	outReq := f.createProxyRequest(ctx, req)

	ctx, span := f.tracer.StartClientSpan(ctx, outReq.Method, outReq.URL.String())
	outReq = outReq.WithContext(ctx)

	resp, err := f.client.Do(outReq)
	if err != nil {
		tracing.EndClientSpan(span, 0, err)
		return nil, classifyError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		tracing.EndClientSpan(span, resp.StatusCode, err)
		return nil, classifyError(err)
	}
	tracing.EndClientSpan(span, resp.StatusCode, nil)

	header := make(http.Header, len(resp.Header))
	copyHeaders(header, resp.Header)
	if header.Get("Content-Length") != "" && outReq.Method != http.MethodHead {
		header.Set("Content-Length", strconv.Itoa(len(body)))
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     header,
		Body:       body,
	}, nil
}

// Close releases idle upstream connections.
func (f *Forwarder) Close() {
	f.transport.CloseIdleConnections()
}

// createProxyRequest builds the outbound request. The path is joined onto the
// upstream base path and the inbound query is kept as is.
func (f *Forwarder) createProxyRequest(ctx context.Context, req *capture.Request) *http.Request {
	targetURL := *f.target
	targetURL.Path = singleJoiningSlash(f.target.Path, req.Path())
	targetURL.RawPath = singleJoiningSlash(f.target.EscapedPath(), req.EscapedPath())
	targetURL.RawQuery = req.RawQuery()

	body := req.RawBody()
	outReq := (&http.Request{
		Method:        req.Method,
		URL:           &targetURL,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        make(http.Header, len(req.Header())),
		ContentLength: int64(len(body)),
		Host:          req.Host(),
	}).WithContext(ctx)

	if len(body) > 0 {
		outReq.Body = io.NopCloser(bytes.NewReader(body))
		outReq.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(body)), nil
		}
	} else {
		outReq.Body = http.NoBody
	}

	copyHeaders(outReq.Header, req.Header())
	// the body is buffered: the real length is set on the request itself
	// and there is nothing to wait for on 100-continue
	outReq.Header.Del("Content-Length")
	outReq.Header.Del("Expect")

	if f.rewriteHost || outReq.Host == "" {
		outReq.Host = f.target.Host
	}
	return outReq
}

// classifyError maps a transport failure to the error answered to the caller.
func classifyError(err error) *errors.HTTPError {
	if t, ok := err.(interface{ Timeout() bool }); ok && t.Timeout() {
		return errors.Wrap(err, errors.ErrGatewayTimeout.Code, errors.ErrGatewayTimeout.Message).
			WithDetails(err.Error())
	}
	return errors.Wrap(err, errors.ErrBadGateway.Code, errors.ErrBadGateway.Message).
		WithDetails(err.Error())
}

// copyHeaders copies src into dst without hop-by-hop headers
func copyHeaders(dst, src http.Header) {
	for k, vv := range src {
		dst[k] = append(dst[k][:0:0], vv...)
	}
	removeHopHeaders(dst)
}

// Hop-by-hop headers that should be removed
var hopHeaders = []string{
	"Connection",
	"Proxy-Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

func removeHopHeaders(header http.Header) {
	// headers named in Connection are hop-by-hop too
	for _, v := range header.Values("Connection") {
		for _, name := range strings.Split(v, ",") {
			if name = strings.TrimSpace(name); name != "" {
				header.Del(name)
			}
		}
	}
	for _, h := range hopHeaders {
		header.Del(h)
	}
}

// singleJoiningSlash joins two URL paths with a single slash
func singleJoiningSlash(a, b string) string {
	aslash := strings.HasSuffix(a, "/")
	bslash := strings.HasPrefix(b, "/")
	switch {
	case aslash && bslash:
		return a + b[1:]
	case !aslash && !bslash:
		return a + "/" + b
	}
	return a + b
}
