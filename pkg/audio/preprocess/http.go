// ABOUTME: HTTP preprocessor streaming a GET response body
// ABOUTME: Not seekable; size and type come from the response headers
package preprocess

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
)

// HTTP streams a remote resource
type HTTP struct {
	client *http.Client
	ctx    context.Context
	cancel context.CancelFunc
	body   io.ReadCloser
	size   int64
	typ    string
}

// NewHTTP creates an HTTP preprocessor using the default client
func NewHTTP() Preprocessor {
	ctx, cancel := context.WithCancel(context.Background())
	return &HTTP{client: http.DefaultClient, ctx: ctx, cancel: cancel, size: -1}
}

// Init issues the GET request
func (p *HTTP) Init(cfg Config) error {
	req, err := http.NewRequestWithContext(p.ctx, http.MethodGet, cfg.URI, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := p.clientFor(cfg).Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch source: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return fmt.Errorf("failed to fetch source: %s", resp.Status)
	}

	p.body = resp.Body
	p.size = resp.ContentLength
	p.typ = TypeFromContentType(resp.Header.Get("Content-Type"))
	if p.typ == "" {
		if u, err := url.Parse(cfg.URI); err == nil {
			p.typ = TypeFromPath(u.Path)
		}
	}

	slog.Debug("http source opened", "uri", cfg.URI, "size", p.size, "type", p.typ)
	return nil
}

// clientFor bounds dialing and response headers, not the body
func (p *HTTP) clientFor(cfg Config) *http.Client {
	if cfg.Timeout <= 0 {
		return p.client
	}
	return &http.Client{
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           (&net.Dialer{Timeout: cfg.Timeout}).DialContext,
			TLSHandshakeTimeout:   cfg.Timeout,
			ResponseHeaderTimeout: cfg.Timeout,
		},
	}
}

// Read reads the response body
func (p *HTTP) Read(b []byte) (int, error) {
	if p.body == nil {
		return 0, io.ErrClosedPipe
	}
	return p.body.Read(b)
}

// Seek is not supported on a streamed response
func (p *HTTP) Seek(int64) error {
	return ErrSeekUnsupported
}

// Size returns Content-Length, or -1
func (p *HTTP) Size() int64 { return p.size }

// Type returns the hint from Content-Type or the URL path
func (p *HTTP) Type() string { return p.typ }

// Destroy closes the body and cancels the request
func (p *HTTP) Destroy() {
	if p.body != nil {
		p.body.Close()
		p.body = nil
	}
	p.cancel()
}

// Interrupt cancels the request, failing a blocked Read
func (p *HTTP) Interrupt() {
	p.cancel()
}
