// Package httpclient implements the outbound HTTP pipeline: one transport
// session per client, wrapped by a middleware chain composed once at
// construction (metrics, retry, proxy rotation).
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pricecrawl/pricecrawl/internal/config"
	"github.com/pricecrawl/pricecrawl/internal/proxy"
	"github.com/pricecrawl/pricecrawl/internal/telemetry"
)

type proxyCtxKey struct{}

// proxyFromContext lets a shared transport pick a per-attempt proxy injected
// by the proxy middleware.
func proxyFromContext(r *http.Request) (*url.URL, error) {
	if u, ok := r.Context().Value(proxyCtxKey{}).(*url.URL); ok {
		return u, nil
	}
	return nil, nil
}

// Client owns one transport session and the middleware chain every request
// flows through. Clients are safe for concurrent use; a client must not be
// used after Close.
type Client struct {
	cfg       config.Config
	logger    *zap.Logger
	metrics   *MetricsMiddleware
	handler   Handler
	transport http.RoundTripper

	mu          sync.Mutex
	session     *http.Client
	lastRequest time.Time
	closed      bool
}

// ClientOption customizes client construction.
type ClientOption func(*Client)

// WithTransport overrides the transport; used by tests to stub the network.
func WithTransport(rt http.RoundTripper) ClientOption {
	return func(c *Client) { c.transport = rt }
}

// New assembles a Client. The chain order is fixed: metrics outermost, then
// retry, then proxy nearest the transport, so metrics sees one outcome per
// logical call while each retried attempt may pick a fresh proxy.
func New(cfg config.Config, proxies *proxy.Manager, logger *zap.Logger, opts ...ClientOption) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	telemetry.Init()

	c := &Client{
		cfg:     cfg,
		logger:  logger,
		metrics: NewMetricsMiddleware(),
	}
	for _, opt := range opts {
		opt(c)
	}

	mws := []Middleware{
		c.metrics,
		NewRetryMiddleware(cfg.Retry, logger),
		NewProxyMiddleware(proxies, cfg.UseProxy, logger),
	}
	c.handler = chain(mws, c.send)
	return c
}

// RequestOption customizes a single logical call.
type RequestOption func(*Request)

// WithParams adds query parameters.
func WithParams(params url.Values) RequestOption {
	return func(r *Request) { r.Params = params }
}

// WithHeaders merges extra headers over the client defaults.
func WithHeaders(headers http.Header) RequestOption {
	return func(r *Request) { r.Headers = headers }
}

// WithProxy overrides the client-wide proxy default for this call.
func WithProxy(use bool) RequestOption {
	return func(r *Request) { r.UseProxy = &use }
}

// WithTimeout overrides the total timeout for this call.
func WithTimeout(d time.Duration) RequestOption {
	return func(r *Request) { r.Timeout = d }
}

// WithJSONBody attaches a JSON-encoded body.
func WithJSONBody(body any) RequestOption {
	return func(r *Request) { r.JSONBody = body }
}

// WithFormBody attaches a form-encoded body.
func WithFormBody(form url.Values) RequestOption {
	return func(r *Request) { r.FormBody = form }
}

// Get fetches a URL through the chain and returns the body text.
func (c *Client) Get(ctx context.Context, rawURL string, opts ...RequestOption) (string, error) {
	resp, err := c.do(ctx, http.MethodGet, rawURL, opts...)
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}

// Post sends a POST through the chain. Callers pick the body interpretation
// via Response.Text, Response.Bytes, or Response.JSON.
func (c *Client) Post(ctx context.Context, rawURL string, opts ...RequestOption) (*Response, error) {
	return c.do(ctx, http.MethodPost, rawURL, opts...)
}

// Metrics returns a snapshot of per-domain request stats for this client.
func (c *Client) Metrics() map[string]DomainStats {
	return c.metrics.Snapshot()
}

// Close releases the transport session. The client must not be reused.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != nil {
		c.session.CloseIdleConnections()
		c.session = nil
	}
	c.closed = true
}

func (c *Client) do(ctx context.Context, method, rawURL string, opts ...RequestOption) (*Response, error) {
	req := &Request{Method: method, URL: rawURL}
	for _, opt := range opts {
		opt(req)
	}
	return c.handler(ctx, req)
}

// send is the transport primitive at the bottom of the chain: it enforces the
// inter-request delay, issues exactly one HTTP request, and converts non-2xx
// responses into StatusError.
func (c *Client) send(ctx context.Context, req *Request) (*Response, error) {
	session, err := c.ensureSession()
	if err != nil {
		return nil, err
	}
	if err := c.waitBetweenRequests(ctx); err != nil {
		return nil, err
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = c.cfg.HTTP.Timeout()
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if req.proxyURL != nil {
		ctx = context.WithValue(ctx, proxyCtxKey{}, req.proxyURL)
	}

	httpReq, err := c.buildRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	resp, err := session.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send %s %s: %w", req.Method, req.URL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body of %s: %w", req.URL, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Code: resp.StatusCode, URL: req.URL}
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       body,
	}, nil
}

func (c *Client) buildRequest(ctx context.Context, req *Request) (*http.Request, error) {
	target := req.URL
	if len(req.Params) > 0 {
		sep := "?"
		if strings.Contains(target, "?") {
			sep = "&"
		}
		target = target + sep + req.Params.Encode()
	}

	var body io.Reader
	contentType := ""
	switch {
	case req.JSONBody != nil:
		encoded, err := json.Marshal(req.JSONBody)
		if err != nil {
			return nil, fmt.Errorf("encode json body: %w", err)
		}
		body = bytes.NewReader(encoded)
		contentType = "application/json"
	case req.FormBody != nil:
		body = strings.NewReader(req.FormBody.Encode())
		contentType = "application/x-www-form-urlencoded"
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, body)
	if err != nil {
		return nil, fmt.Errorf("build request for %s: %w", req.URL, err)
	}

	httpReq.Header.Set("User-Agent", c.cfg.UserAgent)
	httpReq.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
	httpReq.Header.Set("Accept-Language", "en-US,en;q=0.9")
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	for key, values := range req.Headers {
		httpReq.Header.Del(key)
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}
	return httpReq, nil
}

// ensureSession lazily creates the transport session, recreating it if a
// previous one was released while the client is still open.
func (c *Client) ensureSession() (*http.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClientClosed
	}
	if c.session == nil {
		transport := c.transport
		if transport == nil {
			transport = c.defaultTransport()
		}
		c.session = &http.Client{Transport: transport}
	}
	return c.session, nil
}

func (c *Client) defaultTransport() http.RoundTripper {
	return &http.Transport{
		Proxy: proxyFromContext,
		DialContext: (&net.Dialer{
			Timeout:   c.cfg.HTTP.ConnectTimeout(),
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
}

// waitBetweenRequests enforces the minimum inter-request delay for this
// client. Each caller reserves the next send slot under the lock before
// sleeping, so concurrent callers get consecutive slots spaced by the delay
// instead of racing on the same lastRequest reading. A slot reserved by a
// canceled caller stays burned.
func (c *Client) waitBetweenRequests(ctx context.Context) error {
	delay := c.cfg.Delay()
	if delay <= 0 {
		return nil
	}

	c.mu.Lock()
	slot := c.lastRequest.Add(delay)
	if now := time.Now(); slot.Before(now) {
		slot = now
	}
	c.lastRequest = slot
	c.mu.Unlock()

	if wait := time.Until(slot); wait > 0 {
		return sleepCtx(ctx, wait)
	}
	return nil
}
