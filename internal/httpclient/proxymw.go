package httpclient

import (
	"context"

	"go.uber.org/zap"

	"github.com/pricecrawl/pricecrawl/internal/proxy"
)

// ProxyMiddleware injects a proxy into each attempt. It sits innermost in the
// chain so a retried attempt may land on a fresh proxy. It never swallows
// errors; it only enriches the request and reports proxy failures.
type ProxyMiddleware struct {
	manager    *proxy.Manager
	defaultUse bool
	logger     *zap.Logger
}

// NewProxyMiddleware builds the middleware. A per-request UseProxy override
// takes precedence over the client-wide default.
func NewProxyMiddleware(manager *proxy.Manager, defaultUse bool, logger *zap.Logger) *ProxyMiddleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProxyMiddleware{
		manager:    manager,
		defaultUse: defaultUse,
		logger:     logger,
	}
}

// Handle selects a proxy for this attempt when proxying applies. An empty
// pool degrades to a direct request rather than failing. Credentials travel
// only in the proxy URL userinfo; no separate auth header is attached.
func (m *ProxyMiddleware) Handle(ctx context.Context, req *Request, next Handler) (*Response, error) {
	use := m.defaultUse
	if req.UseProxy != nil {
		use = *req.UseProxy
	}

	req.proxyURL = nil
	req.proxyAddr = ""

	if use && m.manager != nil {
		if p := m.manager.Select(); p != nil {
			req.proxyURL = p.URL()
			req.proxyAddr = p.Addr()
			m.logger.Debug("using proxy",
				zap.String("proxy", req.proxyAddr),
				zap.String("url", req.URL),
			)
		}
	}

	resp, err := next(ctx, req)
	if err != nil && req.proxyAddr != "" {
		m.logger.Warn("request failed through proxy",
			zap.String("proxy", req.proxyAddr),
			zap.String("url", req.URL),
			zap.Error(err),
		)
		m.manager.ReportFailure(req.proxyAddr)
	}
	return resp, err
}
