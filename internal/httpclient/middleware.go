package httpclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"
)

// Handler sends a prepared request and returns the response. The innermost
// handler talks to the transport; middlewares wrap it.
type Handler func(ctx context.Context, req *Request) (*Response, error)

// Middleware intercepts a request on its way to the transport. Implementations
// must call next exactly once per attempt they admit and must not retain req
// past the call.
type Middleware interface {
	Handle(ctx context.Context, req *Request, next Handler) (*Response, error)
}

// chain folds the ordered middleware list into a single handler. The first
// middleware in the list runs outermost: its logic executes first on the way
// in and last on the way out. Composition happens once at client
// construction, not per request.
func chain(mws []Middleware, final Handler) Handler {
	h := final
	for i := len(mws) - 1; i >= 0; i-- {
		mw := mws[i]
		next := h
		h = func(ctx context.Context, req *Request) (*Response, error) {
			return mw.Handle(ctx, req, next)
		}
	}
	return h
}

// Request carries one outbound HTTP call through the middleware chain.
// A fresh Request is built per logical call and mutated by middlewares
// (proxy injection) across attempts.
type Request struct {
	Method   string
	URL      string
	Params   url.Values
	Headers  http.Header
	JSONBody any
	FormBody url.Values
	UseProxy *bool
	Timeout  time.Duration

	// Set by the proxy middleware for the current attempt; read by the
	// transport callback.
	proxyURL  *url.URL
	proxyAddr string
}

// Response is the raw outcome of a successful logical call.
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// Text returns the body decoded as a string.
func (r *Response) Text() string {
	return string(r.Body)
}

// Bytes returns the raw body.
func (r *Response) Bytes() []byte {
	return r.Body
}

// JSON decodes the body into v.
func (r *Response) JSON(v any) error {
	return json.Unmarshal(r.Body, v)
}
