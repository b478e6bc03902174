// pkg/facebook/canvas/context.go
package canvas

import (
	"context"
	"net/http"
	"net/url"

	"github.com/mind-engage/fbcanvas/pkg/facebook"
)

// ResponseWriter is the slice of an HTTP response the authorizer needs.
type ResponseWriter interface {
	SetContentType(contentType string)
	Write(p []byte) (int, error)
}

// RequestContext decouples the authorizer from a specific web framework.
type RequestContext interface {
	// Params returns query and form parameters merged.
	Params() url.Values
	// Path is the request path as Facebook loaded it inside the iframe.
	Path() string
	Response() ResponseWriter
}

type httpResponse struct{ w http.ResponseWriter }

func (h httpResponse) SetContentType(ct string) { h.w.Header().Set("Content-Type", ct) }
func (h httpResponse) Write(p []byte) (int, error) { return h.w.Write(p) }

type httpContext struct {
	r    *http.Request
	resp httpResponse
}

// NewHTTPContext adapts a net/http request/response pair. Canvas loads are
// POSTs carrying signed_request in the body, so the form is parsed here.
func NewHTTPContext(w http.ResponseWriter, r *http.Request) (RequestContext, error) {
	if err := r.ParseForm(); err != nil {
		return nil, err
	}
	return &httpContext{r: r, resp: httpResponse{w: w}}, nil
}

func (c *httpContext) Params() url.Values { return c.r.Form }
func (c *httpContext) Path() string { return c.r.URL.Path }
func (c *httpContext) Response() ResponseWriter { return c.resp }

type ctxKey struct{}

// ContextWithSignedRequest stores the verified signed request on ctx.
func ContextWithSignedRequest(ctx context.Context, sr *facebook.SignedRequest) context.Context {
	return context.WithValue(ctx, ctxKey{}, sr)
}

// SignedRequestFromContext returns the signed request attached by Middleware.
func SignedRequestFromContext(ctx context.Context) (*facebook.SignedRequest, bool) {
	sr, ok := ctx.Value(ctxKey{}).(*facebook.SignedRequest)
	return sr, ok && sr != nil
}
