// pkg/facebook/canvas/urlbuilder.go
package canvas

import (
	"bytes"
	"fmt"
	"html/template"
	"net/url"
	"sort"
	"strings"

	"golang.org/x/oauth2"
	fboauth2 "golang.org/x/oauth2/facebook"

	"github.com/mind-engage/fbcanvas/pkg/facebook"
)

// Parameters are extra query parameters for the login dialog. Values are
// rendered with fmt.Sprint.
type Parameters map[string]any

// URLBuilder computes canvas-relative URLs and the OAuth dialog URL.
type URLBuilder struct {
	canvas *facebook.CanvasSettings
	req    RequestContext

	// DialogURL overrides the OAuth dialog endpoint (default: facebook.Endpoint.AuthURL).
	DialogURL string
}

func NewURLBuilder(canvas *facebook.CanvasSettings, req RequestContext) *URLBuilder {
	return &URLBuilder{canvas: canvas, req: req}
}

// CanvasPageURL resolves path against the canvas page, e.g.
// "https://apps.facebook.com/myapp/" + "photos?id=1".
func (b *URLBuilder) CanvasPageURL(path string) (*url.URL, error) {
	if err := b.canvas.Validate(); err != nil {
		return nil, err
	}
	base := strings.TrimRight(b.canvas.CanvasPage, "/") + "/"
	return url.Parse(base + strings.TrimLeft(path, "/"))
}

// CurrentCanvasPath is the request path relative to the canvas URL, so that
// "/canvas/photos" loaded from CanvasURL "https://app.example/canvas/"
// yields "photos".
func (b *URLBuilder) CurrentCanvasPath() string {
	if b.req == nil {
		return ""
	}
	p := b.req.Path()
	if b.canvas == nil {
		return strings.TrimLeft(p, "/")
	}
	for _, raw := range []string{b.canvas.SecureCanvasURL, b.canvas.CanvasURL} {
		if raw == "" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil {
			continue
		}
		prefix := "/" + strings.Trim(u.Path, "/")
		if prefix == "/" {
			break
		}
		if p == prefix {
			return ""
		}
		if strings.HasPrefix(p, prefix+"/") {
			return strings.TrimPrefix(p, prefix+"/")
		}
	}
	return strings.TrimLeft(p, "/")
}

// builderKeys are set by LoginURL itself and cannot be replaced through params.
var builderKeys = map[string]bool{
	"client_id":     true,
	"redirect_uri":  true,
	"response_type": true,
	"state":         true,
}

// LoginURL builds the OAuth dialog URL. redirect_uri points back at the
// canvas page (plus returnPath) so the user lands inside Facebook again.
// Entries in params are applied after the builder's own parameters, except
// for client_id, redirect_uri, response_type and state, which are dropped.
func (b *URLBuilder) LoginURL(app *facebook.ApplicationSettings, returnPath, state string, params Parameters) (*url.URL, error) {
	if err := app.Validate(); err != nil {
		return nil, err
	}
	redirect, err := b.CanvasPageURL(returnPath)
	if err != nil {
		return nil, err
	}

	endpoint := fboauth2.Endpoint
	if b.DialogURL != "" {
		endpoint.AuthURL = b.DialogURL
	}
	cfg := &oauth2.Config{
		ClientID:     app.AppID,
		ClientSecret: app.AppSecret,
		RedirectURL:  redirect.String(),
		Endpoint:     endpoint,
	}

	keys := make([]string, 0, len(params))
	for k := range params {
		if k != "" && !builderKeys[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	opts := make([]oauth2.AuthCodeOption, 0, len(keys))
	for _, k := range keys {
		opts = append(opts, oauth2.SetAuthURLParam(k, fmt.Sprint(params[k])))
	}

	return url.Parse(cfg.AuthCodeURL(state, opts...))
}

var redirectTpl = template.Must(template.New("canvas-redirect").Parse(`<!doctype html>
<html><head><meta charset="utf-8"><title>Redirecting</title>
<script type="text/javascript">window.top.location.href = {{.}};</script>
</head>
<body><noscript><a href="{{.}}" target="_top">Continue</a></noscript></body></html>`))

// RedirectHTML renders a document that navigates the top-level window to
// target. A 302 from inside the canvas iframe would only move the frame.
func (b *URLBuilder) RedirectHTML(target *url.URL) ([]byte, error) {
	if target == nil {
		return nil, fmt.Errorf("canvas: nil redirect target")
	}
	var buf bytes.Buffer
	if err := redirectTpl.Execute(&buf, target.String()); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
