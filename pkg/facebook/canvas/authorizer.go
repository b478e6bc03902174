// pkg/facebook/canvas/authorizer.go
package canvas

import (
	"errors"
	"net/url"
	"time"

	"github.com/mind-engage/fbcanvas/pkg/facebook"
)

const (
	DisplayPage  = "page"
	DisplayPopup = "popup"

	contentTypeHTML = "text/html"
)

var (
	ErrNilRequestContext = errors.New("canvas: request context is required")
	ErrNilParams         = errors.New("canvas: request parameters are required")
	ErrNilResponse       = errors.New("canvas: response is required")
)

// Authorizer decides what to send when a request lacks authorization.
type Authorizer interface {
	FacebookSettings() *facebook.ApplicationSettings
	Request() RequestContext
	IsAuthorized() bool
	HandleUnauthorizedRequest() error
}

// StateIssuer mints anti-forgery state tokens bound to a return path.
type StateIssuer interface {
	Issue(returnPath string) (string, error)
}

// CanvasAuthorizer sends unauthorized canvas users to the login dialog
// through a frame-busting redirect. It is request scoped.
type CanvasAuthorizer struct {
	app     *facebook.ApplicationSettings
	canvas  *facebook.CanvasSettings
	req     RequestContext
	builder *URLBuilder

	perms      string
	display    string
	returnPath string
	cancelPath string
	state      string
	states     StateIssuer
	signed     *facebook.SignedRequest
	now        func() time.Time
}

var _ Authorizer = (*CanvasAuthorizer)(nil)

// Option configures a CanvasAuthorizer.
type Option func(*CanvasAuthorizer)

// WithPerms sets the comma separated permissions requested as scope.
func WithPerms(perms string) Option { return func(a *CanvasAuthorizer) { a.perms = perms } }

// WithLoginDisplayMode sets the dialog display mode ("page", "popup", ...).
func WithLoginDisplayMode(mode string) Option {
	return func(a *CanvasAuthorizer) {
		if mode != "" {
			a.display = mode
		}
	}
}

// WithReturnURLPath sets the canvas path the user returns to after login.
// When empty the current canvas path is used.
func WithReturnURLPath(p string) Option { return func(a *CanvasAuthorizer) { a.returnPath = p } }

// WithCancelURLPath sets the canvas path for users who decline the dialog.
func WithCancelURLPath(p string) Option { return func(a *CanvasAuthorizer) { a.cancelPath = p } }

// WithState fixes the state token. Ignored when a StateIssuer is set.
func WithState(state string) Option { return func(a *CanvasAuthorizer) { a.state = state } }

// WithStateIssuer mints a fresh state token for every login URL.
func WithStateIssuer(s StateIssuer) Option { return func(a *CanvasAuthorizer) { a.states = s } }

// WithSignedRequest attaches the verified signed_request of the current load.
func WithSignedRequest(sr *facebook.SignedRequest) Option {
	return func(a *CanvasAuthorizer) { a.signed = sr }
}

// WithDialogURL overrides the OAuth dialog endpoint.
func WithDialogURL(u string) Option { return func(a *CanvasAuthorizer) { a.builder.DialogURL = u } }

// WithClock replaces time.Now for token expiry checks.
func WithClock(now func() time.Time) Option {
	return func(a *CanvasAuthorizer) {
		if now != nil {
			a.now = now
		}
	}
}

// NewCanvasAuthorizer validates its dependencies up front; a non-nil
// authorizer always holds non-nil settings and request context.
func NewCanvasAuthorizer(app *facebook.ApplicationSettings, canvas *facebook.CanvasSettings, req RequestContext, opts ...Option) (*CanvasAuthorizer, error) {
	if err := app.Validate(); err != nil {
		return nil, err
	}
	if canvas == nil {
		return nil, facebook.ErrNilSettings
	}
	if req == nil {
		return nil, ErrNilRequestContext
	}
	if req.Params() == nil {
		return nil, ErrNilParams
	}
	if req.Response() == nil {
		return nil, ErrNilResponse
	}

	a := &CanvasAuthorizer{
		app:     app,
		canvas:  canvas,
		req:     req,
		builder: NewURLBuilder(canvas, req),
		display: DisplayPage,
		now:     time.Now,
	}
	for _, o := range opts {
		o(a)
	}
	return a, nil
}

func (a *CanvasAuthorizer) FacebookSettings() *facebook.ApplicationSettings { return a.app }

func (a *CanvasAuthorizer) CanvasSettings() *facebook.CanvasSettings { return a.canvas }

func (a *CanvasAuthorizer) Request() RequestContext { return a.req }

func (a *CanvasAuthorizer) SignedRequest() *facebook.SignedRequest { return a.signed }

func (a *CanvasAuthorizer) LoginDisplayMode() string { return a.display }

func (a *CanvasAuthorizer) Perms() string { return a.perms }

// ReturnURLPath falls back to the path currently loaded in the canvas.
func (a *CanvasAuthorizer) ReturnURLPath() string {
	if a.returnPath != "" {
		return a.returnPath
	}
	return a.builder.CurrentCanvasPath()
}

// IsAuthorized reports whether the signed request carries a live user token.
func (a *CanvasAuthorizer) IsAuthorized() bool {
	return a.signed.IsAuthorized(a.now())
}

// HandleUnauthorizedRequest writes the frame-busting redirect to the login
// dialog. Call it at most once per response.
func (a *CanvasAuthorizer) HandleUnauthorizedRequest() error {
	loginURL, err := a.LoginURL(nil)
	if err != nil {
		return err
	}
	return a.writeRedirect(loginURL)
}

// HandleCancelledRequest sends a user who declined the dialog to the
// cancel path on the canvas page.
func (a *CanvasAuthorizer) HandleCancelledRequest() error {
	target, err := a.builder.CanvasPageURL(a.cancelPath)
	if err != nil {
		return err
	}
	return a.writeRedirect(target)
}

// LoginURL returns the OAuth dialog URL. display is always set and scope
// only when permissions are configured; extra overrides both.
func (a *CanvasAuthorizer) LoginURL(extra Parameters) (*url.URL, error) {
	params := Parameters{"display": a.display}
	if a.perms != "" {
		params["scope"] = a.perms
	}
	for k, v := range extra {
		params[k] = v
	}

	returnPath := a.ReturnURLPath()
	state := a.state
	if a.states != nil {
		s, err := a.states.Issue(returnPath)
		if err != nil {
			return nil, err
		}
		state = s
	}
	return a.builder.LoginURL(a.app, returnPath, state, params)
}

func (a *CanvasAuthorizer) writeRedirect(target *url.URL) error {
	body, err := a.builder.RedirectHTML(target)
	if err != nil {
		return err
	}
	resp := a.req.Response()
	resp.SetContentType(contentTypeHTML)
	_, err = resp.Write(body)
	return err
}
