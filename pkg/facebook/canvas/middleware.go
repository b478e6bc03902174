// pkg/facebook/canvas/middleware.go
package canvas

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mind-engage/fbcanvas/pkg/facebook"
)

// StateVerifier consumes a state token returned by the login dialog.
type StateVerifier interface {
	StateIssuer
	Consume(ctx context.Context, token string) (returnPath string, err error)
}

// MiddlewareConfig wires the canvas authorization filter.
type MiddlewareConfig struct {
	App    *facebook.ApplicationSettings
	Canvas *facebook.CanvasSettings

	Perms            string
	LoginDisplayMode string
	ReturnURLPath    string
	CancelURLPath    string
	DialogURL        string

	// States is optional; without it login URLs carry no state and returning
	// state parameters are ignored.
	States StateVerifier
	Logger *slog.Logger
	Now    func() time.Time
}

// Middleware lets requests with an authorized signed_request through (the
// decoded request is available via SignedRequestFromContext) and answers
// everything else with a frame-busting redirect to the login dialog.
func Middleware(cfg MiddlewareConfig) func(http.Handler) http.Handler {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	if cfg.App == nil {
		// fails validation per request with a 500 rather than panicking
		cfg.App = &facebook.ApplicationSettings{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rc, err := NewHTTPContext(w, r)
			if err != nil {
				http.Error(w, "bad form", http.StatusBadRequest)
				return
			}
			params := rc.Params()

			var sr *facebook.SignedRequest
			if raw := params.Get("signed_request"); raw != "" {
				sr, err = facebook.ParseSignedRequest(raw, cfg.App.AppSecret)
				if err != nil {
					log.WarnContext(r.Context(), "rejecting signed_request", "path", r.URL.Path, "err", err)
					http.Error(w, "invalid signed_request", http.StatusBadRequest)
					return
				}
			}

			if state := params.Get("state"); state != "" && cfg.States != nil {
				returnPath, err := cfg.States.Consume(r.Context(), state)
				if err != nil {
					log.WarnContext(r.Context(), "rejecting state", "path", r.URL.Path, "err", err)
					http.Error(w, "invalid state", http.StatusForbidden)
					return
				}
				// the token is bound to the path the dialog was asked to return to
				current := NewURLBuilder(cfg.Canvas, rc).CurrentCanvasPath()
				boundPath, _, _ := strings.Cut(returnPath, "?")
				if strings.Trim(boundPath, "/") != strings.Trim(current, "/") {
					log.WarnContext(r.Context(), "state issued for another path",
						"path", r.URL.Path, "want", returnPath, "got", current)
					http.Error(w, "invalid state", http.StatusForbidden)
					return
				}
			}

			opts := []Option{
				WithPerms(cfg.Perms),
				WithLoginDisplayMode(cfg.LoginDisplayMode),
				WithReturnURLPath(cfg.ReturnURLPath),
				WithCancelURLPath(cfg.CancelURLPath),
				WithDialogURL(cfg.DialogURL),
				WithSignedRequest(sr),
				WithClock(cfg.Now),
			}
			if cfg.States != nil {
				opts = append(opts, WithStateIssuer(cfg.States))
			}
			az, err := NewCanvasAuthorizer(cfg.App, cfg.Canvas, rc, opts...)
			if err != nil {
				log.ErrorContext(r.Context(), "canvas authorizer misconfigured", "err", err)
				http.Error(w, "server not configured", http.StatusInternalServerError)
				return
			}

			if params.Get("error") != "" {
				log.InfoContext(r.Context(), "login dialog declined",
					"reason", params.Get("error_reason"), "path", r.URL.Path)
				if err := az.HandleCancelledRequest(); err != nil {
					log.ErrorContext(r.Context(), "cancel redirect failed", "err", err)
					http.Error(w, "redirect failed", http.StatusInternalServerError)
				}
				return
			}

			if az.IsAuthorized() {
				next.ServeHTTP(w, r.WithContext(ContextWithSignedRequest(r.Context(), sr)))
				return
			}

			if err := az.HandleUnauthorizedRequest(); err != nil {
				log.ErrorContext(r.Context(), "login redirect failed", "err", err)
				http.Error(w, "redirect failed", http.StatusInternalServerError)
			}
		})
	}
}
