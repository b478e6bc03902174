// internal/api/http/login_url.go
package http

import (
	"encoding/json"
	"net/http"

	"github.com/mind-engage/fbcanvas/pkg/facebook/canvas"
)

// query keys consumed by the handler itself, never forwarded to the dialog
var reservedLoginKeys = map[string]bool{
	"return":         true,
	"signed_request": true,
	"state":          true,
	"client_id":      true,
	"redirect_uri":   true,
	"response_type":  true,
}

// LoginURLHandler answers GET /api/login-url with the dialog URL the client
// side should open. ?return=path picks the canvas return path; any other
// query parameter is passed to the dialog and overrides the defaults.
func LoginURLHandler(cfg canvas.MiddlewareConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rc, err := canvas.NewHTTPContext(w, r)
		if err != nil {
			writeErr(w, http.StatusBadRequest, "bad query")
			return
		}
		q := r.URL.Query()

		returnPath := cfg.ReturnURLPath
		if v := q.Get("return"); v != "" {
			returnPath = v
		}
		opts := []canvas.Option{
			canvas.WithPerms(cfg.Perms),
			canvas.WithLoginDisplayMode(cfg.LoginDisplayMode),
			canvas.WithReturnURLPath(returnPath),
			canvas.WithDialogURL(cfg.DialogURL),
		}
		if cfg.States != nil {
			opts = append(opts, canvas.WithStateIssuer(cfg.States))
		}
		az, err := canvas.NewCanvasAuthorizer(cfg.App, cfg.Canvas, rc, opts...)
		if err != nil {
			writeErr(w, http.StatusInternalServerError, "server not configured")
			return
		}

		extra := canvas.Parameters{}
		for k, vs := range q {
			if reservedLoginKeys[k] || len(vs) == 0 {
				continue
			}
			extra[k] = vs[0]
		}
		u, err := az.LoginURL(extra)
		if err != nil {
			writeErr(w, http.StatusInternalServerError, "login url: "+err.Error())
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"login_url": u.String()})
	}
}

func writeErr(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
