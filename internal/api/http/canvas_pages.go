// internal/api/http/canvas_pages.go
package http

import (
	"html/template"
	"net/http"

	"github.com/mind-engage/fbcanvas/pkg/facebook/canvas"
)

var homeTpl = template.Must(template.New("home").Parse(`<!doctype html>
<html><head><meta charset="utf-8"><title>Canvas</title></head>
<body>
<h1>Welcome</h1>
<p>Facebook user {{.UserID}}{{with .User}}{{if .Locale}} ({{.Locale}}){{end}}{{end}}</p>
{{if .AppData}}<p>app_data: {{.AppData}}</p>{{end}}
</body></html>`))

// CanvasPageHandler renders the app page for an authorized canvas user.
// It must be mounted behind canvas.Middleware.
func CanvasPageHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sr, ok := canvas.SignedRequestFromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_ = homeTpl.Execute(w, sr)
	}
}
