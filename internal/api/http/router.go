// internal/api/http/router.go
package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/mind-engage/fbcanvas/pkg/facebook/canvas"
)

type Server struct {
	Canvas      canvas.MiddlewareConfig
	CORSOrigins []string
	Logger      *slog.Logger
	// Ready backs /readyz, typically a DB ping. Optional.
	Ready func(ctx context.Context) error
}

// Routes mounts:
//
//	/canvas, /canvas/*   canvas pages (GET or POST from Facebook), behind canvas.Middleware
//	/api/login-url       login dialog URL as JSON
//	/healthz, /readyz
func (s *Server) Routes() chi.Router {
	log := s.Logger
	if log == nil {
		log = slog.Default()
	}
	mw := s.Canvas
	if mw.Logger == nil {
		mw.Logger = log
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, requestLogger(log), middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Group(func(cr chi.Router) {
		cr.Use(canvas.Middleware(mw))
		page := CanvasPageHandler()
		cr.Get("/canvas", page)
		cr.Post("/canvas", page)
		cr.Get("/canvas/*", page)
		cr.Post("/canvas/*", page)
	})

	r.Route("/api", func(ar chi.Router) {
		ar.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.CORSOrigins,
			AllowedMethods:   []string{"GET", "OPTIONS"},
			AllowedHeaders:   []string{"Content-Type"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
		ar.Get("/login-url", LoginURLHandler(mw))
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if s.Ready != nil {
			if err := s.Ready(r.Context()); err != nil {
				log.WarnContext(r.Context(), "not ready", "err", err)
				http.Error(w, "not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	})
	return r
}

// requestLogger is chi's middleware.Logger shape on top of slog.
func requestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				log.InfoContext(r.Context(), "http request",
					"method", r.Method,
					"path", r.URL.Path,
					"status", ww.Status(),
					"bytes", ww.BytesWritten(),
					"dur", time.Since(start),
					"req_id", middleware.GetReqID(r.Context()),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
