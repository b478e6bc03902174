package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	api "github.com/mind-engage/fbcanvas/internal/api/http"
	"github.com/mind-engage/fbcanvas/internal/config"
	"github.com/mind-engage/fbcanvas/internal/db"
	"github.com/mind-engage/fbcanvas/internal/logging"
	"github.com/mind-engage/fbcanvas/internal/state"
	"github.com/mind-engage/fbcanvas/pkg/facebook/canvas"
)

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		slog.Error("config", "err", err)
		os.Exit(1)
	}
	log := logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(log)

	app := cfg.Facebook.Application()
	if err := app.Validate(); err != nil {
		log.Error("facebook app settings", "err", err)
		os.Exit(1)
	}
	cs := cfg.Facebook.Canvas()
	if err := cs.Validate(); err != nil {
		log.Error("facebook canvas settings", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- state store ---
	var (
		nonces state.NonceStore
		dbh    *sql.DB
	)
	switch cfg.StateStore {
	case "memory":
		nonces = state.NewMemoryStore(0)
	default:
		octx, cancel := context.WithTimeout(ctx, 10*time.Second)
		dbh, err = db.Open(octx, db.Driver(cfg.DBDriver), cfg.DBDSN)
		cancel()
		if err != nil {
			log.Error("db open failed", "driver", cfg.DBDriver, "err", err)
			os.Exit(1)
		}
		defer dbh.Close()
		sqlStore := state.NewSQLStore(dbh)
		go purgeStates(ctx, log, sqlStore, cfg.StateTTL)
		nonces = sqlStore
	}
	states, err := state.NewIssuer(app.AppSecret, cfg.StateTTL, nonces)
	if err != nil {
		log.Error("state issuer", "err", err)
		os.Exit(1)
	}

	srv := &api.Server{
		Canvas: canvas.MiddlewareConfig{
			App:              app,
			Canvas:           cs,
			Perms:            cfg.Facebook.Perms,
			LoginDisplayMode: cfg.Facebook.LoginDisplay,
			ReturnURLPath:    cfg.Facebook.ReturnURLPath,
			CancelURLPath:    cfg.Facebook.CancelURLPath,
			DialogURL:        cfg.Facebook.DialogURL,
			States:           states,
			Logger:           log,
		},
		CORSOrigins: cfg.CORSOrigins,
		Logger:      log,
	}
	if dbh != nil {
		srv.Ready = dbh.PingContext
	}

	hs := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = hs.Shutdown(sctx)
	}()

	log.Info("listening", "addr", cfg.HTTPAddr, "state_store", cfg.StateStore, "canvas_page", cs.CanvasPage)
	if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("server", "err", err)
		os.Exit(1)
	}
}

func purgeStates(ctx context.Context, log *slog.Logger, s *state.SQLStore, every time.Duration) {
	if every <= 0 {
		every = 10 * time.Minute
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			n, err := s.Purge(ctx, now)
			if err != nil {
				log.Warn("purge states", "err", err)
				continue
			}
			if n > 0 {
				log.Debug("purged states", "rows", n)
			}
		}
	}
}
