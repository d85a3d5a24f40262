// quicknotes server entry point. Wires configuration, storage, services,
// and the HTTP stack, then runs until interrupted.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kuitang/quicknotes/internal/auth"
	"github.com/kuitang/quicknotes/internal/config"
	"github.com/kuitang/quicknotes/internal/db"
	"github.com/kuitang/quicknotes/internal/notes"
	"github.com/kuitang/quicknotes/internal/obs"
	"github.com/kuitang/quicknotes/internal/ratelimit"
	"github.com/kuitang/quicknotes/internal/web"
)

const sessionCleanupInterval = time.Hour

func main() {
	addr := config.ParseFlags()
	cfg := config.MustLoadConfig(addr)

	obs.Init()
	log := obs.Pkg("main")

	cfg.PrintStartupSummary()

	database, err := db.Open(cfg.DataDir, cfg.DatabaseKey)
	if err != nil {
		log.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer database.Close()

	renderer, err := web.NewRenderer(cfg.TemplatesDir)
	if err != nil {
		log.Error("failed to load templates", "error", err)
		os.Exit(1)
	}

	// Services
	userService := auth.NewUserService(database)
	sessionService := auth.NewSessionService(database, cfg.SessionDuration)
	notesService := notes.NewService(database)

	authMiddleware := auth.NewMiddleware(sessionService)
	authHandlers := auth.NewHandlers(userService, sessionService, cfg.RequireSecureCookies())
	webHandlers := web.NewWebHandler(renderer, notesService, userService)

	limiter := ratelimit.NewRateLimiter(cfg.RateLimitConfig)
	defer limiter.Stop()

	// Routes
	mux := http.NewServeMux()
	authHandlers.RegisterRoutes(mux)
	webHandlers.RegisterRoutes(mux, authMiddleware)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte("ok"))
	})

	// Middleware chain: request context first so everything downstream logs
	// with the request id, then access logging, then rate limiting.
	rateLimited := ratelimit.Middleware(limiter, func(r *http.Request) string {
		sessionID, err := auth.GetFromRequest(r)
		if err != nil {
			return ""
		}
		userID, err := sessionService.Validate(r.Context(), sessionID)
		if err != nil {
			return ""
		}
		return userID
	})

	handler := obs.RequestContextMiddleware(
		obs.AccessLogMiddleware("http", rateLimited(mux)),
	)

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	// Periodic expired session cleanup.
	cleanupCtx, cancelCleanup := context.WithCancel(context.Background())
	defer cancelCleanup()
	go func() {
		ticker := time.NewTicker(sessionCleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := sessionService.Cleanup(cleanupCtx); err != nil {
					log.Error("session cleanup failed", "error", err)
				}
			case <-cleanupCtx.Done():
				return
			}
		}
	}()

	// Graceful shutdown on SIGINT/SIGTERM.
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.ListenAddr, "base_url", cfg.BaseURL)
		errCh <- server.ListenAndServe()
	}()

	select {
	case sig := <-shutdownCh:
		log.Info("shutting down", "signal", sig.String())
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("shutdown failed", "error", err)
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", "error", err)
			os.Exit(1)
		}
	}
}
