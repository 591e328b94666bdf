// WrapperAI - HTTP API over a chatbot web UI driven by a headless browser.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/nuan-odoo/wrapperAI/internal/api"
	"github.com/nuan-odoo/wrapperAI/internal/browser"
	"github.com/nuan-odoo/wrapperAI/internal/config"
	"github.com/nuan-odoo/wrapperAI/internal/metrics"
	"github.com/nuan-odoo/wrapperAI/internal/middleware"
	"github.com/nuan-odoo/wrapperAI/internal/session"
	"github.com/nuan-odoo/wrapperAI/internal/store"
	"github.com/nuan-odoo/wrapperAI/web"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "port", cfg.Port, "engine", cfg.Browser.Engine, "headless", cfg.Browser.Headless)
	if config.IsContainer() && !cfg.Browser.Headless {
		slog.Warn("Headful browser requested inside a container, a display server is required")
	}

	// Initialize dependencies.
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected", "history_enabled", cfg.History.Enabled)

	launcher, err := browser.NewLauncher(cfg.Browser.Engine, browser.Options{
		Headless:      cfg.Browser.Headless,
		ExecPath:      cfg.Browser.ExecPath,
		UserAgent:     cfg.Browser.UserAgent,
		InstallDriver: cfg.Browser.Install,
	})
	if err != nil {
		slog.Error("Failed to initialize browser launcher", "error", err)
		os.Exit(1)
	}

	// Initialize the session.
	ctrlCfg := session.ControllerConfig{
		AuthTimeout:      cfg.Session.AuthTimeout,
		LoginStepTimeout: cfg.Session.LoginStepTimeout,
	}
	if cfg.Bootstrap.Enabled() && cfg.Bootstrap.URL != "" {
		ctrlCfg.URLOverrides = map[string]string{cfg.Bootstrap.Target: cfg.Bootstrap.URL}
	}
	ctrl := session.NewController(launcher, ctrlCfg)

	var recorder session.ExchangeRecorder
	var history api.HistoryReader
	if cfg.History.Enabled {
		recorder = repo
		history = repo
	}
	engine := session.NewEngine(ctrl, session.EngineConfig{
		PollInterval:        cfg.Session.PollInterval,
		StabilityThreshold:  cfg.Session.StabilityThreshold,
		MaxExchangeDuration: cfg.Session.MaxExchangeDuration,
		ResponseFormat:      cfg.Session.ResponseFormat,
	}, recorder)

	// Initialize handlers.
	handler := api.NewHandler(ctrl, engine, history, cfg.AllowedOrigins)
	if cfg.ChatRateLimit > 0 {
		handler.WithChatLimiter(middleware.NewRateLimiter(cfg.ChatRateLimit))
	}

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/ping"))
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	handler.RegisterRoutes(r)
	r.Handle("/metrics", metrics.Handler())

	// Serve embedded setup page (SPA catch-all).
	r.Handle("/*", web.SPAHandler())

	// Create server.
	// Exchanges wait for the chatbot to finish answering, so there is no
	// WriteTimeout.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.History.Enabled && cfg.History.Retention > 0 {
		store.StartRetentionWorker(ctx, repo, cfg.History.Retention)
	}

	if cfg.Bootstrap.Enabled() {
		go func() {
			if err := bootstrapSession(ctx, ctrl, cfg.Bootstrap); err != nil {
				slog.Error("Boot-time setup failed, POST /setup to retry", "target", cfg.Bootstrap.Target, "error", err)
			}
		}()
	} else {
		slog.Info("Waiting for setup", "url", "http://localhost:"+cfg.Port)
	}

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	if err := ctrl.Stop(); err != nil {
		slog.Error("Failed to stop browser session", "error", err)
	}

	slog.Info("Server stopped successfully")
}
