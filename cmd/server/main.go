// Argo CD chat assistant panel server.
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
	"github.com/gopaljayanthi/argocd-ui-extension/internal/agent"
	"github.com/gopaljayanthi/argocd-ui-extension/internal/api"
	"github.com/gopaljayanthi/argocd-ui-extension/internal/argocd"
	"github.com/gopaljayanthi/argocd-ui-extension/internal/assistant"
	"github.com/gopaljayanthi/argocd-ui-extension/internal/config"
	"github.com/gopaljayanthi/argocd-ui-extension/internal/identity"
	"github.com/gopaljayanthi/argocd-ui-extension/internal/middleware"
	"github.com/gopaljayanthi/argocd-ui-extension/internal/retention"
	"github.com/gopaljayanthi/argocd-ui-extension/internal/store"
	"github.com/gopaljayanthi/argocd-ui-extension/internal/stream"
	"github.com/gopaljayanthi/argocd-ui-extension/web"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
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

	slog.Info("Starting server",
		"port", cfg.Port,
		"dev", cfg.IsDevelopment(),
		"argocd_url", cfg.ArgoCDURL,
		"rerun_policy", cfg.ActionRerunPolicy,
	)

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
	slog.Info("Database connected")

	argo, err := argocd.NewClient(cfg.ArgoCDURL, argocd.Options{
		Timeout:  cfg.Timeout.ArgoCD,
		Insecure: cfg.ArgoCDInsecure,
		Token:    cfg.ArgoCDToken,
	})
	if err != nil {
		slog.Error("Failed to initialize Argo CD client", "error", err)
		os.Exit(1)
	}

	conversationLogger, err := agent.NewConversationLogger(agent.ConversationLogConfig{
		Enabled:       cfg.ConversationLog.Enabled,
		Dir:           cfg.ConversationLog.Dir,
		GlobalEnabled: cfg.ConversationLog.GlobalEnabled,
		GlobalPath:    cfg.ConversationLog.GlobalPath,
		QueueSize:     cfg.ConversationLog.QueueSize,
	}, logger)
	if err != nil {
		slog.Error("Failed to initialize conversation logger", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := conversationLogger.Close(); closeErr != nil {
			slog.Error("Failed to close conversation logger", "error", closeErr)
		}
	}()

	archiver := store.NewArchiver(repo, cfg.ConversationLog.QueueSize, logger)
	defer archiver.Close()

	agentClient := agent.NewHTTPClient(cfg.Timeout.Agent, logger)
	agentHosts := assistant.NewHostAllowlist(cfg.AgentHosts()...)
	actionHosts := assistant.NewHostAllowlist(cfg.ActionHosts()...)
	logger.Info("Outbound host allowlists",
		"agent_hosts", agentHosts.Hosts(),
		"action_hosts", actionHosts.Hosts(),
	)
	executor := assistant.NewHTTPExecutor(argo.HTTPClient(), argo.Origin(), actionHosts, cfg.Timeout.Action, logger)
	recorder := assistant.Recorders{archiver, assistant.ConversationRecorder{Logger: conversationLogger}}
	metrics := assistant.NewMetrics(prometheus.DefaultRegisterer)
	hub := stream.NewHub()

	panels := assistant.NewRegistry(cfg.PanelIdleTTL, func(username, panelID string) *assistant.Panel {
		key := assistant.Key(username, panelID)
		return assistant.New(assistant.Options{
			Username:     username,
			BackendURL:   cfg.AgentBackendURL,
			BackendHosts: agentHosts,
			Policy:       assistant.RerunPolicy(cfg.ActionRerunPolicy),
			Directory:    argo,
			Agent:        agentClient,
			Executor:     executor,
			Recorder:     recorder,
			Metrics:      metrics,
			Logger:       logger.With("panel", key),
			OnChange: func(st assistant.State) {
				hub.Publish(key, st)
			},
		})
	}, metrics, logger)

	// Initialize handlers.
	authenticator := identity.NewAuthenticator(argo, cfg.ArgoCDToken, logger)
	limiter := api.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
	panelHandler := api.NewPanelHandler(panels, argo, limiter)
	historyHandler := api.NewHistoryHandler(repo)
	healthHandler := api.NewHealthHandler(repo, cfg.Timeout.HealthCheck, panels.Len)
	wsHandler := stream.NewWebSocketHandler(hub, panels, cfg.FrontendURL, cfg.IsDevelopment())

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.CORS(allowedOrigins(cfg)))

	// Public routes.
	healthHandler.RegisterHealth(r)
	r.Handle("/metrics", promhttp.Handler())

	// Authenticated routes.
	r.Group(func(r chi.Router) {
		r.Use(identity.Middleware(authenticator))
		panelHandler.RegisterRoutes(r)
		historyHandler.RegisterRoutes(r)
		r.Get("/ws/panel", wsHandler.ServeHTTP)
	})

	// Embedded panel frontend.
	r.Handle("/*", web.PanelHandler())

	// Agent turns can take a while; no WriteTimeout so slow replies and the
	// panel stream are not cut off.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	retention.StartWorker(ctx, repo, cfg.SessionTTL, retention.DefaultInterval, func(deleted int64) {
		slog.Info("Expired chat sessions removed", "count", deleted)
	})

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
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}

// allowedOrigins permits any origin in development and only the configured
// frontend otherwise.
func allowedOrigins(cfg *config.Config) []string {
	if cfg.IsDevelopment() {
		return []string{"*"}
	}
	return []string{cfg.FrontendURL}
}
