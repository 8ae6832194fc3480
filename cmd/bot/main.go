package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"pescheria-bot/internal/cache"
	"pescheria-bot/internal/cart"
	"pescheria-bot/internal/catalog"
	"pescheria-bot/internal/config"
	"pescheria-bot/internal/flow"
	"pescheria-bot/internal/handlers"
	"pescheria-bot/internal/llm"
	"pescheria-bot/internal/mcp"
	"pescheria-bot/internal/metrics"
	"pescheria-bot/internal/orders"
	"pescheria-bot/internal/repo"
	"pescheria-bot/internal/session"

	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("database connect failed", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	redis, err := cache.New(ctx, cache.Config{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		TLS:      cfg.RedisTLS,
	})
	if err != nil {
		logger.Warn("redis unavailable, continuing without cache", "error", err)
		redis = nil
	} else {
		defer redis.Close()
	}

	m := metrics.New(cfg.MetricsNamespace)
	repository := repo.New(pool)

	tools := mcp.New(mcp.Config{
		BaseURL:    cfg.MCPBaseURL,
		APIKey:     cfg.MCPAPIKey,
		Timeout:    cfg.MCPTimeout,
		Retries:    cfg.MCPRetries,
		CatalogTTL: cfg.CatalogTTL,
	}, logger, m, redis)

	resolver := catalog.New(tools, logger, m, cfg.CatalogRefresh)
	go resolver.Run(ctx)

	sessions := session.NewStore(cfg.PendingTTL, m)
	go sessions.Sweep(ctx, time.Minute)

	carts := cart.NewStore()
	orderSvc := orders.NewService(tools, resolver, logger)
	engine := flow.New(tools, resolver, carts, sessions, orderSvc, m, logger)

	modelClient := llm.New(llm.Config{
		APIBase: cfg.OpenAIAPIBase,
		APIKey:  cfg.OpenAIAPIKey,
		Model:   cfg.OpenAIModel,
		Timeout: cfg.OpenAITimeout,
	}, logger, m)
	prompts := llm.NewPromptLoader(cfg.PromptPath)

	chat := handlers.NewChatHandler(repository, modelClient, prompts, engine, redis, m, logger, cfg.HistoryLimit)

	mux := http.NewServeMux()
	mux.Handle("/v1/chat/turn", chat)
	mux.HandleFunc("/healthz", handlers.Healthz)
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              cfg.HTTPListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("http server listening", "addr", cfg.HTTPListenAddr, "env", cfg.AppEnv)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", "error", err)
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
