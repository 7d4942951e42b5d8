package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"relnotes.app/relnotes/common/id"
	"relnotes.app/relnotes/common/llm"
	"relnotes.app/relnotes/common/logger"
	"relnotes.app/relnotes/common/otel"
	"relnotes.app/relnotes/core/config"
	"relnotes.app/relnotes/internal/classify"
	"relnotes.app/relnotes/internal/http/handler"
	httprouter "relnotes.app/relnotes/internal/http/router"
	"relnotes.app/relnotes/internal/moderation"
	"relnotes.app/relnotes/internal/pipeline"
	"relnotes.app/relnotes/internal/render"
	"relnotes.app/relnotes/internal/source"
	"relnotes.app/relnotes/internal/store"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "error", err)
		os.Exit(1)
	}

	// OTel must init before logger (logger uses OTel provider in production)
	telemetry, err := otel.Setup(ctx, cfg.OTel)
	if err != nil {
		os.Stderr.WriteString("failed to initialize otel: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger.Setup(cfg)
	slog.InfoContext(ctx, "relnotes starting", "env", cfg.Env, "service", cfg.OTel.ServiceName)

	if err := id.Init(1); err != nil {
		slog.ErrorContext(ctx, "failed to initialize snowflake id generator", "error", err)
		os.Exit(1)
	}

	llmClient, err := llm.New(llm.Config{
		APIKey:  cfg.LLM.APIKey,
		BaseURL: cfg.LLM.BaseURL,
		Model:   cfg.LLM.Model,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to create llm client", "error", err)
		os.Exit(1)
	}

	pipe, artifacts, err := buildPipeline(ctx, cfg, llmClient)
	if err != nil {
		slog.ErrorContext(ctx, "failed to build pipeline", "error", err)
		os.Exit(1)
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	if cfg.OTel.Enabled() {
		router.Use(otelgin.Middleware(cfg.OTel.ServiceName))
	}

	httprouter.SetupRoutes(router,
		handler.NewNotesHandler(pipe),
		handler.NewArtifactHandler(artifacts),
	)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.InfoContext(ctx, "http server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.ErrorContext(ctx, "http server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.InfoContext(ctx, "shutting down...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.ErrorContext(shutdownCtx, "http server shutdown error", "error", err)
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "otel shutdown error", "error", err)
		}
	}

	slog.InfoContext(shutdownCtx, "shutdown complete")
}

func buildPipeline(ctx context.Context, cfg config.Config, llmClient llm.Client) (*pipeline.Pipeline, store.ArtifactStore, error) {
	jiraAdapter, err := source.NewJiraAdapter(source.JiraConfig{
		BaseURL:  cfg.Jira.BaseURL,
		Username: cfg.Jira.Username,
		APIToken: cfg.Jira.APIToken,
		PageSize: cfg.Jira.PageSize,
	})
	if err != nil {
		return nil, nil, err
	}

	githubAdapter, err := source.NewGitHubAdapter(source.GitHubConfig{
		Token:   cfg.GitHub.Token,
		BaseURL: cfg.GitHub.BaseURL,
	})
	if err != nil {
		return nil, nil, err
	}

	artifacts, err := store.NewLocalArtifactStore(cfg.Artifacts.RootDir)
	if err != nil {
		return nil, nil, err
	}
	slog.InfoContext(ctx, "artifact store ready", "dir", cfg.Artifacts.RootDir)

	cache := store.NewNoopCache()
	if cfg.Cache.Enabled() {
		redisOpts, err := redis.ParseURL(cfg.Cache.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		redisClient := redis.NewClient(redisOpts)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return nil, nil, err
		}
		cache = store.NewRedisCache(redisClient, time.Duration(cfg.Cache.TTLSeconds)*time.Second)
		slog.InfoContext(ctx, "redis cache connected")
	}

	llmTimeout := time.Duration(cfg.LLM.TimeoutMs) * time.Millisecond

	pipe := pipeline.New(pipeline.Config{
		Gate:         moderation.NewGate(llmClient, llmTimeout),
		Classifier:   classify.NewClassifier(llmClient, llmTimeout),
		Sources:      source.NewRegistry(jiraAdapter, githubAdapter),
		Renderer:     render.NewRenderer(artifacts, cfg.Artifacts.PageSize),
		Cache:        cache,
		FetchTimeout: time.Duration(cfg.FetchTimeoutMs) * time.Millisecond,
	})

	return pipe, artifacts, nil
}
