// Command relnotes is an interactive loop for generating release notes
// from the terminal, using the same pipeline as the HTTP server.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"relnotes.app/relnotes/common/id"
	"relnotes.app/relnotes/common/llm"
	"relnotes.app/relnotes/common/logger"
	"relnotes.app/relnotes/core/config"
	"relnotes.app/relnotes/internal/classify"
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
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		os.Exit(1)
	}

	logger.Setup(cfg)

	if err := id.Init(1); err != nil {
		slog.ErrorContext(ctx, "failed to initialize snowflake id generator", "error", err)
		os.Exit(1)
	}

	pipe, err := buildPipeline(ctx, cfg)
	if err != nil {
		slog.ErrorContext(ctx, "failed to build pipeline", "error", err)
		os.Exit(1)
	}

	fmt.Println("Release Notes Generator")
	fmt.Println("Type 'exit' to quit")
	fmt.Println()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		query := strings.TrimSpace(scanner.Text())
		if query == "" {
			continue
		}
		if strings.EqualFold(query, "exit") {
			break
		}

		result, err := pipe.HandleRequest(ctx, query)
		if err != nil {
			var pipeErr *pipeline.Error
			if errors.As(err, &pipeErr) {
				fmt.Printf("error (%s): %s\n\n", pipeErr.Kind, pipeErr.Detail)
			} else {
				fmt.Printf("error: %v\n\n", err)
			}
			continue
		}

		fmt.Println(result.Message)
		fmt.Printf("artifact: %s/%s\n\n", cfg.Artifacts.RootDir, result.Artifact.Name)
	}
}

func buildPipeline(ctx context.Context, cfg config.Config) (*pipeline.Pipeline, error) {
	llmClient, err := llm.New(llm.Config{
		APIKey:  cfg.LLM.APIKey,
		BaseURL: cfg.LLM.BaseURL,
		Model:   cfg.LLM.Model,
	})
	if err != nil {
		return nil, err
	}

	jiraAdapter, err := source.NewJiraAdapter(source.JiraConfig{
		BaseURL:  cfg.Jira.BaseURL,
		Username: cfg.Jira.Username,
		APIToken: cfg.Jira.APIToken,
		PageSize: cfg.Jira.PageSize,
	})
	if err != nil {
		return nil, err
	}

	githubAdapter, err := source.NewGitHubAdapter(source.GitHubConfig{
		Token:   cfg.GitHub.Token,
		BaseURL: cfg.GitHub.BaseURL,
	})
	if err != nil {
		return nil, err
	}

	artifacts, err := store.NewLocalArtifactStore(cfg.Artifacts.RootDir)
	if err != nil {
		return nil, err
	}

	cache := store.NewNoopCache()
	if cfg.Cache.Enabled() {
		redisOpts, err := redis.ParseURL(cfg.Cache.RedisURL)
		if err != nil {
			return nil, err
		}
		redisClient := redis.NewClient(redisOpts)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return nil, err
		}
		cache = store.NewRedisCache(redisClient, time.Duration(cfg.Cache.TTLSeconds)*time.Second)
	}

	llmTimeout := time.Duration(cfg.LLM.TimeoutMs) * time.Millisecond

	return pipeline.New(pipeline.Config{
		Gate:         moderation.NewGate(llmClient, llmTimeout),
		Classifier:   classify.NewClassifier(llmClient, llmTimeout),
		Sources:      source.NewRegistry(jiraAdapter, githubAdapter),
		Renderer:     render.NewRenderer(artifacts, cfg.Artifacts.PageSize),
		Cache:        cache,
		FetchTimeout: time.Duration(cfg.FetchTimeoutMs) * time.Millisecond,
	}), nil
}
