package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"relnotes.app/relnotes/internal/model"
)

var ErrCacheMiss = errors.New("cache miss")

// DocumentCache is the injected keyed store of recently rendered artifacts.
// It is an explicit collaborator so tests can swap it out; the pipeline
// works identically with the no-op implementation.
type DocumentCache interface {
	Get(ctx context.Context, key string) (model.Artifact, error)
	Put(ctx context.Context, key string, artifact model.Artifact) error
}

type redisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) DocumentCache {
	return &redisCache{client: client, ttl: ttl}
}

func (c *redisCache) Get(ctx context.Context, key string) (model.Artifact, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return model.Artifact{}, ErrCacheMiss
		}
		return model.Artifact{}, fmt.Errorf("cache get: %w", err)
	}

	var artifact model.Artifact
	if err := json.Unmarshal(data, &artifact); err != nil {
		return model.Artifact{}, fmt.Errorf("cache decode: %w", err)
	}
	return artifact, nil
}

func (c *redisCache) Put(ctx context.Context, key string, artifact model.Artifact) error {
	data, err := json.Marshal(artifact)
	if err != nil {
		return fmt.Errorf("cache encode: %w", err)
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache put: %w", err)
	}
	return nil
}

type noopCache struct{}

// NewNoopCache returns a cache that never hits, for deployments without
// Redis.
func NewNoopCache() DocumentCache {
	return noopCache{}
}

func (noopCache) Get(ctx context.Context, key string) (model.Artifact, error) {
	return model.Artifact{}, ErrCacheMiss
}

func (noopCache) Put(ctx context.Context, key string, artifact model.Artifact) error {
	return nil
}
