// Package cache is the redis read cache for deltakere. Reads are best
// effort: a cache failure logs and falls through to the store, never to the
// caller.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/navikt/amt-deltaker-sub001/internal/deltaker"
	"github.com/navikt/amt-deltaker-sub001/internal/platform/redis"
	"github.com/navikt/amt-deltaker-sub001/pkg/platform/sentinel"

	"github.com/google/uuid"
)

const defaultTTL = 10 * time.Minute

// Cache stores serialized deltakere under deltaker:<id>. A nil underlying
// client disables caching entirely.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func New(client *redis.Client, logger *slog.Logger) *Cache {
	return &Cache{
		client: client,
		ttl:    defaultTTL,
		logger: logger.With(slog.String("component", "deltaker-cache")),
	}
}

func key(id uuid.UUID) string {
	return "deltaker:" + id.String()
}

// Get returns the cached deltaker or sentinel.ErrNotFound on a miss.
func (c *Cache) Get(ctx context.Context, id uuid.UUID) (deltaker.Deltaker, error) {
	if c.client == nil {
		return deltaker.Deltaker{}, sentinel.ErrNotFound
	}
	data, err := c.client.Get(ctx, key(id)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return deltaker.Deltaker{}, sentinel.ErrNotFound
	}
	if err != nil {
		return deltaker.Deltaker{}, fmt.Errorf("cache get %s: %w", id, err)
	}
	var d deltaker.Deltaker
	if err := json.Unmarshal(data, &d); err != nil {
		// A stale serialization format is treated as a miss.
		c.logger.WarnContext(ctx, "dropping undecodable cache entry", slog.String("deltakerId", id.String()))
		return deltaker.Deltaker{}, sentinel.ErrNotFound
	}
	return d, nil
}

// Set stores the deltaker; failures are logged, not returned.
func (c *Cache) Set(ctx context.Context, d deltaker.Deltaker) {
	if c.client == nil {
		return
	}
	data, err := json.Marshal(d)
	if err != nil {
		c.logger.WarnContext(ctx, "marshal deltaker for cache", slog.String("error", err.Error()))
		return
	}
	if err := c.client.Set(ctx, key(d.ID), data, c.ttl).Err(); err != nil {
		c.logger.WarnContext(ctx, "cache set failed", slog.String("error", err.Error()))
	}
}

// Invalidate drops the entry; failures are logged, not returned. Every
// mutation invalidates before returning so readers never see the old state
// beyond the TTL.
func (c *Cache) Invalidate(ctx context.Context, id uuid.UUID) {
	if c.client == nil {
		return
	}
	if err := c.client.Del(ctx, key(id)).Err(); err != nil {
		c.logger.WarnContext(ctx, "cache invalidate failed",
			slog.String("deltakerId", id.String()), slog.String("error", err.Error()))
	}
}
