package cache

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/zatekoja/insurance-qa/internal/domain/entities"
	"github.com/zatekoja/insurance-qa/internal/domain/providers"
	redisclient "github.com/zatekoja/insurance-qa/internal/infrastructure/clients/redis"
)

const answerKeyPrefix = "answer:"

// RedisAdapter implements the answer cache on Redis, for deployments that
// want cache hits shared across replicas. TTL expiry is handled by Redis;
// eviction counts are not observable from the client and stay at zero.
type RedisAdapter struct {
	client *redisclient.Client
	ttl    time.Duration

	hits   atomic.Uint64
	misses atomic.Uint64
}

var _ providers.AnswerCache = (*RedisAdapter)(nil)

// NewRedisAdapter creates a Redis-backed answer cache.
func NewRedisAdapter(client *redisclient.Client, ttl time.Duration) *RedisAdapter {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RedisAdapter{client: client, ttl: ttl}
}

// Get retrieves a cached bundle by fingerprint.
func (a *RedisAdapter) Get(ctx context.Context, fingerprint string) (*entities.AnswerBundle, bool) {
	data, err := a.client.Client().Get(ctx, answerKeyPrefix+fingerprint).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Warn().Err(err).Msg("answer cache read failed")
		}
		a.misses.Add(1)
		return nil, false
	}

	var bundle entities.AnswerBundle
	if err := json.Unmarshal(data, &bundle); err != nil {
		log.Warn().Err(err).Msg("answer cache entry corrupt, treating as miss")
		a.misses.Add(1)
		return nil, false
	}

	a.hits.Add(1)
	return &bundle, true
}

// Set stores a bundle under the fingerprint with the configured TTL.
func (a *RedisAdapter) Set(ctx context.Context, fingerprint string, bundle *entities.AnswerBundle) error {
	data, err := json.Marshal(bundle)
	if err != nil {
		return err
	}
	return a.client.Client().Set(ctx, answerKeyPrefix+fingerprint, data, a.ttl).Err()
}

// Stats returns hit/miss counters. Size reflects only what this client can
// see cheaply and is reported as zero for the Redis backend.
func (a *RedisAdapter) Stats() providers.CacheStats {
	return providers.CacheStats{
		Hits:   a.hits.Load(),
		Misses: a.misses.Load(),
	}
}
