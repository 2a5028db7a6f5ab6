package depthcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"ammdepth/internal/model"
)

// Redis caches depth snapshots as JSON values with a server-side TTL, for
// deployments where multiple engine processes share one cache.
type Redis struct {
	client *redis.Client
}

func NewRedis(addr string, db int) *Redis {
	return &Redis{
		client: redis.NewClient(&redis.Options{Addr: addr, DB: db}),
	}
}

func (r *Redis) Get(ctx context.Context, key string) (model.DepthData, bool, error) {
	raw, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return model.DepthData{}, false, nil
		}
		return model.DepthData{}, false, fmt.Errorf("redis get: %w", err)
	}

	var data model.DepthData
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		// A corrupt entry reads as a miss; the fresh value overwrites it.
		return model.DepthData{}, false, nil
	}
	return data, true, nil
}

func (r *Redis) Set(ctx context.Context, key string, data model.DepthData, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal depth data: %w", err)
	}
	return r.client.Set(ctx, key, raw, ttl).Err()
}

func (r *Redis) Close() error {
	return r.client.Close()
}
