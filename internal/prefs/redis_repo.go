package prefs

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisRepository keeps the mapping in a single hash.
type RedisRepository struct {
	rdb redis.UniversalClient
	key string
}

func NewRedisRepository(rdb redis.UniversalClient, key string) *RedisRepository {
	return &RedisRepository{rdb: rdb, key: key}
}

func (r *RedisRepository) Load(ctx context.Context) (map[string]string, error) {
	systems, err := r.rdb.HGetAll(ctx, r.key).Result()
	if err != nil {
		return nil, fmt.Errorf("hgetall %s: %w", r.key, err)
	}
	return systems, nil
}

func (r *RedisRepository) Save(ctx context.Context, systems map[string]string) error {
	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, r.key)
		if len(systems) > 0 {
			pipe.HSet(ctx, r.key, systems)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("replace %s: %w", r.key, err)
	}
	return nil
}
