package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/park285/Cheese-Ladder-bot/internal/ladder"
)

// Redis keeps the snapshot under a single key and guards saves with WATCH.
type Redis struct {
	rdb *redis.Client
	key string
}

func NewRedis(redisURL, key string) (*Redis, error) {
	if strings.TrimSpace(redisURL) == "" {
		return nil, fmt.Errorf("REDIS_URL is required for the redis backend")
	}
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	return NewRedisWithClient(redis.NewClient(opt), key), nil
}

func NewRedisWithClient(rdb *redis.Client, key string) *Redis {
	if strings.TrimSpace(key) == "" {
		key = DefaultRedisKey
	}
	return &Redis{rdb: rdb, key: key}
}

func (s *Redis) Load(ctx context.Context) (*ladder.Snapshot, error) {
	raw, err := s.rdb.Get(ctx, s.key).Bytes()
	if err == redis.Nil {
		return emptySnapshot(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", s.key, err)
	}
	return decode(raw)
}

func (s *Redis) Save(ctx context.Context, snap *ladder.Snapshot) error {
	raw, next, err := encodeNext(snap)
	if err != nil {
		return err
	}
	err = s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, s.key).Bytes()
		if err != nil && err != redis.Nil {
			return err
		}
		var head struct {
			Version int64 `json:"version"`
		}
		if len(cur) > 0 {
			if err := json.Unmarshal(cur, &head); err != nil {
				return fmt.Errorf("%w: %v", ladder.ErrCorruptSnapshot, err)
			}
		}
		if head.Version != snap.Version {
			return ErrVersionConflict
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, s.key, raw, 0)
			return nil
		})
		return err
	}, s.key)
	if errors.Is(err, redis.TxFailedErr) {
		return ErrVersionConflict
	}
	if err != nil {
		return fmt.Errorf("redis save %s: %w", s.key, err)
	}
	snap.Version = next
	return nil
}

func (s *Redis) Close() error { return s.rdb.Close() }
