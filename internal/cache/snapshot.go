package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// SnapshotStore persists successful query results so a fresh process can
// start with warm, stale-but-displayed data. Only public (non-identity-
// scoped) keys are ever written; see Options.Decode.
type SnapshotStore interface {
	// Load returns the persisted bytes for a key, or nil when absent.
	Load(ctx context.Context, key Key) ([]byte, error)
	Save(ctx context.Context, key Key, data []byte) error
	// DeletePrefix drops the snapshot for the prefix key itself plus every
	// key nested under it.
	DeletePrefix(ctx context.Context, prefix Key) error
}

const snapshotKeyPrefix = "snapshot:"

// RedisSnapshots is the Redis-backed SnapshotStore.
type RedisSnapshots struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisSnapshots connects to Redis and verifies the connection.
func NewRedisSnapshots(addr, password string, db int, ttl time.Duration) (*RedisSnapshots, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &RedisSnapshots{rdb: rdb, ttl: ttl}, nil
}

// Close closes the Redis connection.
func (s *RedisSnapshots) Close() error {
	return s.rdb.Close()
}

func (s *RedisSnapshots) Load(ctx context.Context, key Key) ([]byte, error) {
	raw, err := s.rdb.Get(ctx, snapshotKeyPrefix+key.String()).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("snapshot load failed: %w", err)
	}
	return raw, nil
}

func (s *RedisSnapshots) Save(ctx context.Context, key Key, data []byte) error {
	if err := s.rdb.Set(ctx, snapshotKeyPrefix+key.String(), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("snapshot save failed: %w", err)
	}
	return nil
}

func (s *RedisSnapshots) DeletePrefix(ctx context.Context, prefix Key) error {
	// The exact key plus nested tuples. Matching "prefix*" would also hit
	// sibling operations whose name merely starts with the prefix.
	keys := []string{snapshotKeyPrefix + prefix.String()}

	pattern := snapshotKeyPrefix + prefix.String() + "/*"
	iter := s.rdb.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("snapshot scan failed: %w", err)
	}

	if err := s.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("snapshot delete failed: %w", err)
	}
	return nil
}
