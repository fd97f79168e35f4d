// Package cache persists the last synced patient collection so the coordinator
// can serve lookups on a cold start before the record store answers.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"alcyxob/physiotrack/internal/config"
	"alcyxob/physiotrack/internal/domain"
	"alcyxob/physiotrack/internal/repository"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ErrNoSnapshot is returned by Load when nothing has been stored yet.
var ErrNoSnapshot = errors.New("no persisted snapshot")

// snapshotEnvelope is the stored JSON document.
type snapshotEnvelope struct {
	SavedAt int64                `json:"savedAt"` // epoch milliseconds
	Records []domain.PatientData `json:"records"`
}

// stringStore is the subset of *redis.Client the cache uses.
type stringStore interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// RedisSnapshotCache stores the whole collection under a single key.
type RedisSnapshotCache struct {
	client stringStore
	key    string
	ttl    time.Duration
	log    *zap.Logger
}

var _ repository.SnapshotCache = (*RedisSnapshotCache)(nil)

// NewRedisClient connects and pings Redis.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// NewRedisSnapshotCache wraps an existing client. A zero ttl keeps the key forever.
func NewRedisSnapshotCache(client *redis.Client, key string, ttl time.Duration, log *zap.Logger) *RedisSnapshotCache {
	return &RedisSnapshotCache{client: client, key: key, ttl: ttl, log: log.Named("snapshot-cache")}
}

// Load returns the last stored snapshot, or ErrNoSnapshot.
func (c *RedisSnapshotCache) Load(ctx context.Context) ([]domain.PatientData, error) {
	raw, err := c.client.Get(ctx, c.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNoSnapshot
		}
		return nil, fmt.Errorf("load snapshot %s: %w", c.key, err)
	}

	env, err := decodeEnvelope(raw)
	if err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", c.key, err)
	}
	c.log.Debug("Loaded persisted snapshot",
		zap.Int("records", len(env.Records)),
		zap.Time("savedAt", time.UnixMilli(env.SavedAt)))
	return env.Records, nil
}

// Store overwrites the persisted snapshot.
func (c *RedisSnapshotCache) Store(ctx context.Context, records []domain.PatientData) error {
	raw, err := encodeEnvelope(time.Now(), records)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := c.client.Set(ctx, c.key, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("store snapshot %s: %w", c.key, err)
	}
	return nil
}

func encodeEnvelope(savedAt time.Time, records []domain.PatientData) ([]byte, error) {
	return json.Marshal(snapshotEnvelope{SavedAt: savedAt.UnixMilli(), Records: records})
}

func decodeEnvelope(raw []byte) (snapshotEnvelope, error) {
	var env snapshotEnvelope
	err := json.Unmarshal(raw, &env)
	return env, err
}
