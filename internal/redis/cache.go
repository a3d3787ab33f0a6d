package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nsyasa/okul-bilgi-pano/internal/bundle"
	"github.com/nsyasa/okul-bilgi-pano/internal/clock"
	"github.com/nsyasa/okul-bilgi-pano/internal/model"
)

const DefaultMaxAge = 24 * time.Hour

type envelope struct {
	Timestamp time.Time           `json:"timestamp"`
	Value     *model.PlayerBundle `json:"value"`
}

// Cache keeps the last good bundle. Entries never expire in redis; they are
// only flagged stale once older than maxAge.
type Cache struct {
	rdb    *redis.Client
	maxAge time.Duration
	clock  clock.Clock
}

func NewCache(rdb *redis.Client, maxAge time.Duration, clk clock.Clock) *Cache {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	if clk == nil {
		clk = clock.System{}
	}
	return &Cache{rdb: rdb, maxAge: maxAge, clock: clk}
}

func (c *Cache) Save(ctx context.Context, key string, b *model.PlayerBundle) error {
	data, err := json.Marshal(envelope{Timestamp: c.clock.Now(), Value: b})
	if err != nil {
		return fmt.Errorf("encode bundle: %w", err)
	}
	return Set(ctx, c.rdb, key, data, 0)
}

func (c *Cache) Load(ctx context.Context, key string) (*bundle.Entry, error) {
	data, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, bundle.ErrNoCache
	}
	if err != nil {
		return nil, fmt.Errorf("read cached bundle: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode cached bundle: %w", err)
	}
	if env.Value == nil {
		return nil, bundle.ErrNoCache
	}
	return &bundle.Entry{
		Value:     env.Value,
		Timestamp: env.Timestamp,
		IsStale:   c.clock.Now().Sub(env.Timestamp) > c.maxAge,
	}, nil
}

// KV is a plain string store with an optional expiry on every write.
type KV struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewKV(rdb *redis.Client, ttl time.Duration) *KV {
	return &KV{rdb: rdb, ttl: ttl}
}

func (k *KV) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := k.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (k *KV) Set(ctx context.Context, key, value string) error {
	return Set(ctx, k.rdb, key, value, k.ttl)
}
