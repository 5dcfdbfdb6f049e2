package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/hitoshi/followfeed/internal/model"
)

// DefaultOpTimeout はRedis操作1回あたりのデフォルトタイムアウト。
const DefaultOpTimeout = 250 * time.Millisecond

// RedisConfig はRedis接続の設定。
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisClient はRedisクライアントを生成する。接続確認は行わない。
func NewRedisClient(cfg RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// RedisFeedCache はRedisを使用したFeedCache実装。
type RedisFeedCache struct {
	client    redis.UniversalClient
	opTimeout time.Duration
}

// NewRedisFeedCache はRedisFeedCacheを生成する。
// opTimeoutが0以下の場合はDefaultOpTimeoutを使用する。
func NewRedisFeedCache(client redis.UniversalClient, opTimeout time.Duration) *RedisFeedCache {
	if opTimeout <= 0 {
		opTimeout = DefaultOpTimeout
	}
	return &RedisFeedCache{client: client, opTimeout: opTimeout}
}

// Get はキーの値を取得する。redis.Nilはミス、それ以外のエラーは利用不可として扱う。
// 復元できない値はErrCorruptEntry付きのミスとする。次のSetで上書きされる。
func (c *RedisFeedCache) Get(ctx context.Context, key string) (*model.FeedPage, Status, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()

	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, StatusMiss, nil
	}
	if err != nil {
		return nil, StatusUnavailable, fmt.Errorf("%w: get %s: %v", model.ErrCacheUnavailable, key, err)
	}

	page, err := decodePage(data)
	if err != nil {
		return nil, StatusMiss, fmt.Errorf("get %s: %w", key, err)
	}
	return page, StatusHit, nil
}

// Set はページをSET key value EX ttlで保存する。
func (c *RedisFeedCache) Set(ctx context.Context, key string, page *model.FeedPage, ttl time.Duration) error {
	data, err := encodePage(page)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()

	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("%w: set %s: %v", model.ErrCacheUnavailable, key, err)
	}
	return nil
}

// Ping はRedisへの疎通を確認する。
func (c *RedisFeedCache) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()

	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: ping: %v", model.ErrCacheUnavailable, err)
	}
	return nil
}

// compile-time interface check
var _ FeedCache = (*RedisFeedCache)(nil)
