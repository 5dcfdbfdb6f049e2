package cache

import (
	"context"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/hitoshi/followfeed/internal/model"
)

// DefaultMemoryMaxEntries はMemoryFeedCacheのデフォルト最大エントリ数。
const DefaultMemoryMaxEntries = 10000

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

// MemoryFeedCache はプロセス内のTTL付きLRUキャッシュ。
// 値はJSONで保持するため、呼び出し側が返却値を変更してもキャッシュには影響しない。
type MemoryFeedCache struct {
	entries *lru.Cache[string, memoryEntry]
	now     func() time.Time
}

// NewMemoryFeedCache はMemoryFeedCacheを生成する。
// maxEntriesが0以下の場合はDefaultMemoryMaxEntriesを使用する。
func NewMemoryFeedCache(maxEntries int) (*MemoryFeedCache, error) {
	if maxEntries <= 0 {
		maxEntries = DefaultMemoryMaxEntries
	}
	entries, err := lru.New[string, memoryEntry](maxEntries)
	if err != nil {
		return nil, fmt.Errorf("failed to create memory cache: %w", err)
	}
	return &MemoryFeedCache{entries: entries, now: time.Now}, nil
}

// Get はキーの値を返す。期限切れのエントリは削除してミスとする。
func (c *MemoryFeedCache) Get(ctx context.Context, key string) (*model.FeedPage, Status, error) {
	if err := ctx.Err(); err != nil {
		return nil, StatusUnavailable, fmt.Errorf("%w: %v", model.ErrCacheUnavailable, err)
	}

	entry, ok := c.entries.Get(key)
	if !ok {
		return nil, StatusMiss, nil
	}
	if !c.now().Before(entry.expiresAt) {
		c.entries.Remove(key)
		return nil, StatusMiss, nil
	}

	page, err := decodePage(entry.data)
	if err != nil {
		c.entries.Remove(key)
		return nil, StatusMiss, fmt.Errorf("get %s: %w", key, err)
	}
	return page, StatusHit, nil
}

// Set はページをttl付きで保存する。上限を超えた場合は最も古く参照されたエントリを追い出す。
func (c *MemoryFeedCache) Set(ctx context.Context, key string, page *model.FeedPage, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", model.ErrCacheUnavailable, err)
	}

	data, err := encodePage(page)
	if err != nil {
		return err
	}
	c.entries.Add(key, memoryEntry{data: data, expiresAt: c.now().Add(ttl)})
	return nil
}

// Ping は常に成功する。
func (c *MemoryFeedCache) Ping(ctx context.Context) error {
	return nil
}

// Len は保持しているエントリ数を返す（期限切れを含む）。
func (c *MemoryFeedCache) Len() int {
	return c.entries.Len()
}

// compile-time interface check
var _ FeedCache = (*MemoryFeedCache)(nil)
