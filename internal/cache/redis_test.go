package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"

	"github.com/hitoshi/followfeed/internal/model"
)

func newTestRedisCache(t *testing.T) (*RedisFeedCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { client.Close() })
	return NewRedisFeedCache(client, time.Second), mr
}

func TestRedisFeedCache_MissThenHit(t *testing.T) {
	c, _ := newTestRedisCache(t)
	ctx := context.Background()
	key := FeedKey(1, 1)

	page, status, err := c.Get(ctx, key)
	if err != nil || status != StatusMiss || page != nil {
		t.Fatalf("Get before Set = (%v, %v, %v), want miss", page, status, err)
	}

	if err := c.Set(ctx, key, samplePage("hello"), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}

	page, status, err = c.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if status != StatusHit {
		t.Fatalf("status = %v, want hit", status)
	}
	if len(page.Results) != 1 || page.Results[0].Title != "hello" {
		t.Errorf("results = %+v", page.Results)
	}
	if page.Next == nil || *page.Next != "http://testserver/api/feed/?page=2" {
		t.Errorf("next = %v", page.Next)
	}
	if page.Count != 11 {
		t.Errorf("count = %d, want 11", page.Count)
	}
}

func TestRedisFeedCache_SetAppliesTTL(t *testing.T) {
	c, mr := newTestRedisCache(t)
	ctx := context.Background()
	key := FeedKey(1, 1)

	if err := c.Set(ctx, key, samplePage("hello"), 60*time.Second); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if ttl := mr.TTL(key); ttl != 60*time.Second {
		t.Errorf("TTL = %v, want 60s", ttl)
	}

	mr.FastForward(61 * time.Second)

	_, status, err := c.Get(ctx, key)
	if err != nil || status != StatusMiss {
		t.Errorf("Get after expiry = (%v, %v), want miss", status, err)
	}
}

// 同一キーへの書き込みは後勝ち
func TestRedisFeedCache_LastWriterWins(t *testing.T) {
	c, _ := newTestRedisCache(t)
	ctx := context.Background()
	key := FeedKey(2, 1)

	if err := c.Set(ctx, key, samplePage("first"), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := c.Set(ctx, key, samplePage("second"), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}

	page, _, err := c.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if page.Results[0].Title != "second" {
		t.Errorf("title = %q, want second", page.Results[0].Title)
	}
}

// 壊れた値はRedisが応答しているので利用不可ではなくミスとし、Setで上書きできる
func TestRedisFeedCache_CorruptPayload(t *testing.T) {
	c, mr := newTestRedisCache(t)
	ctx := context.Background()
	key := FeedKey(3, 1)
	if err := mr.Set(key, "{not json"); err != nil {
		t.Fatalf("miniredis Set: %v", err)
	}

	page, status, err := c.Get(ctx, key)
	if status != StatusMiss {
		t.Fatalf("status = %v, want miss", status)
	}
	if !errors.Is(err, ErrCorruptEntry) {
		t.Errorf("err = %v, want ErrCorruptEntry", err)
	}
	if errors.Is(err, model.ErrCacheUnavailable) {
		t.Errorf("err = %v, must not report the cache as unavailable", err)
	}
	if page != nil {
		t.Errorf("page = %+v, want nil", page)
	}

	if err := c.Set(ctx, key, samplePage("fresh"), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	page, status, err = c.Get(ctx, key)
	if err != nil || status != StatusHit {
		t.Fatalf("after overwrite: status = %v, err = %v, want hit", status, err)
	}
	if page.Results[0].Title != "fresh" {
		t.Errorf("title = %q, want fresh", page.Results[0].Title)
	}
}

func TestRedisFeedCache_ServerDown(t *testing.T) {
	c, mr := newTestRedisCache(t)
	mr.Close()
	ctx := context.Background()

	_, status, err := c.Get(ctx, FeedKey(1, 1))
	if status != StatusUnavailable {
		t.Errorf("Get status = %v, want unavailable", status)
	}
	if !errors.Is(err, model.ErrCacheUnavailable) {
		t.Errorf("Get err = %v, want ErrCacheUnavailable", err)
	}

	if err := c.Set(ctx, FeedKey(1, 1), samplePage("x"), time.Minute); !errors.Is(err, model.ErrCacheUnavailable) {
		t.Errorf("Set err = %v, want ErrCacheUnavailable", err)
	}
	if err := c.Ping(ctx); !errors.Is(err, model.ErrCacheUnavailable) {
		t.Errorf("Ping err = %v, want ErrCacheUnavailable", err)
	}
}

func TestRedisFeedCache_Ping(t *testing.T) {
	c, _ := newTestRedisCache(t)
	if err := c.Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}
}

func TestRedisFeedCache_SetNilPage(t *testing.T) {
	c, _ := newTestRedisCache(t)
	if err := c.Set(context.Background(), FeedKey(1, 1), nil, time.Minute); err == nil {
		t.Error("expected error for nil page")
	}
}

func TestNewRedisFeedCache_DefaultTimeout(t *testing.T) {
	c := NewRedisFeedCache(nil, 0)
	if c.opTimeout != DefaultOpTimeout {
		t.Errorf("opTimeout = %v, want %v", c.opTimeout, DefaultOpTimeout)
	}
}
