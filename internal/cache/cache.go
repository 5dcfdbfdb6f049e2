// Package cache はフィードページのTTLキャッシュを提供する。
// 参照結果はヒット・ミス・利用不可の3状態で返し、利用不可をミスと混同しない。
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hitoshi/followfeed/internal/model"
	"github.com/hitoshi/followfeed/internal/pagination"
)

// Status はキャッシュ参照の結果を表す。
type Status int

const (
	// StatusMiss はエントリが存在しない（または期限切れ）ことを示す。
	StatusMiss Status = iota
	// StatusHit はエントリが見つかったことを示す。
	StatusHit
	// StatusUnavailable はキャッシュに到達できないことを示す。
	StatusUnavailable
)

// ErrCorruptEntry は保存済みの値をページとして復元できなかったことを示す。
// バックエンド自体は応答しているため、GetはStatusMissとともにこのエラーを返す。
var ErrCorruptEntry = errors.New("corrupt feed cache entry")

// String はレスポンスヘッダーやメトリクスのラベルに使う表記を返す。
func (s Status) String() string {
	switch s {
	case StatusHit:
		return "hit"
	case StatusMiss:
		return "miss"
	case StatusUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// FeedCache はフィードページのキャッシュインターフェース。
type FeedCache interface {
	// Get はキーに対応するページを返す。
	// StatusUnavailableの場合errはmodel.ErrCacheUnavailableをラップする。
	// 値が壊れていた場合はStatusMissとErrCorruptEntryをラップしたerrを返し、呼び出し側は再構築して上書きする。
	// それ以外のStatusMissとStatusHitではerrはnil。
	Get(ctx context.Context, key string) (*model.FeedPage, Status, error)

	// Set はページをttl付きで保存する。同一キーへの書き込みは後勝ち。
	// 失敗時はmodel.ErrCacheUnavailableをラップしたエラーを返す。
	Set(ctx context.Context, key string, page *model.FeedPage, ttl time.Duration) error

	// Ping はキャッシュへの疎通を確認する。
	Ping(ctx context.Context) error
}

// FeedKey は閲覧者とページ番号からキャッシュキーを組み立てる。
func FeedKey(viewerID int64, page pagination.Page) string {
	return fmt.Sprintf("feed_user_%d_page_%d", viewerID, int(page))
}

func encodePage(page *model.FeedPage) ([]byte, error) {
	if page == nil {
		return nil, fmt.Errorf("%w: nil page", model.ErrCacheUnavailable)
	}
	data, err := json.Marshal(page)
	if err != nil {
		return nil, fmt.Errorf("%w: encode page: %v", model.ErrCacheUnavailable, err)
	}
	return data, nil
}

func decodePage(data []byte) (*model.FeedPage, error) {
	var page model.FeedPage
	if err := json.Unmarshal(data, &page); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptEntry, err)
	}
	if page.Results == nil {
		page.Results = []model.PostView{}
	}
	return &page, nil
}
