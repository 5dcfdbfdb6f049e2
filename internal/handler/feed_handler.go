package handler

import (
	"context"
	"net/http"
	"net/url"

	"github.com/hitoshi/followfeed/internal/feed"
	"github.com/hitoshi/followfeed/internal/middleware"
	"github.com/hitoshi/followfeed/internal/pagination"
)

// FeedCacheHeader はフィードキャッシュの参照結果（hit, miss, unavailable）を返すヘッダー。
// unavailableはキャッシュ障害でストアから直接組み立てたことを示す。
const FeedCacheHeader = middleware.FeedCacheHeader

// FeedServiceInterface はフィードハンドラーが必要とするサービスインターフェース。
type FeedServiceInterface interface {
	// Feed は閲覧者のフィードの指定ページを返す。
	Feed(ctx context.Context, viewerID int64, token string, base *url.URL) (*feed.Result, error)
}

// FeedHandler はフォロー中ユーザーの投稿フィードのHTTPハンドラー。
type FeedHandler struct {
	service FeedServiceInterface
	baseURL *url.URL
}

// NewFeedHandler はFeedHandlerを生成する。
// baseURLはnext/previousリンクの生成に使う。nilの場合はリクエストのHostから組み立てる。
func NewFeedHandler(service FeedServiceInterface, baseURL *url.URL) *FeedHandler {
	return &FeedHandler{
		service: service,
		baseURL: baseURL,
	}
}

// GetFeed はフィードの1ページを返す。
// GET /api/feed/?page=<n>
func (h *FeedHandler) GetFeed(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	token := r.URL.Query().Get(pagination.QueryParam)

	result, err := h.service.Feed(r.Context(), userID, token, absoluteURL(h.baseURL, r))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	w.Header().Set(FeedCacheHeader, result.CacheStatus.String())
	writeJSON(w, http.StatusOK, result.Page)
}
