// Package model はドメインモデルを定義する。
package model

// PostTimeFormat は投稿日時のJSON表現に使うレイアウト。
const PostTimeFormat = "2006-01-02 15:04:05"

// PostView はフィード1件分のシリアライズ済み表現。
// キャッシュにはこの形のまま保存される。
type PostView struct {
	ID        int64    `json:"id"`
	Title     string   `json:"title"`
	Content   string   `json:"content"`
	Author    string   `json:"author"`
	CreatedAt string   `json:"created_at"`
	Likes     int      `json:"likes"`
	LikedBy   []string `json:"liked_by"`
}

// FeedPage はフィードの1ページ分を表す。
// 永続化されず、アセンブラで再計算されるかキャッシュから復元される。
type FeedPage struct {
	Results  []PostView `json:"results"`
	Next     *string    `json:"next"`
	Previous *string    `json:"previous"`
	Count    int        `json:"count"`
}

// NewPostView はPostをフィード表示用の型に変換する。
func NewPostView(p Post) PostView {
	likedBy := p.LikedBy
	if likedBy == nil {
		likedBy = []string{}
	}
	return PostView{
		ID:        p.ID,
		Title:     p.Title,
		Content:   p.Content,
		Author:    p.AuthorUsername,
		CreatedAt: p.CreatedAt.UTC().Format(PostTimeFormat),
		Likes:     p.LikeCount,
		LikedBy:   likedBy,
	}
}

// EmptyFeedPage は結果0件・次ページなしのページを返す。
func EmptyFeedPage() *FeedPage {
	return &FeedPage{Results: []PostView{}}
}
