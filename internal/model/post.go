// Package model はドメインモデルを定義する。
package model

import "time"

// Post はユーザーの投稿を表す。
// フィード上では削除以外は不変として扱う。
type Post struct {
	ID             int64
	AuthorID       int64
	AuthorUsername string
	Title          string
	Content        string
	CreatedAt      time.Time
	LikeCount      int
	LikedBy        []string // いいねしたユーザー名
}

// PostInput は投稿の作成・更新時の入力値。
// nilフィールドは更新しない。
type PostInput struct {
	Title   *string
	Content *string
}
