// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/followfeed/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.User, error)

	// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// Create はユーザーを作成し、採番されたIDとcreated_atをuserに設定する。
	// メールアドレスが重複する場合はErrDuplicateEmailを返す。
	Create(ctx context.Context, user *model.User) error

	// List は全ユーザーをusername昇順で返す。
	List(ctx context.Context) ([]*model.User, error)

	// ListByIDs は指定IDのユーザーをusername昇順で返す。
	ListByIDs(ctx context.Context, ids []int64) ([]model.UserSummary, error)
}

// FollowRepository はフォローグラフの永続化インターフェース。
// エッジは(follower, followee)の有向ペアで、同じペアは高々1本。
type FollowRepository interface {
	// FolloweesOf は指定ユーザーがフォローしているユーザーIDを件数制限なしで返す。
	FolloweesOf(ctx context.Context, userID int64) ([]int64, error)

	// FollowersOf は指定ユーザーをフォローしているユーザーIDを返す。
	FollowersOf(ctx context.Context, userID int64) ([]int64, error)

	// IsFollowing はfollowerがfolloweeをフォロー済みかを返す。
	IsFollowing(ctx context.Context, followerID, followeeID int64) (bool, error)

	// Follow はフォローエッジを追加する。既に存在する場合は何もしない。
	Follow(ctx context.Context, followerID, followeeID int64) error

	// Unfollow はフォローエッジを削除する。存在しない場合は何もしない。
	Unfollow(ctx context.Context, followerID, followeeID int64) error
}

// PostRepository は投稿データの永続化インターフェース。
type PostRepository interface {
	// ListByAuthors は指定著者群の投稿をcreated_at降順、同時刻はid降順で返す。
	// offsetとlimitで全順序上の範囲を切り出す。authorIDsが空の場合は空を返す。
	ListByAuthors(ctx context.Context, authorIDs []int64, offset, limit int) ([]model.Post, error)

	// CountByAuthors は指定著者群の投稿総数を返す。
	CountByAuthors(ctx context.Context, authorIDs []int64) (int, error)

	// PageByAuthors はListByAuthorsとCountByAuthorsの結果を同一スナップショットから返す。
	// フィードページのcountとresultsが食い違わないようにするために使う。
	PageByAuthors(ctx context.Context, authorIDs []int64, offset, limit int) ([]model.Post, int, error)

	// ListAll は全投稿をcreated_at降順で返す。
	ListAll(ctx context.Context) ([]model.Post, error)

	// FindByID は指定IDの投稿を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.Post, error)

	// Create は投稿を作成し、採番されたIDとcreated_atをpostに設定する。
	Create(ctx context.Context, post *model.Post) error

	// Update は投稿のタイトルと本文を更新する。
	Update(ctx context.Context, post *model.Post) error

	// Delete は指定IDの投稿を削除する。いいねはCASCADE削除される。
	Delete(ctx context.Context, id int64) error

	// ToggleLike はいいねを切り替え、切り替え後にいいね済みならtrueを返す。
	ToggleLike(ctx context.Context, postID, userID int64) (bool, error)
}
