package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresFollowRepo はPostgreSQLを使用したフォローグラフリポジトリ。
type PostgresFollowRepo struct {
	db *sql.DB
}

// NewPostgresFollowRepo はPostgresFollowRepoを生成する。
func NewPostgresFollowRepo(db *sql.DB) *PostgresFollowRepo {
	return &PostgresFollowRepo{db: db}
}

// FolloweesOf は指定ユーザーがフォローしているユーザーIDを返す。
// 読み取り時ファンアウトのため件数制限は設けない。
func (r *PostgresFollowRepo) FolloweesOf(ctx context.Context, userID int64) ([]int64, error) {
	return r.queryIDs(ctx,
		`SELECT followee_id FROM follows WHERE follower_id = $1 ORDER BY followee_id`,
		userID,
	)
}

// FollowersOf は指定ユーザーをフォローしているユーザーIDを返す。
func (r *PostgresFollowRepo) FollowersOf(ctx context.Context, userID int64) ([]int64, error) {
	return r.queryIDs(ctx,
		`SELECT follower_id FROM follows WHERE followee_id = $1 ORDER BY follower_id`,
		userID,
	)
}

// IsFollowing はfollowerがfolloweeをフォロー済みかを返す。
func (r *PostgresFollowRepo) IsFollowing(ctx context.Context, followerID, followeeID int64) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM follows WHERE follower_id = $1 AND followee_id = $2)`,
		followerID, followeeID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check follow edge: %w", err)
	}
	return exists, nil
}

// Follow はフォローエッジを追加する。既に存在する場合は何もしない。
func (r *PostgresFollowRepo) Follow(ctx context.Context, followerID, followeeID int64) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO follows (follower_id, followee_id)
		 VALUES ($1, $2)
		 ON CONFLICT (follower_id, followee_id) DO NOTHING`,
		followerID, followeeID,
	)
	if err != nil {
		return fmt.Errorf("failed to insert follow edge: %w", err)
	}
	return nil
}

// Unfollow はフォローエッジを削除する。存在しない場合は何もしない。
func (r *PostgresFollowRepo) Unfollow(ctx context.Context, followerID, followeeID int64) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM follows WHERE follower_id = $1 AND followee_id = $2`,
		followerID, followeeID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete follow edge: %w", err)
	}
	return nil
}

func (r *PostgresFollowRepo) queryIDs(ctx context.Context, query string, userID int64) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query follow edges: %w", err)
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan follow edge: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate follow edges: %w", err)
	}
	return ids, nil
}

// compile-time interface check
var _ FollowRepository = (*PostgresFollowRepo)(nil)
