package repository

import (
	"context"
	"database/sql"
	"fmt"

	sqlbuilder "github.com/huandu/go-sqlbuilder"
	"github.com/lib/pq"
	"github.com/samber/lo"

	"github.com/hitoshi/followfeed/internal/model"
)

// postColumns は投稿一覧で取得する列。usersとJOINして著者名を得る。
var postColumns = []string{
	"p.id", "p.author_id", "u.username", "p.title", "p.content", "p.created_at",
}

// querier は*sql.DBと*sql.Txに共通する読み取り操作。
type querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// feedSnapshotTx はフィードページの件数と行を同一スナップショットで読むためのトランザクション設定。
var feedSnapshotTx = &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}

// PostgresPostRepo はPostgreSQLを使用した投稿リポジトリ。
type PostgresPostRepo struct {
	db *sql.DB
}

// NewPostgresPostRepo はPostgresPostRepoを生成する。
func NewPostgresPostRepo(db *sql.DB) *PostgresPostRepo {
	return &PostgresPostRepo{db: db}
}

// buildListByAuthorsQuery はフィード用の投稿取得クエリを組み立てる。
// 全順序を保証するため created_at DESC, id DESC で並べる。
func buildListByAuthorsQuery(authorIDs []int64, offset, limit int) (string, []interface{}) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(postColumns...).From("posts p")
	sb.Join("users u", "u.id = p.author_id")
	sb.Where("p.author_id = ANY(" + sb.Var(pq.Array(authorIDs)) + ")")
	sb.OrderBy("p.created_at DESC", "p.id DESC")
	sb.Limit(limit).Offset(offset)
	return sb.Build()
}

// buildCountByAuthorsQuery は指定著者群の投稿総数を数えるクエリを組み立てる。
func buildCountByAuthorsQuery(authorIDs []int64) (string, []interface{}) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("COUNT(*)").From("posts p")
	sb.Where("p.author_id = ANY(" + sb.Var(pq.Array(authorIDs)) + ")")
	return sb.Build()
}

// ListByAuthors は指定著者群の投稿をcreated_at降順、同時刻はid降順で返す。
func (r *PostgresPostRepo) ListByAuthors(ctx context.Context, authorIDs []int64, offset, limit int) ([]model.Post, error) {
	if len(authorIDs) == 0 {
		return []model.Post{}, nil
	}

	return listByAuthors(ctx, r.db, authorIDs, offset, limit)
}

// CountByAuthors は指定著者群の投稿総数を返す。
func (r *PostgresPostRepo) CountByAuthors(ctx context.Context, authorIDs []int64) (int, error) {
	if len(authorIDs) == 0 {
		return 0, nil
	}

	return countByAuthors(ctx, r.db, authorIDs)
}

// PageByAuthors は件数とページ内の投稿をREPEATABLE READの読み取り専用トランザクションで取得する。
// 同時に投稿が追加・削除されてもcountと投稿一覧は同じ時点の状態を表す。
func (r *PostgresPostRepo) PageByAuthors(ctx context.Context, authorIDs []int64, offset, limit int) ([]model.Post, int, error) {
	if len(authorIDs) == 0 {
		return []model.Post{}, 0, nil
	}

	tx, err := r.db.BeginTx(ctx, feedSnapshotTx)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to begin read-only transaction: %w", err)
	}
	defer tx.Rollback()

	count, err := countByAuthors(ctx, tx, authorIDs)
	if err != nil {
		return nil, 0, err
	}
	posts, err := listByAuthors(ctx, tx, authorIDs, offset, limit)
	if err != nil {
		return nil, 0, err
	}

	if err := tx.Commit(); err != nil {
		return nil, 0, fmt.Errorf("failed to commit read-only transaction: %w", err)
	}
	return posts, count, nil
}

func listByAuthors(ctx context.Context, q querier, authorIDs []int64, offset, limit int) ([]model.Post, error) {
	query, args := buildListByAuthorsQuery(authorIDs, offset, limit)
	posts, err := queryPosts(ctx, q, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts by authors: %w", err)
	}
	if err := attachLikes(ctx, q, posts); err != nil {
		return nil, err
	}
	return posts, nil
}

func countByAuthors(ctx context.Context, q querier, authorIDs []int64) (int, error) {
	query, args := buildCountByAuthorsQuery(authorIDs)
	var count int
	if err := q.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count posts by authors: %w", err)
	}
	return count, nil
}

// ListAll は全投稿をcreated_at降順で返す。
func (r *PostgresPostRepo) ListAll(ctx context.Context) ([]model.Post, error) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(postColumns...).From("posts p")
	sb.Join("users u", "u.id = p.author_id")
	sb.OrderBy("p.created_at DESC", "p.id DESC")
	query, args := sb.Build()

	posts, err := queryPosts(ctx, r.db, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}
	if err := attachLikes(ctx, r.db, posts); err != nil {
		return nil, err
	}
	return posts, nil
}

// FindByID は指定IDの投稿を取得する。見つからない場合はnilを返す。
func (r *PostgresPostRepo) FindByID(ctx context.Context, id int64) (*model.Post, error) {
	post := model.Post{}
	err := r.db.QueryRowContext(ctx,
		`SELECT p.id, p.author_id, u.username, p.title, p.content, p.created_at
		 FROM posts p JOIN users u ON u.id = p.author_id
		 WHERE p.id = $1`,
		id,
	).Scan(&post.ID, &post.AuthorID, &post.AuthorUsername, &post.Title, &post.Content, &post.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find post by ID: %w", err)
	}

	posts := []model.Post{post}
	if err := attachLikes(ctx, r.db, posts); err != nil {
		return nil, err
	}
	return &posts[0], nil
}

// Create は投稿を作成し、採番されたIDとcreated_atをpostに設定する。
func (r *PostgresPostRepo) Create(ctx context.Context, post *model.Post) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO posts (author_id, title, content)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at`,
		post.AuthorID, post.Title, post.Content,
	).Scan(&post.ID, &post.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert post: %w", err)
	}
	return nil
}

// Update は投稿のタイトルと本文を更新する。
func (r *PostgresPostRepo) Update(ctx context.Context, post *model.Post) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE posts SET title = $2, content = $3 WHERE id = $1`,
		post.ID, post.Title, post.Content,
	)
	if err != nil {
		return fmt.Errorf("failed to update post: %w", err)
	}
	return nil
}

// Delete は指定IDの投稿を削除する。
func (r *PostgresPostRepo) Delete(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM posts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete post: %w", err)
	}
	return nil
}

// ToggleLike はいいねを切り替え、切り替え後にいいね済みならtrueを返す。
func (r *PostgresPostRepo) ToggleLike(ctx context.Context, postID, userID int64) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`DELETE FROM post_likes WHERE post_id = $1 AND user_id = $2`,
		postID, userID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to remove like: %w", err)
	}
	removed, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	liked := removed == 0
	if liked {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO post_likes (post_id, user_id) VALUES ($1, $2)
			 ON CONFLICT (post_id, user_id) DO NOTHING`,
			postID, userID,
		); err != nil {
			return false, fmt.Errorf("failed to add like: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return liked, nil
}

// queryPosts はpostColumnsの順で列を返すクエリを実行する。
func queryPosts(ctx context.Context, q querier, query string, args ...interface{}) ([]model.Post, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	posts := []model.Post{}
	for rows.Next() {
		var p model.Post
		if err := rows.Scan(&p.ID, &p.AuthorID, &p.AuthorUsername, &p.Title, &p.Content, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan post row: %w", err)
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return posts, nil
}

// attachLikes は投稿ごとのいいねユーザー名といいね数を設定する。
// 1回のクエリでページ内の全投稿分を取得する。
func attachLikes(ctx context.Context, q querier, posts []model.Post) error {
	if len(posts) == 0 {
		return nil
	}

	ids := lo.Map(posts, func(p model.Post, _ int) int64 { return p.ID })
	rows, err := q.QueryContext(ctx,
		`SELECT pl.post_id, u.username
		 FROM post_likes pl JOIN users u ON u.id = pl.user_id
		 WHERE pl.post_id = ANY($1)
		 ORDER BY u.username`,
		pq.Array(ids),
	)
	if err != nil {
		return fmt.Errorf("failed to list likes: %w", err)
	}
	defer rows.Close()

	likedBy := make(map[int64][]string, len(posts))
	for rows.Next() {
		var postID int64
		var username string
		if err := rows.Scan(&postID, &username); err != nil {
			return fmt.Errorf("failed to scan like row: %w", err)
		}
		likedBy[postID] = append(likedBy[postID], username)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate likes: %w", err)
	}

	for i := range posts {
		names := likedBy[posts[i].ID]
		if names == nil {
			names = []string{}
		}
		posts[i].LikedBy = names
		posts[i].LikeCount = len(names)
	}
	return nil
}

// compile-time interface checks
var (
	_ querier = (*sql.DB)(nil)
	_ querier = (*sql.Tx)(nil)
)

var _ PostRepository = (*PostgresPostRepo)(nil)
