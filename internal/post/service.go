// Package post は投稿の作成・編集・削除といいねのドメインロジックを提供する。
package post

import (
	"context"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/hitoshi/followfeed/internal/model"
	"github.com/hitoshi/followfeed/internal/repository"
	"github.com/hitoshi/followfeed/internal/security"
)

// MaxTitleLength はタイトルの最大文字数。
const MaxTitleLength = 255

// LikeResult はいいね切り替えの結果。
type LikeResult struct {
	Liked    bool
	Username string
}

// Service は投稿管理のサービス層。
// 投稿の変更はフィードキャッシュを無効化しない。
type Service struct {
	postRepo  repository.PostRepository
	userRepo  repository.UserRepository
	sanitizer security.PostSanitizer
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(postRepo repository.PostRepository, userRepo repository.UserRepository, sanitizer security.PostSanitizer) *Service {
	return &Service{
		postRepo:  postRepo,
		userRepo:  userRepo,
		sanitizer: sanitizer,
	}
}

// Create はauthorIDのユーザーとして投稿を作成する。
// タイトルと本文は必須で、保存前にサニタイズする。
func (s *Service) Create(ctx context.Context, authorID int64, in model.PostInput) (*model.Post, error) {
	if in.Title == nil || in.Content == nil {
		return nil, model.NewInvalidRequestError("title and content are required")
	}
	title, content, err := s.clean(*in.Title, *in.Content)
	if err != nil {
		return nil, err
	}

	p := &model.Post{
		AuthorID: authorID,
		Title:    title,
		Content:  content,
	}
	if err := s.postRepo.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("投稿の作成に失敗しました: %w", err)
	}

	slog.Info("post created",
		slog.Int64("post_id", p.ID),
		slog.Int64("author_id", authorID),
	)
	return s.Detail(ctx, p.ID)
}

// List は全投稿をcreated_at降順で返す。
func (s *Service) List(ctx context.Context) ([]model.Post, error) {
	posts, err := s.postRepo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("投稿一覧の取得に失敗しました: %w", err)
	}
	return posts, nil
}

// Detail は指定IDの投稿を返す。存在しない場合はPOST_NOT_FOUNDを返す。
func (s *Service) Detail(ctx context.Context, postID int64) (*model.Post, error) {
	p, err := s.postRepo.FindByID(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("投稿の取得に失敗しました: %w", err)
	}
	if p == nil {
		return nil, model.NewPostNotFoundError(postID)
	}
	return p, nil
}

// Edit は投稿を部分更新する。nilのフィールドは変更しない。
// 投稿者以外はFORBIDDENを返す。
func (s *Service) Edit(ctx context.Context, userID, postID int64, in model.PostInput) (*model.Post, error) {
	p, err := s.Detail(ctx, postID)
	if err != nil {
		return nil, err
	}
	if p.AuthorID != userID {
		return nil, model.NewForbiddenError("You can't edit this post")
	}

	title, content := p.Title, p.Content
	if in.Title != nil {
		title = *in.Title
	}
	if in.Content != nil {
		content = *in.Content
	}
	p.Title, p.Content, err = s.clean(title, content)
	if err != nil {
		return nil, err
	}

	if err := s.postRepo.Update(ctx, p); err != nil {
		return nil, fmt.Errorf("投稿の更新に失敗しました: %w", err)
	}
	return p, nil
}

// Delete は投稿を削除する。投稿者以外はFORBIDDENを返す。
func (s *Service) Delete(ctx context.Context, userID, postID int64) error {
	p, err := s.Detail(ctx, postID)
	if err != nil {
		return err
	}
	if p.AuthorID != userID {
		return model.NewForbiddenError("You can't delete this post")
	}

	if err := s.postRepo.Delete(ctx, postID); err != nil {
		return fmt.Errorf("投稿の削除に失敗しました: %w", err)
	}

	slog.Info("post deleted",
		slog.Int64("post_id", postID),
		slog.Int64("author_id", userID),
	)
	return nil
}

// ToggleLike はuserIDのユーザーによるいいねを切り替える。
func (s *Service) ToggleLike(ctx context.Context, userID, postID int64) (*LikeResult, error) {
	if _, err := s.Detail(ctx, postID); err != nil {
		return nil, err
	}
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUnauthorizedError()
	}

	liked, err := s.postRepo.ToggleLike(ctx, postID, userID)
	if err != nil {
		return nil, fmt.Errorf("いいねの切り替えに失敗しました: %w", err)
	}
	return &LikeResult{Liked: liked, Username: user.Username}, nil
}

// clean はタイトルと本文をサニタイズして検証する。
func (s *Service) clean(title, content string) (string, string, error) {
	title = s.sanitizer.SanitizeTitle(title)
	content = s.sanitizer.SanitizeContent(content)

	if title == "" {
		return "", "", model.NewInvalidRequestError("title: This field may not be blank.")
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return "", "", model.NewInvalidRequestError(
			fmt.Sprintf("title: Ensure this field has no more than %d characters.", MaxTitleLength))
	}
	if content == "" {
		return "", "", model.NewInvalidRequestError("content: This field may not be blank.")
	}
	return title, content, nil
}
