// Package user はフォローグラフの操作とユーザー一覧のドメインロジックを提供する。
package user

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/followfeed/internal/model"
	"github.com/hitoshi/followfeed/internal/repository"
)

// Service はユーザーとフォロー関係のサービス層。
// フォロー変更はフィードキャッシュを無効化しない。反映はTTL経過後になる。
type Service struct {
	userRepo   repository.UserRepository
	followRepo repository.FollowRepository
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(userRepo repository.UserRepository, followRepo repository.FollowRepository) *Service {
	return &Service{
		userRepo:   userRepo,
		followRepo: followRepo,
	}
}

// List は全ユーザーをusername昇順で返す。
func (s *Service) List(ctx context.Context) ([]*model.User, error) {
	users, err := s.userRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("ユーザー一覧の取得に失敗しました: %w", err)
	}
	return users, nil
}

// Profile はユーザーをフォロワー・フォロー中ユーザー付きで返す。
func (s *Service) Profile(ctx context.Context, userID int64) (*model.UserProfile, error) {
	user, err := s.findUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	followers, err := s.Followers(ctx, userID)
	if err != nil {
		return nil, err
	}
	following, err := s.Following(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &model.UserProfile{
		User:      *user,
		Followers: followers,
		Following: following,
	}, nil
}

// Followers は指定ユーザーのフォロワーを返す。
func (s *Service) Followers(ctx context.Context, userID int64) ([]model.UserSummary, error) {
	if _, err := s.findUser(ctx, userID); err != nil {
		return nil, err
	}
	ids, err := s.followRepo.FollowersOf(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("フォロワーの取得に失敗しました: %w", err)
	}
	return s.summaries(ctx, ids)
}

// Following は指定ユーザーがフォローしているユーザーを返す。
func (s *Service) Following(ctx context.Context, userID int64) ([]model.UserSummary, error) {
	if _, err := s.findUser(ctx, userID); err != nil {
		return nil, err
	}
	ids, err := s.followRepo.FolloweesOf(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("フォロー中ユーザーの取得に失敗しました: %w", err)
	}
	return s.summaries(ctx, ids)
}

// Follow はfollowerからtargetへのフォローを追加し、対象ユーザーを返す。
// 自分自身とフォロー済みユーザーは拒否する。
func (s *Service) Follow(ctx context.Context, followerID, targetID int64) (*model.User, error) {
	target, err := s.findUser(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if followerID == targetID {
		return nil, model.NewCannotFollowSelfError("follow")
	}

	following, err := s.followRepo.IsFollowing(ctx, followerID, targetID)
	if err != nil {
		return nil, fmt.Errorf("フォロー状態の確認に失敗しました: %w", err)
	}
	if following {
		return nil, model.NewAlreadyFollowingError(target.Username)
	}

	if err := s.followRepo.Follow(ctx, followerID, targetID); err != nil {
		return nil, fmt.Errorf("フォローの追加に失敗しました: %w", err)
	}

	slog.Info("user followed",
		slog.Int64("follower_id", followerID),
		slog.Int64("followee_id", targetID),
	)
	return target, nil
}

// Unfollow はfollowerからtargetへのフォローを解除し、対象ユーザーを返す。
// フォローしていない場合も成功扱いとする。
func (s *Service) Unfollow(ctx context.Context, followerID, targetID int64) (*model.User, error) {
	target, err := s.findUser(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if followerID == targetID {
		return nil, model.NewCannotFollowSelfError("unfollow")
	}

	if err := s.followRepo.Unfollow(ctx, followerID, targetID); err != nil {
		return nil, fmt.Errorf("フォローの解除に失敗しました: %w", err)
	}

	slog.Info("user unfollowed",
		slog.Int64("follower_id", followerID),
		slog.Int64("followee_id", targetID),
	)
	return target, nil
}

func (s *Service) findUser(ctx context.Context, userID int64) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	return user, nil
}

func (s *Service) summaries(ctx context.Context, ids []int64) ([]model.UserSummary, error) {
	if len(ids) == 0 {
		return []model.UserSummary{}, nil
	}
	users, err := s.userRepo.ListByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("ユーザー情報の取得に失敗しました: %w", err)
	}
	return users, nil
}
