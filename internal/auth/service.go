// Package auth はユーザー登録、ログイン、アクセストークンの発行と検証を提供する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/followfeed/internal/model"
	"github.com/hitoshi/followfeed/internal/repository"
)

// SignupInput はユーザー登録の入力値。
type SignupInput struct {
	Email    string
	Username string
	Password string
}

// LoginResult はログイン成功時の結果。
type LoginResult struct {
	User        *model.User
	AccessToken string
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	userRepo repository.UserRepository
	tokens   *TokenIssuer
	cost     int
}

// NewService はServiceを生成する。
func NewService(userRepo repository.UserRepository, tokens *TokenIssuer) *Service {
	return &Service{
		userRepo: userRepo,
		tokens:   tokens,
		cost:     bcrypt.DefaultCost,
	}
}

// Signup は新規ユーザーを登録する。
// パスワードはbcryptでハッシュ化して保存する。
func (s *Service) Signup(ctx context.Context, in SignupInput) (*model.User, error) {
	email := strings.TrimSpace(in.Email)
	username := strings.TrimSpace(in.Username)

	if email == "" || username == "" || in.Password == "" {
		return nil, model.NewInvalidRequestError("email, username and password are required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, model.NewInvalidRequestError("Enter a valid email address.")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("パスワードのハッシュ化に失敗しました: %w", err)
	}

	user := &model.User{
		Email:        email,
		Username:     username,
		PasswordHash: string(hash),
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, model.NewEmailTakenError(email)
		}
		return nil, fmt.Errorf("ユーザーの作成に失敗しました: %w", err)
	}

	slog.Info("new user created",
		slog.Int64("user_id", user.ID),
		slog.String("username", user.Username),
	)
	return user, nil
}

// Login はメールアドレスとパスワードを検証し、アクセストークンを発行する。
// ユーザーが存在しない場合もパスワード不一致と同じエラーを返す。
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	if email == "" || password == "" {
		return nil, model.NewInvalidRequestError("Email and password are required")
	}

	user, err := s.userRepo.FindByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return nil, fmt.Errorf("ユーザーの検索に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewInvalidCredentialsError()
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, model.NewInvalidCredentialsError()
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, fmt.Errorf("アクセストークンの発行に失敗しました: %w", err)
	}

	slog.Info("user logged in", slog.Int64("user_id", user.ID))
	return &LoginResult{User: user, AccessToken: token}, nil
}

// Authenticate はアクセストークンを検証し、ユーザーIDを返す。
// 認証ミドルウェアから利用する。
func (s *Service) Authenticate(_ context.Context, token string) (int64, error) {
	return s.tokens.Verify(token)
}
