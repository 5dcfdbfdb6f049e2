package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/followfeed/internal/auth"
	"github.com/hitoshi/followfeed/internal/model"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	// Signup は新規ユーザーを登録する。
	Signup(ctx context.Context, in auth.SignupInput) (*model.User, error)
	// Login はメールアドレスとパスワードを検証し、アクセストークンを発行する。
	Login(ctx context.Context, email, password string) (*auth.LoginResult, error)
}

// AuthHandler はユーザー登録とログインのHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface) *AuthHandler {
	return &AuthHandler{service: service}
}

type signupRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// accountResponse は登録・ログイン時に返すユーザー情報。
type accountResponse struct {
	ID       int64  `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username"`
}

type loginResponse struct {
	User    accountResponse `json:"user"`
	Message string          `json:"message"`
	Access  string          `json:"access"`
}

// Signup はユーザー登録を処理する。
// POST /api/users/signup/
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.service.Signup(r.Context(), auth.SignupInput{
		Email:    req.Email,
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toAccountResponse(user))
}

// Login はログインを処理し、アクセストークンを返す。
// POST /api/users/login/
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		User:    toAccountResponse(result.User),
		Message: "Login successful",
		Access:  result.AccessToken,
	})
}

func toAccountResponse(u *model.User) accountResponse {
	return accountResponse{
		ID:       u.ID,
		Email:    u.Email,
		Username: u.Username,
	}
}
