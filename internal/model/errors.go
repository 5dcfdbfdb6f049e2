// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, feed, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 依存先の障害を表す番兵エラー。
// 呼び出し側はerrors.Isで判定する。
var (
	// ErrDependencyUnavailable はフォローグラフまたは投稿ストアに到達できないことを示す。
	ErrDependencyUnavailable = errors.New("dependency unavailable")
	// ErrCacheUnavailable はキャッシュバックエンドに到達できないことを示す。
	// キャッシュミスとは区別される。
	ErrCacheUnavailable = errors.New("cache unavailable")
)

// 定義済みエラーコード
const (
	ErrCodeUnauthorized          = "UNAUTHORIZED"
	ErrCodeInvalidRequest        = "INVALID_REQUEST"
	ErrCodeInvalidCredentials    = "INVALID_CREDENTIALS"
	ErrCodeEmailTaken            = "EMAIL_TAKEN"
	ErrCodeUserNotFound          = "USER_NOT_FOUND"
	ErrCodeCannotFollowSelf      = "CANNOT_FOLLOW_SELF"
	ErrCodeAlreadyFollowing      = "ALREADY_FOLLOWING"
	ErrCodePostNotFound          = "POST_NOT_FOUND"
	ErrCodeForbidden             = "FORBIDDEN"
	ErrCodeCacheUnavailable      = "CACHE_UNAVAILABLE"
	ErrCodeDependencyUnavailable = "DEPENDENCY_UNAVAILABLE"
	ErrCodeInternal              = "INTERNAL_ERROR"
)

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "Authentication credentials were not provided.",
		Category: "auth",
		Action:   "Log in and send the access token as a Bearer token.",
	}
}

// NewInvalidRequestError はリクエスト不正エラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  reason,
		Category: "validation",
		Action:   "Check the request body and parameters.",
	}
}

// NewInvalidCredentialsError は認証情報不一致エラーを生成する。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "Invalid credentials",
		Category: "auth",
		Action:   "Check the email address and password.",
	}
}

// NewEmailTakenError はメールアドレス重複エラーを生成する。
func NewEmailTakenError(email string) *APIError {
	return &APIError{
		Code:     ErrCodeEmailTaken,
		Message:  fmt.Sprintf("A user with email %s already exists.", email),
		Category: "validation",
		Action:   "Use another email address or log in.",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "User not found.",
		Category: "validation",
		Action:   "Check the user ID.",
	}
}

// NewCannotFollowSelfError は自分自身へのフォロー操作エラーを生成する。
// action には "follow" または "unfollow" を指定する。
func NewCannotFollowSelfError(action string) *APIError {
	return &APIError{
		Code:     ErrCodeCannotFollowSelf,
		Message:  fmt.Sprintf("You can't %s yourself", action),
		Category: "validation",
		Action:   "Choose another user.",
	}
}

// NewAlreadyFollowingError はフォロー済みユーザーへの再フォローエラーを生成する。
func NewAlreadyFollowingError(username string) *APIError {
	return &APIError{
		Code:     ErrCodeAlreadyFollowing,
		Message:  fmt.Sprintf("You are already following %s", username),
		Category: "validation",
		Action:   "No action needed.",
	}
}

// NewPostNotFoundError は投稿が見つからない場合のエラーを生成する。
func NewPostNotFoundError(postID int64) *APIError {
	return &APIError{
		Code:     ErrCodePostNotFound,
		Message:  fmt.Sprintf("Post %d not found.", postID),
		Category: "validation",
		Action:   "Check the post ID.",
	}
}

// NewForbiddenError は権限のない操作のエラーを生成する。
func NewForbiddenError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  message,
		Category: "auth",
		Action:   "Only the author can modify this resource.",
	}
}

// NewCacheUnavailableError はstrictポリシー時のキャッシュ障害エラーを生成する。
func NewCacheUnavailableError() *APIError {
	return &APIError{
		Code:     ErrCodeCacheUnavailable,
		Message:  "Internal server error: cache unavailable",
		Category: "system",
		Action:   "Retry later.",
	}
}

// NewDependencyUnavailableError はデータストア障害エラーを生成する。
func NewDependencyUnavailableError() *APIError {
	return &APIError{
		Code:     ErrCodeDependencyUnavailable,
		Message:  "Internal server error: storage unavailable",
		Category: "system",
		Action:   "Retry later.",
	}
}

// NewInternalError は内部エラーを生成する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "Internal server error.",
		Category: "system",
		Action:   "Retry later.",
	}
}
