package handler

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/samber/lo"

	"github.com/hitoshi/followfeed/internal/model"
	"github.com/hitoshi/followfeed/internal/pagination"
)

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	List(ctx context.Context) ([]*model.User, error)
	Profile(ctx context.Context, userID int64) (*model.UserProfile, error)
	Followers(ctx context.Context, userID int64) ([]model.UserSummary, error)
	Following(ctx context.Context, userID int64) ([]model.UserSummary, error)
	// Follow はフォローを追加し、対象ユーザーを返す。
	Follow(ctx context.Context, followerID, targetID int64) (*model.User, error)
	// Unfollow はフォローを解除し、対象ユーザーを返す。
	Unfollow(ctx context.Context, followerID, targetID int64) (*model.User, error)
}

// UserHandler はユーザーとフォロー関係のHTTPハンドラー。
type UserHandler struct {
	service UserServiceInterface
	baseURL *url.URL
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface, baseURL *url.URL) *UserHandler {
	return &UserHandler{
		service: service,
		baseURL: baseURL,
	}
}

type userSummaryResponse struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

type userDetailResponse struct {
	ID             int64                 `json:"id"`
	Email          string                `json:"email"`
	Username       string                `json:"username"`
	Followers      []userSummaryResponse `json:"followers"`
	Following      []userSummaryResponse `json:"following"`
	FollowersCount int                   `json:"followers_count"`
	FollowingCount int                   `json:"following_count"`
}

type userListResponse struct {
	Count    int               `json:"count"`
	Next     *string           `json:"next"`
	Previous *string           `json:"previous"`
	Results  []accountResponse `json:"results"`
}

// List はユーザー一覧をusername昇順でページングして返す。
// GET /api/users/list/?page=<n>
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	page, ok := pagination.Parse(r.URL.Query().Get(pagination.QueryParam))
	if !ok {
		writeAPIErrorResponse(w, http.StatusNotFound, &model.APIError{
			Code:     "NOT_FOUND",
			Message:  "Invalid page.",
			Category: "validation",
			Action:   "Use a positive page number.",
		})
		return
	}

	users, err := h.service.List(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	window := []*model.User{}
	if offset := page.Offset(); offset < len(users) {
		end := min(offset+pagination.ProbeLimit(), len(users))
		window = users[offset:end]
	}
	kept, hasMore := pagination.Slice(window)
	next, previous := pagination.Links(absoluteURL(h.baseURL, r), page, hasMore)

	writeJSON(w, http.StatusOK, userListResponse{
		Count:    len(users),
		Next:     next,
		Previous: previous,
		Results: lo.Map(kept, func(u *model.User, _ int) accountResponse {
			return toAccountResponse(u)
		}),
	})
}

// Detail はユーザーをフォロワー・フォロー中ユーザー付きで返す。
// GET /api/users/detail/{id}/
func (h *UserHandler) Detail(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	profile, err := h.service.Profile(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, userDetailResponse{
		ID:             profile.ID,
		Email:          profile.Email,
		Username:       profile.Username,
		Followers:      toUserSummaries(profile.Followers),
		Following:      toUserSummaries(profile.Following),
		FollowersCount: len(profile.Followers),
		FollowingCount: len(profile.Following),
	})
}

// Follow は認証ユーザーから{id}へのフォローを追加する。
// POST /api/users/follow/{id}/
func (h *UserHandler) Follow(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	targetID, ok := pathID(w, r)
	if !ok {
		return
	}

	target, err := h.service.Follow(r.Context(), userID, targetID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{
		Detail: fmt.Sprintf("You are now following %s", target.Username),
	})
}

// Unfollow は認証ユーザーから{id}へのフォローを解除する。
// POST /api/users/unfollow/{id}/
func (h *UserHandler) Unfollow(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	targetID, ok := pathID(w, r)
	if !ok {
		return
	}

	target, err := h.service.Unfollow(r.Context(), userID, targetID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{
		Detail: fmt.Sprintf("You have unfollowed %s", target.Username),
	})
}

// Followers は{id}のフォロワー一覧を返す。
// GET /api/users/followers/{id}/
func (h *UserHandler) Followers(w http.ResponseWriter, r *http.Request) {
	h.listRelations(w, r, h.service.Followers)
}

// Following は{id}がフォローしているユーザー一覧を返す。
// GET /api/users/following/{id}/
func (h *UserHandler) Following(w http.ResponseWriter, r *http.Request) {
	h.listRelations(w, r, h.service.Following)
}

func (h *UserHandler) listRelations(w http.ResponseWriter, r *http.Request, fetch func(context.Context, int64) ([]model.UserSummary, error)) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	users, err := fetch(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserSummaries(users))
}

func toUserSummaries(users []model.UserSummary) []userSummaryResponse {
	return lo.Map(users, func(u model.UserSummary, _ int) userSummaryResponse {
		return userSummaryResponse{ID: u.ID, Username: u.Username}
	})
}
