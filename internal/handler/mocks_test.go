package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/followfeed/internal/auth"
	"github.com/hitoshi/followfeed/internal/feed"
	"github.com/hitoshi/followfeed/internal/middleware"
	"github.com/hitoshi/followfeed/internal/model"
	"github.com/hitoshi/followfeed/internal/post"
	"github.com/hitoshi/followfeed/internal/user"
)

// --- モック定義 ---

type mockAuthService struct {
	signupFn func(ctx context.Context, in auth.SignupInput) (*model.User, error)
	loginFn  func(ctx context.Context, email, password string) (*auth.LoginResult, error)
}

func (m *mockAuthService) Signup(ctx context.Context, in auth.SignupInput) (*model.User, error) {
	return m.signupFn(ctx, in)
}

func (m *mockAuthService) Login(ctx context.Context, email, password string) (*auth.LoginResult, error) {
	return m.loginFn(ctx, email, password)
}

type mockFeedService struct {
	feedFn func(ctx context.Context, viewerID int64, token string, base *url.URL) (*feed.Result, error)
}

func (m *mockFeedService) Feed(ctx context.Context, viewerID int64, token string, base *url.URL) (*feed.Result, error) {
	return m.feedFn(ctx, viewerID, token, base)
}

type mockUserService struct {
	listFn      func(ctx context.Context) ([]*model.User, error)
	profileFn   func(ctx context.Context, userID int64) (*model.UserProfile, error)
	followersFn func(ctx context.Context, userID int64) ([]model.UserSummary, error)
	followingFn func(ctx context.Context, userID int64) ([]model.UserSummary, error)
	followFn    func(ctx context.Context, followerID, targetID int64) (*model.User, error)
	unfollowFn  func(ctx context.Context, followerID, targetID int64) (*model.User, error)
}

func (m *mockUserService) List(ctx context.Context) ([]*model.User, error) {
	return m.listFn(ctx)
}

func (m *mockUserService) Profile(ctx context.Context, userID int64) (*model.UserProfile, error) {
	return m.profileFn(ctx, userID)
}

func (m *mockUserService) Followers(ctx context.Context, userID int64) ([]model.UserSummary, error) {
	return m.followersFn(ctx, userID)
}

func (m *mockUserService) Following(ctx context.Context, userID int64) ([]model.UserSummary, error) {
	return m.followingFn(ctx, userID)
}

func (m *mockUserService) Follow(ctx context.Context, followerID, targetID int64) (*model.User, error) {
	return m.followFn(ctx, followerID, targetID)
}

func (m *mockUserService) Unfollow(ctx context.Context, followerID, targetID int64) (*model.User, error) {
	return m.unfollowFn(ctx, followerID, targetID)
}

type mockPostService struct {
	createFn     func(ctx context.Context, authorID int64, in model.PostInput) (*model.Post, error)
	listFn       func(ctx context.Context) ([]model.Post, error)
	detailFn     func(ctx context.Context, postID int64) (*model.Post, error)
	editFn       func(ctx context.Context, userID, postID int64, in model.PostInput) (*model.Post, error)
	deleteFn     func(ctx context.Context, userID, postID int64) error
	toggleLikeFn func(ctx context.Context, userID, postID int64) (*post.LikeResult, error)
}

func (m *mockPostService) Create(ctx context.Context, authorID int64, in model.PostInput) (*model.Post, error) {
	return m.createFn(ctx, authorID, in)
}

func (m *mockPostService) List(ctx context.Context) ([]model.Post, error) {
	return m.listFn(ctx)
}

func (m *mockPostService) Detail(ctx context.Context, postID int64) (*model.Post, error) {
	return m.detailFn(ctx, postID)
}

func (m *mockPostService) Edit(ctx context.Context, userID, postID int64, in model.PostInput) (*model.Post, error) {
	return m.editFn(ctx, userID, postID, in)
}

func (m *mockPostService) Delete(ctx context.Context, userID, postID int64) error {
	return m.deleteFn(ctx, userID, postID)
}

func (m *mockPostService) ToggleLike(ctx context.Context, userID, postID int64) (*post.LikeResult, error) {
	return m.toggleLikeFn(ctx, userID, postID)
}

// --- compile-time interface checks ---
var (
	_ AuthServiceInterface = (*auth.Service)(nil)
	_ FeedServiceInterface = (*feed.Service)(nil)
	_ PostServiceInterface = (*post.Service)(nil)
	_ UserServiceInterface = (*user.Service)(nil)
)

// --- ヘルパー ---

// authedRequest は認証ミドルウェアを通過した状態のリクエストを生成する。
func authedRequest(method, target, body string, userID int64) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	return req.WithContext(middleware.ContextWithUserID(req.Context(), userID))
}

// serveWithRoute はURLパラメータを解決するためchiのルーターを経由してハンドラーを呼ぶ。
func serveWithRoute(t *testing.T, pattern, method string, h http.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	r := chi.NewRouter()
	r.MethodFunc(method, pattern, h)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeErrorBody(t *testing.T, w *httptest.ResponseRecorder) middleware.ErrorResponseBody {
	t.Helper()
	var body middleware.ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error body: %v\nraw: %s", err, w.Body.String())
	}
	return body
}
