package handler

import (
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/followfeed/internal/metrics"
	"github.com/hitoshi/followfeed/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Authenticator      middleware.TokenAuthenticator
	CORSAllowedOrigins []string
	RateLimiter        *middleware.RateLimiter
	Logger             *slog.Logger
	Metrics            metrics.MetricsCollector

	// next/previousリンクの絶対URLの基準
	BaseURL *url.URL

	AuthService AuthServiceInterface
	FeedService FeedServiceInterface
	UserService UserServiceInterface
	PostService PostServiceInterface

	// 運用エンドポイント
	HealthChecks   []HealthCheck
	MetricsHandler http.Handler
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → Logging → Metrics → Recovery → SecurityHeaders → CORS
//	  認証不要: RateLimit(Auth)
//	  認証必要: Auth → RateLimit(General)
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	collector := deps.Metrics
	if collector == nil {
		collector = metrics.Nop{}
	}

	r.Use(middleware.NewRequestIDMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewMetricsMiddleware(collector))
	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	if len(deps.CORSAllowedOrigins) > 0 {
		r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigins))
	}

	authHandler := NewAuthHandler(deps.AuthService)
	feedHandler := NewFeedHandler(deps.FeedService, deps.BaseURL)
	userHandler := NewUserHandler(deps.UserService, deps.BaseURL)
	postHandler := NewPostHandler(deps.PostService)

	// --- 運用エンドポイント ---
	r.Method(http.MethodGet, "/health", NewHealthHandler(deps.HealthChecks))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	// --- 認証不要のルート ---
	r.Group(func(r chi.Router) {
		if deps.RateLimiter != nil {
			r.Use(deps.RateLimiter.AuthMiddleware())
		}
		r.Post("/api/users/signup/", authHandler.Signup)
		r.Post("/api/users/login/", authHandler.Login)
	})

	// --- 認証が必要なルート ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewAuthMiddleware(deps.Authenticator))
		if deps.RateLimiter != nil {
			r.Use(deps.RateLimiter.GeneralMiddleware())
		}

		r.Get("/api/feed/", feedHandler.GetFeed)

		r.Route("/api/users", func(r chi.Router) {
			r.Get("/list/", userHandler.List)
			r.Get("/detail/{id}/", userHandler.Detail)
			r.Post("/follow/{id}/", userHandler.Follow)
			r.Post("/unfollow/{id}/", userHandler.Unfollow)
			r.Get("/followers/{id}/", userHandler.Followers)
			r.Get("/following/{id}/", userHandler.Following)
		})

		r.Route("/api/posts", func(r chi.Router) {
			r.Post("/create/", postHandler.Create)
			r.Get("/list/", postHandler.List)
			r.Get("/list/{id}/", postHandler.Detail)
			r.Patch("/edit/{id}/", postHandler.Edit)
			r.Delete("/delete/{id}/", postHandler.Delete)
			r.Post("/like/{id}/", postHandler.Like)
		})
	})

	return r
}
