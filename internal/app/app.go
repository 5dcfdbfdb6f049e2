package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/followfeed/internal/auth"
	"github.com/hitoshi/followfeed/internal/cache"
	"github.com/hitoshi/followfeed/internal/config"
	"github.com/hitoshi/followfeed/internal/database"
	"github.com/hitoshi/followfeed/internal/feed"
	"github.com/hitoshi/followfeed/internal/handler"
	"github.com/hitoshi/followfeed/internal/logger"
	"github.com/hitoshi/followfeed/internal/metrics"
	"github.com/hitoshi/followfeed/internal/middleware"
	"github.com/hitoshi/followfeed/internal/post"
	"github.com/hitoshi/followfeed/internal/repository"
	"github.com/hitoshi/followfeed/internal/security"
	"github.com/hitoshi/followfeed/internal/user"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、LOG_LEVELに従ってJSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, slog.LevelInfo)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定されたログレベルで再設定する
	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger.SetupDefault(w, level)

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
		slog.String("cache_backend", cfg.CacheBackend),
		slog.String("cache_policy", cfg.FeedCachePolicy),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	case CommandMigrateDown:
		return runMigrateDown(cfg, RollbackSteps(args))
	default:
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return runServe(ctx, cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// DBとキャッシュの準備を待ち、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// ctxがキャンセルされるとグレースフルシャットダウンを行う。
func runServe(ctx context.Context, cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL, database.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
	})
	if err != nil {
		return err
	}
	defer db.Close()

	if err := database.WaitForReady(ctx, db, cfg.StartupRetryMax, retryNotifier("database")); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	slog.Info("database connection established")

	// 2. フィードキャッシュ
	feedCache, closeCache, err := newFeedCache(cfg)
	if err != nil {
		return err
	}
	defer closeCache()

	if err := database.WaitForReady(ctx, database.PingFunc(feedCache.Ping), cfg.StartupRetryMax, retryNotifier("cache")); err != nil {
		// degradeポリシーではキャッシュなしでも起動できる
		if cfg.FeedCachePolicy == string(feed.PolicyStrict) {
			return fmt.Errorf("failed to connect to feed cache: %w", err)
		}
		slog.Warn("feed cache not ready, continuing in degraded mode",
			slog.String("error", err.Error()),
		)
	}

	// 3. ルーターの構築
	registry := prometheus.NewRegistry()
	router, limiter, err := buildRouter(cfg, db, feedCache, registry)
	if err != nil {
		return err
	}
	defer limiter.Stop()

	// 4. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server listen error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// buildRouter はリポジトリ、ドメインサービス、ミドルウェアを組み立ててルーターを返す。
// 返されるRateLimiterは呼び出し側でStopすること。
func buildRouter(cfg *config.Config, db *sql.DB, feedCache cache.FeedCache, registry *prometheus.Registry) (http.Handler, *middleware.RateLimiter, error) {
	policy, err := feed.ParsePolicy(cfg.FeedCachePolicy)
	if err != nil {
		return nil, nil, err
	}
	baseURL, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid BASE_URL: %w", err)
	}

	// リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	followRepo := repository.NewPostgresFollowRepo(db)
	postRepo := repository.NewPostgresPostRepo(db)

	// ドメインサービスの初期化
	collector := metrics.NewCollector(registry)
	tokens := auth.NewTokenIssuer(cfg.JWTSecret, cfg.AccessTokenTTL)
	authService := auth.NewService(userRepo, tokens)
	feedService := feed.NewService(
		feed.NewAssembler(followRepo, postRepo),
		feedCache,
		collector,
		slog.Default(),
		feed.ServiceConfig{TTL: cfg.FeedCacheTTL, Policy: policy},
	)
	userService := user.NewService(userRepo, followRepo)
	postService := post.NewService(postRepo, userRepo, security.NewPostSanitizer())

	rateLimiterCfg := middleware.DefaultRateLimiterConfig()
	rateLimiterCfg.GeneralRate = middleware.PerMinute(cfg.RateLimitGeneral)
	rateLimiterCfg.GeneralBurst = cfg.RateLimitGeneral
	rateLimiterCfg.AuthRate = middleware.PerMinute(cfg.RateLimitAuth)
	rateLimiterCfg.AuthBurst = cfg.RateLimitAuth
	limiter := middleware.NewRateLimiter(rateLimiterCfg)

	router := handler.NewRouter(&handler.RouterDeps{
		Authenticator:      authService,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimiter:        limiter,
		Logger:             slog.Default(),
		Metrics:            collector,

		BaseURL: baseURL,

		AuthService: authService,
		FeedService: feedService,
		UserService: userService,
		PostService: postService,

		HealthChecks:   healthChecks(db, feedCache, policy),
		MetricsHandler: metrics.Handler(registry),
	})

	return router, limiter, nil
}

// healthChecks はヘルスチェック対象を返す。
// キャッシュ障害はstrictポリシーの場合のみリクエスト失敗につながるため、その場合に限り必須とする。
func healthChecks(db database.Pinger, feedCache cache.FeedCache, policy feed.Policy) []handler.HealthCheck {
	return []handler.HealthCheck{
		{Name: "database", Pinger: db, Critical: true},
		{Name: "cache", Pinger: database.PingFunc(feedCache.Ping), Critical: policy == feed.PolicyStrict},
	}
}

// newFeedCache はCACHE_BACKENDに応じたフィードキャッシュと、その解放関数を返す。
func newFeedCache(cfg *config.Config) (cache.FeedCache, func() error, error) {
	switch cfg.CacheBackend {
	case "memory":
		c, err := cache.NewMemoryFeedCache(cfg.MemoryCacheMaxEntries)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create memory cache: %w", err)
		}
		return c, func() error { return nil }, nil
	case "redis":
		client := cache.NewRedisClient(cache.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		return cache.NewRedisFeedCache(client, cfg.CacheOpTimeout), client.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown cache backend %q", cfg.CacheBackend)
	}
}

// retryNotifier は起動時の接続リトライをログに残す関数を返す。
func retryNotifier(dependency string) func(err error, wait time.Duration) {
	return func(err error, wait time.Duration) {
		slog.Warn("dependency not ready, retrying",
			slog.String("dependency", dependency),
			slog.Duration("wait", wait),
			slog.String("error", err.Error()),
		)
	}
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	version, err := database.RunMigrations(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully", slog.Uint64("version", uint64(version)))
	return nil
}

// runMigrateDown は直近stepsバージョン分のマイグレーションを巻き戻す。
func runMigrateDown(cfg *config.Config, steps int) error {
	slog.Info("rolling back database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
		slog.Int("steps", steps),
	)

	version, err := database.RollbackMigrations(cfg.DatabaseURL, steps)
	if err != nil {
		return fmt.Errorf("rollback failed: %w", err)
	}

	slog.Info("database rollback completed", slog.Uint64("version", uint64(version)))
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	target := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(target)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLのパスワードをマスクする。
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	return u.Redacted()
}
