package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/hitoshi/followfeed/internal/cache"
	"github.com/hitoshi/followfeed/internal/metrics"
	"github.com/hitoshi/followfeed/internal/model"
	"github.com/hitoshi/followfeed/internal/pagination"
)

// DefaultTTL はフィードキャッシュのデフォルトTTL。
const DefaultTTL = 60 * time.Second

// Policy はキャッシュ障害時の振る舞いを表す。
type Policy string

const (
	// PolicyDegrade はキャッシュ障害を記録した上でアセンブラから直接返す。
	PolicyDegrade Policy = "degrade"
	// PolicyStrict はキャッシュ障害をリクエスト失敗として扱う。
	PolicyStrict Policy = "strict"
)

// ParsePolicy は設定値からPolicyを解析する。空文字列はPolicyDegrade。
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case "", PolicyDegrade:
		return PolicyDegrade, nil
	case PolicyStrict:
		return PolicyStrict, nil
	default:
		return "", fmt.Errorf("unknown feed cache policy %q (want degrade or strict)", s)
	}
}

// PageAssembler はフィードページを組み立てるインターフェース。
// テスタビリティのためAssemblerを抽象化する。
type PageAssembler interface {
	Assemble(ctx context.Context, viewerID int64, page pagination.Page, base *url.URL) (*model.FeedPage, error)
}

// ServiceConfig はフィードサービスの設定。
type ServiceConfig struct {
	TTL    time.Duration
	Policy Policy
}

// Result はフィード取得の結果。CacheStatusはレスポンスヘッダーに使う。
type Result struct {
	Page        *model.FeedPage
	CacheStatus cache.Status
}

// Service はキャッシュアサイド方式でフィードを返すサービス層。
// フロー: キャッシュ参照 → ヒットならそのまま返す → ミス/障害なら組み立て → ベストエフォートで書き戻し
type Service struct {
	assembler PageAssembler
	cache     cache.FeedCache
	metrics   metrics.MetricsCollector
	logger    *slog.Logger
	cfg       ServiceConfig
}

// NewService はServiceを生成する。
// collectorとloggerはnilの場合それぞれ何もしない実装とslog.Default()を使う。
func NewService(assembler PageAssembler, feedCache cache.FeedCache, collector metrics.MetricsCollector, logger *slog.Logger, cfg ServiceConfig) *Service {
	if collector == nil {
		collector = metrics.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Policy == "" {
		cfg.Policy = PolicyDegrade
	}
	return &Service{
		assembler: assembler,
		cache:     feedCache,
		metrics:   collector,
		logger:    logger,
		cfg:       cfg,
	}
}

// Feed は閲覧者のフィードの指定ページを返す。
// tokenが不正な場合はキャッシュにもストアにも触れずに空ページを返す。
// strictポリシーでキャッシュ障害が起きた場合はmodel.ErrCacheUnavailableを返す。
// 壊れたキャッシュエントリはミスとして扱い、組み立て直したページで上書きする。
// 組み立てに失敗した場合はmodel.ErrDependencyUnavailableを返す。
func (s *Service) Feed(ctx context.Context, viewerID int64, token string, base *url.URL) (*Result, error) {
	page, ok := pagination.Parse(token)
	if !ok {
		return &Result{Page: model.EmptyFeedPage(), CacheStatus: cache.StatusMiss}, nil
	}

	key := cache.FeedKey(viewerID, page)

	cached, status, err := s.cache.Get(ctx, key)
	s.metrics.RecordCacheLookup(status.String())

	switch status {
	case cache.StatusHit:
		return &Result{Page: cached, CacheStatus: cache.StatusHit}, nil
	case cache.StatusMiss:
		if err != nil {
			s.logger.Warn("discarding corrupt feed cache entry",
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
		}
	case cache.StatusUnavailable:
		if s.cfg.Policy == PolicyStrict {
			s.logger.Error("feed cache unavailable",
				slog.String("key", key),
				slog.String("policy", string(s.cfg.Policy)),
				slog.String("error", err.Error()),
			)
			return nil, fmt.Errorf("フィードキャッシュを参照できません: %w", err)
		}
		s.logger.Warn("feed cache unavailable, serving from store",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
	}

	assembled, err := s.assemble(ctx, viewerID, page, base)
	if err != nil {
		return nil, err
	}

	s.populate(ctx, key, assembled)

	return &Result{Page: assembled, CacheStatus: status}, nil
}

func (s *Service) assemble(ctx context.Context, viewerID int64, page pagination.Page, base *url.URL) (*model.FeedPage, error) {
	start := time.Now()
	assembled, err := s.assembler.Assemble(ctx, viewerID, page, base)
	s.metrics.RecordAssembleLatency(time.Since(start))
	if err != nil {
		s.metrics.RecordAssembleFailure()
		s.logger.Error("failed to assemble feed",
			slog.Int64("user_id", viewerID),
			slog.Int("page", int(page)),
			slog.String("error", err.Error()),
		)
		if !errors.Is(err, model.ErrDependencyUnavailable) {
			err = fmt.Errorf("%w: %w", model.ErrDependencyUnavailable, err)
		}
		return nil, err
	}
	return assembled, nil
}

// populate は組み立てたページをキャッシュへ書き戻す。
// 失敗はログとメトリクスに残すだけでレスポンスには影響させない。
func (s *Service) populate(ctx context.Context, key string, page *model.FeedPage) {
	if err := s.cache.Set(ctx, key, page, s.cfg.TTL); err != nil {
		s.metrics.RecordCacheWriteFailure()
		s.logger.Warn("failed to populate feed cache",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
	}
}

// Policy は設定されているキャッシュ障害ポリシーを返す。
func (s *Service) Policy() Policy {
	return s.cfg.Policy
}
