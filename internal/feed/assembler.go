// Package feed はフォロー中ユーザーの投稿フィードの組み立てとキャッシュ制御を提供する。
package feed

import (
	"context"
	"fmt"
	"net/url"

	"github.com/samber/lo"

	"github.com/hitoshi/followfeed/internal/model"
	"github.com/hitoshi/followfeed/internal/pagination"
	"github.com/hitoshi/followfeed/internal/repository"
)

// Assembler はフォローグラフと投稿ストアからフィードページを組み立てる。
// 読み取り専用で副作用を持たない。
type Assembler struct {
	follows repository.FollowRepository
	posts   repository.PostRepository
}

// NewAssembler はAssemblerを生成する。
func NewAssembler(follows repository.FollowRepository, posts repository.PostRepository) *Assembler {
	return &Assembler{follows: follows, posts: posts}
}

// Assemble は閲覧者のフォロー先の投稿を新しい順に並べ、指定ページを返す。
// 同時刻の投稿はIDの降順。baseは次・前ページリンクの生成に使う。
// ストアのエラーはmodel.ErrDependencyUnavailableでラップして返し、再試行はしない。
func (a *Assembler) Assemble(ctx context.Context, viewerID int64, page pagination.Page, base *url.URL) (*model.FeedPage, error) {
	followees, err := a.follows.FolloweesOf(ctx, viewerID)
	if err != nil {
		return nil, fmt.Errorf("%w: フォロー先の取得に失敗しました: %w", model.ErrDependencyUnavailable, err)
	}
	if len(followees) == 0 {
		return model.EmptyFeedPage(), nil
	}
	authors := lo.Uniq(followees)

	// 次ページの有無を判定するため1件多く取得する。件数と行は同じスナップショットから読む
	rows, count, err := a.posts.PageByAuthors(ctx, authors, page.Offset(), pagination.ProbeLimit())
	if err != nil {
		return nil, fmt.Errorf("%w: 投稿の取得に失敗しました: %w", model.ErrDependencyUnavailable, err)
	}
	kept, hasMore := pagination.Slice(rows)

	next, previous := pagination.Links(base, page, hasMore)
	return &model.FeedPage{
		Results:  lo.Map(kept, func(p model.Post, _ int) model.PostView { return model.NewPostView(p) }),
		Next:     next,
		Previous: previous,
		Count:    count,
	}, nil
}
