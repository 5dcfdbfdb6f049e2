package feed

import (
	"context"
	"errors"
	"net/url"
	"sort"
	"testing"
	"time"

	"github.com/hitoshi/followfeed/internal/model"
	"github.com/hitoshi/followfeed/internal/pagination"
)

// --- Assembler テスト用モック ---

// mockFollowRepo はテスト用のFollowRepositoryモック。
type mockFollowRepo struct {
	edges map[int64]map[int64]bool
	err   error
}

func newMockFollowRepo() *mockFollowRepo {
	return &mockFollowRepo{edges: make(map[int64]map[int64]bool)}
}

func (m *mockFollowRepo) FolloweesOf(_ context.Context, userID int64) ([]int64, error) {
	if m.err != nil {
		return nil, m.err
	}
	ids := []int64{}
	for id := range m.edges[userID] {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (m *mockFollowRepo) FollowersOf(_ context.Context, userID int64) ([]int64, error) {
	ids := []int64{}
	for follower, followees := range m.edges {
		if followees[userID] {
			ids = append(ids, follower)
		}
	}
	return ids, nil
}

func (m *mockFollowRepo) IsFollowing(_ context.Context, followerID, followeeID int64) (bool, error) {
	return m.edges[followerID][followeeID], nil
}

func (m *mockFollowRepo) Follow(_ context.Context, followerID, followeeID int64) error {
	if m.edges[followerID] == nil {
		m.edges[followerID] = make(map[int64]bool)
	}
	m.edges[followerID][followeeID] = true
	return nil
}

func (m *mockFollowRepo) Unfollow(_ context.Context, followerID, followeeID int64) error {
	delete(m.edges[followerID], followeeID)
	return nil
}

// mockPostRepo はテスト用のPostRepositoryモック。
type mockPostRepo struct {
	posts     []model.Post
	pageErr   error
	pageCalls int
	lastLimit int
	// ListByAuthors/CountByAuthorsを個別に呼んだ回数。フィードでは使われない想定
	separateCalls int
}

func (m *mockPostRepo) byAuthors(authorIDs []int64) []model.Post {
	set := make(map[int64]bool, len(authorIDs))
	for _, id := range authorIDs {
		set[id] = true
	}
	matched := []model.Post{}
	for _, p := range m.posts {
		if set[p.AuthorID] {
			matched = append(matched, p)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})
	return matched
}

func (m *mockPostRepo) slice(authorIDs []int64, offset, limit int) []model.Post {
	matched := m.byAuthors(authorIDs)
	if offset >= len(matched) {
		return []model.Post{}
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end]
}

func (m *mockPostRepo) ListByAuthors(_ context.Context, authorIDs []int64, offset, limit int) ([]model.Post, error) {
	m.separateCalls++
	return m.slice(authorIDs, offset, limit), nil
}

func (m *mockPostRepo) CountByAuthors(_ context.Context, authorIDs []int64) (int, error) {
	m.separateCalls++
	return len(m.byAuthors(authorIDs)), nil
}

func (m *mockPostRepo) PageByAuthors(_ context.Context, authorIDs []int64, offset, limit int) ([]model.Post, int, error) {
	m.pageCalls++
	m.lastLimit = limit
	if m.pageErr != nil {
		return nil, 0, m.pageErr
	}
	return m.slice(authorIDs, offset, limit), len(m.byAuthors(authorIDs)), nil
}

func (m *mockPostRepo) ListAll(_ context.Context) ([]model.Post, error) { return m.posts, nil }

func (m *mockPostRepo) FindByID(_ context.Context, id int64) (*model.Post, error) {
	for i := range m.posts {
		if m.posts[i].ID == id {
			return &m.posts[i], nil
		}
	}
	return nil, nil
}

func (m *mockPostRepo) Create(_ context.Context, post *model.Post) error {
	post.ID = int64(len(m.posts) + 1)
	m.posts = append(m.posts, *post)
	return nil
}

func (m *mockPostRepo) Update(_ context.Context, _ *model.Post) error { return nil }
func (m *mockPostRepo) Delete(_ context.Context, _ int64) error       { return nil }

func (m *mockPostRepo) ToggleLike(_ context.Context, _, _ int64) (bool, error) { return true, nil }

// --- テストデータ ---

var baseTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

const (
	alice int64 = 1
	bob   int64 = 2
	carol int64 = 3
)

func feedURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("url.Parse(%q): %v", raw, err)
	}
	return u
}

// addPosts はauthorの投稿をn件、1分間隔で追加する。
func addPosts(repo *mockPostRepo, author int64, n int, start time.Time) {
	for i := 0; i < n; i++ {
		repo.posts = append(repo.posts, model.Post{
			ID:             int64(len(repo.posts) + 1),
			AuthorID:       author,
			AuthorUsername: "user",
			Title:          "post",
			Content:        "body",
			CreatedAt:      start.Add(time.Duration(i) * time.Minute),
		})
	}
}

// --- テスト ---

// フォロー先がいない場合はどのページでも空で、投稿ストアに問い合わせない
func TestAssembler_NoFollowees(t *testing.T) {
	follows := newMockFollowRepo()
	posts := &mockPostRepo{}
	addPosts(posts, bob, 3, baseTime)
	a := NewAssembler(follows, posts)

	for _, p := range []pagination.Page{1, 5} {
		page, err := a.Assemble(context.Background(), alice, p, feedURL(t, "http://testserver/api/feed/"))
		if err != nil {
			t.Fatalf("page %d: unexpected error: %v", p, err)
		}
		if len(page.Results) != 0 || page.Results == nil {
			t.Errorf("page %d: results = %v, want empty", p, page.Results)
		}
		if page.Next != nil {
			t.Errorf("page %d: next = %q, want nil", p, *page.Next)
		}
		if page.Count != 0 {
			t.Errorf("page %d: count = %d, want 0", p, page.Count)
		}
	}
	if posts.pageCalls != 0 || posts.separateCalls != 0 {
		t.Errorf("post store called %d/%d times, want 0", posts.pageCalls, posts.separateCalls)
	}
}

// フォロー先の投稿のみを新しい順で返し、同時刻はIDの降順
func TestAssembler_OnlyFolloweesOrdered(t *testing.T) {
	follows := newMockFollowRepo()
	_ = follows.Follow(context.Background(), alice, bob)

	posts := &mockPostRepo{posts: []model.Post{
		{ID: 1, AuthorID: bob, Title: "old", CreatedAt: baseTime},
		{ID: 2, AuthorID: carol, Title: "stranger", CreatedAt: baseTime.Add(time.Hour)},
		{ID: 3, AuthorID: bob, Title: "tie-low", CreatedAt: baseTime.Add(time.Minute)},
		{ID: 4, AuthorID: bob, Title: "tie-high", CreatedAt: baseTime.Add(time.Minute)},
		{ID: 5, AuthorID: alice, Title: "mine", CreatedAt: baseTime.Add(2 * time.Hour)},
	}}
	a := NewAssembler(follows, posts)

	page, err := a.Assemble(context.Background(), alice, 1, feedURL(t, "http://testserver/api/feed/"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wantIDs := []int64{4, 3, 1}
	if len(page.Results) != len(wantIDs) {
		t.Fatalf("len(results) = %d, want %d", len(page.Results), len(wantIDs))
	}
	for i, id := range wantIDs {
		if page.Results[i].ID != id {
			t.Errorf("results[%d].ID = %d, want %d", i, page.Results[i].ID, id)
		}
	}
	if page.Count != 3 {
		t.Errorf("count = %d, want 3", page.Count)
	}
	if posts.lastLimit != pagination.PageSize+1 {
		t.Errorf("limit = %d, want %d", posts.lastLimit, pagination.PageSize+1)
	}
}

// 15件の場合: 1ページ目は10件で次ページあり、2ページ目は5件で次ページなし
func TestAssembler_FifteenPosts(t *testing.T) {
	follows := newMockFollowRepo()
	_ = follows.Follow(context.Background(), alice, bob)
	posts := &mockPostRepo{}
	addPosts(posts, bob, 15, baseTime)
	a := NewAssembler(follows, posts)
	base := feedURL(t, "http://testserver/api/feed/")

	first, err := a.Assemble(context.Background(), alice, 1, base)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(first.Results) != 10 {
		t.Errorf("page 1 len = %d, want 10", len(first.Results))
	}
	if first.Next == nil || *first.Next != "http://testserver/api/feed/?page=2" {
		t.Errorf("page 1 next = %v, want page=2 link", first.Next)
	}
	if first.Previous != nil {
		t.Errorf("page 1 previous = %q, want nil", *first.Previous)
	}
	if first.Count != 15 {
		t.Errorf("count = %d, want 15", first.Count)
	}

	second, err := a.Assemble(context.Background(), alice, 2, feedURL(t, "http://testserver/api/feed/?page=2"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(second.Results) != 5 {
		t.Errorf("page 2 len = %d, want 5", len(second.Results))
	}
	if second.Next != nil {
		t.Errorf("page 2 next = %q, want nil", *second.Next)
	}
	if second.Previous == nil || *second.Previous != "http://testserver/api/feed/" {
		t.Errorf("page 2 previous = %v, want link without page", second.Previous)
	}

	// 2ページの間で重複がない
	seen := make(map[int64]bool)
	for _, p := range append(first.Results, second.Results...) {
		if seen[p.ID] {
			t.Errorf("post %d appears twice", p.ID)
		}
		seen[p.ID] = true
	}
}

// ちょうど10件の場合は次ページを返さない
func TestAssembler_ExactPageBoundary(t *testing.T) {
	follows := newMockFollowRepo()
	_ = follows.Follow(context.Background(), alice, bob)
	posts := &mockPostRepo{}
	addPosts(posts, bob, 10, baseTime)
	a := NewAssembler(follows, posts)

	page, err := a.Assemble(context.Background(), alice, 1, feedURL(t, "http://testserver/api/feed/"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(page.Results) != 10 {
		t.Errorf("len = %d, want 10", len(page.Results))
	}
	if page.Next != nil {
		t.Errorf("next = %q, want nil on exact boundary", *page.Next)
	}
}

// データ範囲外のページは空で次ページなし
func TestAssembler_PageBeyondData(t *testing.T) {
	follows := newMockFollowRepo()
	_ = follows.Follow(context.Background(), alice, bob)
	posts := &mockPostRepo{}
	addPosts(posts, bob, 3, baseTime)
	a := NewAssembler(follows, posts)

	page, err := a.Assemble(context.Background(), alice, 4, feedURL(t, "http://testserver/api/feed/?page=4"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(page.Results) != 0 {
		t.Errorf("len = %d, want 0", len(page.Results))
	}
	if page.Next != nil {
		t.Errorf("next = %q, want nil", *page.Next)
	}
}

// 後から投稿された"world"が"hello"より先に並ぶ
func TestAssembler_NewestFirst(t *testing.T) {
	follows := newMockFollowRepo()
	_ = follows.Follow(context.Background(), alice, bob)
	posts := &mockPostRepo{posts: []model.Post{
		{ID: 1, AuthorID: bob, AuthorUsername: "bob", Title: "hello", Content: "hello", CreatedAt: baseTime},
		{ID: 2, AuthorID: bob, AuthorUsername: "bob", Title: "world", Content: "world", CreatedAt: baseTime.Add(time.Second)},
	}}
	a := NewAssembler(follows, posts)

	page, err := a.Assemble(context.Background(), alice, 1, feedURL(t, "http://testserver/api/feed/"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(page.Results) != 2 {
		t.Fatalf("len = %d, want 2", len(page.Results))
	}
	if page.Results[0].Content != "world" || page.Results[1].Content != "hello" {
		t.Errorf("order = [%s, %s], want [world, hello]", page.Results[0].Content, page.Results[1].Content)
	}
	if page.Results[0].Author != "bob" {
		t.Errorf("author = %q, want bob", page.Results[0].Author)
	}
	if page.Results[0].CreatedAt != "2024-03-01 12:00:01" {
		t.Errorf("created_at = %q", page.Results[0].CreatedAt)
	}
}

func TestAssembler_StoreErrors(t *testing.T) {
	boom := errors.New("connection reset")

	t.Run("フォローグラフの障害", func(t *testing.T) {
		follows := newMockFollowRepo()
		follows.err = boom
		a := NewAssembler(follows, &mockPostRepo{})

		_, err := a.Assemble(context.Background(), alice, 1, nil)
		if !errors.Is(err, model.ErrDependencyUnavailable) {
			t.Errorf("err = %v, want ErrDependencyUnavailable", err)
		}
		if !errors.Is(err, boom) {
			t.Errorf("err = %v, want cause preserved", err)
		}
	})

	t.Run("投稿ストアの障害", func(t *testing.T) {
		follows := newMockFollowRepo()
		_ = follows.Follow(context.Background(), alice, bob)
		a := NewAssembler(follows, &mockPostRepo{pageErr: context.DeadlineExceeded})

		_, err := a.Assemble(context.Background(), alice, 1, nil)
		if !errors.Is(err, model.ErrDependencyUnavailable) {
			t.Errorf("err = %v, want ErrDependencyUnavailable", err)
		}
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("err = %v, want cause preserved", err)
		}
	})
}

// countとresultsは1回のスナップショット読み取りから得る
func TestAssembler_CountAndRowsFromOneRead(t *testing.T) {
	follows := newMockFollowRepo()
	_ = follows.Follow(context.Background(), alice, bob)
	_ = follows.Follow(context.Background(), alice, carol)
	posts := &mockPostRepo{}
	addPosts(posts, bob, 7, baseTime)
	addPosts(posts, carol, 6, baseTime.Add(time.Second))
	a := NewAssembler(follows, posts)

	page, err := a.Assemble(context.Background(), alice, 2, feedURL(t, "http://testserver/api/feed/?page=2"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if posts.pageCalls != 1 {
		t.Errorf("pageCalls = %d, want 1", posts.pageCalls)
	}
	if posts.separateCalls != 0 {
		t.Errorf("separate list/count calls = %d, want 0", posts.separateCalls)
	}
	if page.Count != 13 || len(page.Results) != 3 {
		t.Errorf("count = %d, len = %d, want 13 and 3", page.Count, len(page.Results))
	}
}
