// Package pagination はフィードのページ番号トークンを扱う。
//
// トークンは1始まりのページ番号の10進文字列で、URLにそのまま載せられる。
// 不正なトークンはエラーにせず「結果なし」として扱う。
package pagination

import (
	"net/url"
	"strconv"
)

// PageSize は1ページあたりの件数。
const PageSize = 10

// maxPage は受け付ける最大のページ番号。
// これを超えるとOffsetの計算が32ビット整数の範囲を超えるため、不正なトークンとして扱う。
const maxPage = (1<<31 - 1) / PageSize

// QueryParam はページ番号を渡すクエリパラメータ名。
const QueryParam = "page"

// Page は1始まりのページ番号。
type Page int

// First は先頭ページ。
const First Page = 1

// Parse はトークンをページ番号に変換する。
// 空文字列は先頭ページとみなす。
// 数値でない、0以下、オーバーフローする値の場合はfalseを返す。
func Parse(token string) (Page, bool) {
	if token == "" {
		return First, true
	}
	n, err := strconv.Atoi(token)
	if err != nil || n < 1 || n > maxPage {
		return 0, false
	}
	return Page(n), true
}

// String はページ番号をトークン文字列に変換する。
func (p Page) String() string {
	return strconv.Itoa(int(p))
}

// Offset はページ先頭の0始まりオフセットを返す。
func (p Page) Offset() int {
	return (int(p) - 1) * PageSize
}

// ProbeLimit はストアに要求する件数を返す。
// 次ページの有無を判定するため1件多く取得する。
func ProbeLimit() int {
	return PageSize + 1
}

// Slice はProbeLimit件で取得した結果をページサイズに切り詰める。
// 切り詰めが発生した場合のみ次ページが存在する。
func Slice[T any](rows []T) ([]T, bool) {
	if len(rows) > PageSize {
		return rows[:PageSize], true
	}
	return rows, false
}

// NextPage は次ページのページ番号を返す。
// 先読みで次ページに1件以上ある場合のみtrueを返す。
func NextPage(current Page, hasMore bool) (Page, bool) {
	if !hasMore {
		return 0, false
	}
	return current + 1, true
}

// Links はnext/previousの絶対URLを生成する。
// base はリクエストURL（スキームとホストを含む）で、page以外のクエリは保持する。
// 2ページ目のpreviousはpageパラメータを含まないURLになる。
func Links(base *url.URL, current Page, hasMore bool) (next, previous *string) {
	if base == nil {
		return nil, nil
	}
	if p, ok := NextPage(current, hasMore); ok {
		s := withPage(base, p)
		next = &s
	}
	if current > First {
		s := withPage(base, current-1)
		previous = &s
	}
	return next, previous
}

func withPage(base *url.URL, p Page) string {
	u := *base
	q := u.Query()
	if p == First {
		q.Del(QueryParam)
	} else {
		q.Set(QueryParam, p.String())
	}
	u.RawQuery = q.Encode()
	return u.String()
}
