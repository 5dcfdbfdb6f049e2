// Package security はアプリケーションのセキュリティ機能を提供する。
//
// PostSanitizer は投稿のタイトルと本文をサニタイズし、
// フィードを閲覧する他ユーザーをXSSから保護する。
// bluemondayの許可リストベースのポリシーで、安全なタグと属性のみを通過させる。
package security

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// PostSanitizer は投稿テキストのサニタイズ機能のインターフェースを定義する。
// 投稿の作成・更新時、保存前に使用される。
type PostSanitizer interface {
	// SanitizeTitle はタイトルから全てのHTMLタグを除去する。
	SanitizeTitle(raw string) string

	// SanitizeContent は本文をサニタイズして安全なHTMLを返す。
	// 許可タグ（p, br, a, strong, em, code, pre, blockquote）のみを通過させ、
	// script, iframe, styleタグおよびon*イベント属性を除去する。
	// aタグのhrefはhttp/httpsの絶対URLのみで、rel="nofollow noreferrer"が付与される。
	// 同一入力に対して常に同一出力を返す（冪等）。
	SanitizeContent(raw string) string
}

// postSanitizer はPostSanitizerの実装。
// bluemondayのポリシーはスレッドセーフなので共有して使う。
type postSanitizer struct {
	title   *bluemonday.Policy
	content *bluemonday.Policy
}

// NewPostSanitizer はPostSanitizerの新しいインスタンスを生成する。
func NewPostSanitizer() *postSanitizer {
	content := bluemonday.NewPolicy()

	// script, iframe, style等は許可リストに含めないことで除去される
	content.AllowElements(
		"p", "br",
		"strong", "em", "code", "pre", "blockquote",
	)

	content.AllowAttrs("href").OnElements("a")
	content.AllowURLSchemes("http", "https")
	content.AllowRelativeURLs(false)
	content.RequireNoFollowOnLinks(true)
	content.RequireNoReferrerOnLinks(true)

	return &postSanitizer{
		title:   bluemonday.StrictPolicy(),
		content: content,
	}
}

// SanitizeTitle はタイトルから全てのHTMLタグを除去し、前後の空白を取り除く。
func (s *postSanitizer) SanitizeTitle(raw string) string {
	return strings.TrimSpace(s.title.Sanitize(raw))
}

// SanitizeContent は本文をサニタイズする。
func (s *postSanitizer) SanitizeContent(raw string) string {
	return s.content.Sanitize(raw)
}
