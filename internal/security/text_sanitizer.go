// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TextSanitizer は表示名や予定タイトルなどのプレーンテキスト入力から
// HTMLマークアップを除去する。bluemondayのStrictPolicyを使用し、
// タグと属性を一切通過させない。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizer はプレーンテキスト入力のサニタイズ機能のインターフェースを定義する。
type TextSanitizer interface {
	// Sanitize は入力から全てのHTMLタグを除去し、前後の空白を取り除いた文字列を返す。
	// タグの中身のテキストは残す。空文字列の入力には空文字列を返す。
	Sanitize(raw string) string
}

// textSanitizer はTextSanitizerの実装。
// bluemondayのポリシーはスレッドセーフで、複数goroutineから共有できる。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerの新しいインスタンスを生成する。
func NewTextSanitizer() TextSanitizer {
	return &textSanitizer{policy: bluemonday.StrictPolicy()}
}

// Sanitize はタグを除去したプレーンテキストを返す。
// StrictPolicyはテキスト中の & や ' を実体参照に変換するため、
// 保存値がプレーンテキストのままになるよう元に戻す。
func (s *textSanitizer) Sanitize(raw string) string {
	if raw == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(raw)))
}
