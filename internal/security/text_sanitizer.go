// Package security はユーザー入力の無害化を提供する。
package security

import (
	"html"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizer は広告のタイトルや説明文からマークアップを除去する。
type TextSanitizer interface {
	// Sanitize は全てのHTMLタグを除去したプレーンテキストを返す。
	// タグ以外の「<」「&」などは入力のまま残り、HTMLエスケープはしない。
	// 出力をHTMLに埋め込む側でエスケープすること。
	Sanitize(raw string) string
}

// textSanitizer はbluemondayのStrictPolicyによるTextSanitizer実装。
// bluemonday.Policyは初期化後の並行利用が安全。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerを生成する。
func NewTextSanitizer() TextSanitizer {
	return &textSanitizer{policy: bluemonday.StrictPolicy()}
}

func (s *textSanitizer) Sanitize(raw string) string {
	// bluemondayはテキスト部分をエスケープして返すため元の文字に戻す
	return html.UnescapeString(s.policy.Sanitize(raw))
}
