package validate

import "github.com/microcosm-cc/bluemonday"

// Sanitizer はユーザー入力からHTMLを除去するインターフェースを定義する。
// 自由記述フィールドの検証前に必ず適用される。
type Sanitizer interface {
	// Sanitize は入力からすべてのHTMLタグと属性を除去したテキストを返す。
	// プラン生成リクエストにマークアップは不要なため、許可タグは存在しない。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(raw string) string
}

// textSanitizer はSanitizerの実装。
// bluemondayのStrictPolicyを保持し、スレッドセーフにサニタイズ処理を行う。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewSanitizer はSanitizerの新しいインスタンスを生成する。
// StrictPolicyはすべてのタグを除去し、テキストのみを残す。
func NewSanitizer() *textSanitizer {
	return &textSanitizer{policy: bluemonday.StrictPolicy()}
}

// Sanitize は入力からすべてのHTMLを除去したテキストを返す。
func (s *textSanitizer) Sanitize(raw string) string {
	return s.policy.Sanitize(raw)
}
