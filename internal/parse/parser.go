// Package parse は生成された生テキストを名前付きセクション列に構造化する。
// セクションマーカーの欠落には耐え、失敗ではなく単一セクションへの縮退で応じる。
package parse

import (
	"strings"

	"github.com/hitoshi/ndassist/internal/model"
)

// truncationMarker はセクション内容が上限を超えた場合に付加する明示マーカー。
const truncationMarker = "\n\n[... contenido truncado]"

// Parser は生成テキストのセクション分割を行う。
type Parser struct {
	maxSectionLength int
}

// NewParser はParserを生成する。maxSectionLengthが0以下の場合は8000を使う。
func NewParser(maxSectionLength int) *Parser {
	if maxSectionLength <= 0 {
		maxSectionLength = 8000
	}
	return &Parser{maxSectionLength: maxSectionLength}
}

// Result はパース結果。Degradedはマーカー欠落による単一セクション縮退を示す。
// 縮退は呼び出し元へのエラーとしては報告せず、低重要度の診断イベントのみとする。
type Result struct {
	Title    string
	Sections []model.Section
	Degraded bool
}

// Parse は生テキストをoutputFormatの期待セクション集合に従って分割する。
// 返却順序はテンプレートで固定され、マーカーがテキスト中に現れた順序には依存しない。
// マーカーが1つも見つからない場合は全文を単一の「Plan General」セクションとして返す。
func (p *Parser) Parse(raw string, format model.OutputFormat) Result {
	templates := model.SectionsForFormat(format)
	title := extractTitle(raw)

	found := splitByHeadings(raw)
	if len(found) == 0 {
		return Result{
			Title: title,
			Sections: []model.Section{{
				ID:      model.FallbackSection.ID,
				Title:   model.FallbackSection.Title,
				Content: p.cap(strings.TrimSpace(raw)),
			}},
			Degraded: true,
		}
	}

	var sections []model.Section
	for _, tpl := range templates {
		content, ok := matchSection(found, tpl)
		if !ok || strings.TrimSpace(content) == "" {
			continue
		}
		sections = append(sections, model.Section{
			ID:      tpl.ID,
			Title:   tpl.Title,
			Content: p.cap(strings.TrimSpace(content)),
		})
	}

	// 見出しは存在するがテンプレートと一致しない場合も縮退として扱う
	if len(sections) == 0 {
		return Result{
			Title: title,
			Sections: []model.Section{{
				ID:      model.FallbackSection.ID,
				Title:   model.FallbackSection.Title,
				Content: p.cap(strings.TrimSpace(raw)),
			}},
			Degraded: true,
		}
	}

	return Result{Title: title, Sections: sections}
}

// cap はセクション内容を上限長に切り詰め、超過時は明示マーカーを付加する。
func (p *Parser) cap(content string) string {
	if len(content) <= p.maxSectionLength {
		return content
	}
	return content[:p.maxSectionLength] + truncationMarker
}

// heading は生テキスト中で検出された1つの見出しとその本文。
type heading struct {
	title   string
	content string
}

// splitByHeadings はレベル2見出し（## ...）でテキストを分割する。
func splitByHeadings(raw string) []heading {
	var result []heading
	var current *heading
	var body strings.Builder

	flush := func() {
		if current != nil {
			current.content = body.String()
			result = append(result, *current)
			body.Reset()
		}
	}

	for _, line := range strings.Split(raw, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "## ") {
			flush()
			current = &heading{title: strings.TrimSpace(strings.TrimPrefix(trimmed, "## "))}
			continue
		}
		if current != nil {
			body.WriteString(line)
			body.WriteString("\n")
		}
	}
	flush()

	return result
}

// matchSection はテンプレートに対応する見出しを検出順で探す。
// 見出し表記の揺れ（大文字小文字・アクセント）には正規化で耐える。
func matchSection(found []heading, tpl model.SectionTemplate) (string, bool) {
	want := normalize(tpl.Title)
	for _, h := range found {
		got := normalize(h.title)
		if got == want || strings.Contains(got, want) || strings.Contains(want, got) {
			return h.content, true
		}
	}
	return "", false
}

// extractTitle は最初のレベル1見出し（# ...）をプランタイトルとして抽出する。
// 見つからない場合はデフォルトタイトルを返す。
func extractTitle(raw string) string {
	for _, line := range strings.Split(raw, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(strings.TrimPrefix(trimmed, "# "))
		}
	}
	return "Plan Neurodivergente"
}

// accentReplacer はスペイン語のアクセント記号を正規化する。
var accentReplacer = strings.NewReplacer(
	"á", "a", "é", "e", "í", "i", "ó", "o", "ú", "u", "ü", "u", "ñ", "n",
	"Á", "a", "É", "e", "Í", "i", "Ó", "o", "Ú", "u", "Ü", "u", "Ñ", "n",
)

// normalize は見出し比較用にタイトルを正規化する。
func normalize(s string) string {
	return accentReplacer.Replace(strings.ToLower(strings.TrimSpace(s)))
}
