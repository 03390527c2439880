package processor

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hitoshi/ndassist/internal/model"
)

// Export は1回のエクスポート結果。
type Export struct {
	Filename    string
	ContentType string
	Body        []byte
}

// ValidExportFormats は許可されるエクスポート形式の一覧。
var ValidExportFormats = []string{"json", "txt", "markdown"}

// ExportSession はセッションのプランを指定形式で書き出す。
// エクスポートはセッションのアクセス時刻を更新する。
func (p *Processor) ExportSession(sessionID, format string) (*Export, error) {
	sess := p.lookup(sessionID)
	if sess == nil {
		return nil, model.NewSessionNotFoundError(sessionID)
	}
	p.store.Touch(sessionID)

	stamp := time.Now().Format("2006-01-02")
	switch format {
	case "json":
		body, err := json.MarshalIndent(exportPayload(sess), "", "  ")
		if err != nil {
			return nil, err
		}
		return &Export{
			Filename:    fmt.Sprintf("plan-nd-%s.json", stamp),
			ContentType: "application/json; charset=utf-8",
			Body:        body,
		}, nil
	case "txt":
		return &Export{
			Filename:    fmt.Sprintf("plan-nd-%s.txt", stamp),
			ContentType: "text/plain; charset=utf-8",
			Body:        []byte(renderPlainText(sess)),
		}, nil
	case "markdown":
		return &Export{
			Filename:    fmt.Sprintf("plan-nd-%s.md", stamp),
			ContentType: "text/markdown; charset=utf-8",
			Body:        []byte(renderMarkdown(sess)),
		}, nil
	default:
		return nil, model.NewInvalidExportFormatError(format)
	}
}

// exportPayload はJSONエクスポートの構造。セッション内部表現とは独立に保つ。
func exportPayload(sess *model.PlanSession) map[string]any {
	return map[string]any{
		"sessionId":    sess.SessionID,
		"title":        sess.Title,
		"sections":     sess.GeneratedSections,
		"outputFormat": string(sess.Request.OutputFormat),
		"demoMode":     sess.DemoMode,
		"generatedAt":  sess.LastAccessedAt,
	}
}

func renderPlainText(sess *model.PlanSession) string {
	var b strings.Builder
	b.WriteString(sess.Title)
	b.WriteString("\n")
	b.WriteString(strings.Repeat("=", utf8.RuneCountInString(sess.Title)))
	b.WriteString("\n\n")
	for _, section := range sess.GeneratedSections {
		b.WriteString(section.Title)
		b.WriteString("\n")
		b.WriteString(strings.Repeat("-", utf8.RuneCountInString(section.Title)))
		b.WriteString("\n")
		b.WriteString(section.Content)
		b.WriteString("\n\n")
	}
	if sess.DemoMode {
		b.WriteString("(Generado en modo demo, sin conexión al servicio de IA)\n")
	}
	return b.String()
}

func renderMarkdown(sess *model.PlanSession) string {
	var b strings.Builder
	b.WriteString("# ")
	b.WriteString(sess.Title)
	b.WriteString("\n\n")
	for _, section := range sess.GeneratedSections {
		b.WriteString("## ")
		b.WriteString(section.Title)
		b.WriteString("\n\n")
		b.WriteString(section.Content)
		b.WriteString("\n\n")
	}
	if sess.DemoMode {
		b.WriteString("> Generado en modo demo, sin conexión al servicio de IA.\n")
	}
	return b.String()
}
