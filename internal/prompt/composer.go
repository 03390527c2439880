// Package prompt は検証済みリクエストから生成モデル向けプロンプトを構築する。
// 変換は決定的であり、同一入力に対して常に同一のプロンプトを返す。
package prompt

import (
	"fmt"
	"strings"

	"github.com/hitoshi/ndassist/internal/model"
)

// Composer はプロンプト合成を行う。
type Composer struct{}

// NewComposer はComposerを生成する。
func NewComposer() *Composer {
	return &Composer{}
}

// Compose は初回生成用のプロンプトを構築する。
// (menuOption, outputFormat) の組がテンプレート表に存在しない場合は
// CompositionError（内部契約違反）を返す。列挙値の検証は上流で完了しているため、
// このエラーが出るのは実装バグのみ。
func (c *Composer) Compose(req model.PlanRequest) (string, error) {
	task, ok := menuTasks[req.MenuOption]
	if !ok {
		return "", model.NewCompositionError(req.MenuOption, req.OutputFormat)
	}
	sections := model.SectionsForFormat(req.OutputFormat)
	if sections == nil {
		return "", model.NewCompositionError(req.MenuOption, req.OutputFormat)
	}

	var b strings.Builder

	b.WriteString("Eres un asistente especializado en neurodiversidad que ayuda a crear planes educativos y terapéuticos personalizados.\n\n")

	writeProfile(&b, req)
	b.WriteString("\n## Tarea\n")
	b.WriteString(task.instruction)
	b.WriteString("\n")
	writeTaskFields(&b, req)
	writeContextFields(&b, req)
	writeSectionInstructions(&b, sections)
	b.WriteString(safetyInstructions)

	return b.String(), nil
}

// ComposeRegeneration は再生成用のプロンプトを構築する。
// 前回の生成結果と追加コンテキストを織り込み、既知の必須フィールドを
// 再度尋ねることなく新しいプランを要求する。
func (c *Composer) ComposeRegeneration(req model.PlanRequest, previous []model.Section) (string, error) {
	base, err := c.Compose(req)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString(base)

	if len(previous) > 0 {
		b.WriteString("\n## Plan anterior\n")
		b.WriteString("Ya se generó un plan para esta sesión. Genera una versión nueva y mejorada, sin repetir literalmente el contenido anterior.\n")
		for _, sec := range previous {
			summary := sec.Content
			if len(summary) > 300 {
				summary = summary[:300] + "..."
			}
			fmt.Fprintf(&b, "- %s: %s\n", sec.Title, summary)
		}
	}

	if req.AdditionalContext != "" {
		b.WriteString("\n## Contexto adicional del usuario\n")
		b.WriteString(req.AdditionalContext)
		b.WriteString("\n")
	}

	return b.String(), nil
}

// writeProfile はユーザーとニューロダイバーシティのプロフィールを書き込む。
// priorityNDが指定されている場合はリストの先頭に置き、主眼として明示する。
func writeProfile(b *strings.Builder, req model.PlanRequest) {
	b.WriteString("## Perfil\n")

	role := string(req.UserType)
	if req.CustomRole != "" {
		role = req.CustomRole
	}
	fmt.Fprintf(b, "- Rol del solicitante: %s\n", role)
	fmt.Fprintf(b, "- Grupo de edad: %s\n", req.AgeGroup)

	nds := orderedNeurodiversities(req)
	fmt.Fprintf(b, "- Neurodiversidades: %s\n", joinND(nds))
	if req.PriorityND != "" {
		fmt.Fprintf(b, "- Enfoque principal: %s. Prioriza las adaptaciones para esta neurodiversidad por encima de las demás.\n", req.PriorityND)
	}
}

// writeTaskFields はmenuOptionに応じた必須フィールドを書き込む。
func writeTaskFields(b *strings.Builder, req model.PlanRequest) {
	if req.ActivityDescription != "" {
		fmt.Fprintf(b, "\nActividad descrita por el usuario:\n%s\n", req.ActivityDescription)
	}
	if req.Theme != "" {
		fmt.Fprintf(b, "\nTema: %s\n", req.Theme)
	}
	if req.Objectives != "" {
		fmt.Fprintf(b, "Objetivos: %s\n", req.Objectives)
	}
}

// writeContextFields は任意の補足フィールドを書き込む。空のフィールドは省略する。
func writeContextFields(b *strings.Builder, req model.PlanRequest) {
	var lines []string
	if req.Sensitivities != "" {
		lines = append(lines, "Sensibilidades conocidas: "+req.Sensitivities)
	}
	if len(req.Environments) > 0 {
		lines = append(lines, "Entornos de aplicación: "+strings.Join(req.Environments, ", "))
	}
	if req.Caregivers {
		lines = append(lines, "Incluye orientación específica para cuidadores.")
	}
	if req.SkillsCheck {
		lines = append(lines, "Incluye una verificación de habilidades previas antes de la actividad.")
	}
	if req.TimeConstraints != "" {
		lines = append(lines, "Limitaciones de tiempo: "+req.TimeConstraints)
	}
	if req.UrgentAspects != "" {
		lines = append(lines, "Aspectos urgentes a atender: "+req.UrgentAspects)
	}

	if len(lines) == 0 {
		return
	}
	b.WriteString("\n## Contexto\n")
	for _, line := range lines {
		b.WriteString("- " + line + "\n")
	}
}

// writeSectionInstructions は期待するセクション構成をモデルに指示する。
// パーサーはこのマーカー形式（## <Título>）を前提に応答を分割する。
func writeSectionInstructions(b *strings.Builder, sections []model.SectionTemplate) {
	b.WriteString("\n## Formato de respuesta\n")
	b.WriteString("Estructura tu respuesta exactamente con estas secciones, cada una iniciada con un encabezado de nivel 2 (## Título):\n")
	for _, sec := range sections {
		fmt.Fprintf(b, "## %s\n", sec.Title)
	}
	b.WriteString("Escribe contenido práctico y accionable dentro de cada sección. No agregues secciones adicionales.\n")
}

// orderedNeurodiversities はpriorityNDを先頭に並べ替えたリストを返す。
func orderedNeurodiversities(req model.PlanRequest) []model.Neurodiversity {
	if req.PriorityND == "" {
		return req.Neurodiversities
	}
	ordered := make([]model.Neurodiversity, 0, len(req.Neurodiversities))
	ordered = append(ordered, req.PriorityND)
	for _, nd := range req.Neurodiversities {
		if nd != req.PriorityND {
			ordered = append(ordered, nd)
		}
	}
	return ordered
}

// joinND はニューロダイバーシティのスライスをカンマ区切りで結合する。
func joinND(nds []model.Neurodiversity) string {
	parts := make([]string, len(nds))
	for i, nd := range nds {
		parts[i] = string(nd)
	}
	return strings.Join(parts, ", ")
}
