// Package model はドメインモデルを定義する。
package model

// SectionTemplate は出力フォーマットが期待する1セクションの定義。
type SectionTemplate struct {
	ID    string
	Title string
}

// formatSections はoutputFormatごとの期待セクション集合。
// 返却されるセクションの順序はこのテンプレートで固定され、
// 生成テキスト内でマーカーが現れた順序には依存しない。
var formatSections = map[OutputFormat][]SectionTemplate{
	FormatPractical: {
		{ID: "comprension", Title: "Comprensión Neurodivergente"},
		{ID: "estrategias", Title: "Estrategias Adaptativas"},
		{ID: "implementacion", Title: "Implementación"},
	},
	FormatComplete: {
		{ID: "comprension", Title: "Comprensión Neurodivergente"},
		{ID: "evaluaciones", Title: "Evaluaciones y Observación"},
		{ID: "estrategias", Title: "Estrategias Adaptativas"},
		{ID: "implementacion", Title: "Implementación"},
		{ID: "generalizacion", Title: "Generalización"},
		{ID: "capacitacion", Title: "Capacitación de Apoyos"},
		{ID: "tecnologia", Title: "Tecnología de Apoyo"},
	},
	FormatNDPlus: {
		{ID: "comprension", Title: "Comprensión Neurodivergente"},
		{ID: "fortalezas", Title: "Fortalezas y Talentos"},
		{ID: "estrategias", Title: "Estrategias Adaptativas"},
		{ID: "implementacion", Title: "Implementación"},
		{ID: "tecnologia", Title: "Tecnología de Apoyo"},
	},
	FormatSensory: {
		{ID: "comprension", Title: "Comprensión Neurodivergente"},
		{ID: "perfil_sensorial", Title: "Perfil Sensorial"},
		{ID: "estrategias", Title: "Estrategias Adaptativas"},
		{ID: "entornos", Title: "Adaptación de Entornos"},
		{ID: "implementacion", Title: "Implementación"},
	},
	FormatTraffic: {
		{ID: "verde", Title: "Verde: Continuar"},
		{ID: "amarillo", Title: "Amarillo: Ajustar"},
		{ID: "rojo", Title: "Rojo: Detener y Reemplazar"},
	},
}

// SectionsForFormat はoutputFormatが期待するセクションテンプレートを返す。
// 未知のフォーマットの場合はnilを返す。
func SectionsForFormat(format OutputFormat) []SectionTemplate {
	return formatSections[format]
}

// FallbackSection はセクションマーカーが検出できなかった場合の単一セクション。
var FallbackSection = SectionTemplate{ID: "general", Title: "Plan General"}
