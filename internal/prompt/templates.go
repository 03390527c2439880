package prompt

import "github.com/hitoshi/ndassist/internal/model"

// menuTask はmenuOptionごとのタスク指示。
type menuTask struct {
	instruction string
}

// menuTasks はmenuOptionからタスク指示へのテンプレート表。
// ここに無いmenuOptionの合成はCompositionErrorとなる。
var menuTasks = map[model.MenuOption]menuTask{
	model.MenuAdapt: {
		instruction: "Adapta la actividad descrita para que sea accesible y efectiva según el perfil neurodivergente indicado. Conserva el objetivo pedagógico original.",
	},
	model.MenuCreate: {
		instruction: "Crea una actividad nueva sobre el tema indicado, diseñada desde cero para el perfil neurodivergente y alineada con los objetivos dados.",
	},
	model.MenuReview: {
		instruction: "Revisa la actividad descrita e identifica barreras de acceso para el perfil neurodivergente. Propón mejoras concretas y justificadas.",
	},
	model.MenuConsult: {
		instruction: "Responde como consulta profesional a la situación descrita, ofreciendo orientación práctica fundamentada en el perfil neurodivergente.",
	},
	model.MenuEvaluate: {
		instruction: "Propón un enfoque de evaluación y observación apropiado para el perfil neurodivergente, con indicadores concretos y métodos de registro.",
	},
	model.MenuUniversal: {
		instruction: "Propón un diseño universal de aprendizaje que funcione para todo el grupo y a la vez atienda el perfil neurodivergente indicado.",
	},
}

// safetyInstructions は有害コンテンツ回避の明示的な指示。
// すべてのプロンプトの末尾に必ず付加される。
const safetyInstructions = `
## Seguridad
- No incluyas contenido médico diagnóstico ni recomendaciones de medicación.
- No incluyas contenido dañino, discriminatorio o estigmatizante hacia ninguna condición.
- Usa lenguaje respetuoso centrado en la persona y en sus fortalezas.
- Si la solicitud excede el ámbito educativo/terapéutico, indícalo y sugiere consultar a un profesional.
`
