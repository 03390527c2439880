// Package catalog はニューロダイバーシティの参照情報と活動提案を提供する。
// データは静的で、プロセス内に埋め込まれている。
package catalog

import "github.com/hitoshi/ndassist/internal/model"

// Info は1つのニューロダイバーシティの参照情報。
type Info struct {
	ID             string   `json:"id"`
	Label          string   `json:"label"`
	Principles     []string `json:"principles"`
	Strengths      []string `json:"strengths"`
	Considerations []string `json:"considerations"`
}

// Suggestions は1つのニューロダイバーシティに対する活動提案。
type Suggestions struct {
	Neurodiversity string   `json:"neurodiversity"`
	Label          string   `json:"label"`
	Principles     []string `json:"principles"`
	Activities     []string `json:"activities"`
}

// entry はカタログの内部表現。InfoとSuggestionsの両方を導出する。
type entry struct {
	label          string
	principles     []string
	strengths      []string
	considerations []string
	activities     []string
}

// entries はカタログ本体。固定語彙のうち具体的な特性のみを収録する
// （none, other, unsure は参照情報を持たない）。
var entries = map[model.Neurodiversity]entry{
	model.NDTdah: {
		label: "TDAH",
		principles: []string{
			"Dividir las tareas en pasos cortos y concretos",
			"Alternar actividades de concentración con pausas de movimiento",
			"Usar recordatorios visuales y rutinas predecibles",
		},
		strengths: []string{
			"Creatividad y pensamiento divergente",
			"Energía y entusiasmo ante temas de interés",
			"Capacidad de hiperfoco en actividades motivadoras",
		},
		considerations: []string{
			"Evitar instrucciones largas de varios pasos",
			"Minimizar distracciones en el entorno de trabajo",
		},
		activities: []string{
			"Juegos de movimiento con reglas simples",
			"Estaciones de trabajo rotativas de corta duración",
			"Temporizadores visuales para transiciones",
		},
	},
	model.NDAutism: {
		label: "Autismo",
		principles: []string{
			"Anticipar los cambios con apoyos visuales",
			"Respetar los intereses especiales como vía de aprendizaje",
			"Mantener rutinas estables y predecibles",
		},
		strengths: []string{
			"Atención al detalle y memoria para temas de interés",
			"Pensamiento sistemático y lógico",
			"Honestidad y coherencia",
		},
		considerations: []string{
			"Reducir estímulos sensoriales intensos",
			"Dar tiempo adicional para procesar instrucciones verbales",
		},
		activities: []string{
			"Agendas visuales con pictogramas",
			"Actividades estructuradas en torno a intereses especiales",
			"Rincones de calma con estímulos reducidos",
		},
	},
	model.NDDyslexia: {
		label: "Dislexia",
		principles: []string{
			"Priorizar formatos orales y visuales sobre el texto extenso",
			"Permitir tiempo adicional para la lectura",
			"Usar tipografías claras y textos breves",
		},
		strengths: []string{
			"Razonamiento espacial y visual",
			"Resolución creativa de problemas",
		},
		considerations: []string{
			"Evitar lecturas en voz alta no voluntarias",
			"No penalizar la ortografía en evaluaciones de contenido",
		},
		activities: []string{
			"Audiolibros acompañados del texto",
			"Mapas mentales para organizar ideas",
			"Juegos fonológicos con apoyo visual",
		},
	},
	model.NDDyscalculia: {
		label: "Discalculia",
		principles: []string{
			"Apoyar los conceptos numéricos con material concreto",
			"Relacionar los números con contextos de la vida diaria",
		},
		strengths: []string{
			"Razonamiento verbal",
			"Pensamiento intuitivo y cualitativo",
		},
		considerations: []string{
			"Permitir calculadora y tablas de apoyo",
			"Evitar ejercicios de cálculo contrarreloj",
		},
		activities: []string{
			"Manipulativos como bloques y regletas",
			"Juegos de mesa con conteo concreto",
			"Problemas matemáticos contextualizados en rutinas reales",
		},
	},
	model.NDDysgraphia: {
		label: "Disgrafía",
		principles: []string{
			"Ofrecer alternativas a la escritura manual",
			"Valorar el contenido por encima de la caligrafía",
		},
		strengths: []string{
			"Expresión oral",
			"Comprensión conceptual",
		},
		considerations: []string{
			"Reducir la cantidad de copia manual",
			"Permitir teclado o dictado por voz",
		},
		activities: []string{
			"Respuestas orales grabadas",
			"Organizadores gráficos con escritura mínima",
			"Ejercicios de motricidad fina lúdicos",
		},
	},
	model.NDGiftedness: {
		label: "Altas Capacidades",
		principles: []string{
			"Ofrecer profundidad y complejidad, no solo más cantidad",
			"Permitir ritmos de avance diferenciados",
		},
		strengths: []string{
			"Aprendizaje rápido y memoria notable",
			"Curiosidad intensa y pensamiento abstracto",
		},
		considerations: []string{
			"Evitar la repetición innecesaria de contenido dominado",
			"Atender la intensidad emocional asociada",
		},
		activities: []string{
			"Proyectos de investigación autodirigidos",
			"Mentorías y retos abiertos",
			"Debates y dilemas éticos adaptados a la edad",
		},
	},
	model.NDTourette: {
		label: "Síndrome de Tourette",
		principles: []string{
			"No pedir la supresión de los tics",
			"Normalizar los tics dentro del grupo",
		},
		strengths: []string{
			"Perseverancia",
			"Conciencia de sí mismo desarrollada",
		},
		considerations: []string{
			"Prever salidas discretas del aula cuando se necesiten",
			"Reducir las situaciones de estrés sostenido",
		},
		activities: []string{
			"Actividades físicas regulares de descarga",
			"Turnos de participación flexibles",
		},
	},
	model.NDDyspraxia: {
		label: "Dispraxia",
		principles: []string{
			"Descomponer las secuencias motoras en pasos pequeños",
			"Dar tiempo adicional para tareas motoras",
		},
		strengths: []string{
			"Determinación y constancia",
			"Empatía",
		},
		considerations: []string{
			"Evitar la exposición en actividades de coordinación frente al grupo",
			"Adaptar materiales de escritura y manipulación",
		},
		activities: []string{
			"Circuitos motores graduados",
			"Actividades de motricidad con apoyo de pares",
		},
	},
	model.NDSensory: {
		label: "Procesamiento Sensorial",
		principles: []string{
			"Identificar el perfil sensorial individual",
			"Ofrecer opciones de regulación a lo largo del día",
		},
		strengths: []string{
			"Percepción detallada del entorno",
			"Sensibilidad estética",
		},
		considerations: []string{
			"Controlar ruido, iluminación y texturas del entorno",
			"Anticipar los estímulos intensos",
		},
		activities: []string{
			"Dietas sensoriales personalizadas",
			"Rincones de regulación con materiales táctiles",
			"Pausas sensoriales programadas",
		},
	},
	model.NDAnxiety: {
		label: "Ansiedad",
		principles: []string{
			"Anticipar lo que va a ocurrir y reducir la incertidumbre",
			"Enseñar estrategias de regulación explícitas",
		},
		strengths: []string{
			"Responsabilidad y preparación",
			"Sensibilidad hacia los demás",
		},
		considerations: []string{
			"Evitar la exposición pública no voluntaria",
			"Graduar los desafíos en pasos asumibles",
		},
		activities: []string{
			"Rutinas de respiración y relajación breves",
			"Ensayos previos de situaciones nuevas",
			"Diarios de emociones adaptados a la edad",
		},
	},
}

// All は収録されている全ニューロダイバーシティの参照情報を返す。
// 順序はValidNeurodiversitiesの定義順に従い、呼び出し間で安定している。
func All() []Info {
	infos := make([]Info, 0, len(entries))
	for _, nd := range model.ValidNeurodiversities {
		e, ok := entries[nd]
		if !ok {
			continue
		}
		infos = append(infos, Info{
			ID:             string(nd),
			Label:          e.label,
			Principles:     e.principles,
			Strengths:      e.strengths,
			Considerations: e.considerations,
		})
	}
	return infos
}

// SuggestionsFor は指定ニューロダイバーシティの活動提案を返す。
// 収録されていない場合はnilを返す。
func SuggestionsFor(nd model.Neurodiversity) *Suggestions {
	e, ok := entries[nd]
	if !ok {
		return nil
	}
	return &Suggestions{
		Neurodiversity: string(nd),
		Label:          e.label,
		Principles:     e.principles,
		Activities:     e.activities,
	}
}

// Available は提案を持つニューロダイバーシティのID一覧を返す。
func Available() []string {
	ids := make([]string, 0, len(entries))
	for _, nd := range model.ValidNeurodiversities {
		if _, ok := entries[nd]; ok {
			ids = append(ids, string(nd))
		}
	}
	return ids
}
