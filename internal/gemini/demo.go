package gemini

import (
	"fmt"
	"strings"
)

// demoExcerptLen はデモ応答に含めるプロンプト抜粋の最大長。
const demoExcerptLen = 100

// DemoResponse はAPIキー未設定時や外部サービス停止時に返す
// 決定的なプレースホルダープランを生成する。
// 明示的にデモであることをラベル付けし、呼び出し元を失敗させないための
// 設計上の縮退モードであり、障害の隠蔽ではない。
func (c *Client) DemoResponse(prompt string) string {
	excerpt := prompt
	if len(excerpt) > demoExcerptLen {
		excerpt = excerpt[:demoExcerptLen] + "..."
	}
	excerpt = strings.ReplaceAll(excerpt, "\n", " ")

	return fmt.Sprintf(`# Plan Neurodivergente - Modo Demo

## Comprensión Neurodivergente
Este es un plan de ejemplo generado en modo demo (servicio de generación no disponible).
Solicitud recibida: "%s"
En producción, este contenido sería generado con adaptaciones específicas para el perfil neurodivergente indicado.

## Estrategias Adaptativas
- Estrategia visual personalizada
- Enfoque sensorial adaptado
- Técnicas de organización y rutinas predecibles
- Sistemas de apoyo entre pares

## Implementación
1. Comenzar gradualmente con sesiones cortas
2. Adaptar según la respuesta observada
3. Monitorear el progreso con registros simples
4. Ajustar estrategias cada semana

---
*Nota: Este es contenido de demostración. Configure GEMINI_API_KEY para la funcionalidad completa.*
`, excerpt)
}
