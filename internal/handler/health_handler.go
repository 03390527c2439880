package handler

import (
	"net/http"
	"time"
)

// GenerationChecker は生成クライアントの利用可否確認インターフェース。
type GenerationChecker interface {
	Enabled() bool
}

// HealthHandler はヘルスチェックのHTTPハンドラー。
type HealthHandler struct {
	generator GenerationChecker
	startedAt time.Time
}

// NewHealthHandler はHealthHandlerを生成する。
func NewHealthHandler(generator GenerationChecker, startedAt time.Time) *HealthHandler {
	return &HealthHandler{
		generator: generator,
		startedAt: startedAt,
	}
}

// Health はプロセスの生存確認を返す。
// GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"uptime":    time.Since(h.startedAt).Seconds(),
		"timestamp": time.Now(),
	})
}

// Ready はサービスの受付可否を返す。
// 生成クライアントが無効でもデモモードで応答できるため、常にreadyとなる。
// モードは監視側の判断材料として返す。
// GET /ready
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	mode := "live"
	if !h.generator.Enabled() {
		mode = "demo"
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ready",
		"generationMode": mode,
		"timestamp":      time.Now(),
	})
}
