package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"runtime"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/ndassist/internal/model"
	"github.com/hitoshi/ndassist/internal/processor"
	"github.com/hitoshi/ndassist/internal/session"
)

// StatsProviderInterface は管理ハンドラーが必要とする統計サービスインターフェース。
type StatsProviderInterface interface {
	Snapshot() processor.Stats
	SummarizeFeedback() processor.FeedbackSummary
}

// SessionAdminInterface はセッション管理操作のインターフェース。
// session.Storeの部分集合として定義する。
type SessionAdminInterface interface {
	List(filter session.ListFilter) []*model.PlanSession
	Delete(sessionID string) bool
	Sweep(maxAge time.Duration) int
	Size() int
}

// UserDirectoryInterface はユーザー管理操作のインターフェース。
// user.Storeの部分集合として定義する。
type UserDirectoryInterface interface {
	List() []*model.User
	Count() int
	SetRole(id, role string) (*model.User, error)
	Deactivate(id string) error
}

// AdminHandler は管理APIのHTTPハンドラー。
type AdminHandler struct {
	stats          StatsProviderInterface
	sessions       SessionAdminInterface
	users          UserDirectoryInterface
	activityWindow time.Duration
	startedAt      time.Time
}

// NewAdminHandler はAdminHandlerを生成する。
func NewAdminHandler(stats StatsProviderInterface, sessions SessionAdminInterface, users UserDirectoryInterface, activityWindow time.Duration, startedAt time.Time) *AdminHandler {
	if activityWindow <= 0 {
		activityWindow = time.Hour
	}
	return &AdminHandler{
		stats:          stats,
		sessions:       sessions,
		users:          users,
		activityWindow: activityWindow,
		startedAt:      startedAt,
	}
}

// sessionSummary は管理API向けのセッション概要。
type sessionSummary struct {
	SessionID        string                 `json:"sessionId"`
	UserType         model.UserType         `json:"userType"`
	CustomRole       string                 `json:"customRole,omitempty"`
	Neurodiversities []model.Neurodiversity `json:"neurodiversities"`
	PriorityND       model.Neurodiversity   `json:"priorityND,omitempty"`
	MenuOption       model.MenuOption       `json:"menuOption"`
	OutputFormat     model.OutputFormat     `json:"outputFormat"`
	DemoMode         bool                   `json:"demoMode"`
	GenerationCount  int                    `json:"generationCount"`
	CreatedAt        time.Time              `json:"createdAt"`
	AgeMs            int64                  `json:"age"`
	IsActive         bool                   `json:"isActive"`
}

// cleanupRequest はオンデマンド掃除リクエストのボディ。
type cleanupRequest struct {
	MaxAgeMs int64 `json:"maxAge,omitempty"`
}

// Stats はシステム統計を返す。
// GET /admin/stats
func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	snapshot := h.stats.Snapshot()

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	uptime := time.Since(h.startedAt)
	writeSuccess(w, http.StatusOK, map[string]any{
		"server": map[string]any{
			"uptime":          uptime.Seconds(),
			"uptimeFormatted": uptime.Round(time.Second).String(),
			"goVersion":       runtime.Version(),
			"goroutines":      runtime.NumGoroutine(),
			"startTime":       h.startedAt,
		},
		"memory": map[string]any{
			"heapAllocMB": float64(mem.HeapAlloc) / 1024 / 1024,
			"heapSysMB":   float64(mem.HeapSys) / 1024 / 1024,
			"numGC":       mem.NumGC,
		},
		"sessions": map[string]any{
			"total":  h.sessions.Size(),
			"active": len(h.sessions.List(session.ListFilter{ActiveWithin: h.activityWindow})),
		},
		"users":       map[string]any{"total": h.users.Count()},
		"operations":  snapshot.OperationCounts,
		"performance": snapshot,
	})
}

// ListSessions はフィルター付きでセッション一覧を返す。
// GET /admin/sessions?active=true&userType=teacher&neurodiversity=tdah
func (h *AdminHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := session.ListFilter{
		UserType:       model.UserType(q.Get("userType")),
		Neurodiversity: model.Neurodiversity(q.Get("neurodiversity")),
	}
	if q.Get("active") == "true" {
		filter.ActiveWithin = h.activityWindow
	}

	sessions := h.sessions.List(filter)
	summaries := make([]sessionSummary, 0, len(sessions))
	now := time.Now()
	for _, sess := range sessions {
		age := now.Sub(sess.CreatedAt)
		summaries = append(summaries, sessionSummary{
			SessionID:        sess.SessionID,
			UserType:         sess.Request.UserType,
			CustomRole:       sess.Request.CustomRole,
			Neurodiversities: sess.Request.Neurodiversities,
			PriorityND:       sess.Request.PriorityND,
			MenuOption:       sess.Request.MenuOption,
			OutputFormat:     sess.Request.OutputFormat,
			DemoMode:         sess.DemoMode,
			GenerationCount:  sess.GenerationCount,
			CreatedAt:        sess.CreatedAt,
			AgeMs:            age.Milliseconds(),
			IsActive:         age < h.activityWindow,
		})
	}

	writeSuccess(w, http.StatusOK, map[string]any{
		"sessions": summaries,
		"total":    len(summaries),
	})
}

// DeleteSession は指定セッションを削除する。
// DELETE /admin/sessions/{sessionId}
func (h *AdminHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionId")

	if !model.ValidSessionID(sessionID) || !h.sessions.Delete(sessionID) {
		handleServiceError(w, model.NewSessionNotFoundError(sessionID))
		return
	}

	slog.Info("admin deleted session", slog.String("session_id", sessionID))
	writeJSON(w, http.StatusOK, successEnvelope{
		Success:   true,
		Message:   "Sesión eliminada correctamente.",
		Data:      map[string]any{"sessionId": sessionID},
		Timestamp: time.Now(),
	})
}

// Cleanup は期限切れセッションのオンデマンド掃除を実行する。
// POST /admin/cleanup
func (h *AdminHandler) Cleanup(w http.ResponseWriter, r *http.Request) {
	var req cleanupRequest
	if r.Body != nil {
		// ボディ省略時はデフォルトの保持期間を使う
		json.NewDecoder(r.Body).Decode(&req)
	}

	maxAge := h.activityWindow
	if req.MaxAgeMs > 0 {
		maxAge = time.Duration(req.MaxAgeMs) * time.Millisecond
	}

	deleted := h.sessions.Sweep(maxAge)
	slog.Info("admin cleanup executed",
		slog.Duration("max_age", maxAge),
		slog.Int("deleted", deleted),
	)

	writeSuccess(w, http.StatusOK, map[string]any{
		"deleted":   deleted,
		"remaining": h.sessions.Size(),
		"maxAge":    maxAge.Milliseconds(),
	})
}

// ListUsers は登録ユーザーの一覧を返す。
// GET /admin/users
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users := h.users.List()
	views := make([]userResponse, 0, len(users))
	for _, u := range users {
		views = append(views, toUserResponse(u))
	}

	writeSuccess(w, http.StatusOK, map[string]any{
		"users": views,
		"total": len(views),
	})
}

// setRoleRequest はロール変更リクエストのボディ。
type setRoleRequest struct {
	Role string `json:"role"`
}

// SetUserRole はユーザーのロールを変更する。
// PUT /admin/users/{userId}/role
func (h *AdminHandler) SetUserRole(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")

	var req setRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidBody(w)
		return
	}
	if req.Role != "user" && req.Role != "admin" {
		handleServiceError(w, model.NewValidationError("Rol inválido: debe ser user o admin"))
		return
	}

	updated, err := h.users.SetRole(userID, req.Role)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	slog.Info("admin changed user role",
		slog.String("user_id", userID),
		slog.String("role", req.Role),
	)
	writeSuccess(w, http.StatusOK, toUserResponse(updated))
}

// DeactivateUser はユーザーを無効化する。レコードは残る。
// DELETE /admin/users/{userId}
func (h *AdminHandler) DeactivateUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")

	if err := h.users.Deactivate(userID); err != nil {
		handleServiceError(w, err)
		return
	}

	slog.Info("admin deactivated user", slog.String("user_id", userID))
	writeJSON(w, http.StatusOK, successEnvelope{
		Success:   true,
		Message:   "Cuenta desactivada correctamente.",
		Timestamp: time.Now(),
	})
}

// FeedbackSummary はフィードバックの集計を返す。
// GET /admin/feedback
func (h *AdminHandler) FeedbackSummary(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, http.StatusOK, h.stats.SummarizeFeedback())
}
