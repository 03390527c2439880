package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hitoshi/ndassist/internal/catalog"
	"github.com/hitoshi/ndassist/internal/middleware"
	"github.com/hitoshi/ndassist/internal/model"
	"github.com/hitoshi/ndassist/internal/processor"
	"github.com/hitoshi/ndassist/internal/validate"
)

// PlanProcessorInterface はNDハンドラーが必要とする処理サービスインターフェース。
type PlanProcessorInterface interface {
	ProcessRequest(ctx context.Context, req *model.PlanRequest) *model.GenerationResult
	Regenerate(ctx context.Context, sessionID string, opts processor.RegenerateOptions) *model.GenerationResult
	GetSession(sessionID string) (*model.PlanSession, error)
	RecordFeedback(fb model.Feedback) error
	ExportSession(sessionID, format string) (*processor.Export, error)
}

// PlanRecorder はプラン生成リクエストのメトリクス記録インターフェース。
// metrics.Collectorの部分集合として定義する。
type PlanRecorder interface {
	RecordPlanRequest(menuOption string)
	RecordDemoResponse()
}

// NDHandler はプラン生成関連のHTTPハンドラー。
type NDHandler struct {
	validator      *validate.Validator
	processor      PlanProcessorInterface
	recorder       PlanRecorder // nil可
	activityWindow time.Duration
}

// NewNDHandler はNDHandlerを生成する。recorderはnil可。
func NewNDHandler(validator *validate.Validator, proc PlanProcessorInterface, recorder PlanRecorder, activityWindow time.Duration) *NDHandler {
	if activityWindow <= 0 {
		activityWindow = time.Hour
	}
	return &NDHandler{
		validator:      validator,
		processor:      proc,
		recorder:       recorder,
		activityWindow: activityWindow,
	}
}

// regeneratePlanRequest はプラン再生成リクエストのボディ。
type regeneratePlanRequest struct {
	SessionID         string `json:"sessionId"`
	AdditionalContext string `json:"additionalContext,omitempty"`
	NewOutputFormat   string `json:"newOutputFormat,omitempty"`
	NewPriorityND     string `json:"newPriorityND,omitempty"`
}

// feedbackRequest はフィードバック登録リクエストのボディ。
type feedbackRequest struct {
	SessionID       string   `json:"sessionId"`
	Rating          int      `json:"rating"`
	Comments        string   `json:"comments,omitempty"`
	HelpfulSections []string `json:"helpfulSections,omitempty"`
	Improvements    string   `json:"improvements,omitempty"`
}

// exportPlanRequest はプランエクスポートリクエストのボディ。
type exportPlanRequest struct {
	SessionID string `json:"sessionId"`
	Format    string `json:"format,omitempty"`
}

// GeneratePlan は新規プラン生成を処理する。
// POST /api/nd/generate-nd-plan
func (h *NDHandler) GeneratePlan(w http.ResponseWriter, r *http.Request) {
	var raw validate.RawRequest
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeInvalidBody(w)
		return
	}

	req, errs := h.validator.Validate(&raw)
	if len(errs) > 0 {
		writeValidationErrors(w, errs)
		return
	}

	if h.recorder != nil {
		h.recorder.RecordPlanRequest(string(req.MenuOption))
	}

	result := h.processor.ProcessRequest(r.Context(), req)
	h.writeResult(w, result)
}

// RegeneratePlan は既存セッションのプラン再生成を処理する。
// POST /api/nd/regenerate-plan
func (h *NDHandler) RegeneratePlan(w http.ResponseWriter, r *http.Request) {
	var req regeneratePlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidBody(w)
		return
	}

	if !model.ValidSessionID(req.SessionID) {
		handleServiceError(w, model.NewSessionNotFoundError(req.SessionID))
		return
	}
	if req.NewOutputFormat != "" && !validOutputFormat(req.NewOutputFormat) {
		handleServiceError(w, model.NewValidationError(
			fmt.Sprintf("Formato de salida inválido: %s", req.NewOutputFormat)))
		return
	}

	result := h.processor.Regenerate(r.Context(), req.SessionID, processor.RegenerateOptions{
		AdditionalContext: req.AdditionalContext,
		OutputFormat:      model.OutputFormat(req.NewOutputFormat),
		PriorityND:        model.Neurodiversity(req.NewPriorityND),
	})
	h.writeResult(w, result)
}

// GetSession はセッションの状態を返す。
// GET /api/nd/session/{sessionId}
func (h *NDHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionId")

	sess, err := h.processor.GetSession(sessionID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	age := time.Since(sess.CreatedAt)
	writeSuccess(w, http.StatusOK, map[string]any{
		"sessionId":        sess.SessionID,
		"userType":         sess.Request.UserType,
		"customRole":       sess.Request.CustomRole,
		"neurodiversities": sess.Request.Neurodiversities,
		"priorityND":       sess.Request.PriorityND,
		"menuOption":       sess.Request.MenuOption,
		"outputFormat":     sess.Request.OutputFormat,
		"title":            sess.Title,
		"sections":         sess.GeneratedSections,
		"demoMode":         sess.DemoMode,
		"generationCount":  sess.GenerationCount,
		"createdAt":        sess.CreatedAt,
		"age":              age.Milliseconds(),
		"isActive":         age < h.activityWindow,
	})
}

// Feedback はプランへのフィードバックを登録する。
// POST /api/nd/feedback
func (h *NDHandler) Feedback(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidBody(w)
		return
	}

	fb := model.Feedback{
		ID:              uuid.NewString(),
		SessionID:       req.SessionID,
		Rating:          req.Rating,
		Comments:        req.Comments,
		HelpfulSections: req.HelpfulSections,
		Improvements:    req.Improvements,
	}
	if err := h.processor.RecordFeedback(fb); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, successEnvelope{
		Success:   true,
		Message:   "Gracias por tu retroalimentación.",
		Data:      map[string]any{"feedbackId": fb.ID},
		Timestamp: time.Now(),
	})
}

// ExportPlan はプランを指定形式でエクスポートする。
// POST /api/nd/export-plan
func (h *NDHandler) ExportPlan(w http.ResponseWriter, r *http.Request) {
	var req exportPlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidBody(w)
		return
	}
	if req.Format == "" {
		req.Format = "json"
	}

	export, err := h.processor.ExportSession(req.SessionID, req.Format)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename))
	w.WriteHeader(http.StatusOK)
	w.Write(export.Body)
}

// ListNeurodiversities はニューロダイバーシティのカタログを返す。
// GET /api/nd/neurodiversities
func (h *NDHandler) ListNeurodiversities(w http.ResponseWriter, r *http.Request) {
	infos := catalog.All()
	writeSuccess(w, http.StatusOK, map[string]any{
		"neurodiversities": infos,
		"total":            len(infos),
	})
}

// GetSuggestions は特性別の活動提案を返す。
// GET /api/nd/suggestions/{neurodiversity}
func (h *NDHandler) GetSuggestions(w http.ResponseWriter, r *http.Request) {
	nd := chi.URLParam(r, "neurodiversity")

	suggestions := catalog.SuggestionsFor(model.Neurodiversity(nd))
	if suggestions == nil {
		writeJSON(w, http.StatusNotFound, map[string]any{
			"success":   false,
			"error":     "Neurodiversidad no encontrada",
			"available": catalog.Available(),
			"timestamp": time.Now(),
		})
		return
	}

	writeSuccess(w, http.StatusOK, suggestions)
}

// writeResult は処理結果エンベロープをHTTPレスポンスに変換する。
// 失敗エンベロープはエラーコードに応じたステータスコードで返す。
func (h *NDHandler) writeResult(w http.ResponseWriter, result *model.GenerationResult) {
	statusCode := http.StatusOK
	if !result.Success {
		statusCode = middleware.StatusForError(&model.APIError{Code: result.Code})
	} else if result.Metadata != nil && result.Metadata.DemoMode && h.recorder != nil {
		h.recorder.RecordDemoResponse()
	}
	writeJSON(w, statusCode, result)
}

// writeValidationErrors はフィールド単位の検証エラーレスポンスを書き込む。
func writeValidationErrors(w http.ResponseWriter, errs validate.Errors) {
	writeJSON(w, http.StatusBadRequest, map[string]any{
		"success":   false,
		"code":      model.ErrCodeValidation,
		"error":     "Datos de entrada inválidos",
		"details":   errs,
		"timestamp": time.Now(),
	})
}

func validOutputFormat(format string) bool {
	for _, f := range model.ValidOutputFormats {
		if string(f) == format {
			return true
		}
	}
	return false
}
