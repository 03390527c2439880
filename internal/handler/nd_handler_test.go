package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/ndassist/internal/model"
	"github.com/hitoshi/ndassist/internal/processor"
	"github.com/hitoshi/ndassist/internal/validate"
)

// mockPlanProcessor はPlanProcessorInterfaceのモック実装。
type mockPlanProcessor struct {
	processRequestFn  func(ctx context.Context, req *model.PlanRequest) *model.GenerationResult
	regenerateFn      func(ctx context.Context, sessionID string, opts processor.RegenerateOptions) *model.GenerationResult
	getSessionFn      func(sessionID string) (*model.PlanSession, error)
	recordFeedbackFn  func(fb model.Feedback) error
	exportSessionFn   func(sessionID, format string) (*processor.Export, error)
}

var _ PlanProcessorInterface = (*mockPlanProcessor)(nil)

func (m *mockPlanProcessor) ProcessRequest(ctx context.Context, req *model.PlanRequest) *model.GenerationResult {
	return m.processRequestFn(ctx, req)
}

func (m *mockPlanProcessor) Regenerate(ctx context.Context, sessionID string, opts processor.RegenerateOptions) *model.GenerationResult {
	return m.regenerateFn(ctx, sessionID, opts)
}

func (m *mockPlanProcessor) GetSession(sessionID string) (*model.PlanSession, error) {
	return m.getSessionFn(sessionID)
}

func (m *mockPlanProcessor) RecordFeedback(fb model.Feedback) error {
	return m.recordFeedbackFn(fb)
}

func (m *mockPlanProcessor) ExportSession(sessionID, format string) (*processor.Export, error) {
	return m.exportSessionFn(sessionID, format)
}

func newTestNDHandler(proc PlanProcessorInterface) *NDHandler {
	return NewNDHandler(validate.NewValidator(validate.NewSanitizer()), proc, nil, time.Hour)
}

// ndRouter はURLパラメータ解決のためchiルーター越しにハンドラーを起動する。
func ndRouter(h *NDHandler) http.Handler {
	r := chi.NewRouter()
	r.Post("/api/nd/generate-nd-plan", h.GeneratePlan)
	r.Post("/api/nd/regenerate-plan", h.RegeneratePlan)
	r.Get("/api/nd/session/{sessionId}", h.GetSession)
	r.Post("/api/nd/feedback", h.Feedback)
	r.Post("/api/nd/export-plan", h.ExportPlan)
	r.Get("/api/nd/neurodiversities", h.ListNeurodiversities)
	r.Get("/api/nd/suggestions/{neurodiversity}", h.GetSuggestions)
	return r
}

func validGenerateBody() string {
	return `{
		"userType": "teacher",
		"neurodiversities": ["tdah", "autism"],
		"menuOption": "create",
		"outputFormat": "practical",
		"theme": "Los animales de la granja",
		"objectives": "Reconocer animales y sus sonidos",
		"ageGroup": "6-8"
	}`
}

func TestGeneratePlan_Success(t *testing.T) {
	var captured *model.PlanRequest
	proc := &mockPlanProcessor{
		processRequestFn: func(ctx context.Context, req *model.PlanRequest) *model.GenerationResult {
			captured = req
			return &model.GenerationResult{
				Success:   true,
				SessionID: "nd_session_1700000000000_abc123",
				Data: &model.GenerationData{
					Title:    "Plan de prueba",
					Sections: []model.Section{{ID: "comprension", Title: "Comprensión", Content: "..."}},
				},
				Metadata: &model.ResultMetadata{GeneratedAt: time.Now(), OutputFormat: "practical"},
			}
		},
	}

	req := httptest.NewRequest("POST", "/api/nd/generate-nd-plan", strings.NewReader(validGenerateBody()))
	w := httptest.NewRecorder()
	ndRouter(newTestNDHandler(proc)).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", w.Code, http.StatusOK, w.Body.String())
	}
	if captured == nil {
		t.Fatal("ProcessRequest not called")
	}
	if captured.MenuOption != model.MenuCreate {
		t.Errorf("MenuOption = %q, want %q", captured.MenuOption, model.MenuCreate)
	}

	var result model.GenerationResult
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !result.Success {
		t.Error("Success = false, want true")
	}
	if result.SessionID != "nd_session_1700000000000_abc123" {
		t.Errorf("SessionID = %q", result.SessionID)
	}
}

func TestGeneratePlan_ValidationError(t *testing.T) {
	proc := &mockPlanProcessor{
		processRequestFn: func(ctx context.Context, req *model.PlanRequest) *model.GenerationResult {
			t.Error("ProcessRequest called, want validation rejection")
			return nil
		},
	}

	body := `{"userType": "wizard", "neurodiversities": [], "menuOption": "create", "outputFormat": "practical", "ageGroup": "6-8"}`
	req := httptest.NewRequest("POST", "/api/nd/generate-nd-plan", strings.NewReader(body))
	w := httptest.NewRecorder()
	ndRouter(newTestNDHandler(proc)).ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}

	var resp struct {
		Success bool                 `json:"success"`
		Code    string               `json:"code"`
		Details []validate.FieldError `json:"details"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Success {
		t.Error("Success = true, want false")
	}
	if resp.Code != model.ErrCodeValidation {
		t.Errorf("Code = %q, want %q", resp.Code, model.ErrCodeValidation)
	}
	if len(resp.Details) == 0 {
		t.Error("Details is empty, want field errors")
	}
}

func TestGeneratePlan_MalformedBody(t *testing.T) {
	proc := &mockPlanProcessor{}
	req := httptest.NewRequest("POST", "/api/nd/generate-nd-plan", strings.NewReader("{not json"))
	w := httptest.NewRecorder()
	ndRouter(newTestNDHandler(proc)).ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestGeneratePlan_FailureEnvelopeStatus(t *testing.T) {
	tests := []struct {
		name       string
		code       string
		wantStatus int
	}{
		{"generation auth", model.ErrCodeGenerationAuth, http.StatusBadGateway},
		{"generation rate limited", model.ErrCodeGenerationRateLimit, http.StatusTooManyRequests},
		{"generation timeout", model.ErrCodeGenerationTimeout, http.StatusGatewayTimeout},
		{"internal", model.ErrCodeInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			proc := &mockPlanProcessor{
				processRequestFn: func(ctx context.Context, req *model.PlanRequest) *model.GenerationResult {
					return &model.GenerationResult{Success: false, Code: tt.code, Error: "fallo"}
				},
			}

			req := httptest.NewRequest("POST", "/api/nd/generate-nd-plan", strings.NewReader(validGenerateBody()))
			w := httptest.NewRecorder()
			ndRouter(newTestNDHandler(proc)).ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}

func TestRegeneratePlan_PassesOptions(t *testing.T) {
	var gotSessionID string
	var gotOpts processor.RegenerateOptions
	proc := &mockPlanProcessor{
		regenerateFn: func(ctx context.Context, sessionID string, opts processor.RegenerateOptions) *model.GenerationResult {
			gotSessionID = sessionID
			gotOpts = opts
			return &model.GenerationResult{Success: true, SessionID: sessionID}
		},
	}

	body := `{"sessionId": "nd_session_1700000000000_abc123", "additionalContext": "más visual", "newOutputFormat": "traffic"}`
	req := httptest.NewRequest("POST", "/api/nd/regenerate-plan", strings.NewReader(body))
	w := httptest.NewRecorder()
	ndRouter(newTestNDHandler(proc)).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if gotSessionID != "nd_session_1700000000000_abc123" {
		t.Errorf("sessionID = %q", gotSessionID)
	}
	if gotOpts.AdditionalContext != "más visual" {
		t.Errorf("AdditionalContext = %q", gotOpts.AdditionalContext)
	}
	if gotOpts.OutputFormat != model.FormatTraffic {
		t.Errorf("OutputFormat = %q, want %q", gotOpts.OutputFormat, model.FormatTraffic)
	}
}

func TestRegeneratePlan_MalformedSessionID(t *testing.T) {
	proc := &mockPlanProcessor{
		regenerateFn: func(ctx context.Context, sessionID string, opts processor.RegenerateOptions) *model.GenerationResult {
			t.Error("Regenerate called, want format rejection")
			return nil
		},
	}

	body := `{"sessionId": "DROP TABLE sessions"}`
	req := httptest.NewRequest("POST", "/api/nd/regenerate-plan", strings.NewReader(body))
	w := httptest.NewRecorder()
	ndRouter(newTestNDHandler(proc)).ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestRegeneratePlan_InvalidOutputFormat(t *testing.T) {
	proc := &mockPlanProcessor{}
	body := `{"sessionId": "nd_session_1700000000000_abc123", "newOutputFormat": "pdf"}`
	req := httptest.NewRequest("POST", "/api/nd/regenerate-plan", strings.NewReader(body))
	w := httptest.NewRecorder()
	ndRouter(newTestNDHandler(proc)).ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestGetSession_ReturnsSessionView(t *testing.T) {
	created := time.Now().Add(-10 * time.Minute)
	proc := &mockPlanProcessor{
		getSessionFn: func(sessionID string) (*model.PlanSession, error) {
			return &model.PlanSession{
				SessionID: sessionID,
				Request: model.PlanRequest{
					UserType:         model.UserTypeTeacher,
					Neurodiversities: []model.Neurodiversity{model.NDTdah},
					MenuOption:       model.MenuAdapt,
					OutputFormat:     model.FormatPractical,
				},
				Title:           "Plan adaptado",
				CreatedAt:       created,
				GenerationCount: 2,
			}, nil
		},
	}

	req := httptest.NewRequest("GET", "/api/nd/session/nd_session_1700000000000_abc123", nil)
	w := httptest.NewRecorder()
	ndRouter(newTestNDHandler(proc)).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp struct {
		Success bool `json:"success"`
		Data    struct {
			SessionID       string `json:"sessionId"`
			UserType        string `json:"userType"`
			GenerationCount int    `json:"generationCount"`
			IsActive        bool   `json:"isActive"`
			Age             int64  `json:"age"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !resp.Success {
		t.Error("Success = false, want true")
	}
	if resp.Data.UserType != "teacher" {
		t.Errorf("UserType = %q, want %q", resp.Data.UserType, "teacher")
	}
	if !resp.Data.IsActive {
		t.Error("IsActive = false, want true for 10-minute-old session")
	}
	if resp.Data.Age <= 0 {
		t.Errorf("Age = %d, want > 0", resp.Data.Age)
	}
}

func TestGetSession_NotFound(t *testing.T) {
	proc := &mockPlanProcessor{
		getSessionFn: func(sessionID string) (*model.PlanSession, error) {
			return nil, model.NewSessionNotFoundError(sessionID)
		},
	}

	req := httptest.NewRequest("GET", "/api/nd/session/nd_session_1700000000000_gone1", nil)
	w := httptest.NewRecorder()
	ndRouter(newTestNDHandler(proc)).ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestFeedback_Created(t *testing.T) {
	var got model.Feedback
	proc := &mockPlanProcessor{
		recordFeedbackFn: func(fb model.Feedback) error {
			got = fb
			return nil
		},
	}

	body := `{"sessionId": "nd_session_1700000000000_abc123", "rating": 5, "comments": "Muy útil"}`
	req := httptest.NewRequest("POST", "/api/nd/feedback", strings.NewReader(body))
	w := httptest.NewRecorder()
	ndRouter(newTestNDHandler(proc)).ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusCreated)
	}
	if got.Rating != 5 {
		t.Errorf("Rating = %d, want 5", got.Rating)
	}
	if got.ID == "" {
		t.Error("feedback ID not assigned")
	}
}

func TestFeedback_InvalidRating(t *testing.T) {
	proc := &mockPlanProcessor{
		recordFeedbackFn: func(fb model.Feedback) error {
			return model.NewInvalidRatingError(fb.Rating)
		},
	}

	body := `{"sessionId": "nd_session_1700000000000_abc123", "rating": 9}`
	req := httptest.NewRequest("POST", "/api/nd/feedback", strings.NewReader(body))
	w := httptest.NewRecorder()
	ndRouter(newTestNDHandler(proc)).ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestFeedback_UnknownSession(t *testing.T) {
	proc := &mockPlanProcessor{
		recordFeedbackFn: func(fb model.Feedback) error {
			return model.NewSessionNotFoundError(fb.SessionID)
		},
	}

	body := `{"sessionId": "nd_session_1700000000000_abc123", "rating": 4}`
	req := httptest.NewRequest("POST", "/api/nd/feedback", strings.NewReader(body))
	w := httptest.NewRecorder()
	ndRouter(newTestNDHandler(proc)).ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestExportPlan_SetsDownloadHeaders(t *testing.T) {
	proc := &mockPlanProcessor{
		exportSessionFn: func(sessionID, format string) (*processor.Export, error) {
			if format != "markdown" {
				t.Errorf("format = %q, want %q", format, "markdown")
			}
			return &processor.Export{
				Filename:    "plan-nd-2026-09-01.md",
				ContentType: "text/markdown; charset=utf-8",
				Body:        []byte("# Plan\n"),
			}, nil
		},
	}

	body := `{"sessionId": "nd_session_1700000000000_abc123", "format": "markdown"}`
	req := httptest.NewRequest("POST", "/api/nd/export-plan", strings.NewReader(body))
	w := httptest.NewRecorder()
	ndRouter(newTestNDHandler(proc)).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/markdown; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "plan-nd-2026-09-01.md") {
		t.Errorf("Content-Disposition = %q", cd)
	}
	if w.Body.String() != "# Plan\n" {
		t.Errorf("body = %q", w.Body.String())
	}
}

func TestExportPlan_DefaultsToJSON(t *testing.T) {
	proc := &mockPlanProcessor{
		exportSessionFn: func(sessionID, format string) (*processor.Export, error) {
			if format != "json" {
				t.Errorf("format = %q, want %q", format, "json")
			}
			return &processor.Export{
				Filename:    "plan-nd-2026-09-01.json",
				ContentType: "application/json; charset=utf-8",
				Body:        []byte("{}"),
			}, nil
		},
	}

	body := `{"sessionId": "nd_session_1700000000000_abc123"}`
	req := httptest.NewRequest("POST", "/api/nd/export-plan", strings.NewReader(body))
	w := httptest.NewRecorder()
	ndRouter(newTestNDHandler(proc)).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestListNeurodiversities(t *testing.T) {
	proc := &mockPlanProcessor{}
	req := httptest.NewRequest("GET", "/api/nd/neurodiversities", nil)
	w := httptest.NewRecorder()
	ndRouter(newTestNDHandler(proc)).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp struct {
		Success bool `json:"success"`
		Data    struct {
			Total            int               `json:"total"`
			Neurodiversities []json.RawMessage `json:"neurodiversities"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Data.Total != 10 {
		t.Errorf("Total = %d, want 10", resp.Data.Total)
	}
}

func TestGetSuggestions_Known(t *testing.T) {
	proc := &mockPlanProcessor{}
	req := httptest.NewRequest("GET", "/api/nd/suggestions/tdah", nil)
	w := httptest.NewRecorder()
	ndRouter(newTestNDHandler(proc)).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if !strings.Contains(w.Body.String(), "tdah") {
		t.Errorf("body missing neurodiversity id: %s", w.Body.String())
	}
}

func TestGetSuggestions_UnknownListsAvailable(t *testing.T) {
	proc := &mockPlanProcessor{}
	req := httptest.NewRequest("GET", "/api/nd/suggestions/unknown-nd", nil)
	w := httptest.NewRecorder()
	ndRouter(newTestNDHandler(proc)).ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusNotFound)
	}

	var resp struct {
		Success   bool     `json:"success"`
		Available []string `json:"available"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Success {
		t.Error("Success = true, want false")
	}
	if len(resp.Available) == 0 {
		t.Error("Available is empty, want catalog ids")
	}
}
