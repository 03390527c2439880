package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/ndassist/internal/auth"
	"github.com/hitoshi/ndassist/internal/middleware"
	"github.com/hitoshi/ndassist/internal/model"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	Enabled() bool
	BeginLogin() (string, error)
	HandleCallback(ctx context.Context, code, state string) (*auth.LoginResult, error)
}

// ProfileUpdater はユーザープロフィール更新のインターフェース。
// user.Storeの部分集合として定義する。
type ProfileUpdater interface {
	UpdateProfile(id string, userType model.UserType, customRole string) (*model.User, error)
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	GoogleClientID    string
	GoogleRedirectURL string
}

// AuthHandler はOAuth認証関連のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	users   ProfileUpdater
	config  AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, users ProfileUpdater, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		service: service,
		users:   users,
		config:  config,
	}
}

// userResponse はユーザー情報のAPIレスポンス。
type userResponse struct {
	ID         string `json:"id"`
	Email      string `json:"email"`
	Name       string `json:"name"`
	Picture    string `json:"picture,omitempty"`
	Role       string `json:"role"`
	UserType   string `json:"userType,omitempty"`
	CustomRole string `json:"customRole,omitempty"`
	LoginCount int    `json:"loginCount"`
}

// updateProfileRequest はプロフィール更新リクエストのボディ。
type updateProfileRequest struct {
	UserType   string `json:"userType"`
	CustomRole string `json:"customRole,omitempty"`
}

// Login はGoogle OAuthフローを開始する。
// GET /auth/google/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if !h.service.Enabled() {
		writeOAuthDisabled(w)
		return
	}

	url, err := h.service.BeginLogin()
	if err != nil {
		slog.Error("failed to begin oauth login", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	http.Redirect(w, r, url, http.StatusTemporaryRedirect)
}

// Callback はOAuthコールバックを処理し、JWTを発行する。
// GET /auth/google/callback?code=xxx&state=yyy
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")
	if code == "" || state == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_CALLBACK",
			Message:  "Faltan parámetros de autenticación.",
			Category: "auth",
			Action:   "Reinicie el flujo de inicio de sesión.",
		})
		return
	}

	result, err := h.service.HandleCallback(r.Context(), code, state)
	if err != nil {
		slog.Error("oauth callback failed", slog.String("error", err.Error()))
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, &model.APIError{
			Code:     "AUTH_FAILED",
			Message:  "No se pudo completar la autenticación.",
			Category: "auth",
			Action:   "Intente iniciar sesión nuevamente.",
		})
		return
	}

	writeSuccess(w, http.StatusOK, map[string]any{
		"token": result.Token,
		"user":  toUserResponse(result.User),
	})
}

// Me は現在のログインユーザー情報を返す。
// GET /auth/me（認証ミドルウェア必須）
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	u, err := middleware.UserFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, &model.APIError{
			Code:     "UNAUTHORIZED",
			Message:  "Se requiere iniciar sesión.",
			Category: "auth",
			Action:   "Inicie sesión y vuelva a intentarlo.",
		})
		return
	}

	writeSuccess(w, http.StatusOK, toUserResponse(u))
}

// UpdateProfile はユーザーの役割情報を更新する。
// PUT /auth/profile（認証ミドルウェア必須）
func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	u, err := middleware.UserFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, &model.APIError{
			Code:     "UNAUTHORIZED",
			Message:  "Se requiere iniciar sesión.",
			Category: "auth",
			Action:   "Inicie sesión y vuelva a intentarlo.",
		})
		return
	}

	var req updateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidBody(w)
		return
	}

	userType := model.UserType(req.UserType)
	if req.UserType != "" && !validUserType(userType) {
		handleServiceError(w, model.NewValidationError("Tipo de usuario inválido"))
		return
	}
	if userType.RequiresCustomRole() && req.CustomRole == "" {
		handleServiceError(w, model.NewValidationError("Se requiere especificar el rol personalizado"))
		return
	}

	updated, err := h.users.UpdateProfile(u.ID, userType, req.CustomRole)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, toUserResponse(updated))
}

// Logout はログアウトを受理する。
// トークンはステートレスなので、破棄はクライアント側の責務となる。
// POST /auth/logout（認証ミドルウェア必須）
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if u, err := middleware.UserFromContext(r.Context()); err == nil {
		slog.Info("user logged out", slog.String("user_id", u.ID))
	}

	writeJSON(w, http.StatusOK, successEnvelope{
		Success:   true,
		Message:   "Sesión cerrada correctamente.",
		Timestamp: time.Now(),
	})
}

// GoogleConfig はフロントエンド向けのOAuth設定を返す。
// GET /auth/google/config
func (h *AuthHandler) GoogleConfig(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, http.StatusOK, map[string]any{
		"enabled":     h.service.Enabled(),
		"clientId":    h.config.GoogleClientID,
		"redirectUri": h.config.GoogleRedirectURL,
		"scopes":      []string{"profile", "email"},
	})
}

func toUserResponse(u *model.User) userResponse {
	return userResponse{
		ID:         u.ID,
		Email:      u.Email,
		Name:       u.Name,
		Picture:    u.Picture,
		Role:       u.Role,
		UserType:   string(u.UserType),
		CustomRole: u.CustomRole,
		LoginCount: u.LoginCount,
	}
}

func writeOAuthDisabled(w http.ResponseWriter) {
	middleware.WriteErrorResponse(w, http.StatusServiceUnavailable, &model.APIError{
		Code:     "OAUTH_DISABLED",
		Message:  "El inicio de sesión con Google no está configurado.",
		Category: "auth",
		Action:   "Contacte al administrador del servicio.",
	})
}

func validUserType(userType model.UserType) bool {
	for _, t := range model.ValidUserTypes {
		if t == userType {
			return true
		}
	}
	return false
}
