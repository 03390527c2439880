package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	"github.com/hitoshi/ndassist/internal/model"
)

// adminPasswordHeader は管理者パスワードを運ぶHTTPヘッダー名。
const adminPasswordHeader = "X-Admin-Password"

// NewAdminPasswordMiddleware は管理者パスワードヘッダーを検証するミドルウェアを返す。
// 運用ツールからの管理API呼び出しを想定しており、JWT認証とは独立して動作する。
// パスワードが未設定の場合は全リクエストを拒否する。
func NewAdminPasswordMiddleware(password string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if password == "" {
				WriteErrorResponse(w, http.StatusServiceUnavailable, &model.APIError{
					Code:     "ADMIN_DISABLED",
					Message:  "Las rutas de administración están deshabilitadas.",
					Category: "auth",
					Action:   "Configure la contraseña de administración en el servidor.",
				})
				return
			}

			provided := r.Header.Get(adminPasswordHeader)
			if subtle.ConstantTimeCompare([]byte(provided), []byte(password)) != 1 {
				slog.Warn("admin auth rejected",
					slog.String("path", r.URL.Path),
					slog.String("remote_addr", r.RemoteAddr),
				)
				WriteErrorResponse(w, http.StatusUnauthorized, &model.APIError{
					Code:     "ADMIN_UNAUTHORIZED",
					Message:  "Credenciales de administración inválidas.",
					Category: "auth",
					Action:   "Verifique la contraseña de administración.",
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
