// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// 呼び出し側に返す原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, generation, session, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeValidation            = "VALIDATION_ERROR"
	ErrCodeSessionNotFound       = "SESSION_NOT_FOUND"
	ErrCodeCompositionError      = "COMPOSITION_ERROR"
	ErrCodeGenerationTimeout     = "GENERATION_TIMEOUT"
	ErrCodeGenerationAuth        = "GENERATION_AUTH"
	ErrCodeGenerationRateLimit   = "GENERATION_RATE_LIMITED"
	ErrCodeGenerationUnavailable = "GENERATION_UNAVAILABLE"
	ErrCodeInvalidRating         = "INVALID_RATING"
	ErrCodeInvalidExportFormat   = "INVALID_EXPORT_FORMAT"
	ErrCodeNoGeminiKey           = "NO_GEMINI_KEY"
	ErrCodeUserNotFound          = "USER_NOT_FOUND"
	ErrCodeInternal              = "INTERNAL_ERROR"
)

// NewSessionNotFoundError はセッション未検出エラーを生成する。
// 存在しないセッションと期限切れセッションは区別しない。
func NewSessionNotFoundError(sessionID string) *APIError {
	return &APIError{
		Code:     ErrCodeSessionNotFound,
		Message:  fmt.Sprintf("Sesión no encontrada: %s", sessionID),
		Category: "session",
		Action:   "La sesión puede haber expirado o no existir. Genere un plan nuevo.",
	}
}

// NewValidationError はバリデーションエラーを生成する。
func NewValidationError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  message,
		Category: "validation",
		Action:   "Revise los campos enviados y vuelva a intentarlo.",
	}
}

// NewCompositionError はテンプレート対応の内部不整合エラーを生成する。
// 検証済み入力に対してテンプレートが見つからないのは実装バグであり、
// 最高レベルでログに記録されるべき致命的状態を表す。
func NewCompositionError(menuOption MenuOption, format OutputFormat) *APIError {
	return &APIError{
		Code:     ErrCodeCompositionError,
		Message:  fmt.Sprintf("no prompt template for menuOption=%s outputFormat=%s", menuOption, format),
		Category: "system",
		Action:   "Contacte al administrador del sistema.",
	}
}

// NewGenerationTimeoutError は生成タイムアウトエラーを生成する。
func NewGenerationTimeoutError() *APIError {
	return &APIError{
		Code:     ErrCodeGenerationTimeout,
		Message:  "El servicio de generación no respondió a tiempo.",
		Category: "generation",
		Action:   "Espere unos segundos y vuelva a intentarlo.",
	}
}

// NewGenerationAuthError は生成サービスの認証エラーを生成する。
// リトライ対象外の致命的エラーとして即座に呼び出し元へ伝播する。
func NewGenerationAuthError(detail string) *APIError {
	return &APIError{
		Code:     ErrCodeGenerationAuth,
		Message:  fmt.Sprintf("Error de autenticación con el servicio de generación: %s", detail),
		Category: "generation",
		Action:   "Verifique la configuración de la clave de API.",
	}
}

// NewGenerationRateLimitedError は生成サービスのレート制限エラーを生成する。
func NewGenerationRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeGenerationRateLimit,
		Message:  "El servicio de generación está limitando las solicitudes.",
		Category: "generation",
		Action:   "Espere un momento antes de volver a intentarlo.",
	}
}

// NewGenerationUnavailableError はリトライ枯渇後の生成不能エラーを生成する。
func NewGenerationUnavailableError(attempts int) *APIError {
	return &APIError{
		Code:     ErrCodeGenerationUnavailable,
		Message:  fmt.Sprintf("El servicio de generación no está disponible tras %d intentos.", attempts),
		Category: "generation",
		Action:   "Espere unos minutos y vuelva a intentarlo.",
	}
}

// NewInvalidRatingError は範囲外の評価値エラーを生成する。
func NewInvalidRatingError(rating int) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRating,
		Message:  fmt.Sprintf("La calificación debe estar entre 1 y 5, se recibió %d", rating),
		Category: "validation",
		Action:   "Envíe una calificación entera entre 1 y 5.",
	}
}

// NewInvalidExportFormatError は未対応のエクスポート形式エラーを生成する。
func NewInvalidExportFormatError(format string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidExportFormat,
		Message:  fmt.Sprintf("Formato de exportación no soportado: %s", format),
		Category: "validation",
		Action:   "Use uno de los formatos soportados: json, txt, markdown.",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "Usuario no encontrado.",
		Category: "auth",
		Action:   "Inicie sesión nuevamente.",
	}
}
