// Package config はアプリケーション設定の読み込みを提供する。
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Server
	ServerPort string
	BaseURL    string

	// CORS
	CORSAllowedOrigin string

	// Gemini
	GeminiAPIKey     string
	GeminiModel      string
	GeminiTimeout    time.Duration
	GeminiMaxRetries int

	// Session memory
	MaxSessionAge  time.Duration // 読み取り時の期限切れ判定に使う最大セッション年齢
	MaxSessions    int           // ストアの容量上限（超過時は最古を退避）
	SweepInterval  time.Duration // 期限切れセッションの定期掃除間隔
	ActivityWindow time.Duration // 管理表示用のアクティブ判定ウィンドウ（MaxSessionAgeとは独立）

	// Rate Limit（req/min単位）
	RateLimitGeneral int
	RateLimitPlan    int
	RateLimitAdmin   int

	// OAuth
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string

	// JWT
	JWTSecret    string
	JWTExpiresIn time.Duration

	// Admin
	AdminPassword string

	// Parser
	MaxSectionLength int // 1セクションあたりのコンテンツ上限（文字数）
}

// Load は環境変数からConfigを読み込む。
// カレントディレクトリに.envがあれば先に読み込む（未設定の変数のみ反映）。
// Gemini APIキーが未設定の場合もエラーにはせず、クライアント側でデモモードに切り替わる。
func Load() (*Config, error) {
	// .envはローカル開発用。存在しなくてもエラーにしない。
	_ = godotenv.Load()

	cfg := &Config{}

	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.BaseURL = getEnvString("BASE_URL", "http://localhost:"+cfg.ServerPort)
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	cfg.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	cfg.GeminiModel = getEnvString("GEMINI_MODEL", "gemini-2.0-flash-exp")
	cfg.GeminiTimeout = getEnvDuration("GEMINI_TIMEOUT", 30*time.Second)
	cfg.GeminiMaxRetries = getEnvInt("GEMINI_MAX_RETRIES", 3)

	cfg.MaxSessionAge = getEnvDuration("MAX_SESSION_AGE", time.Hour)
	cfg.MaxSessions = getEnvInt("MAX_SESSIONS", 1000)
	cfg.SweepInterval = getEnvDuration("MEMORY_CLEANUP_INTERVAL", time.Hour)
	cfg.ActivityWindow = getEnvDuration("ACTIVITY_WINDOW", time.Hour)

	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 100)
	cfg.RateLimitPlan = getEnvInt("RATE_LIMIT_PLAN", 10)
	cfg.RateLimitAdmin = getEnvInt("RATE_LIMIT_ADMIN", 20)

	cfg.GoogleClientID = os.Getenv("GOOGLE_CLIENT_ID")
	cfg.GoogleClientSecret = os.Getenv("GOOGLE_CLIENT_SECRET")
	cfg.GoogleRedirectURL = getEnvString("GOOGLE_REDIRECT_URL", cfg.BaseURL+"/auth/google/callback")

	cfg.JWTSecret = getEnvString("JWT_SECRET", "default-jwt-secret-change-in-production")
	cfg.JWTExpiresIn = getEnvDuration("JWT_EXPIRES_IN", 7*24*time.Hour)

	cfg.AdminPassword = getEnvString("ADMIN_PASSWORD", "admin123")

	cfg.MaxSectionLength = getEnvInt("MAX_SECTION_LENGTH", 8000)

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
