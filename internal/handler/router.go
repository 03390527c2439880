package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/ndassist/internal/middleware"
	"github.com/hitoshi/ndassist/internal/metrics"
	"github.com/hitoshi/ndassist/internal/validate"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Authenticator     middleware.TokenAuthenticator
	AdminPassword     string

	// プラン生成
	Validator *validate.Validator
	Processor PlanProcessorInterface
	Recorder  PlanRecorder // nil可

	// 認証
	AuthService AuthServiceInterface
	Users       ProfileUpdater
	AuthConfig  AuthHandlerConfig

	// 管理
	Stats          StatsProviderInterface
	Sessions       SessionAdminInterface
	UserDirectory  UserDirectoryInterface
	ActivityWindow time.Duration

	// 監視
	Generator GenerationChecker
	Hub       EventSubscriber
	Gatherer  prometheus.Gatherer
	StartedAt time.Time
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	CORS → SecurityHeaders → Recovery → RateLimit(tier) → Auth(variant)
//
// プラン生成ルートは匿名でも利用でき、トークンがあればユーザーを注入する。
// 管理ルートは管理者パスワードヘッダーで保護する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	// CORS とセキュリティヘッダーを最上位に適用（全ルートに効く）
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	r.Use(middleware.NewRecoveryMiddleware())

	ndHandler := NewNDHandler(deps.Validator, deps.Processor, deps.Recorder, deps.ActivityWindow)
	authHandler := NewAuthHandler(deps.AuthService, deps.Users, deps.AuthConfig)
	adminHandler := NewAdminHandler(deps.Stats, deps.Sessions, deps.UserDirectory, deps.ActivityWindow, deps.StartedAt)
	healthHandler := NewHealthHandler(deps.Generator, deps.StartedAt)
	eventsHandler := NewEventsHandler(deps.Hub)

	// --- 監視ルート（レート制限の外） ---
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)
	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.SetupMetricsRoute(deps.Gatherer))
	}

	// --- 認証ルート ---
	r.Route("/auth", func(r chi.Router) {
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Get("/google/login", authHandler.Login)
		r.Get("/google/callback", authHandler.Callback)
		r.Get("/google/config", authHandler.GoogleConfig)

		// トークン必須のルート
		r.Group(func(r chi.Router) {
			r.Use(middleware.NewAuthMiddleware(deps.Authenticator))
			r.Get("/me", authHandler.Me)
			r.Put("/profile", authHandler.UpdateProfile)
			r.Post("/logout", authHandler.Logout)
		})
	})

	// --- プラン生成ルート（匿名可） ---
	r.Route("/api/nd", func(r chi.Router) {
		r.Use(middleware.NewOptionalAuthMiddleware(deps.Authenticator))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// 生成エンドポイントは生成専用の厳しいレート制限を重ねる
		r.With(deps.RateLimiter.PlanMiddleware()).Post("/generate-nd-plan", ndHandler.GeneratePlan)
		r.With(deps.RateLimiter.PlanMiddleware()).Post("/regenerate-plan", ndHandler.RegeneratePlan)

		r.Get("/session/{sessionId}", ndHandler.GetSession)
		r.Post("/feedback", ndHandler.Feedback)
		r.Post("/export-plan", ndHandler.ExportPlan)

		r.Get("/neurodiversities", ndHandler.ListNeurodiversities)
		r.Get("/suggestions/{neurodiversity}", ndHandler.GetSuggestions)
	})

	// --- 状況通知ストリーム ---
	r.Group(func(r chi.Router) {
		r.Use(deps.RateLimiter.GeneralMiddleware())
		r.Get("/api/events/{sessionId}", eventsHandler.Stream)
	})

	// --- 管理ルート（運用ツール向け、パスワードヘッダー認証） ---
	r.Route("/admin", func(r chi.Router) {
		r.Use(deps.RateLimiter.AdminMiddleware())
		r.Use(middleware.NewAdminPasswordMiddleware(deps.AdminPassword))

		r.Get("/stats", adminHandler.Stats)
		r.Get("/feedback", adminHandler.FeedbackSummary)

		r.Route("/sessions", func(r chi.Router) {
			r.Get("/", adminHandler.ListSessions)
			r.Delete("/{sessionId}", adminHandler.DeleteSession)
		})
		r.Post("/cleanup", adminHandler.Cleanup)
	})

	// --- ユーザー管理ルート（管理者ロールのJWT認証） ---
	r.Route("/api/users", func(r chi.Router) {
		r.Use(deps.RateLimiter.AdminMiddleware())
		r.Use(middleware.NewAuthMiddleware(deps.Authenticator))
		r.Use(middleware.NewAdminMiddleware())

		r.Get("/", adminHandler.ListUsers)
		r.Put("/{userId}/role", adminHandler.SetUserRole)
		r.Delete("/{userId}", adminHandler.DeactivateUser)
	})

	return r
}
