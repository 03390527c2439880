package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/hitoshi/ndassist/internal/auth"
	"github.com/hitoshi/ndassist/internal/config"
	"github.com/hitoshi/ndassist/internal/gemini"
	"github.com/hitoshi/ndassist/internal/handler"
	"github.com/hitoshi/ndassist/internal/logger"
	"github.com/hitoshi/ndassist/internal/metrics"
	"github.com/hitoshi/ndassist/internal/middleware"
	"github.com/hitoshi/ndassist/internal/notify"
	"github.com/hitoshi/ndassist/internal/parse"
	"github.com/hitoshi/ndassist/internal/processor"
	"github.com/hitoshi/ndassist/internal/prompt"
	"github.com/hitoshi/ndassist/internal/session"
	"github.com/hitoshi/ndassist/internal/user"
	"github.com/hitoshi/ndassist/internal/validate"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	return runServe(cfg)
}

// runServe はAPIサーバーモードで起動する。
// 全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	startedAt := time.Now()

	// 1. セッションストアの初期化
	store := session.NewStore(session.StoreConfig{
		MaxAge:        cfg.MaxSessionAge,
		MaxSessions:   cfg.MaxSessions,
		SweepInterval: cfg.SweepInterval,
	}, slog.Default())
	store.Start()
	defer store.Stop()

	// 2. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry, store)

	// 3. 生成クライアントの初期化
	// APIキー未設定の場合はデモモードで動作する
	client := gemini.NewClient(gemini.ClientConfig{
		APIKey:     cfg.GeminiAPIKey,
		Model:      cfg.GeminiModel,
		Timeout:    cfg.GeminiTimeout,
		MaxRetries: cfg.GeminiMaxRetries,
	}, collector, slog.Default())

	if client.Enabled() {
		slog.Info("generation client ready", slog.String("model", cfg.GeminiModel))
	} else {
		slog.Warn("GEMINI_API_KEY not set, running in demo mode")
	}

	// 4. パイプラインの初期化
	sanitizer := validate.NewSanitizer()
	validator := validate.NewValidator(sanitizer)
	composer := prompt.NewComposer()
	parser := parse.NewParser(cfg.MaxSectionLength)
	hub := notify.NewHub()
	proc := processor.NewProcessor(store, composer, client, parser, hub, slog.Default()).
		WithActivityWindow(cfg.ActivityWindow)

	// 5. 認証サービスの初期化
	users := user.NewStore(slog.Default())
	oauthProvider := auth.NewGoogleOAuthProvider(auth.GoogleOAuthConfig{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.GoogleRedirectURL,
	})
	issuer := auth.NewTokenIssuer(cfg.JWTSecret).WithLifetime(cfg.JWTExpiresIn)
	authService := auth.NewService(oauthProvider, users, issuer, slog.Default())

	if !authService.Enabled() {
		slog.Warn("Google OAuth credentials not set, auth endpoints disabled")
	}

	// 6. レート制限の初期化（config値は15分窓あたりのリクエスト数）
	rateLimiterCfg := middleware.DefaultRateLimiterConfig()
	const window = 15 * 60 // 秒
	if cfg.RateLimitGeneral > 0 {
		rateLimiterCfg.GeneralRate = rate.Limit(float64(cfg.RateLimitGeneral) / window)
		rateLimiterCfg.GeneralBurst = cfg.RateLimitGeneral
	}
	if cfg.RateLimitPlan > 0 {
		rateLimiterCfg.PlanRate = rate.Limit(float64(cfg.RateLimitPlan) / window)
		rateLimiterCfg.PlanBurst = cfg.RateLimitPlan
	}
	if cfg.RateLimitAdmin > 0 {
		rateLimiterCfg.AdminRate = rate.Limit(float64(cfg.RateLimitAdmin) / window)
		rateLimiterCfg.AdminBurst = cfg.RateLimitAdmin
	}
	rateLimiter := middleware.NewRateLimiter(rateLimiterCfg)
	defer rateLimiter.Stop()

	// 7. ルーターの構築
	deps := &handler.RouterDeps{
		Logger:            slog.Default(),
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		Authenticator:     authService,
		AdminPassword:     cfg.AdminPassword,

		Validator: validator,
		Processor: proc,
		Recorder:  collector,

		AuthService: authService,
		Users:       users,
		AuthConfig: handler.AuthHandlerConfig{
			GoogleClientID:    cfg.GoogleClientID,
			GoogleRedirectURL: cfg.GoogleRedirectURL,
		},

		Stats:          proc,
		Sessions:       store,
		UserDirectory:  users,
		ActivityWindow: cfg.ActivityWindow,

		Generator: client,
		Hub:       hub,
		Gatherer:  registry,
		StartedAt: startedAt,
	}

	router := handler.NewRouter(deps)

	// 8. HTTPサーバーの起動
	server := newHTTPServer(cfg.ServerPort, router)

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// newHTTPServer はAPIサーバーを構築する。
// プラン生成はGeminiのリトライ込みでリクエストあたり数分かかり得るうえ、
// /api/events のSSEストリームは接続を張りっぱなしにするため、
// WriteTimeoutは設定しない。遅いクライアントはReadHeaderTimeoutで遮断する。
func newHTTPServer(port string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}
