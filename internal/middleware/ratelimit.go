package middleware

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/hitoshi/ndassist/internal/model"
)

// RateLimiterConfig はレート制限の設定を保持する。
// プラン生成は外部AIサービスを呼ぶため、API全般より厳しい制限をかける。
type RateLimiterConfig struct {
	GeneralRate     rate.Limit    // API全般のレート（req/sec）。100/900 req/sec
	GeneralBurst    int           // API全般のバーストサイズ
	PlanRate        rate.Limit    // プラン生成のレート（req/sec）。10/900 req/sec
	PlanBurst       int           // プラン生成のバーストサイズ
	AdminRate       rate.Limit    // 管理APIのレート（req/sec）。20/900 req/sec
	AdminBurst      int           // 管理APIのバーストサイズ
	CleanupInterval time.Duration // 期限切れエントリのクリーンアップ間隔
}

// DefaultRateLimiterConfig はデフォルトのレート制限設定を返す。
// 15分窓あたり: API全般 100、プラン生成 10、管理API 20。
func DefaultRateLimiterConfig() RateLimiterConfig {
	const window = 15 * 60 // 秒
	return RateLimiterConfig{
		GeneralRate:     rate.Limit(100.0 / window),
		GeneralBurst:    100,
		PlanRate:        rate.Limit(10.0 / window),
		PlanBurst:       10,
		AdminRate:       rate.Limit(20.0 / window),
		AdminBurst:      20,
		CleanupInterval: 5 * time.Minute,
	}
}

// clientLimiter はクライアントごとのレートリミッターとアクセス時刻を保持する。
type clientLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// limiterTier は1種類のレート制限を表す。クライアントIPをキーとする。
type limiterTier struct {
	name  string
	rate  rate.Limit
	burst int

	mu       sync.Mutex
	limiters map[string]*clientLimiter
}

func newLimiterTier(name string, r rate.Limit, burst int) *limiterTier {
	return &limiterTier{
		name:     name,
		rate:     r,
		burst:    burst,
		limiters: make(map[string]*clientLimiter),
	}
}

// getOrCreate はクライアントのリミッターを取得または作成する。
func (t *limiterTier) getOrCreate(clientIP string) *rate.Limiter {
	t.mu.Lock()
	defer t.mu.Unlock()

	if cl, exists := t.limiters[clientIP]; exists {
		cl.lastAccess = time.Now()
		return cl.limiter
	}

	limiter := rate.NewLimiter(t.rate, t.burst)
	t.limiters[clientIP] = &clientLimiter{
		limiter:    limiter,
		lastAccess: time.Now(),
	}
	return limiter
}

// cleanup は最終アクセス時刻がttlを超えたエントリを削除する。
func (t *limiterTier) cleanup(ttl time.Duration) {
	now := time.Now()
	t.mu.Lock()
	for ip, cl := range t.limiters {
		if now.Sub(cl.lastAccess) > ttl {
			delete(t.limiters, ip)
		}
	}
	t.mu.Unlock()
}

func (t *limiterTier) count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.limiters)
}

// RateLimiter はクライアントIPごとのレート制限を管理する。
// API全般・プラン生成・管理APIの3種類の制限を提供する。
type RateLimiter struct {
	config  RateLimiterConfig
	general *limiterTier
	plan    *limiterTier
	admin   *limiterTier
	stopCh  chan struct{}
}

// NewRateLimiter は新しいRateLimiterを生成する。
// バックグラウンドで期限切れエントリのクリーンアップを開始する。
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	rl := &RateLimiter{
		config:  config,
		general: newLimiterTier("general", config.GeneralRate, config.GeneralBurst),
		plan:    newLimiterTier("plan", config.PlanRate, config.PlanBurst),
		admin:   newLimiterTier("admin", config.AdminRate, config.AdminBurst),
		stopCh:  make(chan struct{}),
	}

	go rl.cleanupLoop()

	return rl
}

// Stop はクリーンアップのバックグラウンドゴルーチンを停止する。
func (rl *RateLimiter) Stop() {
	close(rl.stopCh)
}

// GeneralMiddleware はAPI全般のレート制限ミドルウェアを返す。
func (rl *RateLimiter) GeneralMiddleware() func(next http.Handler) http.Handler {
	return rl.middleware(rl.general)
}

// PlanMiddleware はプラン生成専用のレート制限ミドルウェアを返す。
// API全般の制限とは独立に動作する。
func (rl *RateLimiter) PlanMiddleware() func(next http.Handler) http.Handler {
	return rl.middleware(rl.plan)
}

// AdminMiddleware は管理API専用のレート制限ミドルウェアを返す。
func (rl *RateLimiter) AdminMiddleware() func(next http.Handler) http.Handler {
	return rl.middleware(rl.admin)
}

// GeneralLimiterCount は現在管理されているAPI全般リミッターのエントリ数を返す。
// テストおよびメトリクス用。
func (rl *RateLimiter) GeneralLimiterCount() int {
	return rl.general.count()
}

// PlanLimiterCount は現在管理されているプラン生成リミッターのエントリ数を返す。
func (rl *RateLimiter) PlanLimiterCount() int {
	return rl.plan.count()
}

func (rl *RateLimiter) middleware(tier *limiterTier) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientIP := clientIPFromRequest(r)

			if !tier.getOrCreate(clientIP).Allow() {
				writeRateLimitResponse(w, tier.rate)
				slog.Warn("rate limit exceeded",
					slog.String("client_ip", clientIP),
					slog.String("limit_type", tier.name),
				)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// cleanupLoop はバックグラウンドで期限切れエントリを定期的にクリーンアップする。
func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ttl := rl.config.CleanupInterval * 2
			rl.general.cleanup(ttl)
			rl.plan.cleanup(ttl)
			rl.admin.cleanup(ttl)
		case <-rl.stopCh:
			return
		}
	}
}

// clientIPFromRequest はリクエスト元のIPアドレスを特定する。
// リバースプロキシ配下を想定し、X-Forwarded-Forの先頭エントリを優先する。
func clientIPFromRequest(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		return strings.TrimSpace(first)
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// writeRateLimitResponse は429 Too Many Requestsレスポンスを書き込む。
// Retry-Afterヘッダーにはトークンが補充されるまでの推定秒数を設定する。
func writeRateLimitResponse(w http.ResponseWriter, r rate.Limit) {
	retryAfterSec := int(math.Ceil(1.0 / float64(r)))
	if retryAfterSec < 1 {
		retryAfterSec = 1
	}

	w.Header().Set("Retry-After", strconv.Itoa(retryAfterSec))
	WriteErrorResponse(w, http.StatusTooManyRequests, &model.APIError{
		Code:     "RATE_LIMIT_EXCEEDED",
		Message:  "Demasiadas solicitudes.",
		Category: "system",
		Action:   "Espere unos minutos antes de volver a intentarlo.",
	})
}
