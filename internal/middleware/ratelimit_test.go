package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func testConfig() RateLimiterConfig {
	return RateLimiterConfig{
		GeneralRate:     rate.Limit(1.0 / 900.0),
		GeneralBurst:    3,
		PlanRate:        rate.Limit(1.0 / 900.0),
		PlanBurst:       2,
		AdminRate:       rate.Limit(1.0 / 900.0),
		AdminBurst:      2,
		CleanupInterval: time.Hour,
	}
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func doRequest(handler http.Handler, remoteAddr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/nd/neurodiversities", nil)
	req.RemoteAddr = remoteAddr
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func TestGeneralMiddlewareAllowsWithinBurst(t *testing.T) {
	rl := NewRateLimiter(testConfig())
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(okHandler())

	for i := 0; i < 3; i++ {
		if w := doRequest(handler, "10.0.0.1:1234"); w.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i+1, w.Code)
		}
	}
}

func TestGeneralMiddlewareRejectsOverBurst(t *testing.T) {
	rl := NewRateLimiter(testConfig())
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(okHandler())

	for i := 0; i < 3; i++ {
		doRequest(handler, "10.0.0.1:1234")
	}
	w := doRequest(handler, "10.0.0.1:1234")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After header")
	}
}

func TestRateLimitIsPerClient(t *testing.T) {
	rl := NewRateLimiter(testConfig())
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(okHandler())

	for i := 0; i < 3; i++ {
		doRequest(handler, "10.0.0.1:1234")
	}
	// 別クライアントは制限されない
	if w := doRequest(handler, "10.0.0.2:1234"); w.Code != http.StatusOK {
		t.Errorf("other client status = %d, want 200", w.Code)
	}
	if rl.GeneralLimiterCount() != 2 {
		t.Errorf("GeneralLimiterCount() = %d, want 2", rl.GeneralLimiterCount())
	}
}

func TestPlanMiddlewareIndependentOfGeneral(t *testing.T) {
	rl := NewRateLimiter(testConfig())
	defer rl.Stop()

	general := rl.GeneralMiddleware()(okHandler())
	plan := rl.PlanMiddleware()(okHandler())

	// プラン生成のバーストを使い切る
	for i := 0; i < 2; i++ {
		if w := doRequest(plan, "10.0.0.1:1234"); w.Code != http.StatusOK {
			t.Fatalf("plan request %d: status = %d, want 200", i+1, w.Code)
		}
	}
	if w := doRequest(plan, "10.0.0.1:1234"); w.Code != http.StatusTooManyRequests {
		t.Fatalf("plan over burst: status = %d, want 429", w.Code)
	}

	// API全般はまだ許可される
	if w := doRequest(general, "10.0.0.1:1234"); w.Code != http.StatusOK {
		t.Errorf("general after plan exhausted: status = %d, want 200", w.Code)
	}
}

func TestAdminMiddlewareRateLimit(t *testing.T) {
	rl := NewRateLimiter(testConfig())
	defer rl.Stop()

	handler := rl.AdminMiddleware()(okHandler())

	for i := 0; i < 2; i++ {
		doRequest(handler, "10.0.0.1:1234")
	}
	if w := doRequest(handler, "10.0.0.1:1234"); w.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", w.Code)
	}
}

func TestClientIPFromForwardedHeader(t *testing.T) {
	rl := NewRateLimiter(testConfig())
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(okHandler())

	// 同じX-Forwarded-Forは同一クライアント扱い
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/nd/neurodiversities", nil)
		req.RemoteAddr = "127.0.0.1:1234"
		req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/nd/neurodiversities", nil)
	req.RemoteAddr = "127.0.0.1:5678"
	req.Header.Set("X-Forwarded-For", "203.0.113.7")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429 for same forwarded client", w.Code)
	}
}

func TestClientIPParsing(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		forwarded  string
		want       string
	}{
		{"plain remote addr", "192.0.2.1:5000", "", "192.0.2.1"},
		{"forwarded single", "10.0.0.1:80", "203.0.113.7", "203.0.113.7"},
		{"forwarded chain", "10.0.0.1:80", "203.0.113.7, 10.0.0.2", "203.0.113.7"},
		{"forwarded with spaces", "10.0.0.1:80", " 203.0.113.7 ", "203.0.113.7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.forwarded != "" {
				req.Header.Set("X-Forwarded-For", tt.forwarded)
			}
			if got := clientIPFromRequest(req); got != tt.want {
				t.Errorf("clientIPFromRequest() = %q, want %q", got, tt.want)
			}
		})
	}
}
