// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector はPrometheusメトリクスを収集する実装。
// gemini.Recorderを満たし、生成クライアントの試行ごとの観測を受け取る。
type Collector struct {
	generationSuccess prometheus.Counter
	generationFail    prometheus.Counter
	generationLatency prometheus.Histogram
	promptLength      prometheus.Histogram
	planRequests      *prometheus.CounterVec
	demoResponses     prometheus.Counter
	activeSessions    prometheus.GaugeFunc
}

// SessionCounter はアクティブセッション数の取得インターフェース。
// session.Storeの部分集合として定義する。
type SessionCounter interface {
	Size() int
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
// sessionsはnil可（セッションゲージを登録しない）。
func NewCollector(reg prometheus.Registerer, sessions SessionCounter) *Collector {
	c := &Collector{
		generationSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ndassist_generation_success_total",
			Help: "プラン生成呼び出し成功の合計数",
		}),
		generationFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ndassist_generation_fail_total",
			Help: "プラン生成呼び出し失敗の合計数",
		}),
		generationLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ndassist_generation_latency_seconds",
			Help:    "プラン生成呼び出しのレイテンシ（秒）",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
		}),
		promptLength: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ndassist_prompt_length_chars",
			Help:    "合成されたプロンプトの長さ（文字数）",
			Buckets: prometheus.ExponentialBuckets(256, 2, 8),
		}),
		planRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ndassist_plan_requests_total",
			Help: "操作モード別のプランリクエスト数",
		}, []string{"menu_option"}),
		demoResponses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ndassist_demo_responses_total",
			Help: "デモモードで返された応答の合計数",
		}),
	}

	reg.MustRegister(
		c.generationSuccess,
		c.generationFail,
		c.generationLatency,
		c.promptLength,
		c.planRequests,
		c.demoResponses,
	)

	if sessions != nil {
		c.activeSessions = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "ndassist_active_sessions",
			Help: "現在アクティブなプランセッション数",
		}, func() float64 {
			return float64(sessions.Size())
		})
		reg.MustRegister(c.activeSessions)
	}

	return c
}

// RecordGenerationAttempt は生成クライアントの1試行の観測を記録する。
func (c *Collector) RecordGenerationAttempt(promptLen, responseLen int, latency time.Duration, success bool) {
	if success {
		c.generationSuccess.Inc()
	} else {
		c.generationFail.Inc()
	}
	c.generationLatency.Observe(latency.Seconds())
	c.promptLength.Observe(float64(promptLen))
}

// RecordPlanRequest は操作モード別のプランリクエストを記録する。
func (c *Collector) RecordPlanRequest(menuOption string) {
	c.planRequests.WithLabelValues(menuOption).Inc()
}

// RecordDemoResponse はデモモード応答を記録する。
func (c *Collector) RecordDemoResponse() {
	c.demoResponses.Inc()
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
