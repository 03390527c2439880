// Package gemini は外部生成サービス（Gemini API）の呼び出しをラップする。
// リトライ・タイムアウト・デモモードへのフォールバックのポリシーを持つ。
package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"google.golang.org/genai"

	"github.com/hitoshi/ndassist/internal/model"
)

// Result は生成呼び出しの結果。
type Result struct {
	Text     string
	DemoMode bool // デモプレースホルダーが使われた場合true
}

// Recorder は試行ごとの観測レコードを受け取るインターフェース。
// fire-and-forgetであり、戻り値は消費されない。
type Recorder interface {
	RecordGenerationAttempt(promptLen, responseLen int, latency time.Duration, success bool)
}

// Generator はプロセッサが必要とする生成操作のインターフェース。
type Generator interface {
	Generate(ctx context.Context, prompt string) (Result, error)
	DemoResponse(prompt string) string
	Enabled() bool
}

// ClientConfig はClientの設定。
type ClientConfig struct {
	APIKey     string
	Model      string
	Timeout    time.Duration // 1試行あたりのハードタイムアウト
	MaxRetries int           // 総試行回数の上限
}

// Client はGemini APIのクライアント。
// APIキーが未設定の場合はデモモードで動作し、決定的なプレースホルダーを返す。
type Client struct {
	config   ClientConfig
	logger   *slog.Logger
	recorder Recorder

	mu     sync.Mutex
	client *genai.Client // 初回リクエスト時に遅延初期化
}

// NewClient はClientを生成する。genaiクライアント本体は初回呼び出し時に初期化する。
// recorderはnil可（観測レコードを破棄する）。
func NewClient(config ClientConfig, recorder Recorder, logger *slog.Logger) *Client {
	if config.Model == "" {
		config.Model = "gemini-2.0-flash-exp"
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = 3
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		config:   config,
		logger:   logger,
		recorder: recorder,
	}
}

// Enabled はAPIキーが設定されているかどうかを返す。
func (c *Client) Enabled() bool {
	return strings.TrimSpace(c.config.APIKey) != ""
}

// Generate はプロンプトをGeminiに送り、生成テキストを返す。
// キー未設定の場合は失敗させず、デモフラグ付きのプレースホルダーを返す。
// 一時的エラーはバックオフ付きでMaxRetries回まで再試行し、
// 認証エラーは再試行せず即座に返す。
func (c *Client) Generate(ctx context.Context, prompt string) (Result, error) {
	if !c.Enabled() {
		c.logger.Info("gemini api key not configured, returning demo response",
			slog.Int("prompt_len", len(prompt)),
		)
		return Result{Text: c.DemoResponse(prompt), DemoMode: true}, nil
	}

	cfg := RetryConfig{
		MaxAttempts:       c.config.MaxRetries,
		PerAttemptTimeout: c.config.Timeout,
	}

	text, err := doWithRetry(ctx, cfg, c.attempt(prompt), isTransient, c.logger)
	if err != nil {
		return Result{}, err
	}
	return Result{Text: text}, nil
}

// attempt は1回のGemini呼び出しを行うoperationを返す。
// 試行ごとに観測レコード（プロンプト長・応答長・レイテンシ・成否）を送出する。
func (c *Client) attempt(prompt string) operation {
	return func(ctx context.Context) (string, error) {
		start := time.Now()
		text, err := c.generateOnce(ctx, prompt)
		latency := time.Since(start)

		if c.recorder != nil {
			c.recorder.RecordGenerationAttempt(len(prompt), len(text), latency, err == nil)
		}

		if err != nil {
			return "", classifyError(err)
		}
		return text, nil
	}
}

// generateOnce は1回だけGemini APIを呼び出す。
func (c *Client) generateOnce(ctx context.Context, prompt string) (string, error) {
	client, err := c.initClient(ctx)
	if err != nil {
		return "", err
	}

	result, err := client.Models.GenerateContent(
		ctx,
		c.config.Model,
		genai.Text(prompt),
		c.generationConfig(),
	)
	if err != nil {
		return "", err
	}

	text := extractText(result)
	if text == "" {
		return "", fmt.Errorf("empty response from gemini")
	}
	return text, nil
}

// initClient はgenaiクライアントを遅延初期化する。
func (c *Client) initClient(ctx context.Context) (*genai.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client != nil {
		return c.client, nil
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: c.config.APIKey,
	})
	if err != nil {
		return nil, model.NewGenerationAuthError(err.Error())
	}

	c.client = client
	c.logger.Info("gemini client initialized", slog.String("model", c.config.Model))
	return client, nil
}

// generationConfig は生成パラメータと安全性設定を返す。
func (c *Client) generationConfig() *genai.GenerateContentConfig {
	temperature := float32(0.7)
	topP := float32(0.8)
	topK := float32(40)

	return &genai.GenerateContentConfig{
		Temperature:     &temperature,
		TopP:            &topP,
		TopK:            &topK,
		MaxOutputTokens: 8192,
		SafetySettings: []*genai.SafetySetting{
			{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockThresholdBlockOnlyHigh},
			{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockThresholdBlockOnlyHigh},
			{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockThresholdBlockOnlyHigh},
			{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockThresholdBlockOnlyHigh},
		},
	}
}

// extractText は応答の全候補からテキスト部分を連結して返す。
func extractText(result *genai.GenerateContentResponse) string {
	var b strings.Builder
	for _, candidate := range result.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part.Text != "" && !part.Thought {
				b.WriteString(part.Text)
			}
		}
	}
	return b.String()
}

// classifyError はGemini APIのエラーを型付きエラーに正規化する。
// 401/403/400は認証・不正リクエスト（致命的、再試行しない）、
// 429はレート制限、5xxは一時的障害として分類する。
func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return model.NewGenerationTimeoutError()
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == 401 || apiErr.Code == 403 || apiErr.Code == 400:
			return model.NewGenerationAuthError(apiErr.Message)
		case apiErr.Code == 429:
			return model.NewGenerationRateLimitedError()
		case apiErr.Code >= 500:
			return &model.APIError{
				Code:     model.ErrCodeGenerationUnavailable,
				Message:  fmt.Sprintf("El servicio de generación devolvió un error: %s", apiErr.Message),
				Category: "generation",
				Action:   "Espere unos minutos y vuelva a intentarlo.",
			}
		}
	}

	// 構造化されていないエラーはメッセージで判別する
	lower := strings.ToLower(err.Error())
	if strings.Contains(lower, "permission") || strings.Contains(lower, "invalid") || strings.Contains(lower, "api key") {
		return model.NewGenerationAuthError(err.Error())
	}

	return &model.APIError{
		Code:     model.ErrCodeGenerationUnavailable,
		Message:  fmt.Sprintf("Error llamando al servicio de generación: %v", err),
		Category: "generation",
		Action:   "Espere unos minutos y vuelva a intentarlo.",
	}
}

// isTransient はリトライ対象のエラーかどうかを判定する。
// 認証エラーと合成エラーのみ致命的として扱い、それ以外は再試行する。
func isTransient(err error) bool {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case model.ErrCodeGenerationAuth, model.ErrCodeCompositionError:
			return false
		}
	}
	return true
}
