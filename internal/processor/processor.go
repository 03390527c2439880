// Package processor はプラン生成パイプラインのオーケストレーションを行う。
// 検証済みリクエストを受け取り、プロンプト合成・生成・パース・セッション保存を
// 順に実行し、常に結果エンベロープを返す（パニックや例外を外に漏らさない）。
package processor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hitoshi/ndassist/internal/gemini"
	"github.com/hitoshi/ndassist/internal/model"
	"github.com/hitoshi/ndassist/internal/notify"
	"github.com/hitoshi/ndassist/internal/parse"
	"github.com/hitoshi/ndassist/internal/prompt"
	"github.com/hitoshi/ndassist/internal/session"
)

// maxFeedbackEntries は保持するフィードバックの上限。超過時は古いものから捨てる。
const maxFeedbackEntries = 1000

// Notifier は処理状況イベントの配信先インターフェース。
// 配信はベストエフォートであり、パイプラインの成否に影響しない。
type Notifier interface {
	Publish(sessionID string, stage notify.Stage, message string)
}

// Processor は生成パイプライン全体を調停する。
type Processor struct {
	store     *session.Store
	composer  *prompt.Composer
	generator gemini.Generator
	parser    *parse.Parser
	notifier  Notifier
	logger    *slog.Logger

	// 統計カウンタ。リクエストパスをブロックしないためatomicで更新する。
	totalRequests   atomic.Int64
	totalErrors     atomic.Int64
	totalLatencyMs  atomic.Int64
	completedCount  atomic.Int64

	mu              sync.Mutex
	operationCounts map[model.MenuOption]int64
	feedback        []model.Feedback

	activityWindow time.Duration
}

// NewProcessor はProcessorを生成する。notifierはnil可。
func NewProcessor(
	store *session.Store,
	composer *prompt.Composer,
	generator gemini.Generator,
	parser *parse.Parser,
	notifier Notifier,
	logger *slog.Logger,
) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		store:           store,
		composer:        composer,
		generator:       generator,
		parser:          parser,
		notifier:        notifier,
		logger:          logger,
		operationCounts: make(map[model.MenuOption]int64),
		activityWindow:  time.Hour,
	}
}

// WithActivityWindow は統計のアクティブ判定に使う期間を変更したProcessorを返す。
// 0以下の場合はデフォルトの1時間を維持する。
func (p *Processor) WithActivityWindow(window time.Duration) *Processor {
	if window > 0 {
		p.activityWindow = window
	}
	return p
}

// ProcessRequest は新規プラン生成リクエストを処理する。
// エラーもエンベロープとして返し、Goのエラー値としては返さない。
func (p *Processor) ProcessRequest(ctx context.Context, req *model.PlanRequest) *model.GenerationResult {
	start := time.Now()
	p.totalRequests.Add(1)
	p.countOperation(req.MenuOption)

	sessionID, err := session.MintSessionID()
	if err != nil {
		// crypto/randの失敗はプロセス環境の異常
		p.logger.Error("failed to mint session id", slog.String("error", err.Error()))
		return p.failure("", model.ErrCodeInternal, "No se pudo iniciar la sesión.", start)
	}

	p.publish(sessionID, notify.StageComposing, "Componiendo el contexto del plan")

	promptText, err := p.composer.Compose(*req)
	if err != nil {
		return p.failureFromError(sessionID, err, start)
	}

	p.publish(sessionID, notify.StageGenerating, "Generando el plan personalizado")

	result, err := p.generate(ctx, sessionID, promptText)
	if err != nil {
		return p.failureFromError(sessionID, err, start)
	}

	p.publish(sessionID, notify.StageParsing, "Estructurando el plan")

	parsed := p.parser.Parse(result.Text, req.OutputFormat)
	if parsed.Degraded {
		p.logger.Warn("generated text had no recognizable sections, using fallback",
			slog.String("session_id", sessionID),
			slog.String("output_format", string(req.OutputFormat)),
		)
	}

	now := time.Now()
	sess := &model.PlanSession{
		SessionID:         sessionID,
		Request:           *req,
		GeneratedSections: parsed.Sections,
		Title:             parsed.Title,
		DemoMode:          result.DemoMode,
		CreatedAt:         now,
		LastAccessedAt:    now,
		GenerationCount:   1,
	}
	p.store.Put(sess)

	p.publish(sessionID, notify.StageCompleted, "Plan generado")

	elapsed := time.Since(start)
	p.recordLatency(elapsed)
	p.logger.Info("plan generated",
		slog.String("session_id", sessionID),
		slog.String("menu_option", string(req.MenuOption)),
		slog.String("output_format", string(req.OutputFormat)),
		slog.Bool("demo_mode", result.DemoMode),
		slog.Int("sections", len(parsed.Sections)),
		slog.Duration("elapsed", elapsed),
	)

	return p.success(sess, elapsed)
}

// RegenerateOptions は再生成時に上書き可能な項目。ゼロ値の項目は元の値を維持する。
type RegenerateOptions struct {
	AdditionalContext string
	OutputFormat      model.OutputFormat
	PriorityND        model.Neurodiversity
}

// Regenerate は既存セッションのプランを追加コンテキスト付きで再生成する。
// 同一セッションへの並行再生成は直列化せず、最後の書き込みが残る。
func (p *Processor) Regenerate(ctx context.Context, sessionID string, opts RegenerateOptions) *model.GenerationResult {
	start := time.Now()
	p.totalRequests.Add(1)

	sess := p.lookup(sessionID)
	if sess == nil {
		return p.failureFromError(sessionID, model.NewSessionNotFoundError(sessionID), start)
	}

	req := sess.Request
	req.AdditionalContext = opts.AdditionalContext
	if opts.OutputFormat != "" {
		req.OutputFormat = opts.OutputFormat
	}
	if opts.PriorityND != "" {
		req.PriorityND = opts.PriorityND
	}
	p.countOperation(req.MenuOption)

	p.publish(sessionID, notify.StageComposing, "Componiendo el contexto de regeneración")

	promptText, err := p.composer.ComposeRegeneration(req, sess.GeneratedSections)
	if err != nil {
		return p.failureFromError(sessionID, err, start)
	}

	p.publish(sessionID, notify.StageGenerating, "Regenerando el plan")

	result, err := p.generate(ctx, sessionID, promptText)
	if err != nil {
		return p.failureFromError(sessionID, err, start)
	}

	p.publish(sessionID, notify.StageParsing, "Estructurando el plan")

	parsed := p.parser.Parse(result.Text, req.OutputFormat)

	now := time.Now()
	updated := &model.PlanSession{
		SessionID:         sessionID,
		Request:           req,
		GeneratedSections: parsed.Sections,
		Title:             parsed.Title,
		DemoMode:          result.DemoMode,
		CreatedAt:         sess.CreatedAt,
		LastAccessedAt:    now,
		GenerationCount:   sess.GenerationCount + 1,
	}
	p.store.Put(updated)

	p.publish(sessionID, notify.StageCompleted, "Plan regenerado")

	elapsed := time.Since(start)
	p.recordLatency(elapsed)
	p.logger.Info("plan regenerated",
		slog.String("session_id", sessionID),
		slog.Int("generation_count", updated.GenerationCount),
		slog.Bool("demo_mode", result.DemoMode),
		slog.Duration("elapsed", elapsed),
	)

	return p.success(updated, elapsed)
}

// GetSession は形式検証とルックアップを行い、アクセス時刻を更新する。
func (p *Processor) GetSession(sessionID string) (*model.PlanSession, error) {
	sess := p.lookup(sessionID)
	if sess == nil {
		return nil, model.NewSessionNotFoundError(sessionID)
	}
	p.store.Touch(sessionID)
	return sess, nil
}

// RecordFeedback はセッションへのフィードバックを記録する。
// 対象セッションが存在しない、または失効している場合は受け付けない。
func (p *Processor) RecordFeedback(fb model.Feedback) error {
	if fb.Rating < 1 || fb.Rating > 5 {
		return model.NewInvalidRatingError(fb.Rating)
	}
	sess := p.lookup(fb.SessionID)
	if sess == nil {
		return model.NewSessionNotFoundError(fb.SessionID)
	}

	fb.UserType = sess.Request.UserType
	fb.OutputFormat = sess.Request.OutputFormat
	fb.CreatedAt = time.Now()

	p.mu.Lock()
	p.feedback = append(p.feedback, fb)
	if len(p.feedback) > maxFeedbackEntries {
		p.feedback = p.feedback[len(p.feedback)-maxFeedbackEntries:]
	}
	p.mu.Unlock()

	p.logger.Info("feedback recorded",
		slog.String("session_id", fb.SessionID),
		slog.Int("rating", fb.Rating),
	)
	return nil
}

// FeedbackSummary はフィードバックの集計結果。
type FeedbackSummary struct {
	Count         int            `json:"count"`
	AverageRating float64        `json:"averageRating"`
	ByRating      map[int]int    `json:"byRating"`
	ByFormat      map[string]int `json:"byFormat"`
}

// SummarizeFeedback は管理画面向けにフィードバックを集計する。
func (p *Processor) SummarizeFeedback() FeedbackSummary {
	p.mu.Lock()
	defer p.mu.Unlock()

	summary := FeedbackSummary{
		ByRating: make(map[int]int),
		ByFormat: make(map[string]int),
	}
	if len(p.feedback) == 0 {
		return summary
	}

	total := 0
	for _, fb := range p.feedback {
		total += fb.Rating
		summary.ByRating[fb.Rating]++
		if fb.OutputFormat != "" {
			summary.ByFormat[string(fb.OutputFormat)]++
		}
	}
	summary.Count = len(p.feedback)
	summary.AverageRating = float64(total) / float64(len(p.feedback))
	return summary
}

// Stats は処理統計のスナップショット。
// TotalSessionsは掃除前の期限切れレコードを含む物理件数、
// ActiveSessionsはアクティビティ期間内に作成されたセッション数。
type Stats struct {
	TotalRequests     int64            `json:"totalRequests"`
	TotalSessions     int              `json:"totalSessions"`
	ActiveSessions    int              `json:"activeSessions"`
	OperationCounts   map[string]int64 `json:"operationCounts"`
	AverageLatencyMs  int64            `json:"averageResponseTimeMs"`
	ErrorRate         float64          `json:"errorRate"`
	GenerationEnabled bool             `json:"generationEnabled"`
}

// Snapshot は現在の処理統計を返す。
func (p *Processor) Snapshot() Stats {
	total := p.totalRequests.Load()
	completed := p.completedCount.Load()

	var avgLatency int64
	if completed > 0 {
		avgLatency = p.totalLatencyMs.Load() / completed
	}
	var errorRate float64
	if total > 0 {
		errorRate = float64(p.totalErrors.Load()) / float64(total)
	}

	counts := make(map[string]int64)
	p.mu.Lock()
	for op, n := range p.operationCounts {
		counts[string(op)] = n
	}
	p.mu.Unlock()

	return Stats{
		TotalRequests:     total,
		TotalSessions:     p.store.Size(),
		ActiveSessions:    len(p.store.List(session.ListFilter{ActiveWithin: p.activityWindow})),
		OperationCounts:   counts,
		AverageLatencyMs:  avgLatency,
		ErrorRate:         errorRate,
		GenerationEnabled: p.generator.Enabled(),
	}
}

// generate は生成クライアントを呼び、サービス停止系の失敗時はデモ応答に縮退する。
// 認証エラーとレート制限は縮退せず呼び出し元に返す。
func (p *Processor) generate(ctx context.Context, sessionID, promptText string) (gemini.Result, error) {
	result, err := p.generator.Generate(ctx, promptText)
	if err == nil {
		return result, nil
	}

	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case model.ErrCodeGenerationUnavailable, model.ErrCodeGenerationTimeout:
			p.logger.Warn("generation failed, falling back to demo response",
				slog.String("session_id", sessionID),
				slog.String("code", apiErr.Code),
			)
			return gemini.Result{Text: p.generator.DemoResponse(promptText), DemoMode: true}, nil
		}
	}
	return gemini.Result{}, err
}

// lookup はID形式検証付きのセッション取得。不正形式はルックアップせずnilを返す。
func (p *Processor) lookup(sessionID string) *model.PlanSession {
	if !model.ValidSessionID(sessionID) {
		return nil
	}
	return p.store.Get(sessionID)
}

func (p *Processor) publish(sessionID string, stage notify.Stage, message string) {
	if p.notifier != nil {
		p.notifier.Publish(sessionID, stage, message)
	}
}

func (p *Processor) countOperation(op model.MenuOption) {
	p.mu.Lock()
	p.operationCounts[op]++
	p.mu.Unlock()
}

func (p *Processor) recordLatency(elapsed time.Duration) {
	p.completedCount.Add(1)
	p.totalLatencyMs.Add(elapsed.Milliseconds())
}

func (p *Processor) success(sess *model.PlanSession, elapsed time.Duration) *model.GenerationResult {
	return &model.GenerationResult{
		Success:   true,
		SessionID: sess.SessionID,
		Data: &model.GenerationData{
			Title:    sess.Title,
			Sections: sess.GeneratedSections,
		},
		Metadata: &model.ResultMetadata{
			GeneratedAt:      time.Now(),
			ProcessingTimeMs: elapsed.Milliseconds(),
			DemoMode:         sess.DemoMode,
			OutputFormat:     string(sess.Request.OutputFormat),
		},
	}
}

// failureFromError はエラー値を失敗エンベロープへ変換し、失敗イベントを配信する。
func (p *Processor) failureFromError(sessionID string, err error, start time.Time) *model.GenerationResult {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		// 合成失敗はサーバー側の不整合。内部メッセージは呼び出し元に漏らさない。
		if apiErr.Code == model.ErrCodeCompositionError {
			p.logger.Error("prompt composition failed",
				slog.String("session_id", sessionID),
				slog.String("error", apiErr.Message),
			)
			return p.failure(sessionID, model.ErrCodeInternal, "Ocurrió un error inesperado.", start)
		}
		p.logger.Error("plan generation failed",
			slog.String("session_id", sessionID),
			slog.String("code", apiErr.Code),
			slog.String("error", apiErr.Message),
		)
		return p.failure(sessionID, apiErr.Code, apiErr.Message, start)
	}

	p.logger.Error("plan generation failed",
		slog.String("session_id", sessionID),
		slog.String("error", err.Error()),
	)
	return p.failure(sessionID, model.ErrCodeInternal, "Ocurrió un error inesperado.", start)
}

func (p *Processor) failure(sessionID, code, message string, start time.Time) *model.GenerationResult {
	p.totalErrors.Add(1)
	p.publish(sessionID, notify.StageFailed, message)
	return &model.GenerationResult{
		Success:   false,
		SessionID: sessionID,
		Error:     message,
		Code:      code,
		Metadata: &model.ResultMetadata{
			GeneratedAt:      time.Now(),
			ProcessingTimeMs: time.Since(start).Milliseconds(),
		},
	}
}
