package gemini

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hitoshi/ndassist/internal/model"
)

const (
	// initialBackoff はリトライ間の初回遅延。
	initialBackoff = 500 * time.Millisecond
	// maxBackoff はリトライ間の最大遅延。
	maxBackoff = 8 * time.Second
)

// RetryConfig は有界リトライ実行の設定。
type RetryConfig struct {
	MaxAttempts       int           // 総試行回数の上限（初回を含む）
	PerAttemptTimeout time.Duration // 1試行あたりのハードタイムアウト
}

// operation は1回の試行を表す。渡されるコンテキストは試行ごとのタイムアウトを持つ。
type operation func(ctx context.Context) (string, error)

// retryable はエラーが一時的（リトライ対象）かどうかを判定する。
type retryable func(err error) bool

// doWithRetry はoperationを最大MaxAttempts回まで実行する汎用リトライ実行器。
// 各試行にはPerAttemptTimeoutのハードタイムアウトを適用し、
// 一時的エラーのみ指数バックオフを挟んで再試行する。
// 致命的エラー（認証・不正リクエスト）は即座に返す。
// 全試行が枯渇した場合はGENERATION_UNAVAILABLEを返す。
func doWithRetry(ctx context.Context, cfg RetryConfig, op operation, isRetryable retryable, logger *slog.Logger) (string, error) {
	var lastErr error

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, cfg.PerAttemptTimeout)
		text, err := op(attemptCtx)
		cancel()

		if err == nil {
			return text, nil
		}

		// 試行タイムアウトはGenerationTimeoutに正規化する
		if errors.Is(err, context.DeadlineExceeded) {
			err = model.NewGenerationTimeoutError()
		}
		lastErr = err

		if !isRetryable(err) {
			return "", err
		}

		// 呼び出し元のコンテキストが終了している場合はこれ以上試行しない
		if ctx.Err() != nil {
			return "", lastErr
		}

		if attempt < cfg.MaxAttempts {
			delay := calculateBackoff(attempt)
			logger.Warn("generation attempt failed, retrying",
				slog.Int("attempt", attempt),
				slog.Int("max_attempts", cfg.MaxAttempts),
				slog.Duration("backoff", delay),
				slog.String("error", err.Error()),
			)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return "", lastErr
			}
		}
	}

	logger.Error("generation retries exhausted",
		slog.Int("attempts", cfg.MaxAttempts),
		slog.String("last_error", lastErr.Error()),
	)
	return "", model.NewGenerationUnavailableError(cfg.MaxAttempts)
}

// calculateBackoff は試行回数に基づいて指数バックオフ遅延を計算する。
// 初回500ms、2倍ずつ増加、最大8秒。
func calculateBackoff(attempt int) time.Duration {
	delay := initialBackoff
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay > maxBackoff {
			return maxBackoff
		}
	}
	return delay
}
