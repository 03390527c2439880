// Package auth はGoogle OAuthによる認証フローとJWTの発行・検証を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/ndassist/internal/model"
	"github.com/hitoshi/ndassist/internal/user"
)

// stateLifetime はOAuth stateトークンの有効期間。
const stateLifetime = 10 * time.Minute

// OAuthUserInfo はOAuthプロバイダーから取得したユーザー情報を表す。
type OAuthUserInfo struct {
	GoogleID      string
	Email         string
	EmailVerified bool
	Name          string
	Picture       string
	Locale        string
}

// OAuthProvider はOAuth認証プロバイダーのインターフェース。
type OAuthProvider interface {
	// Enabled はクレデンシャルが設定されているかどうかを返す。
	Enabled() bool
	// GetLoginURL はOAuth認証URLを生成する。
	GetLoginURL(state string) string
	// ExchangeCode は認可コードをトークンに交換し、ユーザー情報を取得する。
	ExchangeCode(ctx context.Context, code string) (*OAuthUserInfo, error)
}

// LoginResult はコールバック処理の結果。
type LoginResult struct {
	Token string
	User  *model.User
}

// Service は認証に関するビジネスロジックを提供する。
// CSRF防止のためのstateトークンをプロセスメモリ上で管理する。
type Service struct {
	oauth  OAuthProvider
	users  *user.Store
	issuer *TokenIssuer
	logger *slog.Logger

	mu     sync.Mutex
	states map[string]time.Time // state -> 発行時刻
}

// NewService はServiceを生成する。
func NewService(oauth OAuthProvider, users *user.Store, issuer *TokenIssuer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		oauth:  oauth,
		users:  users,
		issuer: issuer,
		logger: logger,
		states: make(map[string]time.Time),
	}
}

// Enabled はOAuthログインが利用可能かどうかを返す。
func (s *Service) Enabled() bool {
	return s.oauth.Enabled()
}

// BeginLogin はstateトークンを発行し、OAuth認証URLを返す。
func (s *Service) BeginLogin() (string, error) {
	state, err := mintState()
	if err != nil {
		return "", fmt.Errorf("failed to mint state: %w", err)
	}

	s.mu.Lock()
	s.states[state] = time.Now()
	// 期限切れstateの掃除も兼ねる
	for st, issued := range s.states {
		if time.Since(issued) > stateLifetime {
			delete(s.states, st)
		}
	}
	s.mu.Unlock()

	return s.oauth.GetLoginURL(state), nil
}

// HandleCallback はOAuthコールバックを処理し、JWTを発行する。
// stateは1回限り有効で、検証後は破棄される。
// 未登録ユーザーは初回ログイン時に自動作成される。
func (s *Service) HandleCallback(ctx context.Context, code, state string) (*LoginResult, error) {
	if !s.consumeState(state) {
		return nil, fmt.Errorf("invalid or expired oauth state")
	}

	info, err := s.oauth.ExchangeCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange oauth code: %w", err)
	}

	u := s.users.Upsert(user.Profile{
		GoogleID:      info.GoogleID,
		Email:         info.Email,
		Name:          info.Name,
		Picture:       info.Picture,
		EmailVerified: info.EmailVerified,
		Locale:        info.Locale,
	})
	if !u.IsActive {
		return nil, fmt.Errorf("user account is deactivated")
	}

	token, err := s.issuer.Issue(u)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}

	s.users.RecordActivity(u.ID, "login", map[string]any{"loginCount": u.LoginCount})
	s.logger.Info("user logged in",
		slog.String("user_id", u.ID),
		slog.Int("login_count", u.LoginCount),
	)

	return &LoginResult{Token: token, User: u}, nil
}

// CurrentUser はトークンを検証し、対応するユーザーを返す。
func (s *Service) CurrentUser(tokenString string) (*model.User, error) {
	claims, err := s.issuer.Verify(tokenString)
	if err != nil {
		return nil, err
	}

	u := s.users.FindByID(claims.Subject)
	if u == nil {
		return nil, model.NewUserNotFoundError()
	}
	if !u.IsActive {
		return nil, fmt.Errorf("user account is deactivated")
	}
	return u, nil
}

// consumeState はstateを検証し、有効だった場合は破棄する。
func (s *Service) consumeState(state string) bool {
	if state == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	issued, ok := s.states[state]
	if !ok {
		return false
	}
	delete(s.states, state)
	return time.Since(issued) <= stateLifetime
}

// mintState は暗号的に安全なstateトークンを生成する。
func mintState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
