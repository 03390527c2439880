// Package user はユーザー管理のドメインロジックを提供する。
// 全ユーザーデータはプロセスメモリ上にのみ保持され、再起動で失われる。
package user

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/ndassist/internal/model"
)

// maxActivityEntries はユーザーごとに保持する操作履歴の上限。
const maxActivityEntries = 100

// Store はインメモリのユーザーストア。
type Store struct {
	mu         sync.RWMutex
	byID       map[string]*model.User
	byGoogleID map[string]string // googleID -> userID
	activity   map[string][]model.UserActivity
	logger     *slog.Logger
}

// NewStore はStoreを生成する。
func NewStore(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		byID:       make(map[string]*model.User),
		byGoogleID: make(map[string]string),
		activity:   make(map[string][]model.UserActivity),
		logger:     logger,
	}
}

// Profile はOAuthプロバイダーから得たプロフィール情報。
type Profile struct {
	GoogleID      string
	Email         string
	Name          string
	Picture       string
	EmailVerified bool
	Locale        string
}

// Upsert はGoogleIDでユーザーを検索し、存在すればログイン情報を更新、
// 存在しなければ新規作成する。初回ユーザーのロールは"user"となる。
func (s *Store) Upsert(profile Profile) *model.User {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if id, ok := s.byGoogleID[profile.GoogleID]; ok {
		existing := s.byID[id]
		existing.Email = profile.Email
		existing.Name = profile.Name
		existing.Picture = profile.Picture
		existing.EmailVerified = profile.EmailVerified
		existing.Locale = profile.Locale
		existing.LoginCount++
		existing.LastLoginAt = now
		existing.UpdatedAt = now
		copied := *existing
		return &copied
	}

	created := &model.User{
		ID:            uuid.New().String(),
		GoogleID:      profile.GoogleID,
		Email:         profile.Email,
		Name:          profile.Name,
		Picture:       profile.Picture,
		Role:          "user",
		EmailVerified: profile.EmailVerified,
		Locale:        profile.Locale,
		IsActive:      true,
		LoginCount:    1,
		LastLoginAt:   now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	s.byID[created.ID] = created
	s.byGoogleID[profile.GoogleID] = created.ID

	s.logger.Info("new user created",
		slog.String("user_id", created.ID),
		slog.String("email", created.Email),
	)
	copied := *created
	return &copied
}

// FindByID はユーザーIDでユーザーを検索する。見つからない場合はnilを返す。
func (s *Store) FindByID(id string) *model.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.byID[id]
	if !ok {
		return nil
	}
	copied := *u
	return &copied
}

// UpdateProfile はユーザーの役割設定（userType, customRole）を更新する。
func (s *Store) UpdateProfile(id string, userType model.UserType, customRole string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.byID[id]
	if !ok {
		return nil, model.NewUserNotFoundError()
	}
	u.UserType = userType
	u.CustomRole = customRole
	u.UpdatedAt = time.Now()
	copied := *u
	return &copied, nil
}

// SetRole はユーザーのロールを変更する。管理者操作専用。
func (s *Store) SetRole(id, role string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.byID[id]
	if !ok {
		return nil, model.NewUserNotFoundError()
	}
	u.Role = role
	u.UpdatedAt = time.Now()
	copied := *u
	return &copied, nil
}

// Deactivate はユーザーを無効化する。レコードは削除せず残す。
func (s *Store) Deactivate(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.byID[id]
	if !ok {
		return model.NewUserNotFoundError()
	}
	u.IsActive = false
	u.UpdatedAt = time.Now()

	s.logger.Info("user deactivated", slog.String("user_id", id))
	return nil
}

// List は全ユーザーを作成日時の昇順で返す。
func (s *Store) List() []*model.User {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]*model.User, 0, len(s.byID))
	for _, u := range s.byID {
		copied := *u
		users = append(users, &copied)
	}
	sort.Slice(users, func(i, j int) bool {
		return users[i].CreatedAt.Before(users[j].CreatedAt)
	})
	return users
}

// Count は登録ユーザー数を返す。
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

// RecordActivity はユーザーの操作履歴を記録する。
// ユーザーごとの履歴は上限を超えた分から古い順に捨てられる。
func (s *Store) RecordActivity(userID, action string, details map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[userID]; !ok {
		return
	}
	entries := append(s.activity[userID], model.UserActivity{
		UserID:    userID,
		Action:    action,
		Details:   details,
		CreatedAt: time.Now(),
	})
	if len(entries) > maxActivityEntries {
		entries = entries[len(entries)-maxActivityEntries:]
	}
	s.activity[userID] = entries
}

// ActivityFor はユーザーの操作履歴を古い順で返す。
func (s *Store) ActivityFor(userID string) []model.UserActivity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := s.activity[userID]
	copied := make([]model.UserActivity, len(entries))
	copy(copied, entries)
	return copied
}
