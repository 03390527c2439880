// Package session はプラン生成セッションのインメモリストアを提供する。
// 年齢ベースの期限切れ判定、容量上限による最古退避、定期掃除を含む。
// 全セッション状態はプロセスメモリ上にのみ存在し、再起動で失われる。
package session

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/ndassist/internal/model"
)

// StoreConfig はセッションストアの設定。
type StoreConfig struct {
	MaxAge        time.Duration // これを超えたセッションは読み取り時に不在として扱う
	MaxSessions   int           // 容量上限。超過時は作成日時が最古のセッションを退避する
	SweepInterval time.Duration // 定期掃除の間隔
}

// DefaultStoreConfig はデフォルトのストア設定を返す。
// 要件: 最大年齢1時間、容量1000件、掃除間隔1時間。
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		MaxAge:        time.Hour,
		MaxSessions:   1000,
		SweepInterval: time.Hour,
	}
}

// ListFilter はList操作の絞り込み条件。ゼロ値は全件を意味する。
type ListFilter struct {
	ActiveWithin   time.Duration        // 0より大きい場合、この期間内に作成されたセッションのみ
	UserType       model.UserType       // 空でない場合、該当userTypeのセッションのみ
	Neurodiversity model.Neurodiversity // 空でない場合、この特性を含むセッションのみ
}

// Store はセッションIDをキーとするインメモリストア。
// 全操作はミューテックスで保護され、互いにアトミックに実行される。
type Store struct {
	config StoreConfig
	logger *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*model.PlanSession

	stopCh  chan struct{}
	stopped sync.Once
}

// NewStore は新しいStoreを生成する。掃除タイマーはStartを呼ぶまで動かない。
func NewStore(config StoreConfig, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		config:   config,
		logger:   logger,
		sessions: make(map[string]*model.PlanSession),
		stopCh:   make(chan struct{}),
	}
}

// Start は期限切れセッションの定期掃除をバックグラウンドで開始する。
func (s *Store) Start() {
	go s.sweepLoop()
}

// Stop は定期掃除のバックグラウンドゴルーチンを停止する。冪等。
func (s *Store) Stop() {
	s.stopped.Do(func() {
		close(s.stopCh)
	})
}

// Put はセッションを挿入または置換する。
// キーはサーバー側で発行されるため一意性違反は起こり得ない。
// 容量上限を超える場合は作成日時が最古のセッションを先に退避する。
func (s *Store) Put(sess *model.PlanSession) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// 置換の場合は容量が増えないため退避不要
	if _, exists := s.sessions[sess.SessionID]; !exists {
		for s.config.MaxSessions > 0 && len(s.sessions) >= s.config.MaxSessions {
			s.evictOldestLocked()
		}
	}

	s.sessions[sess.SessionID] = sess
}

// Get はセッションを返す。存在しない場合、または最大年齢を超えている場合はnilを返す。
// 期限切れ判定は読み取り時に行う。物理的な削除は次回の掃除に委ねる。
func (s *Store) Get(sessionID string) *model.PlanSession {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil
	}
	if s.expired(sess, time.Now()) {
		return nil
	}
	return sess
}

// Touch はセッションの最終アクセス時刻を更新する。
// 期限切れまたは不在の場合はfalseを返す。
func (s *Store) Touch(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok || s.expired(sess, time.Now()) {
		return false
	}
	sess.LastAccessedAt = time.Now()
	return true
}

// Delete はセッションを明示的に削除する。レコードが存在したかどうかを返す。
func (s *Store) Delete(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.sessions[sessionID]
	if ok {
		delete(s.sessions, sessionID)
	}
	return ok
}

// Sweep は指定年齢を超えた全セッションを削除し、削除件数を返す。
// 定期掃除と管理操作の両方から呼ばれる。
func (s *Store) Sweep(maxAge time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	removed := 0
	for id, sess := range s.sessions {
		if now.Sub(sess.CreatedAt) > maxAge {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// Size は期限切れを含む現在の物理レコード数を返す。
func (s *Store) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// List はフィルタに一致するセッションの一覧を返す。管理用の列挙操作。
// 期限切れレコードは掃除前でも結果から除外される。
func (s *Store) List(filter ListFilter) []*model.PlanSession {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := time.Now()
	var result []*model.PlanSession
	for _, sess := range s.sessions {
		if s.expired(sess, now) {
			continue
		}
		if filter.ActiveWithin > 0 && now.Sub(sess.CreatedAt) > filter.ActiveWithin {
			continue
		}
		if filter.UserType != "" && sess.Request.UserType != filter.UserType {
			continue
		}
		if filter.Neurodiversity != "" && !containsND(sess.Request.Neurodiversities, filter.Neurodiversity) {
			continue
		}
		result = append(result, sess)
	}
	return result
}

// expired はセッションが最大年齢を超えているかどうかを返す。
func (s *Store) expired(sess *model.PlanSession, now time.Time) bool {
	return s.config.MaxAge > 0 && now.Sub(sess.CreatedAt) > s.config.MaxAge
}

// evictOldestLocked は作成日時が最古のセッションを1件退避する。
// 呼び出し側がロックを保持していること。同時刻の場合の順序は不定。
func (s *Store) evictOldestLocked() {
	var oldestID string
	var oldestAt time.Time
	for id, sess := range s.sessions {
		if oldestID == "" || sess.CreatedAt.Before(oldestAt) {
			oldestID = id
			oldestAt = sess.CreatedAt
		}
	}
	if oldestID != "" {
		delete(s.sessions, oldestID)
		s.logger.Warn("session evicted: store at capacity",
			slog.String("session_id", oldestID),
			slog.Int("max_sessions", s.config.MaxSessions),
		)
	}
}

// sweepLoop はバックグラウンドで期限切れセッションを定期的に削除する。
func (s *Store) sweepLoop() {
	ticker := time.NewTicker(s.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			removed := s.Sweep(s.config.MaxAge)
			if removed > 0 {
				s.logger.Info("session sweep completed",
					slog.Int("removed", removed),
					slog.Int("remaining", s.Size()),
				)
			}
		case <-s.stopCh:
			return
		}
	}
}

// containsND はニューロダイバーシティのスライスに指定値が含まれるかどうかを返す。
func containsND(nds []model.Neurodiversity, target model.Neurodiversity) bool {
	for _, nd := range nds {
		if nd == target {
			return true
		}
	}
	return false
}

// MintSessionID は新しいセッションIDを発行する。
// 形式: nd_session_<unixミリ秒>_<ランダム16進トークン>。
// クライアント指定のIDは受け付けず、必ずサーバー側で発行する。
func MintSessionID() (string, error) {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate session token: %w", err)
	}
	return fmt.Sprintf("nd_session_%d_%s", time.Now().UnixMilli(), hex.EncodeToString(b)), nil
}
