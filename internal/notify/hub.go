// Package notify はセッション単位の処理状況イベントを購読者へ配信する。
// 配信はベストエフォートで、購読者がいない・バッファが満杯の場合は黙って捨てる。
// イベント配信の失敗が生成処理を阻害することはない。
package notify

import (
	"sync"
	"time"
)

// Stage は処理パイプラインの節目を表す。
type Stage string

const (
	StageValidating Stage = "validating"
	StageComposing  Stage = "composing"
	StageGenerating Stage = "generating"
	StageParsing    Stage = "parsing"
	StageCompleted  Stage = "completed"
	StageFailed     Stage = "failed"
)

// Event は1つの処理状況通知。
type Event struct {
	SessionID string    `json:"sessionId"`
	Stage     Stage     `json:"stage"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// subscriberBuffer は購読者チャネルのバッファ長。
// 受信が追いつかない購読者へのイベントは最大1回配信の方針で破棄する。
const subscriberBuffer = 16

// Hub はセッションIDごとの購読者を管理するインプロセス配信器。
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[chan Event]struct{}
}

// NewHub はHubを生成する。
func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[chan Event]struct{})}
}

// Subscribe はセッションのイベントチャネルと購読解除関数を返す。
// 購読解除後のチャネルはクローズされる。
func (h *Hub) Subscribe(sessionID string) (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	h.mu.Lock()
	if h.subs[sessionID] == nil {
		h.subs[sessionID] = make(map[chan Event]struct{})
	}
	h.subs[sessionID][ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			if set, ok := h.subs[sessionID]; ok {
				delete(set, ch)
				if len(set) == 0 {
					delete(h.subs, sessionID)
				}
			}
			h.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Publish はセッションの全購読者へイベントを配信する。
// ブロックせず、受信できない購読者分は破棄する。
func (h *Hub) Publish(sessionID string, stage Stage, message string) {
	event := Event{
		SessionID: sessionID,
		Stage:     stage,
		Message:   message,
		Timestamp: time.Now(),
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs[sessionID] {
		select {
		case ch <- event:
		default:
		}
	}
}

// SubscriberCount はセッションの現在の購読者数を返す。
func (h *Hub) SubscriberCount(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[sessionID])
}
