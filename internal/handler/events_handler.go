package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/ndassist/internal/middleware"
	"github.com/hitoshi/ndassist/internal/model"
	"github.com/hitoshi/ndassist/internal/notify"
)

// EventSubscriber はセッション別イベント購読のインターフェース。
// notify.Hubの部分集合として定義する。
type EventSubscriber interface {
	Subscribe(sessionID string) (<-chan notify.Event, func())
}

// EventsHandler は処理状況通知をServer-Sent Eventsで配信するHTTPハンドラー。
type EventsHandler struct {
	hub EventSubscriber
}

// NewEventsHandler はEventsHandlerを生成する。
func NewEventsHandler(hub EventSubscriber) *EventsHandler {
	return &EventsHandler{hub: hub}
}

// Stream はセッションの状況通知をSSEストリームとして配信する。
// クライアント切断かサーバー停止まで接続を維持する。
// GET /api/events/{sessionId}
func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionId")
	if !model.ValidSessionID(sessionID) {
		handleServiceError(w, model.NewSessionNotFoundError(sessionID))
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		middleware.WriteErrorResponse(w, http.StatusInternalServerError, &model.APIError{
			Code:     "STREAMING_UNSUPPORTED",
			Message:  "El servidor no soporta streaming en esta conexión.",
			Category: "system",
			Action:   "Consulte el estado de la sesión por la API normal.",
		})
		return
	}

	events, cancel := h.hub.Subscribe(sessionID)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case event, open := <-events:
			if !open {
				return
			}
			payload, err := json.Marshal(event)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()

			// 終端ステージ到達後はストリームを閉じる
			if event.Stage == notify.StageCompleted || event.Stage == notify.StageFailed {
				return
			}
		}
	}
}
