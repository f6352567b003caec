package handlers

import (
	"net/http"

	"mt5bridge/internal/notifier"
	"mt5bridge/internal/store"
	"mt5bridge/internal/websocket"
	"mt5bridge/pkg/utils"
)

// StreamHandler открывает WebSocket поток обновлений счетов
//
// Endpoints:
// - GET /ws/stream - подписка на обновления счетов пользователя
type StreamHandler struct {
	hub    *websocket.Hub
	st     *store.Store
	notify *notifier.Notifier
	log    *utils.Logger
}

// NewStreamHandler создает новый StreamHandler с внедрением зависимостей
func NewStreamHandler(hub *websocket.Hub, st *store.Store, notify *notifier.Notifier, log *utils.Logger) *StreamHandler {
	return &StreamHandler{
		hub:    hub,
		st:     st,
		notify: notify,
		log:    log.WithComponent("stream_handler"),
	}
}

// Stream подключает клиента к потоку обновлений его счетов
// GET /ws/stream?user_id=10
//
// Сразу после подключения клиент получает текущее состояние всех
// своих счетов, дальше приходят только изменения.
func (h *StreamHandler) Stream(w http.ResponseWriter, r *http.Request) {
	userID, err := requestUserID(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "missing_user", "User is not specified", "")
		return
	}

	// Начальное состояние счетов, уходит до любых diff-событий
	sessions := h.st.ListByUser(userID)
	initial := make([][]byte, 0, len(sessions))
	for _, sess := range sessions {
		frame, err := h.notify.Event(sess)
		if err != nil {
			h.log.Warn("Не удалось сериализовать состояние счёта",
				utils.AccountID(sess.Account.ID), utils.Err(err))
			continue
		}
		initial = append(initial, frame)
	}

	websocket.ServeWS(h.hub, userID, initial, w, r)
}
