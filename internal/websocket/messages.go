package websocket

// MessageType определяет тип WebSocket сообщения
type MessageType string

// Типы WebSocket сообщений
const (
	// MessageTypeAccountUpdate - обновление состояния счёта.
	// Публикуется нотификатором после синхронизации с изменениями.
	MessageTypeAccountUpdate MessageType = "account_update"

	// MessageTypePing - keepalive-запрос от клиента
	MessageTypePing MessageType = "ping"

	// MessageTypePong - ответ сервера на ping
	MessageTypePong MessageType = "pong"
)

// ControlMessage - служебное сообщение клиента (ping и подобные).
type ControlMessage struct {
	Type MessageType `json:"type"`
}

// pongFrame - готовый ответ на ping, чтобы не сериализовать его
// на каждый keepalive.
var pongFrame = []byte(`{"type":"pong"}`)
