package websocket

import (
	"bytes"
	"sync"
	"sync/atomic"

	jsoniter "github.com/json-iterator/go"

	"mt5bridge/pkg/utils"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ============ ОПТИМИЗАЦИЯ: sync.Pool для JSON буферов ============

var jsonBufferPool = sync.Pool{
	New: func() interface{} {
		return bytes.NewBuffer(make([]byte, 0, 512))
	},
}

// userMessage - сообщение, адресованное всем клиентам пользователя.
type userMessage struct {
	userID int
	data   []byte
}

// Hub управляет всеми активными WebSocket соединениями
//
// Клиенты группируются по владельцу: события счёта уходят только в
// соединения его пользователя. Доставка fire-and-forget: медленный
// клиент отключается, а не тормозит рассылку.
//
// Использование:
// 1. Создать hub: hub := NewHub()
// 2. Запустить в горутине: go hub.Run()
// 3. Отправлять события: hub.PublishToUser(userID, data)
type Hub struct {
	// Зарегистрированные клиенты
	clients map[*Client]bool

	// Клиенты, сгруппированные по пользователю
	byUser map[int]map[*Client]bool

	// Канал адресных сообщений
	publish chan userMessage

	// Регистрация нового клиента
	register chan *Client

	// Отмена регистрации клиента
	unregister chan *Client

	// Остановка цикла Run
	stop chan struct{}

	// Счётчик сообщений, отброшенных из-за переполнения канала
	dropped atomic.Int64

	// Mutex для потокобезопасного доступа к clients/byUser
	mu sync.RWMutex
}

// NewHub создает новый Hub
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		byUser:     make(map[int]map[*Client]bool),
		publish:    make(chan userMessage, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		stop:       make(chan struct{}),
	}
}

// Run запускает главный цикл Hub
//
// Должен запускаться в отдельной горутине: go hub.Run()
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			if h.byUser[client.userID] == nil {
				h.byUser[client.userID] = make(map[*Client]bool)
			}
			h.byUser[client.userID][client] = true
			total := len(h.clients)
			h.mu.Unlock()
			ConnectedClients.Set(float64(total))
			utils.Debug("Клиент подключен", utils.UserID(client.userID), utils.Int("total", total))

		case client := <-h.unregister:
			h.mu.Lock()
			h.drop(client)
			total := len(h.clients)
			h.mu.Unlock()
			ConnectedClients.Set(float64(total))
			utils.Debug("Клиент отключен", utils.UserID(client.userID), utils.Int("total", total))

		case msg := <-h.publish:
			// Копируем список адресатов под коротким RLock
			h.mu.RLock()
			targets := make([]*Client, 0, len(h.byUser[msg.userID]))
			for client := range h.byUser[msg.userID] {
				targets = append(targets, client)
			}
			h.mu.RUnlock()

			// Отправляем без блокировки hub
			var toRemove []*Client
			for _, client := range targets {
				select {
				case client.send <- msg.data:
				default:
					// Клиент не успевает читать - отключаем его,
					// остальные клиенты пользователя не страдают
					toRemove = append(toRemove, client)
				}
			}

			if len(toRemove) > 0 {
				h.mu.Lock()
				for _, client := range toRemove {
					h.drop(client)
				}
				total := len(h.clients)
				h.mu.Unlock()
				ConnectedClients.Set(float64(total))
				utils.Warn("Отключены медленные клиенты",
					utils.Int("removed", len(toRemove)), utils.Int("total", total))
			}

		case <-h.stop:
			return
		}
	}
}

// drop удаляет клиента из обеих карт. Вызывается под Write Lock.
func (h *Hub) drop(client *Client) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	close(client.send)

	if userClients, ok := h.byUser[client.userID]; ok {
		delete(userClients, client)
		if len(userClients) == 0 {
			delete(h.byUser, client.userID)
		}
	}
}

// Stop останавливает цикл Run.
func (h *Hub) Stop() {
	close(h.stop)
}

// PublishToUser отправляет сериализованное событие всем клиентам
// пользователя. Не блокируется: при переполнении канала событие
// отбрасывается, следующая синхронизация принесёт свежее состояние.
func (h *Hub) PublishToUser(userID int, message []byte) {
	select {
	case h.publish <- userMessage{userID: userID, data: message}:
	default:
		h.dropped.Add(1)
		DroppedMessagesTotal.Inc()
	}
}

// Publish сериализует событие и отправляет его клиентам пользователя.
// Использует sync.Pool для буферов (убирает аллокации).
func (h *Hub) Publish(userID int, message interface{}) {
	buf := jsonBufferPool.Get().(*bytes.Buffer)
	buf.Reset()

	if err := json.NewEncoder(buf).Encode(message); err != nil {
		utils.Error("Не удалось сериализовать событие", utils.Err(err))
		jsonBufferPool.Put(buf)
		return
	}

	// Убираем trailing newline от Encode
	data := buf.Bytes()
	if len(data) > 0 && data[len(data)-1] == '\n' {
		data = data[:len(data)-1]
	}

	// Копируем данные (буфер вернётся в пул)
	msgCopy := make([]byte, len(data))
	copy(msgCopy, data)
	jsonBufferPool.Put(buf)

	h.PublishToUser(userID, msgCopy)
}

// DroppedMessages возвращает число отброшенных сообщений.
func (h *Hub) DroppedMessages() int64 {
	return h.dropped.Load()
}

// ClientCount возвращает количество подключенных клиентов
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// UserClientCount возвращает количество клиентов пользователя.
func (h *Hub) UserClientCount(userID int) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byUser[userID])
}
