package websocket

import (
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"mt5bridge/pkg/utils"
)

const (
	// Время ожидания записи сообщения
	writeWait = 10 * time.Second

	// Время ожидания между pong сообщениями
	pongWait = 60 * time.Second

	// Интервал отправки ping сообщений (должен быть меньше pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Максимальный размер сообщения.
	// Снапшот счёта с десятками позиций легко превышает 512 байт.
	maxMessageSize = 65536

	// Размер буфера отправки клиента
	clientSendBufferSize = 512
)

// OriginChecker проверяет Origin с O(1) lookup через map
// Потокобезопасен для чтения после инициализации
type OriginChecker struct {
	allowedOrigins map[string]struct{}
	allowAll       bool
}

// originChecker - глобальный экземпляр, инициализируется один раз
var originChecker = initOriginChecker()

func initOriginChecker() *OriginChecker {
	checker := &OriginChecker{
		allowedOrigins: make(map[string]struct{}),
	}

	// Читаем из переменной окружения (comma-separated)
	// Пример: ALLOWED_ORIGINS=http://localhost:3000,https://example.com
	envOrigins := os.Getenv("ALLOWED_ORIGINS")

	if envOrigins == "" || envOrigins == "*" {
		// Development mode или явно разрешены все
		checker.allowAll = true
	} else {
		checker.allowAll = false
		origins := strings.Split(envOrigins, ",")
		for _, origin := range origins {
			origin = strings.TrimSpace(origin)
			if origin != "" {
				checker.allowedOrigins[origin] = struct{}{}
			}
		}
	}

	return checker
}

// Check проверяет origin за O(1)
func (oc *OriginChecker) Check(origin string) bool {
	if origin == "" {
		return true // Non-browser clients (curl, API tools)
	}
	if oc.allowAll {
		return true
	}
	_, ok := oc.allowedOrigins[origin]
	return ok
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return originChecker.Check(r.Header.Get("Origin"))
	},
	EnableCompression: true,
}

// clientPool - пул для переиспользования Client структур
var clientPool = sync.Pool{
	New: func() interface{} {
		return &Client{
			send: make(chan []byte, clientSendBufferSize),
			pong: make(chan struct{}, 1),
		}
	},
}

// Client представляет одно WebSocket соединение
//
// Соединение привязано к пользователю: hub доставляет клиенту только
// события его счетов. Каждый клиент обслуживается двумя горутинами:
// readPump читает входящие кадры (в том числе ping), writePump пишет
// исходящие события и протокольные ping.
type Client struct {
	// WebSocket соединение
	conn *websocket.Conn

	// Hub которому принадлежит клиент
	hub *Hub

	// Владелец соединения
	userID int

	// Буферизованный канал исходящих сообщений
	send chan []byte

	// Отдельная полоса для ответа на JSON ping: keepalive не должен
	// зависеть от заполненности send. Ёмкость 1, повторные ping
	// схлопываются в один pong.
	pong chan struct{}
}

// readPump читает сообщения от клиента
//
// Запускается в отдельной горутине для каждого клиента.
// Единственное поддерживаемое входящее сообщение - ping,
// на него уходит pong в том же соединении.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
		c.returnToPool()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				utils.Warn("Ошибка WebSocket", utils.UserID(c.userID), utils.Err(err))
			}
			break
		}

		var ctrl ControlMessage
		if err := json.Unmarshal(message, &ctrl); err != nil {
			continue // прочий мусор игнорируем
		}
		if ctrl.Type == MessageTypePing {
			c.queuePong()
		}
	}
}

// queuePong ставит ответ на JSON ping в очередь writePump.
// Запись в conn идёт только из writePump, а отдельный канал
// гарантирует ответ даже при забитом send.
func (c *Client) queuePong() {
	select {
	case c.pong <- struct{}{}:
	default:
		// Pong уже ждёт отправки, он ответит и на этот ping
	}
}

// writePump отправляет сообщения клиенту
//
// Запускается в отдельной горутине для каждого клиента.
// Читает из канала send и отправляет через WebSocket.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub закрыл канал
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Дописываем накопившиеся сообщения в тот же кадр
		drainLoop:
			for {
				select {
				case msg, ok := <-c.send:
					if !ok {
						break drainLoop
					}
					w.Write([]byte{'\n'})
					w.Write(msg)
				default:
					break drainLoop
				}
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-c.pong:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, pongFrame); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ServeWS обрабатывает WebSocket запрос пользователя
//
// Апгрейдит HTTP соединение до WebSocket, регистрирует клиента в hub
// и запускает его горутины. Кадры initial (текущее состояние счетов
// пользователя) ставятся в очередь до регистрации, поэтому клиент
// получает их раньше любых живых событий.
func ServeWS(hub *Hub, userID int, initial [][]byte, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		utils.Warn("Ошибка апгрейда WebSocket", utils.Err(err))
		return
	}

	client := clientPool.Get().(*Client)
	client.conn = conn
	client.hub = hub
	client.userID = userID
	// Каналы уже созданы в пуле, очищаем остатки прошлой сессии
	for len(client.send) > 0 {
		<-client.send
	}
	select {
	case <-client.pong:
	default:
	}

	// Начальное состояние
	for _, frame := range initial {
		select {
		case client.send <- frame:
		default:
		}
	}

	client.hub.register <- client

	// Запускаем горутины клиента
	go client.writePump()
	go client.readPump()
}

// returnToPool возвращает клиента в пул после отключения
func (c *Client) returnToPool() {
	c.conn = nil
	c.hub = nil
	c.userID = 0
	// Старый канал закрыт hub-ом, для переиспользования нужен новый
	c.send = make(chan []byte, clientSendBufferSize)
	clientPool.Put(c)
}
