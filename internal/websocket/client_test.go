package websocket

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestQueuePongIgnoresFullSendBuffer(t *testing.T) {
	c := &Client{
		send: make(chan []byte, 2),
		pong: make(chan struct{}, 1),
	}

	// Забиваем send до отказа: отстающий клиент с непрочитанными
	// событиями всё равно должен получать keepalive
	c.send <- []byte("event1")
	c.send <- []byte("event2")

	c.queuePong()
	if len(c.pong) != 1 {
		t.Fatalf("pending pongs = %d, want 1", len(c.pong))
	}

	// Повторные ping схлопываются в один pong
	c.queuePong()
	c.queuePong()
	if len(c.pong) != 1 {
		t.Errorf("pending pongs after repeated pings = %d, want 1", len(c.pong))
	}
}

func TestServeWSJSONPingPong(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Stop()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ServeWS(hub, 10, nil, w, r)
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`)); err != nil {
		t.Fatalf("WriteMessage() error = %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage() error = %v", err)
	}
	if !bytes.Contains(msg, []byte(`"pong"`)) {
		t.Errorf("reply = %s, want pong frame", msg)
	}
}
