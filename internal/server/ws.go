package server

import (
	"errors"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/paddockai/apex/internal/broadcast"
)

var errSubscriberClosed = errors.New("subscriber closed")

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// the REST surface is already origin-gated by CORS; the feed carries
	// the same auth cookie
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsSubscriber adapts one websocket connection to the broadcast registry.
// Writes are serialized; the first failed write marks the subscriber dead so
// the registry prunes it.
type wsSubscriber struct {
	mu   sync.Mutex
	conn *websocket.Conn
	dead bool
}

func newWSSubscriber(conn *websocket.Conn) *wsSubscriber {
	return &wsSubscriber{conn: conn}
}

func (w *wsSubscriber) Send(ev broadcast.Event) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.dead {
		return errSubscriberClosed
	}
	if err := w.conn.WriteJSON(ev); err != nil {
		w.dead = true
		return err
	}
	return nil
}

func (w *wsSubscriber) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.dead = true
	_ = w.conn.Close()
}
