package http

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/c360/cse/errors"
)

// Subscriber is the transport the feed listens on for lifecycle events.
type Subscriber interface {
	Subscribe(subject string, handler func(subject string, data []byte)) (func() error, error)
}

// eventSubjectPattern matches every resource lifecycle subject.
const eventSubjectPattern = "cse.resource.>"

const (
	writeWait      = 10 * time.Second
	clientBacklog  = 64
	maxMessageSize = 512
)

// EventFeed bridges the lifecycle event subjects onto websocket clients. A
// client that cannot keep up is disconnected rather than allowed to block the
// broadcast.
type EventFeed struct {
	subscriber  Subscriber
	logger      *slog.Logger
	upgrader    websocket.Upgrader
	unsubscribe func() error

	mu      sync.Mutex
	clients map[*websocket.Conn]chan []byte
}

// NewEventFeed creates the feed.
func NewEventFeed(subscriber Subscriber, logger *slog.Logger) *EventFeed {
	return &EventFeed{
		subscriber: subscriber,
		logger:     logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		clients: map[*websocket.Conn]chan []byte{},
	}
}

// Start subscribes to the lifecycle subjects.
func (f *EventFeed) Start() error {
	unsubscribe, err := f.subscriber.Subscribe(eventSubjectPattern, func(_ string, data []byte) {
		f.broadcast(data)
	})
	if err != nil {
		return errors.WrapTransient(err, "EventFeed", "Start", "event subscription failed")
	}
	f.unsubscribe = unsubscribe
	return nil
}

// Stop unsubscribes and disconnects every client.
func (f *EventFeed) Stop() {
	if f.unsubscribe != nil {
		if err := f.unsubscribe(); err != nil {
			f.logger.Warn("event feed unsubscribe failed", "error", err)
		}
		f.unsubscribe = nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for conn, ch := range f.clients {
		close(ch)
		delete(f.clients, conn)
	}
}

// Handle upgrades one HTTP request to a websocket client.
func (f *EventFeed) Handle(w http.ResponseWriter, r *http.Request) {
	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		f.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	ch := make(chan []byte, clientBacklog)
	f.mu.Lock()
	f.clients[conn] = ch
	f.mu.Unlock()

	go f.writeLoop(conn, ch)
	go f.readLoop(conn)
}

func (f *EventFeed) writeLoop(conn *websocket.Conn, ch chan []byte) {
	defer conn.Close()
	for data := range ch {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			f.drop(conn)
			return
		}
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
}

// readLoop discards inbound frames; the feed is one-way. Its job is to notice
// the client going away.
func (f *EventFeed) readLoop(conn *websocket.Conn) {
	conn.SetReadLimit(maxMessageSize)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			f.drop(conn)
			return
		}
	}
}

func (f *EventFeed) broadcast(data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for conn, ch := range f.clients {
		select {
		case ch <- data:
		default:
			// Slow client: disconnect instead of blocking the broadcast.
			close(ch)
			delete(f.clients, conn)
		}
	}
}

func (f *EventFeed) drop(conn *websocket.Conn) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ch, ok := f.clients[conn]; ok {
		close(ch)
		delete(f.clients, conn)
	}
}
