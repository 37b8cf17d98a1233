package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"nhooyr.io/websocket"
)

// EventType names a lifecycle event broadcast over the WebSocket hub.
type EventType string

const (
	EventItemStored         EventType = "item_stored"
	EventItemDropped        EventType = "item_dropped"
	EventRecognitionComplete EventType = "recognition_complete"
	EventEnrichmentComplete EventType = "enrichment_complete"
)

// Event is one broadcast message.
type Event struct {
	Type      EventType              `json:"type"`
	Key       string                 `json:"key,omitempty"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// subscriber allows both real connections and test doubles.
type subscriber interface {
	sendChannel() chan []byte
	close()
}

// EventHub manages WebSocket subscribers and broadcasts pipeline and
// enrichment lifecycle events to them.
type EventHub struct {
	subscribers map[subscriber]bool
	broadcast   chan Event
	register    chan subscriber
	unregister  chan subscriber
	mu          sync.Mutex
	ctx         context.Context
	cancel      context.CancelFunc
}

// NewEventHub creates an event hub. Call Run in a goroutine to start it.
func NewEventHub() *EventHub {
	ctx, cancel := context.WithCancel(context.Background())
	return &EventHub{
		subscribers: make(map[subscriber]bool),
		broadcast:   make(chan Event, 256),
		register:    make(chan subscriber),
		unregister:  make(chan subscriber),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Run processes registrations and broadcasts until Stop is called.
func (h *EventHub) Run() {
	for {
		select {
		case sub := <-h.register:
			h.mu.Lock()
			h.subscribers[sub] = true
			h.mu.Unlock()

		case sub := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.subscribers[sub]; ok {
				delete(h.subscribers, sub)
				close(sub.sendChannel())
			}
			h.mu.Unlock()

		case event := <-h.broadcast:
			data, err := json.Marshal(event)
			if err != nil {
				log.Printf("ERROR: failed to marshal event: %v", err)
				continue
			}
			h.mu.Lock()
			for sub := range h.subscribers {
				select {
				case sub.sendChannel() <- data:
				default:
					// Slow subscriber, disconnect it.
					close(sub.sendChannel())
					delete(h.subscribers, sub)
				}
			}
			h.mu.Unlock()

		case <-h.ctx.Done():
			return
		}
	}
}

// Stop shuts the hub down and disconnects all subscribers.
func (h *EventHub) Stop() {
	h.cancel()

	h.mu.Lock()
	for sub := range h.subscribers {
		close(sub.sendChannel())
		sub.close()
	}
	h.subscribers = make(map[subscriber]bool)
	h.mu.Unlock()
}

// Broadcast queues an event for all subscribers. Events are dropped, never
// blocked on, when the queue is full.
func (h *EventHub) Broadcast(event Event) {
	select {
	case h.broadcast <- event:
	default:
		log.Printf("Warning: event hub queue full, dropping %s event", event.Type)
	}
}

// Subscribe registers a subscriber with the hub.
func (h *EventHub) Subscribe(sub subscriber) {
	h.register <- sub
}

// Unsubscribe removes a subscriber from the hub.
func (h *EventHub) Unsubscribe(sub subscriber) {
	h.unregister <- sub
}

// wsConn is a live WebSocket subscriber.
type wsConn struct {
	hub  *EventHub
	conn *websocket.Conn
	send chan []byte
}

func (c *wsConn) sendChannel() chan []byte { return c.send }

func (c *wsConn) close() {
	if c.conn != nil {
		_ = c.conn.Close(websocket.StatusNormalClosure, "")
	}
}

// ServeHTTP upgrades the request and attaches the connection to the hub.
func (h *EventHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		log.Printf("ERROR: WebSocket upgrade failed: %v", err)
		return
	}

	sub := &wsConn{hub: h, conn: conn, send: make(chan []byte, 256)}
	h.Subscribe(sub)

	go sub.writePump()
	go sub.readPump()
}

func (c *wsConn) writePump() {
	defer func() {
		c.hub.Unsubscribe(c)
		_ = c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for message := range c.send {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := c.conn.Write(ctx, websocket.MessageText, message)
		cancel()
		if err != nil {
			return
		}
	}
}

// readPump drains client messages to detect disconnection.
func (c *wsConn) readPump() {
	defer func() {
		c.hub.Unsubscribe(c)
		_ = c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		if _, _, err := c.conn.Read(context.Background()); err != nil {
			return
		}
	}
}

// testSubscriber is a hub subscriber for tests.
type testSubscriber struct {
	ch chan []byte
}

func (t *testSubscriber) sendChannel() chan []byte { return t.ch }
func (t *testSubscriber) close()                   {}
