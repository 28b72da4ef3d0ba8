package server

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/ayusman/safewarner/internal/bus"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// sendQueueSize bounds the per-connection outgoing event queue. A stalled
// client drops events rather than stalling the bus.
const sendQueueSize = 32

// EventsHandler streams engine events to WebSocket clients. Each
// connection gets its own bus subscription, so a slow client only loses
// its own events.
type EventsHandler struct {
	bus *bus.Bus
}

// NewEventsHandler creates a new EventsHandler reading from the given bus.
func NewEventsHandler(b *bus.Bus) *EventsHandler {
	return &EventsHandler{bus: b}
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	subID := "ws-" + uuid.New().String()
	send := make(chan bus.Event, sendQueueSize)

	err = h.bus.Subscribe(subID, func(ev bus.Event) {
		select {
		case send <- ev:
		default:
			// Client is not keeping up; skip the event.
		}
	})
	if err != nil {
		log.Printf("websocket subscribe error: %v", err)
		return
	}
	defer h.bus.Unsubscribe(subID)

	// Drain client messages so close frames are processed.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case ev := <-send:
			msg, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		}
	}
}
