package api

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // any origin is accepted; the CORS middleware only sets response headers and rejects nothing
	},
}

// ProgressEvent is one line of the analyze-request progress stream, pushed
// to every subscriber as it happens. runAnalysis emits "started" when a
// request begins and "finished" or "failed" when it ends; individual jobs
// do not emit events.
type ProgressEvent struct {
	RequestID string `json:"requestId"`
	JobID     string `json:"jobId,omitempty"`
	Stage     string `json:"stage"`
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
}

// Hub maintains the set of active websocket clients and broadcasts
// pipeline-progress events to all of them.
type Hub struct {
	clients   map[*websocket.Conn]bool
	broadcast chan []byte
	mutex     sync.Mutex
}

func NewHub() *Hub {
	return &Hub{
		broadcast: make(chan []byte, 256),
		clients:   make(map[*websocket.Conn]bool),
	}
}

func (h *Hub) Run() {
	for message := range h.broadcast {
		h.mutex.Lock()
		for client := range h.clients {
			_ = client.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := client.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("websocket write error: %v", err)
				client.Close()
				delete(h.clients, client)
			}
		}
		h.mutex.Unlock()
	}
}

// Subscribe handles incoming websocket connections for GET /api/v1/ws.
func (h *Hub) Subscribe(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("failed to upgrade websocket: %v", err)
		return
	}

	h.mutex.Lock()
	h.clients[conn] = true
	log.Printf("websocket client connected, total=%d", len(h.clients))
	h.mutex.Unlock()

	go func() {
		defer func() {
			h.mutex.Lock()
			delete(h.clients, conn)
			total := len(h.clients)
			h.mutex.Unlock()
			conn.Close()
			log.Printf("websocket client disconnected, total=%d", total)
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					log.Printf("websocket read error: %v", err)
				}
				break
			}
		}
	}()
}

// Broadcast sends a JSON-encoded progress event to every connected client.
func (h *Hub) Broadcast(data []byte) {
	h.broadcast <- data
}

// BroadcastEvent marshals and broadcasts a ProgressEvent, swallowing a
// marshal failure (there's no subscriber to report it to).
func (h *Hub) BroadcastEvent(ev ProgressEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		log.Printf("failed to marshal progress event: %v", err)
		return
	}
	h.Broadcast(payload)
}
