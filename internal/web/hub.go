package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/DYAI2025/sentiment-analyzer-frontend/internal/annotations"
	"github.com/DYAI2025/sentiment-analyzer-frontend/internal/notify"
	"github.com/DYAI2025/sentiment-analyzer-frontend/internal/status"
)

// Frame types pushed to attached display clients.
const (
	FRAME_JOB_UPDATE      = "job_update"
	FRAME_UPLOAD_PROGRESS = "upload_progress"
	FRAME_ANNOTATIONS     = "annotations"
	FRAME_DETAIL          = "detail"
	FRAME_NOTIFICATION    = "notification"
	FRAME_CONNECTION      = "connection"
)

const BROADCAST_BUFFER = 64

// Envelope is the wire shape of every frame the hub pushes.
type Envelope struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type progressFrame struct {
	FileName string `json:"file_name"`
	Index    int    `json:"index"`
	Percent  int    `json:"percent"`
}

type annotationsFrame struct {
	JobID        string                 `json:"job_id"`
	Fragments    []annotations.Fragment `json:"fragments"`
	HTML         string                 `json:"html"`
	DocumentHTML string                 `json:"document_html,omitempty"`
}

type connectionFrame struct {
	Connected bool `json:"connected"`
}

// Hub fans render frames out to every attached display client. It is the
// single seam between the orchestration side and the browser: the orchestrator
// pushes through the UIFeed and Notifier methods, clients attach over /ws.
type Hub struct {
	clients    map[*websocket.Conn]bool
	broadcast  chan []byte
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	mu         sync.Mutex
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan []byte, BROADCAST_BUFFER),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
	}
}

// Start runs the hub pump until ctx is cancelled. Register, Unregister and
// every push block or drop until Start has been called.
func (h *Hub) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				h.closeAll()
				return
			case client := <-h.register:
				h.mu.Lock()
				h.clients[client] = true
				count := len(h.clients)
				h.mu.Unlock()
				slog.Info("[Hub] Display client connected", slog.Int("clients", count))
			case client := <-h.unregister:
				h.mu.Lock()
				if _, ok := h.clients[client]; ok {
					delete(h.clients, client)
					client.Close()
				}
				count := len(h.clients)
				h.mu.Unlock()
				slog.Info("[Hub] Display client disconnected", slog.Int("clients", count))
			case message := <-h.broadcast:
				h.mu.Lock()
				for client := range h.clients {
					if err := client.WriteMessage(websocket.TextMessage, message); err != nil {
						slog.Warn("[Hub] Failed to write to client", slog.String("error", err.Error()))
						client.Close()
						delete(h.clients, client)
					}
				}
				h.mu.Unlock()
			}
		}
	}()
}

// Register attaches a display client.
func (h *Hub) Register(conn *websocket.Conn) {
	h.register <- conn
}

// Unregister detaches and closes a display client.
func (h *Hub) Unregister(conn *websocket.Conn) {
	h.unregister <- conn
}

// ClientCount returns the number of attached clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// JobUpdate implements app.UIFeed.
func (h *Hub) JobUpdate(snap status.Snapshot) {
	h.push(FRAME_JOB_UPDATE, snap)
}

// UploadProgress implements app.UIFeed.
func (h *Hub) UploadProgress(fileName string, index, percent int) {
	h.push(FRAME_UPLOAD_PROGRESS, progressFrame{FileName: fileName, Index: index, Percent: percent})
}

// Annotations implements app.UIFeed.
func (h *Hub) Annotations(jobID string, frags []annotations.Fragment, listHTML, documentHTML string) {
	h.push(FRAME_ANNOTATIONS, annotationsFrame{
		JobID:        jobID,
		Fragments:    frags,
		HTML:         listHTML,
		DocumentHTML: documentHTML,
	})
}

// Detail implements app.UIFeed.
func (h *Hub) Detail(d annotations.Detail) {
	h.push(FRAME_DETAIL, d)
}

// Connection implements app.UIFeed.
func (h *Hub) Connection(connected bool) {
	h.push(FRAME_CONNECTION, connectionFrame{Connected: connected})
}

// Notify implements notify.Notifier.
func (h *Hub) Notify(n notify.Notification) {
	h.push(FRAME_NOTIFICATION, n)
}

// push marshals one frame and queues it for broadcast. A full buffer drops
// the frame instead of blocking the caller, which may be the change-feed
// dispatch pump.
func (h *Hub) push(frameType string, data any) {
	message, err := json.Marshal(Envelope{Type: frameType, Data: data})
	if err != nil {
		slog.Error("[Hub] Failed to marshal frame",
			slog.String("type", frameType),
			slog.String("error", err.Error()))
		return
	}
	select {
	case h.broadcast <- message:
	default:
		slog.Warn("[Hub] Broadcast buffer full, dropping frame", slog.String("type", frameType))
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		client.Close()
		delete(h.clients, client)
	}
}
