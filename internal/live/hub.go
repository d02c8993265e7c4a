package live

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shenikar/drive_issue_log/internal/models"
	"github.com/sirupsen/logrus"
)

const messageTypeLocation = "location"

// Message - сообщение, рассылаемое подключенным клиентам
type Message struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Клиенты - приложение и панель на стенде, проверка origin не нужна
		return true
	},
}

// Hub рассылает обновления местоположения по WebSocket
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	logger     *logrus.Logger

	mutex            sync.RWMutex
	connectedClients int
	lastCount        int64
}

func NewHub(logger *logrus.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run - главный цикл хаба, завершается вместе с ctx
func (h *Hub) Run(ctx context.Context) {
	log := h.logger.WithField("component", "live_hub")
	for {
		select {
		case <-ctx.Done():
			h.mutex.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.connectedClients = 0
			h.mutex.Unlock()
			close(h.done)
			log.Info("Live hub stopped")
			return

		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			h.connectedClients = len(h.clients)
			h.mutex.Unlock()
			log.WithField("clients", h.connectedClients).Info("Client connected")

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				h.connectedClients = len(h.clients)
			}
			h.mutex.Unlock()
			log.WithField("clients", h.connectedClients).Info("Client disconnected")

		case message := <-h.broadcast:
			h.mutex.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Клиент не успевает читать
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.connectedClients = len(h.clients)
			h.mutex.Unlock()
		}
	}
}

// Pump пересылает обновления трекера клиентам, пока канал открыт или не отменен ctx
func (h *Hub) Pump(ctx context.Context, updates <-chan models.LocationUpdate) {
	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			h.BroadcastLocation(update)
		}
	}
}

// BroadcastLocation рассылает одно обновление местоположения
func (h *Hub) BroadcastLocation(update models.LocationUpdate) {
	message := Message{
		Type:      messageTypeLocation,
		Data:      update,
		Timestamp: time.Now().UTC(),
	}

	data, err := json.Marshal(message)
	if err != nil {
		h.logger.WithError(err).Error("Failed to marshal broadcast message")
		return
	}

	h.mutex.Lock()
	h.lastCount = update.Count
	h.mutex.Unlock()

	select {
	case h.broadcast <- data:
	default:
		h.logger.WithField("count", update.Count).Warn("Live broadcast queue is full, update dropped")
	}
}

// ServeWS переводит соединение в WebSocket и регистрирует клиента
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("Failed to upgrade connection to WebSocket")
		return
	}

	client := newClient(h, conn)
	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// Stats возвращает число клиентов и номер последней разосланной отметки
func (h *Hub) Stats() (int, int64) {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return h.connectedClients, h.lastCount
}
