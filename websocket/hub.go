package websocket

import (
	"aaisaheb/models"
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// EventHandler receives trigger and sensor events coming from the UI.
type EventHandler interface {
	Activate(source models.ActivationSource) bool
	HandleMotion(x, y, z float64) bool
	HandleKey(code string, ctrl bool, target string) bool
	HandleVoice(ctx context.Context, transcript string) bool
	HandleCancel(ctx context.Context, reason string) error
}

// LocationSink accepts position fixes reported by the UI.
type LocationSink interface {
	Update(loc models.Location)
	Deny()
}

// Hub fans notifications and session snapshots out to connected UI clients
// and routes their inbound events to the EventHandler.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan models.WSMessage

	handler   EventHandler
	locations LocationSink

	lastSession *models.Session

	stats HubStats
	mutex sync.RWMutex

	ctx    context.Context
	cancel context.CancelFunc
}

type HubStats struct {
	TotalConnections  int64     `json:"totalConnections"`
	ActiveConnections int       `json:"activeConnections"`
	MessagesSent      int64     `json:"messagesSent"`
	MessagesReceived  int64     `json:"messagesReceived"`
	MessagesDropped   int64     `json:"messagesDropped"`
	StartTime         time.Time `json:"startTime"`
}

func NewHub() *Hub {
	ctx, cancel := context.WithCancel(context.Background())

	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan models.WSMessage, 256),
		stats: HubStats{
			StartTime: time.Now(),
		},
		ctx:    ctx,
		cancel: cancel,
	}
}

// SetEventHandler wires the trigger service once it has been built.
func (h *Hub) SetEventHandler(handler EventHandler) {
	h.mutex.Lock()
	h.handler = handler
	h.mutex.Unlock()
}

func (h *Hub) SetLocationSink(sink LocationSink) {
	h.mutex.Lock()
	h.locations = sink
	h.mutex.Unlock()
}

func (h *Hub) Run() {
	logrus.Info("WebSocket Hub starting...")

	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case message := <-h.broadcast:
			h.broadcastToClients(message)

		case <-h.ctx.Done():
			logrus.Info("WebSocket Hub shutting down...")
			h.closeAll()
			return
		}
	}
}

func (h *Hub) Stop() {
	h.cancel()
}

func (h *Hub) registerClient(client *Client) {
	h.mutex.Lock()
	h.clients[client] = true
	h.stats.ActiveConnections++
	h.stats.TotalConnections++
	last := h.lastSession
	active := h.stats.ActiveConnections
	h.mutex.Unlock()

	if last != nil {
		client.SendMessage(models.WSMessage{Type: models.WSTypeSession, Data: *last, Timestamp: time.Now()})
	}

	logrus.Infof("Client registered: %s (Total: %d)", client.connectionID, active)
}

func (h *Hub) unregisterClient(client *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		client.close()
		h.stats.ActiveConnections--

		logrus.Infof("Client unregistered: %s (Total: %d)", client.connectionID, h.stats.ActiveConnections)
	}
}

func (h *Hub) broadcastToClients(message models.WSMessage) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	for client := range h.clients {
		if client.SendMessage(message) {
			h.stats.MessagesSent++
		} else {
			h.stats.MessagesDropped++
		}
	}
}

func (h *Hub) closeAll() {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	for client := range h.clients {
		delete(h.clients, client)
		client.close()
	}
	h.stats.ActiveConnections = 0
}

func (h *Hub) enqueue(message models.WSMessage) {
	select {
	case h.broadcast <- message:
	default:
		h.mutex.Lock()
		h.stats.MessagesDropped++
		h.mutex.Unlock()
		logrus.Warn("Broadcast channel full, dropping message")
	}
}

// Notify implements the notifier capability for connected UIs.
func (h *Hub) Notify(message string, severity models.Severity) {
	now := time.Now()
	h.enqueue(models.WSMessage{
		Type: models.WSTypeNotification,
		Data: models.Notification{
			Message:   message,
			Severity:  severity,
			Timestamp: now,
		},
		Timestamp: now,
	})
}

// SessionChanged pushes every session snapshot to the UI.
func (h *Hub) SessionChanged(session models.Session) {
	h.mutex.Lock()
	snap := session
	h.lastSession = &snap
	h.mutex.Unlock()

	h.enqueue(models.WSMessage{Type: models.WSTypeSession, Data: session, Timestamp: time.Now()})
}

// ServeWS upgrades the request and starts the client pumps.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logrus.Errorf("WebSocket upgrade failed: %v", err)
		return
	}

	client := NewClient(conn, h, r)
	select {
	case h.register <- client:
	case <-h.ctx.Done():
		conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump()
}

func (h *Hub) eventHandler() EventHandler {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return h.handler
}

func (h *Hub) locationSink() LocationSink {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return h.locations
}

func (h *Hub) incrementMessagesReceived() {
	h.mutex.Lock()
	h.stats.MessagesReceived++
	h.mutex.Unlock()
}

func (h *Hub) incrementMessagesDropped() {
	h.mutex.Lock()
	h.stats.MessagesDropped++
	h.mutex.Unlock()
}

func (h *Hub) GetStats() HubStats {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return h.stats
}

func (h *Hub) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}
