package websocket

import (
	"aaisaheb/models"
	"aaisaheb/utils"
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 4096

	sendBufferSize = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// The UI is served from the same device.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type Client struct {
	conn *websocket.Conn
	hub  *Hub

	connectionID string
	connectedAt  time.Time
	ipAddress    string
	userAgent    string

	send     chan models.WSMessage
	sendMu   sync.Mutex
	isClosed bool

	// Only sensor-rate events (motion, voice) are limited. Triggers,
	// cancels and location fixes always reach the handler.
	sensorLimiter *utils.RateLimiter
	validator     *utils.ValidationService

	pingFailCount int

	ctx    context.Context
	cancel context.CancelFunc
}

func NewClient(conn *websocket.Conn, hub *Hub, r *http.Request) *Client {
	ctx, cancel := context.WithCancel(hub.ctx)

	return &Client{
		conn:          conn,
		hub:           hub,
		send:          make(chan models.WSMessage, sendBufferSize),
		connectionID:  utils.GenerateUUID(),
		connectedAt:   time.Now(),
		ipAddress:     getClientIP(r),
		userAgent:     r.UserAgent(),
		sensorLimiter: utils.NewRateLimiter(600, time.Minute),
		validator:     utils.NewValidationService(),
		ctx:           ctx,
		cancel:        cancel,
	}
}

func (c *Client) ReadPump() {
	defer c.cleanup()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logrus.Errorf("WebSocket error for client %s: %v", c.connectionID, err)
			}
			return
		}

		c.hub.incrementMessagesReceived()
		c.handleMessage(data)
	}
}

func (c *Client) WritePump() {
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
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteJSON(message); err != nil {
				logrus.Errorf("Write error for client %s: %v", c.connectionID, err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.pingFailCount++
				if c.pingFailCount > 3 {
					logrus.Warnf("Ping failed for client %s, disconnecting", c.connectionID)
					return
				}
				continue
			}
			c.pingFailCount = 0
		}
	}
}

func (c *Client) handleMessage(data []byte) {
	var request models.WSRequest
	if err := json.Unmarshal(data, &request); err != nil {
		c.sendError(models.WSErrorInvalidMessage, "Invalid message format")
		return
	}

	if isSensorEvent(request.Type) && !c.sensorLimiter.Allow() {
		c.hub.incrementMessagesDropped()
		if request.Type == models.WSTypeVoice {
			c.sendError(models.WSErrorRateLimit, "Rate limit exceeded")
		}
		return
	}

	handler := c.hub.eventHandler()
	if handler == nil && request.Type != models.WSTypeLocation {
		c.sendError(models.WSErrorRejected, "SOS service not ready")
		return
	}

	switch request.Type {
	case models.WSTypeTrigger:
		var event models.WSTriggerEvent
		if !c.decode(request.Data, &event) {
			return
		}
		if event.Source == "" {
			event.Source = models.SourceButton
		}
		c.sendAck(request.Type, handler.Activate(event.Source))

	case models.WSTypeMotion:
		var event models.WSMotionEvent
		if !c.decode(request.Data, &event) {
			return
		}
		handler.HandleMotion(event.X, event.Y, event.Z)

	case models.WSTypeKey:
		var event models.WSKeyEvent
		if !c.decode(request.Data, &event) {
			return
		}
		handler.HandleKey(event.Code, event.Ctrl, event.Target)

	case models.WSTypeVoice:
		var event models.WSVoiceEvent
		if !c.decode(request.Data, &event) {
			return
		}
		c.sendAck(request.Type, handler.HandleVoice(c.ctx, event.Transcript))

	case models.WSTypeCancel:
		var event models.WSCancelEvent
		if len(request.Data) > 0 && !c.decode(request.Data, &event) {
			return
		}
		if err := handler.HandleCancel(c.ctx, event.Reason); err != nil {
			c.sendError(models.WSErrorRejected, err.Error())
			return
		}
		c.sendAck(request.Type, true)

	case models.WSTypeLocation:
		var event models.WSLocationEvent
		if !c.decode(request.Data, &event) {
			return
		}
		sink := c.hub.locationSink()
		if event.Denied {
			if sink != nil {
				sink.Deny()
			}
			return
		}
		if err := c.validator.Validate(event); err != nil {
			c.sendError(models.WSErrorInvalidMessage, "Invalid coordinates")
			return
		}
		if sink != nil {
			sink.Update(models.Location{
				Latitude:  event.Latitude,
				Longitude: event.Longitude,
				Accuracy:  event.Accuracy,
				Timestamp: time.Now(),
			})
		}

	default:
		c.sendError(models.WSErrorInvalidMessage, "Unknown message type")
	}
}

func isSensorEvent(msgType string) bool {
	return msgType == models.WSTypeMotion || msgType == models.WSTypeVoice
}

func (c *Client) decode(raw json.RawMessage, target interface{}) bool {
	if err := json.Unmarshal(raw, target); err != nil {
		c.sendError(models.WSErrorInvalidMessage, "Invalid event data")
		return false
	}
	return true
}

func (c *Client) sendAck(msgType string, accepted bool) {
	c.SendMessage(models.WSMessage{
		Type: models.WSTypeAck,
		Data: map[string]interface{}{
			"type":     msgType,
			"accepted": accepted,
		},
		Timestamp: time.Now(),
	})
}

func (c *Client) sendError(code, message string) {
	c.SendMessage(models.WSMessage{
		Type:      models.WSTypeError,
		Data:      models.WSError{Code: code, Message: message},
		Timestamp: time.Now(),
	})
}

// SendMessage queues a message without blocking; it is dropped when the
// buffer is full or the client is gone.
func (c *Client) SendMessage(message models.WSMessage) bool {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if c.isClosed {
		return false
	}
	select {
	case c.send <- message:
		return true
	default:
		logrus.Warnf("Send channel full for client %s", c.connectionID)
		return false
	}
}

// close is called by the hub once the client is unregistered.
func (c *Client) close() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if !c.isClosed {
		c.isClosed = true
		close(c.send)
	}
}

func (c *Client) cleanup() {
	c.cancel()

	select {
	case c.hub.unregister <- c:
	case <-c.hub.ctx.Done():
	}
	c.conn.Close()

	logrus.Infof("Client disconnected: %s (connected %s)", c.connectionID, time.Since(c.connectedAt).Round(time.Second))
}

func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return xff
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}
