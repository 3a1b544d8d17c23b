package controllers

import (
	"aaisaheb/utils"
	"aaisaheb/websocket"

	"github.com/gin-gonic/gin"
)

type WebSocketController struct {
	hub *websocket.Hub
}

func NewWebSocketController(hub *websocket.Hub) *WebSocketController {
	return &WebSocketController{hub: hub}
}

// HandleWebSocket upgrades the connection for the UI event channel
func (wsc *WebSocketController) HandleWebSocket(c *gin.Context) {
	wsc.hub.ServeWS(c.Writer, c.Request)
}

func (wsc *WebSocketController) GetStats(c *gin.Context) {
	utils.SuccessResponse(c, "WebSocket stats retrieved successfully", wsc.hub.GetStats())
}
