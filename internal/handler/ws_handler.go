package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/quocanhngo/lighttalk/internal/ws"
)

// WSHandler mounts the WebSocket gateway on the router
type WSHandler struct {
	gateway *ws.Gateway
}

func NewWSHandler(gateway *ws.Gateway) *WSHandler {
	return &WSHandler{gateway: gateway}
}

// HandleWebSocket godoc
// @Summary Open the real-time connection
// @Description Authenticate with "Authorization: Bearer <jwt>" or, from browsers, ?token=<jwt>. Subscribe to /topic/chat/{roomId} and /queue/user/{userId}.
// @Tags WebSocket
// @Param token query string false "JWT when headers cannot be set"
// @Success 101
// @Failure 401 {object} model.ErrorResponse
// @Router /ws [get]
func (h *WSHandler) HandleWebSocket(c *gin.Context) {
	h.gateway.ServeHTTP(c.Writer, c.Request)
}
