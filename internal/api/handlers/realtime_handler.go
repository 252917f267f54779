package handlers

import (
	"context"
	"time"

	"fin-advisor/internal/service"
	"fin-advisor/pkg/middleware"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	registerWait   = 5 * time.Second
	eventConnected = "connected"
)

type RealtimeHandler struct {
	hub    *service.Hub
	logger *zap.Logger
}

func NewRealtimeHandler(hub *service.Hub, logger *zap.Logger) *RealtimeHandler {
	return &RealtimeHandler{
		hub:    hub,
		logger: logger,
	}
}

// RequireUpgrade lets only WebSocket upgrade requests through.
func (h *RealtimeHandler) RequireUpgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// Stream godoc
// @Summary Live updates
// @Description WebSocket stream of recommendation and profile events for the authenticated user. Browsers pass the token as ?token=.
// @Tags realtime
// @Param token query string false "Access token"
// @Security Bearer
// @Success 101
// @Failure 401 {object} map[string]string
// @Failure 426 {object} map[string]string
// @Router /api/v1/ws [get]
func (h *RealtimeHandler) Stream() fiber.Handler {
	return websocket.New(h.serve)
}

func (h *RealtimeHandler) serve(conn *websocket.Conn) {
	userID, _ := conn.Locals(middleware.UserIDKey).(string)
	// the server read timeout must not close a long-lived stream
	_ = conn.SetReadDeadline(time.Time{})

	ctx, cancel := context.WithTimeout(context.Background(), registerWait)
	client, err := h.hub.Register(ctx, userID)
	cancel()
	if err != nil {
		h.logger.Warn("Failed to register connection", zap.Error(err), zap.String("user_id", userID))
		return
	}

	written := make(chan struct{})
	go func() {
		defer close(written)
		for msg := range client.Messages() {
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				h.logger.Debug("Write to connection failed", zap.Error(err), zap.String("conn_id", client.ID))
				break
			}
		}
		// unblocks the read loop when the hub stops or the peer is gone
		_ = conn.Close()
	}()

	if hello, err := service.EncodeEvent(eventConnected, fiber.Map{"conn_id": client.ID}); err == nil {
		h.hub.Send(client.ID, hello)
	}

	// clients only listen; reading detects the close
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	h.hub.Unregister(client)
	<-written
}
