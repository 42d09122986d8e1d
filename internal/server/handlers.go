// Package server exposes HTTP handlers: the WebSocket upgrade, health check
// and room listing.
package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Handler serves the HTTP endpoints backed by a Hub.
type Handler struct {
	hub      *Hub
	upgrader websocket.Upgrader
	logger   zerolog.Logger
}

// RoomInfo describes one room in the /rooms response.
type RoomInfo struct {
	ID      string `json:"id"`
	Members int    `json:"members"`
}

// RoomsResponse is the body of GET /rooms.
type RoomsResponse struct {
	Rooms      []RoomInfo `json:"rooms"`
	Default    string     `json:"default"`
	MaxHistory int        `json:"max_history"`
}

// NewHandler creates a Handler. allowedOrigins follows the ALLOWED_ORIGINS
// syntax: origins such as "http://localhost:8080", or "*" for any.
func NewHandler(hub *Hub, allowedOrigins []string, logger *zerolog.Logger) *Handler {
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "http").Logger()
	}
	policy := newOriginPolicy(allowedOrigins, l)

	return &Handler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     policy.checkOrigin,
		},
		logger: l,
	}
}

// WebSocket upgrades the request and hands the connection to the hub.
func (h *Handler) WebSocket(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// The upgrader has already written the error response.
		h.logger.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	if err := h.hub.Serve(conn, c.Request.RemoteAddr); err != nil {
		h.logger.Warn().Err(err).Msg("Rejected WebSocket connection")
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
		_ = conn.Close()
	}
}

// Health reports that the server is running.
func (h *Handler) Health(c *gin.Context) {
	c.String(http.StatusOK, "Room chat server is running!")
}

// Rooms lists the rooms with their current member counts and the per-room
// history limit.
func (h *Handler) Rooms(c *gin.Context) {
	counts := h.hub.RoomCounts()
	list := h.hub.Rooms().List()

	resp := RoomsResponse{
		Rooms:      make([]RoomInfo, 0, len(list)),
		Default:    h.hub.Rooms().Default(),
		MaxHistory: h.hub.history.Limit(),
	}
	for _, id := range list {
		resp.Rooms = append(resp.Rooms, RoomInfo{ID: id, Members: counts[id]})
	}
	c.JSON(http.StatusOK, resp)
}
