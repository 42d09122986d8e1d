// Package server wires HTTP handlers into a gin engine.
package server

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// SetupRoutes returns an engine serving the health check, the room list and
// the WebSocket endpoint. Other methods on known paths get 405.
func SetupRoutes(h *Handler) *gin.Engine {
	engine := gin.New()
	engine.HandleMethodNotAllowed = true
	engine.Use(gin.Recovery(), requestLogger(h.logger))

	engine.GET("/", h.Health)
	engine.GET("/healthz", h.Health)
	engine.GET("/rooms", h.Rooms)
	engine.GET("/ws", h.WebSocket)
	return engine
}

func requestLogger(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("Request handled")
	}
}
