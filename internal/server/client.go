// Package server manages individual WebSocket clients, handling read/write
// pumps, rate limiting, and lifecycle control for each connection.
package server

import (
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	defaultSendBuffer = 256
)

var (
	errClientClosed   = errors.New("client closed")
	errSendBufferFull = errors.New("client send buffer full")
)

// ClientConfig holds the per-connection limits.
type ClientConfig struct {
	SendBuffer     int
	MaxMessageSize int64
	RateLimit      RateLimitConfig
	Logger         *zerolog.Logger
}

// Client is one live websocket connection. It owns its transport: a read
// pump feeds inbound frames to the connection's Session and a write pump
// drains the outbound queue, so frames queued for a client are written in
// the order they were queued.
type Client struct {
	id          string
	conn        *websocket.Conn
	addr        string
	send        chan []byte
	rateLimiter *rateLimiter
	rateLimit   RateLimitConfig
	logger      zerolog.Logger

	mu        sync.Mutex
	closed    bool
	closeOnce sync.Once
}

// NewClient creates a Client for conn. conn may be nil in tests, in which
// case only the outbound queue is used.
func NewClient(conn *websocket.Conn, addr string, cfg ClientConfig) *Client {
	if conn != nil && cfg.MaxMessageSize > 0 {
		conn.SetReadLimit(cfg.MaxMessageSize)
	}

	buffer := cfg.SendBuffer
	if buffer <= 0 {
		buffer = defaultSendBuffer
	}

	id := uuid.NewString()
	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = cfg.Logger.With().Str("conn", id).Str("addr", addr).Logger()
	}

	var limiter *rateLimiter
	if cfg.RateLimit.Burst > 0 {
		limiter = newRateLimiter(cfg.RateLimit.Burst, cfg.RateLimit.RefillInterval)
	}

	return &Client{
		id:          id,
		conn:        conn,
		addr:        addr,
		send:        make(chan []byte, buffer),
		rateLimiter: limiter,
		rateLimit:   cfg.RateLimit,
		logger:      logger,
	}
}

// ID returns the connection id.
func (c *Client) ID() string {
	return c.id
}

// GetSendChan returns the client's outbound queue. It is closed once the
// client is unregistered.
func (c *Client) GetSendChan() <-chan []byte {
	return c.send
}

// trySend queues payload without blocking.
func (c *Client) trySend(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return errClientClosed
	}

	select {
	case c.send <- payload:
		return nil
	default:
		return errSendBufferFull
	}
}

// closeSend closes the outbound queue; the write pump then says goodbye and
// closes the transport.
func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// closeConnection closes the transport once. The read pump then fails and
// runs the disconnect transition.
func (c *Client) closeConnection() {
	if c.conn == nil {
		return
	}
	c.closeOnce.Do(func() {
		if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
			c.logger.Warn().Err(err).Msg("Error closing connection")
		}
	})
}

// setupReadConnection configures read deadlines and pong handler for the WebSocket connection
func (c *Client) setupReadConnection() {
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Warn().Err(err).Msg("Error setting initial read deadline")
	}
	c.conn.SetPongHandler(func(string) error {
		if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			c.logger.Warn().Err(err).Msg("Error setting read deadline in pong handler")
		}
		return nil
	})
}

// logReadError records why the read loop ended.
func (c *Client) logReadError(err error) {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		c.logger.Warn().Msg("Message exceeded maximum size, closing connection")
	case websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure,
		websocket.CloseNoStatusReceived):
		c.logger.Debug().Err(err).Msg("Client closed connection")
	case errors.Is(err, io.EOF) || isExpectedCloseError(err):
		c.logger.Debug().Err(err).Msg("Connection closed")
	default:
		c.logger.Warn().Err(err).Msg("WebSocket read error")
	}
}

// checkRateLimit reports whether another inbound frame may be processed.
func (c *Client) checkRateLimit() bool {
	if c.rateLimiter != nil && !c.rateLimiter.allow() {
		c.logger.Warn().
			Int("burst", c.rateLimit.Burst).
			Dur("interval", c.rateLimit.RefillInterval).
			Msg("Rate limit exceeded, discarding message")
		return false
	}
	return true
}

func (c *Client) readPump(session *Session) {
	defer func() {
		session.Disconnect()
		c.closeConnection()
	}()

	c.setupReadConnection()

	for {
		_, rawMessage, err := c.conn.ReadMessage()
		if err != nil {
			c.logReadError(err)
			return
		}

		if !c.checkRateLimit() {
			continue
		}

		session.Handle(rawMessage)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.closeConnection()
	}()

	for c.processWriteEvent(ticker) {
	}
}

// processWriteEvent waits for the next write event and returns false when the
// pump should stop processing.
func (c *Client) processWriteEvent(ticker *time.Ticker) bool {
	select {
	case message, ok := <-c.send:
		if !ok {
			return c.writeCloseMessage()
		}
		return c.writeTextMessage(message)
	case <-ticker.C:
		return c.handlePing()
	}
}

// writeCloseMessage sends a close frame to the client
func (c *Client) writeCloseMessage() bool {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	err := c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	if err != nil && !isExpectedCloseError(err) {
		c.logger.Debug().Err(err).Msg("Error writing close message")
	}
	return false
}

// writeTextMessage writes message and then every message already queued,
// each as its own frame.
func (c *Client) writeTextMessage(message []byte) bool {
	if !c.writeFrame(message) {
		return false
	}

	n := len(c.send)
	for i := 0; i < n; i++ {
		queued, ok := <-c.send
		if !ok {
			return c.writeCloseMessage()
		}
		if !c.writeFrame(queued) {
			return false
		}
	}
	return true
}

func (c *Client) writeFrame(message []byte) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Debug().Err(err).Msg("Error setting write deadline")
		return false
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
		if !isExpectedCloseError(err) {
			c.logger.Warn().Err(err).Msg("Error writing message")
		}
		return false
	}
	return true
}

// handlePing sends a ping message to keep the connection alive
func (c *Client) handlePing() bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Debug().Err(err).Msg("Error setting write deadline for ping")
		return false
	}
	if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		if !isExpectedCloseError(err) {
			c.logger.Warn().Err(err).Msg("Error writing ping message")
		}
		return false
	}
	return true
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
