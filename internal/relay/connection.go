package relay

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stg-network/chat-relay/internal/constants"
	"github.com/stg-network/chat-relay/internal/domain"
	"github.com/stg-network/chat-relay/internal/errors"
	"github.com/stg-network/chat-relay/internal/logger"
	"github.com/stg-network/chat-relay/internal/metrics"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// outboundFrame is the JSON envelope for pushes delivered to clients.
type outboundFrame struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data,omitempty"`
}

// generateConnID produces an opaque connection identifier.
func generateConnID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback to timestamp-based ID if random generation fails
		return fmt.Sprintf("%x", time.Now().UnixNano())
	}
	return hex.EncodeToString(bytes)
}

// WsConnection represents a single authenticated WebSocket client
// connection. The user identity is fixed at construction and immutable.
type WsConnection struct {
	ws         *websocket.Conn
	node       domain.NodeInterface
	router     *Router
	id         string
	userID     int64
	remoteAddr string

	idleTimeout  time.Duration
	writeTimeout time.Duration
	startTime    time.Time
	lastActivity time.Time

	pingTicker *time.Ticker

	writeMu     sync.Mutex
	closeMu     sync.Once
	isClosed    atomic.Bool
	closeReason string

	limiter *rate.Limiter // nil when rate limiting is disabled
}

var _ domain.Connection = (*WsConnection)(nil)

// NewWsConnection initializes a connection that already passed the identity
// gate.
func NewWsConnection(
	ctx context.Context,
	ws *websocket.Conn,
	node domain.NodeInterface,
	router *Router,
	userID int64,
	remoteAddr string,
) *WsConnection {
	cfg := node.Config().Relay

	conn := &WsConnection{
		ws:           ws,
		node:         node,
		router:       router,
		id:           generateConnID(),
		userID:       userID,
		remoteAddr:   remoteAddr,
		idleTimeout:  cfg.IdleTimeout,
		writeTimeout: cfg.WriteTimeout,
		startTime:    time.Now(),
		lastActivity: time.Now(),
		pingTicker:   time.NewTicker(15 * time.Second),
	}

	if cfg.ThrottlingConfig.RateLimit.Enabled {
		conn.limiter = rate.NewLimiter(
			rate.Limit(cfg.ThrottlingConfig.RateLimit.MaxEventsPerSecond),
			cfg.ThrottlingConfig.RateLimit.BurstSize,
		)
	}

	ws.SetReadLimit(int64(cfg.ThrottlingConfig.MaxMessageBytes))

	// Ping handler - must echo back the same data
	ws.SetPingHandler(func(appData string) error {
		conn.lastActivity = time.Now()
		conn.writeMu.Lock()
		defer conn.writeMu.Unlock()
		_ = conn.ws.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(5*time.Second))
		return nil
	})

	go conn.monitorConnection(ctx)

	return conn
}

// ID returns the opaque connection identifier.
func (c *WsConnection) ID() string { return c.id }

// UserID returns the authenticated identity attached at connect time.
func (c *WsConnection) UserID() int64 { return c.userID }

// RemoteAddr returns the client's remote address.
func (c *WsConnection) RemoteAddr() string { return c.remoteAddr }

// SendEvent delivers a named push to the client. Fire-and-forget: a write
// failure is logged and closes this connection; cleanup happens through the
// normal disconnect path.
func (c *WsConnection) SendEvent(event string, data interface{}) {
	if c.isClosed.Load() {
		return
	}

	raw, err := json.Marshal(outboundFrame{Event: event, Data: data})
	if err != nil {
		logger.Warn("Failed to marshal outbound push",
			zap.String("event", event), zap.Error(err))
		return
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.isClosed.Load() {
		return
	}

	_ = c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout)) // nolint:errcheck // deadline is non-critical
	if err := c.ws.WriteMessage(websocket.TextMessage, raw); err != nil {
		logger.Debug("Failed to write push, closing connection",
			zap.String("event", event),
			zap.String("client", c.remoteAddr),
			zap.Error(errors.TransportError("write", err)))
		metrics.IncrementErrorCount()
		c.closeReason = "write error"
		go c.Close()
		return
	}

	metrics.IncrementMessagesSent()
}

// HandleMessages runs the read loop until the client disconnects or the
// context is canceled.
func (c *WsConnection) HandleMessages(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Recovered from panic in HandleMessages",
				zap.Any("panic", r),
				zap.String("client", c.remoteAddr))
		}
		if c.closeReason == "" {
			c.closeReason = "message handler terminated"
		}
		c.Close()
	}()

	logger.Debug("Starting message handler",
		zap.String("conn_id", c.id),
		zap.Int64("user_id", c.userID),
		zap.String("client", c.remoteAddr))

	lastPong := time.Now()
	c.ws.SetPongHandler(func(string) error {
		c.lastActivity = time.Now()
		lastPong = time.Now()
		return nil
	})

	for {
		select {
		case <-ctx.Done():
			c.closeReason = "connection context canceled"
			return
		default:
		}

		_ = c.ws.SetReadDeadline(time.Now().Add(60 * time.Second)) // nolint:errcheck // deadline is non-critical
		if time.Since(lastPong) > 90*time.Second {
			c.closeReason = "no pong response"
			return
		}

		_, rawMsg, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.closeReason = "client closed connection"
				logger.Debug("Client closed connection normally",
					zap.String("client", c.remoteAddr))
			} else {
				c.closeReason = "read error"
				logger.Debug("WS read error, disconnecting client",
					zap.Error(err),
					zap.String("client", c.remoteAddr))
			}
			return
		}

		metrics.MessagesReceived.Inc()
		metrics.MessageSizeBytes.Observe(float64(len(rawMsg)))
		c.lastActivity = time.Now()

		if c.limiter != nil && !c.limiter.Allow() {
			metrics.EventsDropped.WithLabelValues("rate_limited").Inc()
			logger.Debug("Dropping event, rate limit exceeded",
				zap.String("conn_id", c.id),
				zap.Int64("user_id", c.userID))
			continue
		}

		c.router.HandleFrame(c, rawMsg)
	}
}

// Close gracefully shuts down the connection and clears its memberships.
// Safe to call from any goroutine; runs exactly once.
func (c *WsConnection) Close() {
	c.closeMu.Do(func() {
		c.isClosed.Store(true)

		if c.closeReason != "" {
			logger.Debug("WebSocket connection closed",
				zap.String("reason", c.closeReason),
				zap.String("conn_id", c.id),
				zap.Int64("user_id", c.userID),
				zap.Duration("connection_duration", time.Since(c.startTime)))
		}

		if c.pingTicker != nil {
			c.pingTicker.Stop()
		}

		// Memberships must not outlive the connection.
		c.node.Registry().DropConnection(c)

		// Attempt a polite close handshake.
		closeCtx, cancel := context.WithTimeout(context.Background(), constants.CloseGracePeriod)
		defer cancel()

		closeChan := make(chan struct{})
		go func() {
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, c.closeReason)
			c.writeMu.Lock()
			_ = c.ws.SetWriteDeadline(time.Now().Add(time.Second))
			_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
			_ = c.ws.SetWriteDeadline(time.Time{})
			c.writeMu.Unlock()
			close(closeChan)
		}()

		select {
		case <-closeChan:
		case <-closeCtx.Done():
			logger.Debug("Close message timeout", zap.String("client", c.remoteAddr))
		}

		c.node.UnregisterConn(c)
		metrics.DecrementActiveConnections()

		_ = c.ws.Close()
	})
}

// monitorConnection sends keepalive pings and enforces the idle timeout.
func (c *WsConnection) monitorConnection(ctx context.Context) {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.closeReason = "server shutting down"
			c.Close()
			return
		case <-c.pingTicker.C:
			c.writeMu.Lock()
			if !c.isClosed.Load() {
				_ = c.ws.SetWriteDeadline(time.Now().Add(5 * time.Second))
				err := c.ws.WriteControl(websocket.PingMessage, []byte("keepalive"), time.Now().Add(5*time.Second))
				_ = c.ws.SetWriteDeadline(time.Time{})
				if err != nil {
					c.writeMu.Unlock()
					c.closeReason = "ping failed"
					c.Close()
					return
				}
			}
			c.writeMu.Unlock()
		case <-ticker.C:
			if c.isClosed.Load() {
				return
			}
			if time.Since(c.lastActivity) > c.idleTimeout {
				c.closeReason = "idle timeout"
				c.Close()
				return
			}
		}
	}
}
