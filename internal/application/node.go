package application

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/stg-network/chat-relay/internal/bridge"
	"github.com/stg-network/chat-relay/internal/config"
	"github.com/stg-network/chat-relay/internal/constants"
	"github.com/stg-network/chat-relay/internal/domain"
	"github.com/stg-network/chat-relay/internal/identity"
	"github.com/stg-network/chat-relay/internal/logger"
	"github.com/stg-network/chat-relay/internal/metrics"
	"github.com/stg-network/chat-relay/internal/registry"
	"github.com/stg-network/chat-relay/internal/relay"
	"github.com/stg-network/chat-relay/internal/workers"
	"go.uber.org/zap"
)

// Node ties together the components needed to run the relay: the group
// registry, the client event router, the event-bus bridge and the worker
// pool backing delayed pushes.
type Node struct {
	ctx    context.Context
	cancel context.CancelFunc

	config     *config.Config
	registry   *registry.Registry
	router     *relay.Router
	gate       *identity.Gate
	Bridge     *bridge.Bridge
	WorkerPool *workers.WorkerPool

	wsConns   map[domain.Connection]bool
	wsConnsMu sync.RWMutex

	startTime time.Time
}

// Ensure Node implements domain.NodeInterface
var _ domain.NodeInterface = (*Node)(nil)

// New creates and configures a Node using the NodeBuilder pattern.
func New(ctx context.Context, cfg *config.Config) (*Node, error) {
	builder := NewNodeBuilder(ctx, cfg)

	builder.BuildRegistry()
	builder.BuildWorkers()
	builder.BuildGate()
	builder.BuildRouter()

	if err := builder.BuildBroker(); err != nil {
		return nil, fmt.Errorf("failed building broker: %w", err)
	}

	node, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build node: %w", err)
	}
	return node, nil
}

// Start begins the main loops for the node: the event-bus bridge, the
// metrics exporter and the WebSocket relay server.
func (n *Node) Start(ctx context.Context) error {
	// Subscribe to the backend's event-bus channels. A partial or full
	// subscription failure degrades backend pushes but never blocks
	// client-to-client relay.
	subscribed := n.Bridge.Start(n.ctx)
	if subscribed == 0 {
		logger.Warn("No event-bus channels subscribed, backend pushes disabled")
	}

	if n.config.Metrics.Enabled {
		metrics.StartServer(n.ctx, n.config.Metrics.Port)
	}

	go func() {
		addr := n.config.Relay.WSAddr
		server := relay.NewServer(n, n.gate, n.router, n.Bridge, n.config)
		if err := server.ListenAndServe(n.ctx, addr); err != nil {
			// "Server closed" is the expected result of a graceful shutdown.
			if err.Error() != "http: Server closed" {
				logger.Error("Server error", zap.Error(err))
			} else {
				logger.Debug("Server closed gracefully", zap.Error(err))
			}
		}
	}()

	logger.Debug("Node started with event-bus bridge and relay server")
	return nil
}

// Shutdown gracefully shuts down the node. The listener stops accepting
// first, live connections get a close handshake, scheduled pushes flush
// through the worker pool, and only then does the broker connection close.
func (n *Node) Shutdown() {
	logger.Info("Initiating graceful shutdown...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
	defer cancel()

	var shutdownErrors []error

	// Step 1: Cancel the node context; the HTTP listener and connection
	// monitors shut down on it.
	if n.cancel != nil {
		logger.Debug("Canceling node context...")
		n.cancel()
	}

	// Step 2: Close remaining WebSocket connections gracefully.
	n.shutdownWebSocketConnections(shutdownCtx)

	// Step 3: Wait for in-flight worker pool jobs to finish.
	logger.Debug("Waiting for worker pool to finish...")
	done := make(chan struct{})
	go func() {
		defer close(done)
		n.WorkerPool.Stop()
	}()

	select {
	case <-done:
		logger.Debug("Worker pool finished")
	case <-shutdownCtx.Done():
		shutdownErrors = append(shutdownErrors, fmt.Errorf("worker pool shutdown timed out after %v", constants.ShutdownTimeout))
		logger.Warn("Worker pool shutdown timed out", zap.Duration("timeout", constants.ShutdownTimeout))
	}

	// Step 4: Close the event-bus subscriptions and the broker client,
	// after in-flight pushes have flushed.
	if n.Bridge != nil {
		logger.Debug("Closing event-bus bridge...")
		n.Bridge.Stop()
	}

	if len(shutdownErrors) > 0 {
		logger.Warn("Node shutdown completed with errors",
			zap.Int("error_count", len(shutdownErrors)),
			zap.Errors("errors", shutdownErrors),
			zap.Duration("shutdown_timeout", constants.ShutdownTimeout))
	} else {
		logger.Info("Node shutdown completed successfully",
			zap.Duration("shutdown_timeout", constants.ShutdownTimeout))
	}
}

// shutdownWebSocketConnections gracefully closes all active WebSocket connections.
func (n *Node) shutdownWebSocketConnections(ctx context.Context) {
	n.wsConnsMu.Lock()
	connectionCount := len(n.wsConns)
	connections := make([]domain.Connection, 0, connectionCount)
	for conn := range n.wsConns {
		connections = append(connections, conn)
	}
	n.wsConnsMu.Unlock()

	if connectionCount == 0 {
		logger.Debug("No WebSocket connections to close")
		return
	}

	logger.Info("Closing WebSocket connections gracefully",
		zap.Int("connection_count", connectionCount))

	done := make(chan struct{})
	go func() {
		defer close(done)

		for _, conn := range connections {
			conn.Close()
		}

		n.wsConnsMu.Lock()
		n.wsConns = make(map[domain.Connection]bool)
		n.wsConnsMu.Unlock()
	}()

	select {
	case <-done:
		logger.Debug("WebSocket connections closed")
	case <-ctx.Done():
		logger.Warn("WebSocket connection shutdown timed out")
		n.wsConnsMu.Lock()
		n.wsConns = make(map[domain.Connection]bool)
		n.wsConnsMu.Unlock()
	}
}

// Config returns the node configuration.
func (n *Node) Config() *config.Config {
	return n.config
}

// Registry exposes the group membership registry.
func (n *Node) Registry() domain.GroupRegistry {
	return n.registry
}

// RegisterConn tracks a new WebSocket client
func (n *Node) RegisterConn(conn domain.Connection) {
	n.wsConnsMu.Lock()
	defer n.wsConnsMu.Unlock()
	n.wsConns[conn] = true
	count := len(n.wsConns)
	logger.Debug("WebSocket client registered", zap.Int("total_connections", count))
}

// UnregisterConn removes a WebSocket client
func (n *Node) UnregisterConn(conn domain.Connection) {
	n.wsConnsMu.Lock()
	defer n.wsConnsMu.Unlock()
	delete(n.wsConns, conn)
	count := len(n.wsConns)
	logger.Debug("WebSocket client unregistered", zap.Int("total_connections", count))
}

// GetConnectionCount returns the current number of active connections (for health checks)
func (n *Node) GetConnectionCount() int {
	n.wsConnsMu.RLock()
	defer n.wsConnsMu.RUnlock()
	return len(n.wsConns)
}

// GetStartTime returns when the node was started (for health checks)
func (n *Node) GetStartTime() time.Time {
	return n.startTime
}
