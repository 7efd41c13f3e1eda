package application

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/stg-network/chat-relay/internal/bridge"
	"github.com/stg-network/chat-relay/internal/config"
	"github.com/stg-network/chat-relay/internal/domain"
	"github.com/stg-network/chat-relay/internal/identity"
	"github.com/stg-network/chat-relay/internal/logger"
	"github.com/stg-network/chat-relay/internal/registry"
	"github.com/stg-network/chat-relay/internal/relay"
	"github.com/stg-network/chat-relay/internal/workers"

	"go.uber.org/zap"
)

// NodeBuilder is used to incrementally construct a Node instance.
type NodeBuilder struct {
	ctx    context.Context
	cancel context.CancelFunc
	config *config.Config

	registry   *registry.Registry
	workerPool *workers.WorkerPool
	gate       *identity.Gate
	router     *relay.Router
	broker     *bridge.Bridge
}

// NewNodeBuilder creates a new NodeBuilder with its own cancelable context.
func NewNodeBuilder(ctx context.Context, cfg *config.Config) *NodeBuilder {
	c, cancel := context.WithCancel(ctx)
	return &NodeBuilder{
		ctx:    c,
		cancel: cancel,
		config: cfg,
	}
}

// BuildRegistry initializes the group membership registry.
func (b *NodeBuilder) BuildRegistry() {
	b.registry = registry.New()
}

// BuildWorkers initializes the worker pool backing scheduled pushes.
func (b *NodeBuilder) BuildWorkers() {
	numCPU := runtime.NumCPU()
	b.workerPool = workers.NewWorkerPool(numCPU*2, numCPU*300)
}

// BuildGate configures the identity gate. No verifier is wired: the
// backend terminates sessions, so the relay accepts any well-formed
// numeric user id it is handed.
func (b *NodeBuilder) BuildGate() {
	b.gate = identity.NewGate(nil)
}

// BuildRouter sets up the client event router over the registry.
func (b *NodeBuilder) BuildRouter() {
	b.router = relay.NewRouter(b.registry)
}

// BuildBroker connects the redis client and assembles the event-bus
// bridge. An unreachable broker is not fatal at build time; the bridge
// reports it per channel on Start and the health endpoint surfaces it.
func (b *NodeBuilder) BuildBroker() error {
	if b.registry == nil || b.workerPool == nil {
		b.cancel()
		return fmt.Errorf("registry and worker pool must be built before the broker")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     b.config.Redis.Addr(),
		Password: b.config.Redis.Password,
		DB:       b.config.Redis.DB,
	})

	pingCtx, cancel := context.WithTimeout(b.ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("Event-bus broker not reachable at startup, continuing degraded",
			zap.String("addr", b.config.Redis.Addr()),
			zap.Error(err))
	} else {
		logger.Info("Connected to event-bus broker",
			zap.String("addr", b.config.Redis.Addr()))
	}

	b.broker = bridge.New(client, b.config.Redis, b.registry, b.workerPool)
	return nil
}

// Build finalizes the node construction.
func (b *NodeBuilder) Build() (*Node, error) {
	if b.registry == nil {
		return nil, fmt.Errorf("registry must be built before calling Build()")
	}
	if b.workerPool == nil {
		return nil, fmt.Errorf("worker pool must be built before calling Build()")
	}
	if b.gate == nil {
		return nil, fmt.Errorf("identity gate must be built before calling Build()")
	}
	if b.router == nil {
		return nil, fmt.Errorf("router must be built before calling Build()")
	}
	if b.broker == nil {
		return nil, fmt.Errorf("broker must be built before calling Build()")
	}

	node := &Node{
		ctx:        b.ctx,
		cancel:     b.cancel,
		config:     b.config,
		registry:   b.registry,
		router:     b.router,
		gate:       b.gate,
		Bridge:     b.broker,
		WorkerPool: b.workerPool,
		wsConns:    make(map[domain.Connection]bool),
		startTime:  time.Now(),
	}

	logger.Debug("Node initialized successfully via builder")
	return node, nil
}
