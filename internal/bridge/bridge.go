// Package bridge subscribes to the backend's event-bus channels and
// translates bus messages into recipient-targeted pushes. Nothing is
// persisted; a message for a user with no live connections reaches no one.
package bridge

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stg-network/chat-relay/internal/config"
	"github.com/stg-network/chat-relay/internal/constants"
	"github.com/stg-network/chat-relay/internal/domain"
	"github.com/stg-network/chat-relay/internal/errors"
	"github.com/stg-network/chat-relay/internal/logger"
	"github.com/stg-network/chat-relay/internal/metrics"
	"github.com/stg-network/chat-relay/internal/workers"
	"go.uber.org/zap"
)

// Bridge consumes event-bus channels and fans messages out to user
// channels. Decode failures are isolated per message; a channel that fails
// to subscribe is logged and skipped while the others keep serving.
type Bridge struct {
	client *redis.Client
	cfg    config.RedisConfig
	reg    domain.GroupRegistry
	pool   *workers.WorkerPool
	log    *zap.Logger

	mu      sync.Mutex
	pubsubs []*redis.PubSub
	drainWg sync.WaitGroup
}

// New builds a bridge over an existing redis client. A zero push delay
// falls back to the default.
func New(client *redis.Client, cfg config.RedisConfig, reg domain.GroupRegistry, pool *workers.WorkerPool) *Bridge {
	if cfg.ImagePushDelay == 0 {
		cfg.ImagePushDelay = constants.DefaultImagePushDelay
	}
	return &Bridge{
		client: client,
		cfg:    cfg,
		reg:    reg,
		pool:   pool,
		log:    logger.New("bridge"),
	}
}

// Start subscribes to the configured channels. Each channel is subscribed
// independently so one failure degrades service instead of aborting it.
// Returns the number of channels serving.
func (b *Bridge) Start(ctx context.Context) int {
	channels := []struct {
		name    string
		handler func(payload []byte)
	}{
		{b.cfg.ImageProcessingChannel, b.handleImageProcessing},
		{b.cfg.ChatReadEventsChannel, b.handleReadReceipt},
	}

	subscribed := 0
	for _, ch := range channels {
		pubsub := b.client.Subscribe(ctx, ch.name)
		if _, err := pubsub.Receive(ctx); err != nil {
			subErr := errors.BrokerSubscribeError(ch.name, err)
			b.log.Error("Channel subscription failed, continuing without it",
				zap.String("channel", ch.name),
				zap.Error(subErr))
			_ = pubsub.Close()
			continue
		}

		b.mu.Lock()
		b.pubsubs = append(b.pubsubs, pubsub)
		b.mu.Unlock()

		b.drainWg.Add(1)
		go b.drain(pubsub, ch.name, ch.handler)

		b.log.Info("Subscribed to event-bus channel", zap.String("channel", ch.name))
		subscribed++
	}
	return subscribed
}

// drain pumps messages from one subscription into its handler. Handlers
// must never panic the drain loop, so each message runs guarded.
func (b *Bridge) drain(pubsub *redis.PubSub, channel string, handler func(payload []byte)) {
	defer b.drainWg.Done()

	for msg := range pubsub.Channel() {
		func() {
			defer func() {
				if r := recover(); r != nil {
					metrics.BridgeMessages.WithLabelValues(channel, "panic").Inc()
					b.log.Error("Recovered from panic in bridge handler",
						zap.String("channel", channel),
						zap.Any("panic", r))
				}
			}()
			handler([]byte(msg.Payload))
		}()
	}

	b.log.Debug("Event-bus channel drained", zap.String("channel", channel))
}

// Ping reports broker reachability for health checks.
func (b *Bridge) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

// Stop closes the subscriptions and then the client. Callers flush the
// worker pool first so in-flight pushes are not cut off.
func (b *Bridge) Stop() {
	b.mu.Lock()
	pubsubs := b.pubsubs
	b.pubsubs = nil
	b.mu.Unlock()

	for _, pubsub := range pubsubs {
		_ = pubsub.Close()
	}
	b.drainWg.Wait()

	if err := b.client.Close(); err != nil {
		b.log.Warn("Failed to close redis client", zap.Error(err))
	}
}

// schedulePush re-resolves the target group's membership at fire time, not
// at schedule time; delivering to zero members is a normal, silent outcome.
func (b *Bridge) schedulePush(delay time.Duration, groupKey, event string, data interface{}) {
	time.AfterFunc(delay, func() {
		queued := b.pool.AddJob(func() {
			sent := b.reg.Broadcast(groupKey, event, data, nil)
			b.log.Debug("Delivered scheduled push",
				zap.String("group", groupKey),
				zap.String("event", event),
				zap.Int("recipients", sent))
		})
		if !queued {
			metrics.EventsDropped.WithLabelValues("worker_queue_full").Inc()
			b.log.Warn("Dropped scheduled push, worker queue full",
				zap.String("group", groupKey),
				zap.String("event", event))
		}
	})
}
