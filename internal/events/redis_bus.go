package events

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisBusConfig names the streams and consumer group used by the bus.
type RedisBusConfig struct {
	StreamPrefix  string
	ConsumerGroup string
	ConsumerName  string
	Block         time.Duration
	BatchSize     int64
}

// RedisBus publishes events to Redis Streams, one stream per topic, and
// delivers them to subscribers through a consumer group. Entries are acked
// only after every handler succeeded, so delivery is at-least-once.
type RedisBus struct {
	client *redis.Client
	cfg    RedisBusConfig
	logger *zap.Logger

	mu        sync.RWMutex
	listeners map[EventType][]EventHandler
}

// NewRedisBus builds a bus on top of an existing client.
func NewRedisBus(client *redis.Client, cfg RedisBusConfig, logger *zap.Logger) *RedisBus {
	if cfg.StreamPrefix == "" {
		cfg.StreamPrefix = "procurement"
	}
	if cfg.ConsumerGroup == "" {
		cfg.ConsumerGroup = "procurement-service"
	}
	if cfg.ConsumerName == "" {
		cfg.ConsumerName = "consumer"
	}
	if cfg.Block <= 0 {
		cfg.Block = 5 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 16
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisBus{
		client:    client,
		cfg:       cfg,
		logger:    logger,
		listeners: make(map[EventType][]EventHandler),
	}
}

// Stream returns the stream key for a topic.
func (b *RedisBus) Stream(topic string) string {
	return b.cfg.StreamPrefix + ":" + topic
}

// Publish appends the event to its topic stream.
func (b *RedisBus) Publish(ctx context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return b.client.XAdd(ctx, &redis.XAddArgs{
		Stream: b.Stream(Topic(event.Type)),
		Values: map[string]interface{}{
			"type": string(event.Type),
			"data": string(data),
		},
	}).Err()
}

// Subscribe registers a handler for the given event type.
func (b *RedisBus) Subscribe(eventType EventType, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners[eventType] = append(b.listeners[eventType], handler)
}

// Run consumes both topic streams until ctx is cancelled. Entries left pending
// by a previous run of this consumer are replayed first.
func (b *RedisBus) Run(ctx context.Context) error {
	streams := []string{b.Stream(TopicRequests), b.Stream(TopicNotifications)}
	for _, stream := range streams {
		err := b.client.XGroupCreateMkStream(ctx, stream, b.cfg.ConsumerGroup, "$").Err()
		if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
			return err
		}
	}

	if err := b.read(ctx, streams, "0", 0); err != nil && ctx.Err() == nil {
		b.logger.Warn("replaying pending events failed", zap.Error(err))
	}

	for {
		if ctx.Err() != nil {
			return nil
		}
		err := b.read(ctx, streams, ">", b.cfg.Block)
		if err == nil || errors.Is(err, redis.Nil) {
			continue
		}
		if ctx.Err() != nil {
			return nil
		}
		b.logger.Warn("reading event streams failed", zap.Error(err))
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(time.Second):
		}
	}
}

func (b *RedisBus) read(ctx context.Context, streams []string, id string, block time.Duration) error {
	args := make([]string, 0, len(streams)*2)
	args = append(args, streams...)
	for range streams {
		args = append(args, id)
	}
	readArgs := &redis.XReadGroupArgs{
		Group:    b.cfg.ConsumerGroup,
		Consumer: b.cfg.ConsumerName,
		Streams:  args,
		Count:    b.cfg.BatchSize,
		Block:    block,
	}
	if block == 0 {
		// negative Block omits BLOCK; zero would wait forever
		readArgs.Block = -1
	}
	result, err := b.client.XReadGroup(ctx, readArgs).Result()
	if err != nil {
		return err
	}
	for _, stream := range result {
		for _, msg := range stream.Messages {
			b.handle(ctx, stream.Stream, msg)
		}
	}
	return nil
}

func (b *RedisBus) handle(ctx context.Context, stream string, msg redis.XMessage) {
	logger := b.logger.With(zap.String("stream", stream), zap.String("entry_id", msg.ID))

	event, err := decodeEvent(msg)
	if err != nil {
		logger.Error("dropping malformed event", zap.Error(err))
		b.ack(ctx, stream, msg.ID, logger)
		return
	}

	b.mu.RLock()
	handlers := append([]EventHandler{}, b.listeners[event.Type]...)
	b.mu.RUnlock()

	failed := false
	for _, handler := range handlers {
		if err := handler(ctx, event); err != nil {
			failed = true
			logger.Warn("event handler failed",
				zap.String("event_type", string(event.Type)),
				zap.String("ticket_number", event.TicketNumber),
				zap.Error(err))
		}
	}
	if failed {
		return
	}
	b.ack(ctx, stream, msg.ID, logger)
}

func (b *RedisBus) ack(ctx context.Context, stream, id string, logger *zap.Logger) {
	if err := b.client.XAck(ctx, stream, b.cfg.ConsumerGroup, id).Err(); err != nil {
		logger.Warn("ack failed", zap.Error(err))
	}
}

func decodeEvent(msg redis.XMessage) (Event, error) {
	var event Event
	raw, ok := msg.Values["data"].(string)
	if !ok {
		return event, errors.New("event entry has no data field")
	}
	if err := json.Unmarshal([]byte(raw), &event); err != nil {
		return event, err
	}
	if event.Type == "" || event.TicketNumber == "" {
		return event, errors.New("event entry is missing type or ticket number")
	}
	return event, nil
}
