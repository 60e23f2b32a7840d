package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cassiomorais/ledger/internal/domain/event"
	"github.com/redis/go-redis/v9"
)

const NotificationStream = "ledger:notifications"

type StreamProducer struct {
	client *redis.Client
	stream string
	maxLen int64
}

// NewStreamProducer trims the stream to roughly maxLen entries; zero disables trimming.
func NewStreamProducer(client *redis.Client, stream string, maxLen int64) *StreamProducer {
	if stream == "" {
		stream = NotificationStream
	}
	return &StreamProducer{client: client, stream: stream, maxLen: maxLen}
}

func (p *StreamProducer) Stream() string {
	return p.stream
}

func (p *StreamProducer) PublishNotification(ctx context.Context, msg event.Notification) error {
	values, err := streamValues(msg)
	if err != nil {
		return err
	}

	args := &redis.XAddArgs{
		Stream: p.stream,
		Values: values,
	}
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}

	if _, err := p.client.XAdd(ctx, args).Result(); err != nil {
		return fmt.Errorf("failed to publish notification: %w", err)
	}
	return nil
}

func streamValues(msg event.Notification) (map[string]any, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal notification: %w", err)
	}
	return map[string]any{
		"notification_id": msg.ID,
		"account_id":      msg.AccountID,
		"payload":         string(payload),
		"timestamp":       msg.CreatedAt.Unix(),
	}, nil
}

// ParseNotification decodes the payload written by PublishNotification.
func ParseNotification(values map[string]any) (event.Notification, error) {
	var msg event.Notification
	payload, ok := values["payload"].(string)
	if !ok {
		return msg, fmt.Errorf("stream entry has no payload field")
	}
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		return msg, fmt.Errorf("failed to unmarshal notification: %w", err)
	}
	return msg, nil
}

type StreamConsumer struct {
	client        *redis.Client
	stream        string
	group         string
	consumer      string
	batchSize     int64
	blockDuration time.Duration
}

func NewStreamConsumer(
	client *redis.Client,
	stream string,
	group string,
	consumer string,
	batchSize int64,
	blockDuration time.Duration,
) *StreamConsumer {
	if stream == "" {
		stream = NotificationStream
	}
	return &StreamConsumer{
		client:        client,
		stream:        stream,
		group:         group,
		consumer:      consumer,
		batchSize:     batchSize,
		blockDuration: blockDuration,
	}
}

func (c *StreamConsumer) Stream() string {
	return c.stream
}

// CreateGroup creates the consumer group and the stream if either is missing.
func (c *StreamConsumer) CreateGroup(ctx context.Context) error {
	const busyGroupMsg = "BUSYGROUP"
	err := c.client.XGroupCreateMkStream(ctx, c.stream, c.group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), busyGroupMsg) {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}
	return nil
}

// Read returns new entries for this consumer, or nil when the block
// duration passes with nothing to read. A negative block duration makes the
// read non-blocking; zero blocks until an entry arrives.
func (c *StreamConsumer) Read(ctx context.Context) ([]redis.XMessage, error) {
	streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.group,
		Consumer: c.consumer,
		Streams:  []string{c.stream, ">"},
		Count:    c.batchSize,
		Block:    c.blockDuration,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read from stream: %w", err)
	}

	var messages []redis.XMessage
	for _, s := range streams {
		messages = append(messages, s.Messages...)
	}
	return messages, nil
}

func (c *StreamConsumer) Ack(ctx context.Context, messageID string) error {
	if err := c.client.XAck(ctx, c.stream, c.group, messageID).Err(); err != nil {
		return fmt.Errorf("failed to ack message: %w", err)
	}
	return nil
}

// ClaimIdle takes over entries another consumer read but never acked.
func (c *StreamConsumer) ClaimIdle(ctx context.Context, minIdle time.Duration) ([]redis.XMessage, error) {
	messages, _, err := c.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   c.stream,
		Group:    c.group,
		Consumer: c.consumer,
		MinIdle:  minIdle,
		Start:    "0-0",
		Count:    c.batchSize,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to claim messages: %w", err)
	}
	return messages, nil
}
