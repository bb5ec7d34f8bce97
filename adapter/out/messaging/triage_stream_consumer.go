package messaging

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"complaint_triage/core/domain"
)

var ErrMalformedMessage = errors.New("malformed intake message")

// IntakeMessage is one submission read from the intake stream.
type IntakeMessage struct {
	ID         string
	Stream     string
	Submission *domain.Submission
	// Deliveries is 1 for a fresh read and the pending delivery count for
	// a reclaimed one.
	Deliveries int64
}

// IntakeConsumer reads the intake stream through a consumer group.
type IntakeConsumer struct {
	client   *redis.Client
	group    string
	consumer string
	stream   string
	log      zerolog.Logger

	block           time.Duration
	pendingIdleTime time.Duration // 이 시간 이상 pending이면 재처리
	maxRetries      int           // 최대 재시도 횟수
}

// ConsumerConfig holds consumer configuration.
type ConsumerConfig struct {
	Group    string
	Consumer string
	Stream   string
	Logger   zerolog.Logger

	// Optional: 기본값 사용 가능
	Block           time.Duration
	PendingIdleTime time.Duration
	MaxRetries      int
}

// NewIntakeConsumer creates a new IntakeConsumer.
func NewIntakeConsumer(client *redis.Client, cfg *ConsumerConfig) *IntakeConsumer {
	c := &IntakeConsumer{
		client:          client,
		group:           cfg.Group,
		consumer:        cfg.Consumer,
		stream:          cfg.Stream,
		log:             cfg.Logger.With().Str("component", "intake_consumer").Logger(),
		block:           cfg.Block,
		pendingIdleTime: cfg.PendingIdleTime,
		maxRetries:      cfg.MaxRetries,
	}
	if c.group == "" {
		c.group = "triage-workers"
	}
	if c.stream == "" {
		c.stream = StreamIntake
	}
	if c.block <= 0 {
		c.block = 5 * time.Second
	}
	if c.pendingIdleTime <= 0 {
		c.pendingIdleTime = 2 * time.Minute
	}
	if c.maxRetries <= 0 {
		c.maxRetries = 3
	}
	return c
}

// EnsureGroup creates the consumer group if it doesn't exist.
func (c *IntakeConsumer) EnsureGroup(ctx context.Context) error {
	err := c.client.XGroupCreateMkStream(ctx, c.stream, c.group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create consumer group %s on %s: %w", c.group, c.stream, err)
	}
	return nil
}

// Read blocks up to the configured time for at most count new messages.
// Entries that cannot be decoded are dead-lettered and acknowledged here.
func (c *IntakeConsumer) Read(ctx context.Context, count int) ([]*IntakeMessage, error) {
	if count <= 0 {
		return nil, nil
	}

	result, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.group,
		Consumer: c.consumer,
		Streams:  []string{c.stream, ">"},
		Count:    int64(count),
		Block:    c.block,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("XReadGroup %s: %w", c.stream, err)
	}

	var msgs []*IntakeMessage
	for _, stream := range result {
		for _, xm := range stream.Messages {
			if m := c.decodeOrDrop(ctx, stream.Stream, xm, 1); m != nil {
				msgs = append(msgs, m)
			}
		}
	}
	return msgs, nil
}

// ClaimStale takes over messages idle longer than the pending idle time,
// up to count. Messages past the retry limit go to the DLQ instead.
func (c *IntakeConsumer) ClaimStale(ctx context.Context, count int) ([]*IntakeMessage, error) {
	if count <= 0 {
		return nil, nil
	}

	pending, err := c.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: c.stream,
		Group:  c.group,
		Idle:   c.pendingIdleTime,
		Start:  "-",
		End:    "+",
		Count:  int64(count),
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("XPendingExt %s: %w", c.stream, err)
	}

	var msgs []*IntakeMessage
	for _, p := range pending {
		if p.Idle < c.pendingIdleTime {
			continue
		}

		if int(p.RetryCount) >= c.maxRetries {
			c.log.Warn().
				Str("id", p.ID).
				Int64("retries", p.RetryCount).
				Msg("message exceeded max retries, moving to DLQ")
			if err := c.DeadLetter(ctx, p.ID, fmt.Sprintf("exceeded %d deliveries", c.maxRetries)); err != nil {
				c.log.Error().Err(err).Str("id", p.ID).Msg("error moving message to DLQ")
			}
			continue
		}

		claimed, err := c.client.XClaim(ctx, &redis.XClaimArgs{
			Stream:   c.stream,
			Group:    c.group,
			Consumer: c.consumer,
			MinIdle:  c.pendingIdleTime,
			Messages: []string{p.ID},
		}).Result()
		if err != nil {
			c.log.Error().Err(err).Str("id", p.ID).Msg("error claiming message")
			continue
		}

		for _, xm := range claimed {
			c.log.Info().
				Str("id", xm.ID).
				Str("previous_consumer", p.Consumer).
				Dur("idle", p.Idle).
				Int64("retries", p.RetryCount).
				Msg("claimed stuck pending message")
			if m := c.decodeOrDrop(ctx, c.stream, xm, p.RetryCount+1); m != nil {
				msgs = append(msgs, m)
			}
		}
	}
	return msgs, nil
}

// Ack acknowledges a processed message.
func (c *IntakeConsumer) Ack(ctx context.Context, id string) error {
	if err := c.client.XAck(ctx, c.stream, c.group, id).Err(); err != nil {
		return fmt.Errorf("XAck %s: %w", id, err)
	}
	return nil
}

// DeadLetter copies a message to dlq:{stream} with failure metadata and
// acknowledges the original.
func (c *IntakeConsumer) DeadLetter(ctx context.Context, id, reason string) error {
	messages, err := c.client.XRange(ctx, c.stream, id, id).Result()
	if err != nil {
		return fmt.Errorf("failed to read message for DLQ: %w", err)
	}

	values := map[string]interface{}{
		"original_stream": c.stream,
		"original_id":     id,
		"reason":          reason,
		"failed_at":       time.Now().UTC().Format(time.RFC3339),
		"consumer":        c.consumer,
		"group":           c.group,
	}
	// trimmed entries still get a DLQ record without the payload
	if len(messages) > 0 {
		for k, v := range messages[0].Values {
			values["original_"+k] = v
		}
	}

	dlq := DeadLetterStream(c.stream)
	if err := c.client.XAdd(ctx, &redis.XAddArgs{Stream: dlq, Values: values}).Err(); err != nil {
		return fmt.Errorf("failed to add message to DLQ: %w", err)
	}

	c.log.Info().
		Str("dlq_stream", dlq).
		Str("original_id", id).
		Str("reason", reason).
		Msg("message moved to DLQ")

	return c.Ack(ctx, id)
}

func (c *IntakeConsumer) decodeOrDrop(ctx context.Context, stream string, xm redis.XMessage, deliveries int64) *IntakeMessage {
	sub, err := DecodeSubmission(xm.Values)
	if err != nil {
		c.log.Warn().Err(err).Str("id", xm.ID).Msg("dropping undecodable message")
		if err := c.DeadLetter(ctx, xm.ID, err.Error()); err != nil {
			c.log.Error().Err(err).Str("id", xm.ID).Msg("error moving message to DLQ")
		}
		return nil
	}
	return &IntakeMessage{ID: xm.ID, Stream: stream, Submission: sub, Deliveries: deliveries}
}

// DecodeSubmission reads the submission from a stream entry's data field.
func DecodeSubmission(values map[string]interface{}) (*domain.Submission, error) {
	data, ok := values["data"]
	if !ok {
		return nil, fmt.Errorf("%w: missing data field", ErrMalformedMessage)
	}
	s, ok := data.(string)
	if !ok {
		return nil, fmt.Errorf("%w: data is not a string", ErrMalformedMessage)
	}

	var sub domain.Submission
	if err := json.Unmarshal([]byte(s), &sub); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	return &sub, nil
}
