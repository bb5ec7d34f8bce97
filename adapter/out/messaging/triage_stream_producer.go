// Package messaging provides message queue adapters.
package messaging

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"complaint_triage/core/domain"
	"complaint_triage/core/port/out"
)

// Stream names
const (
	StreamIntake = "complaints:intake"

	// dead letter streams are named dlq:{stream}
	dlqPrefix = "dlq:"
)

// DeadLetterStream returns the DLQ stream name for stream.
func DeadLetterStream(stream string) string {
	return dlqPrefix + stream
}

// IntakeProducer implements out.IntakeQueue using Redis Streams.
type IntakeProducer struct {
	client *redis.Client
	stream string
	maxLen int64
}

var _ out.IntakeQueue = (*IntakeProducer)(nil)

// NewIntakeProducer creates a producer for the intake stream. maxLen <= 0
// leaves the stream untrimmed.
func NewIntakeProducer(client *redis.Client, maxLen int64) *IntakeProducer {
	return &IntakeProducer{client: client, stream: StreamIntake, maxLen: maxLen}
}

// Enqueue appends sub to the intake stream and returns the stream entry id.
func (p *IntakeProducer) Enqueue(ctx context.Context, sub *domain.Submission) (string, error) {
	data, err := json.Marshal(sub)
	if err != nil {
		return "", fmt.Errorf("failed to marshal submission: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]interface{}{
			"data":   string(data),
			"key":    sub.Key,
			"job_id": uuid.NewString(),
		},
	}
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}

	id, err := p.client.XAdd(ctx, args).Result()
	if err != nil {
		return "", fmt.Errorf("failed to publish to %s: %w", p.stream, err)
	}
	return id, nil
}

// StreamLength returns the number of entries in the intake stream.
func (p *IntakeProducer) StreamLength(ctx context.Context) (int64, error) {
	return p.client.XLen(ctx, p.stream).Result()
}
