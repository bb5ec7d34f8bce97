package messaging

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"complaint_triage/core/domain"
	"complaint_triage/core/port/out"
)

func TestDecodeSubmission(t *testing.T) {
	sub := &domain.Submission{
		Key:           "msg-1",
		CustomerEmail: "john@x.com",
		Subject:       "Unusual charge",
		Body:          "Charged $150",
		Channel:       domain.ChannelEmail,
	}
	data, err := json.Marshal(sub)
	require.NoError(t, err)

	t.Run("valid", func(t *testing.T) {
		got, err := DecodeSubmission(map[string]interface{}{"data": string(data)})
		require.NoError(t, err)
		assert.Equal(t, "msg-1", got.Key)
		assert.Equal(t, "Charged $150", got.Body)
	})

	tests := []struct {
		name   string
		values map[string]interface{}
	}{
		{"missing data", map[string]interface{}{"key": "x"}},
		{"not a string", map[string]interface{}{"data": 42}},
		{"bad json", map[string]interface{}{"data": "{oops"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeSubmission(tt.values)
			assert.ErrorIs(t, err, ErrMalformedMessage)
		})
	}
}

func TestDeadLetterStream(t *testing.T) {
	assert.Equal(t, "dlq:complaints:intake", DeadLetterStream(StreamIntake))
}

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func TestKafkaPublisher_Publish(t *testing.T) {
	w := &fakeWriter{}
	p := &KafkaPublisher{writer: w, topic: "triage-events"}

	err := p.Publish(context.Background(), &out.TriageEvent{
		Type:        out.EventComplaintTriaged,
		ComplaintID: 42,
		Key:         "msg-1",
		Priority:    domain.PriorityUrgent,
		OccurredAt:  time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, "42", string(msg.Key))
	assert.Equal(t, "event_type", msg.Headers[0].Key)
	assert.Equal(t, out.EventComplaintTriaged, string(msg.Headers[0].Value))

	var decoded out.TriageEvent
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, int64(42), decoded.ComplaintID)
	assert.Equal(t, domain.PriorityUrgent, decoded.Priority)
}

func TestKafkaPublisher_WrapsWriteError(t *testing.T) {
	boom := errors.New("broker down")
	p := &KafkaPublisher{writer: &fakeWriter{err: boom}, topic: "triage-events"}

	err := p.Publish(context.Background(), &out.TriageEvent{Type: out.EventComplaintEscalated, ComplaintID: 1})
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "triage-events")
}
