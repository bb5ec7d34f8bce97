package out

import (
	"context"
	"time"

	"complaint_triage/core/domain"
)

// LLMClient is the text-completion service used for primary classification.
type LLMClient interface {
	CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// MailMessage is a plain-text outbound email.
type MailMessage struct {
	To      []string
	Subject string
	Body    string
}

// MailSender delivers plain-text email.
type MailSender interface {
	Send(ctx context.Context, msg *MailMessage) error
}

// WebhookPoster posts a JSON payload to an incoming-webhook URL.
type WebhookPoster interface {
	PostJSON(ctx context.Context, url string, payload any) error
}

// AnalyticsCache stores aggregate views between recomputations.
type AnalyticsCache interface {
	GetJSON(ctx context.Context, key string, dest interface{}) (bool, error)
	SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// =============================================================================
// Audit & Events
// =============================================================================

// ClassificationAudit is one classification attempt kept for review.
type ClassificationAudit struct {
	ComplaintID    int64                       `json:"complaint_id" bson:"complaint_id"`
	Key            string                      `json:"key" bson:"key"`
	Operation      string                      `json:"operation" bson:"operation"`
	Source         domain.ClassificationSource `json:"source" bson:"source"`
	FallbackReason domain.FallbackReason       `json:"fallback_reason,omitempty" bson:"fallback_reason,omitempty"`
	Result         domain.ClassificationResult `json:"result" bson:"result"`
	RawResponse    string                      `json:"raw_response,omitempty" bson:"raw_response,omitempty"`
	LatencyMS      int64                       `json:"latency_ms" bson:"latency_ms"`
	Routing        domain.RoutingDecision      `json:"routing" bson:"routing"`
	Notification   *domain.NotificationOutcome `json:"notification,omitempty" bson:"notification,omitempty"`
	RecordedAt     time.Time                   `json:"recorded_at" bson:"recorded_at"`
}

// ClassificationArchive keeps an append-only audit of classification attempts.
type ClassificationArchive interface {
	Record(ctx context.Context, audit *ClassificationAudit) error
	ListByComplaint(ctx context.Context, complaintID int64, limit int) ([]*ClassificationAudit, error)
}

// Triage event types.
const (
	EventComplaintTriaged       = "complaint.triaged"
	EventComplaintReclassified  = "complaint.reclassified"
	EventComplaintStatusChanged = "complaint.status_changed"
	EventComplaintEscalated     = "complaint.escalated"
)

// TriageEvent is published after a complaint changes.
type TriageEvent struct {
	Type        string                 `json:"type"`
	ComplaintID int64                  `json:"complaint_id"`
	Key         string                 `json:"key"`
	Category    domain.Category        `json:"category,omitempty"`
	Priority    domain.Priority        `json:"priority,omitempty"`
	Team        domain.Team            `json:"team,omitempty"`
	Status      domain.ComplaintStatus `json:"status,omitempty"`
	Fallback    bool                   `json:"fallback,omitempty"`
	OccurredAt  time.Time              `json:"occurred_at"`
}

// EventPublisher emits triage events to downstream consumers.
type EventPublisher interface {
	Publish(ctx context.Context, event *TriageEvent) error
}

// IntakeQueue buffers submissions for the batch worker.
type IntakeQueue interface {
	Enqueue(ctx context.Context, sub *domain.Submission) (string, error)
}
