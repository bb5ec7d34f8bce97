package in

import (
	"context"

	"complaint_triage/core/domain"
)

// TriageUseCase is the pipeline entry point used by the API and the intake worker.
type TriageUseCase interface {
	// ClassifyAndRoute runs extract → classify → route → persist → notify.
	// A key that was already processed returns AlreadyProcessed with no side effects.
	ClassifyAndRoute(ctx context.Context, sub *domain.Submission) (*TriageResult, error)
	// Reclassify recomputes classification and routing for a stored complaint.
	Reclassify(ctx context.Context, id int64) (*TriageResult, error)
}

// OperatorUseCase covers the operator-facing lifecycle operations.
type OperatorUseCase interface {
	Get(ctx context.Context, id int64) (*domain.Complaint, error)
	List(ctx context.Context, filter *domain.ComplaintFilter) (*domain.ComplaintPage, error)
	UpdateStatus(ctx context.Context, id int64, req *StatusUpdate) (*domain.Complaint, error)
	Resolve(ctx context.Context, id int64) (*domain.Complaint, error)
	Escalate(ctx context.Context, id int64) (*EscalationResult, error)
}

// AnalyticsUseCase exposes the aggregate views.
type AnalyticsUseCase interface {
	Analytics(ctx context.Context) (*domain.Analytics, error)
	Dashboard(ctx context.Context) (*domain.DashboardStats, error)
	SLA(ctx context.Context) (*domain.SLAReport, error)
}

// TriageResult is the shape returned by both pipeline entry points.
type TriageResult struct {
	Complaint        *domain.Complaint             `json:"complaint"`
	Classification   *domain.ClassificationOutcome `json:"classification,omitempty"`
	Routing          *domain.RoutingOutcome        `json:"routing,omitempty"`
	Notification     *domain.NotificationOutcome   `json:"notification,omitempty"`
	AlreadyProcessed bool                          `json:"already_processed"`
}

// StatusUpdate is an operator status change with optional reassignment.
type StatusUpdate struct {
	Status       domain.ComplaintStatus `json:"status"`
	AssignedTeam *domain.Team           `json:"assigned_team,omitempty"`
}

// EscalationResult reports a manual escalation.
type EscalationResult struct {
	Complaint      *domain.Complaint `json:"complaint"`
	EscalationSent bool              `json:"escalation_sent"`
}
