// Package routing assigns a handling team and escalation path to a
// classified complaint.
package routing

import (
	"fmt"
	"time"

	"complaint_triage/core/domain"
	"complaint_triage/pkg/logger"
)

// Router is a pure function of (category, priority) apart from the
// routed_at timestamp.
type Router struct {
	dir domain.TeamDirectory
	now func() time.Time
	log *logger.Logger
}

// NewRouter creates a router over dir.
func NewRouter(dir domain.TeamDirectory, log *logger.Logger) *Router {
	if log == nil {
		log = logger.Default()
	}
	return &Router{dir: dir, now: time.Now, log: log.WithField("component", "router")}
}

// Route computes the decision for result. It never fails: any lookup error
// or panic yields the routed_fallback decision.
func (r *Router) Route(result domain.ClassificationResult, complaintID int64) (outcome domain.RoutingOutcome) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("routing panic for complaint %d: %v", complaintID, rec)
			outcome = r.fallback(complaintID)
		}
	}()

	team, err := TeamFor(result.Category)
	if err != nil {
		r.log.WithError(err).Warn("routing complaint %d to fallback team", complaintID)
		return r.fallback(complaintID)
	}
	actions, err := EscalationFor(result.Priority)
	if err != nil {
		r.log.WithError(err).Warn("routing complaint %d to fallback team", complaintID)
		return r.fallback(complaintID)
	}

	decision := domain.RoutingDecision{
		ComplaintID:       complaintID,
		AssignedTeam:      team,
		TeamContact:       r.dir.Contact(team),
		EscalationActions: actions,
		Priority:          result.Priority,
		RoutedAt:          r.now().UTC(),
		Status:            domain.RoutingStatusRouted,
	}
	r.log.Debug("routed complaint %d to %s (%s)", complaintID, team, result.Priority)
	return domain.RoutingOutcome{Decision: decision}
}

// fallback is the fixed degraded decision. Priority is reset to Medium.
func (r *Router) fallback(complaintID int64) domain.RoutingOutcome {
	return domain.RoutingOutcome{
		Decision: domain.RoutingDecision{
			ComplaintID:       complaintID,
			AssignedTeam:      domain.TeamGeneralSupport,
			TeamContact:       r.dir.Contact(domain.TeamGeneralSupport),
			EscalationActions: []domain.EscalationAction{domain.EscalateTeam},
			Priority:          domain.PriorityMedium,
			RoutedAt:          r.now().UTC(),
			Status:            domain.RoutingStatusFallback,
		},
		Fallback: true,
	}
}

// =============================================================================
// Lookup tables
// =============================================================================

// TeamFor maps a category to its handling team.
func TeamFor(c domain.Category) (domain.Team, error) {
	switch c {
	case domain.CategoryBilling:
		return domain.TeamBilling, nil
	case domain.CategoryDefect:
		return domain.TeamTechnical, nil
	case domain.CategoryRefund:
		return domain.TeamRefunds, nil
	case domain.CategoryTechnical:
		return domain.TeamTechnical, nil
	case domain.CategoryDelivery:
		return domain.TeamDelivery, nil
	case domain.CategoryAccount:
		return domain.TeamAccount, nil
	case domain.CategoryGeneral:
		return domain.TeamGeneralSupport, nil
	}
	return "", fmt.Errorf("no team for category %q", c)
}

// EscalationFor maps a priority to its ordered escalation actions. A fresh
// slice is returned on every call.
func EscalationFor(p domain.Priority) ([]domain.EscalationAction, error) {
	switch p {
	case domain.PriorityUrgent:
		return []domain.EscalationAction{domain.EscalateManager, domain.EscalateTeam}, nil
	case domain.PriorityHigh:
		return []domain.EscalationAction{domain.EscalateManager}, nil
	case domain.PriorityMedium:
		return []domain.EscalationAction{domain.EscalateTeam}, nil
	case domain.PriorityLow:
		return []domain.EscalationAction{domain.EscalateTeam}, nil
	}
	return nil, fmt.Errorf("no escalation rule for priority %q", p)
}
