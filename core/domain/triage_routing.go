package domain

import "time"

// =============================================================================
// Teams & Escalation
// =============================================================================

// Team is a handling team name.
type Team string

const (
	TeamBilling        Team = "Billing Team"
	TeamTechnical      Team = "Technical Team"
	TeamRefunds        Team = "Refunds Team"
	TeamDelivery       Team = "Delivery Team"
	TeamAccount        Team = "Account Team"
	TeamGeneralSupport Team = "General Support Team"
	// TeamManagement is the addressee of escalation mail, never an assignment.
	TeamManagement Team = "Management"
)

// AllTeams lists the assignable teams.
func AllTeams() []Team {
	return []Team{TeamBilling, TeamTechnical, TeamRefunds, TeamDelivery, TeamAccount, TeamGeneralSupport}
}

func (t Team) Valid() bool {
	switch t {
	case TeamBilling, TeamTechnical, TeamRefunds, TeamDelivery, TeamAccount, TeamGeneralSupport:
		return true
	}
	return false
}

// EscalationAction is who gets notified for a routed complaint.
type EscalationAction string

const (
	EscalateTeam    EscalationAction = "team"
	EscalateManager EscalationAction = "manager"
)

// RoutingStatus distinguishes table routing from the degraded default.
type RoutingStatus string

const (
	RoutingStatusRouted   RoutingStatus = "routed"
	RoutingStatusFallback RoutingStatus = "routed_fallback"
)

// =============================================================================
// Routing Decision
// =============================================================================

// RoutingDecision augments a complaint; it is not stored on its own.
type RoutingDecision struct {
	ComplaintID       int64              `json:"complaint_id,omitempty"`
	AssignedTeam      Team               `json:"assigned_team"`
	TeamContact       string             `json:"team_contact"`
	EscalationActions []EscalationAction `json:"escalation_actions"`
	Priority          Priority           `json:"priority"`
	RoutedAt          time.Time          `json:"routed_at"`
	Status            RoutingStatus      `json:"status"`
}

// Has reports whether action is part of the escalation set.
func (d *RoutingDecision) Has(action EscalationAction) bool {
	for _, a := range d.EscalationActions {
		if a == action {
			return true
		}
	}
	return false
}

// RoutingOutcome is Routed(decision) or RoutedFallback(decision).
type RoutingOutcome struct {
	Decision RoutingDecision `json:"decision"`
	Fallback bool            `json:"fallback"`
}

// =============================================================================
// Team Directory
// =============================================================================

// TeamDirectory maps teams to their notification addresses. It is built once
// from configuration and passed to the router and notifier.
type TeamDirectory struct {
	Teams   map[Team]string `yaml:"teams" json:"teams"`
	Manager string          `yaml:"manager" json:"manager"`
}

// DefaultTeamDirectory holds placeholder addresses for local runs.
func DefaultTeamDirectory() TeamDirectory {
	return TeamDirectory{
		Teams: map[Team]string{
			TeamBilling:        "billing@company.com",
			TeamTechnical:      "tech@company.com",
			TeamRefunds:        "refunds@company.com",
			TeamDelivery:       "delivery@company.com",
			TeamAccount:        "accounts@company.com",
			TeamGeneralSupport: "support@company.com",
		},
		Manager: "manager@company.com",
	}
}

// Contact returns the address for t, falling back to general support.
func (d TeamDirectory) Contact(t Team) string {
	if addr := d.Teams[t]; addr != "" {
		return addr
	}
	return d.Teams[TeamGeneralSupport]
}
