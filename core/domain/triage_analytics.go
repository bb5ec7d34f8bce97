package domain

import "time"

// =============================================================================
// Analytics - 집계 결과
// =============================================================================

// Analytics is the aggregate view over all stored complaints.
type Analytics struct {
	Total            int64            `json:"total"`
	ByCategory       map[string]int64 `json:"by_category"`
	ByPriority       map[string]int64 `json:"by_priority"`
	ByStatus         map[string]int64 `json:"by_status"`
	ByTeam           map[string]int64 `json:"by_team"`
	AvgResponseHours float64          `json:"avg_response_hours"`
	RecentCount      int64            `json:"recent_count"`
	GeneratedAt      time.Time        `json:"generated_at"`
}

// ResolvedSample is the minimum needed to judge one resolved complaint
// against its SLA threshold.
type ResolvedSample struct {
	Priority   Priority
	CreatedAt  time.Time
	ResolvedAt time.Time
}

// ResponseHours is the elapsed time between creation and resolution.
func (s ResolvedSample) ResponseHours() float64 {
	return s.ResolvedAt.Sub(s.CreatedAt).Hours()
}

// SLAPriorityStats is the SLA breakdown for one priority.
type SLAPriorityStats struct {
	Priority       Priority `json:"priority"`
	ThresholdHours float64  `json:"threshold_hours"`
	Resolved       int      `json:"resolved"`
	Compliant      int      `json:"compliant"`
	Rate           float64  `json:"rate"`
}

// SLAReport is the compliance summary over resolved complaints.
type SLAReport struct {
	Resolved    int                `json:"resolved"`
	Compliant   int                `json:"compliant"`
	Rate        float64            `json:"rate"`
	ByPriority  []SLAPriorityStats `json:"by_priority"`
	GeneratedAt time.Time          `json:"generated_at"`
}

// DashboardStats feeds the operator overview tiles.
type DashboardStats struct {
	Total            int64   `json:"total"`
	Today            int64   `json:"today"`
	Pending          int64   `json:"pending"`
	Escalated        int64   `json:"escalated"`
	AvgResponseHours float64 `json:"avg_response_hours"`
	SLARate          float64 `json:"sla_rate"`
}
