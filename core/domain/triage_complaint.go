package domain

import (
	"errors"
	"time"
)

// =============================================================================
// Complaint
// =============================================================================

// Complaint is the persisted triage record. Key is the external idempotency
// key (mail message id or form submission id); ID is assigned by storage.
type Complaint struct {
	ID            int64     `json:"id"`
	Key           string    `json:"key"`
	CustomerName  string    `json:"customer_name"`
	CustomerEmail string    `json:"customer_email"`
	Subject       string    `json:"subject"`
	Body          string    `json:"body"`
	Channel       Channel   `json:"channel"`
	ReceivedAt    time.Time `json:"received_at"`

	// Classification
	Category        Category             `json:"category"`
	Priority        Priority             `json:"priority"`
	Sentiment       Sentiment            `json:"sentiment"`
	Entities        Entities             `json:"entities,omitempty"`
	Summary         string               `json:"summary"`
	SuggestedAction string               `json:"suggested_action"`
	Source          ClassificationSource `json:"classification_source"`

	// Routing
	AssignedTeam      Team               `json:"assigned_team"`
	EscalationActions []EscalationAction `json:"escalation_actions"`

	Status    ComplaintStatus `json:"status"`
	Escalated bool            `json:"escalated"`

	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}

// Channel is the intake surface a complaint arrived through.
type Channel string

const (
	ChannelEmail   Channel = "email"
	ChannelWebForm Channel = "web_form"
	ChannelAPI     Channel = "api"
)

// ApplyClassification overwrites the classification-derived fields. Key,
// creation time and status stay fixed.
func (c *Complaint) ApplyClassification(result ClassificationResult, source ClassificationSource, decision RoutingDecision) {
	c.Category = result.Category
	c.Priority = result.Priority
	c.Sentiment = result.Sentiment
	c.Entities = result.Entities
	c.Summary = result.Summary
	c.SuggestedAction = result.SuggestedAction
	c.Source = source
	c.AssignedTeam = decision.AssignedTeam
	c.EscalationActions = decision.EscalationActions
	if result.CustomerName != "" && result.CustomerName != UnknownCustomer {
		c.CustomerName = result.CustomerName
	}
}

// Sender renders the "Name <email>" form used as classifier metadata.
func (c *Complaint) Sender() string {
	if c.CustomerName == "" || c.CustomerName == UnknownCustomer {
		return c.CustomerEmail
	}
	return c.CustomerName + " <" + c.CustomerEmail + ">"
}

// UnknownCustomer is the placeholder name when none can be derived.
const UnknownCustomer = "Unknown"

// =============================================================================
// Status State Machine
// =============================================================================

// ComplaintStatus is the operator-visible lifecycle state. Escalation is a
// separate flag on Complaint, not a status.
type ComplaintStatus string

const (
	StatusNew        ComplaintStatus = "New"
	StatusInProgress ComplaintStatus = "In Progress"
	StatusAssigned   ComplaintStatus = "Assigned"
	StatusResolved   ComplaintStatus = "Resolved"
)

var (
	ErrInvalidStatus     = errors.New("invalid complaint status")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrAlreadyResolved   = errors.New("complaint already resolved")
)

func (s ComplaintStatus) Valid() bool {
	switch s {
	case StatusNew, StatusInProgress, StatusAssigned, StatusResolved:
		return true
	}
	return false
}

// CanTransitionTo reports whether s → next is allowed. Re-applying the
// current status is a no-op and allowed except on Resolved.
func (s ComplaintStatus) CanTransitionTo(next ComplaintStatus) bool {
	if !next.Valid() {
		return false
	}
	switch s {
	case StatusNew:
		return true
	case StatusInProgress, StatusAssigned:
		return next != StatusNew
	case StatusResolved:
		return false
	}
	return false
}

// CheckTransition returns the sentinel error for a disallowed transition.
func (s ComplaintStatus) CheckTransition(next ComplaintStatus) error {
	if !next.Valid() {
		return ErrInvalidStatus
	}
	if s == StatusResolved {
		return ErrAlreadyResolved
	}
	if !s.CanTransitionTo(next) {
		return ErrInvalidTransition
	}
	return nil
}

// CanEscalate reports whether the escalated flag may still be set.
func (c *Complaint) CanEscalate() bool {
	return c.Status != StatusResolved
}

// =============================================================================
// Query
// =============================================================================

// ComplaintFilter drives the operator list view.
type ComplaintFilter struct {
	Status   ComplaintStatus
	Priority Priority
	Category Category
	Team     Team
	Search   string
	Limit    int
	Offset   int
}

// ComplaintPage is one page of a filtered listing.
type ComplaintPage struct {
	Complaints []*Complaint `json:"complaints"`
	Total      int          `json:"total"`
	Page       int          `json:"page"`
	Limit      int          `json:"limit"`
	TotalPages int          `json:"total_pages"`
}
