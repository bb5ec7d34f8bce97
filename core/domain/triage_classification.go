package domain

import (
	"strconv"
	"strings"
	"time"
)

// =============================================================================
// Category
// =============================================================================

// Category is the closed set of complaint categories.
type Category string

const (
	CategoryBilling   Category = "Billing Issue"
	CategoryDefect    Category = "Product Defect"
	CategoryRefund    Category = "Refund Request"
	CategoryTechnical Category = "Technical Support"
	CategoryDelivery  Category = "Delivery Problem"
	CategoryAccount   Category = "Account Issue"
	CategoryGeneral   Category = "General Inquiry"
)

// AllCategories returns every category in declaration order.
func AllCategories() []Category {
	return []Category{
		CategoryBilling,
		CategoryDefect,
		CategoryRefund,
		CategoryTechnical,
		CategoryDelivery,
		CategoryAccount,
		CategoryGeneral,
	}
}

// Valid reports whether c is a member of the category set.
func (c Category) Valid() bool {
	switch c {
	case CategoryBilling, CategoryDefect, CategoryRefund, CategoryTechnical,
		CategoryDelivery, CategoryAccount, CategoryGeneral:
		return true
	}
	return false
}

// ParseCategory matches s case-insensitively against the category set.
// Unrecognized input coerces to General Inquiry; ok reports an exact member.
func ParseCategory(s string) (c Category, ok bool) {
	s = strings.TrimSpace(s)
	for _, cat := range AllCategories() {
		if strings.EqualFold(s, string(cat)) {
			return cat, true
		}
	}
	return CategoryGeneral, false
}

// =============================================================================
// Priority
// =============================================================================

// Priority drives escalation and response windows.
type Priority string

const (
	PriorityUrgent Priority = "Urgent"
	PriorityHigh   Priority = "High"
	PriorityMedium Priority = "Medium"
	PriorityLow    Priority = "Low"
)

func AllPriorities() []Priority {
	return []Priority{PriorityUrgent, PriorityHigh, PriorityMedium, PriorityLow}
}

func (p Priority) Valid() bool {
	switch p {
	case PriorityUrgent, PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// ParsePriority coerces unknown values to Medium.
func ParsePriority(s string) (p Priority, ok bool) {
	s = strings.TrimSpace(s)
	for _, pr := range AllPriorities() {
		if strings.EqualFold(s, string(pr)) {
			return pr, true
		}
	}
	return PriorityMedium, false
}

// ResponseWindow is the promised first-response time, also used as the SLA
// threshold for resolved complaints.
func (p Priority) ResponseWindow() time.Duration {
	switch p {
	case PriorityUrgent:
		return 2 * time.Hour
	case PriorityHigh:
		return 4 * time.Hour
	case PriorityMedium:
		return 24 * time.Hour
	case PriorityLow:
		return 48 * time.Hour
	}
	return 24 * time.Hour
}

// ResponsePromise renders the window for customer-facing text.
func (p Priority) ResponsePromise() string {
	hours := int(p.ResponseWindow() / time.Hour)
	return "within " + strconv.Itoa(hours) + " hours"
}

// IsPageable reports whether the priority warrants a chat-ops page.
func (p Priority) IsPageable() bool {
	return p == PriorityUrgent || p == PriorityHigh
}

// =============================================================================
// Sentiment
// =============================================================================

type Sentiment string

const (
	SentimentAngry      Sentiment = "Angry"
	SentimentFrustrated Sentiment = "Frustrated"
	SentimentNeutral    Sentiment = "Neutral"
	SentimentSatisfied  Sentiment = "Satisfied"
)

func AllSentiments() []Sentiment {
	return []Sentiment{SentimentAngry, SentimentFrustrated, SentimentNeutral, SentimentSatisfied}
}

func (s Sentiment) Valid() bool {
	switch s {
	case SentimentAngry, SentimentFrustrated, SentimentNeutral, SentimentSatisfied:
		return true
	}
	return false
}

// ParseSentiment coerces unknown values to Neutral.
func ParseSentiment(v string) (s Sentiment, ok bool) {
	v = strings.TrimSpace(v)
	for _, st := range AllSentiments() {
		if strings.EqualFold(v, string(st)) {
			return st, true
		}
	}
	return SentimentNeutral, false
}

// =============================================================================
// Entities
// =============================================================================

// EntityKind names a structured fact pulled out of complaint text.
type EntityKind string

const (
	EntityOrderNumber   EntityKind = "order_number"
	EntityPhoneNumber   EntityKind = "phone_number"
	EntityAmount        EntityKind = "amount"
	EntityAccountNumber EntityKind = "account_number"
	EntityProductName   EntityKind = "product_name"
)

// AllEntityKinds returns the kinds in their display order.
func AllEntityKinds() []EntityKind {
	return []EntityKind{
		EntityOrderNumber,
		EntityProductName,
		EntityAmount,
		EntityPhoneNumber,
		EntityAccountNumber,
	}
}

func (k EntityKind) Valid() bool {
	switch k {
	case EntityOrderNumber, EntityPhoneNumber, EntityAmount, EntityAccountNumber, EntityProductName:
		return true
	}
	return false
}

// Entities maps kind to extracted value. Absent kinds are omitted.
type Entities map[EntityKind]string

// Merge fills kinds missing from e with values from other. Existing values win.
func (e Entities) Merge(other Entities) Entities {
	out := make(Entities, len(e)+len(other))
	for k, v := range e {
		if v != "" {
			out[k] = v
		}
	}
	for k, v := range other {
		if v == "" {
			continue
		}
		if _, exists := out[k]; !exists {
			out[k] = v
		}
	}
	return out
}

// =============================================================================
// Classification Result
// =============================================================================

// ClassificationResult is the validated output of the classifier.
type ClassificationResult struct {
	Category        Category  `json:"category"`
	Priority        Priority  `json:"priority"`
	Sentiment       Sentiment `json:"sentiment"`
	Entities        Entities  `json:"entities"`
	Summary         string    `json:"summary"`
	SuggestedAction string    `json:"suggested_action"`
	CustomerName    string    `json:"customer_name"`
}

// Valid reports whether every enumerated field is a member of its set.
func (r *ClassificationResult) Valid() bool {
	return r.Category.Valid() && r.Priority.Valid() && r.Sentiment.Valid()
}

// ClassificationSource tells primary output apart from degraded output.
type ClassificationSource string

const (
	SourcePrimary  ClassificationSource = "primary"
	SourceFallback ClassificationSource = "fallback"
)

// FallbackReason records why the primary path was abandoned.
type FallbackReason string

const (
	FallbackNone               FallbackReason = ""
	FallbackServiceUnavailable FallbackReason = "service_unavailable"
	FallbackParseFailure       FallbackReason = "parse_failure"
	FallbackValidationFailure  FallbackReason = "validation_failure"
	FallbackNotConfigured      FallbackReason = "not_configured"
)

// ClassificationOutcome is Primary(result) or Fallback(result).
type ClassificationOutcome struct {
	Result ClassificationResult `json:"result"`
	Source ClassificationSource `json:"source"`
	Reason FallbackReason       `json:"fallback_reason,omitempty"`
	// RawResponse holds the service text when one was received.
	RawResponse string        `json:"-"`
	Latency     time.Duration `json:"-"`
}

func (o ClassificationOutcome) IsFallback() bool {
	return o.Source == SourceFallback
}
