package out

import (
	"context"
	"errors"
	"time"

	"complaint_triage/core/domain"
)

// Port-level persistence errors. Adapters translate their own errors into
// these so services never import a driver.
var (
	ErrComplaintNotFound = errors.New("complaint not found")
	ErrDuplicateKey      = errors.New("complaint key already exists")
)

// ComplaintRepository is the durable complaint store.
type ComplaintRepository interface {
	// FindByKey returns nil, nil when no record carries key.
	FindByKey(ctx context.Context, key string) (*domain.Complaint, error)
	// Insert stores c and returns the assigned id. A taken key yields ErrDuplicateKey.
	Insert(ctx context.Context, c *domain.Complaint) (int64, error)
	// UpdateStatus sets status and, when team is non-nil, the assigned team.
	// A Resolved row is never updated and yields domain.ErrAlreadyResolved.
	UpdateStatus(ctx context.Context, id int64, status domain.ComplaintStatus, team *domain.Team) (bool, error)
	// Get returns nil, nil when id is unknown.
	Get(ctx context.Context, id int64) (*domain.Complaint, error)
	Analytics(ctx context.Context) (*domain.Analytics, error)

	// UpdateClassification overwrites the classification and routing columns.
	UpdateClassification(ctx context.Context, c *domain.Complaint) error
	// SetEscalated flags id as escalated; false when already flagged or resolved.
	SetEscalated(ctx context.Context, id int64) (bool, error)
	List(ctx context.Context, filter *domain.ComplaintFilter) ([]*domain.Complaint, int, error)
	ListResolved(ctx context.Context, since time.Time) ([]domain.ResolvedSample, error)
	Dashboard(ctx context.Context, dayStart time.Time) (*domain.DashboardStats, error)
}
