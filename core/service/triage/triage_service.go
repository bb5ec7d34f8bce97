// Package triage runs the complaint pipeline (classify, route, persist,
// notify) and the operator and analytics operations around it.
package triage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"complaint_triage/core/domain"
	"complaint_triage/core/port/in"
	"complaint_triage/core/port/out"
	"complaint_triage/core/service/notification"
	"complaint_triage/pkg/apperr"
	"complaint_triage/pkg/logger"
	"complaint_triage/pkg/metrics"
	"complaint_triage/pkg/validate"
)

// =============================================================================
// Collaborators
// =============================================================================

type Classifier interface {
	Classify(ctx context.Context, sub *domain.Submission) domain.ClassificationOutcome
}

type Router interface {
	Route(result domain.ClassificationResult, complaintID int64) domain.RoutingOutcome
}

type Notifier interface {
	Notify(ctx context.Context, d domain.RoutingDecision, c *domain.Complaint, opts notification.Options) domain.NotificationOutcome
	Escalate(ctx context.Context, c *domain.Complaint) error
}

// KeyLocker serializes concurrent work on the same idempotency key.
type KeyLocker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (release func(), ok bool, err error)
}

// Config tunes the service.
type Config struct {
	AnalyticsCacheTTL time.Duration
	KeyLockTTL        time.Duration
}

func (c Config) withDefaults() Config {
	if c.AnalyticsCacheTTL <= 0 {
		c.AnalyticsCacheTTL = 60 * time.Second
	}
	if c.KeyLockTTL <= 0 {
		c.KeyLockTTL = 2 * time.Minute
	}
	return c
}

// Deps groups the service collaborators. Repo, Classifier, Router and
// Notifier are required; the rest are optional.
type Deps struct {
	Repo       out.ComplaintRepository
	Classifier Classifier
	Router     Router
	Notifier   Notifier

	Cache   out.AnalyticsCache
	Archive out.ClassificationArchive
	Events  out.EventPublisher
	Locker  KeyLocker
	Metrics *metrics.Registry
}

// Service implements the triage, operator and analytics use cases.
type Service struct {
	repo       out.ComplaintRepository
	classifier Classifier
	router     Router
	notifier   Notifier
	cache      out.AnalyticsCache
	archive    out.ClassificationArchive
	events     out.EventPublisher
	locker     KeyLocker
	metrics    *metrics.Registry
	cfg        Config
	now        func() time.Time
	log        *logger.Logger
}

var (
	_ in.TriageUseCase    = (*Service)(nil)
	_ in.OperatorUseCase  = (*Service)(nil)
	_ in.AnalyticsUseCase = (*Service)(nil)
)

// MetricPipelineLatency is the end-to-end ClassifyAndRoute latency.
const MetricPipelineLatency = "pipeline.classify_and_route"

const analyticsCacheKey = "analytics"

// NewService wires the service.
func NewService(deps Deps, cfg Config, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Default()
	}
	reg := deps.Metrics
	if reg == nil {
		reg = metrics.NewRegistry(0)
	}
	return &Service{
		repo:       deps.Repo,
		classifier: deps.Classifier,
		router:     deps.Router,
		notifier:   deps.Notifier,
		cache:      deps.Cache,
		archive:    deps.Archive,
		events:     deps.Events,
		locker:     deps.Locker,
		metrics:    reg,
		cfg:        cfg.withDefaults(),
		now:        time.Now,
		log:        log.WithField("component", "triage"),
	}
}

// =============================================================================
// ClassifyAndRoute
// =============================================================================

// ClassifyAndRoute runs the full pipeline for one submission. A key that is
// already stored, or that another worker is processing, short-circuits with
// AlreadyProcessed and no side effects.
func (s *Service) ClassifyAndRoute(ctx context.Context, sub *domain.Submission) (*in.TriageResult, error) {
	start := s.now()
	sub.Normalize(start.UTC())
	if err := validate.Struct(sub); err != nil {
		return nil, err
	}
	log := s.log.WithContext(ctx).WithField("key", sub.Key)

	existing, err := s.repo.FindByKey(ctx, sub.Key)
	if err != nil {
		return nil, apperr.DatabaseError("find complaint by key", err)
	}
	if existing != nil {
		log.Debug("complaint already processed as #%d", existing.ID)
		return &in.TriageResult{Complaint: existing, AlreadyProcessed: true}, nil
	}

	if s.locker != nil {
		release, ok, err := s.locker.TryLock(ctx, sub.Key, s.cfg.KeyLockTTL)
		switch {
		case err != nil:
			// the unique key constraint still guards the insert
			log.WithError(err).Warn("key lock unavailable")
		case !ok:
			log.Info("complaint is being processed elsewhere")
			return &in.TriageResult{AlreadyProcessed: true}, nil
		default:
			defer release()
		}
	}

	classification := s.classifier.Classify(ctx, sub)
	routing := s.router.Route(classification.Result, 0)

	c := sub.NewComplaint()
	c.ApplyClassification(classification.Result, classification.Source, routing.Decision)
	c.CreatedAt = start.UTC()
	c.UpdatedAt = c.CreatedAt

	id, err := s.repo.Insert(ctx, c)
	if errors.Is(err, out.ErrDuplicateKey) {
		log.Info("duplicate key on insert, treating as processed")
		stored, ferr := s.repo.FindByKey(ctx, sub.Key)
		if ferr != nil {
			log.WithError(ferr).Warn("reload after duplicate failed")
		}
		return &in.TriageResult{Complaint: stored, AlreadyProcessed: true}, nil
	}
	if err != nil {
		return nil, apperr.DatabaseError("insert complaint", err)
	}
	c.ID = id
	routing.Decision.ComplaintID = id

	notified := s.notifier.Notify(ctx, routing.Decision, c, notification.Options{})
	s.markEscalated(ctx, c, notified)

	s.afterWrite(ctx, c, out.EventComplaintTriaged, "triage", &classification, &routing, &notified)

	s.metrics.Observe(MetricPipelineLatency, s.now().Sub(start))
	log.Info("complaint #%d triaged: %s / %s -> %s (%s)",
		id, c.Category, c.Priority, c.AssignedTeam, classification.Source)

	return &in.TriageResult{
		Complaint:      c,
		Classification: &classification,
		Routing:        &routing,
		Notification:   &notified,
	}, nil
}

// =============================================================================
// Reclassify
// =============================================================================

// Reclassify recomputes classification and routing for a stored complaint.
// Key, creation time and status are kept. The customer is not re-acknowledged
// and the manager is mailed only if the complaint was never escalated.
func (s *Service) Reclassify(ctx context.Context, id int64) (*in.TriageResult, error) {
	c, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	classification := s.classifier.Classify(ctx, domain.SubmissionFromComplaint(c))
	routing := s.router.Route(classification.Result, id)

	c.ApplyClassification(classification.Result, classification.Source, routing.Decision)
	c.UpdatedAt = s.now().UTC()
	if err := s.repo.UpdateClassification(ctx, c); err != nil {
		if errors.Is(err, out.ErrComplaintNotFound) {
			return nil, apperr.NotFound("complaint")
		}
		return nil, apperr.DatabaseError("update classification", err)
	}

	notified := s.notifier.Notify(ctx, routing.Decision, c, notification.Options{
		SkipAcknowledgment: true,
		SkipEscalation:     c.Escalated || !c.CanEscalate(),
	})
	s.markEscalated(ctx, c, notified)

	s.afterWrite(ctx, c, out.EventComplaintReclassified, "reclassify", &classification, &routing, &notified)
	s.log.WithContext(ctx).Info("complaint #%d reclassified: %s / %s -> %s",
		id, c.Category, c.Priority, c.AssignedTeam)

	return &in.TriageResult{
		Complaint:      c,
		Classification: &classification,
		Routing:        &routing,
		Notification:   &notified,
	}, nil
}

// markEscalated sets the escalated flag once manager mail went out.
func (s *Service) markEscalated(ctx context.Context, c *domain.Complaint, n domain.NotificationOutcome) {
	if !n.EscalationSent || c.Escalated {
		return
	}
	if _, err := s.repo.SetEscalated(ctx, c.ID); err != nil {
		s.log.WithContext(ctx).WithError(err).Warn("failed to flag complaint #%d escalated", c.ID)
		return
	}
	c.Escalated = true
}

// afterWrite runs the best-effort side effects of a stored change. None of
// them can fail the operation.
func (s *Service) afterWrite(
	ctx context.Context,
	c *domain.Complaint,
	eventType, operation string,
	classification *domain.ClassificationOutcome,
	routing *domain.RoutingOutcome,
	notified *domain.NotificationOutcome,
) {
	log := s.log.WithContext(ctx).WithField("complaint_id", c.ID)

	s.invalidateAnalytics(ctx)

	if s.archive != nil && classification != nil {
		audit := &out.ClassificationAudit{
			ComplaintID:    c.ID,
			Key:            c.Key,
			Operation:      operation,
			Source:         classification.Source,
			FallbackReason: classification.Reason,
			Result:         classification.Result,
			RawResponse:    classification.RawResponse,
			LatencyMS:      classification.Latency.Milliseconds(),
			Notification:   notified,
			RecordedAt:     s.now().UTC(),
		}
		if routing != nil {
			audit.Routing = routing.Decision
		}
		if err := s.archive.Record(ctx, audit); err != nil {
			log.WithError(err).Warn("classification audit not recorded")
		}
	}

	if s.events != nil {
		ev := &out.TriageEvent{
			Type:        eventType,
			ComplaintID: c.ID,
			Key:         c.Key,
			Category:    c.Category,
			Priority:    c.Priority,
			Team:        c.AssignedTeam,
			Status:      c.Status,
			OccurredAt:  s.now().UTC(),
		}
		if routing != nil {
			ev.Fallback = routing.Fallback
		}
		if classification != nil && classification.IsFallback() {
			ev.Fallback = true
		}
		if err := s.events.Publish(ctx, ev); err != nil {
			log.WithError(err).Warn("event %s not published", eventType)
		}
	}
}

func (s *Service) invalidateAnalytics(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, analyticsCacheKey); err != nil {
		s.log.WithContext(ctx).WithError(err).Warn("analytics cache not invalidated")
	}
}

// load fetches id or returns a NOT_FOUND AppError.
func (s *Service) load(ctx context.Context, id int64) (*domain.Complaint, error) {
	if id <= 0 {
		return nil, apperr.InvalidInput("id", "must be a positive integer")
	}
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, apperr.DatabaseError(fmt.Sprintf("get complaint %d", id), err)
	}
	if c == nil {
		return nil, apperr.NotFound("complaint")
	}
	return c, nil
}
