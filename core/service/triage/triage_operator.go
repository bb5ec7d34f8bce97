package triage

import (
	"context"
	"errors"
	"strings"

	"complaint_triage/core/domain"
	"complaint_triage/core/port/in"
	"complaint_triage/core/port/out"
	"complaint_triage/pkg/apperr"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Get returns one complaint.
func (s *Service) Get(ctx context.Context, id int64) (*domain.Complaint, error) {
	return s.load(ctx, id)
}

// List returns one page of complaints matching filter.
func (s *Service) List(ctx context.Context, filter *domain.ComplaintFilter) (*domain.ComplaintPage, error) {
	f := domain.ComplaintFilter{}
	if filter != nil {
		f = *filter
	}
	if f.Status != "" && !f.Status.Valid() {
		return nil, apperr.InvalidInput("status", "unknown status")
	}
	if f.Priority != "" && !f.Priority.Valid() {
		return nil, apperr.InvalidInput("priority", "unknown priority")
	}
	if f.Category != "" && !f.Category.Valid() {
		return nil, apperr.InvalidInput("category", "unknown category")
	}
	if f.Team != "" && !f.Team.Valid() {
		return nil, apperr.InvalidInput("team", "unknown team")
	}
	f.Search = strings.TrimSpace(f.Search)
	if f.Limit <= 0 {
		f.Limit = defaultPageSize
	}
	if f.Limit > maxPageSize {
		f.Limit = maxPageSize
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	complaints, total, err := s.repo.List(ctx, &f)
	if err != nil {
		return nil, apperr.DatabaseError("list complaints", err)
	}
	if complaints == nil {
		complaints = []*domain.Complaint{}
	}

	totalPages := total / f.Limit
	if total%f.Limit != 0 {
		totalPages++
	}
	return &domain.ComplaintPage{
		Complaints: complaints,
		Total:      total,
		Page:       f.Offset/f.Limit + 1,
		Limit:      f.Limit,
		TotalPages: totalPages,
	}, nil
}

// UpdateStatus moves a complaint through the lifecycle and optionally
// reassigns it.
func (s *Service) UpdateStatus(ctx context.Context, id int64, req *in.StatusUpdate) (*domain.Complaint, error) {
	if req == nil || req.Status == "" {
		return nil, apperr.MissingField("status")
	}
	if !req.Status.Valid() {
		return nil, apperr.InvalidInput("status", "must be one of New, In Progress, Assigned, Resolved")
	}
	if req.AssignedTeam != nil && !req.AssignedTeam.Valid() {
		return nil, apperr.InvalidInput("assigned_team", "unknown team")
	}

	c, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := c.Status.CheckTransition(req.Status); err != nil {
		return nil, apperr.InvalidTransition(string(c.Status), string(req.Status), err)
	}

	ok, err := s.repo.UpdateStatus(ctx, id, req.Status, req.AssignedTeam)
	if errors.Is(err, domain.ErrAlreadyResolved) {
		return nil, apperr.InvalidTransition(string(domain.StatusResolved), string(req.Status), err)
	}
	if err != nil {
		return nil, apperr.DatabaseError("update status", err)
	}
	if !ok {
		return nil, apperr.NotFound("complaint")
	}

	from := c.Status
	c.Status = req.Status
	if req.AssignedTeam != nil {
		c.AssignedTeam = *req.AssignedTeam
	}
	c.UpdatedAt = s.now().UTC()
	if c.Status == domain.StatusResolved {
		resolvedAt := c.UpdatedAt
		c.ResolvedAt = &resolvedAt
	}

	s.afterWrite(ctx, c, out.EventComplaintStatusChanged, "status", nil, nil, nil)
	s.log.WithContext(ctx).Info("complaint #%d status %s -> %s", id, from, c.Status)
	return c, nil
}

// Resolve is UpdateStatus to Resolved.
func (s *Service) Resolve(ctx context.Context, id int64) (*domain.Complaint, error) {
	return s.UpdateStatus(ctx, id, &in.StatusUpdate{Status: domain.StatusResolved})
}

// Escalate mails the manager and then flags the complaint as escalated. The
// flag is left unset when the mail fails. A complaint that is already
// escalated is returned unchanged without new mail.
func (s *Service) Escalate(ctx context.Context, id int64) (*in.EscalationResult, error) {
	c, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !c.CanEscalate() {
		return nil, apperr.InvalidTransition(string(c.Status), "Escalated", domain.ErrAlreadyResolved)
	}
	if c.Escalated {
		return &in.EscalationResult{Complaint: c}, nil
	}

	// 메일 실패 시 플래그를 남기지 않음 (재분류 때 다시 에스컬레이션)
	if err := s.notifier.Escalate(ctx, c); err != nil {
		s.log.WithContext(ctx).WithError(err).Warn("escalation mail for #%d failed", id)
		return &in.EscalationResult{Complaint: c}, nil
	}

	flagged, err := s.repo.SetEscalated(ctx, id)
	if err != nil {
		if errors.Is(err, out.ErrComplaintNotFound) {
			return nil, apperr.NotFound("complaint")
		}
		return nil, apperr.DatabaseError("set escalated", err)
	}
	if !flagged {
		// lost a race with another escalation or a resolve
		return &in.EscalationResult{Complaint: c, EscalationSent: true}, nil
	}
	c.Escalated = true
	c.UpdatedAt = s.now().UTC()

	s.afterWrite(ctx, c, out.EventComplaintEscalated, "escalate", nil, nil, nil)
	return &in.EscalationResult{Complaint: c, EscalationSent: true}, nil
}
