package triage

import (
	"context"
	"math"
	"time"

	"complaint_triage/core/domain"
	"complaint_triage/pkg/apperr"
)

// =============================================================================
// Analytics
// =============================================================================

// Analytics returns the aggregate view, served from cache when fresh.
func (s *Service) Analytics(ctx context.Context) (*domain.Analytics, error) {
	if s.cache != nil {
		var cached domain.Analytics
		hit, err := s.cache.GetJSON(ctx, analyticsCacheKey, &cached)
		if err != nil {
			s.log.WithContext(ctx).WithError(err).Warn("analytics cache read failed")
		}
		if hit {
			return &cached, nil
		}
	}

	a, err := s.repo.Analytics(ctx)
	if err != nil {
		return nil, apperr.DatabaseError("analytics", err)
	}
	a.AvgResponseHours = round2(a.AvgResponseHours)
	a.GeneratedAt = s.now().UTC()

	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, analyticsCacheKey, a, s.cfg.AnalyticsCacheTTL); err != nil {
			s.log.WithContext(ctx).WithError(err).Warn("analytics cache write failed")
		}
	}
	return a, nil
}

// Dashboard returns the operator overview tiles.
func (s *Service) Dashboard(ctx context.Context) (*domain.DashboardStats, error) {
	now := s.now().UTC()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	stats, err := s.repo.Dashboard(ctx, dayStart)
	if err != nil {
		return nil, apperr.DatabaseError("dashboard", err)
	}
	report, err := s.SLA(ctx)
	if err != nil {
		return nil, err
	}
	stats.AvgResponseHours = round2(stats.AvgResponseHours)
	stats.SLARate = report.Rate
	return stats, nil
}

// SLA computes compliance over every resolved complaint.
func (s *Service) SLA(ctx context.Context) (*domain.SLAReport, error) {
	samples, err := s.repo.ListResolved(ctx, time.Time{})
	if err != nil {
		return nil, apperr.DatabaseError("list resolved", err)
	}
	report := ComputeSLA(samples)
	report.GeneratedAt = s.now().UTC()
	return report, nil
}

// ComputeSLA scores samples against their priority response window. A
// sample is compliant when resolved within the window. With no resolved
// complaints the rate is 100.
func ComputeSLA(samples []domain.ResolvedSample) *domain.SLAReport {
	byPriority := make(map[domain.Priority]*domain.SLAPriorityStats, 4)
	for _, p := range domain.AllPriorities() {
		byPriority[p] = &domain.SLAPriorityStats{
			Priority:       p,
			ThresholdHours: p.ResponseWindow().Hours(),
		}
	}

	report := &domain.SLAReport{}
	for _, sample := range samples {
		p := sample.Priority
		if !p.Valid() {
			p = domain.PriorityMedium
		}
		st := byPriority[p]
		st.Resolved++
		report.Resolved++
		if sample.ResponseHours() <= st.ThresholdHours {
			st.Compliant++
			report.Compliant++
		}
	}

	report.Rate = rate(report.Compliant, report.Resolved)
	for _, p := range domain.AllPriorities() {
		st := byPriority[p]
		st.Rate = rate(st.Compliant, st.Resolved)
		report.ByPriority = append(report.ByPriority, *st)
	}
	return report
}

func rate(compliant, resolved int) float64 {
	if resolved == 0 {
		return 100
	}
	return round2(float64(compliant) / float64(resolved) * 100)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
