package http

import (
	"github.com/gofiber/fiber/v2"

	"complaint_triage/core/port/in"
	"complaint_triage/pkg/metrics"
	"complaint_triage/pkg/response"
)

// AnalyticsHandler serves the aggregate views and classifier metrics.
type AnalyticsHandler struct {
	analytics in.AnalyticsUseCase
	metrics   *metrics.Registry
}

func NewAnalyticsHandler(analytics in.AnalyticsUseCase, reg *metrics.Registry) *AnalyticsHandler {
	return &AnalyticsHandler{analytics: analytics, metrics: reg}
}

func (h *AnalyticsHandler) Register(router fiber.Router) {
	router.Get("/analytics", h.Analytics)
	router.Get("/dashboard/stats", h.Dashboard)
	router.Get("/dashboard/sla", h.SLA)
	router.Get("/metrics/classifier", h.ClassifierMetrics)
}

func (h *AnalyticsHandler) Analytics(c *fiber.Ctx) error {
	a, err := h.analytics.Analytics(c.UserContext())
	if err != nil {
		return err
	}
	return response.OK(c, a)
}

func (h *AnalyticsHandler) Dashboard(c *fiber.Ctx) error {
	d, err := h.analytics.Dashboard(c.UserContext())
	if err != nil {
		return err
	}
	return response.OK(c, d)
}

func (h *AnalyticsHandler) SLA(c *fiber.Ctx) error {
	r, err := h.analytics.SLA(c.UserContext())
	if err != nil {
		return err
	}
	return response.OK(c, r)
}

// ClassifierMetrics reports latency percentiles and source counters.
func (h *AnalyticsHandler) ClassifierMetrics(c *fiber.Ctx) error {
	if h.metrics == nil {
		return response.OK(c, fiber.Map{})
	}
	return response.OK(c, h.metrics.Snapshot())
}
