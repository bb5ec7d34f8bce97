// Package http exposes the triage pipeline and operator operations over fiber.
package http

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"complaint_triage/core/domain"
	"complaint_triage/core/port/in"
	"complaint_triage/core/port/out"
	"complaint_triage/pkg/apperr"
	"complaint_triage/pkg/logger"
	"complaint_triage/pkg/response"
	"complaint_triage/pkg/validate"
)

// WebFormKeyPrefix prefixes generated keys for web-form submissions.
const WebFormKeyPrefix = "web-form-"

// KeyGenerator issues unique keys for submissions that arrive without one.
type KeyGenerator interface {
	Key(prefix string) (string, error)
}

// ComplaintHandler serves /complaints.
type ComplaintHandler struct {
	triage in.TriageUseCase
	ops    in.OperatorUseCase
	intake out.IntakeQueue
	keys   KeyGenerator
}

// NewComplaintHandler creates the handler. intake may be nil when no
// queue is configured; the intake route then answers 503.
func NewComplaintHandler(triage in.TriageUseCase, ops in.OperatorUseCase, intake out.IntakeQueue, keys KeyGenerator) *ComplaintHandler {
	return &ComplaintHandler{triage: triage, ops: ops, intake: intake, keys: keys}
}

// Register mounts the routes. auth guards the mutating operator routes;
// intakeLimit throttles public submissions.
func (h *ComplaintHandler) Register(router fiber.Router, auth, intakeLimit fiber.Handler) {
	complaints := router.Group("/complaints")

	complaints.Post("/", intakeLimit, h.Create)
	complaints.Post("/intake", intakeLimit, h.Enqueue)
	complaints.Get("/", h.List)
	complaints.Get("/:id", h.Get)

	complaints.Put("/:id", auth, h.UpdateStatus)
	complaints.Post("/:id/resolve", auth, h.Resolve)
	complaints.Post("/:id/escalate", auth, h.Escalate)
	complaints.Post("/:id/reclassify", auth, h.Reclassify)
}

// =============================================================================
// Request DTOs
// =============================================================================

// ComplaintRequest is the body of POST /complaints and /complaints/intake.
type ComplaintRequest struct {
	Key           string         `json:"key"`
	MessageID     string         `json:"message_id"`
	CustomerName  string         `json:"customer_name"`
	CustomerEmail string         `json:"customer_email"`
	Sender        string         `json:"sender"`
	Subject       string         `json:"subject"`
	Body          string         `json:"body"`
	Channel       domain.Channel `json:"channel"`
}

func (h *ComplaintHandler) submission(c *fiber.Ctx) (*domain.Submission, error) {
	var req ComplaintRequest
	if err := c.BodyParser(&req); err != nil {
		return nil, apperr.BadRequest("invalid request body")
	}

	key := strings.TrimSpace(req.Key)
	if key == "" {
		key = strings.TrimSpace(req.MessageID)
	}

	switch req.Channel {
	case "":
		if key == "" {
			req.Channel = domain.ChannelWebForm
		}
	case domain.ChannelEmail, domain.ChannelWebForm, domain.ChannelAPI:
	default:
		return nil, apperr.InvalidInput("channel", "must be one of email, web_form, api")
	}

	if key == "" && req.Channel == domain.ChannelWebForm && h.keys != nil {
		generated, err := h.keys.Key(WebFormKeyPrefix)
		if err != nil {
			return nil, apperr.InternalWithError(err)
		}
		key = generated
	}

	return &domain.Submission{
		Key:           key,
		CustomerName:  req.CustomerName,
		CustomerEmail: req.CustomerEmail,
		Sender:        req.Sender,
		Subject:       req.Subject,
		Body:          req.Body,
		Channel:       req.Channel,
	}, nil
}

// =============================================================================
// Pipeline
// =============================================================================

// Create runs the pipeline synchronously.
func (h *ComplaintHandler) Create(c *fiber.Ctx) error {
	sub, err := h.submission(c)
	if err != nil {
		return err
	}

	res, err := h.triage.ClassifyAndRoute(c.UserContext(), sub)
	if err != nil {
		return err
	}
	if res.AlreadyProcessed {
		return response.OK(c, res)
	}
	return response.Created(c, res)
}

// IntakeReceipt is returned by the async intake route.
type IntakeReceipt struct {
	MessageID  string    `json:"message_id"`
	Key        string    `json:"key"`
	AcceptedAt time.Time `json:"accepted_at"`
}

// Enqueue validates and queues a submission for the intake worker.
func (h *ComplaintHandler) Enqueue(c *fiber.Ctx) error {
	if h.intake == nil {
		return apperr.New("SERVICE_UNAVAILABLE", "intake queue not configured", fiber.StatusServiceUnavailable)
	}

	sub, err := h.submission(c)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	sub.Normalize(now)
	if err := validate.Struct(sub); err != nil {
		return err
	}

	id, err := h.intake.Enqueue(c.UserContext(), sub)
	if err != nil {
		return apperr.ExternalError("intake queue", err)
	}

	logger.WithContext(c.UserContext()).
		WithField("key", sub.Key).
		WithField("message_id", id).
		Debug("complaint queued for intake")

	return response.Accepted(c, IntakeReceipt{MessageID: id, Key: sub.Key, AcceptedAt: now})
}

// Reclassify recomputes classification and routing.
func (h *ComplaintHandler) Reclassify(c *fiber.Ctx) error {
	id, err := complaintID(c)
	if err != nil {
		return err
	}
	res, err := h.triage.Reclassify(c.UserContext(), id)
	if err != nil {
		return err
	}
	return response.OK(c, res)
}

// =============================================================================
// Operator
// =============================================================================

// List returns a filtered page.
func (h *ComplaintHandler) List(c *fiber.Ctx) error {
	p := response.GetPagination(c, 20, 100)
	filter := &domain.ComplaintFilter{
		Status:   domain.ComplaintStatus(c.Query("status")),
		Priority: domain.Priority(c.Query("priority")),
		Category: domain.Category(c.Query("category")),
		Team:     domain.Team(c.Query("team")),
		Search:   c.Query("search"),
		Limit:    p.Limit,
		Offset:   p.Offset,
	}
	if v, ok := domain.ParsePriority(string(filter.Priority)); ok {
		filter.Priority = v
	}
	if v, ok := domain.ParseCategory(string(filter.Category)); ok {
		filter.Category = v
	}

	page, err := h.ops.List(c.UserContext(), filter)
	if err != nil {
		return err
	}
	return response.OKWithMeta(c, page.Complaints, &response.Meta{
		Total:      page.Total,
		Page:       page.Page,
		Limit:      page.Limit,
		TotalPages: page.TotalPages,
	})
}

// Get returns one complaint.
func (h *ComplaintHandler) Get(c *fiber.Ctx) error {
	id, err := complaintID(c)
	if err != nil {
		return err
	}
	complaint, err := h.ops.Get(c.UserContext(), id)
	if err != nil {
		return err
	}
	return response.OK(c, complaint)
}

// UpdateStatus changes status and optionally reassigns.
func (h *ComplaintHandler) UpdateStatus(c *fiber.Ctx) error {
	id, err := complaintID(c)
	if err != nil {
		return err
	}
	var req in.StatusUpdate
	if err := c.BodyParser(&req); err != nil {
		return apperr.BadRequest("invalid request body")
	}

	complaint, err := h.ops.UpdateStatus(c.UserContext(), id, &req)
	if err != nil {
		return err
	}
	return response.OK(c, complaint)
}

// Resolve marks a complaint resolved.
func (h *ComplaintHandler) Resolve(c *fiber.Ctx) error {
	id, err := complaintID(c)
	if err != nil {
		return err
	}
	complaint, err := h.ops.Resolve(c.UserContext(), id)
	if err != nil {
		return err
	}
	return response.OK(c, complaint)
}

// Escalate flags a complaint and mails the manager.
func (h *ComplaintHandler) Escalate(c *fiber.Ctx) error {
	id, err := complaintID(c)
	if err != nil {
		return err
	}
	res, err := h.ops.Escalate(c.UserContext(), id)
	if err != nil {
		return err
	}
	return response.OK(c, res)
}

func complaintID(c *fiber.Ctx) (int64, error) {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return 0, apperr.InvalidInput("id", "must be a positive integer")
	}
	return int64(id), nil
}
