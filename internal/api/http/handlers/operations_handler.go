package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/procurement-service/internal/chat"
	"github.com/spec-kit/procurement-service/internal/observability"
	"github.com/spec-kit/procurement-service/internal/service"
	"github.com/spec-kit/procurement-service/internal/worker"
	apperrors "github.com/spec-kit/procurement-service/pkg/util/errorutil"
)

// OperationsHandler serves operator maintenance endpoints.
type OperationsHandler struct {
	tickets    *service.TicketService
	reconciler *worker.Reconciler
	metrics    *observability.Metrics
}

// NewOperationsHandler constructs handler.
func NewOperationsHandler(tickets *service.TicketService, reconciler *worker.Reconciler, metrics *observability.Metrics) *OperationsHandler {
	return &OperationsHandler{tickets: tickets, reconciler: reconciler, metrics: metrics}
}

// Reconcile POST /reconcile runs one reconciliation pass now.
func (h *OperationsHandler) Reconcile(c *fiber.Ctx) error {
	result, err := h.reconciler.RunOnce(c.UserContext())
	if err != nil {
		return apperrors.NewStoreError(err)
	}
	return c.JSON(fiber.Map{"data": result})
}

// Metrics GET /metrics.
func (h *OperationsHandler) Metrics(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"data": h.metrics.Snapshot()})
}

type injectMessageRequest struct {
	SenderID string `json:"sender_id"`
	Text     string `json:"text"`
}

// InjectMessage POST /chat/messages feeds a message into the workflow as if
// it arrived over chat.
func (h *OperationsHandler) InjectMessage(c *fiber.Ctx) error {
	var req injectMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.SenderID) == "" || strings.TrimSpace(req.Text) == "" {
		return apperrors.NewValidationError("sender_id and text required", nil)
	}
	msg := chat.InboundMessage{Channel: "http", SenderID: req.SenderID, ChatID: req.SenderID, Text: req.Text}
	if err := h.tickets.HandleMessage(c.UserContext(), msg); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusAccepted)
}
