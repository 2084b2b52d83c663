package handlers

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/procurement-service/internal/api/dto"
	"github.com/spec-kit/procurement-service/internal/domain"
	"github.com/spec-kit/procurement-service/internal/repository"
	"github.com/spec-kit/procurement-service/internal/service"
	apperrors "github.com/spec-kit/procurement-service/pkg/util/errorutil"
)

const maxPageSize = 100

// TicketsHandler exposes read-only ticket endpoints to the operator.
type TicketsHandler struct {
	service *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService) *TicketsHandler {
	return &TicketsHandler{service: ticketService}
}

// ListTickets GET /tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	filter, page, pageSize, err := parseTicketQuery(c)
	if err != nil {
		return err
	}
	tickets, err := h.service.ListTickets(c.UserContext(), filter)
	if err != nil {
		return err
	}
	items := make([]dto.TicketResponse, 0, len(tickets))
	for i := range tickets {
		items = append(items, dto.NewTicketResponse(&tickets[i]))
	}
	return c.JSON(fiber.Map{
		"data": items,
		"meta": dto.PageMeta{Page: page, PageSize: pageSize, Count: len(items)},
	})
}

// GetTicket GET /tickets/:number.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	ticket, err := h.service.GetTicket(c.UserContext(), c.Params("number"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// GetHistory GET /tickets/:number/history.
func (h *TicketsHandler) GetHistory(c *fiber.Ctx) error {
	entries, err := h.service.ListHistory(c.UserContext(), c.Params("number"))
	if err != nil {
		return err
	}
	items := make([]dto.TicketHistoryResponse, 0, len(entries))
	for i := range entries {
		items = append(items, dto.NewTicketHistoryResponse(&entries[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

func parseTicketQuery(c *fiber.Ctx) (repository.TicketFilter, int, int, error) {
	filter := repository.TicketFilter{}
	if statusStr := c.Query("status"); statusStr != "" {
		for _, part := range strings.Split(statusStr, ",") {
			status := domain.PrimaryStatus(strings.ToUpper(strings.TrimSpace(part)))
			if !status.Valid() {
				return filter, 0, 0, apperrors.NewValidationError("unknown status", map[string]any{"status": part})
			}
			filter.Statuses = append(filter.Statuses, status)
		}
	}
	if requester := strings.TrimSpace(c.Query("requester_id")); requester != "" {
		filter.RequesterID = &requester
	}
	if since := c.Query("updated_after"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			return filter, 0, 0, apperrors.NewValidationError("updated_after must be RFC3339", nil)
		}
		filter.UpdatedAfter = &t
	}
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 20)
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	filter.Offset = (page - 1) * pageSize
	filter.Limit = pageSize
	return filter, page, pageSize, nil
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}
