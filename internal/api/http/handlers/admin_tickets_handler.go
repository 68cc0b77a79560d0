package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/findesk/findesk/internal/api/dto"
	"github.com/findesk/findesk/internal/auth"
	"github.com/findesk/findesk/internal/domain"
	"github.com/findesk/findesk/internal/service"
	apperrors "github.com/findesk/findesk/pkg/util"
)

// AdminTicketsHandler serves the admin-only lifecycle endpoints. Routes mount
// behind RequireAdmin; the engine re-checks the role on every call anyway.
type AdminTicketsHandler struct {
	service *service.TicketService
}

// NewAdminTicketsHandler constructs handler.
func NewAdminTicketsHandler(ticketService *service.TicketService) *AdminTicketsHandler {
	return &AdminTicketsHandler{service: ticketService}
}

// ChangeStatus PATCH /admin/tickets/:id/status.
func (h *AdminTicketsHandler) ChangeStatus(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.StatusChangeRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.service.ChangeStatus(c.Context(), principal, c.Params("id"), domain.TicketStatus(req.Status), req.Comment)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromTicketDetail(ticket)})
}

// AssignTicket PATCH /admin/tickets/:id/assignee.
func (h *AdminTicketsHandler) AssignTicket(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.AssignRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.service.AssignTicket(c.Context(), principal, c.Params("id"), req.Assignee)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromTicketDetail(ticket)})
}

// DeleteTicket DELETE /admin/tickets/:id.
func (h *AdminTicketsHandler) DeleteTicket(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	if err := h.service.DeleteTicket(c.Context(), principal, c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}
