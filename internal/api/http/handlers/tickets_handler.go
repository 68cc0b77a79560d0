package handlers

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/findesk/findesk/internal/api/dto"
	"github.com/findesk/findesk/internal/auth"
	"github.com/findesk/findesk/internal/domain"
	"github.com/findesk/findesk/internal/service"
	"github.com/findesk/findesk/internal/storage"
	apperrors "github.com/findesk/findesk/pkg/util"
)

const maxAttachmentBytes = 10 << 20

// TicketsHandler serves the ticket endpoints shared by requesters and admins.
type TicketsHandler struct {
	service *service.TicketService
	blobs   storage.BlobStore
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService, blobs storage.BlobStore) *TicketsHandler {
	return &TicketsHandler{service: ticketService, blobs: blobs}
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	ticket, err := h.service.CreateTicket(c.Context(), principal, service.TicketCreateInput{
		RequesterName: req.RequesterName,
		RequesterRole: req.RequesterRole,
		Category:      req.Category,
		Priority:      domain.TicketPriority(req.Priority),
		Description:   req.Description,
		ContentType:   domain.ContentType(req.ContentType),
		Attachments:   dto.ToAttachments(req.Attachments),
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.FromTicketDetail(ticket)})
}

// ListTickets GET /tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	tickets, err := h.service.ListTickets(c.Context(), principal, parseTicketQuery(c))
	if err != nil {
		return err
	}
	items := make([]dto.TicketSummary, 0, len(tickets))
	for i := range tickets {
		items = append(items, dto.FromTicketSummary(&tickets[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	ticket, err := h.service.GetTicket(c.Context(), principal, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromTicketDetail(ticket)})
}

// AddComment POST /tickets/:id/comments.
func (h *TicketsHandler) AddComment(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.CommentRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.service.AddComment(c.Context(), principal, c.Params("id"), service.CommentInput{
		Body:        req.Body,
		ContentType: domain.ContentType(req.ContentType),
		Attachments: dto.ToAttachments(req.Attachments),
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.FromTicketDetail(ticket)})
}

// EditDescription PATCH /tickets/:id/description.
func (h *TicketsHandler) EditDescription(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.EditDescriptionRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.service.EditDescription(c.Context(), principal, c.Params("id"), req.Description, domain.ContentType(req.ContentType))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromTicketDetail(ticket)})
}

// ReopenTicket POST /tickets/:id/reopen.
func (h *TicketsHandler) ReopenTicket(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.ReopenRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.service.ReopenTicket(c.Context(), principal, c.Params("id"), req.Reason)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromTicketDetail(ticket)})
}

// RateTicket POST /tickets/:id/rating.
func (h *TicketsHandler) RateTicket(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.RatingRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.service.RateTicket(c.Context(), principal, c.Params("id"), req.Rating)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromTicketDetail(ticket)})
}

// UploadAttachment POST /tickets/:id/attachments. Accepts one multipart file,
// stores its bytes in the blob bucket and records the reference on the ticket.
func (h *TicketsHandler) UploadAttachment(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return apperrors.NewValidationError("multipart file field required", nil)
	}
	if fileHeader.Size > maxAttachmentBytes {
		return apperrors.NewValidationError("attachment too large", map[string]any{"max_bytes": maxAttachmentBytes})
	}

	file, err := fileHeader.Open()
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	defer file.Close()
	data, err := io.ReadAll(io.LimitReader(file, maxAttachmentBytes+1))
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	if len(data) > maxAttachmentBytes {
		return apperrors.NewValidationError("attachment too large", map[string]any{"max_bytes": maxAttachmentBytes})
	}

	ticketID := c.Params("id")
	path := fmt.Sprintf("%s/%s", ticketID, sanitizeFileName(fileHeader.Filename))
	url, err := h.blobs.Put(c.Context(), path, data)
	if err != nil {
		return apperrors.NewPersistenceError(err)
	}

	ticket, err := h.service.AddAttachment(c.Context(), principal, ticketID, domain.Attachment{
		Name:       fileHeader.Filename,
		ContentRef: url,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.FromTicketDetail(ticket)})
}

func parseTicketQuery(c *fiber.Ctx) service.ListFilter {
	filter := service.ListFilter{Tab: service.TabOpen}
	if c.Query("tab") == string(service.TabClosed) {
		filter.Tab = service.TabClosed
	}
	if v := c.Query("priority"); v != "" {
		priority := domain.TicketPriority(v)
		filter.Priority = &priority
	}
	if v := c.Query("category"); v != "" {
		category := v
		filter.Category = &category
	}
	if v := c.Query("assignee"); v != "" {
		assignee := v
		filter.Assignee = &assignee
	}
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 20)
	filter.Offset = (page - 1) * pageSize
	filter.Limit = pageSize
	return filter
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

func sanitizeFileName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	if idx := strings.LastIndexByte(name, '/'); idx >= 0 {
		name = name[idx+1:]
	}
	if name == "" {
		return "attachment"
	}
	return name
}
