package handlers

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/findesk/findesk/internal/api/dto"
	"github.com/findesk/findesk/internal/auth"
	"github.com/findesk/findesk/internal/domain"
	"github.com/findesk/findesk/internal/service"
	apperrors "github.com/findesk/findesk/pkg/util"
)

// LookupsHandler serves the category and department option lists.
type LookupsHandler struct {
	service *service.LookupService
}

// NewLookupsHandler constructs handler.
func NewLookupsHandler(lookupService *service.LookupService) *LookupsHandler {
	return &LookupsHandler{service: lookupService}
}

// List GET /lookups/:kind.
func (h *LookupsHandler) List(c *fiber.Ctx) error {
	options, err := h.service.List(c.Context(), kindParam(c))
	if err != nil {
		return err
	}
	items := make([]dto.LookupOptionResponse, 0, len(options))
	for i := range options {
		items = append(items, dto.FromLookupOption(&options[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Add POST /lookups/:kind.
func (h *LookupsHandler) Add(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.AddLookupRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	option, err := h.service.AddOption(c.Context(), principal, kindParam(c), req.Label)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.FromLookupOption(option)})
}

func kindParam(c *fiber.Ctx) domain.LookupKind {
	return domain.LookupKind(strings.ToUpper(c.Params("kind")))
}
