package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/findesk/findesk/internal/api/dto"
	"github.com/findesk/findesk/internal/auth"
	"github.com/findesk/findesk/internal/identity"
	apperrors "github.com/findesk/findesk/pkg/util"
)

// AuthHandler exchanges login credentials for a session token.
type AuthHandler struct {
	resolver identity.RoleResolver
	tokens   *auth.TokenManager
	names    *identity.Directory
}

// NewAuthHandler constructs handler.
func NewAuthHandler(resolver identity.RoleResolver, tokens *auth.TokenManager, names *identity.Directory) *AuthHandler {
	return &AuthHandler{resolver: resolver, tokens: tokens, names: names}
}

// Login POST /auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.Email) == "" {
		return apperrors.NewValidationError("email required", nil)
	}

	principal, err := h.resolver.Resolve(c.Context(), identity.Credentials{
		Email:    req.Email,
		Password: req.Password,
		Token:    req.Token,
	})
	if err != nil {
		return err
	}
	if principal.Name == "" && h.names != nil {
		principal.Name = h.names.DisplayName(principal, nil)
	}

	token, expiresAt, err := h.tokens.GenerateToken(principal)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	return c.JSON(fiber.Map{"data": dto.LoginResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		Email:     principal.Email,
		Name:      principal.Name,
		IsAdmin:   principal.IsAdmin,
	}})
}
