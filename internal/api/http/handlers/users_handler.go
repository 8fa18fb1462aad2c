package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-relay/internal/api/dto"
	"github.com/spec-kit/ticket-relay/internal/domain"
	"github.com/spec-kit/ticket-relay/internal/service"
	apperrors "github.com/spec-kit/ticket-relay/pkg/util/errorutil"
)

// UsersHandler manages participants known to the relay.
type UsersHandler struct {
	directory *service.DirectoryService
}

// NewUsersHandler constructs handler.
func NewUsersHandler(directory *service.DirectoryService) *UsersHandler {
	return &UsersHandler{directory: directory}
}

// ListUsers GET /admin/users?role=responder.
func (h *UsersHandler) ListUsers(c *fiber.Ctx) error {
	var role *domain.UserRole
	if r := c.Query("role"); r != "" {
		parsed := domain.UserRole(r)
		if !parsed.Valid() {
			return apperrors.NewValidationError("unknown role", map[string]any{"role": r})
		}
		role = &parsed
	}
	users, err := h.directory.ListUsers(c.UserContext(), role)
	if err != nil {
		return err
	}
	items := make([]dto.UserResponse, 0, len(users))
	for i := range users {
		items = append(items, dto.NewUserResponse(&users[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// PreRegister POST /admin/users.
func (h *UsersHandler) PreRegister(c *fiber.Ctx) error {
	var req dto.PreRegisterUserRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Username == "" {
		return apperrors.NewValidationError("username required", nil)
	}
	if req.Role == "" {
		req.Role = domain.UserRoleRequester
	}
	user, err := h.directory.PreRegister(c.UserContext(), req.Username, req.Role)
	if err != nil {
		return err
	}
	return created(c, dto.NewUserResponse(user))
}

// UpdateUser PATCH /admin/users/:id.
func (h *UsersHandler) UpdateUser(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req dto.UpdateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Role == nil && req.DisplayName == nil {
		return apperrors.NewValidationError("nothing to update", nil)
	}
	user, err := h.directory.UpdateUser(c.UserContext(), id, req.Role, req.DisplayName)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewUserResponse(user)})
}
